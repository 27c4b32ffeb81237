package token

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimate(t *testing.T) {
	assert.Equal(t, 0, Estimate(""))
	assert.Equal(t, 1, Estimate("a"))
	assert.Equal(t, 1, Estimate("abcd"))
	assert.Equal(t, 2, Estimate("abcde"))
	assert.Equal(t, 25, Estimate(strings.Repeat("x", 100)))
}

func TestEstimateAll(t *testing.T) {
	assert.Equal(t, 0, EstimateAll())
	assert.Equal(t, 2, EstimateAll("abcd", "efgh"))
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("y", 1000)

	assert.Equal(t, "", Truncate(long, 0))
	assert.Equal(t, long, Truncate(long, 250))

	cut := Truncate(long, 10)
	assert.Contains(t, cut, "truncated")
	assert.True(t, strings.HasPrefix(cut, strings.Repeat("y", 40)))
}
