package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithCacheServesRepeatedTexts(t *testing.T) {
	fake := &fakeProvider{}
	cached := WithCache(fake, 16)

	first, err := cached.Embed(context.Background(), []string{"alpha", "beta"})
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, 1, fake.embedCalls)

	second, err := cached.Embed(context.Background(), []string{"alpha", "gamma"})
	require.NoError(t, err)
	require.Len(t, second, 2)

	assert.Equal(t, 2, fake.embedCalls)
	assert.Equal(t, []string{"gamma"}, fake.embedInputs[1])
}

func TestWithCacheAllHitsSkipProvider(t *testing.T) {
	fake := &fakeProvider{}
	cached := WithCache(fake, 16)

	_, err := cached.Embed(context.Background(), []string{"alpha"})
	require.NoError(t, err)
	_, err = cached.Embed(context.Background(), []string{"alpha"})
	require.NoError(t, err)

	assert.Equal(t, 1, fake.embedCalls)
}

func TestWithCacheReturnsCopies(t *testing.T) {
	cached := WithCache(&fakeProvider{}, 16)

	first, err := cached.Embed(context.Background(), []string{"alpha"})
	require.NoError(t, err)
	first[0][0] = 42

	second, err := cached.Embed(context.Background(), []string{"alpha"})
	require.NoError(t, err)
	assert.Equal(t, float32(1), second[0][0])
}

func TestWithCacheZeroSizeIsPassthrough(t *testing.T) {
	fake := &fakeProvider{}
	assert.Equal(t, Provider(fake), WithCache(fake, 0))
}

func TestWithCachePreservesName(t *testing.T) {
	fake := &fakeProvider{}
	cached := WithCache(fake, 4)
	assert.Equal(t, fake.Name(), cached.Name())
	assert.Equal(t, fake.EmbedDim(), cached.EmbedDim())
}
