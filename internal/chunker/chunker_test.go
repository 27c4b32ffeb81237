package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/smacker/go-tree-sitter/golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// reconstruct joins chunks back into the original content by dropping each
// chunk's overlap with its predecessor, using the declared line ranges.
func reconstruct(t *testing.T, chunks []Chunk) string {
	t.Helper()
	if len(chunks) == 0 {
		return ""
	}
	var lines []string
	lines = append(lines, strings.Split(chunks[0].Content, "\n")...)
	for i := 1; i < len(chunks); i++ {
		overlap := chunks[i-1].EndLine - chunks[i].StartLine + 1
		require.GreaterOrEqual(t, overlap, 0, "chunks must not leave gaps")
		part := strings.Split(chunks[i].Content, "\n")
		require.LessOrEqual(t, overlap, len(part))
		lines = append(lines, part[overlap:]...)
	}
	return strings.Join(lines, "\n")
}

func genFile(numLines int) string {
	var b strings.Builder
	for i := 1; i <= numLines; i++ {
		fmt.Fprintf(&b, "line %d with some padding text to cost tokens\n", i)
	}
	return b.String()
}

func TestSplitRoundTrip(t *testing.T) {
	c := New(Config{MaxTokens: 100, Overlap: 25}, nil)

	for _, numLines := range []int{1, 2, 7, 40, 333} {
		content := genFile(numLines)
		chunks := c.Split("f.txt", content).All()
		require.NotEmpty(t, chunks)

		got := reconstruct(t, chunks)
		assert.Equal(t, strings.TrimSuffix(content, "\n"), got, "lines=%d", numLines)
	}
}

func TestSplitRespectsTokenCeiling(t *testing.T) {
	c := New(Config{MaxTokens: 50, Overlap: 10}, nil)
	chunks := c.Split("f.txt", genFile(200)).All()
	require.Greater(t, len(chunks), 1)

	for _, ch := range chunks {
		assert.LessOrEqual(t, ch.Tokens, 50, "chunk %d", ch.Seq)
	}
}

func TestSplitLineProvenance(t *testing.T) {
	content := "alpha\nbeta\ngamma\n"
	c := New(Config{MaxTokens: 1000, Overlap: 0}, nil)
	chunks := c.Split("f.txt", content).All()

	require.Len(t, chunks, 1)
	assert.Equal(t, 1, chunks[0].StartLine)
	assert.Equal(t, 3, chunks[0].EndLine)
	assert.Equal(t, "alpha\nbeta\ngamma", chunks[0].Content)
	assert.Equal(t, 0, chunks[0].Seq)
}

func TestSplitNeverCutsMidLine(t *testing.T) {
	// One line far over the ceiling must become its own chunk, intact.
	long := strings.Repeat("x", 4000)
	content := "short\n" + long + "\nshort again\n"

	c := New(Config{MaxTokens: 50, Overlap: 5}, nil)
	chunks := c.Split("f.txt", content).All()

	found := false
	for _, ch := range chunks {
		if strings.Contains(ch.Content, long) {
			found = true
			assert.Contains(t, ch.Content, long)
		}
	}
	assert.True(t, found, "oversized line must survive unsplit")
	assert.Equal(t, strings.TrimSuffix(content, "\n"), reconstruct(t, chunks))
}

func TestSplitPrefersBlankLineBoundary(t *testing.T) {
	// Two paragraphs separated by a blank line. The ceiling forces a cut
	// shortly after the blank line; the cut should land on it instead.
	var b strings.Builder
	for i := 0; i < 10; i++ {
		b.WriteString("first paragraph line with enough text here\n")
	}
	b.WriteString("\n")
	for i := 0; i < 10; i++ {
		b.WriteString("second paragraph line with enough text here\n")
	}

	c := New(Config{MaxTokens: 140, Overlap: 0}, nil)
	chunks := c.Split("f.txt", b.String()).All()
	require.Greater(t, len(chunks), 1)

	assert.Equal(t, 11, chunks[0].EndLine, "first chunk should close on the blank line")
	assert.True(t, strings.HasSuffix(chunks[0].Content, "\n"), "blank line belongs to the first chunk")
}

func TestSplitOverlapSharesTailLines(t *testing.T) {
	c := New(Config{MaxTokens: 60, Overlap: 20}, nil)
	chunks := c.Split("f.txt", genFile(50)).All()
	require.Greater(t, len(chunks), 1)

	for i := 1; i < len(chunks); i++ {
		assert.LessOrEqual(t, chunks[i].StartLine, chunks[i-1].EndLine,
			"consecutive chunks should overlap")
		assert.Greater(t, chunks[i].StartLine, chunks[i-1].StartLine,
			"iterator must make progress")
	}
}

func TestSplitBlankContentYieldsNothing(t *testing.T) {
	c := New(Config{MaxTokens: 100, Overlap: 10}, nil)

	_, ok := c.Split("f.txt", "").Next()
	assert.False(t, ok)
	_, ok = c.Split("f.txt", "  \n\t\n").Next()
	assert.False(t, ok)
}

func TestIteratorReset(t *testing.T) {
	c := New(Config{MaxTokens: 50, Overlap: 10}, nil)
	it := c.Split("f.txt", genFile(30))

	first := it.All()
	it.Reset()
	second := it.All()

	assert.Equal(t, first, second)
}

func TestSplitUsesDeclarationHints(t *testing.T) {
	src := `package demo

func First() int {
	return 1
}

func Second() int {
	return 2
}
`
	reg := NewRegistry()
	registerGoForTest(reg)
	c := New(Config{MaxTokens: 14, Overlap: 0}, NewHinter(reg))

	chunks := c.Split("demo.go", src).All()
	require.Greater(t, len(chunks), 1)

	// The ceiling forces a cut past First's closing brace; the hint should
	// pull the cut back onto it (line 5) rather than the later blank line.
	assert.Equal(t, 5, chunks[0].EndLine)
	assert.True(t, strings.HasSuffix(chunks[0].Content, "}"))
	assert.Equal(t, strings.TrimSuffix(src, "\n"), reconstruct(t, chunks))
}

func registerGoForTest(r *Registry) {
	r.Register("go", &LanguageSpec{
		Language:   golang.GetLanguage(),
		Query:      `(function_declaration) @decl`,
		Extensions: []string{"go"},
	})
}
