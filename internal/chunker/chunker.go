// Package chunker splits file text into token-bounded, overlapping chunks
// with line provenance. Cuts prefer natural boundaries: the end of a
// top-level declaration when a tree-sitter grammar is registered for the
// file, then blank lines, then statement-ending lines, before falling back to
// a hard cut at the token ceiling. Lines are never split, so joining the
// chunks minus their declared overlap reconstructs the file exactly.
package chunker

import (
	"strings"

	"gitsage/internal/token"
)

// Chunk is a bounded contiguous span of a file, the unit that gets embedded.
type Chunk struct {
	Path      string
	Seq       int
	StartLine int // 1-based, inclusive
	EndLine   int // 1-based, inclusive
	Content   string
	Tokens    int
}

// Config bounds chunk construction.
type Config struct {
	MaxTokens int // ceiling on tokens per chunk
	Overlap   int // tokens repeated from the previous chunk's tail
}

// Chunker produces chunk iterators for file contents.
type Chunker struct {
	cfg    Config
	hinter *Hinter
}

// New creates a Chunker. hinter may be nil to disable declaration-boundary
// hints; blank-line and statement-end preferences still apply.
func New(cfg Config, hinter *Hinter) *Chunker {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 320
	}
	if cfg.Overlap < 0 || cfg.Overlap >= cfg.MaxTokens {
		cfg.Overlap = cfg.MaxTokens / 4
	}
	return &Chunker{cfg: cfg, hinter: hinter}
}

// Split returns a lazy iterator over the chunks of content. The iterator is
// restartable via Reset and yields nothing for blank content.
func (c *Chunker) Split(path, content string) *Iterator {
	it := &Iterator{chunker: c, path: path}
	if strings.TrimSpace(content) == "" {
		return it
	}
	it.lines = strings.Split(strings.TrimSuffix(content, "\n"), "\n")
	if c.hinter != nil {
		it.hints = c.hinter.Boundaries(path, []byte(content))
	}
	return it
}

// Iterator walks a file's chunks one at a time.
type Iterator struct {
	chunker *Chunker
	path    string
	lines   []string
	hints   map[int]bool // 1-based line numbers ending a top-level declaration
	start   int          // 0-based index of the next chunk's first line
	seq     int
}

// Reset rewinds the iterator to the first chunk.
func (it *Iterator) Reset() {
	it.start = 0
	it.seq = 0
}

// Next returns the next chunk and true, or a zero Chunk and false when the
// file is exhausted.
func (it *Iterator) Next() (Chunk, bool) {
	if it.start >= len(it.lines) {
		return Chunk{}, false
	}

	maxTokens := it.chunker.cfg.MaxTokens
	end := it.start
	tokens := 0
	for end < len(it.lines) {
		cost := lineCost(it.lines[end])
		if end > it.start && tokens+cost > maxTokens {
			break
		}
		tokens += cost
		end++
	}

	// A cut happened mid-file: pull it back to the best natural boundary in
	// the second half of the window.
	if end < len(it.lines) {
		end = it.bestCut(it.start, end)
	}

	content := strings.Join(it.lines[it.start:end], "\n")
	chunk := Chunk{
		Path:      it.path,
		Seq:       it.seq,
		StartLine: it.start + 1,
		EndLine:   end,
		Content:   content,
		Tokens:    token.Estimate(content),
	}
	it.seq++

	if end >= len(it.lines) {
		it.start = len(it.lines)
		return chunk, true
	}

	// Walk the start of the next chunk back over the overlap budget, always
	// keeping forward progress of at least one line.
	next := end
	acc := 0
	for next > it.start+1 && acc < it.chunker.cfg.Overlap {
		next--
		acc += lineCost(it.lines[next])
	}
	it.start = next
	return chunk, true
}

// bestCut searches (start, end) for the highest-priority boundary closest to
// end: declaration end, blank line, then statement-ending line. The search
// never shrinks the chunk below half its hard-cut size.
func (it *Iterator) bestCut(start, end int) int {
	low := start + (end-start)/2
	if low <= start {
		low = start + 1
	}

	blankCut, stmtCut := -1, -1
	for i := end - 1; i >= low; i-- {
		if it.hints[i+1] {
			return i + 1
		}
		if blankCut == -1 && strings.TrimSpace(it.lines[i]) == "" {
			blankCut = i + 1
		}
		if stmtCut == -1 && endsStatement(it.lines[i]) {
			stmtCut = i + 1
		}
	}
	if blankCut != -1 {
		return blankCut
	}
	if stmtCut != -1 {
		return stmtCut
	}
	return end
}

// All drains the iterator. Mainly for callers that need every chunk at once.
func (it *Iterator) All() []Chunk {
	var chunks []Chunk
	for {
		c, ok := it.Next()
		if !ok {
			return chunks
		}
		chunks = append(chunks, c)
	}
}

// lineCost charges at least one token per line so runs of short lines still
// bound the chunk.
func lineCost(line string) int {
	c := token.Estimate(line)
	if c < 1 {
		c = 1
	}
	return c
}

func endsStatement(line string) bool {
	trimmed := strings.TrimRight(line, " \t")
	if trimmed == "" {
		return false
	}
	switch trimmed[len(trimmed)-1] {
	case '}', ';', ':':
		return true
	}
	return false
}
