package rag

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"gitsage/internal/store"
	"gitsage/internal/token"
)

// ErrBudgetTooSmall means not even the best-scoring file group fits the
// context token budget.
var ErrBudgetTooSmall = errors.New("context token budget too small for any retrieved chunk")

// Block is a merged, contiguous span of one file ready for prompting.
type Block struct {
	Path       string
	StartLine  int
	EndLine    int
	Content    string
	Similarity float64 // best score among the merged chunks
}

// Assembled is the rendered prompt context.
type Assembled struct {
	Blocks []Block
	Text   string
	Tokens int
}

// Header renders the provenance line for a block.
func (b Block) Header() string {
	return fmt.Sprintf("## %s:%d–%d", b.Path, b.StartLine, b.EndLine)
}

func (b Block) render() string {
	return b.Header() + "\n" + b.Content + "\n"
}

// Assemble merges retrieved chunks into per-file blocks and fits them to
// the token budget. Chunks of the same file whose line ranges overlap or
// abut collapse into one block with the shared lines deduplicated. Files
// are kept in best-score order; when the budget is exceeded the
// lowest-scoring files are dropped whole.
func Assemble(results []store.SearchResult, budget int) (*Assembled, error) {
	if len(results) == 0 {
		return &Assembled{}, nil
	}

	groups := groupByFile(results)

	// Drop the weakest files until the rendered context fits.
	dropped := 0
	for len(groups) > 0 && groupsTokens(groups) > budget && budget > 0 {
		dropped++
		groups = groups[:len(groups)-1]
	}
	if len(groups) == 0 {
		slog.Warn("best-scoring file alone exceeds the context budget", "budget", budget)
		return nil, ErrBudgetTooSmall
	}
	if dropped > 0 {
		slog.Debug("dropped files to fit context budget", "dropped", dropped, "kept", len(groups))
	}

	out := &Assembled{}
	var sb strings.Builder
	for _, g := range groups {
		for _, b := range g.blocks {
			out.Blocks = append(out.Blocks, b)
			sb.WriteString(b.render())
			sb.WriteString("\n")
		}
	}
	out.Text = strings.TrimSuffix(sb.String(), "\n")
	out.Tokens = token.Estimate(out.Text)
	return out, nil
}

type fileGroup struct {
	path   string
	score  float64
	blocks []Block
	tokens int
}

func groupsTokens(groups []fileGroup) int {
	total := 0
	for _, g := range groups {
		total += g.tokens
	}
	return total
}

// groupByFile merges chunks per file and orders the files by their best
// similarity, ties broken by path.
func groupByFile(results []store.SearchResult) []fileGroup {
	byPath := make(map[string][]store.SearchResult)
	for _, r := range results {
		byPath[r.Path] = append(byPath[r.Path], r)
	}

	groups := make([]fileGroup, 0, len(byPath))
	for path, rs := range byPath {
		g := fileGroup{path: path, blocks: mergeBlocks(path, rs)}
		for _, b := range g.blocks {
			if b.Similarity > g.score {
				g.score = b.Similarity
			}
			g.tokens += token.Estimate(b.render())
		}
		groups = append(groups, g)
	}

	sort.Slice(groups, func(i, j int) bool {
		if groups[i].score != groups[j].score {
			return groups[i].score > groups[j].score
		}
		return groups[i].path < groups[j].path
	})
	return groups
}

// mergeBlocks unions overlapping or abutting line ranges within one file.
// Chunks carry their overlap lines verbatim, so a merge drops the shared
// prefix of the later chunk before concatenating.
func mergeBlocks(path string, rs []store.SearchResult) []Block {
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].Chunk.StartLine != rs[j].Chunk.StartLine {
			return rs[i].Chunk.StartLine < rs[j].Chunk.StartLine
		}
		return rs[i].Chunk.EndLine > rs[j].Chunk.EndLine
	})

	var blocks []Block
	for _, r := range rs {
		next := Block{
			Path:       path,
			StartLine:  r.Chunk.StartLine,
			EndLine:    r.Chunk.EndLine,
			Content:    r.Chunk.Content,
			Similarity: r.Similarity,
		}
		if len(blocks) == 0 {
			blocks = append(blocks, next)
			continue
		}

		cur := &blocks[len(blocks)-1]
		if next.StartLine > cur.EndLine+1 {
			blocks = append(blocks, next)
			continue
		}

		// Overlapping or abutting: extend the current block.
		if next.Similarity > cur.Similarity {
			cur.Similarity = next.Similarity
		}
		if next.EndLine <= cur.EndLine {
			continue // fully contained
		}
		shared := cur.EndLine - next.StartLine + 1
		lines := strings.Split(next.Content, "\n")
		if shared < len(lines) {
			cur.Content += "\n" + strings.Join(lines[shared:], "\n")
		}
		cur.EndLine = next.EndLine
	}
	return blocks
}
