package chunker

import (
	"context"
	"log/slog"

	sitter "github.com/smacker/go-tree-sitter"
)

// Hinter extracts preferred cut points from source files using tree-sitter.
// A cut point is the last line of a top-level declaration, so chunks tend to
// close right after a function, type, or class instead of mid-body.
type Hinter struct {
	registry *Registry
}

// NewHinter creates a Hinter backed by the given language registry.
func NewHinter(r *Registry) *Hinter {
	return &Hinter{registry: r}
}

// Boundaries returns the set of 1-based line numbers that end a top-level
// declaration in src, or nil when no grammar is registered for the file or
// parsing fails. Parse failures only cost the hints, never the chunking.
func (h *Hinter) Boundaries(path string, src []byte) map[int]bool {
	spec, lang := h.registry.Lookup(path)
	if spec == nil {
		return nil
	}

	parser := sitter.NewParser()
	parser.SetLanguage(spec.Language)
	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		slog.Debug("boundary parse failed", slog.String("path", path), slog.Any("err", err))
		return nil
	}
	defer tree.Close()

	q, err := sitter.NewQuery([]byte(spec.Query), spec.Language)
	if err != nil {
		slog.Debug("boundary query failed", slog.String("lang", lang), slog.Any("err", err))
		return nil
	}
	defer q.Close()

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(q, tree.RootNode())

	bounds := make(map[int]bool)
	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}
		for _, cap := range m.Captures {
			if q.CaptureNameForId(cap.Index) != "decl" {
				continue
			}
			bounds[int(cap.Node.EndPoint().Row)+1] = true
		}
	}
	if len(bounds) == 0 {
		return nil
	}
	return bounds
}
