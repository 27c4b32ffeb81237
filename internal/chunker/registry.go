package chunker

import (
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
)

// LanguageSpec pairs a tree-sitter grammar with the query selecting its
// top-level declarations. The query must capture each declaration node as
// @decl.
type LanguageSpec struct {
	Language   *sitter.Language
	Query      string
	Extensions []string
}

// Registry maps file extensions to language specs.
type Registry struct {
	mu    sync.RWMutex
	specs map[string]*LanguageSpec // extension (without dot) → spec
	names map[string]*LanguageSpec // language name → spec
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		specs: make(map[string]*LanguageSpec),
		names: make(map[string]*LanguageSpec),
	}
}

// Register adds a language spec under the given name.
func (r *Registry) Register(name string, spec *LanguageSpec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names[name] = spec
	for _, ext := range spec.Extensions {
		r.specs[ext] = spec
	}
}

// Lookup returns the spec for a file path based on its extension, or nil.
func (r *Registry) Lookup(path string) (spec *LanguageSpec, lang string) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.specs[ext]
	if !ok {
		return nil, ""
	}
	for name, sp := range r.names {
		if sp == s {
			return s, name
		}
	}
	return s, ext
}

// LanguageName returns the registered language name for a file path, falling
// back to the bare extension for unregistered files.
func (r *Registry) LanguageName(path string) string {
	_, lang := r.Lookup(path)
	if lang == "" {
		return strings.TrimPrefix(filepath.Ext(path), ".")
	}
	return lang
}
