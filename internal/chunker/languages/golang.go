// Package languages registers tree-sitter grammars used for chunk boundary
// detection. Each query captures top-level declarations as @decl.
package languages

import (
	"gitsage/internal/chunker"

	"github.com/smacker/go-tree-sitter/golang"
)

func RegisterGo(r *chunker.Registry) {
	r.Register("go", &chunker.LanguageSpec{
		Language: golang.GetLanguage(),
		Query: `
			(function_declaration) @decl
			(method_declaration) @decl
			(type_declaration) @decl
		`,
		Extensions: []string{"go"},
	})
}

// RegisterAll registers every built-in language.
func RegisterAll(r *chunker.Registry) {
	RegisterGo(r)
	RegisterJavaScript(r)
	RegisterTypeScript(r)
	RegisterPython(r)
}
