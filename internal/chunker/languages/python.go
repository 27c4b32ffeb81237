package languages

import (
	"gitsage/internal/chunker"

	"github.com/smacker/go-tree-sitter/python"
)

func RegisterPython(r *chunker.Registry) {
	r.Register("python", &chunker.LanguageSpec{
		Language: python.GetLanguage(),
		Query: `
			(function_definition) @decl
			(class_definition) @decl
			(decorated_definition) @decl
		`,
		Extensions: []string{"py", "pyi"},
	})
}
