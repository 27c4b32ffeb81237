package languages

import (
	"gitsage/internal/chunker"

	"github.com/smacker/go-tree-sitter/javascript"
)

func RegisterJavaScript(r *chunker.Registry) {
	r.Register("javascript", &chunker.LanguageSpec{
		Language: javascript.GetLanguage(),
		Query: `
			(function_declaration) @decl
			(class_declaration) @decl
			(lexical_declaration) @decl
			(export_statement) @decl
		`,
		Extensions: []string{"js", "jsx", "mjs", "cjs"},
	})
}
