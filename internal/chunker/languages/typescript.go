package languages

import (
	"gitsage/internal/chunker"

	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

const typescriptDeclQuery = `
	(function_declaration) @decl
	(class_declaration) @decl
	(interface_declaration) @decl
	(type_alias_declaration) @decl
	(lexical_declaration) @decl
	(export_statement) @decl
`

func RegisterTypeScript(r *chunker.Registry) {
	r.Register("typescript", &chunker.LanguageSpec{
		Language:   typescript.GetLanguage(),
		Query:      typescriptDeclQuery,
		Extensions: []string{"ts"},
	})
	// JSX needs the tsx variant of the grammar.
	r.Register("tsx", &chunker.LanguageSpec{
		Language:   tsx.GetLanguage(),
		Query:      typescriptDeclQuery,
		Extensions: []string{"tsx"},
	})
}
