package filter

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// filterLexer defines the token types of the textual filter language.
var filterLexer = lexer.MustSimple([]lexer.SimpleRule{
	// Keywords must come before Ident.
	{Name: "Keyword", Pattern: `\b(and|or|not|in|true|false|null)\b`},

	// Multi-character operators must come before their prefixes.
	{Name: "Op", Pattern: `!=|<>|>=|<=|=|>|<`},

	// Punctuation
	{Name: "LParen", Pattern: `\(`},
	{Name: "RParen", Pattern: `\)`},
	{Name: "Comma", Pattern: `,`},

	// Literals: strings are SQL-style, single-quoted with doubled
	// apostrophes escaping.
	{Name: "String", Pattern: `'(?:''|[^'])*'`},
	{Name: "Number", Pattern: `-?\d+(?:\.\d+)?`},

	// Identifiers
	{Name: "Ident", Pattern: `[\p{L}_][\p{L}\p{N}_]*`},

	// Whitespace
	{Name: "Whitespace", Pattern: `[ \t\r\n]+`},
})
