// Package irtext is CORE's textual MIR format: a printer that dumps a
// *mir.Module as readable text and a participle/v2 grammar (and
// parser) that reads that text back into a structural AST, so dumps
// can be diffed, golden-tested, and round-tripped through
// print-parse-print without losing their shape. Grounded on grammar/
// for the lexer/parser construction idiom — a stateful
// lexer.MustStateful plus participle.Build — generalized to MIR's own
// token alphabet rather than Kanso's source syntax.
package irtext

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// IRLexer tokenizes the textual MIR dump format. Atom swallows
// anything that isn't whitespace or one of the structural delimiters
// (parens, braces, colon, comma, semicolon) — register names, virtual
// register ids, `#`-prefixed immediates, `=`-prefixed symbol
// references, and condition-coded mnemonics like `b.eq` are all a
// single Atom token, so the grammar never needs to know the
// difference between an opcode and an operand at the lexer level.
var IRLexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		{"Comment", `;;[^\n]*`, nil},
		{"Arrow", `->`, nil},
		{"Punct", `[(){}:,;]`, nil},
		{"Atom", `[^\s(){}:,;]+`, nil},
		{"Whitespace", `[ \t\r\n]+`, nil},
	},
})
