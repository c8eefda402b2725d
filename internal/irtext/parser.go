package irtext

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/fatih/color"
)

var irParser = participle.MustBuild[Program](
	participle.Lexer(IRLexer),
	participle.Elide("Whitespace", "Comment"),
	participle.UseLookahead(2),
)

// Parse reads a textual MIR dump produced by Print (or written by
// hand in the same format) into a Program. name is used only to tag
// parse-error positions.
func Parse(name, src string) (*Program, error) {
	prog, err := irParser.ParseString(name, src)
	if err != nil {
		reportParseError(src, err)
		return nil, err
	}
	return prog, nil
}

// reportParseError prints a caret-style parse error, the same shape
// grammar.ParseFile uses for Kanso source.
func reportParseError(src string, err error) {
	pe, ok := err.(participle.Error)
	if !ok {
		color.Red("irtext: unexpected error: %s", err)
		return
	}

	pos := pe.Position()
	lines := strings.Split(src, "\n")
	if pos.Line <= 0 || pos.Line > len(lines) {
		color.Red("irtext: syntax error at unknown location: %s", err)
		return
	}

	line := lines[pos.Line-1]
	caret := strings.Repeat(" ", pos.Column-1) + "^"

	color.Red("irtext: syntax error in %s at line %d, column %d:", pos.Filename, pos.Line, pos.Column)
	fmt.Println(line)
	color.HiRed(caret)
	fmt.Printf("-> %s\n", pe.Message())
}
