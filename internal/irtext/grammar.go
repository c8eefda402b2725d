package irtext

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// Program is the parsed form of one textual MIR dump: a single module
// containing the global symbol names mir.Module.Globals records and
// every function the printer emitted.
type Program struct {
	Pos       lexer.Position
	Name      string      `"module" @Atom "{"`
	Globals   []string    `{ "global" @Atom ";" }`
	Functions []*Function `@@*`
	Close     string      `"}"`
}

// Function mirrors mir.Function's printed shape: a name, a flat
// argument list, an optional result, and the blocks that make up its
// body.
type Function struct {
	Pos    lexer.Position
	Name   string  `"func" @Atom`
	Args   []*Arg  `"(" [ @@ { "," @@ } ] ")"`
	Result *string `[ "->" @Atom ]`
	Open   string  `"{"`
	Blocks []*Block `@@*`
	Close  string  `"}"`
}

// Arg is one `name: register` entry of a function's argument list.
type Arg struct {
	Pos  lexer.Position
	Name string `@Atom`
	Reg  string `":" @Atom`
}

// Block is one labeled basic block: `label:` followed by its
// instructions.
type Block struct {
	Pos   lexer.Position
	Label string         `@Atom ":"`
	Insts []*Instruction `@@*`
}

// Instruction is one semicolon-terminated statement: a mnemonic
// (possibly dotted, e.g. `add.64` or `b.eq`) followed by a
// comma-separated operand list. Operands are kept as raw atoms —
// irtext reconstructs dump structure (functions, blocks, control
// flow, the opcode and operand text of each instruction) but does not
// re-derive a typed mir.Inst from them; see DESIGN.md.
type Instruction struct {
	Pos       lexer.Position
	Mnemonic  string   `@Atom`
	Operands  []string `[ @Atom { "," @Atom } ]`
	Semicolon string   `";"`
}
