package irtext

import (
	"fmt"
	"strings"

	"talon/internal/mir"
)

// Print renders mod as a textual MIR dump: a module block containing
// one func block per function, each with its argument list, optional
// result register, and labeled instruction blocks. The text Print
// produces is exactly what Parse consumes, and reprinting a Parse
// result with (*Program).Format reproduces it byte for byte — Print
// itself is implemented by building the same Program AST Parse returns
// and delegating to Format, so the two paths can never drift apart.
func Print(mod *mir.Module) string {
	prog := &Program{Name: "main", Globals: mod.Globals}
	for _, fn := range mod.Functions {
		prog.Functions = append(prog.Functions, functionToAST(fn))
	}
	return prog.Format()
}

func functionToAST(fn *mir.Function) *Function {
	f := &Function{Name: fn.Name}
	for i, a := range fn.Args {
		f.Args = append(f.Args, &Arg{Name: fmt.Sprintf("a%d", i), Reg: argAtom(a)})
	}
	if fn.HasResult {
		r := fn.ResultReg.String()
		f.Result = &r
	}
	for _, blk := range fn.Blocks {
		b := &Block{Label: blk.Name}
		for _, inst := range blk.Insts {
			b.Insts = append(b.Insts, instructionToAST(inst))
		}
		f.Blocks = append(f.Blocks, b)
	}
	return f
}

// argAtom renders an ArgLoc as a single atom: the register it arrives
// in, or a bracket-free "stack+offset" tag when it was spilled by the
// caller into the incoming-argument area.
func argAtom(a mir.ArgLoc) string {
	if a.InReg {
		return a.Reg.String()
	}
	return fmt.Sprintf("stack+%d", a.StackOff)
}

// instructionToAST splits an Inst's rendered text into the mnemonic and
// comma-separated operand list the grammar expects, relying on
// mir.Inst.String always emitting "mnemonic operand, operand, ..." with
// no internal commas or spaces inside a single operand.
func instructionToAST(inst mir.Inst) *Instruction {
	text := inst.String()
	fields := strings.SplitN(text, " ", 2)
	out := &Instruction{Mnemonic: fields[0]}
	if len(fields) == 2 {
		for _, op := range strings.Split(fields[1], ",") {
			op = strings.TrimSpace(op)
			if op != "" {
				out.Operands = append(out.Operands, op)
			}
		}
	}
	return out
}

// Format reprints p in the same canonical layout Print produces,
// giving print -> parse -> format a stable fixed point: Parse(Print(m))
// always satisfies Parse(Print(m)).Format() == Print(m).
func (p *Program) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "module %s {\n", p.Name)
	for _, g := range p.Globals {
		fmt.Fprintf(&b, "  global %s;\n", g)
	}
	for _, fn := range p.Functions {
		fn.writeTo(&b)
	}
	b.WriteString("}\n")
	return b.String()
}

func (f *Function) writeTo(b *strings.Builder) {
	fmt.Fprintf(b, "  func %s(", f.Name)
	for i, a := range f.Args {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(b, "%s: %s", a.Name, a.Reg)
	}
	b.WriteString(")")
	if f.Result != nil {
		fmt.Fprintf(b, " -> %s", *f.Result)
	}
	b.WriteString(" {\n")
	for _, blk := range f.Blocks {
		blk.writeTo(b)
	}
	b.WriteString("  }\n")
}

func (blk *Block) writeTo(b *strings.Builder) {
	fmt.Fprintf(b, "    %s:\n", blk.Label)
	for _, inst := range blk.Insts {
		inst.writeTo(b)
	}
}

func (inst *Instruction) writeTo(b *strings.Builder) {
	fmt.Fprintf(b, "      %s", inst.Mnemonic)
	if len(inst.Operands) > 0 {
		fmt.Fprintf(b, " %s", strings.Join(inst.Operands, ", "))
	}
	b.WriteString(";\n")
}
