// Package diag carries construction-time and verification-time errors
// through the compiler. Locations are IR-native (function/block/inst
// handles) rather than source spans, since CORE scope has no
// source-position tracking — diagnostics describe a place in the IR,
// not a place in user source text.
package diag

import "fmt"

// Severity mirrors the teacher's ErrorLevel, dropping the Help level
// (there is no fix-it-suggestion surface in CORE scope).
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityNote    Severity = "note"
)

// Code ranges, following the teacher's ENNNN convention but partitioned
// by the CORE's own subsystems rather than by language-frontend phase:
//
//	E1xxx  IR builder (internal/ir)
//	E2xxx  GEP construction (internal/ir)
//	E3xxx  MIR operand construction (internal/mir)
//	E4xxx  stack layout finalization (internal/lower/stackframe)
const (
	ErrDuplicateGlobalName   = "E1001"
	ErrNoFocusInstruction    = "E1002"
	ErrWrongValueKind        = "E1003"
	ErrMissingTerminator     = "E1004"
	ErrAlreadyAttached       = "E1005"
	ErrUnknownPredecessor    = "E1006"
	ErrPhiNotAtBlockStart    = "E1007"
	ErrBranchCrossesFunction = "E1008"
	ErrPhiEdgeMismatch       = "E1009"

	ErrGEPNonIntegerIndex   = "E2001"
	ErrGEPStructOutOfRange  = "E2002"
	ErrGEPIndexNonAggregate = "E2003"
	ErrGEPStructNonConstant = "E2004"

	ErrBadImmediateForClass = "E3001"
	ErrOperandClassMismatch = "E3002"

	ErrStackLayoutOverflow = "E4001"
)

// Diagnostic is a single structured error or warning, analogous to the
// teacher's CompilerError but with an IR-native Location instead of an
// ast.Position.
type Diagnostic struct {
	Severity Severity
	Code     string
	Message  string
	Location Location
	Notes    []string
}

// Location names the IR construct a diagnostic refers to. At most one
// of the handle-shaped fields is meaningful for a given diagnostic;
// Kind says which.
type Location struct {
	Kind LocationKind
	Func string // function name, when applicable
	Block int    // block handle index, 0 if not applicable
	Inst  int    // instruction handle index, 0 if not applicable
}

type LocationKind int

const (
	LocModule LocationKind = iota
	LocFunction
	LocBlock
	LocInst
)

func (d *Diagnostic) Error() string {
	if d.Code != "" {
		return fmt.Sprintf("%s[%s]: %s", d.Severity, d.Code, d.Message)
	}
	return fmt.Sprintf("%s: %s", d.Severity, d.Message)
}

// New builds an error-severity diagnostic at the module level.
func New(code, message string) *Diagnostic {
	return &Diagnostic{Severity: SeverityError, Code: code, Message: message}
}

// WithFunc attaches a function-scoped location and returns the receiver
// for chaining, matching the teacher's builder-style error construction.
func (d *Diagnostic) WithFunc(name string) *Diagnostic {
	d.Location = Location{Kind: LocFunction, Func: name}
	return d
}

// WithBlock attaches a block-scoped location.
func (d *Diagnostic) WithBlock(funcName string, blockIdx int) *Diagnostic {
	d.Location = Location{Kind: LocBlock, Func: funcName, Block: blockIdx}
	return d
}

// WithInst attaches an instruction-scoped location.
func (d *Diagnostic) WithInst(funcName string, blockIdx, instIdx int) *Diagnostic {
	d.Location = Location{Kind: LocInst, Func: funcName, Block: blockIdx, Inst: instIdx}
	return d
}

// WithNote appends a context note.
func (d *Diagnostic) WithNote(note string) *Diagnostic {
	d.Notes = append(d.Notes, note)
	return d
}

// IsWarning reports whether d is at warning severity, mirroring the
// teacher's errors.IsWarning but keyed on Severity rather than a code
// string range.
func (d *Diagnostic) IsWarning() bool { return d.Severity == SeverityWarning }

// Description returns a human-readable summary of a code, for the CLI
// and for tests that want to assert "the right kind of error" without
// string-matching the free-text Message.
func Description(code string) string {
	switch code {
	case ErrDuplicateGlobalName:
		return "a global with this name already exists in the module"
	case ErrNoFocusInstruction:
		return "instruction-list insertion point does not exist"
	case ErrWrongValueKind:
		return "operand value is not of the expected SSA kind"
	case ErrMissingTerminator:
		return "block has no terminator instruction"
	case ErrAlreadyAttached:
		return "instruction is already attached to a block"
	case ErrUnknownPredecessor:
		return "jump target names a block that is not a known predecessor"
	case ErrPhiNotAtBlockStart:
		return "phi instruction does not appear in the block's leading phi group"
	case ErrBranchCrossesFunction:
		return "branch target belongs to a different function"
	case ErrPhiEdgeMismatch:
		return "phi incoming block is not an actual predecessor, or a predecessor has no matching incoming pair"
	case ErrGEPNonIntegerIndex:
		return "GEP index must be an integer value"
	case ErrGEPStructOutOfRange:
		return "GEP struct field index is out of range"
	case ErrGEPIndexNonAggregate:
		return "GEP index applied to a non-aggregate type"
	case ErrGEPStructNonConstant:
		return "GEP struct field index must be a compile-time constant"
	case ErrBadImmediateForClass:
		return "immediate value does not satisfy its operand class"
	case ErrOperandClassMismatch:
		return "MIR operand does not match the slot's expected class"
	case ErrStackLayoutOverflow:
		return "stack frame exceeds the addressable offset range"
	default:
		return "unknown diagnostic code"
	}
}
