package diag

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiagnosticErrorFormatting(t *testing.T) {
	d := New(ErrDuplicateGlobalName, "global \"x\" already declared").WithFunc("main")
	assert.Equal(t, "error[E1001]: global \"x\" already declared", d.Error())
	assert.Equal(t, LocFunction, d.Location.Kind)
	assert.Equal(t, "main", d.Location.Func)
}

func TestDiagnosticWithoutCode(t *testing.T) {
	d := &Diagnostic{Severity: SeverityWarning, Message: "unreachable block"}
	assert.Equal(t, "warning: unreachable block", d.Error())
	assert.True(t, d.IsWarning())
}

func TestWithNoteAccumulates(t *testing.T) {
	d := New(ErrGEPStructOutOfRange, "index 4 out of range").
		WithNote("struct has 3 fields").
		WithNote("did you mean index 2?")
	assert.Len(t, d.Notes, 2)
}

func TestDescriptionCoversEveryCode(t *testing.T) {
	codes := []string{
		ErrDuplicateGlobalName, ErrNoFocusInstruction, ErrWrongValueKind,
		ErrMissingTerminator, ErrAlreadyAttached, ErrUnknownPredecessor,
		ErrPhiNotAtBlockStart, ErrBranchCrossesFunction, ErrPhiEdgeMismatch,
		ErrGEPNonIntegerIndex, ErrGEPStructOutOfRange, ErrGEPIndexNonAggregate,
		ErrGEPStructNonConstant, ErrBadImmediateForClass, ErrOperandClassMismatch,
		ErrStackLayoutOverflow,
	}
	for _, c := range codes {
		assert.NotEqual(t, "unknown diagnostic code", Description(c), "code %s", c)
	}
	assert.Equal(t, "unknown diagnostic code", Description("E9999"))
}
