package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInitIsIdempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		Init(Debug)
		Init(Trace)
	})
}

func TestScopeNamesLoggerPerPipelineStage(t *testing.T) {
	Init(Quiet)
	l := Scope("expand")
	assert.NotNil(t, l)
}
