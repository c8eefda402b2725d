// Package telemetry is CORE's structured logging facility: a thin
// wrapper over tliron/commonlog with a one-time backend setup (Init)
// and named loggers (Scope). cmd/talonc calls Init; no pipeline package
// calls Scope or logs through this package.
// Grounded on cmd/kanso-lsp/main.go's commonlog.Configure call, the
// only place commonlog was previously wired up.
package telemetry

import (
	"sync"

	"github.com/tliron/commonlog"

	_ "github.com/tliron/commonlog/simple"
)

// Verbosity mirrors commonlog's own integer scale: 0 is errors and
// criticals only, higher numbers progressively unlock notice, info,
// and debug output. cmd/talonc has no verbosity flag; it always passes
// Info.
type Verbosity int

const (
	Quiet Verbosity = iota
	Info
	Debug
	Trace
)

var configureOnce sync.Once

// Init configures commonlog's backend once for the process. Safe to
// call from multiple entry points (cmd/talonc, tests); only the first
// call's verbosity takes effect.
func Init(v Verbosity) {
	configureOnce.Do(func() {
		commonlog.Configure(int(v), nil)
	})
}

// Scope returns a logger named "talon.<name>", e.g. "talon.lower".
func Scope(name string) commonlog.Logger {
	return commonlog.GetLogger("talon." + name)
}
