// Package obslog provides the structured, component-scoped logger the CLI
// driver logs through.
package obslog

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// ComponentLogger wraps a zerolog.Logger pre-tagged with the component
// that owns it, so log lines are attributable without repeating the
// component name at every call site.
type ComponentLogger struct {
	logger    zerolog.Logger
	component string
}

// New creates a component logger writing pretty console output, honoring
// DEBUG=true for verbose output the way the rest of the driver does.
func New(component string) *ComponentLogger {
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}

	logger := zerolog.New(output).
		With().
		Timestamp().
		Str("component", component).
		Logger()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	return &ComponentLogger{logger: logger, component: component}
}

func (cl *ComponentLogger) Info() *zerolog.Event  { return cl.logger.Info() }
func (cl *ComponentLogger) Debug() *zerolog.Event { return cl.logger.Debug() }
func (cl *ComponentLogger) Warn() *zerolog.Event  { return cl.logger.Warn() }
func (cl *ComponentLogger) Error() *zerolog.Event { return cl.logger.Error() }
func (cl *ComponentLogger) Fatal() *zerolog.Event { return cl.logger.Fatal() }

// With returns a child logger builder for adding fields scoped to a
// single control run (control_id, version, execution_id).
func (cl *ComponentLogger) With() zerolog.Context {
	return cl.logger.With()
}

// ExecutionFields describes the identity of one control run, attached to
// every log line emitted while it executes.
type ExecutionFields struct {
	ControlID   string
	Version     string
	ExecutionID string
}

// ForExecution returns a child logger scoped to one control run.
func (cl *ComponentLogger) ForExecution(f ExecutionFields) *ComponentLogger {
	scoped := cl.logger.With().
		Str("control_id", f.ControlID).
		Str("version", f.Version).
		Str("execution_id", f.ExecutionID).
		Logger()
	return &ComponentLogger{logger: scoped, component: cl.component}
}

// LogVerdict records the terminal outcome of a control run.
func (cl *ComponentLogger) LogVerdict(verdict string, totalPopulation, exceptionCount int64, rate float64, duration time.Duration) {
	cl.Info().
		Str("verdict", verdict).
		Int64("total_population", totalPopulation).
		Int64("exception_count", exceptionCount).
		Float64("exception_rate_percent", rate).
		Dur("duration", duration).
		Msg("control execution complete")
}
