package log

import (
	"io"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the process-wide root logger. It starts as a plain JSON
// logger on stdout so packages can log before Init runs; Init replaces
// it with the configured one. Components never log through it directly
// -- they derive children via WithComponent or ForTask so every line
// carries its origin.
var Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

// Config controls the root logger built by Init.
type Config struct {
	// Level is a zerolog level name ("debug", "info", "warn", "error").
	// Unrecognized or empty values fall back to info.
	Level string

	// JSONOutput selects machine-readable JSON lines; false selects
	// the human console format for local runs.
	JSONOutput bool

	// Output defaults to os.Stdout.
	Output io.Writer

	// JobID, when set, is stamped on every line the process emits, so
	// one job's logs can be pulled out of a shared aggregator.
	JobID string
}

// Init builds the root logger. Call once at startup, before any
// component constructs its child logger.
func Init(cfg Config) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	if !cfg.JSONOutput {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	ctx := zerolog.New(out).Level(level).With().Timestamp()
	if cfg.JobID != "" {
		ctx = ctx.Str("job_id", cfg.JobID)
	}
	Logger = ctx.Logger()
}

// WithComponent returns a child logger tagged with the subsystem
// emitting it (taskmgr, lifecycle, eventloop, ...).
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// ForTask returns a child logger tagged with one task group and the
// container it is bound to, for lines that follow a single binding
// across launch, completion, and retry.
func ForTask(taskID int, containerID string) zerolog.Logger {
	return Logger.With().
		Str("task_id", strconv.Itoa(taskID)).
		Str("container_id", containerID).
		Logger()
}
