/*
Package log configures the application master's zerolog output and
hands out the child loggers its components log through.

One process serves exactly one job, so the root logger can carry the
job id on every line (set Config.JobID); components add their own
origin with WithComponent, and code that follows a single task-group
binding across launch, completion, and retry uses ForTask to stamp the
task and container ids once instead of repeating them at every call
site.

# Usage

Initializing at startup:

	log.Init(log.Config{
		Level:      "info",
		JSONOutput: true,
		JobID:      "job-abc123",
	})

Component loggers:

	logger := log.WithComponent("taskmgr")
	logger.Info().Int("task_count", 4).Msg("requesting initial containers")

Per-binding loggers:

	taskLog := log.ForTask(3, "container-17")
	taskLog.Warn().Msg("task crashed, requesting replacement container")

Level names are zerolog's own ("debug", "info", "warn", "error");
anything unrecognized falls back to info rather than failing startup.
JSONOutput false switches to the console format for local runs.
*/
package log
