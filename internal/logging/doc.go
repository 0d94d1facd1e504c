// Package logging provides structured logging with per-module log level configuration.
//
// The logging system uses Go's slog package with automatic output routing:
//   - Logs to systemd journal when available (Linux systems with journald)
//   - Logs to stdout when a terminal, pipe, or file is connected
//   - Logs to both when both are available
//
// Initialize once at startup, then obtain module loggers:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"camera":  "debug",
//			"capture": "warn",
//		},
//	})
//
//	logger := logging.GetLogger("camera").With("camera_id", id)
//	logger.Info("Preview started", "width", 1920, "height", 1080)
//
// Every module logger holds its own slog.LevelVar, so ApplyLevels can change
// levels at runtime (the config watcher does this when the TOML file changes)
// without rebuilding handlers.
//
// Journal entries are tagged with SYSLOG_IDENTIFIER=camerahost. Attribute
// keys become journal field names: upper case, other characters turned into
// underscores, groups joined with "_":
//
//	journalctl -t camerahost MODULE=camera
//	journalctl -t camerahost CAMERA_ID=0
//
// Example TOML configuration:
//
//	[logging]
//	level = "info"
//	format = "text"
//
//	[logging.modules]
//	camera = "debug"
//	api = "warn"
package logging
