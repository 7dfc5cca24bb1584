// Package logging provides structured logging for build recording sessions.
//
// This package wraps Go's log/slog to provide JSON-formatted logs with
// context propagation. Every entry can carry the build name and number, the
// module being processed, the build worker that reported it, and the
// pipeline phase, so a parallel build's interleaved output can be filtered
// back into per-module streams afterwards.
//
// # Features
//
//   - JSON-formatted structured logging via slog
//   - Configurable log levels (DEBUG, INFO, WARN, ERROR)
//   - Context propagation (build, module, worker, phase)
//   - Size based log rotation with optional gzip compression
//   - Log aggregation, filtering, and export for the logs command
//
// # Thread Safety
//
// All types in this package are safe for concurrent use. Child loggers
// created via With* methods share the underlying writer.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger("/path/to/logs", "INFO")
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	moduleLog := logger.WithBuild("app", "42").WithModule("org.acme:core:1.0")
//	moduleLog.Info("module recorded", "artifacts", 3)
//
// Output:
//
//	{"time":"...","level":"INFO","msg":"module recorded","build":"app","build_number":"42","module_id":"org.acme:core:1.0","artifacts":3}
//
// # Log Rotation
//
//	logger, err := logging.NewLoggerWithRotation("/path/to/logs", "INFO", logging.RotationConfig{
//	    MaxSizeMB:  10,
//	    MaxBackups: 3,
//	    Compress:   true,
//	})
//
// Rotated files are named recorder.log.1, recorder.log.2, etc., where .1 is
// the most recent backup. With compression they become recorder.log.1.gz.
//
// # Log Aggregation and Filtering
//
//	entries, err := logging.AggregateLogs("/path/to/logs")
//	filtered := logging.FilterLogs(entries, logging.LogFilter{
//	    Level:    "WARN",
//	    ModuleID: "org.acme:core:1.0",
//	})
//	err = logging.ExportLogEntries(os.Stdout, filtered, "text")
//
// # Testing
//
// Use [NopLogger] to discard output, or [NewLoggerTo] with a bytes.Buffer
// to assert on entries.
package logging
