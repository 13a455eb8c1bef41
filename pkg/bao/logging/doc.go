// Package logging provides a minimal logging facade for the bao bindings.
//
// The Logger interface wraps a subset of log/slog. Every native call made by
// a bao.Library is logged at debug level with the entry point name, its
// argument signature and the elapsed time:
//
//	lib, err := bao.Open(bao.Config{
//	    LibraryPath: "/usr/local/lib/libbao.so",
//	    Logger:      logging.New(slog.New(slog.NewTextHandler(os.Stderr, nil))),
//	})
//
// # Log files
//
// NewFile writes JSON records to a size-rotated file:
//
//	logger, closer, err := logging.NewFile("/var/log/bao.log", logging.FileOptions{
//	    Level:     "debug",
//	    MaxSizeMB: 10,
//	})
//	defer closer.Close()
//
// # Redaction
//
// Private identities must never reach a log record. Use Redacted to note that
// a value was present without printing it:
//
//	logger.Info(ctx, "vault opened", "realm", realm, logging.Redacted("private_id"))
//	// Logs: private_id="[redacted]"
//
// # Levels
//
// ParseLevel accepts the names used by the native library (trace, debug,
// info, warn, error, fatal, panic) so the same string can configure both
// sides of the boundary.
package logging
