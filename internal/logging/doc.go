// Package logging provides structured JSON logging for proctree.
//
// [Logger] wraps log/slog with a JSON handler and persistent attributes.
// Child loggers created with [Logger.WithComponent], [Logger.WithPass] or
// [Logger.With] share the parent's output:
//
//	logger, err := logging.NewLogger(dir, logging.LevelInfo)
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	log := logger.WithComponent("sampler").WithPass(42)
//	log.Warn("enumeration failed", "error", err)
//
// produces
//
//	{"time":"...","level":"WARN","msg":"enumeration failed","component":"sampler","pass":42,"error":"..."}
//
// Logs go to {dir}/proctree.log, or to stderr when dir is empty.
// [NewLoggerWithRotation] backs the file with a [RotatingWriter], which
// rotates by size into proctree.log.1 ... proctree.log.N and optionally
// gzips the backups. [NopLogger] discards everything and is what tests use.
//
// The logging section of the config file selects level and rotation:
//
//	logging:
//	  enabled: true
//	  level: debug
//	  max_size_mb: 10
//	  max_backups: 3
//	  compress: false
package logging
