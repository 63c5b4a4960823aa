// Package logging configures structured logging for schemagate.
//
// It wraps log/slog so the CLI and the validation gate share one setup:
//
//	logger := logging.New(logging.Config{
//	    Level:  logging.LevelInfo,
//	    Format: logging.FormatJSON,
//	})
//
// Components accept a *slog.Logger and fall back to logging.Nop() when none
// is given. Request-scoped loggers carry the request ID stored with
// WithRequestID:
//
//	log := logging.FromContext(r.Context(), logger)
//	log.Warn("validation: request rejected", "path", r.URL.Path)
package logging
