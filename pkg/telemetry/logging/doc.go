// Package logging configures the process logger.
//
// Logs are written through log/slog in JSON or text format, optionally to a
// size-rotated file (lumberjack). Records logged with a context carry the
// request ID set by the request ID middleware.
//
// # Redaction
//
// With RedactPII enabled, upstream credentials never reach the output:
//
//   - fields named api_key, key, authorization, token or password keep only a 4 character prefix
//   - AIza... keys inside any string field are shortened the same way
//   - "Bearer <token>" becomes "Bearer ***"
//   - key= query parameters become key=***
//
// Code that logs a credential on purpose should still pass it through
// RedactAPIKey.
//
// # Usage
//
//	logger, err := logging.New(logging.Config{Level: "info", Format: "json", RedactPII: true})
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//	slog.SetDefault(logger.Logger)
package logging
