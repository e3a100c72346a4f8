// Package logger builds *slog.Logger values for kvsession services and holds
// the attribute helpers used across the storage packages.
//
// New takes Option functions (format, level, output, static attributes and
// context extractors); NewFromConfig does the same from an env-loaded Config.
// The resulting handler is wrapped with LogHandlerDecorator, which adds
// attributes pulled from context.Context on every call.
//
// # Usage
//
//	var cfg logger.Config
//	config.MustLoad(&cfg)
//
//	log, err := logger.NewFromConfig(cfg, logger.WithContextValue("request_id", requestIDKey))
//	if err != nil {
//	    return err
//	}
//	logger.SetAsDefault(log)
//
//	log.DebugContext(ctx, "session created",
//	    logger.SessionID(id),
//	    logger.UserID(userID),
//	    logger.TTL(ttl),
//	)
//
// Error and Errors return an empty attribute for nil errors, so they can be
// passed unconditionally.
package logger
