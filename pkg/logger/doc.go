// Package logger builds *slog.Logger instances with consistent attribute
// names, per-environment defaults and context-driven attributes.
//
// New returns a logger whose handler (JSON or text) is wrapped by
// LogHandlerDecorator. The decorator runs registered ContextExtractor
// callbacks on every record, which is how request-scoped values such as the
// request id reach the log without being passed around explicitly.
//
// Attributes named in DefaultSensitiveKeys (password, code, secret, token and
// similar) are always replaced by RedactedValue. Call sites must still avoid
// logging credentials; redaction only catches mistakes.
//
// # Usage
//
//	log := logger.New(
//		logger.WithEnvironment(cfg.Env, "credkit"),
//		logger.WithContextValue("request_id", requestIDKey),
//	)
//	logger.SetAsDefault(log)
//
//	log.InfoContext(ctx, "otp issued",
//		logger.UserID(userID),
//		logger.Purpose("registration"),
//	)
//
// Helpers such as Error, UserID and DocumentID return an empty Attr for nil
// inputs, so they can be passed unconditionally.
package logger
