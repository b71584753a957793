// Package logger builds *slog.Logger instances for the service.
//
// New applies functional options on top of production defaults (JSON, info) and
// wraps the handler so request-scoped values such as the request id, the
// authenticated user and the environment are attached to every record logged
// with a context.
//
//	log := logger.New(
//		logger.WithEnvironment(cfg.Env, cfg.Name),
//		logger.WithLevelName(cfg.LogLevel),
//		logger.WithContextExtractors(requestid.LoggerExtractor()),
//	)
package logger
