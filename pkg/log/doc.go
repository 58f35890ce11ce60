// Package log provides the structured logging facade for the bot's
// operational services.
//
// # Overview
//
// The package exposes a small Logger interface with leveled methods and a
// simple Field type for structured context. Internally it is backed by Go's
// standard library slog via a custom handler that routes records through the
// formatter/output pipeline, so all components emit consistent text or JSON
// lines regardless of which API produced them.
//
// Quick start
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormatter(&log.TextFormatter{}),
//	    log.WithOutput(log.NewConsoleOutput()),
//	)
//	l = l.With(log.Component("reconciler"))
//	l.Info("merge complete", log.Int("conflicts", 0))
//
// # Configuration
//
// Use ApplyConfig to build a logger from a declarative Config (level and
// format), typically populated from BOTOPS_LOG_LEVEL / BOTOPS_LOG_FORMAT.
// RedirectStdLog routes standard library logs (used by Pebble) through the
// facade.
package log
