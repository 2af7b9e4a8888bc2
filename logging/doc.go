// Package logging provides a minimal logging interface and adapters for the
// command engine.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn,
// Error) that the dispatcher and runner use as their log sink. This package
// includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - StructuredLogger with component/invocation context and dispatch helpers
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	d := dispatch.New(tree, func(o *dispatch.Options) {
//		o.Logger = logger.WithComponent("bot")
//	})
//
// The dispatcher never persists logs itself; it only hands records to the
// configured Logger.
package logging
