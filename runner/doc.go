// Package runner connects a chat or console surface to a dispatch.Dispatcher.
//
// A line is a command when it starts with one of the configured prefixes
// ("pf>", "pf;", ...) or with a mention of the bot. The prefix and any
// following whitespace are removed before dispatch. A bare mention runs the
// Greeting handler, and a line without a prefix goes to the Fallback handler,
// which is where a proxying bot forwards ordinary messages.
//
// Serve handles lines concurrently, one goroutine per line, bounded by
// MaxConcurrentInvocations.
package runner
