package core

import "github.com/hupe1980/cmdmesh/logging"

// Logger returns the logger the dispatcher attached to this invocation.
func (c *Context) Logger() logging.Logger { return c.logger }

// LogDebug logs a debug message tagged with the invocation id and command.
func (c *Context) LogDebug(msg string, args ...any) { c.logger.Debug(msg, c.tag(args)...) }

// LogInfo logs an info message tagged with the invocation id and command.
func (c *Context) LogInfo(msg string, args ...any) { c.logger.Info(msg, c.tag(args)...) }

// LogWarn logs a warning tagged with the invocation id and command.
func (c *Context) LogWarn(msg string, args ...any) { c.logger.Warn(msg, c.tag(args)...) }

// LogError logs an error tagged with the invocation id and command.
func (c *Context) LogError(msg string, args ...any) { c.logger.Error(msg, c.tag(args)...) }

func (c *Context) tag(args []any) []any {
	out := make([]any, 0, len(args)+4)
	out = append(out, "invocation_id", c.invocationID)
	if c.command != "" {
		out = append(out, "command", c.command)
	}
	return append(out, args...)
}
