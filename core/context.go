package core

import (
	"context"
	"fmt"
	"sort"

	"github.com/hupe1980/cmdmesh/logging"
)

// Executor is the leaf action bound to a grammar node.
type Executor func(ctx *Context) (Response, error)

// Argument is a resolved named argument and the span of input it consumed.
type Argument struct {
	Name  string
	Value any
	Start int // byte offset of the first consumed byte
	End   int // byte offset one past the last consumed byte
	Raw   string
}

// Context is the per-invocation parameter holder passed to executors. It is
// created by the dispatcher for a single call and must not be retained or
// shared once the executor returns.
type Context struct {
	ctx          context.Context
	source       Source
	invocationID string
	command      string
	args         map[string][]Argument
	logger       logging.Logger
}

// NewContext constructs an empty Context bound to the invoking source.
func NewContext(ctx context.Context, src Source, invocationID string, logger logging.Logger) *Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Context{
		ctx:          ctx,
		source:       src,
		invocationID: invocationID,
		args:         map[string][]Argument{},
		logger:       logger,
	}
}

// Context returns the cancellation context of the invocation.
func (c *Context) Context() context.Context { return c.ctx }

// Source returns the invoking surface.
func (c *Context) Source() Source { return c.source }

// InvocationID returns the dispatcher assigned id of this call.
func (c *Context) InvocationID() string { return c.invocationID }

// Command returns the matched command path (for example "switch move").
func (c *Context) Command() string { return c.command }

// SetCommand records the matched command path.
func (c *Context) SetCommand(path string) { c.command = path }

// Bind appends a resolved argument. Repeated names accumulate values.
func (c *Context) Bind(arg Argument) {
	c.args[arg.Name] = append(c.args[arg.Name], arg)
}

// Has reports whether name is bound.
func (c *Context) Has(name string) bool {
	return len(c.args[name]) > 0
}

// Arguments returns the raw bindings of name in binding order.
func (c *Context) Arguments(name string) []Argument {
	return append([]Argument(nil), c.args[name]...)
}

// Names returns the bound argument names in lexical order.
func (c *Context) Names() []string {
	names := make([]string, 0, len(c.args))
	for n := range c.args {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Attachment returns the source attachment, if any.
func (c *Context) Attachment() *Attachment {
	if c.source == nil {
		return nil
	}
	return c.source.Attachment()
}

// Respond sends text through the invoking source.
func (c *Context) Respond(text string, kind ResponseKind, private bool) (string, error) {
	if c.source == nil {
		return "", fmt.Errorf("no source to respond to")
	}
	return c.source.Respond(c.ctx, text, kind, private)
}

// RespondPlain sends an undecorated public response.
func (c *Context) RespondPlain(text string) (string, error) { return c.Respond(text, Plain, false) }

// RespondSuccess sends a public success response.
func (c *Context) RespondSuccess(text string) (string, error) { return c.Respond(text, Success, false) }

// RespondWarning sends a public warning response.
func (c *Context) RespondWarning(text string) (string, error) { return c.Respond(text, Warning, false) }

// RespondFailure sends a public failure response.
func (c *Context) RespondFailure(text string) (string, error) { return c.Respond(text, Failure, false) }

// Get returns the most recently bound value of name. An absent argument
// yields the zero value and false. A value bound with a different type panics
// with *ParameterTypeError; the dispatcher contains such panics as execution
// faults.
func Get[T any](c *Context, name string) (T, bool) {
	var zero T
	bound := c.args[name]
	if len(bound) == 0 {
		return zero, false
	}
	return cast[T](name, bound[len(bound)-1].Value), true
}

// GetAll returns every value bound under name, in binding order.
func GetAll[T any](c *Context, name string) []T {
	bound := c.args[name]
	out := make([]T, 0, len(bound))
	for _, a := range bound {
		out = append(out, cast[T](name, a.Value))
	}
	return out
}

// Require is Get for arguments the executor cannot run without. An absent
// argument panics with *MissingParameterError.
func Require[T any](c *Context, name string) T {
	v, ok := Get[T](c, name)
	if !ok {
		panic(&MissingParameterError{Name: name})
	}
	return v
}

// GetOr returns the bound value of name or def when absent.
func GetOr[T any](c *Context, name string, def T) T {
	if v, ok := Get[T](c, name); ok {
		return v
	}
	return def
}

func cast[T any](name string, v any) T {
	t, ok := v.(T)
	if !ok {
		var want T
		panic(&ParameterTypeError{Name: name, Want: fmt.Sprintf("%T", want), Got: fmt.Sprintf("%T", v)})
	}
	return t
}
