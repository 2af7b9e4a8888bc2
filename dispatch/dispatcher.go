package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hupe1980/cmdmesh/core"
	"github.com/hupe1980/cmdmesh/internal/util"
	"github.com/hupe1980/cmdmesh/logging"
	"github.com/hupe1980/cmdmesh/node"
)

// maxLoggedText caps the command text written to debug logs.
const maxLoggedText = 200

// DefaultFaultTemplate is the user-facing response for a contained executor
// fault. Only the correlation timestamp is exposed.
const DefaultFaultTemplate = "An unexpected error occurred.\nTimestamp: `{{.Timestamp}}`"

// DefaultInvalidTemplate is the response for input that only failed strict
// argument decoding.
const DefaultInvalidTemplate = "Invalid value for {{.Name}}."

// Config defines the operational parameters of a Dispatcher.
type Config struct {
	// Timeout bounds a single dispatch including the executor. Zero means
	// no timeout beyond the caller's context.
	Timeout time.Duration

	// FaultTemplate renders the failure response of a contained fault.
	// Available fields: .Timestamp (unix ms), .InvocationID, .Command.
	FaultTemplate string

	// InvalidTemplate renders the failure response for StatusInvalid.
	// Available fields: .Name, .Token.
	InvalidTemplate string
}

// DefaultConfig holds the values used when no Config is supplied.
var DefaultConfig = Config{
	FaultTemplate:   DefaultFaultTemplate,
	InvalidTemplate: DefaultInvalidTemplate,
}

// Options configures a Dispatcher.
type Options struct {
	Config    Config
	Logger    logging.Logger
	Callbacks *CallbackManager
	// Now returns the current time; replaced in tests.
	Now func() time.Time
}

// Dispatcher walks a grammar tree against incoming input and runs the first
// executor reached. It is safe for concurrent use; each call owns its cursor
// and bindings.
type Dispatcher struct {
	tree      *node.Tree
	config    Config
	logger    logging.Logger
	callbacks *CallbackManager
	now       func() time.Time

	activeInvocations map[string]context.CancelFunc
	invocationsMu     sync.RWMutex
}

// New creates a Dispatcher over tree.
//
//	d := dispatch.New(tree, func(o *dispatch.Options) {
//	    o.Logger = logger
//	    o.Config.Timeout = 30 * time.Second
//	})
func New(tree *node.Tree, optFns ...func(o *Options)) *Dispatcher {
	opts := Options{
		Config:    DefaultConfig,
		Logger:    logging.NoOpLogger{},
		Callbacks: NewCallbackManager(),
		Now:       time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Config.FaultTemplate == "" {
		opts.Config.FaultTemplate = DefaultFaultTemplate
	}
	if opts.Config.InvalidTemplate == "" {
		opts.Config.InvalidTemplate = DefaultInvalidTemplate
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Callbacks == nil {
		opts.Callbacks = NewCallbackManager()
	}
	return &Dispatcher{
		tree:              tree,
		config:            opts.Config,
		logger:            opts.Logger,
		callbacks:         opts.Callbacks,
		now:               opts.Now,
		activeInvocations: make(map[string]context.CancelFunc),
	}
}

// Tree returns the grammar the dispatcher walks.
func (d *Dispatcher) Tree() *node.Tree { return d.tree }

// Callbacks returns the callback manager for registering lifecycle hooks.
func (d *Dispatcher) Callbacks() *CallbackManager { return d.callbacks }

// Dispatch parses src.Text() against the grammar and runs the first
// executor reached.
//
// A returned error is reserved for cancellation (ctx.Err()), rejected
// callbacks and response delivery failures. Unmatched input yields
// StatusUnhandled with a nil error; executor faults are contained and
// reported as StatusFaulted.
func (d *Dispatcher) Dispatch(ctx context.Context, src core.Source) (Result, error) {
	return d.invoke(ctx, src, func(inv *invocation) (Result, error) {
		return inv.walk()
	})
}

// Invoke runs a structured invocation. path names the literal keywords
// from the root; args holds argument values keyed by argument name, as
// delivered by platform interactions.
func (d *Dispatcher) Invoke(ctx context.Context, src core.Source, path []string, args map[string]any) (Result, error) {
	return d.invoke(ctx, src, func(inv *invocation) (Result, error) {
		return inv.structured(path, args)
	})
}

// Cancel cancels a running invocation and reports whether it was found.
func (d *Dispatcher) Cancel(invocationID string) bool {
	d.invocationsMu.RLock()
	cancel, ok := d.activeInvocations[invocationID]
	d.invocationsMu.RUnlock()
	if !ok {
		return false
	}
	cancel()
	return true
}

// Active returns the ids of running invocations in lexical order.
func (d *Dispatcher) Active() []string {
	d.invocationsMu.RLock()
	defer d.invocationsMu.RUnlock()
	ids := make([]string, 0, len(d.activeInvocations))
	for id := range d.activeInvocations {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (d *Dispatcher) track(id string, cancel context.CancelFunc) func() {
	d.invocationsMu.Lock()
	d.activeInvocations[id] = cancel
	d.invocationsMu.Unlock()
	return func() {
		d.invocationsMu.Lock()
		delete(d.activeInvocations, id)
		d.invocationsMu.Unlock()
		cancel()
	}
}

func (d *Dispatcher) invoke(ctx context.Context, src core.Source, run func(inv *invocation) (Result, error)) (Result, error) {
	if src == nil {
		return Result{}, errors.New("dispatch: nil source")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	id := uuid.NewString()
	var cancel context.CancelFunc
	if d.config.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, d.config.Timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	untrack := d.track(id, cancel)
	defer untrack()

	logger := d.invocationLogger(id)
	start := d.now()
	logger.Debug("dispatch.start", "text", util.Ellipsis(src.Text(), maxLoggedText))

	if err := d.callbacks.Execute(ctx, CallbackBeforeDispatch, &CallbackContext{InvocationID: id, Source: src}); err != nil {
		return Result{InvocationID: id}, err
	}

	inv := &invocation{d: d, ctx: ctx, id: id, src: src, logger: logger}
	res, err := run(inv)
	res.InvocationID = id
	if err != nil {
		logger.Debug("dispatch.aborted", "error", err.Error())
		return res, err
	}

	if res.Status == StatusInvalid {
		if cbErr := d.callbacks.Execute(ctx, CallbackOnInvalid, &CallbackContext{InvocationID: id, Source: src, Result: &res}); cbErr != nil {
			logger.Warn("dispatch.callback_failed", "error", cbErr.Error())
		}
	}
	if res.Status == StatusFaulted {
		if cbErr := d.callbacks.Execute(ctx, CallbackOnFault, &CallbackContext{InvocationID: id, Source: src, Result: &res}); cbErr != nil {
			logger.Warn("dispatch.callback_failed", "error", cbErr.Error())
		}
	}
	if cbErr := d.callbacks.Execute(ctx, CallbackAfterDispatch, &CallbackContext{InvocationID: id, Source: src, Result: &res}); cbErr != nil {
		logger.Warn("dispatch.callback_failed", "error", cbErr.Error())
	}

	var faultErr error
	if res.Fault != nil {
		faultErr = res.Fault
	}
	if sl, ok := logger.(*logging.StructuredLogger); ok {
		sl.LogDispatch(res.Command, res.Status.String(), d.now().Sub(start), faultErr)
	} else {
		logger.Debug("dispatch.completed", "command", res.Command, "status", res.Status.String())
	}

	if !res.Response.Empty() {
		if _, err := src.Respond(ctx, res.Response.Text, res.Response.Kind, res.Response.Private); err != nil {
			return res, fmt.Errorf("deliver response: %w", err)
		}
	}
	return res, nil
}

func (d *Dispatcher) invocationLogger(id string) logging.Logger {
	if sl, ok := d.logger.(*logging.StructuredLogger); ok {
		return sl.WithComponent("dispatch").WithInvocation(id)
	}
	return d.logger
}

// executorLogger is handed to executors; core.Context adds the invocation
// id to every message itself.
func (d *Dispatcher) executorLogger() logging.Logger {
	if sl, ok := d.logger.(*logging.StructuredLogger); ok {
		return sl.WithComponent("command")
	}
	return d.logger
}
