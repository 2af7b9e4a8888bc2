// Package cmdmesh provides a high-level façade over the grammar, dispatcher
// and runner packages. Most applications interact with this package by:
//  1. Creating a CmdMesh via New() (optionally from a loaded config.Config)
//  2. Registering one or more root commands built with package node
//  3. Feeding lines through Handle or Serve, or structured invocations
//     through Invoke
//
// The grammar is built and frozen on first use; registering commands after
// that fails with ErrStarted.
package cmdmesh

import (
	"context"
	"errors"
	"sync"

	"github.com/hupe1980/cmdmesh/config"
	"github.com/hupe1980/cmdmesh/core"
	"github.com/hupe1980/cmdmesh/dispatch"
	"github.com/hupe1980/cmdmesh/logging"
	"github.com/hupe1980/cmdmesh/node"
	"github.com/hupe1980/cmdmesh/runner"
)

// ErrStarted is returned when commands are registered after the grammar was
// built.
var ErrStarted = errors.New("cmdmesh: grammar already built")

// Options configures the CmdMesh instance.
type Options struct {
	// Config supplies prefixes, concurrency, timeout and logging settings.
	Config config.Config

	// Logger (built from Config when nil)
	Logger logging.Logger

	// Runner hooks, see runner.Options.
	Greeting runner.Handler
	Fallback runner.Handler
	Unknown  runner.Handler

	// Callbacks are registered with the dispatcher.
	Callbacks []dispatch.Callback
}

// CmdMesh aggregates the grammar, dispatcher and runner.
type CmdMesh struct {
	opts    Options
	builder *node.Builder

	mu         sync.Mutex
	built      bool
	buildErr   error
	tree       *node.Tree
	dispatcher *dispatch.Dispatcher
	runner     *runner.Runner
}

// New creates a CmdMesh with optional overrides.
func New(optFns ...func(o *Options)) *CmdMesh {
	opts := Options{Config: config.Default()}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = opts.Config.Logger()
	}
	return &CmdMesh{opts: opts, builder: node.NewBuilder()}
}

// Register adds root commands.
func (m *CmdMesh) Register(roots ...*node.Node) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.built {
		return ErrStarted
	}
	m.builder.Register(roots...)
	return nil
}

// Build validates and freezes the grammar. It is called implicitly by the
// first Handle, Serve, Dispatch or Invoke.
func (m *CmdMesh) Build() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.built {
		return m.buildErr
	}
	m.built = true

	tree, err := m.builder.Build()
	if err != nil {
		m.buildErr = err
		return err
	}
	cfg := m.opts.Config
	d := dispatch.New(tree, func(o *dispatch.Options) {
		o.Logger = m.opts.Logger
		o.Config.Timeout = cfg.Timeout.Duration
		o.Config.FaultTemplate = cfg.FaultTemplate
	})
	for _, cb := range m.opts.Callbacks {
		d.Callbacks().Register(cb)
	}
	r := runner.New(d, func(o *runner.Options) {
		o.Prefixes = cfg.Prefixes
		o.BotID = cfg.BotID
		o.MaxConcurrentInvocations = cfg.MaxConcurrentInvocations
		o.Greeting = m.opts.Greeting
		o.Fallback = m.opts.Fallback
		o.Unknown = m.opts.Unknown
		o.Logger = m.opts.Logger
	})

	m.tree, m.dispatcher, m.runner = tree, d, r
	return nil
}

// Handle processes one chat line, prefix included.
func (m *CmdMesh) Handle(ctx context.Context, src core.Source) (runner.Report, error) {
	if err := m.Build(); err != nil {
		return runner.Report{}, err
	}
	return m.runner.Handle(ctx, src)
}

// Serve handles lines until sources is closed or ctx is done.
func (m *CmdMesh) Serve(ctx context.Context, sources <-chan core.Source) error {
	if err := m.Build(); err != nil {
		return err
	}
	return m.runner.Serve(ctx, sources)
}

// Dispatch runs command text that has no prefix.
func (m *CmdMesh) Dispatch(ctx context.Context, src core.Source) (dispatch.Result, error) {
	if err := m.Build(); err != nil {
		return dispatch.Result{}, err
	}
	return m.dispatcher.Dispatch(ctx, src)
}

// Invoke runs a structured invocation, see dispatch.Dispatcher.Invoke.
func (m *CmdMesh) Invoke(ctx context.Context, src core.Source, path []string, args map[string]any) (dispatch.Result, error) {
	if err := m.Build(); err != nil {
		return dispatch.Result{}, err
	}
	return m.dispatcher.Invoke(ctx, src, path, args)
}

// Cancel cancels a running invocation.
func (m *CmdMesh) Cancel(invocationID string) bool {
	if err := m.Build(); err != nil {
		return false
	}
	return m.dispatcher.Cancel(invocationID)
}

// Usage lists the executable command paths.
func (m *CmdMesh) Usage() ([]string, error) {
	if err := m.Build(); err != nil {
		return nil, err
	}
	return m.tree.Usage(), nil
}
