package dispatch

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/cmdmesh/core"
)

// CallbackType identifies the point in a dispatch at which a callback runs.
type CallbackType string

const (
	// CallbackBeforeDispatch runs before the grammar is walked. An error
	// aborts the dispatch.
	CallbackBeforeDispatch CallbackType = "before_dispatch"
	// CallbackAfterDispatch runs after every completed dispatch.
	CallbackAfterDispatch CallbackType = "after_dispatch"
	// CallbackOnInvalid runs when a dispatch ends with StatusInvalid.
	CallbackOnInvalid CallbackType = "on_invalid"
	// CallbackOnFault runs when an executor fault was contained.
	CallbackOnFault CallbackType = "on_fault"
)

// CallbackContext carries the state visible to a callback.
type CallbackContext struct {
	InvocationID string
	CallbackType CallbackType
	Source       core.Source
	// Result is nil for CallbackBeforeDispatch.
	Result   *Result
	Metadata map[string]any
}

// Callback is a hook into the dispatch lifecycle.
type Callback interface {
	Type() CallbackType
	Execute(ctx context.Context, cbCtx *CallbackContext) error
}

// FunctionCallback adapts a function to Callback.
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, cbCtx *CallbackContext) error
}

// NewFunctionCallback returns a Callback of the given type running fn.
func NewFunctionCallback(
	callbackType CallbackType,
	fn func(ctx context.Context, cbCtx *CallbackContext) error,
) *FunctionCallback {
	return &FunctionCallback{callbackType: callbackType, fn: fn}
}

// Type implements Callback.
func (c *FunctionCallback) Type() CallbackType { return c.callbackType }

// Execute implements Callback.
func (c *FunctionCallback) Execute(ctx context.Context, cbCtx *CallbackContext) error {
	return c.fn(ctx, cbCtx)
}

// CallbackManager holds callbacks by type and runs them in registration
// order.
type CallbackManager struct {
	mu        sync.RWMutex
	callbacks map[CallbackType][]Callback
}

// NewCallbackManager returns an empty manager.
func NewCallbackManager() *CallbackManager {
	return &CallbackManager{callbacks: make(map[CallbackType][]Callback)}
}

// Register adds cb.
func (m *CallbackManager) Register(cb Callback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks[cb.Type()] = append(m.callbacks[cb.Type()], cb)
}

// Execute runs all callbacks of callbackType and stops at the first error.
func (m *CallbackManager) Execute(ctx context.Context, callbackType CallbackType, cbCtx *CallbackContext) error {
	m.mu.RLock()
	callbacks := append([]Callback(nil), m.callbacks[callbackType]...)
	m.mu.RUnlock()

	cbCtx.CallbackType = callbackType
	for _, cb := range callbacks {
		if err := cb.Execute(ctx, cbCtx); err != nil {
			return fmt.Errorf("%s callback: %w", callbackType, err)
		}
	}
	return nil
}

// LoggingCallback writes a one-line summary of each dispatch through logf.
type LoggingCallback struct {
	callbackType CallbackType
	logf         func(message string)
}

// NewLoggingCallback returns a LoggingCallback of the given type.
func NewLoggingCallback(callbackType CallbackType, logf func(message string)) *LoggingCallback {
	return &LoggingCallback{callbackType: callbackType, logf: logf}
}

// Type implements Callback.
func (c *LoggingCallback) Type() CallbackType { return c.callbackType }

// Execute implements Callback.
func (c *LoggingCallback) Execute(_ context.Context, cbCtx *CallbackContext) error {
	if c.logf == nil {
		return nil
	}
	if cbCtx.Result == nil {
		c.logf(fmt.Sprintf("[%s] invocation=%s", c.callbackType, cbCtx.InvocationID))
		return nil
	}
	c.logf(fmt.Sprintf("[%s] invocation=%s command=%q status=%s",
		c.callbackType, cbCtx.InvocationID, cbCtx.Result.Command, cbCtx.Result.Status))
	return nil
}
