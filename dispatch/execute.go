package dispatch

import (
	"runtime/debug"

	"github.com/hupe1980/cmdmesh/core"
	"github.com/hupe1980/cmdmesh/internal/util"
	"github.com/hupe1980/cmdmesh/logging"
)

// execute materializes the bindings into a fresh Context and runs exec with
// fault containment. Errors and panics never escape; they become a
// StatusFaulted result carrying a correlation timestamp.
func (inv *invocation) execute(exec core.Executor, command string, args []core.Argument) Result {
	c := core.NewContext(inv.ctx, inv.src, inv.id, inv.d.executorLogger())
	c.SetCommand(command)
	for _, a := range args {
		c.Bind(a)
	}

	inv.logger.Debug("dispatch.execute", "command", command, "arguments", len(args))
	resp, stack, err := runContained(exec, c)
	if err != nil {
		return inv.fault(command, err, stack)
	}
	return Result{Status: StatusHandled, Command: command, Response: resp}
}

func runContained(exec core.Executor, c *core.Context) (resp core.Response, stack []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			stack = debug.Stack()
			err = &core.PanicError{Value: r}
		}
	}()
	resp, err = exec(c)
	return resp, nil, err
}

// fault logs err in full and builds the user-facing correlation response.
func (inv *invocation) fault(command string, err error, stack []byte) Result {
	execErr := &core.ExecutionError{
		Timestamp:    inv.d.now().UnixMilli(),
		InvocationID: inv.id,
		Command:      command,
		Err:          err,
		Stack:        stack,
	}

	attrs := []any{"command", command, "timestamp", execErr.Timestamp}
	if sl, ok := inv.logger.(*logging.StructuredLogger); ok {
		sl.ErrorWithStack(execErr, "dispatch.fault", attrs...)
	} else {
		inv.logger.Error("dispatch.fault", append(attrs, "error", execErr.Error(), "stack_trace", string(stack))...)
	}

	text, renderErr := util.RenderTemplate(inv.d.config.FaultTemplate, map[string]any{
		"Timestamp":    execErr.Timestamp,
		"InvocationID": inv.id,
		"Command":      command,
	})
	if renderErr != nil {
		inv.logger.Warn("dispatch.template_failed", "error", renderErr.Error())
		text, _ = util.RenderTemplate(DefaultFaultTemplate, map[string]any{"Timestamp": execErr.Timestamp})
	}

	return Result{
		Status:   StatusFaulted,
		Command:  command,
		Response: core.FailureResponse(text),
		Fault:    execErr,
	}
}

func (inv *invocation) invalidResult() Result {
	text, err := util.RenderTemplate(inv.d.config.InvalidTemplate, map[string]any{
		"Name":  inv.invalid.Name,
		"Token": inv.invalid.Token,
	})
	if err != nil {
		inv.logger.Warn("dispatch.template_failed", "error", err.Error())
		text, _ = util.RenderTemplate(DefaultInvalidTemplate, map[string]any{"Name": inv.invalid.Name})
	}
	return Result{
		Status:   StatusInvalid,
		Response: core.FailureResponse(text),
		Invalid:  inv.invalid,
	}
}
