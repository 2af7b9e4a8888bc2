// Package dispatch matches command text against a node.Tree and runs the
// executor of the first complete match.
//
// Matching is a depth-first walk with backtracking. Every root is tried
// against a fresh cursor over the full input; children are tried in
// priority order; a branch that fails restores the cursor and discards the
// arguments it bound. An executor runs only once its node consumed the
// whole input, and the first executor to run ends the dispatch.
//
// Executor errors and panics are contained: they are logged with the full
// error and stack, and the user receives a generic failure carrying a
// correlation timestamp (see Config.FaultTemplate). Input that matched a
// command shape but failed strict argument decoding yields StatusInvalid
// with a generic "Invalid value for <name>." response.
//
// Each call receives a uuid invocation id. Running invocations can be
// listed with Active and cancelled with Cancel; Config.Timeout bounds every
// call. Lifecycle hooks are registered on the CallbackManager.
//
// Invoke is the structured counterpart of Dispatch for platform
// interactions that deliver a command path and pre-parsed argument values.
package dispatch
