// Package core provides the types shared by every layer of the command
// engine:
//
//   - Source, the invoking surface (chat message, console line, interaction)
//     that supplies raw text, an optional attachment and a way to respond
//   - Context, the per-invocation store of resolved named arguments handed to
//     leaf executors
//   - Response and ResponseKind, the executor result delivered back through
//     the Source
//   - the error taxonomy (ErrNoMatch, ErrInvalidInput, ErrMissingParameter,
//     ExecutionError)
//
// The package holds no parsing logic; the cursor, decoder, node and dispatch
// packages build on these types.
package core
