// Package cursor provides the position-tracking reader the grammar engine
// parses with. A Cursor walks one input line, hands out whitespace separated
// or quoted tokens, and supports speculative reads through a strict LIFO stack
// of checkpoints:
//
//   - Checkout saves the position
//   - Commit drops the checkpoint and keeps the position
//   - Rollback drops the checkpoint and restores the position
//
// Unbalanced Commit/Rollback calls panic with ErrUnbalanced. Most callers use
// the Scope helper (Begin / Commit / deferred Close) instead of pairing the
// calls by hand.
package cursor
