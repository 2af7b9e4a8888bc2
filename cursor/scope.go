package cursor

// Scope is a checkpoint held for the duration of a speculative read. Close
// rolls the cursor back unless Commit was called first, so a deferred Close
// restores the cursor on every early return or panic.
//
//	s := cur.Begin()
//	defer s.Close()
//	tok, ok := cur.Token(false)
//	if !ok || tok != "on" {
//	    return false
//	}
//	s.Commit()
type Scope struct {
	cur       *Cursor
	depth     int
	committed bool
	closed    bool
}

// Begin checks out the current position and returns the owning scope.
func (c *Cursor) Begin() *Scope {
	c.Checkout()
	return &Scope{cur: c, depth: len(c.checkpoints)}
}

// Commit keeps the current position and releases the checkpoint.
// Calling Commit more than once, or after Close, is a no-op.
func (s *Scope) Commit() {
	if s.closed {
		return
	}
	s.release()
	s.cur.Commit()
	s.committed = true
}

// Close rolls back to the saved position unless the scope was committed.
func (s *Scope) Close() {
	if s.closed {
		return
	}
	s.release()
	s.cur.Rollback()
}

// Committed reports whether Commit was called.
func (s *Scope) Committed() bool { return s.committed }

func (s *Scope) release() {
	if len(s.cur.checkpoints) != s.depth {
		panic(ErrUnbalanced)
	}
	s.closed = true
}

// Attempt runs fn inside a scope and commits when fn reports success.
func (c *Cursor) Attempt(fn func() bool) bool {
	s := c.Begin()
	defer s.Close()
	if !fn() {
		return false
	}
	s.Commit()
	return true
}
