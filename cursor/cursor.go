package cursor

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ErrUnbalanced is the panic value raised when a checkpoint is committed or
// rolled back without a matching Checkout, or when scopes close out of order.
var ErrUnbalanced = errors.New("cursor: unbalanced checkpoint")

// Cursor is a position-tracking reader over a single input line. Positions
// are byte offsets into the text. A Cursor is owned by one dispatch call and
// must not be shared between goroutines.
type Cursor struct {
	text        string
	pos         int
	checkpoints []int
}

// New returns a cursor positioned at the start of text.
func New(text string) *Cursor {
	return &Cursor{text: text}
}

// Text returns the full underlying input.
func (c *Cursor) Text() string { return c.text }

// Pos returns the current byte offset.
func (c *Cursor) Pos() int { return c.pos }

// Rest returns the unread remainder of the input.
func (c *Cursor) Rest() string { return c.text[c.pos:] }

// AtEnd reports whether the whole input has been consumed.
func (c *Cursor) AtEnd() bool { return c.pos >= len(c.text) }

// Blank reports whether the remainder is empty or whitespace-only.
func (c *Cursor) Blank() bool { return strings.TrimSpace(c.Rest()) == "" }

// Depth returns the number of outstanding checkpoints.
func (c *Cursor) Depth() int { return len(c.checkpoints) }

// Seek moves the cursor to pos, clamped to the input bounds.
func (c *Cursor) Seek(pos int) {
	switch {
	case pos < 0:
		pos = 0
	case pos > len(c.text):
		pos = len(c.text)
	}
	c.pos = pos
}

// SkipSpace advances past any leading whitespace.
func (c *Cursor) SkipSpace() {
	for c.pos < len(c.text) {
		r, size := utf8.DecodeRuneInString(c.text[c.pos:])
		if !unicode.IsSpace(r) {
			return
		}
		c.pos += size
	}
}

// Checkout saves the current position on the checkpoint stack.
func (c *Cursor) Checkout() {
	c.checkpoints = append(c.checkpoints, c.pos)
}

// Commit discards the most recent checkpoint and keeps the current position.
func (c *Cursor) Commit() {
	c.pop()
}

// Rollback discards the most recent checkpoint and restores its position.
func (c *Cursor) Rollback() {
	c.pos = c.pop()
}

func (c *Cursor) pop() int {
	n := len(c.checkpoints)
	if n == 0 {
		panic(ErrUnbalanced)
	}
	saved := c.checkpoints[n-1]
	c.checkpoints = c.checkpoints[:n-1]
	return saved
}

// Token reads the next token and consumes it together with exactly one
// trailing separator. With quoted set, a token opening with ' or " runs to
// the matching quote and the quotes are stripped; an unterminated quote
// consumes the rest of the input. At end of input Token returns "", false.
func (c *Cursor) Token(quoted bool) (string, bool) {
	if c.AtEnd() {
		return "", false
	}

	rest := c.Rest()
	if quoted && (rest[0] == '"' || rest[0] == '\'') {
		quote := rest[0]
		end := strings.IndexByte(rest[1:], quote)
		if end < 0 {
			c.pos = len(c.text)
			return rest[1:], true
		}
		c.pos += end + 2
		c.skipSeparator()
		return rest[1 : end+1], true
	}

	end := strings.IndexFunc(rest, unicode.IsSpace)
	if end < 0 {
		c.pos = len(c.text)
		return rest, true
	}
	c.pos += end
	c.skipSeparator()
	return rest[:end], true
}

// skipSeparator consumes a single whitespace rune if one is next.
func (c *Cursor) skipSeparator() {
	if c.AtEnd() {
		return
	}
	r, size := utf8.DecodeRuneInString(c.text[c.pos:])
	if unicode.IsSpace(r) {
		c.pos += size
	}
}
