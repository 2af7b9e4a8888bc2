package decoder

import (
	"errors"

	"github.com/hupe1980/cmdmesh/core"
	"github.com/hupe1980/cmdmesh/cursor"
	"github.com/hupe1980/cmdmesh/internal/util"
)

// EnumEntry maps a set of keywords to a value.
type EnumEntry[T any] struct {
	Value    T
	Keywords []string
}

// Enum decodes a token by case-insensitive keyword lookup. Entries are
// searched in declaration order and the first hit wins.
type Enum[T any] struct {
	entries []EnumEntry[T]
}

// NewEnum builds an Enum decoder from its keyword table.
func NewEnum[T any](entries ...EnumEntry[T]) *Enum[T] {
	return &Enum[T]{entries: entries}
}

// Entries returns the keyword table in search order.
func (e *Enum[T]) Entries() []EnumEntry[T] {
	return append([]EnumEntry[T](nil), e.entries...)
}

func (e *Enum[T]) lookup(tok string) (T, bool) {
	f := util.Fold(tok)
	for _, entry := range e.entries {
		for _, k := range entry.Keywords {
			if util.Fold(k) == f {
				return entry.Value, true
			}
		}
	}
	var zero T
	return zero, false
}

// Decode implements Decoder.
func (e *Enum[T]) Decode(cur *cursor.Cursor, _ core.Source) (T, error) {
	var zero T
	s := cur.Begin()
	defer s.Close()

	tok, ok := cur.Token(false)
	if !ok {
		return zero, core.ErrNoMatch
	}
	v, ok := e.lookup(tok)
	if !ok {
		return zero, core.ErrNoMatch
	}
	s.Commit()
	return v, nil
}

// DecodeStructured implements Decoder. Strings go through the keyword
// table; anything else is weakly converted into T.
func (e *Enum[T]) DecodeStructured(v any) (T, error) {
	var zero T
	switch x := v.(type) {
	case T:
		return x, nil
	case string:
		if out, ok := e.lookup(x); ok {
			return out, nil
		}
		return zero, invalid(x, errors.New("unknown keyword"))
	}
	var out T
	if err := weakDecode(v, &out); err != nil {
		return zero, err
	}
	return out, nil
}

// ProxyMode is the auto-proxy behaviour of a member or system.
type ProxyMode int

const (
	ProxyOff ProxyMode = iota
	ProxyLatch
	ProxyFront
	ProxyFallback
	ProxyMember
)

// String returns the canonical keyword.
func (m ProxyMode) String() string {
	switch m {
	case ProxyOff:
		return "off"
	case ProxyLatch:
		return "latch"
	case ProxyFront:
		return "front"
	case ProxyFallback:
		return "fallback"
	case ProxyMember:
		return "member"
	default:
		return "unknown"
	}
}

// NewProxyModeDecoder returns the keyword decoder for ProxyMode.
func NewProxyModeDecoder() *Enum[ProxyMode] {
	return NewEnum(
		EnumEntry[ProxyMode]{Value: ProxyOff, Keywords: []string{"off", "disable", "o"}},
		EnumEntry[ProxyMode]{Value: ProxyLatch, Keywords: []string{"latch", "l"}},
		EnumEntry[ProxyMode]{Value: ProxyFront, Keywords: []string{"front", "f"}},
		EnumEntry[ProxyMode]{Value: ProxyFallback, Keywords: []string{"fallback", "fb"}},
		EnumEntry[ProxyMode]{Value: ProxyMember, Keywords: []string{"member", "m"}},
	)
}
