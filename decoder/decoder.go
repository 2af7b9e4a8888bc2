package decoder

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/hupe1980/cmdmesh/core"
	"github.com/hupe1980/cmdmesh/cursor"
	"github.com/mitchellh/mapstructure"
)

// Decoder turns input into a typed argument value of T.
//
// Decode reads from the cursor. A nil error means Matched. core.ErrNoMatch
// means NoMatch; an error wrapping core.ErrInvalidInput means the token sat
// in the right place but failed strict decoding. On any error the cursor is
// back at its entry position.
//
// DecodeStructured is the independent, non-textual path used by
// programmatic invocations (API calls, platform interactions).
type Decoder[T any] interface {
	Decode(cur *cursor.Cursor, src core.Source) (T, error)
	DecodeStructured(v any) (T, error)
}

// Erased is a type-erased Decoder as stored on grammar nodes.
type Erased interface {
	Decode(cur *cursor.Cursor, src core.Source) (any, error)
	DecodeStructured(v any) (any, error)
	// Type is the reflect.Type of the decoded value.
	Type() reflect.Type
	// ZeroWidth reports whether the decoder resolves its value out of band
	// without consuming input.
	ZeroWidth() bool
}

// zeroWidther is implemented by decoders that never consume input.
type zeroWidther interface {
	zeroWidth() bool
}

// Erase wraps d for storage on a grammar node.
func Erase[T any](d Decoder[T]) Erased {
	return erased[T]{d: d}
}

type erased[T any] struct {
	d Decoder[T]
}

func (e erased[T]) Decode(cur *cursor.Cursor, src core.Source) (any, error) {
	v, err := e.d.Decode(cur, src)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (e erased[T]) DecodeStructured(v any) (any, error) {
	out, err := e.d.DecodeStructured(v)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (e erased[T]) Type() reflect.Type { return reflect.TypeOf((*T)(nil)).Elem() }

func (e erased[T]) ZeroWidth() bool {
	zw, ok := e.d.(zeroWidther)
	return ok && zw.zeroWidth()
}

// IsNoMatch reports whether err is a structural non-match.
func IsNoMatch(err error) bool { return errors.Is(err, core.ErrNoMatch) }

// IsInvalid reports whether err is an InvalidInput failure.
func IsInvalid(err error) bool { return errors.Is(err, core.ErrInvalidInput) }

func invalid(token string, err error) error {
	return &core.InvalidInputError{Token: token, Err: err}
}

// weakDecode converts v into out with mapstructure's weakly typed rules
// ("1" -> true, "42" -> 42, json.Number, ...).
func weakDecode(v any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", core.ErrInvalidInput, err)
	}
	return nil
}
