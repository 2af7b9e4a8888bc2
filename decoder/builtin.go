package decoder

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/hupe1980/cmdmesh/core"
	"github.com/hupe1980/cmdmesh/cursor"
	"github.com/hupe1980/cmdmesh/internal/util"
	"github.com/mitchellh/mapstructure"
)

// Boolean decodes on/off style switches. Matching is case-insensitive.
type Boolean struct{}

var (
	truthy = []string{"true", "enable", "on", "1"}
	falsy  = []string{"false", "disable", "off", "0"}
)

func lookupBool(tok string) (value, ok bool) {
	f := util.Fold(tok)
	for _, k := range truthy {
		if f == k {
			return true, true
		}
	}
	for _, k := range falsy {
		if f == k {
			return false, true
		}
	}
	return false, false
}

// Decode implements Decoder.
func (Boolean) Decode(cur *cursor.Cursor, _ core.Source) (bool, error) {
	s := cur.Begin()
	defer s.Close()

	tok, ok := cur.Token(false)
	if !ok {
		return false, core.ErrNoMatch
	}
	v, ok := lookupBool(tok)
	if !ok {
		return false, core.ErrNoMatch
	}
	s.Commit()
	return v, nil
}

// DecodeStructured implements Decoder.
func (Boolean) DecodeStructured(v any) (bool, error) {
	if str, ok := v.(string); ok {
		if b, ok := lookupBool(str); ok {
			return b, nil
		}
		return false, invalid(str, errors.New("not a boolean"))
	}
	var out bool
	if err := weakDecode(v, &out); err != nil {
		return false, err
	}
	return out, nil
}

// Snowflake is an unsigned 64-bit platform identifier.
type Snowflake uint64

// String returns the decimal form of the id.
func (s Snowflake) String() string { return strconv.FormatUint(uint64(s), 10) }

// SnowflakeDecoder decodes Snowflake ids. Besides plain digits it accepts the
// mention forms <@id>, <@!id>, <@&id> and <#id>.
type SnowflakeDecoder struct{}

func unwrapMention(tok string) string {
	if !strings.HasPrefix(tok, "<") || !strings.HasSuffix(tok, ">") {
		return tok
	}
	inner := tok[1 : len(tok)-1]
	for _, p := range []string{"@!", "@&", "@", "#"} {
		if strings.HasPrefix(inner, p) {
			return inner[len(p):]
		}
	}
	return tok
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func parseSnowflake(tok string) (Snowflake, error) {
	digits := unwrapMention(tok)
	if !allDigits(digits) {
		return 0, core.ErrNoMatch
	}
	n, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return 0, invalid(tok, err)
	}
	return Snowflake(n), nil
}

// Decode implements Decoder.
func (SnowflakeDecoder) Decode(cur *cursor.Cursor, _ core.Source) (Snowflake, error) {
	s := cur.Begin()
	defer s.Close()

	tok, ok := cur.Token(false)
	if !ok {
		return 0, core.ErrNoMatch
	}
	id, err := parseSnowflake(tok)
	if err != nil {
		return 0, err
	}
	s.Commit()
	return id, nil
}

// DecodeStructured implements Decoder.
func (SnowflakeDecoder) DecodeStructured(v any) (Snowflake, error) {
	switch x := v.(type) {
	case Snowflake:
		return x, nil
	case string:
		id, err := parseSnowflake(x)
		if errors.Is(err, core.ErrNoMatch) {
			return 0, invalid(x, errors.New("not a snowflake"))
		}
		return id, err
	case float64:
		if x < 0 || x != float64(uint64(x)) {
			return 0, invalid(fmt.Sprint(x), errors.New("not a snowflake"))
		}
		return Snowflake(x), nil
	case int:
		if x < 0 {
			return 0, invalid(fmt.Sprint(x), errors.New("negative snowflake"))
		}
		return Snowflake(x), nil
	case int64:
		if x < 0 {
			return 0, invalid(fmt.Sprint(x), errors.New("negative snowflake"))
		}
		return Snowflake(x), nil
	}
	var out uint64
	if err := weakDecode(v, &out); err != nil {
		return 0, err
	}
	return Snowflake(out), nil
}

// Integer decodes signed 64-bit decimal numbers.
type Integer struct{}

// Decode implements Decoder.
func (Integer) Decode(cur *cursor.Cursor, _ core.Source) (int64, error) {
	s := cur.Begin()
	defer s.Close()

	tok, ok := cur.Token(false)
	if !ok {
		return 0, core.ErrNoMatch
	}
	n, err := strconv.ParseInt(tok, 10, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return 0, invalid(tok, err)
		}
		return 0, core.ErrNoMatch
	}
	s.Commit()
	return n, nil
}

// DecodeStructured implements Decoder.
func (Integer) DecodeStructured(v any) (int64, error) {
	var out int64
	if err := weakDecode(v, &out); err != nil {
		return 0, err
	}
	return out, nil
}

// Text decodes a single quoted or bare token.
type Text struct{}

// Decode implements Decoder.
func (Text) Decode(cur *cursor.Cursor, _ core.Source) (string, error) {
	s := cur.Begin()
	defer s.Close()

	tok, ok := cur.Token(true)
	if !ok {
		return "", core.ErrNoMatch
	}
	s.Commit()
	return tok, nil
}

// DecodeStructured implements Decoder.
func (Text) DecodeStructured(v any) (string, error) {
	var out string
	if err := weakDecode(v, &out); err != nil {
		return "", err
	}
	return out, nil
}

// AttachmentDecoder resolves the source's out-of-band attachment. It never
// consumes input.
type AttachmentDecoder struct{}

// Decode implements Decoder.
func (AttachmentDecoder) Decode(_ *cursor.Cursor, src core.Source) (*core.Attachment, error) {
	if src == nil {
		return nil, core.ErrNoMatch
	}
	a := src.Attachment()
	if a == nil {
		return nil, core.ErrNoMatch
	}
	return a, nil
}

// DecodeStructured implements Decoder.
func (AttachmentDecoder) DecodeStructured(v any) (*core.Attachment, error) {
	switch x := v.(type) {
	case nil:
		return nil, core.ErrNoMatch
	case *core.Attachment:
		if x == nil {
			return nil, core.ErrNoMatch
		}
		return x, nil
	case core.Attachment:
		return &x, nil
	}
	var out core.Attachment
	if err := mapstructure.WeakDecode(v, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidInput, err)
	}
	return &out, nil
}

func (AttachmentDecoder) zeroWidth() bool { return true }
