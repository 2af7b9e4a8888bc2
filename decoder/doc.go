// Package decoder turns raw input into typed argument values.
//
// A Decoder[T] has two paths. Decode reads from a cursor.Cursor and reports
// one of three outcomes: Matched (nil error), NoMatch (core.ErrNoMatch) or
// InvalidInput (an error wrapping core.ErrInvalidInput). The cursor is left
// at its entry position on anything but Matched. DecodeStructured converts
// an already-parsed value, as delivered by API or platform interactions,
// using mapstructure's weakly typed conversion.
//
// Built-ins:
//
//	Boolean            true/enable/on/1 and false/disable/off/0
//	SnowflakeDecoder   unsigned 64-bit ids, plain or as a mention
//	Integer            signed 64-bit decimal
//	Text               one quoted or bare token
//	Enum[T]            keyword table, first declared entry wins
//	AttachmentDecoder  the source attachment, consumes nothing
//
// Registry maps a Go type to its decoder; Default returns one pre-loaded
// with the built-ins.
package decoder
