package testutil

import (
	"context"
	"sync"

	"github.com/hupe1980/cmdmesh/core"
)

// Sent is one response recorded by Source.
type Sent struct {
	Text    string
	Kind    core.ResponseKind
	Private bool
}

// Source is a core.Source that records every response. It is safe for
// concurrent use.
type Source struct {
	text       string
	attachment *core.Attachment
	err        error

	mu   sync.Mutex
	sent []Sent
}

// Text implements core.Source.
func (s *Source) Text() string { return s.text }

// Attachment implements core.Source.
func (s *Source) Attachment() *core.Attachment { return s.attachment }

// Respond implements core.Source. It fails with the configured error, if any.
func (s *Source) Respond(_ context.Context, text string, kind core.ResponseKind, private bool) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, Sent{Text: text, Kind: kind, Private: private})
	return text, nil
}

// Sent returns the recorded responses in order.
func (s *Source) Sent() []Sent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Sent(nil), s.sent...)
}

// Texts returns the recorded response texts decorated by kind.
func (s *Source) Texts() []string {
	sent := s.Sent()
	out := make([]string, len(sent))
	for i, r := range sent {
		out[i] = r.Kind.Decorate(r.Text)
	}
	return out
}

// Last returns the most recent response, or the zero Sent.
func (s *Source) Last() Sent {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sent) == 0 {
		return Sent{}
	}
	return s.sent[len(s.sent)-1]
}

// SourceBuilder helps construct sources with fluent chaining for tests.
// Example:
//
//	src := NewSourceBuilder("import").Attachment(&core.Attachment{Filename: "pk.json"}).Build()
type SourceBuilder struct {
	src *Source
}

// NewSourceBuilder creates a builder for a source carrying text.
func NewSourceBuilder(text string) *SourceBuilder {
	return &SourceBuilder{src: &Source{text: text}}
}

// Attachment sets the out-of-band attachment (chainable).
func (b *SourceBuilder) Attachment(a *core.Attachment) *SourceBuilder {
	b.src.attachment = a
	return b
}

// RespondError makes every Respond call fail with err (chainable).
func (b *SourceBuilder) RespondError(err error) *SourceBuilder {
	b.src.err = err
	return b
}

// Build returns the configured source.
func (b *SourceBuilder) Build() *Source {
	return b.src
}

// NewSource is shorthand for NewSourceBuilder(text).Build().
func NewSource(text string) *Source {
	return NewSourceBuilder(text).Build()
}
