package decoder

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/hupe1980/cmdmesh/core"
)

// Registry maps argument types to their decoders.
type Registry struct {
	mu       sync.RWMutex
	decoders map[reflect.Type]any
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{decoders: map[reflect.Type]any{}}
}

// Register installs d as the decoder for T, replacing any previous one.
func Register[T any](r *Registry, d Decoder[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoders[reflect.TypeOf((*T)(nil)).Elem()] = d
}

// Lookup returns the decoder registered for T.
func Lookup[T any](r *Registry) (Decoder[T], bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.decoders[reflect.TypeOf((*T)(nil)).Elem()]
	if !ok {
		return nil, false
	}
	return d.(Decoder[T]), true
}

// MustLookup is Lookup that panics when no decoder is registered for T.
func MustLookup[T any](r *Registry) Decoder[T] {
	d, ok := Lookup[T](r)
	if !ok {
		panic(fmt.Sprintf("decoder: no decoder registered for %s", reflect.TypeOf((*T)(nil)).Elem()))
	}
	return d
}

// Types returns the registered types.
func (r *Registry) Types() []reflect.Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]reflect.Type, 0, len(r.decoders))
	for t := range r.decoders {
		out = append(out, t)
	}
	return out
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the process-wide registry pre-loaded with the built-in
// decoders.
func Default() *Registry {
	defaultOnce.Do(func() {
		r := NewRegistry()
		Register[bool](r, Boolean{})
		Register[Snowflake](r, SnowflakeDecoder{})
		Register[int64](r, Integer{})
		Register[string](r, Text{})
		Register[ProxyMode](r, NewProxyModeDecoder())
		Register[*core.Attachment](r, AttachmentDecoder{})
		defaultRegistry = r
	})
	return defaultRegistry
}
