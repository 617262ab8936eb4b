// Package mdc holds the per-request diagnostic context: a small set of
// string attributes that every log event written during the request picks
// up. The context travels in context.Context; it is never global.
package mdc

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

type ctxKey struct{}

// Context is one request's diagnostic attributes. A nil value is an
// explicit null, distinct from an absent key.
type Context struct {
	mu      sync.RWMutex
	entries map[string]*string
}

// New returns an empty diagnostic context.
func New() *Context {
	return &Context{entries: make(map[string]*string)}
}

// Put sets key to value. A nil value records an explicit null.
func (m *Context) Put(key string, value *string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if value != nil {
		v := *value
		value = &v
	}
	m.entries[key] = value
}

// PutString sets key to a non-null value.
func (m *Context) PutString(key, value string) {
	m.Put(key, &value)
}

// Get returns the value for key and whether the key is present.
func (m *Context) Get(key string) (*string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.entries[key]
	return v, ok
}

// Len returns the number of keys present.
func (m *Context) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Keys returns the present keys in sorted order.
func (m *Context) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clear removes every key.
func (m *Context) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.entries)
}

// WithContext returns a copy of ctx carrying m.
func WithContext(ctx context.Context, m *Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, m)
}

// FromContext returns the diagnostic context carried by ctx, or nil.
func FromContext(ctx context.Context) *Context {
	if ctx == nil {
		return nil
	}
	m, _ := ctx.Value(ctxKey{}).(*Context)
	return m
}

// Hook copies the diagnostic context of the event's context.Context onto
// the event. Events without a context, or logged after Clear, get nothing.
type Hook struct{}

func (Hook) Run(e *zerolog.Event, _ zerolog.Level, _ string) {
	m := FromContext(e.GetCtx())
	if m == nil {
		return
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for k, v := range m.entries {
		if v == nil {
			e.Interface(k, nil)
			continue
		}
		e.Str(k, *v)
	}
}
