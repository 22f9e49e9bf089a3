package store

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Status reports whether a Fallback is still using its primary store.
type Status struct {
	Disabled bool   `json:"disabled"`
	Reason   string `json:"reason,omitempty"`
}

// Fallback serves a primary KV until it fails once, then serves an
// in-memory copy for the rest of its life. Errors caused by a cancelled
// context are returned as is and do not disable the primary.
//
// Thread-safety: all methods are safe for concurrent use.
type Fallback struct {
	mu      sync.Mutex
	primary KV
	memory  *Memory
	status  Status
	logger  zerolog.Logger
}

var _ KV = (*Fallback)(nil)

// FallbackOption configures a Fallback.
type FallbackOption func(*Fallback)

// WithLogger sets the logger used to report degradation.
func WithLogger(l zerolog.Logger) FallbackOption {
	return func(f *Fallback) {
		f.logger = l
	}
}

// NewFallback wraps primary. A nil primary starts disabled.
func NewFallback(primary KV, opts ...FallbackOption) *Fallback {
	f := &Fallback{
		primary: primary,
		memory:  NewMemory(),
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	if primary == nil {
		f.status = Status{Disabled: true, Reason: "no persistent store configured"}
	}
	return f
}

// Disabled starts a Fallback in memory mode with the given reason, used
// when the persistent store could not even be opened.
func Disabled(reason string, opts ...FallbackOption) *Fallback {
	f := NewFallback(nil, opts...)
	f.status.Reason = reason
	return f
}

// Status returns the current mode.
func (f *Fallback) Status() Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

// active returns the primary, or nil once disabled.
func (f *Fallback) active() KV {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status.Disabled {
		return nil
	}
	return f.primary
}

func (f *Fallback) disable(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status.Disabled {
		return
	}
	f.status = Status{Disabled: true, Reason: op + ": " + err.Error()}
	f.logger.Warn().Err(err).Str("op", op).Msg("persistent store unavailable, continuing in memory")
}

// Get reads from the active store.
func (f *Fallback) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if p := f.active(); p != nil {
		v, ok, err := p.Get(ctx, key)
		if err == nil {
			return v, ok, nil
		}
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		f.disable("get", err)
	}
	return f.memory.Get(ctx, key)
}

// Put writes to the active store, switching to memory on failure.
func (f *Fallback) Put(ctx context.Context, key string, value []byte) error {
	if p := f.active(); p != nil {
		err := p.Put(ctx, key, value)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.disable("put", err)
	}
	return f.memory.Put(ctx, key, value)
}

// Delete removes key from the active store.
func (f *Fallback) Delete(ctx context.Context, key string) error {
	if p := f.active(); p != nil {
		err := p.Delete(ctx, key)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.disable("delete", err)
	}
	return f.memory.Delete(ctx, key)
}
