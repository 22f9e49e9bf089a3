package store

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyKV fails every call once broken is set.
type flakyKV struct {
	*Memory
	broken bool
	calls  int
}

var errBroken = errors.New("disk on fire")

func (f *flakyKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	f.calls++
	if f.broken {
		return nil, false, errBroken
	}
	return f.Memory.Get(ctx, key)
}

func (f *flakyKV) Put(ctx context.Context, key string, value []byte) error {
	f.calls++
	if f.broken {
		return errBroken
	}
	return f.Memory.Put(ctx, key, value)
}

func (f *flakyKV) Delete(ctx context.Context, key string) error {
	f.calls++
	if f.broken {
		return errBroken
	}
	return f.Memory.Delete(ctx, key)
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	value := []byte("abc")
	require.NoError(t, m.Put(ctx, "k", value))
	value[0] = 'X'

	got, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abc", string(got))
	assert.Equal(t, 1, m.Len())

	require.NoError(t, m.Delete(ctx, "k"))
	assert.Equal(t, 0, m.Len())
}

func TestFallback_UsesPrimaryWhileHealthy(t *testing.T) {
	ctx := context.Background()
	primary := &flakyKV{Memory: NewMemory()}
	f := NewFallback(primary)

	require.NoError(t, f.Put(ctx, "k", []byte("v")))
	v, ok, err := f.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", string(v))
	assert.Equal(t, 1, primary.Memory.Len())
	assert.False(t, f.Status().Disabled)
}

func TestFallback_DegradesOnFirstFailure(t *testing.T) {
	ctx := context.Background()
	primary := &flakyKV{Memory: NewMemory()}
	var logs bytes.Buffer
	f := NewFallback(primary, WithLogger(zerolog.New(&logs)))

	primary.broken = true
	require.NoError(t, f.Put(ctx, "k", []byte("v")))

	st := f.Status()
	assert.True(t, st.Disabled)
	assert.Contains(t, st.Reason, "disk on fire")
	assert.Contains(t, logs.String(), "continuing in memory")

	// Served from memory from now on, even if the primary recovers.
	primary.broken = false
	calls := primary.calls
	v, ok, err := f.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", string(v))
	require.NoError(t, f.Delete(ctx, "k"))
	assert.Equal(t, calls, primary.calls)
}

func TestFallback_GetFailureReturnsAbsent(t *testing.T) {
	primary := &flakyKV{Memory: NewMemory(), broken: true}
	f := NewFallback(primary)

	_, ok, err := f.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, f.Status().Disabled)
}

func TestFallback_CancelledContextDoesNotDisable(t *testing.T) {
	s := createTestStore(t)
	f := NewFallback(s)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.Put(ctx, "k", []byte("v"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, f.Status().Disabled)
}

func TestFallback_DisabledFromStart(t *testing.T) {
	ctx := context.Background()
	f := Disabled("open db: permission denied")

	assert.Equal(t, Status{Disabled: true, Reason: "open db: permission denied"}, f.Status())
	require.NoError(t, f.Put(ctx, "k", []byte("v")))
	_, ok, err := f.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.True(t, NewFallback(nil).Status().Disabled)
}

func TestFallback_OverSQLite(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	f := NewFallback(s)

	require.NoError(t, f.Put(ctx, "k", []byte("v")))
	v, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", string(v))

	// A closed database disables the primary.
	require.NoError(t, s.Close())
	require.NoError(t, f.Put(ctx, "k", []byte("w")))
	assert.True(t, f.Status().Disabled)
	v, _, _ = f.Get(ctx, "k")
	assert.Equal(t, "w", string(v))
}
