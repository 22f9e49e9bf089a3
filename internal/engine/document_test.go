package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/previa/internal/domain"
)

func TestRunDocument_Success(t *testing.T) {
	e := newTestEngine(t, nil)
	createJob(t, e, "A1", 300)

	released := 0
	var seen int
	err := e.RunDocument(context.Background(), "job-sheet", func(_ context.Context, s *domain.AppState) error {
		seen = len(s.Jobs)
		s.Jobs = nil
		return nil
	}, func() { released++ })

	require.NoError(t, err)
	assert.Equal(t, 1, seen)
	assert.Equal(t, 1, released)
	assert.Len(t, e.Snapshot().Jobs, 1, "render works on a copy")
}

func TestRunDocument_Failure(t *testing.T) {
	e := newTestEngine(t, nil)
	released := false

	err := e.RunDocument(context.Background(), "pdf", func(context.Context, *domain.AppState) error {
		return errors.New("printer on fire")
	}, func() { released = true })

	require.Error(t, err)
	assert.Contains(t, err.Error(), "printer on fire")
	assert.Equal(t, CodeInternal, CodeOf(err))
	assert.True(t, released)
	assert.Len(t, e.Errors(), 1)
}

func TestRunDocument_TimeoutForcesRelease(t *testing.T) {
	e := newTestEngine(t, nil, WithDocumentTimeout(20*time.Millisecond))
	released := false
	stuck := make(chan struct{})
	defer close(stuck)

	start := time.Now()
	err := e.RunDocument(context.Background(), "pdf", func(context.Context, *domain.AppState) error {
		<-stuck
		return nil
	}, func() { released = true })

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, released)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestRunDocument_NilRelease(t *testing.T) {
	e := newTestEngine(t, nil)
	err := e.RunDocument(context.Background(), "csv", func(ctx context.Context, _ *domain.AppState) error {
		return ctx.Err()
	}, nil)
	assert.NoError(t, err)
}
