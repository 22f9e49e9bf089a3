package engine

import (
	"context"
	"fmt"

	"github.com/roach88/previa/internal/domain"
)

// RenderFunc produces an external document from a state snapshot. It
// should return promptly once ctx is done.
type RenderFunc func(ctx context.Context, s *domain.AppState) error

// RunDocument runs render against a snapshot with the document timeout.
// release is called exactly once when RunDocument returns, whether render
// finished, failed or timed out. A render that ignores ctx keeps running
// in the background after a timeout, but its result is discarded.
func (e *Engine) RunDocument(ctx context.Context, name string, render RenderFunc, release func()) error {
	if release != nil {
		defer release()
	}
	op := "document " + name

	ctx, cancel := context.WithTimeout(ctx, e.docTimeout)
	defer cancel()

	snap := e.Snapshot()
	errc := make(chan error, 1)
	go func() {
		errc <- render(ctx, snap)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return e.documentError(op, err)
		}
		e.logger.Debug().Str("document", name).Msg("document rendered")
		return nil
	case <-ctx.Done():
		e.logger.Warn().Str("document", name).Dur("timeout", e.docTimeout).Msg("document step abandoned")
		return e.documentError(op, fmt.Errorf("%s: %w", name, ctx.Err()))
	}
}

func (e *Engine) documentError(op string, err error) error {
	err = opError(op, err)
	e.mu.Lock()
	e.recordError(err)
	e.mu.Unlock()
	return err
}
