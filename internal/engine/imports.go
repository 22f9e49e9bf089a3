package engine

import (
	"context"
	"errors"

	"github.com/roach88/previa/internal/exchange"
	"github.com/roach88/previa/internal/loader"
)

// ErrStopped is returned when submitting to a stopped engine.
var ErrStopped = errors.New("engine stopped")

// ImportOutcome is the result of one queued import.
type ImportOutcome struct {
	Op        string
	Purchases exchange.ImportResult
	Load      loader.Diagnostics
	Err       error
}

// Pending is a submitted import awaiting its turn.
type Pending struct {
	done chan ImportOutcome
}

// Wait blocks until the import ran or ctx is done. The outcome's Err is
// also returned as the second value.
func (p *Pending) Wait(ctx context.Context) (ImportOutcome, error) {
	select {
	case out := <-p.done:
		return out, out.Err
	case <-ctx.Done():
		return ImportOutcome{}, ctx.Err()
	}
}

func (e *Engine) submit(op string, exec func(context.Context) ImportOutcome) (*Pending, error) {
	t := &task{op: op, exec: exec, done: make(chan ImportOutcome, 1)}
	if !e.imports.Enqueue(t) {
		return nil, opError(op, ErrStopped)
	}
	return &Pending{done: t.done}, nil
}

// SubmitPurchases queues a purchase import of data. The import is applied
// when Run or Drain reaches it, against the state left by every import
// queued before it.
func (e *Engine) SubmitPurchases(filename string, data []byte) (*Pending, error) {
	const op = "import-purchases"
	return e.submit(op, func(ctx context.Context) ImportOutcome {
		out := ImportOutcome{Op: op}
		out.Err = e.Mutate(ctx, op, func(tx *Tx) error {
			res, err := e.importer.ImportPurchases(tx.State, tx.Jobs, filename, data)
			out.Purchases = res
			return err
		})
		if out.Err == nil {
			e.logger.Info().
				Str("file", filename).
				Int("imported", out.Purchases.Imported).
				Int("duplicates", out.Purchases.Duplicates).
				Int("invalid", out.Purchases.Invalid).
				Msg("purchases imported")
		}
		return out
	})
}

// SubmitState queues a full-state import that replaces every record.
func (e *Engine) SubmitState(filename string, data []byte) (*Pending, error) {
	const op = "import-state"
	return e.submit(op, func(ctx context.Context) ImportOutcome {
		out := ImportOutcome{Op: op}
		out.Err = e.Mutate(ctx, op, func(tx *Tx) error {
			s, diag, err := e.importer.ImportState(filename, data)
			if err != nil {
				return err
			}
			tx.Replace(s)
			e.lastLoad = diag
			out.Load = diag
			return nil
		})
		if out.Err == nil {
			e.logger.Info().Str("file", filename).Int("dropped", out.Load.DroppedTotal()).Msg("state imported")
		}
		return out
	})
}

// runTask executes t and delivers its outcome.
func (e *Engine) runTask(ctx context.Context, t *task) {
	out := t.exec(ctx)
	t.done <- out
}

// Drain runs every queued import in order and returns how many ran.
func (e *Engine) Drain(ctx context.Context) int {
	e.worker.Lock()
	defer e.worker.Unlock()

	n := 0
	for ctx.Err() == nil {
		t, ok := e.imports.TryDequeue()
		if !ok {
			break
		}
		e.runTask(ctx, t)
		n++
	}
	return n
}

// Run applies queued imports as they arrive. It blocks until ctx is
// cancelled or Stop is called and the queue is empty.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Debug().Msg("import worker starting")
	for {
		e.Drain(ctx)

		select {
		case <-ctx.Done():
			e.logger.Debug().Msg("import worker stopping: context cancelled")
			return ctx.Err()
		case <-e.imports.Wait():
			// The signal channel is closed by Stop. A coalesced signal can
			// arrive for a task already drained, so an empty queue alone
			// does not mean stopped.
			if e.imports.Closed() && e.imports.Len() == 0 {
				e.logger.Debug().Msg("import worker stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop rejects further imports. Queued imports still run.
func (e *Engine) Stop() {
	e.imports.Close()
}

// PendingImports returns the number of queued imports.
func (e *Engine) PendingImports() int {
	return e.imports.Len()
}

// ImportPurchases queues a purchase import, drains the queue and returns
// its result.
func (e *Engine) ImportPurchases(ctx context.Context, filename string, data []byte) (exchange.ImportResult, error) {
	p, err := e.SubmitPurchases(filename, data)
	if err != nil {
		return exchange.ImportResult{}, err
	}
	e.Drain(ctx)
	out, err := p.Wait(ctx)
	return out.Purchases, err
}

// ImportState queues a full-state import, drains the queue and returns
// what the loader repaired.
func (e *Engine) ImportState(ctx context.Context, filename string, data []byte) (loader.Diagnostics, error) {
	p, err := e.SubmitState(filename, data)
	if err != nil {
		return loader.Diagnostics{}, err
	}
	e.Drain(ctx)
	out, err := p.Wait(ctx)
	return out.Load, err
}
