package engine

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/previa/internal/domain"
	"github.com/roach88/previa/internal/ledger"
	"github.com/roach88/previa/internal/quote"
	"github.com/roach88/previa/internal/store"
	"github.com/roach88/previa/internal/testutil"
	"github.com/roach88/previa/internal/workorder"
)

func newTestEngine(t *testing.T, kv store.KV, opts ...EngineOption) *Engine {
	t.Helper()
	if kv == nil {
		kv = store.NewMemory()
	}
	base := []EngineOption{
		WithClock(testutil.NewSteppingClock(testutil.DefaultEpoch, time.Second)),
		WithIDGenerator(testutil.NewSequenceIDs("id")),
	}
	e := New(kv, append(base, opts...)...)
	_, err := e.Load(context.Background())
	require.NoError(t, err)
	return e
}

func createJob(t *testing.T, e *Engine, code string, total float64) domain.Job {
	t.Helper()
	job, err := e.CreateJob(context.Background(), workorder.JobInput{
		Title: "Bagno " + code, Client: "Rossi", JobCode: code, AgreedTotal: total,
	})
	require.NoError(t, err)
	return job
}

// brokenKV fails every call.
type brokenKV struct{}

func (brokenKV) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("disk gone")
}
func (brokenKV) Put(context.Context, string, []byte) error { return errors.New("disk gone") }
func (brokenKV) Delete(context.Context, string) error      { return errors.New("disk gone") }

func TestLoad_MissingSnapshot(t *testing.T) {
	e := newTestEngine(t, nil)

	assert.Equal(t, domain.NewDefaultState(), e.Snapshot())
	assert.Equal(t, int64(1), e.Revision())
	assert.True(t, e.LoadDiagnostics().Clean())
}

func TestLoad_NormalizesSnapshot(t *testing.T) {
	kv := store.NewMemory()
	require.NoError(t, kv.Put(context.Background(), DefaultStorageKey,
		[]byte(`{"saldoIniziale": 100, "movements": [{"description": "Affitto", "amount": 5, "direction": "uscita"}, 42]}`)))

	e := newTestEngine(t, kv)
	s := e.Snapshot()

	assert.Equal(t, 100.0, s.OpeningBalance)
	require.Len(t, s.Movements, 1)
	assert.Equal(t, domain.DirectionOut, s.Movements[0].Direction)
	assert.Equal(t, 1, e.LoadDiagnostics().DroppedTotal())
}

func TestMutate_PersistsAndReloads(t *testing.T) {
	kv := store.NewMemory()
	e := newTestEngine(t, kv)
	job := createJob(t, e, "A1", 300)

	raw, ok, err := kv.Get(context.Background(), DefaultStorageKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, string(raw), job.ID)

	again := newTestEngine(t, kv)
	assert.Equal(t, e.Snapshot(), again.Snapshot())
}

func TestMutate_CustomStorageKey(t *testing.T) {
	kv := store.NewMemory()
	e := newTestEngine(t, kv, WithStorageKey("other"))
	createJob(t, e, "A1", 300)

	_, ok, err := kv.Get(context.Background(), "other")
	require.NoError(t, err)
	assert.True(t, ok)
	_, ok, _ = kv.Get(context.Background(), DefaultStorageKey)
	assert.False(t, ok)
}

func TestMutate_FailureLeavesStateUntouched(t *testing.T) {
	e := newTestEngine(t, nil)
	job := createJob(t, e, "A1", 300)
	before, rev := e.Snapshot(), e.Revision()

	_, err := e.CreatePayment(context.Background(), workorder.PaymentInput{JobID: job.ID, Amount: -5})
	require.Error(t, err)
	assert.True(t, IsInvalidInput(err))

	_, err = e.CreatePayment(context.Background(), workorder.PaymentInput{JobID: "missing", Amount: 5})
	assert.True(t, IsNotFound(err))

	assert.Equal(t, before, e.Snapshot())
	assert.Equal(t, rev, e.Revision())
	assert.Len(t, e.Errors(), 2)
}

func TestMutate_PartialWorkIsDiscarded(t *testing.T) {
	e := newTestEngine(t, nil)
	before := e.Snapshot()

	err := e.Mutate(context.Background(), "half-done", func(tx *Tx) error {
		if _, err := tx.Jobs.CreateJob(workorder.JobInput{Title: "x", Client: "y", JobCode: "z", AgreedTotal: 1}); err != nil {
			return err
		}
		return domain.ErrInvalidTransition
	})

	assert.Equal(t, CodeInvalidTransition, CodeOf(err))
	assert.Equal(t, before, e.Snapshot())
}

func TestMutate_CancelledContext(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.CreateQuote(ctx, "Rossi", "A1")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, e.Snapshot().Quotes)
}

func TestObservers(t *testing.T) {
	var mu sync.Mutex
	var changes []Change
	var e *Engine
	e = newTestEngine(t, nil, WithObserver(func(c Change) {
		// Observers run outside the lock and may read the state.
		if e != nil {
			_ = e.Snapshot()
		}
		mu.Lock()
		changes = append(changes, c)
		mu.Unlock()
	}))

	createJob(t, e, "A1", 300)
	_, err := e.CreateQuote(context.Background(), "", "")
	require.Error(t, err)
	require.NoError(t, e.Reset(context.Background()))

	assert.Equal(t, []Change{
		{Op: "load", Revision: 1},
		{Op: "create-job", Revision: 2},
		{Op: "reset", Revision: 3},
	}, changes)
}

func TestSnapshot_IsACopy(t *testing.T) {
	e := newTestEngine(t, nil)
	createJob(t, e, "A1", 300)

	s := e.Snapshot()
	s.Jobs[0].Title = "changed"
	s.Jobs = nil

	assert.Equal(t, "Bagno A1", e.Snapshot().Jobs[0].Title)
}

func TestPaymentClosesJob(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, nil)
	job := createJob(t, e, "A1", 500)

	_, err := e.CreatePayment(ctx, workorder.PaymentInput{JobID: job.ID, Amount: 200})
	require.NoError(t, err)
	_, err = e.CreatePayment(ctx, workorder.PaymentInput{JobID: job.ID, Amount: 300})
	require.NoError(t, err)

	r, err := e.JobReport(job.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, r.Due)

	s := e.Snapshot()
	assert.Equal(t, domain.JobClosed, s.Jobs[0].Status)
	assert.Len(t, s.Movements, 2)
	assert.Equal(t, 500.0, ledger.Balance(s))

	_, err = e.JobReport("missing")
	assert.True(t, IsNotFound(err))
}

func TestConfirmQuoteAsJob(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, nil)

	q, err := e.CreateQuote(ctx, "Bianchi", "Q1")
	require.NoError(t, err)
	_, err = e.AddQuoteRow(ctx, q.ID, quote.RowInput{Description: "Posa", Quantity: 2, UnitPrice: 100, DiscountPct: 10})
	require.NoError(t, err)

	totals, err := e.QuoteTotals(q.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Totals{Taxable: 180, VAT: 39.6, Total: 219.6}, totals)

	job, err := e.ConfirmQuoteAsJob(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, 219.6, job.AgreedTotal)

	_, err = e.AddQuoteRow(ctx, q.ID, quote.RowInput{Description: "Extra", Quantity: 1, UnitPrice: 1})
	assert.True(t, IsLocked(err))

	s := e.Snapshot()
	assert.True(t, s.Quotes[0].Locked())
	require.Len(t, s.JobLines, 1)
	assert.Equal(t, domain.LineLabor, s.JobLines[0].Kind)
	assert.Equal(t, []string{"Bianchi"}, s.Directory.Clients)
}

func TestConfirmQuoteAsJob_LoadedBlankRow(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	require.NoError(t, kv.Put(ctx, DefaultStorageKey, []byte(`{"quotes": [{
		"id": "q1", "number": 1, "client": "Rossi", "jobCode": "z1",
		"rows": [{"description": "Posa", "qty": 1, "unitPrice": 100}, {"description": "", "qty": 1, "unitPrice": 50}]
	}]}`)))
	e := newTestEngine(t, kv)
	require.Len(t, e.Snapshot().Quotes[0].Rows, 2)

	job, err := e.ConfirmQuoteAsJob(ctx, "q1")
	require.NoError(t, err)
	assert.Equal(t, 183.0, job.AgreedTotal)

	s := e.Snapshot()
	require.Len(t, s.Jobs, 1)
	require.Len(t, s.JobLines, 1)
	assert.Equal(t, "Posa", s.JobLines[0].Description)
	assert.True(t, s.Quotes[0].Locked())
}

func TestConfirmQuoteAsJob_ZeroTotal(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, nil)

	q, err := e.CreateQuote(ctx, "Bianchi", "Z1")
	require.NoError(t, err)
	job, err := e.ConfirmQuoteAsJob(ctx, q.ID)
	require.NoError(t, err)
	assert.Zero(t, job.AgreedTotal)
	assert.Len(t, e.Snapshot().Jobs, 1)
}

func TestDeleteJobCascade(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, nil)
	a := createJob(t, e, "A1", 300)
	createJob(t, e, "B2", 100)

	_, err := e.CreatePayment(ctx, workorder.PaymentInput{JobID: a.ID, Amount: 50})
	require.NoError(t, err)
	_, err = e.CreatePurchaseLine(ctx, workorder.PurchaseInput{Supplier: "Brico", Product: "Colla", Quantity: 1, UnitPrice: 4, JobCode: "a1"})
	require.NoError(t, err)
	_, err = e.CreatePurchaseLine(ctx, workorder.PurchaseInput{Supplier: "Brico", Product: "Viti", Quantity: 1, UnitPrice: 2, JobCode: "B2"})
	require.NoError(t, err)

	_, err = e.DeleteJobCascade(ctx, a.ID)
	require.NoError(t, err)

	s := e.Snapshot()
	require.Len(t, s.Jobs, 1)
	assert.Empty(t, s.JobPayments)
	require.Len(t, s.PurchaseLines, 1)
	assert.Equal(t, "Viti", s.PurchaseLines[0].Product)
}

func TestLedgerOps(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, nil)

	require.NoError(t, e.SetOpeningBalance(ctx, 1000.004))
	m, err := e.AddMovement(ctx, ledger.MovementInput{Description: "Affitto", Amount: 400, Direction: domain.DirectionOut})
	require.NoError(t, err)
	assert.Equal(t, 600.0, ledger.Balance(e.Snapshot()))

	require.NoError(t, e.DeleteMovement(ctx, m.ID))
	assert.Equal(t, 1000.0, ledger.Balance(e.Snapshot()))

	err = e.SetOpeningBalance(ctx, posInf())
	assert.True(t, IsInvalidInput(err))
}

func posInf() float64 {
	var zero float64
	return 1 / zero
}

func TestCompanyAndDirectory(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, nil)

	require.NoError(t, e.SetCompany(ctx, domain.CompanyProfile{Name: "  ", TaxID: "IT123"}))
	assert.Equal(t, domain.CompanyProfile{Name: domain.DefaultCompanyName, TaxID: "IT123"}, e.Snapshot().Company)

	added, err := e.AddName(ctx, domain.CounterpartySupplier, "Edil Sud")
	require.NoError(t, err)
	assert.True(t, added)
	added, err = e.AddName(ctx, domain.CounterpartySupplier, "edil sud")
	require.NoError(t, err)
	assert.False(t, added)

	_, err = e.AddName(ctx, domain.CounterpartyOther, "x")
	assert.True(t, IsInvalidInput(err))

	assert.Equal(t, []string{"Edil Sud"}, e.Suggest(domain.CounterpartySupplier, "edil", 5))
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	e := newTestEngine(t, kv)
	createJob(t, e, "A1", 300)

	require.NoError(t, e.Reset(ctx))

	assert.Equal(t, domain.NewDefaultState(), e.Snapshot())
	_, ok, err := kv.Get(ctx, DefaultStorageKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStorageDegradesToMemory(t *testing.T) {
	var logs bytes.Buffer
	logger := zerolog.New(&logs)
	kv := store.NewFallback(brokenKV{}, store.WithLogger(logger))

	e := newTestEngine(t, kv, WithLogger(logger))
	assert.True(t, e.StorageStatus().Disabled)
	assert.Contains(t, e.StorageStatus().Reason, "disk gone")

	createJob(t, e, "A1", 300)
	assert.Len(t, e.Snapshot().Jobs, 1)

	raw, ok, err := kv.Get(context.Background(), DefaultStorageKey)
	require.NoError(t, err)
	require.True(t, ok, "snapshot should land in the in-memory store")
	assert.NotEmpty(t, raw)
	assert.Contains(t, logs.String(), "continuing in memory")
}

func TestStorageStatus_PlainKV(t *testing.T) {
	e := newTestEngine(t, store.NewMemory())
	assert.Equal(t, store.Status{}, e.StorageStatus())
}

func TestLoad_PrimaryFailureOnPlainKV(t *testing.T) {
	e := New(brokenKV{})
	_, err := e.Load(context.Background())
	assert.Equal(t, CodeInternal, CodeOf(err))
}

func TestErrorLogIsBounded(t *testing.T) {
	e := newTestEngine(t, nil)
	for i := 0; i < maxErrorLog+5; i++ {
		_ = e.DeleteQuote(context.Background(), "missing")
	}
	assert.Len(t, e.Errors(), maxErrorLog)
}

func TestDiagnostics(t *testing.T) {
	e := newTestEngine(t, nil)
	createJob(t, e, "A1", 300)
	_ = e.DeleteJobLine(context.Background(), "missing")

	r := e.Diagnostics()
	assert.Equal(t, 1, r.Counts.Jobs)
	assert.False(t, r.Timestamp.Before(testutil.DefaultEpoch))
	assert.Len(t, r.Errors, 1)
	require.NotNil(t, r.Checks.Load)
	assert.True(t, r.Healthy())
}
