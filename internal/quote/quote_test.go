package quote

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/previa/internal/directory"
	"github.com/roach88/previa/internal/domain"
	"github.com/roach88/previa/internal/testutil"
	"github.com/roach88/previa/internal/workorder"
)

func newTestEngine(t *testing.T) (*Engine, *domain.AppState) {
	t.Helper()
	s := domain.NewDefaultState()
	clock := testutil.NewSteppingClock(testutil.DefaultEpoch, time.Second)
	ids := testutil.NewSequenceIDs("id")
	jobs := workorder.New(s, directory.New(directory.DefaultLocale), ids, clock)
	return New(s, jobs, ids, clock), s
}

func vat(p float64) *float64 { return &p }

func TestCompute_DiscountAndVAT(t *testing.T) {
	got := Compute([]domain.QuoteRow{{Description: "Posa", Quantity: 2, UnitPrice: 100, DiscountPct: 10, VATPct: 22}})
	assert.Equal(t, domain.Totals{Taxable: 180, VAT: 39.6, Total: 219.6}, got)
}

func TestCompute_Empty(t *testing.T) {
	assert.Equal(t, domain.Totals{}, Compute(nil))
}

func TestCompute_SkipsNonFiniteRows(t *testing.T) {
	got := Compute([]domain.QuoteRow{
		{Quantity: 1, UnitPrice: 10, VATPct: 0},
		{Quantity: math.NaN(), UnitPrice: 10, VATPct: 22},
	})
	assert.Equal(t, domain.Totals{Taxable: 10, VAT: 0, Total: 10}, got)
}

func TestCompute_RoundsOnceOverSum(t *testing.T) {
	// Three rows of 0.335 taxable each: summed exactly then rounded.
	row := domain.QuoteRow{Quantity: 1, UnitPrice: 0.335, VATPct: 0}
	got := Compute([]domain.QuoteRow{row, row, row})
	assert.Equal(t, 1.01, got.Taxable)
}

func TestRowAmounts(t *testing.T) {
	taxable, v := RowAmounts(domain.QuoteRow{Quantity: 3, UnitPrice: 10, DiscountPct: 50, VATPct: 10})
	assert.Equal(t, 15.0, taxable)
	assert.Equal(t, 1.5, v)
}

func TestCreateQuote(t *testing.T) {
	e, s := newTestEngine(t)

	q1, err := e.CreateQuote(" Bianchi ", "cant-7")
	require.NoError(t, err)
	q2, err := e.CreateQuote("Verdi", "X")
	require.NoError(t, err)

	assert.Equal(t, 1, q1.Number)
	assert.Equal(t, 2, q2.Number)
	assert.Equal(t, 3, s.QuoteCounter)
	assert.Equal(t, "Bianchi", q1.Client)
	assert.Equal(t, "CANT-7", q1.JobCode)
	assert.Equal(t, domain.QuoteDraft, q1.Status)
	assert.Equal(t, q2.ID, s.SelectedQuoteID)
}

func TestCreateQuote_RequiresHeader(t *testing.T) {
	e, s := newTestEngine(t)

	_, err := e.CreateQuote("", "X")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = e.CreateQuote("Bianchi", " ")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Equal(t, 1, s.QuoteCounter)
	assert.Empty(t, s.Quotes)
}

func TestAddRow_ComputesTotals(t *testing.T) {
	e, _ := newTestEngine(t)
	q, err := e.CreateQuote("Bianchi", "Q1")
	require.NoError(t, err)

	q, err = e.AddRow(q.ID, RowInput{Description: "Posa piastrelle", Quantity: 2, UnitPrice: 100, DiscountPct: 10})
	require.NoError(t, err)

	require.Len(t, q.Rows, 1)
	assert.Equal(t, 22.0, q.Rows[0].VATPct)
	assert.Equal(t, domain.Totals{Taxable: 180, VAT: 39.6, Total: 219.6}, q.Totals)
}

func TestAddRow_ExplicitZeroVAT(t *testing.T) {
	e, _ := newTestEngine(t)
	q, _ := e.CreateQuote("Bianchi", "Q1")

	q, err := e.AddRow(q.ID, RowInput{Description: "Esente", Quantity: 1, UnitPrice: 50, VATPct: vat(0)})
	require.NoError(t, err)
	assert.Equal(t, domain.Totals{Taxable: 50, VAT: 0, Total: 50}, q.Totals)
}

func TestAddRow_Validation(t *testing.T) {
	e, _ := newTestEngine(t)
	q, _ := e.CreateQuote("Bianchi", "Q1")

	tests := []struct {
		name string
		in   RowInput
	}{
		{"missing description", RowInput{Quantity: 1, UnitPrice: 1}},
		{"zero quantity", RowInput{Description: "x", UnitPrice: 1}},
		{"negative price", RowInput{Description: "x", Quantity: 1, UnitPrice: -1}},
		{"discount over 100", RowInput{Description: "x", Quantity: 1, DiscountPct: 120}},
		{"negative vat", RowInput{Description: "x", Quantity: 1, VATPct: vat(-1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.AddRow(q.ID, tt.in)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestUpdateAndRemoveRow(t *testing.T) {
	e, _ := newTestEngine(t)
	q, _ := e.CreateQuote("Bianchi", "Q1")
	_, err := e.AddRow(q.ID, RowInput{Description: "a", Quantity: 1, UnitPrice: 10, VATPct: vat(0)})
	require.NoError(t, err)
	_, err = e.AddRow(q.ID, RowInput{Description: "b", Quantity: 1, UnitPrice: 20, VATPct: vat(0)})
	require.NoError(t, err)

	q, err = e.UpdateRow(q.ID, 0, RowInput{Description: "a2", Quantity: 2, UnitPrice: 10, VATPct: vat(0)})
	require.NoError(t, err)
	assert.Equal(t, 40.0, q.Totals.Total)

	q, err = e.RemoveRow(q.ID, 1)
	require.NoError(t, err)
	require.Len(t, q.Rows, 1)
	assert.Equal(t, "a2", q.Rows[0].Description)
	assert.Equal(t, 20.0, q.Totals.Total)

	_, err = e.RemoveRow(q.ID, 5)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestLockedQuoteRejectsEdits(t *testing.T) {
	e, _ := newTestEngine(t)
	q, _ := e.CreateQuote("Bianchi", "Q1")
	_, err := e.AddRow(q.ID, RowInput{Description: "a", Quantity: 1, UnitPrice: 10})
	require.NoError(t, err)

	locked, err := e.Lock(q.ID)
	require.NoError(t, err)
	assert.True(t, locked.Locked())

	_, err = e.AddRow(q.ID, RowInput{Description: "b", Quantity: 1})
	assert.ErrorIs(t, err, domain.ErrQuoteLocked)
	_, err = e.UpdateRow(q.ID, 0, RowInput{Description: "b", Quantity: 1})
	assert.ErrorIs(t, err, domain.ErrQuoteLocked)
	_, err = e.RemoveRow(q.ID, 0)
	assert.ErrorIs(t, err, domain.ErrQuoteLocked)
	client := "Rossi"
	_, err = e.SetHeader(q.ID, HeaderInput{Client: &client})
	assert.ErrorIs(t, err, domain.ErrQuoteLocked)

	got, err := e.Get(q.ID)
	require.NoError(t, err)
	assert.Equal(t, locked, got)

	_, err = e.Unlock(q.ID)
	require.NoError(t, err)
	_, err = e.AddRow(q.ID, RowInput{Description: "b", Quantity: 1})
	assert.NoError(t, err)
}

func TestLock_Idempotent(t *testing.T) {
	e, _ := newTestEngine(t)
	q, _ := e.CreateQuote("Bianchi", "Q1")
	_, _ = e.AddRow(q.ID, RowInput{Description: "a", Quantity: 3, UnitPrice: 9.99})

	first, err := e.Lock(q.ID)
	require.NoError(t, err)
	second, err := e.Lock(q.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestTotals_Idempotent(t *testing.T) {
	e, _ := newTestEngine(t)
	q, _ := e.CreateQuote("Bianchi", "Q1")
	_, _ = e.AddRow(q.ID, RowInput{Description: "a", Quantity: 1.5, UnitPrice: 33.33, DiscountPct: 5})

	a, err := e.Totals(q.ID)
	require.NoError(t, err)
	b, err := e.Totals(q.ID)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSetHeader(t *testing.T) {
	e, _ := newTestEngine(t)
	q, _ := e.CreateQuote("Bianchi", "Q1")

	code, notes := "q2", " consegna entro maggio "
	q, err := e.SetHeader(q.ID, HeaderInput{JobCode: &code, Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, "Bianchi", q.Client)
	assert.Equal(t, "Q2", q.JobCode)
	assert.Equal(t, "consegna entro maggio", q.Notes)

	blank := ""
	_, err = e.SetHeader(q.ID, HeaderInput{Client: &blank})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestDuplicate_LockedQuote(t *testing.T) {
	e, s := newTestEngine(t)
	s.QuoteCounter = 7
	q, _ := e.CreateQuote("Bianchi", "Q1")
	_, _ = e.AddRow(q.ID, RowInput{Description: "a", Quantity: 2, UnitPrice: 100, DiscountPct: 10})
	src, err := e.Lock(q.ID)
	require.NoError(t, err)
	require.Equal(t, 7, src.Number)

	cp, err := e.Duplicate(q.ID)
	require.NoError(t, err)

	assert.NotEqual(t, src.ID, cp.ID)
	assert.Equal(t, 8, cp.Number)
	assert.Equal(t, domain.QuoteDraft, cp.Status)
	assert.Equal(t, src.Rows, cp.Rows)
	assert.Equal(t, src.Totals, cp.Totals)
	assert.True(t, cp.Date.After(src.Date))
	assert.Equal(t, cp.ID, s.SelectedQuoteID)

	// Editing the copy must not touch the source rows.
	_, err = e.UpdateRow(cp.ID, 0, RowInput{Description: "z", Quantity: 1, UnitPrice: 1})
	require.NoError(t, err)
	orig, _ := e.Get(src.ID)
	assert.Equal(t, "a", orig.Rows[0].Description)
}

func TestConfirmAsJob(t *testing.T) {
	e, s := newTestEngine(t)
	q, _ := e.CreateQuote("Bianchi", "q1")
	_, _ = e.AddRow(q.ID, RowInput{Description: "Posa", Quantity: 2, UnitPrice: 100, DiscountPct: 10})
	_, _ = e.AddRow(q.ID, RowInput{Description: "Trasporto", Quantity: 1, UnitPrice: 50, VATPct: vat(0)})

	job, err := e.ConfirmAsJob(q.ID)
	require.NoError(t, err)

	assert.Equal(t, "Preventivo #1 - Bianchi", job.Title)
	assert.Equal(t, "Bianchi", job.Client)
	assert.Equal(t, "Q1", job.JobCode)
	assert.Equal(t, 269.6, job.AgreedTotal)
	assert.Equal(t, "Da preventivo #1", job.Note)

	require.Len(t, s.JobLines, 2)
	for _, l := range s.JobLines {
		assert.Equal(t, job.ID, l.JobID)
		assert.Equal(t, domain.LineLabor, l.Kind)
		assert.Equal(t, domain.DefaultUnit, l.Unit)
	}
	assert.Equal(t, "Posa", s.JobLines[0].Description)
	assert.Equal(t, 100.0, s.JobLines[0].UnitPrice)

	got, _ := e.Get(q.ID)
	assert.True(t, got.Locked())
	assert.Equal(t, []string{"Bianchi"}, s.Directory.Clients)
}

func TestConfirmAsJob_EmptyQuote(t *testing.T) {
	e, s := newTestEngine(t)
	q, _ := e.CreateQuote("Bianchi", "Q1")

	job, err := e.ConfirmAsJob(q.ID)
	require.NoError(t, err)
	assert.Zero(t, job.AgreedTotal)
	require.Len(t, s.Jobs, 1)
	assert.Empty(t, s.JobLines)

	got, _ := e.Get(q.ID)
	assert.True(t, got.Locked())
}

func TestConfirmAsJob_FullDiscount(t *testing.T) {
	e, s := newTestEngine(t)
	q, _ := e.CreateQuote("Bianchi", "Q1")
	_, _ = e.AddRow(q.ID, RowInput{Description: "Omaggio", Quantity: 1, UnitPrice: 80, DiscountPct: 100})

	job, err := e.ConfirmAsJob(q.ID)
	require.NoError(t, err)
	assert.Zero(t, job.AgreedTotal)
	assert.Len(t, s.JobLines, 1)
}

func TestConfirmAsJob_SkipsBlankRows(t *testing.T) {
	e, s := newTestEngine(t)
	s.Quotes = append(s.Quotes, domain.Quote{
		ID: "q-loaded", Number: 1, Client: "Bianchi", JobCode: "Z1", Status: domain.QuoteDraft,
		Rows: []domain.QuoteRow{
			{Description: "Posa", Quantity: 1, UnitPrice: 100, VATPct: 22},
			{Description: "  ", Quantity: 1, UnitPrice: 50, VATPct: 22},
		},
	})

	job, err := e.ConfirmAsJob("q-loaded")
	require.NoError(t, err)
	assert.Equal(t, 183.0, job.AgreedTotal)

	require.Len(t, s.JobLines, 1)
	assert.Equal(t, "Posa", s.JobLines[0].Description)
	assert.True(t, s.Quotes[0].Locked())
}

func TestReset(t *testing.T) {
	e, _ := newTestEngine(t)
	q, _ := e.CreateQuote("Bianchi", "Q1")
	_, _ = e.AddRow(q.ID, RowInput{Description: "a", Quantity: 1, UnitPrice: 10})
	_, _ = e.Lock(q.ID)

	got, err := e.Reset(q.ID, false)
	require.NoError(t, err)
	assert.Empty(t, got.Rows)
	assert.Equal(t, domain.Totals{}, got.Totals)
	assert.Equal(t, domain.QuoteDraft, got.Status)
	assert.Equal(t, "Bianchi", got.Client)

	got, err = e.Reset(q.ID, true)
	require.NoError(t, err)
	assert.Empty(t, got.Client)
	assert.Empty(t, got.JobCode)
}

func TestDelete_SelectionFallsBack(t *testing.T) {
	e, s := newTestEngine(t)
	q1, _ := e.CreateQuote("A", "X")
	q2, _ := e.CreateQuote("B", "X")
	q3, _ := e.CreateQuote("C", "X")

	require.NoError(t, e.Select(q1.ID))
	require.NoError(t, e.Delete(q2.ID))
	assert.Equal(t, q1.ID, s.SelectedQuoteID)

	require.NoError(t, e.Delete(q1.ID))
	assert.Equal(t, q3.ID, s.SelectedQuoteID)

	require.NoError(t, e.Delete(q3.ID))
	assert.Empty(t, s.SelectedQuoteID)
	assert.Empty(t, e.List())
}

func TestNotFound(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.Lock("missing")
	var nf *domain.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "quote", nf.Kind)
	assert.ErrorIs(t, e.Select("missing"), domain.ErrNotFound)
	assert.ErrorIs(t, e.Delete("missing"), domain.ErrNotFound)
}

func TestWithDefaultVAT(t *testing.T) {
	s := domain.NewDefaultState()
	clock := testutil.NewClock(time.Time{})
	ids := testutil.NewSequenceIDs("q")
	e := New(s, workorder.New(s, directory.New(directory.DefaultLocale), ids, clock), ids, clock, WithDefaultVAT(10))

	q, _ := e.CreateQuote("Bianchi", "Q1")
	q, err := e.AddRow(q.ID, RowInput{Description: "a", Quantity: 1, UnitPrice: 100})
	require.NoError(t, err)
	assert.Equal(t, 110.0, q.Totals.Total)
}
