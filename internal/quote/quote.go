// Package quote implements sales quotes: rows, tax totals, lock/unlock,
// duplication and conversion into a work order.
//
// Totals are derived data. Every operation that changes rows recomputes
// them, and Totals always recomputes before returning.
package quote

import (
	"errors"
	"fmt"

	"github.com/roach88/previa/internal/domain"
	"github.com/roach88/previa/internal/workorder"
)

// WorkOrders is the part of the work-order engine a quote confirmation
// needs.
type WorkOrders interface {
	CreateJob(in workorder.JobInput) (domain.Job, error)
	CreateJobLine(in workorder.LineInput) (domain.JobLine, error)
}

// Engine mutates the quotes of one AppState. It is not safe for
// concurrent use.
type Engine struct {
	state      *domain.AppState
	jobs       WorkOrders
	ids        domain.IDGenerator
	clock      domain.Clock
	defaultVAT float64
}

// Option configures an Engine.
type Option func(*Engine)

// WithDefaultVAT sets the VAT percent applied to rows that do not carry one.
func WithDefaultVAT(pct float64) Option {
	return func(e *Engine) {
		e.defaultVAT = pct
	}
}

// New creates an Engine over state.
func New(state *domain.AppState, jobs WorkOrders, ids domain.IDGenerator, clock domain.Clock, opts ...Option) *Engine {
	e := &Engine{
		state:      state,
		jobs:       jobs,
		ids:        ids,
		clock:      clock,
		defaultVAT: domain.DefaultVATPct,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RowInput carries a quote row. A nil VATPct means the default rate.
type RowInput struct {
	Description string
	Quantity    float64
	UnitPrice   float64
	DiscountPct float64
	VATPct      *float64
}

// HeaderInput carries header edits. Nil fields are left unchanged.
type HeaderInput struct {
	Client  *string
	JobCode *string
	Notes   *string
}

func (e *Engine) find(id string) (int, error) {
	i := e.state.FindQuote(id)
	if i < 0 {
		return -1, domain.NotFound("quote", id)
	}
	return i, nil
}

func (e *Engine) editable(id string) (int, error) {
	i, err := e.find(id)
	if err != nil {
		return -1, err
	}
	if e.state.Quotes[i].Locked() {
		return -1, fmt.Errorf("quote #%d: %w", e.state.Quotes[i].Number, domain.ErrQuoteLocked)
	}
	return i, nil
}

// Get returns the quote with id, with freshly computed totals.
func (e *Engine) Get(id string) (domain.Quote, error) {
	i, err := e.find(id)
	if err != nil {
		return domain.Quote{}, err
	}
	e.recalc(i)
	return e.state.Quotes[i], nil
}

// Totals recomputes and returns the totals of a quote.
func (e *Engine) Totals(id string) (domain.Totals, error) {
	q, err := e.Get(id)
	if err != nil {
		return domain.Totals{}, err
	}
	return q.Totals, nil
}

func (e *Engine) recalc(i int) {
	e.state.Quotes[i].Totals = Compute(e.state.Quotes[i].Rows)
}

// CreateQuote allocates the next number and appends an empty draft,
// which becomes the selected quote.
func (e *Engine) CreateQuote(client, jobCode string) (domain.Quote, error) {
	client = domain.Clean(client)
	code := domain.NormalizeJobCode(jobCode)
	if client == "" {
		return domain.Quote{}, domain.Invalid("client", client, "client is required")
	}
	if code == "" {
		return domain.Quote{}, domain.Invalid("jobCode", jobCode, "job code is required")
	}
	q := domain.Quote{
		ID:      e.ids.Generate(),
		Number:  e.nextNumber(),
		Date:    e.clock.Now(),
		Client:  client,
		JobCode: code,
		Status:  domain.QuoteDraft,
		Rows:    []domain.QuoteRow{},
	}
	e.state.Quotes = append(e.state.Quotes, q)
	e.state.SelectedQuoteID = q.ID
	return q, nil
}

func (e *Engine) nextNumber() int {
	if e.state.QuoteCounter < 1 {
		e.state.QuoteCounter = 1
	}
	n := e.state.QuoteCounter
	e.state.QuoteCounter++
	return n
}

func (e *Engine) row(in RowInput) (domain.QuoteRow, error) {
	desc := domain.Clean(in.Description)
	vat := e.defaultVAT
	if in.VATPct != nil {
		vat = *in.VATPct
	}
	switch {
	case desc == "":
		return domain.QuoteRow{}, domain.Invalid("description", in.Description, "description is required")
	case !domain.IsFinite(in.Quantity) || in.Quantity <= 0:
		return domain.QuoteRow{}, domain.Invalid("qty", in.Quantity, "quantity must be a positive number")
	case !domain.IsFinite(in.UnitPrice) || in.UnitPrice < 0:
		return domain.QuoteRow{}, domain.Invalid("unitPrice", in.UnitPrice, "unit price must not be negative")
	case !domain.IsFinite(in.DiscountPct) || in.DiscountPct < 0 || in.DiscountPct > 100:
		return domain.QuoteRow{}, domain.Invalid("discountPct", in.DiscountPct, "discount must be between 0 and 100")
	case !domain.IsFinite(vat) || vat < 0:
		return domain.QuoteRow{}, domain.Invalid("vatPct", vat, "VAT must not be negative")
	}
	return domain.QuoteRow{
		Description: desc,
		Quantity:    in.Quantity,
		UnitPrice:   in.UnitPrice,
		DiscountPct: in.DiscountPct,
		VATPct:      vat,
	}, nil
}

// AddRow appends a row to a draft quote.
func (e *Engine) AddRow(id string, in RowInput) (domain.Quote, error) {
	i, err := e.editable(id)
	if err != nil {
		return domain.Quote{}, err
	}
	r, err := e.row(in)
	if err != nil {
		return domain.Quote{}, err
	}
	e.state.Quotes[i].Rows = append(e.state.Quotes[i].Rows, r)
	e.recalc(i)
	return e.state.Quotes[i], nil
}

// UpdateRow replaces the row at index of a draft quote.
func (e *Engine) UpdateRow(id string, index int, in RowInput) (domain.Quote, error) {
	i, err := e.editable(id)
	if err != nil {
		return domain.Quote{}, err
	}
	if index < 0 || index >= len(e.state.Quotes[i].Rows) {
		return domain.Quote{}, domain.Invalid("index", index, "row index out of range")
	}
	r, err := e.row(in)
	if err != nil {
		return domain.Quote{}, err
	}
	e.state.Quotes[i].Rows[index] = r
	e.recalc(i)
	return e.state.Quotes[i], nil
}

// RemoveRow deletes the row at index of a draft quote.
func (e *Engine) RemoveRow(id string, index int) (domain.Quote, error) {
	i, err := e.editable(id)
	if err != nil {
		return domain.Quote{}, err
	}
	rows := e.state.Quotes[i].Rows
	if index < 0 || index >= len(rows) {
		return domain.Quote{}, domain.Invalid("index", index, "row index out of range")
	}
	e.state.Quotes[i].Rows = append(rows[:index], rows[index+1:]...)
	e.recalc(i)
	return e.state.Quotes[i], nil
}

// SetHeader edits client, job code or notes of a draft quote. Client and
// job code cannot be blanked.
func (e *Engine) SetHeader(id string, in HeaderInput) (domain.Quote, error) {
	i, err := e.editable(id)
	if err != nil {
		return domain.Quote{}, err
	}
	q := e.state.Quotes[i]
	if in.Client != nil {
		if q.Client = domain.Clean(*in.Client); q.Client == "" {
			return domain.Quote{}, domain.Invalid("client", *in.Client, "client is required")
		}
	}
	if in.JobCode != nil {
		if q.JobCode = domain.NormalizeJobCode(*in.JobCode); q.JobCode == "" {
			return domain.Quote{}, domain.Invalid("jobCode", *in.JobCode, "job code is required")
		}
	}
	if in.Notes != nil {
		q.Notes = domain.Clean(*in.Notes)
	}
	e.state.Quotes[i] = q
	return q, nil
}

// Lock recomputes totals and freezes the quote.
func (e *Engine) Lock(id string) (domain.Quote, error) {
	i, err := e.find(id)
	if err != nil {
		return domain.Quote{}, err
	}
	e.recalc(i)
	e.state.Quotes[i].Status = domain.QuoteLocked
	return e.state.Quotes[i], nil
}

// Unlock returns a quote to draft.
func (e *Engine) Unlock(id string) (domain.Quote, error) {
	i, err := e.find(id)
	if err != nil {
		return domain.Quote{}, err
	}
	e.state.Quotes[i].Status = domain.QuoteDraft
	return e.state.Quotes[i], nil
}

// Duplicate copies rows and totals into a new draft with its own id,
// number and date. The copy becomes the selected quote.
func (e *Engine) Duplicate(id string) (domain.Quote, error) {
	i, err := e.find(id)
	if err != nil {
		return domain.Quote{}, err
	}
	e.recalc(i)
	src := e.state.Quotes[i]
	cp := src
	cp.ID = e.ids.Generate()
	cp.Number = e.nextNumber()
	cp.Status = domain.QuoteDraft
	cp.Date = e.clock.Now()
	cp.Rows = append([]domain.QuoteRow{}, src.Rows...)
	e.state.Quotes = append(e.state.Quotes, cp)
	e.state.SelectedQuoteID = cp.ID
	return cp, nil
}

// ConfirmAsJob converts a quote into a job: the agreed total is the quote
// total and each row becomes a labor line. Rows that cannot form a line,
// such as a blank description, are skipped. The quote ends up locked.
func (e *Engine) ConfirmAsJob(id string) (domain.Job, error) {
	i, err := e.find(id)
	if err != nil {
		return domain.Job{}, err
	}
	e.recalc(i)
	q := e.state.Quotes[i]

	job, err := e.jobs.CreateJob(workorder.JobInput{
		Title:       fmt.Sprintf("Preventivo #%d - %s", q.Number, q.Client),
		Client:      q.Client,
		JobCode:     q.JobCode,
		AgreedTotal: q.Totals.Total,
		Note:        fmt.Sprintf("Da preventivo #%d", q.Number),
	})
	if err != nil {
		return domain.Job{}, fmt.Errorf("confirm quote #%d: %w", q.Number, err)
	}
	for _, r := range q.Rows {
		if _, err := e.jobs.CreateJobLine(workorder.LineInput{
			JobID:       job.ID,
			Kind:        domain.LineLabor,
			Description: r.Description,
			Quantity:    r.Quantity,
			Unit:        domain.DefaultUnit,
			UnitPrice:   r.UnitPrice,
		}); err != nil {
			if errors.Is(err, domain.ErrInvalidInput) {
				continue
			}
			return domain.Job{}, fmt.Errorf("confirm quote #%d: %w", q.Number, err)
		}
	}
	e.state.Quotes[i].Status = domain.QuoteLocked
	return job, nil
}

// Reset clears rows and totals and returns the quote to draft. With
// clearHeader the client, job code and notes are blanked too.
func (e *Engine) Reset(id string, clearHeader bool) (domain.Quote, error) {
	i, err := e.find(id)
	if err != nil {
		return domain.Quote{}, err
	}
	q := &e.state.Quotes[i]
	q.Status = domain.QuoteDraft
	q.Rows = []domain.QuoteRow{}
	q.Totals = domain.Totals{}
	if clearHeader {
		q.Client, q.JobCode, q.Notes = "", "", ""
	}
	return *q, nil
}

// Delete removes a quote. If it was selected, the most recently created
// remaining quote (highest number) becomes selected, or none.
func (e *Engine) Delete(id string) error {
	i, err := e.find(id)
	if err != nil {
		return err
	}
	e.state.Quotes = append(e.state.Quotes[:i], e.state.Quotes[i+1:]...)
	if e.state.SelectedQuoteID == id {
		e.state.SelectedQuoteID = ""
		best := 0
		for _, q := range e.state.Quotes {
			if q.Number > best {
				best = q.Number
				e.state.SelectedQuoteID = q.ID
			}
		}
	}
	return nil
}

// Select makes id the selected quote.
func (e *Engine) Select(id string) error {
	if _, err := e.find(id); err != nil {
		return err
	}
	e.state.SelectedQuoteID = id
	return nil
}

// List returns every quote in creation order with fresh totals.
func (e *Engine) List() []domain.Quote {
	out := make([]domain.Quote, 0, len(e.state.Quotes))
	for i := range e.state.Quotes {
		e.recalc(i)
		out = append(out, e.state.Quotes[i])
	}
	return out
}
