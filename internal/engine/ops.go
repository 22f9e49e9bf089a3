package engine

import (
	"context"

	"github.com/roach88/previa/internal/domain"
	"github.com/roach88/previa/internal/ledger"
	"github.com/roach88/previa/internal/quote"
	"github.com/roach88/previa/internal/workorder"
)

// Work orders.

// CreateJob opens a job and registers its client.
func (e *Engine) CreateJob(ctx context.Context, in workorder.JobInput) (job domain.Job, err error) {
	err = e.Mutate(ctx, "create-job", func(tx *Tx) (err error) {
		job, err = tx.Jobs.CreateJob(in)
		return err
	})
	return job, err
}

// UpdateJobNote replaces the note of a job.
func (e *Engine) UpdateJobNote(ctx context.Context, jobID, note string) (job domain.Job, err error) {
	err = e.Mutate(ctx, "update-job-note", func(tx *Tx) (err error) {
		job, err = tx.Jobs.UpdateNote(jobID, note)
		return err
	})
	return job, err
}

// ArchiveJob moves an open or closed job to archived.
func (e *Engine) ArchiveJob(ctx context.Context, jobID string) (job domain.Job, err error) {
	err = e.Mutate(ctx, "archive-job", func(tx *Tx) (err error) {
		job, err = tx.Jobs.ArchiveJob(jobID)
		return err
	})
	return job, err
}

// DeleteJobCascade removes a job and everything hanging off it,
// including purchases that share its job code.
func (e *Engine) DeleteJobCascade(ctx context.Context, jobID string) (res workorder.CascadeResult, err error) {
	err = e.Mutate(ctx, "delete-job", func(tx *Tx) (err error) {
		res, err = tx.Jobs.DeleteJobCascade(jobID)
		return err
	})
	return res, err
}

// CreatePayment records a client payment and its inbound movement. The
// job closes when nothing is left due.
func (e *Engine) CreatePayment(ctx context.Context, in workorder.PaymentInput) (p domain.JobPayment, err error) {
	err = e.Mutate(ctx, "create-payment", func(tx *Tx) (err error) {
		p, err = tx.Jobs.CreatePayment(in)
		return err
	})
	return p, err
}

// CreateJobLine adds a material or labor line to a job.
func (e *Engine) CreateJobLine(ctx context.Context, in workorder.LineInput) (l domain.JobLine, err error) {
	err = e.Mutate(ctx, "create-job-line", func(tx *Tx) (err error) {
		l, err = tx.Jobs.CreateJobLine(in)
		return err
	})
	return l, err
}

// ToggleJobLineDone flips the done flag of a job line.
func (e *Engine) ToggleJobLineDone(ctx context.Context, id string) (l domain.JobLine, err error) {
	err = e.Mutate(ctx, "toggle-job-line", func(tx *Tx) (err error) {
		l, err = tx.Jobs.ToggleJobLineDone(id)
		return err
	})
	return l, err
}

// DeleteJobLine removes a job line.
func (e *Engine) DeleteJobLine(ctx context.Context, id string) error {
	return e.Mutate(ctx, "delete-job-line", func(tx *Tx) error {
		return tx.Jobs.DeleteJobLine(id)
	})
}

// CreatePurchaseLine records a supplier purchase and its outbound movement.
func (e *Engine) CreatePurchaseLine(ctx context.Context, in workorder.PurchaseInput) (p domain.PurchaseLine, err error) {
	err = e.Mutate(ctx, "create-purchase", func(tx *Tx) (err error) {
		p, err = tx.Jobs.CreatePurchaseLine(in)
		return err
	})
	return p, err
}

// DeletePurchaseLine removes a purchase and returns how many movements
// went with it.
func (e *Engine) DeletePurchaseLine(ctx context.Context, id string) (removed int, err error) {
	err = e.Mutate(ctx, "delete-purchase", func(tx *Tx) (err error) {
		removed, err = tx.Jobs.DeletePurchaseLine(id)
		return err
	})
	return removed, err
}

// JobReport summarizes one job.
func (e *Engine) JobReport(jobID string) (r workorder.Report, err error) {
	e.View(func(s *domain.AppState) {
		r, err = workorder.New(s, e.names, e.ids, e.clock).Report(jobID)
	})
	return r, opError("job-report", err)
}

// ListJobs returns matching jobs, newest first.
func (e *Engine) ListJobs(f workorder.JobFilter) []domain.Job {
	return workorder.New(e.Snapshot(), e.names, e.ids, e.clock).ListJobs(f)
}

// OpenDueTotal is the amount still due across open jobs.
func (e *Engine) OpenDueTotal() float64 {
	return workorder.New(e.Snapshot(), e.names, e.ids, e.clock).OpenDueTotal()
}

// Ledger.

// AddMovement inserts a manual movement with no source.
func (e *Engine) AddMovement(ctx context.Context, in ledger.MovementInput) (m domain.Movement, err error) {
	err = e.Mutate(ctx, "add-movement", func(tx *Tx) (err error) {
		m, err = ledger.AddMovement(tx.State, tx.IDs, tx.Clock, in)
		return err
	})
	return m, err
}

// DeleteMovement removes a manual movement.
func (e *Engine) DeleteMovement(ctx context.Context, id string) error {
	return e.Mutate(ctx, "delete-movement", func(tx *Tx) error {
		return ledger.DeleteManual(tx.State, id)
	})
}

// SetOpeningBalance sets the balance the ledger starts from.
func (e *Engine) SetOpeningBalance(ctx context.Context, amount float64) error {
	return e.Mutate(ctx, "set-opening-balance", func(tx *Tx) error {
		if !domain.IsFinite(amount) {
			return domain.Invalid("openingBalance", amount, "must be a finite number")
		}
		tx.State.OpeningBalance = domain.Round2(amount)
		return nil
	})
}

// SetCompany replaces the company profile. An empty name takes the
// default.
func (e *Engine) SetCompany(ctx context.Context, c domain.CompanyProfile) error {
	return e.Mutate(ctx, "set-company", func(tx *Tx) error {
		c.Name = domain.Clean(c.Name)
		if c.Name == "" {
			c.Name = domain.DefaultCompanyName
		}
		tx.State.Company = c
		return nil
	})
}

// AddName registers a counterparty in the directory. It reports whether
// the name was new.
func (e *Engine) AddName(ctx context.Context, kind domain.CounterpartyKind, name string) (added bool, err error) {
	err = e.Mutate(ctx, "add-name", func(tx *Tx) error {
		if kind != domain.CounterpartyClient && kind != domain.CounterpartySupplier {
			return domain.Invalid("kind", kind, "must be client or supplier")
		}
		if domain.Clean(name) == "" {
			return domain.Invalid("name", name, "is required")
		}
		added = tx.Names.Upsert(&tx.State.Directory, kind, name)
		return nil
	})
	return added, err
}

// Suggest returns directory names of kind matching query.
func (e *Engine) Suggest(kind domain.CounterpartyKind, query string, limit int) (out []string) {
	e.View(func(s *domain.AppState) {
		out = e.names.Suggest(&s.Directory, kind, query, limit)
	})
	return out
}

// Quotes.

// CreateQuote opens a draft quote with the next number and selects it.
func (e *Engine) CreateQuote(ctx context.Context, client, jobCode string) (q domain.Quote, err error) {
	err = e.Mutate(ctx, "create-quote", func(tx *Tx) (err error) {
		q, err = tx.Quotes.CreateQuote(client, jobCode)
		return err
	})
	return q, err
}

// AddQuoteRow appends a row to a draft quote.
func (e *Engine) AddQuoteRow(ctx context.Context, id string, in quote.RowInput) (q domain.Quote, err error) {
	err = e.Mutate(ctx, "add-quote-row", func(tx *Tx) (err error) {
		q, err = tx.Quotes.AddRow(id, in)
		return err
	})
	return q, err
}

// UpdateQuoteRow replaces the row at index.
func (e *Engine) UpdateQuoteRow(ctx context.Context, id string, index int, in quote.RowInput) (q domain.Quote, err error) {
	err = e.Mutate(ctx, "update-quote-row", func(tx *Tx) (err error) {
		q, err = tx.Quotes.UpdateRow(id, index, in)
		return err
	})
	return q, err
}

// RemoveQuoteRow deletes the row at index.
func (e *Engine) RemoveQuoteRow(ctx context.Context, id string, index int) (q domain.Quote, err error) {
	err = e.Mutate(ctx, "remove-quote-row", func(tx *Tx) (err error) {
		q, err = tx.Quotes.RemoveRow(id, index)
		return err
	})
	return q, err
}

// SetQuoteHeader updates client, job code and notes of a draft quote.
func (e *Engine) SetQuoteHeader(ctx context.Context, id string, in quote.HeaderInput) (q domain.Quote, err error) {
	err = e.Mutate(ctx, "set-quote-header", func(tx *Tx) (err error) {
		q, err = tx.Quotes.SetHeader(id, in)
		return err
	})
	return q, err
}

// LockQuote freezes a quote against edits.
func (e *Engine) LockQuote(ctx context.Context, id string) (q domain.Quote, err error) {
	err = e.Mutate(ctx, "lock-quote", func(tx *Tx) (err error) {
		q, err = tx.Quotes.Lock(id)
		return err
	})
	return q, err
}

// UnlockQuote returns a locked quote to draft.
func (e *Engine) UnlockQuote(ctx context.Context, id string) (q domain.Quote, err error) {
	err = e.Mutate(ctx, "unlock-quote", func(tx *Tx) (err error) {
		q, err = tx.Quotes.Unlock(id)
		return err
	})
	return q, err
}

// DuplicateQuote copies a quote as a new numbered draft.
func (e *Engine) DuplicateQuote(ctx context.Context, id string) (q domain.Quote, err error) {
	err = e.Mutate(ctx, "duplicate-quote", func(tx *Tx) (err error) {
		q, err = tx.Quotes.Duplicate(id)
		return err
	})
	return q, err
}

// ConfirmQuoteAsJob converts a quote into a job with one labor line per
// row and locks the quote, all in one mutation.
func (e *Engine) ConfirmQuoteAsJob(ctx context.Context, id string) (job domain.Job, err error) {
	err = e.Mutate(ctx, "confirm-quote", func(tx *Tx) (err error) {
		job, err = tx.Quotes.ConfirmAsJob(id)
		return err
	})
	return job, err
}

// ResetQuote clears rows and totals, and the header too with clearHeader.
func (e *Engine) ResetQuote(ctx context.Context, id string, clearHeader bool) (q domain.Quote, err error) {
	err = e.Mutate(ctx, "reset-quote", func(tx *Tx) (err error) {
		q, err = tx.Quotes.Reset(id, clearHeader)
		return err
	})
	return q, err
}

// DeleteQuote removes a quote. A selected quote hands the selection to
// the highest-numbered remaining one.
func (e *Engine) DeleteQuote(ctx context.Context, id string) error {
	return e.Mutate(ctx, "delete-quote", func(tx *Tx) error {
		return tx.Quotes.Delete(id)
	})
}

// SelectQuote marks a quote as the current one.
func (e *Engine) SelectQuote(ctx context.Context, id string) error {
	return e.Mutate(ctx, "select-quote", func(tx *Tx) error {
		return tx.Quotes.Select(id)
	})
}

// QuoteTotals recomputes the totals of a quote from its rows.
func (e *Engine) QuoteTotals(id string) (t domain.Totals, err error) {
	e.View(func(s *domain.AppState) {
		i := s.FindQuote(id)
		if i < 0 {
			err = domain.NotFound("quote", id)
			return
		}
		t = quote.Compute(s.Quotes[i].Rows)
	})
	return t, opError("quote-totals", err)
}

// Quote returns a copy of one quote with fresh totals.
func (e *Engine) Quote(id string) (domain.Quote, error) {
	q, err := quote.New(e.Snapshot(), nil, e.ids, e.clock).Get(id)
	return q, opError("get-quote", err)
}

// ListQuotes returns every quote in creation order.
func (e *Engine) ListQuotes() []domain.Quote {
	return quote.New(e.Snapshot(), nil, e.ids, e.clock).List()
}
