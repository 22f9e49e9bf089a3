// Package diagnostics builds a consistency report of a state: record
// counts, stored figures that disagree with their recomputation, and
// numbers outside their allowed range.
package diagnostics

import (
	"math"
	"time"

	"github.com/roach88/previa/internal/domain"
	"github.com/roach88/previa/internal/loader"
	"github.com/roach88/previa/internal/quote"
	"github.com/roach88/previa/internal/store"
	"github.com/roach88/previa/internal/workorder"
)

// tolerance is the largest difference between stored and recomputed
// amounts not reported as a mismatch.
const tolerance = 0.01

// Counts are record totals per entity and status.
type Counts struct {
	Jobs          int `json:"jobs"`
	JobsOpen      int `json:"jobsOpen"`
	JobsClosed    int `json:"jobsClosed"`
	JobsArchived  int `json:"jobsArchived"`
	Quotes        int `json:"quotes"`
	QuotesDraft   int `json:"quotesDraft"`
	QuotesLocked  int `json:"quotesLocked"`
	Movements     int `json:"movements"`
	JobPayments   int `json:"jobPayments"`
	JobLines      int `json:"jobLines"`
	PurchaseLines int `json:"purchaseLines"`
	Clients       int `json:"clients"`
	Suppliers     int `json:"suppliers"`
}

// QuoteMismatch is a quote whose stored totals differ from its rows.
type QuoteMismatch struct {
	ID       string        `json:"id"`
	Number   int           `json:"number"`
	Stored   domain.Totals `json:"stored"`
	Expected domain.Totals `json:"expected"`
}

// JobResidual is a job whose outstanding balance is implausible.
type JobResidual struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	AgreedTotal float64 `json:"agreedTotal"`
	Paid        float64 `json:"paid"`
	Residual    float64 `json:"residual"`
}

// InvalidNumber is a record carrying an out-of-range amount.
type InvalidNumber struct {
	Entity string  `json:"entity"`
	ID     string  `json:"id"`
	Field  string  `json:"field"`
	Value  float64 `json:"value"`
}

// Checks groups every anomaly found.
type Checks struct {
	QuoteTotalsMismatches []QuoteMismatch     `json:"quoteTotalsMismatches"`
	JobResiduals          []JobResidual       `json:"jobResiduals"`
	InvalidNumbers        []InvalidNumber     `json:"invalidNumbers"`
	OrphanMovements       []string            `json:"orphanMovements"`
	JobLinesPerJob        map[string]int      `json:"jobLinesPerJob"`
	Load                  *loader.Diagnostics `json:"load,omitempty"`
}

// Report is the full diagnostic document.
type Report struct {
	Version   int          `json:"version"`
	Timestamp time.Time    `json:"timestamp"`
	Storage   store.Status `json:"storage"`
	Counts    Counts       `json:"counts"`
	Checks    Checks       `json:"checks"`
	// Errors holds the most recent operation failures, oldest first.
	Errors []string `json:"errors"`
}

// Healthy reports whether the report found nothing to flag.
func (r Report) Healthy() bool {
	c := r.Checks
	return !r.Storage.Disabled && len(c.QuoteTotalsMismatches) == 0 && len(c.JobResiduals) == 0 &&
		len(c.InvalidNumbers) == 0 && len(c.OrphanMovements) == 0
}

// Input carries what Build needs besides the state.
type Input struct {
	Storage store.Status
	Load    *loader.Diagnostics
	Errors  []string
	Now     time.Time
}

// Build inspects s. It never modifies it.
func Build(s *domain.AppState, in Input) Report {
	r := Report{
		Version:   s.Version,
		Timestamp: in.Now.UTC(),
		Storage:   in.Storage,
		Counts:    count(s),
		Errors:    append([]string{}, in.Errors...),
		Checks: Checks{
			QuoteTotalsMismatches: quoteMismatches(s),
			JobResiduals:          jobResiduals(s),
			InvalidNumbers:        invalidNumbers(s),
			OrphanMovements:       orphanMovements(s),
			JobLinesPerJob:        make(map[string]int, len(s.Jobs)),
			Load:                  in.Load,
		},
	}
	for _, j := range s.Jobs {
		r.Checks.JobLinesPerJob[j.ID] = 0
	}
	for _, l := range s.JobLines {
		if _, ok := r.Checks.JobLinesPerJob[l.JobID]; ok {
			r.Checks.JobLinesPerJob[l.JobID]++
		}
	}
	return r
}

func count(s *domain.AppState) Counts {
	c := Counts{
		Jobs:          len(s.Jobs),
		Quotes:        len(s.Quotes),
		Movements:     len(s.Movements),
		JobPayments:   len(s.JobPayments),
		JobLines:      len(s.JobLines),
		PurchaseLines: len(s.PurchaseLines),
		Clients:       len(s.Directory.Clients),
		Suppliers:     len(s.Directory.Suppliers),
	}
	for _, j := range s.Jobs {
		switch j.Status {
		case domain.JobOpen:
			c.JobsOpen++
		case domain.JobClosed:
			c.JobsClosed++
		case domain.JobArchived:
			c.JobsArchived++
		}
	}
	for _, q := range s.Quotes {
		if q.Locked() {
			c.QuotesLocked++
		} else {
			c.QuotesDraft++
		}
	}
	return c
}

func differs(a, b float64) bool {
	return math.Abs(a-b) > tolerance
}

func quoteMismatches(s *domain.AppState) []QuoteMismatch {
	out := []QuoteMismatch{}
	for _, q := range s.Quotes {
		exp := quote.Compute(q.Rows)
		if differs(q.Totals.Taxable, exp.Taxable) || differs(q.Totals.VAT, exp.VAT) || differs(q.Totals.Total, exp.Total) {
			out = append(out, QuoteMismatch{ID: q.ID, Number: q.Number, Stored: q.Totals, Expected: exp})
		}
	}
	return out
}

// jobResiduals flags jobs paid beyond their agreed total, or whose
// residual is not a finite number.
func jobResiduals(s *domain.AppState) []JobResidual {
	out := []JobResidual{}
	for _, j := range s.Jobs {
		paid := workorder.Paid(s, j.ID)
		residual := domain.Sum(j.AgreedTotal, -paid)
		if !domain.IsFinite(j.AgreedTotal) || residual < -tolerance {
			out = append(out, JobResidual{ID: j.ID, Title: j.Title, AgreedTotal: j.AgreedTotal, Paid: paid, Residual: residual})
		}
	}
	return out
}

func invalidNumbers(s *domain.AppState) []InvalidNumber {
	out := []InvalidNumber{}
	bad := func(entity, id, field string, v float64, ok bool) {
		if !domain.IsFinite(v) || !ok {
			out = append(out, InvalidNumber{Entity: entity, ID: id, Field: field, Value: v})
		}
	}
	for _, p := range s.JobPayments {
		bad("jobPayment", p.ID, "amount", p.Amount, p.Amount > 0)
	}
	for _, l := range s.JobLines {
		bad("jobLine", l.ID, "qty", l.Quantity, l.Quantity >= 0)
		bad("jobLine", l.ID, "unitPrice", l.UnitPrice, l.UnitPrice >= 0)
	}
	for _, m := range s.Movements {
		bad("movement", m.ID, "amount", m.Amount, m.Amount >= 0)
	}
	for _, p := range s.PurchaseLines {
		bad("purchaseLine", p.ID, "total", p.Total(), p.Total() >= 0)
	}
	return out
}

// orphanMovements lists derived movements whose source record is gone.
func orphanMovements(s *domain.AppState) []string {
	payments := make(map[string]bool, len(s.JobPayments))
	for _, p := range s.JobPayments {
		payments[p.ID] = true
	}
	purchases := make(map[string]bool, len(s.PurchaseLines))
	for _, p := range s.PurchaseLines {
		purchases[p.ID] = true
	}
	out := []string{}
	for _, m := range s.Movements {
		if m.Source == nil {
			continue
		}
		switch {
		case m.Source.Kind == domain.SourceJobPayment && !payments[m.Source.ID],
			m.Source.Kind == domain.SourcePurchaseLine && !purchases[m.Source.ID]:
			out = append(out, m.ID)
		}
	}
	return out
}
