package workorder

import (
	"time"

	"github.com/roach88/previa/internal/domain"
)

// PaymentInput carries the fields of a new job payment. A zero Date means
// today at midday UTC; an empty Method means DefaultPaymentMethod.
type PaymentInput struct {
	JobID  string
	Amount float64
	Method string
	Note   string
	Date   time.Time
}

// CreatePayment records a payment, emits exactly one inbound Movement
// sourced from it and closes the job when nothing is left due.
func (e *Engine) CreatePayment(in PaymentInput) (domain.JobPayment, error) {
	i := e.state.FindJob(in.JobID)
	if i < 0 {
		return domain.JobPayment{}, domain.NotFound("job", in.JobID)
	}
	if !domain.IsFinite(in.Amount) || in.Amount <= 0 {
		return domain.JobPayment{}, domain.Invalid("amount", in.Amount, "amount must be a positive number")
	}
	amount := domain.Round2(in.Amount)
	if amount <= 0 {
		return domain.JobPayment{}, domain.Invalid("amount", in.Amount, "amount rounds to zero")
	}

	date := in.Date
	if date.IsZero() {
		date = domain.Midday(e.clock.Now())
	}
	method := domain.Clean(in.Method)
	if method == "" {
		method = domain.DefaultPaymentMethod
	}

	job := e.state.Jobs[i]
	payment := domain.JobPayment{
		ID:     e.ids.Generate(),
		JobID:  job.ID,
		Date:   date,
		Amount: amount,
		Method: method,
		Note:   domain.Clean(in.Note),
	}
	e.state.JobPayments = append(e.state.JobPayments, payment)
	e.state.Movements = append(e.state.Movements, domain.Movement{
		ID:               e.ids.Generate(),
		Date:             date,
		Description:      "Incasso " + job.Title,
		JobCode:          job.JobCode,
		Amount:           amount,
		Direction:        domain.DirectionIn,
		CounterpartyKind: domain.CounterpartyClient,
		CounterpartyName: job.Client,
		Source:           &domain.SourceRef{Kind: domain.SourceJobPayment, ID: payment.ID},
	})

	if job.Status == domain.JobOpen && Due(e.state, job) <= 0 {
		e.state.Jobs[i].Status = domain.JobClosed
	}
	return payment, nil
}

// Payments lists the payments of jobID in insertion order.
func (e *Engine) Payments(jobID string) []domain.JobPayment {
	var out []domain.JobPayment
	for _, p := range e.state.JobPayments {
		if p.JobID == jobID {
			out = append(out, p)
		}
	}
	return out
}
