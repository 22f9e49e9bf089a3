package workorder

import (
	"github.com/roach88/previa/internal/domain"
)

// Report is the per-job summary printed on a job sheet.
type Report struct {
	Job       domain.Job            `json:"job"`
	Payments  []domain.JobPayment   `json:"payments"`
	Lines     []domain.JobLine      `json:"lines"`
	Purchases []domain.PurchaseLine `json:"purchases"`
	Paid      float64               `json:"paid"`
	Due       float64               `json:"due"`
	LinesCost float64               `json:"linesCost"`
	DoneLines int                   `json:"doneLines"`
	DoneCost  float64               `json:"doneCost"`
	Purchased float64               `json:"purchased"`
}

// Report builds the summary of jobID.
func (e *Engine) Report(jobID string) (Report, error) {
	job, err := e.Job(jobID)
	if err != nil {
		return Report{}, err
	}
	r := Report{
		Job:       job,
		Payments:  e.Payments(jobID),
		Lines:     e.Lines(jobID),
		Purchases: PurchasesForJob(e.state, job.JobCode),
		Paid:      e.Paid(jobID),
		Due:       Due(e.state, job),
	}
	var all, done, bought []float64
	for _, l := range r.Lines {
		all = append(all, l.Total())
		if l.Done {
			r.DoneLines++
			done = append(done, l.Total())
		}
	}
	for _, p := range r.Purchases {
		bought = append(bought, p.Total())
	}
	r.LinesCost = domain.Sum(all...)
	r.DoneCost = domain.Sum(done...)
	r.Purchased = domain.Sum(bought...)
	return r, nil
}
