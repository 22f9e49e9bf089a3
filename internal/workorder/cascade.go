package workorder

import (
	"github.com/roach88/previa/internal/domain"
	"github.com/roach88/previa/internal/ledger"
)

// CascadeResult counts what DeleteJobCascade removed.
type CascadeResult struct {
	JobID     string `json:"jobId"`
	Payments  int    `json:"payments"`
	Movements int    `json:"movements"`
	Lines     int    `json:"lines"`
	Purchases int    `json:"purchases"`
}

// DeleteJobCascade removes a job together with its payments, the
// movements sourced from those payments, its lines and every purchase
// whose tag matches the job's tag case-insensitively.
//
// Movements emitted by the removed purchases are kept: the ledger still
// records the cash that left. DeletePurchaseLine removes both.
func (e *Engine) DeleteJobCascade(jobID string) (CascadeResult, error) {
	i := e.state.FindJob(jobID)
	if i < 0 {
		return CascadeResult{}, domain.NotFound("job", jobID)
	}
	job := e.state.Jobs[i]
	res := CascadeResult{JobID: jobID}

	e.state.Jobs = append(e.state.Jobs[:i], e.state.Jobs[i+1:]...)

	paymentIDs := make(map[string]bool)
	keptPayments := e.state.JobPayments[:0]
	for _, p := range e.state.JobPayments {
		if p.JobID == jobID {
			paymentIDs[p.ID] = true
			continue
		}
		keptPayments = append(keptPayments, p)
	}
	e.state.JobPayments = keptPayments
	res.Payments = len(paymentIDs)
	res.Movements = ledger.RemoveBySource(e.state, domain.SourceJobPayment, paymentIDs)

	keptLines := e.state.JobLines[:0]
	for _, l := range e.state.JobLines {
		if l.JobID == jobID {
			res.Lines++
			continue
		}
		keptLines = append(keptLines, l)
	}
	e.state.JobLines = keptLines

	keptPurchases := e.state.PurchaseLines[:0]
	for _, p := range e.state.PurchaseLines {
		if domain.SameJobCode(p.JobCode, job.JobCode) {
			res.Purchases++
			continue
		}
		keptPurchases = append(keptPurchases, p)
	}
	e.state.PurchaseLines = keptPurchases

	return res, nil
}
