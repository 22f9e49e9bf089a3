package workorder

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/previa/internal/domain"
)

// JobInput carries the fields of a new job.
type JobInput struct {
	Title       string
	Client      string
	JobCode     string
	AgreedTotal float64
	Note        string
}

// CreateJob validates in, registers the client and appends an open job.
// The agreed total must be finite and not negative; it is rounded to the cent.
func (e *Engine) CreateJob(in JobInput) (domain.Job, error) {
	title := domain.Clean(in.Title)
	client := domain.Clean(in.Client)
	code := domain.NormalizeJobCode(in.JobCode)
	switch {
	case title == "":
		return domain.Job{}, domain.Invalid("title", in.Title, "title is required")
	case client == "":
		return domain.Job{}, domain.Invalid("client", in.Client, "client is required")
	case code == "":
		return domain.Job{}, domain.Invalid("jobCode", in.JobCode, "job code is required")
	case !domain.IsFinite(in.AgreedTotal) || in.AgreedTotal < 0:
		return domain.Job{}, domain.Invalid("agreedTotal", in.AgreedTotal, "agreed total must not be negative")
	}

	job := domain.Job{
		ID:          e.ids.Generate(),
		Title:       title,
		JobCode:     code,
		Client:      client,
		AgreedTotal: domain.Round2(in.AgreedTotal),
		Status:      domain.JobOpen,
		Note:        domain.Clean(in.Note),
		CreatedAt:   e.clock.Now(),
	}
	e.names.Upsert(&e.state.Directory, domain.CounterpartyClient, client)
	e.state.Jobs = append(e.state.Jobs, job)
	return job, nil
}

// UpdateNote replaces the note of a job.
func (e *Engine) UpdateNote(jobID, note string) (domain.Job, error) {
	i := e.state.FindJob(jobID)
	if i < 0 {
		return domain.Job{}, domain.NotFound("job", jobID)
	}
	e.state.Jobs[i].Note = domain.Clean(note)
	return e.state.Jobs[i], nil
}

// ArchiveJob moves an open or closed job to archived.
func (e *Engine) ArchiveJob(jobID string) (domain.Job, error) {
	i := e.state.FindJob(jobID)
	if i < 0 {
		return domain.Job{}, domain.NotFound("job", jobID)
	}
	if e.state.Jobs[i].Status == domain.JobArchived {
		return domain.Job{}, fmt.Errorf("job %s is already archived: %w", jobID, domain.ErrInvalidTransition)
	}
	e.state.Jobs[i].Status = domain.JobArchived
	return e.state.Jobs[i], nil
}

// Paid sums the payments recorded against jobID.
func (e *Engine) Paid(jobID string) float64 {
	return Paid(e.state, jobID)
}

// Due is max(0, agreedTotal − paid) for jobID.
func (e *Engine) Due(jobID string) (float64, error) {
	i := e.state.FindJob(jobID)
	if i < 0 {
		return 0, domain.NotFound("job", jobID)
	}
	return Due(e.state, e.state.Jobs[i]), nil
}

// Paid sums the payments recorded against jobID in s.
func Paid(s *domain.AppState, jobID string) float64 {
	var amounts []float64
	for _, p := range s.JobPayments {
		if p.JobID == jobID {
			amounts = append(amounts, p.Amount)
		}
	}
	return domain.Sum(amounts...)
}

// Due is max(0, job.AgreedTotal − Σ payments) in s.
func Due(s *domain.AppState, job domain.Job) float64 {
	due := domain.Sum(job.AgreedTotal, -Paid(s, job.ID))
	if due < 0 {
		return 0
	}
	return due
}

// JobFilter selects jobs for ListJobs. Zero values match everything.
type JobFilter struct {
	Status domain.JobStatus
	// Search matches title, client or job code, case-insensitively.
	Search string
}

// ListJobs returns matching jobs, newest first.
func (e *Engine) ListJobs(f JobFilter) []domain.Job {
	q := strings.ToLower(strings.TrimSpace(f.Search))
	var out []domain.Job
	for _, j := range e.state.Jobs {
		if f.Status != "" && j.Status != f.Status {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(j.Title+" "+j.Client+" "+j.JobCode), q) {
			continue
		}
		out = append(out, j)
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].CreatedAt.After(out[b].CreatedAt)
	})
	return out
}

// OpenDueTotal sums what is still owed on open jobs.
func (e *Engine) OpenDueTotal() float64 {
	var dues []float64
	for _, j := range e.state.Jobs {
		if j.Status == domain.JobOpen {
			dues = append(dues, Due(e.state, j))
		}
	}
	return domain.Sum(dues...)
}
