// Package workorder implements jobs, job payments, job lines and supplier
// purchases, and the Movements they emit.
//
// Job lifecycle:
//
//	open → closed     automatic, when a payment brings due to zero
//	open|closed → archived   explicit
//
// Nothing leaves archived. A closed job is never reopened automatically.
//
// Purchases are associated with jobs by job-code tag only. Two jobs
// sharing a tag see each other's purchases, and deleting either one
// deletes the purchases of both.
package workorder

import (
	"github.com/roach88/previa/internal/directory"
	"github.com/roach88/previa/internal/domain"
)

// Engine mutates the work-order collections of one AppState.
// It is not safe for concurrent use.
type Engine struct {
	state *domain.AppState
	names *directory.Registry
	ids   domain.IDGenerator
	clock domain.Clock
}

// New creates an Engine over state.
func New(state *domain.AppState, names *directory.Registry, ids domain.IDGenerator, clock domain.Clock) *Engine {
	return &Engine{state: state, names: names, ids: ids, clock: clock}
}

// Job returns the job with id.
func (e *Engine) Job(id string) (domain.Job, error) {
	i := e.state.FindJob(id)
	if i < 0 {
		return domain.Job{}, domain.NotFound("job", id)
	}
	return e.state.Jobs[i], nil
}
