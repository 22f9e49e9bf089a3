package workorder

import (
	"github.com/roach88/previa/internal/domain"
)

// LineInput carries the fields of a new job line.
type LineInput struct {
	JobID       string
	Kind        domain.LineKind
	Description string
	Quantity    float64
	Unit        string
	UnitPrice   float64
	Note        string
}

// CreateJobLine appends a line to an existing job. Lines have no ledger
// effect.
func (e *Engine) CreateJobLine(in LineInput) (domain.JobLine, error) {
	if e.state.FindJob(in.JobID) < 0 {
		return domain.JobLine{}, domain.NotFound("job", in.JobID)
	}
	desc := domain.Clean(in.Description)
	switch {
	case desc == "":
		return domain.JobLine{}, domain.Invalid("description", in.Description, "description is required")
	case !domain.IsFinite(in.Quantity) || in.Quantity < 0:
		return domain.JobLine{}, domain.Invalid("qty", in.Quantity, "quantity must be a positive number")
	case !domain.IsFinite(in.UnitPrice) || in.UnitPrice < 0:
		return domain.JobLine{}, domain.Invalid("unitPrice", in.UnitPrice, "unit price must not be negative")
	}

	kind := in.Kind
	if !kind.IsValid() {
		kind = domain.LineMaterial
	}
	qty := in.Quantity
	if qty == 0 {
		qty = 1
	}
	unit := domain.Clean(in.Unit)
	if unit == "" {
		unit = domain.DefaultUnit
	}

	line := domain.JobLine{
		ID:          e.ids.Generate(),
		JobID:       in.JobID,
		Kind:        kind,
		Description: desc,
		Quantity:    qty,
		Unit:        unit,
		UnitPrice:   in.UnitPrice,
		Note:        domain.Clean(in.Note),
		CreatedAt:   e.clock.Now(),
	}
	e.state.JobLines = append(e.state.JobLines, line)
	return line, nil
}

// ToggleJobLineDone flips the done flag of a line.
func (e *Engine) ToggleJobLineDone(id string) (domain.JobLine, error) {
	for i := range e.state.JobLines {
		if e.state.JobLines[i].ID == id {
			e.state.JobLines[i].Done = !e.state.JobLines[i].Done
			return e.state.JobLines[i], nil
		}
	}
	return domain.JobLine{}, domain.NotFound("job line", id)
}

// DeleteJobLine removes a line.
func (e *Engine) DeleteJobLine(id string) error {
	for i := range e.state.JobLines {
		if e.state.JobLines[i].ID == id {
			e.state.JobLines = append(e.state.JobLines[:i], e.state.JobLines[i+1:]...)
			return nil
		}
	}
	return domain.NotFound("job line", id)
}

// Lines lists the lines of jobID in insertion order.
func (e *Engine) Lines(jobID string) []domain.JobLine {
	var out []domain.JobLine
	for _, l := range e.state.JobLines {
		if l.JobID == jobID {
			out = append(out, l)
		}
	}
	return out
}
