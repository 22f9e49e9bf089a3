// Package ledger reads and appends the flat list of cash movements.
//
// Movements are normally emitted by work-order operations. AddMovement is
// the manual insert: a movement with no source reference.
package ledger

import (
	"sort"
	"time"

	"github.com/roach88/previa/internal/domain"
)

// Totals are the inflow and outflow of a period.
type Totals struct {
	In  float64 `json:"in"`
	Out float64 `json:"out"`
}

// Net is In − Out.
func (t Totals) Net() float64 {
	return domain.Sum(t.In, -t.Out)
}

// MonthPoint is one month of a MonthlySeries.
type MonthPoint struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
	Label string     `json:"label"`
	In    float64    `json:"in"`
	Out   float64    `json:"out"`
}

// monthLabels are the short Italian month names used on charts.
var monthLabels = [...]string{"gen", "feb", "mar", "apr", "mag", "giu", "lug", "ago", "set", "ott", "nov", "dic"}

// MonthLabel returns the short label of m.
func MonthLabel(m time.Month) string {
	if m < time.January || m > time.December {
		return ""
	}
	return monthLabels[m-1]
}

// MonthlyTotals sums the movements dated in the calendar month containing
// month, evaluated in month's location.
func MonthlyTotals(s *domain.AppState, month time.Time) Totals {
	y, m, _ := month.Date()
	return periodTotals(s, month.Location(), func(t time.Time) bool {
		ty, tm, _ := t.Date()
		return ty == y && tm == m
	})
}

// YearTotals sums the movements dated in year, evaluated in loc.
func YearTotals(s *domain.AppState, year int, loc *time.Location) Totals {
	return periodTotals(s, loc, func(t time.Time) bool { return t.Year() == year })
}

func periodTotals(s *domain.AppState, loc *time.Location, in func(time.Time) bool) Totals {
	var ins, outs []float64
	for _, mv := range s.Movements {
		if !in(mv.Date.In(loc)) {
			continue
		}
		if mv.Direction == domain.DirectionOut {
			outs = append(outs, mv.Amount)
		} else {
			ins = append(ins, mv.Amount)
		}
	}
	return Totals{In: domain.Sum(ins...), Out: domain.Sum(outs...)}
}

// MonthlySeries returns the trailing months calendar months ending at the
// month of now, oldest first, each total rounded to the cent.
func MonthlySeries(s *domain.AppState, now time.Time, months int) []MonthPoint {
	if months <= 0 {
		return []MonthPoint{}
	}
	loc := now.Location()
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc).AddDate(0, -(months - 1), 0)
	out := make([]MonthPoint, 0, months)
	for i := 0; i < months; i++ {
		start := first.AddDate(0, i, 0)
		t := MonthlyTotals(s, start)
		out = append(out, MonthPoint{
			Year:  start.Year(),
			Month: start.Month(),
			Label: MonthLabel(start.Month()),
			In:    t.In,
			Out:   t.Out,
		})
	}
	return out
}

// Balance is the opening balance plus every inflow minus every outflow.
func Balance(s *domain.AppState) float64 {
	values := []float64{s.OpeningBalance}
	for _, mv := range s.Movements {
		if mv.Direction == domain.DirectionOut {
			values = append(values, -mv.Amount)
		} else {
			values = append(values, mv.Amount)
		}
	}
	return domain.Sum(values...)
}

// Recent returns up to n movements, newest first.
func Recent(s *domain.AppState, n int) []domain.Movement {
	out := append([]domain.Movement{}, s.Movements...)
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Date.After(out[b].Date)
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// MovementInput carries a manual movement.
type MovementInput struct {
	Date             time.Time
	Description      string
	JobCode          string
	Amount           float64
	Direction        domain.Direction
	CounterpartyKind domain.CounterpartyKind
	CounterpartyName string
}

// AddMovement appends a manual movement with no source reference.
func AddMovement(s *domain.AppState, ids domain.IDGenerator, clock domain.Clock, in MovementInput) (domain.Movement, error) {
	desc := domain.Clean(in.Description)
	if desc == "" {
		return domain.Movement{}, domain.Invalid("description", in.Description, "description is required")
	}
	if !domain.IsFinite(in.Amount) || in.Amount < 0 {
		return domain.Movement{}, domain.Invalid("amount", in.Amount, "amount must be a non-negative number")
	}
	dir := in.Direction
	if !dir.IsValid() {
		dir = domain.DirectionIn
	}
	kind := in.CounterpartyKind
	if !kind.IsValid() {
		kind = domain.CounterpartyClient
	}
	date := in.Date
	if date.IsZero() {
		date = clock.Now()
	}
	m := domain.Movement{
		ID:               ids.Generate(),
		Date:             date,
		Description:      desc,
		JobCode:          domain.NormalizeJobCode(in.JobCode),
		Amount:           domain.Round2(in.Amount),
		Direction:        dir,
		CounterpartyKind: kind,
		CounterpartyName: domain.Clean(in.CounterpartyName),
	}
	s.Movements = append(s.Movements, m)
	return m, nil
}

// DeleteManual removes a movement that has no source reference. Derived
// movements are owned by their source record and cannot be removed here.
func DeleteManual(s *domain.AppState, id string) error {
	for i, m := range s.Movements {
		if m.ID != id {
			continue
		}
		if m.Source != nil {
			return domain.Invalid("id", id, "movement belongs to a "+string(m.Source.Kind))
		}
		s.Movements = append(s.Movements[:i], s.Movements[i+1:]...)
		return nil
	}
	return domain.NotFound("movement", id)
}

// RemoveBySource drops the movements emitted by kind records in ids and
// reports how many were removed.
func RemoveBySource(s *domain.AppState, kind domain.SourceKind, ids map[string]bool) int {
	if len(ids) == 0 {
		return 0
	}
	removed := 0
	kept := s.Movements[:0]
	for _, m := range s.Movements {
		if m.Source != nil && m.Source.Kind == kind && ids[m.Source.ID] {
			removed++
			continue
		}
		kept = append(kept, m)
	}
	s.Movements = kept
	return removed
}
