package workorder

import (
	"time"

	"github.com/roach88/previa/internal/domain"
	"github.com/roach88/previa/internal/ledger"
)

// PurchaseInput carries the fields of a new purchase line. Zero Quantity
// means 1, an empty Unit means DefaultUnit and a zero Date means now.
type PurchaseInput struct {
	Supplier  string
	Product   string
	Quantity  float64
	Unit      string
	UnitPrice float64
	JobCode   string
	Note      string
	Date      time.Time
}

// CreatePurchaseLine records a purchase, registers the supplier and
// emits exactly one outbound Movement of qty × unitPrice sourced from it.
func (e *Engine) CreatePurchaseLine(in PurchaseInput) (domain.PurchaseLine, error) {
	supplier := domain.Clean(in.Supplier)
	product := domain.Clean(in.Product)
	switch {
	case supplier == "":
		return domain.PurchaseLine{}, domain.Invalid("supplier", in.Supplier, "supplier is required")
	case product == "":
		return domain.PurchaseLine{}, domain.Invalid("product", in.Product, "product is required")
	case !domain.IsFinite(in.Quantity) || in.Quantity < 0:
		return domain.PurchaseLine{}, domain.Invalid("qty", in.Quantity, "quantity must be a positive number")
	case !domain.IsFinite(in.UnitPrice) || in.UnitPrice < 0:
		return domain.PurchaseLine{}, domain.Invalid("unitPrice", in.UnitPrice, "unit price must not be negative")
	}

	qty := in.Quantity
	if qty == 0 {
		qty = 1
	}
	unit := domain.Clean(in.Unit)
	if unit == "" {
		unit = domain.DefaultUnit
	}
	date := in.Date
	if date.IsZero() {
		date = e.clock.Now()
	}

	line := domain.PurchaseLine{
		ID:        e.ids.Generate(),
		Date:      date,
		Supplier:  supplier,
		Product:   product,
		Quantity:  qty,
		Unit:      unit,
		UnitPrice: in.UnitPrice,
		JobCode:   domain.NormalizeJobCode(in.JobCode),
		Note:      domain.Clean(in.Note),
	}
	e.names.Upsert(&e.state.Directory, domain.CounterpartySupplier, supplier)
	e.state.PurchaseLines = append(e.state.PurchaseLines, line)
	e.state.Movements = append(e.state.Movements, domain.Movement{
		ID:               e.ids.Generate(),
		Date:             date,
		Description:      "Acquisto " + product,
		JobCode:          line.JobCode,
		Amount:           line.Total(),
		Direction:        domain.DirectionOut,
		CounterpartyKind: domain.CounterpartySupplier,
		CounterpartyName: supplier,
		Source:           &domain.SourceRef{Kind: domain.SourcePurchaseLine, ID: line.ID},
	})
	return line, nil
}

// DeletePurchaseLine removes a purchase and the Movement it emitted.
// It reports how many movements were removed.
func (e *Engine) DeletePurchaseLine(id string) (int, error) {
	kept := e.state.PurchaseLines[:0]
	found := false
	for _, p := range e.state.PurchaseLines {
		if p.ID == id {
			found = true
			continue
		}
		kept = append(kept, p)
	}
	if !found {
		return 0, domain.NotFound("purchase line", id)
	}
	e.state.PurchaseLines = kept
	return ledger.RemoveBySource(e.state, domain.SourcePurchaseLine, map[string]bool{id: true}), nil
}

// PurchasesForJob lists purchases whose tag matches jobCode.
func PurchasesForJob(s *domain.AppState, jobCode string) []domain.PurchaseLine {
	var out []domain.PurchaseLine
	for _, p := range s.PurchaseLines {
		if domain.SameJobCode(p.JobCode, jobCode) {
			out = append(out, p)
		}
	}
	return out
}
