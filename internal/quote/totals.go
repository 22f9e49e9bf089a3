package quote

import (
	"github.com/shopspring/decimal"

	"github.com/roach88/previa/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// Compute derives quote totals from rows:
//
//	lineTaxable = qty × unitPrice × (1 − discount/100)
//	lineVat     = lineTaxable × vat/100
//
// Taxable and VAT are summed exactly and rounded to the cent; Total is
// the sum of the two rounded figures. Rows with non-finite numbers
// contribute nothing.
func Compute(rows []domain.QuoteRow) domain.Totals {
	taxable, vat := decimal.Zero, decimal.Zero
	for _, r := range rows {
		lt, lv, ok := lineAmounts(r)
		if !ok {
			continue
		}
		taxable = taxable.Add(lt)
		vat = vat.Add(lv)
	}
	t := taxable.Round(2)
	v := vat.Round(2)
	return domain.Totals{
		Taxable: t.InexactFloat64(),
		VAT:     v.InexactFloat64(),
		Total:   t.Add(v).Round(2).InexactFloat64(),
	}
}

// RowAmounts returns the rounded taxable and VAT amounts of one row.
func RowAmounts(r domain.QuoteRow) (taxable, vat float64) {
	lt, lv, ok := lineAmounts(r)
	if !ok {
		return 0, 0
	}
	return lt.Round(2).InexactFloat64(), lv.Round(2).InexactFloat64()
}

func lineAmounts(r domain.QuoteRow) (taxable, vat decimal.Decimal, ok bool) {
	for _, v := range []float64{r.Quantity, r.UnitPrice, r.DiscountPct, r.VATPct} {
		if !domain.IsFinite(v) {
			return decimal.Zero, decimal.Zero, false
		}
	}
	discount := decimal.NewFromInt(1).Sub(decimal.NewFromFloat(r.DiscountPct).Div(hundred))
	taxable = decimal.NewFromFloat(r.Quantity).Mul(decimal.NewFromFloat(r.UnitPrice)).Mul(discount)
	vat = taxable.Mul(decimal.NewFromFloat(r.VATPct)).Div(hundred)
	return taxable, vat, true
}
