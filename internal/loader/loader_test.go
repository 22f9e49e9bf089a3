package loader

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/previa/internal/directory"
	"github.com/roach88/previa/internal/domain"
	"github.com/roach88/previa/internal/quote"
	"github.com/roach88/previa/internal/testutil"
	"github.com/roach88/previa/internal/workorder"
)

func newTestLoader() *Loader {
	return New(testutil.NewClock(time.Time{}), testutil.NewSequenceIDs("gen"), directory.New(directory.DefaultLocale))
}

func TestLoad_InvalidInputYieldsDefaultState(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		fallback bool
	}{
		{"empty", "", false},
		{"blank", "  \n", false},
		{"not json", "{not json", true},
		{"array", "[1,2,3]", true},
		{"null", "null", true},
		{"string", `"hello"`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, diag := newTestLoader().Load([]byte(tt.raw))
			assert.Equal(t, domain.NewDefaultState(), s)
			assert.Equal(t, tt.fallback, diag.Fallback)
			assert.NotEmpty(t, diag.Reason)
		})
	}
}

func TestLoad_EmptyObject(t *testing.T) {
	s, diag := newTestLoader().Load([]byte(`{}`))
	assert.Equal(t, domain.NewDefaultState(), s)
	assert.True(t, diag.Clean())
}

func TestLoad_WrongShapesNeverFail(t *testing.T) {
	raw := `{
		"company": "not an object",
		"quoteCounter": "abc",
		"openingBalance": {"x": 1},
		"movements": {"not": "a list"},
		"jobs": "nope",
		"quotes": [1, "two", null, {"client": 5, "jobCode": true}],
		"directory": []
	}`
	s, diag := newTestLoader().Load([]byte(raw))

	assert.Equal(t, domain.DefaultCompanyName, s.Company.Name)
	// The kept quote has no number: it is numbered 1 and the counter follows.
	assert.Equal(t, 2, s.QuoteCounter)
	assert.Equal(t, 0.0, s.OpeningBalance)
	assert.Empty(t, s.Movements)
	assert.Empty(t, s.Jobs)
	assert.ElementsMatch(t, []string{KindMovement, KindJob}, diag.Malformed)

	// Scalar client and job code are coerced to text.
	require.Len(t, s.Quotes, 1)
	assert.Equal(t, "5", s.Quotes[0].Client)
	assert.Equal(t, "TRUE", s.Quotes[0].JobCode)
	assert.Equal(t, 1, s.Quotes[0].Number)
	assert.Equal(t, 1, diag.RenumberedQuotes)
	assert.Equal(t, 3, diag.Dropped[KindQuote])
	assert.False(t, diag.Fallback)
}

const legacySnapshot = `{
	"companyName": "Edil Rossi",
	"companyInfo": {"piva": "IT123", "address": "Via Roma 1"},
	"saldoIniziale": "1500,5",
	"movimenti": [
		{"id": "m1", "dateISO": "2026-01-15", "desc": "Incasso", "importo": "250,50", "tipo": "entrata", "controparteTipo": "cliente", "controparteNome": "Bianchi"},
		{"desc": "", "importo": 10},
		{"desc": "negativo", "importo": -5}
	],
	"jobs": [
		{"id": "j1", "titolo": "Bagno", "cliente": "Bianchi", "commessa": " a1 ", "agreedTotal": 1000, "stato": "chiuso"},
		{"titolo": "senza cliente"}
	],
	"jobPayments": [
		{"id": "p1", "jobId": "j1", "amount": 100},
		{"jobId": "0", "amount": 5},
		{"jobId": "j1", "amount": 0}
	],
	"jobLines": [
		{"jobId": "j1", "desc": "Posa", "qty": 0, "unitPrice": "12,5"}
	],
	"purchaseLines": [
		{"fornitore": "Brico", "prodotto": "Colla", "qty": "2", "prezzoUnit": 3.5, "commessa": "a1"},
		{"prodotto": "senza fornitore"}
	],
	"quotes": [
		{"id": "q1", "number": 3, "cliente": "Bianchi", "commessa": "a1", "stato": "confermato",
		 "righe": [{"desc": "Posa", "qty": 2, "unitPrice": 100, "sconto": 10, "iva": 22}],
		 "totals": {"taxable": 1, "vat": 1, "total": 2}},
		{"id": "q2", "number": 3, "client": "Verdi", "jobCode": "B"},
		{"client": "senza commessa"}
	],
	"selectedQuoteId": "missing",
	"anagrafiche": {"clienti": ["rossi", "Bianchi"], "fornitori": []}
}`

func TestLoad_LegacySnapshot(t *testing.T) {
	s, diag := newTestLoader().Load([]byte(legacySnapshot))

	assert.Equal(t, "Edil Rossi", s.Company.Name)
	assert.Equal(t, "IT123", s.Company.TaxID)
	assert.Equal(t, "Via Roma 1", s.Company.Address)
	assert.Equal(t, 1500.5, s.OpeningBalance)

	require.Len(t, s.Movements, 1)
	mv := s.Movements[0]
	assert.Equal(t, "m1", mv.ID)
	assert.Equal(t, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), mv.Date)
	assert.Equal(t, 250.5, mv.Amount)
	assert.Equal(t, domain.DirectionIn, mv.Direction)
	assert.Equal(t, domain.CounterpartyClient, mv.CounterpartyKind)
	assert.Equal(t, 2, diag.Dropped[KindMovement])

	require.Len(t, s.Jobs, 1)
	assert.Equal(t, "A1", s.Jobs[0].JobCode)
	assert.Equal(t, domain.JobClosed, s.Jobs[0].Status)
	assert.Equal(t, testutil.DefaultEpoch, s.Jobs[0].CreatedAt)
	assert.Equal(t, 1, diag.Dropped[KindJob])

	require.Len(t, s.JobPayments, 1)
	assert.Equal(t, domain.DefaultPaymentMethod, s.JobPayments[0].Method)
	assert.Equal(t, 2, diag.Dropped[KindPayment])

	require.Len(t, s.JobLines, 1)
	assert.Equal(t, 1.0, s.JobLines[0].Quantity)
	assert.Equal(t, 12.5, s.JobLines[0].UnitPrice)
	assert.Equal(t, domain.DefaultUnit, s.JobLines[0].Unit)
	assert.Equal(t, domain.LineMaterial, s.JobLines[0].Kind)
	assert.NotEmpty(t, s.JobLines[0].ID)

	require.Len(t, s.PurchaseLines, 1)
	p := s.PurchaseLines[0]
	assert.Equal(t, "Brico", p.Supplier)
	assert.Equal(t, 2.0, p.Quantity)
	assert.Equal(t, 3.5, p.UnitPrice)
	assert.Equal(t, "A1", p.JobCode)
	assert.Equal(t, 1, diag.Dropped[KindPurchase])

	require.Len(t, s.Quotes, 2)
	q1, q2 := s.Quotes[0], s.Quotes[1]
	assert.Equal(t, 3, q1.Number)
	assert.Equal(t, domain.QuoteLocked, q1.Status)
	assert.Equal(t, domain.Totals{Taxable: 180, VAT: 39.6, Total: 219.6}, q1.Totals)
	assert.Equal(t, 4, q2.Number)
	assert.Equal(t, 5, s.QuoteCounter)
	assert.Equal(t, 1, diag.RepairedQuoteTotals)
	assert.Equal(t, 1, diag.RenumberedQuotes)
	assert.Equal(t, 1, diag.Dropped[KindQuote])

	assert.Empty(t, s.SelectedQuoteID)
	assert.True(t, diag.ClearedSelection)

	assert.Equal(t, []string{"Bianchi", "rossi"}, s.Directory.Clients)
	assert.Equal(t, []string{"Brico"}, s.Directory.Suppliers)

	assert.Equal(t, 7, diag.DroppedTotal())
	assert.False(t, diag.Clean())
}

func TestLoad_CurrentFieldWinsOverLegacy(t *testing.T) {
	raw := `{"movements": [{"description": "nuovo", "desc": "vecchio", "amount": 1, "importo": 2}], "movimenti": [{"desc": "ignorato", "importo": 3}]}`
	s, _ := newTestLoader().Load([]byte(raw))

	require.Len(t, s.Movements, 1)
	assert.Equal(t, "nuovo", s.Movements[0].Description)
	assert.Equal(t, 1.0, s.Movements[0].Amount)
}

func TestLoad_MovementSource(t *testing.T) {
	raw := `{"movements": [
		{"description": "a", "amount": 1, "source": {"kind": "jobPayment", "id": "p1"}},
		{"description": "b", "amount": 1, "sourceType": "purchaseLine", "sourceId": "x1"},
		{"description": "c", "amount": 1, "source": {"kind": "bogus", "id": "z"}}
	]}`
	s, _ := newTestLoader().Load([]byte(raw))

	require.Len(t, s.Movements, 3)
	assert.Equal(t, &domain.SourceRef{Kind: domain.SourceJobPayment, ID: "p1"}, s.Movements[0].Source)
	assert.Equal(t, &domain.SourceRef{Kind: domain.SourcePurchaseLine, ID: "x1"}, s.Movements[1].Source)
	assert.Nil(t, s.Movements[2].Source)
}

func TestLoad_MissingAmountKeepsMovement(t *testing.T) {
	s, diag := newTestLoader().Load([]byte(`{"movements": [{"description": "x"}]}`))
	require.Len(t, s.Movements, 1)
	assert.Equal(t, 0.0, s.Movements[0].Amount)
	assert.True(t, diag.Clean())
}

func TestLoad_EpochMillisDate(t *testing.T) {
	s, _ := newTestLoader().Load([]byte(`{"movements": [{"description": "x", "amount": 1, "date": 1767225600000}]}`))
	require.Len(t, s.Movements, 1)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), s.Movements[0].Date)
}

func TestLoad_QuoteRowDefaults(t *testing.T) {
	raw := `{"quotes": [{"client": "A", "jobCode": "X", "rows": [
		{"description": "senza iva", "unitPrice": 10},
		{"description": "iva zero", "qty": 1, "unitPrice": 10, "vatPct": 0}
	]}]}`
	s, diag := newTestLoader().Load([]byte(raw))

	require.Len(t, s.Quotes, 1)
	rows := s.Quotes[0].Rows
	require.Len(t, rows, 2)
	assert.Equal(t, 1.0, rows[0].Quantity)
	assert.Equal(t, domain.DefaultVATPct, rows[0].VATPct)
	assert.Equal(t, 0.0, rows[1].VATPct)
	assert.Equal(t, domain.Totals{Taxable: 20, VAT: 2.2, Total: 22.2}, s.Quotes[0].Totals)
	assert.Equal(t, 0, diag.RepairedQuoteTotals)
}

func TestLoad_PreservesValidSelection(t *testing.T) {
	s, diag := newTestLoader().Load([]byte(`{"selectedQuoteId": "q1", "quotes": [{"id": "q1", "number": 1, "client": "A", "jobCode": "X"}]}`))
	assert.Equal(t, "q1", s.SelectedQuoteID)
	assert.Equal(t, 2, s.QuoteCounter)
	assert.False(t, diag.ClearedSelection)
}

func TestLoad_RoundTripsEngineState(t *testing.T) {
	s := domain.NewDefaultState()
	clock := testutil.NewSteppingClock(testutil.DefaultEpoch, time.Minute)
	ids := testutil.NewSequenceIDs("id")
	names := directory.New(directory.DefaultLocale)
	jobs := workorder.New(s, names, ids, clock)
	quotes := quote.New(s, jobs, ids, clock)

	job, err := jobs.CreateJob(workorder.JobInput{Title: "Bagno", Client: "Rossi", JobCode: "A1", AgreedTotal: 500})
	require.NoError(t, err)
	_, err = jobs.CreatePayment(workorder.PaymentInput{JobID: job.ID, Amount: 200})
	require.NoError(t, err)
	_, err = jobs.CreatePurchaseLine(workorder.PurchaseInput{Supplier: "Brico", Product: "Colla", Quantity: 2, UnitPrice: 4.5, JobCode: "A1"})
	require.NoError(t, err)
	_, err = jobs.CreateJobLine(workorder.LineInput{JobID: job.ID, Kind: domain.LineLabor, Description: "Posa", Quantity: 3, UnitPrice: 40})
	require.NoError(t, err)
	q, err := quotes.CreateQuote("Verdi", "B2")
	require.NoError(t, err)
	_, err = quotes.AddRow(q.ID, quote.RowInput{Description: "Fornitura", Quantity: 1, UnitPrice: 99.99, DiscountPct: 5})
	require.NoError(t, err)

	raw, err := json.Marshal(s)
	require.NoError(t, err)

	loaded, diag := newTestLoader().Load(raw)
	assert.True(t, diag.Clean(), "diagnostics: %+v", diag)
	assert.Equal(t, s, loaded)
}

func TestLoadDocument_Nil(t *testing.T) {
	s, diag := newTestLoader().LoadDocument(nil)
	assert.Equal(t, domain.NewDefaultState(), s)
	assert.True(t, diag.Fallback)
}
