// Package loader turns an untrusted serialized snapshot into a valid
// AppState.
//
// Loading never fails. Unparseable input yields the default state; every
// field is coerced with a default; records missing required data are
// dropped and counted in Diagnostics.
package loader

import (
	"bytes"
	"encoding/json"
	"math"
	"time"

	"github.com/roach88/previa/internal/directory"
	"github.com/roach88/previa/internal/domain"
	"github.com/roach88/previa/internal/quote"
)

// Entity kinds used as Diagnostics.Dropped keys.
const (
	KindMovement = "movements"
	KindJob      = "jobs"
	KindPayment  = "jobPayments"
	KindLine     = "jobLines"
	KindPurchase = "purchaseLines"
	KindQuote    = "quotes"
)

// totalsTolerance is the largest stored/computed difference not reported
// as a repair.
const totalsTolerance = 0.005

// Diagnostics reports what normalization discarded or repaired.
type Diagnostics struct {
	// Fallback is set when the input could not be read as a state object
	// and the default state was returned.
	Fallback bool   `json:"fallback"`
	Reason   string `json:"reason,omitempty"`

	// Dropped counts discarded records per entity kind.
	Dropped map[string]int `json:"dropped"`

	// Malformed lists collections that were not arrays.
	Malformed []string `json:"malformed,omitempty"`

	RepairedQuoteTotals int  `json:"repairedQuoteTotals"`
	RenumberedQuotes    int  `json:"renumberedQuotes"`
	ClearedSelection    bool `json:"clearedSelection"`
}

// DroppedTotal sums Dropped over all kinds.
func (d Diagnostics) DroppedTotal() int {
	n := 0
	for _, c := range d.Dropped {
		n += c
	}
	return n
}

// Clean reports whether the input loaded without any loss or repair.
func (d Diagnostics) Clean() bool {
	return !d.Fallback && d.DroppedTotal() == 0 && len(d.Malformed) == 0 &&
		d.RepairedQuoteTotals == 0 && d.RenumberedQuotes == 0 && !d.ClearedSelection
}

func newDiagnostics() Diagnostics {
	return Diagnostics{Dropped: make(map[string]int)}
}

// Loader normalizes snapshots. Missing ids are generated and missing
// dates default to the clock's current time.
type Loader struct {
	clock domain.Clock
	ids   domain.IDGenerator
	names *directory.Registry
}

// New creates a Loader.
func New(clock domain.Clock, ids domain.IDGenerator, names *directory.Registry) *Loader {
	return &Loader{clock: clock, ids: ids, names: names}
}

// Load parses raw. An empty or unreadable blob yields the default state.
func (l *Loader) Load(raw []byte) (*domain.AppState, Diagnostics) {
	diag := newDiagnostics()
	if len(bytes.TrimSpace(raw)) == 0 {
		diag.Reason = "empty snapshot"
		return domain.NewDefaultState(), diag
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil || doc == nil {
		diag.Fallback = true
		diag.Reason = "snapshot is not a JSON object"
		return domain.NewDefaultState(), diag
	}

	return l.normalize(doc, &diag), diag
}

// LoadDocument normalizes an already decoded top-level object.
func (l *Loader) LoadDocument(doc map[string]json.RawMessage) (*domain.AppState, Diagnostics) {
	diag := newDiagnostics()
	if doc == nil {
		diag.Fallback = true
		diag.Reason = "state is not a JSON object"
		return domain.NewDefaultState(), diag
	}
	return l.normalize(doc, &diag), diag
}

func (l *Loader) normalize(doc map[string]json.RawMessage, diag *Diagnostics) *domain.AppState {
	s := domain.NewDefaultState()
	now := l.clock.Now()

	s.Company = l.company(doc)

	var counter, opening looseFloat
	_ = json.Unmarshal(pick(doc, "quoteCounter"), &counter)
	_ = json.Unmarshal(pick(doc, "openingBalance", "saldoIniziale"), &opening)
	s.QuoteCounter = firstInt(1, counter)
	if s.QuoteCounter < 1 {
		s.QuoteCounter = 1
	}
	s.OpeningBalance = firstFloat(0, opening)

	var selected looseString
	_ = json.Unmarshal(pick(doc, "selectedQuoteId"), &selected)
	s.SelectedQuoteID = selected.text()

	var lastSync looseTime
	_ = json.Unmarshal(pick(doc, "lastSyncAt", "lastSyncISO"), &lastSync)
	if lastSync.ok {
		t := lastSync.v
		s.LastSyncAt = &t
	}

	for _, raw := range l.collection(doc, diag, KindMovement, "movements", "movimenti") {
		if m, ok := l.Movement(raw, now); ok {
			s.Movements = append(s.Movements, m)
		} else {
			diag.Dropped[KindMovement]++
		}
	}
	for _, raw := range l.collection(doc, diag, KindJob, "jobs") {
		if j, ok := l.Job(raw, now); ok {
			s.Jobs = append(s.Jobs, j)
		} else {
			diag.Dropped[KindJob]++
		}
	}
	for _, raw := range l.collection(doc, diag, KindPayment, "jobPayments") {
		if p, ok := l.Payment(raw, now); ok {
			s.JobPayments = append(s.JobPayments, p)
		} else {
			diag.Dropped[KindPayment]++
		}
	}
	for _, raw := range l.collection(doc, diag, KindLine, "jobLines") {
		if jl, ok := l.Line(raw, now); ok {
			s.JobLines = append(s.JobLines, jl)
		} else {
			diag.Dropped[KindLine]++
		}
	}
	for _, raw := range l.collection(doc, diag, KindPurchase, "purchaseLines") {
		if p, ok := l.Purchase(raw, now); ok {
			s.PurchaseLines = append(s.PurchaseLines, p)
		} else {
			diag.Dropped[KindPurchase]++
		}
	}
	for _, raw := range l.collection(doc, diag, KindQuote, "quotes") {
		q, repaired, ok := l.Quote(raw, now)
		if !ok {
			diag.Dropped[KindQuote]++
			continue
		}
		if repaired {
			diag.RepairedQuoteTotals++
		}
		s.Quotes = append(s.Quotes, q)
	}

	var dir rawDirectory
	_ = json.Unmarshal(pick(doc, "directory", "anagrafiche"), &dir)
	s.Directory.Clients = stringList(pickRaw(dir.Clients, dir.Clienti))
	s.Directory.Suppliers = stringList(pickRaw(dir.Suppliers, dir.Fornitori))
	l.names.Rebuild(s)

	diag.RenumberedQuotes = renumberQuotes(s)
	if s.SelectedQuoteID != "" && s.FindQuote(s.SelectedQuoteID) < 0 {
		s.SelectedQuoteID = ""
		diag.ClearedSelection = true
	}
	return s
}

func (l *Loader) company(doc map[string]json.RawMessage) domain.CompanyProfile {
	var c, info rawCompany
	_ = json.Unmarshal(pick(doc, "company"), &c)
	_ = json.Unmarshal(pick(doc, "companyInfo"), &info)
	var legacyName, legacyLogo looseString
	_ = json.Unmarshal(pick(doc, "companyName"), &legacyName)
	_ = json.Unmarshal(pick(doc, "companyLogoDataUrl"), &legacyLogo)

	name := firstText(c.Name, legacyName)
	if name == "" {
		name = domain.DefaultCompanyName
	}
	return domain.CompanyProfile{
		Name:        name,
		LogoDataURL: firstText(c.LogoDataURL, legacyLogo),
		Address:     firstText(c.Address, info.Address),
		TaxID:       firstText(c.TaxID, c.PIVA, info.TaxID, info.PIVA),
		Phone:       firstText(c.Phone, info.Phone),
		Email:       firstText(c.Email, info.Email),
	}
}

// collection returns the records of the first present key. A value that
// is not an array counts as an empty collection.
func (l *Loader) collection(doc map[string]json.RawMessage, diag *Diagnostics, kind string, keys ...string) []json.RawMessage {
	items, ok := rawList(pick(doc, keys...))
	if !ok {
		diag.Malformed = append(diag.Malformed, kind)
		return nil
	}
	return items
}

func (l *Loader) id(v looseString) string {
	if id := v.text(); id != "" {
		return id
	}
	return l.ids.Generate()
}

// Movement normalizes one movement record.
func (l *Loader) Movement(raw json.RawMessage, now time.Time) (domain.Movement, bool) {
	var r rawMovement
	if err := json.Unmarshal(raw, &r); err != nil {
		return domain.Movement{}, false
	}
	m := domain.Movement{
		ID:               l.id(r.ID),
		Date:             firstTime(now, r.Date, r.DateISO),
		Description:      firstText(r.Description, r.Desc),
		JobCode:          domain.NormalizeJobCode(firstText(r.JobCode, r.Commessa)),
		Amount:           firstFloat(0, r.Amount, r.Importo),
		Direction:        domain.ParseDirection(firstText(r.Direction, r.Tipo)),
		CounterpartyKind: domain.ParseCounterpartyKind(firstText(r.CounterpartyKind, r.ControparteTipo)),
		CounterpartyName: firstText(r.CounterpartyName, r.ControparteNome),
		Source:           r.Source.ref,
	}
	if m.Source == nil {
		m.Source = sourceRef(r.SourceType, r.SourceID)
	}
	if m.Description == "" || !domain.IsFinite(m.Amount) || m.Amount < 0 {
		return domain.Movement{}, false
	}
	return m, true
}

// Job normalizes one job record.
func (l *Loader) Job(raw json.RawMessage, now time.Time) (domain.Job, bool) {
	var r rawJob
	if err := json.Unmarshal(raw, &r); err != nil {
		return domain.Job{}, false
	}
	j := domain.Job{
		ID:          l.id(r.ID),
		Title:       firstText(r.Title, r.Titolo),
		JobCode:     domain.NormalizeJobCode(firstText(r.JobCode, r.Commessa)),
		Client:      firstText(r.Client, r.Cliente),
		AgreedTotal: firstFloat(0, r.AgreedTotal),
		Status:      domain.ParseJobStatus(firstText(r.Status, r.Stato)),
		Note:        r.Note.text(),
		CreatedAt:   firstTime(now, r.CreatedAt, r.CreatedISO),
	}
	if j.Title == "" || j.Client == "" || !domain.IsFinite(j.AgreedTotal) {
		return domain.Job{}, false
	}
	return j, true
}

// Payment normalizes one job payment record.
func (l *Loader) Payment(raw json.RawMessage, now time.Time) (domain.JobPayment, bool) {
	var r rawPayment
	if err := json.Unmarshal(raw, &r); err != nil {
		return domain.JobPayment{}, false
	}
	p := domain.JobPayment{
		ID:     l.id(r.ID),
		JobID:  r.JobID.text(),
		Date:   firstTime(now, r.Date, r.DateISO),
		Amount: firstFloat(0, r.Amount),
		Method: r.Method.text(),
		Note:   r.Note.text(),
	}
	if p.Method == "" {
		p.Method = domain.DefaultPaymentMethod
	}
	if p.JobID == "" || p.JobID == "0" || !(p.Amount > 0) {
		return domain.JobPayment{}, false
	}
	return p, true
}

// Line normalizes one job line record.
func (l *Loader) Line(raw json.RawMessage, now time.Time) (domain.JobLine, bool) {
	var r rawLine
	if err := json.Unmarshal(raw, &r); err != nil {
		return domain.JobLine{}, false
	}
	jl := domain.JobLine{
		ID:          l.id(r.ID),
		JobID:       r.JobID.text(),
		Kind:        domain.ParseLineKind(r.Kind.text()),
		Description: firstText(r.Description, r.Desc),
		Quantity:    firstNonZero(1, r.Qty, r.Quantity),
		Unit:        r.Unit.text(),
		UnitPrice:   firstFloat(0, r.UnitPrice),
		Note:        r.Note.text(),
		Done:        r.Done.v,
		CreatedAt:   firstTime(now, r.CreatedAt, r.CreatedISO),
	}
	if jl.Unit == "" {
		jl.Unit = domain.DefaultUnit
	}
	if jl.JobID == "" || jl.JobID == "0" || jl.Description == "" {
		return domain.JobLine{}, false
	}
	return jl, true
}

// Purchase normalizes one purchase record. Imports reuse it so that
// imported records follow the same coercion rules as stored ones.
func (l *Loader) Purchase(raw json.RawMessage, now time.Time) (domain.PurchaseLine, bool) {
	var r rawPurchase
	if err := json.Unmarshal(raw, &r); err != nil {
		return domain.PurchaseLine{}, false
	}
	p := domain.PurchaseLine{
		ID:        l.id(r.ID),
		Date:      firstTime(now, r.Date, r.DateISO),
		Supplier:  firstText(r.Supplier, r.Fornitore),
		Product:   firstText(r.Product, r.Prodotto),
		Quantity:  firstNonZero(1, r.Qty, r.Quantity),
		Unit:      firstText(r.Unit, r.Unita),
		UnitPrice: firstFloat(0, r.UnitPrice, r.Prezzo),
		JobCode:   domain.NormalizeJobCode(firstText(r.JobCode, r.Commessa)),
		Note:      r.Note.text(),
	}
	if p.Unit == "" {
		p.Unit = domain.DefaultUnit
	}
	if p.Product == "" || p.Supplier == "" {
		return domain.PurchaseLine{}, false
	}
	return p, true
}

// Quote normalizes one quote record. Totals are always recomputed from the
// rows; repaired reports whether stored totals disagreed.
func (l *Loader) Quote(raw json.RawMessage, now time.Time) (q domain.Quote, repaired, ok bool) {
	var r rawQuote
	if err := json.Unmarshal(raw, &r); err != nil {
		return domain.Quote{}, false, false
	}
	q = domain.Quote{
		ID:      l.id(r.ID),
		Number:  firstInt(0, r.Number),
		Date:    firstTime(now, r.Date, r.DateISO),
		Client:  firstText(r.Client, r.Cliente),
		JobCode: domain.NormalizeJobCode(firstText(r.JobCode, r.Comm)),
		Status:  quoteStatus(r.Status, r.Stato),
		Notes:   firstText(r.Notes, r.Note),
		Rows:    []domain.QuoteRow{},
	}
	items, _ := rawList(pickRaw(r.Rows, r.Righe))
	for _, item := range items {
		var rr rawRow
		if err := json.Unmarshal(item, &rr); err != nil {
			continue
		}
		q.Rows = append(q.Rows, domain.QuoteRow{
			Description: firstText(rr.Description, rr.Desc),
			Quantity:    firstNonZero(1, rr.Qty, rr.Quantity),
			UnitPrice:   firstFloat(0, rr.UnitPrice),
			DiscountPct: firstFloat(0, rr.DiscountPct, rr.Sconto),
			VATPct:      firstFloat(domain.DefaultVATPct, rr.VATPct, rr.IVA),
		})
	}
	if q.Client == "" || q.JobCode == "" {
		return domain.Quote{}, false, false
	}

	q.Totals = quote.Compute(q.Rows)
	var stored rawTotals
	if len(r.Totals) > 0 && json.Unmarshal(r.Totals, &stored) == nil && stored.present() {
		repaired = !sameTotals(stored.totals(), q.Totals)
	}
	return q, repaired, true
}

func quoteStatus(status, legacy looseString) domain.QuoteStatus {
	if domain.ParseQuoteStatus(status.text()) == domain.QuoteLocked ||
		domain.ParseQuoteStatus(legacy.text()) == domain.QuoteLocked {
		return domain.QuoteLocked
	}
	return domain.QuoteDraft
}

func sameTotals(a, b domain.Totals) bool {
	return math.Abs(a.Taxable-b.Taxable) <= totalsTolerance &&
		math.Abs(a.VAT-b.VAT) <= totalsTolerance &&
		math.Abs(a.Total-b.Total) <= totalsTolerance
}

// renumberQuotes raises the counter above every loaded number and assigns
// fresh numbers to quotes whose number is missing or already taken.
func renumberQuotes(s *domain.AppState) int {
	highest := 0
	for _, q := range s.Quotes {
		if q.Number > highest {
			highest = q.Number
		}
	}
	if s.QuoteCounter <= highest {
		s.QuoteCounter = highest + 1
	}
	seen := make(map[int]bool, len(s.Quotes))
	renumbered := 0
	for i := range s.Quotes {
		n := s.Quotes[i].Number
		if n <= 0 || seen[n] {
			s.Quotes[i].Number = s.QuoteCounter
			s.QuoteCounter++
			renumbered++
		}
		seen[s.Quotes[i].Number] = true
	}
	return renumbered
}

// pick returns the first key present with a non-null value.
func pick(doc map[string]json.RawMessage, keys ...string) json.RawMessage {
	for _, k := range keys {
		if v, ok := doc[k]; ok && !isNull(v) {
			return v
		}
	}
	return nil
}

func pickRaw(values ...json.RawMessage) json.RawMessage {
	for _, v := range values {
		if len(v) > 0 && !isNull(v) {
			return v
		}
	}
	return nil
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}
