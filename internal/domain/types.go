package domain

import "time"

// StateVersion is the snapshot layout version written by this package.
const StateVersion = 2

// DefaultCompanyName is used when no company name is configured.
const DefaultCompanyName = "La tua ditta"

// Default values substituted for missing record fields.
const (
	DefaultUnit          = "pz"
	DefaultPaymentMethod = "bonifico"
	DefaultVATPct        = 22.0
)

// CompanyProfile is the singleton business identity printed on documents.
type CompanyProfile struct {
	Name        string `json:"name"`
	LogoDataURL string `json:"logoDataUrl,omitempty"`
	Address     string `json:"address"`
	TaxID       string `json:"taxId"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
}

// SourceRef points from a derived Movement back to the record that emitted it.
type SourceRef struct {
	Kind SourceKind `json:"kind"`
	ID   string     `json:"id"`
}

// Movement is a flat ledger entry. Amount is never negative; the cash
// effect is carried by Direction.
type Movement struct {
	ID               string           `json:"id"`
	Date             time.Time        `json:"date"`
	Description      string           `json:"description"`
	JobCode          string           `json:"jobCode"`
	Amount           float64          `json:"amount"`
	Direction        Direction        `json:"direction"`
	CounterpartyKind CounterpartyKind `json:"counterpartyKind"`
	CounterpartyName string           `json:"counterpartyName"`
	Source           *SourceRef       `json:"source,omitempty"`
}

// SourcedBy reports whether m was emitted by the record kind/id.
func (m Movement) SourcedBy(kind SourceKind, id string) bool {
	return m.Source != nil && m.Source.Kind == kind && m.Source.ID == id
}

// Job is a work order with an agreed price.
type Job struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	JobCode     string    `json:"jobCode"`
	Client      string    `json:"client"`
	AgreedTotal float64   `json:"agreedTotal"`
	Status      JobStatus `json:"status"`
	Note        string    `json:"note"`
	CreatedAt   time.Time `json:"createdAt"`
}

// JobPayment is a client payment against a Job.
type JobPayment struct {
	ID     string    `json:"id"`
	JobID  string    `json:"jobId"`
	Date   time.Time `json:"date"`
	Amount float64   `json:"amount"`
	Method string    `json:"method"`
	Note   string    `json:"note"`
}

// JobLine is a material or labor item tracked on a Job.
type JobLine struct {
	ID          string    `json:"id"`
	JobID       string    `json:"jobId"`
	Kind        LineKind  `json:"kind"`
	Description string    `json:"description"`
	Quantity    float64   `json:"qty"`
	Unit        string    `json:"unit"`
	UnitPrice   float64   `json:"unitPrice"`
	Note        string    `json:"note"`
	Done        bool      `json:"done"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Total is the line cost rounded to the cent.
func (l JobLine) Total() float64 {
	return LineTotal(l.Quantity, l.UnitPrice)
}

// PurchaseLine is a supplier purchase, loosely tied to jobs by JobCode.
type PurchaseLine struct {
	ID        string    `json:"id"`
	Date      time.Time `json:"date"`
	Supplier  string    `json:"supplier"`
	Product   string    `json:"product"`
	Quantity  float64   `json:"qty"`
	Unit      string    `json:"unit"`
	UnitPrice float64   `json:"unitPrice"`
	JobCode   string    `json:"jobCode"`
	Note      string    `json:"note"`
}

// Total is quantity times unit price rounded to the cent.
func (p PurchaseLine) Total() float64 {
	return LineTotal(p.Quantity, p.UnitPrice)
}

// QuoteRow is one priced line of a Quote. Its index is its identity.
type QuoteRow struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"qty"`
	UnitPrice   float64 `json:"unitPrice"`
	DiscountPct float64 `json:"discountPct"`
	VATPct      float64 `json:"vatPct"`
}

// Totals are the tax-inclusive totals of a Quote.
type Totals struct {
	Taxable float64 `json:"taxable"`
	VAT     float64 `json:"vat"`
	Total   float64 `json:"total"`
}

// Quote is a priced proposal that can be converted into a Job.
type Quote struct {
	ID      string      `json:"id"`
	Number  int         `json:"number"`
	Date    time.Time   `json:"date"`
	Client  string      `json:"client"`
	JobCode string      `json:"jobCode"`
	Status  QuoteStatus `json:"status"`
	Notes   string      `json:"notes"`
	Rows    []QuoteRow  `json:"rows"`
	Totals  Totals      `json:"totals"`
}

// Locked reports whether q rejects edits.
func (q Quote) Locked() bool {
	return q.Status == QuoteLocked
}

// Directory holds the known client and supplier names.
type Directory struct {
	Clients   []string `json:"clients"`
	Suppliers []string `json:"suppliers"`
}

// AppState is the root aggregate. It owns every record.
type AppState struct {
	Version         int            `json:"version"`
	Company         CompanyProfile `json:"company"`
	QuoteCounter    int            `json:"quoteCounter"`
	SelectedQuoteID string         `json:"selectedQuoteId,omitempty"`
	OpeningBalance  float64        `json:"openingBalance"`
	LastSyncAt      *time.Time     `json:"lastSyncAt,omitempty"`
	Movements       []Movement     `json:"movements"`
	Directory       Directory      `json:"directory"`
	Jobs            []Job          `json:"jobs"`
	JobPayments     []JobPayment   `json:"jobPayments"`
	JobLines        []JobLine      `json:"jobLines"`
	PurchaseLines   []PurchaseLine `json:"purchaseLines"`
	Quotes          []Quote        `json:"quotes"`
}

// NewDefaultState returns the empty state used on first start, after a
// reset, and whenever a snapshot cannot be read.
func NewDefaultState() *AppState {
	return &AppState{
		Version:      StateVersion,
		Company:      CompanyProfile{Name: DefaultCompanyName},
		QuoteCounter: 1,
		Movements:    []Movement{},
		Directory: Directory{
			Clients:   []string{},
			Suppliers: []string{},
		},
		Jobs:          []Job{},
		JobPayments:   []JobPayment{},
		JobLines:      []JobLine{},
		PurchaseLines: []PurchaseLine{},
		Quotes:        []Quote{},
	}
}

// Clone returns a deep copy of s.
func (s *AppState) Clone() *AppState {
	c := *s
	if s.LastSyncAt != nil {
		t := *s.LastSyncAt
		c.LastSyncAt = &t
	}
	c.Movements = make([]Movement, len(s.Movements))
	for i, m := range s.Movements {
		if m.Source != nil {
			src := *m.Source
			m.Source = &src
		}
		c.Movements[i] = m
	}
	c.Directory = Directory{
		Clients:   append([]string{}, s.Directory.Clients...),
		Suppliers: append([]string{}, s.Directory.Suppliers...),
	}
	c.Jobs = append([]Job{}, s.Jobs...)
	c.JobPayments = append([]JobPayment{}, s.JobPayments...)
	c.JobLines = append([]JobLine{}, s.JobLines...)
	c.PurchaseLines = append([]PurchaseLine{}, s.PurchaseLines...)
	c.Quotes = make([]Quote, len(s.Quotes))
	for i, q := range s.Quotes {
		q.Rows = append([]QuoteRow{}, q.Rows...)
		c.Quotes[i] = q
	}
	return &c
}

// FindJob returns the index of the job with id, or -1.
func (s *AppState) FindJob(id string) int {
	for i := range s.Jobs {
		if s.Jobs[i].ID == id {
			return i
		}
	}
	return -1
}

// FindQuote returns the index of the quote with id, or -1.
func (s *AppState) FindQuote(id string) int {
	for i := range s.Quotes {
		if s.Quotes[i].ID == id {
			return i
		}
	}
	return -1
}
