package loader

import (
	"encoding/json"

	"github.com/roach88/previa/internal/domain"
)

// Each raw* struct accepts the current field names and the legacy Italian
// ones. The current name wins when both are present.

type rawCompany struct {
	Name        looseString `json:"name"`
	LogoDataURL looseString `json:"logoDataUrl"`
	Address     looseString `json:"address"`
	TaxID       looseString `json:"taxId"`
	PIVA        looseString `json:"piva"`
	Phone       looseString `json:"phone"`
	Email       looseString `json:"email"`
}

type rawMovement struct {
	ID               looseString `json:"id"`
	Date             looseTime   `json:"date"`
	DateISO          looseTime   `json:"dateISO"`
	Description      looseString `json:"description"`
	Desc             looseString `json:"desc"`
	JobCode          looseString `json:"jobCode"`
	Commessa         looseString `json:"commessa"`
	Amount           looseFloat  `json:"amount"`
	Importo          looseFloat  `json:"importo"`
	Direction        looseString `json:"direction"`
	Tipo             looseString `json:"tipo"`
	CounterpartyKind looseString `json:"counterpartyKind"`
	ControparteTipo  looseString `json:"controparteTipo"`
	CounterpartyName looseString `json:"counterpartyName"`
	ControparteNome  looseString `json:"controparteNome"`
	Source           looseSource `json:"source"`
	SourceType       looseString `json:"sourceType"`
	SourceID         looseString `json:"sourceId"`
}

type rawJob struct {
	ID          looseString `json:"id"`
	Title       looseString `json:"title"`
	Titolo      looseString `json:"titolo"`
	JobCode     looseString `json:"jobCode"`
	Commessa    looseString `json:"commessa"`
	Client      looseString `json:"client"`
	Cliente     looseString `json:"cliente"`
	AgreedTotal looseFloat  `json:"agreedTotal"`
	Status      looseString `json:"status"`
	Stato       looseString `json:"stato"`
	Note        looseString `json:"note"`
	CreatedAt   looseTime   `json:"createdAt"`
	CreatedISO  looseTime   `json:"createdISO"`
}

type rawPayment struct {
	ID      looseString `json:"id"`
	JobID   looseString `json:"jobId"`
	Date    looseTime   `json:"date"`
	DateISO looseTime   `json:"dateISO"`
	Amount  looseFloat  `json:"amount"`
	Method  looseString `json:"method"`
	Note    looseString `json:"note"`
}

type rawLine struct {
	ID          looseString `json:"id"`
	JobID       looseString `json:"jobId"`
	Kind        looseString `json:"kind"`
	Description looseString `json:"description"`
	Desc        looseString `json:"desc"`
	Qty         looseFloat  `json:"qty"`
	Quantity    looseFloat  `json:"quantity"`
	Unit        looseString `json:"unit"`
	UnitPrice   looseFloat  `json:"unitPrice"`
	Note        looseString `json:"note"`
	Done        looseBool   `json:"done"`
	CreatedAt   looseTime   `json:"createdAt"`
	CreatedISO  looseTime   `json:"createdISO"`
}

type rawPurchase struct {
	ID        looseString `json:"id"`
	Date      looseTime   `json:"date"`
	DateISO   looseTime   `json:"dateISO"`
	Supplier  looseString `json:"supplier"`
	Fornitore looseString `json:"fornitore"`
	Product   looseString `json:"product"`
	Prodotto  looseString `json:"prodotto"`
	Qty       looseFloat  `json:"qty"`
	Quantity  looseFloat  `json:"quantity"`
	Unit      looseString `json:"unit"`
	Unita     looseString `json:"unita"`
	UnitPrice looseFloat  `json:"unitPrice"`
	Prezzo    looseFloat  `json:"prezzoUnit"`
	JobCode   looseString `json:"jobCode"`
	Commessa  looseString `json:"commessa"`
	Note      looseString `json:"note"`
}

type rawQuote struct {
	ID      looseString     `json:"id"`
	Number  looseFloat      `json:"number"`
	Date    looseTime       `json:"date"`
	DateISO looseTime       `json:"dateISO"`
	Client  looseString     `json:"client"`
	Cliente looseString     `json:"cliente"`
	JobCode looseString     `json:"jobCode"`
	Comm    looseString     `json:"commessa"`
	Status  looseString     `json:"status"`
	Stato   looseString     `json:"stato"`
	Notes   looseString     `json:"notes"`
	Note    looseString     `json:"note"`
	Rows    json.RawMessage `json:"rows"`
	Righe   json.RawMessage `json:"righe"`
	Totals  json.RawMessage `json:"totals"`
}

type rawRow struct {
	Description looseString `json:"description"`
	Desc        looseString `json:"desc"`
	Qty         looseFloat  `json:"qty"`
	Quantity    looseFloat  `json:"quantity"`
	UnitPrice   looseFloat  `json:"unitPrice"`
	DiscountPct looseFloat  `json:"discountPct"`
	Sconto      looseFloat  `json:"sconto"`
	VATPct      looseFloat  `json:"vatPct"`
	IVA         looseFloat  `json:"iva"`
}

type rawTotals struct {
	Taxable looseFloat `json:"taxable"`
	VAT     looseFloat `json:"vat"`
	Total   looseFloat `json:"total"`
}

func (t rawTotals) present() bool {
	return t.Taxable.ok || t.VAT.ok || t.Total.ok
}

func (t rawTotals) totals() domain.Totals {
	return domain.Totals{Taxable: t.Taxable.v, VAT: t.VAT.v, Total: t.Total.v}
}

type rawDirectory struct {
	Clients   json.RawMessage `json:"clients"`
	Clienti   json.RawMessage `json:"clienti"`
	Suppliers json.RawMessage `json:"suppliers"`
	Fornitori json.RawMessage `json:"fornitori"`
}
