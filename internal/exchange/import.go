package exchange

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/previa/internal/domain"
	"github.com/roach88/previa/internal/loader"
	"github.com/roach88/previa/internal/schema"
	"github.com/roach88/previa/internal/workorder"
)

// ErrEmptyImport is returned when a purchase document has no records.
var ErrEmptyImport = fmt.Errorf("no purchase lines to import: %w", schema.ErrInvalidDocument)

// PurchaseCreator records purchases. The work-order engine implements it.
type PurchaseCreator interface {
	CreatePurchaseLine(in workorder.PurchaseInput) (domain.PurchaseLine, error)
}

// ImportResult counts the fate of each imported record.
type ImportResult struct {
	Imported   int `json:"imported"`
	Duplicates int `json:"duplicates"`
	Invalid    int `json:"invalid"`
}

// Importer validates and applies imported documents.
type Importer struct {
	schema *schema.Validator
	loader *loader.Loader
	clock  domain.Clock
}

// NewImporter creates an Importer.
func NewImporter(v *schema.Validator, l *loader.Loader, clock domain.Clock) *Importer {
	return &Importer{schema: v, loader: l, clock: clock}
}

// purchaseKey identifies a purchase for duplicate detection.
type purchaseKey struct {
	date     string
	supplier string
	product  string
	total    float64
}

func keyOf(p domain.PurchaseLine) purchaseKey {
	return purchaseKey{
		date:     p.Date.UTC().Format(time.RFC3339Nano),
		supplier: strings.ToUpper(domain.Clean(p.Supplier)),
		product:  strings.ToUpper(domain.Clean(p.Product)),
		total:    p.Total(),
	}
}

// ImportPurchases adds the purchases of data to s through wo. data is a
// JSON list of purchase records or an object with a purchaseLines list.
//
// A record equal to an existing purchase (same instant, supplier and
// product ignoring case, same rounded total) is skipped as a duplicate,
// including a repeat within the same document. Records without a date
// are stamped at midday of the current day. Records the loader or the
// work-order engine reject are counted as invalid.
func (im *Importer) ImportPurchases(s *domain.AppState, wo PurchaseCreator, filename string, data []byte) (ImportResult, error) {
	var res ImportResult
	if err := im.schema.Validate(schema.Purchases, filename, data); err != nil {
		return res, err
	}
	records, err := purchaseRecords(data)
	if err != nil {
		return res, err
	}
	if len(records) == 0 {
		return res, ErrEmptyImport
	}

	seen := make(map[purchaseKey]bool, len(s.PurchaseLines)+len(records))
	for _, p := range s.PurchaseLines {
		seen[keyOf(p)] = true
	}

	undated := domain.Midday(im.clock.Now())
	for _, raw := range records {
		p, ok := im.loader.Purchase(raw, undated)
		if !ok {
			res.Invalid++
			continue
		}
		k := keyOf(p)
		if seen[k] {
			res.Duplicates++
			continue
		}
		line, err := wo.CreatePurchaseLine(workorder.PurchaseInput{
			Supplier:  p.Supplier,
			Product:   p.Product,
			Quantity:  p.Quantity,
			Unit:      p.Unit,
			UnitPrice: p.UnitPrice,
			JobCode:   p.JobCode,
			Note:      p.Note,
			Date:      p.Date,
		})
		if errors.Is(err, domain.ErrInvalidInput) {
			res.Invalid++
			continue
		}
		if err != nil {
			return res, fmt.Errorf("import purchase: %w", err)
		}
		seen[keyOf(line)] = true
		res.Imported++
	}
	return res, nil
}

func purchaseRecords(data []byte) ([]json.RawMessage, error) {
	var list []json.RawMessage
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}
	var doc struct {
		PurchaseLines []json.RawMessage `json:"purchaseLines"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode purchases: %v: %w", err, schema.ErrInvalidDocument)
	}
	return doc.PurchaseLines, nil
}

// ImportState builds a new state from a backup-style document
// {"state": {...}}. Missing fields take their defaults and every record
// goes through the loader, so the result is as valid as a loaded
// snapshot.
func (im *Importer) ImportState(filename string, data []byte) (*domain.AppState, loader.Diagnostics, error) {
	if err := im.schema.Validate(schema.State, filename, data); err != nil {
		return nil, loader.Diagnostics{}, err
	}
	var doc struct {
		State map[string]json.RawMessage `json:"state"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, loader.Diagnostics{}, fmt.Errorf("decode state: %v: %w", err, schema.ErrInvalidDocument)
	}
	s, diag := im.loader.LoadDocument(doc.State)
	return s, diag, nil
}
