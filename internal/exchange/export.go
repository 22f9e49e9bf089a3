// Package exchange moves state in and out of the process: purchase
// exports (CSV, XLSX, JSON), purchase import with duplicate detection,
// full-state import, backups and per-job dossiers.
package exchange

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/roach88/previa/internal/domain"
)

// PurchaseColumns is the header row of purchase exports.
var PurchaseColumns = []string{"dateISO", "fornitore", "prodotto", "qty", "unita", "prezzoUnit", "totale", "commessa", "note"}

// PurchaseSheet is the worksheet name of XLSX exports.
const PurchaseSheet = "Acquisti"

// ExportFilename names an export of the given extension for the month
// of now, e.g. acquisti_2026_03.csv.
func ExportFilename(now time.Time, ext string) string {
	return fmt.Sprintf("acquisti_%04d_%02d.%s", now.Year(), int(now.Month()), ext)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// flatten keeps a note on one line.
func flatten(s string) string {
	return strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(s)
}

func purchaseRecord(l domain.PurchaseLine) []string {
	unit := l.Unit
	if unit == "" {
		unit = domain.DefaultUnit
	}
	return []string{
		l.Date.UTC().Format(time.RFC3339),
		l.Supplier,
		l.Product,
		formatNumber(l.Quantity),
		unit,
		formatNumber(l.UnitPrice),
		formatNumber(l.Total()),
		l.JobCode,
		flatten(l.Note),
	}
}

// WritePurchasesCSV writes lines as comma-separated values with a header.
func WritePurchasesCSV(w io.Writer, lines []domain.PurchaseLine) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(PurchaseColumns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, l := range lines {
		if err := cw.Write(purchaseRecord(l)); err != nil {
			return fmt.Errorf("write csv row %s: %w", l.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// WritePurchasesXLSX writes lines to a single-sheet workbook. Numeric
// columns are stored as numbers.
func WritePurchasesXLSX(w io.Writer, lines []domain.PurchaseLine) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", PurchaseSheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}
	header := make([]interface{}, len(PurchaseColumns))
	for i, c := range PurchaseColumns {
		header[i] = c
	}
	if err := f.SetSheetRow(PurchaseSheet, "A1", &header); err != nil {
		return fmt.Errorf("write xlsx header: %w", err)
	}
	for i, l := range lines {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{
			l.Date.UTC().Format(time.RFC3339),
			l.Supplier,
			l.Product,
			l.Quantity,
			l.Unit,
			l.UnitPrice,
			l.Total(),
			l.JobCode,
			flatten(l.Note),
		}
		if err := f.SetSheetRow(PurchaseSheet, cell, &row); err != nil {
			return fmt.Errorf("write xlsx row %s: %w", l.ID, err)
		}
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

// PurchaseDocument is the JSON purchase export, also accepted by
// ImportPurchases.
type PurchaseDocument struct {
	PurchaseLines []domain.PurchaseLine `json:"purchaseLines"`
}

// WritePurchasesJSON writes {"purchaseLines": [...]} indented.
func WritePurchasesJSON(w io.Writer, lines []domain.PurchaseLine) error {
	if lines == nil {
		lines = []domain.PurchaseLine{}
	}
	return writeJSON(w, PurchaseDocument{PurchaseLines: lines})
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}
