package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/previa/internal/domain"
	"github.com/roach88/previa/internal/exchange"
	"github.com/roach88/previa/internal/history"
	"github.com/roach88/previa/internal/workorder"
)

// purchaseWriters maps export formats to their writers.
var purchaseWriters = map[string]func(io.Writer, []domain.PurchaseLine) error{
	"csv":  exchange.WritePurchasesCSV,
	"xlsx": exchange.WritePurchasesXLSX,
	"json": exchange.WritePurchasesJSON,
}

// NewPurchaseCommand creates the purchase command group.
func NewPurchaseCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "purchase",
		Short: "Record, export and import supplier purchases",
	}
	cmd.AddCommand(
		newPurchaseAddCommand(opts),
		newPurchaseDeleteCommand(opts),
		newPurchaseExportCommand(opts),
		newPurchaseImportCommand(opts),
	)
	return cmd
}

func newPurchaseAddCommand(opts *RootOptions) *cobra.Command {
	var supplier, product, qty, unit, price, code, note, date string
	cmd := &cobra.Command{
		Use:     "add",
		Short:   "Record a purchase and its outbound movement",
		Example: `  previa purchase add --supplier Brico --product "Silicone" --qty 4 --price 6,50 --code R-24`,
		Args:    cobra.NoArgs,
		RunE: withSession(opts, func(ctx context.Context, s *session) error {
			q, err := parseAmountFlag("qty", qty)
			if err != nil {
				return err
			}
			up, err := parseAmountFlag("price", price)
			if err != nil {
				return err
			}
			at, err := parseDateFlag("date", date)
			if err != nil {
				return err
			}
			p, err := s.engine.CreatePurchaseLine(ctx, workorder.PurchaseInput{
				Supplier:  supplier,
				Product:   product,
				Quantity:  q,
				Unit:      unit,
				UnitPrice: up,
				JobCode:   code,
				Note:      note,
				Date:      at,
			})
			return s.result(err, p, func(w io.Writer) {
				fmt.Fprintf(w, "Recorded purchase %s from %s: %s\n", p.ID, p.Supplier, s.money(p.Total()))
			})
		}),
	}
	cmd.Flags().StringVar(&supplier, "supplier", "", "supplier name")
	cmd.Flags().StringVar(&product, "product", "", "product bought")
	cmd.Flags().StringVar(&qty, "qty", "1", "quantity")
	cmd.Flags().StringVar(&unit, "unit", "", "unit of measure")
	cmd.Flags().StringVar(&price, "price", "", "unit price")
	cmd.Flags().StringVar(&code, "code", "", "job code the purchase is for")
	cmd.Flags().StringVar(&note, "note", "", "free text note")
	cmd.Flags().StringVar(&date, "date", "", "purchase date YYYY-MM-DD (default today)")
	_ = cmd.MarkFlagRequired("price")
	return cmd
}

func newPurchaseDeleteCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <purchase-id>",
		Short: "Delete a purchase and the movements it emitted",
		Args:  cobra.ExactArgs(1),
		RunE: withArgsSession(opts, func(ctx context.Context, s *session, args []string) error {
			n, err := s.engine.DeletePurchaseLine(ctx, args[0])
			data := map[string]interface{}{"deleted": args[0], "movements": n}
			return s.result(err, data, func(w io.Writer) {
				fmt.Fprintf(w, "Deleted purchase %s and %d movements\n", args[0], n)
			})
		}),
	}
}

func newPurchaseExportCommand(opts *RootOptions) *cobra.Command {
	var as, output string
	var f history.Filter
	var month int
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export purchases as CSV, XLSX or JSON",
		Example: `  previa purchase export --as xlsx --year 2026 --month 3
  previa purchase export --as csv --code R-24 -o r24.csv`,
		Args: cobra.NoArgs,
		RunE: withSession(opts, func(ctx context.Context, s *session) error {
			write, ok := purchaseWriters[as]
			if !ok {
				return usageError("--as: %q is not one of csv, xlsx, json", as)
			}
			if month < 0 || month > 12 {
				return usageError("--month: %d is not between 1 and 12", month)
			}
			f.Month = time.Month(month)
			path := output
			if path == "" {
				path = exchange.ExportFilename(s.engine.Clock().Now(), as)
			}
			var n int
			err := s.engine.RunDocument(ctx, "export "+as, func(ctx context.Context, snap *domain.AppState) error {
				lines := history.Search(snap, f)
				n = len(lines)
				return writeFile(path, func(w io.Writer) error { return write(w, lines) })
			}, nil)
			if err != nil {
				return s.out.Fail(err)
			}
			return s.result(nil, map[string]interface{}{"path": path, "purchases": n}, func(w io.Writer) {
				fmt.Fprintf(w, "Wrote %d purchases to %s\n", n, path)
			})
		}),
	}
	cmd.Flags().StringVar(&as, "as", "csv", "export format (csv|xlsx|json)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: acquisti_YYYY_MM.<ext>)")
	cmd.Flags().StringVar(&f.Supplier, "supplier", "", "only this supplier")
	cmd.Flags().StringVar(&f.Product, "product", "", "only matching products")
	cmd.Flags().StringVar(&f.JobCode, "code", "", "only this job code")
	cmd.Flags().IntVar(&f.Year, "year", 0, "only this year")
	cmd.Flags().IntVar(&month, "month", 0, "only this month (1-12)")
	return cmd
}

func newPurchaseImportCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.json>",
		Short: "Import purchases, skipping duplicates",
		Long: `Import purchases from a JSON array or a {"purchaseLines": [...]} document.

A record already present with the same date, supplier, product, quantity,
unit price and job code is counted as a duplicate and skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: withArgsSession(opts, func(ctx context.Context, s *session, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read import file", err)
			}
			res, err := s.engine.ImportPurchases(ctx, filepath.Base(args[0]), data)
			return s.result(err, res, func(w io.Writer) {
				fmt.Fprintf(w, "Imported %d purchases (%d duplicates, %d invalid)\n", res.Imported, res.Duplicates, res.Invalid)
			})
		}),
	}
}
