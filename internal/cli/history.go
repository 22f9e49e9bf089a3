package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/previa/internal/history"
)

// NewHistoryCommand creates the purchase history command group.
func NewHistoryCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Search past purchases and compare prices",
	}
	cmd.AddCommand(newHistorySearchCommand(opts), newHistoryStatsCommand(opts), newHistoryProductsCommand(opts))
	return cmd
}

func newHistorySearchCommand(opts *RootOptions) *cobra.Command {
	var f history.Filter
	var month int
	var order string
	var grouped bool
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Filter purchases",
		Example: `  previa history search --product silicone --order price
  previa history search --supplier brico --year 2026 --month 3 --group`,
		Args: cobra.NoArgs,
		RunE: withSession(opts, func(ctx context.Context, s *session) error {
			switch history.Order(order) {
			case history.ByDateDesc, history.ByPrice:
				f.Order = history.Order(order)
			default:
				return usageError("--order: %q is not one of %s, %s", order, history.ByDateDesc, history.ByPrice)
			}
			if month < 0 || month > 12 {
				return usageError("--month: %d is not between 1 and 12", month)
			}
			f.Month = time.Month(month)
			f.Location = s.engine.Clock().Now().Location()

			lines := history.Search(s.engine.Snapshot(), f)
			if grouped {
				groups := history.GroupByProduct(lines)
				return s.result(nil, groups, func(w io.Writer) {
					for _, g := range groups {
						fmt.Fprintf(w, "%-28s %3d buys  min %s  max %s  last %s\n",
							g.Product, g.Count, s.money(g.MinPrice), s.money(g.MaxPrice), s.money(g.LastPrice))
					}
				})
			}
			return s.result(nil, lines, func(w io.Writer) {
				if len(lines) == 0 {
					fmt.Fprintln(w, "No purchases.")
					return
				}
				for _, l := range lines {
					fmt.Fprintf(w, "%s %-16s %-24s %6g x %10s %-8s\n",
						l.Date.Format("2006-01-02"), l.Supplier, l.Product, l.Quantity, s.money(l.UnitPrice), l.JobCode)
				}
			})
		}),
	}
	cmd.Flags().StringVar(&f.Product, "product", "", "product contains")
	cmd.Flags().StringVar(&f.Supplier, "supplier", "", "supplier contains")
	cmd.Flags().StringVar(&f.JobCode, "code", "", "job code contains")
	cmd.Flags().IntVar(&f.Year, "year", 0, "only this year")
	cmd.Flags().IntVar(&month, "month", 0, "only this month (1-12)")
	cmd.Flags().StringVar(&order, "order", string(history.ByDateDesc), "sort order (date-desc|price)")
	cmd.Flags().BoolVar(&grouped, "group", false, "group by product with price stats")
	return cmd
}

func newHistoryStatsCommand(opts *RootOptions) *cobra.Command {
	var year int
	cmd := &cobra.Command{
		Use:   "stats <product>",
		Short: "Price statistics of a product",
		Args:  cobra.ExactArgs(1),
		RunE: withArgsSession(opts, func(ctx context.Context, s *session, args []string) error {
			st := history.ProductStats(s.engine.Snapshot(), args[0], year)
			return s.result(nil, st, func(w io.Writer) {
				if st.Count == 0 {
					fmt.Fprintf(w, "No purchases of %q.\n", args[0])
					return
				}
				fmt.Fprintf(w, "%s: %d purchases, %g units, spent %s\n", st.Product, st.Count, st.Quantity, s.money(st.Spent))
				fmt.Fprintf(w, "unit price min %s  avg %s  max %s  last %s\n",
					s.money(st.MinPrice), s.money(st.AvgPrice), s.money(st.MaxPrice), s.money(st.LastPrice))
			})
		}),
	}
	cmd.Flags().IntVar(&year, "year", 0, "only this year")
	return cmd
}

func newHistoryProductsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "products",
		Short: "List purchased products",
		Args:  cobra.NoArgs,
		RunE: withSession(opts, func(ctx context.Context, s *session) error {
			products := history.Products(s.engine.Snapshot())
			return s.result(nil, products, func(w io.Writer) {
				for _, p := range products {
					fmt.Fprintln(w, p)
				}
			})
		}),
	}
}
