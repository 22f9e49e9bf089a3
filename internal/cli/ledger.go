package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/previa/internal/domain"
	"github.com/roach88/previa/internal/ledger"
)

// NewLedgerCommand creates the ledger command group.
func NewLedgerCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Cash movements, balance and period totals",
	}
	cmd.AddCommand(
		newLedgerAddCommand(opts),
		newLedgerDeleteCommand(opts),
		newLedgerBalanceCommand(opts),
		newLedgerMonthCommand(opts),
		newLedgerYearCommand(opts),
		newLedgerSeriesCommand(opts),
		newLedgerRecentCommand(opts),
		newLedgerOpeningCommand(opts),
	)
	return cmd
}

func newLedgerAddCommand(opts *RootOptions) *cobra.Command {
	var date, description, code, amount, direction, kind, name string
	cmd := &cobra.Command{
		Use:     "add",
		Short:   "Record a manual movement",
		Example: `  previa ledger add --amount 80 --direction out --kind other --description "Carburante"`,
		Args:    cobra.NoArgs,
		RunE: withSession(opts, func(ctx context.Context, s *session) error {
			v, err := parseAmountFlag("amount", amount)
			if err != nil {
				return err
			}
			at, err := parseDateFlag("date", date)
			if err != nil {
				return err
			}
			dir := domain.Direction(direction)
			if !dir.IsValid() {
				return usageError("--direction: %q is not one of in, out", direction)
			}
			k := domain.CounterpartyKind(kind)
			if !k.IsValid() {
				return usageError("--kind: %q is not one of client, supplier, other", kind)
			}
			m, err := s.engine.AddMovement(ctx, ledger.MovementInput{
				Date:             at,
				Description:      description,
				JobCode:          code,
				Amount:           v,
				Direction:        dir,
				CounterpartyKind: k,
				CounterpartyName: name,
			})
			return s.result(err, m, func(w io.Writer) {
				fmt.Fprintf(w, "Recorded %s %s (%s)\n", m.Direction, s.money(m.Amount), m.ID)
			})
		}),
	}
	cmd.Flags().StringVar(&date, "date", "", "movement date YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&description, "description", "", "what the movement is")
	cmd.Flags().StringVar(&code, "code", "", "job code")
	cmd.Flags().StringVar(&amount, "amount", "", "amount, never negative")
	cmd.Flags().StringVar(&direction, "direction", string(domain.DirectionIn), "cash direction (in|out)")
	cmd.Flags().StringVar(&kind, "kind", string(domain.CounterpartyOther), "counterparty kind (client|supplier|other)")
	cmd.Flags().StringVar(&name, "name", "", "counterparty name")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func newLedgerDeleteCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <movement-id>",
		Short: "Delete a manual movement",
		Long:  "Delete a manual movement. Movements emitted by payments or purchases go away with their source.",
		Args:  cobra.ExactArgs(1),
		RunE: withArgsSession(opts, func(ctx context.Context, s *session, args []string) error {
			err := s.engine.DeleteMovement(ctx, args[0])
			return s.result(err, map[string]string{"deleted": args[0]}, func(w io.Writer) {
				fmt.Fprintf(w, "Deleted movement %s\n", args[0])
			})
		}),
	}
}

func newLedgerBalanceCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Show the cash balance",
		Args:  cobra.NoArgs,
		RunE: withSession(opts, func(ctx context.Context, s *session) error {
			snap := s.engine.Snapshot()
			data := map[string]float64{
				"openingBalance": snap.OpeningBalance,
				"balance":        ledger.Balance(snap),
			}
			return s.result(nil, data, func(w io.Writer) {
				fmt.Fprintf(w, "Opening balance: %s\n", s.money(snap.OpeningBalance))
				fmt.Fprintf(w, "Balance:         %s\n", s.money(data["balance"]))
			})
		}),
	}
}

// periodData is the JSON shape of month and year totals.
type periodData struct {
	Period string  `json:"period"`
	In     float64 `json:"in"`
	Out    float64 `json:"out"`
	Net    float64 `json:"net"`
}

func newPeriodData(period string, t ledger.Totals) periodData {
	return periodData{Period: period, In: t.In, Out: t.Out, Net: t.Net()}
}

func (s *session) printPeriod(w io.Writer, p periodData) {
	fmt.Fprintf(w, "%s  in %s  out %s  net %s\n", p.Period, s.money(p.In), s.money(p.Out), s.money(p.Net))
}

func newLedgerMonthCommand(opts *RootOptions) *cobra.Command {
	var month string
	cmd := &cobra.Command{
		Use:   "month",
		Short: "Totals of one calendar month",
		Args:  cobra.NoArgs,
		RunE: withSession(opts, func(ctx context.Context, s *session) error {
			at := s.engine.Clock().Now()
			if month != "" {
				t, err := time.ParseInLocation("2006-01", month, at.Location())
				if err != nil {
					return usageError("--month: %q is not YYYY-MM", month)
				}
				at = t
			}
			p := newPeriodData(at.Format("2006-01"), ledger.MonthlyTotals(s.engine.Snapshot(), at))
			return s.result(nil, p, func(w io.Writer) { s.printPeriod(w, p) })
		}),
	}
	cmd.Flags().StringVar(&month, "month", "", "month YYYY-MM (default current)")
	return cmd
}

func newLedgerYearCommand(opts *RootOptions) *cobra.Command {
	var year int
	cmd := &cobra.Command{
		Use:   "year",
		Short: "Totals of one calendar year",
		Args:  cobra.NoArgs,
		RunE: withSession(opts, func(ctx context.Context, s *session) error {
			now := s.engine.Clock().Now()
			if year == 0 {
				year = now.Year()
			}
			p := newPeriodData(fmt.Sprintf("%04d", year), ledger.YearTotals(s.engine.Snapshot(), year, now.Location()))
			return s.result(nil, p, func(w io.Writer) { s.printPeriod(w, p) })
		}),
	}
	cmd.Flags().IntVar(&year, "year", 0, "year (default current)")
	return cmd
}

func newLedgerSeriesCommand(opts *RootOptions) *cobra.Command {
	var months int
	cmd := &cobra.Command{
		Use:   "series",
		Short: "Monthly in and out for the last months",
		Args:  cobra.NoArgs,
		RunE: withSession(opts, func(ctx context.Context, s *session) error {
			n := months
			if n <= 0 {
				n = s.cfg.SeriesMonths
			}
			points := ledger.MonthlySeries(s.engine.Snapshot(), s.engine.Clock().Now(), n)
			return s.result(nil, points, func(w io.Writer) {
				for _, p := range points {
					fmt.Fprintf(w, "%s %04d  in %12s  out %12s\n", p.Label, p.Year, s.money(p.In), s.money(p.Out))
				}
			})
		}),
	}
	cmd.Flags().IntVar(&months, "months", 0, "number of months (default from config)")
	return cmd
}

func newLedgerRecentCommand(opts *RootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "Most recent movements",
		Args:  cobra.NoArgs,
		RunE: withSession(opts, func(ctx context.Context, s *session) error {
			ms := ledger.Recent(s.engine.Snapshot(), limit)
			return s.result(nil, ms, func(w io.Writer) {
				if len(ms) == 0 {
					fmt.Fprintln(w, "No movements.")
					return
				}
				for _, m := range ms {
					sign := "+"
					if m.Direction == domain.DirectionOut {
						sign = "-"
					}
					fmt.Fprintf(w, "%s %s%12s  %-8s %-20s %s\n",
						m.Date.Format("2006-01-02"), sign, s.money(m.Amount), m.JobCode, m.CounterpartyName, m.Description)
				}
			})
		}),
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of movements")
	return cmd
}

func newLedgerOpeningCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "opening <amount>",
		Short: "Set the opening balance",
		Args:  cobra.ExactArgs(1),
		RunE: withArgsSession(opts, func(ctx context.Context, s *session, args []string) error {
			v, err := parseAmountFlag("amount", args[0])
			if err != nil {
				return err
			}
			err = s.engine.SetOpeningBalance(ctx, v)
			return s.result(err, map[string]float64{"openingBalance": domain.Round2(v)}, func(w io.Writer) {
				fmt.Fprintf(w, "Opening balance set to %s\n", s.money(v))
			})
		}),
	}
}
