package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the state for inconsistencies",
		Long: `Report record counts, quotes whose stored totals disagree with their
rows, jobs with an implausible balance, out-of-range amounts and ledger
movements whose source no longer exists.

Exit codes:
  0 - Nothing to flag
  1 - At least one problem found, or the store is running in memory`,
		Args: cobra.NoArgs,
		RunE: withSession(opts, func(ctx context.Context, s *session) error {
			r := s.engine.Diagnostics()
			err := s.out.Emit(r, func(w io.Writer) {
				c := r.Counts
				fmt.Fprintf(w, "Jobs: %d (%d open, %d closed, %d archived)\n", c.Jobs, c.JobsOpen, c.JobsClosed, c.JobsArchived)
				fmt.Fprintf(w, "Quotes: %d (%d draft, %d locked)\n", c.Quotes, c.QuotesDraft, c.QuotesLocked)
				fmt.Fprintf(w, "Movements: %d  Payments: %d  Lines: %d  Purchases: %d\n", c.Movements, c.JobPayments, c.JobLines, c.PurchaseLines)
				fmt.Fprintf(w, "Clients: %d  Suppliers: %d\n", c.Clients, c.Suppliers)
				if r.Storage.Disabled {
					fmt.Fprintf(w, "! store disabled: %s\n", r.Storage.Reason)
				}
				for _, m := range r.Checks.QuoteTotalsMismatches {
					fmt.Fprintf(w, "! quote #%d totals %s stored, %s expected\n", m.Number, s.money(m.Stored.Total), s.money(m.Expected.Total))
				}
				for _, j := range r.Checks.JobResiduals {
					fmt.Fprintf(w, "! job %s residual %s\n", j.ID, s.money(j.Residual))
				}
				for _, n := range r.Checks.InvalidNumbers {
					fmt.Fprintf(w, "! %s %s %s = %g\n", n.Entity, n.ID, n.Field, n.Value)
				}
				for _, id := range r.Checks.OrphanMovements {
					fmt.Fprintf(w, "! movement %s has no source\n", id)
				}
				for _, e := range r.Errors {
					fmt.Fprintf(w, "recent error: %s\n", e)
				}
				if r.Healthy() {
					fmt.Fprintln(w, "OK")
				}
			})
			if err != nil {
				return err
			}
			if !r.Healthy() {
				return &ExitError{Code: ExitFailure, Message: "problems found", Reported: true}
			}
			return nil
		}),
	}
}
