package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/previa/internal/domain"
	"github.com/roach88/previa/internal/workorder"
)

// NewPaymentCommand creates the payment command group.
func NewPaymentCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payment",
		Short: "Record client payments against jobs",
	}
	cmd.AddCommand(newPaymentAddCommand(opts))
	return cmd
}

func newPaymentAddCommand(opts *RootOptions) *cobra.Command {
	var amount, method, note, date string
	cmd := &cobra.Command{
		Use:   "add <job-id>",
		Short: "Record a payment; the job closes once fully paid",
		Example: `  previa payment add 0190e1c2 --amount 500 --method bonifico
  previa payment add 0190e1c2 --amount 250,50 --date 2026-03-01`,
		Args: cobra.ExactArgs(1),
		RunE: withArgsSession(opts, func(ctx context.Context, s *session, args []string) error {
			v, err := parseAmountFlag("amount", amount)
			if err != nil {
				return err
			}
			at, err := parseDateFlag("date", date)
			if err != nil {
				return err
			}
			p, err := s.engine.CreatePayment(ctx, workorder.PaymentInput{
				JobID:  args[0],
				Amount: v,
				Method: method,
				Note:   note,
				Date:   at,
			})
			if err != nil {
				return s.out.Fail(err)
			}
			r, err := s.engine.JobReport(p.JobID)
			data := map[string]interface{}{"payment": p, "due": r.Due, "status": r.Job.Status}
			return s.result(err, data, func(w io.Writer) {
				fmt.Fprintf(w, "Recorded %s on %s, still due %s\n", s.money(p.Amount), p.JobID, s.money(r.Due))
				if r.Job.Status == domain.JobClosed {
					fmt.Fprintln(w, "Job is fully paid and now closed.")
				}
			})
		}),
	}
	cmd.Flags().StringVar(&amount, "amount", "", "amount received")
	cmd.Flags().StringVar(&method, "method", "", "payment method (default "+domain.DefaultPaymentMethod+")")
	cmd.Flags().StringVar(&note, "note", "", "free text note")
	cmd.Flags().StringVar(&date, "date", "", "payment date YYYY-MM-DD (default today)")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}
