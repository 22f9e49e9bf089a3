package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/previa/internal/domain"
	"github.com/roach88/previa/internal/quote"
)

// NewQuoteCommand creates the quote command group.
func NewQuoteCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Build, lock and confirm quotes",
		Long: `Build quotes row by row. Totals are recomputed on every change.

A locked quote rejects edits until unlocked. Confirming a quote opens a
job for its total with one labor line per row and locks the quote.`,
	}
	row := &cobra.Command{
		Use:   "row",
		Short: "Edit the rows of a draft quote",
	}
	row.AddCommand(newQuoteRowAddCommand(opts), newQuoteRowUpdateCommand(opts), newQuoteRowRemoveCommand(opts))

	cmd.AddCommand(
		newQuoteNewCommand(opts),
		newQuoteListCommand(opts),
		newQuoteShowCommand(opts),
		row,
		newQuoteHeaderCommand(opts),
		quoteAction(opts, "lock", "Freeze a quote", func(ctx context.Context, s *session, id string) (interface{}, error) {
			return s.engine.LockQuote(ctx, id)
		}),
		quoteAction(opts, "unlock", "Return a locked quote to draft", func(ctx context.Context, s *session, id string) (interface{}, error) {
			return s.engine.UnlockQuote(ctx, id)
		}),
		quoteAction(opts, "duplicate", "Copy a quote into a new draft", func(ctx context.Context, s *session, id string) (interface{}, error) {
			return s.engine.DuplicateQuote(ctx, id)
		}),
		newQuoteConfirmCommand(opts),
		newQuoteResetCommand(opts),
		newQuoteDeleteCommand(opts),
		newQuoteSelectCommand(opts),
	)
	return cmd
}

// quoteAction builds a one-argument command whose operation returns a
// quote.
func quoteAction(opts *RootOptions, use, short string, op func(ctx context.Context, s *session, id string) (interface{}, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <quote-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: withArgsSession(opts, func(ctx context.Context, s *session, args []string) error {
			v, err := op(ctx, s, args[0])
			return s.result(err, v, func(w io.Writer) {
				if q, ok := v.(domain.Quote); ok {
					printQuote(w, s, q)
				}
			})
		}),
	}
}

func newQuoteNewCommand(opts *RootOptions) *cobra.Command {
	var client, code string
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Start a new draft quote",
		Args:  cobra.NoArgs,
		RunE: withSession(opts, func(ctx context.Context, s *session) error {
			q, err := s.engine.CreateQuote(ctx, client, code)
			return s.result(err, q, func(w io.Writer) {
				fmt.Fprintf(w, "Created quote #%d (%s)\n", q.Number, q.ID)
			})
		}),
	}
	cmd.Flags().StringVar(&client, "client", "", "client name")
	cmd.Flags().StringVar(&code, "code", "", "job code")
	return cmd
}

func newQuoteListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List quotes",
		Args:  cobra.NoArgs,
		RunE: withSession(opts, func(ctx context.Context, s *session) error {
			quotes := s.engine.ListQuotes()
			selected := s.engine.Snapshot().SelectedQuoteID
			data := map[string]interface{}{"quotes": quotes, "selectedQuoteId": selected}
			return s.result(nil, data, func(w io.Writer) {
				if len(quotes) == 0 {
					fmt.Fprintln(w, "No quotes.")
					return
				}
				for _, q := range quotes {
					mark := " "
					if q.ID == selected {
						mark = "*"
					}
					fmt.Fprintf(w, "%s #%-4d %-10s %-8s %-20s %12s\n", mark, q.Number, q.JobCode, q.Status, q.Client, s.money(q.Totals.Total))
				}
			})
		}),
	}
}

func newQuoteShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <quote-id>",
		Short: "Show a quote with its rows and totals",
		Args:  cobra.ExactArgs(1),
		RunE: withArgsSession(opts, func(ctx context.Context, s *session, args []string) error {
			q, err := s.engine.Quote(args[0])
			return s.result(err, q, func(w io.Writer) { printQuote(w, s, q) })
		}),
	}
}

// rowFlags are the flags shared by row add and row update.
type rowFlags struct {
	description, qty, price, discount, vat string
}

func (f *rowFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.description, "description", "", "row description")
	cmd.Flags().StringVar(&f.qty, "qty", "1", "quantity")
	cmd.Flags().StringVar(&f.price, "price", "", "unit price before discount")
	cmd.Flags().StringVar(&f.discount, "discount", "", "discount percent (0-100)")
	cmd.Flags().StringVar(&f.vat, "vat", "", "VAT percent (default from config)")
}

func (f *rowFlags) input(cmd *cobra.Command) (quote.RowInput, error) {
	var in quote.RowInput
	var err error
	in.Description = f.description
	if in.Quantity, err = parseAmountFlag("qty", f.qty); err != nil {
		return in, err
	}
	if in.UnitPrice, err = parseOptionalAmount("price", f.price); err != nil {
		return in, err
	}
	if in.DiscountPct, err = parseOptionalAmount("discount", f.discount); err != nil {
		return in, err
	}
	if cmd.Flags().Changed("vat") {
		v, err := parseAmountFlag("vat", f.vat)
		if err != nil {
			return in, err
		}
		in.VATPct = &v
	}
	return in, nil
}

func newQuoteRowAddCommand(opts *RootOptions) *cobra.Command {
	f := &rowFlags{}
	cmd := &cobra.Command{
		Use:   "add <quote-id>",
		Short: "Append a row",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = withArgsSession(opts, func(ctx context.Context, s *session, args []string) error {
		in, err := f.input(cmd)
		if err != nil {
			return err
		}
		q, err := s.engine.AddQuoteRow(ctx, args[0], in)
		return s.result(err, q, func(w io.Writer) { printQuote(w, s, q) })
	})
	f.register(cmd)
	return cmd
}

func newQuoteRowUpdateCommand(opts *RootOptions) *cobra.Command {
	f := &rowFlags{}
	cmd := &cobra.Command{
		Use:   "update <quote-id> <row>",
		Short: "Replace a row (rows are numbered from 1)",
		Args:  cobra.ExactArgs(2),
	}
	cmd.RunE = withArgsSession(opts, func(ctx context.Context, s *session, args []string) error {
		index, err := parseRowNumber(args[1])
		if err != nil {
			return err
		}
		in, err := f.input(cmd)
		if err != nil {
			return err
		}
		q, err := s.engine.UpdateQuoteRow(ctx, args[0], index, in)
		return s.result(err, q, func(w io.Writer) { printQuote(w, s, q) })
	})
	f.register(cmd)
	return cmd
}

func newQuoteRowRemoveCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <quote-id> <row>",
		Short: "Remove a row (rows are numbered from 1)",
		Args:  cobra.ExactArgs(2),
		RunE: withArgsSession(opts, func(ctx context.Context, s *session, args []string) error {
			index, err := parseRowNumber(args[1])
			if err != nil {
				return err
			}
			q, err := s.engine.RemoveQuoteRow(ctx, args[0], index)
			return s.result(err, q, func(w io.Writer) { printQuote(w, s, q) })
		}),
	}
}

func newQuoteHeaderCommand(opts *RootOptions) *cobra.Command {
	var client, code, notes string
	cmd := &cobra.Command{
		Use:   "header <quote-id>",
		Short: "Edit client, job code or notes of a draft quote",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = withArgsSession(opts, func(ctx context.Context, s *session, args []string) error {
		var in quote.HeaderInput
		if cmd.Flags().Changed("client") {
			in.Client = &client
		}
		if cmd.Flags().Changed("code") {
			in.JobCode = &code
		}
		if cmd.Flags().Changed("notes") {
			in.Notes = &notes
		}
		q, err := s.engine.SetQuoteHeader(ctx, args[0], in)
		return s.result(err, q, func(w io.Writer) { printQuote(w, s, q) })
	})
	cmd.Flags().StringVar(&client, "client", "", "client name")
	cmd.Flags().StringVar(&code, "code", "", "job code")
	cmd.Flags().StringVar(&notes, "notes", "", "notes printed on the quote")
	return cmd
}

func newQuoteConfirmCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "confirm <quote-id>",
		Short: "Open a job from a quote and lock it",
		Args:  cobra.ExactArgs(1),
		RunE: withArgsSession(opts, func(ctx context.Context, s *session, args []string) error {
			job, err := s.engine.ConfirmQuoteAsJob(ctx, args[0])
			return s.result(err, job, func(w io.Writer) {
				fmt.Fprintf(w, "Opened job %s (%s) for %s\n", job.ID, job.JobCode, s.money(job.AgreedTotal))
			})
		}),
	}
}

func newQuoteResetCommand(opts *RootOptions) *cobra.Command {
	var clearHeader bool
	cmd := &cobra.Command{
		Use:   "reset <quote-id>",
		Short: "Clear all rows and return the quote to draft",
		Args:  cobra.ExactArgs(1),
		RunE: withArgsSession(opts, func(ctx context.Context, s *session, args []string) error {
			q, err := s.engine.ResetQuote(ctx, args[0], clearHeader)
			return s.result(err, q, func(w io.Writer) { printQuote(w, s, q) })
		}),
	}
	cmd.Flags().BoolVar(&clearHeader, "clear-header", false, "also blank client, job code and notes")
	return cmd
}

func newQuoteDeleteCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <quote-id>",
		Short: "Delete a quote",
		Args:  cobra.ExactArgs(1),
		RunE: withArgsSession(opts, func(ctx context.Context, s *session, args []string) error {
			err := s.engine.DeleteQuote(ctx, args[0])
			return s.result(err, map[string]string{"deleted": args[0]}, func(w io.Writer) {
				fmt.Fprintf(w, "Deleted quote %s\n", args[0])
			})
		}),
	}
}

func newQuoteSelectCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "select <quote-id>",
		Short: "Make a quote the selected one",
		Args:  cobra.ExactArgs(1),
		RunE: withArgsSession(opts, func(ctx context.Context, s *session, args []string) error {
			err := s.engine.SelectQuote(ctx, args[0])
			return s.result(err, map[string]string{"selectedQuoteId": args[0]}, func(w io.Writer) {
				fmt.Fprintf(w, "Selected quote %s\n", args[0])
			})
		}),
	}
}

// parseRowNumber converts a 1-based row number to an index.
func parseRowNumber(v string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, usageError("row: %q is not a row number", v)
	}
	return n - 1, nil
}

func printQuote(w io.Writer, s *session, q domain.Quote) {
	fmt.Fprintf(w, "Quote #%d  %s  [%s]\n", q.Number, q.Date.Format("2006-01-02"), q.Status)
	fmt.Fprintf(w, "Client: %s  Code: %s\n", q.Client, q.JobCode)
	for i, r := range q.Rows {
		taxable, _ := quote.RowAmounts(r)
		fmt.Fprintf(w, "  %2d. %-28s %6g x %10s -%g%% +%g%% VAT = %s\n",
			i+1, r.Description, r.Quantity, s.money(r.UnitPrice), r.DiscountPct, r.VATPct, s.money(taxable))
	}
	if q.Notes != "" {
		fmt.Fprintf(w, "Notes: %s\n", q.Notes)
	}
	fmt.Fprintf(w, "Taxable %s  VAT %s  Total %s\n", s.money(q.Totals.Taxable), s.money(q.Totals.VAT), s.money(q.Totals.Total))
}
