package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/previa/internal/domain"
	"github.com/roach88/previa/internal/workorder"
)

// NewLineCommand creates the job-line command group.
func NewLineCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "line",
		Short: "Track material and labor lines of a job",
	}
	cmd.AddCommand(newLineAddCommand(opts), newLineToggleCommand(opts), newLineDeleteCommand(opts))
	return cmd
}

func newLineAddCommand(opts *RootOptions) *cobra.Command {
	var kind, description, qty, unit, price, note string
	cmd := &cobra.Command{
		Use:   "add <job-id>",
		Short: "Add a line to a job",
		Args:  cobra.ExactArgs(1),
		RunE: withArgsSession(opts, func(ctx context.Context, s *session, args []string) error {
			k := domain.LineKind(kind)
			if !k.IsValid() {
				return usageError("--kind: %q is not one of material, labor", kind)
			}
			q, err := parseOptionalAmount("qty", qty)
			if err != nil {
				return err
			}
			up, err := parseOptionalAmount("price", price)
			if err != nil {
				return err
			}
			l, err := s.engine.CreateJobLine(ctx, workorder.LineInput{
				JobID:       args[0],
				Kind:        k,
				Description: description,
				Quantity:    q,
				Unit:        unit,
				UnitPrice:   up,
				Note:        note,
			})
			return s.result(err, l, func(w io.Writer) {
				fmt.Fprintf(w, "Added %s line %s: %s\n", l.Kind, l.ID, s.money(l.Total()))
			})
		}),
	}
	cmd.Flags().StringVar(&kind, "kind", string(domain.LineMaterial), "line kind (material|labor)")
	cmd.Flags().StringVar(&description, "description", "", "what the line is")
	cmd.Flags().StringVar(&qty, "qty", "1", "quantity")
	cmd.Flags().StringVar(&unit, "unit", "", "unit of measure")
	cmd.Flags().StringVar(&price, "price", "", "unit price")
	cmd.Flags().StringVar(&note, "note", "", "free text note")
	return cmd
}

func newLineToggleCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <line-id>",
		Short: "Flip the done flag of a line",
		Args:  cobra.ExactArgs(1),
		RunE: withArgsSession(opts, func(ctx context.Context, s *session, args []string) error {
			l, err := s.engine.ToggleJobLineDone(ctx, args[0])
			return s.result(err, l, func(w io.Writer) {
				state := "open"
				if l.Done {
					state = "done"
				}
				fmt.Fprintf(w, "Line %s is %s\n", l.ID, state)
			})
		}),
	}
}

func newLineDeleteCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <line-id>",
		Short: "Delete a job line",
		Args:  cobra.ExactArgs(1),
		RunE: withArgsSession(opts, func(ctx context.Context, s *session, args []string) error {
			err := s.engine.DeleteJobLine(ctx, args[0])
			return s.result(err, map[string]string{"deleted": args[0]}, func(w io.Writer) {
				fmt.Fprintf(w, "Deleted line %s\n", args[0])
			})
		}),
	}
}
