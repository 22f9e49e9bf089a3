package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/previa/internal/domain"
)

// NewDirectoryCommand creates the directory command group.
func NewDirectoryCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "directory",
		Short: "Known client and supplier names",
	}
	cmd.AddCommand(newDirectoryAddCommand(opts), newDirectoryListCommand(opts), newDirectorySuggestCommand(opts))
	return cmd
}

// parseRegistry accepts the two directory kinds.
func parseRegistry(v string) (domain.CounterpartyKind, error) {
	switch k := domain.CounterpartyKind(strings.ToLower(v)); k {
	case domain.CounterpartyClient, domain.CounterpartySupplier:
		return k, nil
	}
	return "", usageError("kind: %q is not one of client, supplier", v)
}

func newDirectoryAddCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add <client|supplier> <name>",
		Short: "Register a name",
		Args:  cobra.ExactArgs(2),
		RunE: withArgsSession(opts, func(ctx context.Context, s *session, args []string) error {
			kind, err := parseRegistry(args[0])
			if err != nil {
				return err
			}
			added, err := s.engine.AddName(ctx, kind, args[1])
			return s.result(err, map[string]bool{"added": added}, func(w io.Writer) {
				if added {
					fmt.Fprintf(w, "Added %s %s\n", kind, args[1])
				} else {
					fmt.Fprintf(w, "%s is already known\n", args[1])
				}
			})
		}),
	}
}

func newDirectoryListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list [client|supplier]",
		Short: "List registered names",
		Args:  cobra.MaximumNArgs(1),
		RunE: withArgsSession(opts, func(ctx context.Context, s *session, args []string) error {
			d := s.engine.Snapshot().Directory
			if len(args) == 1 {
				kind, err := parseRegistry(args[0])
				if err != nil {
					return err
				}
				names := d.Clients
				if kind == domain.CounterpartySupplier {
					names = d.Suppliers
				}
				return s.result(nil, names, func(w io.Writer) {
					for _, n := range names {
						fmt.Fprintln(w, n)
					}
				})
			}
			return s.result(nil, d, func(w io.Writer) {
				fmt.Fprintf(w, "Clients (%d):\n", len(d.Clients))
				for _, n := range d.Clients {
					fmt.Fprintf(w, "  %s\n", n)
				}
				fmt.Fprintf(w, "Suppliers (%d):\n", len(d.Suppliers))
				for _, n := range d.Suppliers {
					fmt.Fprintf(w, "  %s\n", n)
				}
			})
		}),
	}
}

func newDirectorySuggestCommand(opts *RootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "suggest <client|supplier> <prefix>",
		Short: "Suggest names for autocomplete",
		Args:  cobra.ExactArgs(2),
		RunE: withArgsSession(opts, func(ctx context.Context, s *session, args []string) error {
			kind, err := parseRegistry(args[0])
			if err != nil {
				return err
			}
			names := s.engine.Suggest(kind, args[1], limit)
			return s.result(nil, names, func(w io.Writer) {
				for _, n := range names {
					fmt.Fprintln(w, n)
				}
			})
		}),
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 8, "maximum suggestions")
	return cmd
}
