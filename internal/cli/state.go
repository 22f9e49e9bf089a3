package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/previa/internal/domain"
	"github.com/roach88/previa/internal/exchange"
	"github.com/roach88/previa/internal/loader"
)

// NewStateCommand creates the state command group.
func NewStateCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Back up, restore and reset the whole state",
	}
	cmd.AddCommand(
		newStateExportCommand(opts),
		newStateImportCommand(opts),
		newStateResetCommand(opts),
		newStateCompanyCommand(opts),
	)
	return cmd
}

func newStateExportCommand(opts *RootOptions) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a full backup as JSON",
		Args:  cobra.NoArgs,
		RunE: withSession(opts, func(ctx context.Context, s *session) error {
			now := s.engine.Clock().Now()
			path := output
			if path == "" {
				path = exchange.BackupFilename(now)
			}
			err := s.engine.RunDocument(ctx, "backup", func(ctx context.Context, snap *domain.AppState) error {
				return writeFile(path, func(w io.Writer) error { return exchange.WriteBackup(w, snap, now) })
			}, nil)
			return s.result(err, map[string]string{"path": path}, func(w io.Writer) {
				fmt.Fprintf(w, "Wrote backup %s\n", path)
			})
		}),
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: previa_backup_<date>.json)")
	return cmd
}

func newStateImportCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <backup.json>",
		Short: "Replace the whole state with a backup",
		Long: `Replace the whole state with a backup document {"state": {...}}.

Records that cannot be repaired are dropped and reported. The previous
state is overwritten.`,
		Args: cobra.ExactArgs(1),
		RunE: withArgsSession(opts, func(ctx context.Context, s *session, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read backup", err)
			}
			d, err := s.engine.ImportState(ctx, filepath.Base(args[0]), data)
			return s.result(err, d, func(w io.Writer) {
				fmt.Fprintf(w, "Imported %s\n", args[0])
				printLoadDiagnostics(w, d)
			})
		}),
	}
}

func newStateResetCommand(opts *RootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every record and start over",
		Args:  cobra.NoArgs,
		RunE: withSession(opts, func(ctx context.Context, s *session) error {
			if !yes {
				return usageError("reset deletes every record; pass --yes to confirm")
			}
			err := s.engine.Reset(ctx)
			return s.result(err, map[string]bool{"reset": true}, func(w io.Writer) {
				fmt.Fprintln(w, "State reset.")
			})
		}),
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the reset")
	return cmd
}

func newStateCompanyCommand(opts *RootOptions) *cobra.Command {
	var c domain.CompanyProfile
	cmd := &cobra.Command{
		Use:   "company",
		Short: "Show or edit the company profile printed on documents",
		Args:  cobra.NoArgs,
	}
	fields := []struct {
		flag, usage string
		value       *string
	}{
		{"name", "company name", &c.Name},
		{"address", "postal address", &c.Address},
		{"tax-id", "VAT number", &c.TaxID},
		{"phone", "phone number", &c.Phone},
		{"email", "email address", &c.Email},
	}
	cmd.RunE = withSession(opts, func(ctx context.Context, s *session) error {
		profile := s.engine.Snapshot().Company
		edited := profile
		changed := false
		for _, f := range fields {
			if cmd.Flags().Changed(f.flag) {
				changed = true
				*companyField(&edited, f.flag) = *f.value
			}
		}
		if changed {
			if err := s.engine.SetCompany(ctx, edited); err != nil {
				return s.out.Fail(err)
			}
			profile = s.engine.Snapshot().Company
		}
		return s.result(nil, profile, func(w io.Writer) {
			fmt.Fprintf(w, "Name:    %s\n", profile.Name)
			fmt.Fprintf(w, "Address: %s\n", profile.Address)
			fmt.Fprintf(w, "Tax ID:  %s\n", profile.TaxID)
			fmt.Fprintf(w, "Phone:   %s\n", profile.Phone)
			fmt.Fprintf(w, "Email:   %s\n", profile.Email)
		})
	})
	for _, f := range fields {
		cmd.Flags().StringVar(f.value, f.flag, "", f.usage)
	}
	return cmd
}

func companyField(c *domain.CompanyProfile, flag string) *string {
	switch flag {
	case "name":
		return &c.Name
	case "address":
		return &c.Address
	case "tax-id":
		return &c.TaxID
	case "phone":
		return &c.Phone
	default:
		return &c.Email
	}
}

func printLoadDiagnostics(w io.Writer, d loader.Diagnostics) {
	if d.Fallback {
		fmt.Fprintf(w, "Input unreadable, default state used: %s\n", d.Reason)
	}
	kinds := make([]string, 0, len(d.Dropped))
	for k := range d.Dropped {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(w, "  dropped %d %s\n", d.Dropped[k], k)
	}
	for _, m := range d.Malformed {
		fmt.Fprintf(w, "  %s was not a list\n", m)
	}
	if d.RepairedQuoteTotals > 0 {
		fmt.Fprintf(w, "  repaired totals of %d quotes\n", d.RepairedQuoteTotals)
	}
	if d.RenumberedQuotes > 0 {
		fmt.Fprintf(w, "  renumbered %d quotes\n", d.RenumberedQuotes)
	}
}
