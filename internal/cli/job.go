package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/previa/internal/domain"
	"github.com/roach88/previa/internal/exchange"
	"github.com/roach88/previa/internal/workorder"
)

// NewJobCommand creates the job command group.
func NewJobCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Create, inspect and close work orders",
	}
	cmd.AddCommand(
		newJobCreateCommand(opts),
		newJobListCommand(opts),
		newJobShowCommand(opts),
		newJobNoteCommand(opts),
		newJobArchiveCommand(opts),
		newJobDeleteCommand(opts),
		newJobDossierCommand(opts),
	)
	return cmd
}

func newJobCreateCommand(opts *RootOptions) *cobra.Command {
	var title, client, code, total, note string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Open a new job",
		Example: `  previa job create --title "Bagno Rossi" --client Rossi --code R-24 --total 1200`,
		Args: cobra.NoArgs,
		RunE: withSession(opts, func(ctx context.Context, s *session) error {
			amount, err := parseAmountFlag("total", total)
			if err != nil {
				return err
			}
			if amount <= 0 {
				return usageError("--total: must be greater than zero")
			}
			job, err := s.engine.CreateJob(ctx, workorder.JobInput{
				Title:       title,
				Client:      client,
				JobCode:     code,
				AgreedTotal: amount,
				Note:        note,
			})
			return s.result(err, job, func(w io.Writer) {
				fmt.Fprintf(w, "Created job %s (%s) for %s\n", job.ID, job.JobCode, s.money(job.AgreedTotal))
			})
		}),
	}
	cmd.Flags().StringVar(&title, "title", "", "job title")
	cmd.Flags().StringVar(&client, "client", "", "client name")
	cmd.Flags().StringVar(&code, "code", "", "job code shared with purchases and quotes")
	cmd.Flags().StringVar(&total, "total", "", "agreed total")
	cmd.Flags().StringVar(&note, "note", "", "free text note")
	_ = cmd.MarkFlagRequired("total")
	return cmd
}

func newJobListCommand(opts *RootOptions) *cobra.Command {
	var status, search string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, newest first",
		Args:  cobra.NoArgs,
		RunE: withSession(opts, func(ctx context.Context, s *session) error {
			f := workorder.JobFilter{Search: search}
			if status != "" {
				f.Status = domain.JobStatus(status)
				if !f.Status.IsValid() {
					return usageError("--status: %q is not one of open, closed, archived", status)
				}
			}
			jobs := s.engine.ListJobs(f)
			snap := s.engine.Snapshot()
			data := map[string]interface{}{
				"jobs":         jobs,
				"openDueTotal": s.engine.OpenDueTotal(),
			}
			return s.result(nil, data, func(w io.Writer) {
				if len(jobs) == 0 {
					fmt.Fprintln(w, "No jobs.")
					return
				}
				for _, j := range jobs {
					fmt.Fprintf(w, "%-10s %-8s %-8s %-24s %12s due %s\n",
						j.ID, j.JobCode, j.Status, j.Title, s.money(j.AgreedTotal), s.money(workorder.Due(snap, j)))
				}
				fmt.Fprintf(w, "Open jobs still due: %s\n", s.money(s.engine.OpenDueTotal()))
			})
		}),
	}
	cmd.Flags().StringVar(&status, "status", "", "only jobs with this status (open|closed|archived)")
	cmd.Flags().StringVar(&search, "search", "", "match title, client or code")
	return cmd
}

func newJobShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show a job with its payments, lines and purchases",
		Args:  cobra.ExactArgs(1),
		RunE: withArgsSession(opts, func(ctx context.Context, s *session, args []string) error {
			r, err := s.engine.JobReport(args[0])
			return s.result(err, r, func(w io.Writer) {
				j := r.Job
				fmt.Fprintf(w, "%s  %s  [%s]\n", j.JobCode, j.Title, j.Status)
				fmt.Fprintf(w, "Client:  %s\n", j.Client)
				fmt.Fprintf(w, "Agreed:  %s\n", s.money(j.AgreedTotal))
				fmt.Fprintf(w, "Paid:    %s\n", s.money(r.Paid))
				fmt.Fprintf(w, "Due:     %s\n", s.money(r.Due))
				if j.Note != "" {
					fmt.Fprintf(w, "Note:    %s\n", j.Note)
				}
				for _, p := range r.Payments {
					fmt.Fprintf(w, "  payment %s %s %s\n", p.Date.Format("2006-01-02"), s.money(p.Amount), p.Method)
				}
				for _, l := range r.Lines {
					mark := " "
					if l.Done {
						mark = "x"
					}
					fmt.Fprintf(w, "  [%s] %-8s %-24s %s\n", mark, l.Kind, l.Description, s.money(l.Total()))
				}
				fmt.Fprintf(w, "Lines: %d/%d done, %s of %s\n", r.DoneLines, len(r.Lines), s.money(r.DoneCost), s.money(r.LinesCost))
				fmt.Fprintf(w, "Purchased for this job: %s\n", s.money(r.Purchased))
			})
		}),
	}
}

func newJobNoteCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "note <job-id> <text>",
		Short: "Replace the note of a job",
		Args:  cobra.ExactArgs(2),
		RunE: withArgsSession(opts, func(ctx context.Context, s *session, args []string) error {
			job, err := s.engine.UpdateJobNote(ctx, args[0], args[1])
			return s.result(err, job, func(w io.Writer) {
				fmt.Fprintf(w, "Updated note of %s\n", job.ID)
			})
		}),
	}
}

func newJobArchiveCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "archive <job-id>",
		Short: "Archive a job",
		Args:  cobra.ExactArgs(1),
		RunE: withArgsSession(opts, func(ctx context.Context, s *session, args []string) error {
			job, err := s.engine.ArchiveJob(ctx, args[0])
			return s.result(err, job, func(w io.Writer) {
				fmt.Fprintf(w, "Archived %s\n", job.ID)
			})
		}),
	}
}

func newJobDeleteCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <job-id>",
		Short: "Delete a job with its payments, lines and tagged purchases",
		Args:  cobra.ExactArgs(1),
		RunE: withArgsSession(opts, func(ctx context.Context, s *session, args []string) error {
			res, err := s.engine.DeleteJobCascade(ctx, args[0])
			return s.result(err, res, func(w io.Writer) {
				fmt.Fprintf(w, "Deleted %s: %d payments, %d lines, %d purchases, %d movements\n",
					res.JobID, res.Payments, res.Lines, res.Purchases, res.Movements)
			})
		}),
	}
}

func newJobDossierCommand(opts *RootOptions) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "dossier <job-id>",
		Short: "Write the JSON dossier of one job",
		Args:  cobra.ExactArgs(1),
		RunE: withArgsSession(opts, func(ctx context.Context, s *session, args []string) error {
			r, err := s.engine.JobReport(args[0])
			if err != nil {
				return s.out.Fail(err)
			}
			path := output
			if path == "" {
				path = exchange.DossierFilename(r.Job)
			}
			err = s.engine.RunDocument(ctx, "dossier", func(ctx context.Context, snap *domain.AppState) error {
				d, err := exchange.JobDossier(snap, r.Job.ID)
				if err != nil {
					return err
				}
				return writeFile(path, func(w io.Writer) error { return exchange.WriteJobDossier(w, d) })
			}, nil)
			return s.result(err, map[string]string{"path": path}, func(w io.Writer) {
				fmt.Fprintf(w, "Wrote %s\n", path)
			})
		}),
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: derived from the job)")
	return cmd
}

// withArgsSession is withSession for commands that read positional args.
func withArgsSession(opts *RootOptions, fn func(ctx context.Context, s *session, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		return withSession(opts, func(ctx context.Context, s *session) error {
			return fn(ctx, s, args)
		})(cmd, args)
	}
}

// writeFile creates path and streams write into it.
func writeFile(path string, write func(w io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
