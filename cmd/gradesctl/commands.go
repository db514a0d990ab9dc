package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/grades/internal/admin"
	"github.com/JonMunkholm/grades/internal/config"
	"github.com/JonMunkholm/grades/internal/core"
)

// app is what every command works against.
type app struct {
	svc   *core.Service
	cfg   *config.Config
	store core.Store
	close func()
}

type opener func(ctx context.Context) (*app, error)

// errRowsRejected makes ingest exit non-zero under --strict.
var errRowsRejected = errors.New("some rows were rejected")

func newRootCmd(open opener) *cobra.Command {
	root := &cobra.Command{
		Use:           "gradesctl",
		Short:         "Load student grades from CSV and query the twos reports",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newIngestCmd(open), newReportCmd(open), newResetCmd(open))
	return root
}

func newIngestCmd(open opener) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "ingest <file.csv>...",
		Short: "Ingest one or more grade CSV files",
		Long: "Each file is loaded in its own transaction. Row problems are printed in the\n" +
			"result and do not stop the load; a storage failure aborts with a non-zero exit.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				if !strings.HasSuffix(strings.ToLower(path), ".csv") {
					return fail(cmd, fmt.Errorf("%s: %w", path, core.ErrNotCSV))
				}
			}

			a, err := open(cmd.Context())
			if err != nil {
				return fail(cmd, err)
			}
			defer a.close()

			ctx := core.WithUploadSource(cmd.Context(), core.UploadSource{UserAgent: "gradesctl"})
			rejected := false
			for _, path := range args {
				content, err := os.ReadFile(path)
				if err != nil {
					return fail(cmd, err)
				}
				res, err := a.svc.IngestUpload(ctx, filepath.Base(path), content)
				if err != nil {
					return fail(cmd, fmt.Errorf("%s: %w", path, err))
				}
				if err := printJSON(cmd.OutOrStdout(), core.NewIngestResponse(&res.IngestResult)); err != nil {
					return err
				}
				rejected = rejected || len(res.Errors) > 0
			}

			if strict && rejected {
				return fail(cmd, errRowsRejected)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "Exit non-zero when any row is rejected")
	return cmd
}

func newReportCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "List students by number of twos",
	}
	cmd.AddCommand(
		newReportSubCmd(open, "more-than", "Students with more than n twos (default 3)",
			func(c *config.Config) int { return c.Report.MoreThanDefault },
			(*core.Service).StudentsWithMoreTwos),
		newReportSubCmd(open, "less-than", "Students with at least one and fewer than n twos (default 5)",
			func(c *config.Config) int { return c.Report.LessThanDefault },
			(*core.Service).StudentsWithFewerTwos),
	)
	return cmd
}

func newReportSubCmd(open opener, use, short string, def func(*config.Config) int,
	query func(*core.Service, context.Context, int) ([]core.StudentTwos, error)) *cobra.Command {
	var (
		n      int
		format string
	)

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "json" && format != "table" {
				return fail(cmd, fmt.Errorf("unknown format %q (json, table)", format))
			}

			a, err := open(cmd.Context())
			if err != nil {
				return fail(cmd, err)
			}
			defer a.close()

			if !cmd.Flags().Changed("n") {
				n = def(a.cfg)
			}
			rows, err := query(a.svc, cmd.Context(), n)
			if err != nil {
				return fail(cmd, err)
			}

			if format == "table" {
				return printTable(cmd.OutOrStdout(), rows)
			}
			return printJSON(cmd.OutOrStdout(), rows)
		},
	}

	cmd.Flags().IntVarP(&n, "n", "n", 0, "Threshold (defaults to the configured report threshold)")
	cmd.Flags().StringVarP(&format, "format", "f", "json", "Output format: json or table")
	return cmd
}

func newResetCmd(open opener) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every student and grade",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fail(cmd, admin.ErrNotConfirmed)
			}
			a, err := open(cmd.Context())
			if err != nil {
				return fail(cmd, err)
			}
			defer a.close()

			if err := admin.ResetAll(cmd.Context(), a.store, yes); err != nil {
				return fail(cmd, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "all students and grades deleted")
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the deletion")
	return cmd
}

// fail prints the user-facing form of err to stderr and returns it.
func fail(cmd *cobra.Command, err error) error {
	msg := core.FormatUserError(err)
	if !core.IsUserFacing(err) {
		msg = err.Error()
	}
	fmt.Fprintln(cmd.ErrOrStderr(), "error:", msg)
	return err
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printTable(w io.Writer, rows []core.StudentTwos) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FULL NAME\tTWOS")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%d\n", r.FullName, r.CountTwos)
	}
	return tw.Flush()
}
