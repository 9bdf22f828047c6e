package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lynxoskar/fileServe200"
	"github.com/lynxoskar/fileServe200/internal/errutil"
	"github.com/lynxoskar/fileServe200/internal/events"
	"github.com/lynxoskar/fileServe200/internal/fsroot"
	"github.com/lynxoskar/fileServe200/internal/journal"
	"github.com/lynxoskar/fileServe200/internal/retention"
	"github.com/lynxoskar/fileServe200/internal/scan"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Run one cleanup pass",
	Long: `Run one retention pass over the root: delete files older than
--max-age-days, then the oldest remaining files until the tree fits in --max-size-mb.
With --dry-run nothing is deleted and the planned deletions are printed instead.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		remote, _ := cmd.Flags().GetBool("remote")
		format, _ := cmd.Flags().GetString("format")

		var (
			result *fileserve.CleanupResult
			err    error
		)
		if remote {
			result, err = cleanRemote(cmd.Context(), dryRun)
		} else {
			result, err = cleanLocal(cmd.Context(), dryRun)
		}
		if err != nil {
			errutil.ReportError(err, "Cleanup failed")
			os.Exit(1)
		}

		var v any = result.Report
		if result.Plan != nil {
			v = result.Plan
		}
		handled, err := encode(os.Stdout, format, v)
		if err != nil {
			errutil.ReportError(err, "Failed to write result")
			os.Exit(1)
		}
		if handled {
			return
		}
		if result.Plan != nil {
			printPlan(os.Stdout, result.Plan)
		} else {
			printReport(os.Stdout, result.Report)
		}
	},
}

func cleanRemote(ctx context.Context, dryRun bool) (*fileserve.CleanupResult, error) {
	c, err := newClient()
	if err != nil {
		return nil, err
	}
	return c.Cleanup(ctx, dryRun)
}

func cleanLocal(ctx context.Context, dryRun bool) (*fileserve.CleanupResult, error) {
	cfg := retentionConfig()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	root, err := fsroot.New(viper.GetString("root"))
	if err != nil {
		return nil, err
	}

	sink := events.NewLog(nil)
	opts := []retention.Option{retention.WithSink(sink)}
	if p := viper.GetString("journal"); p != "" && !dryRun {
		jr, err := journal.Open(p)
		if err != nil {
			return nil, err
		}
		defer func() {
			errutil.LogMsg(jr.Close(), "Failed to close journal")
		}()
		opts = append(opts, retention.WithRecorder(jr))
	}
	s := retention.NewScheduler(scan.New(root, sink), cfg, opts...)

	if dryRun {
		plan, err := s.DryRun(ctx)
		if err != nil {
			return nil, err
		}
		return &fileserve.CleanupResult{Plan: toPlan(root, plan)}, nil
	}
	report, err := s.RunPass(ctx)
	if err != nil {
		return nil, err
	}
	return &fileserve.CleanupResult{Report: toReport(root, report)}, nil
}

func toCandidates(root fsroot.Root, cs []retention.Candidate) []fileserve.PlannedDeletion {
	out := make([]fileserve.PlannedDeletion, 0, len(cs))
	for _, c := range cs {
		out = append(out, fileserve.PlannedDeletion{
			Path:    relTo(root.Path(), c.Path()),
			Size:    c.Size(),
			AgeDays: int(c.Age / (24 * time.Hour)),
		})
	}
	return out
}

func toPlan(root fsroot.Root, p retention.Plan) *fileserve.CleanupPlan {
	return &fileserve.CleanupPlan{
		Scanned:    p.Scanned,
		TotalBytes: p.TotalBytes,
		Overage:    p.Overage,
		Age:        toCandidates(root, p.Age),
		Size:       toCandidates(root, p.Size),
	}
}

func toReport(root fsroot.Root, r retention.Report) *fileserve.CleanupReport {
	out := &fileserve.CleanupReport{
		ID:          r.ID,
		Started:     r.Started,
		Finished:    r.Finished,
		Scanned:     r.Plan.Scanned,
		AgeDeleted:  r.AgeDeleted,
		SizeDeleted: r.SizeDeleted,
		BytesFreed:  r.BytesFreed,
		Failures:    make([]fileserve.CleanupFailure, 0, len(r.Failures)),
	}
	for _, f := range r.Failures {
		out.Failures = append(out.Failures, fileserve.CleanupFailure{
			Path:  relTo(root.Path(), f.Path),
			Phase: string(f.Phase),
			Error: f.Err.Error(),
		})
	}
	return out
}

func printPlan(w io.Writer, p *fileserve.CleanupPlan) {
	tw := newTable(w)
	for _, phase := range []struct {
		name string
		list []fileserve.PlannedDeletion
	}{{"age", p.Age}, {"size", p.Size}} {
		for _, d := range phase.list {
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%dd\t%s\n", phase.name, humanBytes(d.Size), d.AgeDays, d.Path)
		}
	}
	errutil.LogMsg(tw.Flush(), "Failed to write plan")
	_, _ = fmt.Fprintf(w, "scanned %d files (%s), would delete %d by age and %d by size\n",
		p.Scanned, humanBytes(p.TotalBytes), len(p.Age), len(p.Size))
}

func printReport(w io.Writer, r *fileserve.CleanupReport) {
	_, _ = fmt.Fprintf(w, "pass %s: scanned %d files, deleted %d by age and %d by size, freed %s in %s\n",
		r.ID, r.Scanned, r.AgeDeleted, r.SizeDeleted, humanBytes(r.BytesFreed),
		r.Finished.Sub(r.Started).Round(time.Millisecond))
	if len(r.Failures) == 0 {
		return
	}
	tw := newTable(w)
	for _, f := range r.Failures {
		_, _ = fmt.Fprintf(tw, "failed\t%s\t%s\t%s\n", f.Phase, f.Path, f.Error)
	}
	errutil.LogMsg(tw.Flush(), "Failed to write failures")
}

func init() {
	rootCmd.AddCommand(cleanCmd)
	cleanCmd.Flags().Bool("dry-run", false, "Print what would be deleted without deleting")
	cleanCmd.Flags().Bool("remote", false, "Ask the server to run the pass")
	cleanCmd.Flags().StringP("format", "f", "table", "Output format (table, json, yaml)")
}
