package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lynxoskar/fileServe200/internal/errutil"
	"github.com/lynxoskar/fileServe200/internal/journal"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded cleanup passes from the journal",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		path := viper.GetString("journal")
		if path == "" {
			errutil.ReportError(errors.New("no journal configured"), "Set --journal or FILESERVE_JOURNAL")
			os.Exit(1)
		}
		limit, _ := cmd.Flags().GetInt("limit")
		passID, _ := cmd.Flags().GetString("pass")
		format, _ := cmd.Flags().GetString("format")

		jr, err := journal.Open(path)
		if err != nil {
			errutil.ReportError(err, "Failed to open journal", "path", path)
			os.Exit(1)
		}
		defer func() {
			errutil.LogMsg(jr.Close(), "Failed to close journal")
		}()

		tw := newTable(os.Stdout)
		if passID != "" {
			dels, err := jr.Deletions(cmd.Context(), passID)
			if err != nil {
				errutil.ReportError(err, "Failed to read deletions", "pass_id", passID)
				os.Exit(1)
			}
			if handled, err := encode(os.Stdout, format, dels); err != nil {
				errutil.ReportError(err, "Failed to write deletions")
				os.Exit(1)
			} else if handled {
				return
			}
			for _, d := range dels {
				status := "deleted"
				if d.Error != "" {
					status = d.Error
				}
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.Phase, humanBytes(d.Size), d.Path, status)
			}
			errutil.LogMsg(tw.Flush(), "Failed to write deletions")
			return
		}

		passes, err := jr.Recent(cmd.Context(), limit)
		if err != nil {
			errutil.ReportError(err, "Failed to read passes")
			os.Exit(1)
		}
		if handled, err := encode(os.Stdout, format, passes); err != nil {
			errutil.ReportError(err, "Failed to write passes")
			os.Exit(1)
		} else if handled {
			return
		}
		_, _ = fmt.Fprintln(tw, "ID\tSTARTED\tSCANNED\tAGE\tSIZE\tFREED\tFAILED")
		for _, p := range passes {
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\t%d\n",
				p.ID, p.Started.Local().Format(time.DateTime), p.Scanned,
				p.AgeDeleted, p.SizeDeleted, humanBytes(p.BytesFreed), p.Failures)
		}
		errutil.LogMsg(tw.Flush(), "Failed to write passes")
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().Int("limit", 20, "Number of passes to show")
	historyCmd.Flags().String("pass", "", "Show the deletions of one pass")
	historyCmd.Flags().StringP("format", "f", "table", "Output format (table, json, yaml)")
}
