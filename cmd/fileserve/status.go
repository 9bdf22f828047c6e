package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lynxoskar/fileServe200/internal/errutil"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the server's cleanup scheduler state",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		format, _ := cmd.Flags().GetString("format")

		client, err := newClient()
		if err != nil {
			errutil.ReportError(err, "Failed to create client")
			os.Exit(1)
		}
		st, err := client.Status(cmd.Context())
		if err != nil {
			errutil.ReportError(err, "Failed to get status")
			os.Exit(1)
		}

		if handled, err := encode(os.Stdout, format, st); err != nil {
			errutil.ReportError(err, "Failed to write status")
			os.Exit(1)
		} else if handled {
			return
		}
		_, _ = fmt.Fprintf(os.Stdout, "state: %s\n", st.State)
		if st.LastPass != nil {
			printReport(os.Stdout, st.LastPass)
		}
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringP("format", "f", "table", "Output format (table, json, yaml)")
}
