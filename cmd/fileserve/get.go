package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/lynxoskar/fileServe200/internal/errutil"
)

var getCmd = &cobra.Command{
	Use:   "get <path>",
	Short: "Download a file from the server",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		output, err := cmd.Flags().GetString("output")
		if err != nil {
			errutil.ReportError(err, "Failed to get output flag")
			os.Exit(1)
		}

		client, err := newClient()
		if err != nil {
			errutil.ReportError(err, "Failed to create client")
			os.Exit(1)
		}

		var out io.Writer
		if output != "" {
			file, err := os.Create(output)
			if err != nil {
				errutil.ReportError(err, "Failed to create output file")
				os.Exit(1)
			}
			defer func() {
				errutil.LogMsg(file.Close(), "Failed to close output file")
			}()
			out = file
		} else {
			out = os.Stdout
		}

		bar := progressbar.NewOptions64(
			-1,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("downloading"),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWidth(10),
			progressbar.OptionThrottle(65*time.Millisecond),
			progressbar.OptionOnCompletion(func() {
				if _, err := fmt.Fprint(os.Stderr, "\n"); err != nil {
					errutil.LogMsg(err, "Failed to print newline to stderr")
				}
			}),
		)

		if _, err := client.Download(cmd.Context(), args[0], io.MultiWriter(out, bar)); err != nil {
			errutil.ReportError(err, "Download failed", "path", args[0])
			if output != "" {
				errutil.LogMsg(os.Remove(output), "Failed to remove output file after failed download", "path", output)
			}
			os.Exit(1)
		}
		errutil.LogMsg(bar.Finish(), "Failed to finish progress bar")
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
	getCmd.Flags().StringP("output", "o", "", "Output file")
}
