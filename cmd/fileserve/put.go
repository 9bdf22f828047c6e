package main

import (
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/lynxoskar/fileServe200/internal/errutil"
	"github.com/lynxoskar/fileServe200/internal/hashutil"
)

var putCmd = &cobra.Command{
	Use:   "put <dir> <file>",
	Short: "Upload a file into a directory on the server",
	Long: `Upload a local file into dir below the server root. The file's sha256 is
sent along and the server refuses to store content that does not match it.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		dir, src := args[0], args[1]
		name, _ := cmd.Flags().GetString("name")
		if name == "" {
			name = filepath.Base(src)
		}

		f, err := os.Open(src)
		if err != nil {
			errutil.ReportError(err, "Failed to open file", "path", src)
			os.Exit(1)
		}
		defer func() {
			errutil.LogMsg(f.Close(), "Failed to close file", "path", src)
		}()

		h, err := hashutil.GetHasher("sha256")
		if err != nil {
			errutil.ReportError(err, "Failed to create hasher")
			os.Exit(1)
		}
		if _, err := io.Copy(h, f); err != nil {
			errutil.ReportError(err, "Failed to hash file", "path", src)
			os.Exit(1)
		}
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			errutil.ReportError(err, "Failed to rewind file", "path", src)
			os.Exit(1)
		}

		client, err := newClient()
		if err != nil {
			errutil.ReportError(err, "Failed to create client")
			os.Exit(1)
		}

		stored, err := client.Upload(cmd.Context(), dir, name, f, hashutil.Hex(h))
		if err != nil {
			errutil.ReportError(err, "Upload failed", "path", src)
			os.Exit(1)
		}

		format, _ := cmd.Flags().GetString("format")
		handled, err := encode(os.Stdout, format, stored)
		if err != nil {
			errutil.ReportError(err, "Failed to write result")
			os.Exit(1)
		}
		if !handled {
			tw := newTable(os.Stdout)
			_, _ = io.WriteString(tw, stored.Path+"\t"+humanBytes(stored.Size)+"\t"+stored.SHA256+"\n")
			errutil.LogMsg(tw.Flush(), "Failed to write result")
		}
	},
}

func init() {
	rootCmd.AddCommand(putCmd)
	putCmd.Flags().String("name", "", "Name to store the file under (defaults to its base name)")
	putCmd.Flags().StringP("format", "f", "table", "Output format (table, json, yaml)")
}
