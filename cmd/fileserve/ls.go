package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lynxoskar/fileServe200"
	"github.com/lynxoskar/fileServe200/internal/errutil"
	"github.com/lynxoskar/fileServe200/internal/events"
	"github.com/lynxoskar/fileServe200/internal/fsroot"
	"github.com/lynxoskar/fileServe200/internal/listing"
	"github.com/lynxoskar/fileServe200/internal/scan"
)

var lsCmd = &cobra.Command{
	Use:   "ls [path]",
	Short: "List a directory below the root",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		rel := ""
		if len(args) == 1 {
			rel = args[0]
		}
		sortKey, _ := cmd.Flags().GetString("sort")
		order, _ := cmd.Flags().GetString("order")
		format, _ := cmd.Flags().GetString("format")
		remote, _ := cmd.Flags().GetBool("remote")

		var (
			entries []fileserve.Entry
			err     error
		)
		if remote {
			entries, err = listRemote(cmd.Context(), rel, sortKey, order)
		} else {
			entries, err = listLocal(cmd.Context(), rel, sortKey, order)
		}
		if err != nil {
			errutil.ReportError(err, "Failed to list directory", "path", rel)
			os.Exit(1)
		}

		handled, err := encode(os.Stdout, format, entries)
		if err != nil {
			errutil.ReportError(err, "Failed to write listing")
			os.Exit(1)
		}
		if handled {
			return
		}

		tw := newTable(os.Stdout)
		for _, e := range entries {
			size := "-"
			name := e.Name
			if e.IsDirectory {
				name += "/"
			} else {
				size = humanBytes(e.Size)
			}
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", size, e.LastModified.Local().Format(time.DateTime), name)
		}
		errutil.LogMsg(tw.Flush(), "Failed to write listing")
	},
}

func listLocal(ctx context.Context, rel, sortKey, order string) ([]fileserve.Entry, error) {
	root, err := fsroot.New(viper.GetString("root"))
	if err != nil {
		return nil, err
	}
	scanner := scan.New(root, events.NewLog(nil))
	found, err := scanner.Shallow(ctx, rel)
	if err != nil {
		return nil, err
	}
	opts := listing.ParseOptions(sortKey, order)
	found = listing.Sort(found, opts.Key, opts.Order)

	out := make([]fileserve.Entry, 0, len(found))
	for _, e := range found {
		out = append(out, fileserve.Entry{
			Name:         e.Name(),
			Path:         relTo(root.Path(), e.Path()),
			Size:         e.Size(),
			LastModified: e.ModTime(),
			IsDirectory:  e.IsDir(),
		})
	}
	return out, nil
}

func listRemote(ctx context.Context, rel, sortKey, order string) ([]fileserve.Entry, error) {
	c, err := newClient()
	if err != nil {
		return nil, err
	}
	l, err := c.List(ctx, rel, fileserve.ListOptions{Sort: sortKey, Order: order})
	if err != nil {
		return nil, err
	}
	return l.Entries, nil
}

func init() {
	rootCmd.AddCommand(lsCmd)

	lsCmd.Flags().String("sort", "name", "Sort key (name, size, date)")
	lsCmd.Flags().String("order", "asc", "Sort order (asc, desc)")
	lsCmd.Flags().StringP("format", "f", "table", "Output format (table, json, yaml)")
	lsCmd.Flags().Bool("remote", false, "List through the server instead of the local root")
}
