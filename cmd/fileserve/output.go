package main

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/lynxoskar/fileServe200"
	"github.com/lynxoskar/fileServe200/internal/httpclient"
)

func newClient() (*fileserve.Client, error) {
	hc, err := httpclient.NewClient(viper.GetString("ca-cert"), viper.GetDuration("timeout"))
	if err != nil {
		return nil, err
	}
	return fileserve.NewClient(viper.GetString("server"), hc), nil
}

// encode writes v as json or yaml. It reports false for any other format so
// the caller can fall back to its table rendering.
func encode(w io.Writer, format string, v any) (bool, error) {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return true, err
		}
		return true, enc.Close()
	case "", "table":
		return false, nil
	default:
		return true, fmt.Errorf("unknown output format %q (expected table, json, yaml)", format)
	}
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func relTo(root, abs string) string {
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return filepath.Base(abs)
	}
	return filepath.ToSlash(rel)
}

func humanBytes(n int64) string {
	if n < 0 {
		return "-"
	}
	return humanize.IBytes(uint64(n))
}
