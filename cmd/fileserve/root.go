package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/lynxoskar/fileServe200/internal/errutil"
	"github.com/lynxoskar/fileServe200/internal/logging"
	"github.com/lynxoskar/fileServe200/internal/retention"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "fileserve",
	Short: "Serve a directory tree and keep it within its retention limits",
	Long: `fileserve serves the files below a root directory over HTTP and
periodically deletes files that are too old or that push the tree over its size budget.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if _, printErr := fmt.Fprintln(os.Stderr, err); printErr != nil {
			errutil.ReportError(printErr, "Failed to print error to stderr")
		}
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	defaults := retention.DefaultConfig()
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Config file (yaml, toml or json)")
	pf.String("root", "./data", "Root directory to serve and clean")
	pf.String("journal", "", "SQLite file recording cleanup passes (disabled if empty)")
	pf.String("log-level", "info", "Log level (debug, info, warn, error)")
	pf.String("log-format", "text", "Log format (text, json)")

	pf.Int("max-age-days", defaults.MaxAgeDays, "Delete files older than this many days (0 disables)")
	pf.Int64("max-size-mb", defaults.MaxSizeMB, "Keep the tree under this many MiB (0 disables)")
	pf.Int("cleanup-interval-hours", defaults.CleanupIntervalHours, "Hours between cleanup passes (0 disables)")
	pf.String("cleanup-schedule", "", "Cron schedule for cleanup passes, overrides the interval")
	pf.Int64("min-free-space", 0, "Min free disk space in bytes; the size phase frees space below it")
	pf.Int("delete-workers", defaults.DeleteWorkers, "Concurrent deletions per pass")
	pf.Bool("cleanup-on-start", false, "Run a cleanup pass when the server starts")

	pf.String("server", "http://localhost:8080", "Server URL, or a structured-field list of URLs")
	pf.String("ca-cert", "", "PEM file with extra CA certificates for the client")
	pf.Duration("timeout", 30*time.Second, "Client request timeout")

	for _, name := range []string{
		"root", "journal", "log-level", "log-format",
		"max-age-days", "max-size-mb", "cleanup-interval-hours", "cleanup-schedule",
		"min-free-space", "delete-workers", "cleanup-on-start",
		"server", "ca-cert", "timeout",
	} {
		mustBindPFlag(name, pf.Lookup(name))
	}
}

func mustBindPFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("failed to bind flag %s: %v", key, err))
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			errutil.ReportError(err, "Failed to read config file", "path", cfgFile)
			os.Exit(1)
		}
	}

	viper.SetEnvPrefix("FILESERVE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := logging.Setup(viper.GetString("log-level"), viper.GetString("log-format"), os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func retentionConfig() retention.Config {
	return retention.Config{
		MaxAgeDays:           viper.GetInt("max-age-days"),
		MaxSizeMB:            viper.GetInt64("max-size-mb"),
		CleanupIntervalHours: viper.GetInt("cleanup-interval-hours"),
		Schedule:             viper.GetString("cleanup-schedule"),
		MinFreeBytes:         viper.GetInt64("min-free-space"),
		DeleteWorkers:        viper.GetInt("delete-workers"),
		RunOnStart:           viper.GetBool("cleanup-on-start"),
	}
}
