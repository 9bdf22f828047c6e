package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lynxoskar/fileServe200/internal/errutil"
	"github.com/lynxoskar/fileServe200/internal/events"
	"github.com/lynxoskar/fileServe200/internal/fsroot"
	"github.com/lynxoskar/fileServe200/internal/handler"
	"github.com/lynxoskar/fileServe200/internal/journal"
	"github.com/lynxoskar/fileServe200/internal/metrics"
	"github.com/lynxoskar/fileServe200/internal/retention"
	"github.com/lynxoskar/fileServe200/internal/scan"
	"github.com/lynxoskar/fileServe200/internal/storage"
)

const metricsNamespace = "fileserve"

// NewServer wires the file server and starts its cleanup scheduler. The
// returned cleanup function stops the scheduler, waiting for a pass that is
// deleting to finish, and closes the journal.
func NewServer(cfg Config) (*http.Server, *retention.Scheduler, func(), error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	root, err := fsroot.New(cfg.Root)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := root.Check(); errors.Is(err, fsroot.ErrMissingRoot) {
		slog.Warn("Root directory missing, listings and cleanup will fail until it exists", "root", root.Path())
	}

	reg := cfg.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	m := metrics.New(metricsNamespace, reg)

	sink := events.Multi{events.NewLog(nil), m}
	scanner := scan.New(root, sink)

	opts := []retention.Option{
		retention.WithSink(sink),
		retention.WithRecorder(m),
	}

	var jr *journal.Journal
	if cfg.JournalPath != "" {
		jr, err = journal.Open(cfg.JournalPath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to open journal at %s: %w", cfg.JournalPath, err)
		}
		opts = append(opts, retention.WithRecorder(jr))
	}

	sch := retention.NewScheduler(scanner, cfg.Retention, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		errutil.ReportError(sch.Start(ctx), "Cleanup scheduler failed")
	}()

	routes := handler.Routes{
		Files:   handler.NewFilesHandler(scanner, storage.NewLocal(root)),
		Cleanup: handler.NewCleanupHandler(sch, root),
		Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	slog.Info("Starting server", "addr", addr, "root", root.Path(), "journal", cfg.JournalPath)

	server := &http.Server{
		Addr:              addr,
		Handler:           handler.LogRequests(routes.Mux()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	cleanup := func() {
		cancel()
		<-done
		if jr != nil {
			errutil.LogMsg(jr.Close(), "Failed to close journal")
		}
	}

	return server, sch, cleanup, nil
}
