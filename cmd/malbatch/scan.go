package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/MasterOfBinary/malbatch/batch"
	"github.com/MasterOfBinary/malbatch/config"
	"github.com/MasterOfBinary/malbatch/dataset"
	"github.com/MasterOfBinary/malbatch/metrics"
	"github.com/MasterOfBinary/malbatch/report"
	"github.com/MasterOfBinary/malbatch/transform"
)

// shutdownTimeout bounds the cleanup after a scan.
const shutdownTimeout = 30 * time.Second

type scanOptions struct {
	dataset    string
	transform  string
	batchSize  int
	maxBatches int
	mode       string
	workers    int
	out        string
	format     string
	title      string
	results    string
}

func newScanCmd(a *app) *cobra.Command {
	var opts scanOptions

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run a transform over every sample of a dataset and write a report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags := cmd.Flags()
			if flags.Changed("batch-size") {
				a.cfg.Batch.BatchSize = opts.batchSize
			}
			if flags.Changed("max-batches") {
				a.cfg.Batch.MaxBatches = opts.maxBatches
			}
			if flags.Changed("mode") {
				a.cfg.Executor.Mode = opts.mode
			}
			if flags.Changed("workers") {
				a.cfg.Executor.Workers = opts.workers
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			return a.scan(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.dataset, "dataset", dataset.BodmasName, "dataset to scan")
	flags.StringVar(&opts.transform, "transform", transform.ScanName, "transform to apply to every sample")
	flags.IntVar(&opts.batchSize, "batch-size", 0, "samples per batch (overrides batch.size)")
	flags.IntVar(&opts.maxBatches, "max-batches", 0, "stop after this many batches, 0 for no limit (overrides batch.max_batches)")
	flags.StringVar(&opts.mode, "mode", "", "executor: sequential, pool or process (overrides executor.mode)")
	flags.IntVar(&opts.workers, "workers", 0, "parallel workers, 0 for one per CPU (overrides executor.workers)")
	flags.StringVar(&opts.out, "out", ".", "directory the report is written to")
	flags.StringVar(&opts.format, "format", report.FormatJSON, "report format: json or yaml")
	flags.StringVar(&opts.title, "title", "", "report title (default <dataset><number of samples>)")
	flags.StringVar(&opts.results, "results", "", "also write every result as a JSON line to this file")
	return cmd
}

func (a *app) scan(cmd *cobra.Command, opts scanOptions) error {
	ctx := cmd.Context()

	p, err := a.datasets().Get(opts.dataset)
	if err != nil {
		return err
	}
	t, err := transform.Default().Get(opts.transform)
	if err != nil {
		return err
	}

	exec, err := a.newExecutor(opts.transform)
	if err != nil {
		return err
	}
	// Run leaves the executor open when it fails.
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := exec.Shutdown(ctx); err != nil {
			a.logger.Warn("executor shutdown failed", "error", err)
		}
	}()

	collector := metrics.NewCollector()
	if addr := a.cfg.Metrics.Addr; addr != "" {
		stop := a.serveMetrics(addr, collector)
		defer stop()
	}

	// Worker processes apply the wrappers themselves.
	if a.cfg.Executor.Mode != config.ModeProcess {
		client := a.newRedis()
		if client != nil {
			defer client.Close()
		}
		if t, err = a.wrap(t, client, collector); err != nil {
			return err
		}
	}

	b := batch.New(batch.NewConstantConfig(&a.cfg.Batch)).
		WithExecutor(exec).
		WithLogger(a.logger).
		WithStats(collector)

	results, err := b.Run(ctx, p, t)
	if err != nil {
		var terr *batch.TransformError
		if errors.As(err, &terr) && terr.Sample != nil {
			a.logger.Error("scan aborted", "sample", terr.Sample.Path(), "error", terr.Err)
		}
		return fmt.Errorf("scan %s: %w", p.Name(), err)
	}

	stats := collector.Snapshot()
	a.logger.Info("scan complete",
		"samples_read", stats.SamplesRead,
		"samples_processed", stats.SamplesProcessed,
		"unprocessed", stats.Unprocessed(),
		"batches", stats.BatchesCompleted,
		"avg_batch_time", stats.AverageBatchTime(),
		"samples_per_second", stats.SamplesPerSecond())

	if opts.results != "" {
		if err := writeResults(opts.results, results); err != nil {
			return err
		}
	}

	rep, err := report.Summarize(results)
	if err != nil {
		return err
	}
	title := opts.title
	if title == "" {
		title = p.Name() + strconv.Itoa(len(results))
	}
	path, err := report.WriteFile(opts.out, title, opts.format, rep)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

// serveMetrics serves the collector on addr until the returned function is
// called.
func (a *app) serveMetrics(addr string, collector *metrics.Collector) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		a.logger.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server failed", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func writeResults(path string, results []batch.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	enc := json.NewEncoder(f)
	for _, r := range results {
		if err := enc.Encode(r); err != nil {
			f.Close()
			return fmt.Errorf("write results: %w", err)
		}
	}
	return f.Close()
}
