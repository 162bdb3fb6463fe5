package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/deluair/alphagenome/internal/analyzer"
	"github.com/deluair/alphagenome/internal/batch"
	"github.com/deluair/alphagenome/internal/duckdb"
	"github.com/deluair/alphagenome/internal/input"
	"github.com/deluair/alphagenome/internal/output"
)

type batchOptions struct {
	outputFile  string
	dbPath      string
	workers     int
	metricsAddr string
	compact     bool
}

func newBatchCmd(a *app) *cobra.Command {
	var opts batchOptions

	cmd := &cobra.Command{
		Use:   "batch <input-file>",
		Short: "Predict every variant in a VCF, JSON or YAML file",
		Long: `Predict every variant in an input file. Failures are reported per
variant and do not stop the run.

Input formats are detected from the file extension: .vcf, .vcf.gz, .json,
.yaml or .yml. Use '-' to read VCF from stdin.

A per-assay table is written to stdout and the batch summary to stderr.
The command exits with status 1 when every variant failed.`,
		Example: `  alphagenome batch input.vcf
  alphagenome batch -o results.json --workers 4 variants.yaml
  alphagenome batch --db results.duckdb --metrics-addr :9090 input.vcf.gz`,
		Args: withUsage(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.load(); err != nil {
				return err
			}
			if !cmd.Flags().Changed("workers") {
				opts.workers = a.cfg.Workers
			}
			return runBatch(cmd.Context(), a, args[0], opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVarP(&opts.outputFile, "output", "o", "", "Write results as JSON to this file")
	cmd.Flags().StringVar(&opts.dbPath, "db", "", "Append per-assay rows to this DuckDB database")
	cmd.Flags().IntVar(&opts.workers, "workers", 1, "Number of concurrent predictions (default from config)")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while running")
	cmd.Flags().BoolVar(&opts.compact, "compact", false, "Omit raw track values from the JSON output")

	return cmd
}

func runBatch(ctx context.Context, a *app, path string, opts batchOptions, stdout, stderr io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	inputs, err := input.Load(path)
	if err != nil {
		return err
	}
	a.logger.Info("loaded variants", zap.String("path", path), zap.Int("count", len(inputs)))

	if opts.metricsAddr != "" {
		shutdown := serveMetrics(opts.metricsAddr, a.logger)
		defer shutdown()
	}

	an, err := a.newAnalyzer()
	if err != nil {
		return err
	}
	defer a.saveCache(an)

	proc := batch.New(an, opts.workers)
	proc.SetLogger(a.logger)
	results := proc.Process(ctx, inputs)

	tw := output.NewTabWriter(stdout)
	if err := tw.WriteHeader(); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, r := range results {
		if err := tw.Write(r); err != nil {
			return fmt.Errorf("writing result: %w", err)
		}
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flushing output: %w", err)
	}

	if opts.outputFile != "" {
		if err := writeJSONFile(opts.outputFile, results, opts.compact); err != nil {
			return err
		}
	}

	if opts.dbPath != "" {
		if err := storeResults(opts.dbPath, proc.RunID(), results, a.logger); err != nil {
			return err
		}
	}

	summary := proc.Summary()
	for _, f := range proc.Failures() {
		fmt.Fprintf(stderr, "Failed: %s: %s\n", f.Input.Variant, f.Reason)
	}
	fmt.Fprintf(stderr, "Processed %d variants: %d successful, %d failed (%.1f%% success)\n",
		summary.Total, summary.Succeeded, summary.Failed, summary.SuccessRate*100)

	if summary.Total > 0 && summary.Succeeded == 0 {
		return &exitError{code: ExitError, err: errors.New("every variant failed")}
	}
	return nil
}

func writeJSONFile(path string, results []*analyzer.Result, compact bool) error {
	if compact {
		results = output.Compact(results)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	if err := output.WriteJSON(f, results); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

func storeResults(path, runID string, results []*analyzer.Result, logger *zap.Logger) error {
	store, err := duckdb.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := store.WriteResults(runID, results)
	if err != nil {
		return fmt.Errorf("storing results: %w", err)
	}
	logger.Info("stored prediction rows",
		zap.String("db", path),
		zap.String("run_id", runID),
		zap.Int("rows", n))
	return nil
}

// serveMetrics exposes /metrics until the returned function is called.
func serveMetrics(addr string, logger *zap.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", zap.String("addr", addr), zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("addr", addr))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx) //nolint:errcheck
	}
}
