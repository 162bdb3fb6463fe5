// Package main provides the alphagenome command-line tool.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/deluair/alphagenome/internal/analyzer"
	"github.com/deluair/alphagenome/internal/config"
)

// Exit codes
const (
	ExitSuccess = 0
	ExitError   = 1
	ExitUsage   = 2
)

// Version information (set at build time)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	return execute(args, os.Stdout, os.Stderr)
}

func execute(args []string, stdout, stderr io.Writer) int {
	a := &app{logger: zap.NewNop()}
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	a.logger.Sync() //nolint:errcheck
	if err == nil {
		return ExitSuccess
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", ee.err)
		}
		return ee.code
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return ExitError
}

// exitError carries a specific exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func usageError(err error) error {
	return &exitError{code: ExitUsage, err: err}
}

// withUsage marks argument validation failures as usage errors.
func withUsage(fn cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := fn(cmd, args); err != nil {
			return usageError(err)
		}
		return nil
	}
}

// app holds state shared by subcommands once configuration is read.
type app struct {
	cfgFile string
	cfg     *config.Config
	logger  *zap.Logger
}

// load decodes the configuration and builds the logger. Commands that talk
// to the backend call it; config and version do not need a valid config.
func (a *app) load() error {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

// newAnalyzer builds an analyzer over the HTTP backend and restores the
// cache snapshot when cache.file is configured.
func (a *app) newAnalyzer() (*analyzer.Analyzer, error) {
	if a.cfg.APIKey == "" {
		a.logger.Warn("no API key configured; set api_key or ALPHAGENOME_API_KEY")
	}
	an := analyzer.New(a.cfg.NewClient(a.logger), a.cfg.AnalyzerConfig())
	an.SetLogger(a.logger)

	if path := a.cfg.Cache.File; path != "" && a.cfg.Cache.Enabled {
		if err := an.ImportCache(path); err != nil {
			if !analyzer.IsNotExist(err) {
				return nil, err
			}
			a.logger.Debug("no cache snapshot yet", zap.String("path", path))
		}
	}
	return an, nil
}

// saveCache writes the cache snapshot when cache.file is configured.
func (a *app) saveCache(an *analyzer.Analyzer) {
	path := a.cfg.Cache.File
	if path == "" || !a.cfg.Cache.Enabled {
		return
	}
	if err := an.ExportCache(path); err != nil {
		a.logger.Warn("could not save cache snapshot", zap.String("path", path), zap.Error(err))
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "alphagenome",
		Short: "Predict regulatory variant effects with AlphaGenome",
		Long: `alphagenome sends genomic variants to the AlphaGenome prediction service
and summarizes the predicted signal tracks for the reference and alternate
alleles.

Configuration is read from ~/.alphagenome.yaml (or --config) and
ALPHAGENOME_* environment variables.`,
		Example: `  # Predict a single SNV
  alphagenome predict chr17 43106528 G T

  # Predict every variant in a VCF and store the rows in DuckDB
  alphagenome batch --db results.duckdb input.vcf.gz`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.Init(viper.GetViper(), a.cfgFile)
		},
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default ~/.alphagenome.yaml)")
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError(err)
	})

	root.AddCommand(newPredictCmd(a))
	root.AddCommand(newBatchCmd(a))
	root.AddCommand(newCacheCmd(a))
	root.AddCommand(newConfigCmd())
	root.AddCommand(newVersionCmd())

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  withUsage(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "alphagenome version %s (%s) built %s\n", version, commit, date)
			return nil
		},
	}
}
