package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/deluair/alphagenome/internal/analyzer"
)

func newCacheCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the result cache snapshot",
		Long: `Inspect and manage the result cache snapshot named by cache.file.
predict and batch load the snapshot on start and save it on exit.`,
		Example: `  alphagenome config set cache.file ~/.alphagenome/cache.gob
  alphagenome cache stats
  alphagenome cache export backup.gob`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show cache entry count and approximate size",
		Args:  withUsage(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			an, err := a.snapshotAnalyzer()
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(an.CacheStats())
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete the cache snapshot",
		Args:  withUsage(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := a.cacheFile()
			if err != nil {
				return err
			}
			if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("removing %s: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared cache %s\n", path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "export <file>",
		Short: "Copy the cache snapshot to a file",
		Args:  withUsage(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			an, err := a.snapshotAnalyzer()
			if err != nil {
				return err
			}
			return an.ExportCache(args[0])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "import <file>",
		Short: "Replace the cache snapshot with a file",
		Args:  withUsage(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := a.cacheFile()
			if err != nil {
				return err
			}
			an := analyzer.New(nil, a.cfg.AnalyzerConfig())
			an.SetLogger(a.logger)
			if err := an.ImportCache(args[0]); err != nil {
				return err
			}
			if an.CacheStats().Entries == 0 {
				if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("removing %s: %w", path, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported empty snapshot; cleared cache %s\n", path)
				return nil
			}
			if err := an.ExportCache(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d entries into %s\n", an.CacheStats().Entries, path)
			return nil
		},
	})

	return cmd
}

// cacheFile loads the configuration and returns cache.file.
func (a *app) cacheFile() (string, error) {
	if err := a.load(); err != nil {
		return "", err
	}
	if a.cfg.Cache.File == "" {
		return "", errors.New("cache.file is not set (alphagenome config set cache.file <path>)")
	}
	if !a.cfg.Cache.Enabled {
		return "", errors.New("cache is disabled (cache.enabled=false)")
	}
	return a.cfg.Cache.File, nil
}

// snapshotAnalyzer returns a backend-less analyzer holding the snapshot at
// cache.file. A missing snapshot yields an empty cache.
func (a *app) snapshotAnalyzer() (*analyzer.Analyzer, error) {
	path, err := a.cacheFile()
	if err != nil {
		return nil, err
	}
	an := analyzer.New(nil, a.cfg.AnalyzerConfig())
	an.SetLogger(a.logger)
	if err := an.ImportCache(path); err != nil && !analyzer.IsNotExist(err) {
		return nil, err
	}
	return an, nil
}
