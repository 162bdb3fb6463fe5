package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/deluair/alphagenome/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage alphagenome configuration",
		Long:  "Show, get, or set configuration values. Config is stored in ~/.alphagenome.yaml.",
		Example: `  alphagenome config                          # show all config
  alphagenome config set api_key YOUR_KEY     # store the API key
  alphagenome config set cache.file ~/.alphagenome/cache.gob
  alphagenome config get rate_limit           # get a value`,
		Args: withUsage(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd.OutOrStdout())
		},
	}

	cmd.AddCommand(newConfigSetCmd())
	cmd.AddCommand(newConfigGetCmd())

	return cmd
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  withUsage(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSet(cmd.OutOrStdout(), args[0], args[1])
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  withUsage(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigGet(cmd.OutOrStdout(), args[0])
		},
	}
}

func runConfigShow(w io.Writer) error {
	settings := viper.AllSettings()
	if len(settings) == 0 {
		fmt.Fprintln(w, "# No configuration set. Config file: ~/.alphagenome.yaml")
		return nil
	}

	out, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	fmt.Fprint(w, string(out))
	return nil
}

// parseValue converts boolean-like and integer strings so the written YAML
// keeps their type.
func parseValue(value string) any {
	switch value {
	case "true", "yes", "on":
		return true
	case "false", "no", "off":
		return false
	}
	if n, err := strconv.ParseInt(value, 10, 64); err == nil {
		return n
	}
	return value
}

// runConfigSet writes one key to the config file. Only keys already in
// the file are carried over; defaults and environment values stay out of it.
func runConfigSet(w io.Writer, key, value string) error {
	cfgFile := viper.ConfigFileUsed()
	if cfgFile == "" {
		path, err := config.DefaultPath()
		if err != nil {
			return err
		}
		cfgFile = path
	}

	fv := viper.New()
	fv.SetConfigFile(cfgFile)
	if ext := filepath.Ext(cfgFile); ext == "" || ext == filepath.Base(cfgFile) {
		fv.SetConfigType("yaml")
	}
	if _, err := os.Stat(cfgFile); err == nil {
		if err := fv.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config: %w", err)
		}
	}
	fv.Set(key, parseValue(value))

	if err := fv.WriteConfigAs(cfgFile); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Fprintf(w, "Set %s = %s in %s\n", key, value, cfgFile)
	return nil
}

func runConfigGet(w io.Writer, key string) error {
	val := viper.Get(key)
	if val == nil {
		return fmt.Errorf("key %q is not set", key)
	}
	fmt.Fprintln(w, val)
	return nil
}
