package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sawpanic/mesohops/internal/config"
)

// addStoreFlags registers run store overrides
func addStoreFlags(fs *pflag.FlagSet) {
	fs.String("store", "", "Run store backend (memory|file|redis|postgres)")
	fs.String("store-dir", "", "Directory for the file store")
	fs.String("redis-addr", "", "Redis address for the redis store")
	fs.String("dsn", "", "Postgres DSN for the postgres store")
}

// loadConfig reads --config (or defaults) and applies flags that were set
func loadConfig(cmd *cobra.Command) (*config.RunConfig, error) {
	path, _ := cmd.Flags().GetString("config")

	var cfg *config.RunConfig
	if path != "" {
		loaded, err := config.LoadRunConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = config.DefaultRunConfig()
		cfg.ApplyEnv()
	}

	applyStoreFlags(cmd.Flags(), cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyStoreFlags(fs *pflag.FlagSet, cfg *config.RunConfig) {
	if fs.Changed("store") {
		cfg.Store.Backend, _ = fs.GetString("store")
	}
	if fs.Changed("store-dir") {
		cfg.Store.Dir, _ = fs.GetString("store-dir")
	}
	if fs.Changed("redis-addr") {
		cfg.Store.RedisAddr, _ = fs.GetString("redis-addr")
	}
	if fs.Changed("dsn") {
		cfg.Store.DSN, _ = fs.GetString("dsn")
	}
}
