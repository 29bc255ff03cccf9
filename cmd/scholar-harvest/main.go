// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the scholar-harvest CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/scholar-harvest/internal/reference"
	"github.com/pdiddy/scholar-harvest/internal/retrieve"
	"github.com/pdiddy/scholar-harvest/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

const (
	defaultResultsDir  = "results"
	defaultMailboxDir  = "mail"
	defaultUserAgent   = "scholar-harvest/0.1"
	defaultConcurrency = 8
	defaultTimeout     = 60 * time.Second
	defaultMaxRetries  = 5
	defaultRetryDelay  = time.Second
)

// rootCmd is the base command for the scholar-harvest CLI.
var rootCmd = &cobra.Command{
	Use:   "scholar-harvest",
	Short: "Harvest papers linked from scholar alert emails",
	Long: `scholar-harvest reads exported scholar alert messages, extracts the
publication links they contain, resolves each link to its publisher URL and
DOI, looks up a formatted reference, and downloads the PDFs into a results
directory. Citations are recorded in output.csv, per-citation YAML metadata
and a SQLite index.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("loading .env: %w", err)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./scholar-harvest.yaml or ~/.config/scholar-harvest/scholar-harvest.yaml)")
	rootCmd.PersistentFlags().String("results-dir", defaultResultsDir, "directory receiving PDFs, output.csv, metadata/ and citations.db")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().Bool("log-development", false, "human-readable log output")

	viper.BindPFlag("results_dir", rootCmd.PersistentFlags().Lookup("results-dir"))
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log.development", rootCmd.PersistentFlags().Lookup("log-development"))

	setDefaults()
}

func setDefaults() {
	viper.SetDefault("results_dir", defaultResultsDir)
	viper.SetDefault("mailbox.dir", defaultMailboxDir)
	viper.SetDefault("http.user_agent", defaultUserAgent)
	viper.SetDefault("retrieval.concurrency", defaultConcurrency)
	viper.SetDefault("retrieval.timeout", defaultTimeout)
	viper.SetDefault("retrieval.mirror", string(types.MirrorIframe))
	viper.SetDefault("retrieval.mirror_url", retrieve.DefaultMirrorURL)
	viper.SetDefault("retrieval.max_retries", defaultMaxRetries)
	viper.SetDefault("retrieval.retry_delay", defaultRetryDelay)
	viper.SetDefault("reference.url", reference.DefaultURL)
	viper.SetDefault("reference.style", reference.DefaultStyle)
	viper.SetDefault("reference.lang", reference.DefaultLang)
	viper.SetDefault("reference.timeout", reference.Timeout)
	viper.SetDefault("log.level", "info")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("scholar-harvest")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "scholar-harvest"))
		}
	}

	viper.SetEnvPrefix("SCHOLAR_HARVEST")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig assembles the harvest configuration from flags, environment,
// config file and defaults.
func loadConfig() (types.HarvestConfig, error) {
	var cfg types.HarvestConfig
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("reading configuration: %w", err)
	}

	ua := viper.GetString("http.user_agent")
	if cfg.Retrieval.UserAgent == "" {
		cfg.Retrieval.UserAgent = ua
	}
	if cfg.Reference.UserAgent == "" {
		cfg.Reference.UserAgent = ua
	}
	if cfg.Retrieval.ResultsDir == "" {
		cfg.Retrieval.ResultsDir = cfg.ResultsDir
	}
	if cfg.Retrieval.Concurrency <= 0 {
		return cfg, fmt.Errorf("retrieval.concurrency must be positive, got %d", cfg.Retrieval.Concurrency)
	}
	switch cfg.Retrieval.Mirror {
	case types.MirrorIframe, types.MirrorOpenAlex:
	default:
		return cfg, fmt.Errorf("unknown retrieval.mirror %q (want %s or %s)",
			cfg.Retrieval.Mirror, types.MirrorIframe, types.MirrorOpenAlex)
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
