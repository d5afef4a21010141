package main

import (
	"fmt"
	"os"

	"countryfilter/internal/bridge"
	"countryfilter/internal/config"
	"countryfilter/internal/logging"

	"github.com/spf13/cobra"
)

// app carries the resolved configuration to subcommands
type app struct {
	cfg *config.Config
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	var (
		dbPath   string
		store    string
		addr     string
		logLevel string
	)

	rootCmd := &cobra.Command{
		Use:           "countryfilter",
		Short:         "Hide timeline items by country, user or keyword",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("db") {
				cfg.DBPath = dbPath
			}
			if flags.Changed("store") {
				cfg.Store = store
			}
			if flags.Changed("addr") {
				cfg.Addr = addr
			}
			if flags.Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			// stdout belongs to command output
			logging.Setup(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
			a.cfg = cfg
			return nil
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&dbPath, "db", "", "database path (COUNTRYFILTER_DB_PATH)")
	pf.StringVar(&store, "store", "", "storage backend: bolt or sqlite (COUNTRYFILTER_STORE)")
	pf.StringVar(&addr, "addr", "", "bridge listen/dial address (COUNTRYFILTER_ADDR)")
	pf.StringVar(&logLevel, "log-level", "", "debug, info, warn or error (LOG_LEVEL)")

	rootCmd.AddCommand(
		newServeCmd(a),
		newScanCmd(a),
		newInitCmd(a),
		newCountriesCmd(),
		newStatsCmd(a),
		newResetStatsCmd(a),
		newRescanCmd(a),
		newSettingsCmd(a),
		newBadgeCmd(a),
	)
	return rootCmd
}

// dial connects a surface client to the running engine
func (a *app) dial(cmd *cobra.Command, surface string) (*bridge.Client, error) {
	c, err := bridge.Dial(cmd.Context(), a.cfg.BridgeURL(), bridge.Options{
		Surface: surface,
		Timeout: a.cfg.ReplyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to %s (is `countryfilter serve` running?): %w", a.cfg.BridgeURL(), err)
	}
	return c, nil
}

func closeQuietly(c interface{ Close() error }) {
	if err := c.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: close: %v\n", err)
	}
}
