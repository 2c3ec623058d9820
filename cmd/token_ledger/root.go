package main

import (
	"fmt"
	"os"

	"token_ledger/internal/infrastructure/configloader"
	"token_ledger/internal/pkg/logger"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const defaultConfigPath = "config/config.yaml"

var (
	configPath string

	cfg       *configloader.Config
	zapLogger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "token-ledger",
	Short: "Token balance and price ledger for one account",
	Long: `token-ledger tracks the tokens of one account on one EVM network.

It derives tokens from the transaction history, merges the server token list
where the network has one, refreshes fiat prices on a timer and queries every
balance on chain.

Example:
  token-ledger serve --config config/config.yaml
  token-ledger sync`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		return initGlobals()
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		if zapLogger != nil {
			_ = zapLogger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the YAML configuration (env CONFIG_PATH)")
	rootCmd.AddCommand(serveCmd, syncCmd)
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

func initGlobals() error {
	path := configPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = defaultConfigPath
	}

	var err error
	cfg, err = configloader.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if level, err := logrus.ParseLevel(cfg.Logging.Level); err == nil {
		logrus.SetLevel(level)
	}

	zapLogger = logger.New(logger.Options{
		Level:      cfg.Logging.Level,
		Encoding:   cfg.Logging.Encoding,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	zapLogger.Info("Configuration loaded", zap.String("path", path), zap.String("network", cfg.Account.Network))
	return nil
}
