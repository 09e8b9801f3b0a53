package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"pdiskrepair/internal/config"
	"pdiskrepair/pkg/log"
)

const version = "1.0.0"

var (
	cfg config.Config

	dryRun    bool
	short     bool
	recipient string
)

var rootCmd = &cobra.Command{
	Use:           "pdiskrepair",
	Short:         "Monitor pdisk health in recovery groups and orchestrate replacements",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}

		logLvl, err := zap.ParseAtomicLevel(cfg.LogLevel)
		if err != nil {
			logLvl = zap.NewAtomicLevelAt(zapcore.InfoLevel)
		}
		logger := log.InitLog(logLvl)
		zap.ReplaceGlobals(logger)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("pdiskrepair v%s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(prepareCmd)
	rootCmd.AddCommand(replaceCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "Construct and log commands without executing mutating ones")
	rootCmd.PersistentFlags().BoolVar(&short, "short", false, "Render the short disk table")
	rootCmd.PersistentFlags().StringVarP(&recipient, "email", "e", "", "Alert recipient (overrides PDISKREPAIR_EMAIL_TO)")
}
