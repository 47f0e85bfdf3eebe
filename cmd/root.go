package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"oxyrun/config"
	"oxyrun/server"
)

var (
	cfgDir string
	cfg    *config.Config
)

// RootCmd 根命令
var RootCmd = &cobra.Command{
	Use:   "oxyrun",
	Short: "Real-time multiplayer oxygen runner",
	Long: `oxyrun keeps client-predicted players in sync with a tick-driven authority.
Run "serve" for the networked authority or "play" for a headless client.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(cfgDir)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c
		applyLogFlags(cmd, &cfg.Log)
		return server.InitLogger(cfg.Log)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		server.SyncLogger()
	},
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		server.Logger().Error("command failed", zap.Error(err))
		server.SyncLogger()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func applyLogFlags(cmd *cobra.Command, lc *config.LogConfig) {
	if f := cmd.Flags().Lookup("log-level"); f != nil && f.Changed {
		lc.Level = f.Value.String()
	}
	if f := cmd.Flags().Lookup("log-file"); f != nil && f.Changed {
		lc.File = f.Value.String()
	}
}

func init() {
	RootCmd.PersistentFlags().StringVar(&cfgDir, "config-dir", ".", "directory containing the .env file")
	RootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	RootCmd.PersistentFlags().String("log-file", "app.log", "rotating log file, empty to disable")
}
