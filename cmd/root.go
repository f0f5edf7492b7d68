package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/ownership-cli/internal/config"
)

var (
	cfg        *config.Config
	configFile string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "ownership-cli",
	Short: "CMDB stale ownership analyzer",
	Long:  "Retrieves ServiceNow CMDB items, audit history, and users, flags CIs whose owner looks stale, recommends replacements, and reassigns owners with undo.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "path to the ownership config file (default ./config.yaml)")
	pf.StringVar(&logLevel, "log-level", "", "override log.level (debug, info, warn, error)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
