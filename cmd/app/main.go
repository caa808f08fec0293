package main

import (
	"fmt"
	"os"

	"MacroPulse/internal/di"
	"MacroPulse/pkg/config"
	"MacroPulse/pkg/server"

	"github.com/spf13/cobra"
)

var configPath string

// rootCmd is the base command for the MacroPulse CLI
var rootCmd = &cobra.Command{
	Use:   "macropulse",
	Short: "MacroPulse macro regime signal engine",
	Long: `MacroPulse enriches an equity index with macro factors, infers
Expansion/Slowdown/Stress regime probabilities, scores the next move with a
walk-forward classifier and backtests a regime-aware exposure signal.`,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, cleanup, err := initApp()
		if err != nil {
			return err
		}
		defer cleanup()
		return app.Run()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "config file path")
	rootCmd.AddCommand(serveCmd)
}

func initApp() (*server.App, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	app, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("app initialization failed: %w", err)
	}
	return app, cleanup, nil
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if _, err := os.Stat(path); os.IsNotExist(err) && !rootCmd.PersistentFlags().Changed("config") {
		path = ""
	}
	cfg, err := config.LoadWithEnv(path)
	if err != nil {
		return nil, fmt.Errorf("config load failed: %w", err)
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
