package main

import (
	"encoding/json"
	"fmt"
	"os"

	domrepo "MacroPulse/internal/domain/repository"
	xhttp "MacroPulse/pkg/http"

	"github.com/spf13/cobra"
)

var (
	ticker string
	period string
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Fit and persist the scoring model for a ticker",
	Long: `Fetch the training history, fit the walk-forward classifier on every
available row and write the model artifact to the configured model
directory.

Examples:
  macropulse train
  macropulse train --ticker ^NDX --period 10y`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, cleanup, err := initApp()
		if err != nil {
			return err
		}
		defer cleanup()
		return app.Score().Train(cmd.Context(), ticker, periodOr(domrepo.Period5y))
	},
}

var overlayCmd = &cobra.Command{
	Use:   "overlay",
	Short: "Compute one overlay snapshot and print it as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, cleanup, err := initApp()
		if err != nil {
			return err
		}
		defer cleanup()
		o, err := app.Overlay().Refresh(cmd.Context(), ticker, periodOr(domrepo.DefaultPeriod()))
		if err != nil {
			return err
		}
		return printJSON(o)
	},
}

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run the pipeline and print the backtest summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, cleanup, err := initApp()
		if err != nil {
			return err
		}
		defer cleanup()
		s, err := app.Overlay().Backtest(cmd.Context(), ticker, periodOr(domrepo.DefaultPeriod()))
		if err != nil {
			return err
		}
		return printJSON(s)
	},
}

func init() {
	for _, c := range []*cobra.Command{trainCmd, overlayCmd, backtestCmd} {
		c.Flags().StringVar(&ticker, "ticker", "^GSPC", "index ticker")
		c.Flags().StringVar(&period, "period", "", "history period (6mo, 1y, 2y, 5y, 10y, max)")
		c.PreRunE = validateFlags
		rootCmd.AddCommand(c)
	}
}

func validateFlags(cmd *cobra.Command, args []string) error {
	if !xhttp.ValidTicker(ticker) {
		return fmt.Errorf("invalid ticker %q", ticker)
	}
	if period != "" && !domrepo.IsValidPeriod(domrepo.Period(period)) {
		return fmt.Errorf("invalid period %q", period)
	}
	return nil
}

func periodOr(def domrepo.Period) domrepo.Period {
	if period == "" {
		return def
	}
	return domrepo.NormalizePeriod(period)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
