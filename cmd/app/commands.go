package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"SignalBot/internal/di"
	"SignalBot/internal/domain/models"
	"SignalBot/internal/usecase"
	"SignalBot/pkg/config"
	"SignalBot/pkg/server"
	"SignalBot/pkg/util"

	"github.com/spf13/cobra"
)

var (
	flagThreshold float64
	flagWindow    int
	flagAssets    string
	flagFormat    string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Generate signals, backtest them and persist the results once",
	Long: `Run one batch pass: load snapshots, generate signals, persist them, align
buy signals with subsequent prices, persist the outcome table and publish
outcomes when kafka is enabled.

Examples:
  signalbot run
  signalbot run --threshold 0.1 --window 12
  signalbot run --assets bitcoin,ethereum --format json`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(func(app *server.App) error {
			rep, err := app.RunOnce(cmd.Context(), thresholdFlag(cmd), flagWindow, util.SplitList(flagAssets))
			if err != nil {
				return err
			}
			return printReport(cmd.OutOrStdout(), rep, flagFormat)
		})
	},
}

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Re-score signals persisted by an earlier run",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(func(app *server.App) error {
			rep, err := app.Backtest(cmd.Context(), thresholdFlag(cmd), flagWindow, util.SplitList(flagAssets))
			if err != nil {
				return err
			}
			return printReport(cmd.OutOrStdout(), rep, flagFormat)
		})
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve signals and backtest reports over HTTP",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(func(app *server.App) error {
			return app.Serve(cmd.Context())
		})
	},
}

// thresholdFlag is nil unless --threshold was given, so --threshold 0 is honored.
func thresholdFlag(cmd *cobra.Command) *float64 {
	if !cmd.Flags().Changed("threshold") {
		return nil
	}
	return usecase.Threshold(flagThreshold)
}

func init() {
	for _, c := range []*cobra.Command{runCmd, backtestCmd} {
		c.Flags().Float64Var(&flagThreshold, "threshold", 0, "success threshold on forward return (default from config)")
		c.Flags().IntVar(&flagWindow, "window", 0, "forward window in observations (default from config)")
		c.Flags().StringVar(&flagAssets, "assets", "", "comma separated asset ids (default from config)")
		c.Flags().StringVar(&flagFormat, "format", "text", "output format: text or json")
	}
}

func withApp(fn func(app *server.App) error) error {
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return err
	}
	app, err := di.InitializeApp(cfg)
	if err != nil {
		return fmt.Errorf("app initialization failed: %w", err)
	}
	defer func() { _ = app.Close() }()
	return fn(app)
}

func printReport(w io.Writer, rep models.Report, format string) error {
	if strings.EqualFold(format, "json") {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
	fmt.Fprintf(w, "run %s: %d snapshots, %d signals, %d buy, %d evaluated, %d successes (hit rate %.1f%%, mean return %.2f%%, max return %.2f%%)\n",
		rep.RunID, rep.Snapshots, rep.Signals, rep.BuySignals, rep.Evaluated, rep.Successes,
		rep.HitRate*100, rep.MeanReturn*100, rep.MaxReturn*100)
	reasons := make([]string, 0, len(rep.Excluded))
	for reason := range rep.Excluded {
		reasons = append(reasons, string(reason))
	}
	sort.Strings(reasons)
	for _, r := range reasons {
		fmt.Fprintf(w, "  excluded %s: %d\n", r, rep.Excluded[models.ExclusionReason(r)])
	}
	for _, d := range rep.Diagnostics {
		fmt.Fprintf(w, "  diagnostic: %s\n", d)
	}
	return nil
}
