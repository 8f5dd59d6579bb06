package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"signalboard/internal/artifact"
	"signalboard/internal/batch"
	"signalboard/internal/dashboard"
	"signalboard/internal/domain"
	"signalboard/pkg/signalboard"
)

// --- Fetch Command ---

var fetchCmd = &cobra.Command{
	Use:   "fetch TICKER...",
	Short: "Fetch and print the analysis for one or more tickers",
	Long: `Fetch the analysis for each ticker without starting the dashboard.

Examples:
  signalboard fetch AAPL
  signalboard fetch AAPL MSFT --mode sell --metrics
  signalboard fetch TSLA --out ./artifacts`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().String("mode", "", "signal mode label: buy or sell (default from config)")
	fetchCmd.Flags().Bool("metrics", false, "include summary metrics")
	fetchCmd.Flags().String("out", "", "export artifacts under this directory")
}

func runFetch(cmd *cobra.Command, args []string) error {
	logger, closer, err := newLogger(true)
	if err != nil {
		return err
	}
	defer closer.Close()

	modeFlag, _ := cmd.Flags().GetString("mode")
	if modeFlag == "" {
		modeFlag = cfg.UI.DefaultMode
	}
	mode, err := domain.ParseMode(modeFlag)
	if err != nil {
		return err
	}
	showMetrics, _ := cmd.Flags().GetBool("metrics")
	if !cmd.Flags().Changed("metrics") {
		showMetrics = cfg.UI.ShowMetrics
	}

	opts := batch.Options{
		Mode:        mode,
		ShowMetrics: showMetrics,
		Concurrency: cfg.Backend.Concurrency,
		Logger:      logger,
	}
	if out, _ := cmd.Flags().GetString("out"); out != "" {
		store, err := artifact.NewStore(out, logger)
		if err != nil {
			return err
		}
		opts.Exporter = store
	}

	tickers := make([]domain.Ticker, 0, len(args))
	for _, a := range args {
		tickers = append(tickers, domain.Ticker(strings.ToUpper(strings.TrimSpace(a))))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := signalboard.NewClient(cfg.Backend.BaseURL, cfg.Backend.Timeout)
	reports, runErr := batch.Run(ctx, client, tickers, opts)

	out := cmd.OutOrStdout()
	for i, r := range reports {
		if i > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprintf(out, "== %s ==\n", r.Ticker)
		if r.Err != nil {
			fmt.Fprintf(out, "error: %v\n", r.Err)
		}
		fmt.Fprint(out, dashboard.PlainText(r.View))
		if r.Manifest != nil {
			fmt.Fprintf(out, "exported %d images to %s\n", len(r.Manifest.Images), r.Manifest.Dir)
		}
	}

	if runErr != nil {
		return runErr
	}
	if n := batch.Failed(reports); n > 0 {
		return fmt.Errorf("%d of %d fetches failed", n, len(reports))
	}
	return nil
}
