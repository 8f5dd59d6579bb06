// Signalboard is a terminal dashboard for the stock prediction service.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"signalboard/internal/artifact"
	"signalboard/internal/catalog"
	"signalboard/internal/config"
	"signalboard/internal/dashboard"
	"signalboard/internal/domain"
	"signalboard/internal/session"
	"signalboard/internal/util"
	"signalboard/pkg/signalboard"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
)

var cfg *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "signalboard",
	Short:         "Terminal dashboard for buy/sell stock predictions",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
			cfg.Logging.Level = lvl
		}
		return nil
	},
	RunE: runDashboard,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (YAML)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(tickersCmd)
	rootCmd.AddCommand(fetchCmd)
}

// newLogger builds the application logger. The dashboard owns the terminal,
// so it logs to the rotating file only; headless commands also log to
// stderr.
func newLogger(toStderr bool) (*slog.Logger, io.Closer, error) {
	file, err := util.NewRotatingWriter(util.RotatingFile{
		Path:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	var w io.Writer = file
	if toStderr {
		w = io.MultiWriter(os.Stderr, file)
	}
	logger := util.NewLogger(cfg.Logging.Level, w)
	util.SetDefault(logger)
	return logger, file, nil
}

// newSource builds the configured ticker catalog source.
func newSource(client *signalboard.Client) (catalog.Source, error) {
	switch cfg.Catalog.Source {
	case catalog.SourceBackend:
		return catalog.NewBackendSource(client), nil
	case catalog.SourceWikipedia:
		return catalog.NewWikipediaSource(cfg.Catalog.WikipediaURL), nil
	case catalog.SourceAlpaca:
		return catalog.NewAlpacaSource(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.BaseURL), nil
	default:
		return nil, fmt.Errorf("unknown catalog source %q", cfg.Catalog.Source)
	}
}

func runDashboard(cmd *cobra.Command, args []string) error {
	logger, closer, err := newLogger(false)
	if err != nil {
		return err
	}
	defer closer.Close()

	client := signalboard.NewClient(cfg.Backend.BaseURL, cfg.Backend.Timeout)
	src, err := newSource(client)
	if err != nil {
		return err
	}
	exporter, err := artifact.NewStore(cfg.UI.ExportDir, logger)
	if err != nil {
		return err
	}
	mode, err := domain.ParseMode(cfg.UI.DefaultMode)
	if err != nil {
		return err
	}

	logger.Info("starting dashboard", "backend", client.BaseURL(), "catalog", src.Name(), "version", version)

	m := dashboard.New(dashboard.Options{
		Store:       session.NewStore(mode, logger),
		Catalog:     src,
		Analyzer:    client,
		Exporter:    exporter,
		Timeout:     cfg.Backend.Timeout,
		ShowMetrics: cfg.UI.ShowMetrics,
		Logger:      logger,
	})
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "signalboard %s (%s)\n", version, commit)
	},
}

// --- Tickers Command ---

var tickersCmd = &cobra.Command{
	Use:   "tickers",
	Short: "Print the ticker catalog, one symbol per line",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, closer, err := newLogger(true)
		if err != nil {
			return err
		}
		defer closer.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx, cancel := context.WithTimeout(ctx, cfg.Backend.Timeout)
		defer cancel()

		src, err := newSource(signalboard.NewClient(cfg.Backend.BaseURL, cfg.Backend.Timeout))
		if err != nil {
			return err
		}
		tickers, err := catalog.Load(ctx, src)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, t := range tickers {
			fmt.Fprintln(out, t)
		}
		return nil
	},
}
