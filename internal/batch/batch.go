// Package batch fetches analyses for several tickers without a terminal UI.
// Each ticker gets its own session.Store, so workers share no state.
package batch

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"signalboard/internal/artifact"
	"signalboard/internal/domain"
	"signalboard/internal/render"
	"signalboard/internal/session"
)

// Exporter writes the artifacts of a graph view.
type Exporter interface {
	Save(v render.View) (artifact.Manifest, error)
}

// Options controls a batch run.
type Options struct {
	Mode        domain.Mode
	ShowMetrics bool
	Concurrency int
	Exporter    Exporter // nil skips export
	Logger      *slog.Logger
}

// Report is the result for one ticker.
type Report struct {
	Ticker   domain.Ticker
	Outcome  session.Outcome
	View     render.View
	Manifest *artifact.Manifest
	Err      error
}

// Run fetches every ticker with at most opts.Concurrency requests in flight
// and returns one report per ticker in input order. Per-ticker failures are
// recorded in the reports; the returned error is non-nil only if ctx ends
// before every ticker ran.
func Run(ctx context.Context, a session.Analyzer, tickers []domain.Ticker, opts Options) ([]Report, error) {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	reports := make([]Report, len(tickers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)

	for i, t := range tickers {
		i, t := i, t
		reports[i].Ticker = t
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				reports[i].Err = err
				return nil
			}
			reports[i] = runOne(gctx, a, t, opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return reports, err
	}
	return reports, ctx.Err()
}

func runOne(ctx context.Context, a session.Analyzer, t domain.Ticker, opts Options) Report {
	st := session.NewStore(opts.Mode, opts.Logger)
	st.SetSelectedTicker(t)

	outcome, err := st.Fetch(ctx, a)
	rep := Report{
		Ticker:  t,
		Outcome: outcome,
		View:    render.Render(st.State(), render.Options{ShowMetrics: opts.ShowMetrics}),
		Err:     err,
	}
	if err != nil || outcome != session.Applied {
		if rep.Err == nil {
			rep.Err = fmt.Errorf("fetch %s: %s", t, outcome)
		}
		return rep
	}

	if opts.Exporter != nil && rep.View.Kind == render.KindGraph {
		m, err := opts.Exporter.Save(rep.View)
		if err != nil {
			rep.Err = fmt.Errorf("export %s: %w", t, err)
			return rep
		}
		rep.Manifest = &m
	}
	opts.Logger.Info("analysis fetched", "ticker", t, "images", len(rep.View.Images))
	return rep
}

// Failed counts reports that carry an error.
func Failed(reports []Report) int {
	n := 0
	for _, r := range reports {
		if r.Err != nil {
			n++
		}
	}
	return n
}
