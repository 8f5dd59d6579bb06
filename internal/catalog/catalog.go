// Package catalog loads the list of selectable tickers. It is called once at
// startup; a failure leaves the selector empty rather than blocking the UI.
package catalog

import (
	"context"
	"fmt"
	"strings"

	"signalboard/internal/domain"
)

// Source names.
const (
	SourceBackend   = "backend"
	SourceWikipedia = "wikipedia"
	SourceAlpaca    = "alpaca"
)

// Source loads the ticker catalog.
type Source interface {
	Name() string
	LoadTickers(ctx context.Context) ([]domain.Ticker, error)
}

// Load calls src and normalizes the result. Errors are wrapped with the
// source name.
func Load(ctx context.Context, src Source) ([]domain.Ticker, error) {
	tickers, err := src.LoadTickers(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog: load from %s: %w", src.Name(), err)
	}
	return normalize(tickers), nil
}

// normalize trims symbols, drops empty ones and removes duplicates while
// keeping first-seen order.
func normalize(in []domain.Ticker) []domain.Ticker {
	seen := make(map[domain.Ticker]struct{}, len(in))
	out := make([]domain.Ticker, 0, len(in))
	for _, t := range in {
		t = domain.Ticker(strings.TrimSpace(string(t)))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// tickerLister is the part of *signalboard.Client the backend source uses.
type tickerLister interface {
	ListTickers(ctx context.Context) ([]domain.Ticker, error)
}

// BackendSource reads GET /tickers from the prediction backend.
type BackendSource struct {
	client tickerLister
}

// NewBackendSource wraps a backend client.
func NewBackendSource(c tickerLister) *BackendSource {
	return &BackendSource{client: c}
}

func (s *BackendSource) Name() string { return SourceBackend }

func (s *BackendSource) LoadTickers(ctx context.Context) ([]domain.Ticker, error) {
	return s.client.ListTickers(ctx)
}
