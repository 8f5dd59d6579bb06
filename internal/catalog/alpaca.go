package catalog

import (
	"context"
	"sort"

	alpacaapi "github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"

	"signalboard/internal/domain"
)

// assetLister is the part of *alpacaapi.Client the Alpaca source uses.
type assetLister interface {
	GetAssets(req alpacaapi.GetAssetsRequest) ([]alpacaapi.Asset, error)
}

// AlpacaSource lists active, tradable US equities from the Alpaca trading
// API.
type AlpacaSource struct {
	client assetLister
}

// NewAlpacaSource creates a source backed by an Alpaca trading client built
// from the given credentials. An empty baseURL uses the SDK default.
func NewAlpacaSource(apiKey, apiSecret, baseURL string) *AlpacaSource {
	return &AlpacaSource{client: alpacaapi.NewClient(alpacaapi.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
		BaseURL:   baseURL,
	})}
}

func (s *AlpacaSource) Name() string { return SourceAlpaca }

// LoadTickers returns tradable symbols sorted alphabetically. The SDK call
// takes no context, so ctx is only checked before the request.
func (s *AlpacaSource) LoadTickers(ctx context.Context) ([]domain.Ticker, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	assets, err := s.client.GetAssets(alpacaapi.GetAssetsRequest{
		Status:     "active",
		AssetClass: "us_equity",
	})
	if err != nil {
		return nil, err
	}

	tickers := make([]domain.Ticker, 0, len(assets))
	for _, a := range assets {
		if !a.Tradable {
			continue
		}
		tickers = append(tickers, domain.Ticker(a.Symbol))
	}
	sort.Slice(tickers, func(i, j int) bool { return tickers[i] < tickers[j] })
	return tickers, nil
}
