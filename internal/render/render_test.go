package render

import (
	"io"
	"log/slog"
	"reflect"
	"testing"

	"signalboard/internal/domain"
	"signalboard/internal/session"
)

func newStore() *session.Store {
	return session.NewStore(domain.ModeBuy, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func allImages(ticker domain.Ticker) *domain.AnalysisResult {
	return &domain.AnalysisResult{
		Ticker: ticker,
		// Deliberately not in render order.
		Images: map[domain.ArtifactKey][]byte{
			domain.ArtifactPrediction:   []byte("p"),
			domain.ArtifactMA100MA200:   []byte("m2"),
			domain.ArtifactClosingPrice: []byte("c"),
			domain.ArtifactMA100:        []byte("m1"),
		},
		Metrics: map[domain.MetricKey]float64{
			domain.MetricMaxDrawdown: -0.38,
			domain.MetricVolatility:  0.017,
		},
	}
}

func TestDecisionTable(t *testing.T) {
	res := allImages("AAPL")
	tests := []struct {
		name  string
		state session.State
		want  Kind
	}{
		{"in flight, nothing selected", session.State{InFlight: true}, KindLoading},
		{"in flight with result", session.State{InFlight: true, SelectedTicker: "AAPL", LastResult: res}, KindLoading},
		{"no selection", session.State{}, KindPrompt},
		{"no selection, old result", session.State{LastResult: res}, KindPrompt},
		{"selected, never fetched", session.State{SelectedTicker: "AAPL"}, KindPrompt},
		{"selected with result", session.State{SelectedTicker: "AAPL", LastResult: res}, KindGraph},
		{"result for another ticker", session.State{SelectedTicker: "MSFT", LastResult: res}, KindPrompt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.state.Mode = domain.ModeBuy
			v := Render(tt.state, Options{})
			if v.Kind != tt.want {
				t.Fatalf("Kind = %v, want %v", v.Kind, tt.want)
			}
			if v.Kind != KindGraph && (len(v.Images) != 0 || v.Heading != "") {
				t.Errorf("non-graph view carries graph section: %+v", v)
			}
		})
	}
}

func TestLoadingViewIsBare(t *testing.T) {
	v := Render(session.State{InFlight: true, Tickers: []domain.Ticker{"AAPL"}, SelectedTicker: "AAPL"}, Options{ShowMetrics: true})
	if len(v.Tickers) != 0 || v.FetchEnabled || len(v.Metrics) != 0 {
		t.Errorf("loading view should show the indicator only: %+v", v)
	}
	if v.Prompt != LoadingText {
		t.Errorf("Prompt = %q, want %q", v.Prompt, LoadingText)
	}
}

// Catalog returns AAPL and MSFT; AAPL is fetched in Buy mode and only the
// closing price chart comes back.
func TestScenarioSingleImage(t *testing.T) {
	s := newStore()
	s.SetCatalog([]domain.Ticker{"AAPL", "MSFT"})
	s.SetSelectedTicker("AAPL")
	s.SetMode(domain.ModeBuy)
	tk, ok := s.BeginFetch()
	if !ok {
		t.Fatal("BeginFetch refused")
	}
	s.CompleteFetch(tk, &domain.AnalysisResult{
		Images:  map[domain.ArtifactKey][]byte{domain.ArtifactClosingPrice: []byte("X")},
		Metrics: map[domain.MetricKey]float64{},
	}, nil)

	v := Render(s.State(), Options{})
	if v.Kind != KindGraph {
		t.Fatalf("Kind = %v, want graph", v.Kind)
	}
	if v.Heading != "BUY Signals for AAPL" {
		t.Errorf("Heading = %q", v.Heading)
	}
	if len(v.Images) != 1 || v.Images[0].Key != domain.ArtifactClosingPrice {
		t.Fatalf("Images = %+v, want exactly ClosingPrice", v.Images)
	}
	if v.Images[0].MIME != "image/png" || string(v.Images[0].Data) != "X" {
		t.Errorf("image = %+v", v.Images[0])
	}
	if len(v.Tickers) != 2 {
		t.Errorf("selector should list the catalog, got %v", v.Tickers)
	}
}

func TestScenarioNoSelectionNoDispatch(t *testing.T) {
	s := newStore()
	if _, ok := s.BeginFetch(); ok {
		t.Fatal("BeginFetch should refuse without a selection")
	}
	if s.State().InFlight {
		t.Fatal("InFlight must stay false")
	}
	if v := Render(s.State(), Options{}); v.Kind != KindPrompt || v.FetchEnabled {
		t.Errorf("view = %+v, want prompt with fetch disabled", v)
	}
}

func TestScenarioFailureRenders(t *testing.T) {
	s := newStore()
	s.SetSelectedTicker("AAPL")
	tk, _ := s.BeginFetch()
	s.CompleteFetch(tk, nil, io.ErrUnexpectedEOF)

	st := s.State()
	if st.InFlight || st.LastResult != nil {
		t.Fatalf("state after failure = %+v", st)
	}
	if v := Render(st, Options{}); v.Kind != KindPrompt {
		t.Errorf("Kind = %v, want prompt", v.Kind)
	}
}

func TestScenarioFixedOrder(t *testing.T) {
	v := Render(session.State{Mode: domain.ModeSell, SelectedTicker: "AAPL", LastResult: allImages("AAPL")}, Options{})
	want := []domain.ArtifactKey{
		domain.ArtifactClosingPrice,
		domain.ArtifactMA100,
		domain.ArtifactMA100MA200,
		domain.ArtifactPrediction,
	}
	if len(v.Images) != len(want) {
		t.Fatalf("got %d images, want %d", len(v.Images), len(want))
	}
	for i, k := range want {
		if v.Images[i].Key != k {
			t.Errorf("Images[%d] = %q, want %q", i, v.Images[i].Key, k)
		}
	}
	if v.Heading != "SELL Signals for AAPL" {
		t.Errorf("Heading = %q", v.Heading)
	}
}

func TestStaleNeverRenderedUnderNewTicker(t *testing.T) {
	s := newStore()
	s.SetSelectedTicker("AAPL")
	tk, _ := s.BeginFetch()
	s.SetSelectedTicker("MSFT")
	s.CompleteFetch(tk, allImages("AAPL"), nil)

	v := Render(s.State(), Options{})
	if v.Kind == KindGraph || len(v.Images) != 0 {
		t.Fatalf("AAPL data rendered for MSFT: %+v", v)
	}
}

func TestMetricsOptIn(t *testing.T) {
	st := session.State{Mode: domain.ModeBuy, SelectedTicker: "AAPL", LastResult: allImages("AAPL")}

	if v := Render(st, Options{}); len(v.Metrics) != 0 {
		t.Errorf("metrics shown by default: %+v", v.Metrics)
	}
	v := Render(st, Options{ShowMetrics: true})
	if len(v.Metrics) != 2 {
		t.Fatalf("Metrics = %+v, want volatility and max drawdown", v.Metrics)
	}
	if v.Metrics[0].Key != domain.MetricVolatility || v.Metrics[1].Key != domain.MetricMaxDrawdown {
		t.Errorf("metrics out of order: %+v", v.Metrics)
	}
}

func TestRenderDeterministic(t *testing.T) {
	st := session.State{
		Tickers:        []domain.Ticker{"AAPL", "MSFT"},
		Mode:           domain.ModeBuy,
		SelectedTicker: "AAPL",
		LastResult:     allImages("AAPL"),
	}
	first := Render(st, Options{ShowMetrics: true})
	for i := 0; i < 20; i++ {
		if got := Render(st, Options{ShowMetrics: true}); !reflect.DeepEqual(got, first) {
			t.Fatalf("render %d differs:\n got  %+v\n want %+v", i, got, first)
		}
	}
}
