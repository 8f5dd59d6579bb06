package session

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"signalboard/internal/domain"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func result(ticker domain.Ticker, keys ...domain.ArtifactKey) *domain.AnalysisResult {
	r := &domain.AnalysisResult{
		Ticker:  ticker,
		Images:  make(map[domain.ArtifactKey][]byte),
		Metrics: map[domain.MetricKey]float64{},
	}
	for _, k := range keys {
		r.Images[k] = []byte(string(ticker) + ":" + string(k))
	}
	return r
}

func TestNewStoreDefaults(t *testing.T) {
	s := NewStore("", quietLogger())
	st := s.State()
	if st.Mode != domain.ModeBuy {
		t.Errorf("Mode = %q, want buy", st.Mode)
	}
	if st.SelectedTicker != "" || st.LastResult != nil || st.InFlight {
		t.Errorf("unexpected initial state: %+v", st)
	}
}

func TestSelectionNeverFetches(t *testing.T) {
	s := NewStore(domain.ModeBuy, quietLogger())
	s.SetSelectedTicker("AAPL")
	tk, _ := s.BeginFetch()
	s.CompleteFetch(tk, result("AAPL", domain.ArtifactClosingPrice), nil)
	before := s.State().LastResult

	for _, sym := range []domain.Ticker{"MSFT", "", "GOOG", "AAPL", "TSLA"} {
		s.SetSelectedTicker(sym)
		st := s.State()
		if st.LastResult != before {
			t.Fatalf("LastResult changed after selecting %q", sym)
		}
		if st.InFlight {
			t.Fatalf("selection of %q started a fetch", sym)
		}
	}
}

func TestInFlightBracket(t *testing.T) {
	s := NewStore(domain.ModeBuy, quietLogger())
	s.SetSelectedTicker("AAPL")

	if s.State().InFlight {
		t.Fatal("InFlight before BeginFetch")
	}
	tk, ok := s.BeginFetch()
	if !ok {
		t.Fatal("BeginFetch refused with a selection")
	}
	if !s.State().InFlight {
		t.Fatal("InFlight should be true after BeginFetch")
	}
	if got := s.CompleteFetch(tk, result("AAPL"), nil); got != Applied {
		t.Fatalf("CompleteFetch = %v, want applied", got)
	}
	if s.State().InFlight {
		t.Fatal("InFlight should be false after CompleteFetch")
	}
}

func TestBeginFetchRequiresSelection(t *testing.T) {
	s := NewStore(domain.ModeBuy, quietLogger())
	if _, ok := s.BeginFetch(); ok {
		t.Fatal("BeginFetch should refuse without a selection")
	}
	if s.State().InFlight {
		t.Fatal("refused BeginFetch must not set InFlight")
	}
}

func TestBeginFetchWhileInFlight(t *testing.T) {
	s := NewStore(domain.ModeBuy, quietLogger())
	s.SetSelectedTicker("AAPL")
	first, _ := s.BeginFetch()
	if _, ok := s.BeginFetch(); ok {
		t.Fatal("second BeginFetch should be refused while in flight")
	}
	if got := s.CompleteFetch(first, result("AAPL"), nil); got != Applied {
		t.Fatalf("first completion = %v, want applied", got)
	}
}

func TestStaleResponseDiscarded(t *testing.T) {
	s := NewStore(domain.ModeBuy, quietLogger())
	s.SetSelectedTicker("MSFT")
	tk, _ := s.BeginFetch()
	prev := result("MSFT", domain.ArtifactMA100)
	s.CompleteFetch(tk, prev, nil)

	s.SetSelectedTicker("AAPL")
	tk, _ = s.BeginFetch()
	s.SetSelectedTicker("GOOG")

	if got := s.CompleteFetch(tk, result("AAPL", domain.ArtifactClosingPrice), nil); got != Stale {
		t.Fatalf("CompleteFetch = %v, want stale", got)
	}
	st := s.State()
	if st.InFlight {
		t.Error("stale completion must still clear InFlight")
	}
	if st.LastResult == nil || st.LastResult.Ticker != "MSFT" {
		t.Errorf("LastResult = %+v, want previous MSFT result", st.LastResult)
	}
}

func TestFailureKeepsLastResult(t *testing.T) {
	s := NewStore(domain.ModeBuy, quietLogger())
	s.SetSelectedTicker("AAPL")
	tk, _ := s.BeginFetch()
	s.CompleteFetch(tk, result("AAPL", domain.ArtifactClosingPrice), nil)
	before := s.State().LastResult

	tk, _ = s.BeginFetch()
	if got := s.CompleteFetch(tk, nil, errors.New("connection refused")); got != Failed {
		t.Fatalf("CompleteFetch = %v, want failed", got)
	}
	st := s.State()
	if st.InFlight {
		t.Error("failure must clear InFlight")
	}
	if st.LastResult != before {
		t.Error("failure must keep the previous result")
	}
}

func TestNilResultIsLoggedAsFailure(t *testing.T) {
	var buf bytes.Buffer
	s := NewStore(domain.ModeBuy, slog.New(slog.NewTextHandler(&buf, nil)))
	s.SetSelectedTicker("AAPL")
	tk, _ := s.BeginFetch()

	if got := s.CompleteFetch(tk, nil, nil); got != Failed {
		t.Fatalf("CompleteFetch(nil, nil) = %v, want failed", got)
	}
	if s.State().InFlight {
		t.Error("failure must clear InFlight")
	}
	out := buf.String()
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "ticker=AAPL") {
		t.Errorf("expected a warning naming the ticker, got %q", out)
	}
}

func TestCompleteFetchIgnoresUnknownTicket(t *testing.T) {
	s := NewStore(domain.ModeBuy, quietLogger())
	s.SetSelectedTicker("AAPL")

	if got := s.CompleteFetch(Ticket{Seq: 7, Ticker: "AAPL"}, result("AAPL"), nil); got != Ignored {
		t.Fatalf("CompleteFetch without dispatch = %v, want ignored", got)
	}

	tk, _ := s.BeginFetch()
	if got := s.CompleteFetch(Ticket{Seq: tk.Seq + 1, Ticker: "AAPL"}, result("AAPL"), nil); got != Ignored {
		t.Fatalf("CompleteFetch with wrong seq = %v, want ignored", got)
	}
	if !s.State().InFlight {
		t.Error("ignored settlement must not clear InFlight")
	}
}

func TestSetModeIdempotent(t *testing.T) {
	a := NewStore(domain.ModeSell, quietLogger())
	a.SetMode(domain.ModeBuy)
	once := a.State()
	a.SetMode(domain.ModeBuy)
	twice := a.State()
	if once.Mode != twice.Mode || once.SelectedTicker != twice.SelectedTicker ||
		once.InFlight != twice.InFlight || once.LastResult != twice.LastResult {
		t.Errorf("SetMode twice = %+v, once = %+v", twice, once)
	}
}

func TestCatalogIsCopied(t *testing.T) {
	s := NewStore(domain.ModeBuy, quietLogger())
	in := []domain.Ticker{"AAPL", "MSFT"}
	s.SetCatalog(in)
	in[0] = "XXX"

	st := s.State()
	if st.Tickers[0] != "AAPL" {
		t.Errorf("catalog aliased caller slice: %v", st.Tickers)
	}
	st.Tickers[1] = "YYY"
	if s.State().Tickers[1] != "MSFT" {
		t.Error("State() must return a copy of the catalog")
	}
}

type fakeAnalyzer struct {
	res   domain.AnalysisResult
	err   error
	calls int
}

func (f *fakeAnalyzer) FetchAnalysis(_ context.Context, ticker domain.Ticker) (domain.AnalysisResult, error) {
	f.calls++
	if f.err != nil {
		return domain.AnalysisResult{}, f.err
	}
	r := f.res
	r.Ticker = ticker
	return r, nil
}

func TestFetch(t *testing.T) {
	s := NewStore(domain.ModeBuy, quietLogger())
	fa := &fakeAnalyzer{res: *result("AAPL", domain.ArtifactPrediction)}

	if got, _ := s.Fetch(context.Background(), fa); got != Ignored || fa.calls != 0 {
		t.Fatalf("Fetch without selection = %v (calls %d), want ignored with no request", got, fa.calls)
	}

	s.SetSelectedTicker("AAPL")
	got, err := s.Fetch(context.Background(), fa)
	if err != nil || got != Applied {
		t.Fatalf("Fetch = %v, %v; want applied", got, err)
	}
	if !s.State().LastResult.HasImage(domain.ArtifactPrediction) {
		t.Error("expected prediction image after fetch")
	}

	fa.err = errors.New("boom")
	got, err = s.Fetch(context.Background(), fa)
	if err == nil || got != Failed {
		t.Fatalf("Fetch = %v, %v; want failed with error", got, err)
	}
	if s.State().InFlight {
		t.Error("InFlight must be cleared after a failed Fetch")
	}
}
