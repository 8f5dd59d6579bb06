// Package session holds the per-session state record that every render
// decision is made from. A Store is owned by a single goroutine (the
// dashboard's update loop or one headless worker) and is not safe for
// concurrent use.
package session

import (
	"context"
	"log/slog"

	"signalboard/internal/domain"
)

// Analyzer fetches the analysis for a ticker. *signalboard.Client satisfies
// it.
type Analyzer interface {
	FetchAnalysis(ctx context.Context, ticker domain.Ticker) (domain.AnalysisResult, error)
}

// State is a snapshot of the session.
type State struct {
	Tickers        []domain.Ticker
	SelectedTicker domain.Ticker
	Mode           domain.Mode
	LastResult     *domain.AnalysisResult
	InFlight       bool
}

// Ticket identifies one dispatched fetch. It is handed back to CompleteFetch
// when the request settles.
type Ticket struct {
	Seq    uint64
	Ticker domain.Ticker
}

// Outcome reports what CompleteFetch did with a settlement.
type Outcome int

const (
	// Applied: the result replaced LastResult.
	Applied Outcome = iota
	// Failed: the request failed; LastResult was kept.
	Failed
	// Stale: the selection changed while in flight; the result was dropped.
	Stale
	// Ignored: the ticket is not the pending one; nothing changed.
	Ignored
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case Failed:
		return "failed"
	case Stale:
		return "stale"
	case Ignored:
		return "ignored"
	default:
		return "unknown"
	}
}

// Store is the single mutable session record.
type Store struct {
	tickers  []domain.Ticker
	selected domain.Ticker
	mode     domain.Mode
	result   *domain.AnalysisResult
	inFlight bool
	seq      uint64 // seq of the last dispatched ticket
	log      *slog.Logger
}

// NewStore creates a session with no selection and the given mode. An empty
// mode defaults to Buy.
func NewStore(mode domain.Mode, log *slog.Logger) *Store {
	if mode == "" {
		mode = domain.ModeBuy
	}
	if log == nil {
		log = slog.Default()
	}
	return &Store{mode: mode, log: log}
}

// State returns a copy of the current session state. The catalog slice is
// copied; the result is shared and must be treated as read-only.
func (s *Store) State() State {
	tickers := make([]domain.Ticker, len(s.tickers))
	copy(tickers, s.tickers)
	return State{
		Tickers:        tickers,
		SelectedTicker: s.selected,
		Mode:           s.mode,
		LastResult:     s.result,
		InFlight:       s.inFlight,
	}
}

// SetCatalog records the tickers loaded at startup.
func (s *Store) SetCatalog(tickers []domain.Ticker) {
	s.tickers = make([]domain.Ticker, len(tickers))
	copy(s.tickers, tickers)
}

// SetMode changes the display mode.
func (s *Store) SetMode(m domain.Mode) {
	s.mode = m
}

// SetSelectedTicker changes the selection. It never starts a fetch and never
// touches the last result.
func (s *Store) SetSelectedTicker(t domain.Ticker) {
	s.selected = t
}

// BeginFetch marks a fetch for the selected ticker as in flight. It refuses
// when nothing is selected or another fetch is outstanding.
func (s *Store) BeginFetch() (Ticket, bool) {
	if s.selected == "" || s.inFlight {
		return Ticket{}, false
	}
	s.seq++
	s.inFlight = true
	return Ticket{Seq: s.seq, Ticker: s.selected}, true
}

// CompleteFetch settles the fetch identified by t. InFlight is cleared; res
// is applied only if t's ticker is still the selected one.
func (s *Store) CompleteFetch(t Ticket, res *domain.AnalysisResult, err error) Outcome {
	if !s.inFlight || t.Seq != s.seq {
		s.log.Debug("ignoring settlement for unknown fetch", "ticker", t.Ticker, "seq", t.Seq, "pending", s.seq)
		return Ignored
	}
	s.inFlight = false

	if t.Ticker != s.selected {
		s.log.Debug("discarding stale analysis", "ticker", t.Ticker, "selected", s.selected)
		return Stale
	}
	if err != nil {
		s.log.Warn("fetching analysis", "ticker", t.Ticker, "error", err)
		return Failed
	}
	if res == nil {
		s.log.Warn("fetching analysis returned no result", "ticker", t.Ticker)
		return Failed
	}
	applied := *res
	applied.Ticker = t.Ticker
	s.result = &applied
	return Applied
}

// Fetch runs a whole fetch cycle synchronously: dispatch, request and
// settlement. It returns Ignored without calling a when BeginFetch refuses.
func (s *Store) Fetch(ctx context.Context, a Analyzer) (Outcome, error) {
	t, ok := s.BeginFetch()
	if !ok {
		return Ignored, nil
	}
	res, err := a.FetchAnalysis(ctx, t.Ticker)
	if err != nil {
		return s.CompleteFetch(t, nil, err), err
	}
	return s.CompleteFetch(t, &res, nil), nil
}
