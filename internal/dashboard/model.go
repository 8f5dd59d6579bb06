// Package dashboard is the terminal front end: a bubbletea model that drives
// a session.Store from key presses and draws render.Render's view.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"signalboard/internal/artifact"
	"signalboard/internal/catalog"
	"signalboard/internal/domain"
	"signalboard/internal/render"
	"signalboard/internal/session"
)

// selectorRows is how many catalog entries are listed around the cursor.
const selectorRows = 9

// Exporter writes the artifacts of a graph view. *artifact.Store satisfies
// it.
type Exporter interface {
	Save(v render.View) (artifact.Manifest, error)
}

// Options wires a Model to its collaborators.
type Options struct {
	Store    *session.Store
	Catalog  catalog.Source
	Analyzer session.Analyzer
	Exporter Exporter // nil disables export
	Timeout  time.Duration
	// ShowMetrics is the initial state of the metrics toggle.
	ShowMetrics bool
	Logger      *slog.Logger
}

// ---------------------------------------------------------------------------
// Messages
// ---------------------------------------------------------------------------

type tickersLoadedMsg struct {
	tickers []domain.Ticker
	err     error
}

// analysisLoadedMsg carries the settlement of one fetch back to Update.
type analysisLoadedMsg struct {
	ticket session.Ticket
	result *domain.AnalysisResult
	err    error
}

type exportedMsg struct {
	manifest artifact.Manifest
	err      error
}

// ---------------------------------------------------------------------------
// Model
// ---------------------------------------------------------------------------

// Model is the bubbletea model. All Store mutation happens in Update.
type Model struct {
	store    *session.Store
	catalog  catalog.Source
	analyzer session.Analyzer
	exporter Exporter
	timeout  time.Duration
	logger   *slog.Logger

	cursor         int
	showMetrics    bool
	catalogLoading bool
	cancelFetch    context.CancelFunc
	pendingSeq     uint64 // seq of the fetch cancelFetch belongs to
	cancelledSeq   uint64 // seq of the last fetch cancelled by a selection change
	status         string
	statusErr      bool

	spinner       spinner.Model
	viewport      viewport.Model
	ready         bool
	width, height int
}

// New creates a Model. A zero Timeout means 60 seconds.
func New(opts Options) Model {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Store == nil {
		opts.Store = session.NewStore(domain.ModeBuy, opts.Logger)
	}
	return Model{
		store:          opts.Store,
		catalog:        opts.Catalog,
		analyzer:       opts.Analyzer,
		exporter:       opts.Exporter,
		timeout:        opts.Timeout,
		logger:         opts.Logger,
		showMetrics:    opts.ShowMetrics,
		catalogLoading: opts.Catalog != nil,
		spinner: spinner.New(
			spinner.WithSpinner(spinner.MiniDot),
			spinner.WithStyle(spinnerStyle),
		),
	}
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick}
	if m.catalog != nil {
		cmds = append(cmds, m.loadTickersCmd())
	}
	return tea.Batch(cmds...)
}

func (m *Model) loadTickersCmd() tea.Cmd {
	src := m.catalog
	timeout := m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		tickers, err := catalog.Load(ctx, src)
		return tickersLoadedMsg{tickers: tickers, err: err}
	}
}

// fetchCmd dispatches a fetch for the selected ticker, or returns nil when
// the store refuses one.
func (m *Model) fetchCmd() tea.Cmd {
	if m.analyzer == nil {
		return nil
	}
	ticket, ok := m.store.BeginFetch()
	if !ok {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	m.cancelFetch = cancel
	m.pendingSeq = ticket.Seq
	a := m.analyzer
	m.logger.Debug("fetching analysis", "ticker", ticket.Ticker, "seq", ticket.Seq)
	return func() tea.Msg {
		defer cancel()
		res, err := a.FetchAnalysis(ctx, ticket.Ticker)
		if err != nil {
			return analysisLoadedMsg{ticket: ticket, err: err}
		}
		return analysisLoadedMsg{ticket: ticket, result: &res}
	}
}

func (m *Model) exportCmd(v render.View) tea.Cmd {
	ex := m.exporter
	return func() tea.Msg {
		man, err := ex.Save(v)
		return exportedMsg{manifest: man, err: err}
	}
}

func (m Model) view() render.View {
	return render.Render(m.store.State(), render.Options{ShowMetrics: m.showMetrics})
}

func (m *Model) setStatus(s string, isErr bool) {
	m.status = s
	m.statusErr = isErr
}

func (m *Model) refresh() {
	if m.ready {
		m.viewport.SetContent(m.renderContent())
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.cancelFetch != nil {
				m.cancelFetch()
			}
			return m, tea.Quit
		case "up", "k":
			m.moveCursor(-1)
			m.refresh()
			return m, nil
		case "down", "j":
			m.moveCursor(1)
			m.refresh()
			return m, nil
		case "enter":
			m.selectUnderCursor()
			m.refresh()
			return m, nil
		case "f":
			cmd = m.fetchCmd()
			st := m.store.State()
			switch {
			case cmd != nil:
				m.setStatus(fmt.Sprintf("fetching %s", st.SelectedTicker), false)
			case st.SelectedTicker == "":
				m.setStatus("select a company first", false)
			}
			m.refresh()
			return m, cmd
		case "b":
			m.store.SetMode(domain.ModeBuy)
			m.refresh()
			return m, nil
		case "s":
			m.store.SetMode(domain.ModeSell)
			m.refresh()
			return m, nil
		case "tab":
			m.store.SetMode(m.store.State().Mode.Toggle())
			m.refresh()
			return m, nil
		case "m":
			m.showMetrics = !m.showMetrics
			m.refresh()
			return m, nil
		case "e":
			v := m.view()
			switch {
			case m.exporter == nil:
				m.setStatus("export is not configured", true)
			case v.Kind != render.KindGraph:
				m.setStatus("nothing to export", false)
			default:
				cmd = m.exportCmd(v)
			}
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		headerH, statusH, footerH := 1, 1, 1
		vpHeight := m.height - headerH - statusH - footerH
		if vpHeight < 1 {
			vpHeight = 1
		}
		if !m.ready {
			m.viewport = viewport.New(m.width, vpHeight)
			m.viewport.MouseWheelEnabled = true
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = vpHeight
		}
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)
		if m.catalogLoading || m.store.State().InFlight {
			m.refresh()
		}
		return m, cmd

	case tickersLoadedMsg:
		m.catalogLoading = false
		if msg.err != nil {
			m.logger.Warn("loading ticker catalog", "error", msg.err)
			m.setStatus(fmt.Sprintf("could not load tickers: %v", msg.err), true)
		} else {
			m.store.SetCatalog(msg.tickers)
			m.cursor = 0
			m.setStatus(fmt.Sprintf("%s tickers loaded", FormatInt(len(m.store.State().Tickers))), false)
		}
		m.refresh()
		return m, nil

	case analysisLoadedMsg:
		outcome := m.store.CompleteFetch(msg.ticket, msg.result, msg.err)
		if outcome != session.Ignored {
			m.cancelFetch = nil
		}
		switch outcome {
		case session.Applied:
			m.setStatus(fmt.Sprintf("loaded analysis for %s", msg.ticket.Ticker), false)
			m.refresh()
			m.viewport.GotoTop()
			return m, nil
		case session.Failed:
			if msg.ticket.Seq == m.cancelledSeq && errors.Is(msg.err, context.Canceled) {
				// The user moved away and back before the cancelled
				// request settled.
				m.setStatus(fmt.Sprintf("fetch for %s was cancelled, press f to fetch again", msg.ticket.Ticker), false)
				break
			}
			m.setStatus(fmt.Sprintf("fetch for %s failed: %v", msg.ticket.Ticker, msg.err), true)
		case session.Stale:
			m.setStatus(fmt.Sprintf("discarded result for %s", msg.ticket.Ticker), false)
		}
		m.refresh()
		return m, nil

	case exportedMsg:
		if msg.err != nil {
			m.logger.Error("exporting artifacts", "error", msg.err)
			m.setStatus(fmt.Sprintf("export failed: %v", msg.err), true)
		} else {
			m.setStatus(fmt.Sprintf("exported %d images to %s", len(msg.manifest.Images), msg.manifest.Dir), false)
		}
		return m, nil
	}

	if m.ready {
		m.viewport, cmd = m.viewport.Update(msg)
	}
	return m, cmd
}

func (m *Model) moveCursor(delta int) {
	n := len(m.store.State().Tickers)
	if n == 0 {
		m.cursor = 0
		return
	}
	m.cursor += delta
	if m.cursor < 0 {
		m.cursor = 0
	}
	if m.cursor >= n {
		m.cursor = n - 1
	}
}

// selectUnderCursor makes the highlighted catalog entry the selection. An
// outstanding fetch for the previous selection is cancelled; its settlement
// is then discarded as stale, or reported as cancelled if the user has
// selected the same ticker again by then.
func (m *Model) selectUnderCursor() {
	st := m.store.State()
	if len(st.Tickers) == 0 {
		return
	}
	t := st.Tickers[m.cursor]
	if t == st.SelectedTicker {
		return
	}
	if st.InFlight && m.cancelFetch != nil {
		m.cancelFetch()
		m.cancelledSeq = m.pendingSeq
		m.logger.Debug("cancelled fetch on selection change", "from", st.SelectedTicker, "to", t)
	}
	m.store.SetSelectedTicker(t)
	m.setStatus(fmt.Sprintf("selected %s, press f to fetch", t), false)
}

// ---------------------------------------------------------------------------
// View
// ---------------------------------------------------------------------------

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	st := m.store.State()
	barStyle := buyBarStyle
	if st.Mode == domain.ModeSell {
		barStyle = sellBarStyle
	}
	selected := string(st.SelectedTicker)
	if selected == "" {
		selected = "-"
	}
	headerText := fmt.Sprintf(
		" Stock Prediction    mode: %s    ticker: %s    tickers: %s ",
		st.Mode.Label(),
		selected,
		FormatInt(len(st.Tickers)),
	)
	headerBar := barStyle.Render(padOrTrunc(headerText, m.width))

	sty := statusStyle
	if m.statusErr {
		sty = errorStyle
	}
	statusBar := sty.Render(padOrTrunc(" "+m.status, m.width))

	pct := m.viewport.ScrollPercent() * 100
	footerLeft := " q quit  j/k move  enter select  f fetch  b/s/tab mode  m metrics  e export"
	footerRight := fmt.Sprintf("%.0f%% ", pct)
	gap := m.width - len(footerLeft) - len(footerRight)
	if gap < 0 {
		gap = 0
	}
	footerBar := footerStyle.Render(padOrTrunc(footerLeft+strings.Repeat(" ", gap)+footerRight, m.width))

	return headerBar + "\n" + m.viewport.View() + "\n" + statusBar + "\n" + footerBar
}

func (m Model) renderContent() string {
	var b strings.Builder
	st := m.store.State()
	v := m.view()

	// Selector.
	b.WriteString(labelStyle.Render("Company "))
	if st.SelectedTicker == "" {
		b.WriteString(dimStyle.Render("[ " + render.PromptText + " ]"))
	} else {
		b.WriteString(symbolStyle.Render("[ " + string(st.SelectedTicker) + " ]"))
	}
	b.WriteString("  ")
	if v.FetchEnabled {
		b.WriteString(buttonStyle.Render(" f Fetch Graph "))
	} else {
		b.WriteString(dimStyle.Render(" f Fetch Graph "))
	}
	b.WriteString("\n")
	m.writeSelector(&b, st)
	b.WriteString("\n")

	// Body.
	switch v.Kind {
	case render.KindLoading:
		b.WriteString(m.spinner.View() + " " + render.LoadingText + "\n")
	case render.KindPrompt:
		if st.SelectedTicker != "" {
			b.WriteString(dimStyle.Render(fmt.Sprintf("Press f to fetch %s signals for %s.", st.Mode.Label(), st.SelectedTicker)))
			b.WriteString("\n")
		}
	case render.KindGraph:
		head := buyHeadStyle
		if v.Mode == domain.ModeSell {
			head = sellHeadStyle
		}
		b.WriteString(head.Render(v.Heading))
		b.WriteString("\n\n")
		for _, img := range v.Images {
			b.WriteString(captionStyle.Render(img.Caption))
			b.WriteString("\n  ")
			b.WriteString(dimStyle.Render(DescribeImage(img)))
			b.WriteString("\n")
		}
		if len(v.Images) == 0 {
			b.WriteString(dimStyle.Render("No charts returned."))
			b.WriteString("\n")
		}
		if len(v.Metrics) > 0 {
			b.WriteString("\n")
			b.WriteString(captionStyle.Render("Metrics"))
			b.WriteString("\n")
			for _, mt := range v.Metrics {
				val := FormatMetric(mt.Key, mt.Value)
				switch {
				case mt.Value < 0:
					val = lossStyle.Render(val)
				case mt.Key == domain.MetricSharpeRatio && mt.Value > 0:
					val = gainStyle.Render(val)
				}
				fmt.Fprintf(&b, "  %s %s\n", labelStyle.Render(fmt.Sprintf("%-14s", mt.Label)), val)
			}
		}
	}
	return b.String()
}

// writeSelector lists a window of the catalog centred on the cursor.
func (m Model) writeSelector(b *strings.Builder, st session.State) {
	if m.catalogLoading {
		b.WriteString("  " + m.spinner.View() + " loading tickers...\n")
		return
	}
	if len(st.Tickers) == 0 {
		b.WriteString(dimStyle.Render("  no tickers available"))
		b.WriteString("\n")
		return
	}

	start := m.cursor - selectorRows/2
	if start > len(st.Tickers)-selectorRows {
		start = len(st.Tickers) - selectorRows
	}
	if start < 0 {
		start = 0
	}
	end := start + selectorRows
	if end > len(st.Tickers) {
		end = len(st.Tickers)
	}

	for i := start; i < end; i++ {
		t := st.Tickers[i]
		mark := "  "
		if t == st.SelectedTicker {
			mark = "* "
		}
		line := fmt.Sprintf("%s%-8s", mark, t)
		if i == m.cursor {
			b.WriteString(cursorStyle.Render(line))
		} else {
			b.WriteString(line)
		}
		b.WriteString("\n")
	}
	if end-start < len(st.Tickers) {
		b.WriteString(dimStyle.Render(fmt.Sprintf("  %d/%d", m.cursor+1, len(st.Tickers))))
		b.WriteString("\n")
	}
}
