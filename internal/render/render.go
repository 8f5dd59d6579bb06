// Package render turns a session snapshot into a view model. Render is a pure
// function: the same state and options always produce the same View.
package render

import (
	"fmt"

	"signalboard/internal/domain"
	"signalboard/internal/session"
)

// Kind selects which of the three screens is shown.
type Kind int

const (
	// KindPrompt: selector and prompt, no graph section.
	KindPrompt Kind = iota
	// KindLoading: loading indicator only.
	KindLoading
	// KindGraph: selector, heading and the present artifacts.
	KindGraph
)

func (k Kind) String() string {
	switch k {
	case KindPrompt:
		return "prompt"
	case KindLoading:
		return "loading"
	case KindGraph:
		return "graph"
	default:
		return "unknown"
	}
}

// PromptText is the selector placeholder.
const PromptText = "Select Company"

// LoadingText accompanies the loading indicator.
const LoadingText = "Loading stock data..."

// ImageMIME is the content type of every artifact payload.
const ImageMIME = "image/png"

// Image is one artifact to display.
type Image struct {
	Key     domain.ArtifactKey
	Caption string
	MIME    string
	Data    []byte
}

// Metric is one summary statistic to display.
type Metric struct {
	Key   domain.MetricKey
	Label string
	Value float64
}

// View is everything the dashboard needs to draw one frame.
type View struct {
	Kind         Kind
	Mode         domain.Mode
	Tickers      []domain.Ticker
	Selected     domain.Ticker
	Prompt       string
	Heading      string
	Images       []Image
	Metrics      []Metric
	FetchEnabled bool
}

// Options tunes optional parts of the view.
type Options struct {
	// ShowMetrics appends the present metrics to a graph view.
	ShowMetrics bool
}

// Heading formats the graph section title, e.g. "BUY Signals for AAPL".
func Heading(m domain.Mode, t domain.Ticker) string {
	return fmt.Sprintf("%s Signals for %s", m.Label(), t)
}

// Render computes the view for st.
func Render(st session.State, opts Options) View {
	if st.InFlight {
		return View{Kind: KindLoading, Mode: st.Mode, Selected: st.SelectedTicker, Prompt: LoadingText}
	}

	v := View{
		Kind:         KindPrompt,
		Mode:         st.Mode,
		Tickers:      st.Tickers,
		Selected:     st.SelectedTicker,
		Prompt:       PromptText,
		FetchEnabled: st.SelectedTicker != "",
	}

	res := st.LastResult
	if st.SelectedTicker == "" || res == nil || res.Ticker != st.SelectedTicker {
		return v
	}

	v.Kind = KindGraph
	v.Heading = Heading(st.Mode, st.SelectedTicker)
	for _, k := range domain.Artifacts {
		if !res.HasImage(k) {
			continue
		}
		v.Images = append(v.Images, Image{
			Key:     k,
			Caption: k.Caption(),
			MIME:    ImageMIME,
			Data:    res.Images[k],
		})
	}
	if opts.ShowMetrics {
		for _, k := range domain.Metrics {
			val, ok := res.Metrics[k]
			if !ok {
				continue
			}
			v.Metrics = append(v.Metrics, Metric{Key: k, Label: k.Label(), Value: val})
		}
	}
	return v
}
