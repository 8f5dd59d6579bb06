// Package domain defines the core types shared by the catalog, the request
// client, the session store and the renderer.
package domain

import (
	"fmt"
	"strings"
)

// Ticker is an opaque stock symbol as listed by the catalog.
type Ticker string

// Mode is the Buy/Sell label shown in the signals heading. It never changes
// what is requested from the backend.
type Mode string

const (
	ModeBuy  Mode = "buy"
	ModeSell Mode = "sell"
)

// Label returns the upper-case form used in headings, e.g. "BUY".
func (m Mode) Label() string {
	return strings.ToUpper(string(m))
}

// Toggle returns the opposite mode.
func (m Mode) Toggle() Mode {
	if m == ModeSell {
		return ModeBuy
	}
	return ModeSell
}

// ParseMode accepts "buy" or "sell" in any case.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeBuy:
		return ModeBuy, nil
	case ModeSell:
		return ModeSell, nil
	}
	return "", fmt.Errorf("unknown mode %q (want buy or sell)", s)
}

// ArtifactKey names one chart image produced by the analysis backend. The
// value is the key used on the wire.
type ArtifactKey string

const (
	ArtifactClosingPrice ArtifactKey = "closingPrice"
	ArtifactMA100        ArtifactKey = "ma100"
	ArtifactMA100MA200   ArtifactKey = "ma100ma200"
	ArtifactPrediction   ArtifactKey = "prediction"
)

// Artifacts lists every artifact key in render order.
var Artifacts = []ArtifactKey{
	ArtifactClosingPrice,
	ArtifactMA100,
	ArtifactMA100MA200,
	ArtifactPrediction,
}

// Caption returns the human-readable caption for the artifact.
func (k ArtifactKey) Caption() string {
	switch k {
	case ArtifactClosingPrice:
		return "Closing Prices"
	case ArtifactMA100:
		return "100 Day MA"
	case ArtifactMA100MA200:
		return "100 & 200 Day MA"
	case ArtifactPrediction:
		return "Prediction Graph"
	default:
		return string(k)
	}
}

// MetricKey names one summary statistic. The value is the key used on the
// wire.
type MetricKey string

const (
	MetricVolatility  MetricKey = "volatility"
	MetricSharpeRatio MetricKey = "sharpe_ratio"
	MetricMaxDrawdown MetricKey = "max_drawdown"
)

// Metrics lists every metric key in display order.
var Metrics = []MetricKey{
	MetricVolatility,
	MetricSharpeRatio,
	MetricMaxDrawdown,
}

// Label returns the display label for the metric.
func (k MetricKey) Label() string {
	switch k {
	case MetricVolatility:
		return "Volatility"
	case MetricSharpeRatio:
		return "Sharpe Ratio"
	case MetricMaxDrawdown:
		return "Max Drawdown"
	default:
		return string(k)
	}
}

// AnalysisResult is the decoded outcome of one analysis request. Image
// payloads are raw PNG bytes. Absent keys mean the artifact or metric was not
// produced for this ticker.
type AnalysisResult struct {
	Ticker  Ticker
	Images  map[ArtifactKey][]byte
	Metrics map[MetricKey]float64
}

// HasImage reports whether the artifact is present with a non-empty payload.
func (r *AnalysisResult) HasImage(k ArtifactKey) bool {
	if r == nil {
		return false
	}
	return len(r.Images[k]) > 0
}
