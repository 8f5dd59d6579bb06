// Package signalboard is the Go SDK for the prediction backend: the ticker
// catalog and the per-ticker analysis endpoint.
package signalboard

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"signalboard/internal/domain"
)

// ErrEmptyTicker is returned by FetchAnalysis when called without a ticker.
// No request is sent in that case.
var ErrEmptyTicker = errors.New("signalboard: empty ticker")

// APIError is a non-2xx response from the backend.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Message)
}

// Client talks to the prediction backend over HTTP/JSON.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new backend client. Per-request deadlines come from
// the caller's context; timeout is a safety net for callers that pass none.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the backend root the client was created with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListTickers retrieves the ticker catalog (GET /tickers). An empty array is
// a valid, empty catalog.
func (c *Client) ListTickers(ctx context.Context) ([]domain.Ticker, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/tickers", nil)
	if err != nil {
		return nil, fmt.Errorf("building tickers request: %w", err)
	}

	var symbols []string
	if err := c.do(req, &symbols); err != nil {
		return nil, fmt.Errorf("listing tickers: %w", err)
	}

	tickers := make([]domain.Ticker, 0, len(symbols))
	for _, s := range symbols {
		tickers = append(tickers, domain.Ticker(s))
	}
	return tickers, nil
}

// stockDataRequest is the POST /stock-data body.
type stockDataRequest struct {
	Ticker string `json:"ticker"`
}

// stockDataResponse is the POST /stock-data body on success. Image values
// are base64-encoded PNGs.
type stockDataResponse struct {
	Images  map[string]string  `json:"images"`
	Metrics map[string]float64 `json:"metrics"`
}

// FetchAnalysis requests the analysis for ticker (POST /stock-data). Image
// payloads are base64-decoded; a single undecodable image fails the whole
// call so that callers never see a partial result.
func (c *Client) FetchAnalysis(ctx context.Context, ticker domain.Ticker) (domain.AnalysisResult, error) {
	if ticker == "" {
		return domain.AnalysisResult{}, ErrEmptyTicker
	}

	body, err := json.Marshal(stockDataRequest{Ticker: string(ticker)})
	if err != nil {
		return domain.AnalysisResult{}, fmt.Errorf("encoding stock-data request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/stock-data", bytes.NewReader(body))
	if err != nil {
		return domain.AnalysisResult{}, fmt.Errorf("building stock-data request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var resp stockDataResponse
	if err := c.do(req, &resp); err != nil {
		return domain.AnalysisResult{}, fmt.Errorf("fetching analysis for %s: %w", ticker, err)
	}

	result := domain.AnalysisResult{
		Ticker:  ticker,
		Images:  make(map[domain.ArtifactKey][]byte, len(resp.Images)),
		Metrics: make(map[domain.MetricKey]float64, len(resp.Metrics)),
	}
	for key, encoded := range resp.Images {
		if encoded == "" {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return domain.AnalysisResult{}, fmt.Errorf("decoding %s image for %s: %w", key, ticker, err)
		}
		result.Images[domain.ArtifactKey(key)] = data
	}
	for key, v := range resp.Metrics {
		result.Metrics[domain.MetricKey(key)] = v
	}
	return result, nil
}

// do sends req and decodes a 2xx JSON body into dest. Non-2xx responses are
// returned as *APIError.
func (c *Client) do(req *http.Request, dest any) error {
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apiError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// apiError builds an APIError, lifting the message out of the backend's
// {"error": "..."} body when present.
func apiError(resp *http.Response) *APIError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	e := &APIError{StatusCode: resp.StatusCode}

	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		e.Message = body.Error
	} else {
		e.Message = strings.TrimSpace(string(raw))
	}
	return e
}
