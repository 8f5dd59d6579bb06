package catalog

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"signalboard/internal/domain"
)

// DefaultWikipediaURL lists the S&P 500 constituents.
const DefaultWikipediaURL = "https://en.wikipedia.org/wiki/List_of_S%26P_500_companies"

// WikipediaSource scrapes the symbol column of the S&P 500 constituents
// table.
type WikipediaSource struct {
	url        string
	httpClient *http.Client
}

// NewWikipediaSource creates a source reading pageURL (DefaultWikipediaURL if
// empty).
func NewWikipediaSource(pageURL string) *WikipediaSource {
	if pageURL == "" {
		pageURL = DefaultWikipediaURL
	}
	return &WikipediaSource{
		url:        pageURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *WikipediaSource) Name() string { return SourceWikipedia }

func (s *WikipediaSource) LoadTickers(ctx context.Context) ([]domain.Ticker, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", "signalboard/1.0")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", s.url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: status %d", s.url, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}
	return parseConstituents(doc)
}

// parseConstituents reads the first cell of every body row of the
// constituents table, falling back to the first wikitable on the page.
func parseConstituents(doc *goquery.Document) ([]domain.Ticker, error) {
	table := doc.Find("table#constituents").First()
	if table.Length() == 0 {
		table = doc.Find("table.wikitable").First()
	}
	if table.Length() == 0 {
		return nil, fmt.Errorf("no constituents table found")
	}

	var tickers []domain.Ticker
	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cell := row.Find("td").First()
		if cell.Length() == 0 {
			return // header row
		}
		sym := strings.TrimSpace(cell.Text())
		if sym != "" {
			tickers = append(tickers, domain.Ticker(sym))
		}
	})
	return tickers, nil
}
