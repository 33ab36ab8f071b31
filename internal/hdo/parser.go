package hdo

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/hdotools/hdomanager/internal/metrics"
)

// SourceURL is the ZSE page that embeds the HDO switching tables.
const SourceURL = "https://www.zsdis.sk/Uvod/Online-sluzby/Casy-prepinania-nizkej-a-vysokej-tarify"

// RequestTimeout bounds a single page fetch. There is no retry at this
// layer; retry policy belongs to the caller.
const RequestTimeout = 30 * time.Second

// Names of the two rate-table declarations embedded in the page.
const (
	householdVar = "household_rates"
	businessVar  = "business_rates"
)

// Parser fetches the live ZSE page and answers schedule queries against it.
// Every lookup performs its own full fetch; the parser holds no schedule
// state between calls. Concurrent use is safe: the only shared resource is
// the pooled *http.Client.
type Parser struct {
	client    *http.Client
	ownClient bool
	url       string
}

// NewParser returns a parser using the given client. Passing nil defers
// client creation to the first fetch; a client created that way is owned by
// the parser and released by Close.
func NewParser(client *http.Client) *Parser {
	return &Parser{client: client, url: SourceURL}
}

// NewParserForURL is NewParser with a non-default source URL, used by tests
// against an httptest server.
func NewParserForURL(client *http.Client, url string) *Parser {
	return &Parser{client: client, url: url}
}

// Close releases the HTTP client if the parser created it. A caller-supplied
// client is left untouched.
func (p *Parser) Close() {
	if p.ownClient && p.client != nil {
		p.client.CloseIdleConnections()
		p.client = nil
		p.ownClient = false
	}
}

// FetchPage downloads the source page. The ZSE server misbehaves for bare
// requests, so the request carries browser-like headers. Transport failures
// and non-2xx statuses are returned as errors; callers should treat them as
// retryable.
func (p *Parser) FetchPage(ctx context.Context) (string, error) {
	if p.client == nil {
		p.client = DefaultHTTPClient()
		p.ownClient = true
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return "", fmt.Errorf("build HDO page request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "sk,en;q=0.5")

	resp, err := p.client.Do(req)
	if err != nil {
		metrics.PageFetchesTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("fetch HDO page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.PageFetchesTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("HDO page returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.PageFetchesTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("read HDO page: %w", err)
	}
	metrics.PageFetchesTotal.WithLabelValues("success").Inc()

	log.Printf("hdo: fetched %d bytes from %s", len(body), p.url)
	return string(body), nil
}
