// Package marketdata fetches instrument quotes from an external HTTP provider.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const (
	DefaultTimeout   = 30 * time.Second
	DefaultBatchSize = 50
	DefaultRateLimit = 5 // requests per second
)

// Quote is one successfully fetched price.
type Quote struct {
	Code       string
	Price      decimal.Decimal
	Volume     int64
	RecordedAt time.Time
}

// FetchError is a failed fetch for one instrument.
type FetchError struct {
	Code string
	Err  error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch quote for %s: %v", e.Code, e.Err)
}

// Unwrap returns the underlying cause.
func (e *FetchError) Unwrap() error { return e.Err }

// Provider fetches current quotes for a set of instrument codes. It returns
// as many quotes as it can, reporting the rest as per-instrument errors.
type Provider interface {
	Name() string
	FetchQuotes(ctx context.Context, codes []string) ([]Quote, []FetchError)
}

// quoteResponse is the provider's JSON envelope.
type quoteResponse struct {
	Quotes []quoteItem `json:"quotes"`
}

type quoteItem struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Volume    int64           `json:"volume"`
	Timestamp *time.Time      `json:"timestamp"`
}

// HTTPProvider fetches quotes from a JSON endpoint accepting ?symbols=A,B,C.
type HTTPProvider struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	batchSize  int
	now        func() time.Time
}

// Option configures the provider.
type Option func(*HTTPProvider)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *HTTPProvider) {
		p.httpClient = c
	}
}

// WithBatchSize sets how many symbols go into one request.
func WithBatchSize(n int) Option {
	return func(p *HTTPProvider) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// WithRateLimit sets the request rate limit.
func WithRateLimit(requestsPerSecond int) Option {
	return func(p *HTTPProvider) {
		if requestsPerSecond > 0 {
			p.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
		}
	}
}

// NewHTTPProvider creates a provider for the given endpoint.
func NewHTTPProvider(baseURL string, opts ...Option) *HTTPProvider {
	p := &HTTPProvider{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		batchSize:  DefaultBatchSize,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the provider's display name.
func (p *HTTPProvider) Name() string { return "http quotes" }

// FetchQuotes fetches quotes in batches. Duplicate codes are fetched once.
func (p *HTTPProvider) FetchQuotes(ctx context.Context, codes []string) ([]Quote, []FetchError) {
	seen := make(map[string]bool, len(codes))
	symbols := make([]string, 0, len(codes))
	for _, code := range codes {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		symbols = append(symbols, code)
	}
	if len(symbols) == 0 {
		return nil, nil
	}

	var quotes []Quote
	var fetchErrors []FetchError
	now := p.now().UTC()
	for i := 0; i < len(symbols); i += p.batchSize {
		end := min(i+p.batchSize, len(symbols))
		q, errs := p.fetchBatch(ctx, symbols[i:end], now)
		quotes = append(quotes, q...)
		fetchErrors = append(fetchErrors, errs...)
	}
	return quotes, fetchErrors
}

func (p *HTTPProvider) fetchBatch(ctx context.Context, symbols []string, now time.Time) ([]Quote, []FetchError) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, batchErrors(symbols, fmt.Errorf("rate limit wait: %w", err))
	}

	params := url.Values{}
	params.Set("symbols", strings.Join(symbols, ","))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, batchErrors(symbols, fmt.Errorf("building request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, batchErrors(symbols, fmt.Errorf("http request: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, batchErrors(symbols, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	var decoded quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, batchErrors(symbols, fmt.Errorf("decoding response: %w", err))
	}

	bySymbol := make(map[string]quoteItem, len(decoded.Quotes))
	for _, q := range decoded.Quotes {
		bySymbol[strings.ToUpper(q.Symbol)] = q
	}

	var quotes []Quote
	var fetchErrors []FetchError
	for _, symbol := range symbols {
		item, ok := bySymbol[symbol]
		if !ok {
			fetchErrors = append(fetchErrors, FetchError{Code: symbol, Err: fmt.Errorf("symbol %s not found in response", symbol)})
			continue
		}
		if !item.Price.IsPositive() {
			fetchErrors = append(fetchErrors, FetchError{Code: symbol, Err: fmt.Errorf("non-positive price %s", item.Price)})
			continue
		}
		recordedAt := now
		if item.Timestamp != nil && !item.Timestamp.IsZero() {
			recordedAt = item.Timestamp.UTC()
		}
		quotes = append(quotes, Quote{Code: symbol, Price: item.Price, Volume: item.Volume, RecordedAt: recordedAt})
	}
	return quotes, fetchErrors
}

// batchErrors creates FetchErrors for every symbol of a failed batch.
func batchErrors(symbols []string, err error) []FetchError {
	errs := make([]FetchError, len(symbols))
	for i, s := range symbols {
		errs[i] = FetchError{Code: s, Err: err}
	}
	return errs
}
