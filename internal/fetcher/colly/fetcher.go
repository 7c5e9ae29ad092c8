// Package collyfetcher fetches pages through a proxying HTTP fetch service using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/people-email-enricher/internal/metrics"
)

// DefaultEndpoint is the ScrapeOps proxy API.
const DefaultEndpoint = "https://proxy.scrapeops.io/v1/"

const maxErrorBody = 2048

// Config controls collector behavior.
type Config struct {
	Endpoint  string
	APIKey    string
	Country   string
	UserAgent string
	Timeout   time.Duration
}

// Waiter paces outgoing requests per target host.
type Waiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// StatusError is returned when the proxy answers with anything but 200.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody] + "..."
	}
	return fmt.Sprintf("proxy status_code: %d, text: %s", e.StatusCode, body)
}

// Fetcher implements peoplesearch.Fetcher on top of a Colly collector.
type Fetcher struct {
	cfg           Config
	limiter       Waiter
	logger        *zap.Logger
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

type proxyResult struct {
	statusCode int
	body       []byte
}

// New builds a Fetcher. limiter may be nil.
func New(cfg Config, limiter Waiter, logger *zap.Logger) (*Fetcher, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if _, err := url.ParseRequestURI(cfg.Endpoint); err != nil {
		return nil, fmt.Errorf("invalid proxy endpoint: %w", err)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("proxy api key is required")
	}
	if cfg.Country == "" {
		cfg.Country = "us"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := colly.NewCollector(colly.Async(false))
	c.AllowURLRevisit = true
	c.ParseHTTPErrorResponse = true
	c.WithTransport(newHTTPTransport())

	return &Fetcher{
		cfg:           cfg,
		limiter:       limiter,
		logger:        logger,
		baseCollector: c,
	}, nil
}

// Fetch retrieves target through the proxy and returns the page body.
// renderJS asks the proxy to execute the page's JavaScript before returning it.
func (f *Fetcher) Fetch(ctx context.Context, target string, renderJS bool) (string, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, target); err != nil {
			return "", err
		}
	}

	var (
		result   proxyResult
		fetchErr error
	)
	collector := f.buildCollector(ctx, &result, &fetchErr)
	start := time.Now()
	if err := f.runCollector(ctx, collector, f.proxyURL(target, renderJS), &fetchErr); err != nil {
		return "", err
	}

	metrics.ObserveProxyResponse(result.statusCode, renderJS)
	f.logger.Debug("proxy fetch finished",
		zap.String("url", target),
		zap.Bool("render_js", renderJS),
		zap.Int("status", result.statusCode),
		zap.Duration("duration", time.Since(start)),
	)
	if result.statusCode != http.StatusOK {
		return "", &StatusError{StatusCode: result.statusCode, Body: string(result.body)}
	}
	return string(result.body), nil
}

func (f *Fetcher) proxyURL(target string, renderJS bool) string {
	params := url.Values{}
	params.Set("api_key", f.cfg.APIKey)
	params.Set("url", target)
	params.Set("country", f.cfg.Country)
	params.Set("render_js", strconv.FormatBool(renderJS))
	return f.cfg.Endpoint + "?" + params.Encode()
}

func (f *Fetcher) buildCollector(ctx context.Context, result *proxyResult, fetchErr *error) *colly.Collector {
	collector := f.baseCollector.Clone()
	collector.AllowURLRevisit = true
	collector.ParseHTTPErrorResponse = true
	collector.Context = ctx
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	timeout := f.cfg.Timeout
	if timeout == 0 {
		timeout = 90 * time.Second
	}
	collector.SetRequestTimeout(timeout)

	f.configureCollectorHooks(collector, result, fetchErr)
	return collector
}

func (f *Fetcher) configureCollectorHooks(hooks collectorHooks, result *proxyResult, fetchErr *error) {
	hooks.OnResponse(func(r *colly.Response) {
		*result = proxyResult{
			statusCode: r.StatusCode,
			body:       append([]byte(nil), r.Body...),
		}
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			*result = proxyResult{
				statusCode: r.StatusCode,
				body:       append([]byte(nil), r.Body...),
			}
		}
		*fetchErr = err
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, rawURL string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("proxy fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("proxy visit failed: %w", err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("proxy response failed: %w", *fetchErr)
		}
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
