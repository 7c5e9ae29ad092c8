// Package headless drives the postal lookup form with a headless browser.
package headless

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// DefaultFormURL is the USPS "cities by ZIP code" lookup form.
const DefaultFormURL = "https://tools.usps.com/zip-code-lookup.htm?citybyzipcode"

const (
	zipInputSelector    = "#tZip"
	submitSelector      = "#cities-by-zip-code"
	recommendedSelector = ".recommended-cities"
)

// Config controls the behavior of the headless fetcher.
type Config struct {
	FormURL           string
	UserAgent         string
	NavigationTimeout time.Duration
	// WaitTimeout bounds the wait for the recommended-cities group to render.
	WaitTimeout time.Duration
}

// Fetcher implements postal.Browser using chromedp and headless Chrome.
// Every call starts its own browser and tears it down before returning.
type Fetcher struct {
	cfg Config
}

// NewChromedp creates a headless fetcher backed by chromedp.
func NewChromedp(cfg Config) (*Fetcher, error) {
	if cfg.FormURL == "" {
		cfg.FormURL = DefaultFormURL
	}
	if !strings.HasPrefix(cfg.FormURL, "http://") && !strings.HasPrefix(cfg.FormURL, "https://") {
		return nil, fmt.Errorf("form url must be http(s): %q", cfg.FormURL)
	}
	if cfg.NavigationTimeout < 0 || cfg.WaitTimeout < 0 {
		return nil, fmt.Errorf("timeouts must be >= 0")
	}
	return &Fetcher{cfg: cfg}, nil
}

// CitiesPage submits zip on the lookup form, waits for the results and returns the rendered DOM.
func (f *Fetcher) CitiesPage(ctx context.Context, zip string) (string, error) {
	zip = strings.TrimSpace(zip)
	if zip == "" {
		return "", fmt.Errorf("zip code is required")
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, f.allocatorOptions()...)
	defer allocCancel()

	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	defer taskCancel()

	runCtx, cancel := context.WithTimeout(taskCtx, f.navTimeout())
	defer cancel()

	if err := chromedp.Run(runCtx, f.submitActions(zip)...); err != nil {
		return "", fmt.Errorf("submit zip form: %w", err)
	}

	waitCtx, waitCancel := context.WithTimeout(runCtx, f.waitTimeout())
	defer waitCancel()
	if err := chromedp.Run(waitCtx, chromedp.WaitVisible(recommendedSelector, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("wait for recommended cities: %w", err)
	}

	var html string
	if err := chromedp.Run(runCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read result page: %w", err)
	}
	return html, nil
}

func (f *Fetcher) allocatorOptions() []chromedp.ExecAllocatorOption {
	return append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("enable-automation", false),
	)
}

func (f *Fetcher) submitActions(zip string) []chromedp.Action {
	return []chromedp.Action{
		f.networkSetupAction(),
		chromedp.Navigate(f.cfg.FormURL),
		chromedp.WaitVisible(zipInputSelector, chromedp.ByQuery),
		chromedp.SendKeys(zipInputSelector, zip, chromedp.ByQuery),
		chromedp.Click(submitSelector, chromedp.ByQuery),
	}
}

func (f *Fetcher) networkSetupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if f.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(f.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

func (f *Fetcher) navTimeout() time.Duration {
	if f.cfg.NavigationTimeout > 0 {
		return f.cfg.NavigationTimeout
	}
	return 60 * time.Second
}

func (f *Fetcher) waitTimeout() time.Duration {
	if f.cfg.WaitTimeout > 0 {
		return f.cfg.WaitTimeout
	}
	return 20 * time.Second
}
