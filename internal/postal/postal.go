// Package postal resolves ZIP codes to candidate "City DIST" names.
package postal

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/people-email-enricher/internal/retry"
)

// ErrNoRecommended is returned when the result page lacks the recommended-cities group.
var ErrNoRecommended = errors.New("postal: recommended cities not found on result page")

// ErrNoOtherCities is returned when the result page lacks the other-city-names group.
var ErrNoOtherCities = errors.New("postal: other city names not found on result page")

const prefixLen = 3

// Browser submits a ZIP code on the lookup form and returns the rendered result page.
// Implementations own their session and must release it before returning.
type Browser interface {
	CitiesPage(ctx context.Context, zip string) (string, error)
}

// Lookup resolves ZIP codes through a Browser, retrying transient failures.
type Lookup struct {
	browser Browser
	policy  retry.Policy
	logger  *zap.Logger
}

// NewLookup builds a Lookup.
func NewLookup(browser Browser, policy retry.Policy, logger *zap.Logger) (*Lookup, error) {
	if browser == nil {
		return nil, fmt.Errorf("browser is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Lookup{browser: browser, policy: policy, logger: logger}, nil
}

// Cities returns the ordered, prefix-deduplicated city names for zip.
func (l *Lookup) Cities(ctx context.Context, zip string) ([]string, error) {
	zip = strings.TrimSpace(zip)
	l.logger.Info("fetching cities for zip code", zap.String("zip", zip))

	all, err := retry.Do(ctx, l.policy, l.logger, "postal.cities", func(ctx context.Context) ([]string, error) {
		page, err := l.browser.CitiesPage(ctx, zip)
		if err != nil {
			return nil, fmt.Errorf("load cities page: %w", err)
		}
		recommended, others, err := ParseCities(page)
		if err != nil {
			return nil, err
		}
		return append(recommended, others...), nil
	})
	if err != nil {
		return nil, fmt.Errorf("lookup cities for zip %s: %w", zip, err)
	}

	unique := UniqueByPrefix(all)
	l.logger.Info("found cities",
		zap.String("zip", zip),
		zap.Strings("candidates", all),
		zap.Strings("cities", unique),
	)
	return unique, nil
}

// ParseCities extracts the recommended and other city rows from a result page.
func ParseCities(page string) ([]string, []string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, nil, fmt.Errorf("parse cities page: %w", err)
	}
	recommendedGroup := doc.Find(".recommended-cities").First()
	if recommendedGroup.Length() == 0 {
		return nil, nil, ErrNoRecommended
	}
	othersGroup := doc.Find(".other-city-names").First()
	if othersGroup.Length() == 0 {
		return nil, nil, ErrNoOtherCities
	}
	return rowTexts(recommendedGroup), rowTexts(othersGroup), nil
}

func rowTexts(group *goquery.Selection) []string {
	var out []string
	group.Find(".row-detail-wrapper").Each(func(_ int, s *goquery.Selection) {
		text := strings.Join(strings.Fields(s.Text()), " ")
		if text != "" {
			out = append(out, text)
		}
	})
	return out
}

// UniqueByPrefix keeps the first city for each distinct three-character prefix,
// preserving input order.
func UniqueByPrefix(cities []string) []string {
	unique := make([]string, 0, len(cities))
	seen := make(map[string]struct{}, len(cities))
	for _, city := range cities {
		prefix := city
		if runes := []rune(city); len(runes) > prefixLen {
			prefix = string(runes[:prefixLen])
		}
		if _, ok := seen[prefix]; ok {
			continue
		}
		seen[prefix] = struct{}{}
		unique = append(unique, city)
	}
	return unique
}
