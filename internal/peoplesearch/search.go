// Package peoplesearch looks up a person on a people-search site and extracts
// consumer email addresses from the matching profile.
package peoplesearch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/people-email-enricher/internal/enrich"
	"github.com/JakeFAU/people-email-enricher/internal/retry"
)

// DefaultBaseURL is the people-search site reached through the proxy.
const DefaultBaseURL = "https://www.fastpeoplesearch.com"

// DefaultAllowedDomains are the consumer mail providers kept by FilterEmails.
var DefaultAllowedDomains = []string{
	"@yahoo.com",
	"@hotmail.com",
	"@gmail.com",
	"@aol.com",
	"@msn.com",
	"@outlook.com",
	"@live.com",
}

// ErrEmailSectionMissing is returned when a profile page has no email section.
var ErrEmailSectionMissing = errors.New("peoplesearch: email section not found on profile page")

const (
	cardSelector         = "div.card-block"
	cardLinkSelector     = "a.btn"
	addressLineSelector  = `div[style="line-height:20px;margin-bottom:15px"]`
	emailHeadingSelector = "div#email_section h3"
	emailSectionSelector = "div#email_section"
)

// Fetcher retrieves a page through the proxying fetch service.
type Fetcher interface {
	Fetch(ctx context.Context, target string, renderJS bool) (string, error)
}

// Config carries the site location and email allow-list.
type Config struct {
	BaseURL        string
	AllowedDomains []string
}

// Searcher runs people-search queries.
type Searcher struct {
	cfg     Config
	fetcher Fetcher
	policy  retry.Policy
	logger  *zap.Logger
}

// New builds a Searcher, filling defaults for empty config fields.
func New(cfg Config, fetcher Fetcher, policy retry.Policy, logger *zap.Logger) (*Searcher, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if len(cfg.AllowedDomains) == 0 {
		cfg.AllowedDomains = DefaultAllowedDomains
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Searcher{cfg: cfg, fetcher: fetcher, policy: policy, logger: logger}, nil
}

// ProfileURL builds the listing URL {base}/name/{First-Last}_{City-DIST}.
func (s *Searcher) ProfileURL(q enrich.Query) string {
	name := strings.Join([]string{q.FirstName, q.LastName}, " ")
	place := strings.Join([]string{q.Address.City, q.Address.District}, " ")
	return fmt.Sprintf("%s/name/%s_%s", s.cfg.BaseURL,
		strings.ReplaceAll(name, " ", "-"),
		strings.ReplaceAll(place, " ", "-"),
	)
}

// FetchProfilePage fetches the listing page without JavaScript rendering.
func (s *Searcher) FetchProfilePage(ctx context.Context, q enrich.Query) (string, error) {
	target := s.ProfileURL(q)
	s.logger.Info("searching people", zap.String("url", target))
	return retry.Do(ctx, s.policy, s.logger, "peoplesearch.profile_page", func(ctx context.Context) (string, error) {
		return s.fetcher.Fetch(ctx, target, false)
	})
}

// SelectMatchingProfile returns the detail link of the first card whose address
// check passes, or "" when nothing matches. Address lines are gathered from the
// whole page, not per card.
func (s *Searcher) SelectMatchingProfile(q enrich.Query, page string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return "", fmt.Errorf("parse profile page: %w", err)
	}
	cards := doc.Find(cardSelector)
	s.logger.Info("matching addresses", zap.Int("entries", cards.Length()))

	var lines []string
	doc.Find(addressLineSelector).Each(func(_ int, sel *goquery.Selection) {
		lines = append(lines, sel.Text())
	})

	href := ""
	cards.EachWithBreak(func(_ int, card *goquery.Selection) bool {
		if !VerifyAddress(q.Address, lines) {
			return false
		}
		link, ok := card.Find(cardLinkSelector).First().Attr("href")
		if !ok || strings.TrimSpace(link) == "" {
			return true
		}
		href = strings.TrimSpace(link)
		return false
	})
	if href == "" {
		s.logger.Info("no address matched")
		return "", nil
	}
	s.logger.Info("address matched", zap.String("href", href))
	return href, nil
}

// VerifyAddress reports whether any line contains the street's house number,
// the city and the district, compared case-insensitively as substrings.
// A street without a leading numeric token never matches.
func VerifyAddress(addr enrich.SearchAddress, lines []string) bool {
	number := strings.SplitN(addr.Street, " ", 2)[0]
	if !isDigits(number) {
		return false
	}
	city := strings.ToLower(addr.City)
	district := strings.ToLower(addr.District)
	for _, line := range lines {
		line = strings.ToLower(line)
		if strings.Contains(line, number) && strings.Contains(line, city) && strings.Contains(line, district) {
			return true
		}
	}
	return false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// FetchEmails loads the profile detail page with JavaScript rendering and returns
// the allow-listed emails found in its email section.
func (s *Searcher) FetchEmails(ctx context.Context, href string) ([]string, error) {
	target := s.cfg.BaseURL + href
	return retry.Do(ctx, s.policy, s.logger, "peoplesearch.emails", func(ctx context.Context) ([]string, error) {
		page, err := s.fetcher.Fetch(ctx, target, true)
		if err != nil {
			return nil, err
		}
		candidates, err := ExtractEmails(page)
		if err != nil {
			return nil, err
		}
		return FilterEmails(candidates, s.cfg.AllowedDomains), nil
	})
}

// ExtractEmails returns the heading texts of the page's email section.
func ExtractEmails(page string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse email page: %w", err)
	}
	if doc.Find(emailSectionSelector).Length() == 0 {
		return nil, ErrEmailSectionMissing
	}
	var emails []string
	doc.Find(emailHeadingSelector).Each(func(_ int, sel *goquery.Selection) {
		emails = append(emails, strings.TrimSpace(sel.Text()))
	})
	return emails, nil
}

// FilterEmails keeps candidates containing one of domains, case-insensitively.
func FilterEmails(candidates, domains []string) []string {
	out := make([]string, 0, len(candidates))
	for _, email := range candidates {
		email = strings.TrimSpace(email)
		lower := strings.ToLower(email)
		for _, domain := range domains {
			if domain != "" && strings.Contains(lower, strings.ToLower(domain)) {
				out = append(out, email)
				break
			}
		}
	}
	return out
}

// Run searches for q and returns the filtered emails of the matching profile.
// No match and no emails both yield an empty slice and a nil error.
func (s *Searcher) Run(ctx context.Context, q enrich.Query) ([]string, error) {
	page, err := s.FetchProfilePage(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("fetch profile page: %w", err)
	}
	href, err := s.SelectMatchingProfile(q, page)
	if err != nil {
		return nil, err
	}
	if href != "" {
		emails, err := s.FetchEmails(ctx, href)
		if err != nil {
			return nil, fmt.Errorf("fetch emails: %w", err)
		}
		if len(emails) > 0 {
			s.logger.Info("got emails", zap.Strings("emails", emails))
			return emails, nil
		}
	}
	s.logger.Warn("got no emails",
		zap.String("city", q.Address.City),
		zap.String("district", q.Address.District),
	)
	return []string{}, nil
}
