// Package scraper discovers candidate leads by running search-engine dork
// queries in a headless browser and extracting email addresses from result
// snippets and, best-effort, the result pages themselves.
package scraper

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"
)

// Candidate is one scraped contact, prior to dedup and persistence.
type Candidate struct {
	Name               string
	Email              string
	PlatformSource     string
	ProfileLink        string
	State              string
	Industry           string
	ProfileDescription string
}

// Combo is one (platform, industry, location) selector combination.
type Combo struct {
	Platform string
	Industry string
	Location string
}

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/108.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/108.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/108.0.0.0 Safari/537.36",
}

// dorkPatterns is the set of query permutations issued per combination.
var dorkPatterns = []string{
	`site:%[1]s "%[2]s" "%[3]s" "@gmail.com"`,
	`site:%[1]s "%[2]s" "%[3]s" intext:email`,
	`site:%[1]s "%[2]s" "%[3]s" contact`,
	`site:%[1]s "%[2]s" "%[3]s" "contact us"`,
	`site:%[1]s "%[2]s" "%[3]s" inurl:contact`,
	`site:%[1]s "%[2]s" "%[3]s" intitle:contact`,
	`site:%[1]s "%[2]s" "%[3]s" "@yahoo.com"`,
	`site:%[1]s "%[2]s" "%[3]s" "@outlook.com"`,
}

var emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)

// searchResult mirrors the fields pulled out of one search result entry.
type searchResult struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	Description string `json:"description"`
}

// extractResults pulls title/link/snippet out of the result blocks on the
// current page.
const extractResults = `
Array.from(document.querySelectorAll("div.tF2Cxc, div.g")).map(el => {
	const h3 = el.querySelector("h3");
	const a = el.querySelector("a");
	const desc = el.querySelector("div.VwiC3b, span.st");
	return {
		title: h3 ? h3.innerText : "",
		link: a ? a.href : "",
		description: desc ? desc.innerText : ""
	};
}).filter(r => r.link)`

// Scraper is the lead source adapter.
type Scraper struct {
	logger zerolog.Logger
	client *http.Client

	// sleep paces queries to avoid being blocked; swapped out in tests
	sleep func(time.Duration)
}

// New creates a scraper. fetchTimeout bounds the best-effort fetch of each
// result page.
func New(logger zerolog.Logger, fetchTimeout time.Duration) *Scraper {
	return &Scraper{
		logger: logger,
		client: &http.Client{Timeout: fetchTimeout},
		sleep:  time.Sleep,
	}
}

// Scrape runs every dork pattern for every combination and returns all
// candidates found. Failures of individual queries are logged and skipped;
// only browser startup failure is returned as an error.
func (s *Scraper) Scrape(ctx context.Context, combos []Combo) ([]Candidate, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(1920, 1200),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()
	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	// Start the browser up front so a missing Chrome fails the stage
	// instead of every query.
	if err := chromedp.Run(browserCtx); err != nil {
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	var candidates []Candidate
	for _, combo := range combos {
		domain := siteDomain(combo.Platform)
		for _, pattern := range dorkPatterns {
			query := fmt.Sprintf(pattern, domain, combo.Industry, combo.Location)
			results, err := s.search(browserCtx, query)
			if err != nil {
				s.logger.Warn().Err(err).Str("query", query).Msg("Search query failed, skipping")
				continue
			}

			for _, r := range results {
				candidates = append(candidates, s.candidatesFromResult(r, combo)...)
			}

			// Pause between queries to avoid being blocked
			s.sleep(time.Duration(4000+rand.Intn(3000)) * time.Millisecond)
		}
	}

	s.logger.Info().Int("candidates", len(candidates)).Msg("Scrape finished")
	return candidates, nil
}

// search runs one query and extracts its result entries.
func (s *Scraper) search(ctx context.Context, query string) ([]searchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var results []searchResult
	err := chromedp.Run(ctx,
		emulation.SetUserAgentOverride(userAgents[rand.Intn(len(userAgents))]),
		chromedp.Navigate("https://www.google.com/search?q="+url.QueryEscape(query)),
		chromedp.WaitReady("body"),
		chromedp.Evaluate(extractResults, &results),
	)
	if err != nil {
		return nil, err
	}
	return results, nil
}

// candidatesFromResult turns one search result into zero or more
// candidates: one per distinct email found in the snippet or on the page.
func (s *Scraper) candidatesFromResult(r searchResult, combo Combo) []Candidate {
	emails := extractEmails(r.Description)
	for email := range s.fetchPageEmails(r.Link) {
		emails[email] = struct{}{}
	}

	candidates := make([]Candidate, 0, len(emails))
	for email := range emails {
		candidates = append(candidates, Candidate{
			Name:           r.Title,
			Email:          email,
			PlatformSource: capitalize(combo.Platform),
			ProfileLink:    r.Link,
			State:          combo.Location,
			Industry:       combo.Industry,
		})
	}
	return candidates
}

// fetchPageEmails fetches the result page and scans it for addresses.
// Best effort: any failure returns an empty set.
func (s *Scraper) fetchPageEmails(link string) map[string]struct{} {
	if link == "" {
		return nil
	}

	req, err := http.NewRequest(http.MethodGet, link, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", userAgents[rand.Intn(len(userAgents))])

	resp, err := s.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil
	}
	return extractEmails(string(body))
}

// extractEmails returns the set of normalized addresses found in text.
func extractEmails(text string) map[string]struct{} {
	emails := make(map[string]struct{})
	for _, match := range emailPattern.FindAllString(text, -1) {
		emails[strings.ToLower(strings.TrimSpace(match))] = struct{}{}
	}
	return emails
}

// siteDomain turns a platform selector into a dorkable domain.
func siteDomain(platform string) string {
	if strings.Contains(platform, ".") {
		return platform
	}
	return platform + ".com"
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
