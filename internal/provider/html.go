package provider

import (
	"context"
	"fmt"
	"log"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"

	"vehicle-curation-portal/internal/models"
)

// HTMLSourceConfig configures the scraped listing source.
type HTMLSourceConfig struct {
	BaseURL    string
	SearchPath string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
	MaxPages   int
	UserAgent  string

	// HeadlessFallback renders pages with Chrome when the static fetch is
	// blocked or returns no listings (JavaScript-rendered results).
	HeadlessFallback bool
	ChromePath       string
}

// HTMLSource scrapes a dealer aggregator's search results page. Listings
// are parsed from vehicle cards; fields the page does not carry stay nil so
// screening rejects them explicitly.
type HTMLSource struct {
	cfg     HTMLSourceConfig
	client  *http.Client
	breaker *Breaker
}

// NewHTMLSource creates a scraping source for the configured site.
func NewHTMLSource(cfg HTMLSourceConfig) *HTMLSource {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 5
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"
	}
	return &HTMLSource{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: NewBreaker(20, 0.40, 30*time.Minute),
	}
}

func (s *HTMLSource) Name() string {
	return "html"
}

// Fetch walks the search result pages, following the next-page link until
// the last page, the page cap, or MaxResults.
func (s *HTMLSource) Fetch(ctx context.Context, criteria Criteria) ([]models.RawListing, error) {
	pageURL := s.searchURL(criteria)

	var all []models.RawListing
	for page := 1; page <= s.cfg.MaxPages && pageURL != ""; page++ {
		if err := ctx.Err(); err != nil {
			return all, err
		}

		doc, err := s.fetchDocument(ctx, pageURL)
		if err != nil {
			if len(all) > 0 {
				// Partial result: keep what we have, the run records the rest
				log.Printf("HTMLSource: page %d failed, returning %d listings collected so far: %v", page, len(all), err)
				return all, nil
			}
			return nil, err
		}

		listings := s.parseListings(doc)
		log.Printf("HTMLSource: page %d yielded %d listings", page, len(listings))
		all = append(all, listings...)

		if criteria.MaxResults > 0 && len(all) >= criteria.MaxResults {
			all = all[:criteria.MaxResults]
			break
		}
		pageURL = s.nextPageURL(doc, pageURL)
	}
	return all, nil
}

// searchURL builds the first results page URL from the criteria.
func (s *HTMLSource) searchURL(c Criteria) string {
	params := url.Values{}
	if len(c.Makes) > 0 {
		params.Set("make", strings.Join(c.Makes, ","))
	}
	if c.PriceMin > 0 {
		params.Set("price_min", strconv.Itoa(c.PriceMin))
	}
	if c.PriceMax > 0 {
		params.Set("price_max", strconv.Itoa(c.PriceMax))
	}
	if c.YearMin > 0 {
		params.Set("year_min", strconv.Itoa(c.YearMin))
	}
	if c.ZipCode != "" {
		params.Set("zip", c.ZipCode)
	}
	if c.RadiusMi > 0 {
		params.Set("radius", strconv.Itoa(c.RadiusMi))
	}
	u := s.cfg.BaseURL + s.cfg.SearchPath
	if enc := params.Encode(); enc != "" {
		u += "?" + enc
	}
	return u
}

// fetchDocument gets a page with retry, falling back to the headless
// browser when the static fetch is blocked.
func (s *HTMLSource) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	if !s.breaker.Allow() {
		open, failures, total := s.breaker.Status()
		return nil, fmt.Errorf("%w: breaker open=%v (%d/%d failures)", ErrSourceUnavailable, open, failures, total)
	}

	var lastErr error
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * s.cfg.RetryDelay
			if backoff > 60*time.Second {
				backoff = 60 * time.Second
			}
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		doc, blocked, err := s.fetchOnce(ctx, pageURL)
		if err == nil {
			s.breaker.Success()
			return doc, nil
		}
		lastErr = err
		if blocked && s.cfg.HeadlessFallback {
			html, berr := s.fetchWithHeadlessBrowser(ctx, pageURL)
			if berr == nil {
				s.breaker.Success()
				return goquery.NewDocumentFromReader(strings.NewReader(html))
			}
			log.Printf("HTMLSource: headless fallback for %s failed: %v", pageURL, berr)
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, lastErr)
}

func (s *HTMLSource) fetchOnce(ctx context.Context, pageURL string) (doc *goquery.Document, blocked bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, false, err
	}
	// Browser-shaped headers so the static fetch is not trivially filtered
	req.Header.Set("User-Agent", s.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := s.client.Do(req)
	if err != nil {
		s.breaker.Failure(0)
		return nil, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.breaker.Failure(resp.StatusCode)
		blocked = resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests
		return nil, blocked, fmt.Errorf("status %d from %s", resp.StatusCode, pageURL)
	}

	doc, err = goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		s.breaker.Failure(0)
		return nil, false, fmt.Errorf("parse %s: %w", pageURL, err)
	}
	return doc, false, nil
}

// fetchWithHeadlessBrowser renders the page in Chrome so JavaScript-built
// listing grids are visible to the parser.
func (s *HTMLSource) fetchWithHeadlessBrowser(ctx context.Context, pageURL string) (string, error) {
	log.Printf("HTMLSource: rendering %s with headless Chrome", pageURL)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(s.cfg.UserAgent),
	)
	if s.cfg.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(s.cfg.ChromePath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	browserCtx, cancel = context.WithTimeout(browserCtx, s.cfg.Timeout)
	defer cancel()

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitVisible(`body`, chromedp.ByQuery),
		chromedp.Sleep(2*time.Second),
		chromedp.OuterHTML(`html`, &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("chromedp: %w", err)
	}
	return html, nil
}

// parseListings extracts one RawListing per vehicle card.
func (s *HTMLSource) parseListings(doc *goquery.Document) []models.RawListing {
	var listings []models.RawListing
	doc.Find("div.vehicle-card").Each(func(_ int, card *goquery.Selection) {
		l := models.RawListing{Source: s.Name()}

		l.VIN, _ = card.Attr("data-vin")
		l.SourceListingID, _ = card.Attr("data-listing-id")
		if href, ok := card.Find("a.vehicle-link").Attr("href"); ok {
			l.SourceURL = s.absoluteURL(href)
		}

		title := strings.TrimSpace(card.Find(".vehicle-title").Text())
		if year, mk, model, ok := parseTitleLine(title); ok {
			l.Year = &year
			l.Make = mk
			l.Model = model
		}

		if price, ok := parseDollars(card.Find(".vehicle-price").Text()); ok {
			l.Price = &price
		}
		if miles, ok := parseMiles(card.Find(".vehicle-mileage").Text()); ok {
			l.Mileage = &miles
		}

		l.Location = strings.TrimSpace(card.Find(".vehicle-location").Text())
		if _, state, ok := strings.Cut(l.Location, ","); ok {
			l.StateOfOrigin = strings.ToUpper(strings.TrimSpace(state))
		}

		if v, ok := card.Attr("data-title-status"); ok {
			status := strings.ToLower(strings.TrimSpace(v))
			l.TitleStatus = &status
		}
		if n, ok := attrInt(card, "data-accidents"); ok {
			l.AccidentCount = &n
		}
		if n, ok := attrInt(card, "data-owners"); ok {
			l.OwnerCount = &n
		}
		if b, ok := attrBool(card, "data-rental"); ok {
			l.IsRental = &b
		}
		if b, ok := attrBool(card, "data-fleet"); ok {
			l.IsFleet = &b
		}
		if b, ok := attrBool(card, "data-lien"); ok {
			l.HasLien = &b
		}
		if b, ok := attrBool(card, "data-flood"); ok {
			l.FloodDamage = &b
		}

		listings = append(listings, l)
	})
	return listings
}

func (s *HTMLSource) nextPageURL(doc *goquery.Document, current string) string {
	href, ok := doc.Find("a.pagination-next").Attr("href")
	if !ok || href == "" {
		return ""
	}
	next := s.absoluteURL(href)
	if next == current {
		return ""
	}
	return next
}

func (s *HTMLSource) absoluteURL(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return s.cfg.BaseURL + href
}

// parseTitleLine splits "2019 Toyota RAV4 XLE" into year, make and model.
// Trim levels stay part of the model string.
func parseTitleLine(title string) (year int, mk, model string, ok bool) {
	fields := strings.Fields(title)
	if len(fields) < 3 {
		return 0, "", "", false
	}
	year, err := strconv.Atoi(fields[0])
	if err != nil || year < 1900 || year > 2100 {
		return 0, "", "", false
	}
	return year, fields[1], strings.Join(fields[2:], " "), true
}

// parseDollars reads "$19,500" style price text.
func parseDollars(text string) (int, bool) {
	return parseNumber(strings.TrimPrefix(strings.TrimSpace(text), "$"))
}

// parseMiles reads "62,341 mi" style mileage text.
func parseMiles(text string) (int, bool) {
	t := strings.TrimSpace(strings.ToLower(text))
	t = strings.TrimSuffix(t, "miles")
	t = strings.TrimSuffix(t, "mi")
	return parseNumber(strings.TrimSpace(t))
}

func parseNumber(text string) (int, bool) {
	cleaned := strings.ReplaceAll(text, ",", "")
	if cleaned == "" {
		return 0, false
	}
	n, err := strconv.Atoi(cleaned)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func attrInt(sel *goquery.Selection, name string) (int, bool) {
	v, ok := sel.Attr(name)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, false
	}
	return n, true
}

func attrBool(sel *goquery.Selection, name string) (bool, bool) {
	v, ok := sel.Attr(name)
	if !ok {
		return false, false
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes":
		return true, true
	case "false", "0", "no":
		return false, true
	}
	return false, false
}
