package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	config "github.com/NordCoder/Pricewatch/internal/config/tracker"
	"github.com/NordCoder/Pricewatch/internal/domain/item"
)

var _ item.Fetcher = (*HTTPFetcher)(nil)

// Generic selectors tried after the per-domain one, in order.
var defaultSelectors = []string{
	"meta[itemprop='price']",
	"meta[property='product:price:amount']",
	"meta[property='og:price:amount']",
	"[itemprop='price']",
	"[data-testid='price']",
	".price",
}

var (
	ldPrice        = regexp.MustCompile(`"price"\s*:\s*"?([0-9][0-9.,]*)"?`)
	ldAvailability = regexp.MustCompile(`"availability"\s*:\s*"([^"]+)"`)
)

// HTTPFetcher scrapes the source page and reads the price with CSS selectors.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	timeout   time.Duration
	selectors map[string]string
	log       *zap.Logger
}

func NewHTTP(client *http.Client, cfg config.FetchCfg, log *zap.Logger) *HTTPFetcher {
	sel := make(map[string]string, len(cfg.Selectors))
	for _, s := range cfg.Selectors {
		sel[strings.ToLower(s.Domain)] = s.CSS
	}
	return &HTTPFetcher{
		client:    client,
		userAgent: cfg.UserAgent,
		timeout:   cfg.Timeout,
		selectors: sel,
		log:       log.With(zap.String("component", "fetcher.http")),
	}
}

func (f *HTTPFetcher) FetchPrice(ctx context.Context, t *item.TrackedItem, src item.Source) (item.Observation, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cleanURL(src.URL), nil)
	if err != nil {
		return item.Observation{}, fmt.Errorf("build request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return item.Observation{}, fmt.Errorf("fetch %s: %w", src.Name, err)
	}
	defer resp.Body.Close()

	obs := item.Observation{Source: src.Name, At: time.Now().UTC()}
	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return obs, nil
	case resp.StatusCode != http.StatusOK:
		return item.Observation{}, fmt.Errorf("fetch %s: status code %d", src.Name, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return item.Observation{}, fmt.Errorf("parse %s: %w", src.Name, err)
	}

	price, err := f.extractPrice(doc, domainOf(src))
	if err != nil {
		return item.Observation{}, fmt.Errorf("%s: %w", src.Name, err)
	}
	obs.Price = price
	obs.Available = inStock(doc)
	f.log.Debug("price fetched", zap.String("item_id", t.ID), zap.String("source", src.Name), zap.Float64("price", price))
	return obs, nil
}

func (f *HTTPFetcher) extractPrice(doc *goquery.Document, domain string) (float64, error) {
	selectors := defaultSelectors
	if s, ok := f.selectors[domain]; ok && s != "" {
		selectors = append([]string{s}, defaultSelectors...)
	}

	for _, sel := range selectors {
		var (
			price float64
			found bool
		)
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := s.AttrOr("content", "")
			if text == "" {
				text = s.Text()
			}
			if v, err := ParsePrice(text); err == nil {
				price, found = v, true
				return false
			}
			return true
		})
		if found {
			return price, nil
		}
	}

	var (
		price float64
		found bool
	)
	doc.Find("script[type='application/ld+json']").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		m := ldPrice.FindStringSubmatch(s.Text())
		if len(m) < 2 {
			return true
		}
		if v, err := ParsePrice(m[1]); err == nil {
			price, found = v, true
			return false
		}
		return true
	})
	if found {
		return price, nil
	}
	return 0, ErrPriceNotFound
}

// inStock is true unless the page marks the offer as out of stock.
func inStock(doc *goquery.Document) bool {
	out := false
	doc.Find("[itemprop='availability']").Each(func(_ int, s *goquery.Selection) {
		v := s.AttrOr("href", s.AttrOr("content", s.Text()))
		if strings.Contains(strings.ToLower(v), "outofstock") {
			out = true
		}
	})
	if out {
		return false
	}
	doc.Find("script[type='application/ld+json']").Each(func(_ int, s *goquery.Selection) {
		if m := ldAvailability.FindStringSubmatch(s.Text()); len(m) > 1 &&
			strings.Contains(strings.ToLower(m[1]), "outofstock") {
			out = true
		}
	})
	return !out
}

func domainOf(src item.Source) string {
	if src.Domain != "" {
		return strings.ToLower(src.Domain)
	}
	u, err := url.Parse(src.URL)
	if err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(u.Hostname(), "www."))
}

func cleanURL(s string) string {
	t := strings.TrimSpace(s)
	if i := strings.Index(t, "#"); i >= 0 {
		t = t[:i]
	}
	if t != "" && !strings.HasPrefix(t, "http://") && !strings.HasPrefix(t, "https://") {
		return "https://" + t
	}
	return t
}
