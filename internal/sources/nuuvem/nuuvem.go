// Package nuuvem implements the scrape source adapter for the Nuuvem
// storefront. There is no public pricing API, so the adapter fetches the
// catalog search page for the resolved title and extracts a price in two
// passes: embedded JSON-LD product data first, then a regex scan over the
// raw markup as a last resort. Lowest real trust tier; the reconciler only
// keeps it when no better source produced the same store.
package nuuvem

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/gamecompare/price-backend/internal/currency"
	"github.com/gamecompare/price-backend/internal/domain"
)

const storeName = "Nuuvem"

// Client scrapes the Nuuvem catalog.
type Client struct {
	http    *resty.Client
	baseURL string
}

// New builds a Nuuvem client.
func New(http *resty.Client, baseURL string) *Client {
	return &Client{http: http, baseURL: baseURL}
}

// Name implements sources.Source.
func (c *Client) Name() string { return storeName }

var (
	jsonLDRe = regexp.MustCompile(`(?s)<script[^>]+application/ld\+json[^>]*>(.*?)</script>`)
	// Matches "R$ 49,99" and "R$49.99" variants in raw markup.
	priceRe = regexp.MustCompile(`R\$\s*(\d+(?:[.,]\d{2})?)`)
)

// ldProduct is the subset of a JSON-LD Product node the adapter reads.
type ldProduct struct {
	Type   string `json:"@type"`
	Offers *struct {
		Price         json.Number `json:"price"`
		PriceCurrency string      `json:"priceCurrency"`
	} `json:"offers"`
}

// Fetch implements sources.Source. Requires a resolved title; skips itself
// when none is available.
func (c *Client) Fetch(ctx context.Context, _, title string, rates currency.Rates) ([]domain.PriceObservation, error) {
	if title == "" {
		return nil, nil
	}

	pageURL := c.baseURL + "/br-en/catalog/search/" + url.PathEscape(title)
	resp, err := c.http.R().SetContext(ctx).Get(pageURL)
	if err != nil {
		return nil, fmt.Errorf("nuuvem search: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("nuuvem search: status %d", resp.StatusCode())
	}

	body := string(resp.Body())
	if amount, curr, ok := extractJSONLD(body); ok {
		return c.observation(rates.ToDisplay(amount, curr), pageURL), nil
	}
	if amount, ok := extractRegex(body); ok {
		// Raw markup prices are in the site's home currency.
		return c.observation(rates.ToDisplay(amount, domain.Catalog[storeName].NativeCurrency), pageURL), nil
	}
	return nil, nil
}

func (c *Client) observation(amount float64, pageURL string) []domain.PriceObservation {
	return []domain.PriceObservation{{
		Store:          storeName,
		CurrentAmount:  &amount,
		OriginalAmount: &amount,
		PurchaseURL:    pageURL,
		Trust:          domain.TrustScraped,
		Available:      true,
	}}
}

// extractJSONLD scans every ld+json block for a Product offer.
func extractJSONLD(body string) (float64, string, bool) {
	for _, m := range jsonLDRe.FindAllStringSubmatch(body, -1) {
		raw := strings.TrimSpace(m[1])

		var nodes []ldProduct
		if err := json.Unmarshal([]byte(raw), &nodes); err != nil {
			var single ldProduct
			if err := json.Unmarshal([]byte(raw), &single); err != nil {
				continue
			}
			nodes = []ldProduct{single}
		}
		for _, n := range nodes {
			if !strings.EqualFold(n.Type, "Product") || n.Offers == nil {
				continue
			}
			price, err := n.Offers.Price.Float64()
			if err != nil || price < 0 {
				continue
			}
			return price, n.Offers.PriceCurrency, true
		}
	}
	return 0, "", false
}

// extractRegex falls back to the first price-looking token in the markup.
func extractRegex(body string) (float64, bool) {
	m := priceRe.FindStringSubmatch(body)
	if m == nil {
		return 0, false
	}
	amount, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
	if err != nil {
		return 0, false
	}
	return amount, true
}
