// Package gog implements the GOG source adapter over the embed catalog
// search endpoint. GOG has no lookup by the canonical identifier, so the
// adapter searches by resolved title and takes the first hit; an empty
// result set is "not found", not an error.
package gog

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/gamecompare/price-backend/internal/currency"
	"github.com/gamecompare/price-backend/internal/domain"
)

const storeName = "GOG"

// Client queries the GOG embed catalog.
type Client struct {
	http    *resty.Client
	baseURL string
}

// New builds a GOG client.
func New(http *resty.Client, baseURL string) *Client {
	return &Client{http: http, baseURL: baseURL}
}

// Name implements sources.Source.
func (c *Client) Name() string { return storeName }

// searchResponse mirrors the filtered-search payload. Amounts are decimal
// strings in major units.
type searchResponse struct {
	Products []struct {
		Title string `json:"title"`
		URL   string `json:"url"`
		Price struct {
			Amount     string `json:"amount"`
			BaseAmount string `json:"baseAmount"`
			Discount   int    `json:"discountPercentage"`
			IsFree     bool   `json:"isFree"`
		} `json:"price"`
	} `json:"products"`
}

// Fetch implements sources.Source. With an empty title the adapter skips
// itself: there is nothing to search by.
func (c *Client) Fetch(ctx context.Context, _, title string, rates currency.Rates) ([]domain.PriceObservation, error) {
	if title == "" {
		return nil, nil
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("mediaType", "game").
		SetQueryParam("search", title).
		Get(c.baseURL + "/games/ajax/filtered")
	if err != nil {
		return nil, fmt.Errorf("gog search: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("gog search: status %d", resp.StatusCode())
	}

	var payload searchResponse
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return nil, fmt.Errorf("gog search: %w", err)
	}
	if len(payload.Products) == 0 {
		return nil, nil
	}

	// First hit only; fuzzy search already ranks by relevance.
	p := payload.Products[0]

	buyURL := p.URL
	if buyURL != "" && strings.HasPrefix(buyURL, "/") {
		buyURL = "https://www.gog.com" + buyURL
	}
	if buyURL == "" {
		buyURL = domain.Catalog[storeName].FallbackURL(title)
	}

	if p.Price.IsFree {
		zero := 0.0
		return []domain.PriceObservation{{
			Store:          storeName,
			CurrentAmount:  &zero,
			OriginalAmount: &zero,
			PurchaseURL:    buyURL,
			Trust:          domain.TrustDirectAPI,
			Available:      true,
		}}, nil
	}

	amount, err := strconv.ParseFloat(p.Price.Amount, 64)
	if err != nil {
		return nil, fmt.Errorf("gog search: bad amount %q", p.Price.Amount)
	}
	base, err := strconv.ParseFloat(p.Price.BaseAmount, 64)
	if err != nil {
		base = amount
	}

	native := domain.Catalog[storeName].NativeCurrency
	cur := rates.ToDisplay(amount, native)
	orig := rates.ToDisplay(base, native)
	return []domain.PriceObservation{{
		Store:           storeName,
		CurrentAmount:   &cur,
		OriginalAmount:  &orig,
		DiscountPercent: p.Price.Discount,
		PurchaseURL:     buyURL,
		Trust:           domain.TrustDirectAPI,
		Available:       true,
	}}, nil
}
