// Package steam implements the authoritative source adapter and the name
// resolver, both backed by the storefront's public appdetails endpoint.
// Steam is the canonical identifier namespace for the whole aggregation,
// so this is the only adapter allowed to report a visible "price not found"
// placeholder instead of silently producing nothing: an entry is always
// expected to exist here.
package steam

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-resty/resty/v2"

	"github.com/gamecompare/price-backend/internal/currency"
	"github.com/gamecompare/price-backend/internal/domain"
)

const storeName = "Steam"

// Client queries the Steam store API.
type Client struct {
	http    *resty.Client
	baseURL string
	country string
}

// New builds a Steam client. country is the two-letter storefront region
// the prices are requested for (e.g. "br").
func New(http *resty.Client, baseURL, country string) *Client {
	return &Client{http: http, baseURL: baseURL, country: country}
}

// Name implements sources.Source.
func (c *Client) Name() string { return storeName }

// appDetails mirrors the relevant slice of the appdetails payload. Prices
// arrive in integer minor units of the storefront currency.
type appDetails struct {
	Success bool `json:"success"`
	Data    struct {
		Name          string `json:"name"`
		IsFree        bool   `json:"is_free"`
		PriceOverview *struct {
			Currency        string                 `json:"currency"`
			Initial         currency.MinorUnits    `json:"initial"`
			Final           currency.MinorUnits    `json:"final"`
			DiscountPercent int                    `json:"discount_percent"`
		} `json:"price_overview"`
	} `json:"data"`
}

// fetchDetails performs the appdetails call and unwraps the per-app envelope.
func (c *Client) fetchDetails(ctx context.Context, gameID, filters string) (*appDetails, error) {
	req := c.http.R().
		SetContext(ctx).
		SetQueryParam("appids", gameID).
		SetQueryParam("cc", c.country).
		SetQueryParam("l", "en")
	if filters != "" {
		req.SetQueryParam("filters", filters)
	}
	resp, err := req.Get(c.baseURL + "/api/appdetails")
	if err != nil {
		return nil, fmt.Errorf("steam appdetails: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("steam appdetails: status %d", resp.StatusCode())
	}

	var envelope map[string]appDetails
	if err := json.Unmarshal(resp.Body(), &envelope); err != nil {
		return nil, fmt.Errorf("steam appdetails: %w", err)
	}
	details, ok := envelope[gameID]
	if !ok {
		return nil, fmt.Errorf("steam appdetails: app %s missing from envelope", gameID)
	}
	return &details, nil
}

// Fetch implements sources.Source. A de-listed or unpriced app yields an
// unavailable observation rather than nothing, so the caller can show
// "price not found" for the canonical store.
func (c *Client) Fetch(ctx context.Context, gameID, _ string, rates currency.Rates) ([]domain.PriceObservation, error) {
	details, err := c.fetchDetails(ctx, gameID, "")
	if err != nil {
		return nil, err
	}

	buyURL := fmt.Sprintf("https://store.steampowered.com/app/%s", gameID)
	if !details.Success {
		return []domain.PriceObservation{{
			Store:       storeName,
			PurchaseURL: buyURL,
			Trust:       domain.TrustAuthoritative,
			Available:   false,
		}}, nil
	}

	if details.Data.IsFree {
		zero := 0.0
		return []domain.PriceObservation{{
			Store:          storeName,
			CurrentAmount:  &zero,
			OriginalAmount: &zero,
			PurchaseURL:    buyURL,
			Trust:          domain.TrustAuthoritative,
			Available:      true,
		}}, nil
	}

	po := details.Data.PriceOverview
	if po == nil {
		// Listed but unpriced (coming soon, region lock).
		return []domain.PriceObservation{{
			Store:       storeName,
			PurchaseURL: buyURL,
			Trust:       domain.TrustAuthoritative,
			Available:   false,
		}}, nil
	}

	cur := rates.ToDisplay(po.Final.Major(), po.Currency)
	orig := rates.ToDisplay(po.Initial.Major(), po.Currency)
	return []domain.PriceObservation{{
		Store:           storeName,
		CurrentAmount:   &cur,
		OriginalAmount:  &orig,
		DiscountPercent: po.DiscountPercent,
		PurchaseURL:     buyURL,
		Trust:           domain.TrustAuthoritative,
		Available:       true,
	}}, nil
}

// ResolveName looks up the display title for a canonical identifier. The
// title only drives free-text search against secondary stores; it is never
// shown to end users as ground truth. Any failure returns ("", false) and
// the caller skips title-dependent sources for the run.
func (c *Client) ResolveName(ctx context.Context, gameID string) (string, bool) {
	details, err := c.fetchDetails(ctx, gameID, "basic")
	if err != nil || !details.Success || details.Data.Name == "" {
		return "", false
	}
	return details.Data.Name, true
}
