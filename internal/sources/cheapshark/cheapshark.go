// Package cheapshark implements the deal-aggregator source adapter. One
// request keyed by the canonical Steam identifier expands into observations
// for several stores at once. The aggregator speaks in numeric store codes;
// codes the table does not know are dropped silently, and the authoritative
// store's own deals are filtered out because the direct adapter already
// covers it.
package cheapshark

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/go-resty/resty/v2"

	"github.com/gamecompare/price-backend/internal/currency"
	"github.com/gamecompare/price-backend/internal/domain"
)

const sourceName = "CheapShark"

// storeCodes maps CheapShark numeric store IDs to catalog store names.
var storeCodes = map[string]string{
	"1":  "Steam",
	"7":  "GOG",
	"25": "EpicGames",
}

// Client queries the CheapShark deals API.
type Client struct {
	http    *resty.Client
	baseURL string
}

// New builds a CheapShark client.
func New(http *resty.Client, baseURL string) *Client {
	return &Client{http: http, baseURL: baseURL}
}

// Name implements sources.Source.
func (c *Client) Name() string { return sourceName }

// deal mirrors one element of the deals payload. Prices are USD decimal
// strings in major units.
type deal struct {
	StoreID    string `json:"storeID"`
	DealID     string `json:"dealID"`
	SalePrice  string `json:"salePrice"`
	NormalPrice string `json:"normalPrice"`
	Savings    string `json:"savings"`
}

// Fetch implements sources.Source. The aggregator is keyed by the canonical
// identifier, so it runs even when title resolution failed.
func (c *Client) Fetch(ctx context.Context, gameID, _ string, rates currency.Rates) ([]domain.PriceObservation, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("steamAppID", gameID).
		SetQueryParam("pageSize", "20").
		Get(c.baseURL + "/api/1.0/deals")
	if err != nil {
		return nil, fmt.Errorf("cheapshark deals: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("cheapshark deals: status %d", resp.StatusCode())
	}

	var deals []deal
	if err := json.Unmarshal(resp.Body(), &deals); err != nil {
		return nil, fmt.Errorf("cheapshark deals: %w", err)
	}

	var out []domain.PriceObservation
	for _, d := range deals {
		store, ok := storeCodes[d.StoreID]
		if !ok || store == "Steam" {
			continue
		}
		sale, err := strconv.ParseFloat(d.SalePrice, 64)
		if err != nil || sale < 0 {
			continue
		}
		normal, err := strconv.ParseFloat(d.NormalPrice, 64)
		if err != nil || normal <= 0 {
			normal = sale
		}
		discount := 0
		if s, err := strconv.ParseFloat(d.Savings, 64); err == nil && s > 0 {
			discount = int(s + 0.5)
		}

		cur := rates.ToDisplay(sale, "USD")
		orig := rates.ToDisplay(normal, "USD")
		out = append(out, domain.PriceObservation{
			Store:           store,
			CurrentAmount:   &cur,
			OriginalAmount:  &orig,
			DiscountPercent: discount,
			PurchaseURL:     "https://www.cheapshark.com/redirect?dealID=" + d.DealID,
			Trust:           domain.TrustAggregator,
			Available:       true,
		})
	}
	return out, nil
}
