// Package handlers provides HTTP handler implementations for the public API.
//
// This file implements the price endpoints. Both the GET and POST forms
// resolve to the same aggregation call; the POST body exists for clients
// that treat the storefront identifier as payload rather than path.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gamecompare/price-backend/internal/currency"
	"github.com/gamecompare/price-backend/internal/domain"
	"github.com/gamecompare/price-backend/internal/http/middleware"
	"github.com/gamecompare/price-backend/internal/services"
)

// unavailableText is shown in place of a price when a store has no
// purchasable offer.
const unavailableText = "Check store"

// PriceService is the aggregation surface the handler depends on.
type PriceService interface {
	GetPrices(ctx context.Context, gameID string) (*domain.AggregatedPriceSet, error)
}

// PriceHandler serves the aggregated price endpoints.
type PriceHandler struct {
	Service         PriceService
	DisplayCurrency string
}

// NewPriceHandler builds a PriceHandler rendering amounts in the given
// display currency.
func NewPriceHandler(svc PriceService, displayCurrency string) *PriceHandler {
	return &PriceHandler{Service: svc, DisplayCurrency: displayCurrency}
}

// priceEntry is the per-store wire representation. Display strings are
// locale formatted; the numeric fields are null when no amount is known so
// clients can distinguish "free" from "unknown".
type priceEntry struct {
	Store                string   `json:"store"`
	Price                string   `json:"price"`
	OriginalPrice        string   `json:"originalPrice"`
	Discount             int      `json:"discount"`
	BuyURL               string   `json:"buyUrl"`
	Available            bool     `json:"available"`
	NumericPrice         *float64 `json:"numericPrice"`
	NumericOriginalPrice *float64 `json:"numericOriginalPrice"`
}

// priceResponse is the success envelope for both price endpoints.
type priceResponse struct {
	GameIdentifier string       `json:"gameIdentifier"`
	GeneratedAt    time.Time    `json:"generatedAt"`
	Prices         []priceEntry `json:"prices"`
}

// priceRequest is the POST body form.
type priceRequest struct {
	GameIdentifier string `json:"gameIdentifier"`
}

// GetPrices handles GET /api/v1/prices/:gameID.
func (h *PriceHandler) GetPrices(c *gin.Context) {
	h.serve(c, c.Param("gameID"))
}

// PostPrices handles POST /api/v1/prices with {"gameIdentifier": "..."}.
// A malformed body degrades to an empty identifier, which the service
// rejects the same way it rejects a blank path parameter.
func (h *PriceHandler) PostPrices(c *gin.Context) {
	var req priceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	h.serve(c, req.GameIdentifier)
}

func (h *PriceHandler) serve(c *gin.Context, gameID string) {
	set, err := h.Service.GetPrices(c.Request.Context(), gameID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrMissingGameID):
			fail(c, http.StatusBadRequest, ErrCodeMissingGameID, "gameIdentifier is required")
		case errors.Is(err, services.ErrAggregationFailed):
			fail(c, http.StatusInternalServerError, ErrCodeAggregationFailed, "price aggregation failed")
		default:
			middleware.LoggerFrom(c).Error().Err(err).Str("game_id", gameID).Msg("get prices")
			fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
		}
		return
	}

	resp := priceResponse{
		GameIdentifier: set.GameID,
		GeneratedAt:    set.GeneratedAt,
		Prices:         make([]priceEntry, 0, len(set.Entries)),
	}
	for _, o := range set.Entries {
		resp.Prices = append(resp.Prices, h.render(o))
	}
	ok(c, http.StatusOK, resp)
}

// render maps a reconciled observation to its wire form.
func (h *PriceHandler) render(o domain.PriceObservation) priceEntry {
	e := priceEntry{
		Store:                o.Store,
		Price:                unavailableText,
		OriginalPrice:        unavailableText,
		Discount:             o.DiscountPercent,
		BuyURL:               o.PurchaseURL,
		Available:            o.Available,
		NumericPrice:         o.CurrentAmount,
		NumericOriginalPrice: o.OriginalAmount,
	}
	if o.Available && o.CurrentAmount != nil {
		e.Price = currency.Format(*o.CurrentAmount, h.DisplayCurrency)
		e.OriginalPrice = e.Price
		if o.OriginalAmount != nil {
			e.OriginalPrice = currency.Format(*o.OriginalAmount, h.DisplayCurrency)
		}
	}
	return e
}
