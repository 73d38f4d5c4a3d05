// Package currency normalizes upstream monetary amounts into the display
// currency. A Rates snapshot is fetched once per aggregation run and passed
// down to every adapter; rate-source failures fall back to hardcoded
// constants so aggregation never blocks on the exchange-rate provider.
package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// MinorUnits is an amount expressed in integer minor units (cents).
// Storefront APIs frequently report prices this way; converting through this
// type instead of a bare division keeps the "forgot to divide by 100" bug
// class out of adapter code.
type MinorUnits int64

// Major converts cents to a major-unit amount (4999 -> 49.99).
func (m MinorUnits) Major() float64 { return float64(m) / 100 }

// Fallback rates used when the exchange-rate source is unreachable.
// Deliberately conservative; a stale rate beats a failed aggregation.
var fallbackToBRL = map[string]float64{
	"USD": 5.20,
	"EUR": 5.65,
}

// Rates is an immutable per-run snapshot of conversion rates into the
// display currency. The zero value converts nothing; build one with
// Fallback or FetcherFor.
type Rates struct {
	Display string
	toDisp  map[string]float64
}

// Fallback returns a snapshot backed by the hardcoded constants.
func Fallback(display string) Rates {
	return Rates{Display: display, toDisp: fallbackToBRL}
}

// ToDisplay converts an amount from its source currency into the display
// currency. Amounts already in the display currency pass through unchanged;
// an unknown source currency falls back to the hardcoded constant, or to a
// passthrough when none exists.
func (r Rates) ToDisplay(amount float64, from string) float64 {
	if from == r.Display || from == "" {
		return amount
	}
	if rate, ok := r.toDisp[from]; ok && rate > 0 {
		return amount * rate
	}
	if rate, ok := fallbackToBRL[from]; ok {
		return amount * rate
	}
	return amount
}

// Fetcher obtains a Rates snapshot for one aggregation run.
type Fetcher interface {
	Snapshot(ctx context.Context) Rates
}

// AwesomeAPIFetcher pulls USD/EUR quotes against BRL from the AwesomeAPI
// open endpoint. Any failure degrades to the fallback constants.
type AwesomeAPIFetcher struct {
	Client  *resty.Client
	BaseURL string
	Display string
}

// awesomeQuote is the per-pair payload ("bid" carries the rate as a string).
type awesomeQuote struct {
	Bid string `json:"bid"`
}

// Snapshot fetches live rates, falling back per pair on any error. It never
// returns an error: exchange-rate failure must not fail aggregation.
func (f *AwesomeAPIFetcher) Snapshot(ctx context.Context) Rates {
	rates := map[string]float64{}
	for k, v := range fallbackToBRL {
		rates[k] = v
	}

	resp, err := f.Client.R().
		SetContext(ctx).
		Get(f.BaseURL + "/json/last/USD-BRL,EUR-BRL")
	if err != nil || resp.StatusCode() != 200 {
		log.Warn().Err(err).Msg("exchange rate fetch failed, using fallback rates")
		return Rates{Display: f.Display, toDisp: rates}
	}

	var payload map[string]awesomeQuote
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		log.Warn().Err(err).Msg("exchange rate payload malformed, using fallback rates")
		return Rates{Display: f.Display, toDisp: rates}
	}
	for pair, q := range payload {
		bid, err := strconv.ParseFloat(q.Bid, 64)
		if err != nil || bid <= 0 {
			continue
		}
		// pair keys look like "USDBRL"
		if len(pair) == 6 && pair[3:] == f.Display {
			rates[pair[:3]] = bid
		}
	}
	return Rates{Display: f.Display, toDisp: rates}
}

// Static returns a fixed snapshot, used by tests and by deployments that
// pin a rate via configuration.
func Static(display string, toDisplay map[string]float64) Rates {
	return Rates{Display: display, toDisp: toDisplay}
}

// ensure interface compliance
var _ Fetcher = (*AwesomeAPIFetcher)(nil)

// String implements fmt.Stringer for debug logs.
func (r Rates) String() string {
	return fmt.Sprintf("rates->%s%v", r.Display, r.toDisp)
}
