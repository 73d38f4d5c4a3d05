package cheapshark

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gamecompare/price-backend/internal/currency"
	"github.com/gamecompare/price-backend/internal/domain"
	"github.com/gamecompare/price-backend/internal/sources"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(sources.NewClient(5*time.Second), srv.URL)
}

func TestFetch_ExpandsKnownStores(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("steamAppID"); got != "292030" {
			t.Errorf("steamAppID = %q", got)
		}
		fmt.Fprint(w, `[
			{"storeID":"1","dealID":"steamdeal","salePrice":"11.99","normalPrice":"39.99","savings":"70.0"},
			{"storeID":"7","dealID":"gogdeal","salePrice":"10.99","normalPrice":"39.99","savings":"72.5"},
			{"storeID":"25","dealID":"epicdeal","salePrice":"12.49","normalPrice":"39.99","savings":"68.8"},
			{"storeID":"99","dealID":"mystery","salePrice":"1.00","normalPrice":"2.00","savings":"50.0"}
		]`)
	})

	obs, err := c.Fetch(context.Background(), "292030", "", currency.Static("USD", nil))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	// Steam is filtered (covered by the direct adapter), code 99 is unknown.
	if len(obs) != 2 {
		t.Fatalf("expected 2 observations, got %d: %+v", len(obs), obs)
	}
	byStore := map[string]domain.PriceObservation{}
	for _, o := range obs {
		byStore[o.Store] = o
	}
	if _, ok := byStore["Steam"]; ok {
		t.Fatal("authoritative store must be filtered out")
	}
	gog := byStore["GOG"]
	if *gog.CurrentAmount != 10.99 || gog.DiscountPercent != 73 {
		t.Errorf("GOG deal mismatch: %+v", gog)
	}
	if gog.Trust != domain.TrustAggregator {
		t.Errorf("aggregator trust tier expected, got %v", gog.Trust)
	}
	if byStore["EpicGames"].PurchaseURL != "https://www.cheapshark.com/redirect?dealID=epicdeal" {
		t.Errorf("redirect url = %q", byStore["EpicGames"].PurchaseURL)
	}
}

func TestFetch_EmptyDealList(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	})

	obs, err := c.Fetch(context.Background(), "1", "", currency.Static("USD", nil))
	if err != nil || len(obs) != 0 {
		t.Fatalf("expected no observations, got obs=%v err=%v", obs, err)
	}
}

func TestFetch_BadPayloads(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"non-200", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTooManyRequests) }},
		{"malformed", func(w http.ResponseWriter, r *http.Request) { fmt.Fprint(w, `{"oops"`) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, tc.handler)
			if _, err := c.Fetch(context.Background(), "1", "", currency.Static("USD", nil)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestFetch_UnparsablePriceDropped(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"storeID":"7","dealID":"d","salePrice":"n/a","normalPrice":"n/a","savings":""}]`)
	})

	obs, err := c.Fetch(context.Background(), "1", "", currency.Static("USD", nil))
	if err != nil || len(obs) != 0 {
		t.Fatalf("unparsable deal must be dropped, got obs=%v err=%v", obs, err)
	}
}
