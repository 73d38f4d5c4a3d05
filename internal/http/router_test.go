package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/gamecompare/price-backend/internal/config"
	"github.com/gamecompare/price-backend/internal/domain"
)

func jsonBody(s string) io.Reader { return strings.NewReader(s) }

// --- test DB helper (pure-Go sqlite, no CGO) ---
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.PriceRecord{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// fakeUpstreams runs httptest servers standing in for every external API
// and returns a config pointing the adapters at them.
func fakeUpstreams(t *testing.T) (config.Config, *int64) {
	t.Helper()

	var steamHits int64
	steamSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&steamHits, 1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"730":{"success":true,"data":{"name":"Counter-Strike 2","is_free":false,` +
			`"price_overview":{"currency":"BRL","initial":10998,"final":5499,"discount_percent":50}}}}`))
	}))
	t.Cleanup(steamSrv.Close)

	gogSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"products":[{"title":"Counter-Strike 2","url":"/game/cs2",` +
			`"price":{"amount":"10.99","baseAmount":"10.99","discountPercentage":0,"isFree":false}}]}`))
	}))
	t.Cleanup(gogSrv.Close)

	sharkSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	}))
	t.Cleanup(sharkSrv.Close)

	nuuvemSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><script type="application/ld+json">` +
			`{"@type":"Product","offers":{"price":34.90,"priceCurrency":"BRL"}}` +
			`</script></html>`))
	}))
	t.Cleanup(nuuvemSrv.Close)

	ratesSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"USDBRL":{"bid":"5.00"},"EURBRL":{"bid":"6.00"}}`))
	}))
	t.Cleanup(ratesSrv.Close)

	cfg := config.Config{
		APIBasePath:     "/api/v1",
		Stores:          []string{"Steam", "GOG", "Nuuvem"},
		DisplayCurrency: "BRL",
		Cache:           config.CacheConfig{MaxAge: time.Hour, MinAvailable: 2, MinRows: 2},
		Adapters: config.AdapterConfig{
			SteamBaseURL:      steamSrv.URL,
			GOGBaseURL:        gogSrv.URL,
			CheapSharkBaseURL: sharkSrv.URL,
			NuuvemBaseURL:     nuuvemSrv.URL,
			RatesBaseURL:      ratesSrv.URL,
			HTTPTimeout:       2 * time.Second,
		},
		RateRPS:   100,
		RateBurst: 50,
		CORS:      config.CORSConfig{AllowedOrigins: nil}, // AllowAllOrigins branch
		Security:  config.SecurityConfig{EnableHSTS: false},
		OTEL:      config.OTELConfig{ServiceName: "test-svc"},
	}
	return cfg, &steamHits
}

func TestRegisterRoutes_EndToEndAggregation(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg, steamHits := fakeUpstreams(t)
	r := gin.New()
	RegisterRoutes(r, newTestDB(t), cfg)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/prices/730", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET prices = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		GameIdentifier string `json:"gameIdentifier"`
		Prices         []struct {
			Store        string   `json:"store"`
			Price        string   `json:"price"`
			Available    bool     `json:"available"`
			NumericPrice *float64 `json:"numericPrice"`
		} `json:"prices"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if resp.GameIdentifier != "730" || len(resp.Prices) != 3 {
		t.Fatalf("unexpected response: %+v", resp)
	}

	want := map[string]float64{
		"Steam":  54.99, // BRL passthrough
		"GOG":    54.95, // 10.99 USD at the fake 5.00 rate
		"Nuuvem": 34.90,
	}
	for _, p := range resp.Prices {
		expect, ok := want[p.Store]
		if !ok {
			t.Fatalf("unexpected store %q", p.Store)
		}
		if !p.Available || p.NumericPrice == nil {
			t.Fatalf("%s entry unavailable: %+v", p.Store, p)
		}
		if diff := *p.NumericPrice - expect; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("%s numericPrice = %v, want %v", p.Store, *p.NumericPrice, expect)
		}
	}

	// Second request must be served from cache without touching upstreams.
	before := atomic.LoadInt64(steamHits)
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, httptest.NewRequest(http.MethodGet, "/api/v1/prices/730", nil))
	if w2.Code != http.StatusOK {
		t.Fatalf("cached GET prices = %d", w2.Code)
	}
	if after := atomic.LoadInt64(steamHits); after != before {
		t.Fatalf("cache hit still called Steam: %d -> %d", before, after)
	}
}

func TestRegisterRoutes_PostMissingIdentifier(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg, steamHits := fakeUpstreams(t)
	r := gin.New()
	RegisterRoutes(r, newTestDB(t), cfg)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/prices", jsonBody(`{"gameIdentifier":"  "}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if resp["code"] != "missing_game_id" {
		t.Fatalf("code = %q", resp["code"])
	}
	if atomic.LoadInt64(steamHits) != 0 {
		t.Fatal("validation failure must not reach adapters")
	}
}

func TestRegisterRoutes_HealthMetricsCORSFallbacks(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg, _ := fakeUpstreams(t)
	r := gin.New()
	RegisterRoutes(r, newTestDB(t), cfg)

	// /health works and carries the wildcard CORS header
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("AllowAllOrigins expected '*', got %q", got)
	}

	// /metrics is wired
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK || w.Body.Len() == 0 {
		t.Fatalf("GET /metrics bad: code=%d len=%d", w.Code, w.Body.Len())
	}

	// Preflight answered without a body
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/prices", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("preflight = %d", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Fatalf("preflight carried a body: %q", w.Body.String())
	}

	// Unknown route → structured 404
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope = %d", w.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid 404 body: %v", err)
	}
	if resp["code"] != "not_found" {
		t.Fatalf("404 code = %q", resp["code"])
	}

	// Wrong method → structured 405
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/prices", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("DELETE prices = %d", w.Code)
	}
}
