package domain

import (
	"net/url"
	"strings"
)

// StoreInfo is static metadata for a storefront: its display name, the
// currency its adapter reports natively, and a search URL template used for
// placeholder entries ("%s" is replaced by the escaped game title).
type StoreInfo struct {
	Name           string
	NativeCurrency string
	SearchURL      string
}

// Catalog lists every storefront the backend knows how to talk about.
// Which of these actually appear in responses is decided by configuration;
// the catalog also backs aggregator store-code mapping, so it is a superset
// of any configured store list.
var Catalog = map[string]StoreInfo{
	"Steam": {
		Name:           "Steam",
		NativeCurrency: "BRL",
		SearchURL:      "https://store.steampowered.com/search/?term=%s",
	},
	"GOG": {
		Name:           "GOG",
		NativeCurrency: "USD",
		SearchURL:      "https://www.gog.com/en/games?query=%s",
	},
	"Nuuvem": {
		Name:           "Nuuvem",
		NativeCurrency: "BRL",
		SearchURL:      "https://www.nuuvem.com/br-en/catalog/search/%s",
	},
	"EpicGames": {
		Name:           "EpicGames",
		NativeCurrency: "USD",
		SearchURL:      "https://store.epicgames.com/en-US/browse?q=%s",
	},
	"ENEBA": {
		Name:           "ENEBA",
		NativeCurrency: "USD",
		SearchURL:      "https://www.eneba.com/store/all?text=%s",
	},
}

// Stores resolves configured store names against the catalog, preserving
// order and skipping names the catalog does not know.
func Stores(names []string) []StoreInfo {
	out := make([]StoreInfo, 0, len(names))
	for _, n := range names {
		if s, ok := Catalog[strings.TrimSpace(n)]; ok {
			out = append(out, s)
		}
	}
	return out
}

// FallbackURL renders the store's search page for a title. With an empty
// title it degrades to the store's browse page (template minus the term).
func (s StoreInfo) FallbackURL(title string) string {
	return strings.Replace(s.SearchURL, "%s", url.QueryEscape(title), 1)
}
