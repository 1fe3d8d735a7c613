package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
)

//go:embed data/catalog.json
var embeddedCatalog []byte

// Item is a sellable print design.
type Item struct {
	ID            string                     `json:"id"`
	Title         string                     `json:"title"`
	PrintAssetURL string                     `json:"print_asset_url"`
	Currency      string                     `json:"currency"`
	Prices        map[string]decimal.Decimal `json:"prices"`
}

// Price returns the major-unit price for a paper and size combination.
func (i *Item) Price(paper, size string) (decimal.Decimal, bool) {
	if i == nil {
		return decimal.Zero, false
	}
	price, ok := i.Prices[PriceKey(paper, size)]
	return price, ok
}

// PriceKey builds the "paper:size" key used by price tables.
func PriceKey(paper, size string) string {
	return normalize(paper) + ":" + normalize(size)
}

type document struct {
	Items []Item `json:"items"`
}

// Reader looks up catalog items. It is read-only after construction.
type Reader struct {
	items map[string]*Item
}

// Load returns the catalog at path, or the embedded catalog when path is empty.
func Load(path string) (*Reader, error) {
	raw := embeddedCatalog
	if trimmed := strings.TrimSpace(path); trimmed != "" {
		data, err := os.ReadFile(trimmed)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", trimmed, err)
		}
		raw = data
	}
	return Parse(raw)
}

// Parse decodes a catalog document.
func Parse(raw []byte) (*Reader, error) {
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	items := make(map[string]*Item, len(doc.Items))
	for idx := range doc.Items {
		item := doc.Items[idx]
		item.ID = strings.TrimSpace(item.ID)
		if item.ID == "" {
			return nil, fmt.Errorf("catalog item %d has no id", idx)
		}
		if _, dup := items[item.ID]; dup {
			return nil, fmt.Errorf("catalog item %q listed twice", item.ID)
		}
		if strings.TrimSpace(item.PrintAssetURL) == "" {
			return nil, fmt.Errorf("catalog item %q has no print asset url", item.ID)
		}
		item.Currency = strings.ToLower(strings.TrimSpace(item.Currency))
		if item.Currency == "" {
			item.Currency = "usd"
		}

		prices := make(map[string]decimal.Decimal, len(item.Prices))
		for key, price := range item.Prices {
			paper, size, ok := strings.Cut(key, ":")
			if !ok {
				return nil, fmt.Errorf("catalog item %q: price key %q must be paper:size", item.ID, key)
			}
			if !price.IsPositive() {
				return nil, fmt.Errorf("catalog item %q: price for %q must be positive", item.ID, key)
			}
			prices[PriceKey(paper, size)] = price
		}
		item.Prices = prices
		items[item.ID] = &item
	}
	return &Reader{items: items}, nil
}

// FindByID returns the item with the given id.
func (r *Reader) FindByID(id string) (*Item, bool) {
	if r == nil {
		return nil, false
	}
	item, ok := r.items[strings.TrimSpace(id)]
	return item, ok
}

// Len reports how many items are loaded.
func (r *Reader) Len() int {
	if r == nil {
		return 0
	}
	return len(r.items)
}

func normalize(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	value = strings.ReplaceAll(value, "×", "x")
	return strings.ReplaceAll(value, " ", "")
}
