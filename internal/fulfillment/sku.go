package fulfillment

import "strings"

// builtinSKUs is the fallback paper:size table. fineart 24x36 has no
// production partner and is intentionally absent.
var builtinSKUs = map[string]string{
	"standard:8x10":  "GLOBAL-EMA-8X10",
	"standard:11x14": "GLOBAL-EMA-11X14",
	"standard:12x16": "GLOBAL-EMA-12X16",
	"standard:12x18": "GLOBAL-EMA-12X18",
	"standard:16x20": "GLOBAL-EMA-16X20",
	"standard:18x24": "GLOBAL-EMA-18X24",
	"standard:24x36": "GLOBAL-EMA-24X36",
	"fineart:8x10":   "GLOBAL-HGE-8X10",
	"fineart:11x14":  "GLOBAL-HGE-11X14",
	"fineart:12x16":  "GLOBAL-HGE-12X16",
	"fineart:16x20":  "GLOBAL-HGE-16X20",
	"fineart:18x24":  "GLOBAL-HGE-18X24",
}

// SkuResolver maps a paper and size to a provider SKU.
type SkuResolver struct {
	overrides map[string]string
}

// NewSkuResolver builds a resolver whose overrides take precedence over the
// built-in table. Override keys use the "paper:size" form.
func NewSkuResolver(overrides map[string]string) *SkuResolver {
	normalized := make(map[string]string, len(overrides))
	for key, sku := range overrides {
		paper, size, ok := strings.Cut(key, ":")
		if !ok {
			continue
		}
		sku = strings.TrimSpace(sku)
		if sku == "" {
			continue
		}
		normalized[skuKey(paper, size)] = sku
	}
	return &SkuResolver{overrides: normalized}
}

// Resolve returns the SKU for paper and size, or false when unmapped.
func (r *SkuResolver) Resolve(paper, size string) (string, bool) {
	key := skuKey(paper, size)
	if key == ":" {
		return "", false
	}
	if r != nil {
		if sku, ok := r.overrides[key]; ok {
			return sku, true
		}
	}
	sku, ok := builtinSKUs[key]
	return sku, ok
}

func skuKey(paper, size string) string {
	return normalizeVariant(paper) + ":" + normalizeVariant(size)
}

func normalizeVariant(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	value = strings.ReplaceAll(value, "×", "x")
	value = strings.ReplaceAll(value, "\"", "")
	value = strings.ReplaceAll(value, "-", "")
	value = strings.ReplaceAll(value, "_", "")
	return strings.Join(strings.Fields(value), "")
}
