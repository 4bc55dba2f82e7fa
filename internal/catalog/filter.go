package catalog

import (
	"sort"
	"strings"

	"github.com/fjod/milkshop/internal/domain"
)

// Sort orders accepted by Filter.
const (
	SortFeatured  = "featured"
	SortPriceLow  = "price-low"
	SortPriceHigh = "price-high"
	SortRating    = "rating"
)

// Filter narrows a product browse. Zero values match everything.
type Filter struct {
	// Search matches a case-insensitive substring of the name.
	Search string
	// Category "all" is the same as no category.
	Category string
	Sort     string
}

// Apply returns the products matching f in the requested order. Products
// with equal keys keep their stored order, as does the featured sort.
func Apply(products []domain.Product, f Filter) []domain.Product {
	search := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if search != "" && !strings.Contains(strings.ToLower(p.Name), search) {
			continue
		}
		if f.Category != "" && f.Category != "all" && p.Category != f.Category {
			continue
		}
		out = append(out, p)
	}

	switch f.Sort {
	case SortPriceLow:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Price < out[j].Price })
	case SortPriceHigh:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Price > out[j].Price })
	case SortRating:
		sort.SliceStable(out, func(i, j int) bool { return rating(out[i]) > rating(out[j]) })
	}
	return out
}

// unrated products sort last
func rating(p domain.Product) float64 {
	if p.Rating == nil {
		return -1
	}
	return *p.Rating
}
