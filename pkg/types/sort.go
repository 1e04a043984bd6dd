package types

import "strings"

type SortOrder string

const (
	SortFeatured    SortOrder = "featured"
	SortNewArrivals SortOrder = "new"
	SortBestSeller  SortOrder = "bestseller"
	SortPriceAsc    SortOrder = "price-asc"
	SortPriceDesc   SortOrder = "price-desc"
	SortRating      SortOrder = "rating"
)

var sortAliases = map[string]SortOrder{
	"":                  SortFeatured,
	"featured":          SortFeatured,
	"new":               SortNewArrivals,
	"new arrivals":      SortNewArrivals,
	"new-arrivals":      SortNewArrivals,
	"bestseller":        SortBestSeller,
	"best seller":       SortBestSeller,
	"best-seller":       SortBestSeller,
	"price-asc":         SortPriceAsc,
	"price low to high": SortPriceAsc,
	"price-desc":        SortPriceDesc,
	"price high to low": SortPriceDesc,
	"rating":            SortRating,
}

// ParseSortOrder maps the labels used by the storefront onto a SortOrder.
// Unknown labels fall back to rating, the default ordering.
func ParseSortOrder(value string) SortOrder {
	if s, ok := sortAliases[strings.ToLower(strings.TrimSpace(value))]; ok {
		return s
	}
	return SortRating
}
