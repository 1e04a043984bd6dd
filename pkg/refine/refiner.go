// Package refine holds the client side refinement of an accumulated result
// set: local key filters, price band, free text and sort order, plus the
// price slider model.
package refine

import (
	"cmp"
	"slices"

	"github.com/matst80/slask-catalog/pkg/types"
)

// Apply filters and sorts items. It never modifies items and returns a new
// slice, so the same input always gives the same output.
func Apply(items []types.Product, f types.LocalFilterState, term string) []types.Product {
	return NewIndex(items).Apply(f, term)
}

func (idx *Index) Apply(f types.LocalFilterState, term string) []types.Product {
	result := idx.Match(f, term)
	Sort(result, f.Sort)
	return result
}

// Sort orders items in place. The sort is stable so equal items keep the
// order the server returned them in.
func Sort(items []types.Product, order types.SortOrder) {
	switch order {
	case types.SortFeatured:
		return
	case types.SortNewArrivals:
		slices.SortStableFunc(items, func(a, b types.Product) int {
			return compareBool(a.IsNew(), b.IsNew())
		})
	case types.SortBestSeller:
		slices.SortStableFunc(items, func(a, b types.Product) int {
			return cmp.Compare(b.ReviewsCount, a.ReviewsCount)
		})
	case types.SortPriceAsc:
		slices.SortStableFunc(items, func(a, b types.Product) int {
			return cmp.Compare(a.Price, b.Price)
		})
	case types.SortPriceDesc:
		slices.SortStableFunc(items, func(a, b types.Product) int {
			return cmp.Compare(b.Price, a.Price)
		})
	default:
		slices.SortStableFunc(items, func(a, b types.Product) int {
			return cmp.Compare(b.Rating, a.Rating)
		})
	}
}

// true sorts first
func compareBool(a, b bool) int {
	if a == b {
		return 0
	}
	if a {
		return -1
	}
	return 1
}
