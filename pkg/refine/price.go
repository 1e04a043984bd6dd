package refine

import (
	"math"

	"github.com/matst80/slask-catalog/pkg/types"
)

type Handle int

const (
	HandleMin Handle = iota
	HandleMax
)

// ComputeBounds returns the range of positive prices in items. Callers pass
// the whole accumulated set so the slider does not shrink when other filters
// narrow the visible slice.
func ComputeBounds(items []types.Product) types.PriceBounds {
	lo, hi := math.Inf(1), math.Inf(-1)
	for i := range items {
		p := items[i].Price
		if p <= 0 {
			continue
		}
		lo = min(lo, p)
		hi = max(hi, p)
	}
	if math.IsInf(lo, 1) {
		return types.PriceBounds{}
	}
	return types.PriceBounds{Min: lo, Max: hi}
}

// Clamp keeps both handles inside bounds and minPrice <= maxPrice, treating
// the low handle as the one being moved.
func Clamp(minPrice, maxPrice float64, bounds types.PriceBounds) (float64, float64) {
	return ClampMoved(minPrice, maxPrice, HandleMin, bounds)
}

// ClampMoved pushes the handle that was not moved out of the way when the
// handles cross.
func ClampMoved(minPrice, maxPrice float64, moved Handle, bounds types.PriceBounds) (float64, float64) {
	if !bounds.IsEmpty() {
		minPrice = limit(minPrice, bounds)
		maxPrice = limit(maxPrice, bounds)
	}
	if minPrice > maxPrice {
		if moved == HandleMax {
			minPrice = maxPrice
		} else {
			maxPrice = minPrice
		}
	}
	return minPrice, maxPrice
}

func limit(v float64, bounds types.PriceBounds) float64 {
	return max(bounds.Min, min(v, bounds.Max))
}

// ClampFilters re-applies the bounds to the selected price band. Unset sides
// stay unset.
func ClampFilters(f types.LocalFilterState, bounds types.PriceBounds) types.LocalFilterState {
	f = f.Clone()
	if bounds.IsEmpty() {
		return f
	}
	switch {
	case f.MinPrice != nil && f.MaxPrice != nil:
		lo, hi := Clamp(*f.MinPrice, *f.MaxPrice, bounds)
		f.MinPrice, f.MaxPrice = &lo, &hi
	case f.MinPrice != nil:
		lo := limit(*f.MinPrice, bounds)
		f.MinPrice = &lo
	case f.MaxPrice != nil:
		hi := limit(*f.MaxPrice, bounds)
		f.MaxPrice = &hi
	}
	return f
}
