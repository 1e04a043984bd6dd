package refine

import (
	"strings"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/matst80/slask-catalog/pkg/types"
)

// Index keeps position bitmaps for the key filters over one accumulated
// result set. Positions are indexes into the slice the index was built from,
// so iterating a bitmap yields items in input order.
type Index struct {
	items         []types.Product
	all           *roaring.Bitmap
	inStock       *roaring.Bitmap
	materials     map[string]*roaring.Bitmap
	materialTypes map[string]map[string]*roaring.Bitmap
}

func NewIndex(items []types.Product) *Index {
	idx := &Index{
		items:         items,
		all:           roaring.New(),
		inStock:       roaring.New(),
		materials:     make(map[string]*roaring.Bitmap),
		materialTypes: make(map[string]map[string]*roaring.Bitmap),
	}
	for i := range items {
		idx.add(uint32(i), &items[i])
	}
	return idx
}

func (idx *Index) add(pos uint32, item *types.Product) {
	idx.all.Add(pos)
	if item.HasStock() {
		idx.inStock.Add(pos)
	}
	if item.Material == "" {
		return
	}
	bm, ok := idx.materials[item.Material]
	if !ok {
		bm = roaring.New()
		idx.materials[item.Material] = bm
	}
	bm.Add(pos)
	if item.MaterialType == "" {
		return
	}
	byType, ok := idx.materialTypes[item.Material]
	if !ok {
		byType = make(map[string]*roaring.Bitmap)
		idx.materialTypes[item.Material] = byType
	}
	tbm, ok := byType[item.MaterialType]
	if !ok {
		tbm = roaring.New()
		byType[item.MaterialType] = tbm
	}
	tbm.Add(pos)
}

func (idx *Index) Len() int {
	return len(idx.items)
}

// keyMatch intersects the bitmap backed filters. The result is always a new
// bitmap owned by the caller.
func (idx *Index) keyMatch(f types.LocalFilterState) *roaring.Bitmap {
	result := idx.all.Clone()
	if f.Material != "" {
		bm, ok := idx.materials[f.Material]
		if !ok {
			return roaring.New()
		}
		result.And(bm)
		if f.MaterialType != "" {
			tbm, ok := idx.materialTypes[f.Material][f.MaterialType]
			if !ok {
				return roaring.New()
			}
			result.And(tbm)
		}
	}
	if f.InStockOnly {
		result.And(idx.inStock)
	}
	return result
}

// Match returns the items passing every local filter in input order.
func (idx *Index) Match(f types.LocalFilterState, term string) []types.Product {
	matching := idx.keyMatch(f)
	needle := types.FoldText(strings.TrimSpace(term))
	band := priceBand(f)
	result := make([]types.Product, 0, matching.GetCardinality())
	it := matching.Iterator()
	for it.HasNext() {
		item := &idx.items[it.Next()]
		if item.Rating < f.MinRating {
			continue
		}
		if !band.contains(item.Price) {
			continue
		}
		if needle != "" && !strings.Contains(item.SearchText(), needle) {
			continue
		}
		result = append(result, *item)
	}
	return result
}

type band struct {
	min, max float64
	hasMin   bool
	hasMax   bool
}

func priceBand(f types.LocalFilterState) band {
	b := band{}
	if f.MinPrice != nil {
		b.min, b.hasMin = *f.MinPrice, true
	}
	if f.MaxPrice != nil {
		b.max, b.hasMax = *f.MaxPrice, true
	}
	return b
}

// An unset side is open, which is the same as the observed range for every
// positive price.
func (b band) contains(price float64) bool {
	if b.hasMin && price < b.min {
		return false
	}
	if b.hasMax && price > b.max {
		return false
	}
	return true
}
