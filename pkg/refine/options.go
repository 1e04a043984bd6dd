package refine

import (
	"cmp"
	"slices"

	"github.com/matst80/slask-catalog/pkg/types"
)

type FilterOption struct {
	Label string `json:"label"`
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Materials lists the materials present in the index with item counts.
func (idx *Index) Materials() []FilterOption {
	result := make([]FilterOption, 0, len(idx.materials))
	for material, bm := range idx.materials {
		result = append(result, FilterOption{Label: material, Value: material, Count: int(bm.GetCardinality())})
	}
	sortOptions(result)
	return result
}

// MaterialTypes lists the types available for material.
func (idx *Index) MaterialTypes(material string) []FilterOption {
	byType := idx.materialTypes[material]
	result := make([]FilterOption, 0, len(byType))
	for materialType, bm := range byType {
		result = append(result, FilterOption{Label: materialType, Value: materialType, Count: int(bm.GetCardinality())})
	}
	sortOptions(result)
	return result
}

// Options returns the material options for items and the types available
// for the selected material.
func Options(items []types.Product, material string) (materials, materialTypes []FilterOption) {
	idx := NewIndex(items)
	return idx.Materials(), idx.MaterialTypes(material)
}

func (idx *Index) InStockCount() int {
	return int(idx.inStock.GetCardinality())
}

func sortOptions(options []FilterOption) {
	slices.SortFunc(options, func(a, b FilterOption) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Label, b.Label)
	})
}
