package types

// LocalFilterState refines the accumulated result set without asking the
// server again.
type LocalFilterState struct {
	Material     string    `json:"material,omitempty"`
	MaterialType string    `json:"materialType,omitempty"`
	InStockOnly  bool      `json:"inStockOnly"`
	MinRating    float64   `json:"minRating"`
	MinPrice     *float64  `json:"minPrice,omitempty"`
	MaxPrice     *float64  `json:"maxPrice,omitempty"`
	Sort         SortOrder `json:"sort"`
}

func DefaultFilters() LocalFilterState {
	return LocalFilterState{Sort: SortFeatured}
}

// WithMaterial selects a material. Material types belong to a material so a
// changed material always clears the selected type.
func (f LocalFilterState) WithMaterial(material string) LocalFilterState {
	if f.Material != material {
		f.MaterialType = ""
	}
	f.Material = material
	return f
}

// WithMaterialType is ignored when no material is selected.
func (f LocalFilterState) WithMaterialType(materialType string) LocalFilterState {
	if f.Material == "" {
		f.MaterialType = ""
		return f
	}
	f.MaterialType = materialType
	return f
}

func (f LocalFilterState) WithPriceRange(minPrice, maxPrice *float64) LocalFilterState {
	f.MinPrice = copyPrice(minPrice)
	f.MaxPrice = copyPrice(maxPrice)
	return f
}

func (f LocalFilterState) WithMinRating(rating float64) LocalFilterState {
	f.MinRating = clamp(rating, 0, 5)
	return f
}

func (f LocalFilterState) WithSort(sort SortOrder) LocalFilterState {
	f.Sort = ParseSortOrder(string(sort))
	return f
}

// Clone returns a copy that shares no pointers with f.
func (f LocalFilterState) Clone() LocalFilterState {
	f.MinPrice = copyPrice(f.MinPrice)
	f.MaxPrice = copyPrice(f.MaxPrice)
	return f
}

func copyPrice(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func Price(v float64) *float64 {
	return &v
}

type PriceBounds struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

func (b PriceBounds) IsEmpty() bool {
	return b.Min == 0 && b.Max == 0
}

func (b PriceBounds) Contains(price float64) bool {
	return price >= b.Min && price <= b.Max
}
