package types

import "strings"

type ProductId string

// Product is a catalog item as returned by the product service.
type Product struct {
	Id             ProductId `json:"id"`
	Name           string    `json:"name"`
	Slug           string    `json:"slug,omitempty"`
	Price          float64   `json:"price"`
	CompareAtPrice *float64  `json:"compareAtPrice,omitempty"`
	Material       string    `json:"material"`
	MaterialType   string    `json:"materialType,omitempty"`
	Metal          string    `json:"metal,omitempty"`
	Purity         string    `json:"purity,omitempty"`
	Category       string    `json:"category"`
	CategoryId     string    `json:"categoryId,omitempty"`
	SubCategoryId  string    `json:"subCategoryId,omitempty"`
	Rating         float64   `json:"rating"`
	ReviewsCount   int       `json:"reviewsCount"`
	Stock          int       `json:"stock"`
	Badge          string    `json:"badge,omitempty"`
	Image          string    `json:"image,omitempty"`
}

const NewBadge = "new"

func (p *Product) HasStock() bool {
	return p.Stock > 0
}

func (p *Product) IsNew() bool {
	return strings.EqualFold(strings.TrimSpace(p.Badge), NewBadge)
}

// Discount returns the amount saved against the compare-at price, zero when
// there is no higher reference price.
func (p *Product) Discount() float64 {
	if p.CompareAtPrice == nil || *p.CompareAtPrice <= p.Price {
		return 0
	}
	return *p.CompareAtPrice - p.Price
}

// SearchText is the folded haystack used for free text matching.
func (p *Product) SearchText() string {
	return FoldText(strings.Join([]string{p.Name, p.Category, p.Metal, p.Purity, p.Material}, " "))
}

// ProductList is one page of products together with the total the service
// reports for the whole query.
type ProductList struct {
	Items []Product `json:"items"`
	Total int       `json:"total"`
}
