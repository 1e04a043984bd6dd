package types

import (
	"net/url"
	"strings"

	"github.com/gorilla/schema"
)

const (
	DefaultPageSize = 30
	MaxPageSize     = 200
)

// CatalogQuery holds the server facing parameters for one navigation. It is
// a value type, a new navigation replaces it as a whole.
type CatalogQuery struct {
	CategoryId    string `json:"categoryId,omitempty" schema:"categoryId,omitempty"`
	SubCategoryId string `json:"subCategoryId,omitempty" schema:"subCategoryId,omitempty"`
	Term          string `json:"q,omitempty" schema:"q,omitempty"`
	PageSize      int    `json:"pageSize" schema:"-"`
}

// ProductListRequest is what goes on the wire for a single page.
type ProductListRequest struct {
	CategoryId    string `schema:"categoryId,omitempty"`
	SubCategoryId string `schema:"subCategoryId,omitempty"`
	Search        string `schema:"search,omitempty"`
	Page          int    `schema:"page"`
	PageSize      int    `schema:"pageSize"`
}

var decoder = schema.NewDecoder()
var encoder = schema.NewEncoder()

func init() {
	decoder.IgnoreUnknownKeys(true)
}

func clamp[T int | float64](value, min, max T) T {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

func (q CatalogQuery) Sanitize() CatalogQuery {
	if q.PageSize <= 0 {
		q.PageSize = DefaultPageSize
	}
	q.PageSize = clamp(q.PageSize, 1, MaxPageSize)
	q.CategoryId = strings.TrimSpace(q.CategoryId)
	q.SubCategoryId = strings.TrimSpace(q.SubCategoryId)
	q.Term = strings.TrimSpace(q.Term)
	return q
}

func (q CatalogQuery) IsZero() bool {
	return q.CategoryId == "" && q.SubCategoryId == "" && q.Term == ""
}

// PageRequest builds the request for the given 1-based page.
func (q CatalogQuery) PageRequest(page int) ProductListRequest {
	return ProductListRequest{
		CategoryId:    q.CategoryId,
		SubCategoryId: q.SubCategoryId,
		Search:        q.Term,
		Page:          max(page, 1),
		PageSize:      q.PageSize,
	}
}

func (r ProductListRequest) Values() (url.Values, error) {
	values := url.Values{}
	err := encoder.Encode(r, values)
	return values, err
}

// UrlParams are the query string parameters a navigation carries besides its
// path segments.
type UrlParams struct {
	Term          string `schema:"q"`
	CategoryId    string `schema:"categoryId"`
	SubCategoryId string `schema:"subCategoryId"`
}

func DecodeUrlParams(values url.Values) (UrlParams, error) {
	params := UrlParams{}
	err := decoder.Decode(&params, values)
	params.Term = strings.TrimSpace(params.Term)
	params.CategoryId = strings.TrimSpace(params.CategoryId)
	params.SubCategoryId = strings.TrimSpace(params.SubCategoryId)
	return params, err
}

func (p UrlParams) Values() url.Values {
	values := url.Values{}
	if p.Term != "" {
		values.Set("q", p.Term)
	}
	if p.CategoryId != "" {
		values.Set("categoryId", p.CategoryId)
	}
	if p.SubCategoryId != "" {
		values.Set("subCategoryId", p.SubCategoryId)
	}
	return values
}
