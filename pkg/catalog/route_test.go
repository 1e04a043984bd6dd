package catalog

import (
	"net/url"
	"testing"

	"github.com/matst80/slask-catalog/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestParseRoute(t *testing.T) {
	cases := []struct {
		url      string
		expected Route
	}{
		{"/products", Route{}},
		{"/products/", Route{}},
		{"/products/category/rings", Route{CategorySlug: "rings"}},
		{"/products/category/rings/gold-rings", Route{CategorySlug: "rings", SubCategorySlug: "gold-rings"}},
		{"/products/subcategory/studs", Route{SubCategorySlug: "studs"}},
		{"/products/category/rings?q=+diamond+", Route{CategorySlug: "rings", Params: types.UrlParams{Term: "diamond"}}},
		{"/products?categoryId=c1&subCategoryId=s1&sort=price-asc", Route{Params: types.UrlParams{CategoryId: "c1", SubCategoryId: "s1"}}},
		{"/products/category/Gold%20Rings", Route{CategorySlug: "Gold Rings"}},
	}
	for _, c := range cases {
		route, err := ParseURL(c.url)
		if err != nil {
			t.Errorf("%s: unexpected error %v", c.url, err)
			continue
		}
		assert.Equal(t, c.expected, route, c.url)
	}
}

func TestParseRouteRejectsOtherPaths(t *testing.T) {
	for _, path := range []string{"/", "/cart", "/products/category", "/products/category/a/b/c", "/products/brand/x", "/productsx"} {
		_, err := ParseRoute(path, url.Values{})
		assert.ErrorIs(t, err, ErrUnknownRoute, path)
	}
}

func TestRouteURLRoundTrip(t *testing.T) {
	routes := []Route{
		{},
		{CategorySlug: "rings"},
		{CategorySlug: "rings", SubCategorySlug: "gold rings"},
		{SubCategorySlug: "studs", Params: types.UrlParams{Term: "pearl"}},
		{Params: types.UrlParams{CategoryId: "c1", Term: "a&b"}},
	}
	for _, r := range routes {
		parsed, err := ParseURL(r.URL())
		assert.NoError(t, err)
		assert.Equal(t, r, parsed, r.URL())
	}
	assert.Equal(t, "/products/category/rings?q=gold", Route{CategorySlug: "rings", Params: types.UrlParams{Term: "gold"}}.URL())
}

func TestResolveRequestCarriesExplicitIds(t *testing.T) {
	r := Route{CategorySlug: "rings", Params: types.UrlParams{CategoryId: "c9"}}
	req := r.ResolveRequest()
	assert.Equal(t, "rings", req.CategorySlug)
	assert.Equal(t, "c9", req.ExplicitCategoryId)
}
