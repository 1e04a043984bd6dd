package catalog

import (
	"errors"
	"net/url"
	"strings"

	"github.com/matst80/slask-catalog/pkg/resolve"
	"github.com/matst80/slask-catalog/pkg/types"
)

const BasePath = "/products"

var ErrUnknownRoute = errors.New("not a catalog route")

// Route is the navigable part of a catalog view. Local filters are not part
// of it.
type Route struct {
	CategorySlug    string
	SubCategorySlug string
	Params          types.UrlParams
}

// ParseRoute understands
//
//	/products
//	/products/category/{slug}
//	/products/category/{slug}/{subSlug}
//	/products/subcategory/{subSlug}
func ParseRoute(path string, query url.Values) (Route, error) {
	params, err := types.DecodeUrlParams(query)
	if err != nil {
		return Route{}, err
	}
	route := Route{Params: params}

	rest, ok := strings.CutPrefix(strings.TrimRight(path, "/"), BasePath)
	if !ok {
		return Route{}, ErrUnknownRoute
	}
	rest = strings.Trim(rest, "/")
	if rest == "" {
		return route, nil
	}
	parts := strings.Split(rest, "/")
	switch {
	case parts[0] == "category" && len(parts) == 2:
		route.CategorySlug = parts[1]
	case parts[0] == "category" && len(parts) == 3:
		route.CategorySlug = parts[1]
		route.SubCategorySlug = parts[2]
	case parts[0] == "subcategory" && len(parts) == 2:
		route.SubCategorySlug = parts[1]
	default:
		return Route{}, ErrUnknownRoute
	}
	for _, p := range parts[1:] {
		if p == "" {
			return Route{}, ErrUnknownRoute
		}
	}
	return route, nil
}

func ParseURL(raw string) (Route, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Route{}, err
	}
	return ParseRoute(u.Path, u.Query())
}

func (r Route) Path() string {
	switch {
	case r.CategorySlug != "" && r.SubCategorySlug != "":
		return BasePath + "/category/" + url.PathEscape(r.CategorySlug) + "/" + url.PathEscape(r.SubCategorySlug)
	case r.CategorySlug != "":
		return BasePath + "/category/" + url.PathEscape(r.CategorySlug)
	case r.SubCategorySlug != "":
		return BasePath + "/subcategory/" + url.PathEscape(r.SubCategorySlug)
	}
	return BasePath
}

// URL gives the shareable address that parses back into the same route.
func (r Route) URL() string {
	values := r.Params.Values()
	if len(values) == 0 {
		return r.Path()
	}
	return r.Path() + "?" + values.Encode()
}

func (r Route) ResolveRequest() resolve.Request {
	return resolve.Request{
		CategorySlug:          r.CategorySlug,
		SubCategorySlug:       r.SubCategorySlug,
		ExplicitCategoryId:    r.Params.CategoryId,
		ExplicitSubCategoryId: r.Params.SubCategoryId,
	}
}
