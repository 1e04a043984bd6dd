// Package resolve turns category and subcategory url slugs into the ids the
// product service filters on.
package resolve

import (
	"context"
	"fmt"

	"github.com/matst80/slask-catalog/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
)

const name = "github.com/matst80/slask-catalog/pkg/resolve"

var (
	tracer = otel.Tracer(name)

	resolutionMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slaskcatalog_resolution_failures_total",
		Help: "Slugs that could not be resolved, by kind and reason",
	}, []string{"kind", "reason"})
)

type Request struct {
	CategorySlug          string
	SubCategorySlug       string
	ExplicitCategoryId    string
	ExplicitSubCategoryId string
}

type Result struct {
	CategoryId    string
	SubCategoryId string
}

type Resolver struct {
	Categories    types.CategoryService
	SubCategories types.SubCategoryService
	Log           logrus.FieldLogger
}

func New(categories types.CategoryService, subCategories types.SubCategoryService) *Resolver {
	return &Resolver{
		Categories:    categories,
		SubCategories: subCategories,
		Log:           logrus.StandardLogger(),
	}
}

// Resolve maps the request onto ids. Explicit ids always win over slugs. A
// subcategory slug is first looked up under the resolved category, falling
// back to all subcategories only when the scoped list is empty.
func (r *Resolver) Resolve(ctx context.Context, req Request) (Result, error) {
	ctx, span := tracer.Start(ctx, "Resolve")
	defer span.End()

	result := Result{
		CategoryId:    req.ExplicitCategoryId,
		SubCategoryId: req.ExplicitSubCategoryId,
	}

	if result.CategoryId == "" && req.CategorySlug != "" {
		category, err := r.findCategory(ctx, req.CategorySlug)
		if err != nil {
			return Result{}, err
		}
		result.CategoryId = category.Id
	}

	if result.SubCategoryId == "" && req.SubCategorySlug != "" {
		sub, err := r.findSubCategory(ctx, result.CategoryId, req.SubCategorySlug)
		if err != nil {
			return Result{}, err
		}
		result.SubCategoryId = sub.Id
		if result.CategoryId == "" {
			result.CategoryId = sub.CategoryId
		}
	}
	return result, nil
}

func (r *Resolver) findCategory(ctx context.Context, slug string) (*types.Category, error) {
	categories, err := r.Categories.ListCategories(ctx)
	if err != nil {
		return nil, r.unavailable("category", slug, err)
	}
	for i := range categories {
		if categories[i].MatchesSlug(slug) {
			return &categories[i], nil
		}
	}
	return nil, r.notFound("category", slug)
}

func (r *Resolver) findSubCategory(ctx context.Context, categoryId, slug string) (*types.SubCategory, error) {
	var candidates []types.SubCategory
	var err error
	if categoryId != "" {
		candidates, err = r.SubCategories.ListSubCategories(ctx, categoryId)
		if err != nil {
			return nil, r.unavailable("subcategory", slug, err)
		}
	}
	if len(candidates) == 0 {
		candidates, err = r.SubCategories.ListSubCategories(ctx, "")
		if err != nil {
			return nil, r.unavailable("subcategory", slug, err)
		}
	}
	for i := range candidates {
		if candidates[i].MatchesSlug(slug) {
			return &candidates[i], nil
		}
	}
	return nil, r.notFound("subcategory", slug)
}

func (r *Resolver) notFound(kind, slug string) error {
	resolutionMisses.WithLabelValues(kind, "not_found").Inc()
	r.Log.Debugf("no %s matches slug %q", kind, slug)
	return &types.ResolutionError{Kind: kind, Slug: slug, Err: types.ErrNotFound}
}

func (r *Resolver) unavailable(kind, slug string, err error) error {
	resolutionMisses.WithLabelValues(kind, "unavailable").Inc()
	r.Log.Warnf("could not list %s for slug %q: %v", kind, slug, err)
	return &types.ResolutionError{Kind: kind, Slug: slug, Err: fmt.Errorf("%w: %w", types.ErrUnavailable, err)}
}
