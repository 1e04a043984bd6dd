package loader

import (
	"context"
	"fmt"
	"time"

	"github.com/matst80/slask-catalog/pkg/arbiter"
	"github.com/matst80/slask-catalog/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const name = "github.com/matst80/slask-catalog/pkg/loader"

var (
	tracer = otel.Tracer(name)

	pageFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slaskcatalog_page_fetches_total",
		Help: "Product page requests by outcome",
	}, []string{"outcome"})
	pageFetchSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "slaskcatalog_page_fetch_seconds",
		Help:    "Time spent fetching one product page",
		Buckets: prometheus.DefBuckets,
	})
)

// Page is one server page for a query.
type Page struct {
	Items         []types.Product
	ReportedTotal int
}

// FetchError is returned when the product service could not deliver a page.
type FetchError struct {
	Page  int
	Query types.CatalogQuery
	Token arbiter.Token
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch page %d (token %d): %v", e.Page, e.Token, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// FirstPage tells a failed initial load apart from a failed "load more".
func (e *FetchError) FirstPage() bool {
	return e.Page <= 1
}

type PageFetcher interface {
	Fetch(ctx context.Context, query types.CatalogQuery, page int, token arbiter.Token) (Page, error)
}

// Fetcher requests single pages from a ProductService. Every request carries
// the complete query, nothing is carried over from earlier pages.
type Fetcher struct {
	Service types.ProductService
}

func NewFetcher(service types.ProductService) *Fetcher {
	return &Fetcher{Service: service}
}

func (f *Fetcher) Fetch(ctx context.Context, query types.CatalogQuery, page int, token arbiter.Token) (Page, error) {
	ctx, span := tracer.Start(ctx, "FetchPage", trace.WithAttributes(
		attribute.Int("page", page),
		attribute.Int64("token", int64(token)),
		attribute.String("category", query.CategoryId),
		attribute.String("subcategory", query.SubCategoryId),
	))
	defer span.End()

	start := time.Now()
	res, err := f.Service.ListProducts(ctx, query.PageRequest(page))
	pageFetchSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		pageFetches.WithLabelValues("error").Inc()
		span.RecordError(err)
		return Page{}, &FetchError{Page: page, Query: query, Token: token, Err: err}
	}
	pageFetches.WithLabelValues("ok").Inc()
	return Page{Items: res.Items, ReportedTotal: res.Total}, nil
}
