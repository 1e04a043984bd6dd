package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matst80/slask-catalog/pkg/arbiter"
	"github.com/matst80/slask-catalog/pkg/loader"
	"github.com/matst80/slask-catalog/pkg/refine"
	"github.com/matst80/slask-catalog/pkg/resolve"
	"github.com/matst80/slask-catalog/pkg/store"
	"github.com/matst80/slask-catalog/pkg/types"
	"github.com/stretchr/testify/assert"
)

type taxonomy struct {
	mu      sync.Mutex
	failing bool
}

func (t *taxonomy) ListCategories(ctx context.Context) ([]types.Category, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failing {
		return nil, errors.New("connection refused")
	}
	return []types.Category{
		{Id: "c-rings", Name: "Rings", Slug: "rings", IsActive: true},
		{Id: "c-necklaces", Name: "Necklaces", Slug: "necklaces", IsActive: true},
	}, nil
}

func (t *taxonomy) ListSubCategories(ctx context.Context, categoryId string) ([]types.SubCategory, error) {
	subs := []types.SubCategory{
		{Id: "s-gold-rings", Name: "Gold Rings", CategoryId: "c-rings"},
	}
	if categoryId == "" || categoryId == "c-rings" {
		return subs, nil
	}
	return nil, nil
}

func (t *taxonomy) setFailing(failing bool) {
	t.mu.Lock()
	t.failing = failing
	t.mu.Unlock()
}

func jewelry(category string, n int) []types.Product {
	items := make([]types.Product, n)
	for i := range items {
		p := types.Product{
			Id:           types.ProductId(fmt.Sprintf("%s-%d", category, i)),
			Name:         fmt.Sprintf("%s %d", category, i),
			Category:     category,
			CategoryId:   "c-" + category,
			Price:        float64(100 + i*10),
			Rating:       float64(i % 6),
			ReviewsCount: i,
			Stock:        i % 3,
		}
		if i%2 == 0 {
			p.Material = "gold"
			p.MaterialType = []string{"22k", "18k"}[i%4/2]
		} else {
			p.Material = "silver"
			p.MaterialType = "925"
		}
		items[i] = p
	}
	return items
}

// catalogService answers product pages per category id.
type catalogService struct {
	mu       sync.Mutex
	products map[string][]types.Product
	requests int
}

func (s *catalogService) ListProducts(ctx context.Context, req types.ProductListRequest) (types.ProductList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests++
	all := s.products[req.CategoryId]
	start := min((req.Page-1)*req.PageSize, len(all))
	end := min(start+req.PageSize, len(all))
	return types.ProductList{Items: all[start:end], Total: len(all)}, nil
}

func (s *catalogService) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

func newTestEngine(opts Options) (*Engine, *catalogService, *taxonomy) {
	tax := &taxonomy{}
	svc := &catalogService{products: map[string][]types.Product{
		"c-rings":     jewelry("rings", 45),
		"c-necklaces": jewelry("necklaces", 12),
	}}
	e := New(resolve.New(tax, tax), loader.NewFetcher(svc), opts)
	return e, svc, tax
}

func TestScenarioFirstPageThenViewport(t *testing.T) {
	e, svc, _ := newTestEngine(Options{PageSize: 30, Margin: 6})
	ctx := context.Background()

	if err := e.Navigate(ctx, "/products/category/rings"); err != nil {
		t.Fatalf("navigate failed: %v", err)
	}
	vm := e.Snapshot()
	assert.Len(t, vm.VisibleItems, 30)
	assert.True(t, vm.HasMore)
	assert.False(t, vm.IsLoadingFirst)
	assert.Equal(t, 45, vm.Total)

	assert.False(t, e.Viewport(ctx, 20), "sentinel still far away")
	assert.True(t, e.Viewport(ctx, 4))
	vm = e.Snapshot()
	assert.Len(t, vm.VisibleItems, 45)
	assert.False(t, vm.HasMore)
	assert.False(t, e.Viewport(ctx, 0), "trigger detaches when everything is loaded")
	assert.Equal(t, 2, svc.count())
}

func TestLocalFiltersNeverFetch(t *testing.T) {
	e, svc, _ := newTestEngine(Options{PageSize: 30})
	ctx := context.Background()
	e.Navigate(ctx, "/products/category/rings")

	e.SetMaterial("gold")
	e.SetMaterialType("22k")
	vm := e.Snapshot()
	assert.NotEmpty(t, vm.VisibleItems)
	for _, item := range vm.VisibleItems {
		assert.Equal(t, "22k", item.MaterialType)
	}

	e.SetMaterial("silver")
	vm = e.Snapshot()
	assert.Equal(t, "", vm.SelectedFilters.MaterialType, "changing material clears the type")
	for _, item := range vm.VisibleItems {
		assert.Equal(t, "silver", item.Material)
	}

	e.SetInStockOnly(true)
	e.SetMinRating(3)
	e.SetSort(types.SortPriceDesc)
	vm = e.Snapshot()
	for i, item := range vm.VisibleItems {
		assert.True(t, item.Stock > 0)
		assert.GreaterOrEqual(t, item.Rating, 3.0)
		if i > 0 {
			assert.LessOrEqual(t, item.Price, vm.VisibleItems[i-1].Price)
		}
	}
	assert.Equal(t, 1, svc.count())
}

func TestOnFilterChangedClearsTypeForNewMaterial(t *testing.T) {
	e, _, _ := newTestEngine(Options{PageSize: 30})
	e.Navigate(context.Background(), "/products/category/rings")

	f := types.DefaultFilters().WithMaterial("gold").WithMaterialType("22k")
	e.OnFilterChanged(f)
	assert.Equal(t, "22k", e.Snapshot().SelectedFilters.MaterialType)

	f.Material = "silver"
	e.OnFilterChanged(f)
	assert.Equal(t, "silver", e.Snapshot().SelectedFilters.Material)
	assert.Equal(t, "", e.Snapshot().SelectedFilters.MaterialType)

	f = types.DefaultFilters().WithMaterial("gold")
	f.MaterialType = "18k"
	e.OnFilterChanged(f)
	assert.Equal(t, "18k", e.Snapshot().SelectedFilters.MaterialType, "type chosen together with a new material is kept")
}

func TestNavigationResetsLocalFilters(t *testing.T) {
	e, _, _ := newTestEngine(Options{PageSize: 30})
	ctx := context.Background()
	e.Navigate(ctx, "/products/category/rings")
	e.SetMaterial("gold")
	e.SetSort(types.SortBestSeller)

	e.Navigate(ctx, "/products/category/necklaces")
	vm := e.Snapshot()
	assert.Equal(t, types.DefaultFilters(), vm.SelectedFilters)
	assert.Len(t, vm.VisibleItems, 12)
	assert.Equal(t, "/products/category/necklaces", vm.Url)
}

func TestUnknownSlugShowsNotFound(t *testing.T) {
	e, svc, _ := newTestEngine(Options{PageSize: 30})
	err := e.Navigate(context.Background(), "/products/category/bracelets")

	var resolutionErr *types.ResolutionError
	assert.True(t, errors.As(err, &resolutionErr))
	vm := e.Snapshot()
	assert.True(t, vm.NotFound)
	assert.Empty(t, vm.VisibleItems)
	assert.False(t, vm.IsLoadingFirst)
	assert.NotEmpty(t, vm.Error)
	assert.Equal(t, 0, svc.count())
}

func TestRetryAfterUnavailableTaxonomy(t *testing.T) {
	e, _, tax := newTestEngine(Options{PageSize: 30})
	ctx := context.Background()
	tax.setFailing(true)

	err := e.Navigate(ctx, "/products/category/necklaces")
	assert.ErrorIs(t, err, types.ErrUnavailable)
	vm := e.Snapshot()
	assert.False(t, vm.NotFound)
	assert.Empty(t, vm.VisibleItems)

	tax.setFailing(false)
	assert.NoError(t, e.Retry(ctx))
	vm = e.Snapshot()
	assert.Nil(t, vm.Err)
	assert.Len(t, vm.VisibleItems, 12)
}

func TestSubcategorySlugAdoptsParent(t *testing.T) {
	e, _, _ := newTestEngine(Options{PageSize: 30})
	e.Navigate(context.Background(), "/products/subcategory/gold-rings")
	vm := e.Snapshot()
	assert.Equal(t, "c-rings", vm.Query.CategoryId)
	assert.Equal(t, "s-gold-rings", vm.Query.SubCategoryId)
}

func TestPriceRangeStaysInsideBounds(t *testing.T) {
	e, _, _ := newTestEngine(Options{PageSize: 30})
	e.Navigate(context.Background(), "/products/category/necklaces")
	vm := e.Snapshot()
	assert.Equal(t, types.PriceBounds{Min: 100, Max: 210}, vm.PriceBounds)

	e.SetPriceRange(types.Price(180), types.Price(120), refine.HandleMin)
	f := e.Snapshot().SelectedFilters
	assert.Equal(t, 180.0, *f.MinPrice)
	assert.Equal(t, 180.0, *f.MaxPrice)

	e.SetPriceRange(types.Price(10), types.Price(9000), refine.HandleMax)
	vm = e.Snapshot()
	assert.Equal(t, 100.0, *vm.SelectedFilters.MinPrice)
	assert.Equal(t, 210.0, *vm.SelectedFilters.MaxPrice)
	assert.Len(t, vm.VisibleItems, 12)
}

func TestSubscribersFollowChanges(t *testing.T) {
	e, _, _ := newTestEngine(Options{PageSize: 30})
	var mu sync.Mutex
	var views []ViewModel
	unsubscribe := e.Subscribe(func(vm ViewModel) {
		mu.Lock()
		views = append(views, vm)
		mu.Unlock()
	})
	e.Navigate(context.Background(), "/products/category/necklaces")
	unsubscribe()
	e.SetSort(types.SortRating)

	mu.Lock()
	defer mu.Unlock()
	assert.GreaterOrEqual(t, len(views), 3)
	assert.True(t, views[1].IsLoadingFirst)
	last := views[len(views)-1]
	assert.Len(t, last.VisibleItems, 12)
	assert.Equal(t, types.SortFeatured, last.SelectedFilters.Sort)
}

func TestWishlistFromInjectedStore(t *testing.T) {
	s := store.NewMemoryStore()
	e, _, _ := newTestEngine(Options{PageSize: 30, Session: "abc", Store: s})
	defer e.Close()
	ctx := context.Background()

	_, err := e.ToggleWishlist(ctx, "rings-1")
	assert.NoError(t, err)
	assert.Equal(t, store.List{"rings-1"}, e.Snapshot().Wishlist)

	assert.NoError(t, e.Viewed(ctx, "rings-2"))
	recent, _ := s.Get(ctx, store.RecentKey("abc"))
	assert.Equal(t, store.List{"rings-2"}, recent)
}

type pending struct {
	query types.CatalogQuery
	reply chan loader.Page
}

type gatedFetcher struct {
	calls chan pending
}

func (f *gatedFetcher) Fetch(ctx context.Context, query types.CatalogQuery, page int, token arbiter.Token) (loader.Page, error) {
	p := pending{query: query, reply: make(chan loader.Page, 1)}
	f.calls <- p
	return <-p.reply, nil
}

func (f *gatedFetcher) next(t *testing.T) pending {
	t.Helper()
	select {
	case p := <-f.calls:
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for fetch")
		return pending{}
	}
}

func TestScenarioSlowRingsNeverReplaceNecklaces(t *testing.T) {
	f := &gatedFetcher{calls: make(chan pending, 4)}
	e := New(resolve.New(&taxonomy{}, &taxonomy{}), f, Options{PageSize: 30})
	ctx := context.Background()
	done := make(chan error, 2)

	go func() { done <- e.Navigate(ctx, "/products/category/rings") }()
	rings := f.next(t)
	assert.Equal(t, "c-rings", rings.query.CategoryId)

	go func() { done <- e.Navigate(ctx, "/products/category/necklaces") }()
	necklaces := f.next(t)
	assert.Equal(t, "c-necklaces", necklaces.query.CategoryId)

	necklaces.reply <- loader.Page{Items: jewelry("necklaces", 12), ReportedTotal: 12}
	rings.reply <- loader.Page{Items: jewelry("rings", 30), ReportedTotal: 45}
	<-done
	<-done

	vm := e.Snapshot()
	assert.Len(t, vm.VisibleItems, 12)
	for _, item := range vm.VisibleItems {
		assert.Equal(t, "necklaces", item.Category)
	}
	assert.Equal(t, "c-necklaces", vm.Query.CategoryId)
	assert.Equal(t, uint64(1), e.Discarded())
}

func TestScenarioEarlyRingsReplyIsDropped(t *testing.T) {
	f := &gatedFetcher{calls: make(chan pending, 4)}
	e := New(resolve.New(&taxonomy{}, &taxonomy{}), f, Options{PageSize: 30})
	ctx := context.Background()
	ringsDone := make(chan error, 1)
	necklacesDone := make(chan error, 1)

	go func() { ringsDone <- e.Navigate(ctx, "/products/category/rings") }()
	rings := f.next(t)
	go func() { necklacesDone <- e.Navigate(ctx, "/products/category/necklaces") }()
	necklaces := f.next(t)

	rings.reply <- loader.Page{Items: jewelry("rings", 30), ReportedTotal: 45}
	<-ringsDone
	vm := e.Snapshot()
	assert.Empty(t, vm.VisibleItems)
	assert.True(t, vm.IsLoadingFirst)

	necklaces.reply <- loader.Page{Items: jewelry("necklaces", 12), ReportedTotal: 12}
	<-necklacesDone
	vm = e.Snapshot()
	assert.Len(t, vm.VisibleItems, 12)
	assert.False(t, vm.HasMore)
}

// holdView blocks recomputes of e while fn moves the loader on its own, so a
// setter started before fn has to wait for the engine lock.
func holdView(t *testing.T, e *Engine, setter func(), fn func()) {
	t.Helper()
	e.mu.Lock()
	done := make(chan struct{})
	go func() {
		setter()
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	e.loader.OnChange = nil
	fn()
	e.loader.OnChange = e.loaderChanged
	e.mu.Unlock()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("setter never finished")
	}
}

func TestFilterChangeDuringNavigationShowsLatestItems(t *testing.T) {
	e, _, _ := newTestEngine(Options{PageSize: 30})
	ctx := context.Background()
	e.Navigate(ctx, "/products/category/rings")

	holdView(t, e, func() { e.SetMinRating(0) }, func() {
		err := e.loader.Reset(ctx, types.CatalogQuery{CategoryId: "c-necklaces", PageSize: 30})
		assert.NoError(t, err)
	})

	vm := e.Snapshot()
	assert.Equal(t, "c-necklaces", vm.Query.CategoryId)
	assert.Equal(t, 12, vm.Loaded)
	assert.Len(t, vm.VisibleItems, 12)
	for _, item := range vm.VisibleItems {
		assert.Equal(t, "necklaces", item.Category)
	}
	assert.Equal(t, types.PriceBounds{Min: 100, Max: 210}, vm.PriceBounds)
}

func TestPriceChangeDuringLoadMoreKeepsNewPage(t *testing.T) {
	e, _, _ := newTestEngine(Options{PageSize: 30})
	ctx := context.Background()
	e.Navigate(ctx, "/products/category/rings")

	holdView(t, e, func() { e.SetPriceRange(types.Price(100), types.Price(1000), refine.HandleMax) }, func() {
		assert.NoError(t, e.loader.LoadNextPage(ctx))
	})

	vm := e.Snapshot()
	assert.Equal(t, 45, vm.Loaded)
	assert.False(t, vm.HasMore)
	assert.Equal(t, types.PriceBounds{Min: 100, Max: 540}, vm.PriceBounds)
	assert.NotEmpty(t, vm.VisibleItems)
	for _, item := range vm.VisibleItems {
		assert.GreaterOrEqual(t, item.Price, *vm.SelectedFilters.MinPrice)
		assert.LessOrEqual(t, item.Price, *vm.SelectedFilters.MaxPrice)
	}
}

func TestConcurrentFiltersAndNavigationSettle(t *testing.T) {
	e, _, _ := newTestEngine(Options{PageSize: 30})
	ctx := context.Background()
	paths := map[string]string{
		"c-rings":     "/products/category/rings",
		"c-necklaces": "/products/category/necklaces",
	}
	order := []string{"c-rings", "c-necklaces"}

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			e.Navigate(ctx, paths[order[i%2]])
		}()
		go func() {
			defer wg.Done()
			e.SetMinRating(float64(i % 3))
			e.SetPriceRange(types.Price(150), nil, refine.HandleMin)
			e.RequestMore(ctx)
		}()
	}
	wg.Wait()

	vm := e.Snapshot()
	snap := e.loader.Snapshot()
	assert.Equal(t, snap.Query, vm.Query)
	assert.Equal(t, len(snap.Items), vm.Loaded)
	assert.Equal(t, snap.HasMore, vm.HasMore)
	assert.False(t, vm.IsLoadingFirst)
	assert.Equal(t, paths[vm.Query.CategoryId], vm.Url)
}

func TestNestedNavigationOwnsRoute(t *testing.T) {
	e, _, tax := newTestEngine(Options{PageSize: 30})
	ctx := context.Background()
	tax.setFailing(true)

	var started atomic.Bool
	var nestedErr error
	e.Subscribe(func(vm ViewModel) {
		if vm.IsLoadingFirst && started.CompareAndSwap(false, true) {
			nestedErr = e.Navigate(ctx, "/products/category/necklaces")
		}
	})

	assert.NoError(t, e.Navigate(ctx, "/products/category/rings"), "superseded navigation reports nothing")
	assert.ErrorIs(t, nestedErr, types.ErrUnavailable)
	assert.Equal(t, "/products/category/necklaces", e.Snapshot().Url)

	tax.setFailing(false)
	assert.NoError(t, e.Retry(ctx))
	vm := e.Snapshot()
	assert.Equal(t, "c-necklaces", vm.Query.CategoryId)
	assert.Len(t, vm.VisibleItems, 12)
	assert.Equal(t, "/products/category/necklaces", vm.Url)
}

func TestExplicitMoreRearmsViewport(t *testing.T) {
	e, svc, _ := newTestEngine(Options{PageSize: 15, Margin: 2})
	ctx := context.Background()
	e.Navigate(ctx, "/products/category/rings")

	assert.NoError(t, e.RequestMore(ctx))
	assert.Equal(t, 30, e.Snapshot().Loaded)
	assert.True(t, e.Viewport(ctx, 1), "trigger still armed after a page loaded outside it")
	assert.Equal(t, 45, e.Snapshot().Loaded)
	assert.False(t, e.Viewport(ctx, 0))

	e.mu.Lock()
	detached := e.trigger == nil
	e.mu.Unlock()
	assert.True(t, detached)
	assert.Equal(t, 3, svc.count())
}

func TestExplicitLastPageDetachesViewport(t *testing.T) {
	e, _, _ := newTestEngine(Options{PageSize: 30})
	ctx := context.Background()
	e.Navigate(ctx, "/products/category/rings")

	e.mu.Lock()
	trigger := e.trigger
	e.mu.Unlock()
	assert.NotNil(t, trigger)

	assert.NoError(t, e.RequestMore(ctx))
	assert.True(t, trigger.Detached())
	assert.False(t, e.Viewport(ctx, 0))
}
