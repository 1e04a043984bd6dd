// Package catalog composes slug resolution, paging, local refinement and the
// price slider into one observable browse view.
package catalog

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/matst80/slask-catalog/pkg/arbiter"
	"github.com/matst80/slask-catalog/pkg/loader"
	"github.com/matst80/slask-catalog/pkg/refine"
	"github.com/matst80/slask-catalog/pkg/resolve"
	"github.com/matst80/slask-catalog/pkg/store"
	"github.com/matst80/slask-catalog/pkg/types"
	"github.com/matst80/slask-catalog/pkg/viewport"
	"github.com/sirupsen/logrus"
)

type SlugResolver interface {
	Resolve(ctx context.Context, req resolve.Request) (resolve.Result, error)
}

type Options struct {
	PageSize int
	// Margin is how many items before the end of the list loading starts.
	Margin   int
	Debounce time.Duration
	// Session scopes the wishlist and recently viewed lists, both are
	// skipped when Store is nil.
	Session string
	Store   store.Store
}

func DefaultOptions() Options {
	return Options{
		PageSize: types.DefaultPageSize,
		Margin:   6,
		Debounce: 250 * time.Millisecond,
	}
}

// ViewModel is the read only state handed to views.
type ViewModel struct {
	VisibleItems    []types.Product        `json:"visibleItems"`
	IsLoadingFirst  bool                   `json:"isLoadingFirst"`
	IsLoadingMore   bool                   `json:"isLoadingMore"`
	HasMore         bool                   `json:"hasMore"`
	PriceBounds     types.PriceBounds      `json:"priceBounds"`
	SelectedFilters types.LocalFilterState `json:"selectedFilters"`
	TotalKnown      bool                   `json:"totalKnown"`
	Total           int                    `json:"total"`
	Loaded          int                    `json:"loaded"`
	Query           types.CatalogQuery     `json:"query"`
	Url             string                 `json:"url"`
	Err             error                  `json:"-"`
	Error           string                 `json:"error,omitempty"`
	NotFound        bool                   `json:"notFound"`
	Materials       []refine.FilterOption  `json:"materials"`
	MaterialTypes   []refine.FilterOption  `json:"materialTypes"`
	Wishlist        store.List             `json:"wishlist"`
}

// Engine is the browse state machine for one viewer. Navigation goes through
// OnQueryChanged, local refinement through OnFilterChanged and the setters.
// Neither ever waits for the other: results of an older navigation are
// dropped by the loader's token check.
type Engine struct {
	Log logrus.FieldLogger

	opts     Options
	resolver SlugResolver
	arbiter  *arbiter.Arbiter
	loader   *loader.Loader

	mu           sync.Mutex
	route        Route
	filters      types.LocalFilterState
	bounds       types.PriceBounds
	view         ViewModel
	trigger      *viewport.Trigger
	triggerToken arbiter.Token
	wishlist     store.List
	subscribers  map[int]func(ViewModel)
	nextId       int
	unsubscribe  func()
}

func New(resolver SlugResolver, fetcher loader.PageFetcher, opts Options) *Engine {
	if opts.PageSize <= 0 {
		opts.PageSize = types.DefaultPageSize
	}
	arb := arbiter.New()
	e := &Engine{
		Log:         logrus.StandardLogger(),
		opts:        opts,
		resolver:    resolver,
		arbiter:     arb,
		loader:      loader.New(fetcher, arb),
		filters:     types.DefaultFilters(),
		subscribers: make(map[int]func(ViewModel)),
	}
	e.loader.OnChange = e.loaderChanged
	if opts.Store != nil && opts.Session != "" {
		key := store.WishlistKey(opts.Session)
		if list, err := opts.Store.Get(context.Background(), key); err == nil {
			e.wishlist = list
		} else {
			e.Log.Warnf("could not read wishlist: %v", err)
		}
		e.unsubscribe = opts.Store.Subscribe(key, e.wishlistChanged)
	}
	e.mu.Lock()
	e.recomputeLocked(e.loader.Snapshot())
	e.mu.Unlock()
	return e
}

// OnQueryChanged starts a new generation for route. Local filters go back to
// their defaults. It blocks until the first page or an error is in; a result
// that was superseded by a later navigation is dropped and nil is returned.
func (e *Engine) OnQueryChanged(ctx context.Context, route Route) error {
	token := e.loader.Begin()
	e.mu.Lock()
	// The route belongs to the generation, only the current one may set it.
	current := e.arbiter.IsCurrent(token)
	if current {
		e.route = route
		e.filters = types.DefaultFilters()
		e.bounds = types.PriceBounds{}
		e.detachTriggerLocked()
		e.recomputeLocked(e.loader.Snapshot())
	}
	e.mu.Unlock()
	if !current {
		return nil
	}
	e.notify()

	res, err := e.resolver.Resolve(ctx, route.ResolveRequest())
	if err != nil {
		e.loader.Fail(token, err)
		if !e.arbiter.IsCurrent(token) {
			return nil
		}
		e.Log.WithField("token", token).Infof("could not resolve %s: %v", route.Path(), err)
		return err
	}
	query := types.CatalogQuery{
		CategoryId:    res.CategoryId,
		SubCategoryId: res.SubCategoryId,
		Term:          route.Params.Term,
		PageSize:      e.opts.PageSize,
	}
	return e.loader.Start(ctx, token, query)
}

// Navigate parses an url and calls OnQueryChanged.
func (e *Engine) Navigate(ctx context.Context, rawUrl string) error {
	route, err := ParseURL(rawUrl)
	if err != nil {
		return err
	}
	return e.OnQueryChanged(ctx, route)
}

// Retry repeats the current navigation after a failed first page or a
// resolution error.
func (e *Engine) Retry(ctx context.Context) error {
	snap := e.loader.Snapshot()
	var resolutionErr *types.ResolutionError
	if errors.As(snap.Err, &resolutionErr) {
		e.mu.Lock()
		route := e.route
		e.mu.Unlock()
		return e.OnQueryChanged(ctx, route)
	}
	return e.loader.Retry(ctx)
}

// RequestMore loads the next page if there is one and none is in flight.
func (e *Engine) RequestMore(ctx context.Context) error {
	return e.loader.LoadNextPage(ctx)
}

// Viewport reports how many items remain below the visible area. It returns
// true when that started a page load.
func (e *Engine) Viewport(ctx context.Context, remaining int) bool {
	e.mu.Lock()
	trigger := e.trigger
	e.mu.Unlock()
	if trigger == nil {
		return false
	}
	return trigger.ObserveRemaining(ctx, remaining)
}

// OnFilterChanged replaces the local filters. A changed material clears the
// material type unless the type was changed as well.
func (e *Engine) OnFilterChanged(f types.LocalFilterState) {
	e.updateFilters(func(current types.LocalFilterState) types.LocalFilterState {
		next := f.Clone()
		if next.Material != current.Material && next.MaterialType == current.MaterialType {
			next.MaterialType = ""
		}
		return next.WithMaterialType(next.MaterialType).WithMinRating(next.MinRating).WithSort(next.Sort)
	})
}

func (e *Engine) SetMaterial(material string) {
	e.updateFilters(func(f types.LocalFilterState) types.LocalFilterState {
		return f.WithMaterial(material)
	})
}

func (e *Engine) SetMaterialType(materialType string) {
	e.updateFilters(func(f types.LocalFilterState) types.LocalFilterState {
		return f.WithMaterialType(materialType)
	})
}

func (e *Engine) SetInStockOnly(inStock bool) {
	e.updateFilters(func(f types.LocalFilterState) types.LocalFilterState {
		f.InStockOnly = inStock
		return f
	})
}

func (e *Engine) SetMinRating(rating float64) {
	e.updateFilters(func(f types.LocalFilterState) types.LocalFilterState {
		return f.WithMinRating(rating)
	})
}

// SetPriceRange moves the slider handles. When both are set and cross, the
// handle that was not moved is pushed.
func (e *Engine) SetPriceRange(minPrice, maxPrice *float64, moved refine.Handle) {
	e.updateFilters(func(f types.LocalFilterState) types.LocalFilterState {
		if minPrice != nil && maxPrice != nil {
			lo, hi := refine.ClampMoved(*minPrice, *maxPrice, moved, e.bounds)
			return f.WithPriceRange(&lo, &hi)
		}
		return f.WithPriceRange(minPrice, maxPrice)
	})
}

func (e *Engine) SetSort(order types.SortOrder) {
	e.updateFilters(func(f types.LocalFilterState) types.LocalFilterState {
		return f.WithSort(order)
	})
}

func (e *Engine) ResetFilters() {
	e.updateFilters(func(types.LocalFilterState) types.LocalFilterState {
		return types.DefaultFilters()
	})
}

// updateFilters and loaderChanged read the loader snapshot while holding mu,
// so a recompute never applies loader state older than the current view.
func (e *Engine) updateFilters(fn func(types.LocalFilterState) types.LocalFilterState) {
	e.mu.Lock()
	e.filters = refine.ClampFilters(fn(e.filters.Clone()), e.bounds)
	e.recomputeLocked(e.loader.Snapshot())
	e.mu.Unlock()
	e.notify()
}

// ToggleWishlist adds or removes id from the session wishlist.
func (e *Engine) ToggleWishlist(ctx context.Context, id types.ProductId) (store.List, error) {
	if e.opts.Store == nil {
		return nil, errors.New("no store configured")
	}
	return store.Toggle(ctx, e.opts.Store, store.WishlistKey(e.opts.Session), id)
}

// Viewed records id as the most recently viewed product.
func (e *Engine) Viewed(ctx context.Context, id types.ProductId) error {
	if e.opts.Store == nil {
		return nil
	}
	_, err := store.Push(ctx, e.opts.Store, store.RecentKey(e.opts.Session), id, store.RecentLimit)
	return err
}

func (e *Engine) wishlistChanged(list store.List) {
	e.mu.Lock()
	e.wishlist = list
	e.view.Wishlist = slices.Clone(list)
	e.mu.Unlock()
	e.notify()
}

func (e *Engine) loaderChanged() {
	e.mu.Lock()
	snap := e.loader.Snapshot()
	e.recomputeLocked(snap)
	e.syncTriggerLocked(snap)
	e.mu.Unlock()
	e.notify()
}

func (e *Engine) recomputeLocked(snap loader.Snapshot) {
	if bounds := refine.ComputeBounds(snap.Items); bounds != e.bounds {
		e.bounds = bounds
		e.filters = refine.ClampFilters(e.filters, bounds)
	}
	idx := refine.NewIndex(snap.Items)
	vm := ViewModel{
		VisibleItems:    idx.Apply(e.filters, snap.Query.Term),
		IsLoadingFirst:  snap.IsLoadingFirst,
		IsLoadingMore:   snap.IsLoadingMore,
		HasMore:         snap.HasMore,
		PriceBounds:     e.bounds,
		SelectedFilters: e.filters.Clone(),
		TotalKnown:      snap.TotalKnown,
		Total:           snap.Cursor.ReportedTotal,
		Loaded:          len(snap.Items),
		Query:           snap.Query,
		Url:             e.route.URL(),
		Err:             snap.Err,
		Materials:       idx.Materials(),
		MaterialTypes:   idx.MaterialTypes(e.filters.Material),
		Wishlist:        slices.Clone(e.wishlist),
	}
	if snap.Err != nil {
		vm.Error = snap.Err.Error()
		vm.NotFound = errors.Is(snap.Err, types.ErrNotFound)
	}
	e.view = vm
}

// syncTriggerLocked attaches a fresh trigger once the first page of a
// generation has landed with more to come, and detaches it when paging ends.
func (e *Engine) syncTriggerLocked(snap loader.Snapshot) {
	if snap.IsLoadingFirst {
		return
	}
	if snap.Token != e.triggerToken {
		e.detachTriggerLocked()
		if !snap.HasMore {
			return
		}
		token := snap.Token
		e.triggerToken = token
		e.trigger = viewport.New(e.opts.Margin, e.opts.Debounce, func(ctx context.Context) bool {
			if err := e.RequestMore(ctx); err != nil {
				e.Log.Warnf("load more failed: %v", err)
			}
			s := e.loader.Snapshot()
			return s.Token == token && s.HasMore
		})
		return
	}
	// Pages requested outside the trigger re-arm or end it here.
	if e.trigger == nil || snap.IsLoadingMore {
		return
	}
	e.trigger.Update(snap.HasMore)
	if e.trigger.Detached() {
		e.detachTriggerLocked()
	}
}

func (e *Engine) detachTriggerLocked() {
	if e.trigger != nil {
		e.trigger.Close()
		e.trigger = nil
	}
	e.triggerToken = arbiter.None
}

func (e *Engine) Snapshot() ViewModel {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.view
}

// Subscribe registers fn for every view change. It is called with the
// current view right away.
func (e *Engine) Subscribe(fn func(ViewModel)) func() {
	e.mu.Lock()
	e.nextId++
	id := e.nextId
	e.subscribers[id] = fn
	vm := e.view
	e.mu.Unlock()
	fn(vm)
	return func() {
		e.mu.Lock()
		delete(e.subscribers, id)
		e.mu.Unlock()
	}
}

func (e *Engine) notify() {
	e.mu.Lock()
	vm := e.view
	subs := make([]func(ViewModel), 0, len(e.subscribers))
	for _, fn := range e.subscribers {
		subs = append(subs, fn)
	}
	e.mu.Unlock()
	for _, fn := range subs {
		fn(vm)
	}
}

// Discarded counts results dropped because a newer navigation replaced them.
func (e *Engine) Discarded() uint64 {
	return e.loader.Discarded()
}

// Close detaches the viewport trigger and the wishlist subscription.
func (e *Engine) Close() {
	e.mu.Lock()
	e.detachTriggerLocked()
	unsubscribe := e.unsubscribe
	e.unsubscribe = nil
	e.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}
