// Package server is the storefront backend: it keeps a browse engine per
// session and exposes its view model over http.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/matst80/slask-catalog/pkg/catalog"
	"github.com/matst80/slask-catalog/pkg/common"
	"github.com/matst80/slask-catalog/pkg/loader"
	"github.com/matst80/slask-catalog/pkg/store"
	"github.com/matst80/slask-catalog/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	navigations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slaskcatalog_navigations_total",
		Help: "Browse navigations by outcome",
	}, []string{"outcome"})
	loadMores = promauto.NewCounter(prometheus.CounterOpts{
		Name: "slaskcatalog_load_more_total",
		Help: "Load more requests, from the viewport or explicit",
	})
)

type WebServer struct {
	Sessions   *Sessions
	Categories types.CategoryService
	Tracking   types.Tracking
	Store      store.Store
}

type ViewportRequest struct {
	Remaining int `json:"remaining"`
}

type ViewportResponse struct {
	Loaded bool              `json:"loaded"`
	View   catalog.ViewModel `json:"view"`
}

// background keeps a fetch alive when the client goes away. Superseded
// results are dropped by token, not by cancelling the request.
func background(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

func outcome(err error) string {
	var resolutionErr *types.ResolutionError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &resolutionErr) && resolutionErr.NotFound():
		return "not_found"
	case errors.As(err, &resolutionErr):
		return "unavailable"
	case loader.IsFirstPageError(err):
		return "fetch_error"
	}
	return "error"
}

func (ws *WebServer) track(sessionId string, vm catalog.ViewModel) {
	if ws.Tracking == nil {
		return
	}
	page := 0
	if vm.Query.PageSize > 0 {
		page = (vm.Loaded + vm.Query.PageSize - 1) / vm.Query.PageSize
	}
	ws.Tracking.TrackBrowse(sessionId, types.BrowseEvent{
		Path:          vm.Url,
		CategoryId:    vm.Query.CategoryId,
		SubCategoryId: vm.Query.SubCategoryId,
		Query:         vm.Query.Term,
		Total:         vm.Total,
		Page:          page,
		Error:         vm.Error,
	})
}

// Browse navigates the session to the catalog path after /api/browse. Lookup
// and first page failures are part of the returned view.
func (ws *WebServer) Browse(w http.ResponseWriter, r *http.Request, sessionId string) (any, error) {
	route, err := catalog.ParseRoute("/"+strings.TrimPrefix(r.PathValue("path"), "/"), r.URL.Query())
	if err != nil {
		return nil, common.WithStatus(http.StatusNotFound, err)
	}
	engine := ws.Sessions.Get(sessionId)
	err = engine.OnQueryChanged(background(r), route)
	navigations.WithLabelValues(outcome(err)).Inc()
	vm := engine.Snapshot()
	ws.track(sessionId, vm)
	return vm, nil
}

func (ws *WebServer) View(w http.ResponseWriter, r *http.Request, sessionId string) (any, error) {
	return ws.Sessions.Get(sessionId).Snapshot(), nil
}

func (ws *WebServer) Filters(w http.ResponseWriter, r *http.Request, sessionId string) (any, error) {
	filters := types.DefaultFilters()
	if err := common.DecodeJson(r, &filters); err != nil {
		return nil, err
	}
	engine := ws.Sessions.Get(sessionId)
	engine.OnFilterChanged(filters)
	return engine.Snapshot(), nil
}

func (ws *WebServer) ResetFilters(w http.ResponseWriter, r *http.Request, sessionId string) (any, error) {
	engine := ws.Sessions.Get(sessionId)
	engine.ResetFilters()
	return engine.Snapshot(), nil
}

func (ws *WebServer) More(w http.ResponseWriter, r *http.Request, sessionId string) (any, error) {
	engine := ws.Sessions.Get(sessionId)
	loadMores.Inc()
	if err := engine.RequestMore(background(r)); err != nil {
		return nil, common.WithStatus(http.StatusBadGateway, err)
	}
	vm := engine.Snapshot()
	ws.track(sessionId, vm)
	return vm, nil
}

func (ws *WebServer) Viewport(w http.ResponseWriter, r *http.Request, sessionId string) (any, error) {
	req := ViewportRequest{}
	if err := common.DecodeJson(r, &req); err != nil {
		return nil, err
	}
	engine := ws.Sessions.Get(sessionId)
	loaded := engine.Viewport(background(r), req.Remaining)
	if loaded {
		loadMores.Inc()
		ws.track(sessionId, engine.Snapshot())
	}
	return ViewportResponse{Loaded: loaded, View: engine.Snapshot()}, nil
}

func (ws *WebServer) Retry(w http.ResponseWriter, r *http.Request, sessionId string) (any, error) {
	engine := ws.Sessions.Get(sessionId)
	err := engine.Retry(background(r))
	navigations.WithLabelValues(outcome(err)).Inc()
	return engine.Snapshot(), nil
}

func (ws *WebServer) ListCategories(w http.ResponseWriter, r *http.Request, sessionId string) (any, error) {
	categories, err := ws.Categories.ListCategories(r.Context())
	if err != nil {
		return nil, common.WithStatus(http.StatusBadGateway, err)
	}
	active := make([]types.Category, 0, len(categories))
	for _, c := range categories {
		if c.IsActive {
			active = append(active, c)
		}
	}
	return active, nil
}

func (ws *WebServer) Wishlist(w http.ResponseWriter, r *http.Request, sessionId string) (any, error) {
	return ws.list(r.Context(), store.WishlistKey(sessionId))
}

func (ws *WebServer) ToggleWishlist(w http.ResponseWriter, r *http.Request, sessionId string) (any, error) {
	id := types.ProductId(r.PathValue("id"))
	return ws.Sessions.Get(sessionId).ToggleWishlist(r.Context(), id)
}

func (ws *WebServer) Recent(w http.ResponseWriter, r *http.Request, sessionId string) (any, error) {
	return ws.list(r.Context(), store.RecentKey(sessionId))
}

func (ws *WebServer) Viewed(w http.ResponseWriter, r *http.Request, sessionId string) (any, error) {
	id := types.ProductId(r.PathValue("id"))
	if err := ws.Sessions.Get(sessionId).Viewed(r.Context(), id); err != nil {
		return nil, err
	}
	return ws.list(r.Context(), store.RecentKey(sessionId))
}

func (ws *WebServer) list(ctx context.Context, key string) (store.List, error) {
	if ws.Store == nil {
		return store.List{}, nil
	}
	list, err := ws.Store.Get(ctx, key)
	if list == nil {
		list = store.List{}
	}
	return list, err
}

func (ws *WebServer) Handle() *http.ServeMux {
	srv := http.NewServeMux()
	handle := func(pattern string, fn func(http.ResponseWriter, *http.Request, string) (any, error)) {
		srv.HandleFunc(pattern, common.JsonHandler(ws.Tracking, fn))
	}

	srv.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	srv.Handle("/metrics", promhttp.Handler())
	srv.HandleFunc("OPTIONS /api/", common.RespondToOptions)

	handle("GET /api/browse/{path...}", ws.Browse)
	handle("GET /api/view", ws.View)
	handle("POST /api/filters", ws.Filters)
	handle("DELETE /api/filters", ws.ResetFilters)
	handle("POST /api/more", ws.More)
	handle("POST /api/viewport", ws.Viewport)
	handle("POST /api/retry", ws.Retry)
	handle("GET /api/categories", ws.ListCategories)
	handle("GET /api/wishlist", ws.Wishlist)
	handle("POST /api/wishlist/{id}", ws.ToggleWishlist)
	handle("GET /api/recent", ws.Recent)
	handle("POST /api/viewed/{id}", ws.Viewed)

	return srv
}
