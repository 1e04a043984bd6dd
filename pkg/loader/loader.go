// Package loader accumulates product pages for the current query generation.
package loader

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/matst80/slask-catalog/pkg/arbiter"
	"github.com/matst80/slask-catalog/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

var staleDiscards = promauto.NewCounter(prometheus.CounterOpts{
	Name: "slaskcatalog_stale_responses_total",
	Help: "Responses dropped because a newer navigation superseded them",
})

// PageCursor points at the next page to request. Page starts at 1 and moves
// one step per appended page; ReportedTotal is what the server reported for
// the current query.
type PageCursor struct {
	Page          int `json:"page"`
	ReportedTotal int `json:"reportedTotal"`
}

// Snapshot is a consistent copy of the loader state.
type Snapshot struct {
	Token          arbiter.Token
	Query          types.CatalogQuery
	Items          []types.Product
	Cursor         PageCursor
	HasMore        bool
	IsLoadingFirst bool
	IsLoadingMore  bool
	TotalKnown     bool
	Err            error
}

type state struct {
	token        arbiter.Token
	query        types.CatalogQuery
	items        []types.Product
	cursor       PageCursor
	hasMore      bool
	loadingFirst bool
	loadingMore  bool
	inFlight     bool
	totalKnown   bool
	err          error
}

// Loader drives paging for one query at a time. All mutations happen under
// mu and only for the token the arbiter reports as current, so results of a
// superseded query never reach the accumulated set.
type Loader struct {
	mu        sync.Mutex
	state     state
	fetcher   PageFetcher
	arbiter   *arbiter.Arbiter
	discarded atomic.Uint64
	OnChange  func()
	Log       logrus.FieldLogger
}

func New(fetcher PageFetcher, arb *arbiter.Arbiter) *Loader {
	return &Loader{
		fetcher: fetcher,
		arbiter: arb,
		state:   state{cursor: PageCursor{Page: 1}},
		Log:     logrus.StandardLogger(),
	}
}

// Begin starts a new generation. Items, cursor and token are replaced in one
// step and the loader reports a pending first page until Start or Fail is
// called with the returned token.
func (l *Loader) Begin() arbiter.Token {
	l.mu.Lock()
	token := l.arbiter.Mint()
	l.state = state{
		token:        token,
		items:        []types.Product{},
		cursor:       PageCursor{Page: 1},
		loadingFirst: true,
		inFlight:     true,
	}
	l.mu.Unlock()
	l.changed()
	return token
}

// Start fetches the first page of query for a generation opened by Begin.
func (l *Loader) Start(ctx context.Context, token arbiter.Token, query types.CatalogQuery) error {
	query = query.Sanitize()
	l.mu.Lock()
	if !l.isCurrentLocked(token) {
		l.mu.Unlock()
		l.discard(token, "start")
		return nil
	}
	l.state.query = query
	l.mu.Unlock()
	return l.load(ctx, token, query, 1)
}

// Fail ends a generation before any page was requested, typically because
// the query could not be resolved.
func (l *Loader) Fail(token arbiter.Token, err error) {
	l.mu.Lock()
	if !l.isCurrentLocked(token) {
		l.mu.Unlock()
		l.discard(token, "fail")
		return
	}
	l.state.err = err
	l.state.loadingFirst = false
	l.state.inFlight = false
	l.state.hasMore = false
	l.mu.Unlock()
	l.changed()
}

// Reset replaces the query and loads its first page.
func (l *Loader) Reset(ctx context.Context, query types.CatalogQuery) error {
	token := l.Begin()
	return l.Start(ctx, token, query)
}

// Retry reloads the current query from page 1.
func (l *Loader) Retry(ctx context.Context) error {
	l.mu.Lock()
	query := l.state.query
	l.mu.Unlock()
	return l.Reset(ctx, query)
}

// LoadNextPage appends the next page. It returns immediately when there is
// nothing more to load or a page is already on its way. Failures after the
// first page end paging instead of being returned.
func (l *Loader) LoadNextPage(ctx context.Context) error {
	l.mu.Lock()
	if !l.state.hasMore || l.state.inFlight {
		l.mu.Unlock()
		return nil
	}
	l.state.inFlight = true
	l.state.loadingMore = true
	token, query, page := l.state.token, l.state.query, l.state.cursor.Page
	l.mu.Unlock()
	l.changed()
	return l.load(ctx, token, query, page)
}

func (l *Loader) load(ctx context.Context, token arbiter.Token, query types.CatalogQuery, page int) error {
	res, err := l.fetcher.Fetch(ctx, query, page, token)

	l.mu.Lock()
	if !l.isCurrentLocked(token) {
		l.mu.Unlock()
		l.discard(token, "page")
		return nil
	}
	s := &l.state
	s.inFlight = false
	if err != nil {
		s.hasMore = false
		if page <= 1 {
			s.loadingFirst = false
			s.items = []types.Product{}
			s.err = err
			l.mu.Unlock()
			l.changed()
			return err
		}
		s.loadingMore = false
		l.mu.Unlock()
		l.Log.WithField("token", token).Warnf("page %d failed, no more pages: %v", page, err)
		l.changed()
		return nil
	}

	total := max(res.ReportedTotal, 0)
	items := res.Items
	if room := total - len(s.items); len(items) > room {
		items = items[:max(room, 0)]
	}
	s.items = append(s.items, items...)
	s.cursor.ReportedTotal = total
	s.cursor.Page = page + 1
	s.totalKnown = true
	s.hasMore = len(s.items) < total && len(res.Items) >= query.PageSize
	s.loadingFirst = false
	s.loadingMore = false
	s.err = nil
	count, hasMore := len(s.items), s.hasMore
	l.mu.Unlock()

	l.Log.WithField("token", token).Debugf("page %d: got %d items, %d/%d accumulated, more: %v", page, len(res.Items), count, total, hasMore)
	l.changed()
	return nil
}

func (l *Loader) isCurrentLocked(token arbiter.Token) bool {
	return l.state.token == token && l.arbiter.IsCurrent(token)
}

func (l *Loader) discard(token arbiter.Token, what string) {
	l.discarded.Add(1)
	staleDiscards.Inc()
	l.Log.WithField("token", token).Debugf("discarding stale %s result", what)
}

func (l *Loader) changed() {
	if l.OnChange != nil {
		l.OnChange()
	}
}

// Discarded counts results dropped for a superseded token.
func (l *Loader) Discarded() uint64 {
	return l.discarded.Load()
}

func (l *Loader) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.state
	return Snapshot{
		Token:          s.token,
		Query:          s.query,
		Items:          s.items[:len(s.items):len(s.items)],
		Cursor:         s.cursor,
		HasMore:        s.hasMore,
		IsLoadingFirst: s.loadingFirst,
		IsLoadingMore:  s.loadingMore,
		TotalKnown:     s.totalKnown,
		Err:            s.err,
	}
}

// IsFirstPageError reports whether err is a FetchError for the first page.
func IsFirstPageError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.FirstPage()
}
