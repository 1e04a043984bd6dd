package main

import (
	"context"
	"net/http"
	"time"

	"github.com/matst80/slask-catalog/pkg/catalog"
	"github.com/matst80/slask-catalog/pkg/client"
	"github.com/matst80/slask-catalog/pkg/common"
	"github.com/matst80/slask-catalog/pkg/config"
	"github.com/matst80/slask-catalog/pkg/loader"
	"github.com/matst80/slask-catalog/pkg/messaging"
	"github.com/matst80/slask-catalog/pkg/resolve"
	"github.com/matst80/slask-catalog/pkg/server"
	"github.com/matst80/slask-catalog/pkg/store"
	"github.com/matst80/slask-catalog/pkg/tracking"
	"github.com/matst80/slask-catalog/pkg/types"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	redisPrefix = "slaskcatalog:"
	listTtl     = 30 * 24 * time.Hour
)

type app struct {
	cfg      *config.Config
	conn     *amqp.Connection
	taxonomy *client.CachedTaxonomy
	tracker  types.Tracking
	lists    store.Store
	sessions *server.Sessions
	closers  []func() error
}

// ConnectAmqp drops the cached category lists whenever the catalog service
// announces a taxonomy change.
func (a *app) ConnectAmqp() error {
	conn, err := amqp.DialConfig(a.cfg.RabbitUrl, amqp.Config{
		Properties: amqp.NewConnectionProperties(),
	})
	if err != nil {
		return err
	}
	a.conn = conn
	a.closers = append(a.closers, conn.Close)
	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	err = messaging.ListenToTopic(ch, messaging.GlobalPrefix, messaging.TaxonomyChanged, func(change types.TaxonomyChange) error {
		logrus.Infof("got taxonomy change for %s %s", change.Kind, change.Id)
		return a.taxonomy.Invalidate(context.Background())
	})
	if err != nil {
		return err
	}
	logrus.Info("listening for taxonomy changes")
	return nil
}

func (a *app) ConnectTracking() {
	trk, err := tracking.NewRabbitTracking(messaging.RabbitConfig{Url: a.cfg.RabbitUrl}, a.cfg.Country)
	if err != nil {
		logrus.Warnf("failed to connect to rabbitmq for tracking: %v", err)
		return
	}
	a.tracker = trk
	a.closers = append(a.closers, trk.Close)
}

// useRedis opens one redis client shared by the category cache and the
// session list store.
func (a *app) useRedis() *client.RedisCache {
	rdb := redis.NewClient(&redis.Options{
		Addr:     a.cfg.RedisUrl,
		Password: a.cfg.RedisPassword,
		DB:       a.cfg.RedisDb,
	})
	a.closers = append(a.closers, rdb.Close)
	lists := store.NewRedisStore(rdb, redisPrefix, listTtl)
	a.lists = lists
	a.closers = append(a.closers, lists.Close)
	return client.NewRedisCache(rdb, redisPrefix)
}

func (a *app) newEngine(resolver *resolve.Resolver, fetcher *loader.Fetcher) server.EngineFactory {
	return func(sessionId string) *catalog.Engine {
		return catalog.New(resolver, fetcher, catalog.Options{
			PageSize: a.cfg.PageSize,
			Margin:   a.cfg.ViewportMargin,
			Debounce: a.cfg.ViewportDebounce,
			Session:  sessionId,
			Store:    a.lists,
		})
	}
}

func (a *app) shutdown(ctx context.Context) error {
	a.sessions.Close()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logrus.Warnf("close failed: %v", err)
		}
	}
	return nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("could not load config: %v", err)
	}
	cfg.ConfigureLogging()

	a := &app{cfg: cfg}
	api := client.New(cfg.CatalogApiUrl, cfg.HttpTimeout)

	var cache client.Cache = client.NewMemoryCache()
	a.lists = store.NewMemoryStore()
	if cfg.UseRedis() {
		cache = a.useRedis()
		logrus.Infof("category cache and session lists in redis at %s", cfg.RedisUrl)
	}
	a.taxonomy = client.NewCachedTaxonomy(api, cache, cfg.CategoryCacheTtl)

	if cfg.UseRabbit() {
		if err := a.ConnectAmqp(); err != nil {
			logrus.Warnf("failed to listen for taxonomy changes: %v", err)
		}
		a.ConnectTracking()
	}

	resolver := resolve.New(a.taxonomy, a.taxonomy)
	fetcher := loader.NewFetcher(api)
	a.sessions = server.NewSessions(a.newEngine(resolver, fetcher), cfg.SessionTtl)
	a.sessions.StartJanitor(time.Minute)

	ws := &server.WebServer{
		Sessions:   a.sessions,
		Categories: a.taxonomy,
		Tracking:   a.tracker,
		Store:      a.lists,
	}
	srv := common.NewServerWithTimeouts(&http.Server{
		Addr:    cfg.ListenAddress,
		Handler: ws.Handle(),
	}, cfg.Timeouts)

	if err := common.RunServerWithShutdown(context.Background(), srv, "slask-catalog", cfg.Timeouts, a.shutdown); err != nil {
		logrus.Fatalf("server failed: %v", err)
	}
}
