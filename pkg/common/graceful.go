package common

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

// ShutdownHook is a function executed after a termination signal is received
// but before the HTTP server begins its graceful shutdown. If a hook returns
// an error it will be logged; shutdown continues regardless.
type ShutdownHook func(ctx context.Context) error

// TimeoutConfig holds server and shutdown related timeouts.
type TimeoutConfig struct {
	ReadHeader time.Duration `env:"READ_HEADER_TIMEOUT,default=5s"`
	Read       time.Duration `env:"READ_TIMEOUT,default=15s"`
	Write      time.Duration `env:"WRITE_TIMEOUT,default=30s"`
	Idle       time.Duration `env:"IDLE_TIMEOUT,default=60s"`
	Shutdown   time.Duration `env:"SHUTDOWN_TIMEOUT,default=15s"`
	Hook       time.Duration `env:"HOOK_TIMEOUT,default=5s"`
}

// NewServerWithTimeouts attaches timeout settings to an existing *http.Server or creates a new one if nil.
func NewServerWithTimeouts(base *http.Server, cfg TimeoutConfig) *http.Server {
	if base == nil {
		base = &http.Server{}
	}
	base.ReadHeaderTimeout = cfg.ReadHeader
	base.ReadTimeout = cfg.Read
	base.WriteTimeout = cfg.Write
	base.IdleTimeout = cfg.Idle
	return base
}

// RunServerWithShutdown serves until ctx is done or SIGINT/SIGTERM arrives,
// then runs the hooks in order, each bounded by cfg.Hook, and shuts the
// server down within cfg.Shutdown. A listen error is returned right away.
//
// Typical usage in main:
//
//	server := common.NewServerWithTimeouts(&http.Server{Addr: ":8080", Handler: mux}, timeouts)
//	err := common.RunServerWithShutdown(ctx, server, "storefront", timeouts, closeTracking)
func RunServerWithShutdown(ctx context.Context, server *http.Server, name string, cfg TimeoutConfig, hooks ...ShutdownHook) error {
	listener, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return err
	}
	return Serve(ctx, server, listener, name, cfg, hooks...)
}

// Serve is RunServerWithShutdown on an existing listener.
func Serve(ctx context.Context, server *http.Server, listener net.Listener, name string, cfg TimeoutConfig, hooks ...ShutdownHook) error {
	if cfg.Hook <= 0 {
		cfg.Hook = 5 * time.Second
	}
	if cfg.Shutdown <= 0 {
		cfg.Shutdown = 15 * time.Second
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logrus.Infof("starting %s on %s", name, listener.Addr())
		serveErr <- server.Serve(listener)
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	logrus.Infof("shutdown signal received for %s", name)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown)
	defer cancel()

	for i, h := range hooks {
		if h == nil {
			continue
		}
		hCtx, hCancel := context.WithTimeout(shutdownCtx, cfg.Hook)
		if err := h(hCtx); err != nil {
			logrus.Warnf("shutdown hook %d failed: %v", i, err)
		}
		if errors.Is(hCtx.Err(), context.DeadlineExceeded) {
			logrus.Warnf("shutdown hook %d timed out", i)
		}
		hCancel()
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logrus.Infof("%s shutdown complete", name)
	return nil
}
