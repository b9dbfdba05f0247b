// Package service runs the embedded loopback HTTP service consumed by the
// desktop shell.
package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"

	"github.com/maloquacious/embedsvc/internal/logger"
	"github.com/maloquacious/embedsvc/internal/store"
)

// ErrBind wraps a failure to bind the listen address.
var ErrBind = errors.New("service bind failed")

// Runner serves the embedded routes until its shutdown channel closes.
//
// Listen and Serve are split so a caller can surface bind failures before
// handing the runner to a background goroutine.
type Runner struct {
	cfg    Config
	log    logger.Logger
	server *http.Server

	mu       sync.Mutex
	listener net.Listener
}

// New creates a runner. users may be nil when no store is wired in.
func New(cfg Config, users store.UserLookup, log logger.Logger) *Runner {
	cfg.applyDefaults()
	if log == nil {
		log = logger.Default
	}
	return &Runner{
		cfg: cfg,
		log: log,
		server: &http.Server{
			Handler: NewRouter(cfg, users, log),
		},
	}
}

// Handler returns the router served by the runner.
func (r *Runner) Handler() http.Handler {
	return r.server.Handler
}

// Listen binds the configured address. There is no retry and no fallback port.
func (r *Runner) Listen() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.listener != nil {
		return fmt.Errorf("%w: already listening on %s", ErrBind, r.listener.Addr())
	}

	addr := net.JoinHostPort(r.cfg.BindAddress, strconv.Itoa(r.cfg.listenPort()))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrBind, addr, err)
	}
	r.listener = ln
	return nil
}

// Addr returns the bound address, or nil before Listen succeeds.
func (r *Runner) Addr() net.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.listener == nil {
		return nil
	}
	return r.listener.Addr()
}

// Serve accepts connections until done is closed, then stops accepting and
// waits for in-flight requests to finish.
func (r *Runner) Serve(done <-chan struct{}) error {
	r.mu.Lock()
	ln := r.listener
	r.mu.Unlock()
	if ln == nil {
		return fmt.Errorf("serve called before listen")
	}

	errCh := make(chan error, 1)
	go func() {
		r.log.Info("embedded service listening on http://%s", ln.Addr())
		if err := r.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-done:
		r.log.Info("embedded service shutdown signal received")
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("embedded service failed: %w", err)
		}
		return nil
	}

	ctx := context.Background()
	if r.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.ShutdownTimeout)
		defer cancel()
	}

	if err := r.server.Shutdown(ctx); err != nil {
		r.log.Error("embedded service shutdown error: %v", err)
		return fmt.Errorf("embedded service shutdown: %w", err)
	}
	<-errCh
	r.log.Info("embedded service stopped")
	return nil
}

// Run binds and serves until done is closed.
func (r *Runner) Run(done <-chan struct{}) error {
	if err := r.Listen(); err != nil {
		return err
	}
	return r.Serve(done)
}
