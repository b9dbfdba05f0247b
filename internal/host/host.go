// Package host wires the local store and the embedded service together the
// way the desktop shell does: initialize the store, start the service in the
// background, and stop it once when the main window goes away.
package host

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/maloquacious/embedsvc/internal/config"
	"github.com/maloquacious/embedsvc/internal/greeting"
	"github.com/maloquacious/embedsvc/internal/logger"
	"github.com/maloquacious/embedsvc/internal/service"
	"github.com/maloquacious/embedsvc/internal/shutdown"
	"github.com/maloquacious/embedsvc/internal/store"
	"github.com/maloquacious/embedsvc/internal/store/sqlite"
)

// Host owns the shared store handle, the service runner and the shutdown trigger.
type Host struct {
	cfg     config.Config
	svcCfg  service.Config
	log     logger.Logger
	trigger *shutdown.Trigger

	store  *sqlite.SQLiteStore
	runner *service.Runner

	startOnce sync.Once
	done      chan struct{}
	serveErr  error
}

// New creates a host. The embedded service listens on its fixed loopback
// address; WithServiceConfig exists for tests.
func New(cfg config.Config, log logger.Logger) *Host {
	if log == nil {
		log = logger.Default
	}
	return &Host{
		cfg:     cfg,
		svcCfg:  service.Config{ShutdownTimeout: cfg.ShutdownTimeout},
		log:     log,
		trigger: shutdown.New(),
		done:    make(chan struct{}),
	}
}

// WithServiceConfig overrides the listener settings. BindPort and
// BindAddress are taken from svc; UseStore and ShutdownTimeout still follow
// the host configuration.
func (h *Host) WithServiceConfig(svc service.Config) *Host {
	h.svcCfg.BindAddress = svc.BindAddress
	h.svcCfg.BindPort = svc.BindPort
	return h
}

// Start initializes the store, binds the service and serves it on a
// background goroutine. It returns once the listener is bound.
func (h *Host) Start() error {
	err := errors.New("host already started")
	h.startOnce.Do(func() {
		err = h.start()
	})
	return err
}

func (h *Host) start() error {
	st, err := sqlite.Initialize(h.cfg.DataDir, sqlite.Options{Seed: h.cfg.Seed})
	if err != nil {
		if h.cfg.OnInitFailure != config.PolicyContinueDegraded {
			h.log.Error("failed to initialize database: %v", err)
			return err
		}
		h.log.Warn("failed to initialize database, continuing without store: %v", err)
	} else {
		h.store = st
		h.log.Info("database ready at %s", st.Path())
	}

	// A typed nil must not reach the runner as a non-nil interface.
	var users store.UserLookup
	if h.cfg.DBBacked && h.store != nil {
		users = h.store
	}

	svcCfg := h.svcCfg
	svcCfg.UseStore = h.cfg.DBBacked
	h.runner = service.New(svcCfg, users, h.log)

	if err := h.runner.Listen(); err != nil {
		h.log.Error("embedded service cannot start: %v", err)
		h.closeStore()
		return err
	}

	go func() {
		defer close(h.done)
		h.serveErr = h.runner.Serve(h.trigger.Done())
	}()
	return nil
}

// WindowDestroyed fires the shutdown signal. Only the first call has an effect.
func (h *Host) WindowDestroyed() {
	if h.trigger.Fire() {
		h.log.Info("window destroyed, stopping embedded service")
	}
}

// Wait blocks until the service has stopped, then closes the store.
func (h *Host) Wait() error {
	if h.runner == nil {
		return fmt.Errorf("host not started")
	}
	<-h.done
	h.closeStore()
	return h.serveErr
}

// Greet is the synchronous command exposed to the shell UI.
func (h *Host) Greet(name string) string {
	return greeting.Format(name)
}

// Store returns the shared store handle, or nil when running degraded.
func (h *Host) Store() *sqlite.SQLiteStore {
	return h.store
}

// Addr returns the service address once Start succeeded.
func (h *Host) Addr() net.Addr {
	if h.runner == nil {
		return nil
	}
	return h.runner.Addr()
}

func (h *Host) closeStore() {
	if h.store == nil {
		return
	}
	if err := h.store.Close(); err != nil {
		h.log.Warn("failed to close database: %v", err)
	}
}
