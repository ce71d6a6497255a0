package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"gloss/internal/batch"
	"gloss/internal/config"
	"gloss/internal/export"
	"gloss/internal/logging"
	"gloss/internal/processing"
	"gloss/internal/retouch"
	"gloss/internal/services/ai"
	"gloss/internal/services/dam"
	"gloss/internal/services/storage"
	"gloss/internal/upload"
)

// Daemon wires the engine components into a single lifecycle and enforces
// single-instance execution per data dir.
type Daemon struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      *batch.Store
	supervisor *processing.Supervisor
	uploader   *upload.Coordinator
	retoucher  *retouch.Controller
	exporter   *export.Coordinator

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc

	api *apiServer
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	SessionDB    string
	LockFilePath string
	ActiveBatch  string
}

// New constructs a daemon with all engine components wired to the real
// HTTP collaborators.
func New(cfg *config.Config, store *batch.Store, logger *slog.Logger) (*Daemon, error) {
	processor := ai.NewConfiguredProcessor(cfg)
	objects := storage.NewConfiguredStore(cfg)
	publisher := dam.NewConfiguredPublisher(cfg)
	return NewWithCollaborators(cfg, store, logger, processor, objects, publisher)
}

// NewWithCollaborators constructs a daemon with explicit collaborators
// (used in tests).
func NewWithCollaborators(cfg *config.Config, store *batch.Store, logger *slog.Logger, processor ai.Processor, objects storage.Store, publisher dam.Publisher) (*Daemon, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("daemon requires config and store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	supervisor := processing.NewSupervisor(cfg, store, processor, logger)
	lockPath := filepath.Join(cfg.Paths.DataDir, "gloss.lock")
	d := &Daemon{
		cfg:        cfg,
		logger:     logger,
		store:      store,
		supervisor: supervisor,
		uploader:   upload.NewCoordinator(store, objects, supervisor, logger),
		retoucher:  retouch.NewController(cfg, store, processor, logger),
		exporter:   export.NewCoordinator(cfg, store, objects, publisher, logger),
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
	}

	srv, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = srv
	return d, nil
}

// Start acquires the instance lock, starts the worker pool, and brings up
// the HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another gloss daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if err := d.supervisor.Start(runCtx); err != nil {
		_ = d.lock.Unlock()
		cancel()
		d.cancel = nil
		return fmt.Errorf("start processing: %w", err)
	}
	if d.api != nil {
		if err := d.api.start(runCtx); err != nil {
			d.supervisor.Stop()
			_ = d.lock.Unlock()
			cancel()
			d.cancel = nil
			return err
		}
	}

	d.running.Store(true)
	d.logger.Info("gloss daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop shuts down the API, drains the worker pool, and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.api != nil {
		d.api.stop()
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.supervisor.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("gloss daemon stopped")
}

// Close stops the daemon and closes the session store.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// APIAddr returns the bound API address, or empty before Start.
func (d *Daemon) APIAddr() string {
	if d.api == nil {
		return ""
	}
	return d.api.addr()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	active, err := d.store.ActiveBatchID(ctx)
	if err != nil {
		active = ""
	}
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		SessionDB:    d.store.Path(),
		LockFilePath: d.lockPath,
		ActiveBatch:  active,
	}
}
