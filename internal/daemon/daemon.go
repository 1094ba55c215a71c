package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/gofrs/flock"

	"hlsforge/internal/config"
	"hlsforge/internal/deps"
	"hlsforge/internal/library"
	"hlsforge/internal/logging"
	"hlsforge/internal/notifications"
	"hlsforge/internal/preflight"
	"hlsforge/internal/progress"
	"hlsforge/internal/transcode"
)

// sourceFileExtensions lists the container formats accepted for ingest.
var sourceFileExtensions = map[string]struct{}{
	".mkv":  {},
	".mp4":  {},
	".mov":  {},
	".avi":  {},
	".webm": {},
}

// Daemon coordinates the transcode manager and API server and enforces
// single-instance execution.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *library.Store
	manager *transcode.Manager
	hub     *progress.Hub
	logPath string

	lockPath string
	lock     *flock.Flock

	api *apiServer

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool
	PID           int
	LibraryDBPath string
	LockFilePath  string
	Jobs          library.HealthSummary
	Dependencies  []deps.Status
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *library.Store, logger *slog.Logger, manager *transcode.Manager, hub *progress.Hub) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil || manager == nil || hub == nil {
		return nil, errors.New("daemon requires config, store, logger, manager, and progress hub")
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "hlsforged.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.WithComponent(logger, "daemon"),
		store:    store,
		manager:  manager,
		hub:      hub,
		logPath:  filepath.Join(cfg.Paths.LogDir, "hlsforge.log"),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}

	api, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = api
	return d, nil
}

// Start acquires the daemon lock and launches the transcode manager and API
// server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another hlsforge daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.manager.Start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start transcode manager: %w", err)
	}
	if err := d.api.start(d.ctx); err != nil {
		d.manager.Stop()
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return err
	}

	d.running.Store(true)
	d.logger.Info("hlsforge daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	d.manager.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("hlsforge daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// APIAddr returns the bound API address, or empty when the server is off.
func (d *Daemon) APIAddr() string {
	return d.api.addr()
}

// AddVideo validates a source file and registers it in the library.
func (d *Daemon) AddVideo(ctx context.Context, title, sourcePath string) (*library.Video, error) {
	trimmed := strings.TrimSpace(sourcePath)
	if trimmed == "" {
		return nil, errors.New("source path is required")
	}
	absPath, err := filepath.Abs(trimmed)
	if err != nil {
		return nil, fmt.Errorf("resolve source path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat source file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("source path %q is a directory", absPath)
	}
	ext := strings.ToLower(filepath.Ext(info.Name()))
	if _, ok := sourceFileExtensions[ext]; !ok {
		return nil, fmt.Errorf("unsupported file extension %q", ext)
	}

	video, err := d.store.CreateVideo(ctx, title, absPath)
	if err != nil {
		return nil, fmt.Errorf("register video: %w", err)
	}
	d.logger.Info("video registered",
		logging.Int64(logging.FieldVideoID, video.ID),
		logging.String("source", absPath),
	)
	return video, nil
}

// SubmitJob enqueues a transcode for a video through the shared dispatcher.
func (d *Daemon) SubmitJob(ctx context.Context, videoID int64, segmentSeconds int) (*library.Job, error) {
	return d.manager.Submit(ctx, videoID, segmentSeconds)
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	notifier := notifications.NewService(d.cfg)
	if err := notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// Preflight runs environment checks for the configured pipeline.
func (d *Daemon) Preflight(ctx context.Context) []preflight.Result {
	return preflight.RunAll(ctx, d.cfg)
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	health, err := d.store.Health(ctx)
	if err != nil {
		d.logger.Warn("job health query failed", logging.Error(err))
	}
	return Status{
		Running:       d.running.Load(),
		PID:           os.Getpid(),
		LibraryDBPath: d.store.Path(),
		LockFilePath:  d.lockPath,
		Jobs:          health,
		Dependencies:  preflight.CheckSystemDeps(ctx, d.cfg),
	}
}
