package sessionmodule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/go-hclog"

	"github.com/mantonx/playra/internal/config"
	"github.com/mantonx/playra/internal/events"
	"github.com/mantonx/playra/internal/modules/catalogmodule"
	"github.com/mantonx/playra/internal/modules/progressmodule"
	"github.com/mantonx/playra/internal/storage"
)

// LoaderFactory builds a byte-source loader bound to a storage provider.
// The codec pipeline implements this; tests substitute fakes.
type LoaderFactory func(provider storage.Provider) (Loader, error)

// Manager owns the folder lifecycle: opening a root folder builds the
// catalog, restores persisted progress, offers resume, and wires the watcher
// that keeps the catalog fresh. At most one folder is open at a time.
type Manager struct {
	cfg           *config.Config
	eventBus      events.EventBus
	logger        hclog.Logger
	loaderFactory LoaderFactory

	mu          sync.Mutex
	root        string
	provider    storage.Provider
	builder     *catalogmodule.Builder
	store       *progressmodule.Store
	writer      *progressmodule.Writer
	session     *Session
	offer       *progressmodule.ResumeOffer
	watcher     *fsnotify.Watcher
	watchCancel context.CancelFunc
}

// NewManager creates a session manager.
func NewManager(cfg *config.Config, loaderFactory LoaderFactory, eventBus events.EventBus, logger hclog.Logger) *Manager {
	return &Manager{
		cfg:           cfg,
		eventBus:      eventBus,
		logger:        logger.Named("session-manager"),
		loaderFactory: loaderFactory,
	}
}

// OpenFolder opens root as the active session folder. Any previously open
// folder is torn down first, flushing its progress; a pending resume offer
// on the old folder resolves as superseded.
func (m *Manager) OpenFolder(ctx context.Context, root string) (*Session, error) {
	// A pending offer on the previous folder is superseded. Resolving it
	// runs the full new-folder teardown before this folder opens, so the
	// offer must settle outside the manager lock.
	if offer := m.ResumeOffer(); offer != nil {
		offer.Resolve(progressmodule.ChoiceNewFolder)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.teardownLocked()

	provider, err := storage.NewFolderProvider(root)
	if err != nil {
		return nil, fmt.Errorf("failed to open folder %s: %w", root, err)
	}

	builder, err := catalogmodule.NewBuilder(provider, m.cfg.Catalog, m.logger, m.eventBus)
	if err != nil {
		return nil, err
	}
	catalog, err := builder.Build(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to scan folder %s: %w", root, err)
	}

	loader, err := m.loaderFactory(provider)
	if err != nil {
		return nil, fmt.Errorf("failed to build loader for %s: %w", root, err)
	}

	store := progressmodule.NewStore(provider, m.cfg.Progress.FileName, m.logger)
	writer := progressmodule.NewWriter(store, m.cfg.Progress.ThrottleWindow, m.cfg.Progress.PauseSettle, m.eventBus, m.logger)
	session := NewSession(catalog, loader, writer, m.cfg.Playback, m.eventBus, m.logger)

	// Persisted preferences come back regardless of the resume decision;
	// only the file and position wait on it.
	record := store.Load()
	if record != nil {
		session.ApplySettings(SettingsFromRecord(record.Settings))
	}
	offer := progressmodule.NewResumeOffer(record, catalog, m.cfg.Progress.ResumeCountdown, func(choice progressmodule.ResumeChoice) {
		switch choice {
		case progressmodule.ChoiceResume:
			if err := session.SelectForResume(record.LastFile, record.LastPosition); err != nil {
				m.logger.Warn("failed to resume", "path", record.LastFile, "error", err)
			}
		case progressmodule.ChoiceNewFolder:
			m.startOver(session)
		}
	}, m.eventBus, m.logger)

	m.root = root
	m.provider = provider
	m.builder = builder
	m.store = store
	m.writer = writer
	m.session = session
	m.offer = offer

	if m.cfg.Catalog.WatchRoot {
		if err := m.startWatcherLocked(root); err != nil {
			m.logger.Warn("root watcher unavailable, catalog will not auto-refresh", "error", err)
		}
	}

	m.publish(events.EventSessionOpened, map[string]interface{}{
		"root":  root,
		"items": catalog.Len(),
	})
	m.logger.Info("folder opened", "root", root, "items", catalog.Len(), "resumable", offer != nil)
	return session, nil
}

// Session returns the active session, or nil when no folder is open.
func (m *Manager) Session() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// ResumeOffer returns the pending resume offer, or nil when there is none
// or it is already resolved.
func (m *Manager) ResumeOffer() *progressmodule.ResumeOffer {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.offer == nil || m.offer.Resolved() {
		return nil
	}
	return m.offer
}

// ResolveResume applies the user's resume decision.
func (m *Manager) ResolveResume(choice progressmodule.ResumeChoice) error {
	offer := m.ResumeOffer()
	if offer == nil {
		return fmt.Errorf("no pending resume offer")
	}
	offer.Resolve(choice)
	return nil
}

// Rescan rebuilds the catalog for the open folder and swaps it into the
// session.
func (m *Manager) Rescan(ctx context.Context) error {
	m.mu.Lock()
	builder := m.builder
	session := m.session
	m.mu.Unlock()
	if builder == nil || session == nil {
		return ErrNoCatalog
	}

	catalog, err := builder.Build(ctx)
	if err != nil {
		m.publish(events.EventPermissionRevoked, map[string]interface{}{
			"root":  m.root,
			"error": err.Error(),
		})
		return fmt.Errorf("rescan failed: %w", err)
	}
	session.ReplaceCatalog(catalog)
	return nil
}

// startOver handles the new-folder resume choice: the latest progress is
// flushed, the persisted record is discarded, and the folder is torn down,
// returning the manager to its pre-selection condition. The session argument
// guards against a choice settling after the folder already changed.
func (m *Manager) startOver(session *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session != session {
		return
	}
	m.writer.Flush()
	if err := m.store.Clear(); err != nil {
		m.logger.Warn("failed to clear progress record", "root", m.root, "error", err)
	}
	m.teardownLocked()
}

// Close tears down the open folder, flushing progress.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.offer != nil && !m.offer.Resolved() {
		m.offer.Resolve(progressmodule.ChoiceDismiss)
	}
	m.teardownLocked()
}

// teardownLocked stops the watcher, closes the session (which flushes the
// writer), and drops all folder state.
func (m *Manager) teardownLocked() {
	if m.watchCancel != nil {
		m.watchCancel()
		m.watchCancel = nil
	}
	if m.watcher != nil {
		m.watcher.Close()
		m.watcher = nil
	}
	if m.session != nil {
		m.session.Close()
		m.publish(events.EventSessionClosed, map[string]interface{}{"root": m.root})
	}
	if m.writer != nil {
		m.writer.Close()
	}
	m.root = ""
	m.provider = nil
	m.builder = nil
	m.store = nil
	m.writer = nil
	m.session = nil
	m.offer = nil
}

// startWatcherLocked watches the folder root and triggers a debounced
// rescan on filesystem churn.
func (m *Manager) startWatcherLocked(root string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(root); err != nil {
		watcher.Close()
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.watcher = watcher
	m.watchCancel = cancel

	go m.watchLoop(ctx, watcher)
	return nil
}

func (m *Manager) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	debounce := m.cfg.Catalog.RescanDebounce
	if debounce <= 0 {
		debounce = time.Second
	}
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			m.logger.Debug("root changed", "op", ev.Op.String(), "name", ev.Name)
			m.publish(events.EventCatalogStale, map[string]interface{}{"name": ev.Name})
			if timer == nil {
				timer = time.NewTimer(debounce)
				fire = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-fire:
					default:
					}
				}
				timer.Reset(debounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			m.logger.Warn("root watcher error", "error", err)
		case <-fire:
			timer = nil
			fire = nil
			if err := m.Rescan(ctx); err != nil {
				m.logger.Warn("auto rescan failed", "error", err)
			}
		}
	}
}

func (m *Manager) publish(t events.EventType, data map[string]interface{}) {
	if m.eventBus == nil {
		return
	}
	m.eventBus.PublishAsync(events.Event{
		Type:   t,
		Source: "sessionmodule",
		Data:   data,
	})
}
