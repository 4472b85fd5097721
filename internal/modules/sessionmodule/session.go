package sessionmodule

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/mantonx/playra/internal/config"
	"github.com/mantonx/playra/internal/events"
	"github.com/mantonx/playra/internal/modules/catalogmodule"
	"github.com/mantonx/playra/internal/modules/progressmodule"
)

// Session is one playback session over one catalog. It owns the transport
// state exclusively; every mutation goes through its command API, and all
// commands are serialized by an internal mutex so no partial mutation is
// ever observable.
type Session struct {
	id       string
	cfg      config.PlaybackConfig
	logger   hclog.Logger
	eventBus events.EventBus
	loader   Loader
	sink     ProgressSink

	mu           sync.Mutex
	catalog      *catalogmodule.Catalog
	index        int
	phase        Phase
	position     float64
	duration     float64
	settings     Settings
	transcodePct int
	source       *Source

	// generation tags each load; results from a superseded load are
	// discarded instead of overwriting the now-current item's state.
	generation uint64
	cancelLoad context.CancelFunc

	rng    *rand.Rand
	closed bool
}

// NewSession creates a session over the given catalog. The loader acquires
// byte sources (through the codec pipeline) and the sink receives
// persistence notifications.
func NewSession(catalog *catalogmodule.Catalog, loader Loader, sink ProgressSink, cfg config.PlaybackConfig, eventBus events.EventBus, logger hclog.Logger) *Session {
	return &Session{
		id:       uuid.New().String(),
		cfg:      cfg,
		logger:   logger.Named("session"),
		eventBus: eventBus,
		loader:   loader,
		sink:     sink,
		catalog:  catalog,
		index:    -1,
		phase:    PhaseIdle,
		settings: DefaultSettings(),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns a copy of the observable session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := State{
		ID:          s.id,
		Phase:       s.phase,
		Index:       s.index,
		Position:    s.position,
		Duration:    s.duration,
		Settings:    s.settings,
		Transcoding: s.transcodePct,
	}
	if item := s.catalog.ItemAt(s.index); item != nil {
		copied := *item
		state.Item = &copied
	}
	return state
}

// Catalog returns the catalog the session is playing from.
func (s *Session) Catalog() *catalogmodule.Catalog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catalog
}

// Source returns the current playable byte source, or nil while none is
// ready.
func (s *Session) Source() *Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

// ReplaceCatalog atomically swaps in a freshly built catalog (re-scan).
// The current selection is re-resolved by path; an item that vanished
// stops playback.
func (s *Session) ReplaceCatalog(catalog *catalogmodule.Catalog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	var currentPath string
	if item := s.catalog.ItemAt(s.index); item != nil {
		currentPath = item.Path
	}
	s.catalog = catalog

	if s.phase == PhaseIdle {
		return
	}
	idx := catalog.IndexOf(currentPath)
	if idx < 0 {
		s.logger.Info("current item removed by rescan, stopping", "path", currentPath)
		s.toIdleLocked()
		return
	}
	s.index = idx
}

// Select chooses the item at index i and begins loading it. Selecting while
// a previous load is in flight cancels that load; its completion will be
// discarded.
func (s *Session) Select(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if s.catalog.Len() == 0 {
		return ErrNoCatalog
	}
	if i < 0 || i >= s.catalog.Len() {
		return ErrIndexOutOfRange
	}
	s.selectLocked(i, 0, true)
	return nil
}

// SelectForResume selects an item and seeks to the persisted position
// before playback starts.
func (s *Session) SelectForResume(path string, position float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	idx := s.catalog.IndexOf(path)
	if idx < 0 {
		return ErrIndexOutOfRange
	}
	s.selectLocked(idx, position, true)
	return nil
}

// selectLocked starts a generation-tagged load of catalog item i.
func (s *Session) selectLocked(i int, startPos float64, autoplay bool) {
	if s.cancelLoad != nil {
		s.cancelLoad()
		s.cancelLoad = nil
	}
	if s.source != nil {
		s.source.Close()
		s.source = nil
	}

	s.generation++
	gen := s.generation
	s.index = i
	s.phase = PhaseLoading
	s.position = startPos
	s.duration = 0
	s.transcodePct = 0

	item := *s.catalog.ItemAt(i)
	ctx, cancel := context.WithCancel(context.Background())
	s.cancelLoad = cancel

	s.logger.Debug("loading item", "path", item.Path, "generation", gen)
	s.publishLocked(events.EventSessionItem, map[string]interface{}{
		"index": i,
		"path":  item.Path,
	})
	s.publishPhaseLocked()

	go s.load(ctx, gen, item, startPos, autoplay)
}

// load runs outside the lock; only a completion whose generation still
// matches may touch session state.
func (s *Session) load(ctx context.Context, gen uint64, item catalogmodule.MediaItem, startPos float64, autoplay bool) {
	src, err := s.loader.Load(ctx, item, func(pct int) {
		s.onTranscodeProgress(gen, pct)
	})

	s.mu.Lock()
	if s.closed || gen != s.generation {
		s.mu.Unlock()
		if src != nil {
			src.Close()
		}
		return
	}
	s.cancelLoad = nil

	if err != nil {
		if errors.Is(err, context.Canceled) {
			s.mu.Unlock()
			return
		}
		s.logger.Error("byte source unusable", "path", item.Path, "error", err)
		s.phase = PhaseError
		s.publishLocked(events.EventSessionError, map[string]interface{}{
			"path":  item.Path,
			"error": err.Error(),
		})
		s.mu.Unlock()
		return
	}

	s.source = src
	s.position = startPos
	s.transcodePct = 0
	if autoplay {
		s.phase = PhasePlaying
	} else {
		s.phase = PhasePaused
	}
	s.publishPhaseLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.sink.NotifyPosition(snap)
}

// onTranscodeProgress surfaces pipeline progress as the Transcoding
// sub-state of Loading.
func (s *Session) onTranscodeProgress(gen uint64, pct int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.generation {
		return
	}
	s.transcodePct = pct
	if s.phase == PhaseLoading {
		s.phase = PhaseTranscoding
		s.publishPhaseLocked()
	}
}

// Pause moves Playing to Paused; a no-op in any other phase.
func (s *Session) Pause() {
	s.mu.Lock()
	if s.closed || s.phase != PhasePlaying {
		s.mu.Unlock()
		return
	}
	s.phase = PhasePaused
	s.publishPhaseLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.sink.NotifyPaused(snap)
}

// Resume moves Paused back to Playing; a no-op in any other phase.
func (s *Session) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.phase != PhasePaused {
		return
	}
	s.phase = PhasePlaying
	s.publishPhaseLocked()
}

// Seek sets the playback position within the current item.
func (s *Session) Seek(pos float64) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.phase == PhaseIdle {
		s.mu.Unlock()
		return ErrNoSelection
	}
	if pos < 0 {
		pos = 0
	}
	if s.duration > 0 && pos > s.duration {
		pos = s.duration
	}
	s.position = pos
	s.publishLocked(events.EventSessionSeek, map[string]interface{}{"position": pos})
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.sink.NotifyPosition(snap)
	return nil
}

// ReportPosition is called by the render surface with the current playback
// position. Position persistence is throttled downstream.
func (s *Session) ReportPosition(pos float64) {
	s.mu.Lock()
	if s.closed || (s.phase != PhasePlaying && s.phase != PhasePaused) {
		s.mu.Unlock()
		return
	}
	s.position = pos
	playing := s.phase == PhasePlaying
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if playing {
		s.sink.NotifyPosition(snap)
	}
}

// ReportDuration is called by the render surface once the item's duration
// is known.
func (s *Session) ReportDuration(d float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || d < 0 {
		return
	}
	s.duration = d
}

// ReportEnded is called by the render surface at end of stream. The item
// enters Ended and the advance policy runs immediately.
func (s *Session) ReportEnded() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.phase == PhaseIdle {
		return
	}
	s.phase = PhaseEnded
	s.publishPhaseLocked()
	s.advanceLocked()
}

// ReportError is called by the render surface when it cannot decode the
// final stream. The session does not auto-skip; the caller decides.
func (s *Session) ReportError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.phase == PhaseIdle {
		return
	}
	s.phase = PhaseError
	s.publishLocked(events.EventSessionError, map[string]interface{}{"error": msg})
	s.publishPhaseLocked()
}

// Next applies the advance policy.
func (s *Session) Next() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if s.catalog.Len() == 0 {
		return ErrNoCatalog
	}
	s.advanceLocked()
	return nil
}

// advanceLocked implements the advance policy: shuffle draws a uniform
// random index (with replacement unless configured otherwise); sequential
// play stops at the end unless loop wraps it to 0.
func (s *Session) advanceLocked() {
	n := s.catalog.Len()
	if n == 0 {
		s.toIdleLocked()
		return
	}

	if s.settings.Shuffle {
		next := s.rng.Intn(n)
		if !s.cfg.ShuffleAllowRepeat && n > 1 {
			for next == s.index {
				next = s.rng.Intn(n)
			}
		}
		s.selectLocked(next, 0, true)
		return
	}

	next := s.index + 1
	if next >= n {
		if s.settings.Loop {
			s.selectLocked(0, 0, true)
			return
		}
		s.toIdleLocked()
		return
	}
	s.selectLocked(next, 0, true)
}

// Prev restarts the current item when more than the restart threshold has
// played; otherwise it moves to the previous entry, wrapping at 0.
func (s *Session) Prev() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	n := s.catalog.Len()
	if n == 0 {
		s.mu.Unlock()
		return ErrNoCatalog
	}
	if s.index < 0 {
		s.mu.Unlock()
		return ErrNoSelection
	}

	if s.position > s.cfg.PrevRestartThreshold {
		s.position = 0
		s.publishLocked(events.EventSessionSeek, map[string]interface{}{"position": 0.0})
		snap := s.snapshotLocked()
		s.mu.Unlock()
		s.sink.NotifyPosition(snap)
		return nil
	}

	prev := s.index - 1
	if prev < 0 {
		prev = n - 1
	}
	s.selectLocked(prev, 0, true)
	s.mu.Unlock()
	return nil
}

// toIdleLocked clears the selection and stops playback.
func (s *Session) toIdleLocked() {
	if s.cancelLoad != nil {
		s.cancelLoad()
		s.cancelLoad = nil
	}
	// A load still in flight must not resurrect the cleared selection.
	s.generation++
	if s.source != nil {
		s.source.Close()
		s.source = nil
	}
	s.index = -1
	s.phase = PhaseIdle
	s.position = 0
	s.duration = 0
	s.transcodePct = 0
	s.publishPhaseLocked()
}

// Close tears the session down, flushing the latest known state.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.cancelLoad != nil {
		s.cancelLoad()
		s.cancelLoad = nil
	}
	if s.source != nil {
		s.source.Close()
		s.source = nil
	}
	s.mu.Unlock()

	s.sink.Flush()
	s.logger.Info("session closed", "id", s.id)
}

// snapshotLocked captures the persistence view of the session.
func (s *Session) snapshotLocked() progressmodule.Snapshot {
	var path string
	if item := s.catalog.ItemAt(s.index); item != nil {
		path = item.Path
	}
	return progressmodule.Snapshot{
		ItemPath: path,
		Position: s.position,
		Settings: s.settings.Record(),
	}
}

func (s *Session) publishPhaseLocked() {
	s.publishLocked(events.EventSessionPhase, map[string]interface{}{
		"phase": string(s.phase),
		"index": s.index,
	})
}

func (s *Session) publishLocked(t events.EventType, data map[string]interface{}) {
	if s.eventBus == nil {
		return
	}
	s.eventBus.PublishAsync(events.Event{
		Type:   t,
		Source: "sessionmodule",
		Data:   data,
	})
}
