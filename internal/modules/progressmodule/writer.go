package progressmodule

import (
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/mantonx/playra/internal/events"
)

// Writer throttles and orders durable progress writes. Snapshots carry
// monotonically increasing sequence numbers; every durable write persists
// the newest snapshot known at write time, so a delayed write can never
// clobber a newer one.
type Writer struct {
	store    *Store
	eventBus events.EventBus
	logger   hclog.Logger

	throttle time.Duration
	settle   time.Duration

	// writeMu serializes durable writes.
	writeMu sync.Mutex

	mu         sync.Mutex
	seq        uint64
	latest     *Snapshot
	latestSeq  uint64
	writtenSeq uint64
	lastWrite  time.Time
	timer      *time.Timer
	deadline   time.Time
	closed     bool
}

// NewWriter creates a progress writer over the given store.
func NewWriter(store *Store, throttle, settle time.Duration, eventBus events.EventBus, logger hclog.Logger) *Writer {
	return &Writer{
		store:    store,
		eventBus: eventBus,
		logger:   logger.Named("progress-writer"),
		throttle: throttle,
		settle:   settle,
	}
}

// NotifyPosition records a position update. Writes are throttled to one per
// throttle window; an update inside the window schedules a deferred write
// at the window edge.
func (w *Writer) NotifyPosition(snap Snapshot) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.recordLocked(snap)
	elapsed := time.Since(w.lastWrite)
	if elapsed < w.throttle {
		w.scheduleLocked(w.throttle - elapsed)
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()
	w.flushLatest()
}

// NotifyPaused records the state at pause time and writes it after a short
// settle delay so the just-updated position is captured.
func (w *Writer) NotifyPaused(snap Snapshot) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.recordLocked(snap)
	w.scheduleLocked(w.settle)
	w.mu.Unlock()
}

// NotifySettings records a preference change and writes it immediately,
// independent of the throttle window.
func (w *Writer) NotifySettings(snap Snapshot) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.recordLocked(snap)
	w.mu.Unlock()
	w.flushLatest()
}

// Flush synchronously writes the latest known state. Safe to call from
// teardown paths; a pending deferred write that fires afterwards becomes a
// no-op because the sequence has already been persisted.
func (w *Writer) Flush() {
	w.mu.Lock()
	w.stopTimerLocked()
	w.mu.Unlock()
	w.flushLatest()
}

// Close flushes and stops the writer. Further notifications are dropped.
func (w *Writer) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.stopTimerLocked()
	w.mu.Unlock()
	w.flushLatest()
}

// recordLocked stores the newest snapshot under an increasing sequence.
func (w *Writer) recordLocked(snap Snapshot) {
	w.seq++
	w.latest = &snap
	w.latestSeq = w.seq
}

// scheduleLocked arms the deferred-write timer, keeping the earliest
// requested deadline when one is already pending.
func (w *Writer) scheduleLocked(d time.Duration) {
	deadline := time.Now().Add(d)
	if w.timer != nil {
		if !deadline.Before(w.deadline) {
			return
		}
		w.timer.Stop()
	}
	w.deadline = deadline
	w.timer = time.AfterFunc(d, func() {
		w.mu.Lock()
		w.timer = nil
		w.mu.Unlock()
		w.flushLatest()
	})
}

func (w *Writer) stopTimerLocked() {
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

// flushLatest durably writes the newest unwritten snapshot, if any. A
// failed write is reported and left unmarked so the next trigger retries.
func (w *Writer) flushLatest() {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	w.mu.Lock()
	if w.latest == nil || w.latestSeq == w.writtenSeq {
		w.mu.Unlock()
		return
	}
	snap := *w.latest
	seq := w.latestSeq
	w.mu.Unlock()

	err := w.store.Save(snap.Record())

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		w.logger.Warn("progress write failed, will retry on next trigger", "error", err)
		if w.eventBus != nil {
			w.eventBus.PublishAsync(events.Event{
				Type:    events.EventProgressSaveFailed,
				Source:  "progressmodule",
				Message: err.Error(),
			})
		}
		return
	}

	if seq > w.writtenSeq {
		w.writtenSeq = seq
	}
	w.lastWrite = time.Now()
	w.logger.Debug("progress saved", "item", snap.ItemPath, "position", snap.Position)
	if w.eventBus != nil {
		w.eventBus.PublishAsync(events.Event{
			Type:   events.EventProgressSaved,
			Source: "progressmodule",
			Data: map[string]interface{}{
				"item":     snap.ItemPath,
				"position": snap.Position,
			},
		})
	}
}
