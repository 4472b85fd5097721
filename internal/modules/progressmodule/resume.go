package progressmodule

import (
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/mantonx/playra/internal/events"
	"github.com/mantonx/playra/internal/modules/catalogmodule"
)

// ResumeChoice is one outcome of the resume negotiation.
type ResumeChoice string

const (
	// ChoiceResume selects the remembered item and seeks to the
	// remembered position before playback starts.
	ChoiceResume ResumeChoice = "resume"
	// ChoiceDismiss discards the offer; the session stays idle with the
	// persisted settings already applied.
	ChoiceDismiss ResumeChoice = "dismiss"
	// ChoiceNewFolder flushes state and returns the engine to its
	// pre-folder-selection condition.
	ChoiceNewFolder ResumeChoice = "new_folder"
)

// ResumeOffer is a one-shot resolvable decision. Both the countdown timer
// and the user's explicit action attempt to resolve it; only the first
// resolution takes effect and resolving again is a no-op.
type ResumeOffer struct {
	Item     string  `json:"item"`
	Position float64 `json:"position"`

	mu       sync.Mutex
	resolved bool
	timer    *time.Timer
	onChoice func(ResumeChoice)
	eventBus events.EventBus
	logger   hclog.Logger
}

// NewResumeOffer validates a persisted record against the freshly built
// catalog and, when valid, starts the countdown that auto-resumes. A nil
// record, or one naming an item no longer in the catalog, yields nil; the
// stale record is discarded silently.
func NewResumeOffer(record *PersistedProgress, catalog *catalogmodule.Catalog, countdown time.Duration, onChoice func(ResumeChoice), eventBus events.EventBus, logger hclog.Logger) *ResumeOffer {
	if record == nil || record.LastFile == "" {
		return nil
	}
	if catalog.IndexOf(record.LastFile) < 0 {
		logger.Debug("resume target no longer in catalog, discarding", "item", record.LastFile)
		return nil
	}

	offer := &ResumeOffer{
		Item:     record.LastFile,
		Position: record.LastPosition,
		onChoice: onChoice,
		eventBus: eventBus,
		logger:   logger.Named("resume"),
	}
	offer.timer = time.AfterFunc(countdown, func() {
		offer.Resolve(ChoiceResume)
	})

	if eventBus != nil {
		eventBus.PublishAsync(events.Event{
			Type:   events.EventResumeOffered,
			Source: "progressmodule",
			Data: map[string]interface{}{
				"item":              offer.Item,
				"position":          offer.Position,
				"countdown_seconds": countdown.Seconds(),
			},
		})
	}
	return offer
}

// Resolve settles the offer with the given choice. The first call wins;
// every later call, including a late countdown fire, is a no-op.
func (o *ResumeOffer) Resolve(choice ResumeChoice) {
	o.mu.Lock()
	if o.resolved {
		o.mu.Unlock()
		return
	}
	o.resolved = true
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
	onChoice := o.onChoice
	o.mu.Unlock()

	o.logger.Info("resume offer resolved", "choice", choice, "item", o.Item)
	if o.eventBus != nil {
		o.eventBus.PublishAsync(events.Event{
			Type:   events.EventResumeResolved,
			Source: "progressmodule",
			Data: map[string]interface{}{
				"choice": string(choice),
				"item":   o.Item,
			},
		})
	}
	if onChoice != nil {
		onChoice(choice)
	}
}

// Resolved reports whether the offer has been settled.
func (o *ResumeOffer) Resolved() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.resolved
}
