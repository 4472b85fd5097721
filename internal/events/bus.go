package events

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
)

// EventBus defines the interface for the event bus system
type EventBus interface {
	// Publish publishes an event, blocking until accepted or ctx is done
	Publish(ctx context.Context, event Event) error

	// PublishAsync publishes an event without blocking; full buffers drop
	PublishAsync(event Event) error

	// Subscribe subscribes to events matching the filter
	Subscribe(filter EventFilter, handler EventHandler) (*Subscription, error)

	// Unsubscribe removes a subscription
	Unsubscribe(subscriptionID string) error

	// RecentEvents returns the most recent events, newest last
	RecentEvents() []Event

	// GetStats returns event bus statistics
	GetStats() EventStats

	// Start starts the event bus
	Start(ctx context.Context) error

	// Stop stops the event bus gracefully
	Stop(ctx context.Context) error
}

// eventBus implements the EventBus interface
type eventBus struct {
	config EventBusConfig
	logger hclog.Logger

	mu            sync.RWMutex
	subscriptions map[string]*Subscription
	eventChannel  chan Event
	running       bool
	stopCh        chan struct{}
	wg            sync.WaitGroup

	recentEvents []Event
	eventStats   EventStats
}

// NewEventBus creates a new event bus instance
func NewEventBus(config EventBusConfig, logger hclog.Logger) EventBus {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultEventBusConfig().BufferSize
	}
	if config.RecentEvents <= 0 {
		config.RecentEvents = DefaultEventBusConfig().RecentEvents
	}
	return &eventBus{
		config:        config,
		logger:        logger.Named("events"),
		subscriptions: make(map[string]*Subscription),
		eventChannel:  make(chan Event, config.BufferSize),
		recentEvents:  make([]Event, 0, config.RecentEvents),
		stopCh:        make(chan struct{}),
		eventStats: EventStats{
			EventsByType: make(map[string]int64),
		},
	}
}

// Start starts the event bus
func (eb *eventBus) Start(ctx context.Context) error {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.running {
		return fmt.Errorf("event bus is already running")
	}

	eb.running = true
	eb.stopCh = make(chan struct{})

	eb.wg.Add(1)
	go eb.processEvents(ctx)

	eb.logger.Info("event bus started", "buffer_size", eb.config.BufferSize)
	return nil
}

// Stop stops the event bus gracefully
func (eb *eventBus) Stop(ctx context.Context) error {
	eb.mu.Lock()
	if !eb.running {
		eb.mu.Unlock()
		return nil
	}
	eb.running = false
	eb.mu.Unlock()

	close(eb.stopCh)
	close(eb.eventChannel)

	done := make(chan struct{})
	go func() {
		eb.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		eb.logger.Info("event bus stopped")
		return nil
	case <-ctx.Done():
		eb.logger.Warn("event bus stop timed out")
		return ctx.Err()
	}
}

// Publish publishes an event to the event bus
func (eb *eventBus) Publish(ctx context.Context, event Event) error {
	if err := eb.prepare(&event); err != nil {
		return err
	}

	select {
	case eb.eventChannel <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishAsync publishes an event asynchronously (non-blocking)
func (eb *eventBus) PublishAsync(event Event) error {
	if err := eb.prepare(&event); err != nil {
		return err
	}

	select {
	case eb.eventChannel <- event:
		return nil
	default:
		eb.logger.Warn("event channel full, dropping event", "event_type", event.Type, "event_id", event.ID)
		return fmt.Errorf("event channel full")
	}
}

func (eb *eventBus) prepare(event *Event) error {
	eb.mu.RLock()
	running := eb.running
	eb.mu.RUnlock()
	if !running {
		return fmt.Errorf("event bus is not running")
	}

	if event.ID == "" {
		event.ID = generateEventID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Type == "" {
		return fmt.Errorf("event type is required")
	}
	if event.Source == "" {
		return fmt.Errorf("event source is required")
	}
	return nil
}

// Subscribe subscribes to events matching the filter
func (eb *eventBus) Subscribe(filter EventFilter, handler EventHandler) (*Subscription, error) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	subscription := &Subscription{
		ID:      generateSubscriptionID(),
		Filter:  filter,
		Handler: handler,
		Created: time.Now(),
	}
	eb.subscriptions[subscription.ID] = subscription

	eb.logger.Debug("new subscription created", "subscription_id", subscription.ID, "types", filter.Types)
	return subscription, nil
}

// Unsubscribe removes a subscription
func (eb *eventBus) Unsubscribe(subscriptionID string) error {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if _, exists := eb.subscriptions[subscriptionID]; !exists {
		return fmt.Errorf("subscription not found: %s", subscriptionID)
	}
	delete(eb.subscriptions, subscriptionID)

	eb.logger.Debug("subscription removed", "subscription_id", subscriptionID)
	return nil
}

// RecentEvents returns a copy of the in-memory event buffer, newest last.
func (eb *eventBus) RecentEvents() []Event {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return append([]Event{}, eb.recentEvents...)
}

// GetStats returns event bus statistics
func (eb *eventBus) GetStats() EventStats {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	stats := EventStats{
		TotalEvents:         eb.eventStats.TotalEvents,
		EventsByType:        make(map[string]int64, len(eb.eventStats.EventsByType)),
		ActiveSubscriptions: len(eb.subscriptions),
	}
	for k, v := range eb.eventStats.EventsByType {
		stats.EventsByType[k] = v
	}
	return stats
}

// processEvents processes events from the channel
func (eb *eventBus) processEvents(ctx context.Context) {
	defer eb.wg.Done()

	for {
		select {
		case <-eb.stopCh:
			return
		case <-ctx.Done():
			return
		case event, ok := <-eb.eventChannel:
			if !ok {
				return
			}
			eb.handleEvent(event)
		}
	}
}

// handleEvent records a single event and notifies matching subscribers.
func (eb *eventBus) handleEvent(event Event) {
	eb.mu.Lock()
	eb.recentEvents = append(eb.recentEvents, event)
	if len(eb.recentEvents) > eb.config.RecentEvents {
		eb.recentEvents = eb.recentEvents[1:]
	}
	eb.eventStats.TotalEvents++
	eb.eventStats.EventsByType[string(event.Type)]++

	var matching []*Subscription
	for _, sub := range eb.subscriptions {
		if MatchesFilter(event, sub.Filter) {
			matching = append(matching, sub)
		}
	}
	eb.mu.Unlock()

	for _, sub := range matching {
		eb.notifySubscriber(sub, event)
	}
}

// notifySubscriber invokes one handler, isolating panics and errors so a
// misbehaving subscriber cannot take down the processor.
func (eb *eventBus) notifySubscriber(subscription *Subscription, event Event) {
	defer func() {
		if r := recover(); r != nil {
			eb.logger.Error("panic in event handler", "subscription_id", subscription.ID, "error", r, "event_id", event.ID)
		}
	}()

	if err := subscription.Handler(event); err != nil {
		eb.logger.Error("event handler error", "subscription_id", subscription.ID, "error", err, "event_id", event.ID)
		return
	}

	eb.mu.Lock()
	subscription.TriggerCount++
	eb.mu.Unlock()
}

// generateEventID generates a unique event ID
func generateEventID() string {
	bytes := make([]byte, 8)
	rand.Read(bytes)
	return fmt.Sprintf("%d-%s", time.Now().UnixNano(), hex.EncodeToString(bytes))
}

// generateSubscriptionID generates a unique subscription ID
func generateSubscriptionID() string {
	bytes := make([]byte, 8)
	rand.Read(bytes)
	return fmt.Sprintf("sub-%s", hex.EncodeToString(bytes))
}
