package server

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mantonx/playra/internal/config"
	"github.com/mantonx/playra/internal/events"
	"github.com/mantonx/playra/internal/modules/modulemanager"
)

func testEventServer(t *testing.T) (events.EventBus, *httptest.Server) {
	t.Helper()
	bus := events.NewEventBus(events.EventBusConfig{}, hclog.NewNullLogger())
	require.NoError(t, bus.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		bus.Stop(ctx)
	})

	srv := New(config.Default().Server, modulemanager.NewRegistry(), bus)
	ts := httptest.NewServer(srv.http.Handler)
	t.Cleanup(ts.Close)
	return bus, ts
}

func dialEvents(t *testing.T, ts *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/events" + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	return conn
}

func TestEventSocketStreamsBusEvents(t *testing.T) {
	bus, ts := testEventServer(t)
	conn := dialEvents(t, ts, "")
	defer conn.Close()

	require.NoError(t, bus.PublishAsync(events.Event{Type: events.EventSessionPhase, Source: "test"}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got events.Event
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, events.EventSessionPhase, got.Type)
}

func TestEventSocketFilterByType(t *testing.T) {
	bus, ts := testEventServer(t)
	conn := dialEvents(t, ts, "?types=progress.saved")
	defer conn.Close()

	require.NoError(t, bus.PublishAsync(events.Event{Type: events.EventSessionPhase, Source: "test"}))
	require.NoError(t, bus.PublishAsync(events.Event{Type: events.EventProgressSaved, Source: "test"}))

	// The filtered type never arrives; the first read is the saved event.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got events.Event
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, events.EventProgressSaved, got.Type)
}

func TestEventSocketDisconnectLeavesBusHealthy(t *testing.T) {
	bus, ts := testEventServer(t)
	conn := dialEvents(t, ts, "")

	require.NoError(t, bus.PublishAsync(events.Event{Type: events.EventSessionPhase, Source: "test"}))
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got events.Event
	require.NoError(t, conn.ReadJSON(&got))

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		return bus.GetStats().ActiveSubscriptions == 0
	}, 2*time.Second, 5*time.Millisecond)

	// Events published after the disconnect must still reach other
	// subscribers; the retired socket's channel stays out of the way.
	var received atomic.Int32
	_, err := bus.Subscribe(events.EventFilter{}, func(event events.Event) error {
		received.Add(1)
		return nil
	})
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		require.NoError(t, bus.PublishAsync(events.Event{Type: events.EventProgressSaved, Source: "test"}))
	}
	require.Eventually(t, func() bool {
		return received.Load() == 20
	}, 2*time.Second, 5*time.Millisecond)
}
