package progressmodule

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mantonx/playra/internal/logger"
	"github.com/mantonx/playra/internal/modules/catalogmodule"
	"github.com/mantonx/playra/internal/storage"
)

const testFileName = ".playra/progress.json"

func newTestStore(t *testing.T) (*Store, afero.Fs) {
	t.Helper()
	fsys := afero.NewMemMapFs()
	store := NewStore(storage.NewMemProvider(fsys), testFileName, logger.New("test"))
	return store, fsys
}

func sampleRecord(volume float64) PersistedProgress {
	return PersistedProgress{
		LastFile:     "sub/b.mkv",
		LastPosition: 42.5,
		Settings: SettingsRecord{
			Volume:       volume,
			PlaybackRate: 1.5,
			Shuffle:      true,
			Loop:         false,
			Subtitles:    SubtitleRecord{Enabled: true, FontSize: 20},
			AspectRatio:  "16/9",
		},
	}
}

func TestStoreRoundTrip(t *testing.T) {
	for _, volume := range []float64{0.0, 0.5, 1.0} {
		store, _ := newTestStore(t)
		want := sampleRecord(volume)
		require.NoError(t, store.Save(want))

		got := store.Load()
		require.NotNil(t, got)
		assert.Equal(t, want, *got)
	}
}

func TestStoreLoadMissingFile(t *testing.T) {
	store, _ := newTestStore(t)
	assert.Nil(t, store.Load())
}

func TestStoreLoadMalformed(t *testing.T) {
	store, fsys := newTestStore(t)
	require.NoError(t, afero.WriteFile(fsys, testFileName, []byte("{not json"), 0o644))
	assert.Nil(t, store.Load())
}

func TestStoreLoadUnknownFieldsIgnored(t *testing.T) {
	store, fsys := newTestStore(t)
	blob := `{"lastFile":"a.mp4","lastPosition":3,"settings":{"volume":0.7},"futureField":true}`
	require.NoError(t, afero.WriteFile(fsys, testFileName, []byte(blob), 0o644))

	got := store.Load()
	require.NotNil(t, got)
	assert.Equal(t, "a.mp4", got.LastFile)
	assert.Equal(t, 0.7, got.Settings.Volume)
}

func TestStoreSaveReplacesPriorRecord(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.Save(sampleRecord(0.1)))
	require.NoError(t, store.Save(sampleRecord(0.9)))

	got := store.Load()
	require.NotNil(t, got)
	assert.Equal(t, 0.9, got.Settings.Volume)
}

func newTestWriter(t *testing.T, throttle, settle time.Duration) (*Writer, *Store) {
	t.Helper()
	store, _ := newTestStore(t)
	return NewWriter(store, throttle, settle, nil, logger.New("test")), store
}

func snapAt(pos float64) Snapshot {
	return Snapshot{ItemPath: "a.mp4", Position: pos, Settings: sampleRecord(0.5).Settings}
}

func TestWriterFirstPositionWriteImmediate(t *testing.T) {
	w, store := newTestWriter(t, time.Hour, time.Millisecond)
	w.NotifyPosition(snapAt(1))

	got := store.Load()
	require.NotNil(t, got)
	assert.Equal(t, 1.0, got.LastPosition)
}

func TestWriterThrottlesPositionUpdates(t *testing.T) {
	w, store := newTestWriter(t, time.Hour, time.Millisecond)
	w.NotifyPosition(snapAt(1))
	w.NotifyPosition(snapAt(2))
	w.NotifyPosition(snapAt(3))

	got := store.Load()
	require.NotNil(t, got)
	assert.Equal(t, 1.0, got.LastPosition, "updates inside the window stay pending")
}

func TestWriterSettingsBypassThrottle(t *testing.T) {
	w, store := newTestWriter(t, time.Hour, time.Millisecond)
	w.NotifyPosition(snapAt(1))
	w.NotifyPosition(snapAt(2)) // pending, throttled

	snap := snapAt(2)
	snap.Settings.Loop = true
	w.NotifySettings(snap)

	got := store.Load()
	require.NotNil(t, got)
	assert.True(t, got.Settings.Loop, "settings write must not wait for the window")
	assert.Equal(t, 2.0, got.LastPosition)
}

func TestWriterFlushWritesPending(t *testing.T) {
	w, store := newTestWriter(t, time.Hour, time.Hour)
	w.NotifyPosition(snapAt(1))
	w.NotifyPosition(snapAt(7)) // throttled

	w.Flush()

	got := store.Load()
	require.NotNil(t, got)
	assert.Equal(t, 7.0, got.LastPosition)
}

func TestWriterPauseSettleDelay(t *testing.T) {
	w, store := newTestWriter(t, time.Hour, 10*time.Millisecond)
	w.NotifyPosition(snapAt(1))
	w.NotifyPaused(snapAt(9))

	require.Eventually(t, func() bool {
		got := store.Load()
		return got != nil && got.LastPosition == 9.0
	}, time.Second, 5*time.Millisecond)
}

func TestWriterDeferredWriteAtWindowEdge(t *testing.T) {
	w, store := newTestWriter(t, 30*time.Millisecond, time.Millisecond)
	w.NotifyPosition(snapAt(1))
	w.NotifyPosition(snapAt(2)) // schedules write at window edge

	require.Eventually(t, func() bool {
		got := store.Load()
		return got != nil && got.LastPosition == 2.0
	}, time.Second, 5*time.Millisecond)
}

func TestWriterClosedDropsNotifications(t *testing.T) {
	w, store := newTestWriter(t, time.Hour, time.Millisecond)
	w.NotifyPosition(snapAt(1))
	w.Close()
	w.NotifyPosition(snapAt(99))
	w.Flush()

	got := store.Load()
	require.NotNil(t, got)
	assert.Equal(t, 1.0, got.LastPosition)
}

func testCatalog(paths ...string) *catalogmodule.Catalog {
	c := &catalogmodule.Catalog{}
	for _, p := range paths {
		c.Items = append(c.Items, catalogmodule.MediaItem{Path: p, Kind: catalogmodule.KindVideo})
	}
	return c
}

func TestResumeOfferStaleTarget(t *testing.T) {
	record := &PersistedProgress{LastFile: "old.mp4", LastPosition: 10}
	offer := NewResumeOffer(record, testCatalog("new.mp4"), time.Hour, nil, nil, logger.New("test"))
	assert.Nil(t, offer, "stale record must be discarded silently")
}

func TestResumeOfferNilRecord(t *testing.T) {
	assert.Nil(t, NewResumeOffer(nil, testCatalog("a.mp4"), time.Hour, nil, nil, logger.New("test")))
}

func TestResumeOfferIdempotentResolution(t *testing.T) {
	var calls atomic.Int32
	var last atomic.Value
	record := &PersistedProgress{LastFile: "a.mp4", LastPosition: 10}
	offer := NewResumeOffer(record, testCatalog("a.mp4"), time.Hour, func(c ResumeChoice) {
		calls.Add(1)
		last.Store(c)
	}, nil, logger.New("test"))
	require.NotNil(t, offer)

	offer.Resolve(ChoiceDismiss)
	offer.Resolve(ChoiceResume)
	offer.Resolve(ChoiceDismiss)

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, ChoiceDismiss, last.Load().(ResumeChoice))
	assert.True(t, offer.Resolved())
}

func TestResumeOfferCountdownAutoResumes(t *testing.T) {
	var last atomic.Value
	record := &PersistedProgress{LastFile: "a.mp4", LastPosition: 10}
	offer := NewResumeOffer(record, testCatalog("a.mp4"), 10*time.Millisecond, func(c ResumeChoice) {
		last.Store(c)
	}, nil, logger.New("test"))
	require.NotNil(t, offer)

	require.Eventually(t, offer.Resolved, time.Second, 5*time.Millisecond)
	assert.Equal(t, ChoiceResume, last.Load().(ResumeChoice))
}

func TestResumeOfferExplicitChoiceCancelsCountdown(t *testing.T) {
	var calls atomic.Int32
	record := &PersistedProgress{LastFile: "a.mp4", LastPosition: 10}
	offer := NewResumeOffer(record, testCatalog("a.mp4"), 20*time.Millisecond, func(ResumeChoice) {
		calls.Add(1)
	}, nil, logger.New("test"))
	require.NotNil(t, offer)

	offer.Resolve(ChoiceNewFolder)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load(), "countdown must not fire after resolution")
}
