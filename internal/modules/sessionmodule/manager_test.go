package sessionmodule

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mantonx/playra/internal/config"
	"github.com/mantonx/playra/internal/logger"
	"github.com/mantonx/playra/internal/modules/progressmodule"
	"github.com/mantonx/playra/internal/storage"
)

func managerConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Catalog.WatchRoot = false
	cfg.Catalog.ReadTags = false
	// Keep the countdown out of the way; tests resolve offers explicitly.
	cfg.Progress.ResumeCountdown = time.Hour
	return cfg
}

func testManager(t *testing.T) (*Manager, *fakeLoader) {
	t.Helper()
	loader := newFakeLoader()
	factory := func(provider storage.Provider) (Loader, error) {
		return loader, nil
	}
	m := NewManager(managerConfig(t), factory, nil, logger.New("test"))
	t.Cleanup(m.Close)
	return m, loader
}

func mediaFolder(t *testing.T, names ...string) string {
	t.Helper()
	root := t.TempDir()
	for _, name := range names {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("media"), 0o644))
	}
	return root
}

func writeProgress(t *testing.T, root string, record progressmodule.PersistedProgress) {
	t.Helper()
	data, err := json.Marshal(record)
	require.NoError(t, err)
	dir := filepath.Join(root, ".playra")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "progress.json"), data, 0o644))
}

func stereoSettings() progressmodule.SettingsRecord {
	return progressmodule.SettingsRecord{
		Volume:       1.0,
		PlaybackRate: 1.0,
		Subtitles:    progressmodule.SubtitleRecord{FontSize: 16},
		AspectRatio:  "auto",
	}
}

func TestOpenFolderBuildsCatalog(t *testing.T) {
	m, _ := testManager(t)
	root := mediaFolder(t, "a.mp4", "sub/b.mkv", "sub/b.srt")

	session, err := m.OpenFolder(context.Background(), root)
	require.NoError(t, err)
	require.NotNil(t, session)

	catalog := session.Catalog()
	require.Equal(t, 2, catalog.Len())
	assert.Equal(t, "a.mp4", catalog.Items[0].Path)
	assert.Equal(t, "sub/b.mkv", catalog.Items[1].Path)
	assert.Equal(t, []string{"sub/b.srt"}, catalog.Items[1].Subtitles)

	assert.Nil(t, m.ResumeOffer(), "fresh folder has nothing to resume")
	assert.Equal(t, PhaseIdle, session.State().Phase)
}

func TestOpenFolderMissingRoot(t *testing.T) {
	m, _ := testManager(t)

	_, err := m.OpenFolder(context.Background(), filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Nil(t, m.Session())
}

func TestOpenFolderRestoresSettingsAndOffersResume(t *testing.T) {
	m, _ := testManager(t)
	root := mediaFolder(t, "a.mp4", "b.mp4")
	settings := stereoSettings()
	settings.Volume = 0.25
	settings.Loop = true
	writeProgress(t, root, progressmodule.PersistedProgress{
		LastFile:     "b.mp4",
		LastPosition: 12.5,
		Settings:     settings,
	})

	session, err := m.OpenFolder(context.Background(), root)
	require.NoError(t, err)

	// Settings come back before any resume decision.
	state := session.State()
	assert.Equal(t, 0.25, state.Settings.Volume)
	assert.True(t, state.Settings.Loop)
	assert.Equal(t, PhaseIdle, state.Phase)

	offer := m.ResumeOffer()
	require.NotNil(t, offer)
	assert.Equal(t, "b.mp4", offer.Item)
	assert.Equal(t, 12.5, offer.Position)

	require.NoError(t, m.ResolveResume(progressmodule.ChoiceResume))
	require.Eventually(t, func() bool {
		st := session.State()
		return st.Phase == PhasePlaying && st.Index == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 12.5, session.State().Position)
}

func TestStaleResumeTargetIsDiscarded(t *testing.T) {
	m, _ := testManager(t)
	root := mediaFolder(t, "a.mp4")
	settings := stereoSettings()
	settings.Shuffle = true
	writeProgress(t, root, progressmodule.PersistedProgress{
		LastFile:     "gone.mp4",
		LastPosition: 30,
		Settings:     settings,
	})

	session, err := m.OpenFolder(context.Background(), root)
	require.NoError(t, err)

	assert.Nil(t, m.ResumeOffer())
	assert.True(t, session.State().Settings.Shuffle, "settings survive a stale resume target")
}

func TestDismissedOfferLeavesSessionIdle(t *testing.T) {
	m, _ := testManager(t)
	root := mediaFolder(t, "a.mp4")
	writeProgress(t, root, progressmodule.PersistedProgress{
		LastFile: "a.mp4", LastPosition: 5, Settings: stereoSettings(),
	})

	session, err := m.OpenFolder(context.Background(), root)
	require.NoError(t, err)
	require.NoError(t, m.ResolveResume(progressmodule.ChoiceDismiss))

	assert.Equal(t, PhaseIdle, session.State().Phase)
	assert.Nil(t, m.ResumeOffer())
	assert.Error(t, m.ResolveResume(progressmodule.ChoiceResume), "a settled offer cannot be re-resolved")
}

func TestOpeningSecondFolderSupersedesPendingOffer(t *testing.T) {
	m, _ := testManager(t)
	first := mediaFolder(t, "a.mp4")
	writeProgress(t, first, progressmodule.PersistedProgress{
		LastFile: "a.mp4", LastPosition: 5, Settings: stereoSettings(),
	})
	second := mediaFolder(t, "z.mp4")

	firstSession, err := m.OpenFolder(context.Background(), first)
	require.NoError(t, err)
	require.NotNil(t, m.ResumeOffer())

	secondSession, err := m.OpenFolder(context.Background(), second)
	require.NoError(t, err)

	assert.NotSame(t, firstSession, secondSession)
	assert.Equal(t, "z.mp4", secondSession.Catalog().Items[0].Path)
	assert.Nil(t, m.ResumeOffer())
	assert.ErrorIs(t, firstSession.Select(0), ErrSessionClosed)

	// The superseded offer must not have auto-resumed into the old folder,
	// and its record is gone along with the folder.
	assert.Equal(t, PhaseIdle, secondSession.State().Phase)
	assert.NoFileExists(t, filepath.Join(first, ".playra", "progress.json"))
}

func TestNewFolderChoiceClearsRecordAndClosesFolder(t *testing.T) {
	m, _ := testManager(t)
	root := mediaFolder(t, "a.mp4")
	writeProgress(t, root, progressmodule.PersistedProgress{
		LastFile: "a.mp4", LastPosition: 5, Settings: stereoSettings(),
	})

	session, err := m.OpenFolder(context.Background(), root)
	require.NoError(t, err)
	require.NotNil(t, m.ResumeOffer())

	require.NoError(t, m.ResolveResume(progressmodule.ChoiceNewFolder))

	assert.Nil(t, m.Session(), "starting over leaves no folder open")
	assert.Nil(t, m.ResumeOffer())
	assert.ErrorIs(t, session.Select(0), ErrSessionClosed)
	assert.NoFileExists(t, filepath.Join(root, ".playra", "progress.json"))

	// The manager is back to its pre-selection condition and can open again.
	reopened, err := m.OpenFolder(context.Background(), root)
	require.NoError(t, err)
	assert.Nil(t, m.ResumeOffer(), "cleared record must not offer resume")
	assert.Equal(t, PhaseIdle, reopened.State().Phase)
}

func TestCloseFlushesProgressToDisk(t *testing.T) {
	m, _ := testManager(t)
	root := mediaFolder(t, "a.mp4", "b.mp4")

	session, err := m.OpenFolder(context.Background(), root)
	require.NoError(t, err)
	require.NoError(t, session.Select(1))
	require.Eventually(t, func() bool {
		return session.State().Phase == PhasePlaying
	}, 2*time.Second, 5*time.Millisecond)
	session.ReportPosition(42)

	m.Close()
	assert.Nil(t, m.Session())

	data, err := os.ReadFile(filepath.Join(root, ".playra", "progress.json"))
	require.NoError(t, err)
	var record progressmodule.PersistedProgress
	require.NoError(t, json.Unmarshal(data, &record))
	assert.Equal(t, "b.mp4", record.LastFile)
	assert.Equal(t, 42.0, record.LastPosition)
}

func TestRescanPicksUpNewFiles(t *testing.T) {
	m, _ := testManager(t)
	root := mediaFolder(t, "a.mp4")

	session, err := m.OpenFolder(context.Background(), root)
	require.NoError(t, err)
	require.Equal(t, 1, session.Catalog().Len())

	require.NoError(t, os.WriteFile(filepath.Join(root, "b.mp4"), []byte("media"), 0o644))
	require.NoError(t, m.Rescan(context.Background()))

	catalog := session.Catalog()
	require.Equal(t, 2, catalog.Len())
	assert.Equal(t, "b.mp4", catalog.Items[1].Path)
}
