package catalogmodule

import (
	"context"
	"os"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mantonx/playra/internal/config"
	"github.com/mantonx/playra/internal/logger"
	"github.com/mantonx/playra/internal/storage"
)

func testCatalogConfig() config.CatalogConfig {
	cfg := config.Default().Catalog
	cfg.ReadTags = false
	return cfg
}

func newTestBuilder(t *testing.T, fsys afero.Fs) *Builder {
	t.Helper()
	b, err := NewBuilder(storage.NewMemProvider(fsys), testCatalogConfig(), logger.New("test"), nil)
	require.NoError(t, err)
	return b
}

func writeFile(t *testing.T, fsys afero.Fs, name string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fsys, name, []byte("x"), 0o644))
}

// denyDirFs refuses to open one path, standing in for a permission-revoked
// subtree.
type denyDirFs struct {
	afero.Fs
	denied string
}

func (f *denyDirFs) Open(name string) (afero.File, error) {
	if name == f.denied {
		return nil, os.ErrPermission
	}
	return f.Fs.Open(name)
}

func TestBuildPairsSubtitles(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "a.mp4")
	writeFile(t, fsys, "sub/b.mkv")
	writeFile(t, fsys, "sub/b.srt")

	catalog, err := newTestBuilder(t, fsys).Build(context.Background())
	require.NoError(t, err)

	require.Equal(t, 2, catalog.Len())
	assert.Equal(t, "a.mp4", catalog.Items[0].Path)
	assert.Equal(t, "sub/b.mkv", catalog.Items[1].Path)
	assert.Equal(t, []string{"sub/b.srt"}, catalog.Items[1].Subtitles)
	assert.Empty(t, catalog.Items[0].Subtitles)
	assert.False(t, catalog.Degraded)
}

func TestBuildMultipleSubtitlesPerItem(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "movie.mp4")
	writeFile(t, fsys, "movie.srt")
	writeFile(t, fsys, "movie.vtt")

	catalog, err := newTestBuilder(t, fsys).Build(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, catalog.Len())
	assert.Len(t, catalog.Items[0].Subtitles, 2)
}

func TestBuildIgnoresUnknownExtensions(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "a.mp4")
	writeFile(t, fsys, "readme.txt")
	writeFile(t, fsys, "cover.jpg")

	catalog, err := newTestBuilder(t, fsys).Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, catalog.Len())
}

func TestBuildSubtitleInOtherDirectoryNotPaired(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "a/movie.mp4")
	writeFile(t, fsys, "b/movie.srt")

	catalog, err := newTestBuilder(t, fsys).Build(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, catalog.Len())
	assert.Empty(t, catalog.Items[0].Subtitles)
}

func TestBuildSortedByPathBytes(t *testing.T) {
	fsys := afero.NewMemMapFs()
	// Case-sensitive byte order puts "Z" before "a".
	writeFile(t, fsys, "Zeta.mp4")
	writeFile(t, fsys, "alpha.mp4")
	writeFile(t, fsys, "dir/x.mp3")

	catalog, err := newTestBuilder(t, fsys).Build(context.Background())
	require.NoError(t, err)

	paths := []string{}
	for _, item := range catalog.Items {
		paths = append(paths, item.Path)
	}
	assert.Equal(t, []string{"Zeta.mp4", "alpha.mp4", "dir/x.mp3"}, paths)
}

func TestBuildDeterministicAcrossRebuilds(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "c.mp4")
	writeFile(t, fsys, "a.mp4")
	writeFile(t, fsys, "b/nested.mkv")

	b := newTestBuilder(t, fsys)
	first, err := b.Build(context.Background())
	require.NoError(t, err)
	second, err := b.Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first.Items, second.Items)
}

func TestBuildExtensionCaseInsensitive(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "upper.MP4")
	writeFile(t, fsys, "upper.SRT")

	catalog, err := newTestBuilder(t, fsys).Build(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, catalog.Len())
	assert.Equal(t, KindVideo, catalog.Items[0].Kind)
	assert.Equal(t, []string{"upper.SRT"}, catalog.Items[0].Subtitles)
}

func TestBuildKinds(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "song.flac")
	writeFile(t, fsys, "clip.webm")

	catalog, err := newTestBuilder(t, fsys).Build(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, catalog.Len())
	assert.Equal(t, KindVideo, catalog.Items[0].Kind) // clip.webm
	assert.Equal(t, KindAudio, catalog.Items[1].Kind) // song.flac
}

func TestBuildSkipsHiddenFiles(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "a.mp4")
	writeFile(t, fsys, ".playra/progress.json")
	writeFile(t, fsys, ".hidden.mp4")

	catalog, err := newTestBuilder(t, fsys).Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, catalog.Len())
}

func TestIndexOf(t *testing.T) {
	catalog := &Catalog{Items: []MediaItem{
		{Path: "a.mp4"},
		{Path: "b.mp4"},
	}}
	assert.Equal(t, 1, catalog.IndexOf("b.mp4"))
	assert.Equal(t, -1, catalog.IndexOf("old.mp4"))
}

func TestBuildCancelled(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "a.mp4")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestBuilder(t, fsys).Build(ctx)
	assert.Error(t, err)
}

func TestBuildUnreadableSubtreeDegradesCatalog(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "a.mp4")
	writeFile(t, fsys, "locked/b.mp4")
	writeFile(t, fsys, "open/c.mp4")

	catalog, err := newTestBuilder(t, &denyDirFs{Fs: fsys, denied: "locked"}).Build(context.Background())
	require.NoError(t, err)

	// The readable parts survive; the skipped subtree is reported.
	require.Equal(t, 2, catalog.Len())
	assert.Equal(t, "a.mp4", catalog.Items[0].Path)
	assert.Equal(t, "open/c.mp4", catalog.Items[1].Path)
	assert.True(t, catalog.Degraded)
	assert.Equal(t, []string{"locked"}, catalog.SkippedDirs)
}

func TestBuildUnreadableRootFails(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "a.mp4")

	_, err := newTestBuilder(t, &denyDirFs{Fs: fsys, denied: "."}).Build(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrPermission)
}
