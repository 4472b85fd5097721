package catalogmodule

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/dhowden/tag"
	"github.com/hashicorp/go-hclog"
	"github.com/samber/lo"
	"github.com/spf13/afero"

	"github.com/mantonx/playra/internal/config"
	"github.com/mantonx/playra/internal/events"
	"github.com/mantonx/playra/internal/storage"
)

// Builder scans a session root and produces a Catalog. A builder is bound
// to one storage provider; rebuilds go through the same instance.
type Builder struct {
	fs       afero.Fs
	cfg      config.CatalogConfig
	logger   hclog.Logger
	eventBus events.EventBus

	videoExts []string
	audioExts []string
	subExts   []string
}

// NewBuilder creates a catalog builder over the given provider.
func NewBuilder(provider storage.Provider, cfg config.CatalogConfig, logger hclog.Logger, eventBus events.EventBus) (*Builder, error) {
	fsys, ok := storage.Fs(provider)
	if !ok {
		return nil, fmt.Errorf("storage provider does not expose a filesystem")
	}
	return &Builder{
		fs:        fsys,
		cfg:       cfg,
		logger:    logger.Named("catalog"),
		eventBus:  eventBus,
		videoExts: normalizeExts(cfg.VideoExtensions),
		audioExts: normalizeExts(cfg.AudioExtensions),
		subExts:   normalizeExts(cfg.SubtitleExtensions),
	}, nil
}

// Build scans the whole tree depth-first and returns a fresh catalog. A
// subtree that cannot be read is skipped and reported through the Degraded
// flag; the scan itself only fails when the root is unreadable or the
// context is cancelled.
func (b *Builder) Build(ctx context.Context) (*Catalog, error) {
	if _, err := afero.ReadDir(b.fs, "."); err != nil {
		return nil, fmt.Errorf("failed to read session root: %w", err)
	}

	state := &scanState{
		subtitles: make(map[string][]string),
	}
	if err := b.walk(ctx, ".", state); err != nil {
		return nil, err
	}

	catalog := &Catalog{
		Degraded:    len(state.skipped) > 0,
		SkippedDirs: state.skipped,
	}
	for _, m := range state.media {
		item := MediaItem{
			Name:      b.displayName(m.path, m.kind),
			Path:      m.path,
			Kind:      m.kind,
			Subtitles: state.subtitles[pairKey(m.path)],
		}
		catalog.Items = append(catalog.Items, item)
	}

	// Byte-wise ascending path order; traversal order of siblings does
	// not matter because of this.
	sort.Slice(catalog.Items, func(i, j int) bool {
		return catalog.Items[i].Path < catalog.Items[j].Path
	})

	b.logger.Info("catalog built", "items", len(catalog.Items), "degraded", catalog.Degraded)
	b.publishScanned(catalog)
	return catalog, nil
}

type foundMedia struct {
	path string
	kind MediaKind
}

type scanState struct {
	media     []foundMedia
	subtitles map[string][]string
	skipped   []string
}

// walk recurses into dir, skipping unreadable subtrees.
func (b *Builder) walk(ctx context.Context, dir string, state *scanState) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	entries, err := afero.ReadDir(b.fs, dir)
	if err != nil {
		b.logger.Warn("skipping unreadable directory", "dir", dir, "error", err)
		state.skipped = append(state.skipped, relPath(dir))
		return nil
	}

	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		child := path.Join(dir, name)
		if entry.IsDir() {
			if err := b.walk(ctx, child, state); err != nil {
				return err
			}
			continue
		}

		rel := relPath(child)
		ext := strings.ToLower(path.Ext(name))
		switch {
		case lo.Contains(b.videoExts, ext):
			state.media = append(state.media, foundMedia{path: rel, kind: KindVideo})
		case lo.Contains(b.audioExts, ext):
			state.media = append(state.media, foundMedia{path: rel, kind: KindAudio})
		case lo.Contains(b.subExts, ext):
			state.subtitles[pairKey(rel)] = append(state.subtitles[pairKey(rel)], rel)
		}
	}
	return nil
}

// displayName derives the shown name for an item. Audio files get their
// embedded title tag when one is readable; everything else uses the stem.
func (b *Builder) displayName(rel string, kind MediaKind) string {
	stem := strings.TrimSuffix(path.Base(rel), path.Ext(rel))
	if kind != KindAudio || !b.cfg.ReadTags {
		return stem
	}

	f, err := b.fs.Open(rel)
	if err != nil {
		return stem
	}
	defer f.Close()

	meta, err := tag.ReadFrom(f)
	if err != nil || meta.Title() == "" {
		return stem
	}
	return meta.Title()
}

func (b *Builder) publishScanned(catalog *Catalog) {
	if b.eventBus == nil {
		return
	}
	b.eventBus.PublishAsync(events.Event{
		Type:   events.EventCatalogScanned,
		Source: "catalogmodule",
		Data: map[string]interface{}{
			"items":    catalog.Len(),
			"degraded": catalog.Degraded,
		},
	})
	if catalog.Degraded {
		b.eventBus.PublishAsync(events.Event{
			Type:    events.EventCatalogDegraded,
			Source:  "catalogmodule",
			Message: fmt.Sprintf("%d subtrees skipped", len(catalog.SkippedDirs)),
			Data: map[string]interface{}{
				"skipped_dirs": catalog.SkippedDirs,
			},
		})
	}
}

// pairKey joins a file's parent directory and base name (without extension)
// so subtitles land on the media file they sit next to.
func pairKey(rel string) string {
	dir := path.Dir(rel)
	stem := strings.TrimSuffix(path.Base(rel), path.Ext(rel))
	return dir + "\x00" + stem
}

func relPath(p string) string {
	if p == "." {
		return ""
	}
	return strings.TrimPrefix(p, "./")
}

func normalizeExts(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	return out
}
