package transcodemodule

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/samber/lo"

	"github.com/mantonx/playra/internal/config"
	"github.com/mantonx/playra/internal/events"
	"github.com/mantonx/playra/internal/modules/catalogmodule"
	"github.com/mantonx/playra/internal/modules/sessionmodule"
	"github.com/mantonx/playra/internal/storage"
)

// Pipeline turns catalog items into playable byte sources. Most files take
// the fast path untouched; files in problematic containers are probed and,
// when a stream the render surface cannot decode is found, re-encoded.
// Any pipeline failure falls back to the original file so playback is
// always attempted.
type Pipeline struct {
	provider storage.Provider
	cfg      config.TranscodeConfig
	engines  *engineCache
	probes   *ProbeCache
	eventBus events.EventBus
	logger   hclog.Logger

	// sem serializes transcodes; one item loads at a time anyway and a
	// second ffmpeg would starve the first.
	sem chan struct{}

	mu     sync.Mutex
	jobDir string

	problematicExts    []string
	incompatibleCodecs []string
}

// NewPipeline creates a codec compatibility pipeline over the given
// storage provider. The probe cache may be nil.
func NewPipeline(provider storage.Provider, cfg config.TranscodeConfig, factory EngineFactory, probes *ProbeCache, eventBus events.EventBus, logger hclog.Logger) *Pipeline {
	return &Pipeline{
		provider:           provider,
		cfg:                cfg,
		engines:            newEngineCache(factory),
		probes:             probes,
		eventBus:           eventBus,
		logger:             logger.Named("transcode"),
		sem:                make(chan struct{}, 1),
		problematicExts:    lowerAll(cfg.ProblematicExtensions),
		incompatibleCodecs: lowerAll(cfg.IncompatibleVideoCodecs),
	}
}

var _ sessionmodule.Loader = (*Pipeline)(nil)

// Load acquires a playable byte source for the item.
func (p *Pipeline) Load(ctx context.Context, item catalogmodule.MediaItem, progress func(int)) (*sessionmodule.Source, error) {
	hostPath, ok := storage.HostPath(p.provider, item.Path)
	if !ok {
		// No host path means no external process can touch the file;
		// serve the bytes straight from the provider.
		reader, err := p.provider.Open(item.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", item.Path, err)
		}
		return &sessionmodule.Source{Reader: reader}, nil
	}

	if item.Kind == catalogmodule.KindAudio || !p.isProblematic(item.Path) {
		return &sessionmodule.Source{Path: hostPath}, nil
	}

	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-p.sem }()

	source, err := p.ensurePlayable(ctx, item, hostPath, progress)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		p.logger.Warn("pipeline failed, falling back to original file", "path", item.Path, "error", err)
		return &sessionmodule.Source{Path: hostPath}, nil
	}
	return source, nil
}

// ensurePlayable probes the file and re-encodes only what the render
// surface cannot handle.
func (p *Pipeline) ensurePlayable(ctx context.Context, item catalogmodule.MediaItem, hostPath string, progress func(int)) (*sessionmodule.Source, error) {
	engine, err := p.engines.Get(ctx)
	if err != nil {
		return nil, err
	}

	probe, err := p.probe(ctx, engine, item.Path, hostPath)
	if err != nil {
		return nil, err
	}

	decision := p.decide(probe)
	if !decision.NeedsTranscode() {
		p.logger.Debug("streams compatible, serving original", "path", item.Path, "video", probe.VideoCodec, "audio", probe.AudioCodec)
		return &sessionmodule.Source{Path: hostPath}, nil
	}

	outPath, err := p.transcode(ctx, engine, item, hostPath, probe, decision, progress)
	if err != nil {
		return nil, err
	}
	return &sessionmodule.Source{Path: outPath, WasTranscoded: true}, nil
}

// probe consults the persistent cache before shelling out to ffprobe.
func (p *Pipeline) probe(ctx context.Context, engine Engine, relPath, hostPath string) (*ProbeResult, error) {
	info, err := p.provider.Stat(relPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", relPath, err)
	}
	size := info.Size()
	modTime := info.ModTime().Unix()

	if cached := p.probes.Get(relPath, size, modTime); cached != nil {
		p.logger.Debug("probe cache hit", "path", relPath)
		return cached, nil
	}

	result, err := engine.Probe(ctx, hostPath)
	if err != nil {
		return nil, err
	}
	if err := p.probes.Put(relPath, size, modTime, result); err != nil {
		p.logger.Warn("failed to cache probe result", "path", relPath, "error", err)
	}
	return result, nil
}

// decide applies the compatibility rules to a probe.
func (p *Pipeline) decide(probe *ProbeResult) Decision {
	var d Decision
	if probe.HasVideo && lo.Contains(p.incompatibleCodecs, strings.ToLower(probe.VideoCodec)) {
		d.ReencodeVideo = true
	}
	if probe.HasAudio && probe.AudioChannels > p.cfg.MaxAudioChannels {
		d.ReencodeAudio = true
	}
	return d
}

func (p *Pipeline) transcode(ctx context.Context, engine Engine, item catalogmodule.MediaItem, hostPath string, probe *ProbeResult, decision Decision, progress func(int)) (string, error) {
	if err := os.MkdirAll(p.cfg.WorkDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create work dir: %w", err)
	}
	jobDir, err := os.MkdirTemp(p.cfg.WorkDir, "job-*")
	if err != nil {
		return "", fmt.Errorf("failed to create job dir: %w", err)
	}

	outPath := filepath.Join(jobDir, stem(item.Path)+".mp4")
	spec := TranscodeSpec{
		InputPath:     hostPath,
		OutputPath:    outPath,
		CopyVideo:     !decision.ReencodeVideo,
		CopyAudio:     !decision.ReencodeAudio,
		Duration:      probe.Duration,
		Preset:        p.cfg.Preset,
		CRF:           p.cfg.CRF,
		AudioChannels: p.cfg.MaxAudioChannels,
		Threads:       EncoderThreads(),
	}

	p.publish(events.EventTranscodeStarted, map[string]interface{}{
		"path":           item.Path,
		"reencode_video": decision.ReencodeVideo,
		"reencode_audio": decision.ReencodeAudio,
	})

	err = engine.Transcode(ctx, spec, func(pct int) {
		if progress != nil {
			progress(pct)
		}
		p.publish(events.EventTranscodeProgress, map[string]interface{}{
			"path":    item.Path,
			"percent": pct,
		})
	})
	if err != nil {
		os.RemoveAll(jobDir)
		p.publish(events.EventTranscodeFailed, map[string]interface{}{
			"path":  item.Path,
			"error": err.Error(),
		})
		return "", fmt.Errorf("transcode of %s failed: %w", item.Path, err)
	}

	p.replaceJobDir(jobDir)
	p.publish(events.EventTranscodeCompleted, map[string]interface{}{
		"path":   item.Path,
		"output": outPath,
	})
	p.logger.Info("transcode complete", "path", item.Path, "output", outPath)
	return outPath, nil
}

// replaceJobDir retires the previous job's output; only the newest
// transcode is ever served.
func (p *Pipeline) replaceJobDir(jobDir string) {
	p.mu.Lock()
	old := p.jobDir
	p.jobDir = jobDir
	p.mu.Unlock()
	if old != "" {
		os.RemoveAll(old)
	}
}

// Close removes any transcode output still on disk.
func (p *Pipeline) Close() {
	p.replaceJobDir("")
}

func (p *Pipeline) isProblematic(path string) bool {
	return lo.Contains(p.problematicExts, strings.ToLower(filepath.Ext(path)))
}

func (p *Pipeline) publish(t events.EventType, data map[string]interface{}) {
	if p.eventBus == nil {
		return
	}
	p.eventBus.PublishAsync(events.Event{
		Type:   t,
		Source: "transcodemodule",
		Data:   data,
	})
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func lowerAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, strings.ToLower(v))
	}
	return out
}
