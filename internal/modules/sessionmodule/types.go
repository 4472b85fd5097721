package sessionmodule

import (
	"context"
	"errors"
	"io"

	"github.com/mantonx/playra/internal/modules/catalogmodule"
	"github.com/mantonx/playra/internal/modules/progressmodule"
)

// Phase is the transport state of the session.
type Phase string

const (
	// PhaseIdle means no item is selected.
	PhaseIdle Phase = "idle"
	// PhaseLoading means an item is chosen but its byte source is not ready.
	PhaseLoading Phase = "loading"
	// PhaseTranscoding is a sub-state of loading, exposed separately so the
	// UI can show re-encode progress.
	PhaseTranscoding Phase = "transcoding"
	PhasePlaying     Phase = "playing"
	PhasePaused      Phase = "paused"
	// PhaseEnded is terminal per item and immediately evaluates the
	// advance policy.
	PhaseEnded Phase = "ended"
	// PhaseError means the byte source is unusable; advancing is left to
	// the caller.
	PhaseError Phase = "error"
)

// AspectRatio is the render aspect mode.
type AspectRatio string

const (
	AspectAuto    AspectRatio = "auto"
	AspectContain AspectRatio = "contain"
	AspectCover   AspectRatio = "cover"
	AspectFill    AspectRatio = "fill"
	Aspect169     AspectRatio = "16/9"
	Aspect43      AspectRatio = "4/3"
)

// aspectCycle is the order CycleAspectRatio steps through.
var aspectCycle = []AspectRatio{AspectAuto, AspectContain, AspectCover, AspectFill, Aspect169, Aspect43}

// PlaybackRates is the fixed set of allowed playback speeds.
var PlaybackRates = []float64{0.5, 0.75, 1.0, 1.25, 1.5, 1.75, 2.0}

// Settings are the user preferences carried by a session and persisted with
// its progress.
type Settings struct {
	Volume           float64     `json:"volume"`
	PlaybackRate     float64     `json:"playbackRate"`
	Shuffle          bool        `json:"shuffle"`
	Loop             bool        `json:"loop"`
	SubtitlesEnabled bool        `json:"subtitlesEnabled"`
	SubtitleFontSize int         `json:"subtitleFontSize"`
	AspectRatio      AspectRatio `json:"aspectRatio"`
}

// DefaultSettings returns the settings a fresh session starts with.
func DefaultSettings() Settings {
	return Settings{
		Volume:           1.0,
		PlaybackRate:     1.0,
		SubtitleFontSize: 16,
		AspectRatio:      AspectAuto,
	}
}

// Record converts settings to their persisted form.
func (s Settings) Record() progressmodule.SettingsRecord {
	return progressmodule.SettingsRecord{
		Volume:       s.Volume,
		PlaybackRate: s.PlaybackRate,
		Shuffle:      s.Shuffle,
		Loop:         s.Loop,
		Subtitles: progressmodule.SubtitleRecord{
			Enabled:  s.SubtitlesEnabled,
			FontSize: s.SubtitleFontSize,
		},
		AspectRatio: string(s.AspectRatio),
	}
}

// SettingsFromRecord converts a persisted record back into settings,
// clamping anything out of range.
func SettingsFromRecord(r progressmodule.SettingsRecord) Settings {
	s := DefaultSettings()
	s.Volume = clampVolume(r.Volume)
	if isAllowedRate(r.PlaybackRate) {
		s.PlaybackRate = r.PlaybackRate
	}
	s.Shuffle = r.Shuffle
	s.Loop = r.Loop
	s.SubtitlesEnabled = r.Subtitles.Enabled
	if r.Subtitles.FontSize > 0 {
		s.SubtitleFontSize = r.Subtitles.FontSize
	}
	if isAspectRatio(r.AspectRatio) {
		s.AspectRatio = AspectRatio(r.AspectRatio)
	}
	return s
}

// Source is a playable byte source handed to the render surface.
type Source struct {
	// Path is the host path to the playable file, when one exists.
	Path string
	// Reader streams the playable bytes; may be nil when Path is set and
	// the render surface prefers opening the file itself.
	Reader io.ReadCloser
	// WasTranscoded reports whether the codec pipeline re-encoded the
	// original file.
	WasTranscoded bool
}

// Close releases the source's reader, if any.
func (s *Source) Close() error {
	if s == nil || s.Reader == nil {
		return nil
	}
	return s.Reader.Close()
}

// Loader acquires a playable byte source for an item. The codec
// compatibility pipeline sits behind this interface; progress reports
// re-encode percentage in [0,100].
type Loader interface {
	Load(ctx context.Context, item catalogmodule.MediaItem, progress func(int)) (*Source, error)
}

// ProgressSink receives persistence notifications from the session.
type ProgressSink interface {
	// NotifyPosition is throttled by the sink.
	NotifyPosition(snap progressmodule.Snapshot)
	// NotifyPaused is written after a short settle delay.
	NotifyPaused(snap progressmodule.Snapshot)
	// NotifySettings is written immediately, unthrottled.
	NotifySettings(snap progressmodule.Snapshot)
	// Flush synchronously writes the latest known state.
	Flush()
}

// State is the read-only observable session state.
type State struct {
	ID          string                   `json:"id"`
	Phase       Phase                    `json:"phase"`
	Index       int                      `json:"index"`
	Item        *catalogmodule.MediaItem `json:"item,omitempty"`
	Position    float64                  `json:"position"`
	Duration    float64                  `json:"duration"`
	Settings    Settings                 `json:"settings"`
	Transcoding int                      `json:"transcodeProgress,omitempty"`
}

var (
	// ErrNoCatalog is returned when a command needs a catalog and none is loaded.
	ErrNoCatalog = errors.New("no catalog loaded")
	// ErrNoSelection is returned when a command needs a selected item.
	ErrNoSelection = errors.New("no item selected")
	// ErrIndexOutOfRange is returned for selections outside the catalog.
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrInvalidRate is returned for playback rates outside the allowed set.
	ErrInvalidRate = errors.New("playback rate not allowed")
	// ErrInvalidFontSize is returned for non-positive subtitle font sizes.
	ErrInvalidFontSize = errors.New("subtitle font size must be positive")
	// ErrSessionClosed is returned for commands on a closed session.
	ErrSessionClosed = errors.New("session closed")
)

func clampVolume(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func isAllowedRate(rate float64) bool {
	for _, r := range PlaybackRates {
		if r == rate {
			return true
		}
	}
	return false
}

func isAspectRatio(s string) bool {
	for _, a := range aspectCycle {
		if string(a) == s {
			return true
		}
	}
	return false
}
