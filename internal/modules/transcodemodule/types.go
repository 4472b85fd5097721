package transcodemodule

import (
	"context"
	"errors"
)

// ProbeResult is the structured stream description of a media file.
type ProbeResult struct {
	Container     string  `json:"container"`
	Duration      float64 `json:"duration"`
	HasVideo      bool    `json:"has_video"`
	VideoCodec    string  `json:"video_codec,omitempty"`
	Width         int     `json:"width,omitempty"`
	Height        int     `json:"height,omitempty"`
	HasAudio      bool    `json:"has_audio"`
	AudioCodec    string  `json:"audio_codec,omitempty"`
	AudioChannels int     `json:"audio_channels,omitempty"`
}

// Decision is the outcome of checking a probe against the compatibility
// rules. Video and audio are decided independently so a file with a fine
// video track but 5.1 audio only re-encodes the audio.
type Decision struct {
	ReencodeVideo bool `json:"reencode_video"`
	ReencodeAudio bool `json:"reencode_audio"`
}

// NeedsTranscode reports whether any stream must be re-encoded.
func (d Decision) NeedsTranscode() bool {
	return d.ReencodeVideo || d.ReencodeAudio
}

// TranscodeSpec describes one conversion job.
type TranscodeSpec struct {
	InputPath  string
	OutputPath string

	// CopyVideo and CopyAudio select stream copy over re-encoding.
	CopyVideo bool
	CopyAudio bool

	// Duration of the input in seconds, used to turn encoder timestamps
	// into a percentage.
	Duration float64

	Preset        string
	CRF           int
	AudioChannels int
	Threads       int
}

// Engine probes and converts media files. The ffmpeg engine is the only
// production implementation; tests substitute fakes.
type Engine interface {
	// Probe inspects a file and returns its stream description.
	Probe(ctx context.Context, path string) (*ProbeResult, error)

	// Transcode converts a file per spec, reporting progress in [0,100].
	// Cancelling the context kills the conversion.
	Transcode(ctx context.Context, spec TranscodeSpec, progress func(int)) error
}

// ErrEngineUnavailable is returned when no working ffmpeg installation
// could be found.
var ErrEngineUnavailable = errors.New("transcode engine unavailable")
