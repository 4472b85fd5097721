package transcodemodule

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/shirou/gopsutil/v4/cpu"

	"github.com/mantonx/playra/internal/config"
)

// FFmpegEngine shells out to ffprobe and ffmpeg.
type FFmpegEngine struct {
	cfg    config.TranscodeConfig
	logger hclog.Logger
}

// NewFFmpegEngine verifies the configured ffmpeg and ffprobe binaries run
// before returning an engine.
func NewFFmpegEngine(ctx context.Context, cfg config.TranscodeConfig, logger hclog.Logger) (*FFmpegEngine, error) {
	for _, bin := range []string{cfg.FFmpegPath, cfg.FFprobePath} {
		cmd := exec.CommandContext(ctx, bin, "-version")
		if err := cmd.Run(); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrEngineUnavailable, bin, err)
		}
	}
	return &FFmpegEngine{cfg: cfg, logger: logger.Named("ffmpeg")}, nil
}

// ffprobeOutput mirrors the JSON emitted by
// ffprobe -print_format json -show_format -show_streams.
type ffprobeOutput struct {
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
		Channels  int    `json:"channels"`
	} `json:"streams"`
}

// Probe inspects a file with ffprobe and returns its stream description.
func (e *FFmpegEngine) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	cmd := exec.CommandContext(ctx, e.cfg.FFprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("failed to probe %s: %w", path, err)
	}

	var probe ffprobeOutput
	if err := json.Unmarshal(output, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output for %s: %w", path, err)
	}

	result := &ProbeResult{Container: probe.Format.FormatName}
	if probe.Format.Duration != "" {
		if duration, err := strconv.ParseFloat(probe.Format.Duration, 64); err == nil {
			result.Duration = duration
		}
	}

	for _, stream := range probe.Streams {
		switch stream.CodecType {
		case "video":
			// mjpeg video streams are cover art, not a video track.
			if stream.CodecName == "mjpeg" || stream.CodecName == "png" {
				continue
			}
			if !result.HasVideo {
				result.HasVideo = true
				result.VideoCodec = stream.CodecName
				result.Width = stream.Width
				result.Height = stream.Height
			}
		case "audio":
			if !result.HasAudio {
				result.HasAudio = true
				result.AudioCodec = stream.CodecName
				result.AudioChannels = stream.Channels
			}
		}
	}
	return result, nil
}

// Transcode converts a file per spec, streaming key=value progress from
// ffmpeg's -progress output instead of scraping its log lines.
func (e *FFmpegEngine) Transcode(ctx context.Context, spec TranscodeSpec, progress func(int)) error {
	args := []string{
		"-y",
		"-i", spec.InputPath,
	}

	if spec.CopyVideo {
		args = append(args, "-c:v", "copy")
	} else {
		args = append(args,
			"-c:v", "libx264",
			"-preset", spec.Preset,
			"-crf", strconv.Itoa(spec.CRF),
			"-threads", strconv.Itoa(spec.Threads),
			"-pix_fmt", "yuv420p",
		)
	}

	if spec.CopyAudio {
		args = append(args, "-c:a", "copy")
	} else {
		args = append(args,
			"-c:a", "aac",
			"-ac", strconv.Itoa(spec.AudioChannels),
			"-b:a", "192k",
		)
	}

	args = append(args,
		"-movflags", "+faststart",
		"-progress", "pipe:1",
		"-nostats",
		spec.OutputPath,
	)

	cmd := exec.CommandContext(ctx, e.cfg.FFmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open ffmpeg progress pipe: %w", err)
	}

	e.logger.Info("starting transcode", "input", spec.InputPath, "copy_video", spec.CopyVideo, "copy_audio", spec.CopyAudio)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		key, value, found := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !found {
			continue
		}
		switch key {
		case "out_time_us":
			us, err := strconv.ParseInt(value, 10, 64)
			if err != nil || spec.Duration <= 0 {
				continue
			}
			pct := int(float64(us) / 1e6 / spec.Duration * 100)
			if pct < 0 {
				pct = 0
			}
			if pct > 100 {
				pct = 100
			}
			if progress != nil {
				progress(pct)
			}
		case "progress":
			if value == "end" && progress != nil {
				progress(100)
			}
		}
	}

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("ffmpeg failed: %w: %s", err, tail(stderr.String(), 512))
	}
	return nil
}

// EncoderThreads picks a libx264 thread count that leaves headroom for the
// render surface.
func EncoderThreads() int {
	count, err := cpu.Counts(true)
	if err != nil || count <= 1 {
		return 1
	}
	threads := count - 1
	if threads > 8 {
		threads = 8
	}
	return threads
}

// tail returns the last n bytes of s.
func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
