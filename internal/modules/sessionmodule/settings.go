package sessionmodule

import (
	"github.com/mantonx/playra/internal/events"
)

// Settings mutators. Every mutation is persisted immediately, bypassing the
// position throttle, so a preference change right before shutdown is never
// lost.

// SetVolume sets the volume, clamped to [0,1].
func (s *Session) SetVolume(v float64) error {
	return s.mutateSettings(func(set *Settings) error {
		set.Volume = clampVolume(v)
		return nil
	})
}

// SetPlaybackRate sets the playback speed; only rates from PlaybackRates
// are accepted.
func (s *Session) SetPlaybackRate(rate float64) error {
	return s.mutateSettings(func(set *Settings) error {
		if !isAllowedRate(rate) {
			return ErrInvalidRate
		}
		set.PlaybackRate = rate
		return nil
	})
}

// ToggleShuffle flips shuffle mode and returns the new value.
func (s *Session) ToggleShuffle() (bool, error) {
	var on bool
	err := s.mutateSettings(func(set *Settings) error {
		set.Shuffle = !set.Shuffle
		on = set.Shuffle
		return nil
	})
	return on, err
}

// ToggleLoop flips loop mode and returns the new value.
func (s *Session) ToggleLoop() (bool, error) {
	var on bool
	err := s.mutateSettings(func(set *Settings) error {
		set.Loop = !set.Loop
		on = set.Loop
		return nil
	})
	return on, err
}

// ToggleSubtitles flips subtitle visibility and returns the new value.
func (s *Session) ToggleSubtitles() (bool, error) {
	var on bool
	err := s.mutateSettings(func(set *Settings) error {
		set.SubtitlesEnabled = !set.SubtitlesEnabled
		on = set.SubtitlesEnabled
		return nil
	})
	return on, err
}

// SetSubtitleFontSize sets the subtitle font size in points.
func (s *Session) SetSubtitleFontSize(size int) error {
	return s.mutateSettings(func(set *Settings) error {
		if size <= 0 {
			return ErrInvalidFontSize
		}
		set.SubtitleFontSize = size
		return nil
	})
}

// CycleAspectRatio steps to the next aspect mode and returns it.
func (s *Session) CycleAspectRatio() (AspectRatio, error) {
	var next AspectRatio
	err := s.mutateSettings(func(set *Settings) error {
		for i, a := range aspectCycle {
			if a == set.AspectRatio {
				next = aspectCycle[(i+1)%len(aspectCycle)]
				set.AspectRatio = next
				return nil
			}
		}
		next = aspectCycle[0]
		set.AspectRatio = next
		return nil
	})
	return next, err
}

// ApplySettings replaces the session settings wholesale, used when
// restoring persisted preferences at session open. It does not notify the
// sink; nothing new needs persisting.
func (s *Session) ApplySettings(settings Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	settings.Volume = clampVolume(settings.Volume)
	if !isAllowedRate(settings.PlaybackRate) {
		settings.PlaybackRate = 1.0
	}
	if settings.SubtitleFontSize <= 0 {
		settings.SubtitleFontSize = DefaultSettings().SubtitleFontSize
	}
	if !isAspectRatio(string(settings.AspectRatio)) {
		settings.AspectRatio = AspectAuto
	}
	s.settings = settings
}

func (s *Session) mutateSettings(fn func(*Settings) error) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if err := fn(&s.settings); err != nil {
		s.mu.Unlock()
		return err
	}
	s.publishLocked(events.EventSessionSettings, map[string]interface{}{
		"settings": s.settings,
	})
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.sink.NotifySettings(snap)
	return nil
}
