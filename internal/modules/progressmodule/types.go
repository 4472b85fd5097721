// Package progressmodule keeps a session's playback progress durably
// synchronized with its folder: a single JSON record per session root,
// throttled writes while playing, immediate writes for preference changes,
// and the resume negotiation that runs on folder open.
package progressmodule

// SubtitleRecord is the persisted subtitle preference.
type SubtitleRecord struct {
	Enabled  bool `json:"enabled"`
	FontSize int  `json:"fontSize"`
}

// SettingsRecord is the persisted form of the session settings.
type SettingsRecord struct {
	Volume       float64        `json:"volume"`
	PlaybackRate float64        `json:"playbackRate"`
	Shuffle      bool           `json:"shuffle"`
	Loop         bool           `json:"loop"`
	Subtitles    SubtitleRecord `json:"subtitles"`
	AspectRatio  string         `json:"aspectRatio"`
}

// PersistedProgress is the durable record written into the session root.
// Each write fully replaces the prior record.
type PersistedProgress struct {
	// LastFile is the last played item's path relative to the session
	// root, forward-slash separated.
	LastFile     string         `json:"lastFile"`
	LastPosition float64        `json:"lastPosition"`
	Settings     SettingsRecord `json:"settings"`
}

// Snapshot is one observation of session state handed to the writer. The
// writer assigns sequence numbers; later snapshots always win over earlier
// ones regardless of write completion order.
type Snapshot struct {
	ItemPath string
	Position float64
	Settings SettingsRecord
}

// Record converts a snapshot to its persisted form.
func (s Snapshot) Record() PersistedProgress {
	return PersistedProgress{
		LastFile:     s.ItemPath,
		LastPosition: s.Position,
		Settings:     s.Settings,
	}
}
