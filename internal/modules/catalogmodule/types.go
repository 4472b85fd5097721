package catalogmodule

// MediaKind distinguishes video items from audio items.
type MediaKind string

const (
	KindVideo MediaKind = "video"
	KindAudio MediaKind = "audio"
)

// MediaItem is one playable file. Items are immutable once constructed;
// a re-scan produces a whole new catalog rather than patching items.
type MediaItem struct {
	// Name is the display name: the file stem, or the embedded title tag
	// for audio files that carry one.
	Name string `json:"name"`

	// Path is the slash-separated path relative to the session root. It
	// is the item's identity key, unique within a session.
	Path string `json:"path"`

	Kind MediaKind `json:"kind"`

	// Subtitles lists the relative paths of subtitle files paired with
	// this item (same directory, same base name). Order is stable within
	// one scan but otherwise unspecified.
	Subtitles []string `json:"subtitles,omitempty"`
}

// Catalog is the ordered media listing produced by one scan of the session
// root, sorted ascending by byte-wise path comparison.
type Catalog struct {
	Items []MediaItem `json:"items"`

	// Degraded is set when one or more subtrees could not be read. The
	// catalog is still usable; SkippedDirs names the subtrees omitted.
	Degraded    bool     `json:"degraded"`
	SkippedDirs []string `json:"skipped_dirs,omitempty"`
}

// Len returns the number of items.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Items)
}

// ItemAt returns the item at index i, or nil when out of range.
func (c *Catalog) ItemAt(i int) *MediaItem {
	if c == nil || i < 0 || i >= len(c.Items) {
		return nil
	}
	return &c.Items[i]
}

// IndexOf returns the index of the item with the given path, or -1.
func (c *Catalog) IndexOf(path string) int {
	if c == nil {
		return -1
	}
	for i := range c.Items {
		if c.Items[i].Path == path {
			return i
		}
	}
	return -1
}
