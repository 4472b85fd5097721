package transcodemodule

import (
	"time"

	"gorm.io/gorm"
)

// ProbeRecord is a cached probe result keyed by the file's identity. A
// changed size or modification time invalidates the entry naturally since
// the lookup key no longer matches.
type ProbeRecord struct {
	ID        uint      `gorm:"primarykey"`
	CreatedAt time.Time `gorm:"autoCreateTime"`

	Path    string `gorm:"uniqueIndex:idx_probe_identity;size:1024"`
	Size    int64  `gorm:"uniqueIndex:idx_probe_identity"`
	ModTime int64  `gorm:"uniqueIndex:idx_probe_identity"`

	Container     string
	Duration      float64
	HasVideo      bool
	VideoCodec    string
	Width         int
	Height        int
	HasAudio      bool
	AudioCodec    string
	AudioChannels int
}

// ProbeCache persists probe results so re-opening a folder does not
// re-probe unchanged files.
type ProbeCache struct {
	db *gorm.DB
}

// NewProbeCache creates a probe cache over the given database.
func NewProbeCache(db *gorm.DB) *ProbeCache {
	return &ProbeCache{db: db}
}

// Get returns the cached probe for the file identity, or nil on a miss.
func (c *ProbeCache) Get(path string, size, modTime int64) *ProbeResult {
	if c == nil || c.db == nil {
		return nil
	}
	var record ProbeRecord
	err := c.db.Where("path = ? AND size = ? AND mod_time = ?", path, size, modTime).First(&record).Error
	if err != nil {
		return nil
	}
	return &ProbeResult{
		Container:     record.Container,
		Duration:      record.Duration,
		HasVideo:      record.HasVideo,
		VideoCodec:    record.VideoCodec,
		Width:         record.Width,
		Height:        record.Height,
		HasAudio:      record.HasAudio,
		AudioCodec:    record.AudioCodec,
		AudioChannels: record.AudioChannels,
	}
}

// Put stores a probe result for the file identity. Stale entries for the
// same path are removed.
func (c *ProbeCache) Put(path string, size, modTime int64, result *ProbeResult) error {
	if c == nil || c.db == nil || result == nil {
		return nil
	}
	if err := c.db.Where("path = ? AND (size <> ? OR mod_time <> ?)", path, size, modTime).Delete(&ProbeRecord{}).Error; err != nil {
		return err
	}
	record := ProbeRecord{
		Path:          path,
		Size:          size,
		ModTime:       modTime,
		Container:     result.Container,
		Duration:      result.Duration,
		HasVideo:      result.HasVideo,
		VideoCodec:    result.VideoCodec,
		Width:         result.Width,
		Height:        result.Height,
		HasAudio:      result.HasAudio,
		AudioCodec:    result.AudioCodec,
		AudioChannels: result.AudioChannels,
	}
	return c.db.Where("path = ? AND size = ? AND mod_time = ?", path, size, modTime).
		Assign(record).
		FirstOrCreate(&ProbeRecord{}).Error
}
