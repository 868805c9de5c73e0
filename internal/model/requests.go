package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// MinPollInterval is the shortest interval accepted between two status fetches.
const MinPollInterval = time.Second

// PollIntervalMs converts a millisecond count from a request body.
func PollIntervalMs(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// Defaults are applied to create and remix requests that leave a field unset.
type Defaults struct {
	Model          string        `json:"model"`
	Size           string        `json:"size"`
	Seconds        string        `json:"seconds"`
	DownloadChoice AssetChoice   `json:"downloadChoice"`
	PollInterval   time.Duration `json:"-"`
	AutoDownload   bool          `json:"autoDownload"`
	PlaySound      bool          `json:"playSound"`
}

// MarshalJSON writes the poll interval as pollIntervalMs.
func (d Defaults) MarshalJSON() ([]byte, error) {
	type plain Defaults
	return json.Marshal(struct {
		plain
		PollIntervalMs int64 `json:"pollIntervalMs"`
	}{plain(d), d.PollInterval.Milliseconds()})
}

// DefaultsPatch overrides the non-nil fields of Defaults.
type DefaultsPatch struct {
	Model          *string        `json:"model,omitempty" validate:"omitempty,oneof=sora-2 sora-2-pro"`
	Size           *string        `json:"size,omitempty" validate:"omitempty,oneof=720x1280 1280x720 1024x1792 1792x1024"`
	Seconds        *string        `json:"seconds,omitempty" validate:"omitempty,oneof=4 8 12"`
	DownloadChoice *AssetChoice   `json:"downloadChoice,omitempty" validate:"omitempty,oneof=video_and_thumbnail video thumbnail spritesheet all"`
	PollIntervalMs *int64         `json:"pollIntervalMs,omitempty" validate:"omitempty,min=1000"`
	AutoDownload   *bool          `json:"autoDownload,omitempty"`
	PlaySound      *bool          `json:"playSound,omitempty"`
}

// Apply returns d with the patch applied.
func (p DefaultsPatch) Apply(d Defaults) Defaults {
	if p.Model != nil {
		d.Model = *p.Model
	}
	if p.Size != nil {
		d.Size = *p.Size
	}
	if p.Seconds != nil {
		d.Seconds = *p.Seconds
	}
	if p.DownloadChoice != nil {
		d.DownloadChoice = *p.DownloadChoice
	}
	if p.PollIntervalMs != nil {
		if interval := PollIntervalMs(*p.PollIntervalMs); interval >= MinPollInterval {
			d.PollInterval = interval
		}
	}
	if p.AutoDownload != nil {
		d.AutoDownload = *p.AutoDownload
	}
	if p.PlaySound != nil {
		d.PlaySound = *p.PlaySound
	}
	return d
}

// DownloadTarget selects which assets to fetch and where to put them.
type DownloadTarget struct {
	Choice      AssetChoice `json:"choice" validate:"required,oneof=video_and_thumbnail video thumbnail spritesheet all"`
	Destination string      `json:"destination,omitempty"`
}

// ProgressFunc receives every video snapshot observed while an operation runs.
type ProgressFunc func(Video)

// CreateRequest submits a new video.
type CreateRequest struct {
	Prompt         string          `json:"prompt" validate:"required,min=1,max=4000"`
	Model          string          `json:"model,omitempty" validate:"omitempty,oneof=sora-2 sora-2-pro"`
	Seconds        string          `json:"seconds,omitempty" validate:"omitempty,oneof=4 8 12"`
	Size           string          `json:"size,omitempty" validate:"omitempty,oneof=720x1280 1280x720 1024x1792 1792x1024"`
	InputReference string          `json:"inputReference,omitempty"`
	Watch          bool            `json:"watch"`
	PollIntervalMs int64           `json:"pollIntervalMs,omitempty" validate:"omitempty,min=1000"`
	PollInterval   time.Duration   `json:"-"`
	AutoDownload   *bool           `json:"autoDownload,omitempty"`
	PlaySound      *bool           `json:"playSound,omitempty"`
	Download       *DownloadTarget `json:"download,omitempty"`
	OnProgress     ProgressFunc    `json:"-"`
}

// Interval is the requested poll interval. PollInterval wins over
// PollIntervalMs.
func (r CreateRequest) Interval() time.Duration {
	return requestInterval(r.PollInterval, r.PollIntervalMs)
}

func requestInterval(d time.Duration, ms int64) time.Duration {
	if d > 0 {
		return d
	}
	if ms > 0 {
		return PollIntervalMs(ms)
	}
	return 0
}

// FitResolution fills in the size the request will use and rejects a size
// the model cannot render. A default size is clamped to the chosen model
// instead of rejected.
func (r *CreateRequest) FitResolution(defaults Defaults) error {
	modelName := r.Model
	if modelName == "" {
		modelName = defaults.Model
	}
	if r.Size == "" {
		if modelName != defaults.Model {
			r.Size = ClampResolution(modelName, defaults.Size)
		}
		return nil
	}
	if !SupportsResolution(modelName, r.Size) {
		return fmt.Errorf("%s cannot render %s (allowed: %s)", modelName, r.Size, strings.Join(ModelResolutions[modelName], ", "))
	}
	return nil
}

// RemixRequest derives a new video from an existing one.
type RemixRequest struct {
	VideoID      string          `json:"videoId" validate:"required"`
	Prompt       string          `json:"prompt" validate:"required,min=1,max=4000"`
	Watch          bool            `json:"watch"`
	PollIntervalMs int64           `json:"pollIntervalMs,omitempty" validate:"omitempty,min=1000"`
	PollInterval   time.Duration   `json:"-"`
	AutoDownload   *bool           `json:"autoDownload,omitempty"`
	PlaySound      *bool           `json:"playSound,omitempty"`
	Download       *DownloadTarget `json:"download,omitempty"`
	OnProgress     ProgressFunc    `json:"-"`
}

// Interval is the requested poll interval. PollInterval wins over
// PollIntervalMs.
func (r RemixRequest) Interval() time.Duration {
	return requestInterval(r.PollInterval, r.PollIntervalMs)
}

// DownloadRequest fetches assets of a finished video.
type DownloadRequest struct {
	VideoID     string      `json:"videoId" validate:"required"`
	Choice      AssetChoice `json:"choice" validate:"required,oneof=video_and_thumbnail video thumbnail spritesheet all"`
	Destination string      `json:"destination,omitempty"`
}

// DeleteRequest removes a video from the remote service.
type DeleteRequest struct {
	VideoID string `json:"videoId" validate:"required"`
}

// DownloadedAsset is one file written to disk.
type DownloadedAsset struct {
	Variant   AssetVariant `json:"variant"`
	Path      string       `json:"path"`
	MirrorURL string       `json:"mirrorUrl,omitempty"`
}

// DownloadedAssets summarises a download for a choice.
type DownloadedAssets struct {
	Choice  AssetChoice       `json:"choice"`
	Entries []DownloadedAsset `json:"entries"`
}
