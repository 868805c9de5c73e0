package model

// Video status
type VideoStatus string

const (
	StatusQueued     VideoStatus = "queued"
	StatusInProgress VideoStatus = "in_progress"
	StatusCompleted  VideoStatus = "completed"
	StatusFailed     VideoStatus = "failed"
)

// IsTerminal reports whether the remote service has stopped working on the video.
func (s VideoStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Label is the human readable form used in listings and exports.
func (s VideoStatus) Label() string {
	switch s {
	case StatusQueued:
		return "Queued"
	case StatusInProgress:
		return "In progress"
	case StatusCompleted:
		return "Completed"
	case StatusFailed:
		return "Failed"
	default:
		return string(s)
	}
}

// Models
const (
	ModelSora2    = "sora-2"
	ModelSora2Pro = "sora-2-pro"
)

var ValidModels = []string{ModelSora2, ModelSora2Pro}

// Resolutions (width x height)
const (
	SizePortrait      = "720x1280"
	SizeLandscape     = "1280x720"
	SizeTallPortrait  = "1024x1792"
	SizeWideLandscape = "1792x1024"
)

// Durations accepted by the remote service, in seconds
var ValidSeconds = []string{"4", "8", "12"}

// Asset variants
type AssetVariant string

const (
	VariantVideo       AssetVariant = "video"
	VariantThumbnail   AssetVariant = "thumbnail"
	VariantSpritesheet AssetVariant = "spritesheet"
)

var AllVariants = []AssetVariant{VariantVideo, VariantThumbnail, VariantSpritesheet}

// Asset choices a caller can ask for
type AssetChoice string

const (
	ChoiceVideoAndThumbnail AssetChoice = "video_and_thumbnail"
	ChoiceVideo             AssetChoice = "video"
	ChoiceThumbnail         AssetChoice = "thumbnail"
	ChoiceSpritesheet       AssetChoice = "spritesheet"
	ChoiceAll               AssetChoice = "all"
)

var ValidAssetChoices = []AssetChoice{
	ChoiceVideoAndThumbnail, ChoiceVideo, ChoiceThumbnail, ChoiceSpritesheet, ChoiceAll,
}

// IsValid reports whether c is one of the known choices.
func (c AssetChoice) IsValid() bool {
	for _, v := range ValidAssetChoices {
		if v == c {
			return true
		}
	}
	return false
}

// Track sources
type TrackSource string

const (
	TrackSourceCreate TrackSource = "create"
	TrackSourceRemix  TrackSource = "remix"
)

// Operation kinds
type OperationKind string

const (
	OpRefresh  OperationKind = "refresh"
	OpCreate   OperationKind = "create"
	OpRemix    OperationKind = "remix"
	OpDownload OperationKind = "download"
	OpDelete   OperationKind = "delete"
	OpCurrency OperationKind = "currency"
)
