// Package assets maps download choices to asset files on disk.
package assets

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gunta/skypilot/internal/model"
)

var variantFiles = map[model.AssetVariant]struct{ suffix, ext string }{
	model.VariantVideo:       {"", ".mp4"},
	model.VariantThumbnail:   {"thumbnail", ".jpg"},
	model.VariantSpritesheet: {"spritesheet", ".png"},
}

// Target is one variant and the path it will be written to.
type Target struct {
	Variant model.AssetVariant
	Path    string
}

// Variants expands a choice into the variants it covers, in download order.
func Variants(choice model.AssetChoice) ([]model.AssetVariant, error) {
	switch choice {
	case model.ChoiceAll:
		return append([]model.AssetVariant(nil), model.AllVariants...), nil
	case model.ChoiceVideoAndThumbnail:
		return []model.AssetVariant{model.VariantVideo, model.VariantThumbnail}, nil
	case model.ChoiceVideo, model.ChoiceThumbnail, model.ChoiceSpritesheet:
		return []model.AssetVariant{model.AssetVariant(choice)}, nil
	default:
		return nil, fmt.Errorf("unknown asset choice %q", choice)
	}
}

// Filename derives the default file name of a variant from the video ID.
func Filename(videoID string, variant model.AssetVariant) string {
	ext := filepath.Ext(videoID)
	base := videoID
	if ext != "" {
		base = strings.TrimSuffix(videoID, ext)
	}

	if variant == model.VariantVideo {
		if strings.EqualFold(ext, ".mp4") {
			return videoID
		}
		return base + ".mp4"
	}

	f := variantFiles[variant]
	return base + "-" + f.suffix + f.ext
}

// Plan resolves where each variant of choice goes. With one variant the
// destination is the file path unless it ends in a separator; with several it
// is a directory. Without a destination files land in the working directory.
func Plan(videoID string, choice model.AssetChoice, destination string) ([]Target, error) {
	variants, err := Variants(choice)
	if err != nil {
		return nil, err
	}
	isDir := strings.HasSuffix(destination, "/") || strings.HasSuffix(destination, string(filepath.Separator))

	targets := make([]Target, 0, len(variants))
	for _, v := range variants {
		name := Filename(videoID, v)
		path := name
		switch {
		case destination != "" && len(variants) == 1 && !isDir:
			path = destination
		case destination != "":
			path = filepath.Join(destination, name)
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", path, err)
		}
		targets = append(targets, Target{Variant: v, Path: abs})
	}
	return targets, nil
}

// Filenames lists the default file names of every variant.
func Filenames(videoID string) []string {
	names := make([]string, 0, len(model.AllVariants))
	for _, v := range model.AllVariants {
		names = append(names, Filename(videoID, v))
	}
	return names
}
