package assets

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/gunta/skypilot/internal/client"
	"github.com/gunta/skypilot/internal/model"
)

// ContentSource streams the bytes of one asset variant
type ContentSource interface {
	DownloadContent(ctx context.Context, videoID string, variant model.AssetVariant) (io.ReadCloser, error)
}

// Downloader fetches assets to disk and optionally mirrors them.
type Downloader struct {
	source ContentSource
	mirror client.AssetMirror
}

func NewDownloader(source ContentSource, mirror client.AssetMirror) *Downloader {
	return &Downloader{source: source, mirror: mirror}
}

// Download writes every variant of choice and reports where each one went.
func (d *Downloader) Download(ctx context.Context, videoID string, choice model.AssetChoice, destination string) (*model.DownloadedAssets, error) {
	targets, err := Plan(videoID, choice, destination)
	if err != nil {
		return nil, err
	}

	result := &model.DownloadedAssets{Choice: choice}
	for _, t := range targets {
		if err := d.fetch(ctx, videoID, t); err != nil {
			return nil, err
		}
		entry := model.DownloadedAsset{Variant: t.Variant, Path: t.Path}
		if d.mirror != nil {
			url, err := d.mirror.MirrorFile(ctx, videoID, t.Variant, t.Path)
			if err != nil {
				log.Printf("[Assets] Warning: mirror of %s failed: %v", t.Path, err)
			} else {
				entry.MirrorURL = url
			}
		}
		result.Entries = append(result.Entries, entry)
	}
	return result, nil
}

// ForgetMirror drops mirrored copies of a deleted video.
func (d *Downloader) ForgetMirror(ctx context.Context, videoID string) error {
	if d.mirror == nil {
		return nil
	}
	return d.mirror.DeleteVideo(ctx, videoID, Filenames(videoID))
}

func (d *Downloader) fetch(ctx context.Context, videoID string, t Target) error {
	body, err := d.source.DownloadContent(ctx, videoID, t.Variant)
	if err != nil {
		return fmt.Errorf("failed to download %s of video %s: %w", t.Variant, videoID, err)
	}
	defer body.Close()

	if err := os.MkdirAll(filepath.Dir(t.Path), 0o755); err != nil {
		return fmt.Errorf("create parent for %s: %w", t.Path, err)
	}
	f, err := os.Create(t.Path)
	if err != nil {
		return fmt.Errorf("create %s: %w", t.Path, err)
	}
	if _, err := io.Copy(f, body); err != nil {
		_ = f.Close()
		_ = os.Remove(t.Path)
		return fmt.Errorf("write %s: %w", t.Path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", t.Path, err)
	}
	log.Printf("[Assets] Saved %s of video %s to %s", t.Variant, videoID, t.Path)
	return nil
}
