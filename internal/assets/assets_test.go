package assets

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gunta/skypilot/internal/model"
)

func TestFilename(t *testing.T) {
	tests := []struct {
		id      string
		variant model.AssetVariant
		want    string
	}{
		{"abc", model.VariantVideo, "abc.mp4"},
		{"abc", model.VariantThumbnail, "abc-thumbnail.jpg"},
		{"abc", model.VariantSpritesheet, "abc-spritesheet.png"},
		{"clip.MP4", model.VariantVideo, "clip.MP4"},
		{"clip.mp4", model.VariantThumbnail, "clip-thumbnail.jpg"},
		{"clip.mov", model.VariantVideo, "clip.mp4"},
	}
	for _, tt := range tests {
		if got := Filename(tt.id, tt.variant); got != tt.want {
			t.Errorf("Filename(%q, %s) = %q, want %q", tt.id, tt.variant, got, tt.want)
		}
	}
}

func TestPlanAllIntoDirectory(t *testing.T) {
	dir := t.TempDir()
	targets, err := Plan("abc", model.ChoiceAll, dir)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	want := []string{"abc.mp4", "abc-thumbnail.jpg", "abc-spritesheet.png"}
	if len(targets) != len(want) {
		t.Fatalf("got %d targets, want %d", len(targets), len(want))
	}
	for i, tgt := range targets {
		if tgt.Path != filepath.Join(dir, want[i]) {
			t.Errorf("target %d = %q, want %q", i, tgt.Path, filepath.Join(dir, want[i]))
		}
	}
}

func TestPlanSingleVariantUsesDestinationAsFile(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out", "custom.mp4")
	targets, err := Plan("abc", model.ChoiceVideo, dest)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(targets) != 1 || targets[0].Path != dest {
		t.Fatalf("targets = %+v, want single %q", targets, dest)
	}
}

func TestPlanSingleVariantIntoDirectory(t *testing.T) {
	dir := t.TempDir()
	targets, err := Plan("abc", model.ChoiceThumbnail, dir+string(filepath.Separator))
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(targets) != 1 || targets[0].Path != filepath.Join(dir, "abc-thumbnail.jpg") {
		t.Errorf("unexpected targets %+v", targets)
	}
}

func TestPlanWithoutDestinationUsesWorkingDir(t *testing.T) {
	wd, _ := os.Getwd()
	targets, err := Plan("abc", model.ChoiceVideoAndThumbnail, "")
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if targets[1].Path != filepath.Join(wd, "abc-thumbnail.jpg") {
		t.Errorf("thumbnail path = %q", targets[1].Path)
	}
}

func TestPlanRejectsUnknownChoice(t *testing.T) {
	if _, err := Plan("abc", model.AssetChoice("gif"), ""); err == nil {
		t.Fatal("expected error for unknown choice")
	}
}

type fakeSource struct {
	fail map[model.AssetVariant]bool
}

func (s fakeSource) DownloadContent(ctx context.Context, videoID string, variant model.AssetVariant) (io.ReadCloser, error) {
	if s.fail[variant] {
		return nil, errors.New("boom")
	}
	return io.NopCloser(strings.NewReader(videoID + ":" + string(variant))), nil
}

type recordingMirror struct {
	mirrored []string
	deleted  []string
}

func (m *recordingMirror) MirrorFile(ctx context.Context, videoID string, variant model.AssetVariant, path string) (string, error) {
	m.mirrored = append(m.mirrored, filepath.Base(path))
	return "https://cdn.example/" + filepath.Base(path), nil
}

func (m *recordingMirror) DeleteVideo(ctx context.Context, videoID string, filenames []string) error {
	m.deleted = append(m.deleted, filenames...)
	return nil
}

func TestDownloaderWritesFiles(t *testing.T) {
	dir := t.TempDir()
	mirror := &recordingMirror{}
	d := NewDownloader(fakeSource{}, mirror)

	res, err := d.Download(context.Background(), "abc", model.ChoiceVideoAndThumbnail, dir)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if res.Choice != model.ChoiceVideoAndThumbnail || len(res.Entries) != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
	data, err := os.ReadFile(filepath.Join(dir, "abc-thumbnail.jpg"))
	if err != nil {
		t.Fatalf("read thumbnail: %v", err)
	}
	if string(data) != "abc:thumbnail" {
		t.Errorf("thumbnail content = %q", data)
	}
	if res.Entries[0].MirrorURL != "https://cdn.example/abc.mp4" {
		t.Errorf("mirror url = %q", res.Entries[0].MirrorURL)
	}

	if err := d.ForgetMirror(context.Background(), "abc"); err != nil {
		t.Fatalf("ForgetMirror: %v", err)
	}
	if len(mirror.deleted) != 3 {
		t.Errorf("deleted = %v, want all three variants", mirror.deleted)
	}
}

func TestDownloaderStopsOnError(t *testing.T) {
	d := NewDownloader(fakeSource{fail: map[model.AssetVariant]bool{model.VariantThumbnail: true}}, nil)
	if _, err := d.Download(context.Background(), "abc", model.ChoiceAll, t.TempDir()); err == nil {
		t.Fatal("expected download error")
	}
}
