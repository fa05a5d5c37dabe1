package sqlite

import (
	"context"
	"testing"

	"github.com/icedl/icedl/internal/domain"
)

func TestSettingsRepository_DefaultsAndPersist(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := NewSettingsRepository(db.SQL)

	got, err := repo.Get(ctx)
	if err != nil {
		t.Fatalf("Get(default): %v", err)
	}
	if got.DownloadDir == "" {
		t.Fatalf("expected default DownloadDir, got empty")
	}
	if !got.StackMultiPart {
		t.Fatalf("expected StackMultiPart on by default")
	}

	want := domain.DefaultSettings()
	want.DownloadDir = "/tmp/videos"
	want.StackMultiPart = false
	want.UseMediaDirs = true
	want.WatchedPercentIndex = 2
	want.BufferDelaySeconds = 12

	updated, err := repo.Put(ctx, want)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if updated.DownloadDir != want.DownloadDir {
		t.Fatalf("DownloadDir: want %q, got %q", want.DownloadDir, updated.DownloadDir)
	}
	if updated.StackMultiPart != want.StackMultiPart {
		t.Fatalf("StackMultiPart: want %v, got %v", want.StackMultiPart, updated.StackMultiPart)
	}

	got2, err := repo.Get(ctx)
	if err != nil {
		t.Fatalf("Get(after Put): %v", err)
	}
	if got2.WatchedPercentIndex != want.WatchedPercentIndex {
		t.Fatalf("WatchedPercentIndex: want %d, got %d", want.WatchedPercentIndex, got2.WatchedPercentIndex)
	}
	if got2.BufferDelaySeconds != want.BufferDelaySeconds {
		t.Fatalf("BufferDelaySeconds: want %d, got %d", want.BufferDelaySeconds, got2.BufferDelaySeconds)
	}
}
