package app

import (
	"path/filepath"
	"testing"

	"github.com/icedl/icedl/internal/domain"
)

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"The Movie (2009).avi":     "The Movie (2009).avi",
		`What? A "Movie": yes!`:    "What A Movie yes",
		"TV Shows/Show/Season 1":   "TV Shows/Show/Season 1",
		"naïve café":               "nave caf",
		"under_score-dash.keep":    "under_score-dash.keep",
	}
	for in, want := range cases {
		if got := SanitizeFilename(in); got != want {
			t.Fatalf("SanitizeFilename(%q): want %q, got %q", in, want, got)
		}
	}
}

func TestPlanPath_SinglePart(t *testing.T) {
	st := domain.DefaultSettings()
	st.DownloadDir = "/downloads"
	st.UseMediaDirs = false

	got, err := PlanPath(st, "Source #2 | MU | Full", "The Movie", "Movies/The Movie")
	if err != nil {
		t.Fatalf("PlanPath: %v", err)
	}
	if got != filepath.Join("/downloads", "The Movie.avi") {
		t.Fatalf("path: got %q", got)
	}
}

func TestPlanPath_PartSuffix(t *testing.T) {
	st := domain.DefaultSettings()
	st.DownloadDir = "/downloads"
	st.UseMediaDirs = false

	got, err := PlanPath(st, "Source #2 | MU | Part 3", "The Movie", "")
	if err != nil {
		t.Fatalf("PlanPath: %v", err)
	}
	if got != filepath.Join("/downloads", "The Movie part3.avi") {
		t.Fatalf("path: got %q", got)
	}
}

func TestPlanPath_MediaDirs(t *testing.T) {
	st := domain.DefaultSettings()
	st.DownloadDir = "/downloads"
	st.UseMediaDirs = true

	got, err := PlanPath(st, "Source #1 | VH | Full", "Show S01E02", "TV Shows/Show")
	if err != nil {
		t.Fatalf("PlanPath: %v", err)
	}
	if got != filepath.Join("/downloads", "TV Shows/Show", "Show S01E02.avi") {
		t.Fatalf("path: got %q", got)
	}
}

func TestPlanPath_NoDownloadDir(t *testing.T) {
	st := domain.DefaultSettings()
	st.DownloadDir = ""

	if _, err := PlanPath(st, "Source #1 | Full", "X", ""); err == nil {
		t.Fatalf("expected error without download dir")
	}
}
