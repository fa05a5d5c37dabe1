package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/icedl/icedl/internal/adapters/sqlite"
	"github.com/icedl/icedl/internal/app"
	"github.com/icedl/icedl/internal/domain"
)

func TestSettingsHandler_PutPersistsAndClamps(t *testing.T) {
	ctx := context.Background()
	db, err := sqlite.Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := sqlite.NewSettingsRepository(db.SQL)
	svc := app.NewSettingsService(repo, zerolog.Nop())

	h := NewSettingsHandler(svc)
	r := chi.NewRouter()
	h.Routes(r)

	body := []byte(`{"downloadDir":"videos","stackMultiPart":false,"flattenSourceType":true,"useMediaDirs":true,"deleteIncomplete":false,"watchedPercentIndex":9,"bufferDelaySeconds":-3}`)
	req := httptest.NewRequest(http.MethodPut, "/settings", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: want %d, got %d", http.StatusOK, rr.Code)
	}

	var updated domain.Settings
	if err := json.Unmarshal(rr.Body.Bytes(), &updated); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if updated.DownloadDir != "videos" || !updated.UseMediaDirs {
		t.Fatalf("settings non persistés: %+v", updated)
	}
	// Les valeurs hors bornes sont ramenées dans la plage.
	if updated.WatchedPercentIndex != len(domain.WatchedThresholds)-1 {
		t.Fatalf("watchedPercentIndex: got %d", updated.WatchedPercentIndex)
	}
	if updated.BufferDelaySeconds != 0 {
		t.Fatalf("bufferDelaySeconds: got %d", updated.BufferDelaySeconds)
	}

	// Un GET relit la même chose.
	req = httptest.NewRequest(http.MethodGet, "/settings", nil)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: want %d, got %d", http.StatusOK, rr.Code)
	}
	var got domain.Settings
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got != updated {
		t.Fatalf("GET après PUT: want %+v, got %+v", updated, got)
	}
}

func TestSettingsHandler_PutRejectsInvalidJSON(t *testing.T) {
	ctx := context.Background()
	db, err := sqlite.Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	svc := app.NewSettingsService(sqlite.NewSettingsRepository(db.SQL), zerolog.Nop())
	h := NewSettingsHandler(svc)
	r := chi.NewRouter()
	h.Routes(r)

	req := httptest.NewRequest(http.MethodPut, "/settings", bytes.NewReader([]byte(`{not json`)))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: want %d, got %d", http.StatusBadRequest, rr.Code)
	}
}
