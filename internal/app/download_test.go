package app

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/icedl/icedl/internal/domain"
	"github.com/icedl/icedl/internal/ports"
)

func newTestManager(t *testing.T, settings domain.Settings) (*DownloadManager, *memDownloadsRepo, *memStore, *memBus) {
	t.Helper()
	repo := newMemDownloadsRepo()
	store := newMemStore()
	bus := &memBus{}
	svc := NewSettingsService(newMemSettingsRepo(settings), testLogger())
	m := NewDownloadManager(repo, store, bus, svc, "test-agent", testLogger())
	m.chunkSize = 512
	m.pingWait = 200 * time.Millisecond
	t.Cleanup(m.Close)
	return m, repo, store, bus
}

func waitForState(t *testing.T, repo *memDownloadsRepo, id string, want domain.DownloadState) domain.DownloadJob {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := repo.Get(context.Background(), id)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if job.State == want {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	job, _ := repo.Get(context.Background(), id)
	t.Fatalf("state: want %q, still %q", want, job.State)
	return domain.DownloadJob{}
}

// slowServer streame des chunks jusqu'à annulation de la requête, pour
// laisser le temps aux sentinelles d'être ramassées.
func slowServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fl, _ := w.(http.Flusher)
		chunk := bytes.Repeat([]byte("x"), 1024)
		for {
			select {
			case <-r.Context().Done():
				return
			case <-time.After(10 * time.Millisecond):
			}
			if _, err := w.Write(chunk); err != nil {
				return
			}
			if fl != nil {
				fl.Flush()
			}
		}
	}))
}

func hasTopic(topics []string, want string) bool {
	for _, tp := range topics {
		if tp == want {
			return true
		}
	}
	return false
}

func TestDownloadManager_CompletesTransfer(t *testing.T) {
	body := bytes.Repeat([]byte("a"), 20000)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "test-agent" {
			t.Errorf("user-agent: got %q", got)
		}
		_, _ = w.Write(body)
	}))
	defer ts.Close()

	settings := domain.DefaultSettings()
	settings.DownloadDir = t.TempDir()
	m, repo, store, bus := newTestManager(t, settings)
	_ = store.Set(context.Background(), KeyVideoName, []byte("My Movie"))

	job, err := m.Start(context.Background(), StartRequest{URL: ts.URL, SourceName: "Source #1 | MU | Full"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	// Le job est créé en attente; la goroutine de transfert le passe à
	// downloading avant le premier chunk.
	if job.State != domain.DownloadIdle {
		t.Fatalf("état initial: want %q, got %q", domain.DownloadIdle, job.State)
	}
	wantDest := filepath.Join(settings.DownloadDir, "My Movie.avi")
	if job.Dest != wantDest {
		t.Fatalf("dest: want %q, got %q", wantDest, job.Dest)
	}

	waitForState(t, repo, job.ID, domain.DownloadCompleted)

	data, err := os.ReadFile(wantDest)
	if err != nil {
		t.Fatalf("lecture destination: %v", err)
	}
	if len(data) != len(body) {
		t.Fatalf("taille: want %d, got %d", len(body), len(data))
	}
	if _, err := os.Stat(wantDest + dlingSuffix); !os.IsNotExist(err) {
		t.Fatalf("marqueur .dling encore présent")
	}
	if _, err := os.Stat(filepath.Join(settings.DownloadDir, sentinelDownloading)); !os.IsNotExist(err) {
		t.Fatalf("verrou Downloading encore présent")
	}
	if !hasTopic(bus.topics(), TopicDownloadCompleted) {
		t.Fatalf("événement completed absent: %v", bus.topics())
	}
}

func TestDownloadManager_RejectsSmallFile(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(bytes.Repeat([]byte("a"), 500))
	}))
	defer ts.Close()

	settings := domain.DefaultSettings()
	settings.DownloadDir = t.TempDir()
	m, repo, _, bus := newTestManager(t, settings)

	job, err := m.Start(context.Background(), StartRequest{URL: ts.URL, SourceName: "Source #1 | MU | Full"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	job = waitForState(t, repo, job.ID, domain.DownloadFailed)
	if job.ErrorCode != "small_file" {
		t.Fatalf("code: want small_file, got %q", job.ErrorCode)
	}
	// delete-incomplete purge la destination ratée.
	if _, err := os.Stat(job.Dest); !os.IsNotExist(err) {
		t.Fatalf("fichier trop petit non supprimé")
	}
	if !hasTopic(bus.topics(), TopicDownloadFailed) {
		t.Fatalf("événement failed absent: %v", bus.topics())
	}
}

func TestDownloadManager_MinimumViableSizeBoundary(t *testing.T) {
	serve := func(size int) *httptest.Server {
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write(bytes.Repeat([]byte("a"), size))
		}))
	}

	t.Run("un octet sous la limite échoue", func(t *testing.T) {
		ts := serve(domain.MinViableSize - 1)
		defer ts.Close()

		settings := domain.DefaultSettings()
		settings.DownloadDir = t.TempDir()
		m, repo, _, _ := newTestManager(t, settings)

		job, err := m.Start(context.Background(), StartRequest{URL: ts.URL, SourceName: "Source #1 | MU | Full"})
		if err != nil {
			t.Fatalf("Start: %v", err)
		}
		job = waitForState(t, repo, job.ID, domain.DownloadFailed)
		if job.ErrorCode != "small_file" {
			t.Fatalf("code: want small_file, got %q", job.ErrorCode)
		}
	})

	t.Run("exactement la limite passe", func(t *testing.T) {
		ts := serve(domain.MinViableSize)
		defer ts.Close()

		settings := domain.DefaultSettings()
		settings.DownloadDir = t.TempDir()
		m, repo, _, _ := newTestManager(t, settings)

		job, err := m.Start(context.Background(), StartRequest{URL: ts.URL, SourceName: "Source #1 | MU | Full"})
		if err != nil {
			t.Fatalf("Start: %v", err)
		}
		waitForState(t, repo, job.ID, domain.DownloadCompleted)
	})
}

func TestDownloadManager_CancelSentinel(t *testing.T) {
	ts := slowServer(t)
	defer ts.Close()

	settings := domain.DefaultSettings()
	settings.DownloadDir = t.TempDir()
	m, repo, _, bus := newTestManager(t, settings)

	job, err := m.Start(context.Background(), StartRequest{URL: ts.URL, SourceName: "Source #1 | MU | Full"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.Cancel(context.Background()); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	waitForState(t, repo, job.ID, domain.DownloadCanceled)
	if _, err := os.Stat(job.Dest); !os.IsNotExist(err) {
		t.Fatalf("fichier annulé non supprimé")
	}
	if !hasTopic(bus.topics(), TopicDownloadCanceled) {
		t.Fatalf("événement canceled absent: %v", bus.topics())
	}
}

func TestDownloadManager_SecondStartIsBusy(t *testing.T) {
	ts := slowServer(t)
	defer ts.Close()

	settings := domain.DefaultSettings()
	settings.DownloadDir = t.TempDir()
	m, repo, store, _ := newTestManager(t, settings)
	_ = store.Set(context.Background(), KeyVideoName, []byte("First Movie"))

	job, err := m.Start(context.Background(), StartRequest{URL: ts.URL, SourceName: "Source #1 | MU | Full"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Attendre que le transfert écrive pour être sûr qu'il répondra au Ping.
	deadline := time.Now().Add(5 * time.Second)
	for {
		if fi, err := os.Stat(job.Dest); err == nil && fi.Size() > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("le premier transfert n'a jamais démarré")
		}
		time.Sleep(10 * time.Millisecond)
	}

	_ = store.Set(context.Background(), KeyVideoName, []byte("Second Movie"))
	_, err = m.Start(context.Background(), StartRequest{URL: ts.URL, SourceName: "Source #2 | MU | Full"})
	if !errors.Is(err, ports.ErrBusy) {
		t.Fatalf("want ErrBusy, got %v", err)
	}

	dest, name, ok := m.Active(context.Background())
	if !ok || name != "First Movie" || dest != job.Dest {
		t.Fatalf("Active: got %q %q %v", dest, name, ok)
	}

	if err := m.Cancel(context.Background()); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	waitForState(t, repo, job.ID, domain.DownloadCanceled)
}

func TestDownloadManager_ExistingFileConflicts(t *testing.T) {
	settings := domain.DefaultSettings()
	settings.DownloadDir = t.TempDir()
	m, _, store, _ := newTestManager(t, settings)
	_ = store.Set(context.Background(), KeyVideoName, []byte("My Movie"))

	dest := filepath.Join(settings.DownloadDir, "My Movie.avi")
	if err := os.WriteFile(dest, []byte("complete"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err := m.Start(context.Background(), StartRequest{URL: "http://host.invalid/file", SourceName: "Source #1 | MU | Full"})
	if !errors.Is(err, ports.ErrConflict) {
		t.Fatalf("want ErrConflict, got %v", err)
	}
}

func TestDownloadManager_CleansOrphanLock(t *testing.T) {
	body := bytes.Repeat([]byte("a"), 20000)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(body)
	}))
	defer ts.Close()

	settings := domain.DefaultSettings()
	settings.DownloadDir = t.TempDir()
	m, repo, store, _ := newTestManager(t, settings)
	_ = store.Set(context.Background(), KeyVideoName, []byte("My Movie"))

	// Verrou laissé par un process mort, avec son fichier incomplet.
	stale := filepath.Join(settings.DownloadDir, "Old Movie.avi")
	if err := os.WriteFile(stale, []byte("partial"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.WriteFile(stale+dlingSuffix, []byte("dling"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := writeLock(filepath.Join(settings.DownloadDir, sentinelDownloading), stale, "Old Movie"); err != nil {
		t.Fatalf("writeLock: %v", err)
	}

	job, err := m.Start(context.Background(), StartRequest{URL: ts.URL, SourceName: "Source #1 | MU | Full"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitForState(t, repo, job.ID, domain.DownloadCompleted)

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("fichier orphelin non purgé")
	}
	if _, err := os.Stat(stale + dlingSuffix); !os.IsNotExist(err) {
		t.Fatalf("marqueur orphelin non purgé")
	}
}

func TestDownloadManager_StartBufferedReturnsPath(t *testing.T) {
	body := bytes.Repeat([]byte("a"), 20000)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(body)
	}))
	defer ts.Close()

	settings := domain.DefaultSettings()
	settings.DownloadDir = t.TempDir()
	settings.BufferDelaySeconds = 1
	m, repo, store, _ := newTestManager(t, settings)
	_ = store.Set(context.Background(), KeyVideoName, []byte("My Movie"))

	job, path, err := m.StartBuffered(context.Background(), StartRequest{URL: ts.URL, SourceName: "Source #1 | MU | Full"})
	if err != nil {
		t.Fatalf("StartBuffered: %v", err)
	}
	if path != job.Dest {
		t.Fatalf("path: want %q, got %q", job.Dest, path)
	}
	waitForState(t, repo, job.ID, domain.DownloadCompleted)
}

func TestDownloadManager_StartBufferedCancelDuringDelay(t *testing.T) {
	ts := slowServer(t)
	defer ts.Close()

	settings := domain.DefaultSettings()
	settings.DownloadDir = t.TempDir()
	settings.BufferDelaySeconds = 60
	m, repo, store, _ := newTestManager(t, settings)
	_ = store.Set(context.Background(), KeyVideoName, []byte("My Movie"))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	job, path, err := m.StartBuffered(ctx, StartRequest{URL: ts.URL, SourceName: "Source #1 | MU | Full"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
	if path != "" {
		t.Fatalf("pas de chemin attendu, got %q", path)
	}

	// Le transfert de fond continue; on le stoppe proprement.
	if err := m.Cancel(context.Background()); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	waitForState(t, repo, job.ID, domain.DownloadCanceled)
}
