package app

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/icedl/icedl/internal/domain"
	"github.com/icedl/icedl/internal/fetch"
	"github.com/icedl/icedl/internal/ports"
)

func testLogger() zerolog.Logger { return zerolog.Nop() }

func testFetchClient() *fetch.Client {
	return fetch.NewClient(testLogger(), "", "", 5*time.Second)
}

// memStore est un SessionStore en mémoire pour les tests.
type memStore struct {
	mu sync.Mutex
	m  map[string][]byte
}

func newMemStore() *memStore { return &memStore{m: map[string][]byte{}} }

func (s *memStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(value))
	copy(cp, value)
	s.m[key] = cp
	return nil
}

func (s *memStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return v, nil
}

func (s *memStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
	return nil
}

// memSettingsRepo sert des réglages figés.
type memSettingsRepo struct {
	mu sync.Mutex
	s  domain.Settings
}

func newMemSettingsRepo(s domain.Settings) *memSettingsRepo {
	return &memSettingsRepo{s: s}
}

func (r *memSettingsRepo) Get(context.Context) (domain.Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.s, nil
}

func (r *memSettingsRepo) Put(_ context.Context, s domain.Settings) (domain.Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.s = s
	return s, nil
}

// memDownloadsRepo réplique la sémantique du dépôt SQLite en mémoire.
type memDownloadsRepo struct {
	mu   sync.Mutex
	jobs map[string]domain.DownloadJob
}

func newMemDownloadsRepo() *memDownloadsRepo {
	return &memDownloadsRepo{jobs: map[string]domain.DownloadJob{}}
}

func (r *memDownloadsRepo) Create(_ context.Context, job domain.DownloadJob) (domain.DownloadJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = job
	return job, nil
}

func (r *memDownloadsRepo) Get(_ context.Context, id string) (domain.DownloadJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return domain.DownloadJob{}, ports.ErrNotFound
	}
	return job, nil
}

func (r *memDownloadsRepo) List(_ context.Context, _ int) ([]domain.DownloadJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.DownloadJob, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, j)
	}
	return out, nil
}

func (r *memDownloadsRepo) UpdateProgress(_ context.Context, id string, progress float64, bytesDone, totalBytes int64) (domain.DownloadJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return domain.DownloadJob{}, ports.ErrNotFound
	}
	job.Progress = progress
	job.BytesDone = bytesDone
	job.TotalBytes = totalBytes
	r.jobs[id] = job
	return job, nil
}

func (r *memDownloadsRepo) UpdateError(_ context.Context, id, code, message string) (domain.DownloadJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return domain.DownloadJob{}, ports.ErrNotFound
	}
	job.ErrorCode = code
	job.ErrorMessage = message
	r.jobs[id] = job
	return job, nil
}

func (r *memDownloadsRepo) UpdateState(_ context.Context, id string, expected, next domain.DownloadState) (domain.DownloadJob, error) {
	if !domain.CanTransition(expected, next) {
		return domain.DownloadJob{}, domain.ErrInvalidTransition
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok || job.State != expected {
		return domain.DownloadJob{}, ports.ErrNotFound
	}
	job.State = next
	r.jobs[id] = job
	return job, nil
}

// memBus enregistre les événements publiés.
type memBus struct {
	mu     sync.Mutex
	events []ports.Event
}

func (b *memBus) Publish(topic string, payload []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ports.Event{Topic: topic, Payload: payload})
}

func (b *memBus) Subscribe() (<-chan ports.Event, func()) {
	ch := make(chan ports.Event)
	close(ch)
	return ch, func() {}
}

func (b *memBus) topics() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.events))
	for _, e := range b.events {
		out = append(out, e.Topic)
	}
	return out
}
