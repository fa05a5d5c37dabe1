package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog"

	"github.com/icedl/icedl/internal/domain"
	"github.com/icedl/icedl/internal/ports"
	"github.com/icedl/icedl/internal/resolver"
)

// Fichiers sentinelles dans le dossier de téléchargement. Le protocole
// survit au process: un second lanceur sonde le premier par Ping/Alive
// avant de décider si le verrou Downloading est vivant ou orphelin.
const (
	sentinelDownloading = "Downloading"
	sentinelPing        = "Ping"
	sentinelAlive       = "Alive"
	sentinelCancel      = "Cancel"
	sentinelShowInfo    = "ShowDLInfo"
	dlingSuffix         = ".dling"
)

// Topics publiés sur le bus d'événements.
const (
	TopicDownloadProgress  = "download.progress"
	TopicDownloadCompleted = "download.completed"
	TopicDownloadCanceled  = "download.canceled"
	TopicDownloadFailed    = "download.failed"
	TopicDownloadInfo      = "download.info"
)

// errStopped marque une interruption volontaire (sentinelle Cancel ou
// arrêt du process), par opposition à un échec du transfert.
var errStopped = errors.New("download stopped")

// Progress est le payload JSON des événements de téléchargement.
type Progress struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Dest       string  `json:"dest"`
	Percent    int     `json:"percent"`
	BytesDone  int64   `json:"bytesDone"`
	TotalBytes int64   `json:"totalBytes"`
	SpeedKBps  float64 `json:"speedKBps"`
	ETASeconds int     `json:"etaSeconds"`
}

// StartRequest lance le téléchargement d'une source résolue. SourceName
// sert au calcul du chemin (suffixe partN pour les sources empilées).
type StartRequest struct {
	URL        string
	SourceName string
}

// DownloadManager transfère les fichiers en arrière-plan, un seul à la
// fois par dossier de destination. La progression est persistée en base
// et diffusée sur le bus; le contrôle externe (annulation, demande
// d'info, sonde de vie) passe par les sentinelles.
type DownloadManager struct {
	repo     ports.DownloadRepository
	store    ports.SessionStore
	bus      ports.EventBus
	settings *SettingsService
	logger   zerolog.Logger
	http     *http.Client
	ua       string

	// injectables pour les tests
	chunkSize int
	pingWait  time.Duration
	now       func() time.Time
	waiter    *resolver.Waiter

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
}

func NewDownloadManager(repo ports.DownloadRepository, store ports.SessionStore, bus ports.EventBus, settings *SettingsService, userAgent string, logger zerolog.Logger) *DownloadManager {
	ctx, cancel := context.WithCancel(context.Background())
	return &DownloadManager{
		repo:      repo,
		store:     store,
		bus:       bus,
		settings:  settings,
		logger:    logger.With().Str("component", "downloads").Logger(),
		http:      &http.Client{},
		ua:        userAgent,
		chunkSize: 128 * 1024,
		pingWait:  time.Second,
		now:       time.Now,
		waiter:    resolver.NewWaiter(logger, time.Second),
		baseCtx:   ctx,
		stop:      cancel,
	}
}

// Close interrompt les transferts en cours et attend leur nettoyage.
func (m *DownloadManager) Close() {
	m.stop()
	m.wg.Wait()
}

func (m *DownloadManager) Get(ctx context.Context, id string) (domain.DownloadJob, error) {
	return m.repo.Get(ctx, id)
}

func (m *DownloadManager) List(ctx context.Context, limit int) ([]domain.DownloadJob, error) {
	return m.repo.List(ctx, limit)
}

// Start vérifie le verrou du dossier, planifie la destination et lance
// le transfert en arrière-plan. Rend ErrBusy (avec le nom du fichier en
// cours) si un autre téléchargement est vivant.
func (m *DownloadManager) Start(ctx context.Context, req StartRequest) (domain.DownloadJob, error) {
	if req.URL == "" {
		return domain.DownloadJob{}, &CodedError{Code: "invalid_params", Message: "empty download url"}
	}
	st, err := m.settings.Get(ctx)
	if err != nil {
		return domain.DownloadJob{}, err
	}
	vidName := getString(ctx, m.store, KeyVideoName)
	if vidName == "" {
		vidName = req.SourceName
	}
	dest, err := PlanPath(st, req.SourceName, vidName, getString(ctx, m.store, KeyMediaPath))
	if err != nil {
		return domain.DownloadJob{}, err
	}

	if err := m.acquireDir(st.DownloadDir, st.DeleteIncomplete); err != nil {
		return domain.DownloadJob{}, err
	}
	if err := clearStaleDest(dest); err != nil {
		return domain.DownloadJob{}, err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return domain.DownloadJob{}, &CodedError{Code: "io_error", Message: "creating destination folder", Err: err}
	}

	job := domain.DownloadJob{
		ID:          xid.New().String(),
		URL:         req.URL,
		Dest:        dest,
		DisplayName: vidName,
		State:       domain.DownloadIdle,
		CreatedAt:   m.now().UTC(),
		UpdatedAt:   m.now().UTC(),
	}
	job, err = m.repo.Create(ctx, job)
	if err != nil {
		return domain.DownloadJob{}, err
	}

	if err := writeLock(filepath.Join(st.DownloadDir, sentinelDownloading), dest, vidName); err != nil {
		return domain.DownloadJob{}, &CodedError{Code: "io_error", Message: "writing download lock", Err: err}
	}
	if err := os.WriteFile(dest+dlingSuffix, []byte("dling"), 0o644); err != nil {
		os.Remove(filepath.Join(st.DownloadDir, sentinelDownloading))
		return domain.DownloadJob{}, &CodedError{Code: "io_error", Message: "writing dling marker", Err: err}
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.run(job, st.DownloadDir, st.DeleteIncomplete)
	}()
	return job, nil
}

// StartBuffered lance le transfert puis patiente le délai de bufferisation
// avant de rendre le chemin local, jouable pendant que le fichier grossit.
func (m *DownloadManager) StartBuffered(ctx context.Context, req StartRequest) (domain.DownloadJob, string, error) {
	st, err := m.settings.Get(ctx)
	if err != nil {
		return domain.DownloadJob{}, "", err
	}
	job, err := m.Start(ctx, req)
	if err != nil {
		return domain.DownloadJob{}, "", err
	}

	if st.BufferDelaySeconds > 0 {
		if m.waiter.Wait(ctx, st.BufferDelaySeconds, nil) == resolver.Cancelled {
			return job, "", ctx.Err()
		}
	}

	if _, err := os.Stat(job.Dest); err != nil {
		return job, "", &CodedError{Code: "io_error", Message: "download did not start writing", Err: err}
	}
	return job, job.Dest, nil
}

// Cancel dépose la sentinelle Cancel; le transfert en cours la ramasse
// au prochain chunk. Sans erreur même si rien ne tourne.
func (m *DownloadManager) Cancel(ctx context.Context) error {
	st, err := m.settings.Get(ctx)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(st.DownloadDir, sentinelCancel), nil, 0o644)
}

// RequestInfo demande au transfert en cours de publier un instantané de
// progression sur le bus.
func (m *DownloadManager) RequestInfo(ctx context.Context) error {
	st, err := m.settings.Get(ctx)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(st.DownloadDir, sentinelShowInfo), nil, 0o644)
}

// Active lit le verrou Downloading: chemin et nom du transfert en cours,
// faux si le dossier est libre.
func (m *DownloadManager) Active(ctx context.Context) (dest, name string, ok bool) {
	st, err := m.settings.Get(ctx)
	if err != nil {
		return "", "", false
	}
	data, err := os.ReadFile(filepath.Join(st.DownloadDir, sentinelDownloading))
	if err != nil {
		return "", "", false
	}
	dest, name = parseLock(data)
	return dest, name, true
}

// acquireDir applique le protocole Ping/Alive: si un verrou Downloading
// existe, on dépose Ping et on attend que le propriétaire réponde Alive.
// Réponse = occupé; silence = verrou orphelin, nettoyé selon la politique
// delete-incomplete.
func (m *DownloadManager) acquireDir(dir string, deleteIncomplete bool) error {
	os.Remove(filepath.Join(dir, sentinelPing))
	os.Remove(filepath.Join(dir, sentinelAlive))

	lock := filepath.Join(dir, sentinelDownloading)
	if _, err := os.Stat(lock); err != nil {
		return nil
	}

	if err := os.WriteFile(filepath.Join(dir, sentinelPing), nil, 0o644); err != nil {
		return &CodedError{Code: "io_error", Message: "writing ping sentinel", Err: err}
	}
	time.Sleep(m.pingWait)

	alivePath := filepath.Join(dir, sentinelAlive)
	if data, err := os.ReadFile(alivePath); err == nil {
		os.Remove(alivePath)
		_, name := parseLock(data)
		return &CodedError{Code: "busy", Message: fmt.Sprintf("currently downloading %s", name), Err: ports.ErrBusy}
	}

	// Pas de réponse: le process qui tenait le verrou est mort.
	os.Remove(filepath.Join(dir, sentinelPing))
	if deleteIncomplete {
		if data, err := os.ReadFile(lock); err == nil {
			stale, _ := parseLock(data)
			os.Remove(stale)
			os.Remove(stale + dlingSuffix)
		}
	}
	os.Remove(lock)
	m.logger.Warn().Msg("verrou de téléchargement orphelin nettoyé")
	return nil
}

// clearStaleDest purge une destination existante si elle porte encore son
// marqueur .dling (transfert interrompu); un fichier complet est refusé.
func clearStaleDest(dest string) error {
	if _, err := os.Stat(dest); err != nil {
		return nil
	}
	if _, err := os.Stat(dest + dlingSuffix); err == nil {
		if err := os.Remove(dest); err != nil {
			return &CodedError{Code: "io_error", Message: "removing incomplete file", Err: err}
		}
		os.Remove(dest + dlingSuffix)
		return nil
	}
	return &CodedError{Code: "conflict", Message: "the video you are trying to download already exists", Err: ports.ErrConflict}
}

func (m *DownloadManager) run(job domain.DownloadJob, dir string, deleteIncomplete bool) {
	sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
	if _, uerr := m.repo.UpdateState(sctx, job.ID, domain.DownloadIdle, domain.DownloadRunning); uerr != nil {
		m.logger.Error().Err(uerr).Str("id", job.ID).Msg("état downloading non persisté")
	}
	scancel()

	err := m.transfer(job, dir)
	m.cleanupSentinels(dir, job.Dest)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch {
	case err == nil:
		if _, uerr := m.repo.UpdateState(ctx, job.ID, domain.DownloadRunning, domain.DownloadCompleted); uerr != nil {
			m.logger.Error().Err(uerr).Str("id", job.ID).Msg("état completed non persisté")
		}
		m.publish(TopicDownloadCompleted, Progress{ID: job.ID, Name: job.DisplayName, Dest: job.Dest, Percent: 100})
		m.logger.Info().Str("id", job.ID).Str("dest", job.Dest).Msg("téléchargement terminé")

	case errors.Is(err, errStopped):
		m.removeDest(job.Dest, deleteIncomplete)
		if _, uerr := m.repo.UpdateState(ctx, job.ID, domain.DownloadRunning, domain.DownloadCanceled); uerr != nil {
			m.logger.Error().Err(uerr).Str("id", job.ID).Msg("état canceled non persisté")
		}
		m.publish(TopicDownloadCanceled, Progress{ID: job.ID, Name: job.DisplayName, Dest: job.Dest})
		m.logger.Info().Str("id", job.ID).Msg("téléchargement annulé")

	default:
		m.removeDest(job.Dest, deleteIncomplete)
		code := "network_error"
		var coded *CodedError
		if errors.As(err, &coded) {
			code = coded.Code
		}
		if _, uerr := m.repo.UpdateError(ctx, job.ID, code, err.Error()); uerr != nil {
			m.logger.Error().Err(uerr).Str("id", job.ID).Msg("erreur non persistée")
		}
		if _, uerr := m.repo.UpdateState(ctx, job.ID, domain.DownloadRunning, domain.DownloadFailed); uerr != nil {
			m.logger.Error().Err(uerr).Str("id", job.ID).Msg("état failed non persisté")
		}
		m.publish(TopicDownloadFailed, Progress{ID: job.ID, Name: job.DisplayName, Dest: job.Dest})
		m.logger.Error().Err(err).Str("id", job.ID).Msg("téléchargement échoué")
	}
}

func (m *DownloadManager) transfer(job domain.DownloadJob, dir string) error {
	req, err := http.NewRequestWithContext(m.baseCtx, http.MethodGet, job.URL, nil)
	if err != nil {
		return &CodedError{Code: "invalid_params", Message: "bad download url", Err: err}
	}
	req.Header.Set("User-Agent", m.ua)

	resp, err := m.http.Do(req)
	if err != nil {
		if m.baseCtx.Err() != nil {
			return errStopped
		}
		return &CodedError{Code: "network_error", Message: "opening download", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return &CodedError{Code: "network_error", Message: fmt.Sprintf("host answered %d", resp.StatusCode)}
	}
	total := resp.ContentLength

	out, err := os.Create(job.Dest)
	if err != nil {
		return &CodedError{Code: "io_error", Message: "creating destination file", Err: err}
	}
	defer out.Close()

	var (
		done        int64
		start       = m.now()
		lastPersist time.Time
		lastPercent = -1
		buf         = make([]byte, m.chunkSize)
	)
	for {
		if m.baseCtx.Err() != nil {
			return errStopped
		}
		if stopped, err := m.checkSentinels(dir, job, done, total, start); err != nil {
			return err
		} else if stopped {
			return errStopped
		}

		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				return &CodedError{Code: "io_error", Message: "writing destination file", Err: werr}
			}
			done += int64(n)

			p := m.snapshot(job, done, total, start)
			if p.Percent != lastPercent || m.now().Sub(lastPersist) >= time.Second {
				lastPercent = p.Percent
				lastPersist = m.now()
				pctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				if _, uerr := m.repo.UpdateProgress(pctx, job.ID, float64(p.Percent), done, total); uerr != nil {
					m.logger.Debug().Err(uerr).Str("id", job.ID).Msg("progression non persistée")
				}
				cancel()
				m.publish(TopicDownloadProgress, p)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return &CodedError{Code: "network_error", Message: "reading download stream", Err: rerr}
		}
	}

	if err := out.Sync(); err != nil {
		return &CodedError{Code: "io_error", Message: "flushing destination file", Err: err}
	}
	if done < domain.MinViableSize {
		return &CodedError{Code: "small_file", Message: "got a file smaller than 10KB"}
	}
	return nil
}

// checkSentinels ramasse les sentinelles déposées par d'autres appels:
// Cancel stoppe, ShowDLInfo publie un instantané, Ping reçoit Alive.
func (m *DownloadManager) checkSentinels(dir string, job domain.DownloadJob, done, total int64, start time.Time) (stopped bool, err error) {
	if removeSentinel(filepath.Join(dir, sentinelCancel)) {
		return true, nil
	}
	if removeSentinel(filepath.Join(dir, sentinelShowInfo)) {
		m.publish(TopicDownloadInfo, m.snapshot(job, done, total, start))
	}
	if removeSentinel(filepath.Join(dir, sentinelPing)) {
		if werr := writeLock(filepath.Join(dir, sentinelAlive), job.Dest, job.DisplayName); werr != nil {
			return false, &CodedError{Code: "io_error", Message: "answering ping", Err: werr}
		}
	}
	return false, nil
}

func (m *DownloadManager) snapshot(job domain.DownloadJob, done, total int64, start time.Time) Progress {
	p := Progress{
		ID:         job.ID,
		Name:       job.DisplayName,
		Dest:       job.Dest,
		BytesDone:  done,
		TotalBytes: total,
	}
	if total > 0 {
		p.Percent = int(min64(done*100/total, 100))
	}
	elapsed := m.now().Sub(start).Seconds()
	if elapsed > 0 {
		bps := float64(done) / elapsed
		p.SpeedKBps = bps / 1024
		if bps > 0 && total > done {
			p.ETASeconds = int(float64(total-done) / bps)
		}
	}
	return p
}

func (m *DownloadManager) publish(topic string, p Progress) {
	payload, err := json.Marshal(p)
	if err != nil {
		return
	}
	m.bus.Publish(topic, payload)
}

func (m *DownloadManager) cleanupSentinels(dir, dest string) {
	os.Remove(dest + dlingSuffix)
	os.Remove(filepath.Join(dir, sentinelDownloading))
	os.Remove(filepath.Join(dir, sentinelAlive))
}

func (m *DownloadManager) removeDest(dest string, deleteIncomplete bool) {
	if !deleteIncomplete {
		return
	}
	if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
		m.logger.Warn().Err(err).Str("dest", dest).Msg("fichier incomplet non supprimé")
	}
}

// removeSentinel retire la sentinelle si présente, avec quelques retries:
// le déposant peut encore tenir le handle.
func removeSentinel(path string) bool {
	if _, err := os.Stat(path); err != nil {
		return false
	}
	for i := 0; i < 5; i++ {
		if err := os.Remove(path); err == nil || os.IsNotExist(err) {
			return true
		}
		time.Sleep(50 * time.Millisecond)
	}
	return true
}

// writeLock écrit un fichier verrou deux lignes: chemin puis nom affiché.
func writeLock(path, dest, name string) error {
	return os.WriteFile(path, []byte(dest+"\n"+name), 0o644)
}

func parseLock(data []byte) (dest, name string) {
	lines := strings.SplitN(strings.TrimRight(string(data), "\n"), "\n", 2)
	dest = lines[0]
	if len(lines) > 1 {
		name = lines[1]
	}
	return dest, name
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
