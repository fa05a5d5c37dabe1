package ports

import (
	"context"

	"github.com/icedl/icedl/internal/domain"
)

// SessionStore est un stockage clé/valeur process-wide pour les artefacts
// de session (titre, description, tables de parts, HTML de la page miroir).
// Les valeurs sont des blobs opaques; dernier écrivain gagne.
type SessionStore interface {
	Set(ctx context.Context, key string, value []byte) error
	// Get renvoie ErrNotFound quand la clé n'existe pas.
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

type DownloadRepository interface {
	Create(ctx context.Context, job domain.DownloadJob) (domain.DownloadJob, error)
	Get(ctx context.Context, id string) (domain.DownloadJob, error)
	List(ctx context.Context, limit int) ([]domain.DownloadJob, error)
	UpdateProgress(ctx context.Context, id string, progress float64, bytesDone, totalBytes int64) (domain.DownloadJob, error)
	UpdateError(ctx context.Context, id string, code string, message string) (domain.DownloadJob, error)
	UpdateState(ctx context.Context, id string, expected domain.DownloadState, next domain.DownloadState) (domain.DownloadJob, error)
}

type SettingsRepository interface {
	Get(ctx context.Context) (domain.Settings, error)
	Put(ctx context.Context, settings domain.Settings) (domain.Settings, error)
}

type EventBus interface {
	Publish(topic string, payload []byte)
	Subscribe() (ch <-chan Event, cancel func())
}

type Event struct {
	Topic   string
	Payload []byte
}
