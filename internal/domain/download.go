package domain

import (
	"errors"
	"time"
)

type DownloadState string

const (
	DownloadIdle      DownloadState = "idle"
	DownloadRunning   DownloadState = "downloading"
	DownloadCompleted DownloadState = "completed"
	DownloadFailed    DownloadState = "failed"
	DownloadCanceled  DownloadState = "canceled"
)

func (s DownloadState) IsTerminal() bool {
	return s == DownloadCompleted || s == DownloadFailed || s == DownloadCanceled
}

// MinViableSize est la taille minimale (octets) d'un transfert réussi.
// En dessous, l'hébergeur a renvoyé une page d'erreur au lieu du fichier.
const MinViableSize = 10000

// DownloadJob représente un transfert en arrière-plan. Un seul job actif
// à la fois dans tout le système; voir app.DownloadManager.
type DownloadJob struct {
	ID          string
	URL         string
	Dest        string
	DisplayName string
	State       DownloadState
	Progress    float64
	BytesDone   int64
	TotalBytes  int64
	CreatedAt   time.Time
	UpdatedAt   time.Time

	ErrorCode    string
	ErrorMessage string
}

var ErrInvalidTransition = errors.New("invalid download state transition")

func CanTransition(from, to DownloadState) bool {
	if from == to {
		return true
	}
	switch from {
	case DownloadIdle:
		return to == DownloadRunning || to == DownloadCanceled || to == DownloadFailed
	case DownloadRunning:
		return to == DownloadCompleted || to == DownloadCanceled || to == DownloadFailed
	case DownloadCompleted, DownloadCanceled, DownloadFailed:
		return false
	default:
		return false
	}
}
