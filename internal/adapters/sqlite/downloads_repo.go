package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/icedl/icedl/internal/domain"
	"github.com/icedl/icedl/internal/ports"
)

type DownloadsRepository struct {
	db *sql.DB
}

func NewDownloadsRepository(db *sql.DB) *DownloadsRepository {
	return &DownloadsRepository{db: db}
}

const downloadColumns = `id, url, dest, display_name, state, progress, bytes_done, total_bytes, created_at, updated_at, error_code, error_message`

func (r *DownloadsRepository) Create(ctx context.Context, job domain.DownloadJob) (domain.DownloadJob, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO downloads(`+downloadColumns+`)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, job.ID, job.URL, job.Dest, job.DisplayName, string(job.State), job.Progress, job.BytesDone, job.TotalBytes,
		job.CreatedAt.Format(time.RFC3339), job.UpdatedAt.Format(time.RFC3339), job.ErrorCode, job.ErrorMessage)
	if err != nil {
		return domain.DownloadJob{}, err
	}
	return r.Get(ctx, job.ID)
}

func scanDownload(scan func(...any) error) (domain.DownloadJob, error) {
	var j domain.DownloadJob
	var createdAt, updatedAt string
	if err := scan(&j.ID, &j.URL, &j.Dest, &j.DisplayName, &j.State, &j.Progress, &j.BytesDone, &j.TotalBytes,
		&createdAt, &updatedAt, &j.ErrorCode, &j.ErrorMessage); err != nil {
		return domain.DownloadJob{}, err
	}
	j.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	j.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return j, nil
}

func (r *DownloadsRepository) Get(ctx context.Context, id string) (domain.DownloadJob, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+downloadColumns+` FROM downloads WHERE id = ?`, id)
	j, err := scanDownload(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.DownloadJob{}, ports.ErrNotFound
		}
		return domain.DownloadJob{}, err
	}
	return j, nil
}

func (r *DownloadsRepository) List(ctx context.Context, limit int) ([]domain.DownloadJob, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+downloadColumns+` FROM downloads ORDER BY updated_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.DownloadJob{}
	for rows.Next() {
		j, err := scanDownload(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (r *DownloadsRepository) UpdateProgress(ctx context.Context, id string, progress float64, bytesDone, totalBytes int64) (domain.DownloadJob, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE downloads
		SET progress = ?, bytes_done = ?, total_bytes = ?, updated_at = ?
		WHERE id = ?
	`, progress, bytesDone, totalBytes, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return domain.DownloadJob{}, err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return domain.DownloadJob{}, ports.ErrNotFound
	}
	return r.Get(ctx, id)
}

func (r *DownloadsRepository) UpdateError(ctx context.Context, id string, code string, message string) (domain.DownloadJob, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE downloads
		SET error_code = ?, error_message = ?, updated_at = ?
		WHERE id = ?
	`, code, message, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return domain.DownloadJob{}, err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return domain.DownloadJob{}, ports.ErrNotFound
	}
	return r.Get(ctx, id)
}

func (r *DownloadsRepository) UpdateState(ctx context.Context, id string, expected domain.DownloadState, next domain.DownloadState) (domain.DownloadJob, error) {
	if !domain.CanTransition(expected, next) {
		return domain.DownloadJob{}, domain.ErrInvalidTransition
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE downloads
		SET state = ?, updated_at = ?
		WHERE id = ? AND state = ?
	`, string(next), time.Now().UTC().Format(time.RFC3339), id, string(expected))
	if err != nil {
		return domain.DownloadJob{}, err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return domain.DownloadJob{}, ports.ErrNotFound
	}
	return r.Get(ctx, id)
}
