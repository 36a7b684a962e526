package repositories

import (
	"context"
	"fmt"

	"github.com/adstudio/backend/internal/db"
	"github.com/adstudio/backend/internal/models"
)

// PostgresDownloadRepository reads the append-only download log.
type PostgresDownloadRepository struct {
	pool db.Pool
}

// NewPostgresDownloadRepository constructs a download repository backed by PostgreSQL.
func NewPostgresDownloadRepository(pool db.Pool) *PostgresDownloadRepository {
	return &PostgresDownloadRepository{pool: pool}
}

// ListRecent returns the most recent downloads of accountID with their videos.
func (r *PostgresDownloadRepository) ListRecent(ctx context.Context, accountID string, limit int) ([]models.Download, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT `+videoColumns+`, d.id, d.account_id, d.downloaded_at
        FROM downloads d
        JOIN videos v ON v.id = d.video_id
        WHERE d.account_id = $1
        ORDER BY d.downloaded_at DESC, d.id
        LIMIT $2
    `, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("query downloads: %w", err)
	}
	defer rows.Close()

	downloads := []models.Download{}
	for rows.Next() {
		var download models.Download
		video, err := scanVideo(rows, &download.ID, &download.AccountID, &download.DownloadedAt)
		if err != nil {
			return nil, fmt.Errorf("scan download: %w", err)
		}
		download.VideoID = video.ID
		download.DownloadedAt = download.DownloadedAt.UTC()
		download.Video = &video
		downloads = append(downloads, download)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate downloads: %w", err)
	}

	return downloads, nil
}
