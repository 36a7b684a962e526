package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/adstudio/backend/internal/db"
	"github.com/adstudio/backend/internal/models"
)

// PostgresFavoriteRepository persists account bookmarks.
type PostgresFavoriteRepository struct {
	pool db.Pool
	now  func() time.Time
}

// NewPostgresFavoriteRepository constructs a favorite repository backed by PostgreSQL.
func NewPostgresFavoriteRepository(pool db.Pool) *PostgresFavoriteRepository {
	return &PostgresFavoriteRepository{pool: pool, now: time.Now}
}

// Add bookmarks videoID for accountID. Adding an existing favorite returns the
// stored row with created set to false.
func (r *PostgresFavoriteRepository) Add(ctx context.Context, accountID, videoID string) (models.Favorite, bool, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Favorite{}, false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var (
		favorite models.Favorite
		created  bool
	)
	err = db.RunInTx(ctx, conn, db.DefaultRetryPolicy, func(tx pgx.Tx) error {
		var err error
		favorite, created, err = addFavorite(ctx, tx, accountID, videoID, r.now().UTC())
		return err
	})
	if err != nil {
		return models.Favorite{}, false, err
	}
	return favorite, created, nil
}

// Remove deletes the bookmark. Removing a missing favorite is not an error.
func (r *PostgresFavoriteRepository) Remove(ctx context.Context, accountID, videoID string) (bool, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM favorites WHERE account_id = $1 AND video_id = $2`, accountID, videoID)
	if err != nil {
		return false, fmt.Errorf("delete favorite: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Toggle removes the favorite when present and adds it otherwise, reporting
// whether the video is favorited afterwards.
func (r *PostgresFavoriteRepository) Toggle(ctx context.Context, accountID, videoID string) (bool, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var favorited bool
	err = db.RunInTx(ctx, conn, db.DefaultRetryPolicy, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM favorites WHERE account_id = $1 AND video_id = $2`, accountID, videoID)
		if err != nil {
			return fmt.Errorf("delete favorite: %w", err)
		}
		if tag.RowsAffected() > 0 {
			favorited = false
			return nil
		}
		if _, _, err := addFavorite(ctx, tx, accountID, videoID, r.now().UTC()); err != nil {
			return err
		}
		favorited = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return favorited, nil
}

// ListRecent returns the most recent favorites of accountID with their videos.
func (r *PostgresFavoriteRepository) ListRecent(ctx context.Context, accountID string, limit int) ([]models.Favorite, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT `+videoColumns+`, f.id, f.account_id, f.created_at
        FROM favorites f
        JOIN videos v ON v.id = f.video_id
        WHERE f.account_id = $1
        ORDER BY f.created_at DESC, f.id
        LIMIT $2
    `, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("query favorites: %w", err)
	}
	defer rows.Close()

	favorites := []models.Favorite{}
	for rows.Next() {
		var favorite models.Favorite
		video, err := scanVideo(rows, &favorite.ID, &favorite.AccountID, &favorite.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan favorite: %w", err)
		}
		favorite.VideoID = video.ID
		favorite.CreatedAt = favorite.CreatedAt.UTC()
		favorite.Video = &video
		favorites = append(favorites, favorite)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate favorites: %w", err)
	}

	return favorites, nil
}

func addFavorite(ctx context.Context, tx pgx.Tx, accountID, videoID string, now time.Time) (models.Favorite, bool, error) {
	tag, err := tx.Exec(ctx, `
        INSERT INTO favorites (id, account_id, video_id, created_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (account_id, video_id) DO NOTHING
    `, uuid.NewString(), accountID, videoID, now)
	if err != nil {
		if errors.Is(mapWriteError(err), ErrNotFound) {
			return models.Favorite{}, false, ErrNotFound
		}
		return models.Favorite{}, false, fmt.Errorf("insert favorite: %w", err)
	}

	var favorite models.Favorite
	err = tx.QueryRow(ctx, `
        SELECT id, account_id, video_id, created_at
        FROM favorites
        WHERE account_id = $1 AND video_id = $2
    `, accountID, videoID).Scan(&favorite.ID, &favorite.AccountID, &favorite.VideoID, &favorite.CreatedAt)
	if err != nil {
		return models.Favorite{}, false, fmt.Errorf("select favorite: %w", err)
	}
	favorite.CreatedAt = favorite.CreatedAt.UTC()
	return favorite, tag.RowsAffected() > 0, nil
}
