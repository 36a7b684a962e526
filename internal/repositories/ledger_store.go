package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/adstudio/backend/internal/db"
	"github.com/adstudio/backend/internal/entitlement"
	"github.com/adstudio/backend/internal/models"
)

// PostgresLedgerStore applies download entitlements with a conditional
// decrement and the download insert in one serializable transaction.
type PostgresLedgerStore struct {
	pool  db.Pool
	retry db.RetryPolicy
}

// ledgerRetryPolicy tolerates bursts of downloads against one account.
var ledgerRetryPolicy = db.RetryPolicy{
	MaxAttempts: 10,
	BaseBackoff: 10 * time.Millisecond,
	MaxBackoff:  500 * time.Millisecond,
}

// NewPostgresLedgerStore constructs a ledger store backed by PostgreSQL.
func NewPostgresLedgerStore(pool db.Pool) *PostgresLedgerStore {
	return &PostgresLedgerStore{pool: pool, retry: ledgerRetryPolicy}
}

// Consume implements entitlement.Store.
func (s *PostgresLedgerStore) Consume(ctx context.Context, policy entitlement.Policy, req entitlement.Request) (entitlement.Receipt, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return entitlement.Receipt{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var receipt entitlement.Receipt
	err = db.RunInTx(ctx, conn, s.retry, func(tx pgx.Tx) error {
		receipt = entitlement.Receipt{}

		account, err := decrementAllowance(ctx, tx, policy, req)
		switch {
		case err == nil:
		case errors.Is(err, pgx.ErrNoRows):
			// Nothing was decremented: either the account is unlimited or
			// the request must be denied.
			account, err = scanAccount(tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, req.AccountID))
			if errors.Is(err, pgx.ErrNoRows) {
				return entitlement.ErrAccountNotFound
			}
			if err != nil {
				return fmt.Errorf("select account: %w", err)
			}
			receipt.Account = account
			if !account.Tier.Unlimited() {
				if denial := policy.Authorize(account, req.At); denial != nil {
					return denial
				}
				return entitlement.ErrAllowanceExhausted
			}
		default:
			return fmt.Errorf("decrement allowance: %w", err)
		}
		receipt.Account = account

		download := models.Download{
			ID:           uuid.NewString(),
			AccountID:    account.ID,
			VideoID:      req.VideoID,
			DownloadedAt: req.At,
		}
		if _, err := tx.Exec(ctx, `
            INSERT INTO downloads (id, account_id, video_id, downloaded_at)
            VALUES ($1, $2, $3, $4)
        `, download.ID, download.AccountID, download.VideoID, download.DownloadedAt); err != nil {
			if errors.Is(mapWriteError(err), ErrNotFound) {
				return entitlement.ErrVideoNotFound
			}
			return fmt.Errorf("insert download: %w", err)
		}

		receipt.Download = download
		receipt.Unlimited = account.Tier.Unlimited()
		return nil
	})
	if err != nil {
		return receipt, err
	}
	return receipt, nil
}

// decrementAllowance consumes one download for metered accounts the policy
// authorizes. It returns pgx.ErrNoRows when no row qualified.
func decrementAllowance(ctx context.Context, tx pgx.Tx, policy entitlement.Policy, req entitlement.Request) (models.Account, error) {
	return scanAccount(tx.QueryRow(ctx, `
        UPDATE accounts
        SET downloads_remaining = downloads_remaining - 1,
            updated_at = $2
        WHERE id = $1
          AND tier <> 'premium'
          AND downloads_remaining > 0
          AND ($3::BOOL = FALSE OR tier <> 'trial' OR trial_ends_at IS NULL OR trial_ends_at > $2)
        RETURNING `+accountColumns,
		req.AccountID, req.At, policy.EnforceTrialExpiry))
}

var _ entitlement.Store = (*PostgresLedgerStore)(nil)
