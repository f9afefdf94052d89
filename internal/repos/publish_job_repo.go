package repos

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type PublishJobRepo struct{ db *sqlx.DB }

func NewPublishJobRepo(db *sqlx.DB) *PublishJobRepo { return &PublishJobRepo{db: db} }

type PublishJob struct {
	ID            string `db:"id"`
	ItemID        int64  `db:"item_id"`
	Attempts      int    `db:"attempts"`
	LastError     string `db:"last_error"`
	NextAttemptAt int64  `db:"next_attempt_at"`
}

// EnqueueTx queues a publish for itemID in the same transaction that created it.
func (r *PublishJobRepo) EnqueueTx(ctx context.Context, tx *sqlx.Tx, itemID int64, at time.Time) (string, error) {
	id := uuid.NewString()
	_, err := tx.ExecContext(ctx, `
	  INSERT INTO publish_jobs(id, item_id, next_attempt_at) VALUES(?, ?, ?)
	`, id, itemID, at.Unix())
	return id, err
}

// Enqueue is used for manual republish; an open job for the item is reused.
func (r *PublishJobRepo) Enqueue(ctx context.Context, itemID int64, at time.Time) (string, error) {
	var id string
	err := WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &id, `
		  SELECT id FROM publish_jobs
		  WHERE item_id = ? AND done_at IS NULL AND dead_at IS NULL
		  LIMIT 1`, itemID)
		if err == nil {
			_, err = tx.ExecContext(ctx, `UPDATE publish_jobs SET next_attempt_at = ? WHERE id = ?`, at.Unix(), id)
			return err
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		id, err = r.EnqueueTx(ctx, tx, itemID, at)
		return err
	})
	return id, err
}

func (r *PublishJobRepo) Due(ctx context.Context, now time.Time, limit int) ([]PublishJob, error) {
	out := []PublishJob{}
	err := r.db.SelectContext(ctx, &out, `
	  SELECT id, item_id, attempts, COALESCE(last_error,'') AS last_error, next_attempt_at
	  FROM publish_jobs
	  WHERE done_at IS NULL AND dead_at IS NULL AND next_attempt_at <= ?
	  ORDER BY next_attempt_at, created_at
	  LIMIT ?
	`, now.Unix(), limit)
	return out, err
}

func (r *PublishJobRepo) OpenForItem(ctx context.Context, itemID int64) ([]PublishJob, error) {
	out := []PublishJob{}
	err := r.db.SelectContext(ctx, &out, `
	  SELECT id, item_id, attempts, COALESCE(last_error,'') AS last_error, next_attempt_at
	  FROM publish_jobs
	  WHERE item_id = ? AND done_at IS NULL AND dead_at IS NULL
	`, itemID)
	return out, err
}

func (r *PublishJobRepo) MarkDone(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE publish_jobs SET done_at = CURRENT_TIMESTAMP WHERE id = ?`, id)
	return err
}

func (r *PublishJobRepo) MarkFailed(ctx context.Context, id string, cause error, next time.Time) error {
	_, err := r.db.ExecContext(ctx, `
	  UPDATE publish_jobs
	  SET attempts = attempts + 1, last_error = ?, next_attempt_at = ?
	  WHERE id = ?
	`, cause.Error(), next.Unix(), id)
	return err
}

func (r *PublishJobRepo) MarkDead(ctx context.Context, id string, cause error) error {
	_, err := r.db.ExecContext(ctx, `
	  UPDATE publish_jobs
	  SET attempts = attempts + 1, last_error = ?, dead_at = CURRENT_TIMESTAMP
	  WHERE id = ?
	`, cause.Error(), id)
	return err
}
