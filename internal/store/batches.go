package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"dealercast/internal/httpkit"
	"dealercast/internal/models"
	"dealercast/internal/pkg/errors"
)

const batchColumns = `id, post_number, template_id, total_jobs, pending_jobs,
	processing_jobs, completed_jobs, failed_jobs, status, created_at,
	started_at, completed_at`

// CreateBatch persists a batch and its jobs in one transaction, so a partial
// failure rolls everything back.
func (s *Store) CreateBatch(ctx context.Context, batch *models.RenderBatch, jobs []models.RenderJob) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO render_batches
				(id, post_number, template_id, total_jobs, pending_jobs, status)
			VALUES ($1,$2,$3,$4,$5,$6)
			RETURNING created_at`,
			batch.ID, batch.PostNumber, batch.TemplateID,
			batch.TotalJobs, batch.PendingJobs, batch.Status,
		).Scan(&batch.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert batch: %w", err)
		}

		for i := range jobs {
			j := &jobs[i]
			err := tx.QueryRow(ctx, `
				INSERT INTO render_jobs
					(id, batch_id, business_id, business_name, post_number, template_id, status)
				VALUES ($1,$2,$3,$4,$5,$6,$7)
				RETURNING created_at`,
				j.ID, j.BatchID, j.BusinessID, j.BusinessName,
				j.PostNumber, j.TemplateID, j.Status,
			).Scan(&j.CreatedAt)
			if err != nil {
				return fmt.Errorf("insert job %s: %w", j.ID, err)
			}
		}
		return nil
	})
}

// GetBatch fetches one batch by id.
func (s *Store) GetBatch(ctx context.Context, id string) (*models.RenderBatch, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+batchColumns+` FROM render_batches WHERE id = $1`, id)
	b, err := scanBatch(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.NotFound("batch", id)
		}
		return nil, err
	}
	return b, nil
}

// ListBatches returns the most recent batches.
func (s *Store) ListBatches(ctx context.Context, limit int) ([]models.RenderBatch, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+batchColumns+` FROM render_batches
		 ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		if httpkit.IsUndefinedTable(err) {
			return nil, errors.New(errors.CodeUnavailable, "database schema not initialized")
		}
		return nil, err
	}
	defer rows.Close()

	out := make([]models.RenderBatch, 0, limit)
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// counterDelta moves n jobs between batch counter buckets inside tx and
// recomputes the derived status. markStarted coalesces started_at for the
// first dispatch.
type counterDelta struct {
	pending     int
	processing  int
	completed   int
	failed      int
	markStarted bool
}

func applyCounterDelta(ctx context.Context, tx pgx.Tx, batchID string, d counterDelta) error {
	var b models.RenderBatch
	startedClause := "started_at"
	if d.markStarted {
		startedClause = "COALESCE(started_at, now())"
	}

	err := tx.QueryRow(ctx, `
		UPDATE render_batches SET
			pending_jobs    = pending_jobs + $2,
			processing_jobs = processing_jobs + $3,
			completed_jobs  = completed_jobs + $4,
			failed_jobs     = failed_jobs + $5,
			started_at      = `+startedClause+`
		WHERE id = $1
		RETURNING total_jobs, pending_jobs, processing_jobs, completed_jobs, failed_jobs`,
		batchID, d.pending, d.processing, d.completed, d.failed,
	).Scan(&b.TotalJobs, &b.PendingJobs, &b.ProcessingJobs, &b.CompletedJobs, &b.FailedJobs)
	if err != nil {
		return fmt.Errorf("update batch counters: %w", err)
	}

	status := b.DeriveStatus()
	_, err = tx.Exec(ctx, `
		UPDATE render_batches SET
			status = $2,
			completed_at = CASE WHEN $3 THEN COALESCE(completed_at, now()) ELSE completed_at END
		WHERE id = $1`,
		batchID, status, b.AllTerminal(),
	)
	if err != nil {
		return fmt.Errorf("update batch status: %w", err)
	}
	return nil
}

type batchScanner interface {
	Scan(dest ...any) error
}

func scanBatch(row batchScanner) (*models.RenderBatch, error) {
	var b models.RenderBatch
	err := row.Scan(
		&b.ID, &b.PostNumber, &b.TemplateID, &b.TotalJobs, &b.PendingJobs,
		&b.ProcessingJobs, &b.CompletedJobs, &b.FailedJobs, &b.Status,
		&b.CreatedAt, &b.StartedAt, &b.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
