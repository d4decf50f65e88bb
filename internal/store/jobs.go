package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"dealercast/internal/models"
	"dealercast/internal/pkg/errors"
)

const jobColumns = `id, batch_id, business_id, business_name, post_number,
	template_id, status, COALESCE(render_id,''), COALESCE(render_url,''),
	COALESCE(drive_file_id,''), COALESCE(drive_url,''), COALESCE(drive_path,''),
	retry_count, COALESCE(last_error,''), created_at, processing_started_at,
	completed_at`

// claimedJobColumns mirrors jobColumns qualified for the UPDATE ... RETURNING
// in ClaimPendingJobs.
const claimedJobColumns = `j.id, j.batch_id, j.business_id, j.business_name,
	j.post_number, j.template_id, j.status, COALESCE(j.render_id,''),
	COALESCE(j.render_url,''), COALESCE(j.drive_file_id,''),
	COALESCE(j.drive_url,''), COALESCE(j.drive_path,''), j.retry_count,
	COALESCE(j.last_error,''), j.created_at, j.processing_started_at,
	j.completed_at`

// ClaimPendingJobs atomically claims up to limit pending jobs, oldest first,
// marking them processing. FOR UPDATE SKIP LOCKED keeps overlapping dispatcher
// invocations from claiming the same rows. Batch counters move in the same
// transaction.
func (s *Store) ClaimPendingJobs(ctx context.Context, limit int) ([]models.RenderJob, error) {
	var claimed []models.RenderJob

	err := s.withTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			WITH cte AS (
				SELECT id FROM render_jobs
				WHERE status = 'pending'
				ORDER BY created_at ASC
				LIMIT $1
				FOR UPDATE SKIP LOCKED
			)
			UPDATE render_jobs j SET
				status = 'processing',
				processing_started_at = now()
			FROM cte
			WHERE j.id = cte.id
			RETURNING `+claimedJobColumns,
			limit,
		)
		if err != nil {
			return fmt.Errorf("claim pending jobs: %w", err)
		}

		claimed, err = collectJobs(rows)
		if err != nil {
			return err
		}

		perBatch := make(map[string]int)
		order := make([]string, 0)
		for _, j := range claimed {
			if _, seen := perBatch[j.BatchID]; !seen {
				order = append(order, j.BatchID)
			}
			perBatch[j.BatchID]++
		}
		for _, batchID := range order {
			n := perBatch[batchID]
			if err := applyCounterDelta(ctx, tx, batchID, counterDelta{
				pending:     -n,
				processing:  n,
				markStarted: true,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// SetJobDispatched records the vendor render id on a freshly claimed job.
func (s *Store) SetJobDispatched(ctx context.Context, jobID, renderID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE render_jobs SET render_id = $2
		WHERE id = $1 AND status = 'processing'`,
		jobID, renderID,
	)
	if err != nil {
		return fmt.Errorf("set job dispatched: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("processing job", jobID)
	}
	return nil
}

// FailJob transitions a processing job to failed and fixes the batch
// counters. Returns false when the job was not in processing (already
// terminal, or unknown), in which case nothing is mutated.
func (s *Store) FailJob(ctx context.Context, jobID, errMsg string) (bool, error) {
	if len(errMsg) > 2000 {
		errMsg = errMsg[:2000]
	}

	applied := false
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var batchID string
		err := tx.QueryRow(ctx, `
			UPDATE render_jobs SET
				status = 'failed',
				last_error = $2,
				retry_count = retry_count + 1,
				completed_at = now()
			WHERE id = $1 AND status = 'processing'
			RETURNING batch_id`,
			jobID, errMsg,
		).Scan(&batchID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return fmt.Errorf("fail job: %w", err)
		}

		applied = true
		return applyCounterDelta(ctx, tx, batchID, counterDelta{processing: -1, failed: 1})
	})
	return applied, err
}

// CompletionResult carries the artifacts of a successful render.
type CompletionResult struct {
	RenderURL   string
	DriveFileID string
	DriveURL    string
	DrivePath   string
}

// CompleteJob transitions a processing job to completed with its artifacts.
// Returns false without mutating when the job was not in processing, which
// makes duplicate webhook delivery a no-op.
func (s *Store) CompleteJob(ctx context.Context, jobID string, res CompletionResult) (bool, error) {
	applied := false
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var batchID string
		err := tx.QueryRow(ctx, `
			UPDATE render_jobs SET
				status = 'completed',
				render_url = $2,
				drive_file_id = $3,
				drive_url = $4,
				drive_path = $5,
				completed_at = now()
			WHERE id = $1 AND status = 'processing'
			RETURNING batch_id`,
			jobID, res.RenderURL, res.DriveFileID, res.DriveURL, res.DrivePath,
		).Scan(&batchID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return fmt.Errorf("complete job: %w", err)
		}

		applied = true
		return applyCounterDelta(ctx, tx, batchID, counterDelta{processing: -1, completed: 1})
	})
	return applied, err
}

// SweepStuckJobs fails every job that has been processing longer than ttl.
// Returns the ids of swept jobs.
func (s *Store) SweepStuckJobs(ctx context.Context, ttl time.Duration) ([]string, error) {
	cutoff := time.Now().UTC().Add(-ttl)
	var swept []string

	err := s.withTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			UPDATE render_jobs SET
				status = 'failed',
				last_error = 'render timed out: no completion callback received',
				completed_at = now()
			WHERE status = 'processing' AND processing_started_at < $1
			RETURNING id, batch_id`,
			cutoff,
		)
		if err != nil {
			return fmt.Errorf("sweep stuck jobs: %w", err)
		}

		perBatch := make(map[string]int)
		order := make([]string, 0)
		for rows.Next() {
			var id, batchID string
			if err := rows.Scan(&id, &batchID); err != nil {
				rows.Close()
				return err
			}
			swept = append(swept, id)
			if _, seen := perBatch[batchID]; !seen {
				order = append(order, batchID)
			}
			perBatch[batchID]++
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for _, batchID := range order {
			n := perBatch[batchID]
			if err := applyCounterDelta(ctx, tx, batchID, counterDelta{processing: -n, failed: n}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return swept, nil
}

// GetJob fetches one job by id.
func (s *Store) GetJob(ctx context.Context, id string) (*models.RenderJob, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM render_jobs WHERE id = $1`, id)
	j, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.NotFound("job", id)
		}
		return nil, err
	}
	return j, nil
}

// ListBatchJobs returns all jobs of a batch, oldest first.
func (s *Store) ListBatchJobs(ctx context.Context, batchID string) ([]models.RenderJob, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM render_jobs
		 WHERE batch_id = $1 ORDER BY created_at ASC`, batchID)
	if err != nil {
		return nil, err
	}
	return collectJobs(rows)
}

func collectJobs(rows pgx.Rows) ([]models.RenderJob, error) {
	defer rows.Close()
	var out []models.RenderJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *j)
	}
	return out, rows.Err()
}

func scanJob(row batchScanner) (*models.RenderJob, error) {
	var j models.RenderJob
	err := row.Scan(
		&j.ID, &j.BatchID, &j.BusinessID, &j.BusinessName, &j.PostNumber,
		&j.TemplateID, &j.Status, &j.RenderID, &j.RenderURL,
		&j.DriveFileID, &j.DriveURL, &j.DrivePath,
		&j.RetryCount, &j.LastError, &j.CreatedAt,
		&j.ProcessingStartedAt, &j.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &j, nil
}
