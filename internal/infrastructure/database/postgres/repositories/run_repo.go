// Package repositories holds the PostgreSQL implementations of the domain
// repository interfaces.
package repositories

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/molforge/fragelab/internal/domain/run"
	"github.com/molforge/fragelab/internal/infrastructure/monitoring/logging"
	"github.com/molforge/fragelab/pkg/errors"
	"github.com/molforge/fragelab/pkg/types/common"
)

// scanner abstracts pgx.Row and pgx.Rows for the shared scan helpers.
type scanner interface {
	Scan(dest ...interface{}) error
}

// ─────────────────────────────────────────────────────────────────────────────
// RunRepository
// ─────────────────────────────────────────────────────────────────────────────

// RunRepository is the PostgreSQL implementation of run.Repository.
type RunRepository struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// NewRunRepository constructs a ready-to-use RunRepository.
func NewRunRepository(pool *pgxpool.Pool, logger logging.Logger) *RunRepository {
	return &RunRepository{pool: pool, logger: logger.Named("run_repo")}
}

const runColumns = `id, mode, key, status, loaded, kept, posed, skipped,
	best_ordinal, best_score, error, created_at, started_at, completed_at`

// Create persists a freshly created run.
func (r *RunRepository) Create(ctx context.Context, ru *run.Run) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO elab_runs (
			id, mode, key, status, loaded, kept, posed, skipped,
			best_ordinal, best_score, error, created_at, started_at, completed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		runArgs(ru)...,
	)
	if err != nil {
		r.logger.Error("run insert failed",
			logging.String("run_id", string(ru.ID)), logging.Err(err))
		return errors.Wrap(err, errors.ErrCodeDatabase, "failed to insert run")
	}
	return nil
}

// Update persists the run's current state. Updating an unknown run is an
// error: runs are created before any transition.
func (r *RunRepository) Update(ctx context.Context, ru *run.Run) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE elab_runs SET
			status = $2, loaded = $3, kept = $4, posed = $5, skipped = $6,
			best_ordinal = $7, best_score = $8, error = $9,
			started_at = $10, completed_at = $11
		WHERE id = $1`,
		ru.ID, string(ru.Status),
		ru.Counts.Loaded, ru.Counts.Kept, ru.Counts.Posed, ru.Counts.Skipped,
		ru.BestOrdinal, ru.BestScore, ru.Error,
		ru.StartedAt, ru.CompletedAt,
	)
	if err != nil {
		r.logger.Error("run update failed",
			logging.String("run_id", string(ru.ID)), logging.Err(err))
		return errors.Wrap(err, errors.ErrCodeDatabase, "failed to update run")
	}
	if tag.RowsAffected() == 0 {
		return errors.Newf(errors.ErrCodeRunNotFound, "run %s not found", ru.ID)
	}
	return nil
}

// GetByID loads one run.
func (r *RunRepository) GetByID(ctx context.Context, id common.ID) (*run.Run, error) {
	ru, err := scanRun(r.pool.QueryRow(ctx,
		`SELECT `+runColumns+` FROM elab_runs WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.Newf(errors.ErrCodeRunNotFound, "run %s not found", id)
		}
		return nil, errors.Wrap(err, errors.ErrCodeDatabase, "failed to load run")
	}
	return ru, nil
}

// List pages through runs, newest first, and returns the total count.
func (r *RunRepository) List(ctx context.Context, limit, offset int) ([]*run.Run, int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM elab_runs`).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeDatabase, "failed to count runs")
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+runColumns+` FROM elab_runs
		 ORDER BY created_at DESC, id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeDatabase, "failed to list runs")
	}
	defer rows.Close()

	var out []*run.Run
	for rows.Next() {
		ru, err := scanRun(rows)
		if err != nil {
			return nil, 0, errors.Wrap(err, errors.ErrCodeDatabase, "failed to scan run")
		}
		out = append(out, ru)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeDatabase, "failed to iterate runs")
	}
	return out, total, nil
}

// SaveOutcomes bulk-inserts per-candidate outcome rows via the COPY protocol.
func (r *RunRepository) SaveOutcomes(ctx context.Context, outcomes []run.CandidateOutcome) error {
	if len(outcomes) == 0 {
		return nil
	}

	rows, err := outcomeRows(outcomes)
	if err != nil {
		return err
	}

	inserted, err := r.pool.CopyFrom(ctx,
		pgx.Identifier{"elab_candidates"}, outcomeColumns, pgx.CopyFromRows(rows))
	if err != nil {
		r.logger.Error("outcome copy failed",
			logging.String("run_id", string(outcomes[0].RunID)), logging.Err(err))
		return errors.Wrap(err, errors.ErrCodeDatabase, "failed to insert candidate outcomes")
	}

	r.logger.Debug("candidate outcomes stored",
		logging.String("run_id", string(outcomes[0].RunID)),
		logging.Int64("inserted", inserted))
	return nil
}

// GetOutcomes loads a run's candidate outcomes in input order.
func (r *RunRepository) GetOutcomes(ctx context.Context, runID common.ID) ([]run.CandidateOutcome, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT run_id, ordinal, name, provenance, descriptors,
		       passed_druglike, druglike_violations, passed_pains, pains_hits,
		       pose_feature, pose_protrusion, pose_combined, skip_reason
		FROM elab_candidates WHERE run_id = $1 ORDER BY ordinal`, runID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabase, "failed to load candidate outcomes")
	}
	defer rows.Close()

	var out []run.CandidateOutcome
	for rows.Next() {
		o, err := scanOutcome(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabase, "failed to scan candidate outcome")
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabase, "failed to iterate candidate outcomes")
	}
	return out, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Row mapping
// ─────────────────────────────────────────────────────────────────────────────

func runArgs(ru *run.Run) []interface{} {
	return []interface{}{
		ru.ID, string(ru.Mode), ru.Key, string(ru.Status),
		ru.Counts.Loaded, ru.Counts.Kept, ru.Counts.Posed, ru.Counts.Skipped,
		ru.BestOrdinal, ru.BestScore, ru.Error,
		ru.CreatedAt, ru.StartedAt, ru.CompletedAt,
	}
}

func scanRun(s scanner) (*run.Run, error) {
	var ru run.Run
	err := s.Scan(
		&ru.ID, &ru.Mode, &ru.Key, &ru.Status,
		&ru.Counts.Loaded, &ru.Counts.Kept, &ru.Counts.Posed, &ru.Counts.Skipped,
		&ru.BestOrdinal, &ru.BestScore, &ru.Error,
		&ru.CreatedAt, &ru.StartedAt, &ru.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &ru, nil
}

var outcomeColumns = []string{
	"run_id", "ordinal", "name", "provenance", "descriptors",
	"passed_druglike", "druglike_violations", "passed_pains", "pains_hits",
	"pose_feature", "pose_protrusion", "pose_combined", "skip_reason",
}

// outcomeRows converts outcomes to COPY rows. Descriptors serialize as JSONB;
// absent poses become NULL score columns.
func outcomeRows(outcomes []run.CandidateOutcome) ([][]interface{}, error) {
	rows := make([][]interface{}, 0, len(outcomes))
	for i := range outcomes {
		o := &outcomes[i]

		var descJSON []byte
		if o.Descriptors != nil {
			b, err := json.Marshal(o.Descriptors)
			if err != nil {
				return nil, errors.Wrapf(err, errors.ErrCodeDatabase,
					"failed to serialize descriptors for candidate %d", o.Ordinal)
			}
			descJSON = b
		}

		var feature, protrusion, combined *float64
		if o.Pose != nil {
			feature, protrusion, combined = &o.Pose.Feature, &o.Pose.Protrusion, &o.Pose.Combined
		}

		rows = append(rows, []interface{}{
			o.RunID, o.Ordinal, o.Name, o.Provenance, descJSON,
			o.PassedDruglike, o.DruglikeViolations, o.PassedPAINS, o.PAINSHits,
			feature, protrusion, combined, o.SkipReason,
		})
	}
	return rows, nil
}

func scanOutcome(s scanner) (run.CandidateOutcome, error) {
	var (
		o                             run.CandidateOutcome
		descJSON                      []byte
		feature, protrusion, combined *float64
	)
	err := s.Scan(
		&o.RunID, &o.Ordinal, &o.Name, &o.Provenance, &descJSON,
		&o.PassedDruglike, &o.DruglikeViolations, &o.PassedPAINS, &o.PAINSHits,
		&feature, &protrusion, &combined, &o.SkipReason,
	)
	if err != nil {
		return run.CandidateOutcome{}, err
	}

	if len(descJSON) > 0 {
		if err := json.Unmarshal(descJSON, &o.Descriptors); err != nil {
			return run.CandidateOutcome{}, err
		}
	}
	if combined != nil {
		o.Pose = &run.PoseScore{Combined: *combined}
		if feature != nil {
			o.Pose.Feature = *feature
		}
		if protrusion != nil {
			o.Pose.Protrusion = *protrusion
		}
	}
	return o, nil
}
