// Package repositories persists run provenance to the Neo4j lineage graph.
package repositories

import (
	"context"

	"github.com/molforge/fragelab/internal/application/runs"
	driver "github.com/molforge/fragelab/internal/infrastructure/database/neo4j"
	"github.com/molforge/fragelab/internal/infrastructure/monitoring/logging"
	"github.com/molforge/fragelab/pkg/errors"
)

// recordRunCypher upserts the run node and its retained candidates. The
// FOREACH trick attaches the best pose only when a pose object was stored.
const recordRunCypher = `
	MERGE (r:Run {id: $run_id})
	SET r.mode = $mode, r.key = $key
	WITH r
	UNWIND $candidates AS cand
	MERGE (c:Candidate {id: cand.id})
	SET c.name = cand.name, c.score = cand.score
	MERGE (r)-[:PRODUCED]->(c)
	FOREACH (ref IN CASE WHEN cand.best AND cand.pose_ref <> '' THEN [cand.pose_ref] ELSE [] END |
		MERGE (p:Pose {ref: ref})
		MERGE (c)-[:BEST_POSE]->(p)
	)
`

// linkFragmentsCypher connects source fragments to the candidates they were
// elaborated into.
const linkFragmentsCypher = `
	UNWIND $links AS link
	MATCH (c:Candidate {id: link.candidate})
	MERGE (f:Fragment {name: link.fragment})
	MERGE (f)-[:ELABORATED_INTO]->(c)
`

var constraintStatements = []string{
	"CREATE CONSTRAINT run_id IF NOT EXISTS FOR (r:Run) REQUIRE r.id IS UNIQUE",
	"CREATE CONSTRAINT candidate_id IF NOT EXISTS FOR (c:Candidate) REQUIRE c.id IS UNIQUE",
	"CREATE CONSTRAINT fragment_name IF NOT EXISTS FOR (f:Fragment) REQUIRE f.name IS UNIQUE",
	"CREATE CONSTRAINT pose_ref IF NOT EXISTS FOR (p:Pose) REQUIRE p.ref IS UNIQUE",
}

// LineageRepo writes provenance lineage for completed runs.
type LineageRepo struct {
	driver driver.Executor
	log    logging.Logger
}

var _ runs.LineageRecorder = (*LineageRepo)(nil)

// NewLineageRepo returns a recorder backed by the given executor.
func NewLineageRepo(d driver.Executor, log logging.Logger) *LineageRepo {
	return &LineageRepo{
		driver: d,
		log:    log,
	}
}

// EnsureConstraints creates the uniqueness constraints the lineage graph
// relies on. Each statement runs in its own transaction because schema and
// data changes cannot share one.
func (r *LineageRepo) EnsureConstraints(ctx context.Context) error {
	for _, stmt := range constraintStatements {
		_, err := r.driver.ExecuteWrite(ctx, func(tx driver.Transaction) (any, error) {
			_, err := tx.Run(ctx, stmt, nil)
			return nil, err
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// RecordRun upserts the run, its candidates, the fragment edges and the best
// pose. MERGE keeps re-recording the same run idempotent.
func (r *LineageRepo) RecordRun(ctx context.Context, rec runs.LineageRecord) error {
	if rec.RunID == "" {
		return errors.New(errors.ErrCodeValidation, "lineage: run id is required")
	}

	candidates := make([]map[string]any, 0, len(rec.Candidates))
	var links []map[string]any
	for _, cand := range rec.Candidates {
		candidates = append(candidates, map[string]any{
			"id":       cand.ID,
			"name":     cand.Name,
			"score":    cand.Score,
			"best":     cand.Best,
			"pose_ref": cand.PoseRef,
		})
		for _, frag := range cand.Fragments {
			links = append(links, map[string]any{
				"candidate": cand.ID,
				"fragment":  frag,
			})
		}
	}

	_, err := r.driver.ExecuteWrite(ctx, func(tx driver.Transaction) (any, error) {
		result, err := tx.Run(ctx, recordRunCypher, map[string]any{
			"run_id":     string(rec.RunID),
			"mode":       rec.Mode,
			"key":        rec.Key,
			"candidates": candidates,
		})
		if err != nil {
			return nil, err
		}
		if _, err := result.Consume(ctx); err != nil {
			return nil, err
		}

		result, err = tx.Run(ctx, linkFragmentsCypher, map[string]any{"links": links})
		if err != nil {
			return nil, err
		}
		if _, err := result.Consume(ctx); err != nil {
			return nil, err
		}
		return nil, nil
	})
	if err != nil {
		return err
	}

	r.log.Debug("lineage recorded",
		logging.String("run_id", string(rec.RunID)),
		logging.Int("candidates", len(candidates)),
		logging.Int("fragment_links", len(links)))
	return nil
}
