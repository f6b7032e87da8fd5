package milvus

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/molforge/fragelab/internal/application/runs"
	"github.com/molforge/fragelab/internal/config"
	"github.com/molforge/fragelab/internal/infrastructure/monitoring/logging"
	"github.com/molforge/fragelab/pkg/errors"
)

const (
	// maxTopK caps a single similarity query.
	maxTopK = 1024

	// nprobe is the IVF cell count probed per search.
	nprobe = 16

	// hnswEf is the candidate pool size for HNSW searches.
	hnswEf = 64
)

// Index records retained candidate fingerprints and answers similarity
// queries over them. It implements runs.SimilarityIndex.
type Index struct {
	client *Client
	cfg    config.MilvusConfig
	logger logging.Logger
}

var _ runs.SimilarityIndex = (*Index)(nil)

// NewIndex wires an index over an established client.
func NewIndex(c *Client, logger logging.Logger) *Index {
	return &Index{
		client: c,
		cfg:    c.Config(),
		logger: logger.Named("similarity"),
	}
}

// InsertCandidates upserts one row per retained candidate. Re-executing a run
// rewrites the same IDs, so duplicate job deliveries stay idempotent.
func (ix *Index) InsertCandidates(ctx context.Context, entries []runs.SimilarityEntry) error {
	if len(entries) == 0 {
		return nil
	}
	api, err := ix.client.API()
	if err != nil {
		return err
	}

	ids := make([]string, len(entries))
	names := make([]string, len(entries))
	vectors := make([][]float32, len(entries))
	for i, e := range entries {
		if e.ID == "" {
			return errors.Newf(errors.ErrCodeValidation, "milvus: entry %d has no id", i)
		}
		if len(e.Vector) != ix.cfg.EmbeddingDim {
			return errors.Newf(errors.ErrCodeValidation,
				"milvus: entry %s has %d dimensions, want %d", e.ID, len(e.Vector), ix.cfg.EmbeddingDim)
		}
		ids[i] = e.ID
		names[i] = e.Name
		vectors[i] = e.Vector
	}

	name := CollectionName(ix.cfg)
	_, err = api.Upsert(ctx, name, "",
		entity.NewColumnVarChar(fieldID, ids),
		entity.NewColumnVarChar(fieldName, names),
		entity.NewColumnFloatVector(fieldFingerprint, ix.cfg.EmbeddingDim, vectors),
	)
	if err != nil {
		return errors.Wrapf(err, errors.ErrCodeVectorIndex,
			"milvus: upsert %d candidates", len(entries))
	}

	ix.logger.Debug("candidates indexed",
		logging.Int("count", len(entries)),
		logging.String("collection", name))
	return nil
}

// Hit is one similarity result. Distance is the L2 distance to the query, so
// smaller means more alike.
type Hit struct {
	ID       string
	Name     string
	Distance float32
}

// SimilarQuery selects the probe for a similarity search: either the ID of an
// already indexed candidate or a raw fingerprint vector, never both. A zero
// TopK falls back to the configured default.
type SimilarQuery struct {
	ID     string
	Vector []float32
	TopK   int
}

// SimilarCandidates returns the nearest indexed candidates to the query.
// Searching by ID excludes the probe candidate itself from the hits.
func (ix *Index) SimilarCandidates(ctx context.Context, q SimilarQuery) ([]Hit, error) {
	byID := q.ID != ""
	if byID == (len(q.Vector) > 0) {
		return nil, errors.New(errors.ErrCodeValidation,
			"milvus: query needs exactly one of candidate id and fingerprint vector")
	}

	api, err := ix.client.API()
	if err != nil {
		return nil, err
	}

	topK := q.TopK
	if topK <= 0 {
		topK = ix.cfg.DefaultTopK
	}
	if topK > maxTopK {
		topK = maxTopK
	}

	vector := q.Vector
	expr := ""
	if byID {
		vector, err = ix.fetchVector(ctx, api, q.ID)
		if err != nil {
			return nil, err
		}
		expr = fmt.Sprintf("%s != %q", fieldID, q.ID)
	} else if len(vector) != ix.cfg.EmbeddingDim {
		return nil, errors.Newf(errors.ErrCodeValidation,
			"milvus: query vector has %d dimensions, want %d", len(vector), ix.cfg.EmbeddingDim)
	}

	sp, err := searchParam(ix.cfg)
	if err != nil {
		return nil, err
	}

	name := CollectionName(ix.cfg)
	results, err := api.Search(ctx, name, nil, expr, []string{fieldName},
		[]entity.Vector{entity.FloatVector(vector)}, fieldFingerprint, entity.L2, topK, sp)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrCodeVectorIndex, "milvus: search %s", name)
	}

	hits := make([]Hit, 0, topK)
	for _, res := range results {
		if res.Err != nil {
			return nil, errors.Wrapf(res.Err, errors.ErrCodeVectorIndex, "milvus: search %s", name)
		}
		nameCol := res.Fields.GetColumn(fieldName)
		for j := 0; j < res.ResultCount; j++ {
			id, err := res.IDs.GetAsString(j)
			if err != nil {
				return nil, errors.Wrap(err, errors.ErrCodeVectorIndex, "milvus: read hit id")
			}
			h := Hit{ID: id, Distance: res.Scores[j]}
			if nameCol != nil {
				if v, err := nameCol.GetAsString(j); err == nil {
					h.Name = v
				}
			}
			hits = append(hits, h)
		}
	}

	ix.logger.Debug("similarity search",
		logging.Int("top_k", topK),
		logging.Int("hits", len(hits)),
		logging.Bool("by_id", byID))
	return hits, nil
}

// fetchVector reads the stored fingerprint for an indexed candidate.
func (ix *Index) fetchVector(ctx context.Context, api client.Client, id string) ([]float32, error) {
	name := CollectionName(ix.cfg)
	rs, err := api.QueryByPks(ctx, name, nil,
		entity.NewColumnVarChar(fieldID, []string{id}), []string{fieldFingerprint})
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrCodeVectorIndex, "milvus: query candidate %s", id)
	}
	fv, ok := rs.GetColumn(fieldFingerprint).(*entity.ColumnFloatVector)
	if !ok || fv.Len() == 0 {
		return nil, errors.Newf(errors.ErrCodeNotFound, "candidate %s is not indexed", id)
	}
	return fv.Data()[0], nil
}

// searchParam builds the query-time parameters matching the collection index.
func searchParam(cfg config.MilvusConfig) (entity.SearchParam, error) {
	switch cfg.IndexType {
	case "", "IVF_FLAT":
		return entity.NewIndexIvfFlatSearchParam(nprobe)
	case "HNSW":
		return entity.NewIndexHNSWSearchParam(hnswEf)
	case "FLAT":
		return entity.NewIndexFlatSearchParam()
	default:
		return nil, errors.Newf(errors.ErrCodeValidation,
			"milvus: unsupported index type %q", cfg.IndexType)
	}
}
