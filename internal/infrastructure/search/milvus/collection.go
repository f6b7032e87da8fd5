package milvus

import (
	"context"
	"strconv"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/molforge/fragelab/internal/config"
	"github.com/molforge/fragelab/internal/infrastructure/monitoring/logging"
	"github.com/molforge/fragelab/pkg/errors"
)

// Collection layout for retained candidates: one row per kept candidate,
// keyed "<runID>:<ordinal>" so a re-executed run overwrites its own rows.
const (
	collectionBase = "candidate_fingerprints"

	fieldID          = "id"
	fieldName        = "name"
	fieldFingerprint = "fingerprint"

	idMaxLength   = 128
	nameMaxLength = 256

	collectionShards = 1
)

// CollectionName returns the prefixed collection the index reads and writes.
func CollectionName(cfg config.MilvusConfig) string {
	return cfg.CollectionPrefix + collectionBase
}

func candidateSchema(cfg config.MilvusConfig) *entity.Schema {
	return &entity.Schema{
		CollectionName: CollectionName(cfg),
		Description:    "Morgan fingerprints of retained candidates",
		Fields: []*entity.Field{
			{
				Name:       fieldID,
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				TypeParams: map[string]string{"max_length": strconv.Itoa(idMaxLength)},
			},
			{
				Name:       fieldName,
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": strconv.Itoa(nameMaxLength)},
			},
			{
				Name:       fieldFingerprint,
				DataType:   entity.FieldTypeFloatVector,
				TypeParams: map[string]string{"dim": strconv.Itoa(cfg.EmbeddingDim)},
			},
		},
	}
}

// buildIndex maps the configured index type onto an SDK index definition.
// Fingerprints are dense 0/1 vectors, so L2 distance orders hits the same way
// Hamming distance would.
func buildIndex(cfg config.MilvusConfig) (entity.Index, error) {
	switch cfg.IndexType {
	case "", "IVF_FLAT":
		return entity.NewIndexIvfFlat(entity.L2, cfg.NList)
	case "HNSW":
		return entity.NewIndexHNSW(entity.L2, 16, 200)
	case "FLAT":
		return entity.NewIndexFlat(entity.L2)
	default:
		return nil, errors.Newf(errors.ErrCodeValidation,
			"milvus: unsupported index type %q", cfg.IndexType)
	}
}

// EnsureCollection creates the candidate collection and its vector index when
// absent, then loads the collection for search. Safe to call on every boot.
func (c *Client) EnsureCollection(ctx context.Context) error {
	api, err := c.API()
	if err != nil {
		return err
	}
	name := CollectionName(c.cfg)

	has, err := api.HasCollection(ctx, name)
	if err != nil {
		return errors.Wrapf(err, errors.ErrCodeVectorIndex, "milvus: check collection %s", name)
	}
	if !has {
		idx, err := buildIndex(c.cfg)
		if err != nil {
			return err
		}
		if err := api.CreateCollection(ctx, candidateSchema(c.cfg), collectionShards); err != nil {
			return errors.Wrapf(err, errors.ErrCodeVectorIndex, "milvus: create collection %s", name)
		}
		if err := api.CreateIndex(ctx, name, fieldFingerprint, idx, false); err != nil {
			return errors.Wrapf(err, errors.ErrCodeVectorIndex, "milvus: index collection %s", name)
		}
		c.logger.Info("milvus collection created",
			logging.String("collection", name),
			logging.Int("dim", c.cfg.EmbeddingDim),
			logging.String("index", c.cfg.IndexType))
	}

	if err := api.LoadCollection(ctx, name, false); err != nil {
		return errors.Wrapf(err, errors.ErrCodeVectorIndex, "milvus: load collection %s", name)
	}
	return nil
}
