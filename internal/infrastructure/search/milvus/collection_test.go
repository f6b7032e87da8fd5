package milvus

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/molforge/fragelab/pkg/errors"
)

func TestCollectionName_UsesPrefix(t *testing.T) {
	cfg := testMilvusConfig()
	assert.Equal(t, "fragelab_candidate_fingerprints", CollectionName(cfg))

	cfg.CollectionPrefix = "staging_"
	assert.Equal(t, "staging_candidate_fingerprints", CollectionName(cfg))
}

func TestEnsureCollection_CreatesIndexesAndLoads(t *testing.T) {
	fake := &fakeMilvus{}
	c := newTestClient(fake)

	require.NoError(t, c.EnsureCollection(context.Background()))

	require.Len(t, fake.created, 1)
	schema := fake.created[0]
	assert.Equal(t, "fragelab_candidate_fingerprints", schema.CollectionName)
	require.Len(t, schema.Fields, 3)
	assert.Equal(t, "id", schema.Fields[0].Name)
	assert.True(t, schema.Fields[0].PrimaryKey)
	assert.Equal(t, "name", schema.Fields[1].Name)
	assert.Equal(t, "fingerprint", schema.Fields[2].Name)
	assert.Equal(t, "8", schema.Fields[2].TypeParams["dim"])

	require.Len(t, fake.indexed, 1)
	assert.Equal(t, "fragelab_candidate_fingerprints", fake.indexed[0].collection)
	assert.Equal(t, "fingerprint", fake.indexed[0].field)
	assert.False(t, fake.indexed[0].async)
	assert.NotNil(t, fake.indexed[0].index)

	assert.Equal(t, []string{"fragelab_candidate_fingerprints"}, fake.loaded)
}

func TestEnsureCollection_SkipsExisting(t *testing.T) {
	fake := &fakeMilvus{
		hasFunc: func(string) (bool, error) { return true, nil },
	}
	c := newTestClient(fake)

	require.NoError(t, c.EnsureCollection(context.Background()))

	assert.Empty(t, fake.created)
	assert.Empty(t, fake.indexed)
	assert.Equal(t, []string{"fragelab_candidate_fingerprints"}, fake.loaded,
		"existing collections still get loaded")
}

func TestEnsureCollection_RejectsUnknownIndexType(t *testing.T) {
	fake := &fakeMilvus{}
	c := newTestClient(fake)
	c.cfg.IndexType = "WAVELET"

	err := c.EnsureCollection(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
	assert.Empty(t, fake.created, "index type is checked before creating anything")
}

func TestEnsureCollection_WrapsServerError(t *testing.T) {
	fake := &fakeMilvus{
		hasFunc: func(string) (bool, error) { return false, fmt.Errorf("rpc unavailable") },
	}
	c := newTestClient(fake)

	err := c.EnsureCollection(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeVectorIndex))
	assert.True(t, errors.IsRetryable(err))
}

func TestBuildIndex_CoversConfiguredTypes(t *testing.T) {
	cfg := testMilvusConfig()

	for _, typ := range []string{"", "IVF_FLAT", "HNSW", "FLAT"} {
		cfg.IndexType = typ
		idx, err := buildIndex(cfg)
		require.NoError(t, err, "index type %q", typ)
		require.NotNil(t, idx)
	}

	cfg.IndexType = "ANNOY"
	_, err := buildIndex(cfg)
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
}
