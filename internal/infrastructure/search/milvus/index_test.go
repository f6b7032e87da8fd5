package milvus

import (
	"context"
	"fmt"
	"testing"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/molforge/fragelab/internal/application/runs"
	"github.com/molforge/fragelab/internal/infrastructure/monitoring/logging"
	"github.com/molforge/fragelab/pkg/errors"
)

func newTestIndex(fake *fakeMilvus) *Index {
	return NewIndex(newTestClient(fake), logging.NewNopLogger())
}

func testVector(fill float32) []float32 {
	v := make([]float32, 8)
	for i := range v {
		v[i] = fill
	}
	return v
}

// searchHits builds a single-query SDK result carrying the given hits.
func searchHits(pairs [][2]string, scores []float32) []client.SearchResult {
	ids := make([]string, len(pairs))
	names := make([]string, len(pairs))
	for i, p := range pairs {
		ids[i] = p[0]
		names[i] = p[1]
	}
	return []client.SearchResult{{
		ResultCount: len(pairs),
		IDs:         entity.NewColumnVarChar(fieldID, ids),
		Fields:      client.ResultSet{entity.NewColumnVarChar(fieldName, names)},
		Scores:      scores,
	}}
}

func TestInsertCandidates_UpsertsOneRowPerCandidate(t *testing.T) {
	fake := &fakeMilvus{}
	ix := newTestIndex(fake)

	entries := []runs.SimilarityEntry{
		{ID: "r-1:0", Name: "F1-F2_0", Vector: testVector(1)},
		{ID: "r-1:3", Name: "F1-F2_3", Vector: testVector(0)},
	}
	require.NoError(t, ix.InsertCandidates(context.Background(), entries))

	require.Len(t, fake.upserts, 1)
	call := fake.upserts[0]
	assert.Equal(t, "fragelab_candidate_fingerprints", call.collection)
	assert.Empty(t, call.partition)
	require.Len(t, call.columns, 3)

	ids, ok := call.columns[0].(*entity.ColumnVarChar)
	require.True(t, ok)
	assert.Equal(t, "id", ids.Name())
	assert.Equal(t, []string{"r-1:0", "r-1:3"}, ids.Data())

	names, ok := call.columns[1].(*entity.ColumnVarChar)
	require.True(t, ok)
	assert.Equal(t, "name", names.Name())
	assert.Equal(t, []string{"F1-F2_0", "F1-F2_3"}, names.Data())

	vectors, ok := call.columns[2].(*entity.ColumnFloatVector)
	require.True(t, ok)
	assert.Equal(t, "fingerprint", vectors.Name())
	assert.Equal(t, [][]float32{testVector(1), testVector(0)}, vectors.Data())
}

func TestInsertCandidates_EmptySetIsNoop(t *testing.T) {
	fake := &fakeMilvus{}
	ix := newTestIndex(fake)

	require.NoError(t, ix.InsertCandidates(context.Background(), nil))
	assert.Empty(t, fake.upserts)
}

func TestInsertCandidates_RejectsDimensionMismatch(t *testing.T) {
	fake := &fakeMilvus{}
	ix := newTestIndex(fake)

	err := ix.InsertCandidates(context.Background(), []runs.SimilarityEntry{
		{ID: "r-1:0", Name: "a", Vector: []float32{1, 0}},
	})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
	assert.Empty(t, fake.upserts)
}

func TestInsertCandidates_RejectsMissingID(t *testing.T) {
	fake := &fakeMilvus{}
	ix := newTestIndex(fake)

	err := ix.InsertCandidates(context.Background(), []runs.SimilarityEntry{
		{Name: "a", Vector: testVector(1)},
	})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
}

func TestInsertCandidates_WrapsUpsertFailure(t *testing.T) {
	fake := &fakeMilvus{
		upsertFunc: func(upsertCall) (entity.Column, error) {
			return nil, fmt.Errorf("segment flush pending")
		},
	}
	ix := newTestIndex(fake)

	err := ix.InsertCandidates(context.Background(), []runs.SimilarityEntry{
		{ID: "r-1:0", Name: "a", Vector: testVector(1)},
	})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeVectorIndex))
	assert.True(t, errors.IsRetryable(err), "the worker may retry transient index trouble")
}

func TestSimilarCandidates_ByVector(t *testing.T) {
	fake := &fakeMilvus{
		searchFunc: func(searchCall) ([]client.SearchResult, error) {
			return searchHits(
				[][2]string{{"r-1:0", "F1-F2_0"}, {"r-2:4", "F3-F4_4"}},
				[]float32{0.5, 2.25}), nil
		},
	}
	ix := newTestIndex(fake)

	hits, err := ix.SimilarCandidates(context.Background(), SimilarQuery{Vector: testVector(1)})
	require.NoError(t, err)

	require.Len(t, hits, 2)
	assert.Equal(t, Hit{ID: "r-1:0", Name: "F1-F2_0", Distance: 0.5}, hits[0])
	assert.Equal(t, Hit{ID: "r-2:4", Name: "F3-F4_4", Distance: 2.25}, hits[1])

	require.Len(t, fake.searches, 1)
	call := fake.searches[0]
	assert.Equal(t, "fragelab_candidate_fingerprints", call.collection)
	assert.Empty(t, call.expr)
	assert.Equal(t, "fingerprint", call.field)
	assert.Equal(t, entity.L2, call.metric)
	assert.Equal(t, 5, call.topK, "zero TopK falls back to the configured default")
	assert.Equal(t, []string{"name"}, call.output)
}

func TestSimilarCandidates_ByIDExcludesProbe(t *testing.T) {
	stored := testVector(1)
	fake := &fakeMilvus{
		queryFunc: func(ids entity.Column, output []string) (client.ResultSet, error) {
			return client.ResultSet{
				entity.NewColumnFloatVector(fieldFingerprint, 8, [][]float32{stored}),
			}, nil
		},
		searchFunc: func(searchCall) ([]client.SearchResult, error) {
			return searchHits([][2]string{{"r-9:1", "F5-F6_1"}}, []float32{1.0}), nil
		},
	}
	ix := newTestIndex(fake)

	hits, err := ix.SimilarCandidates(context.Background(), SimilarQuery{ID: "r-1:0", TopK: 3})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "r-9:1", hits[0].ID)

	require.Len(t, fake.searches, 1)
	call := fake.searches[0]
	assert.Equal(t, `id != "r-1:0"`, call.expr)
	assert.Equal(t, 3, call.topK)
	require.Len(t, call.vectors, 1)
	assert.Equal(t, entity.FloatVector(stored), call.vectors[0],
		"search probes with the stored fingerprint")
}

func TestSimilarCandidates_UnknownIDNotFound(t *testing.T) {
	fake := &fakeMilvus{} // QueryByPks answers an empty result set
	ix := newTestIndex(fake)

	_, err := ix.SimilarCandidates(context.Background(), SimilarQuery{ID: "r-1:99"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeNotFound))
	assert.Empty(t, fake.searches)
}

func TestSimilarCandidates_RequiresExactlyOneProbe(t *testing.T) {
	ix := newTestIndex(&fakeMilvus{})

	_, err := ix.SimilarCandidates(context.Background(), SimilarQuery{})
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))

	_, err = ix.SimilarCandidates(context.Background(), SimilarQuery{ID: "r-1:0", Vector: testVector(1)})
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
}

func TestSimilarCandidates_RejectsWrongWidthVector(t *testing.T) {
	ix := newTestIndex(&fakeMilvus{})

	_, err := ix.SimilarCandidates(context.Background(), SimilarQuery{Vector: []float32{1, 2, 3}})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
}

func TestSimilarCandidates_CapsTopK(t *testing.T) {
	fake := &fakeMilvus{}
	ix := newTestIndex(fake)

	_, err := ix.SimilarCandidates(context.Background(), SimilarQuery{Vector: testVector(1), TopK: 100000})
	require.NoError(t, err)
	require.Len(t, fake.searches, 1)
	assert.Equal(t, maxTopK, fake.searches[0].topK)
}

func TestSimilarCandidates_WrapsSearchFailure(t *testing.T) {
	fake := &fakeMilvus{
		searchFunc: func(searchCall) ([]client.SearchResult, error) {
			return nil, fmt.Errorf("collection not loaded")
		},
	}
	ix := newTestIndex(fake)

	_, err := ix.SimilarCandidates(context.Background(), SimilarQuery{Vector: testVector(1)})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeVectorIndex))
}
