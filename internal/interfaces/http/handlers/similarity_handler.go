package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/molforge/fragelab/internal/infrastructure/search/milvus"
	"github.com/molforge/fragelab/pkg/errors"
	runtypes "github.com/molforge/fragelab/pkg/types/run"
)

// SimilaritySearcher is the slice of the fingerprint index the handler uses.
type SimilaritySearcher interface {
	SimilarCandidates(ctx context.Context, q milvus.SimilarQuery) ([]milvus.Hit, error)
}

// SimilarityHandler serves candidate fingerprint search. The index is an
// optional component; without one every request answers 503.
type SimilarityHandler struct {
	index SimilaritySearcher
}

// NewSimilarityHandler creates the handler. index may be nil.
func NewSimilarityHandler(index SimilaritySearcher) *SimilarityHandler {
	return &SimilarityHandler{index: index}
}

// Similar answers POST /api/v1/candidates/similar.
func (h *SimilarityHandler) Similar(c *gin.Context) {
	if h.index == nil {
		respondError(c, errors.New(errors.ErrCodeServiceUnavailable,
			"similarity index is not configured"))
		return
	}

	var req runtypes.SimilarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	hits, err := h.index.SimilarCandidates(c.Request.Context(), milvus.SimilarQuery{
		ID:     req.ID,
		Vector: req.Vector,
		TopK:   req.TopK,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]runtypes.SimilarHit, len(hits))
	for i, hit := range hits {
		out[i] = runtypes.SimilarHit(hit)
	}
	respondData(c, http.StatusOK, out)
}
