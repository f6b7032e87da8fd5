package client

import (
	"context"

	"github.com/molforge/fragelab/pkg/types/run"
)

// SimilarityClient covers the candidate fingerprint-search endpoint.
type SimilarityClient struct {
	client *Client
}

// Search finds candidates near an indexed candidate (req.ID) or a raw
// fingerprint vector (req.Vector). Hits come back nearest first.
func (s *SimilarityClient) Search(ctx context.Context, req run.SimilarRequest) ([]run.SimilarHit, error) {
	var out []run.SimilarHit
	if err := s.client.post(ctx, "/api/v1/candidates/similar", req, &out); err != nil {
		return nil, err
	}
	return out, nil
}
