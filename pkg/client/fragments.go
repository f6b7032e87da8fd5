package client

import (
	"context"

	"github.com/molforge/fragelab/pkg/types/fragment"
)

// FragmentsClient covers the fragment-library endpoints.
type FragmentsClient struct {
	client *Client
}

// List returns the loaded library in screening order.
func (f *FragmentsClient) List(ctx context.Context) ([]fragment.Info, error) {
	var out []fragment.Info
	if err := f.client.get(ctx, "/api/v1/fragments", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Resolve maps an elaboration mode and fragment selection to its canonical
// key. Exactly one of req.Names and req.Indices must be set.
func (f *FragmentsClient) Resolve(ctx context.Context, req fragment.ResolveRequest) (*fragment.ResolveResponse, error) {
	var out fragment.ResolveResponse
	if err := f.client.post(ctx, "/api/v1/elaborations/resolve", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
