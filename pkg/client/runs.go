package client

import (
	"context"
	"fmt"
	"time"

	"github.com/molforge/fragelab/pkg/types/run"
)

// RunsClient covers the pipeline-run endpoints.
type RunsClient struct {
	client *Client
}

// Create starts a pipeline run. With req.Async the server queues the run and
// answers immediately with a pending record; poll Get or use WaitForCompletion.
func (r *RunsClient) Create(ctx context.Context, req run.CreateRequest) (*run.Run, error) {
	var out run.Run
	if err := r.client.post(ctx, "/api/v1/runs", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Get loads one run by id.
func (r *RunsClient) Get(ctx context.Context, id string) (*run.Run, error) {
	var out run.Run
	if err := r.client.get(ctx, "/api/v1/runs/"+id, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// List pages through runs, newest first.
func (r *RunsClient) List(ctx context.Context, limit, offset int) (*run.ListResponse, error) {
	var out run.ListResponse
	path := fmt.Sprintf("/api/v1/runs?limit=%d&offset=%d", limit, offset)
	if err := r.client.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Report loads one run with its per-candidate outcomes.
func (r *RunsClient) Report(ctx context.Context, id string) (*run.Report, error) {
	var out run.Report
	if err := r.client.get(ctx, "/api/v1/runs/"+id+"/report", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// WaitForCompletion polls a run until it reaches a terminal status or ctx
// expires.
func (r *RunsClient) WaitForCompletion(ctx context.Context, id string, pollInterval time.Duration) (*run.Run, error) {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		current, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		switch current.Status {
		case run.StatusCompleted, run.StatusFailed:
			return current, nil
		}

		select {
		case <-ctx.Done():
			return current, ctx.Err()
		case <-ticker.C:
		}
	}
}
