// Package run holds the wire types of the pipeline-run API surface, shared
// by the HTTP handlers and the Go SDK.
package run

import "time"

// Run statuses as rendered on the wire. They mirror the domain lifecycle:
// pending → running → completed | failed.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// CreateRequest starts one pipeline run. Async queues the run on the pose-job
// topic instead of executing it inline; the response then carries a pending
// run whose progress is polled via GET /api/v1/runs/{id}.
type CreateRequest struct {
	Mode  string   `json:"mode"`
	Names []string `json:"names"`
	Async bool     `json:"async,omitempty"`
}

// Counts tallies the candidates surviving each pipeline stage.
type Counts struct {
	Loaded  int `json:"loaded"`
	Kept    int `json:"kept"`
	Posed   int `json:"posed"`
	Skipped int `json:"skipped"`
}

// Run is one pipeline invocation record.
type Run struct {
	ID          string     `json:"id"`
	Mode        string     `json:"mode"`
	Key         string     `json:"key"`
	Status      string     `json:"status"`
	Counts      Counts     `json:"counts"`
	BestOrdinal int        `json:"best_ordinal"`
	BestScore   float64    `json:"best_score"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// PoseScore is the scored best pose of one candidate.
type PoseScore struct {
	Feature    float64 `json:"feature"`
	Protrusion float64 `json:"protrusion"`
	Combined   float64 `json:"combined"`
}

// CandidateOutcome is one row of a run report, in elaboration-file order.
type CandidateOutcome struct {
	Ordinal            int                `json:"ordinal"`
	Name               string             `json:"name"`
	Provenance         string             `json:"provenance,omitempty"`
	Descriptors        map[string]float64 `json:"descriptors,omitempty"`
	PassedDruglike     bool               `json:"passed_druglike"`
	DruglikeViolations []string           `json:"druglike_violations,omitempty"`
	PassedPAINS        bool               `json:"passed_pains"`
	PAINSHits          []string           `json:"pains_hits,omitempty"`
	Pose               *PoseScore         `json:"pose,omitempty"`
	SkipReason         string             `json:"skip_reason,omitempty"`
}

// Report is a run together with its per-candidate outcomes.
type Report struct {
	Run      Run                `json:"run"`
	Outcomes []CandidateOutcome `json:"outcomes"`
}

// ListResponse is one page of runs, newest first.
type ListResponse struct {
	Runs  []Run `json:"runs"`
	Total int64 `json:"total"`
}

// SimilarRequest searches the candidate fingerprint index. Exactly one of ID
// (an indexed "<runID>:<ordinal>" address) and Vector must be set.
type SimilarRequest struct {
	ID     string    `json:"id,omitempty"`
	Vector []float32 `json:"vector,omitempty"`
	TopK   int       `json:"top_k,omitempty"`
}

// SimilarHit is one similarity result; smaller Distance means more alike.
type SimilarHit struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Distance float32 `json:"distance"`
}
