// Package run implements the elaboration-run aggregate: one record per
// pipeline invocation, tracking its lifecycle, stage counts, and the
// per-candidate outcomes the report and API read back.
package run

import (
	"fmt"
	"strings"
	"time"

	"github.com/molforge/fragelab/internal/domain/fragment"
	"github.com/molforge/fragelab/pkg/errors"
	"github.com/molforge/fragelab/pkg/types/common"
)

// ─────────────────────────────────────────────────────────────────────────────
// Status state machine
// ─────────────────────────────────────────────────────────────────────────────

// Status is the lifecycle state of a run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// allowedTransitions defines the valid next states reachable from each
// status. Completed and failed are terminal.
var allowedTransitions = map[Status][]Status{
	StatusPending:   {StatusRunning, StatusFailed},
	StatusRunning:   {StatusCompleted, StatusFailed},
	StatusCompleted: {},
	StatusFailed:    {},
}

func canTransition(from, to Status) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	return len(allowedTransitions[s]) == 0
}

// ─────────────────────────────────────────────────────────────────────────────
// Value objects
// ─────────────────────────────────────────────────────────────────────────────

// Counts tallies how many candidates survived each pipeline stage.
type Counts struct {
	// Loaded is the number of candidates read from the elaboration set.
	Loaded int `json:"loaded"`
	// Kept is the number remaining after both property filters.
	Kept int `json:"kept"`
	// Posed is the number that produced a scored pose.
	Posed int `json:"posed"`
	// Skipped is the number dropped by recoverable pose failures.
	Skipped int `json:"skipped"`
}

// PoseScore is the persisted scoring result for one candidate's best pose.
type PoseScore struct {
	// Feature is the pharmacophore-overlap component in [0,1].
	Feature float64 `json:"feature"`
	// Protrusion is the shape-protrusion distance in [0,1]; lower is better.
	Protrusion float64 `json:"protrusion"`
	// Combined is the blended score in [0,1]; higher is better.
	Combined float64 `json:"combined"`
}

// CandidateOutcome is one row of the run report: everything the pipeline
// decided about a single input candidate, keyed by its input-order ordinal so
// reports always read back in load order.
type CandidateOutcome struct {
	RunID   common.ID `json:"run_id"`
	Ordinal int       `json:"ordinal"`
	Name    string    `json:"name"`

	// Provenance is the rendered fragment provenance ("F1" or "F1-F3"),
	// empty when the record carried none.
	Provenance string `json:"provenance,omitempty"`

	// Descriptors holds the computed property values (mw, logp, hba, hbd).
	Descriptors map[string]float64 `json:"descriptors,omitempty"`

	// Filter verdicts. Violations and hits are recorded even for kept
	// candidates (a single drug-likeness violation does not reject).
	PassedDruglike     bool     `json:"passed_druglike"`
	DruglikeViolations []string `json:"druglike_violations,omitempty"`
	PassedPAINS        bool     `json:"passed_pains"`
	PAINSHits          []string `json:"pains_hits,omitempty"`

	// Pose is nil until the candidate has been posed and scored.
	Pose *PoseScore `json:"pose,omitempty"`

	// SkipReason explains a recoverable per-candidate pose failure;
	// empty for candidates that were posed or filtered out earlier.
	SkipReason string `json:"skip_reason,omitempty"`
}

// Filtered reports whether the candidate was dropped by a property filter.
func (o *CandidateOutcome) Filtered() bool {
	return !o.PassedDruglike || !o.PassedPAINS
}

// ─────────────────────────────────────────────────────────────────────────────
// Run aggregate root
// ─────────────────────────────────────────────────────────────────────────────

// Run is one pipeline invocation over an elaboration set.
type Run struct {
	ID common.ID `json:"id"`

	// Mode and Key identify the elaboration set ("grow"/"F2",
	// "link"/"F1-F3"). Key is the hyphen-joined sorted name list.
	Mode fragment.Mode `json:"mode"`
	Key  string        `json:"key"`

	Status Status `json:"status"`
	Counts Counts `json:"counts"`

	// BestOrdinal indexes the highest-scoring candidate in the original
	// input order; -1 while no candidate has been posed.
	BestOrdinal int     `json:"best_ordinal"`
	BestScore   float64 `json:"best_score"`

	// Error carries the failure reason for StatusFailed runs.
	Error string `json:"error,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewRun creates a pending run for a resolved elaboration key.
func NewRun(key fragment.ElaborationKey) *Run {
	return &Run{
		ID:          common.NewID(),
		Mode:        key.Mode,
		Key:         strings.Join(key.Names, "-"),
		Status:      StatusPending,
		BestOrdinal: -1,
		CreatedAt:   time.Now().UTC(),
	}
}

// Start moves the run from pending to running.
func (r *Run) Start() error {
	if err := r.transition(StatusRunning); err != nil {
		return err
	}
	now := time.Now().UTC()
	r.StartedAt = &now
	return nil
}

// Complete records the final counts and best pose and closes the run.
func (r *Run) Complete(counts Counts, bestOrdinal int, bestScore float64) error {
	if err := r.transition(StatusCompleted); err != nil {
		return err
	}
	r.Counts = counts
	r.BestOrdinal = bestOrdinal
	r.BestScore = bestScore
	now := time.Now().UTC()
	r.CompletedAt = &now
	return nil
}

// Fail closes the run with the failure reason. Failing a terminal run is
// rejected so a completed report cannot be overwritten.
func (r *Run) Fail(cause error) error {
	if err := r.transition(StatusFailed); err != nil {
		return err
	}
	if cause != nil {
		r.Error = cause.Error()
	}
	now := time.Now().UTC()
	r.CompletedAt = &now
	return nil
}

func (r *Run) transition(to Status) error {
	if !canTransition(r.Status, to) {
		return errors.Newf(errors.ErrCodeConflict,
			"run %s cannot move from %s to %s", r.ID, r.Status, to)
	}
	r.Status = to
	return nil
}

// Duration returns the wall time between start and completion; zero while
// the run has not finished.
func (r *Run) Duration() time.Duration {
	if r.StartedAt == nil || r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(*r.StartedAt)
}

// HasBest reports whether any candidate was posed and scored.
func (r *Run) HasBest() bool {
	return r.BestOrdinal >= 0
}

// Describe renders a one-line summary for logs and the CLI report header.
func (r *Run) Describe() string {
	return fmt.Sprintf("%s %s:%s [%s]", r.ID, r.Mode, r.Key, r.Status)
}
