package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/molforge/fragelab/internal/application/runs"
	"github.com/molforge/fragelab/internal/domain/run"
	"github.com/molforge/fragelab/pkg/errors"
	"github.com/molforge/fragelab/pkg/types/common"
	runtypes "github.com/molforge/fragelab/pkg/types/run"
)

// RunHandler serves pipeline run creation and retrieval.
type RunHandler struct {
	runs runs.Service
}

// NewRunHandler creates the handler.
func NewRunHandler(svc runs.Service) *RunHandler {
	return &RunHandler{runs: svc}
}

// Create answers POST /api/v1/runs. Synchronous runs come back terminal;
// async=true returns 202 with a pending run to poll.
func (h *RunHandler) Create(c *gin.Context) {
	var req runtypes.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	r, err := h.runs.Execute(c.Request.Context(), runs.ExecuteInput{
		Mode:  req.Mode,
		Names: req.Names,
		Async: req.Async,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusCreated
	if req.Async {
		status = http.StatusAccepted
	}
	respondData(c, status, toRunDTO(r))
}

// Get answers GET /api/v1/runs/:id.
func (h *RunHandler) Get(c *gin.Context) {
	id := common.ID(c.Param("id"))
	if err := id.Validate(); err != nil {
		respondError(c, errors.Wrap(err, errors.ErrCodeValidation, "invalid run id"))
		return
	}
	r, err := h.runs.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, toRunDTO(r))
}

// List answers GET /api/v1/runs with limit/offset paging, newest first.
func (h *RunHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	rs, total, err := h.runs.List(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	out := runtypes.ListResponse{Runs: make([]runtypes.Run, len(rs)), Total: total}
	for i, r := range rs {
		out.Runs[i] = toRunDTO(r)
	}
	respondData(c, http.StatusOK, out)
}

// Report answers GET /api/v1/runs/:id/report with per-candidate outcomes.
func (h *RunHandler) Report(c *gin.Context) {
	id := common.ID(c.Param("id"))
	if err := id.Validate(); err != nil {
		respondError(c, errors.Wrap(err, errors.ErrCodeValidation, "invalid run id"))
		return
	}
	rep, err := h.runs.Report(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	out := runtypes.Report{
		Run:      toRunDTO(rep.Run),
		Outcomes: make([]runtypes.CandidateOutcome, len(rep.Outcomes)),
	}
	for i, o := range rep.Outcomes {
		out.Outcomes[i] = toOutcomeDTO(o)
	}
	respondData(c, http.StatusOK, out)
}

// ── DTO conversion ──────────────────────────────────────────────────────────

func toRunDTO(r *run.Run) runtypes.Run {
	return runtypes.Run{
		ID:          string(r.ID),
		Mode:        string(r.Mode),
		Key:         r.Key,
		Status:      string(r.Status),
		Counts:      runtypes.Counts(r.Counts),
		BestOrdinal: r.BestOrdinal,
		BestScore:   r.BestScore,
		Error:       r.Error,
		CreatedAt:   r.CreatedAt,
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
	}
}

func toOutcomeDTO(o run.CandidateOutcome) runtypes.CandidateOutcome {
	out := runtypes.CandidateOutcome{
		Ordinal:            o.Ordinal,
		Name:               o.Name,
		Provenance:         o.Provenance,
		Descriptors:        o.Descriptors,
		PassedDruglike:     o.PassedDruglike,
		DruglikeViolations: o.DruglikeViolations,
		PassedPAINS:        o.PassedPAINS,
		PAINSHits:          o.PAINSHits,
		SkipReason:         o.SkipReason,
	}
	if o.Pose != nil {
		p := runtypes.PoseScore(*o.Pose)
		out.Pose = &p
	}
	return out
}
