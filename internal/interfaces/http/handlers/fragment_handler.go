package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/molforge/fragelab/internal/application/elaboration"
	"github.com/molforge/fragelab/pkg/errors"
	fragtypes "github.com/molforge/fragelab/pkg/types/fragment"
)

// FragmentHandler serves the fragment library and selection resolution.
type FragmentHandler struct {
	elab elaboration.Service
}

// NewFragmentHandler creates the handler.
func NewFragmentHandler(elab elaboration.Service) *FragmentHandler {
	return &FragmentHandler{elab: elab}
}

// List answers GET /api/v1/fragments with the library in load order.
func (h *FragmentHandler) List(c *gin.Context) {
	infos := h.elab.Fragments()
	out := make([]fragtypes.Info, len(infos))
	for i, f := range infos {
		out[i] = fragtypes.Info{
			Name:       f.Name,
			Formula:    f.Formula,
			HeavyAtoms: f.HeavyAtoms,
			MolWeight:  f.MolWeight,
		}
	}
	respondData(c, http.StatusOK, out)
}

// Resolve answers POST /api/v1/elaborations/resolve: mode + selection to the
// canonical key. Selection errors come back as 400 with the requirement in
// the message; unknown fragments as 404.
func (h *FragmentHandler) Resolve(c *gin.Context) {
	var req fragtypes.ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	if len(req.Names) > 0 && len(req.Indices) > 0 {
		respondError(c, errors.New(errors.ErrCodeValidation,
			"set either names or indices, not both"))
		return
	}

	key, err := h.elab.Resolve(req.Mode, req.Names)
	if len(req.Names) == 0 && len(req.Indices) > 0 {
		key, err = h.elab.ResolveIndices(req.Mode, req.Indices)
	}
	if err != nil {
		respondError(c, err)
		return
	}

	respondData(c, http.StatusOK, fragtypes.ResolveResponse{
		Mode:     string(key.Mode),
		Names:    key.Names,
		Key:      key.String(),
		Filename: key.Filename(),
	})
}
