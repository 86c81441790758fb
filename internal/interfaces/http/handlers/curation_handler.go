package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/GasTM-Consolidator/internal/application/consolidation"
	cc "github.com/turtacn/GasTM-Consolidator/internal/intelligence/chem_consolidator"
	"github.com/turtacn/GasTM-Consolidator/pkg/errors"
)

// CurationReloader reloads the curation table from its source.
type CurationReloader interface {
	Reload(ctx context.Context) error
}

type CurationHandler struct {
	provider consolidation.CurationProvider
	reloader CurationReloader
}

// NewCurationHandler serves provider's table.  reloader may be nil, which
// disables POST /curation/reload.
func NewCurationHandler(provider consolidation.CurationProvider, reloader CurationReloader) *CurationHandler {
	return &CurationHandler{provider: provider, reloader: reloader}
}

type CurationResponse struct {
	Version     string             `json:"version"`
	Degraded    bool               `json:"degraded"`
	Entries     int                `json:"entries"`
	Dropped     int                `json:"dropped"`
	FormulaKeys int                `json:"formula_keys"`
	NameKeys    int                `json:"name_keys"`
	Items       []cc.CurationEntry `json:"items,omitempty"`
}

func describeCuration(t *cc.CurationTable) CurationResponse {
	return CurationResponse{
		Version:     t.Version(),
		Degraded:    t == nil,
		Entries:     t.Len(),
		Dropped:     t.Dropped(),
		FormulaKeys: t.FormulaKeys(),
		NameKeys:    t.NameKeys(),
	}
}

// Get handles GET /api/v1/curation.  ?entries=true lists the accepted entries.
func (h *CurationHandler) Get(c *gin.Context) {
	t := h.provider.Current()
	resp := describeCuration(t)
	if queryBool(c, "entries") {
		resp.Items = t.Entries()
	}
	c.JSON(http.StatusOK, resp)
}

// Reload handles POST /api/v1/curation/reload.
func (h *CurationHandler) Reload(c *gin.Context) {
	if h.reloader == nil {
		respondError(c, errors.New(errors.ErrCodeServiceUnavailable, "curation reload is not configured"))
		return
	}
	if err := h.reloader.Reload(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, describeCuration(h.provider.Current()))
}
