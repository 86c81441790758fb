package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/GasTM-Consolidator/internal/application/consolidation"
	cc "github.com/turtacn/GasTM-Consolidator/internal/intelligence/chem_consolidator"
)

// ResultHandler answers queries over persisted results.
type ResultHandler struct {
	store consolidation.ResultStore
}

func NewResultHandler(store consolidation.ResultStore) *ResultHandler {
	return &ResultHandler{store: store}
}

type DocumentCountsResponse struct {
	DocumentID string             `json:"document_id"`
	RunID      string             `json:"run_id"`
	Counts     *cc.DocumentCounts `json:"counts"`
}

// DocumentCounts handles GET /api/v1/documents/:id/counts with the counts of
// the latest run that wrote the document.
func (h *ResultHandler) DocumentCounts(c *gin.Context) {
	docID := c.Param("id")
	runID, counts, err := h.store.LatestDocumentCounts(c.Request.Context(), docID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, DocumentCountsResponse{DocumentID: docID, RunID: runID, Counts: counts})
}

type RunsResponse struct {
	Runs []consolidation.RunSummary `json:"runs"`
}

// ListRuns handles GET /api/v1/runs?limit=N, newest first.
func (h *ResultHandler) ListRuns(c *gin.Context) {
	limit, err := queryInt(c, "limit", 20, 500)
	if err != nil {
		respondError(c, err)
		return
	}
	runs, err := h.store.ListRuns(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	if runs == nil {
		runs = []consolidation.RunSummary{}
	}
	c.JSON(http.StatusOK, RunsResponse{Runs: runs})
}
