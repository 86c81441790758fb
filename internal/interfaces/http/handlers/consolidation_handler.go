package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/GasTM-Consolidator/internal/infrastructure/monitoring/logging"
	cc "github.com/turtacn/GasTM-Consolidator/internal/intelligence/chem_consolidator"
	"github.com/turtacn/GasTM-Consolidator/pkg/errors"
)

const maxClassifyTokens = 1000

// Consolidator is the service the consolidation endpoints drive.
type Consolidator interface {
	ProcessDocument(ctx context.Context, docID string, records []cc.RawRecord) (*cc.DocumentResult, error)
	Pipeline() *cc.Pipeline
}

type ConsolidationHandler struct {
	svc    Consolidator
	logger logging.Logger
}

func NewConsolidationHandler(svc Consolidator, logger logging.Logger) *ConsolidationHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &ConsolidationHandler{svc: svc, logger: logger}
}

type ConsolidateRequest struct {
	DocumentID string         `json:"document_id" binding:"required"`
	Records    []cc.RawRecord `json:"records"`
}

type ConsolidateResponse struct {
	DocumentID      string             `json:"document_id"`
	CurationVersion string             `json:"curation_version"`
	Degraded        bool               `json:"degraded"`
	Counts          *cc.DocumentCounts `json:"counts"`
	Stats           cc.Stats           `json:"stats"`
	Warnings        []cc.RecordWarning `json:"warnings,omitempty"`
	Trace           cc.ResolutionTrace `json:"trace,omitempty"`
	Rejections      []cc.Rejection     `json:"rejections,omitempty"`
}

// Consolidate handles POST /api/v1/documents/consolidate.  ?trace=true adds
// the resolution trace and the rejected tokens.
func (h *ConsolidationHandler) Consolidate(c *gin.Context) {
	var req ConsolidateRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.svc.ProcessDocument(c.Request.Context(), req.DocumentID, req.Records)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := ConsolidateResponse{
		DocumentID:      res.DocumentID,
		CurationVersion: h.svc.Pipeline().Resolver().Curation().Version(),
		Degraded:        res.Degraded,
		Counts:          res.Counts,
		Stats:           res.Stats,
		Warnings:        res.Warnings,
	}
	if queryBool(c, "trace") {
		resp.Trace = res.Trace
		resp.Rejections = res.Rejections
	}
	c.JSON(http.StatusOK, resp)
}

type ClassifyRequest struct {
	Tokens []string `json:"tokens" binding:"required,min=1"`
}

// TokenVerdict is the classification and, for accepted tokens, the
// resolution of one token.
type TokenVerdict struct {
	Raw        string              `json:"raw"`
	Normalized string              `json:"normalized"`
	Accepted   bool                `json:"accepted"`
	Reason     cc.RejectionReason  `json:"reason,omitempty"`
	Canonical  cc.CanonicalName    `json:"canonical,omitempty"`
	Resolved   bool                `json:"resolved,omitempty"`
	Method     cc.ResolutionMethod `json:"method,omitempty"`
}

type ClassifyResponse struct {
	CurationVersion string         `json:"curation_version"`
	Tokens          []TokenVerdict `json:"tokens"`
}

// Classify handles POST /api/v1/tokens/classify.
func (h *ConsolidationHandler) Classify(c *gin.Context) {
	var req ClassifyRequest
	if !bindJSON(c, &req) {
		return
	}
	if len(req.Tokens) > maxClassifyTokens {
		respondError(c, errors.Newf(errors.ErrCodeValidation, "at most %d tokens per request", maxClassifyTokens))
		return
	}

	p := h.svc.Pipeline()
	resp := ClassifyResponse{
		CurationVersion: p.Resolver().Curation().Version(),
		Tokens:          make([]TokenVerdict, len(req.Tokens)),
	}
	for i, raw := range req.Tokens {
		f, v := p.Classifier().ClassifyToken(raw)
		tv := TokenVerdict{Raw: raw, Normalized: string(f), Accepted: v.Accepted, Reason: v.Reason}
		if v.Accepted {
			r := p.Resolver().ResolveDetailed(f)
			tv.Canonical, tv.Resolved, tv.Method = r.Canonical, r.Resolved, r.Method
		}
		resp.Tokens[i] = tv
	}
	c.JSON(http.StatusOK, resp)
}
