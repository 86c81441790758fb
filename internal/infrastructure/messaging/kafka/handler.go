package kafka

import (
	"context"
	"time"

	"github.com/turtacn/GasTM-Consolidator/internal/application/consolidation"
	"github.com/turtacn/GasTM-Consolidator/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/GasTM-Consolidator/internal/infrastructure/monitoring/prometheus"
	cc "github.com/turtacn/GasTM-Consolidator/internal/intelligence/chem_consolidator"
	"github.com/turtacn/GasTM-Consolidator/pkg/errors"
)

// DocumentProcessor consolidates one document held in memory.
type DocumentProcessor interface {
	ProcessDocument(ctx context.Context, docID string, records []cc.RawRecord) (*cc.DocumentResult, error)
}

var _ DocumentProcessor = (*consolidation.Service)(nil)

// DocumentHandler consumes raw count events and runs them through a
// DocumentProcessor.  Results leave through the processor's sinks.
type DocumentHandler struct {
	processor DocumentProcessor
	metrics   *prometheus.AppMetrics
	logger    logging.Logger
}

func NewDocumentHandler(p DocumentProcessor, metrics *prometheus.AppMetrics, logger logging.Logger) *DocumentHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &DocumentHandler{processor: p, metrics: metrics, logger: logger}
}

// Handle implements MessageHandler.
func (h *DocumentHandler) Handle(ctx context.Context, msg *Message) error {
	start := time.Now()
	docID, err := h.handle(ctx, msg)

	status := "ok"
	if err != nil {
		status = "failed"
		if IsPermanent(err) {
			status = "rejected"
		}
		h.logger.Warn("raw counts message failed",
			logging.DocumentID(docID),
			logging.String("topic", msg.Topic),
			logging.Int64("offset", msg.Offset),
			logging.String("code", string(errors.GetCode(err))),
			logging.Err(err))
	}
	if h.metrics != nil {
		h.metrics.RecordMessage(msg.Topic, status, time.Since(start))
	}
	return err
}

func (h *DocumentHandler) handle(ctx context.Context, msg *Message) (string, error) {
	env, err := MessageToEventEnvelope(msg)
	if err != nil {
		return "", err
	}
	if env.EventType != EventRawCounts {
		return "", errors.New(errors.ErrCodeValidation, "unexpected event type").WithDetail(env.EventType)
	}
	var payload RawCountsPayload
	if err := env.DecodePayload(&payload); err != nil {
		return "", err
	}
	if payload.DocumentID == "" {
		return "", errors.New(errors.ErrCodeValidation, "raw counts event without document id").WithDetail(env.EventID)
	}

	res, err := h.processor.ProcessDocument(ctx, payload.DocumentID, payload.Records)
	if err != nil {
		return payload.DocumentID, err
	}
	h.logger.Debug("document consolidated",
		logging.DocumentID(payload.DocumentID),
		logging.Int("species", res.Stats.Species))
	return payload.DocumentID, nil
}
