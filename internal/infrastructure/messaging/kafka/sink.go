package kafka

import (
	"context"

	"github.com/turtacn/GasTM-Consolidator/internal/application/consolidation"
	cc "github.com/turtacn/GasTM-Consolidator/internal/intelligence/chem_consolidator"
	"github.com/turtacn/GasTM-Consolidator/pkg/errors"
)

// EventSink publishes each document's counts as a DocumentCounts event keyed
// by document id, so a compacted topic keeps the latest counts per document.
type EventSink struct {
	publisher Publisher
	topic     string
	source    string
}

var _ consolidation.ResultSink = (*EventSink)(nil)

// NewEventSink publishes to topic; source names this service in envelopes.
func NewEventSink(p Publisher, topic, source string) *EventSink {
	if source == "" {
		source = "gastm"
	}
	return &EventSink{publisher: p, topic: topic, source: source}
}

func (s *EventSink) Name() string { return "kafka" }

func (s *EventSink) WriteDocument(ctx context.Context, run consolidation.RunInfo, res *cc.DocumentResult) error {
	if res == nil {
		return errors.InvalidParam("cannot publish a nil result")
	}
	env, err := NewEventEnvelope(EventDocumentCounts, s.source, DocumentCountsPayload{
		DocumentID:      res.DocumentID,
		RunID:           run.ID,
		CurationVersion: run.CurationVersion,
		Degraded:        res.Degraded,
		Counts:          res.Counts,
		Stats:           res.Stats,
	})
	if err != nil {
		return err
	}
	env.Metadata = map[string]string{"corpus_source": run.Source}

	msg, err := env.ToMessage(s.topic, res.DocumentID)
	if err != nil {
		return err
	}
	return s.publisher.Publish(ctx, msg)
}
