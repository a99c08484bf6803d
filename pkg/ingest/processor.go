// Package ingest turns endpoint-event envelopes from Kafka into rows in the
// event store and keeps the process-tree projection in step with them.
package ingest

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/arbor/pkg/graph"
	"github.com/Ramsey-B/arbor/pkg/kafka"
	"github.com/Ramsey-B/arbor/pkg/metrics"
	"github.com/Ramsey-B/arbor/pkg/models"
	"github.com/Ramsey-B/arbor/pkg/tracing"
	"github.com/Ramsey-B/arbor/pkg/utils"
)

// EventWriter persists endpoint events
type EventWriter interface {
	Insert(ctx context.Context, event *models.EndpointEvent) error
}

// DeadLetterPublisher publishes envelopes the processor cannot handle
type DeadLetterPublisher interface {
	PublishDeadLetter(ctx context.Context, dl *kafka.DeadLetter) error
}

// Processor handles incoming endpoint-event messages
type Processor struct {
	logger     ectologger.Logger
	repo       EventWriter
	lineage    *graph.LineageService
	deadLetter DeadLetterPublisher
}

// NewProcessor creates a new message processor for ingestion. lineage and
// deadLetter may be nil; the projection and the DLQ are both optional.
func NewProcessor(logger ectologger.Logger, repo EventWriter, lineage *graph.LineageService, deadLetter DeadLetterPublisher) *Processor {
	return &Processor{
		logger:     logger,
		repo:       repo,
		lineage:    lineage,
		deadLetter: deadLetter,
	}
}

// HandleMessage processes one message from the ingest topic. Malformed and
// invalid envelopes are dead-lettered and reported as handled so the offset
// commits; store failures are returned so the message is retried.
func (p *Processor) HandleMessage(ctx context.Context, msg *kafka.IncomingMessage) error {
	ctx, span := tracing.StartSpan(ctx, "ingest.Processor.HandleMessage")
	defer span.End()

	log := p.logger.WithContext(ctx).WithFields(map[string]any{
		"topic":  msg.Topic,
		"offset": msg.Offset,
		"key":    msg.Key,
	})

	if err := msg.ParseEnvelope(); err != nil {
		log.WithError(err).Error("Failed to parse envelope")
		p.publishDeadLetter(ctx, msg, "unparseable", err)
		return nil
	}

	if _, err := utils.Validate(msg.Envelope); err != nil {
		log.WithError(err).Error("Envelope failed validation")
		p.publishDeadLetter(ctx, msg, "invalid", err)
		return nil
	}

	event := msg.Envelope.ToEvent()
	if err := p.repo.Insert(ctx, event); err != nil {
		return err
	}
	metrics.EventsIngested.WithLabelValues(event.Kind).Inc()

	p.updateLineage(ctx, event)

	log.WithFields(map[string]any{
		"entity_id": event.EntityID,
		"kind":      event.Kind,
	}).Debug("Ingested endpoint event")
	return nil
}

// updateLineage mirrors lifecycle transitions into the graph projection.
// Projection failures are logged and swallowed; the store row already landed
// and readers fall back to it.
func (p *Processor) updateLineage(ctx context.Context, event *models.EndpointEvent) {
	if p.lineage == nil || !event.IsLifecycle() {
		return
	}

	switch event.Action {
	case models.ActionStart:
		if err := p.lineage.UpsertProcess(ctx, event.EntityID, event.ParentRef(), event.ProcessName, event.OccurredAt); err != nil {
			p.logger.WithContext(ctx).WithError(err).WithField("entity_id", event.EntityID).Warn("Projection upsert failed")
		}
	case models.ActionEnd:
		if err := p.lineage.MarkEnded(ctx, event.EntityID, event.OccurredAt); err != nil {
			p.logger.WithContext(ctx).WithError(err).WithField("entity_id", event.EntityID).Warn("Projection end-mark failed")
		}
	}
}

func (p *Processor) publishDeadLetter(ctx context.Context, msg *kafka.IncomingMessage, reason string, cause error) {
	metrics.EventsDeadLettered.WithLabelValues(reason).Inc()

	if p.deadLetter == nil {
		return
	}

	dl := &kafka.DeadLetter{
		Reason:    reason,
		Error:     cause.Error(),
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Key:       msg.Key,
		Value:     msg.Value,
		Headers:   msg.Headers,
	}
	if err := p.deadLetter.PublishDeadLetter(ctx, dl); err != nil {
		p.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"reason": reason,
			"offset": msg.Offset,
		}).Error("Failed to dead-letter envelope")
	}
}
