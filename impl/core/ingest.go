package core

import (
	"TextDesk/entity"
	"TextDesk/internal/lib/sl"
	"TextDesk/internal/metrics"
	"context"
	"errors"
	"fmt"
	"log/slog"
)

const (
	SourceWebhook = "webhook"
	SourceSync    = "sync"
	SourceSend    = "send"
)

// IngestWebhook files every record of a provider notification payload.
// Only an undecodable payload is an error; record failures are reported per result.
func (c *Core) IngestWebhook(ctx context.Context, payload []byte) ([]entity.IngestResult, error) {
	decoded, err := c.provider.ParseWebhook(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}
	return c.IngestDecoded(ctx, SourceWebhook, decoded), nil
}

func (c *Core) IngestDecoded(ctx context.Context, source string, decoded []entity.DecodedEvent) []entity.IngestResult {
	results := make([]entity.IngestResult, 0, len(decoded))
	for _, d := range decoded {
		if d.Err != nil {
			c.log.With(
				slog.String("source", source),
				slog.String("message_id", d.Event.MessageID),
				sl.Err(d.Err),
			).Warn("malformed event")
			metrics.IngestTotal.WithLabelValues(source, string(entity.OutcomeFailed)).Inc()
			results = append(results, entity.IngestResult{
				MessageID: d.Event.MessageID,
				Outcome:   entity.OutcomeFailed,
				Error:     fmt.Errorf("%w: %w", ErrMalformedEvent, d.Err).Error(),
			})
			continue
		}
		results = append(results, c.IngestEvent(ctx, source, d.Event))
	}
	return results
}

func (c *Core) IngestEvents(ctx context.Context, source string, events []entity.SmsEvent) []entity.IngestResult {
	results := make([]entity.IngestResult, 0, len(events))
	for _, e := range events {
		results = append(results, c.IngestEvent(ctx, source, e))
	}
	return results
}

// IngestEvent resolves, relays and files one event. A failure is confined to
// the returned result.
func (c *Core) IngestEvent(ctx context.Context, source string, event entity.SmsEvent) entity.IngestResult {
	result := entity.IngestResult{MessageID: event.MessageID}
	log := c.log.With(
		slog.String("source", source),
		slog.String("message_id", event.MessageID),
	)

	key, msg, outcome, err := c.ingest(ctx, event, nil)
	result.ConversationKey = key
	result.Outcome = outcome
	metrics.IngestTotal.WithLabelValues(source, string(outcome)).Inc()
	if err != nil {
		result.Outcome = entity.OutcomeFailed
		result.Error = err.Error()
		if errors.Is(err, ErrMalformedEvent) || errors.Is(err, ErrNoParticipants) {
			log.With(sl.Err(err)).Warn("event rejected")
		} else {
			log.With(sl.Err(err)).Error("event ingestion failed")
		}
		return result
	}

	log.With(
		slog.String("key", key),
		slog.String("outcome", string(outcome)),
	).Debug("event filed")
	if outcome != entity.OutcomeDuplicate {
		c.notifyMessage(ctx, key, msg)
	}
	return result
}

// ingest is shared by inbound events and send responses. When attachments is
// non-nil it replaces the relayed provider parts.
func (c *Core) ingest(ctx context.Context, event entity.SmsEvent, attachments []entity.Attachment) (string, entity.Message, entity.IngestOutcome, error) {
	if event.MessageID == "" {
		return "", entity.Message{}, entity.OutcomeFailed, fmt.Errorf("%w: missing message id", ErrMalformedEvent)
	}
	seed, err := c.ResolveConversation(ctx, event)
	if err != nil {
		return "", entity.Message{}, entity.OutcomeFailed, err
	}

	if attachments == nil && len(event.Attachments) > 0 {
		existing := c.storedAttachments(ctx, event.MessageID)
		attachments = c.relay.Relay(ctx, event.MessageID, event.Attachments, existing)
	}

	msg := messageFromEvent(event, attachments)
	key, outcome, err := c.FileMessage(ctx, seed, msg)
	if err != nil {
		return key, msg, entity.OutcomeFailed, err
	}
	return key, msg, outcome, nil
}

// storedAttachments returns the attachments of an already filed copy of the
// message so relayed parts are not downloaded again.
func (c *Core) storedAttachments(ctx context.Context, messageID string) []entity.Attachment {
	owner, err := c.repo.MessageOwner(ctx, messageID)
	if err != nil || owner == "" {
		return nil
	}
	conv, err := c.repo.GetConversation(ctx, owner)
	if err != nil || conv == nil {
		return nil
	}
	if i := conv.IndexOf(messageID); i >= 0 {
		return conv.Messages[i].Attachments
	}
	return nil
}

func messageFromEvent(event entity.SmsEvent, attachments []entity.Attachment) entity.Message {
	msg := entity.Message{
		ID:                     event.MessageID,
		Direction:              event.Direction,
		From:                   event.From,
		To:                     append([]string(nil), event.To...),
		Text:                   event.Text,
		ReadStatus:             event.ReadStatus,
		Attachments:            attachments,
		ProviderConversationID: event.ProviderConversationID,
		CreationTime:           event.CreationTime,
		LastModifiedTime:       event.LastModifiedTime,
	}
	if msg.Direction == "" {
		msg.Direction = entity.DirectionInbound
	}
	switch {
	case msg.Direction == entity.DirectionOutbound:
		msg.ReadStatus = entity.ReadStatusRead
	case msg.ReadStatus == "":
		msg.ReadStatus = entity.ReadStatusUnread
	}
	if msg.Attachments == nil {
		msg.Attachments = []entity.Attachment{}
	}
	return msg
}
