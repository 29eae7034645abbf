package core

import (
	"TextDesk/entity"
	"TextDesk/internal/lib/phone"
	"TextDesk/internal/lib/sl"
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// SendMessage delivers an outbound SMS or MMS. Files are stored durably
// before submission so the stored copy of the message links to them; the
// provider's record of the sent message is then filed like any other event.
func (c *Core) SendMessage(ctx context.Context, to []string, text string, files []entity.OutboundFile) (*entity.SendResult, error) {
	if text == "" && len(files) == 0 {
		return nil, ErrEmptyMessage
	}
	recipients, err := phone.Set(to...)
	if err != nil {
		return nil, err
	}
	filtered := recipients[:0]
	for _, r := range recipients {
		if !phone.Equal(r, c.ownNumber) {
			filtered = append(filtered, r)
		}
	}
	if len(filtered) == 0 {
		return nil, ErrNoDestination
	}

	var total int64
	for _, f := range files {
		total += int64(len(f.Data))
	}
	if total > c.maxBytes {
		return nil, ErrTooLarge
	}

	log := c.log.With(slog.Int("recipients", len(filtered)), slog.Int("files", len(files)))

	stored := make([]entity.Attachment, 0, len(files))
	for i := range files {
		a, err := c.relay.Store(ctx, files[i])
		if err != nil {
			log.With(sl.Err(err)).Warn("outbound file rejected")
			return nil, fmt.Errorf("file %q: %w", files[i].Filename, err)
		}
		files[i].ContentType = a.ContentType
		stored = append(stored, a)
	}

	event, err := c.provider.Send(ctx, entity.OutboundMessage{
		From:  c.ownNumber,
		To:    filtered,
		Text:  text,
		Files: files,
	})
	if err != nil {
		log.With(sl.Err(err)).Error("send message")
		return nil, fmt.Errorf("send message: %w", err)
	}

	event.Direction = entity.DirectionOutbound
	if event.From == "" {
		event.From = c.ownNumber
	}
	if len(event.To) == 0 {
		event.To = filtered
	}
	if event.Text == "" {
		event.Text = text
	}
	if event.CreationTime.IsZero() {
		event.CreationTime = c.now().UTC()
	}

	key, msg, outcome, err := c.ingest(ctx, event, matchProviderParts(stored, event.Attachments))
	if err != nil {
		// the message is out; a sync will file it later
		log.With(slog.String("message_id", event.MessageID), sl.Err(err)).Error("file sent message")
		return &entity.SendResult{Message: msg, Outcome: entity.OutcomeFailed}, nil
	}
	c.notifyMessage(ctx, key, msg)
	log.With(slog.String("key", key), slog.String("message_id", msg.ID)).Info("message sent")

	return &entity.SendResult{ConversationKey: key, Message: msg, Outcome: outcome}, nil
}

// matchProviderParts files the stored copies under the ids the provider gave
// the sent media parts, pairing them by position, so a later sync or webhook
// replay of the same message finds them already relayed.
func matchProviderParts(stored []entity.Attachment, parts []entity.AttachmentDescriptor) []entity.Attachment {
	out := make([]entity.Attachment, len(stored))
	copy(out, stored)
	n := 0
	for i, part := range parts {
		if part.Class() == entity.MediaText {
			continue
		}
		if n == len(out) {
			break
		}
		out[n].ID = part.PartID(i)
		out[n].ProviderURI = part.URI
		n++
	}
	return out
}

// IsClientError reports errors caused by the request rather than the system.
func IsClientError(err error) bool {
	return errors.Is(err, phone.ErrInvalidNumber) ||
		errors.Is(err, ErrNoDestination) ||
		errors.Is(err, ErrEmptyMessage) ||
		errors.Is(err, ErrMalformedEvent)
}
