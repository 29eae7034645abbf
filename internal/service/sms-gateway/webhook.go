package sms_gateway

import (
	"TextDesk/entity"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrEmptyPayload = errors.New("empty webhook payload")

type notification struct {
	UUID  string          `json:"uuid"`
	Event string          `json:"event"`
	Body  json.RawMessage `json:"body"`
}

type batch struct {
	Events []json.RawMessage `json:"events"`
}

// ParseWebhook decodes a notification payload: a single notification, an
// array of them, or {"events": [...]}. Each notification may carry the
// message record in "body" or be the bare record itself. A record that
// cannot be mapped is returned with Err set; only an undecodable payload
// fails the call.
func ParseWebhook(data []byte) ([]entity.DecodedEvent, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrEmptyPayload
	}

	var items []json.RawMessage
	switch data[0] {
	case '[':
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("decode webhook array: %w", err)
		}
	case '{':
		var b batch
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, fmt.Errorf("decode webhook: %w", err)
		}
		if b.Events != nil {
			items = b.Events
		} else {
			items = []json.RawMessage{data}
		}
	default:
		return nil, fmt.Errorf("decode webhook: unexpected payload")
	}

	out := make([]entity.DecodedEvent, 0, len(items))
	for _, item := range items {
		out = append(out, decodeItem(item))
	}
	return out, nil
}

func decodeItem(item json.RawMessage) entity.DecodedEvent {
	var n notification
	if err := json.Unmarshal(item, &n); err != nil {
		return entity.DecodedEvent{Err: fmt.Errorf("decode notification: %w", err)}
	}
	raw := item
	if len(n.Body) > 0 && !bytes.Equal(bytes.TrimSpace(n.Body), []byte("null")) {
		raw = n.Body
	}
	return decodeRecord(raw)
}

func decodeRecord(raw json.RawMessage) entity.DecodedEvent {
	var r messageRecord
	if err := json.Unmarshal(raw, &r); err != nil {
		return entity.DecodedEvent{Err: fmt.Errorf("decode message record: %w", err)}
	}
	event, err := r.toEvent()
	if err != nil {
		return entity.DecodedEvent{Event: entity.SmsEvent{MessageID: string(r.ID)}, Err: err}
	}
	return entity.DecodedEvent{Event: event}
}
