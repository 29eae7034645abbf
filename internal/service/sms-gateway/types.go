package sms_gateway

import (
	"TextDesk/entity"
	"TextDesk/internal/lib/validate"
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// APIError is a non-2xx answer from the provider.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	body := e.Body
	if len(body) > 300 {
		body = body[:300] + "..."
	}
	return fmt.Sprintf("provider api error: status %d: %s", e.Status, body)
}

// flexString accepts both JSON strings and numbers; provider ids come as either.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

type party struct {
	PhoneNumber string `json:"phoneNumber"`
	Name        string `json:"name,omitempty"`
}

type attachmentRecord struct {
	ID          flexString `json:"id"`
	URI         string     `json:"uri"`
	Type        string     `json:"type"`
	ContentType string     `json:"contentType"`
	FileName    string     `json:"fileName"`
}

type conversationRef struct {
	ID flexString `json:"id"`
}

// messageRecord is a message-store record as returned by list, send and notifications.
type messageRecord struct {
	ID               flexString         `json:"id" validate:"required"`
	ConversationID   flexString         `json:"conversationId"`
	Conversation     *conversationRef   `json:"conversation,omitempty"`
	Direction        string             `json:"direction" validate:"required,oneof=Inbound Outbound"`
	From             party              `json:"from"`
	To               []party            `json:"to"`
	Subject          string             `json:"subject"`
	ReadStatus       string             `json:"readStatus" validate:"omitempty,oneof=Read Unread"`
	Attachments      []attachmentRecord `json:"attachments"`
	CreationTime     time.Time          `json:"creationTime"`
	LastModifiedTime time.Time          `json:"lastModifiedTime"`
}

func (r *messageRecord) conversationID() string {
	if r.ConversationID != "" {
		return string(r.ConversationID)
	}
	if r.Conversation != nil {
		return string(r.Conversation.ID)
	}
	return ""
}

// toEvent maps and validates a provider record.
func (r *messageRecord) toEvent() (entity.SmsEvent, error) {
	if err := validate.Struct(r); err != nil {
		return entity.SmsEvent{}, fmt.Errorf("invalid message record %q: %w", string(r.ID), err)
	}
	if r.From.PhoneNumber == "" && len(r.To) == 0 {
		return entity.SmsEvent{}, fmt.Errorf("message record %q has no parties", string(r.ID))
	}

	event := entity.SmsEvent{
		MessageID:              string(r.ID),
		ProviderConversationID: r.conversationID(),
		Direction:              entity.DirectionInbound,
		From:                   r.From.PhoneNumber,
		Text:                   r.Subject,
		CreationTime:           r.CreationTime.UTC(),
		LastModifiedTime:       r.LastModifiedTime.UTC(),
	}
	if r.Direction == "Outbound" {
		event.Direction = entity.DirectionOutbound
	}
	for _, p := range r.To {
		if p.PhoneNumber != "" {
			event.To = append(event.To, p.PhoneNumber)
		}
	}

	switch strings.ToLower(r.ReadStatus) {
	case "read":
		event.ReadStatus = entity.ReadStatusRead
	case "unread":
		event.ReadStatus = entity.ReadStatusUnread
	default:
		event.ReadStatus = entity.ReadStatusUnread
		if event.Direction == entity.DirectionOutbound {
			event.ReadStatus = entity.ReadStatusRead
		}
	}

	if event.CreationTime.IsZero() {
		event.CreationTime = event.LastModifiedTime
	}
	if event.CreationTime.IsZero() {
		event.CreationTime = time.Now().UTC()
	}

	for _, a := range r.Attachments {
		event.Attachments = append(event.Attachments, entity.AttachmentDescriptor{
			ID:          string(a.ID),
			URI:         a.URI,
			Type:        a.Type,
			ContentType: a.ContentType,
			Filename:    a.FileName,
		})
	}
	return event, nil
}

type paging struct {
	Page       int `json:"page"`
	TotalPages int `json:"totalPages"`
}

type navigation struct {
	NextPage *struct {
		URI string `json:"uri"`
	} `json:"nextPage,omitempty"`
}

type listResponse struct {
	Records    []json.RawMessage `json:"records"`
	Paging     paging            `json:"paging"`
	Navigation navigation        `json:"navigation"`
}

type sendRequest struct {
	From party   `json:"from"`
	To   []party `json:"to"`
	Text string  `json:"text,omitempty"`
}

type readStatusRequest struct {
	ReadStatus string `json:"readStatus"`
}
