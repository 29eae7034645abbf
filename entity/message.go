package entity

import (
	"time"
)

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

type ReadStatus string

const (
	ReadStatusRead   ReadStatus = "read"
	ReadStatusUnread ReadStatus = "unread"
)

// Message is a single SMS/MMS identified by the provider's message id.
// It is immutable once delivered except for ReadStatus and attachment enrichment.
type Message struct {
	ID                     string       `json:"id" bson:"id"`
	Direction              Direction    `json:"direction" bson:"direction"`
	From                   string       `json:"from" bson:"from"`
	To                     []string     `json:"to" bson:"to"`
	Text                   string       `json:"text" bson:"text"`
	ReadStatus             ReadStatus   `json:"read_status" bson:"read_status"`
	Attachments            []Attachment `json:"attachments" bson:"attachments"`
	ProviderConversationID string       `json:"provider_conversation_id,omitempty" bson:"provider_conversation_id,omitempty"`
	CreationTime           time.Time    `json:"creation_time" bson:"creation_time"`
	LastModifiedTime       time.Time    `json:"last_modified_time" bson:"last_modified_time"`
}

// IsUnread reports whether the message counts towards a conversation's unread count.
func (m Message) IsUnread() bool {
	return m.Direction == DirectionInbound && m.ReadStatus == ReadStatusUnread
}

// Enrich folds the mutable parts of a newer copy of the same message into m:
// the read status and any attachment that has since been relayed.
// It reports whether m changed.
func (m *Message) Enrich(newer Message) bool {
	changed := false
	if newer.ReadStatus != "" && newer.ReadStatus != m.ReadStatus {
		m.ReadStatus = newer.ReadStatus
		changed = true
	}
	if m.ProviderConversationID == "" && newer.ProviderConversationID != "" {
		m.ProviderConversationID = newer.ProviderConversationID
		changed = true
	}
	if newer.LastModifiedTime.After(m.LastModifiedTime) {
		m.LastModifiedTime = newer.LastModifiedTime
	}

	byID := make(map[string]Attachment, len(newer.Attachments))
	for _, a := range newer.Attachments {
		byID[a.ID] = a
	}
	for i, a := range m.Attachments {
		n, ok := byID[a.ID]
		if !ok || a.Relayed() || !n.Relayed() {
			continue
		}
		m.Attachments[i] = n
		changed = true
	}
	known := make(map[string]struct{}, len(m.Attachments))
	for _, a := range m.Attachments {
		known[a.ID] = struct{}{}
	}
	for _, n := range newer.Attachments {
		if _, ok := known[n.ID]; !ok {
			m.Attachments = append(m.Attachments, n)
			changed = true
		}
	}
	return changed
}
