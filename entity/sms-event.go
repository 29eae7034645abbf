package entity

import (
	"time"
)

// SmsEvent is a provider message record normalized for ingestion. Webhook
// notifications, message-store sync pages and send responses all map to it.
type SmsEvent struct {
	MessageID              string                 `json:"message_id"`
	ProviderConversationID string                 `json:"provider_conversation_id,omitempty"`
	Direction              Direction              `json:"direction"`
	From                   string                 `json:"from"`
	To                     []string               `json:"to"`
	Text                   string                 `json:"text"`
	ReadStatus             ReadStatus             `json:"read_status"`
	Attachments            []AttachmentDescriptor `json:"attachments,omitempty"`
	CreationTime           time.Time              `json:"creation_time"`
	LastModifiedTime       time.Time              `json:"last_modified_time"`
}

// DecodedEvent is one record of a provider payload. Err is set when the
// record could not be mapped to an SmsEvent.
type DecodedEvent struct {
	Event SmsEvent
	Err   error
}

// IngestOutcome describes what filing a message did to the store.
type IngestOutcome string

const (
	OutcomeInserted  IngestOutcome = "inserted"
	OutcomeDuplicate IngestOutcome = "duplicate"
	OutcomeUpdated   IngestOutcome = "updated"
	OutcomeMigrated  IngestOutcome = "migrated"
	OutcomeFailed    IngestOutcome = "failed"
)

// IngestResult is reported per event; one failed event never hides its siblings.
type IngestResult struct {
	MessageID       string        `json:"message_id"`
	ConversationKey string        `json:"conversation_key,omitempty"`
	Outcome         IngestOutcome `json:"outcome"`
	Error           string        `json:"error,omitempty"`
}

// OutboundMessage is what the provider client submits to the send endpoint.
type OutboundMessage struct {
	From  string
	To    []string
	Text  string
	Files []OutboundFile
}

// SendResult is returned to the manager after an outbound send.
type SendResult struct {
	ConversationKey string        `json:"conversation_key,omitempty"`
	Outcome         IngestOutcome `json:"outcome"`
	Message         Message       `json:"message"`
}
