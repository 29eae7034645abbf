package entity

import (
	"errors"
	"sort"
	"strings"
	"time"
)

// ErrNotFound is returned by repositories when a write targets a missing conversation or message.
var ErrNotFound = errors.New("not found")

// Conversation is the document that owns an ordered list of messages.
// Key is either a fallback key derived from participants ("+1555...,+1555...")
// or the provider's conversation id once one has been observed.
type Conversation struct {
	Key                    string    `json:"key" bson:"_id"`
	ProviderConversationID string    `json:"provider_conversation_id,omitempty" bson:"provider_conversation_id,omitempty"`
	Participants           []string  `json:"participants" bson:"participants"`
	IsGroup                bool      `json:"is_group" bson:"is_group"`
	Messages               []Message `json:"messages" bson:"messages"`
	LastMessageTime        time.Time `json:"last_message_time" bson:"last_message_time"`
	UnreadCount            int       `json:"unread_count" bson:"unread_count"`
	CreatedAt              time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt              time.Time `json:"updated_at" bson:"updated_at"`
}

// IsFallbackKey reports whether key was derived from a participant set.
func IsFallbackKey(key string) bool {
	return strings.HasPrefix(key, "+")
}

// IsAuthoritative reports whether the conversation is keyed by a provider conversation id.
func (c *Conversation) IsAuthoritative() bool {
	return c.ProviderConversationID != "" && c.Key == c.ProviderConversationID
}

// CountUnread recomputes the unread count from the messages themselves.
func (c *Conversation) CountUnread() int {
	n := 0
	for _, m := range c.Messages {
		if m.IsUnread() {
			n++
		}
	}
	return n
}

func (c *Conversation) IndexOf(messageID string) int {
	for i, m := range c.Messages {
		if m.ID == messageID {
			return i
		}
	}
	return -1
}

// Insert adds msg keeping the list sorted by creation time. Equal timestamps
// keep arrival order. It returns false when the message id is already present.
func (c *Conversation) Insert(msg Message) bool {
	if c.IndexOf(msg.ID) >= 0 {
		return false
	}
	i := sort.Search(len(c.Messages), func(i int) bool {
		return c.Messages[i].CreationTime.After(msg.CreationTime)
	})
	c.Messages = append(c.Messages, Message{})
	copy(c.Messages[i+1:], c.Messages[i:])
	c.Messages[i] = msg
	c.Refresh()
	return true
}

func (c *Conversation) Remove(messageID string) bool {
	i := c.IndexOf(messageID)
	if i < 0 {
		return false
	}
	c.Messages = append(c.Messages[:i], c.Messages[i+1:]...)
	c.Refresh()
	return true
}

// Refresh recomputes the cached fields derived from Messages.
func (c *Conversation) Refresh() {
	c.UnreadCount = c.CountUnread()
	c.LastMessageTime = time.Time{}
	for _, m := range c.Messages {
		if m.CreationTime.After(c.LastMessageTime) {
			c.LastMessageTime = m.CreationTime
		}
	}
}

func (c *Conversation) Summary() ConversationSummary {
	s := ConversationSummary{
		Key:                    c.Key,
		ProviderConversationID: c.ProviderConversationID,
		Participants:           c.Participants,
		IsGroup:                c.IsGroup,
		LastMessageTime:        c.LastMessageTime,
		UnreadCount:            c.UnreadCount,
		MessageCount:           len(c.Messages),
	}
	if n := len(c.Messages); n > 0 {
		s.LastMessage = c.Messages[n-1].Text
	}
	return s
}

// ConversationSummary is a row of the admin conversation list.
type ConversationSummary struct {
	Key                    string    `json:"key" bson:"_id"`
	ProviderConversationID string    `json:"provider_conversation_id,omitempty" bson:"provider_conversation_id,omitempty"`
	Participants           []string  `json:"participants" bson:"participants"`
	IsGroup                bool      `json:"is_group" bson:"is_group"`
	LastMessage            string    `json:"last_message" bson:"last_message"`
	LastMessageTime        time.Time `json:"last_message_time" bson:"last_message_time"`
	UnreadCount            int       `json:"unread_count" bson:"unread_count"`
	MessageCount           int       `json:"message_count" bson:"message_count"`
}
