// Package memstore is an in-process conversation repository. It backs tests
// and runs the service when mongo is disabled.
package memstore

import (
	"TextDesk/entity"
	"context"
	"sort"
	"sync"
	"time"
)

type Store struct {
	mu            sync.RWMutex
	conversations map[string]*entity.Conversation
	owners        map[string]string
	now           func() time.Time
}

func New() *Store {
	return &Store{
		conversations: make(map[string]*entity.Conversation),
		owners:        make(map[string]string),
		now:           time.Now,
	}
}

func cloneMessage(m entity.Message) entity.Message {
	m.To = append([]string(nil), m.To...)
	m.Attachments = append([]entity.Attachment(nil), m.Attachments...)
	return m
}

func cloneConversation(c *entity.Conversation) *entity.Conversation {
	out := *c
	out.Participants = append([]string(nil), c.Participants...)
	out.Messages = make([]entity.Message, len(c.Messages))
	for i, m := range c.Messages {
		out.Messages[i] = cloneMessage(m)
	}
	return &out
}

func (s *Store) GetConversation(_ context.Context, key string) (*entity.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conversations[key]
	if !ok {
		return nil, nil
	}
	return cloneConversation(c), nil
}

func (s *Store) FindConversationByProviderID(_ context.Context, providerID string) (*entity.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.conversations[providerID]; ok && c.ProviderConversationID == providerID {
		return cloneConversation(c), nil
	}
	for _, c := range s.conversations {
		if c.ProviderConversationID == providerID {
			return cloneConversation(c), nil
		}
	}
	return nil, nil
}

func (s *Store) ListConversations(_ context.Context) ([]entity.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]entity.Conversation, 0, len(s.conversations))
	for _, c := range s.conversations {
		out = append(out, *cloneConversation(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *Store) ListSummaries(_ context.Context) ([]entity.ConversationSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]entity.ConversationSummary, 0, len(s.conversations))
	for _, c := range s.conversations {
		out = append(out, c.Summary())
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].LastMessageTime.Equal(out[j].LastMessageTime) {
			return out[i].Key < out[j].Key
		}
		return out[i].LastMessageTime.After(out[j].LastMessageTime)
	})
	return out, nil
}

// EnsureConversation creates the conversation from seed unless its key exists.
// An existing conversation only gains a provider id it did not have.
func (s *Store) EnsureConversation(_ context.Context, seed entity.Conversation) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.conversations[seed.Key]; ok {
		if c.ProviderConversationID == "" && seed.ProviderConversationID != "" {
			c.ProviderConversationID = seed.ProviderConversationID
			c.UpdatedAt = s.now()
		}
		return false, nil
	}
	c := cloneConversation(&seed)
	c.Messages = nil
	c.UnreadCount = 0
	c.CreatedAt = s.now()
	c.UpdatedAt = c.CreatedAt
	s.conversations[seed.Key] = c
	return true, nil
}

func (s *Store) DeleteConversationIfEmpty(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[key]
	if !ok || len(c.Messages) > 0 {
		return false, nil
	}
	delete(s.conversations, key)
	return true, nil
}

func (s *Store) AppendMessage(_ context.Context, key string, msg entity.Message) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[key]
	if !ok {
		return false, entity.ErrNotFound
	}
	inserted := c.Insert(cloneMessage(msg))
	if inserted {
		c.UpdatedAt = s.now()
	}
	return inserted, nil
}

func (s *Store) ReplaceMessage(_ context.Context, key string, msg entity.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[key]
	if !ok {
		return entity.ErrNotFound
	}
	i := c.IndexOf(msg.ID)
	if i < 0 {
		return entity.ErrNotFound
	}
	c.Messages[i] = cloneMessage(msg)
	c.UpdatedAt = s.now()
	return nil
}

func (s *Store) RemoveMessage(_ context.Context, key, messageID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[key]
	if !ok {
		return false, nil
	}
	removed := c.Remove(messageID)
	if removed {
		c.UpdatedAt = s.now()
	}
	return removed, nil
}

func (s *Store) RecomputeUnread(_ context.Context, key string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[key]
	if !ok {
		return 0, entity.ErrNotFound
	}
	c.UnreadCount = c.CountUnread()
	return c.UnreadCount, nil
}

// MarkConversationRead flips every unread inbound message to read and returns their ids.
func (s *Store) MarkConversationRead(_ context.Context, key string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[key]
	if !ok {
		return nil, entity.ErrNotFound
	}
	var ids []string
	for i := range c.Messages {
		if c.Messages[i].IsUnread() {
			c.Messages[i].ReadStatus = entity.ReadStatusRead
			ids = append(ids, c.Messages[i].ID)
		}
	}
	if len(ids) > 0 {
		c.UpdatedAt = s.now()
	}
	return ids, nil
}

// ClaimMessage records key as the owner of messageID unless it already has one.
// It returns the owner and whether this call set it.
func (s *Store) ClaimMessage(_ context.Context, messageID, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if owner, ok := s.owners[messageID]; ok {
		return owner, false, nil
	}
	s.owners[messageID] = key
	return key, true, nil
}

func (s *Store) SetMessageOwner(_ context.Context, messageID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.owners[messageID] = key
	return nil
}

func (s *Store) MessageOwner(_ context.Context, messageID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.owners[messageID], nil
}

// SetUnreadCount overwrites the cached counter. Tests use it to simulate drift.
func (s *Store) SetUnreadCount(key string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.conversations[key]; ok {
		c.UnreadCount = n
	}
}
