package core

import (
	"TextDesk/entity"
	"TextDesk/internal/lib/sl"
	"context"
	"fmt"
	"log/slog"
)

func (c *Core) ListConversations(ctx context.Context) ([]entity.ConversationSummary, error) {
	return c.repo.ListSummaries(ctx)
}

// GetConversation loads a conversation and heals its unread counter when it
// has drifted from the messages.
func (c *Core) GetConversation(ctx context.Context, key string) (*entity.Conversation, error) {
	conv, err := c.repo.GetConversation(ctx, key)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, ErrConversationNotFound
	}
	if computed := conv.CountUnread(); computed != conv.UnreadCount {
		c.log.With(
			slog.String("key", key),
			slog.Int("stored", conv.UnreadCount),
			slog.Int("computed", computed),
		).Info("unread count drift")
		if err = c.healUnread(ctx, key); err != nil {
			c.log.With(sl.Err(err)).Warn("heal unread on load")
		}
		conv.UnreadCount = computed
	}
	return conv, nil
}

// GetMessages returns every conversation's ordered messages keyed by conversation key.
func (c *Core) GetMessages(ctx context.Context) (map[string][]entity.Message, error) {
	conversations, err := c.repo.ListConversations(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]entity.Message, len(conversations))
	for _, conv := range conversations {
		out[conv.Key] = conv.Messages
	}
	return out, nil
}

// MarkRead marks every inbound message of the conversation read, first
// locally and then at the provider. Provider failures are logged only.
func (c *Core) MarkRead(ctx context.Context, username, key string) (int, error) {
	var ids []string
	err := c.withLock(ctx, key, func() error {
		conv, err := c.repo.GetConversation(ctx, key)
		if err != nil {
			return err
		}
		if conv == nil {
			return ErrConversationNotFound
		}
		ids, err = c.repo.MarkConversationRead(ctx, key)
		if err != nil {
			return fmt.Errorf("mark read: %w", err)
		}
		_, err = c.repo.RecomputeUnread(ctx, key)
		return err
	})
	if err != nil {
		return 0, err
	}

	log := c.log.With(slog.String("key", key), slog.String("user", username))
	if c.provider != nil {
		for _, id := range ids {
			if err = c.provider.MarkRead(ctx, id); err != nil {
				log.With(slog.String("message_id", id), sl.Err(err)).Warn("provider mark read failed")
			}
		}
	}
	log.With(slog.Int("messages", len(ids))).Debug("conversation marked read")

	if c.hub != nil {
		c.hub.BroadcastRead(username, key)
	}
	c.notifyConversation(ctx, key)
	return len(ids), nil
}

// HandleMarkRead serves mark_read requests arriving over the websocket.
func (c *Core) HandleMarkRead(username, key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.jobTimeout)
	defer cancel()
	_, err := c.MarkRead(ctx, username, key)
	return err
}
