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

// FileMessage stores msg in the conversation described by seed, keeping every
// message id in exactly one conversation. It returns the key the message ended
// up under, which differs from seed.Key only when an authoritative owner is
// kept over a fallback seed.
func (c *Core) FileMessage(ctx context.Context, seed entity.Conversation, msg entity.Message) (string, entity.IngestOutcome, error) {
	unlock, err := c.locker.Lock(ctx, seed.Key)
	if err != nil {
		return "", entity.OutcomeFailed, fmt.Errorf("lock %s: %w", seed.Key, err)
	}
	owner, _, err := c.repo.ClaimMessage(ctx, msg.ID, seed.Key)
	if err != nil {
		unlock()
		return "", entity.OutcomeFailed, fmt.Errorf("claim message: %w", err)
	}
	if owner == seed.Key {
		outcome, err := c.fileInto(ctx, seed, msg)
		unlock()
		return seed.Key, outcome, err
	}
	unlock()

	unlock, err = c.locker.Lock(ctx, seed.Key, owner)
	if err != nil {
		return "", entity.OutcomeFailed, fmt.Errorf("lock %s,%s: %w", seed.Key, owner, err)
	}
	defer unlock()

	// ownership may have moved while no lock was held
	owner, err = c.repo.MessageOwner(ctx, msg.ID)
	if err != nil {
		return "", entity.OutcomeFailed, fmt.Errorf("message owner: %w", err)
	}
	if owner == "" || owner == seed.Key {
		if err = c.repo.SetMessageOwner(ctx, msg.ID, seed.Key); err != nil {
			return "", entity.OutcomeFailed, fmt.Errorf("set owner: %w", err)
		}
		outcome, err := c.fileInto(ctx, seed, msg)
		return seed.Key, outcome, err
	}

	// a provider-keyed conversation never gives a message back to a fallback one
	if !entity.IsFallbackKey(owner) && entity.IsFallbackKey(seed.Key) {
		target := seed
		target.Key = owner
		target.ProviderConversationID = owner
		outcome, err := c.fileInto(ctx, target, msg)
		return owner, outcome, err
	}

	outcome, err := c.moveMessage(ctx, owner, seed, msg)
	return seed.Key, outcome, err
}

// fileInto inserts or enriches msg in seed's conversation. Callers hold the key lock.
func (c *Core) fileInto(ctx context.Context, seed entity.Conversation, msg entity.Message) (entity.IngestOutcome, error) {
	conv, err := c.repo.GetConversation(ctx, seed.Key)
	if err != nil {
		return entity.OutcomeFailed, fmt.Errorf("get conversation: %w", err)
	}
	if conv == nil || (conv.ProviderConversationID == "" && seed.ProviderConversationID != "") {
		if _, err = c.repo.EnsureConversation(ctx, seed); err != nil {
			return entity.OutcomeFailed, fmt.Errorf("ensure conversation: %w", err)
		}
	}

	i := -1
	if conv != nil {
		i = conv.IndexOf(msg.ID)
	}
	if i < 0 {
		if _, err = c.repo.AppendMessage(ctx, seed.Key, msg); err != nil {
			return entity.OutcomeFailed, fmt.Errorf("append message: %w", err)
		}
		if _, err = c.repo.RecomputeUnread(ctx, seed.Key); err != nil {
			return entity.OutcomeFailed, fmt.Errorf("recompute unread: %w", err)
		}
		return entity.OutcomeInserted, nil
	}

	stored := conv.Messages[i]
	if !stored.Enrich(msg) {
		return entity.OutcomeDuplicate, nil
	}
	if err = c.repo.ReplaceMessage(ctx, seed.Key, stored); err != nil {
		return entity.OutcomeFailed, fmt.Errorf("replace message: %w", err)
	}
	if _, err = c.repo.RecomputeUnread(ctx, seed.Key); err != nil {
		return entity.OutcomeFailed, fmt.Errorf("recompute unread: %w", err)
	}
	return entity.OutcomeUpdated, nil
}

// moveMessage relocates msg from the conversation at from into seed's
// conversation. The copy is written to the target before it is removed from
// the source, so a failure part way leaves the message readable. Callers hold
// both key locks.
func (c *Core) moveMessage(ctx context.Context, from string, seed entity.Conversation, msg entity.Message) (entity.IngestOutcome, error) {
	log := c.log.With(
		slog.String("message_id", msg.ID),
		slog.String("from", from),
		slog.String("to", seed.Key),
	)

	source, err := c.repo.GetConversation(ctx, from)
	if err != nil {
		return entity.OutcomeFailed, fmt.Errorf("get source conversation: %w", err)
	}
	if source != nil {
		if i := source.IndexOf(msg.ID); i >= 0 {
			old := source.Messages[i]
			old.Enrich(msg)
			msg = old
		}
	}

	created, err := c.repo.EnsureConversation(ctx, seed)
	if err != nil {
		return entity.OutcomeFailed, fmt.Errorf("ensure target conversation: %w", err)
	}
	if _, err = c.repo.AppendMessage(ctx, seed.Key, msg); err != nil {
		if created {
			_, _ = c.repo.DeleteConversationIfEmpty(ctx, seed.Key)
		}
		return entity.OutcomeFailed, fmt.Errorf("append to target: %w", err)
	}
	if err = c.repo.SetMessageOwner(ctx, msg.ID, seed.Key); err != nil {
		return entity.OutcomeFailed, fmt.Errorf("set owner: %w", err)
	}
	if _, err = c.repo.RecomputeUnread(ctx, seed.Key); err != nil {
		return entity.OutcomeFailed, fmt.Errorf("recompute target unread: %w", err)
	}

	if source != nil {
		if _, err = c.repo.RemoveMessage(ctx, from, msg.ID); err != nil {
			return entity.OutcomeFailed, fmt.Errorf("remove from source: %w", err)
		}
		if err = c.dropOrRecount(ctx, from); err != nil {
			return entity.OutcomeFailed, err
		}
	}

	metrics.MigrationsTotal.Inc()
	log.Info("message migrated")
	return entity.OutcomeMigrated, nil
}

// dropOrRecount deletes an emptied conversation or recomputes its unread count.
func (c *Core) dropOrRecount(ctx context.Context, key string) error {
	deleted, err := c.repo.DeleteConversationIfEmpty(ctx, key)
	if err != nil {
		return fmt.Errorf("delete empty conversation: %w", err)
	}
	if deleted {
		c.log.With(slog.String("key", key)).Info("empty conversation removed")
		c.notifyDeleted(key)
		return nil
	}
	if _, err = c.repo.RecomputeUnread(ctx, key); err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return nil
		}
		c.log.With(slog.String("key", key), sl.Err(err)).Warn("recompute source unread")
		return fmt.Errorf("recompute source unread: %w", err)
	}
	return nil
}
