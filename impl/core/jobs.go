package core

import (
	"TextDesk/entity"
	"TextDesk/internal/lib/sl"
	"TextDesk/internal/metrics"
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	JobSync           = "sync"
	JobRepairGroups   = "repair-groups"
	JobFixMisrouted   = "fix-misrouted"
	JobFixAttachments = "fix-attachments"
)

// SyncRecent re-reads the provider message store for the last window and
// files everything through the same path as webhooks. Read-status drift is
// corrected by the duplicate merge. Group repair and unread reconciliation run
// afterwards.
func (c *Core) SyncRecent(ctx context.Context, window time.Duration) (*entity.JobReport, error) {
	ctx, cancel := context.WithTimeout(ctx, c.jobTimeout)
	defer cancel()

	report := entity.NewJobReport(JobSync)
	since := c.now().Add(-window)
	events, err := c.provider.ListMessages(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("list provider messages: %w", err)
	}
	for _, result := range c.IngestEvents(ctx, SourceSync, events) {
		report.Scanned++
		if result.Outcome == entity.OutcomeFailed {
			report.Actions[string(result.Outcome)]++
			report.Errors = append(report.Errors, result.MessageID+": "+result.Error)
			continue
		}
		if result.Outcome == entity.OutcomeDuplicate {
			report.Actions[string(result.Outcome)]++
			continue
		}
		report.Count(string(result.Outcome))
	}

	if groups, err := c.RepairGroups(ctx); err != nil {
		report.Fail(err)
	} else {
		report.Steps = append(report.Steps, *groups)
	}
	if unread, err := c.ReconcileUnread(ctx); err != nil {
		report.Fail(err)
	} else {
		report.Steps = append(report.Steps, *unread)
	}

	c.log.With(
		slog.Time("since", since),
		slog.Int("events", report.Scanned),
		slog.Int("changed", report.Changed),
	).Info("provider sync complete")
	return report.Finish(), nil
}

// RepairGroups moves messages from fallback conversations into the
// provider-keyed conversation with the same participant set, then removes the
// emptied fallback conversations.
func (c *Core) RepairGroups(ctx context.Context) (*entity.JobReport, error) {
	ctx, cancel := context.WithTimeout(ctx, c.jobTimeout)
	defer cancel()

	report := entity.NewJobReport(JobRepairGroups)
	conversations, err := c.repo.ListConversations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	byKey := make(map[string]*entity.Conversation, len(conversations))
	for i := range conversations {
		byKey[conversations[i].Key] = &conversations[i]
	}

	for _, conv := range conversations {
		if !conv.IsAuthoritative() {
			continue
		}
		report.Scanned++
		fallback, err := FallbackKey(conv.Participants)
		if err != nil {
			report.Fail(fmt.Errorf("participants of %s: %w", conv.Key, err))
			continue
		}
		source, ok := byKey[fallback]
		if !ok {
			continue
		}
		moved, err := c.mergeConversation(ctx, source.Key, conv)
		for i := 0; i < moved; i++ {
			report.Count("moved")
		}
		metrics.RepairActionsTotal.WithLabelValues(JobRepairGroups, "moved").Add(float64(moved))
		if err != nil {
			report.Fail(err)
			continue
		}
		delete(byKey, fallback)
		c.log.With(
			slog.String("from", fallback),
			slog.String("to", conv.Key),
			slog.Int("messages", moved),
		).Info("fallback conversation merged")
	}
	return report.Finish(), nil
}

// mergeConversation moves every message of from into target.
func (c *Core) mergeConversation(ctx context.Context, from string, target entity.Conversation) (int, error) {
	unlock, err := c.locker.Lock(ctx, from, target.Key)
	if err != nil {
		return 0, fmt.Errorf("lock %s,%s: %w", from, target.Key, err)
	}
	defer unlock()

	source, err := c.repo.GetConversation(ctx, from)
	if err != nil {
		return 0, fmt.Errorf("get %s: %w", from, err)
	}
	if source == nil {
		return 0, nil
	}
	seed := seedOf(target)
	moved := 0
	for _, msg := range source.Messages {
		if _, err = c.moveMessage(ctx, from, seed, msg); err != nil {
			return moved, fmt.Errorf("move %s: %w", msg.ID, err)
		}
		moved++
	}
	if len(source.Messages) == 0 {
		if err = c.dropOrRecount(ctx, from); err != nil {
			return moved, err
		}
	}
	c.notifyConversation(ctx, target.Key)
	return moved, nil
}

type location struct {
	key  string
	conv *entity.Conversation
}

// FixMisrouted restores the one-conversation-per-message rule on stored data:
// copies of a message in several conversations are reduced to one, missing or
// stale ownership records are rewritten, and messages whose provider
// conversation id points elsewhere are moved there.
func (c *Core) FixMisrouted(ctx context.Context) (*entity.JobReport, error) {
	ctx, cancel := context.WithTimeout(ctx, c.jobTimeout)
	defer cancel()

	report := entity.NewJobReport(JobFixMisrouted)
	conversations, err := c.repo.ListConversations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	locations := make(map[string][]location)
	var order []string
	for i := range conversations {
		conv := &conversations[i]
		for _, msg := range conv.Messages {
			if _, ok := locations[msg.ID]; !ok {
				order = append(order, msg.ID)
			}
			locations[msg.ID] = append(locations[msg.ID], location{key: conv.Key, conv: conv})
		}
	}

	touched := make(map[string]struct{})
	count := func(action string) {
		report.Count(action)
		metrics.RepairActionsTotal.WithLabelValues(JobFixMisrouted, action).Inc()
	}

	for _, id := range order {
		report.Scanned++
		locs := locations[id]
		keep, err := c.keepLocation(ctx, id, locs)
		if err != nil {
			report.Fail(err)
			continue
		}

		if len(locs) > 1 {
			removed, err := c.dropCopies(ctx, id, keep, locs)
			for _, key := range removed {
				touched[key] = struct{}{}
				count("deduplicated")
			}
			if err != nil {
				report.Fail(err)
				continue
			}
		}

		owner, err := c.repo.MessageOwner(ctx, id)
		if err != nil {
			report.Fail(err)
			continue
		}
		if owner != keep.key {
			if err = c.repo.SetMessageOwner(ctx, id, keep.key); err != nil {
				report.Fail(err)
				continue
			}
			count("owner_fixed")
		}

		moved, err := c.rerouteByProviderID(ctx, id, keep)
		if err != nil {
			report.Fail(err)
			continue
		}
		if moved != "" {
			touched[keep.key] = struct{}{}
			touched[moved] = struct{}{}
			count("rerouted")
		}
	}

	for key := range touched {
		if err := c.withLock(ctx, key, func() error {
			return c.dropOrRecount(ctx, key)
		}); err != nil {
			report.Fail(fmt.Errorf("%s: %w", key, err))
		}
	}
	return report.Finish(), nil
}

// keepLocation chooses the copy that survives: the recorded owner when it
// holds one, otherwise the first provider-keyed conversation, otherwise the first.
func (c *Core) keepLocation(ctx context.Context, id string, locs []location) (location, error) {
	owner, err := c.repo.MessageOwner(ctx, id)
	if err != nil {
		return location{}, fmt.Errorf("owner of %s: %w", id, err)
	}
	for _, l := range locs {
		if l.key == owner {
			return l, nil
		}
	}
	for _, l := range locs {
		if !entity.IsFallbackKey(l.key) {
			return l, nil
		}
	}
	return locs[0], nil
}

func (c *Core) dropCopies(ctx context.Context, id string, keep location, locs []location) ([]string, error) {
	keys := make([]string, 0, len(locs))
	for _, l := range locs {
		keys = append(keys, l.key)
	}
	unlock, err := c.locker.Lock(ctx, keys...)
	if err != nil {
		return nil, fmt.Errorf("lock copies of %s: %w", id, err)
	}
	defer unlock()

	var removed []string
	for _, l := range locs {
		if l.key == keep.key {
			continue
		}
		ok, err := c.repo.RemoveMessage(ctx, l.key, id)
		if err != nil {
			return removed, fmt.Errorf("remove %s from %s: %w", id, l.key, err)
		}
		if ok {
			removed = append(removed, l.key)
		}
	}
	return removed, nil
}

// rerouteByProviderID moves a message whose provider conversation id names a
// different conversation. It returns the target key when a move happened.
func (c *Core) rerouteByProviderID(ctx context.Context, id string, at location) (string, error) {
	i := at.conv.IndexOf(id)
	if i < 0 {
		return "", nil
	}
	msg := at.conv.Messages[i]
	pid := msg.ProviderConversationID
	if pid == "" || pid == at.key {
		return "", nil
	}

	target := pid
	existing, err := c.repo.FindConversationByProviderID(ctx, pid)
	if err != nil {
		return "", fmt.Errorf("find conversation %s: %w", pid, err)
	}
	if existing != nil {
		target = existing.Key
	}
	if target == at.key {
		return "", nil
	}

	unlock, err := c.locker.Lock(ctx, at.key, target)
	if err != nil {
		return "", fmt.Errorf("lock %s,%s: %w", at.key, target, err)
	}
	defer unlock()

	seed := entity.Conversation{
		Key:                    target,
		ProviderConversationID: pid,
		Participants:           at.conv.Participants,
		IsGroup:                at.conv.IsGroup,
	}
	if existing != nil {
		seed = seedOf(*existing)
	}
	if _, err = c.moveMessage(ctx, at.key, seed, msg); err != nil {
		return "", err
	}
	return target, nil
}

// FixAttachments retries relays that never completed. Failed attempts are
// retried only with retryFailed, and size-cap failures never are.
func (c *Core) FixAttachments(ctx context.Context, retryFailed bool) (*entity.JobReport, error) {
	ctx, cancel := context.WithTimeout(ctx, c.jobTimeout)
	defer cancel()

	report := entity.NewJobReport(JobFixAttachments)
	conversations, err := c.repo.ListConversations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	for _, conv := range conversations {
		for _, msg := range conv.Messages {
			var parts []entity.AttachmentDescriptor
			for _, a := range msg.Attachments {
				if a.Retryable(retryFailed) {
					parts = append(parts, a.Descriptor())
				}
			}
			if len(parts) == 0 {
				continue
			}
			report.Scanned += len(parts)

			relayed := c.relay.Relay(ctx, msg.ID, parts, nil)
			fixed, err := c.applyAttachments(ctx, conv.Key, msg.ID, relayed)
			if err != nil {
				report.Fail(err)
				continue
			}
			for i := 0; i < fixed; i++ {
				report.Count("relayed")
			}
			metrics.RepairActionsTotal.WithLabelValues(JobFixAttachments, "relayed").Add(float64(fixed))
		}
	}
	c.log.With(
		slog.Int("attempted", report.Scanned),
		slog.Int("relayed", report.Changed),
	).Info("attachment repair complete")
	return report.Finish(), nil
}

// applyAttachments writes relay results into the stored message, never
// replacing an attachment that already has a durable URL.
func (c *Core) applyAttachments(ctx context.Context, key, messageID string, relayed []entity.Attachment) (int, error) {
	fixed := 0
	err := c.withLock(ctx, key, func() error {
		conv, err := c.repo.GetConversation(ctx, key)
		if err != nil {
			return fmt.Errorf("get %s: %w", key, err)
		}
		if conv == nil {
			return nil
		}
		i := conv.IndexOf(messageID)
		if i < 0 {
			return nil
		}
		msg := conv.Messages[i]
		byID := make(map[string]entity.Attachment, len(relayed))
		for _, a := range relayed {
			byID[a.ID] = a
		}
		changed := false
		for j, a := range msg.Attachments {
			n, ok := byID[a.ID]
			if !ok || a.Relayed() {
				continue
			}
			if n.Relayed() {
				fixed++
			}
			msg.Attachments[j] = n
			changed = true
		}
		if !changed {
			return nil
		}
		return c.repo.ReplaceMessage(ctx, key, msg)
	})
	if err != nil {
		c.log.With(slog.String("key", key), slog.String("message_id", messageID), sl.Err(err)).Error("apply relayed attachments")
	}
	return fixed, err
}

func (c *Core) withLock(ctx context.Context, key string, fn func() error) error {
	unlock, err := c.locker.Lock(ctx, key)
	if err != nil {
		return fmt.Errorf("lock %s: %w", key, err)
	}
	defer unlock()
	return fn()
}

func seedOf(conv entity.Conversation) entity.Conversation {
	return entity.Conversation{
		Key:                    conv.Key,
		ProviderConversationID: conv.ProviderConversationID,
		Participants:           conv.Participants,
		IsGroup:                conv.IsGroup,
	}
}
