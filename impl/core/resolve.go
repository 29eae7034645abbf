package core

import (
	"TextDesk/entity"
	"TextDesk/internal/lib/phone"
	"context"
	"fmt"
	"strings"
)

// FallbackKey derives the conversation key used until the provider has
// assigned a conversation id: the sorted, normalized participant set.
func FallbackKey(participants []string) (string, error) {
	set, err := phone.Set(participants...)
	if err != nil {
		return "", err
	}
	if len(set) == 0 {
		return "", ErrNoParticipants
	}
	return strings.Join(set, ","), nil
}

// Participants returns everyone on the message except the system number.
func (c *Core) Participants(event entity.SmsEvent) ([]string, error) {
	raw := make([]string, 0, len(event.To)+1)
	if event.From != "" {
		raw = append(raw, event.From)
	}
	for _, to := range event.To {
		if to != "" {
			raw = append(raw, to)
		}
	}
	set, err := phone.Set(raw...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}

	out := set[:0]
	for _, p := range set {
		if !phone.Equal(p, c.ownNumber) {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoParticipants
	}
	return out, nil
}

// ResolveConversation picks the conversation an event belongs to and returns
// it as a seed for creation. Events carrying a provider conversation id go to
// the conversation that recorded that id, or to a new one keyed by it.
func (c *Core) ResolveConversation(ctx context.Context, event entity.SmsEvent) (entity.Conversation, error) {
	participants, err := c.Participants(event)
	if err != nil {
		return entity.Conversation{}, err
	}
	seed := entity.Conversation{
		Participants: participants,
		IsGroup:      len(participants) > 1,
	}

	if pid := event.ProviderConversationID; pid != "" {
		seed.ProviderConversationID = pid
		seed.Key = pid
		existing, err := c.repo.FindConversationByProviderID(ctx, pid)
		if err != nil {
			return entity.Conversation{}, fmt.Errorf("find conversation %s: %w", pid, err)
		}
		if existing != nil {
			seed.Key = existing.Key
		}
		return seed, nil
	}

	seed.Key = strings.Join(participants, ",")
	return seed, nil
}
