package core

import (
	"TextDesk/entity"
	"TextDesk/internal/memstore"
	"context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sync"
	"testing"
	"time"
)

func TestFileMessage_MigratesToProviderConversation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := inbound("m1", alice, []string{own}, 0)

	first := f.ingest(t, e)
	require.Equal(t, alice, first.ConversationKey)

	moved := f.ingest(t, withConversation(e, "c-1"))
	assert.Equal(t, entity.OutcomeMigrated, moved.Outcome)
	assert.Equal(t, "c-1", moved.ConversationKey)

	assert.Nil(t, f.conversation(t, alice), "emptied fallback conversation is removed")
	conv := f.conversation(t, "c-1")
	require.NotNil(t, conv)
	require.Len(t, conv.Messages, 1)
	assert.Equal(t, "c-1", conv.Messages[0].ProviderConversationID)
	assert.Equal(t, 1, conv.UnreadCount)
	assert.True(t, f.hub.has("conversation_deleted", alice))

	owner, err := f.store.MessageOwner(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "c-1", owner)

	// a late copy without the conversation id stays where it is
	again := f.ingest(t, e)
	assert.Equal(t, entity.OutcomeDuplicate, again.Outcome)
	assert.Equal(t, "c-1", again.ConversationKey)
	assert.Nil(t, f.conversation(t, alice))
	assert.Equal(t, []string{"c-1"}, f.locations(t, "m1"))
}

func TestFileMessage_MigrationKeepsRemainingMessages(t *testing.T) {
	f := newFixture(t)

	f.ingest(t, inbound("m1", alice, []string{own}, 0))
	f.ingest(t, inbound("m2", alice, []string{own}, time.Minute))
	f.ingest(t, withConversation(inbound("m1", alice, []string{own}, 0), "c-1"))

	fallback := f.conversation(t, alice)
	require.NotNil(t, fallback)
	assert.Len(t, fallback.Messages, 1)
	assert.Equal(t, 1, fallback.UnreadCount)
	assert.Equal(t, 1, f.conversation(t, "c-1").UnreadCount)
}

func TestFileMessage_MigrationCarriesRelayedAttachments(t *testing.T) {
	f := newFixture(t)
	e := inbound("m1", alice, []string{own}, 0)
	e.Attachments = []entity.AttachmentDescriptor{{ID: "a1", ContentType: "image/png", URI: "https://media/a1"}}

	f.ingest(t, e)
	f.ingest(t, withConversation(e, "c-1"))

	msg := f.conversation(t, "c-1").Messages[0]
	require.Len(t, msg.Attachments, 1)
	assert.True(t, msg.Attachments[0].Relayed())
	assert.Equal(t, 1, f.relay.calls)
}

func TestFileMessage_ConvergesInAnyOrder(t *testing.T) {
	plain := inbound("m1", alice, []string{own}, 0)
	keyed := withConversation(plain, "c-1")

	for name, order := range map[string][]entity.SmsEvent{
		"fallback first": {plain, keyed},
		"keyed first":    {keyed, plain},
		"repeated":       {plain, keyed, plain, keyed},
	} {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			for _, e := range order {
				r := f.ingest(t, e)
				require.NotEqual(t, entity.OutcomeFailed, r.Outcome, r.Error)
			}
			assert.Equal(t, []string{"c-1"}, f.locations(t, "m1"))
		})
	}

	f := newFixture(t)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() { defer wg.Done(); f.ingest(t, plain) }()
		go func() { defer wg.Done(); f.ingest(t, keyed) }()
	}
	wg.Wait()
	assert.Equal(t, []string{"c-1"}, f.locations(t, "m1"))
}

func TestFileMessage_FailedMigrationLeavesMessageInPlace(t *testing.T) {
	repo := &failingRepo{Store: memstore.New()}
	f := newFixtureWith(t, repo)
	f.store = repo.Store
	ctx := context.Background()
	e := inbound("m1", alice, []string{own}, 0)

	f.ingest(t, e)
	repo.failAppend = "c-1"
	r := f.ingest(t, withConversation(e, "c-1"))

	assert.Equal(t, entity.OutcomeFailed, r.Outcome)
	assert.Contains(t, r.Error, "write conflict")
	assert.Equal(t, []string{alice}, f.locations(t, "m1"))
	assert.Nil(t, f.conversation(t, "c-1"))
	owner, _ := repo.MessageOwner(ctx, "m1")
	assert.Equal(t, alice, owner)

	repo.failAppend = ""
	r = f.ingest(t, withConversation(e, "c-1"))
	assert.Equal(t, entity.OutcomeMigrated, r.Outcome)
	assert.Equal(t, []string{"c-1"}, f.locations(t, "m1"))
}

func TestFileMessage_HealsClaimWithoutMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _, err := f.store.ClaimMessage(ctx, "m1", alice)
	require.NoError(t, err)

	r := f.ingest(t, inbound("m1", alice, []string{own}, 0))
	assert.Equal(t, entity.OutcomeInserted, r.Outcome)
	assert.Len(t, f.conversation(t, alice).Messages, 1)
}

func TestFileMessage_KeepsCreationOrder(t *testing.T) {
	f := newFixture(t)
	f.ingest(t, inbound("m3", alice, []string{own}, 3*time.Minute))
	f.ingest(t, inbound("m1", alice, []string{own}, time.Minute))
	f.ingest(t, inbound("m2", alice, []string{own}, 2*time.Minute))
	f.ingest(t, inbound("m2b", alice, []string{own}, 2*time.Minute))

	var ids []string
	for _, m := range f.conversation(t, alice).Messages {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"m1", "m2", "m2b", "m3"}, ids)
}
