package repository

import (
	"TextDesk/entity"
	"context"
	"fmt"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"sort"
	"time"
)

func (m *MongoDB) GetConversation(ctx context.Context, key string) (*entity.Conversation, error) {
	collection, err := m.collection(conversationsCollection)
	if err != nil {
		return nil, err
	}
	var conv entity.Conversation
	err = collection.FindOne(ctx, bson.D{{"_id", key}}).Decode(&conv)
	if err != nil {
		return nil, m.findError(err)
	}
	return &conv, nil
}

func (m *MongoDB) FindConversationByProviderID(ctx context.Context, providerID string) (*entity.Conversation, error) {
	collection, err := m.collection(conversationsCollection)
	if err != nil {
		return nil, err
	}
	var conv entity.Conversation
	// a conversation keyed by the id wins over one that merely recorded it
	opts := options.FindOne().SetSort(bson.D{{"created_at", 1}})
	err = collection.FindOne(ctx, bson.D{{"_id", providerID}, {"provider_conversation_id", providerID}}).Decode(&conv)
	if err == nil {
		return &conv, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, m.findError(err)
	}
	err = collection.FindOne(ctx, bson.D{{"provider_conversation_id", providerID}}, opts).Decode(&conv)
	if err != nil {
		return nil, m.findError(err)
	}
	return &conv, nil
}

func (m *MongoDB) ListConversations(ctx context.Context) ([]entity.Conversation, error) {
	collection, err := m.collection(conversationsCollection)
	if err != nil {
		return nil, err
	}
	cursor, err := collection.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{"_id", 1}}))
	if err != nil {
		return nil, fmt.Errorf("mongodb find error: %w", err)
	}
	var conversations []entity.Conversation
	if err = cursor.All(ctx, &conversations); err != nil {
		return nil, fmt.Errorf("mongodb decode error: %w", err)
	}
	return conversations, nil
}

func (m *MongoDB) ListSummaries(ctx context.Context) ([]entity.ConversationSummary, error) {
	collection, err := m.collection(conversationsCollection)
	if err != nil {
		return nil, err
	}
	pipeline := mongo.Pipeline{
		{{"$project", bson.D{
			{"provider_conversation_id", 1},
			{"participants", 1},
			{"is_group", 1},
			{"last_message_time", 1},
			{"unread_count", 1},
			{"message_count", bson.D{{"$size", "$messages"}}},
			{"last_message", bson.D{{"$ifNull", bson.A{
				bson.D{{"$arrayElemAt", bson.A{"$messages.text", -1}}},
				"",
			}}}},
		}}},
		{{"$sort", bson.D{{"last_message_time", -1}, {"_id", 1}}}},
	}
	cursor, err := collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("mongodb aggregate error: %w", err)
	}
	var summaries []entity.ConversationSummary
	if err = cursor.All(ctx, &summaries); err != nil {
		return nil, fmt.Errorf("mongodb decode error: %w", err)
	}
	return summaries, nil
}

// EnsureConversation upserts the conversation document keyed by seed.Key.
// An existing document keeps its fields and only gains a missing provider id.
func (m *MongoDB) EnsureConversation(ctx context.Context, seed entity.Conversation) (bool, error) {
	collection, err := m.collection(conversationsCollection)
	if err != nil {
		return false, err
	}
	now := time.Now().UTC()
	onInsert := bson.D{
		{"participants", seed.Participants},
		{"is_group", seed.IsGroup},
		{"messages", bson.A{}},
		{"unread_count", 0},
		{"last_message_time", time.Time{}},
		{"created_at", now},
	}
	if seed.ProviderConversationID != "" {
		onInsert = append(onInsert, bson.E{Key: "provider_conversation_id", Value: seed.ProviderConversationID})
	}
	update := bson.D{
		{"$setOnInsert", onInsert},
		{"$set", bson.D{{"updated_at", now}}},
	}
	res, err := collection.UpdateOne(ctx, bson.D{{"_id", seed.Key}}, update, options.Update().SetUpsert(true))
	if err != nil {
		// two upserts raced on the same _id; the other one created it
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("mongodb upsert error: %w", err)
	}
	created := res.UpsertedCount > 0
	if created || seed.ProviderConversationID == "" {
		return created, nil
	}

	filter := bson.D{
		{"_id", seed.Key},
		{"$or", bson.A{
			bson.D{{"provider_conversation_id", bson.D{{"$exists", false}}}},
			bson.D{{"provider_conversation_id", ""}},
		}},
	}
	_, err = collection.UpdateOne(ctx, filter, bson.D{{"$set", bson.D{
		{"provider_conversation_id", seed.ProviderConversationID},
	}}})
	if err != nil {
		return false, fmt.Errorf("mongodb update error: %w", err)
	}
	return false, nil
}

func (m *MongoDB) DeleteConversationIfEmpty(ctx context.Context, key string) (bool, error) {
	collection, err := m.collection(conversationsCollection)
	if err != nil {
		return false, err
	}
	res, err := collection.DeleteOne(ctx, bson.D{{"_id", key}, {"messages", bson.D{{"$size", 0}}}})
	if err != nil {
		return false, fmt.Errorf("mongodb delete error: %w", err)
	}
	return res.DeletedCount > 0, nil
}

// AppendMessage inserts msg at its creation-time position. Equal timestamps
// keep arrival order. The position is computed from a read, so callers hold
// the conversation lock; the id guard still refuses a second copy.
func (m *MongoDB) AppendMessage(ctx context.Context, key string, msg entity.Message) (bool, error) {
	conv, err := m.GetConversation(ctx, key)
	if err != nil {
		return false, err
	}
	if conv == nil {
		return false, entity.ErrNotFound
	}
	if conv.IndexOf(msg.ID) >= 0 {
		return false, nil
	}
	position := sort.Search(len(conv.Messages), func(i int) bool {
		return conv.Messages[i].CreationTime.After(msg.CreationTime)
	})

	collection, err := m.collection(conversationsCollection)
	if err != nil {
		return false, err
	}
	filter := bson.D{{"_id", key}, {"messages.id", bson.D{{"$ne", msg.ID}}}}
	update := bson.D{
		{"$push", bson.D{{"messages", bson.D{
			{"$each", bson.A{msg}},
			{"$position", position},
		}}}},
		{"$max", bson.D{{"last_message_time", msg.CreationTime}}},
		{"$set", bson.D{{"updated_at", time.Now().UTC()}}},
	}
	res, err := collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("mongodb push error: %w", err)
	}
	return res.ModifiedCount > 0, nil
}

func (m *MongoDB) ReplaceMessage(ctx context.Context, key string, msg entity.Message) error {
	collection, err := m.collection(conversationsCollection)
	if err != nil {
		return err
	}
	filter := bson.D{{"_id", key}, {"messages.id", msg.ID}}
	update := bson.D{{"$set", bson.D{
		{"messages.$", msg},
		{"updated_at", time.Now().UTC()},
	}}}
	res, err := collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("mongodb update error: %w", err)
	}
	if res.MatchedCount == 0 {
		return entity.ErrNotFound
	}
	return nil
}

func (m *MongoDB) RemoveMessage(ctx context.Context, key, messageID string) (bool, error) {
	collection, err := m.collection(conversationsCollection)
	if err != nil {
		return false, err
	}
	update := bson.D{
		{"$pull", bson.D{{"messages", bson.D{{"id", messageID}}}}},
		{"$set", bson.D{{"updated_at", time.Now().UTC()}}},
	}
	res, err := collection.UpdateOne(ctx, bson.D{{"_id", key}, {"messages.id", messageID}}, update)
	if err != nil {
		return false, fmt.Errorf("mongodb pull error: %w", err)
	}
	return res.ModifiedCount > 0, nil
}

// RecomputeUnread derives unread_count and last_message_time from the
// message array inside the update itself.
func (m *MongoDB) RecomputeUnread(ctx context.Context, key string) (int, error) {
	collection, err := m.collection(conversationsCollection)
	if err != nil {
		return 0, err
	}
	unread := bson.D{{"$size", bson.D{{"$filter", bson.D{
		{"input", "$messages"},
		{"as", "m"},
		{"cond", bson.D{{"$and", bson.A{
			bson.D{{"$eq", bson.A{"$$m.direction", string(entity.DirectionInbound)}}},
			bson.D{{"$eq", bson.A{"$$m.read_status", string(entity.ReadStatusUnread)}}},
		}}}},
	}}}}}
	lastTime := bson.D{{"$ifNull", bson.A{
		bson.D{{"$max", "$messages.creation_time"}},
		"$last_message_time",
	}}}
	pipeline := mongo.Pipeline{
		{{"$set", bson.D{
			{"unread_count", unread},
			{"last_message_time", lastTime},
		}}},
	}

	var result struct {
		UnreadCount int `bson:"unread_count"`
	}
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.D{{"unread_count", 1}})
	err = collection.FindOneAndUpdate(ctx, bson.D{{"_id", key}}, pipeline, opts).Decode(&result)
	if err == mongo.ErrNoDocuments {
		return 0, entity.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("mongodb recompute error: %w", err)
	}
	return result.UnreadCount, nil
}

func (m *MongoDB) MarkConversationRead(ctx context.Context, key string) ([]string, error) {
	conv, err := m.GetConversation(ctx, key)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, entity.ErrNotFound
	}
	var ids []string
	for _, msg := range conv.Messages {
		if msg.IsUnread() {
			ids = append(ids, msg.ID)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	collection, err := m.collection(conversationsCollection)
	if err != nil {
		return nil, err
	}
	update := bson.D{{"$set", bson.D{
		{"messages.$[m].read_status", string(entity.ReadStatusRead)},
		{"updated_at", time.Now().UTC()},
	}}}
	opts := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{bson.D{
			{"m.direction", string(entity.DirectionInbound)},
			{"m.read_status", string(entity.ReadStatusUnread)},
		}},
	})
	if _, err = collection.UpdateOne(ctx, bson.D{{"_id", key}}, update, opts); err != nil {
		return nil, fmt.Errorf("mongodb update error: %w", err)
	}
	return ids, nil
}
