package repository

import (
	"context"
	"fmt"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"time"
)

type messageOwner struct {
	MessageID       string    `bson:"_id"`
	ConversationKey string    `bson:"conversation_key"`
	UpdatedAt       time.Time `bson:"updated_at"`
}

// ClaimMessage inserts the ownership record unless one exists. The unique
// _id makes the first writer win; later callers get the recorded owner.
func (m *MongoDB) ClaimMessage(ctx context.Context, messageID, key string) (string, bool, error) {
	collection, err := m.collection(ownersCollection)
	if err != nil {
		return "", false, err
	}
	_, err = collection.InsertOne(ctx, messageOwner{
		MessageID:       messageID,
		ConversationKey: key,
		UpdatedAt:       time.Now().UTC(),
	})
	if err == nil {
		return key, true, nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return "", false, fmt.Errorf("mongodb insert error: %w", err)
	}
	owner, err := m.MessageOwner(ctx, messageID)
	if err != nil {
		return "", false, err
	}
	return owner, false, nil
}

func (m *MongoDB) SetMessageOwner(ctx context.Context, messageID, key string) error {
	collection, err := m.collection(ownersCollection)
	if err != nil {
		return err
	}
	update := bson.D{{"$set", bson.D{
		{"conversation_key", key},
		{"updated_at", time.Now().UTC()},
	}}}
	_, err = collection.UpdateOne(ctx, bson.D{{"_id", messageID}}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongodb upsert error: %w", err)
	}
	return nil
}

func (m *MongoDB) MessageOwner(ctx context.Context, messageID string) (string, error) {
	collection, err := m.collection(ownersCollection)
	if err != nil {
		return "", err
	}
	var owner messageOwner
	err = collection.FindOne(ctx, bson.D{{"_id", messageID}}).Decode(&owner)
	if err != nil {
		return "", m.findError(err)
	}
	return owner.ConversationKey, nil
}
