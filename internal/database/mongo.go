package repository

import (
	"TextDesk/internal/config"
	"TextDesk/internal/lib/sl"
	"context"
	"errors"
	"fmt"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"log/slog"
	"sync"
	"time"
)

const (
	conversationsCollection = "conversations"
	ownersCollection        = "message_owners"
)

type MongoDB struct {
	ctx           context.Context
	clientOptions *options.ClientOptions
	database      string
	publicURL     string
	mu            sync.Mutex
	client        *mongo.Client
	log           *slog.Logger
}

func NewMongoClient(conf *config.Config, logger *slog.Logger) (*MongoDB, error) {
	if !conf.Mongo.Enabled {
		return nil, nil
	}
	connectionUri := fmt.Sprintf("mongodb://%s:%s", conf.Mongo.Host, conf.Mongo.Port)
	clientOptions := options.Client().ApplyURI(connectionUri)
	if conf.Mongo.User != "" {
		clientOptions.SetAuth(options.Credential{
			Username:   conf.Mongo.User,
			Password:   conf.Mongo.Password,
			AuthSource: conf.Mongo.Database,
		})
	}
	client := &MongoDB{
		ctx:           context.Background(),
		clientOptions: clientOptions,
		database:      conf.Mongo.Database,
		publicURL:     conf.Storage.PublicBaseURL,
		log:           logger.With(sl.Module("mongodb")),
	}
	return client, nil
}

// connect returns the shared client, dialing on first use.
func (m *MongoDB) connect() (*mongo.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client != nil {
		return m.client, nil
	}
	connection, err := mongo.Connect(m.ctx, m.clientOptions)
	if err != nil {
		return nil, fmt.Errorf("mongodb connect error: %w", err)
	}
	m.client = connection
	return connection, nil
}

func (m *MongoDB) collection(name string) (*mongo.Collection, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	return connection.Database(m.database).Collection(name), nil
}

func (m *MongoDB) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client != nil {
		_ = m.client.Disconnect(m.ctx)
		m.client = nil
	}
}

func (m *MongoDB) findError(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil
	}
	return fmt.Errorf("mongodb find error: %w", err)
}

// EnsureIndexes creates the lookup indexes the repository relies on.
func (m *MongoDB) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	conversations, err := m.collection(conversationsCollection)
	if err != nil {
		return err
	}
	_, err = conversations.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{"provider_conversation_id", 1}},
			Options: options.Index().SetSparse(true),
		},
		{
			Keys: bson.D{{"last_message_time", -1}},
		},
		{
			Keys: bson.D{{"messages.id", 1}},
		},
	})
	if err != nil {
		return fmt.Errorf("conversation indexes: %w", err)
	}

	owners, err := m.collection(ownersCollection)
	if err != nil {
		return err
	}
	_, err = owners.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{"conversation_key", 1}},
	})
	if err != nil {
		return fmt.Errorf("owner indexes: %w", err)
	}
	m.log.Debug("indexes ensured")
	return nil
}
