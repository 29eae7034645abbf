// Package bootstrap assembles the service core from configuration. The API
// server and the ops CLI share it.
package bootstrap

import (
	"TextDesk/bot"
	"TextDesk/impl/core"
	"TextDesk/internal/config"
	repository "TextDesk/internal/database"
	"TextDesk/internal/lib/keylock"
	"TextDesk/internal/lib/logger"
	"TextDesk/internal/lib/sl"
	"TextDesk/internal/memstore"
	"TextDesk/internal/service/relay"
	smsgateway "TextDesk/internal/service/sms-gateway"
	"TextDesk/internal/storage"
	"TextDesk/internal/ws"
	"context"
	"fmt"
	"log/slog"
	"strings"
)

type App struct {
	Core     *core.Core
	Hub      *ws.Hub
	Files    storage.FileServer
	Provider *smsgateway.Client
	closers  []func()
}

// Logger builds the service logger and, when enabled, attaches the Telegram
// alert handler.
func Logger(conf *config.Config, logPath string) *slog.Logger {
	lg := logger.SetupLogger(conf.Env, logPath)
	if !conf.Telegram.Enabled {
		return lg
	}
	tgBot, err := bot.NewTgBot(conf.Telegram.BotName, conf.Telegram.ApiKey, conf.Telegram.AdminId, lg)
	if err != nil {
		lg.Error("failed to initialize telegram bot", sl.Err(err))
		return lg
	}
	lg = logger.SetupTelegramHandler(lg, tgBot, slog.LevelError)
	lg.With(slog.String("bot_name", conf.Telegram.BotName)).Info("telegram alerts enabled")
	return lg
}

// Build wires the repository, blob store, provider client, relay, locker and
// websocket hub into a Core.
func Build(ctx context.Context, conf *config.Config, lg *slog.Logger) (*App, error) {
	app := &App{}
	handler := core.New(lg)
	handler.SetOwnNumber(conf.Provider.OwnNumber)
	handler.SetAuthKey(conf.Listen.ApiKey)
	handler.SetAdmin(conf.Admin.Username, conf.Admin.Password, conf.Admin.SessionSecret, conf.Admin.SessionTTL)
	handler.SetJobTimeout(conf.Jobs.Timeout)
	handler.SetMaxAttachmentBytes(conf.Relay.MaxBytes)

	db, err := app.openMongo(ctx, conf, lg)
	if err != nil {
		app.Close()
		return nil, err
	}
	if db != nil {
		handler.SetRepository(db)
	} else {
		handler.SetRepository(memstore.New())
		lg.Warn("mongo disabled, conversations are kept in memory")
	}

	blobs, err := blobStore(ctx, conf, db, lg)
	if err != nil {
		app.Close()
		return nil, err
	}
	if fs, ok := blobs.(storage.FileServer); ok {
		app.Files = fs
	}

	if conf.Redis.Enabled {
		locker, err := keylock.NewRedis(conf.Redis.URL, conf.Redis.LockTTL, lg)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("redis locker: %w", err)
		}
		app.closers = append(app.closers, func() { _ = locker.Close() })
		handler.SetLocker(locker)
		lg.Info("redis conversation locks enabled")
	}

	provider := smsgateway.New(smsgateway.Config{
		BaseURL:      conf.Provider.BaseURL,
		TokenURL:     conf.Provider.TokenURL,
		ClientID:     conf.Provider.ClientID,
		ClientSecret: conf.Provider.ClientSecret,
		OwnNumber:    conf.Provider.OwnNumber,
		PageSize:     conf.Provider.PageSize,
		Timeout:      conf.Provider.Timeout,
	}, lg)
	app.Provider = provider
	handler.SetProvider(provider)
	lg.With(
		slog.String("url", conf.Provider.BaseURL),
		sl.Secret("client_id", conf.Provider.ClientID),
	).Info("provider client initialized")

	handler.SetRelay(relay.New(blobs, provider, conf.Relay.Timeout, conf.Relay.MaxBytes, lg))

	app.Hub = ws.NewHub(lg)
	app.Hub.SetHandler(handler)
	handler.SetMessagesHub(app.Hub)

	app.Core = handler
	return app, nil
}

func blobStore(ctx context.Context, conf *config.Config, db *repository.MongoDB, lg *slog.Logger) (storage.BlobStore, error) {
	backend := conf.Storage.Backend
	log := lg.With(slog.String("backend", backend))
	switch backend {
	case "gridfs":
		if db == nil {
			return nil, fmt.Errorf("storage backend gridfs requires mongo")
		}
		log.Info("blob storage initialized")
		return db, nil
	case "s3":
		s, err := storage.NewS3(ctx, storage.S3Config{
			Bucket:       conf.Storage.S3.Bucket,
			Region:       conf.Storage.S3.Region,
			Endpoint:     conf.Storage.S3.Endpoint,
			AccessKeyID:  conf.Storage.S3.AccessKeyID,
			SecretKey:    conf.Storage.S3.SecretKey,
			UsePathStyle: conf.Storage.S3.UsePathStyle,
			PublicURL:    conf.Storage.S3.PublicURL,
		}, lg)
		if err != nil {
			return nil, fmt.Errorf("s3 storage: %w", err)
		}
		log.With(slog.String("bucket", conf.Storage.S3.Bucket)).Info("blob storage initialized")
		return s, nil
	case "gcs":
		g, err := storage.NewGCS(ctx, conf.Storage.GCS.Bucket, conf.Storage.GCS.CredentialsFile, lg)
		if err != nil {
			return nil, fmt.Errorf("gcs storage: %w", err)
		}
		log.With(slog.String("bucket", conf.Storage.GCS.Bucket)).Info("blob storage initialized")
		return g, nil
	case "memory":
		log.Warn("blob storage is in memory")
		return storage.NewMemory(strings.TrimRight(conf.Storage.PublicBaseURL, "/") + "/files"), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}

// Close releases connections in reverse order of creation.
// openMongo returns nil when mongo is disabled. The client is registered for
// Close before the first round trip.
func (a *App) openMongo(ctx context.Context, conf *config.Config, lg *slog.Logger) (*repository.MongoDB, error) {
	db, err := repository.NewMongoClient(conf, lg)
	if err != nil {
		return nil, fmt.Errorf("mongo client: %w", err)
	}
	if db == nil {
		return nil, nil
	}
	a.closers = append(a.closers, db.Close)
	if err = db.EnsureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("mongo indexes: %w", err)
	}
	lg.With(
		slog.String("host", conf.Mongo.Host),
		slog.String("port", conf.Mongo.Port),
		slog.String("user", conf.Mongo.User),
		slog.String("database", conf.Mongo.Database),
	).Info("mongo client initialized")
	return db, nil
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
