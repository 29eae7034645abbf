package bootstrap

import (
	"TextDesk/internal/config"
	"context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io"
	"log/slog"
	"testing"
	"time"
)

func memoryConfig() *config.Config {
	conf := &config.Config{}
	conf.Storage.Backend = "memory"
	conf.Storage.PublicBaseURL = "http://127.0.0.1:9100/"
	conf.Provider.OwnNumber = "+15550001111"
	conf.Provider.BaseURL = "http://127.0.0.1:1"
	conf.Provider.TokenURL = "http://127.0.0.1:1/token"
	return conf
}

func TestBuild_InMemory(t *testing.T) {
	lg := slog.New(slog.NewTextHandler(io.Discard, nil))
	app, err := Build(context.Background(), memoryConfig(), lg)
	require.NoError(t, err)
	defer app.Close()

	assert.NotNil(t, app.Core)
	assert.NotNil(t, app.Hub)
	assert.NotNil(t, app.Files, "memory storage serves its own files")
	assert.Equal(t, "+15550001111", app.Provider.OwnNumber())

	summaries, err := app.Core.ListConversations(context.Background())
	require.NoError(t, err)
	assert.Empty(t, summaries)
}

func TestBuild_GridFSWithoutMongo(t *testing.T) {
	conf := memoryConfig()
	conf.Storage.Backend = "gridfs"
	_, err := Build(context.Background(), conf, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}

func TestOpenMongo_ClosesOnIndexFailure(t *testing.T) {
	conf := memoryConfig()
	conf.Mongo.Enabled = true
	conf.Mongo.Host = "127.0.0.1"
	conf.Mongo.Port = "1"
	conf.Mongo.Database = "textdesk"
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	app := &App{}
	db, err := app.openMongo(ctx, conf, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
	assert.Nil(t, db)
	assert.Len(t, app.closers, 1)

	app.Close()
	assert.Empty(t, app.closers)
}

func TestBuild_UnreachableMongo(t *testing.T) {
	conf := memoryConfig()
	conf.Mongo.Enabled = true
	conf.Mongo.Host = "127.0.0.1"
	conf.Mongo.Port = "1"
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	app, err := Build(ctx, conf, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
	assert.Nil(t, app)
}
