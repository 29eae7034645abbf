package repository

import (
	"TextDesk/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io"
	"log/slog"
	"testing"
)

func testConfig() *config.Config {
	conf := &config.Config{}
	conf.Mongo.Host = "127.0.0.1"
	conf.Mongo.Port = "27017"
	conf.Mongo.Database = "textdesk"
	conf.Storage.PublicBaseURL = "https://desk.example.com/"
	return conf
}

func TestNewMongoClientDisabled(t *testing.T) {
	client, err := NewMongoClient(testConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestFileURL(t *testing.T) {
	conf := testConfig()
	conf.Mongo.Enabled = true
	client, err := NewMongoClient(conf, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	require.NotNil(t, client)

	assert.Equal(t, "https://desk.example.com/files/attachments/m1/a%201.jpg", client.fileURL("attachments/m1/a 1.jpg"))
}
