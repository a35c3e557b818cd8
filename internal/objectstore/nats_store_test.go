// Package objectstore_test tests the NATS object store implementation.
package objectstore_test

import (
	"context"
	"testing"

	"github.com/book-expert/plomtts-service/internal/objectstore"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// StartTestServer starts an in-memory NATS server for testing purposes.
func StartTestServer(t *testing.T) (*server.Server, *nats.Conn) {
	t.Helper()

	opts := test.DefaultTestOptions
	opts.Port = -1 // Use a random port
	opts.JetStream = true
	opts.StoreDir = t.TempDir()
	natsServer := test.RunServer(&opts)

	natsConnection, err := nats.Connect(natsServer.ClientURL())
	if err != nil {
		t.Fatalf("Failed to connect to test NATS server: %v", err)
	}

	return natsServer, natsConnection
}

func TestNatsObjectStore_UploadDownload(t *testing.T) {
	t.Parallel()

	natsServer, natsConnection := StartTestServer(t)
	defer natsServer.Shutdown()
	defer natsConnection.Close()

	jetstreamContext, err := natsConnection.JetStream()
	require.NoError(t, err)

	store, err := objectstore.New(jetstreamContext, "test-audio")
	require.NoError(t, err)

	ctx := context.Background()
	clip := []byte{0x49, 0x44, 0x33, 0x04, 0x00}

	err = store.Upload(ctx, "clip.mp3", "audio/mpeg", clip)
	require.NoError(t, err)

	downloaded, err := store.Download(ctx, "clip.mp3")
	require.NoError(t, err)
	assert.Equal(t, clip, downloaded)

	contentType, err := store.ContentType(ctx, "clip.mp3")
	require.NoError(t, err)
	assert.Equal(t, "audio/mpeg", contentType)
}

func TestNatsObjectStore_BindsExistingBucket(t *testing.T) {
	t.Parallel()

	natsServer, natsConnection := StartTestServer(t)
	defer natsServer.Shutdown()
	defer natsConnection.Close()

	jetstreamContext, err := natsConnection.JetStream()
	require.NoError(t, err)

	first, err := objectstore.New(jetstreamContext, "shared-audio")
	require.NoError(t, err)
	require.NoError(t, first.Upload(context.Background(), "a.mp3", "", []byte("a")))

	second, err := objectstore.New(jetstreamContext, "shared-audio")
	require.NoError(t, err)

	data, err := second.Download(context.Background(), "a.mp3")
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), data)
}

func TestNatsObjectStore_DownloadMissing(t *testing.T) {
	t.Parallel()

	natsServer, natsConnection := StartTestServer(t)
	defer natsServer.Shutdown()
	defer natsConnection.Close()

	jetstreamContext, err := natsConnection.JetStream()
	require.NoError(t, err)

	store, err := objectstore.New(jetstreamContext, "empty-audio")
	require.NoError(t, err)

	_, err = store.Download(context.Background(), "missing.mp3")
	require.ErrorIs(t, err, nats.ErrObjectNotFound)
}
