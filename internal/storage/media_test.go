package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalMediaStore_PutFetch(t *testing.T) {
	store, err := NewLocalMediaStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "uploads/leak.jpg", strings.NewReader("jpeg bytes")))

	data, err := store.Fetch(ctx, "uploads/leak.jpg")
	require.NoError(t, err)
	assert.Equal(t, "jpeg bytes", string(data))

	_, err = store.Fetch(ctx, "uploads/missing.jpg")
	assert.Error(t, err)
}

func TestLocalMediaStore_RejectsEscapingRefs(t *testing.T) {
	store, err := NewLocalMediaStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Fetch(ctx, "../../etc/passwd")
	assert.Error(t, err)

	_, err = store.Fetch(ctx, "/etc/passwd")
	assert.Error(t, err)
}

func TestLocalMediaStore_HonorsCancelledContext(t *testing.T) {
	store, err := NewLocalMediaStore(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = store.Fetch(ctx, "uploads/leak.jpg")
	assert.ErrorIs(t, err, context.Canceled)
}
