package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	var store ObjectStore = NewMemory("evidence")
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "closeouts/1/a.jpg", "image/jpeg", strings.NewReader("jpeg")))
	mem := store.(*Memory)
	assert.True(t, mem.Has("closeouts/1/a.jpg"))
	assert.Equal(t, "evidence", store.Bucket())

	require.NoError(t, store.Delete(ctx, "closeouts/1/a.jpg"))
	assert.ErrorIs(t, store.Delete(ctx, "closeouts/1/a.jpg"), ErrObjectNotExist)
	assert.Equal(t, 0, mem.Len())
	assert.Equal(t, 1, mem.Deletes())
}

func TestNewGCSRequiresBucket(t *testing.T) {
	_, err := NewGCS(context.Background(), " ", "")
	assert.Error(t, err)
}
