package history

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dmitrijs2005/photodrop/internal/kvstore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppend_AssignsIDAndTimestamp(t *testing.T) {
	l := NewLedger(kvstore.NewMemoryStore(kvstore.AreaLocal))
	at := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return at }

	rec, err := l.Append(context.Background(), Entry{Filename: "cat.jpg", RemoteItemID: "item-1", AlbumID: "a1"})
	require.NoError(t, err)

	_, err = uuid.Parse(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, at.UnixMilli(), rec.Timestamp)
	assert.Equal(t, "cat.jpg", rec.Filename)
	assert.Equal(t, "a1", rec.AlbumID)
}

func TestAppend_BoundedNewestFirst(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(kvstore.NewMemoryStore(kvstore.AreaLocal))

	var appended []Record
	for i := 0; i < MaxRecords+1; i++ {
		rec, err := l.Append(ctx, Entry{Filename: fmt.Sprintf("f%02d.jpg", i)})
		require.NoError(t, err)
		appended = append(appended, rec)
	}

	list, err := l.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, MaxRecords)

	for i, r := range list {
		assert.Equal(t, appended[MaxRecords-i].ID, r.ID)
	}
	for _, r := range list {
		assert.NotEqual(t, appended[0].ID, r.ID, "oldest record must be dropped")
	}
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(kvstore.NewMemoryStore(kvstore.AreaLocal))

	a, err := l.Append(ctx, Entry{Filename: "a"})
	require.NoError(t, err)
	b, err := l.Append(ctx, Entry{Filename: "b"})
	require.NoError(t, err)

	found, err := l.Remove(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	found, err = l.Remove(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, found)

	list, err := l.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, b, list[0])
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(kvstore.NewMemoryStore(kvstore.AreaLocal))

	_, err := l.Append(ctx, Entry{Filename: "a"})
	require.NoError(t, err)
	require.NoError(t, l.Clear(ctx))

	list, err := l.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

type failingStore struct {
	kvstore.Store
	err error
}

func (f failingStore) Update(context.Context, string, func([]byte) ([]byte, error)) error {
	return f.err
}

func TestAppend_StoreErrorIsWrapped(t *testing.T) {
	boom := errors.New("disk full")
	l := NewLedger(failingStore{Store: kvstore.NewMemoryStore(kvstore.AreaLocal), err: boom})

	_, err := l.Append(context.Background(), Entry{Filename: "a"})
	require.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "append history")
}

func TestList_CorruptBlob(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore(kvstore.AreaLocal)
	require.NoError(t, store.Set(ctx, kvstore.KeyUploadHistory, []byte("{")))

	_, err := NewLedger(store).List(ctx)
	require.ErrorContains(t, err, "decode history")
}
