package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tgmirror/internal/mirror"
)

func TestStoreUpsertReplacesTextAndAttachments(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()

	att, err := store.Create(ctx, mirror.Attachment{SourceURL: "u1", StorageKey: "k1.jpg"})
	require.NoError(t, err)

	first, err := store.Upsert(ctx, mirror.ChannelPost{SourceID: 101, Text: "old"}, []mirror.Attachment{att})
	require.NoError(t, err)
	require.Len(t, first.Attachments, 1)

	second, err := store.Upsert(ctx, mirror.ChannelPost{SourceID: 101, Text: "new"}, nil)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "same source id keeps the same row")
	assert.Equal(t, "new", second.Text)
	assert.Empty(t, second.Attachments)

	msgs := store.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "new", msgs[0].Text)
}

func TestStoreSearch(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()
	_, err := store.Upsert(ctx, mirror.ChannelPost{SourceID: 103, Text: "Weekly Market Recap"}, nil)
	require.NoError(t, err)
	_, err = store.Upsert(ctx, mirror.ChannelPost{SourceID: 101, Text: "market open"}, nil)
	require.NoError(t, err)
	_, err = store.Upsert(ctx, mirror.ChannelPost{SourceID: 102, Text: "unrelated"}, nil)
	require.NoError(t, err)

	found, err := store.Search(ctx, "MARKET")
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.EqualValues(t, 101, found[0].SourceID, "ordered by source id")
	assert.EqualValues(t, 103, found[1].SourceID)
}

func TestStoreAttachmentDedup(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()

	created, err := store.Create(ctx, mirror.Attachment{SourceURL: "u1", StorageKey: "k1.jpg"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, created.ID)

	_, err = store.Create(ctx, mirror.Attachment{SourceURL: "u1", StorageKey: "other.jpg"})
	assert.ErrorIs(t, err, mirror.ErrUnexpectedConflict)

	found, ok, err := store.FindBySourceURL(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "k1.jpg", found.StorageKey)
	assert.Equal(t, 1, store.AttachmentCount())
}

func TestStoreVariables(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "last_parsed_msg_id")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "last_parsed_msg_id", "42"))
	require.NoError(t, store.Set(ctx, "last_parsed_msg_id", "104"))

	value, ok, err := store.Get(ctx, "last_parsed_msg_id")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "104", value)
}
