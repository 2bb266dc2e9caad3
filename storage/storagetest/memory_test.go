package storagetest

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"ewintr.nl/capsum/model"
	"ewintr.nl/capsum/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVideoRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("save follows state machine", func(t *testing.T) {
		repo := NewVideoRepository()
		video := model.NewVideo("user", "https://youtu.be/dQw4w9WgXcQ")
		require.NoError(t, repo.Create(ctx, video))

		video.State = model.StateSynthesizing
		err := repo.Save(ctx, video, model.StatePending)
		assert.True(t, errors.Is(err, model.ErrInvalidTransition))

		video.State = model.StateActive
		require.NoError(t, repo.Save(ctx, video, model.StatePending))

		video.State = model.StateFailed
		assert.True(t, errors.Is(repo.Save(ctx, video, model.StatePending), storage.ErrStateConflict))
	})

	t.Run("list leaves out failed and other users", func(t *testing.T) {
		repo := NewVideoRepository()
		older := model.NewVideo("user", "a")
		older.CreatedAt = time.Now().Add(-time.Hour)
		newer := model.NewVideo("user", "b")
		failed := model.NewVideo("user", "c")
		other := model.NewVideo("other", "d")
		for _, v := range []*model.Video{older, newer, failed, other} {
			require.NoError(t, repo.Create(ctx, v))
		}
		require.NoError(t, failed.Fail("no captions"))
		require.NoError(t, repo.Save(ctx, failed, model.StatePending))

		act, err := repo.FindByUser(ctx, "user")
		require.NoError(t, err)
		require.Len(t, act, 2)
		assert.Equal(t, newer.ID, act[0].ID)
		assert.Equal(t, older.ID, act[1].ID)

		_, err = repo.FindByIDForUser(ctx, other.ID, "user")
		assert.True(t, errors.Is(err, storage.ErrNotFound))
		assert.True(t, errors.Is(repo.Delete(ctx, other.ID, "user"), storage.ErrNotFound))
		assert.NoError(t, repo.Delete(ctx, other.ID, "other"))
	})
}

func TestAudioStore(t *testing.T) {
	ctx := context.Background()
	store := NewAudioStore()
	key := storage.AudioKey(uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8"))
	assert.Equal(t, "6ba7b810-9dad-11d1-80b4-00c04fd430c8.mp3", key)

	_, _, err := store.Get(ctx, key)
	assert.True(t, errors.Is(err, storage.ErrNotFound))

	require.NoError(t, store.Put(ctx, key, strings.NewReader("mp3"), 3))
	r, size, err := store.Get(ctx, key)
	require.NoError(t, err)
	body, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, int64(3), size)
	assert.Equal(t, "mp3", string(body))
}
