// Package storagetest has in-memory stores that follow the rules of the
// storage package, for tests of the packages that depend on it.
package storagetest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"ewintr.nl/capsum/model"
	"ewintr.nl/capsum/storage"
	"github.com/google/uuid"
)

// VideoRepository follows the same rules as the postgres repository.
type VideoRepository struct {
	mu     sync.Mutex
	videos map[uuid.UUID]model.Video
}

func NewVideoRepository() *VideoRepository {
	return &VideoRepository{
		videos: map[uuid.UUID]model.Video{},
	}
}

func (m *VideoRepository) Create(_ context.Context, video *model.Video) error {
	if video.State != model.StatePending {
		return fmt.Errorf("new video must be %s, not %s", model.StatePending, video.State)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.videos[video.ID] = *video
	return nil
}

func (m *VideoRepository) FindByID(_ context.Context, id uuid.UUID) (*model.Video, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	video, ok := m.videos[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &video, nil
}

func (m *VideoRepository) FindByIDForUser(ctx context.Context, id uuid.UUID, userID string) (*model.Video, error) {
	video, err := m.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if video.UserID != userID {
		return nil, storage.ErrNotFound
	}
	return video, nil
}

func (m *VideoRepository) FindByUser(_ context.Context, userID string) ([]*model.Video, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	videos := []*model.Video{}
	for _, v := range m.videos {
		if v.UserID != userID || v.State == model.StateFailed {
			continue
		}
		video := v
		videos = append(videos, &video)
	}
	sort.Slice(videos, func(i, j int) bool {
		return videos[i].CreatedAt.After(videos[j].CreatedAt)
	})

	return videos, nil
}

func (m *VideoRepository) FindIDsByState(_ context.Context, states ...model.State) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	videos := []model.Video{}
	for _, v := range m.videos {
		for _, s := range states {
			if v.State == s {
				videos = append(videos, v)
				break
			}
		}
	}
	sort.Slice(videos, func(i, j int) bool {
		return videos[i].CreatedAt.Before(videos[j].CreatedAt)
	})
	ids := make([]uuid.UUID, len(videos))
	for i, v := range videos {
		ids[i] = v.ID
	}

	return ids, nil
}

func (m *VideoRepository) Save(_ context.Context, video *model.Video, from model.State) error {
	if video.State != from && !model.CanTransition(from, video.State) {
		return &model.TransitionError{From: from, To: video.State}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.videos[video.ID]
	if !ok {
		return storage.ErrNotFound
	}
	if stored.State != from {
		return storage.ErrStateConflict
	}
	video.UpdatedAt = time.Now().UTC()
	m.videos[video.ID] = *video

	return nil
}

func (m *VideoRepository) Delete(_ context.Context, id uuid.UUID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	video, ok := m.videos[id]
	if !ok || video.UserID != userID {
		return storage.ErrNotFound
	}
	delete(m.videos, id)

	return nil
}

type AudioStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func NewAudioStore() *AudioStore {
	return &AudioStore{
		objects: map[string][]byte{},
	}
}

func (m *AudioStore) Put(_ context.Context, key string, r io.Reader, _ int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data

	return nil
}

func (m *AudioStore) Get(_ context.Context, key string) (io.ReadCloser, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.objects[key]
	if !ok {
		return nil, 0, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), int64(len(data)), nil
}

func (m *AudioStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.objects, key)
	return nil
}
