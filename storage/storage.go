package storage

import (
	"context"
	"errors"
	"io"

	"ewintr.nl/capsum/model"
	"github.com/google/uuid"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrStateConflict = errors.New("video state changed concurrently")
)

type VideoRepository interface {
	Create(ctx context.Context, video *model.Video) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Video, error)
	FindByIDForUser(ctx context.Context, id uuid.UUID, userID string) (*model.Video, error)
	FindByUser(ctx context.Context, userID string) ([]*model.Video, error)
	FindIDsByState(ctx context.Context, states ...model.State) ([]uuid.UUID, error)
	// Save writes the video, provided its stored state still equals from.
	Save(ctx context.Context, video *model.Video, from model.State) error
	Delete(ctx context.Context, id uuid.UUID, userID string) error
}

type AudioStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64) error
	Get(ctx context.Context, key string) (io.ReadCloser, int64, error)
	Delete(ctx context.Context, key string) error
}

type SearchResult struct {
	ID       uuid.UUID `json:"id"`
	Title    string    `json:"title"`
	Distance float64   `json:"distance"`
}

type VideoVecRepository interface {
	Save(ctx context.Context, video *model.Video) error
	Delete(ctx context.Context, id uuid.UUID) error
	Search(ctx context.Context, userID, query string, limit int) ([]SearchResult, error)
}

func AudioKey(id uuid.UUID) string {
	return id.String() + ".mp3"
}
