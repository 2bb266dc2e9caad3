package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ewintr.nl/capsum/model"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const videoColumns = `id, user_id, youtube_url, title, channel, channel_url, duration, published_at, description,
content, current_state, failed_reason, synthesized_at, created_at, updated_at`

type PostgresVideoRepository struct {
	*Postgres
}

func NewPostgresVideoRepository(postgres *Postgres) *PostgresVideoRepository {
	return &PostgresVideoRepository{postgres}
}

func (p *PostgresVideoRepository) Create(ctx context.Context, video *model.Video) error {
	if video.State != model.StatePending {
		return fmt.Errorf("new video must be %s, not %s", model.StatePending, video.State)
	}
	query := `INSERT INTO videos (id, user_id, youtube_url, content, current_state, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := p.db.ExecContext(ctx, query,
		video.ID, video.UserID, video.YoutubeURL, video.Content, video.State, video.CreatedAt, video.UpdatedAt)

	return err
}

func (p *PostgresVideoRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos WHERE id = $1`
	return p.findOne(ctx, query, id)
}

func (p *PostgresVideoRepository) FindByIDForUser(ctx context.Context, id uuid.UUID, userID string) (*model.Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos WHERE id = $1 AND user_id = $2`
	return p.findOne(ctx, query, id, userID)
}

// FindByUser lists the videos of a user, leaving out the failed ones.
func (p *PostgresVideoRepository) FindByUser(ctx context.Context, userID string) ([]*model.Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos
WHERE user_id = $1 AND current_state != $2
ORDER BY created_at DESC`
	rows, err := p.db.QueryContext(ctx, query, userID, model.StateFailed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	videos := []*model.Video{}
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		videos = append(videos, video)
	}

	return videos, rows.Err()
}

func (p *PostgresVideoRepository) FindIDsByState(ctx context.Context, states ...model.State) ([]uuid.UUID, error) {
	strStates := make([]string, len(states))
	for i, s := range states {
		strStates[i] = string(s)
	}
	query := `SELECT id FROM videos WHERE current_state::text = ANY($1) ORDER BY created_at`
	rows, err := p.db.QueryContext(ctx, query, pq.Array(strStates))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func (p *PostgresVideoRepository) Save(ctx context.Context, video *model.Video, from model.State) error {
	if video.State != from && !model.CanTransition(from, video.State) {
		return &model.TransitionError{From: from, To: video.State}
	}

	video.UpdatedAt = time.Now().UTC()
	query := `UPDATE videos SET
title = $3, channel = $4, channel_url = $5, duration = $6, published_at = $7, description = $8,
content = $9, current_state = $10, failed_reason = $11, synthesized_at = $12, updated_at = $13
WHERE id = $1 AND current_state = $2`
	res, err := p.db.ExecContext(ctx, query,
		video.ID, from,
		video.Title, video.Channel, video.ChannelURL, video.Duration, video.PublishedAt, video.Description,
		video.Content, video.State, video.FailedReason, video.SynthesizedAt, video.UpdatedAt)
	if err != nil {
		return err
	}

	return p.checkAffected(ctx, res, video.ID)
}

func (p *PostgresVideoRepository) Delete(ctx context.Context, id uuid.UUID, userID string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM videos WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}

	return nil
}

func (p *PostgresVideoRepository) checkAffected(ctx context.Context, res sql.Result, id uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	var exists bool
	if err := p.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM videos WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}

	return ErrStateConflict
}

func (p *PostgresVideoRepository) findOne(ctx context.Context, query string, args ...any) (*model.Video, error) {
	video, err := scanVideo(p.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}

	return video, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanVideo(row scanner) (*model.Video, error) {
	video := &model.Video{}
	var state string
	if err := row.Scan(
		&video.ID, &video.UserID, &video.YoutubeURL,
		&video.Title, &video.Channel, &video.ChannelURL, &video.Duration, &video.PublishedAt, &video.Description,
		&video.Content, &state, &video.FailedReason, &video.SynthesizedAt, &video.CreatedAt, &video.UpdatedAt,
	); err != nil {
		return nil, err
	}
	video.State = model.State(state)

	return video, nil
}
