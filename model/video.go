package model

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

type Video struct {
	ID            uuid.UUID
	UserID        string
	YoutubeURL    string
	Title         sql.NullString
	Channel       sql.NullString
	ChannelURL    sql.NullString
	Duration      sql.NullString
	PublishedAt   sql.NullString
	Description   sql.NullString
	Content       string
	State         State
	FailedReason  sql.NullString
	SynthesizedAt sql.NullTime
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func NewVideo(userID, youtubeURL string) *Video {
	now := time.Now().UTC()
	return &Video{
		ID:         uuid.New(),
		UserID:     userID,
		YoutubeURL: youtubeURL,
		State:      StatePending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Transition moves the video to the next state, refusing anything the state
// machine does not allow.
func (v *Video) Transition(to State) error {
	if !CanTransition(v.State, to) {
		return &TransitionError{From: v.State, To: to}
	}
	v.State = to
	if to != StateFailed {
		v.FailedReason = sql.NullString{}
	}

	return nil
}

// Fail moves the video to the failed state and records why.
func (v *Video) Fail(reason string) error {
	if err := v.Transition(StateFailed); err != nil {
		return err
	}
	v.FailedReason = sql.NullString{String: reason, Valid: true}

	return nil
}

func (v *Video) HasAudio() bool {
	return v.SynthesizedAt.Valid
}
