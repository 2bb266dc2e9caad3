package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ewintr.nl/capsum/model"
	"ewintr.nl/capsum/storage"
	"github.com/google/uuid"
	"golang.org/x/exp/slog"
)

const searchLimit = 10

type Enqueuer interface {
	Enqueue(id uuid.UUID)
}

type VideoAPI struct {
	videoRepo storage.VideoRepository
	audio     storage.AudioStore
	vecRepo   storage.VideoVecRepository
	pipeline  Enqueuer
	logger    *slog.Logger
}

// NewVideoAPI accepts a nil vector repository, search then answers with 503.
func NewVideoAPI(videoRepo storage.VideoRepository, audio storage.AudioStore, vecRepo storage.VideoVecRepository, pipeline Enqueuer, logger *slog.Logger) *VideoAPI {
	return &VideoAPI{
		videoRepo: videoRepo,
		audio:     audio,
		vecRepo:   vecRepo,
		pipeline:  pipeline,
		logger:    logger,
	}
}

func (v *VideoAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user, ok := userFrom(r.Context())
	if !ok {
		http.Redirect(w, r, signInPath, http.StatusSeeOther)
		return
	}

	head, tail := ShiftPath(r.URL.Path)
	action, _ := ShiftPath(tail)

	switch {
	case r.Method == http.MethodGet && head == "":
		v.List(w, r, user)
	case r.Method == http.MethodPost && head == "":
		v.Create(w, r, user)
	case r.Method == http.MethodGet && head == "search" && action == "":
		v.Search(w, r, user)
	case head == "":
		Error(w, http.StatusNotFound, "not found", fmt.Errorf("method %s was not registered in the video api", r.Method))
	default:
		id, err := uuid.Parse(head)
		if err != nil {
			Error(w, http.StatusBadRequest, "invalid video id", err)
			return
		}
		switch {
		case r.Method == http.MethodGet && action == "":
			v.Get(w, r, user, id)
		case r.Method == http.MethodDelete && action == "",
			r.Method == http.MethodPost && action == "delete":
			v.Delete(w, r, user, id)
		case r.Method == http.MethodPost && action == "synthesize":
			v.Synthesize(w, r, user, id)
		case r.Method == http.MethodGet && action == "audio":
			v.Audio(w, r, user, id)
		default:
			Error(w, http.StatusNotFound, "not found", fmt.Errorf("method %s with subpath %q was not registered in the video api", r.Method, action))
		}
	}
}

func (v *VideoAPI) List(w http.ResponseWriter, r *http.Request, user SessionUser) {
	videos, err := v.videoRepo.FindByUser(r.Context(), user.ID)
	if err != nil {
		v.returnErr(w, http.StatusInternalServerError, "could not list videos", err)
		return
	}

	resp := make([]respVideo, 0, len(videos))
	for _, video := range videos {
		resp = append(resp, newRespVideo(video))
	}

	JSON(w, http.StatusOK, resp)
}

func (v *VideoAPI) Create(w http.ResponseWriter, r *http.Request, user SessionUser) {
	link, err := formValue(r, "youtube_url")
	if err != nil {
		Error(w, http.StatusBadRequest, "could not read request", err)
		return
	}
	if _, err := model.ParseYoutubeID(link); err != nil {
		Error(w, http.StatusBadRequest, "invalid youtube url", err, link)
		return
	}

	video := model.NewVideo(user.ID, strings.TrimSpace(link))
	if err := v.videoRepo.Create(r.Context(), video); err != nil {
		v.returnErr(w, http.StatusInternalServerError, "could not save video", err)
		return
	}
	v.pipeline.Enqueue(video.ID)
	v.logger.Info("video submitted", slog.String("id", video.ID.String()), slog.String("user", user.ID))

	w.Header().Set("Location", "/video/"+video.ID.String())
	JSON(w, http.StatusCreated, newRespVideo(video))
}

func (v *VideoAPI) Get(w http.ResponseWriter, r *http.Request, user SessionUser, id uuid.UUID) {
	video, ok := v.find(w, r, user, id)
	if !ok {
		return
	}

	JSON(w, http.StatusOK, newRespVideo(video))
}

func (v *VideoAPI) Delete(w http.ResponseWriter, r *http.Request, user SessionUser, id uuid.UUID) {
	video, ok := v.find(w, r, user, id)
	if !ok {
		return
	}
	if err := v.videoRepo.Delete(r.Context(), id, user.ID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			Error(w, http.StatusNotFound, "video not found", err)
			return
		}
		v.returnErr(w, http.StatusInternalServerError, "could not delete video", err)
		return
	}

	if video.HasAudio() {
		if err := v.audio.Delete(r.Context(), storage.AudioKey(id)); err != nil {
			v.logger.Warn("could not delete audio", slog.String("id", id.String()), slog.String("error", err.Error()))
		}
	}
	if v.vecRepo != nil {
		if err := v.vecRepo.Delete(r.Context(), id); err != nil {
			v.logger.Warn("could not delete video from vec db", slog.String("id", id.String()), slog.String("error", err.Error()))
		}
	}

	Message(w, http.StatusOK, "video deleted")
}

func (v *VideoAPI) Synthesize(w http.ResponseWriter, r *http.Request, user SessionUser, id uuid.UUID) {
	video, ok := v.find(w, r, user, id)
	if !ok {
		return
	}

	from := video.State
	if err := video.Transition(model.StateSynthesizing); err != nil {
		Error(w, http.StatusConflict, "video can not be synthesized", err)
		return
	}
	if err := v.videoRepo.Save(r.Context(), video, from); err != nil {
		if errors.Is(err, storage.ErrStateConflict) || errors.Is(err, model.ErrInvalidTransition) {
			Error(w, http.StatusConflict, "video can not be synthesized", err)
			return
		}
		if errors.Is(err, storage.ErrNotFound) {
			Error(w, http.StatusNotFound, "video not found", err)
			return
		}
		v.returnErr(w, http.StatusInternalServerError, "could not save video", err)
		return
	}
	v.pipeline.Enqueue(video.ID)

	JSON(w, http.StatusAccepted, newRespVideo(video))
}

func (v *VideoAPI) Audio(w http.ResponseWriter, r *http.Request, user SessionUser, id uuid.UUID) {
	video, ok := v.find(w, r, user, id)
	if !ok {
		return
	}
	if !video.HasAudio() {
		Error(w, http.StatusNotFound, "no audio", fmt.Errorf("video %s was not synthesized", id))
		return
	}

	audio, size, err := v.audio.Get(r.Context(), storage.AudioKey(id))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			Error(w, http.StatusNotFound, "no audio", err)
			return
		}
		v.returnErr(w, http.StatusInternalServerError, "could not fetch audio", err)
		return
	}
	defer audio.Close()

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, audio); err != nil {
		v.logger.Error("could not stream audio", slog.String("id", id.String()), slog.String("error", err.Error()))
	}
}

func (v *VideoAPI) Search(w http.ResponseWriter, r *http.Request, user SessionUser) {
	if v.vecRepo == nil {
		Error(w, http.StatusServiceUnavailable, "search is not available", errors.New("no summary index configured"))
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		Error(w, http.StatusBadRequest, "missing query", errors.New("parameter q is empty"))
		return
	}

	results, err := v.vecRepo.Search(r.Context(), user.ID, query, searchLimit)
	if err != nil {
		v.returnErr(w, http.StatusInternalServerError, "could not search videos", err)
		return
	}

	JSON(w, http.StatusOK, results)
}

func (v *VideoAPI) find(w http.ResponseWriter, r *http.Request, user SessionUser, id uuid.UUID) (*model.Video, bool) {
	video, err := v.videoRepo.FindByIDForUser(r.Context(), id, user.ID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		Error(w, http.StatusNotFound, "video not found", err)
		return nil, false
	case err != nil:
		v.returnErr(w, http.StatusInternalServerError, "could not fetch video", err)
		return nil, false
	}

	return video, true
}

func (v *VideoAPI) returnErr(w http.ResponseWriter, status int, message string, err error, details ...any) {
	v.logger.Error(message, slog.String("error", err.Error()), slog.String("details", fmt.Sprintf("%+v", details)))
	Error(w, status, message, err, details...)
}

type respVideo struct {
	ID            uuid.UUID   `json:"id"`
	YoutubeURL    string      `json:"youtube_url"`
	Title         *string     `json:"title"`
	Channel       *string     `json:"channel"`
	ChannelURL    *string     `json:"channel_url"`
	Duration      *string     `json:"duration"`
	PublishedAt   *string     `json:"published_at"`
	Description   *string     `json:"description"`
	Content       string      `json:"content"`
	State         model.State `json:"current_state"`
	FailedReason  *string     `json:"failed_reason"`
	SynthesizedAt *time.Time  `json:"synthesized_at"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

func newRespVideo(video *model.Video) respVideo {
	resp := respVideo{
		ID:           video.ID,
		YoutubeURL:   video.YoutubeURL,
		Title:        nullString(video.Title.String, video.Title.Valid),
		Channel:      nullString(video.Channel.String, video.Channel.Valid),
		ChannelURL:   nullString(video.ChannelURL.String, video.ChannelURL.Valid),
		Duration:     nullString(video.Duration.String, video.Duration.Valid),
		PublishedAt:  nullString(video.PublishedAt.String, video.PublishedAt.Valid),
		Description:  nullString(video.Description.String, video.Description.Valid),
		Content:      video.Content,
		State:        video.State,
		FailedReason: nullString(video.FailedReason.String, video.FailedReason.Valid),
		CreatedAt:    video.CreatedAt,
		UpdatedAt:    video.UpdatedAt,
	}
	if video.SynthesizedAt.Valid {
		t := video.SynthesizedAt.Time
		resp.SynthesizedAt = &t
	}

	return resp
}

func nullString(s string, valid bool) *string {
	if !valid {
		return nil
	}
	return &s
}
