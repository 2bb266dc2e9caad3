package fetcher

import (
	"context"

	"ewintr.nl/capsum/model"
	"github.com/google/uuid"
	"golang.org/x/exp/slog"
)

type VideoCreator interface {
	Create(ctx context.Context, video *model.Video) error
}

type Enqueuer interface {
	Enqueue(id uuid.UUID)
}

// Fetcher turns unread YouTube entries of a feed reader into pending videos
// that belong to a single owner.
type Fetcher struct {
	videoRepo  VideoCreator
	feedReader FeedReader
	pipeline   Enqueuer
	ownerID    string
	logger     *slog.Logger
}

func NewFetch(videoRepo VideoCreator, feedReader FeedReader, pipeline Enqueuer, ownerID string, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		videoRepo:  videoRepo,
		feedReader: feedReader,
		pipeline:   pipeline,
		ownerID:    ownerID,
		logger:     logger,
	}
}

// ReadFeeds returns the number of videos that were created.
func (f *Fetcher) ReadFeeds(ctx context.Context) int {
	entries, err := f.feedReader.Unread()
	if err != nil {
		f.logger.Error("failed to fetch unread entries", slog.String("error", err.Error()))
		return 0
	}
	f.logger.Info("fetched unread entries", slog.Int("count", len(entries)))

	var created int
	for _, entry := range entries {
		if _, err := model.ParseYoutubeID(entry.URL); err != nil {
			f.logger.Info("skipping entry without youtube video", slog.Int64("entry", entry.EntryID), slog.String("url", entry.URL))
			f.markRead(entry)
			continue
		}

		video := model.NewVideo(f.ownerID, entry.URL)
		if err := f.videoRepo.Create(ctx, video); err != nil {
			// leave the entry unread so it is picked up next time
			f.logger.Error("failed to save video", slog.String("url", entry.URL), slog.String("error", err.Error()))
			continue
		}
		f.pipeline.Enqueue(video.ID)
		created++
		f.markRead(entry)
	}

	return created
}

func (f *Fetcher) markRead(entry FeedEntry) {
	if err := f.feedReader.MarkRead(entry.EntryID); err != nil {
		f.logger.Error("failed to mark entry as read", slog.Int64("entry", entry.EntryID), slog.String("error", err.Error()))
	}
}
