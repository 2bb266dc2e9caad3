package process

import (
	"context"

	"ewintr.nl/capsum/model"
	"github.com/google/uuid"
	"golang.org/x/exp/slog"
)

type UnfinishedFinder interface {
	FindIDsByState(ctx context.Context, states ...model.State) ([]uuid.UUID, error)
}

type Enqueuer interface {
	Enqueue(id uuid.UUID)
}

// Sweeper re-enqueues videos that were left unfinished, by a restart, a full
// queue or a failure that could not be recorded.
type Sweeper struct {
	videoRepo UnfinishedFinder
	pipeline  Enqueuer
	logger    *slog.Logger
}

func NewSweeper(videoRepo UnfinishedFinder, pipeline Enqueuer, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		videoRepo: videoRepo,
		pipeline:  pipeline,
		logger:    logger,
	}
}

func (s *Sweeper) Sweep(ctx context.Context) int {
	ids, err := s.videoRepo.FindIDsByState(ctx, model.StatePending, model.StateSynthesizing)
	if err != nil {
		s.logger.Error("failed to fetch unfinished videos", slog.String("error", err.Error()))
		return 0
	}
	if len(ids) > 0 {
		s.logger.Info("found unfinished videos", slog.Int("count", len(ids)))
	}
	for _, id := range ids {
		s.pipeline.Enqueue(id)
	}

	return len(ids)
}
