package process

import (
	"context"
	"errors"
	"sync"

	"ewintr.nl/capsum/metrics"
	"ewintr.nl/capsum/model"
	"ewintr.nl/capsum/storage"
	"github.com/google/uuid"
	"golang.org/x/exp/slog"
)

type VideoProcessor interface {
	Name() string
	Do(ctx context.Context, video *model.Video) error
}

type Processors struct {
	extractor   VideoProcessor
	summarizer  VideoProcessor
	synthesizer VideoProcessor
}

func NewProcessors(extractor, summarizer, synthesizer VideoProcessor) *Processors {
	return &Processors{
		extractor:   extractor,
		summarizer:  summarizer,
		synthesizer: synthesizer,
	}
}

// Next returns the processor that moves the video along, or nil if there is
// nothing left to do.
func (p *Processors) Next(video *model.Video) VideoProcessor {
	switch video.State {
	case model.StatePending:
		if video.Content == "" {
			return p.extractor
		}
		return p.summarizer
	case model.StateSynthesizing:
		return p.synthesizer
	}

	return nil
}

// Pipeline processes videos one at a time, in the order they were enqueued.
type Pipeline struct {
	in         chan uuid.UUID
	done       chan struct{}
	mu         sync.RWMutex
	closed     bool
	procs      *Processors
	relStorage storage.VideoRepository
	vecStorage storage.VideoVecRepository
	logger     *slog.Logger
}

// NewPipeline accepts a nil vector repository, summaries are then not
// indexed.
func NewPipeline(size int, processors *Processors, relDB storage.VideoRepository, vecDB storage.VideoVecRepository, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		in:         make(chan uuid.UUID, size),
		done:       make(chan struct{}),
		procs:      processors,
		relStorage: relDB,
		vecStorage: vecDB,
		logger:     logger,
	}
}

// Enqueue never blocks. When the queue is full the id is dropped and left
// for the next sweep.
func (p *Pipeline) Enqueue(id uuid.UUID) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}

	select {
	case p.in <- id:
	default:
		p.logger.Warn("pipeline queue full, dropping video", slog.String("id", id.String()))
	}
}

func (p *Pipeline) Run(ctx context.Context) {
	defer close(p.done)
	p.logger.Info("started pipeline")
	for id := range p.in {
		if ctx.Err() != nil {
			continue
		}
		p.Process(ctx, id)
	}
	p.logger.Info("stopped pipeline")
}

// Close stops accepting new videos. Run returns after the queued ones are
// drained.
func (p *Pipeline) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.in)
	}
}

func (p *Pipeline) Done() <-chan struct{} {
	return p.done
}

func (p *Pipeline) Process(ctx context.Context, id uuid.UUID) {
	video, err := p.relStorage.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			p.logger.Info("video is gone", slog.String("id", id.String()))
			return
		}
		p.logger.Error("failed to load video", slog.String("id", id.String()), slog.String("error", err.Error()))
		return
	}

	for {
		next := p.procs.Next(video)
		if next == nil {
			p.logger.Info("no more processors for video", slog.String("id", id.String()), slog.String("state", string(video.State)))
			return
		}

		p.logger.Info("processing video", slog.String("id", id.String()), slog.String("processor", next.Name()))
		from := video.State
		err := next.Do(ctx, video)
		metrics.ProcessorRuns.WithLabelValues(next.Name(), metrics.Result(err)).Inc()
		if err != nil {
			if ctx.Err() != nil {
				p.logger.Info("processing interrupted", slog.String("id", id.String()), slog.String("processor", next.Name()))
				return
			}
			p.logger.Error("failed to process video", slog.String("id", id.String()), slog.String("processor", next.Name()), slog.String("error", err.Error()))
			p.fail(ctx, video, from, err)
			return
		}

		if err := p.relStorage.Save(ctx, video, from); err != nil {
			p.logger.Error("failed to save video in rel db", slog.String("id", id.String()), slog.String("error", err.Error()))
			return
		}

		if video.State == model.StateActive {
			p.index(ctx, video)
		}
	}
}

// fail marks the video failed. When that write fails too, the video keeps its
// previous state so the sweep will pick it up again.
func (p *Pipeline) fail(ctx context.Context, video *model.Video, from model.State, cause error) {
	video.State = from
	if err := video.Fail(cause.Error()); err != nil {
		p.logger.Error("failed to mark video failed", slog.String("id", video.ID.String()), slog.String("cause", cause.Error()), slog.String("error", err.Error()))
		metrics.FailureWritesFailed.Inc()
		return
	}

	err := p.relStorage.Save(ctx, video, from)
	switch {
	case err == nil:
		p.logger.Info("video failed", slog.String("id", video.ID.String()), slog.String("reason", cause.Error()))
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrStateConflict):
		p.logger.Info("video changed while processing", slog.String("id", video.ID.String()), slog.String("error", err.Error()))
	default:
		p.logger.Error("failed to mark video failed", slog.String("id", video.ID.String()), slog.String("cause", cause.Error()), slog.String("error", err.Error()))
		metrics.FailureWritesFailed.Inc()
	}
}

func (p *Pipeline) index(ctx context.Context, video *model.Video) {
	if p.vecStorage == nil {
		return
	}
	if err := p.vecStorage.Save(ctx, video); err != nil {
		p.logger.Error("failed to save video in vec db", slog.String("id", video.ID.String()), slog.String("error", err.Error()))
	}
}
