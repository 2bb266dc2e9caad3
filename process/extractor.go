package process

import (
	"context"

	"ewintr.nl/capsum/fetcher"
	"ewintr.nl/capsum/metrics"
	"ewintr.nl/capsum/model"
	"golang.org/x/exp/slog"
)

type CaptionFetcher interface {
	FetchCaptions(ctx context.Context, videoID model.YoutubeVideoID) (*fetcher.Captions, error)
}

// Extractor fills a pending video with its metadata and transcript. The
// video stays pending, the summarizer takes it from there.
type Extractor struct {
	captions CaptionFetcher
	metadata fetcher.MetadataFetcher
	logger   *slog.Logger
}

// NewExtractor accepts a nil metadata fetcher, in which case only the watch
// page is used for metadata.
func NewExtractor(captions CaptionFetcher, metadata fetcher.MetadataFetcher, logger *slog.Logger) *Extractor {
	return &Extractor{
		captions: captions,
		metadata: metadata,
		logger:   logger,
	}
}

func (e *Extractor) Name() string {
	return "caption extractor"
}

func (e *Extractor) Do(ctx context.Context, video *model.Video) error {
	ytID, err := model.ParseYoutubeID(video.YoutubeURL)
	if err != nil {
		return err
	}

	caps, err := e.captions.FetchCaptions(ctx, ytID)
	metrics.Extractions.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		return err
	}

	md := caps.Metadata
	if e.metadata != nil && !md.Complete() {
		md = e.enrich(ctx, ytID, md)
	}

	md.Apply(video)
	video.Content = caps.Content

	return nil
}

func (e *Extractor) enrich(ctx context.Context, ytID model.YoutubeVideoID, md fetcher.Metadata) fetcher.Metadata {
	mds, err := e.metadata.FetchMetadata(ctx, []model.YoutubeVideoID{ytID})
	if err != nil {
		e.logger.Warn("failed to fetch metadata", slog.String("video", string(ytID)), slog.String("error", err.Error()))
		return md
	}
	apiMD, ok := mds[ytID]
	if !ok {
		return md
	}

	return md.Merge(apiMD)
}
