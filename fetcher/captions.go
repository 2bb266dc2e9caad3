package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"ewintr.nl/capsum/model"
	"golang.org/x/exp/slog"
)

const (
	DefaultWatchBaseURL = "https://youtube.com"
	DefaultUserAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

	maxWatchPageSize  = 6 * 1024 * 1024
	maxTranscriptSize = 2 * 1024 * 1024
)

type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type CaptionConfig struct {
	WatchBaseURL string
	Language     string
	UserAgent    string
}

type Captions struct {
	VideoID  model.YoutubeVideoID
	Metadata Metadata
	Track    CaptionTrack
	Content  string
}

// CaptionFetcher scrapes the public watch page of a video for its metadata
// and caption tracks, and downloads the transcript of the best track.
type CaptionFetcher struct {
	client          Doer
	config          CaptionConfig
	logger          *slog.Logger
	watchPageLimit  int64
	transcriptLimit int64
}

func NewCaptionFetcher(client Doer, config CaptionConfig, logger *slog.Logger) *CaptionFetcher {
	if config.WatchBaseURL == "" {
		config.WatchBaseURL = DefaultWatchBaseURL
	}
	if config.Language == "" {
		config.Language = DefaultLanguage
	}
	if config.UserAgent == "" {
		config.UserAgent = DefaultUserAgent
	}
	config.WatchBaseURL = strings.TrimRight(config.WatchBaseURL, "/")

	return &CaptionFetcher{
		client:          client,
		config:          config,
		logger:          logger,
		watchPageLimit:  maxWatchPageSize,
		transcriptLimit: maxTranscriptSize,
	}
}

func (c *CaptionFetcher) FetchCaptions(ctx context.Context, videoID model.YoutubeVideoID) (*Captions, error) {
	if !videoID.Valid() {
		return nil, &CaptionError{VideoID: videoID, Err: ErrInvalidVideoID}
	}

	page, err := c.get(ctx, fmt.Sprintf("%s/watch?v=%s", c.config.WatchBaseURL, videoID), c.watchPageLimit)
	if err != nil {
		return nil, &CaptionError{VideoID: videoID, Err: fmt.Errorf("%w: watch page: %w", ErrCaptionsUnavailable, err)}
	}

	wp, err := ParseWatchPage(page)
	if err != nil {
		return nil, &CaptionError{VideoID: videoID, Err: err}
	}
	c.logger.Debug("parsed watch page", slog.String("video", string(videoID)), slog.Int("tracks", len(wp.Tracks)))

	track, err := SelectTrack(wp.Tracks, c.config.Language)
	if err != nil {
		return nil, &CaptionError{VideoID: videoID, Err: fmt.Errorf("%w %q", err, c.config.Language)}
	}

	raw, err := c.get(ctx, track.BaseURL, c.transcriptLimit)
	if err != nil {
		return nil, &CaptionError{VideoID: videoID, Err: fmt.Errorf("%w: %w", ErrTranscriptFetch, err)}
	}
	content := DecodeTranscript(raw)
	if content == "" {
		return nil, &CaptionError{VideoID: videoID, Err: fmt.Errorf("%w: transcript is empty", ErrTranscriptFetch)}
	}
	c.logger.Debug("fetched transcript", slog.String("video", string(videoID)), slog.String("track", track.VssID), slog.Int("length", len(content)))

	return &Captions{
		VideoID:  videoID,
		Metadata: wp.Metadata,
		Track:    track,
		Content:  content,
	}, nil
}

func (c *CaptionFetcher) get(ctx context.Context, url string, limit int64) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > limit {
		return "", fmt.Errorf("%w: more than %d bytes", ErrResponseTooLarge, limit)
	}
	if len(body) == 0 {
		return "", fmt.Errorf("empty body")
	}

	return string(body), nil
}
