package fetcher

import (
	"errors"
	"fmt"

	"ewintr.nl/capsum/model"
)

var (
	ErrInvalidVideoID      = errors.New("invalid video id")
	ErrCaptionsUnavailable = errors.New("captions unavailable")
	ErrMetadataExtraction  = errors.New("could not extract caption tracks")
	ErrTrackNotFound       = errors.New("no caption track for language")
	ErrTranscriptFetch     = errors.New("could not fetch transcript")
	ErrResponseTooLarge    = errors.New("response too large")
)

// CaptionError ties an extraction failure to the video it happened for. Use
// errors.Is with the sentinels above to find out what went wrong.
type CaptionError struct {
	VideoID model.YoutubeVideoID
	Err     error
}

func (e *CaptionError) Error() string {
	return fmt.Sprintf("captions for video %s: %v", e.VideoID, e.Err)
}

func (e *CaptionError) Unwrap() error {
	return e.Err
}
