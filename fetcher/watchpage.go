package fetcher

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"
)

// All knowledge about the layout of a YouTube watch page lives in this file.
// When YouTube changes its markup, this is the only place that should need
// an update.

const (
	captionTracksMarker = "captionTracks"
	captionTracksKey    = `"captionTracks":`
)

var (
	titleRe         = regexp.MustCompile(`<meta name="title" content="([^"]*|[^"]*[^&]quot;[^"]*)">`)
	descriptionRe   = regexp.MustCompile(`<meta name="description" content="([^"]*|[^"]*[^&]quot;[^"]*)">`)
	authorSpanRe    = regexp.MustCompile(`(?s)<span itemprop="author"[^>]*>(.*?)</span>`)
	authorURLRe     = regexp.MustCompile(`<link itemprop="url" href="([^"]+)"`)
	authorNameRe    = regexp.MustCompile(`<link itemprop="name" content="([^"]*)"`)
	ownerNameRe     = regexp.MustCompile(`"ownerChannelName":"((?:[^"\\]|\\.)*)"`)
	ownerURLRe      = regexp.MustCompile(`"ownerProfileUrl":"((?:[^"\\]|\\.)*)"`)
	durationRe      = regexp.MustCompile(`<meta itemprop="duration" content="([^"]+)"`)
	lengthSecondsRe = regexp.MustCompile(`"lengthSeconds":"(\d+)"`)
	datePublishedRe = regexp.MustCompile(`<meta itemprop="(?:datePublished|uploadDate)" content="([^"]+)"`)
	publishDateRe   = regexp.MustCompile(`"publishDate":"((?:[^"\\]|\\.)*)"`)
)

type CaptionTrack struct {
	BaseURL      string `json:"baseUrl"`
	VssID        string `json:"vssId"`
	LanguageCode string `json:"languageCode"`
}

type WatchPage struct {
	Metadata Metadata
	Tracks   []CaptionTrack
}

// ParseWatchPage maps the raw watch page onto metadata and caption tracks.
// Missing metadata is tolerated; a missing caption marker or an unreadable
// track list is not.
func ParseWatchPage(page string) (*WatchPage, error) {
	if !HasCaptions(page) {
		return nil, ErrCaptionsUnavailable
	}

	md := ParseMetadata(page)
	tracks, err := parseCaptionTracks(page)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMetadataExtraction, err)
	}

	return &WatchPage{
		Metadata: md,
		Tracks:   tracks,
	}, nil
}

func HasCaptions(page string) bool {
	return strings.Contains(page, captionTracksMarker)
}

// ParseMetadata extracts every field independently. A field that cannot be
// found is left empty.
func ParseMetadata(page string) Metadata {
	md := Metadata{
		Title:       htmlAttr(titleRe, page),
		Description: htmlAttr(descriptionRe, page),
		Duration:    htmlAttr(durationRe, page),
		PublishedAt: htmlAttr(datePublishedRe, page),
	}

	if m := authorSpanRe.FindStringSubmatch(page); m != nil {
		md.Channel = htmlAttr(authorNameRe, m[1])
		md.ChannelURL = htmlAttr(authorURLRe, m[1])
	}
	md.Channel = md.Channel.or(jsonField(ownerNameRe, page))
	md.ChannelURL = md.ChannelURL.or(jsonField(ownerURLRe, page))
	md.PublishedAt = md.PublishedAt.or(jsonField(publishDateRe, page))

	if !md.Duration.Found {
		if m := lengthSecondsRe.FindStringSubmatch(page); m != nil {
			if secs, err := strconv.Atoi(m[1]); err == nil && secs > 0 {
				md.Duration = found(fmt.Sprintf("PT%dS", secs))
			}
		}
	}

	return md
}

func htmlAttr(re *regexp.Regexp, s string) Field {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return Field{}
	}
	return found(strings.TrimSpace(html.UnescapeString(m[1])))
}

func jsonField(re *regexp.Regexp, s string) Field {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return Field{}
	}
	var value string
	if err := json.Unmarshal([]byte(`"`+m[1]+`"`), &value); err != nil {
		return Field{}
	}
	return found(strings.TrimSpace(value))
}

func parseCaptionTracks(page string) ([]CaptionTrack, error) {
	idx := strings.Index(page, captionTracksKey)
	if idx < 0 {
		return nil, errors.New("caption track list not found")
	}
	raw := extractArray(page[idx+len(captionTracksKey):])
	if raw == "" {
		return nil, errors.New("caption track list is not terminated")
	}

	var tracks []CaptionTrack
	if err := json.Unmarshal([]byte(raw), &tracks); err != nil {
		return nil, fmt.Errorf("decode caption tracks: %w", err)
	}

	return tracks, nil
}

// extractArray returns the JSON array at the start of s, following nesting
// and skipping brackets inside strings.
func extractArray(s string) string {
	s = strings.TrimLeft(s, " \t\r\n")
	if len(s) == 0 || s[0] != '[' {
		return ""
	}

	depth := 0
	inStr, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inStr {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '[', '{':
			depth++
		case ']', '}':
			depth--
			if depth == 0 {
				return s[:i+1]
			}
		}
	}

	return ""
}
