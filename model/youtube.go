package model

import (
	"errors"
	"regexp"
	"strings"
)

type YoutubeVideoID string

var ErrInvalidYoutubeURL = errors.New("invalid YouTube URL")

var (
	youtubeURLRe = regexp.MustCompile(`(?i)(?:youtube\.com/(?:[^/]+/.+/|(?:v|e(?:mbed)?)/|.*[?&]v=)|youtu\.be/)([^"&?/\s]{11})`)
	youtubeIDRe  = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
)

// ParseYoutubeID returns the 11 character video id embedded in a YouTube
// link. A bare id is accepted as well.
func ParseYoutubeID(link string) (YoutubeVideoID, error) {
	link = strings.TrimSpace(link)
	if youtubeIDRe.MatchString(link) {
		return YoutubeVideoID(link), nil
	}

	m := youtubeURLRe.FindStringSubmatch(link)
	if len(m) < 2 || !youtubeIDRe.MatchString(m[1]) {
		return "", ErrInvalidYoutubeURL
	}

	return YoutubeVideoID(m[1]), nil
}

func (id YoutubeVideoID) Valid() bool {
	return youtubeIDRe.MatchString(string(id))
}

func (id YoutubeVideoID) WatchURL() string {
	return "https://www.youtube.com/watch?v=" + string(id)
}
