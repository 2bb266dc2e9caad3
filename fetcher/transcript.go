package fetcher

import (
	"html"
	"regexp"
	"strings"
)

const DefaultLanguage = "en"

var (
	xmlPrologRe   = regexp.MustCompile(`<\?xml[^>]*\?>`)
	transcriptRe  = regexp.MustCompile(`</?transcript[^>]*>`)
	leadingTextRe = regexp.MustCompile(`^\s*<text[^>]*>`)
	escapedAmpRe  = regexp.MustCompile(`(?i)&amp;`)
	tagRe         = regexp.MustCompile(`</?[^>]+(>|$)`)
)

// SelectTrack picks the caption track for lang. A manually authored track
// beats an auto-generated one, which beats any regional variant, regardless
// of the order YouTube lists them in.
func SelectTrack(tracks []CaptionTrack, lang string) (CaptionTrack, error) {
	if lang == "" {
		lang = DefaultLanguage
	}

	rules := []func(vssID string) bool{
		func(vssID string) bool { return vssID == "."+lang },
		func(vssID string) bool { return vssID == "a."+lang },
		func(vssID string) bool { return strings.Contains(vssID, "."+lang) },
	}
	for _, match := range rules {
		for _, track := range tracks {
			if track.VssID == "" || !match(track.VssID) {
				continue
			}
			if track.BaseURL == "" {
				return CaptionTrack{}, ErrTrackNotFound
			}
			return track, nil
		}
	}

	return CaptionTrack{}, ErrTrackNotFound
}

// DecodeTranscript turns a timedtext payload into plain text, one space
// between segments. Whitespace inside a segment is kept as is.
func DecodeTranscript(raw string) string {
	body := xmlPrologRe.ReplaceAllString(raw, "")
	body = transcriptRe.ReplaceAllString(body, "")

	var parts []string
	for _, segment := range strings.Split(body, "</text>") {
		if strings.TrimSpace(segment) == "" {
			continue
		}
		if text := decodeSegment(segment); strings.TrimSpace(text) != "" {
			parts = append(parts, text)
		}
	}

	return strings.Join(parts, " ")
}

// decodeSegment strips tags both before and after entity decoding, since
// decoding can turn &lt;b&gt; into a tag.
func decodeSegment(segment string) string {
	text := leadingTextRe.ReplaceAllString(segment, "")
	text = escapedAmpRe.ReplaceAllString(text, "&")
	text = tagRe.ReplaceAllString(text, "")
	text = html.UnescapeString(text)

	return tagRe.ReplaceAllString(text, "")
}
