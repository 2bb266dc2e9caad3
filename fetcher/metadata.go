package fetcher

import (
	"context"
	"database/sql"

	"ewintr.nl/capsum/model"
)

const noTitle = "No title found"

// Field is a metadata value that may or may not have been found on the page.
type Field struct {
	Value string
	Found bool
}

func found(value string) Field {
	if value == "" {
		return Field{}
	}
	return Field{Value: value, Found: true}
}

func (f Field) NullString() sql.NullString {
	return sql.NullString{String: f.Value, Valid: f.Found}
}

func (f Field) or(other Field) Field {
	if f.Found {
		return f
	}
	return other
}

type Metadata struct {
	Title       Field
	Channel     Field
	ChannelURL  Field
	Duration    Field
	PublishedAt Field
	Description Field
}

// DisplayTitle never returns an empty string.
func (md Metadata) DisplayTitle() string {
	if md.Title.Found {
		return md.Title.Value
	}
	return noTitle
}

// Merge keeps every field already present and fills the missing ones from
// other.
func (md Metadata) Merge(other Metadata) Metadata {
	return Metadata{
		Title:       md.Title.or(other.Title),
		Channel:     md.Channel.or(other.Channel),
		ChannelURL:  md.ChannelURL.or(other.ChannelURL),
		Duration:    md.Duration.or(other.Duration),
		PublishedAt: md.PublishedAt.or(other.PublishedAt),
		Description: md.Description.or(other.Description),
	}
}

func (md Metadata) Complete() bool {
	return md.Title.Found && md.Channel.Found && md.ChannelURL.Found &&
		md.Duration.Found && md.PublishedAt.Found && md.Description.Found
}

// Apply copies the metadata onto the video record.
func (md Metadata) Apply(video *model.Video) {
	video.Title = sql.NullString{String: md.DisplayTitle(), Valid: true}
	video.Channel = md.Channel.NullString()
	video.ChannelURL = md.ChannelURL.NullString()
	video.Duration = md.Duration.NullString()
	video.PublishedAt = md.PublishedAt.NullString()
	video.Description = md.Description.NullString()
}

type MetadataFetcher interface {
	FetchMetadata(ctx context.Context, ids []model.YoutubeVideoID) (map[model.YoutubeVideoID]Metadata, error)
}
