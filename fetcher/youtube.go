package fetcher

import (
	"context"
	"strings"

	"ewintr.nl/capsum/model"
	"google.golang.org/api/youtube/v3"
)

const channelBaseURL = "https://www.youtube.com/channel/"

// Youtube reads video metadata from the YouTube Data API. It is used to fill
// in whatever the watch page scrape could not find.
type Youtube struct {
	Client *youtube.Service
}

func NewYoutube(client *youtube.Service) *Youtube {
	return &Youtube{Client: client}
}

func (y *Youtube) FetchMetadata(ctx context.Context, ytIDs []model.YoutubeVideoID) (map[model.YoutubeVideoID]Metadata, error) {
	strIDs := make([]string, len(ytIDs))
	for i, id := range ytIDs {
		strIDs[i] = string(id)
	}
	call := y.Client.Videos.
		List([]string{"snippet", "contentDetails"}).
		Id(strings.Join(strIDs, ",")).
		Context(ctx)

	response, err := call.Do()
	if err != nil {
		return map[model.YoutubeVideoID]Metadata{}, err
	}

	mds := make(map[model.YoutubeVideoID]Metadata, len(response.Items))
	for _, item := range response.Items {
		if item.Snippet == nil {
			continue
		}
		md := Metadata{
			Title:       found(item.Snippet.Title),
			Channel:     found(item.Snippet.ChannelTitle),
			Description: found(item.Snippet.Description),
			PublishedAt: found(item.Snippet.PublishedAt),
		}
		if item.Snippet.ChannelId != "" {
			md.ChannelURL = found(channelBaseURL + item.Snippet.ChannelId)
		}
		if item.ContentDetails != nil {
			md.Duration = found(item.ContentDetails.Duration)
		}

		mds[model.YoutubeVideoID(item.Id)] = md
	}

	return mds, nil
}
