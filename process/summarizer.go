package process

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ewintr.nl/capsum/model"
	"github.com/sashabaranov/go-openai"
)

const (
	summaryMaxTokens = 2048

	summarizePrompt = `Write a short summary of the video captions below.

Ignore any irrelevant intro/outro messaging, as well as ads/sponsorships and focus on the main content.

Include a section for the summary, followed by a section for Key Points (highlighting the most
important or interesting points from the video), Analysis (providing insights, opinions, or
additional context related to the video content), and Keywords (key terms or phrases extracted
from the video content to provide a quick reference or overview of the main themes discussed).

Each keyword in the "Keywords" section should be followed by a colon and a sentence elaborating
on its significance in the video. The keywords should be in the same order as they appear
in the video, and the sentences should be concise. The keywords and colon should be bold, and
the sentences should be in plain text. Keywords should ideally be one single word, followed by
a sentence that explains its relevance to the video content.

Return the summary in markdown format, headings should be H3 and content should be in bullet points.

Headings should not have a colon or period at the end.

Captions:

%s`
)

var ErrEmptySummary = errors.New("no summary generated")

type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAISummarizer replaces the transcript of a pending video with a
// markdown summary and activates it.
type OpenAISummarizer struct {
	client ChatCompleter
	model  string
}

func NewOpenAISummarizer(client ChatCompleter, model string) *OpenAISummarizer {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAISummarizer{
		client: client,
		model:  model,
	}
}

func (sum *OpenAISummarizer) Name() string {
	return "openai summarizer"
}

func (sum *OpenAISummarizer) Do(ctx context.Context, video *model.Video) error {
	if strings.TrimSpace(video.Content) == "" {
		return errors.New("video has no transcript")
	}

	resp, err := sum.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model:     sum.model,
			MaxTokens: summaryMaxTokens,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: fmt.Sprintf(summarizePrompt, video.Content),
				},
			},
		})
	if err != nil {
		return fmt.Errorf("failed to fetch summary: %w", err)
	}
	if len(resp.Choices) == 0 {
		return ErrEmptySummary
	}
	summary := strings.TrimSpace(resp.Choices[len(resp.Choices)-1].Message.Content)
	if summary == "" {
		return ErrEmptySummary
	}

	if err := video.Transition(model.StateActive); err != nil {
		return err
	}
	video.Content = summary

	return nil
}
