package process

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"ewintr.nl/capsum/model"
	"ewintr.nl/capsum/storage"
	"github.com/sashabaranov/go-openai"
)

const maxAudioSize = 64 * 1024 * 1024

type SpeechCreator interface {
	CreateSpeech(ctx context.Context, request openai.CreateSpeechRequest) (openai.RawResponse, error)
}

// OpenAISynthesizer narrates the summary of a video and stores the audio
// next to it.
type OpenAISynthesizer struct {
	client SpeechCreator
	audio  storage.AudioStore
	now    func() time.Time
}

func NewOpenAISynthesizer(client SpeechCreator, audio storage.AudioStore) *OpenAISynthesizer {
	return &OpenAISynthesizer{
		client: client,
		audio:  audio,
		now:    time.Now,
	}
}

func (syn *OpenAISynthesizer) Name() string {
	return "openai synthesizer"
}

func (syn *OpenAISynthesizer) Do(ctx context.Context, video *model.Video) error {
	if video.Content == "" {
		return errors.New("video has no summary")
	}

	resp, err := syn.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.TTSModel1,
		Voice:          openai.VoiceNova,
		ResponseFormat: openai.SpeechResponseFormatMp3,
		Input:          video.Content,
	})
	if err != nil {
		return fmt.Errorf("failed to synthesize speech: %w", err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(io.LimitReader(resp, maxAudioSize))
	if err != nil {
		return fmt.Errorf("failed to read speech: %w", err)
	}
	if len(audio) == 0 {
		return errors.New("speech is empty")
	}

	if err := syn.audio.Put(ctx, storage.AudioKey(video.ID), bytes.NewReader(audio), int64(len(audio))); err != nil {
		return fmt.Errorf("failed to upload audio: %w", err)
	}

	if err := video.Transition(model.StateActive); err != nil {
		return err
	}
	video.SynthesizedAt = sql.NullTime{Time: syn.now().UTC(), Valid: true}

	return nil
}
