package process

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"ewintr.nl/capsum/fetcher"
	"ewintr.nl/capsum/model"
	"ewintr.nl/capsum/storage"
	"ewintr.nl/capsum/storage/storagetest"
	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeCaptions struct {
	caps  *fetcher.Captions
	err   error
	calls int
}

func (f *fakeCaptions) FetchCaptions(_ context.Context, videoID model.YoutubeVideoID) (*fetcher.Captions, error) {
	f.calls++
	if f.err != nil {
		return nil, &fetcher.CaptionError{VideoID: videoID, Err: f.err}
	}
	return f.caps, nil
}

type fakeMetadata struct {
	mds map[model.YoutubeVideoID]fetcher.Metadata
	err error
}

func (f *fakeMetadata) FetchMetadata(_ context.Context, _ []model.YoutubeVideoID) (map[model.YoutubeVideoID]fetcher.Metadata, error) {
	return f.mds, f.err
}

type fakeChat struct {
	content string
	err     error
	req     openai.ChatCompletionRequest
}

func (f *fakeChat) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.req = req
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: f.content}}},
	}, nil
}

type fakeSpeech struct {
	audio string
	err   error
	req   openai.CreateSpeechRequest
}

func (f *fakeSpeech) CreateSpeech(_ context.Context, req openai.CreateSpeechRequest) (openai.RawResponse, error) {
	f.req = req
	if f.err != nil {
		return openai.RawResponse{}, f.err
	}
	return openai.RawResponse{ReadCloser: io.NopCloser(strings.NewReader(f.audio))}, nil
}

type memoryVecRepo struct {
	saved []uuid.UUID
}

func (m *memoryVecRepo) Save(_ context.Context, video *model.Video) error {
	m.saved = append(m.saved, video.ID)
	return nil
}

func (m *memoryVecRepo) Delete(_ context.Context, _ uuid.UUID) error { return nil }

func (m *memoryVecRepo) Search(_ context.Context, _, _ string, _ int) ([]storage.SearchResult, error) {
	return nil, nil
}

// brokenSaveRepo fails every write that marks a video as failed.
type brokenSaveRepo struct {
	*storagetest.VideoRepository
}

func (b *brokenSaveRepo) Save(ctx context.Context, video *model.Video, from model.State) error {
	if video.State == model.StateFailed {
		return errors.New("connection reset")
	}
	return b.VideoRepository.Save(ctx, video, from)
}

func testCaptions() *fetcher.Captions {
	return &fetcher.Captions{
		VideoID: "dQw4w9WgXcQ",
		Metadata: fetcher.Metadata{
			Title:   fetcher.Field{Value: "Go & Testing", Found: true},
			Channel: fetcher.Field{Value: "Gopher", Found: true},
		},
		Content: "Hello & world",
	}
}

type pipelineFixture struct {
	repo     *storagetest.VideoRepository
	audio    *storagetest.AudioStore
	vec      *memoryVecRepo
	captions *fakeCaptions
	chat     *fakeChat
	speech   *fakeSpeech
	pipeline *Pipeline
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()
	f := &pipelineFixture{
		repo:     storagetest.NewVideoRepository(),
		audio:    storagetest.NewAudioStore(),
		vec:      &memoryVecRepo{},
		captions: &fakeCaptions{caps: testCaptions()},
		chat:     &fakeChat{content: "### Summary\n- it is about tests"},
		speech:   &fakeSpeech{audio: "ID3"},
	}
	procs := NewProcessors(
		NewExtractor(f.captions, nil, testLogger),
		NewOpenAISummarizer(f.chat, ""),
		NewOpenAISynthesizer(f.speech, f.audio),
	)
	f.pipeline = NewPipeline(10, procs, f.repo, f.vec, testLogger)

	return f
}

func (f *pipelineFixture) create(t *testing.T, url string) *model.Video {
	t.Helper()
	video := model.NewVideo("user", url)
	require.NoError(t, f.repo.Create(context.Background(), video))
	return video
}

func (f *pipelineFixture) load(t *testing.T, id uuid.UUID) *model.Video {
	t.Helper()
	video, err := f.repo.FindByID(context.Background(), id)
	require.NoError(t, err)
	return video
}

func TestProcessorsNext(t *testing.T) {
	ext, sum, syn := &Extractor{}, &OpenAISummarizer{}, &OpenAISynthesizer{}
	procs := NewProcessors(ext, sum, syn)

	for _, tc := range []struct {
		name    string
		state   model.State
		content string
		exp     VideoProcessor
	}{
		{name: "new", state: model.StatePending, exp: ext},
		{name: "transcript", state: model.StatePending, content: "text", exp: sum},
		{name: "active", state: model.StateActive, content: "summary"},
		{name: "failed", state: model.StateFailed},
		{name: "synthesizing", state: model.StateSynthesizing, content: "summary", exp: syn},
	} {
		t.Run(tc.name, func(t *testing.T) {
			act := procs.Next(&model.Video{State: tc.state, Content: tc.content})
			if tc.exp == nil {
				assert.Nil(t, act)
				return
			}
			assert.Equal(t, tc.exp, act)
		})
	}
}

func TestPipelineSummarize(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		f := newPipelineFixture(t)
		video := f.create(t, "https://www.youtube.com/watch?v=dQw4w9WgXcQ")

		f.pipeline.Process(ctx, video.ID)

		act := f.load(t, video.ID)
		assert.Equal(t, model.StateActive, act.State)
		assert.Equal(t, "### Summary\n- it is about tests", act.Content)
		assert.Equal(t, "Go & Testing", act.Title.String)
		assert.Equal(t, "Gopher", act.Channel.String)
		assert.False(t, act.Duration.Valid)
		assert.False(t, act.FailedReason.Valid)
		assert.Equal(t, []uuid.UUID{video.ID}, f.vec.saved)

		require.Len(t, f.chat.req.Messages, 1)
		assert.Contains(t, f.chat.req.Messages[0].Content, "Hello & world")
		assert.Contains(t, f.chat.req.Messages[0].Content, "Key Points")
		assert.Equal(t, 2048, f.chat.req.MaxTokens)
	})

	t.Run("invalid url", func(t *testing.T) {
		f := newPipelineFixture(t)
		video := f.create(t, "https://vimeo.com/123")

		f.pipeline.Process(ctx, video.ID)

		act := f.load(t, video.ID)
		assert.Equal(t, model.StateFailed, act.State)
		assert.Equal(t, "invalid YouTube URL", act.FailedReason.String)
		assert.Equal(t, 0, f.captions.calls)
	})

	t.Run("no captions", func(t *testing.T) {
		f := newPipelineFixture(t)
		f.captions.err = fetcher.ErrCaptionsUnavailable
		video := f.create(t, "https://youtu.be/dQw4w9WgXcQ")

		f.pipeline.Process(ctx, video.ID)

		act := f.load(t, video.ID)
		assert.Equal(t, model.StateFailed, act.State)
		assert.Contains(t, act.FailedReason.String, "captions unavailable")
		assert.Empty(t, f.vec.saved)
	})

	t.Run("empty summary keeps transcript", func(t *testing.T) {
		f := newPipelineFixture(t)
		f.chat.content = "  "
		video := f.create(t, "https://youtu.be/dQw4w9WgXcQ")

		f.pipeline.Process(ctx, video.ID)

		act := f.load(t, video.ID)
		assert.Equal(t, model.StateFailed, act.State)
		assert.Equal(t, ErrEmptySummary.Error(), act.FailedReason.String)
		assert.Equal(t, "Hello & world", act.Content)
	})

	t.Run("failure write fails", func(t *testing.T) {
		f := newPipelineFixture(t)
		f.captions.err = fetcher.ErrTrackNotFound
		f.pipeline = NewPipeline(10, f.pipeline.procs, &brokenSaveRepo{f.repo}, f.vec, testLogger)
		video := f.create(t, "https://youtu.be/dQw4w9WgXcQ")

		f.pipeline.Process(ctx, video.ID)

		act := f.load(t, video.ID)
		assert.Equal(t, model.StatePending, act.State)
		ids, err := f.repo.FindIDsByState(ctx, model.StatePending)
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{video.ID}, ids)
	})

	t.Run("interrupted", func(t *testing.T) {
		f := newPipelineFixture(t)
		f.captions.err = context.Canceled
		video := f.create(t, "https://youtu.be/dQw4w9WgXcQ")
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		f.pipeline.Process(cctx, video.ID)

		act := f.load(t, video.ID)
		assert.Equal(t, model.StatePending, act.State)
		assert.False(t, act.FailedReason.Valid)
	})

	t.Run("deleted video", func(t *testing.T) {
		f := newPipelineFixture(t)

		f.pipeline.Process(ctx, uuid.New())

		assert.Equal(t, 0, f.captions.calls)
	})
}

func TestPipelineEnrich(t *testing.T) {
	f := newPipelineFixture(t)
	f.pipeline.procs.extractor = NewExtractor(f.captions, &fakeMetadata{
		mds: map[model.YoutubeVideoID]fetcher.Metadata{
			"dQw4w9WgXcQ": {
				Title:    fetcher.Field{Value: "api title", Found: true},
				Duration: fetcher.Field{Value: "PT3M33S", Found: true},
			},
		},
	}, testLogger)
	video := f.create(t, "https://youtu.be/dQw4w9WgXcQ")

	f.pipeline.Process(context.Background(), video.ID)

	act := f.load(t, video.ID)
	assert.Equal(t, "Go & Testing", act.Title.String)
	assert.Equal(t, "PT3M33S", act.Duration.String)
}

func TestPipelineSynthesize(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*pipelineFixture, *model.Video) {
		f := newPipelineFixture(t)
		video := f.create(t, "https://youtu.be/dQw4w9WgXcQ")
		require.NoError(t, video.Transition(model.StateActive))
		video.Content = "### Summary"
		require.NoError(t, f.repo.Save(ctx, video, model.StatePending))
		require.NoError(t, video.Transition(model.StateSynthesizing))
		require.NoError(t, f.repo.Save(ctx, video, model.StateActive))
		return f, video
	}

	t.Run("success", func(t *testing.T) {
		f, video := setup(t)
		start := time.Now().Add(-time.Second)

		f.pipeline.Process(ctx, video.ID)

		act := f.load(t, video.ID)
		assert.Equal(t, model.StateActive, act.State)
		assert.True(t, act.HasAudio())
		assert.True(t, act.SynthesizedAt.Time.After(start))
		assert.Equal(t, openai.TTSModel1, f.speech.req.Model)
		assert.Equal(t, openai.VoiceNova, f.speech.req.Voice)
		assert.Equal(t, "### Summary", f.speech.req.Input)

		r, _, err := f.audio.Get(ctx, storage.AudioKey(video.ID))
		require.NoError(t, err)
		body, _ := io.ReadAll(r)
		assert.Equal(t, "ID3", string(body))
	})

	t.Run("speech error", func(t *testing.T) {
		f, video := setup(t)
		f.speech.err = errors.New("quota exceeded")

		f.pipeline.Process(ctx, video.ID)

		act := f.load(t, video.ID)
		assert.Equal(t, model.StateFailed, act.State)
		assert.Contains(t, act.FailedReason.String, "quota exceeded")
		assert.False(t, act.HasAudio())
	})
}

func TestPipelineQueue(t *testing.T) {
	f := newPipelineFixture(t)
	f.pipeline = NewPipeline(1, f.pipeline.procs, f.repo, nil, testLogger)
	first := f.create(t, "https://youtu.be/dQw4w9WgXcQ")

	f.pipeline.Enqueue(first.ID)
	f.pipeline.Enqueue(uuid.New()) // queue full, dropped
	f.pipeline.Close()
	f.pipeline.Enqueue(uuid.New()) // closed, ignored

	f.pipeline.Run(context.Background())

	select {
	case <-f.pipeline.Done():
	default:
		t.Fatal("pipeline not done")
	}
	assert.Equal(t, model.StateActive, f.load(t, first.ID).State)
	assert.Equal(t, 1, f.captions.calls)
}

func TestSweeper(t *testing.T) {
	ctx := context.Background()
	repo := storagetest.NewVideoRepository()
	pending := model.NewVideo("user", "a")
	active := model.NewVideo("user", "b")
	for _, v := range []*model.Video{pending, active} {
		require.NoError(t, repo.Create(ctx, v))
	}
	require.NoError(t, active.Transition(model.StateActive))
	require.NoError(t, repo.Save(ctx, active, model.StatePending))

	queue := &recordingQueue{}
	count := NewSweeper(repo, queue, testLogger).Sweep(ctx)

	assert.Equal(t, 1, count)
	assert.Equal(t, []uuid.UUID{pending.ID}, queue.ids)
}

type recordingQueue struct {
	ids []uuid.UUID
}

func (r *recordingQueue) Enqueue(id uuid.UUID) {
	r.ids = append(r.ids, id)
}
