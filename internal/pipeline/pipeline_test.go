package pipeline

import (
	"context"
	"io"
	"reflect"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"github.com/fixie-ai/podverse/internal/catalog"
	"github.com/fixie-ai/podverse/internal/store"
	"github.com/fixie-ai/podverse/internal/summarize"
)

type fakeTranscriber struct {
	calls      int
	transcript string
	failFor    map[string]error
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audioURL string) (string, error) {
	f.calls++
	if err, ok := f.failFor[audioURL]; ok {
		return "", err
	}
	return f.transcript, nil
}

type fakeSummarizer struct {
	calls   int
	summary string
	err     error
	lastRef summarize.Reference
}

func (f *fakeSummarizer) Summarize(ctx context.Context, text string, ref summarize.Reference) (string, error) {
	f.calls++
	f.lastRef = ref
	if f.err != nil {
		return "", f.err
	}
	return f.summary, nil
}

type fakeUploader struct {
	calls   int
	objects map[string]string
}

func (f *fakeUploader) Upload(ctx context.Context, objectPath string, contents []byte) (string, error) {
	f.calls++
	if f.objects == nil {
		f.objects = make(map[string]string)
	}
	f.objects[objectPath] = string(contents)
	return "https://blobs.example.com/" + objectPath, nil
}

type fakeTextFetcher struct {
	calls int
	texts map[string]string
}

func (f *fakeTextFetcher) FetchText(ctx context.Context, url string) (string, error) {
	f.calls++
	if text, ok := f.texts[url]; ok {
		return text, nil
	}
	return "", eris.Errorf("no text for %s", url)
}

type testHarness struct {
	processor   *Processor
	repo        *catalog.Repository
	transcriber *fakeTranscriber
	summarizer  *fakeSummarizer
	uploader    *fakeUploader
	fetcher     *fakeTextFetcher
}

func silentLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func setupProcessor(t *testing.T) *testHarness {
	t.Helper()

	repo, err := catalog.NewRepository(store.NewMemory(), silentLogger())
	if err != nil {
		t.Fatalf("NewRepository returned error: %v", err)
	}

	transcriber := &fakeTranscriber{transcript: "the transcript text"}
	summarizer := &fakeSummarizer{summary: "the summary text"}
	uploader := &fakeUploader{}
	fetcher := &fakeTextFetcher{texts: map[string]string{}}

	processor, err := NewProcessor(Options{
		Repository:  repo,
		Transcriber: transcriber,
		Summarizer:  summarizer,
		Uploader:    uploader,
		TextFetcher: fetcher,
		Logger:      silentLogger(),
	})
	if err != nil {
		t.Fatalf("NewProcessor returned error: %v", err)
	}

	return &testHarness{
		processor:   processor,
		repo:        repo,
		transcriber: transcriber,
		summarizer:  summarizer,
		uploader:    uploader,
		fetcher:     fetcher,
	}
}

func rawEpisode(slug string) catalog.Episode {
	return catalog.Episode{
		Slug:        slug,
		PodcastSlug: "show",
		Title:       strings.ToUpper(slug),
		URL:         "https://example.com/" + slug,
		AudioURL:    "https://example.com/" + slug + ".mp3",
	}
}

func TestProcessEpisodeRawToSummarized(t *testing.T) {
	t.Parallel()

	h := setupProcessor(t)
	podcast := catalog.Podcast{Slug: "show", Title: "The Show"}
	transcriptURL := "https://blobs.example.com/show/transcript/ep.txt"
	h.fetcher.texts[transcriptURL] = "the transcript text"

	updated, err := h.processor.ProcessEpisode(context.Background(), podcast, rawEpisode("ep"), ProcessOptions{})
	if err != nil {
		t.Fatalf("ProcessEpisode returned error: %v", err)
	}

	if updated.TranscriptURL != transcriptURL {
		t.Fatalf("unexpected transcript URL %q", updated.TranscriptURL)
	}
	if updated.SummaryURL != "https://blobs.example.com/show/summary/ep.txt" {
		t.Fatalf("unexpected summary URL %q", updated.SummaryURL)
	}
	if h.uploader.objects["show/transcript/ep.txt"] != "the transcript text" {
		t.Fatalf("transcript not uploaded")
	}
	if h.uploader.objects["show/summary/ep.txt"] != "the summary text" {
		t.Fatalf("summary not uploaded")
	}
	if h.summarizer.lastRef.PodcastTitle != "The Show" || h.summarizer.lastRef.EpisodeTitle != "EP" {
		t.Fatalf("summarizer reference not enriched: %#v", h.summarizer.lastRef)
	}
}

func TestProcessEpisodeIdempotentWithoutForce(t *testing.T) {
	t.Parallel()

	h := setupProcessor(t)
	episode := rawEpisode("ep")
	episode.TranscriptURL = "t/ep"
	episode.SummaryURL = "s/ep"

	updated, err := h.processor.ProcessEpisode(context.Background(), catalog.Podcast{Slug: "show"}, episode, ProcessOptions{})
	if err != nil {
		t.Fatalf("ProcessEpisode returned error: %v", err)
	}

	if h.transcriber.calls != 0 || h.summarizer.calls != 0 || h.uploader.calls != 0 || h.fetcher.calls != 0 {
		t.Fatalf("expected zero external calls, got transcribe=%d summarize=%d upload=%d fetch=%d",
			h.transcriber.calls, h.summarizer.calls, h.uploader.calls, h.fetcher.calls)
	}
	if !reflect.DeepEqual(updated, episode) {
		t.Fatalf("expected record unchanged, got %#v", updated)
	}
}

func TestProcessEpisodeForceRerunsBothSteps(t *testing.T) {
	t.Parallel()

	h := setupProcessor(t)
	episode := rawEpisode("ep")
	episode.TranscriptURL = "t/ep"
	episode.SummaryURL = "s/ep"
	h.fetcher.texts["https://blobs.example.com/show/transcript/ep.txt"] = "refetched transcript"

	updated, err := h.processor.ProcessEpisode(context.Background(), catalog.Podcast{Slug: "show"}, episode, ProcessOptions{Force: true})
	if err != nil {
		t.Fatalf("ProcessEpisode returned error: %v", err)
	}

	if h.transcriber.calls != 1 || h.summarizer.calls != 1 {
		t.Fatalf("expected both steps rerun, got transcribe=%d summarize=%d", h.transcriber.calls, h.summarizer.calls)
	}
	if updated.TranscriptURL == "t/ep" || updated.SummaryURL == "s/ep" {
		t.Fatalf("expected fresh artifact URLs, got %#v", updated)
	}
}

func TestProcessEpisodeDisableFlags(t *testing.T) {
	t.Parallel()

	h := setupProcessor(t)
	episode := rawEpisode("ep")

	// Transcription disabled on a raw episode: summarization then fails
	// validation because no transcript exists.
	_, err := h.processor.ProcessEpisode(context.Background(), catalog.Podcast{Slug: "show"}, episode, ProcessOptions{SkipTranscribe: true})
	if !eris.Is(err, ErrMissingTranscript) {
		t.Fatalf("expected ErrMissingTranscript, got %v", err)
	}
	if h.transcriber.calls != 0 {
		t.Fatalf("expected transcription not to run, got %d calls", h.transcriber.calls)
	}

	// Both disabled: a no-op.
	updated, err := h.processor.ProcessEpisode(context.Background(), catalog.Podcast{Slug: "show"}, episode,
		ProcessOptions{SkipTranscribe: true, SkipSummarize: true})
	if err != nil {
		t.Fatalf("ProcessEpisode returned error: %v", err)
	}
	if !reflect.DeepEqual(updated, episode) {
		t.Fatalf("expected record unchanged, got %#v", updated)
	}
}

func TestProcessEpisodeMissingAudioIsValidationError(t *testing.T) {
	t.Parallel()

	h := setupProcessor(t)
	episode := rawEpisode("ep")
	episode.AudioURL = ""

	if _, err := h.processor.ProcessEpisode(context.Background(), catalog.Podcast{Slug: "show"}, episode, ProcessOptions{}); !eris.Is(err, ErrMissingAudio) {
		t.Fatalf("expected ErrMissingAudio, got %v", err)
	}
}

func seedBatch(t *testing.T, h *testHarness, episodeSlugs ...string) {
	t.Helper()

	ctx := context.Background()
	if err := h.repo.SetPodcast(ctx, &catalog.Podcast{Slug: "show", Title: "The Show"}); err != nil {
		t.Fatalf("SetPodcast returned error: %v", err)
	}
	for _, slug := range episodeSlugs {
		episode := rawEpisode(slug)
		if err := h.repo.SetEpisode(ctx, &episode); err != nil {
			t.Fatalf("SetEpisode returned error: %v", err)
		}
		h.fetcher.texts["https://blobs.example.com/show/transcript/"+slug+".txt"] = "transcript for " + slug
	}
}

func TestProcessPodcastIsolatesEpisodeFailures(t *testing.T) {
	t.Parallel()

	h := setupProcessor(t)
	seedBatch(t, h, "a", "b", "c")
	h.transcriber.failFor = map[string]error{
		"https://example.com/b.mp3": eris.New("transcription backend down"),
	}

	result, err := h.processor.ProcessPodcast(context.Background(), "show", ProcessOptions{})
	if err != nil {
		t.Fatalf("ProcessPodcast returned error: %v", err)
	}

	if !reflect.DeepEqual(result.Processed, []string{"a", "c"}) {
		t.Fatalf("expected a and c processed, got %v", result.Processed)
	}
	if len(result.Failed) != 1 || result.Failed[0].EpisodeSlug != "b" {
		t.Fatalf("expected b to fail, got %#v", result.Failed)
	}
	if result.RunID == "" {
		t.Fatalf("expected a run id")
	}

	// Successful episodes were persisted despite the sibling failure.
	stored, err := h.repo.GetEpisode(context.Background(), "show", "a")
	if err != nil {
		t.Fatalf("GetEpisode returned error: %v", err)
	}
	if !stored.Summarized() {
		t.Fatalf("expected episode a persisted with summary, got %#v", stored)
	}
	storedB, err := h.repo.GetEpisode(context.Background(), "show", "b")
	if err != nil {
		t.Fatalf("GetEpisode returned error: %v", err)
	}
	if storedB.Transcribed() {
		t.Fatalf("failed episode must not be persisted with partial artifacts, got %#v", storedB)
	}
}

func TestProcessPodcastHonorsEpisodeBudget(t *testing.T) {
	t.Parallel()

	h := setupProcessor(t)
	seedBatch(t, h, "a", "b", "c", "d")

	result, err := h.processor.ProcessPodcast(context.Background(), "show", ProcessOptions{MaxEpisodes: 2})
	if err != nil {
		t.Fatalf("ProcessPodcast returned error: %v", err)
	}

	if len(result.Processed) != 2 {
		t.Fatalf("expected 2 processed episodes, got %v", result.Processed)
	}
	if h.transcriber.calls != 2 {
		t.Fatalf("expected 2 transcription calls, got %d", h.transcriber.calls)
	}
}

func TestProcessPodcastMissingPodcast(t *testing.T) {
	t.Parallel()

	h := setupProcessor(t)

	if _, err := h.processor.ProcessPodcast(context.Background(), "ghost", ProcessOptions{}); !eris.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
