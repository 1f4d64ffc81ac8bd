package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"github.com/fixie-ai/podverse/internal/catalog"
	"github.com/fixie-ai/podverse/internal/storage"
	"github.com/fixie-ai/podverse/internal/summarize"
	"github.com/fixie-ai/podverse/internal/transcribe"
)

// Validation errors fatal for a single episode.
var (
	ErrMissingAudio      = eris.New("episode has no audio url")
	ErrMissingTranscript = eris.New("episode has no transcript url")
)

// ProcessOptions controls the per-episode state machine.
type ProcessOptions struct {
	// Force reruns transcription and summarization even when their
	// artifacts already exist.
	Force bool
	// SkipTranscribe disables the transcription step entirely,
	// independent of idempotency.
	SkipTranscribe bool
	// SkipSummarize disables the summarization step entirely.
	SkipSummarize bool
	// MaxEpisodes truncates a batch after this many episodes; zero means
	// no bound. It is a processing budget, not cancellation.
	MaxEpisodes int
}

// EpisodeFailure records one isolated per-episode error within a batch.
type EpisodeFailure struct {
	EpisodeSlug string
	Err         error
}

// BatchResult reports which episodes of a batch completed and which failed.
type BatchResult struct {
	RunID     string
	Podcast   string
	Processed []string
	Failed    []EpisodeFailure
}

// Options wires the Processor's collaborators.
type Options struct {
	Repository  *catalog.Repository
	Transcriber transcribe.Transcriber
	Summarizer  summarize.Summarizer
	Uploader    storage.Uploader
	TextFetcher TextFetcher
	Logger      *logrus.Logger
}

// Processor drives episodes through the transcribe-then-summarize state
// machine. Episodes within a batch run sequentially: the serialization is a
// deliberate backpressure bound on the external transcription and completion
// services, not an accident of the implementation.
type Processor struct {
	repo        *catalog.Repository
	transcriber transcribe.Transcriber
	summarizer  summarize.Summarizer
	uploader    storage.Uploader
	fetcher     TextFetcher
	logger      *logrus.Logger
}

// NewProcessor constructs a Processor.
func NewProcessor(opts Options) (*Processor, error) {
	if opts.Repository == nil {
		return nil, eris.New("catalog repository is required")
	}
	if opts.Transcriber == nil {
		return nil, eris.New("transcriber is required")
	}
	if opts.Summarizer == nil {
		return nil, eris.New("summarizer is required")
	}
	if opts.Uploader == nil {
		return nil, eris.New("uploader is required")
	}

	fetcher := opts.TextFetcher
	if fetcher == nil {
		fetcher = &HTTPTextFetcher{}
	}

	return &Processor{
		repo:        opts.Repository,
		transcriber: opts.Transcriber,
		summarizer:  opts.Summarizer,
		uploader:    opts.Uploader,
		fetcher:     fetcher,
		logger:      opts.Logger,
	}, nil
}

func transcriptObjectPath(podcastSlug, episodeSlug string) string {
	return fmt.Sprintf("%s/transcript/%s.txt", podcastSlug, episodeSlug)
}

func summaryObjectPath(podcastSlug, episodeSlug string) string {
	return fmt.Sprintf("%s/summary/%s.txt", podcastSlug, episodeSlug)
}

// ProcessEpisode runs one episode through the state machine and returns the
// updated record. The input record is not mutated.
func (p *Processor) ProcessEpisode(ctx context.Context, podcast catalog.Podcast, episode catalog.Episode, opts ProcessOptions) (catalog.Episode, error) {
	entry := p.logEntry(logrus.Fields{"podcast": podcast.Slug, "episode": episode.Slug})

	episode, err := p.transcribeStep(ctx, entry, episode, opts)
	if err != nil {
		return episode, err
	}

	episode, err = p.summarizeStep(ctx, entry, podcast, episode, opts)
	if err != nil {
		return episode, err
	}

	return episode, nil
}

func (p *Processor) transcribeStep(ctx context.Context, entry *logrus.Entry, episode catalog.Episode, opts ProcessOptions) (catalog.Episode, error) {
	switch {
	case episode.Transcribed() && !opts.Force:
		logInfo(entry, "skipping transcription, already transcribed")
		return episode, nil
	case opts.SkipTranscribe:
		logInfo(entry, "skipping transcription, disabled")
		return episode, nil
	}

	if episode.AudioURL == "" {
		return episode, eris.Wrapf(ErrMissingAudio, "episode: %s", episode.Slug)
	}

	transcript, err := p.transcriber.Transcribe(ctx, episode.AudioURL)
	if err != nil {
		return episode, eris.Wrapf(err, "transcribing episode: %s", episode.Slug)
	}

	transcriptURL, err := p.uploader.Upload(ctx, transcriptObjectPath(episode.PodcastSlug, episode.Slug), []byte(transcript))
	if err != nil {
		return episode, eris.Wrapf(err, "uploading transcript: %s", episode.Slug)
	}

	episode.TranscriptURL = transcriptURL
	logInfo(entry, "transcribed episode")
	return episode, nil
}

func (p *Processor) summarizeStep(ctx context.Context, entry *logrus.Entry, podcast catalog.Podcast, episode catalog.Episode, opts ProcessOptions) (catalog.Episode, error) {
	switch {
	case episode.Summarized() && !opts.Force:
		logInfo(entry, "skipping summarization, already summarized")
		return episode, nil
	case opts.SkipSummarize:
		logInfo(entry, "skipping summarization, disabled")
		return episode, nil
	}

	if episode.TranscriptURL == "" {
		return episode, eris.Wrapf(ErrMissingTranscript, "episode: %s", episode.Slug)
	}

	transcript, err := p.fetcher.FetchText(ctx, episode.TranscriptURL)
	if err != nil {
		return episode, eris.Wrapf(err, "fetching transcript: %s", episode.Slug)
	}

	summary, err := p.summarizer.Summarize(ctx, transcript, summarize.Reference{
		PodcastTitle: podcast.Title,
		EpisodeTitle: episode.Title,
	})
	if err != nil {
		return episode, eris.Wrapf(err, "summarizing episode: %s", episode.Slug)
	}

	summaryURL, err := p.uploader.Upload(ctx, summaryObjectPath(episode.PodcastSlug, episode.Slug), []byte(summary))
	if err != nil {
		return episode, eris.Wrapf(err, "uploading summary: %s", episode.Slug)
	}

	episode.SummaryURL = summaryURL
	logInfo(entry, "summarized episode")
	return episode, nil
}

// ProcessPodcast runs a podcast's episodes through the state machine,
// newest first. Per-episode failures are isolated: they are logged, recorded
// in the result, and do not abort the remaining episodes. Every successfully
// processed episode is persisted before the next one starts, so partial
// progress survives a crash later in the batch.
func (p *Processor) ProcessPodcast(ctx context.Context, slug string, opts ProcessOptions) (*BatchResult, error) {
	podcast, episodes, err := p.repo.LoadPodcast(ctx, slug)
	if err != nil {
		return nil, err
	}

	result := &BatchResult{RunID: uuid.NewString(), Podcast: podcast.Slug}
	entry := p.logEntry(logrus.Fields{"podcast": podcast.Slug, "run_id": result.RunID})
	logInfo(entry, "processing podcast")

	for i, episode := range episodes {
		if opts.MaxEpisodes > 0 && i >= opts.MaxEpisodes {
			logInfo(entry, "episode budget reached, stopping batch")
			break
		}

		updated, err := p.ProcessEpisode(ctx, *podcast, episode, opts)
		if err != nil {
			p.logError(logrus.Fields{
				"podcast": podcast.Slug,
				"episode": episode.Slug,
				"run_id":  result.RunID,
			}, err, "episode processing failed")
			result.Failed = append(result.Failed, EpisodeFailure{EpisodeSlug: episode.Slug, Err: err})
			continue
		}

		if err := p.repo.SetEpisode(ctx, &updated); err != nil {
			p.logError(logrus.Fields{
				"podcast": podcast.Slug,
				"episode": episode.Slug,
				"run_id":  result.RunID,
			}, err, "persisting processed episode failed")
			result.Failed = append(result.Failed, EpisodeFailure{EpisodeSlug: episode.Slug, Err: err})
			continue
		}

		result.Processed = append(result.Processed, episode.Slug)
	}

	return result, nil
}

func (p *Processor) logEntry(fields logrus.Fields) *logrus.Entry {
	if p.logger == nil {
		return nil
	}
	return p.logger.WithFields(fields)
}

func logInfo(entry *logrus.Entry, message string) {
	if entry == nil {
		return
	}
	entry.Info(message)
}

func (p *Processor) logError(fields logrus.Fields, err error, message string) {
	if p.logger == nil || err == nil {
		return
	}
	p.logger.WithField("error", err.Error()).WithFields(fields).Error(message)
}
