package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"github.com/fixie-ai/podverse/internal/catalog"
	"github.com/fixie-ai/podverse/internal/config"
	"github.com/fixie-ai/podverse/internal/corpus"
	"github.com/fixie-ai/podverse/internal/feed"
	"github.com/fixie-ai/podverse/internal/llm"
	applog "github.com/fixie-ai/podverse/internal/log"
	"github.com/fixie-ai/podverse/internal/pipeline"
	"github.com/fixie-ai/podverse/internal/storage"
	"github.com/fixie-ai/podverse/internal/store"
	"github.com/fixie-ai/podverse/internal/summarize"
	"github.com/fixie-ai/podverse/internal/transcribe"
)

type cli struct {
	Ingest    ingestCmd    `cmd:"" help:"Fetch an RSS feed and add the podcast to the catalog."`
	List      listCmd      `cmd:"" help:"List catalog podcasts."`
	Get       getCmd       `cmd:"" help:"Print one podcast and its episodes as JSON."`
	Export    exportCmd    `cmd:"" help:"Write all podcast records to a YAML file."`
	Import    importCmd    `cmd:"" help:"Load podcast records from a YAML file."`
	Delete    deleteCmd    `cmd:"" help:"Delete a podcast and all of its episodes."`
	Refresh   refreshCmd   `cmd:"" help:"Re-fetch feeds, adding new episodes and keeping processed ones."`
	Process   processCmd   `cmd:"" help:"Transcribe and summarize catalog episodes."`
	Index     indexCmd     `cmd:"" help:"Register podcast transcripts and summaries with the corpus service."`
	Summarize summarizeCmd `cmd:"" help:"Summarize a text document fetched from a URL."`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	parsed := kong.Parse(&cli{},
		kong.Name("podverse"),
		kong.Description("Podcast catalog, transcription and summarization toolkit."),
		kong.UsageOnError(),
	)

	if err := run(ctx, parsed); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		if eris.Is(err, config.ErrMissingSetting) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, parsed *kong.Context) error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return eris.Wrap(err, "failure loading configuration")
	}

	logger, err := applog.NewLogger(cfg.LogLevel)
	if err != nil {
		return eris.Wrap(err, "failure initialising logger")
	}

	flush, err := applog.InitSentry(logger, applog.SentrySettings{
		DSN:         cfg.SentryDSN,
		Environment: cfg.Environment,
	})
	if err != nil {
		return eris.Wrap(err, "failure initialising sentry")
	}
	defer flush()

	kv, err := store.NewRedis(store.RedisOptions{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return eris.Wrap(err, "connecting to redis")
	}
	defer func() {
		if closeErr := kv.Close(); closeErr != nil {
			logger.WithError(closeErr).Error("closing redis connection")
		}
	}()

	repository, err := catalog.NewRepository(kv, logger)
	if err != nil {
		return eris.Wrap(err, "building catalog repository")
	}

	return parsed.Run(&application{
		ctx:    ctx,
		cfg:    cfg,
		logger: logger,
		repo:   repository,
	})
}

// application carries the bootstrapped dependencies every command shares.
// Service clients that need credentials are built lazily per command, after
// that command has validated the settings it depends on.
type application struct {
	ctx    context.Context
	cfg    *config.Config
	logger *logrus.Logger
	repo   *catalog.Repository
}

func (a *application) buildSummarizer(budget int) (summarize.Summarizer, error) {
	client, err := llm.NewClient(llm.ClientOptions{
		APIKey:  a.cfg.LLMAPIKey,
		BaseURL: a.cfg.LLMEndpoint,
		Logger:  a.logger,
	})
	if err != nil {
		return nil, eris.Wrap(err, "creating llm client")
	}

	completer, err := llm.NewCompleter(llm.CompleterOptions{
		Client: client,
		Model:  a.cfg.LLMModel,
	})
	if err != nil {
		return nil, eris.Wrap(err, "creating completer")
	}

	if budget <= 0 {
		budget = a.cfg.SummaryTokenBudget
	}

	return summarize.NewEngine(summarize.Options{
		Completer:   completer,
		Logger:      a.logger,
		TokenBudget: budget,
		MaxRounds:   a.cfg.SummaryMaxRounds,
	})
}

func (a *application) buildProcessor(noTranscribe, noSummarize bool) (*pipeline.Processor, error) {
	uploader, err := storage.NewBucketUploader(storage.BucketOptions{
		Endpoint: a.cfg.StorageEndpoint,
		Bucket:   a.cfg.StorageBucket,
		Token:    a.cfg.StorageToken,
		Logger:   a.logger,
	})
	if err != nil {
		return nil, eris.Wrap(err, "creating uploader")
	}

	var transcriber transcribe.Transcriber = disabledTranscriber{}
	if !noTranscribe {
		transcriber, err = transcribe.NewDeepgram(transcribe.DeepgramOptions{
			APIKey: a.cfg.DeepgramAPIKey,
			Logger: a.logger,
		})
		if err != nil {
			return nil, eris.Wrap(err, "creating transcriber")
		}
	}

	var summarizer summarize.Summarizer = disabledSummarizer{}
	if !noSummarize {
		summarizer, err = a.buildSummarizer(0)
		if err != nil {
			return nil, err
		}
	}

	return pipeline.NewProcessor(pipeline.Options{
		Repository:  a.repo,
		Transcriber: transcriber,
		Summarizer:  summarizer,
		Uploader:    uploader,
		Logger:      a.logger,
	})
}

// disabledTranscriber stands in when transcription is switched off for a run.
// The pipeline skips the step before calling it, so reaching it is a bug.
type disabledTranscriber struct{}

func (disabledTranscriber) Transcribe(ctx context.Context, audioURL string) (string, error) {
	return "", eris.New("transcription is disabled for this run")
}

type disabledSummarizer struct{}

func (disabledSummarizer) Summarize(ctx context.Context, text string, ref summarize.Reference) (string, error) {
	return "", eris.New("summarization is disabled for this run")
}

// targetSlugs resolves an optional podcast argument to the set of podcasts a
// command operates on.
func targetSlugs(a *application, slug string) ([]string, error) {
	if slug != "" {
		return []string{slug}, nil
	}
	return a.repo.ListPodcasts(a.ctx)
}

func persistSnapshot(a *application, snapshot feed.Snapshot) error {
	if err := a.repo.SetPodcast(a.ctx, &snapshot.Podcast); err != nil {
		return err
	}
	for _, episode := range snapshot.Episodes {
		if err := a.repo.SetEpisode(a.ctx, &episode); err != nil {
			return err
		}
	}
	return nil
}

// refreshPodcast re-fetches a podcast's feed and reconciles it against stored
// state. Returns the episode count delta. Podcasts without a feed URL are
// skipped with a warning so bulk refreshes keep going.
func refreshPodcast(a *application, slug string, overwrite bool) (int, error) {
	podcast, episodes, err := a.repo.LoadPodcast(a.ctx, slug)
	if err != nil {
		return 0, err
	}

	if podcast.RSSURL == "" {
		a.logger.WithField("podcast", slug).Warn("podcast has no feed url, skipping refresh")
		return 0, nil
	}

	fetched, err := feed.NewFetcher(a.logger).Fetch(a.ctx, podcast.RSSURL, podcast.Slug)
	if err != nil {
		return 0, err
	}

	stored := &feed.Snapshot{Podcast: *podcast, Episodes: episodes}
	merged := feed.Reconcile(a.logger, stored, *fetched, overwrite)

	if err := persistSnapshot(a, merged); err != nil {
		return 0, err
	}
	return len(merged.Episodes) - len(episodes), nil
}

type ingestCmd struct {
	URL            string   `arg:"" help:"RSS feed URL."`
	Force          bool     `help:"Replace an existing podcast with the same slug."`
	Corpus         string   `help:"Corpus identifier to assign."`
	SuggestedQuery []string `help:"Suggested query to attach, repeatable."`
}

func (c *ingestCmd) Run(app *application) error {
	snapshot, err := feed.NewFetcher(app.logger).Fetch(app.ctx, c.URL, "")
	if err != nil {
		return err
	}

	stored, err := app.repo.GetPodcast(app.ctx, snapshot.Podcast.Slug)
	switch {
	case err == nil && !c.Force:
		return eris.Errorf("podcast %s already exists, use --force to replace it", snapshot.Podcast.Slug)
	case err != nil && !eris.Is(err, store.ErrNotFound):
		return err
	}

	if stored != nil && stored.CorpusID != "" {
		snapshot.Podcast.CorpusID = stored.CorpusID
	}
	if c.Corpus != "" {
		snapshot.Podcast.CorpusID = c.Corpus
	}
	if len(c.SuggestedQuery) > 0 {
		snapshot.Podcast.SuggestedQueries = c.SuggestedQuery
	}

	if err := persistSnapshot(app, *snapshot); err != nil {
		return err
	}

	fmt.Printf("ingested %s with %d episodes\n", snapshot.Podcast.Slug, len(snapshot.Episodes))
	return nil
}

type listCmd struct{}

func (c *listCmd) Run(app *application) error {
	slugs, err := app.repo.ListPodcasts(app.ctx)
	if err != nil {
		return err
	}

	for _, slug := range slugs {
		podcast, err := app.repo.GetPodcast(app.ctx, slug)
		if err != nil {
			return err
		}
		episodes, err := app.repo.ListEpisodes(app.ctx, slug)
		if err != nil {
			return err
		}

		marker := ""
		if podcast.CorpusID != "" {
			marker = " [indexed]"
		}
		fmt.Printf("%s\t%s\t%s\t%d episodes%s\n", slug, podcast.Title, podcast.RSSURL, len(episodes), marker)
	}
	return nil
}

type getCmd struct {
	Slug string `arg:"" help:"Podcast slug."`
}

func (c *getCmd) Run(app *application) error {
	podcast, episodes, err := app.repo.LoadPodcast(app.ctx, c.Slug)
	if err != nil {
		return err
	}

	record := struct {
		Podcast  *catalog.Podcast  `json:"podcast"`
		Episodes []catalog.Episode `json:"episodes"`
	}{Podcast: podcast, Episodes: episodes}

	encoded, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return eris.Wrap(err, "encoding podcast record")
	}

	fmt.Println(string(encoded))
	return nil
}

type exportCmd struct {
	File string `arg:"" help:"Destination YAML file."`
}

func (c *exportCmd) Run(app *application) error {
	slugs, err := app.repo.ListPodcasts(app.ctx)
	if err != nil {
		return err
	}

	podcasts := make([]catalog.Podcast, 0, len(slugs))
	for _, slug := range slugs {
		podcast, err := app.repo.GetPodcast(app.ctx, slug)
		if err != nil {
			return err
		}
		podcasts = append(podcasts, *podcast)
	}

	encoded, err := catalog.EncodeExport(podcasts)
	if err != nil {
		return err
	}

	if err := os.WriteFile(c.File, encoded, 0o644); err != nil {
		return eris.Wrapf(err, "writing export file: %s", c.File)
	}

	fmt.Printf("exported %d podcasts to %s\n", len(podcasts), c.File)
	return nil
}

type importCmd struct {
	File string `arg:"" help:"Source YAML file."`
}

// Run upserts each podcast from the file, file fields winning over stored
// ones, then rebuilds its episode list from the live feed. Episodes are never
// part of the file: they are feed-derived, and reconciliation restores any
// computed artifacts the store already has.
func (c *importCmd) Run(app *application) error {
	data, err := os.ReadFile(c.File)
	if err != nil {
		return eris.Wrapf(err, "reading import file: %s", c.File)
	}

	podcasts, err := catalog.DecodeExport(data)
	if err != nil {
		return err
	}

	for _, podcast := range podcasts {
		if podcast.Slug == "" {
			return eris.Errorf("import entry %q has no slug", podcast.Title)
		}

		var storedEpisodes []catalog.Episode
		stored, episodes, err := app.repo.LoadPodcast(app.ctx, podcast.Slug)
		switch {
		case err == nil:
			storedEpisodes = episodes
			if podcast.CorpusID == "" {
				podcast.CorpusID = stored.CorpusID
			}
		case !eris.Is(err, store.ErrNotFound):
			return err
		}

		if err := app.repo.SetPodcast(app.ctx, &podcast); err != nil {
			return err
		}

		if podcast.RSSURL == "" {
			continue
		}

		fetched, err := feed.NewFetcher(app.logger).Fetch(app.ctx, podcast.RSSURL, podcast.Slug)
		if err != nil {
			return err
		}

		merged := feed.Reconcile(app.logger, &feed.Snapshot{Podcast: podcast, Episodes: storedEpisodes}, *fetched, false)
		for _, episode := range merged.Episodes {
			if err := app.repo.SetEpisode(app.ctx, &episode); err != nil {
				return err
			}
		}
	}

	fmt.Printf("imported %d podcasts from %s\n", len(podcasts), c.File)
	return nil
}

type deleteCmd struct {
	Slug string `arg:"" help:"Podcast slug."`
}

func (c *deleteCmd) Run(app *application) error {
	if err := app.repo.DeletePodcast(app.ctx, c.Slug); err != nil {
		return err
	}
	fmt.Printf("deleted %s\n", c.Slug)
	return nil
}

type refreshCmd struct {
	Slug  string `arg:"" optional:"" help:"Podcast to refresh; all podcasts when omitted."`
	Force bool   `help:"Overwrite stored records with fetched feed state."`
}

func (c *refreshCmd) Run(app *application) error {
	slugs, err := targetSlugs(app, c.Slug)
	if err != nil {
		return err
	}

	failed := 0
	for _, slug := range slugs {
		delta, err := refreshPodcast(app, slug, c.Force)
		if err != nil {
			app.logger.WithField("podcast", slug).WithError(err).Error("refresh failed")
			failed++
			continue
		}
		fmt.Printf("refreshed %s: %+d episodes\n", slug, delta)
	}

	if failed > 0 {
		return eris.Errorf("%d of %d refreshes failed", failed, len(slugs))
	}
	return nil
}

type processCmd struct {
	Slug         string `arg:"" optional:"" help:"Podcast to process; all podcasts when omitted."`
	Force        bool   `help:"Rerun transcription and summarization on processed episodes."`
	NoTranscribe bool   `help:"Skip the transcription step."`
	NoSummarize  bool   `help:"Skip the summarization step."`
	Max          int    `help:"Stop after this many episodes per podcast."`
}

func (c *processCmd) Run(app *application) error {
	needs := []config.Requirement{config.NeedStorage}
	if !c.NoTranscribe {
		needs = append(needs, config.NeedTranscription)
	}
	if !c.NoSummarize {
		needs = append(needs, config.NeedLLM)
	}
	if err := app.cfg.Validate(needs...); err != nil {
		return err
	}

	processor, err := app.buildProcessor(c.NoTranscribe, c.NoSummarize)
	if err != nil {
		return err
	}

	slugs, err := targetSlugs(app, c.Slug)
	if err != nil {
		return err
	}

	failed := 0
	for _, slug := range slugs {
		result, err := processor.ProcessPodcast(app.ctx, slug, pipeline.ProcessOptions{
			Force:          c.Force,
			SkipTranscribe: c.NoTranscribe,
			SkipSummarize:  c.NoSummarize,
			MaxEpisodes:    c.Max,
		})
		if err != nil {
			return err
		}

		fmt.Printf("run %s: %s processed=%d failed=%d\n",
			result.RunID, result.Podcast, len(result.Processed), len(result.Failed))
		for _, failure := range result.Failed {
			fmt.Printf("  %s: %v\n", failure.EpisodeSlug, failure.Err)
		}
		failed += len(result.Failed)
	}

	if failed > 0 {
		return eris.Errorf("%d episodes failed", failed)
	}
	return nil
}

type indexCmd struct {
	Slug  string `arg:"" help:"Podcast slug."`
	Force bool   `help:"Replace an existing corpus registration."`
}

func (c *indexCmd) Run(app *application) error {
	if err := app.cfg.Validate(config.NeedCorpus); err != nil {
		return err
	}

	client, err := corpus.NewHTTPClient(corpus.HTTPOptions{
		BaseURL: app.cfg.CorpusAPIURL,
		APIKey:  app.cfg.CorpusAPIKey,
		Logger:  app.logger,
	})
	if err != nil {
		return err
	}

	indexer, err := corpus.NewIndexer(app.repo, client, app.logger)
	if err != nil {
		return err
	}

	corpusID, err := indexer.Index(app.ctx, c.Slug, c.Force)
	if err != nil {
		return err
	}

	fmt.Printf("indexed %s as corpus %s\n", c.Slug, corpusID)
	return nil
}

type summarizeCmd struct {
	URL    string `arg:"" help:"URL of a text document to summarize."`
	Budget int    `help:"Per-call token budget override."`
}

func (c *summarizeCmd) Run(app *application) error {
	if err := app.cfg.Validate(config.NeedLLM); err != nil {
		return err
	}

	summarizer, err := app.buildSummarizer(c.Budget)
	if err != nil {
		return err
	}

	fetcher := &pipeline.HTTPTextFetcher{}
	text, err := fetcher.FetchText(app.ctx, c.URL)
	if err != nil {
		return err
	}

	summary, err := summarizer.Summarize(app.ctx, text, summarize.Reference{})
	if err != nil {
		return err
	}

	fmt.Println(summary)
	return nil
}
