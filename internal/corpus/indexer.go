package corpus

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"github.com/fixie-ai/podverse/internal/catalog"
)

// Indexer registers a podcast's transcripts and summaries with the corpus
// service and records the assigned corpus id on the podcast record.
type Indexer struct {
	repo   *catalog.Repository
	client Client
	logger *logrus.Logger
}

// NewIndexer constructs an Indexer.
func NewIndexer(repo *catalog.Repository, client Client, logger *logrus.Logger) (*Indexer, error) {
	if repo == nil {
		return nil, eris.New("catalog repository is required")
	}
	if client == nil {
		return nil, eris.New("corpus client is required")
	}

	return &Indexer{repo: repo, client: client, logger: logger}, nil
}

// Index registers the podcast with the corpus service. A podcast that
// already has a corpus id is skipped unless force is set; the existing id is
// returned either way.
func (i *Indexer) Index(ctx context.Context, slug string, force bool) (string, error) {
	podcast, episodes, err := i.repo.LoadPodcast(ctx, slug)
	if err != nil {
		return "", err
	}

	if podcast.CorpusID != "" && !force {
		if i.logger != nil {
			i.logger.WithFields(logrus.Fields{
				"podcast": slug,
				"corpus":  podcast.CorpusID,
			}).Info("skipping indexing, corpus already assigned")
		}
		return podcast.CorpusID, nil
	}

	var transcriptURLs, summaryURLs []string
	for _, episode := range episodes {
		if episode.TranscriptURL != "" {
			transcriptURLs = append(transcriptURLs, episode.TranscriptURL)
		}
		if episode.SummaryURL != "" {
			summaryURLs = append(summaryURLs, episode.SummaryURL)
		}
	}

	corpusID, err := i.client.CreateCorpus(ctx, podcast.Title, fmt.Sprintf("Podcast corpus for %s", podcast.Slug))
	if err != nil {
		return "", err
	}

	if err := i.client.AddSource(ctx, corpusID, podcast.Slug+" transcripts",
		fmt.Sprintf("Episode transcripts for %s", podcast.Slug), transcriptURLs); err != nil {
		return "", err
	}
	if err := i.client.AddSource(ctx, corpusID, podcast.Slug+" summaries",
		fmt.Sprintf("Episode summaries for %s", podcast.Slug), summaryURLs); err != nil {
		return "", err
	}

	podcast.CorpusID = corpusID
	if err := i.repo.SetPodcast(ctx, podcast); err != nil {
		return "", err
	}

	if i.logger != nil {
		i.logger.WithFields(logrus.Fields{
			"podcast":     slug,
			"corpus":      corpusID,
			"transcripts": len(transcriptURLs),
			"summaries":   len(summaryURLs),
		}).Info("indexed podcast corpus")
	}

	return corpusID, nil
}
