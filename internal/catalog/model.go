package catalog

import "time"

// Podcast is the aggregate root for a show in the catalog. Episodes are
// stored as independent records keyed under the podcast slug and cannot
// outlive it.
type Podcast struct {
	// Slug is derived from the title once at first ingestion and never
	// recomputed on refresh.
	Slug        string `json:"slug" yaml:"slug"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Link        string `json:"link,omitempty" yaml:"link,omitempty"`
	RSSURL      string `json:"rssUrl,omitempty" yaml:"rssUrl,omitempty"`
	ImageURL    string `json:"imageUrl,omitempty" yaml:"imageUrl,omitempty"`
	// CorpusID is assigned by the external index service, never by a feed.
	CorpusID         string   `json:"corpusId,omitempty" yaml:"corpusId,omitempty"`
	SuggestedQueries []string `json:"suggestedQueries,omitempty" yaml:"suggestedQueries,omitempty"`
}

// Episode is a single entry of a podcast. Its identity across feed refreshes
// is the canonical URL, not the slug: titles get reformatted upstream and
// would derive a different slug for the same item.
type Episode struct {
	Slug        string `json:"slug" yaml:"slug"`
	PodcastSlug string `json:"podcastSlug" yaml:"podcastSlug"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	// URL is the canonical episode link used as the cross-refresh
	// identity key.
	URL      string     `json:"url,omitempty" yaml:"url,omitempty"`
	ImageURL string     `json:"imageUrl,omitempty" yaml:"imageUrl,omitempty"`
	AudioURL string     `json:"audioUrl,omitempty" yaml:"audioUrl,omitempty"`
	PubDate  *time.Time `json:"pubDate,omitempty" yaml:"pubDate,omitempty"`
	// TranscriptURL is set only after a successful transcription.
	TranscriptURL string `json:"transcriptUrl,omitempty" yaml:"transcriptUrl,omitempty"`
	// SummaryURL is set only after a successful summarization, which
	// requires TranscriptURL to already be present.
	SummaryURL       string   `json:"summaryUrl,omitempty" yaml:"summaryUrl,omitempty"`
	SuggestedQueries []string `json:"suggestedQueries,omitempty" yaml:"suggestedQueries,omitempty"`
}

// Transcribed reports whether the episode has a stored transcript.
func (e Episode) Transcribed() bool {
	return e.TranscriptURL != ""
}

// Summarized reports whether the episode has a stored summary.
func (e Episode) Summarized() bool {
	return e.SummaryURL != ""
}
