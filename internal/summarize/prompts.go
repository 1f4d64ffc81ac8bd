package summarize

import (
	"fmt"
	"strings"
)

// Reference names the podcast and episode a text belongs to. It only enriches
// prompt wording; the algorithm ignores it.
type Reference struct {
	PodcastTitle string
	EpisodeTitle string
}

const promptGrounding = "Only use the information provided in the text; DO NOT use any information you know about the world."

// finalInstruction is the terminal template: one completion over text that
// already fits the token budget.
func finalInstruction(ref Reference) string {
	subject := "the supplied text"
	switch {
	case ref.PodcastTitle != "" && ref.EpisodeTitle != "":
		subject = fmt.Sprintf("the episode %q of the podcast %q", ref.EpisodeTitle, ref.PodcastTitle)
	case ref.PodcastTitle != "":
		subject = fmt.Sprintf("an episode of the podcast %q", ref.PodcastTitle)
	}

	return strings.Join([]string{
		fmt.Sprintf("The text below covers %s.", subject),
		"Write a clear summary of a few sentences capturing its main topics and conclusions.",
		promptGrounding,
	}, " ")
}

// segmentInstruction is the map template for the first round, when chunks are
// raw transcript segments.
func segmentInstruction(ref Reference) string {
	subject := "a longer transcript"
	if ref.PodcastTitle != "" {
		subject = fmt.Sprintf("a longer transcript of the podcast %q", ref.PodcastTitle)
	}

	return strings.Join([]string{
		fmt.Sprintf("The text below is one segment of %s.", subject),
		"Summarize this segment into a few sentences, keeping speaker attributions where they matter.",
		promptGrounding,
	}, " ")
}

// reduceInstruction is the map template for later rounds, when chunks are
// already-summarized text.
func reduceInstruction() string {
	return strings.Join([]string{
		"The text below is a series of partial summaries of a longer document.",
		"Condense them into a shorter combined summary, preserving the order of topics.",
		promptGrounding,
	}, " ")
}
