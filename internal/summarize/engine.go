package summarize

import (
	"context"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"github.com/fixie-ai/podverse/internal/llm"
)

const (
	defaultTokenBudget = 4000
	defaultMaxRounds   = 10
)

// Summarizer produces a natural-language summary of arbitrary-length text.
type Summarizer interface {
	Summarize(ctx context.Context, text string, ref Reference) (string, error)
}

// Options configures the Engine.
type Options struct {
	Completer llm.Completer
	Logger    *logrus.Logger
	// TokenBudget is the per-call budget L; all comparisons use the
	// len/4 heuristic, not an exact tokenizer.
	TokenBudget int
	// MaxRounds bounds the reduction loop. The loop only converges if each
	// round's output is materially shorter than its input, which the
	// completion service does not guarantee; past the bound the working
	// text is truncated to the budget and summarized terminally.
	MaxRounds int
}

// Engine is an iterative map-reduce summarizer. Text over the token budget is
// split into line-bounded chunks, each chunk summarized concurrently, the
// results concatenated in order, and the loop repeated until the working text
// fits the budget. A final completion over the fitting text produces the
// result.
type Engine struct {
	completer llm.Completer
	logger    *logrus.Logger
	budget    int
	maxRounds int
}

var _ Summarizer = (*Engine)(nil)

// NewEngine constructs a summarization Engine.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Completer == nil {
		return nil, eris.New("completer is required")
	}

	budget := opts.TokenBudget
	if budget <= 0 {
		budget = defaultTokenBudget
	}

	maxRounds := opts.MaxRounds
	if maxRounds <= 0 {
		maxRounds = defaultMaxRounds
	}

	return &Engine{
		completer: opts.Completer,
		logger:    opts.Logger,
		budget:    budget,
		maxRounds: maxRounds,
	}, nil
}

// tokenLen approximates token count as character count divided by four.
func tokenLen(text string) int {
	return len(text) / 4
}

// Summarize reduces text to a single summary bounded by the engine's token
// budget.
func (e *Engine) Summarize(ctx context.Context, text string, ref Reference) (string, error) {
	working := strings.TrimSpace(text)
	if working == "" {
		return "", eris.New("text to summarize is empty")
	}

	for round := 0; ; round++ {
		if tokenLen(working) <= e.budget {
			return e.completer.Complete(ctx, finalInstruction(ref), working)
		}

		if round >= e.maxRounds {
			// Reduction did not converge. Truncate instead of looping
			// forever; len/4 heuristic makes budget*4 the character cap.
			if e.logger != nil {
				e.logger.WithFields(logrus.Fields{
					"rounds":    round,
					"token_len": tokenLen(working),
				}).Warn("summarization did not converge, truncating to budget")
			}
			working = working[:e.budget*4]
			return e.completer.Complete(ctx, finalInstruction(ref), working)
		}

		chunks := chunkLines(working, e.budget)

		instruction := reduceInstruction()
		if round == 0 {
			instruction = segmentInstruction(ref)
		}

		summaries, err := e.mapChunks(ctx, instruction, chunks)
		if err != nil {
			return "", err
		}

		if e.logger != nil {
			e.logger.WithFields(logrus.Fields{
				"round":  round,
				"chunks": len(chunks),
			}).Debug("reduced summarization round")
		}

		working = strings.Join(summaries, "\n")
	}
}

// mapChunks summarizes every chunk concurrently, preserving input order. The
// chunks share no mutable state, so each gets its own goroutine; the join is
// the synchronization barrier before the next reduction round.
func (e *Engine) mapChunks(ctx context.Context, instruction string, chunks []string) ([]string, error) {
	summaries := make([]string, len(chunks))
	errs := make([]error, len(chunks))

	var wg sync.WaitGroup
	for i, chunk := range chunks {
		wg.Add(1)
		go func(i int, chunk string) {
			defer wg.Done()
			summary, err := e.completer.Complete(ctx, instruction, chunk)
			if err != nil {
				errs[i] = eris.Wrapf(err, "summarizing chunk %d of %d", i+1, len(chunks))
				return
			}
			summaries[i] = summary
		}(i, chunk)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	return summaries, nil
}

// chunkLines splits text into chunks of non-empty lines, greedily filling
// each chunk up to the token budget. A chunk is flushed before a line that
// would push it over; a single line over the budget still becomes its own
// chunk. Non-empty input always yields at least one chunk, and joining the
// chunks with newlines reconstructs the original non-empty-line sequence.
func chunkLines(text string, budget int) []string {
	var chunks []string
	var current []string
	currentLen := 0

	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}

		lineLen := tokenLen(line)
		if len(current) > 0 && currentLen+lineLen > budget {
			chunks = append(chunks, strings.Join(current, "\n"))
			current = nil
			currentLen = 0
		}

		current = append(current, line)
		currentLen += lineLen
	}

	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, "\n"))
	}

	return chunks
}
