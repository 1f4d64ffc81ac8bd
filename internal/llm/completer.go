package llm

import (
	"context"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/shared"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
)

// Completer is the text-completion collaborator contract: a system
// instruction plus user content in, generated text out. No streaming.
type Completer interface {
	Complete(ctx context.Context, systemInstruction, userContent string) (string, error)
}

// CompleterOptions configures the chat-backed completer.
type CompleterOptions struct {
	Client      *Client
	Model       string
	Temperature float64
}

type chatCompleter struct {
	client      *Client
	logger      *logrus.Logger
	model       string
	temperature float64
}

const defaultCompleterTemperature = 0.3

// NewCompleter constructs a Completer backed by the chat completion API.
func NewCompleter(opts CompleterOptions) (Completer, error) {
	if opts.Client == nil {
		return nil, eris.New("llm client is required")
	}

	model := strings.TrimSpace(opts.Model)
	if model == "" {
		return nil, eris.New("completer model is required")
	}

	temperature := opts.Temperature
	if temperature <= 0 {
		temperature = defaultCompleterTemperature
	}

	return &chatCompleter{
		client:      opts.Client,
		logger:      opts.Client.logger,
		model:       model,
		temperature: temperature,
	}, nil
}

func (c *chatCompleter) Complete(ctx context.Context, systemInstruction, userContent string) (string, error) {
	if strings.TrimSpace(userContent) == "" {
		return "", eris.New("user content is required")
	}

	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemInstruction),
			openai.UserMessage(userContent),
		},
		Temperature: openai.Float(c.temperature),
	}

	completion, err := c.client.chat.New(ctx, params)
	if err != nil {
		c.logError(err, "requesting chat completion")
		return "", eris.Wrap(err, "requesting chat completion")
	}

	if len(completion.Choices) == 0 {
		err := eris.New("llm completion returned no choices")
		c.logError(err, "processing chat completion")
		return "", err
	}

	choice := completion.Choices[0]
	if reason := strings.TrimSpace(choice.FinishReason); strings.EqualFold(reason, "content_filter") {
		err := eris.New("llm blocked the request via content filter")
		c.logError(err, "completion blocked")
		return "", err
	}

	if refusal := strings.TrimSpace(choice.Message.Refusal); refusal != "" {
		err := eris.Errorf("llm refused to generate content: %s", refusal)
		c.logError(err, "completion refused")
		return "", err
	}

	content := strings.TrimSpace(choice.Message.Content)
	if content == "" {
		err := eris.New("llm response content is empty")
		c.logError(err, "processing chat completion")
		return "", err
	}

	return content, nil
}

func (c *chatCompleter) logError(err error, message string) {
	if c.logger == nil || err == nil {
		return
	}
	c.logger.WithField("error", err.Error()).Error(message)
}
