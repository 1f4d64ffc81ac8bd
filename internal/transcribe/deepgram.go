package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
)

// Transcriber is the audio-to-text collaborator contract.
type Transcriber interface {
	Transcribe(ctx context.Context, audioURL string) (string, error)
}

const (
	defaultDeepgramBaseURL = "https://api.deepgram.com"
	deepgramModel          = "nova"
	transcribeTimeout      = 15 * time.Minute
)

// DeepgramOptions configures the Deepgram-backed transcriber.
type DeepgramOptions struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	Logger     *logrus.Logger
}

// Deepgram transcribes prerecorded audio through the Deepgram REST API.
type Deepgram struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *logrus.Logger
}

var _ Transcriber = (*Deepgram)(nil)

// NewDeepgram constructs a Deepgram transcriber.
func NewDeepgram(opts DeepgramOptions) (*Deepgram, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, eris.New("deepgram api key is required")
	}

	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultDeepgramBaseURL
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: transcribeTimeout}
	}

	return &Deepgram{
		apiKey:     opts.APIKey,
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     opts.Logger,
	}, nil
}

type transcriptionResponse struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string `json:"transcript"`
				Paragraphs struct {
					Transcript string `json:"transcript"`
				} `json:"paragraphs"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// Transcribe submits the audio URL for prerecorded transcription and returns
// the transcript text, preferring the paragraph-formatted variant.
func (d *Deepgram) Transcribe(ctx context.Context, audioURL string) (string, error) {
	if strings.TrimSpace(audioURL) == "" {
		return "", eris.New("audio url is required")
	}

	query := url.Values{}
	query.Set("model", deepgramModel)
	query.Set("smart_format", "true")
	query.Set("punctuate", "true")
	query.Set("diarize", "true")
	query.Set("paragraphs", "true")
	endpoint := d.baseURL + "/v1/listen?" + query.Encode()

	payload, err := json.Marshal(map[string]string{"url": audioURL})
	if err != nil {
		return "", eris.Wrap(err, "encoding transcription request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", eris.Wrap(err, "building transcription request")
	}
	req.Header.Set("Authorization", "Token "+d.apiKey)
	req.Header.Set("Content-Type", "application/json")

	if d.logger != nil {
		d.logger.WithField("audio_url", audioURL).Info("transcribing audio")
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", eris.Wrapf(err, "transcribing: %s", audioURL)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrap(err, "reading transcription response")
	}

	if resp.StatusCode != http.StatusOK {
		return "", eris.Errorf("transcription service returned %d: %s", resp.StatusCode, truncateBody(body))
	}

	var decoded transcriptionResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", eris.Wrap(err, "decoding transcription response")
	}

	transcript := extractTranscript(decoded)
	if transcript == "" {
		return "", eris.Errorf("transcription response carried no transcript for %s", audioURL)
	}

	return transcript, nil
}

func extractTranscript(decoded transcriptionResponse) string {
	if len(decoded.Results.Channels) == 0 {
		return ""
	}
	alternatives := decoded.Results.Channels[0].Alternatives
	if len(alternatives) == 0 {
		return ""
	}

	best := alternatives[0]
	if best.Paragraphs.Transcript != "" {
		return best.Paragraphs.Transcript
	}
	return best.Transcript
}

func truncateBody(body []byte) string {
	const limit = 512
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
