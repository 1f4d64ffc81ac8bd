package corpus

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
)

// Client is the external search/index service contract.
type Client interface {
	// CreateCorpus registers a new corpus and returns its identifier.
	CreateCorpus(ctx context.Context, name, description string) (string, error)
	// AddSource attaches a named set of document URLs to a corpus.
	AddSource(ctx context.Context, corpusID, name, description string, urls []string) error
}

const corpusRequestTimeout = time.Minute

// HTTPOptions configures the REST corpus client.
type HTTPOptions struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Logger     *logrus.Logger
}

// HTTPClient talks to the corpus service over its REST API.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *logrus.Logger
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient constructs a REST corpus client.
func NewHTTPClient(opts HTTPOptions) (*HTTPClient, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, eris.New("corpus api url is required")
	}
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, eris.New("corpus api key is required")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: corpusRequestTimeout}
	}

	return &HTTPClient{
		baseURL:    baseURL,
		apiKey:     opts.APIKey,
		httpClient: httpClient,
		logger:     opts.Logger,
	}, nil
}

// CreateCorpus registers a new corpus and returns its identifier.
func (c *HTTPClient) CreateCorpus(ctx context.Context, name, description string) (string, error) {
	payload := map[string]string{"name": name, "description": description}

	var response struct {
		CorpusID string `json:"corpusId"`
	}
	if err := c.post(ctx, "/corpora", payload, &response); err != nil {
		return "", eris.Wrapf(err, "creating corpus: %s", name)
	}
	if response.CorpusID == "" {
		return "", eris.Errorf("corpus service returned no id for: %s", name)
	}

	return response.CorpusID, nil
}

// AddSource attaches a named set of document URLs to a corpus.
func (c *HTTPClient) AddSource(ctx context.Context, corpusID, name, description string, urls []string) error {
	payload := map[string]any{
		"name":        name,
		"description": description,
		"urls":        urls,
	}

	if err := c.post(ctx, "/corpora/"+corpusID+"/sources", payload, nil); err != nil {
		return eris.Wrapf(err, "adding corpus source: %s", name)
	}
	return nil
}

func (c *HTTPClient) post(ctx context.Context, path string, payload any, out any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return eris.Wrap(err, "encoding request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return eris.Wrap(err, "building request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return eris.Wrapf(err, "calling corpus service: %s", path)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "reading corpus response")
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return eris.Errorf("corpus service returned %d for %s: %s", resp.StatusCode, path, body)
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return eris.Wrap(err, "decoding corpus response")
		}
	}

	return nil
}
