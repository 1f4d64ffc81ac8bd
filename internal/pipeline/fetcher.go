package pipeline

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

// TextFetcher retrieves stored text by URL; summarization re-reads the
// transcript from durable storage rather than keeping it in memory between
// runs.
type TextFetcher interface {
	FetchText(ctx context.Context, url string) (string, error)
}

const textFetchTimeout = time.Minute

// HTTPTextFetcher fetches text documents over HTTP.
type HTTPTextFetcher struct {
	Client *http.Client
}

var _ TextFetcher = (*HTTPTextFetcher)(nil)

// FetchText downloads the document at url.
func (f *HTTPTextFetcher) FetchText(ctx context.Context, url string) (string, error) {
	client := f.Client
	if client == nil {
		client = &http.Client{Timeout: textFetchTimeout}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", eris.Wrapf(err, "building text fetch request: %s", url)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", eris.Wrapf(err, "fetching text: %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", eris.Errorf("text fetch returned %d for %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrapf(err, "reading text body: %s", url)
	}

	return string(body), nil
}
