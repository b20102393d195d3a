package fetch

import (
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
)

// minTextLength filters out pages where readability extracted only
// boilerplate.
const minTextLength = 100

// ContentFetcher fetches full article text via HTTP + readability
// extraction. A fetcher remembers domains that returned HTTP errors and
// skips further URLs from them, so one fetcher should live for one
// ingestion cycle.
type ContentFetcher struct {
	client        *http.Client
	failedDomains map[string]struct{}
}

// NewContentFetcher creates a new content fetcher.
func NewContentFetcher(timeout time.Duration) *ContentFetcher {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &ContentFetcher{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		failedDomains: make(map[string]struct{}),
	}
}

// FetchText downloads a page and extracts its readable text. It returns
// an empty string when the page yields no usable content; that is not an
// error.
func (f *ContentFetcher) FetchText(articleURL string) (string, error) {
	u, _ := url.Parse(articleURL)
	domain := ""
	if u != nil {
		domain = strings.ToLower(u.Host)
	}
	if _, failed := f.failedDomains[domain]; failed {
		return "", nil
	}

	req, err := http.NewRequest(http.MethodGet, articleURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "signalwatch/1.0 (news scanner)")

	resp, err := f.client.Do(req)
	if err != nil {
		// Connection errors are soft failures.
		return "", nil
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		if domain != "" {
			f.failedDomains[domain] = struct{}{}
		}
		return "", &httpError{code: resp.StatusCode}
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil
	}

	parsedURL, _ := url.Parse(articleURL)
	article, err := readability.FromReader(strings.NewReader(string(bodyBytes)), parsedURL)
	if err != nil {
		return "", nil
	}

	text := strings.TrimSpace(article.TextContent)
	if len(text) > minTextLength {
		return text, nil
	}
	return "", nil
}

type httpError struct {
	code int
}

func (e *httpError) Error() string {
	return http.StatusText(e.code)
}
