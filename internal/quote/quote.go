// Package quote fetches the filler text used by the alternative message shape
// from a quote-of-the-day HTTP API.
package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shineum/slurpgen/internal/failure"
)

// DefaultURL is the quote endpoint used when none is configured.
const DefaultURL = "http://www.iheartquotes.com/api/v1/random?format=json"

// separator divides the quote body from its attribution.
const separator = "--"

// UnknownAttribution is used when the raw quote carries no attribution.
const UnknownAttribution = "Unknown"

// maxResponseSize caps how much of the response body is read.
const maxResponseSize = 1 << 20

// Quote is a short decorative text and who said it.
type Quote struct {
	Text        string
	Attribution string
}

// Fallback is returned when the service answers with an empty quote, and
// is what callers substitute when a fetch fails.
var Fallback = Quote{Text: "No quote", Attribution: "Adam Presley"}

// Parse splits a raw quote string on "--" into text and attribution.
func Parse(raw string) Quote {
	segments := strings.Split(raw, separator)

	q := Quote{
		Text:        strings.TrimSpace(segments[0]),
		Attribution: UnknownAttribution,
	}
	if len(segments) > 1 {
		q.Attribution = strings.TrimSpace(segments[1])
	}
	return q
}

// Fetcher retrieves quotes from a remote JSON endpoint.
type Fetcher struct {
	url        string
	httpClient *http.Client
}

// New creates a Fetcher for the given endpoint. A zero timeout leaves the
// HTTP client without one.
func New(url string, timeout time.Duration) *Fetcher {
	if url == "" {
		url = DefaultURL
	}
	return &Fetcher{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// newWithClient creates a Fetcher with a custom HTTP client, used for testing.
func newWithClient(url string, client *http.Client) *Fetcher {
	return &Fetcher{url: url, httpClient: client}
}

// response is the subset of the quote API document we read.
type response struct {
	Quote *string `json:"quote"`
}

// Fetch issues one GET against the endpoint and parses the quote field.
// It fails with a failure.Network error when the call cannot complete and a
// failure.Format error when the body is not JSON or has no quote field.
func (f *Fetcher) Fetch(ctx context.Context) (Quote, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return Quote{}, failure.New(failure.Network, "build quote request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return Quote{}, failure.New(failure.Network, "fetch quote", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Quote{}, failure.WithCode(failure.Network, "fetch quote", resp.StatusCode,
			fmt.Errorf("unexpected HTTP status %s", resp.Status))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return Quote{}, failure.New(failure.Network, "read quote response", err)
	}

	var doc response
	if err := json.Unmarshal(body, &doc); err != nil {
		return Quote{}, failure.New(failure.Format, "decode quote response", err)
	}
	if doc.Quote == nil {
		return Quote{}, failure.New(failure.Format, "decode quote response",
			fmt.Errorf("response has no quote field"))
	}
	if strings.TrimSpace(*doc.Quote) == "" {
		return Fallback, nil
	}

	return Parse(*doc.Quote), nil
}
