// Package retrieval gathers candidate market research sources from the
// DuckDuckGo HTML endpoint. Collected batches are raw input for the
// guardrail evaluator; nothing here is trusted or persisted directly.
package retrieval

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

const (
	defaultBaseURL    = "https://html.duckduckgo.com/html/"
	defaultUserAgent  = "VentureOS/1.0 (+research collector)"
	defaultMaxSources = 16
	// Provider is the identifier recorded alongside collected batches.
	Provider = "duckduckgo_html"
)

// Source is one collected search result.
type Source struct {
	URL        string `json:"url"`
	Title      string `json:"title"`
	Snippet    string `json:"snippet"`
	SourceType string `json:"source_type"`
	Query      string `json:"query"`
}

// CollectInput shapes the queries issued for a niche.
type CollectInput struct {
	Niche      string
	Geo        string
	Language   string
	MaxSources int
}

type Collector struct {
	client    *http.Client
	baseURL   string
	userAgent string
}

// Option adjusts a Collector.
type Option func(*Collector)

// WithBaseURL points the collector at a different HTML endpoint.
func WithBaseURL(base string) Option {
	return func(c *Collector) { c.baseURL = base }
}

// WithHTTPClient swaps the underlying HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Collector) { c.client = client }
}

func NewCollector(opts ...Option) *Collector {
	c := &Collector{
		client:    &http.Client{Timeout: 20 * time.Second},
		baseURL:   defaultBaseURL,
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var resultPattern = regexp.MustCompile(
	`(?s)<a[^>]*class="[^"]*result__a[^"]*"[^>]*href="([^"]+)"[^>]*>(.*?)</a>.*?` +
		`<a[^>]*class="[^"]*result__snippet[^"]*"[^>]*>(.*?)</a>`)

var tagPattern = regexp.MustCompile(`<[^>]+>`)
var spacePattern = regexp.MustCompile(`\s+`)

// Collect issues the standard query set for the niche and returns a
// deduplicated batch capped at MaxSources. Failed queries are skipped;
// the batch is best-effort.
func (c *Collector) Collect(ctx context.Context, input CollectInput) ([]Source, error) {
	if c == nil {
		return nil, fmt.Errorf("collector not initialized")
	}
	niche := strings.TrimSpace(input.Niche)
	if niche == "" {
		return nil, fmt.Errorf("niche is required")
	}
	maxSources := input.MaxSources
	if maxSources <= 0 {
		maxSources = defaultMaxSources
	}

	queries := []string{
		fmt.Sprintf("%s competitors %s", niche, strings.TrimSpace(input.Geo)),
		fmt.Sprintf("%s pricing alternatives %s", niche, strings.TrimSpace(input.Language)),
		fmt.Sprintf("%s reviews users pain points", niche),
		fmt.Sprintf("%s best tools comparison", niche),
	}

	seen := make(map[string]struct{})
	collected := make([]Source, 0, maxSources)
	for _, query := range queries {
		if len(collected) >= maxSources {
			break
		}
		results, err := c.search(ctx, query)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		for _, result := range results {
			if len(collected) >= maxSources {
				break
			}
			if _, dup := seen[result.URL]; dup {
				continue
			}
			seen[result.URL] = struct{}{}
			collected = append(collected, result)
		}
	}
	return collected, nil
}

func (c *Collector) search(ctx context.Context, query string) ([]Source, error) {
	params := url.Values{"q": {query}, "kl": {"wt-wt"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search %q: unexpected status %d", query, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read search response: %w", err)
	}
	return extractResults(string(body), query), nil
}

func extractResults(page, query string) []Source {
	matches := resultPattern.FindAllStringSubmatch(page, -1)
	results := make([]Source, 0, len(matches))
	for _, match := range matches {
		rawURL := html.UnescapeString(match[1])
		title := stripTags(html.UnescapeString(match[2]))
		snippet := stripTags(html.UnescapeString(match[3]))
		if strings.HasPrefix(rawURL, "//") {
			rawURL = "https:" + rawURL
		}
		if rawURL == "" || title == "" || snippet == "" {
			continue
		}
		results = append(results, Source{
			URL:        rawURL,
			Title:      title,
			Snippet:    snippet,
			SourceType: "search",
			Query:      query,
		})
	}
	return results
}

func stripTags(s string) string {
	s = tagPattern.ReplaceAllString(s, "")
	return strings.TrimSpace(spacePattern.ReplaceAllString(s, " "))
}
