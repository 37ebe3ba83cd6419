// Package search queries the DuckDuckGo HTML endpoint and formats the
// top results as a text block for the model to summarise.
package search

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const (
	defaultBaseURL    = "https://html.duckduckgo.com/html/"
	defaultMaxResults = 5
	requestTimeout    = 20 * time.Second
	maxBodyBytes      = 2 * 1024 * 1024
)

type Result struct {
	Title   string
	URL     string
	Snippet string
}

type Client struct {
	http       *http.Client
	baseURL    string
	userAgent  string
	maxResults int
}

// NewClient builds a search client on top of the shared HTTP client.
func NewClient(httpClient *http.Client, maxResults int) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	return &Client{
		http:       httpClient,
		baseURL:    defaultBaseURL,
		userAgent:  "aria/1.0 (+https://github.com/halcyonic/aria)",
		maxResults: maxResults,
	}
}

// Search runs the query and returns a numbered block of results
// (title, snippet, URL). It fails on transport errors, non-2xx
// responses, and empty result sets.
func (c *Client) Search(ctx context.Context, query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", fmt.Errorf("empty search query")
	}

	base, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid search base url: %w", err)
	}
	u := *base
	qs := u.Query()
	qs.Set("q", query)
	u.RawQuery = qs.Encode()

	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("search http %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read search response: %w", err)
	}

	results, err := parseResultsHTML(body, c.maxResults)
	if err != nil {
		return "", fmt.Errorf("parse search response: %w", err)
	}
	if len(results) == 0 {
		return "", fmt.Errorf("no results for %q", query)
	}
	return formatResults(results), nil
}

func formatResults(results []Result) string {
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		snippet := r.Snippet
		if snippet == "" {
			snippet = "No description"
		}
		fmt.Fprintf(&b, "%d. **%s**\n   %s\n   🔗 %s", i+1, r.Title, snippet, r.URL)
	}
	return b.String()
}

// parseResultsHTML pulls result titles, links and snippets out of the
// DuckDuckGo HTML page. Title links look like
// <a class="result__a" href="...">Title</a>; snippets carry the
// result__snippet class and are paired with the preceding title.
func parseResultsHTML(htmlBytes []byte, maxResults int) ([]Result, error) {
	root, err := html.Parse(bytes.NewReader(htmlBytes))
	if err != nil {
		return nil, err
	}

	var out []Result

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n == nil {
			return
		}

		if n.Type == html.ElementNode && n.Data == "a" && hasClass(n, "result__a") && len(out) < maxResults {
			href := attr(n, "href")
			title := strings.TrimSpace(textContent(n))
			if href != "" && title != "" {
				out = append(out, Result{
					Title: title,
					URL:   normalizeResultURL(href),
				})
			}
		}

		if n.Type == html.ElementNode && hasClass(n, "result__snippet") && len(out) > 0 {
			if last := &out[len(out)-1]; last.Snippet == "" {
				last.Snippet = strings.TrimSpace(textContent(n))
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	return out, nil
}

// normalizeResultURL unwraps DuckDuckGo redirect links of the form
// /l/?uddg=<encoded> into the target URL.
func normalizeResultURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}

	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if strings.HasSuffix(u.Path, "/l/") {
		if uddg := u.Query().Get("uddg"); uddg != "" {
			if decoded, err := url.QueryUnescape(uddg); err == nil && decoded != "" {
				return decoded
			}
		}
	}
	if u.Scheme == "" && strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	return href
}

func hasClass(n *html.Node, want string) bool {
	for _, part := range strings.Fields(attr(n, "class")) {
		if part == want {
			return true
		}
	}
	return false
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(x *html.Node) {
		if x == nil {
			return
		}
		if x.Type == html.TextNode {
			b.WriteString(x.Data)
		}
		for c := x.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
