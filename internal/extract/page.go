// Package extract turns web pages and PDF documents into bounded
// plain-text excerpts for model consumption.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const (
	// maxPageChars bounds the excerpt so prompt token usage stays
	// predictable.
	maxPageChars = 6000

	fetchTimeout = 30 * time.Second
	maxBodyBytes = 4 * 1024 * 1024
)

// Tags whose subtree is navigation or boilerplate, not page content.
var skipTags = map[string]bool{
	"script": true,
	"style":  true,
	"nav":    true,
	"footer": true,
	"header": true,
	"aside":  true,
}

var blankLines = regexp.MustCompile(`\n{3,}`)

type Client struct {
	http      *http.Client
	userAgent string
}

// NewClient builds a page extractor on top of the shared HTTP client.
func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: fetchTimeout}
	}
	return &Client{
		http: httpClient,
		userAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
			"AppleWebKit/537.36 (KHTML, like Gecko) " +
			"Chrome/120.0.0.0 Safari/537.36",
	}
}

// Page fetches a URL and returns its readable text, capped at
// maxPageChars. Non-text content types, empty pages and transport
// failures are errors; the caller decides whether that aborts the
// request or just drops the enrichment.
func (c *Client) Page(ctx context.Context, pageURL string) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request for %s: %w", pageURL, err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetch %s: http %d", pageURL, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	isHTML := strings.Contains(contentType, "text/html")
	isPlain := strings.Contains(contentType, "text/plain")
	if !isHTML && !isPlain {
		return "", fmt.Errorf("unsupported content type %q for %s", contentType, pageURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", pageURL, err)
	}

	var text string
	if isPlain {
		text = string(body)
	} else {
		text, err = textFromHTML(body)
		if err != nil {
			return "", fmt.Errorf("parse %s: %w", pageURL, err)
		}
	}

	text = blankLines.ReplaceAllString(strings.TrimSpace(text), "\n\n")
	if text == "" {
		return "", fmt.Errorf("no readable text at %s", pageURL)
	}
	return truncate(text, maxPageChars), nil
}

// textFromHTML walks the document tree, skipping boilerplate subtrees,
// and joins the remaining text nodes line by line.
func textFromHTML(htmlBytes []byte) (string, error) {
	root, err := html.Parse(bytes.NewReader(htmlBytes))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n == nil {
			return
		}
		if n.Type == html.ElementNode && skipTags[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			if line := strings.TrimSpace(n.Data); line != "" {
				b.WriteString(line)
				b.WriteByte('\n')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	return b.String(), nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	// Back off to a rune boundary so truncation never splits a
	// character.
	cut := max
	for cut > 0 && (s[cut]&0xC0) == 0x80 {
		cut--
	}
	return s[:cut]
}
