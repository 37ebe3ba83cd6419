package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const fixtureHTML = `<!DOCTYPE html>
<html><body>
<div class="result">
  <h2 class="result__title">
    <a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fgo.dev%2F">The Go Programming Language</a>
  </h2>
  <a class="result__snippet" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fgo.dev%2F">Build <b>simple</b>, secure, scalable systems.</a>
</div>
<div class="result">
  <h2 class="result__title">
    <a class="result__a" href="https://golang.org/doc/">Documentation</a>
  </h2>
  <a class="result__snippet" href="https://golang.org/doc/">Learn how to use Go.</a>
</div>
<div class="result">
  <h2 class="result__title">
    <a class="result__a" href="https://en.wikipedia.org/wiki/Go">Go - Wikipedia</a>
  </h2>
</div>
</body></html>`

func TestParseResultsHTML(t *testing.T) {
	t.Parallel()

	results, err := parseResultsHTML([]byte(fixtureHTML), 5)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	if results[0].Title != "The Go Programming Language" {
		t.Errorf("title: got %q", results[0].Title)
	}
	if results[0].URL != "https://go.dev/" {
		t.Errorf("redirect url not unwrapped: got %q", results[0].URL)
	}
	if results[0].Snippet != "Build simple, secure, scalable systems." {
		t.Errorf("snippet: got %q", results[0].Snippet)
	}
	if results[2].Snippet != "" {
		t.Errorf("expected empty snippet for third result, got %q", results[2].Snippet)
	}
}

func TestParseResultsHTMLRespectsMax(t *testing.T) {
	t.Parallel()

	results, err := parseResultsHTML([]byte(fixtureHTML), 1)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
}

func TestSearchFormatsNumberedBlock(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "golang" {
			t.Errorf("query param: got %q", got)
		}
		_, _ = w.Write([]byte(fixtureHTML))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), 5)
	c.baseURL = srv.URL

	out, err := c.Search(context.Background(), "golang")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if !strings.Contains(out, "1. **The Go Programming Language**") {
		t.Errorf("missing first result in output:\n%s", out)
	}
	if !strings.Contains(out, "🔗 https://go.dev/") {
		t.Errorf("missing url in output:\n%s", out)
	}
	if !strings.Contains(out, "3. **Go - Wikipedia**") {
		t.Errorf("missing third result in output:\n%s", out)
	}
}

func TestSearchErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), 5)
	c.baseURL = srv.URL

	if _, err := c.Search(context.Background(), "golang"); err == nil {
		t.Errorf("expected error on http 503")
	}
	if _, err := c.Search(context.Background(), "   "); err == nil {
		t.Errorf("expected error on empty query")
	}
}

func TestSearchEmptyResultsIsError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body>no results here</body></html>"))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), 5)
	c.baseURL = srv.URL

	if _, err := c.Search(context.Background(), "golang"); err == nil {
		t.Errorf("expected error on empty result set")
	}
}
