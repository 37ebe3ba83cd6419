package bot

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/halcyonic/aria/internal/history"
	"github.com/halcyonic/aria/internal/persona"
	"github.com/halcyonic/aria/llm"
)

type fakeLLM struct {
	reply   string
	err     error
	calls   int
	lastReq llm.Request
}

func (f *fakeLLM) Chat(_ context.Context, req llm.Request) (llm.Result, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return llm.Result{}, f.err
	}
	return llm.Result{Text: f.reply}, nil
}

type fakeFetcher struct {
	pages map[string]string
	err   error
	calls int
}

func (f *fakeFetcher) Page(_ context.Context, url string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.pages[url], nil
}

type fakeSearcher struct {
	results string
	err     error
}

func (f *fakeSearcher) Search(_ context.Context, query string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.results, nil
}

func newTestResponder(t *testing.T, client llm.Client, fetcher Fetcher, searcher Searcher) (*Responder, *history.Store) {
	t.Helper()
	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"), 15)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return NewResponder(store, client, fetcher, searcher, persona.Default(), "gemini-2.0-flash", nil), store
}

func lastUserTurn(t *testing.T, req llm.Request) llm.Message {
	t.Helper()
	if len(req.Messages) == 0 {
		t.Fatal("model received no messages")
	}
	return req.Messages[len(req.Messages)-1]
}

func TestTextPersistsRawTurnNotEnrichment(t *testing.T) {
	t.Parallel()
	client := &fakeLLM{reply: "that page is about pelicans"}
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://example.com/a": "All about pelicans.",
	}}
	r, store := newTestResponder(t, client, fetcher, nil)

	text := "summarise https://example.com/a please"
	reply, err := r.Text(context.Background(), 7, text)
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	if reply != client.reply {
		t.Fatalf("reply = %q, want %q", reply, client.reply)
	}

	modelTurn := lastUserTurn(t, client.lastReq)
	if !strings.Contains(modelTurn.Content, "All about pelicans.") {
		t.Errorf("model turn missing extracted page content: %q", modelTurn.Content)
	}

	hist, err := store.History(context.Background(), 7)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 2 {
		t.Fatalf("history length = %d, want 2", len(hist))
	}
	if hist[0].Content != text {
		t.Errorf("stored user turn = %q, want raw input %q", hist[0].Content, text)
	}
	if hist[1].Role != llm.RoleAssistant || hist[1].Content != client.reply {
		t.Errorf("stored assistant turn = %+v", hist[1])
	}
}

func TestTextFetchFailureIsDropped(t *testing.T) {
	t.Parallel()
	client := &fakeLLM{reply: "ok"}
	fetcher := &fakeFetcher{err: errors.New("connection refused")}
	r, _ := newTestResponder(t, client, fetcher, nil)

	text := "look at https://example.com/down"
	if _, err := r.Text(context.Background(), 1, text); err != nil {
		t.Fatalf("Text: %v", err)
	}
	if got := lastUserTurn(t, client.lastReq).Content; got != text {
		t.Errorf("model turn = %q, want unenriched %q", got, text)
	}
}

func TestTextFetchesAtMostTwoURLs(t *testing.T) {
	t.Parallel()
	client := &fakeLLM{reply: "ok"}
	fetcher := &fakeFetcher{pages: map[string]string{}}
	r, _ := newTestResponder(t, client, fetcher, nil)

	text := "see https://a.example https://b.example https://c.example"
	if _, err := r.Text(context.Background(), 1, text); err != nil {
		t.Fatalf("Text: %v", err)
	}
	if fetcher.calls != 2 {
		t.Errorf("fetch calls = %d, want 2", fetcher.calls)
	}
}

func TestModelFailurePersistsNothing(t *testing.T) {
	t.Parallel()
	client := &fakeLLM{err: errors.New("quota exceeded")}
	r, store := newTestResponder(t, client, nil, nil)

	_, err := r.Text(context.Background(), 3, "hello")
	if !errors.Is(err, ErrModel) {
		t.Fatalf("err = %v, want ErrModel", err)
	}
	hist, err := store.History(context.Background(), 3)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 0 {
		t.Errorf("history length = %d after failed exchange, want 0", len(hist))
	}
}

func TestPhotoStoresEventNotBytes(t *testing.T) {
	t.Parallel()
	client := &fakeLLM{reply: "a cat on a sofa"}
	r, store := newTestResponder(t, client, nil, nil)

	reply, err := r.Photo(context.Background(), 5, []byte{0xff, 0xd8}, "image/jpeg", "what is this?")
	if err != nil {
		t.Fatalf("Photo: %v", err)
	}
	if reply != "a cat on a sofa" {
		t.Fatalf("reply = %q", reply)
	}
	if len(client.lastReq.Media) != 1 || client.lastReq.Media[0].MIMEType != "image/jpeg" {
		t.Errorf("media = %+v, want one image/jpeg attachment", client.lastReq.Media)
	}

	hist, _ := store.History(context.Background(), 5)
	if len(hist) != 2 {
		t.Fatalf("history length = %d, want 2", len(hist))
	}
	want := "[Sent a photo]: what is this?"
	if hist[0].Content != want {
		t.Errorf("stored turn = %q, want %q", hist[0].Content, want)
	}
}

func TestVoiceDefaultsMIMEType(t *testing.T) {
	t.Parallel()
	client := &fakeLLM{reply: "you said hi"}
	r, _ := newTestResponder(t, client, nil, nil)

	if _, err := r.Voice(context.Background(), 5, []byte{1, 2}, ""); err != nil {
		t.Fatalf("Voice: %v", err)
	}
	if got := client.lastReq.Media[0].MIMEType; got != "audio/ogg" {
		t.Errorf("mime = %q, want audio/ogg", got)
	}
	if !strings.Contains(lastUserTurn(t, client.lastReq).Content, "Transcription") {
		t.Error("voice model turn missing transcription instruction")
	}
}

func TestDocumentExtractionFailure(t *testing.T) {
	t.Parallel()
	client := &fakeLLM{reply: "unreachable"}
	r, store := newTestResponder(t, client, nil, nil)
	r.pdfText = func([]byte) (string, error) {
		return "", errors.New("no extractable text")
	}

	_, err := r.Document(context.Background(), 9, "scan.pdf", []byte("%PDF"), "")
	if !errors.Is(err, ErrDocumentText) {
		t.Fatalf("err = %v, want ErrDocumentText", err)
	}
	if client.calls != 0 {
		t.Errorf("model invoked %d times after failed extraction, want 0", client.calls)
	}
	hist, _ := store.History(context.Background(), 9)
	if len(hist) != 0 {
		t.Errorf("history length = %d, want 0", len(hist))
	}
}

func TestDocumentPromptAndStoredTurn(t *testing.T) {
	t.Parallel()
	client := &fakeLLM{reply: "the report says sales are up"}
	r, store := newTestResponder(t, client, nil, nil)
	r.pdfText = func([]byte) (string, error) {
		return "Q3 sales rose 12%.", nil
	}

	if _, err := r.Document(context.Background(), 9, "report.pdf", []byte("%PDF"), "summarise this"); err != nil {
		t.Fatalf("Document: %v", err)
	}
	modelTurn := lastUserTurn(t, client.lastReq).Content
	if !strings.Contains(modelTurn, "Q3 sales rose 12%.") {
		t.Errorf("model turn missing document text: %q", modelTurn)
	}
	if !strings.Contains(modelTurn, "summarise this") {
		t.Errorf("model turn missing caption: %q", modelTurn)
	}

	hist, _ := store.History(context.Background(), 9)
	if len(hist) != 2 || !strings.HasPrefix(hist[0].Content, "[Sent PDF: report.pdf]") {
		t.Errorf("stored turn = %+v", hist)
	}
}

func TestSearchQueryStoresCommandTurn(t *testing.T) {
	t.Parallel()
	client := &fakeLLM{reply: "Go 1.24 was released in February 2025"}
	searcher := &fakeSearcher{results: "1. **Go 1.24 released**\n   ...\n   🔗 https://go.dev/blog"}
	r, store := newTestResponder(t, client, nil, searcher)

	reply, err := r.SearchQuery(context.Background(), 4, "go 1.24 release")
	if err != nil {
		t.Fatalf("SearchQuery: %v", err)
	}
	if reply != client.reply {
		t.Fatalf("reply = %q", reply)
	}
	if !strings.Contains(lastUserTurn(t, client.lastReq).Content, "Go 1.24 released") {
		t.Error("model turn missing search results")
	}

	hist, _ := store.History(context.Background(), 4)
	if len(hist) != 2 || hist[0].Content != "/search go 1.24 release" {
		t.Errorf("stored turn = %+v, want the command as typed", hist)
	}
}

func TestSearchFailure(t *testing.T) {
	t.Parallel()
	client := &fakeLLM{reply: "unreachable"}
	searcher := &fakeSearcher{err: errors.New("status 503")}
	r, _ := newTestResponder(t, client, nil, searcher)

	_, err := r.SearchQuery(context.Background(), 4, "anything")
	if !errors.Is(err, ErrSearchFailed) {
		t.Fatalf("err = %v, want ErrSearchFailed", err)
	}
	if client.calls != 0 {
		t.Errorf("model invoked after failed search")
	}
}

func TestResetClearsHistory(t *testing.T) {
	t.Parallel()
	client := &fakeLLM{reply: "hi"}
	r, store := newTestResponder(t, client, nil, nil)

	if _, err := r.Text(context.Background(), 2, "hello"); err != nil {
		t.Fatalf("Text: %v", err)
	}
	if err := r.Reset(context.Background(), 2); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	hist, _ := store.History(context.Background(), 2)
	if len(hist) != 0 {
		t.Errorf("history length = %d after reset, want 0", len(hist))
	}
}

func TestSystemPromptAndHistoryReachModel(t *testing.T) {
	t.Parallel()
	client := &fakeLLM{reply: "second"}
	r, _ := newTestResponder(t, client, nil, nil)

	if _, err := r.Text(context.Background(), 6, "first question"); err != nil {
		t.Fatalf("Text: %v", err)
	}
	if _, err := r.Text(context.Background(), 6, "second question"); err != nil {
		t.Fatalf("Text: %v", err)
	}
	if client.lastReq.System == "" {
		t.Error("system prompt not passed to model")
	}
	// history (2) + new turn (1)
	if len(client.lastReq.Messages) != 3 {
		t.Errorf("model saw %d messages, want 3", len(client.lastReq.Messages))
	}
}
