package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/halcyonic/aria/internal/extract"
	"github.com/halcyonic/aria/internal/persona"
	"github.com/halcyonic/aria/llm"
)

// Sentinel errors so the dispatcher can pick the right fixed
// user-facing reply. Wrapped collaborator detail stays in the logs and
// never reaches the user.
var (
	ErrModel        = errors.New("model invocation failed")
	ErrDocumentText = errors.New("document has no extractable text")
	ErrSearchFailed = errors.New("web search failed")
)

// maxURLFetches caps how many URLs of a message are fetched for
// enrichment; the rest are ignored.
const maxURLFetches = 2

const voiceInstruction = "This is a voice message. First, transcribe what is said. " +
	"Then respond to the content of the message. " +
	"Format your reply as:\n" +
	"🎙️ **Transcription:**\n<transcription>\n\n" +
	"💬 **Response:**\n<your response>"

// Store is the bounded per-user conversation log the responder reads
// from and appends to.
type Store interface {
	History(ctx context.Context, userID int64) ([]llm.Message, error)
	Append(ctx context.Context, userID int64, msgs ...llm.Message) error
	Clear(ctx context.Context, userID int64) error
}

// Fetcher extracts readable text from a web page.
type Fetcher interface {
	Page(ctx context.Context, url string) (string, error)
}

// Searcher runs a web search and returns a formatted result block.
type Searcher interface {
	Search(ctx context.Context, query string) (string, error)
}

// Responder produces exactly one model invocation and one persisted
// exchange per inbound request. The persisted user turn is always the
// raw input; enrichment (URL content, document text, search results)
// goes only to the model.
type Responder struct {
	store   Store
	client  llm.Client
	fetcher Fetcher
	search  Searcher
	pdfText func([]byte) (string, error)
	profile persona.Profile
	model   string
	logger  *slog.Logger
}

func NewResponder(store Store, client llm.Client, fetcher Fetcher, searcher Searcher, profile persona.Profile, model string, logger *slog.Logger) *Responder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Responder{
		store:   store,
		client:  client,
		fetcher: fetcher,
		search:  searcher,
		pdfText: extract.PDF,
		profile: profile,
		model:   model,
		logger:  logger,
	}
}

// Text answers a plain text message, folding in content from up to the
// first two URLs it mentions.
func (r *Responder) Text(ctx context.Context, userID int64, text string) (string, error) {
	enriched := r.enrichURLs(ctx, text)
	return r.exchange(ctx, userID,
		llm.Message{Role: llm.RoleUser, Content: enriched},
		llm.Message{Role: llm.RoleUser, Content: text},
		nil)
}

// Photo answers an image message via the model's vision input. The
// stored user turn records the event, not the bytes.
func (r *Responder) Photo(ctx context.Context, userID int64, data []byte, mimeType, caption string) (string, error) {
	prompt := caption
	if prompt == "" {
		prompt = "Describe and analyse this image in detail."
	}
	stored := "[Sent a photo]"
	if caption != "" {
		stored += ": " + caption
	}
	return r.exchange(ctx, userID,
		llm.Message{Role: llm.RoleUser, Content: prompt},
		llm.Message{Role: llm.RoleUser, Content: stored},
		[]llm.Attachment{{MIMEType: mimeType, Data: data}})
}

// Voice transcribes an audio message and answers its content.
func (r *Responder) Voice(ctx context.Context, userID int64, data []byte, mimeType string) (string, error) {
	if mimeType == "" {
		mimeType = "audio/ogg"
	}
	return r.exchange(ctx, userID,
		llm.Message{Role: llm.RoleUser, Content: voiceInstruction},
		llm.Message{Role: llm.RoleUser, Content: "[Sent a voice message]"},
		[]llm.Attachment{{MIMEType: mimeType, Data: data}})
}

// Document analyses a PDF. Extraction failure aborts with
// ErrDocumentText since the user explicitly asked for the document to
// be read.
func (r *Responder) Document(ctx context.Context, userID int64, name string, data []byte, caption string) (string, error) {
	docText, err := r.pdfText(data)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDocumentText, err)
	}

	prompt := fmt.Sprintf("The user sent a PDF document named %q.", name)
	if caption != "" {
		prompt += "\nThe user's question/request: " + caption
	} else {
		prompt += "\nPlease provide a comprehensive summary and key takeaways."
	}
	prompt += "\n\nExtracted document text:\n\n" + docText

	stored := "[Sent PDF: " + name + "]"
	if caption != "" {
		stored += " — " + caption
	}
	return r.exchange(ctx, userID,
		llm.Message{Role: llm.RoleUser, Content: prompt},
		llm.Message{Role: llm.RoleUser, Content: stored},
		nil)
}

// SearchQuery runs a web search and asks the model to summarise the
// results. The stored user turn is the command as the user typed it.
func (r *Responder) SearchQuery(ctx context.Context, userID int64, query string) (string, error) {
	results, err := r.search.Search(ctx, query)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}

	prompt := fmt.Sprintf("The user searched for: %q\n\n"+
		"Here are the top web search results:\n\n%s\n\n"+
		"Provide a helpful, concise summary of these search results. "+
		"Include the most relevant information and cite sources with their URLs.",
		query, results)

	return r.exchange(ctx, userID,
		llm.Message{Role: llm.RoleUser, Content: prompt},
		llm.Message{Role: llm.RoleUser, Content: "/search " + query},
		nil)
}

// Reset wipes the user's conversation history.
func (r *Responder) Reset(ctx context.Context, userID int64) error {
	return r.store.Clear(ctx, userID)
}

// exchange is the common request cycle: load history, invoke the model
// with the enriched turn, then persist the original turn and the reply
// as one atomic pair. A failed model call persists nothing.
func (r *Responder) exchange(ctx context.Context, userID int64, modelTurn, storedTurn llm.Message, media []llm.Attachment) (string, error) {
	hist, err := r.store.History(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("load history: %w", err)
	}

	result, err := r.client.Chat(ctx, llm.Request{
		Model:    r.model,
		System:   r.profile.SystemPrompt,
		Messages: append(hist, modelTurn),
		Media:    media,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrModel, err)
	}
	r.logger.Debug("chat_completed",
		"user_id", userID,
		"reply_len", len(result.Text),
		"total_tokens", result.Usage.TotalTokens,
		"duration", result.Duration.String(),
	)

	if err := r.store.Append(ctx, userID,
		storedTurn,
		llm.Message{Role: llm.RoleAssistant, Content: result.Text},
	); err != nil {
		return "", fmt.Errorf("persist exchange: %w", err)
	}
	return result.Text, nil
}

// enrichURLs appends extracted page content for up to the first two
// URLs in the text. Individual fetch failures are logged and dropped;
// they never abort the request, and failed extractions contribute
// nothing to the prompt.
func (r *Responder) enrichURLs(ctx context.Context, text string) string {
	if r.fetcher == nil {
		return text
	}
	urls := extract.FindURLs(text)
	if len(urls) == 0 {
		return text
	}
	if len(urls) > maxURLFetches {
		urls = urls[:maxURLFetches]
	}

	var b strings.Builder
	for _, u := range urls {
		content, err := r.fetcher.Page(ctx, u)
		if err != nil {
			r.logger.Warn("url_extract_error", "url", u, "error", err.Error())
			continue
		}
		fmt.Fprintf(&b, "\n\n---\n📄 Content from %s:\n%s\n---", u, content)
	}
	if b.Len() == 0 {
		return text
	}
	return text +
		"\n\n[The following web page content was automatically extracted for context. " +
		"Use it to help answer the user's request.]" + b.String()
}
