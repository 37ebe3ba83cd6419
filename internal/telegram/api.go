// Package telegram is a thin client for the Telegram Bot API over
// plain HTTP: long polling in, messages and typing indicators out.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

// MessageLimit is the Bot API cap on sendMessage text length; longer
// replies are split into fixed-size chunks.
const MessageLimit = 4096

const (
	defaultBaseURL  = "https://api.telegram.org"
	requestTimeout  = 30 * time.Second
	downloadTimeout = 60 * time.Second

	// maxFileBytes caps media downloads (Bot API getFile limit is 20 MB).
	maxFileBytes = int64(20 * 1024 * 1024)
)

type API struct {
	http    *http.Client
	baseURL string
	token   string
}

// New builds an API client on top of the shared HTTP client. baseURL
// is overridable for tests.
func New(httpClient *http.Client, baseURL, token string) *API {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBaseURL
	}
	return &API{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
	}
}

type getUpdatesResponse struct {
	OK     bool     `json:"ok"`
	Result []Update `json:"result"`
}

type getMeResponse struct {
	OK     bool `json:"ok"`
	Result User `json:"result"`
}

type getFileResponse struct {
	OK     bool `json:"ok"`
	Result File `json:"result"`
}

type okResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description,omitempty"`
}

type sendMessageRequest struct {
	ChatID                int64  `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode,omitempty"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview,omitempty"`
}

type sendChatActionRequest struct {
	ChatID int64  `json:"chat_id"`
	Action string `json:"action"`
}

func (api *API) GetMe(ctx context.Context) (*User, error) {
	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	raw, err := api.get(reqCtx, fmt.Sprintf("%s/bot%s/getMe", api.baseURL, api.token))
	if err != nil {
		return nil, err
	}
	var out getMeResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	if !out.OK {
		return nil, fmt.Errorf("telegram getMe: ok=false")
	}
	return &out.Result, nil
}

// GetUpdates long-polls for new updates and returns them together with
// the next offset to acknowledge everything received.
func (api *API) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, int64, error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	secs := int(timeout.Seconds())
	if secs < 1 {
		secs = 1
	}
	endpoint := fmt.Sprintf("%s/bot%s/getUpdates?timeout=%d", api.baseURL, api.token, secs)
	if offset > 0 {
		endpoint += fmt.Sprintf("&offset=%d", offset)
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout+5*time.Second)
	defer cancel()

	raw, err := api.get(reqCtx, endpoint)
	if err != nil {
		return nil, offset, err
	}
	var out getUpdatesResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, offset, err
	}
	if !out.OK {
		return nil, offset, fmt.Errorf("telegram getUpdates: ok=false")
	}

	next := offset
	for _, u := range out.Result {
		if u.UpdateID >= next {
			next = u.UpdateID + 1
		}
	}
	return out.Result, next, nil
}

// SendMessage delivers text with Markdown formatting, retrying as
// plain text when Telegram rejects the markup. A reply is never
// dropped over a formatting error.
func (api *API) SendMessage(ctx context.Context, chatID int64, text string) error {
	if strings.TrimSpace(text) == "" {
		text = "(empty)"
	}
	if err := api.sendMessageWithParseMode(ctx, chatID, text, "Markdown"); err == nil {
		return nil
	}
	return api.sendMessageWithParseMode(ctx, chatID, text, "")
}

// SendChunked splits text on fixed-size boundaries so every piece fits
// the Bot API limit; the chunks concatenate back to the original text.
func (api *API) SendChunked(ctx context.Context, chatID int64, text string) error {
	for _, chunk := range splitMessage(text, MessageLimit) {
		if err := api.SendMessage(ctx, chatID, chunk); err != nil {
			return err
		}
	}
	return nil
}

// splitMessage cuts text into pieces of at most max bytes, backing off
// to rune boundaries so no character is ever split across chunks.
func splitMessage(text string, max int) []string {
	if max <= 0 || len(text) <= max {
		return []string{text}
	}
	var chunks []string
	for len(text) > max {
		cut := max
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		if cut == 0 {
			cut = max
		}
		chunks = append(chunks, text[:cut])
		text = text[cut:]
	}
	return append(chunks, text)
}

func (api *API) sendMessageWithParseMode(ctx context.Context, chatID int64, text, parseMode string) error {
	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	body, _ := json.Marshal(sendMessageRequest{
		ChatID:                chatID,
		Text:                  text,
		ParseMode:             parseMode,
		DisableWebPagePreview: true,
	})
	raw, err := api.post(reqCtx, fmt.Sprintf("%s/bot%s/sendMessage", api.baseURL, api.token), body)
	if err != nil {
		return err
	}
	var out okResponse
	_ = json.Unmarshal(raw, &out)
	if !out.OK {
		return fmt.Errorf("telegram sendMessage: ok=false: %s", out.Description)
	}
	return nil
}

// SendTyping shows the "typing…" indicator so the user knows the bot
// is working.
func (api *API) SendTyping(ctx context.Context, chatID int64) error {
	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	body, _ := json.Marshal(sendChatActionRequest{ChatID: chatID, Action: "typing"})
	raw, err := api.post(reqCtx, fmt.Sprintf("%s/bot%s/sendChatAction", api.baseURL, api.token), body)
	if err != nil {
		return err
	}
	var out okResponse
	_ = json.Unmarshal(raw, &out)
	if !out.OK {
		return fmt.Errorf("telegram sendChatAction: ok=false")
	}
	return nil
}

func (api *API) GetFile(ctx context.Context, fileID string) (*File, error) {
	fileID = strings.TrimSpace(fileID)
	if fileID == "" {
		return nil, fmt.Errorf("missing file_id")
	}

	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	raw, err := api.get(reqCtx, fmt.Sprintf("%s/bot%s/getFile?file_id=%s", api.baseURL, api.token, url.QueryEscape(fileID)))
	if err != nil {
		return nil, err
	}
	var out getFileResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	if !out.OK {
		return nil, fmt.Errorf("telegram getFile: ok=false")
	}
	if strings.TrimSpace(out.Result.FilePath) == "" {
		return nil, fmt.Errorf("telegram getFile: missing file_path")
	}
	return &out.Result, nil
}

// DownloadFile fetches the bytes behind a getFile path, capped at
// maxFileBytes.
func (api *API) DownloadFile(ctx context.Context, filePath string) ([]byte, error) {
	filePath = strings.TrimSpace(filePath)
	if filePath == "" {
		return nil, fmt.Errorf("missing file_path")
	}

	reqCtx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/file/bot%s/%s", api.baseURL, api.token, strings.TrimLeft(filePath, "/"))
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := api.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("telegram download http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFileBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxFileBytes {
		return nil, fmt.Errorf("telegram file too large (>%d bytes)", maxFileBytes)
	}
	return data, nil
}

// Download resolves a file id and fetches its content in one step.
func (api *API) Download(ctx context.Context, fileID string) ([]byte, error) {
	f, err := api.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	return api.DownloadFile(ctx, f.FilePath)
}

func (api *API) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	return api.do(req)
}

func (api *API) post(ctx context.Context, endpoint string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return api.do(req)
}

func (api *API) do(req *http.Request) ([]byte, error) {
	resp, err := api.http.Do(req)
	if err != nil {
		return nil, err
	}
	raw, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("telegram http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return raw, nil
}
