// Package bot dispatches Telegram updates to the conversation
// responder: long polling in, one bounded goroutine per update, fixed
// user-safe replies out.
package bot

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/halcyonic/aria/internal/telegram"
)

// Transport is the outbound side of the Telegram API the dispatcher
// needs; *telegram.API satisfies it.
type Transport interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendChunked(ctx context.Context, chatID int64, text string) error
	SendTyping(ctx context.Context, chatID int64) error
	Download(ctx context.Context, fileID string) ([]byte, error)
}

type Config struct {
	// PollTimeout is the getUpdates long-poll window.
	PollTimeout time.Duration
	// TaskTimeout bounds one whole request/response cycle.
	TaskTimeout time.Duration
	// MaxConcurrency caps updates processed in parallel across all
	// users.
	MaxConcurrency int
	// Allowed is the user-id allow-list; empty means open mode.
	Allowed map[int64]bool
}

type Bot struct {
	api    *telegram.API
	out    Transport
	resp   *Responder
	cfg    Config
	logger *slog.Logger
	sem    chan struct{}
}

func New(api *telegram.API, resp *Responder, cfg Config, logger *slog.Logger) *Bot {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 30 * time.Second
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = 3 * time.Minute
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 8
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{
		api:    api,
		out:    api,
		resp:   resp,
		cfg:    cfg,
		logger: logger,
		sem:    make(chan struct{}, cfg.MaxConcurrency),
	}
}

// Run polls for updates until ctx is cancelled. Each update runs on
// its own goroutine; per-user requests are not serialized at the
// application level, the storage engine arbitrates concurrent writers.
func (b *Bot) Run(ctx context.Context) error {
	me, err := b.api.GetMe(ctx)
	if err != nil {
		return err
	}
	b.logger.Info("bot_start",
		"bot_username", me.Username,
		"bot_id", me.ID,
		"poll_timeout", b.cfg.PollTimeout.String(),
		"task_timeout", b.cfg.TaskTimeout.String(),
		"max_concurrency", b.cfg.MaxConcurrency,
		"allow_list_size", len(b.cfg.Allowed),
	)

	var offset int64
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		updates, next, err := b.api.GetUpdates(ctx, offset, b.cfg.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			b.logger.Warn("get_updates_error", "error", err.Error())
			time.Sleep(time.Second)
			continue
		}
		offset = next

		for _, u := range updates {
			msg := u.Message
			if msg == nil || msg.Chat == nil || msg.From == nil || msg.From.IsBot {
				continue
			}
			select {
			case b.sem <- struct{}{}:
			case <-ctx.Done():
				return ctx.Err()
			}
			go func(msg *telegram.Message) {
				defer func() { <-b.sem }()
				b.dispatch(ctx, msg)
			}(msg)
		}
	}
}

func (b *Bot) dispatch(ctx context.Context, msg *telegram.Message) {
	userID := msg.From.ID
	chatID := msg.Chat.ID
	logger := b.logger.With("req_id", uuid.NewString(), "user_id", userID)

	// Allow-list gate runs before any other processing.
	if len(b.cfg.Allowed) > 0 && !b.cfg.Allowed[userID] {
		logger.Warn("unauthorized_user", "username", msg.From.Username)
		b.send(ctx, logger, chatID, replyDenied)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, b.cfg.TaskTimeout)
	defer cancel()

	switch {
	case strings.HasPrefix(strings.TrimSpace(msg.Text), "/"):
		b.handleCommand(ctx, logger, msg)
	case len(msg.Photo) > 0:
		b.handlePhoto(ctx, logger, msg)
	case msg.Voice != nil || msg.Audio != nil:
		b.handleVoice(ctx, logger, msg)
	case msg.Document != nil:
		b.handleDocument(ctx, logger, msg)
	case strings.TrimSpace(msg.Text) != "":
		b.handleText(ctx, logger, msg)
	default:
		logger.Debug("update_ignored", "message_id", msg.MessageID)
	}
}

func (b *Bot) handleCommand(ctx context.Context, logger *slog.Logger, msg *telegram.Message) {
	userID := msg.From.ID
	chatID := msg.Chat.ID
	cmdWord, args := splitCommand(msg.Text)

	switch normalizeSlashCommand(cmdWord) {
	case "/start":
		logger.Info("command", "name", "start")
		b.send(ctx, logger, chatID, b.resp.profile.GreetingFor(msg.From.FirstName))

	case "/help":
		logger.Info("command", "name", "help")
		b.send(ctx, logger, chatID, b.resp.profile.Help)

	case "/reset":
		logger.Info("command", "name", "reset")
		if err := b.resp.Reset(ctx, userID); err != nil {
			logger.Error("reset_error", "error", err.Error())
			b.send(ctx, logger, chatID, replyGenericError)
			return
		}
		b.send(ctx, logger, chatID, replyReset)

	case "/search":
		if args == "" {
			b.send(ctx, logger, chatID, replySearchUsage)
			return
		}
		logger.Info("command", "name", "search", "query_len", len(args))
		stop := b.typing(ctx, chatID)
		reply, err := b.resp.SearchQuery(ctx, userID, args)
		stop()
		if err != nil {
			logger.Error("search_error", "error", err.Error())
			switch {
			case errors.Is(err, ErrSearchFailed):
				b.send(ctx, logger, chatID, replySearchUnavailable)
			case errors.Is(err, ErrModel):
				b.send(ctx, logger, chatID, replySearchError)
			default:
				b.send(ctx, logger, chatID, replyGenericError)
			}
			return
		}
		b.reply(ctx, logger, chatID, reply)

	default:
		logger.Debug("unknown_command", "command", cmdWord)
	}
}

func (b *Bot) handleText(ctx context.Context, logger *slog.Logger, msg *telegram.Message) {
	logger.Info("text_message", "text_len", len(msg.Text))
	stop := b.typing(ctx, msg.Chat.ID)
	reply, err := b.resp.Text(ctx, msg.From.ID, msg.Text)
	stop()
	if err != nil {
		logger.Error("text_error", "error", err.Error())
		b.send(ctx, logger, msg.Chat.ID, b.failureReply(err, replyModelError))
		return
	}
	b.reply(ctx, logger, msg.Chat.ID, reply)
}

func (b *Bot) handlePhoto(ctx context.Context, logger *slog.Logger, msg *telegram.Message) {
	logger.Info("photo_message", "caption_len", len(msg.Caption))
	stop := b.typing(ctx, msg.Chat.ID)
	defer stop()

	// Telegram lists photo sizes smallest first; take the largest.
	fileID := msg.Photo[len(msg.Photo)-1].FileID
	data, err := b.out.Download(ctx, fileID)
	if err != nil {
		logger.Error("photo_download_error", "error", err.Error())
		b.send(ctx, logger, msg.Chat.ID, replyPhotoError)
		return
	}

	reply, err := b.resp.Photo(ctx, msg.From.ID, data, "image/jpeg", msg.Caption)
	if err != nil {
		logger.Error("photo_error", "error", err.Error())
		b.send(ctx, logger, msg.Chat.ID, b.failureReply(err, replyPhotoError))
		return
	}
	b.reply(ctx, logger, msg.Chat.ID, reply)
}

func (b *Bot) handleVoice(ctx context.Context, logger *slog.Logger, msg *telegram.Message) {
	logger.Info("voice_message")
	stop := b.typing(ctx, msg.Chat.ID)
	defer stop()

	fileID := ""
	mimeType := ""
	switch {
	case msg.Voice != nil:
		fileID = msg.Voice.FileID
		mimeType = msg.Voice.MimeType
	case msg.Audio != nil:
		fileID = msg.Audio.FileID
		mimeType = msg.Audio.MimeType
	}

	data, err := b.out.Download(ctx, fileID)
	if err != nil {
		logger.Error("voice_download_error", "error", err.Error())
		b.send(ctx, logger, msg.Chat.ID, replyVoiceError)
		return
	}

	reply, err := b.resp.Voice(ctx, msg.From.ID, data, mimeType)
	if err != nil {
		logger.Error("voice_error", "error", err.Error())
		b.send(ctx, logger, msg.Chat.ID, b.failureReply(err, replyVoiceError))
		return
	}
	b.reply(ctx, logger, msg.Chat.ID, reply)
}

func (b *Bot) handleDocument(ctx context.Context, logger *slog.Logger, msg *telegram.Message) {
	doc := msg.Document
	name := doc.FileName
	if name == "" {
		name = "document"
	}
	logger.Info("document_message", "file_name", name)

	if !isPDF(doc) {
		b.send(ctx, logger, msg.Chat.ID, replyNotPDF)
		return
	}

	stop := b.typing(ctx, msg.Chat.ID)
	defer stop()

	data, err := b.out.Download(ctx, doc.FileID)
	if err != nil {
		logger.Error("document_download_error", "error", err.Error())
		b.send(ctx, logger, msg.Chat.ID, replyGenericError)
		return
	}

	reply, err := b.resp.Document(ctx, msg.From.ID, name, data, msg.Caption)
	if err != nil {
		logger.Error("document_error", "error", err.Error())
		switch {
		case errors.Is(err, ErrDocumentText):
			b.send(ctx, logger, msg.Chat.ID, replyPDFNoText)
		case errors.Is(err, ErrModel):
			b.send(ctx, logger, msg.Chat.ID, replyPDFError)
		default:
			b.send(ctx, logger, msg.Chat.ID, replyGenericError)
		}
		return
	}
	b.reply(ctx, logger, msg.Chat.ID, reply)
}

func isPDF(doc *telegram.Document) bool {
	if doc.MimeType == "application/pdf" {
		return true
	}
	return strings.HasSuffix(strings.ToLower(doc.FileName), ".pdf")
}

// failureReply maps a responder error to its fixed reply; modelDefault
// is used for model failures, everything else is the generic message.
func (b *Bot) failureReply(err error, modelDefault string) string {
	if errors.Is(err, ErrModel) {
		return modelDefault
	}
	return replyGenericError
}

// reply delivers the model's answer, chunked to the transport limit.
func (b *Bot) reply(ctx context.Context, logger *slog.Logger, chatID int64, text string) {
	if err := b.out.SendChunked(ctx, chatID, text); err != nil {
		logger.Warn("send_error", "error", err.Error())
	}
}

func (b *Bot) send(ctx context.Context, logger *slog.Logger, chatID int64, text string) {
	if err := b.out.SendMessage(ctx, chatID, text); err != nil {
		logger.Warn("send_error", "error", err.Error())
	}
}

// typing shows the typing indicator and keeps it alive until the
// returned stop function is called (Telegram drops the indicator after
// about five seconds).
func (b *Bot) typing(ctx context.Context, chatID int64) func() {
	_ = b.out.SendTyping(ctx, chatID)
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(4 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = b.out.SendTyping(ctx, chatID)
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}
