package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/halcyonic/aria/internal/bot"
	"github.com/halcyonic/aria/internal/extract"
	"github.com/halcyonic/aria/internal/history"
	"github.com/halcyonic/aria/internal/logutil"
	"github.com/halcyonic/aria/internal/persona"
	"github.com/halcyonic/aria/internal/search"
	"github.com/halcyonic/aria/internal/telegram"
	"github.com/halcyonic/aria/providers/gemini"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Telegram bot (long polling)",
		RunE:  runServe,
	}

	cmd.Flags().String("bot-token", "", "Telegram bot token.")
	cmd.Flags().StringArray("allowed-user-id", nil, "Telegram user id allowed to use the bot (repeatable; empty = open).")
	cmd.Flags().Duration("poll-timeout", 30*time.Second, "getUpdates long-poll window.")
	cmd.Flags().Duration("task-timeout", 3*time.Minute, "Per-request processing deadline.")
	cmd.Flags().Int("max-concurrency", 8, "Max updates processed in parallel.")

	cmd.Flags().String("api-key", "", "Gemini API key.")
	cmd.Flags().String("model", "gemini-2.0-flash", "Gemini model name.")
	cmd.Flags().Duration("request-timeout", 2*time.Minute, "Per-model-call deadline.")

	cmd.Flags().String("db-path", "aria.db", "SQLite conversation history path.")
	cmd.Flags().Int("max-messages", history.DefaultMaxMessages, "Messages kept per user.")

	cmd.Flags().Int("search-max-results", 5, "Web search results per query.")
	cmd.Flags().String("persona", "", "Persona YAML path (optional; built-in Aria profile otherwise).")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger, err := logutil.LoggerFromViper()
	if err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	slog.SetDefault(logger)

	token := strings.TrimSpace(flagOrViperString(cmd, "bot-token", "telegram.bot_token"))
	if token == "" {
		return errors.New("telegram bot token is required (--bot-token or ARIA_TELEGRAM_BOT_TOKEN)")
	}
	apiKey := strings.TrimSpace(flagOrViperString(cmd, "api-key", "gemini.api_key"))
	if apiKey == "" {
		return errors.New("gemini api key is required (--api-key or ARIA_GEMINI_API_KEY)")
	}

	allowed, err := parseAllowedUserIDs(flagOrViperStringArray(cmd, "allowed-user-id", "telegram.allowed_user_ids"))
	if err != nil {
		return err
	}

	profile := persona.Default()
	if path := strings.TrimSpace(flagOrViperString(cmd, "persona", "persona.path")); path != "" {
		profile, err = persona.Load(path)
		if err != nil {
			return fmt.Errorf("load persona: %w", err)
		}
	}

	dbPath := flagOrViperString(cmd, "db-path", "history.db_path")
	store, err := history.Open(dbPath, flagOrViperInt(cmd, "max-messages", "history.max_messages"))
	if err != nil {
		return fmt.Errorf("open history store: %w", err)
	}
	defer store.Close()

	// One shared client for all outbound HTTP. No client-level timeout:
	// each collaborator sets its own context deadline.
	httpClient := &http.Client{}

	llmClient := gemini.New("", apiKey, httpClient)
	llmClient.RequestTimeout = flagOrViperDuration(cmd, "request-timeout", "gemini.request_timeout")

	responder := bot.NewResponder(
		store,
		llmClient,
		extract.NewClient(httpClient),
		search.NewClient(httpClient, flagOrViperInt(cmd, "search-max-results", "search.max_results")),
		profile,
		flagOrViperString(cmd, "model", "gemini.model"),
		logger,
	)

	b := bot.New(
		telegram.New(httpClient, "", token),
		responder,
		bot.Config{
			PollTimeout:    flagOrViperDuration(cmd, "poll-timeout", "telegram.poll_timeout"),
			TaskTimeout:    flagOrViperDuration(cmd, "task-timeout", "telegram.task_timeout"),
			MaxConcurrency: flagOrViperInt(cmd, "max-concurrency", "telegram.max_concurrency"),
			Allowed:        allowed,
		},
		logger,
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("serve_start", "db_path", dbPath, "persona", profile.Name)
	if err := b.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("serve_stop")
	return nil
}

func parseAllowedUserIDs(raw []string) (map[int64]bool, error) {
	allowed := make(map[int64]bool, len(raw))
	for _, s := range raw {
		for _, part := range strings.Split(s, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid allowed user id %q: %w", part, err)
			}
			allowed[id] = true
		}
	}
	return allowed, nil
}
