package main

import (
	"time"

	"github.com/spf13/viper"
)

func initViperDefaults() {
	viper.SetDefault("telegram.bot_token", "")
	viper.SetDefault("telegram.poll_timeout", 30*time.Second)
	viper.SetDefault("telegram.task_timeout", 3*time.Minute)
	viper.SetDefault("telegram.max_concurrency", 8)
	viper.SetDefault("telegram.allowed_user_ids", []string{})

	viper.SetDefault("gemini.api_key", "")
	viper.SetDefault("gemini.model", "gemini-2.0-flash")
	viper.SetDefault("gemini.request_timeout", 2*time.Minute)

	viper.SetDefault("history.db_path", "aria.db")
	viper.SetDefault("history.max_messages", 15)

	viper.SetDefault("search.max_results", 5)

	viper.SetDefault("persona.path", "")
}
