package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// envOverrides are the environment variables that take precedence over
// config.json values. Empty variables leave the file value untouched.
type envOverrides struct {
	AnthropicAPIKey  string `env:"ANTHROPIC_API_KEY"`
	AnthropicAPIBase string `env:"ANTHROPIC_API_BASE"`
	OpenAIAPIKey     string `env:"OPENAI_API_KEY"`
	OpenAIAPIBase    string `env:"OPENAI_API_BASE"`
	TelegramToken    string `env:"TELEGRAM_BOT_TOKEN"`
	DiscordToken     string `env:"DISCORD_BOT_TOKEN"`
	SlackBotToken    string `env:"SLACK_BOT_TOKEN"`
	SlackAppToken    string `env:"SLACK_APP_TOKEN"`
	BraveAPIKey      string `env:"BRAVE_API_KEY"`
	Model            string `env:"TINYCLAW_MODEL"`
	Provider         string `env:"TINYCLAW_PROVIDER"`
	Workspace        string `env:"TINYCLAW_WORKSPACE"`
	LogLevel         string `env:"TINYCLAW_LOG_LEVEL"`
}

func applyEnvOverrides(cfg *Config) error {
	var ov envOverrides
	if err := env.Parse(&ov); err != nil {
		return fmt.Errorf("parsing environment overrides: %w", err)
	}

	setIf(&cfg.Providers.Anthropic.APIKey, ov.AnthropicAPIKey)
	setIf(&cfg.Providers.Anthropic.APIBase, ov.AnthropicAPIBase)
	setIf(&cfg.Providers.OpenAI.APIKey, ov.OpenAIAPIKey)
	setIf(&cfg.Providers.OpenAI.APIBase, ov.OpenAIAPIBase)
	setIf(&cfg.Channels.Telegram.Token, ov.TelegramToken)
	setIf(&cfg.Channels.Discord.Token, ov.DiscordToken)
	setIf(&cfg.Channels.Slack.BotToken, ov.SlackBotToken)
	setIf(&cfg.Channels.Slack.AppToken, ov.SlackAppToken)
	setIf(&cfg.Tools.Web.Brave.APIKey, ov.BraveAPIKey)
	setIf(&cfg.Agents.Defaults.Model, ov.Model)
	setIf(&cfg.Agents.Defaults.Provider, ov.Provider)
	setIf(&cfg.Agents.Defaults.Workspace, ov.Workspace)
	setIf(&cfg.Logging.Level, ov.LogLevel)
	return nil
}

func setIf(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}
