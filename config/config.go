package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	ChatDriverTelegram = "telegram"
	ChatDriverSlack    = "slack"

	DBDriverSQLite   = "sqlite"
	DBDriverDynamoDB = "dynamodb"
	DBDriverSheets   = "sheets"
)

type Config struct {
	ChatDriver            string
	TelegramToken         string
	TelegramWebhookURL    string
	// webhook のパスに含める秘密の値
	TelegramWebhookSecret string
	SlackBotToken         string
	SlackAppToken         string

	DBDriver          string
	DBPath            string
	DynamoTablePrefix string
	// 空でなければローカルの DynamoDB に接続する
	DynamoEndpoint string
	GoogleCreds    string
	SpreadsheetID  string

	SessionTTL        time.Duration
	Location          *time.Location
	NotifyConcurrency int
	ListenSocket      string
	LogLevel          slog.Level
	LogFormat         string
}

// Load は .env、CONFIG_FILE で指定された YAML、環境変数の順に読み込む。後のものが優先される
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetDefault("chat_driver", ChatDriverTelegram)
	v.SetDefault("db_driver", DBDriverSQLite)
	v.SetDefault("db_path", "./db/food_donation.db")
	v.SetDefault("dynamo_table_name_prefix", "food_donation")
	v.SetDefault("dynamo_endpoint", "http://localhost:8000")
	v.SetDefault("session_ttl", "30m")
	v.SetDefault("timezone", "Local")
	v.SetDefault("notify_concurrency", 8)
	v.SetDefault("listen_socket", ":3000")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file := v.GetString("config_file"); file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	c := &Config{
		ChatDriver:            strings.ToLower(v.GetString("chat_driver")),
		TelegramToken:         v.GetString("telegram_token"),
		TelegramWebhookURL:    v.GetString("telegram_webhook_url"),
		TelegramWebhookSecret: v.GetString("telegram_webhook_secret"),
		SlackBotToken:         v.GetString("slack_bot_token"),
		SlackAppToken:         v.GetString("slack_app_token"),
		DBDriver:              strings.ToLower(v.GetString("db_driver")),
		DBPath:                v.GetString("db_path"),
		DynamoTablePrefix:     v.GetString("dynamo_table_name_prefix"),
		GoogleCreds:           v.GetString("google_creds"),
		SpreadsheetID:         v.GetString("sheets_spreadsheet_id"),
		NotifyConcurrency:     v.GetInt("notify_concurrency"),
		ListenSocket:          v.GetString("listen_socket"),
		LogFormat:             strings.ToLower(v.GetString("log_format")),
	}
	if v.GetString("dynamo_local") != "" {
		c.DynamoEndpoint = v.GetString("dynamo_endpoint")
	}

	ttl, err := time.ParseDuration(v.GetString("session_ttl"))
	if err != nil {
		return nil, fmt.Errorf("invalid SESSION_TTL: %w", err)
	}
	c.SessionTTL = ttl

	loc, err := time.LoadLocation(v.GetString("timezone"))
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}
	c.Location = loc

	if err := c.LogLevel.UnmarshalText([]byte(v.GetString("log_level"))); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate は選択されたドライバに必要な設定が揃っているかを確認する
func (c *Config) Validate() error {
	var missing []string
	switch c.ChatDriver {
	case ChatDriverTelegram:
		if c.TelegramToken == "" {
			missing = append(missing, "TELEGRAM_TOKEN")
		}
		if c.TelegramWebhookURL != "" && c.TelegramWebhookSecret == "" {
			missing = append(missing, "TELEGRAM_WEBHOOK_SECRET")
		}
	case ChatDriverSlack:
		if c.SlackBotToken == "" {
			missing = append(missing, "SLACK_BOT_TOKEN")
		}
		if c.SlackAppToken == "" {
			missing = append(missing, "SLACK_APP_TOKEN")
		}
	default:
		return fmt.Errorf("unknown CHAT_DRIVER: %s", c.ChatDriver)
	}

	switch c.DBDriver {
	case DBDriverSQLite, DBDriverDynamoDB:
	case DBDriverSheets:
		if c.GoogleCreds == "" {
			missing = append(missing, "GOOGLE_CREDS")
		}
		if c.SpreadsheetID == "" {
			missing = append(missing, "SHEETS_SPREADSHEET_ID")
		}
	default:
		return fmt.Errorf("unknown DB_DRIVER: %s", c.DBDriver)
	}

	if len(missing) > 0 {
		return fmt.Errorf("required environment variable not set: %s", strings.Join(missing, ", "))
	}
	return nil
}

// NewLogger は LOG_FORMAT と LOG_LEVEL に従ったロガーを返す
func (c *Config) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel}
	if c.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
