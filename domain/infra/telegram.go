package infra

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pyama86/food-donation-bot/domain/model"
)

type TelegramConfig struct {
	Token string
	// 設定されていれば long polling ではなく webhook で受信する。
	// 実際に登録するのは末尾に WebhookSecret を付けた URL
	WebhookURL    string
	WebhookSecret string
	// テスト用
	APIEndpoint string
}

type Telegram struct {
	api           *tgbotapi.BotAPI
	webhookURL    string
	webhookSecret string
	webhook       chan tgbotapi.Update
}

func NewTelegram(c TelegramConfig) (*Telegram, error) {
	endpoint := c.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	api, err := tgbotapi.NewBotAPIWithAPIEndpoint(c.Token, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	slog.Info("Authorized on telegram", slog.String("account", api.Self.UserName))

	return &Telegram{
		api:           api,
		webhookURL:    c.WebhookURL,
		webhookSecret: c.WebhookSecret,
		webhook:       make(chan tgbotapi.Update, 100),
	}, nil
}

func (t *Telegram) WebhookEnabled() bool {
	return t.webhookURL != ""
}

func (t *Telegram) WebhookSecret() string {
	return t.webhookSecret
}

// registeredWebhookURL は Telegram に登録する URL。秘密を知らない相手からの更新を受け付けないためパスに含める
func (t *Telegram) registeredWebhookURL() string {
	return strings.TrimRight(t.webhookURL, "/") + "/" + url.PathEscape(t.webhookSecret)
}

func (t *Telegram) Receive(ctx context.Context) (<-chan model.Message, error) {
	var updates <-chan tgbotapi.Update
	if t.WebhookEnabled() {
		if t.webhookSecret == "" {
			return nil, errors.New("webhook secret is not set")
		}
		wh, err := tgbotapi.NewWebhook(t.registeredWebhookURL())
		if err != nil {
			return nil, fmt.Errorf("invalid webhook url: %w", err)
		}
		if _, err := t.api.Request(wh); err != nil {
			return nil, fmt.Errorf("failed to set webhook: %w", err)
		}
		updates = t.webhook
	} else {
		u := tgbotapi.NewUpdate(0)
		u.Timeout = 60
		updates = t.api.GetUpdatesChan(u)
	}

	out := make(chan model.Message)
	go func() {
		defer close(out)
		defer func() {
			if !t.WebhookEnabled() {
				t.api.StopReceivingUpdates()
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				msg, ok := messageFromUpdate(update)
				if !ok {
					continue
				}
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// HandleWebhook は webhook で受け取った更新を Receive のチャネルに流す
func (t *Telegram) HandleWebhook(r *http.Request) error {
	if !t.WebhookEnabled() {
		return errors.New("webhook is not enabled")
	}
	update, err := t.api.HandleUpdate(r)
	if err != nil {
		return err
	}
	select {
	case t.webhook <- *update:
		return nil
	case <-r.Context().Done():
		return r.Context().Err()
	}
}

func (t *Telegram) Send(ctx context.Context, chatID, text string) error {
	msg, err := newTelegramMessage(chatID, text)
	if err != nil {
		return err
	}
	_, err = t.api.Send(msg)
	return err
}

func (t *Telegram) SendChoices(ctx context.Context, chatID, text string, choices []string) error {
	msg, err := newTelegramMessage(chatID, text)
	if err != nil {
		return err
	}
	buttons := make([]tgbotapi.KeyboardButton, 0, len(choices))
	for _, c := range choices {
		buttons = append(buttons, tgbotapi.NewKeyboardButton(c))
	}
	msg.ReplyMarkup = tgbotapi.NewOneTimeReplyKeyboard(buttons)
	_, err = t.api.Send(msg)
	return err
}

// EscapeText は利用者の入力が Markdown として解釈されないようにする
func (t *Telegram) EscapeText(text string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, text)
}

func newTelegramMessage(chatID, text string) (tgbotapi.MessageConfig, error) {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return tgbotapi.MessageConfig{}, fmt.Errorf("invalid telegram chat id %q: %w", chatID, err)
	}
	msg := tgbotapi.NewMessage(id, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	return msg, nil
}

func messageFromUpdate(update tgbotapi.Update) (model.Message, bool) {
	if update.Message == nil || update.Message.Chat == nil {
		return model.Message{}, false
	}
	m := update.Message
	// 写真やスタンプなど文字の無い更新は会話の回答として扱わない
	if m.Text == "" && !m.IsCommand() {
		return model.Message{}, false
	}
	msg := model.Message{
		ChatID: strconv.FormatInt(m.Chat.ID, 10),
		Text:   m.Text,
	}
	if m.IsCommand() {
		msg.Command = m.Command()
		msg.Args = m.CommandArguments()
	}
	return msg, true
}
