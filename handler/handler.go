package handler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/pyama86/food-donation-bot/domain/infra"
	"github.com/pyama86/food-donation-bot/domain/model"
)

const (
	cmdStart    = "start"
	cmdFindFood = "findfood"
	cmdAccept   = "accept"
	cmdHelp     = "help"
)

const helpText = "Commands:\n" +
	"/start - Register as an NGO or donate food\n" +
	"/findfood - List available food donations\n" +
	"/accept <id> - Claim a donation\n" +
	"/help - Show this help message"

type Options struct {
	// 入力途中の会話を保持する時間
	SessionTTL time.Duration
	Location   *time.Location
	// NGOへの通知を並列に送る数
	NotifyConcurrency int
}

type Handler struct {
	messenger         infra.Messenger
	ds                infra.Datastore
	sessions          *ttlcache.Cache[string, model.Session]
	loc               *time.Location
	notifyConcurrency int
	now               func() time.Time
}

func NewHandler(ds infra.Datastore, messenger infra.Messenger, opts Options) *Handler {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 30 * time.Minute
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.NotifyConcurrency <= 0 {
		opts.NotifyConcurrency = 8
	}
	h := &Handler{
		messenger:         messenger,
		ds:                ds,
		sessions:          newSessionCache(opts.SessionTTL),
		loc:               opts.Location,
		notifyConcurrency: opts.NotifyConcurrency,
	}
	h.now = func() time.Time { return time.Now().In(h.loc) }
	return h
}

// Handle は受信ループ。ctx が終わるまでメッセージを1件ずつ処理する
func (h *Handler) Handle(ctx context.Context) error {
	messages, err := h.messenger.Receive(ctx)
	if err != nil {
		return fmt.Errorf("Receive failed: %w", err)
	}

	go h.sessions.Start()
	defer h.sessions.Stop()

	slog.Info("Bot is running")
	for msg := range messages {
		h.HandleMessage(ctx, msg)
	}
	return ctx.Err()
}

func (h *Handler) HandleMessage(ctx context.Context, msg model.Message) {
	if !msg.IsCommand() {
		h.handleText(ctx, msg)
		return
	}

	switch msg.Command {
	case cmdStart:
		h.startConversation(ctx, msg.ChatID)
	case cmdFindFood:
		h.findFood(ctx, msg.ChatID)
	case cmdAccept:
		h.accept(ctx, msg.ChatID, msg.Args)
	case cmdHelp:
		h.reply(ctx, msg.ChatID, helpText)
	default:
		h.reply(ctx, msg.ChatID, "Unknown command.\n\n"+helpText)
	}
}

func (h *Handler) handleText(ctx context.Context, msg model.Message) {
	text := strings.TrimSpace(msg.Text)
	// 文字の無いメッセージは回答として扱わない
	if text == "" {
		slog.Debug("Ignored empty message", slog.String("chat_id", msg.ChatID))
		return
	}
	if _, ok := h.session(msg.ChatID); !ok {
		h.reply(ctx, msg.ChatID, "Send /start to register as an NGO or to donate food.")
		return
	}
	h.advanceConversation(ctx, msg.ChatID, text)
}

// reply は送信失敗をログに残すだけで呼び出し元には返さない
func (h *Handler) reply(ctx context.Context, chatID, text string) {
	if err := h.messenger.Send(ctx, chatID, text); err != nil {
		slog.Error("Failed to send message", slog.String("chat_id", chatID), slog.Any("err", err))
	}
}
