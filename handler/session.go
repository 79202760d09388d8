package handler

import (
	"context"
	"log/slog"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/pyama86/food-donation-bot/domain/model"
)

func newSessionCache(ttl time.Duration) *ttlcache.Cache[string, model.Session] {
	cache := ttlcache.New(ttlcache.WithTTL[string, model.Session](ttl))
	cache.OnEviction(func(ctx context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, model.Session]) {
		if reason == ttlcache.EvictionReasonExpired {
			slog.Info("Conversation abandoned",
				slog.String("chat_id", item.Key()),
				slog.String("step", item.Value().Step()),
			)
		}
	})
	return cache
}

func (h *Handler) session(chatID string) (model.Session, bool) {
	item := h.sessions.Get(chatID)
	if item == nil || item.IsExpired() {
		return nil, false
	}
	return item.Value(), true
}

// setSession は会話を次のステップに進め、有効期限を延ばす
func (h *Handler) setSession(chatID string, s model.Session) {
	h.sessions.Set(chatID, s, ttlcache.DefaultTTL)
}

func (h *Handler) endSession(chatID string) {
	h.sessions.Delete(chatID)
}
