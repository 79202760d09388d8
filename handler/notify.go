package handler

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Delivery は1件の通知の結果
type Delivery struct {
	ChatID string
	Err    error
}

// broadcast は全員に並列で通知する。失敗はログに残すだけで他の送信は止めない
func (h *Handler) broadcast(ctx context.Context, chatIDs []string, text string) []Delivery {
	results := make([]Delivery, len(chatIDs))
	var eg errgroup.Group
	eg.SetLimit(h.notifyConcurrency)
	for i, chatID := range chatIDs {
		i, chatID := i, chatID
		eg.Go(func() error {
			err := h.messenger.Send(ctx, chatID, text)
			if err != nil {
				slog.Warn("Could not notify NGO", slog.String("chat_id", chatID), slog.Any("err", err))
			}
			results[i] = Delivery{ChatID: chatID, Err: err}
			return nil
		})
	}
	_ = eg.Wait()

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	slog.Info("Broadcast finished", slog.Int("sent", len(results)-failed), slog.Int("failed", failed))
	return results
}
