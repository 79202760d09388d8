package handler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pyama86/food-donation-bot/domain/model"
)

// availableDonations は毎回表を読み直し、引き取り可能な寄付を表の順序で返す
func (h *Handler) availableDonations(ctx context.Context) ([]model.Donation, error) {
	donations, err := h.ds.GetDonations(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetDonations failed: %w", err)
	}
	return model.AvailableDonations(donations, h.now()), nil
}

func (h *Handler) findFood(ctx context.Context, chatID string) {
	donations, err := h.availableDonations(ctx)
	if err != nil {
		slog.Error("availableDonations failed", slog.Any("err", err))
		h.reply(ctx, chatID, "❌ Could not load donations. Please try again.")
		return
	}
	if len(donations) == 0 {
		h.reply(ctx, chatID, "❌ No food donations available right now.")
		return
	}
	h.reply(ctx, chatID, h.formatDonationList("🍛 *Available Food Donations:*", donations))
}

// formatDonation は利用者の入力をエスケープして寄付を1件分の文面にする
func (h *Handler) formatDonation(d model.Donation) string {
	esc := h.messenger.EscapeText
	return fmt.Sprintf("#%d\n🍲 %s\n📍 %s\n⏰ Pickup: %s\n📞 Contact: %s\n",
		d.ID, esc(d.Food), esc(d.Location), esc(d.PickupTime), esc(d.DonorContact))
}

func (h *Handler) formatDonationList(title string, donations []model.Donation) string {
	var sb strings.Builder
	sb.WriteString(title)
	sb.WriteString("\n\n")
	for _, d := range donations {
		sb.WriteString(h.formatDonation(d))
		sb.WriteString(fmt.Sprintf("👉 Send `/accept %d` to claim\n\n", d.ID))
	}
	return sb.String()
}
