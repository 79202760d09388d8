package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/pyama86/food-donation-bot/domain/model"
)

// parseDonationID は /accept の引数を寄付IDとして解釈する
func parseDonationID(args string) (int, error) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return 0, fmt.Errorf("no donation id: %w", model.ErrUsage)
	}
	id, err := strconv.Atoi(fields[0])
	if err != nil || id < 0 {
		return 0, fmt.Errorf("invalid donation id %q: %w", fields[0], model.ErrUsage)
	}
	return id, nil
}

// claimDonation は引き取り依頼を検証し、状態を更新する。
// 返り値は引き取ったNGO名と、通知に使う登録済みNGOの一覧
func (h *Handler) claimDonation(ctx context.Context, chatID string, id int) (string, []model.NGO, error) {
	donation, err := h.ds.GetDonation(ctx, id)
	if err != nil {
		return "", nil, err
	}
	if !donation.Status.IsAvailable() {
		return "", nil, &model.AlreadyClaimedError{ID: id, Status: donation.Status}
	}

	ngos, err := h.ds.GetNGOs(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("GetNGOs failed: %w", err)
	}
	name := model.ResolveNGOName(ngos, chatID)

	// 読み取りから書き込みまでの間に他のNGOが引き取った場合は AlreadyClaimedError になる
	if err := h.ds.ClaimDonation(ctx, id, name); err != nil {
		return "", nil, err
	}
	return name, ngos, nil
}

func (h *Handler) accept(ctx context.Context, chatID, args string) {
	id, err := parseDonationID(args)
	if err != nil {
		if strings.TrimSpace(args) == "" {
			h.reply(ctx, chatID, "⚠️ Please provide a donation number. Example: `/accept 3`")
		} else {
			h.reply(ctx, chatID, "⚠️ Invalid number. Example: `/accept 3`")
		}
		return
	}

	name, ngos, err := h.claimDonation(ctx, chatID, id)
	var claimed *model.AlreadyClaimedError
	switch {
	case err == nil:
	case errors.Is(err, model.ErrDonationNotFound):
		h.reply(ctx, chatID, "❌ Donation not found.")
		return
	case errors.As(err, &claimed):
		h.reply(ctx, chatID, fmt.Sprintf("⚠️ This donation is already claimed (%s).", h.messenger.EscapeText(string(claimed.Status))))
		return
	default:
		slog.Error("claimDonation failed", slog.String("chat_id", chatID), slog.Int("donation_id", id), slog.Any("err", err))
		h.reply(ctx, chatID, "❌ Could not claim the donation. Please try again.")
		return
	}

	slog.Info("Donation claimed", slog.String("chat_id", chatID), slog.Int("donation_id", id), slog.String("ngo", name))
	h.reply(ctx, chatID, fmt.Sprintf("✅ You claimed donation #%d successfully!", id))
	h.broadcast(ctx, model.NGOChatIDs(ngos, chatID), fmt.Sprintf("❌ Donation #%d has been claimed by *%s*.", id, h.messenger.EscapeText(name)))
}
