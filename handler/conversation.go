package handler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pyama86/food-donation-bot/domain/model"
)

const (
	roleNGO   = "NGO"
	roleDonor = "Donor"
)

// startConversation は登録の会話を最初からやり直す
func (h *Handler) startConversation(ctx context.Context, chatID string) {
	h.setSession(chatID, model.ChoosingRole{})
	if err := h.messenger.SendChoices(
		ctx,
		chatID,
		"👋 Welcome to *Food Donation Bot!*\nAre you registering as an NGO or donating food?",
		[]string{roleNGO, roleDonor},
	); err != nil {
		slog.Error("Failed to send role choices", slog.String("chat_id", chatID), slog.Any("err", err))
	}
}

func (h *Handler) advanceConversation(ctx context.Context, chatID, text string) {
	current, ok := h.session(chatID)
	if !ok {
		return
	}

	switch s := current.(type) {
	case model.ChoosingRole:
		if strings.EqualFold(text, roleNGO) {
			h.setSession(chatID, model.NGOName{})
			h.reply(ctx, chatID, "✅ Great! Please send your NGO name.")
			return
		}
		h.setSession(chatID, model.FoodDetails{})
		h.reply(ctx, chatID, "🍛 Awesome! Please describe the food (Veg/Non-Veg & Quantity).")

	case model.NGOName:
		h.setSession(chatID, model.NGOLocation{Name: text})
		h.reply(ctx, chatID, "📍 Please send NGO location.")

	case model.NGOLocation:
		h.setSession(chatID, model.NGOContact{Name: s.Name, Location: text})
		h.reply(ctx, chatID, "📞 Please send NGO contact number.")

	case model.NGOContact:
		h.endSession(chatID)
		h.registerNGO(ctx, chatID, model.NGO{
			Name:         s.Name,
			Location:     s.Location,
			Contact:      text,
			ChatID:       chatID,
			RegisteredAt: h.now(),
		})

	case model.FoodDetails:
		h.setSession(chatID, model.FoodLocation{Food: text})
		h.reply(ctx, chatID, "📍 Please send the food pickup location.")

	case model.FoodLocation:
		h.setSession(chatID, model.FoodTime{Food: s.Food, Location: text})
		h.reply(ctx, chatID, "⏰ Please provide pickup time (e.g. `10:30 PM` or `2025-08-03 19:00`).")

	case model.FoodTime:
		pickup, err := model.ParsePickupTime(text, h.now())
		if err != nil {
			// 同じステップのまま再入力を待つ
			h.setSession(chatID, s)
			h.reply(ctx, chatID, "⚠️ Invalid time format. Try `10:30 PM` or `2025-08-03 19:00`.")
			return
		}
		h.setSession(chatID, model.DonorContact{
			Food:       s.Food,
			Location:   s.Location,
			PickupTime: model.FormatCanonicalTime(pickup),
		})
		h.reply(ctx, chatID, "📞 Please share your contact number.")

	case model.DonorContact:
		h.endSession(chatID)
		h.listDonation(ctx, chatID, model.Donation{
			Food:         s.Food,
			Location:     s.Location,
			DonorContact: text,
			PickupTime:   s.PickupTime,
			Status:       model.StatusAvailable,
		})

	default:
		slog.Warn("Unknown conversation step", slog.String("chat_id", chatID), slog.String("step", current.Step()))
		h.endSession(chatID)
	}
}

// registerNGO はNGOを保存し、現在引き取り可能な寄付をすぐに見せる
func (h *Handler) registerNGO(ctx context.Context, chatID string, ngo model.NGO) {
	if err := h.ds.SaveNGO(ctx, &ngo); err != nil {
		slog.Error("SaveNGO failed", slog.String("chat_id", chatID), slog.Any("err", err))
		h.reply(ctx, chatID, "❌ Could not save your registration. Please try /start again.")
		return
	}
	slog.Info("NGO registered", slog.String("chat_id", chatID), slog.String("name", ngo.Name))
	h.reply(ctx, chatID, "✅ NGO registered successfully! Thank you.")

	donations, err := h.availableDonations(ctx)
	if err != nil {
		slog.Error("availableDonations failed", slog.Any("err", err))
		return
	}
	if len(donations) == 0 {
		h.reply(ctx, chatID, "✅ No current donations available right now.")
		return
	}
	h.reply(ctx, chatID, h.formatDonationList("🍛 *Here are current available donations:*", donations))
}

// listDonation は寄付を保存し、登録済みの全NGOに知らせる
func (h *Handler) listDonation(ctx context.Context, chatID string, donation model.Donation) {
	id, err := h.ds.SaveDonation(ctx, &donation)
	if err != nil {
		slog.Error("SaveDonation failed", slog.String("chat_id", chatID), slog.Any("err", err))
		h.reply(ctx, chatID, "❌ Could not save your donation. Please try /start again.")
		return
	}
	slog.Info("Donation listed", slog.String("chat_id", chatID), slog.Int("donation_id", id))
	h.reply(ctx, chatID, "🙏 Thank you! Your food donation has been listed.")

	ngos, err := h.ds.GetNGOs(ctx)
	if err != nil {
		slog.Error("GetNGOs failed", slog.Any("err", err))
		return
	}
	text := fmt.Sprintf("🍛 *New Food Donation Alert!*\n%s\n👉 Send `/accept %d` to claim this donation.",
		h.formatDonation(donation), donation.ID)
	h.broadcast(ctx, model.NGOChatIDs(ngos, ""), text)
}
