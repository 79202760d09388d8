package handler

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pyama86/food-donation-bot/domain/infra"
	"github.com/pyama86/food-donation-bot/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomock "go.uber.org/mock/gomock"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// outbox は送信されたメッセージをチャットIDごとに記録する
type outbox struct {
	mu      sync.Mutex
	sent    map[string][]string
	choices map[string][]string
}

func (o *outbox) messages(chatID string) []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.sent[chatID]...)
}

func (o *outbox) last(chatID string) string {
	msgs := o.messages(chatID)
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1]
}

func newTestHandler(t *testing.T, failFor ...string) (*Handler, *outbox, *infra.DataBase) {
	t.Helper()
	ctrl := gomock.NewController(t)

	ds, err := infra.NewDataBase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { ds.Close() })

	box := &outbox{sent: map[string][]string{}, choices: map[string][]string{}}
	failing := map[string]bool{}
	for _, id := range failFor {
		failing[id] = true
	}

	mockMessenger := infra.NewMockMessenger(ctrl)
	mockMessenger.EXPECT().Send(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, chatID, text string) error {
			if failing[chatID] {
				return errors.New("chat not found")
			}
			box.mu.Lock()
			defer box.mu.Unlock()
			box.sent[chatID] = append(box.sent[chatID], text)
			return nil
		}).AnyTimes()
	mockMessenger.EXPECT().SendChoices(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, chatID, text string, choices []string) error {
			box.mu.Lock()
			defer box.mu.Unlock()
			box.sent[chatID] = append(box.sent[chatID], text)
			box.choices[chatID] = choices
			return nil
		}).AnyTimes()

	mockMessenger.EXPECT().EscapeText(gomock.Any()).DoAndReturn(func(s string) string {
		return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
	}).AnyTimes()

	h := NewHandler(ds, mockMessenger, Options{Location: time.UTC})
	h.now = func() time.Time { return testNow }
	return h, box, ds
}

func command(chatID, cmd, args string) model.Message {
	return model.Message{ChatID: chatID, Text: strings.TrimSpace("/" + cmd + " " + args), Command: cmd, Args: args}
}

func text(chatID, s string) model.Message {
	return model.Message{ChatID: chatID, Text: s}
}

func converse(h *Handler, chatID string, replies ...string) {
	ctx := context.Background()
	h.HandleMessage(ctx, command(chatID, cmdStart, ""))
	for _, r := range replies {
		h.HandleMessage(ctx, text(chatID, r))
	}
}

func currentStep(h *Handler, chatID string) string {
	s, ok := h.session(chatID)
	if !ok {
		return ""
	}
	return s.Step()
}

func TestHandler_start(t *testing.T) {
	h, box, _ := newTestHandler(t)

	h.HandleMessage(context.Background(), command("1", cmdStart, ""))

	assert.Equal(t, []string{"NGO", "Donor"}, box.choices["1"])
	assert.Equal(t, "choosing_role", currentStep(h, "1"))
}

func TestHandler_donorFlowAndClaim(t *testing.T) {
	ctx := context.Background()
	h, box, ds := newTestHandler(t)

	converse(h, "100", "NGO", "Helping Hands", "Park St", "555-0100")
	converse(h, "200", "NGO", "Food First", "Main St", "555-0200")

	converse(h, "900", "Donor", "Rice 5kg", "Park St", "11:00 PM", "555-0900")
	assert.Equal(t, "", currentStep(h, "900"))
	assert.Contains(t, box.last("900"), "Your food donation has been listed")

	donation, err := ds.GetDonation(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "Rice 5kg", donation.Food)
	assert.Equal(t, "Park St", donation.Location)
	assert.Equal(t, "555-0900", donation.DonorContact)
	assert.Equal(t, "2025-06-01 23:00", donation.PickupTime)
	assert.Equal(t, model.StatusAvailable, donation.Status)

	// 登録済みNGOに通知が届く
	for _, chatID := range []string{"100", "200"} {
		alert := box.last(chatID)
		assert.Contains(t, alert, "New Food Donation Alert")
		assert.Contains(t, alert, "#0")
		assert.Contains(t, alert, "`/accept 0`")
	}

	h.HandleMessage(ctx, command("100", cmdAccept, "0"))
	assert.Equal(t, "✅ You claimed donation #0 successfully!", box.last("100"))
	assert.Equal(t, "❌ Donation #0 has been claimed by *Helping Hands*.", box.last("200"))

	donation, err = ds.GetDonation(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, model.ClaimedBy("Helping Hands"), donation.Status)

	h.HandleMessage(ctx, command("200", cmdAccept, "0"))
	assert.Contains(t, box.last("200"), "already claimed")
	assert.Contains(t, box.last("200"), "Helping Hands")

	donation, err = ds.GetDonation(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, model.ClaimedBy("Helping Hands"), donation.Status)

	// 引き取り済みは一覧に出ない
	h.HandleMessage(ctx, command("200", cmdFindFood, ""))
	assert.Equal(t, "❌ No food donations available right now.", box.last("200"))
}

func TestHandler_invalidTimeKeepsStep(t *testing.T) {
	ctx := context.Background()
	h, box, ds := newTestHandler(t)

	converse(h, "900", "Donor", "Rice 5kg", "Park St")
	assert.Equal(t, "food_time", currentStep(h, "900"))

	for _, bad := range []string{"tomorrow", "25:00", "soon"} {
		h.HandleMessage(ctx, text("900", bad))
		assert.Equal(t, "food_time", currentStep(h, "900"))
		assert.Contains(t, box.last("900"), "Invalid time format")
	}

	donations, err := ds.GetDonations(ctx)
	require.NoError(t, err)
	assert.Empty(t, donations)

	h.HandleMessage(ctx, text("900", "2025-06-02 08:30"))
	s, ok := h.session("900")
	require.True(t, ok)
	assert.Equal(t, model.DonorContact{Food: "Rice 5kg", Location: "Park St", PickupTime: "2025-06-02 08:30"}, s)
}

func TestHandler_ngoRegistrationShowsOnlyAvailable(t *testing.T) {
	ctx := context.Background()
	h, box, ds := newTestHandler(t)

	_, err := ds.SaveDonation(ctx, &model.Donation{Food: "Rice 5kg", Location: "Park St", DonorContact: "555", PickupTime: "2025-06-01 23:00", Status: model.StatusAvailable})
	require.NoError(t, err)
	_, err = ds.SaveDonation(ctx, &model.Donation{Food: "Bread", Location: "Main St", DonorContact: "556", PickupTime: "2025-06-01 23:00", Status: model.ClaimedBy("Food First")})
	require.NoError(t, err)

	converse(h, "100", "ngo", "Helping Hands", "Park St", "555-0100")

	msgs := box.messages("100")
	require.NotEmpty(t, msgs)
	assert.Contains(t, msgs[len(msgs)-2], "NGO registered successfully")
	list := msgs[len(msgs)-1]
	assert.Contains(t, list, "Here are current available donations")
	assert.Contains(t, list, "Rice 5kg")
	assert.Contains(t, list, "`/accept 0`")
	assert.NotContains(t, list, "Bread")
	assert.Equal(t, 1, strings.Count(list, "/accept"))

	ngos, err := ds.GetNGOs(ctx)
	require.NoError(t, err)
	require.Len(t, ngos, 1)
	assert.Equal(t, "Helping Hands", ngos[0].Name)
	assert.Equal(t, "Park St", ngos[0].Location)
	assert.Equal(t, "555-0100", ngos[0].Contact)
	assert.Equal(t, "100", ngos[0].ChatID)
	assert.True(t, testNow.Equal(ngos[0].RegisteredAt))
}

func TestHandler_ngoRegistrationWithoutDonations(t *testing.T) {
	h, box, _ := newTestHandler(t)

	converse(h, "100", "NGO", "Helping Hands", "Park St", "555-0100")

	assert.Equal(t, "✅ No current donations available right now.", box.last("100"))
}

func TestHandler_acceptUsage(t *testing.T) {
	ctx := context.Background()
	h, box, ds := newTestHandler(t)

	_, err := ds.SaveDonation(ctx, &model.Donation{Food: "Rice 5kg", PickupTime: "2025-06-01 23:00", Status: model.StatusAvailable})
	require.NoError(t, err)

	h.HandleMessage(ctx, command("100", cmdAccept, ""))
	assert.Equal(t, "⚠️ Please provide a donation number. Example: `/accept 3`", box.last("100"))

	for _, arg := range []string{"abc", "1.5", "-1"} {
		h.HandleMessage(ctx, command("100", cmdAccept, arg))
		assert.Equal(t, "⚠️ Invalid number. Example: `/accept 3`", box.last("100"), arg)
	}

	donation, err := ds.GetDonation(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, model.StatusAvailable, donation.Status)

	h.HandleMessage(ctx, command("100", cmdAccept, "7"))
	assert.Equal(t, "❌ Donation not found.", box.last("100"))
}

func TestHandler_acceptByUnregisteredChat(t *testing.T) {
	ctx := context.Background()
	h, _, ds := newTestHandler(t)

	_, err := ds.SaveDonation(ctx, &model.Donation{Food: "Rice 5kg", PickupTime: "2025-06-01 23:00", Status: model.StatusAvailable})
	require.NoError(t, err)

	h.HandleMessage(ctx, command("555", cmdAccept, "0"))

	donation, err := ds.GetDonation(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, model.ClaimedBy(model.UnknownNGO), donation.Status)
}

func TestHandler_broadcastFailureDoesNotAbort(t *testing.T) {
	ctx := context.Background()
	h, box, ds := newTestHandler(t, "200")

	converse(h, "100", "NGO", "Helping Hands", "Park St", "555-0100")
	converse(h, "200", "NGO", "Gone NGO", "Nowhere", "000")
	converse(h, "300", "NGO", "Food First", "Main St", "555-0300")

	converse(h, "900", "Donor", "Rice 5kg", "Park St", "11:00 PM", "555-0900")

	donations, err := ds.GetDonations(ctx)
	require.NoError(t, err)
	require.Len(t, donations, 1)

	assert.Contains(t, box.last("100"), "New Food Donation Alert")
	assert.Contains(t, box.last("300"), "New Food Donation Alert")
	assert.Contains(t, box.last("900"), "Your food donation has been listed")
}

func TestHandler_broadcastResults(t *testing.T) {
	h, _, _ := newTestHandler(t, "2")

	results := h.broadcast(context.Background(), []string{"1", "2", "3"}, "hello")

	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)
	assert.Equal(t, "2", results[1].ChatID)
	assert.NoError(t, results[2].Err)
}

func TestHandler_textWithoutSession(t *testing.T) {
	h, box, _ := newTestHandler(t)

	h.HandleMessage(context.Background(), text("100", "hello"))

	assert.Contains(t, box.last("100"), "/start")
}

func TestHandler_emptyTextIsNotAnAnswer(t *testing.T) {
	ctx := context.Background()
	h, box, ds := newTestHandler(t)

	// 文字の無いメッセージは会話が無くても返事をしない
	h.HandleMessage(ctx, text("100", ""))
	assert.Empty(t, box.messages("100"))

	converse(h, "100", "NGO")
	sent := len(box.messages("100"))
	for _, blank := range []string{"", "  ", "\n", ""} {
		h.HandleMessage(ctx, text("100", blank))
	}
	assert.Equal(t, "ngo_name", currentStep(h, "100"))
	assert.Len(t, box.messages("100"), sent)

	ngos, err := ds.GetNGOs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ngos)

	h.HandleMessage(ctx, text("100", "Helping Hands"))
	assert.Equal(t, "ngo_location", currentStep(h, "100"))
}

func TestHandler_userTextIsEscaped(t *testing.T) {
	ctx := context.Background()
	h, box, ds := newTestHandler(t)

	converse(h, "100", "NGO", "Helping_Hands", "Park St", "555-0100")
	converse(h, "200", "NGO", "Food First", "Main St", "555-0200")
	converse(h, "900", "Donor", "*Rice* 5kg", "Park_St", "11:00 PM", "john_doe")

	alert := box.last("100")
	assert.Contains(t, alert, "🍛 *New Food Donation Alert!*")
	assert.Contains(t, alert, `🍲 \*Rice\* 5kg`)
	assert.Contains(t, alert, `📍 Park\_St`)
	assert.Contains(t, alert, `📞 Contact: john\_doe`)

	// 保存される値はエスケープしない
	donation, err := ds.GetDonation(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "john_doe", donation.DonorContact)

	h.HandleMessage(ctx, command("100", cmdAccept, "0"))
	assert.Equal(t, `❌ Donation #0 has been claimed by *Helping\_Hands*.`, box.last("200"))

	h.HandleMessage(ctx, command("200", cmdAccept, "0"))
	assert.Equal(t, `⚠️ This donation is already claimed (Claimed by Helping\_Hands).`, box.last("200"))
}

func TestHandler_restartResetsConversation(t *testing.T) {
	h, _, _ := newTestHandler(t)

	converse(h, "900", "Donor", "Rice 5kg")
	assert.Equal(t, "food_location", currentStep(h, "900"))

	h.HandleMessage(context.Background(), command("900", cmdStart, ""))
	assert.Equal(t, "choosing_role", currentStep(h, "900"))
}

func TestHandler_sessionExpires(t *testing.T) {
	h, box, ds := newTestHandler(t)
	h.sessions = newSessionCache(20 * time.Millisecond)

	converse(h, "900", "Donor", "Rice 5kg")
	time.Sleep(50 * time.Millisecond)

	h.HandleMessage(context.Background(), text("900", "Park St"))
	assert.Contains(t, box.last("900"), "/start")

	donations, err := ds.GetDonations(context.Background())
	require.NoError(t, err)
	assert.Empty(t, donations)
}

func TestHandler_unknownCommand(t *testing.T) {
	h, box, _ := newTestHandler(t)

	h.HandleMessage(context.Background(), command("100", "cancel", ""))
	assert.Contains(t, box.last("100"), "Unknown command")

	h.HandleMessage(context.Background(), command("100", cmdHelp, ""))
	assert.Equal(t, helpText, box.last("100"))
}

func TestParseDonationID(t *testing.T) {
	id, err := parseDonationID(" 12 ")
	require.NoError(t, err)
	assert.Equal(t, 12, id)

	for _, args := range []string{"", "  ", "x", "-3", "3.0"} {
		_, err := parseDonationID(args)
		assert.ErrorIs(t, err, model.ErrUsage, args)
	}
}

func TestHandler_Handle(t *testing.T) {
	ctrl := gomock.NewController(t)

	ds, err := infra.NewDataBase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer ds.Close()

	messages := make(chan model.Message, 2)
	messages <- command("1", cmdHelp, "")
	messages <- command("1", cmdFindFood, "")
	close(messages)

	mockMessenger := infra.NewMockMessenger(ctrl)
	mockMessenger.EXPECT().Receive(gomock.Any()).Return((<-chan model.Message)(messages), nil).Times(1)
	gomock.InOrder(
		mockMessenger.EXPECT().Send(gomock.Any(), "1", helpText).Return(nil).Times(1),
		mockMessenger.EXPECT().Send(gomock.Any(), "1", "❌ No food donations available right now.").Return(nil).Times(1),
	)

	h := NewHandler(ds, mockMessenger, Options{})
	assert.NoError(t, h.Handle(context.Background()))
}

func TestHandler_HandleReceiveError(t *testing.T) {
	ctrl := gomock.NewController(t)

	mockMessenger := infra.NewMockMessenger(ctrl)
	mockMessenger.EXPECT().Receive(gomock.Any()).Return(nil, errors.New("unauthorized")).Times(1)

	h := NewHandler(nil, mockMessenger, Options{})
	assert.Error(t, h.Handle(context.Background()))
}
