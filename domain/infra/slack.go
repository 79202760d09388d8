package infra

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/pyama86/food-donation-bot/domain/model"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/slackutilsx"
	"github.com/slack-go/slack/socketmode"
)

const choiceActionPrefix = "choice_"

type SlackAPI interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
	AuthTestContext(ctx context.Context) (*slack.AuthTestResponse, error)
	OpenConversationContext(ctx context.Context, params *slack.OpenConversationParameters) (*slack.Channel, bool, bool, error)
}

type SlackConfig struct {
	BotToken string
	AppToken string
	// テスト用
	Options []slack.Option
}

// Slack はソケットモードで DM・スラッシュコマンド・ボタン操作を受け取る。
// どこから操作されても同じ相手として扱うため、チャットIDにはユーザーIDを使い、返信はその人との DM に送る
type Slack struct {
	client     SlackAPI
	socketMode *socketmode.Client

	mu sync.Mutex
	// ユーザーID -> DM のチャンネルID
	dmChannels map[string]string
}

func NewSlack(c SlackConfig) (*Slack, error) {
	opts := append([]slack.Option{slack.OptionAppLevelToken(c.AppToken)}, c.Options...)
	api := slack.New(c.BotToken, opts...)
	return &Slack{
		client:     api,
		socketMode: socketmode.New(api),
	}, nil
}

func (s *Slack) Receive(ctx context.Context) (<-chan model.Message, error) {
	authTest, err := s.client.AuthTestContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("SLACK_BOT_TOKEN is invalid: %w", err)
	}
	slog.Info("Authorized on slack", slog.String("user_id", authTest.UserID))

	out := make(chan model.Message)
	go func() {
		if err := s.socketMode.RunContext(ctx); err != nil && ctx.Err() == nil {
			slog.Error("socket mode stopped", slog.Any("err", err))
		}
	}()
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case envelope, ok := <-s.socketMode.Events:
				if !ok {
					return
				}
				if envelope.Request != nil {
					s.socketMode.Ack(*envelope.Request)
				}
				msg, ok := messageFromEnvelope(envelope)
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

// dmChannel はユーザーとの DM を開き、チャンネルIDを覚えておく
func (s *Slack) dmChannel(ctx context.Context, userID string) (string, error) {
	s.mu.Lock()
	channelID, ok := s.dmChannels[userID]
	s.mu.Unlock()
	if ok {
		return channelID, nil
	}

	channel, _, _, err := s.client.OpenConversationContext(ctx, &slack.OpenConversationParameters{
		Users: []string{userID},
	})
	if err != nil {
		return "", fmt.Errorf("failed to open DM with %s: %w", userID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dmChannels == nil {
		s.dmChannels = map[string]string{}
	}
	s.dmChannels[userID] = channel.ID
	return channel.ID, nil
}

func (s *Slack) Send(ctx context.Context, chatID, text string) error {
	channelID, err := s.dmChannel(ctx, chatID)
	if err != nil {
		return err
	}
	_, _, err = s.client.PostMessageContext(ctx, channelID, slack.MsgOptionText(text, false))
	return err
}

func (s *Slack) SendChoices(ctx context.Context, chatID, text string, choices []string) error {
	channelID, err := s.dmChannel(ctx, chatID)
	if err != nil {
		return err
	}
	_, _, err = s.client.PostMessageContext(
		ctx,
		channelID,
		slack.MsgOptionText(text, false),
		slack.MsgOptionBlocks(choiceBlocks(text, choices)...),
	)
	return err
}

func (s *Slack) EscapeText(text string) string {
	return slackutilsx.EscapeMessage(text)
}

func choiceBlocks(text string, choices []string) []slack.Block {
	buttons := make([]slack.BlockElement, 0, len(choices))
	for i, c := range choices {
		buttons = append(buttons, slack.NewButtonBlockElement(
			fmt.Sprintf("%s%d", choiceActionPrefix, i),
			c,
			slack.NewTextBlockObject("plain_text", c, false, false),
		))
	}
	return []slack.Block{
		slack.NewSectionBlock(
			slack.NewTextBlockObject("mrkdwn", text, false, false),
			nil, nil,
		),
		slack.NewActionBlock("choices", buttons...),
	}
}

func messageFromEnvelope(envelope socketmode.Event) (model.Message, bool) {
	switch envelope.Type {
	case socketmode.EventTypeSlashCommand:
		cmd, ok := envelope.Data.(slack.SlashCommand)
		if !ok {
			slog.Error("Failed to cast to SlashCommand")
			return model.Message{}, false
		}
		return model.Message{
			ChatID:  cmd.UserID,
			Text:    strings.TrimSpace(cmd.Command + " " + cmd.Text),
			Command: strings.TrimPrefix(cmd.Command, "/"),
			Args:    strings.TrimSpace(cmd.Text),
		}, true
	case socketmode.EventTypeEventsAPI:
		eventPayload, ok := envelope.Data.(slackevents.EventsAPIEvent)
		if !ok {
			slog.Error("Failed to cast to EventsAPIEvent")
			return model.Message{}, false
		}
		ev, ok := eventPayload.InnerEvent.Data.(*slackevents.MessageEvent)
		// DM の人間の発言だけを扱う
		if !ok || ev.ChannelType != "im" || ev.BotID != "" || ev.SubType != "" || ev.User == "" {
			return model.Message{}, false
		}
		return model.Message{ChatID: ev.User, Text: ev.Text}, true
	case socketmode.EventTypeInteractive:
		callback, ok := envelope.Data.(slack.InteractionCallback)
		if !ok {
			slog.Error("Failed to cast to InteractionCallback")
			return model.Message{}, false
		}
		if callback.Type != slack.InteractionTypeBlockActions || len(callback.ActionCallback.BlockActions) < 1 {
			return model.Message{}, false
		}
		action := callback.ActionCallback.BlockActions[0]
		if !strings.HasPrefix(action.ActionID, choiceActionPrefix) {
			return model.Message{}, false
		}
		return model.Message{ChatID: callback.User.ID, Text: action.Value}, true
	}
	return model.Message{}, false
}
