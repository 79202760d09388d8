package infra

import (
	"context"

	"github.com/pyama86/food-donation-bot/domain/model"
)

//go:generate mockgen -source=messenger.go -destination=mock_messenger.go -package=infra

type Messenger interface {
	// 受信したメッセージを流すチャネルを返す。ctx が終わるとチャネルは閉じられる
	Receive(context.Context) (<-chan model.Message, error)
	// 太字・インラインコード程度の簡易マークアップでメッセージを送る
	Send(ctx context.Context, chatID, text string) error
	// 選択肢のボタンを付けてメッセージを送る
	SendChoices(ctx context.Context, chatID, text string, choices []string) error
	// 利用者が入力した文字列を、送信時のマークアップで装飾されないようにする
	EscapeText(text string) string
}
