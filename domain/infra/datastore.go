package infra

import (
	"context"

	"github.com/pyama86/food-donation-bot/domain/model"
)

// 表の名前
const (
	ngoTable      = "NGO"
	donationTable = "Donations"
)

type Datastore interface {
	// NGOの登録を追記する
	SaveNGO(context.Context, *model.NGO) error
	// 登録済みのNGOを登録順に全件取得する
	GetNGOs(context.Context) ([]model.NGO, error)

	// 寄付を追記し、採番された寄付IDを返す
	SaveDonation(context.Context, *model.Donation) (int, error)
	// 寄付を表の順序で全件取得する
	GetDonations(context.Context) ([]model.Donation, error)
	// 寄付を1件取得する。存在しなければ model.ErrDonationNotFound
	GetDonation(context.Context, int) (*model.Donation, error)
	// 状態が Available の場合だけ "Claimed by <name>" に更新する。
	// すでに引き取り済みなら *model.AlreadyClaimedError を返す
	ClaimDonation(context.Context, int, string) error

	Close() error
}
