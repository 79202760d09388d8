package model

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTimeFormat は受け取り時刻がどの書式にも一致しなかった場合に返す
	ErrInvalidTimeFormat = errors.New("invalid pickup time format")
	// ErrUsage はコマンド引数が無い、もしくは数値でない場合に返す
	ErrUsage = errors.New("invalid command usage")
	// ErrDonationNotFound は指定された寄付IDに行が存在しない場合に返す
	ErrDonationNotFound = errors.New("donation not found")
	// ErrAlreadyClaimed は寄付がすでに引き取り済みの場合に返す
	ErrAlreadyClaimed = errors.New("donation already claimed")
)

// AlreadyClaimedError carries the current status of a donation that lost a claim.
type AlreadyClaimedError struct {
	ID     int
	Status DonationStatus
}

func (e *AlreadyClaimedError) Error() string {
	return fmt.Sprintf("donation #%d is already claimed (%s)", e.ID, e.Status)
}

func (e *AlreadyClaimedError) Is(target error) bool {
	return target == ErrAlreadyClaimed
}

// Claimant returns the name recorded in the status, or the raw status when it is not a claim.
func (e *AlreadyClaimedError) Claimant() string {
	if name, ok := e.Status.Claimant(); ok {
		return name
	}
	return string(e.Status)
}
