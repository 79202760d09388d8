package model

import (
	"strings"
	"time"
)

// DonationStatus is either "Available" or "Claimed by <name>".
type DonationStatus string

const (
	StatusAvailable DonationStatus = "Available"

	claimedPrefix = "Claimed by "
)

// ClaimedBy returns the status recorded when name claims a donation.
func ClaimedBy(name string) DonationStatus {
	return DonationStatus(claimedPrefix + name)
}

func (s DonationStatus) IsAvailable() bool {
	return s == StatusAvailable
}

// Claimant returns the claiming NGO name when the status is a claim.
func (s DonationStatus) Claimant() (string, bool) {
	if !strings.HasPrefix(string(s), claimedPrefix) {
		return "", false
	}
	return strings.TrimPrefix(string(s), claimedPrefix), true
}

// 表の1行目はヘッダ。寄付IDは0始まりで、1件目のデータ行(2行目)がID 0になる
const headerRows = 1

// RowToDonationID converts a 1-based table row into the public donation id.
func RowToDonationID(row int) int {
	return row - headerRows - 1
}

// DonationIDToRow converts a public donation id into its 1-based table row.
func DonationIDToRow(id int) int {
	return id + headerRows + 1
}

// 食品の寄付
type Donation struct {
	ID           int
	Food         string
	Location     string
	DonorContact string
	PickupTime   string
	Status       DonationStatus
}

// Row returns the donation as a table row: food, location, donor_contact, pickup_time, status.
func (d Donation) Row() []string {
	return []string{d.Food, d.Location, d.DonorContact, d.PickupTime, string(d.Status)}
}

// DonationFromRow は [food, location, donor_contact, pickup_time, status] の行を寄付に変換する
func DonationFromRow(id int, row []string) Donation {
	return Donation{
		ID:           id,
		Food:         cell(row, 0),
		Location:     cell(row, 1),
		DonorContact: cell(row, 2),
		PickupTime:   cell(row, 3),
		Status:       DonationStatus(cell(row, 4)),
	}
}

// AvailableAt reports whether the donation can still be claimed at now.
// A pickup time that is not in the canonical layout makes the donation unavailable.
func (d Donation) AvailableAt(now time.Time) bool {
	if !d.Status.IsAvailable() {
		return false
	}
	pickup, err := ParseCanonicalTime(d.PickupTime, now.Location())
	if err != nil {
		return false
	}
	return pickup.After(now)
}

// AvailableDonations は未引き取りかつ受け取り時刻が未来の寄付を、表の順序のまま返す
func AvailableDonations(donations []Donation, now time.Time) []Donation {
	available := make([]Donation, 0, len(donations))
	for _, d := range donations {
		if d.AvailableAt(now) {
			available = append(available, d)
		}
	}
	return available
}
