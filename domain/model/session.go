package model

// Session is the in-progress registration of one chat identity.
// Each step carries only the fields collected before it.
type Session interface {
	Step() string
}

type ChoosingRole struct{}

type NGOName struct{}

type NGOLocation struct {
	Name string
}

type NGOContact struct {
	Name     string
	Location string
}

type FoodDetails struct{}

type FoodLocation struct {
	Food string
}

type FoodTime struct {
	Food     string
	Location string
}

type DonorContact struct {
	Food       string
	Location   string
	PickupTime string
}

func (ChoosingRole) Step() string { return "choosing_role" }
func (NGOName) Step() string      { return "ngo_name" }
func (NGOLocation) Step() string  { return "ngo_location" }
func (NGOContact) Step() string   { return "ngo_contact" }
func (FoodDetails) Step() string  { return "food_details" }
func (FoodLocation) Step() string { return "food_location" }
func (FoodTime) Step() string     { return "food_time" }
func (DonorContact) Step() string { return "donor_contact" }
