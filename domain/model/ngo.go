package model

import "time"

const (
	// UnnamedNGO is used when a registered NGO left its name empty.
	UnnamedNGO = "Unnamed NGO"
	// UnknownNGO is used when the requester never registered.
	UnknownNGO = "Unknown NGO"
)

// 登録済みNGO
type NGO struct {
	ID           uint      `gorm:"primary_key" json:"-"`
	Name         string    `gorm:"type:varchar(200)" json:"name"`
	Location     string    `gorm:"type:text" json:"location"`
	Contact      string    `gorm:"type:varchar(100)" json:"contact"`
	ChatID       string    `gorm:"type:varchar(50);index" json:"chat_id"`
	RegisteredAt time.Time `json:"registered_at"`
}

// Row returns the NGO as a table row: name, location, contact, chat_id, registered_at.
func (n NGO) Row() []string {
	return []string{n.Name, n.Location, n.Contact, n.ChatID, FormatCanonicalTime(n.RegisteredAt)}
}

// NGOFromRow は [name, location, contact, chat_id, registered_at] の行をNGOに変換する
func NGOFromRow(row []string, loc *time.Location) NGO {
	n := NGO{
		Name:     cell(row, 0),
		Location: cell(row, 1),
		Contact:  cell(row, 2),
		ChatID:   cell(row, 3),
	}
	if t, err := ParseCanonicalTime(cell(row, 4), loc); err == nil {
		n.RegisteredAt = t
	}
	return n
}

// ResolveNGOName は chatID に紐づくNGO名を返す。複数登録がある場合は最後の登録を優先する
func ResolveNGOName(ngos []NGO, chatID string) string {
	name := UnknownNGO
	for _, n := range ngos {
		if n.ChatID != chatID {
			continue
		}
		name = n.Name
		if name == "" {
			name = UnnamedNGO
		}
	}
	return name
}

// NGOChatIDs returns the distinct chat ids of the given NGOs in registration order, skipping exclude.
func NGOChatIDs(ngos []NGO, exclude string) []string {
	seen := make(map[string]struct{}, len(ngos))
	ids := make([]string, 0, len(ngos))
	for _, n := range ngos {
		if n.ChatID == "" || n.ChatID == exclude {
			continue
		}
		if _, ok := seen[n.ChatID]; ok {
			continue
		}
		seen[n.ChatID] = struct{}{}
		ids = append(ids, n.ChatID)
	}
	return ids
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}
