package model

import (
	"strings"
	"time"
)

// CanonicalTimeLayout is the storage form of every timestamp: YYYY-MM-DD HH:MM.
const CanonicalTimeLayout = "2006-01-02 15:04"

// 当日の日付と組み合わせて解釈する12時間表記
var clockLayouts = []string{
	"3:04 PM",
	"3:04PM",
	"3 PM",
	"3PM",
}

// ParsePickupTime は自由入力の受け取り時刻を解釈する。
// 1. "2006-01-02 15:04"
// 2. 当日 + "3:04 PM"
// 3. 当日 + "3 PM"
// の順で試し、最初に成功したものを返す。"当日" は now の日付。
func ParsePickupTime(text string, now time.Time) (time.Time, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, ErrInvalidTimeFormat
	}

	if t, err := ParseCanonicalTime(text, now.Location()); err == nil {
		return t, nil
	}

	upper := strings.ToUpper(text)
	for _, layout := range clockLayouts {
		clock, err := time.Parse(layout, upper)
		if err != nil {
			continue
		}
		return time.Date(now.Year(), now.Month(), now.Day(), clock.Hour(), clock.Minute(), 0, 0, now.Location()), nil
	}
	return time.Time{}, ErrInvalidTimeFormat
}

// ParseCanonicalTime parses only the storage layout.
func ParseCanonicalTime(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation(CanonicalTimeLayout, strings.TrimSpace(s), loc)
}

func FormatCanonicalTime(t time.Time) string {
	return t.Format(CanonicalTimeLayout)
}
