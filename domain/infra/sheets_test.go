package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pyama86/food-donation-bot/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

var a1Pattern = regexp.MustCompile(`^([^!]+)!([A-Z]+)(\d*)(?::([A-Z]+)(\d*))?$`)

// fakeSpreadsheet は values.get / values.append / values.update だけを受け付ける
type fakeSpreadsheet struct {
	mu     sync.Mutex
	tables map[string][][]string
}

func newFakeSpreadsheet() *fakeSpreadsheet {
	return &fakeSpreadsheet{tables: map[string][][]string{
		ngoTable:      {{"NGO Name", "Location", "Contact", "Chat ID", "Registered At"}},
		donationTable: {{"Food", "Location", "Donor Contact", "Pickup Time", "Status"}},
	}}
}

func (f *fakeSpreadsheet) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	i := strings.Index(r.URL.Path, "/values/")
	if i < 0 {
		http.NotFound(w, r)
		return
	}
	a1 := r.URL.Path[i+len("/values/"):]
	isAppend := strings.HasSuffix(a1, ":append")
	a1 = strings.TrimSuffix(a1, ":append")
	m := a1Pattern.FindStringSubmatch(a1)
	if m == nil {
		http.Error(w, "bad range "+a1, http.StatusBadRequest)
		return
	}
	table := m[1]
	startRow, _ := strconv.Atoi(m[3])
	endRow, _ := strconv.Atoi(m[5])

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet:
		rows := f.tables[table]
		if startRow == 0 {
			startRow = 1
		}
		if endRow == 0 || endRow > len(rows) {
			endRow = len(rows)
		}
		var values [][]string
		for n := startRow; n <= endRow; n++ {
			values = append(values, rows[n-1])
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"range": a1, "values": values})
	case r.Method == http.MethodPost && isAppend:
		var body struct {
			Values [][]string `json:"values"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		f.tables[table] = append(f.tables[table], body.Values...)
		n := len(f.tables[table])
		json.NewEncoder(w).Encode(map[string]interface{}{
			"updates": map[string]interface{}{"updatedRange": fmt.Sprintf("%s!A%d:E%d", table, n, n)},
		})
	case r.Method == http.MethodPut:
		var body struct {
			Values [][]string `json:"values"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		col := int(m[2][0] - 'A')
		row := f.tables[table][startRow-1]
		for len(row) <= col {
			row = append(row, "")
		}
		row[col] = body.Values[0][0]
		f.tables[table][startRow-1] = row
		json.NewEncoder(w).Encode(map[string]interface{}{"updatedRange": a1})
	default:
		http.Error(w, "unsupported", http.StatusMethodNotAllowed)
	}
}

func newTestSheets(t *testing.T) (*Sheets, *fakeSpreadsheet) {
	t.Helper()
	fake := newFakeSpreadsheet()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	s, err := NewSheets(context.Background(), SheetsConfig{
		SpreadsheetID: "sheet-id",
		Location:      time.UTC,
		Options: []option.ClientOption{
			option.WithEndpoint(server.URL + "/"),
			option.WithHTTPClient(server.Client()),
		},
	})
	require.NoError(t, err)
	return s, fake
}

func TestSheets_DonationsUseRowOffset(t *testing.T) {
	ctx := context.Background()
	s, fake := newTestSheets(t)

	for i, food := range []string{"Rice 5kg", "Bread"} {
		id, err := s.SaveDonation(ctx, &model.Donation{Food: food, Location: "Park St", DonorContact: "555", PickupTime: "2025-06-01 23:00", Status: model.StatusAvailable})
		require.NoError(t, err)
		assert.Equal(t, i, id)
	}
	// ID 0 はヘッダの次の2行目
	assert.Equal(t, "Rice 5kg", fake.tables[donationTable][2-1][0])

	donations, err := s.GetDonations(ctx)
	require.NoError(t, err)
	require.Len(t, donations, 2)
	assert.Equal(t, 0, donations[0].ID)
	assert.Equal(t, "Bread", donations[1].Food)
	assert.Equal(t, 1, donations[1].ID)

	d, err := s.GetDonation(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Bread", d.Food)

	_, err = s.GetDonation(ctx, 2)
	assert.ErrorIs(t, err, model.ErrDonationNotFound)
}

func TestSheets_ClaimDonation(t *testing.T) {
	ctx := context.Background()
	s, fake := newTestSheets(t)

	_, err := s.SaveDonation(ctx, &model.Donation{Food: "Rice 5kg", PickupTime: "2025-06-01 23:00", Status: model.StatusAvailable})
	require.NoError(t, err)

	require.NoError(t, s.ClaimDonation(ctx, 0, "Helping Hands"))
	assert.Equal(t, "Claimed by Helping Hands", fake.tables[donationTable][1][4])

	err = s.ClaimDonation(ctx, 0, "Food First")
	var claimed *model.AlreadyClaimedError
	require.ErrorAs(t, err, &claimed)
	assert.Equal(t, "Helping Hands", claimed.Claimant())

	assert.ErrorIs(t, s.ClaimDonation(ctx, 4, "Food First"), model.ErrDonationNotFound)
}

func TestSheets_NGOs(t *testing.T) {
	ctx := context.Background()
	s, fake := newTestSheets(t)

	registeredAt := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveNGO(ctx, &model.NGO{Name: "Helping Hands", Location: "Park St", Contact: "555", ChatID: "100", RegisteredAt: registeredAt}))
	assert.Equal(t, []string{"Helping Hands", "Park St", "555", "100", "2025-06-01 10:00"}, fake.tables[ngoTable][1])

	ngos, err := s.GetNGOs(ctx)
	require.NoError(t, err)
	require.Len(t, ngos, 1)
	assert.Equal(t, "100", ngos[0].ChatID)
	assert.True(t, registeredAt.Equal(ngos[0].RegisteredAt))
}

func TestParseUpdatedRow(t *testing.T) {
	row, err := parseUpdatedRow("Donations!A7:E7")
	require.NoError(t, err)
	assert.Equal(t, 7, row)

	_, err = parseUpdatedRow("Donations")
	assert.Error(t, err)
}
