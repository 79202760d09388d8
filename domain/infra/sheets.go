package infra

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/pyama86/food-donation-bot/domain/model"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// 各行は A〜E の5列
const lastColumn = "E"

var updatedRowPattern = regexp.MustCompile(`![A-Z]+(\d+)`)

type SheetsConfig struct {
	SpreadsheetID string
	// サービスアカウントの JSON
	CredentialsJSON string
	Location        *time.Location
	// テスト用
	Options []option.ClientOption
}

// Sheets は Google スプレッドシートの "NGO" と "Donations" シートを表として扱う。
// スプレッドシートには条件付き更新がないため、ClaimDonation は読み取り後に書き込む。
// 同じ寄付への同時の引き取りは両方成功しうる。
type Sheets struct {
	srv           *sheets.Service
	spreadsheetID string
	loc           *time.Location
}

func NewSheets(ctx context.Context, c SheetsConfig) (*Sheets, error) {
	opts := c.Options
	if len(opts) == 0 {
		if c.CredentialsJSON == "" {
			return nil, fmt.Errorf("google credentials are not set")
		}
		opts = []option.ClientOption{
			option.WithCredentialsJSON([]byte(c.CredentialsJSON)),
			option.WithScopes(sheets.SpreadsheetsScope),
		}
	}
	srv, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	loc := c.Location
	if loc == nil {
		loc = time.Local
	}
	return &Sheets{srv: srv, spreadsheetID: c.SpreadsheetID, loc: loc}, nil
}

func (s *Sheets) appendRow(ctx context.Context, table string, row []string) (int, error) {
	values := make([]interface{}, 0, len(row))
	for _, v := range row {
		values = append(values, v)
	}
	resp, err := s.srv.Spreadsheets.Values.Append(
		s.spreadsheetID,
		fmt.Sprintf("%s!A:%s", table, lastColumn),
		&sheets.ValueRange{Values: [][]interface{}{values}},
	).ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return 0, err
	}
	if resp.Updates == nil {
		return 0, fmt.Errorf("append to %s returned no updated range", table)
	}
	return parseUpdatedRow(resp.Updates.UpdatedRange)
}

// readRows はヘッダを除いた全データ行を返す
func (s *Sheets) readRows(ctx context.Context, table string) ([][]string, error) {
	resp, err := s.srv.Spreadsheets.Values.Get(
		s.spreadsheetID,
		fmt.Sprintf("%s!A2:%s", table, lastColumn),
	).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return toStrings(resp.Values), nil
}

func (s *Sheets) readRow(ctx context.Context, table string, row int) ([]string, error) {
	resp, err := s.srv.Spreadsheets.Values.Get(
		s.spreadsheetID,
		fmt.Sprintf("%s!A%d:%s%d", table, row, lastColumn, row),
	).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	rows := toStrings(resp.Values)
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (s *Sheets) updateCell(ctx context.Context, table string, row int, column, value string) error {
	_, err := s.srv.Spreadsheets.Values.Update(
		s.spreadsheetID,
		fmt.Sprintf("%s!%s%d", table, column, row),
		&sheets.ValueRange{Values: [][]interface{}{{value}}},
	).ValueInputOption("RAW").Context(ctx).Do()
	return err
}

func (s *Sheets) SaveNGO(ctx context.Context, ngo *model.NGO) error {
	_, err := s.appendRow(ctx, ngoTable, ngo.Row())
	return err
}

func (s *Sheets) GetNGOs(ctx context.Context) ([]model.NGO, error) {
	rows, err := s.readRows(ctx, ngoTable)
	if err != nil {
		return nil, err
	}
	ngos := make([]model.NGO, 0, len(rows))
	for _, row := range rows {
		ngos = append(ngos, model.NGOFromRow(row, s.loc))
	}
	return ngos, nil
}

func (s *Sheets) SaveDonation(ctx context.Context, donation *model.Donation) (int, error) {
	row, err := s.appendRow(ctx, donationTable, donation.Row())
	if err != nil {
		return 0, err
	}
	donation.ID = model.RowToDonationID(row)
	return donation.ID, nil
}

func (s *Sheets) GetDonations(ctx context.Context) ([]model.Donation, error) {
	rows, err := s.readRows(ctx, donationTable)
	if err != nil {
		return nil, err
	}
	donations := make([]model.Donation, 0, len(rows))
	for i, row := range rows {
		// データは2行目から
		donations = append(donations, model.DonationFromRow(model.RowToDonationID(i+2), row))
	}
	return donations, nil
}

func (s *Sheets) GetDonation(ctx context.Context, id int) (*model.Donation, error) {
	if id < 0 {
		return nil, model.ErrDonationNotFound
	}
	row, err := s.readRow(ctx, donationTable, model.DonationIDToRow(id))
	if err != nil {
		return nil, err
	}
	if len(row) == 0 {
		return nil, model.ErrDonationNotFound
	}
	donation := model.DonationFromRow(id, row)
	return &donation, nil
}

// ClaimDonation は読んでから書く。Sheets API に条件付き更新がないため、
// 同時に引き取られた場合は後から書いた方が勝つ
func (s *Sheets) ClaimDonation(ctx context.Context, id int, claimant string) error {
	current, err := s.GetDonation(ctx, id)
	if err != nil {
		return err
	}
	if !current.Status.IsAvailable() {
		return &model.AlreadyClaimedError{ID: id, Status: current.Status}
	}
	return s.updateCell(ctx, donationTable, model.DonationIDToRow(id), lastColumn, string(model.ClaimedBy(claimant)))
}

func (s *Sheets) Close() error {
	return nil
}

func parseUpdatedRow(updatedRange string) (int, error) {
	m := updatedRowPattern.FindStringSubmatch(updatedRange)
	if m == nil {
		return 0, fmt.Errorf("unexpected updated range: %q", updatedRange)
	}
	return strconv.Atoi(m[1])
}

func toStrings(values [][]interface{}) [][]string {
	rows := make([][]string, 0, len(values))
	for _, v := range values {
		row := make([]string, 0, len(v))
		for _, c := range v {
			row = append(row, fmt.Sprint(c))
		}
		rows = append(rows, row)
	}
	return rows
}
