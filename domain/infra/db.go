package infra

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/jinzhu/gorm"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pyama86/food-donation-bot/domain/model"
)

// donations テーブルの1行。Seq は1始まりの連番で、寄付IDは Seq-1
type donationRecord struct {
	Seq          uint   `gorm:"primary_key"`
	Food         string `gorm:"type:text"`
	Location     string `gorm:"type:text"`
	DonorContact string `gorm:"type:varchar(100)"`
	PickupTime   string `gorm:"type:varchar(16)"`
	Status       string `gorm:"type:varchar(200);index"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (donationRecord) TableName() string {
	return "donations"
}

func (r donationRecord) toModel() model.Donation {
	return model.Donation{
		ID:           int(r.Seq) - 1,
		Food:         r.Food,
		Location:     r.Location,
		DonorContact: r.DonorContact,
		PickupTime:   r.PickupTime,
		Status:       model.DonationStatus(r.Status),
	}
}

type DataBase struct {
	db *gorm.DB
}

func NewDataBase(dbpath string) (*DataBase, error) {
	if dbpath == "" {
		dbpath = "./db/food_donation.db"
	}
	if dbpath != ":memory:" {
		if !path.IsAbs(dbpath) {
			dbpath = path.Join(os.Getenv("PWD"), dbpath)
		}
		if err := os.MkdirAll(filepath.Dir(dbpath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create db directory: %w", err)
		}
	}
	db, err := gorm.Open("sqlite3", dbpath)
	if err != nil {
		return nil, err
	}
	// sqlite は書き込みを1本に絞る
	db.DB().SetMaxOpenConns(1)
	if err := db.AutoMigrate(&model.NGO{}, &donationRecord{}).Error; err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return &DataBase{db: db}, nil
}

func (d *DataBase) SaveNGO(ctx context.Context, ngo *model.NGO) error {
	return d.db.Create(ngo).Error
}

func (d *DataBase) GetNGOs(ctx context.Context) ([]model.NGO, error) {
	var ngos []model.NGO
	err := d.db.Order("id asc").Find(&ngos).Error
	return ngos, err
}

func (d *DataBase) SaveDonation(ctx context.Context, donation *model.Donation) (int, error) {
	record := donationRecord{
		Food:         donation.Food,
		Location:     donation.Location,
		DonorContact: donation.DonorContact,
		PickupTime:   donation.PickupTime,
		Status:       string(donation.Status),
	}
	if err := d.db.Create(&record).Error; err != nil {
		return 0, err
	}
	donation.ID = int(record.Seq) - 1
	return donation.ID, nil
}

func (d *DataBase) GetDonations(ctx context.Context) ([]model.Donation, error) {
	var records []donationRecord
	if err := d.db.Order("seq asc").Find(&records).Error; err != nil {
		return nil, err
	}
	donations := make([]model.Donation, 0, len(records))
	for _, r := range records {
		donations = append(donations, r.toModel())
	}
	return donations, nil
}

func (d *DataBase) GetDonation(ctx context.Context, id int) (*model.Donation, error) {
	if id < 0 {
		return nil, model.ErrDonationNotFound
	}
	var record donationRecord
	err := d.db.Where("seq = ?", id+1).First(&record).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil, model.ErrDonationNotFound
	}
	if err != nil {
		return nil, err
	}
	donation := record.toModel()
	return &donation, nil
}

func (d *DataBase) ClaimDonation(ctx context.Context, id int, claimant string) error {
	result := d.db.Model(&donationRecord{}).
		Where("seq = ? AND status = ?", id+1, string(model.StatusAvailable)).
		Update("status", string(model.ClaimedBy(claimant)))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	// 更新できなかった理由を調べる
	current, err := d.GetDonation(ctx, id)
	if err != nil {
		return err
	}
	return &model.AlreadyClaimedError{ID: id, Status: current.Status}
}

func (d *DataBase) Close() error {
	return d.db.Close()
}
