package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/colby-usm/GrantGuru/internal/model"
	"github.com/colby-usm/GrantGuru/internal/normalize"
)

// grantRow is the gorm mapping of the grants table.
type grantRow struct {
	ID                 string  `gorm:"primaryKey;type:text"`
	OpportunityNumber  *string `gorm:"uniqueIndex"`
	Title              string  `gorm:"size:255;not null"`
	Description        string  `gorm:"size:18000;not null"`
	ResearchField      string  `gorm:"size:250;not null"`
	ExpectedAwardCount *int64
	Eligibility        *string
	Provider           *string
	Link               string `gorm:"size:2048;not null"`
	AwardMaxAmount     *int64
	AwardMinAmount     *int64
	ProgramFunding     *int64
	PointOfContact     string `gorm:"not null"`
	PostingDate        *time.Time
	ArchiveDate        *time.Time `gorm:"index"`
	ResponseDate       *time.Time
	LastUpdatedDate    *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (grantRow) TableName() string { return "grants" }

// GormStore keeps grants in any gorm dialect; the service uses it with sqlite.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore migrates the grants table and returns the store.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&grantRow{}); err != nil {
		return nil, fmt.Errorf("migrate grants: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) BeginTx(ctx context.Context) (Tx, error) {
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, fmt.Errorf("gorm begin: %w", tx.Error)
	}
	return &gormTx{db: tx}, nil
}

func (s *GormStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&grantRow{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count grants: %w", err)
	}
	return n, nil
}

func (s *GormStore) List(ctx context.Context) ([]model.StoredRecord, error) {
	var rows []grantRow
	if err := s.db.WithContext(ctx).Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}
	out := make([]model.StoredRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, fromRow(r))
	}
	return out, nil
}

func (s *GormStore) PurgeArchived(ctx context.Context, before time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("archive_date IS NOT NULL AND archive_date < ?", before.UTC()).
		Delete(&grantRow{})
	if res.Error != nil {
		return 0, fmt.Errorf("purge archived: %w", res.Error)
	}
	return res.RowsAffected, nil
}

type gormTx struct {
	db *gorm.DB
}

func (t *gormTx) FindByOpportunityNumber(ctx context.Context, number string) (*model.StoredRecord, error) {
	var row grantRow
	err := t.db.WithContext(ctx).Where("opportunity_number = ?", number).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find grant %q: %w", number, err)
	}
	rec := fromRow(row)
	return &rec, nil
}

func (t *gormTx) Insert(ctx context.Context, rec *model.StoredRecord) error {
	row := toRow(rec)
	if err := t.db.WithContext(ctx).Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("insert grant: %w", ErrConflict)
		}
		return fmt.Errorf("insert grant: %w", err)
	}
	return nil
}

func (t *gormTx) Update(ctx context.Context, rec *model.StoredRecord) error {
	row := toRow(rec)
	res := t.db.WithContext(ctx).Model(&grantRow{ID: row.ID}).Select("*").Omit("id", "created_at").Updates(&row)
	if res.Error != nil {
		return fmt.Errorf("update grant: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *gormTx) Commit(ctx context.Context) error   { return t.db.Commit().Error }
func (t *gormTx) Rollback(ctx context.Context) error { return t.db.Rollback().Error }

func toRow(rec *model.StoredRecord) grantRow {
	c := rec.CleanedRecord
	return grantRow{
		ID:                 rec.ID,
		OpportunityNumber:  c.OpportunityNumber,
		Title:              c.Title,
		Description:        c.Description,
		ResearchField:      c.ResearchField,
		ExpectedAwardCount: c.ExpectedAwardCount,
		Eligibility:        c.Eligibility,
		Provider:           c.Provider,
		Link:               c.Link,
		AwardMaxAmount:     c.AwardMaxAmount,
		AwardMinAmount:     c.AwardMinAmount,
		ProgramFunding:     c.ProgramFunding,
		PointOfContact:     encodeContact(c.PointOfContact),
		PostingDate:        normalize.ParseCanonical(c.Dates.PostingDate),
		ArchiveDate:        normalize.ParseCanonical(c.Dates.ArchiveDate),
		ResponseDate:       normalize.ParseCanonical(c.Dates.ResponseDate),
		LastUpdatedDate:    normalize.ParseCanonical(c.Dates.LastUpdatedDate),
		CreatedAt:          rec.CreatedAt.UTC(),
		UpdatedAt:          rec.UpdatedAt.UTC(),
	}
}

func fromRow(r grantRow) model.StoredRecord {
	return model.StoredRecord{
		ID: r.ID,
		CleanedRecord: model.CleanedRecord{
			OpportunityNumber:  r.OpportunityNumber,
			Title:              r.Title,
			Description:        r.Description,
			ResearchField:      r.ResearchField,
			ExpectedAwardCount: r.ExpectedAwardCount,
			Eligibility:        r.Eligibility,
			Provider:           r.Provider,
			Link:               r.Link,
			AwardMaxAmount:     r.AwardMaxAmount,
			AwardMinAmount:     r.AwardMinAmount,
			ProgramFunding:     r.ProgramFunding,
			PointOfContact:     decodeContact(r.PointOfContact),
			Dates: model.Dates{
				PostingDate:     normalize.FormatCanonical(utcPtr(r.PostingDate)),
				ArchiveDate:     normalize.FormatCanonical(utcPtr(r.ArchiveDate)),
				ResponseDate:    normalize.FormatCanonical(utcPtr(r.ResponseDate)),
				LastUpdatedDate: normalize.FormatCanonical(utcPtr(r.LastUpdatedDate)),
			},
		},
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}
