package store

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/msedata/msesync/models"
)

// Watermarks tracks the last synced date per issuer.
type Watermarks struct {
	db *gorm.DB
}

func NewWatermarks(db *gorm.DB) *Watermarks {
	return &Watermarks{db: db}
}

// LastDate returns the issuer's watermark. ok is false if the issuer was
// never synced.
func (w *Watermarks) LastDate(issuer string) (models.IssuerDate, bool, error) {
	var mark models.IssuerDate
	err := w.db.Where("issuer = ?", issuer).First(&mark).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.IssuerDate{}, false, nil
	}
	if err != nil {
		return models.IssuerDate{}, false, fmt.Errorf("failed to load watermark for %s: %w", issuer, err)
	}
	return mark, true, nil
}

// Advance moves the issuer's watermark to date, but only forward: if a row
// exists with an equal or later date the call is a no-op. The guard lives in
// the conflict clause so a slow or out-of-order sync run can never rewind
// progress, even with concurrent writers.
func (w *Watermarks) Advance(issuer string, date models.TradeDate) error {
	mark := models.IssuerDate{Issuer: issuer, LastDate: date}
	err := w.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "issuer"}},
		DoUpdates: clause.Assignments(map[string]any{"last_date": date}),
		Where: clause.Where{
			Exprs: []clause.Expression{
				clause.Expr{SQL: "issuer_dates.last_date < excluded.last_date"},
			},
		},
	}).Create(&mark).Error
	if err != nil {
		return fmt.Errorf("failed to advance watermark for %s: %w", issuer, err)
	}
	return nil
}
