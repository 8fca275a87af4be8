package store

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/msedata/msesync/models"
)

// Records is the repository for per-issuer daily trading data. The external
// scraper writes the same table; this side only ever upserts during bulk
// imports and reads everywhere else.
type Records struct {
	db *gorm.DB
}

func NewRecords(db *gorm.DB) *Records {
	return &Records{db: db}
}

// Upsert inserts a record or replaces the existing row for the same
// (issuer, date) key. A duplicate key is the expected steady-state case on
// re-runs, never an error.
func (r *Records) Upsert(record models.IssuerData) error {
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "issuer"}, {Name: "date"}},
		UpdateAll: true,
	}).Create(&record).Error
	if err != nil {
		return fmt.Errorf("failed to upsert record %s/%s: %w", record.Issuer, record.Date, err)
	}
	return nil
}

// UpsertBatch upserts a batch of records in one statement.
func (r *Records) UpsertBatch(records []models.IssuerData) error {
	if len(records) == 0 {
		return nil
	}
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "issuer"}, {Name: "date"}},
		UpdateAll: true,
	}).CreateInBatches(records, len(records)).Error
	if err != nil {
		return fmt.Errorf("failed to upsert batch of %d records: %w", len(records), err)
	}
	return nil
}

// Issuers returns the distinct issuer codes present, lexicographically
// sorted so API responses are deterministic.
func (r *Records) Issuers() ([]string, error) {
	issuers := make([]string, 0)
	err := r.db.Model(&models.IssuerData{}).
		Distinct("issuer").
		Order("issuer").
		Pluck("issuer", &issuers).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list issuers: %w", err)
	}
	return issuers, nil
}

// All returns the full snapshot ordered by issuer then date.
func (r *Records) All() ([]models.IssuerData, error) {
	records := make([]models.IssuerData, 0)
	err := r.db.Order("issuer, date").Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load records: %w", err)
	}
	return records, nil
}

// ByIssuer returns one issuer's records in chronological order. An unknown
// issuer yields an empty slice: no data yet is a normal state.
func (r *Records) ByIssuer(issuer string) ([]models.IssuerData, error) {
	records := make([]models.IssuerData, 0)
	err := r.db.Where("issuer = ?", issuer).Order("date").Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load records for %s: %w", issuer, err)
	}
	return records, nil
}
