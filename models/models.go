package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// DateLayout is the wire format for trading dates, both in JSON responses
// and in the scraper's CSV dumps once normalized.
const DateLayout = "2006-01-02"

// TradeDate is a calendar date without a time component. It maps to a DATE
// column and serializes as "2006-01-02" in JSON, which is what clients of
// the old backend already parse.
type TradeDate struct {
	t time.Time
}

func NewTradeDate(year int, month time.Month, day int) TradeDate {
	return TradeDate{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseTradeDate parses a "2006-01-02" date string.
func ParseTradeDate(s string) (TradeDate, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return TradeDate{}, fmt.Errorf("invalid date format: %w", err)
	}
	return TradeDate{t: t}, nil
}

func (d TradeDate) String() string          { return d.t.Format(DateLayout) }
func (d TradeDate) Time() time.Time         { return d.t }
func (d TradeDate) IsZero() bool            { return d.t.IsZero() }
func (d TradeDate) Before(o TradeDate) bool { return d.t.Before(o.t) }
func (d TradeDate) After(o TradeDate) bool  { return d.t.After(o.t) }
func (d TradeDate) Equal(o TradeDate) bool  { return d.t.Equal(o.t) }

func (d TradeDate) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.t.Format(DateLayout) + `"`), nil
}

func (d *TradeDate) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		return nil
	}
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("invalid date %q", s)
	}
	parsed, err := ParseTradeDate(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d TradeDate) Value() (driver.Value, error) {
	return d.t, nil
}

func (d *TradeDate) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		d.t = time.Date(v.Year(), v.Month(), v.Day(), 0, 0, 0, 0, time.UTC)
		return nil
	case string:
		if len(v) > len(DateLayout) {
			v = v[:len(DateLayout)]
		}
		parsed, err := time.Parse(DateLayout, v)
		if err != nil {
			return fmt.Errorf("scan date %q: %w", v, err)
		}
		d.t = parsed
		return nil
	case []byte:
		return d.Scan(string(v))
	default:
		return fmt.Errorf("cannot scan %T into TradeDate", src)
	}
}

// GormDataType tells gorm to create a DATE column for TradeDate fields.
func (TradeDate) GormDataType() string { return "date" }

// IssuerData is one trading day's snapshot for one issuer, keyed by the
// (issuer, date) pair. Prices and turnovers are kept as the exact strings
// the exchange publishes (comma decimal separator, thousand separators);
// downstream consumers parse that locale format themselves.
type IssuerData struct {
	Issuer         string    `gorm:"primaryKey;size:20" json:"issuer"`
	Date           TradeDate `gorm:"primaryKey" json:"date"`
	LastTradePrice string    `json:"last_trade_price"`
	MaxPrice       string    `json:"max_price"`
	MinPrice       string    `json:"min_price"`
	AvgPrice       string    `json:"avg_price"`
	PercentChange  string    `json:"percent_change"`
	Volume         string    `json:"volume"`
	TurnoverBest   string    `json:"turnover_best"`
	TotalTurnover  string    `json:"total_turnover"`
}

func (IssuerData) TableName() string { return "issuer_data" }

// IssuerDate records the most recent date an issuer is known to be synced
// through. One row per issuer, advanced after each successful sync run.
type IssuerDate struct {
	Issuer   string    `gorm:"primaryKey;size:20" json:"issuer"`
	LastDate TradeDate `json:"last_date"`
}

func (IssuerDate) TableName() string { return "issuer_dates" }
