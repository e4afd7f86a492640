package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// IuranSubmission is one member's dues record for one month.
// At most one row exists per (UserID, BulanTahun).
type IuranSubmission struct {
	ID                 uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	UserID             uuid.UUID       `json:"user_id" gorm:"type:uuid;not null;uniqueIndex:idx_iuran_user_month"`
	NamaJamaah         string          `json:"nama_jamaah" gorm:"size:255;not null"`
	Username           string          `json:"username" gorm:"size:50;not null"`
	BulanTahun         datatypes.Date  `json:"bulan_tahun" gorm:"not null;uniqueIndex:idx_iuran_user_month"`
	TimestampSubmitted time.Time       `json:"timestamp_submitted"`
	Iuran1             decimal.Decimal `json:"iuran_1" gorm:"column:iuran_1;type:numeric(15,2);not null;default:0"`
	Iuran2             decimal.Decimal `json:"iuran_2" gorm:"column:iuran_2;type:numeric(15,2);not null;default:0"`
	Iuran3             decimal.Decimal `json:"iuran_3" gorm:"column:iuran_3;type:numeric(15,2);not null;default:0"`
	Iuran4             decimal.Decimal `json:"iuran_4" gorm:"column:iuran_4;type:numeric(15,2);not null;default:0"`
	Iuran5             decimal.Decimal `json:"iuran_5" gorm:"column:iuran_5;type:numeric(15,2);not null;default:0"`
	TotalIuran         decimal.Decimal `json:"total_iuran" gorm:"column:total_iuran;type:numeric(15,2);not null;default:0"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`

	// Relations
	User *User `json:"users,omitempty" gorm:"foreignKey:UserID"`
}

// TableName pins the table name used by the hosted schema.
func (IuranSubmission) TableName() string { return "iuran_submissions" }

// BeforeCreate sets UUID before creating the record.
func (s *IuranSubmission) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// Amounts returns the five sub-amounts in order.
func (s *IuranSubmission) Amounts() [5]decimal.Decimal {
	return [5]decimal.Decimal{s.Iuran1, s.Iuran2, s.Iuran3, s.Iuran4, s.Iuran5}
}

// RecomputeTotal sets TotalIuran to the sum of the five sub-amounts.
func (s *IuranSubmission) RecomputeTotal() {
	s.TotalIuran = SumIuran(s.Amounts())
}

// Month returns BulanTahun as a time.Time.
func (s *IuranSubmission) Month() time.Time {
	return time.Time(s.BulanTahun)
}

// SumIuran adds the five sub-amounts.
func SumIuran(amounts [5]decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// MonthStart truncates t to the first day of its month in UTC.
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// ParseMonth accepts "2006-01" or "2006-01-02" and returns the first of that month.
func ParseMonth(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01", s); err == nil {
		return MonthStart(t), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, err
	}
	return MonthStart(t), nil
}
