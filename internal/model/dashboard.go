package model

import "github.com/shopspring/decimal"

// DashboardStats is the aggregate returned by get_dashboard_stats_active.
type DashboardStats struct {
	TotalJamaah         int64           `json:"totalJamaah" gorm:"column:total_jamaah"`
	TotalIuranThisMonth decimal.Decimal `json:"totalIuranThisMonth" gorm:"column:total_iuran_this_month"`
	SubmissionThisMonth int64           `json:"submissionThisMonth" gorm:"column:submission_this_month"`
	PendingSubmissions  int64           `json:"pendingSubmissions" gorm:"column:pending_submissions"`
}

// ZeroDashboardStats is returned when the aggregate yields no rows.
func ZeroDashboardStats() *DashboardStats {
	return &DashboardStats{TotalIuranThisMonth: decimal.Zero}
}
