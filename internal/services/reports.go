package services

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/fakturo/fakturo/internal/models"
)

type ReportsService struct {
	db *gorm.DB
}

func NewReportsService(db *gorm.DB) *ReportsService {
	return &ReportsService{db: db}
}

// DashboardStats summarizes an organization's invoicing position.
type DashboardStats struct {
	TotalRevenue      decimal.Decimal  `json:"total_revenue"`
	OverdueAmount     decimal.Decimal  `json:"overdue_amount"`
	OpenInvoicesCount int64            `json:"open_invoices_count"`
	RecentInvoices    []models.Invoice `json:"recent_invoices"`
}

func (s *ReportsService) Dashboard(ctx context.Context, orgID uint) (*DashboardStats, error) {
	stats := &DashboardStats{TotalRevenue: decimal.Zero, OverdueAmount: decimal.Zero}

	revenue, err := s.sumTotals(ctx, orgID, models.InvoiceStatusPaid)
	if err != nil {
		return nil, err
	}
	stats.TotalRevenue = revenue

	overdue, err := s.sumTotals(ctx, orgID, models.InvoiceStatusOverdue)
	if err != nil {
		return nil, err
	}
	stats.OverdueAmount = overdue

	if err := s.db.WithContext(ctx).Model(&models.Invoice{}).
		Where("organization_id = ? AND status IN ?", orgID,
			[]models.InvoiceStatus{models.InvoiceStatusSent, models.InvoiceStatusOverdue}).
		Count(&stats.OpenInvoicesCount).Error; err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).
		Where("organization_id = ?", orgID).
		Preload("Client").
		Order("id desc").
		Limit(5).
		Find(&stats.RecentInvoices).Error; err != nil {
		return nil, err
	}
	return stats, nil
}

// sumTotals adds invoice totals in decimal arithmetic rather than delegating
// to SQL SUM, so the result never passes through binary floating point.
func (s *ReportsService) sumTotals(ctx context.Context, orgID uint, status models.InvoiceStatus) (decimal.Decimal, error) {
	var totals []decimal.Decimal
	err := s.db.WithContext(ctx).Model(&models.Invoice{}).
		Where("organization_id = ? AND status = ?", orgID, status).
		Pluck("total", &totals).Error
	if err != nil {
		return decimal.Zero, err
	}
	sum := decimal.Zero
	for _, t := range totals {
		sum = sum.Add(t)
	}
	return sum, nil
}

// MonthlyRevenue is one month's PAID revenue.
type MonthlyRevenue struct {
	Month  string          `json:"month"` // YYYY-MM
	Amount decimal.Decimal `json:"amount"`
}

// RevenueOverTime aggregates PAID invoices by paid-at month over the
// trailing six months.
func (s *ReportsService) RevenueOverTime(ctx context.Context, orgID uint) ([]MonthlyRevenue, error) {
	since := time.Now().AddDate(0, -6, 0)

	var invs []models.Invoice
	err := s.db.WithContext(ctx).
		Select("paid_at", "total").
		Where("organization_id = ? AND status = ? AND paid_at >= ?", orgID, models.InvoiceStatusPaid, since).
		Find(&invs).Error
	if err != nil {
		return nil, err
	}

	byMonth := map[string]decimal.Decimal{}
	for _, inv := range invs {
		if inv.PaidAt == nil {
			continue
		}
		key := inv.PaidAt.Format("2006-01")
		byMonth[key] = byMonth[key].Add(inv.Total)
	}

	out := make([]MonthlyRevenue, 0, len(byMonth))
	for month, amount := range byMonth {
		out = append(out, MonthlyRevenue{Month: month, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out, nil
}
