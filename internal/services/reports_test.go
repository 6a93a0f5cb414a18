package services

import (
	"context"
	"testing"
	"time"

	"github.com/fakturo/fakturo/internal/models"
)

func TestDashboardStats(t *testing.T) {
	db := setupTestDB(t)
	org, client, _ := seedOrg(t, db, "acme")
	other, otherClient, _ := seedOrg(t, db, "globex")
	svc := NewInvoiceService(db)

	mk := func(orgID, clientID uint, status models.InvoiceStatus) *models.Invoice {
		t.Helper()
		inv, err := svc.Create(context.Background(), orgID, invoiceInput(clientID))
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		updates := map[string]interface{}{"status": status}
		if status == models.InvoiceStatusPaid {
			updates["paid_at"] = time.Now()
		}
		if err := db.Model(&models.Invoice{}).Where("id = ?", inv.ID).Updates(updates).Error; err != nil {
			t.Fatalf("set status: %v", err)
		}
		return inv
	}

	mk(org.ID, client.ID, models.InvoiceStatusPaid)    // 120.00
	mk(org.ID, client.ID, models.InvoiceStatusPaid)    // 120.00
	mk(org.ID, client.ID, models.InvoiceStatusOverdue) // 120.00
	mk(org.ID, client.ID, models.InvoiceStatusSent)
	mk(org.ID, client.ID, models.InvoiceStatusDraft)
	// Another tenant's numbers must never leak in.
	mk(other.ID, otherClient.ID, models.InvoiceStatusPaid)

	stats, err := NewReportsService(db).Dashboard(context.Background(), org.ID)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if !stats.TotalRevenue.Equal(d("240.00")) {
		t.Errorf("total revenue = %s, want 240.00", stats.TotalRevenue)
	}
	if !stats.OverdueAmount.Equal(d("120.00")) {
		t.Errorf("overdue amount = %s, want 120.00", stats.OverdueAmount)
	}
	if stats.OpenInvoicesCount != 2 {
		t.Errorf("open invoices = %d, want 2 (SENT + OVERDUE)", stats.OpenInvoicesCount)
	}
	if len(stats.RecentInvoices) != 5 {
		t.Errorf("recent invoices = %d, want 5", len(stats.RecentInvoices))
	}
}

func TestRevenueOverTime(t *testing.T) {
	db := setupTestDB(t)
	org, client, _ := seedOrg(t, db, "acme")
	svc := NewInvoiceService(db)

	paidAt := func(t time.Time) map[string]interface{} {
		return map[string]interface{}{"status": models.InvoiceStatusPaid, "paid_at": t}
	}

	now := time.Now()
	a, _ := svc.Create(context.Background(), org.ID, invoiceInput(client.ID))
	b, _ := svc.Create(context.Background(), org.ID, invoiceInput(client.ID))
	c, _ := svc.Create(context.Background(), org.ID, invoiceInput(client.ID))
	db.Model(&models.Invoice{}).Where("id = ?", a.ID).Updates(paidAt(now))
	db.Model(&models.Invoice{}).Where("id = ?", b.ID).Updates(paidAt(now))
	db.Model(&models.Invoice{}).Where("id = ?", c.ID).Updates(paidAt(now.AddDate(0, -2, 0)))

	months, err := NewReportsService(db).RevenueOverTime(context.Background(), org.ID)
	if err != nil {
		t.Fatalf("revenue over time: %v", err)
	}
	if len(months) != 2 {
		t.Fatalf("months = %d, want 2", len(months))
	}
	// Sorted ascending: the older month first.
	if months[0].Month >= months[1].Month {
		t.Errorf("months not sorted: %v", months)
	}
	if !months[1].Amount.Equal(d("240.00")) {
		t.Errorf("current month amount = %s, want 240.00", months[1].Amount)
	}
	if !months[0].Amount.Equal(d("120.00")) {
		t.Errorf("older month amount = %s, want 120.00", months[0].Amount)
	}
}
