package db

import (
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	glogger "gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: glogger.Default.LogMode(glogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := gdb.AutoMigrate(&User{}, &Referral{}, &Order{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	DB = gdb
}

func TestOrderLifecycle(t *testing.T) {
	setupTestDB(t)

	if err := CreateOrder(42, "stars", 3, "https://t.me/ch/1", 9, "req-1"); err != nil {
		t.Fatalf("create order: %v", err)
	}
	if err := SetOrderExternalID("req-1", "98765"); err != nil {
		t.Fatalf("set external id: %v", err)
	}
	if err := MarkOrderStatus("req-1", "refunded"); err != nil {
		t.Fatalf("mark status: %v", err)
	}

	var order Order
	if err := DB.Where("request_id = ?", "req-1").First(&order).Error; err != nil {
		t.Fatalf("load order: %v", err)
	}
	if order.ExternalID != "98765" || order.Status != "refunded" {
		t.Errorf("order = %+v, want external 98765, status refunded", order)
	}
}

func TestStatsCounters(t *testing.T) {
	setupTestDB(t)

	now := time.Now().Unix()
	DB.Create(&User{TelegramID: 1, CreatedAt: now})
	DB.Create(&User{TelegramID: 2, CreatedAt: now})
	DB.Create(&Referral{ReferrerID: 1, InvitedID: 2, CreatedAt: now})
	CreateOrder(1, "subscribers", 50, "https://t.me/ch", 5, "req-1")
	CreateOrder(1, "gift", 1, "15stars_bear", 25, "req-2")
	MarkOrderStatus("req-2", "refunded")

	since := time.Now().Add(-time.Hour)
	if got := CountUsers(); got != 2 {
		t.Errorf("CountUsers = %d, want 2", got)
	}
	if got := CountReferralsSince(since); got != 1 {
		t.Errorf("CountReferralsSince = %d, want 1", got)
	}
	if got := CountOrdersSince(since); got != 2 {
		t.Errorf("CountOrdersSince = %d, want 2", got)
	}
	// В сумму попадают только успешно отправленные заявки
	if got := SumSpentSince(since); got != 5 {
		t.Errorf("SumSpentSince = %d, want 5", got)
	}
}
