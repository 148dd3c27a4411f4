package db

import (
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func InitDB(dsn string) {
	if dsn == "" {
		log.Fatal("DATABASE_URL not set")
	}
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	DB = gdb
	gdb.AutoMigrate(&User{}, &Referral{}, &Order{})
}

// CreateOrder сохраняет заявку в БД
func CreateOrder(userID int64, kind string, quantity int, link string, cost int, requestID string) error {
	order := Order{
		UserID:    userID,
		Kind:      kind,
		Quantity:  quantity,
		Link:      link,
		Cost:      cost,
		RequestID: requestID,
		Status:    "submitted",
		CreatedAt: time.Now().Unix(),
	}
	return DB.Create(&order).Error
}

// MarkOrderStatus меняет статус заявки по её requestID
func MarkOrderStatus(requestID, status string) error {
	return DB.Model(&Order{}).Where("request_id = ?", requestID).Update("status", status).Error
}

// SetOrderExternalID записывает номер заказа, выданный внешним API
func SetOrderExternalID(requestID, externalID string) error {
	return DB.Model(&Order{}).Where("request_id = ?", requestID).Update("external_id", externalID).Error
}

// --- Сводная статистика для операторов ---

func CountUsers() int {
	var count int64
	DB.Model(&User{}).Count(&count)
	return int(count)
}

func CountReferralsSince(from time.Time) int {
	var count int64
	DB.Model(&Referral{}).Where("created_at >= ?", from.Unix()).Count(&count)
	return int(count)
}

func CountOrdersSince(from time.Time) int {
	var count int64
	DB.Model(&Order{}).Where("created_at >= ?", from.Unix()).Count(&count)
	return int(count)
}

func SumSpentSince(from time.Time) int {
	var sum int64
	DB.Model(&Order{}).Where("status = ? AND created_at >= ?", "submitted", from.Unix()).Select("coalesce(sum(cost), 0)").Scan(&sum)
	return int(sum)
}
