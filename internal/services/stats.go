package services

import (
	"fmt"
	"time"

	"turfa-seen-bot/internal/db"
	"turfa-seen-bot/internal/logger"
)

// SendDailySummary шлёт операторам суточную сводку по боту
func SendDailySummary() {
	defer logger.NotifyOnPanic("SendDailySummary")
	since := time.Now().Add(-24 * time.Hour)
	text := fmt.Sprintf(
		"📊 <b>Kunlik hisobot</b>\n\n👤 Foydalanuvchilar: <b>%d</b>\n👥 Yangi referallar: <b>%d</b>\n🛒 Buyurtmalar: <b>%d</b>\n💸 Sarflangan kreditlar: <b>%d</b>",
		db.CountUsers(),
		db.CountReferralsSince(since),
		db.CountOrdersSince(since),
		db.SumSpentSince(since),
	)
	logger.NotifyOperators(text)
}
