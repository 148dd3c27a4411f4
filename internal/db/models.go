package db

type User struct {
	ID            uint  `gorm:"primaryKey"`
	TelegramID    int64 `gorm:"uniqueIndex"`
	ReferrerID    *int64
	ReferralCount int `gorm:"not null;default:0"`
	CreatedAt     int64
}

// Referral — одна запись на каждую засчитанную пару (пригласивший, приглашённый).
// Уникальный индекс по паре не даёт засчитать одного и того же приглашённого дважды.
type Referral struct {
	ID         uint  `gorm:"primaryKey"`
	ReferrerID int64 `gorm:"uniqueIndex:idx_referral_pair"`
	InvitedID  int64 `gorm:"uniqueIndex:idx_referral_pair"`
	CreatedAt  int64
}

// Order представляет отправленную заявку на накрутку либо выкуп подарка
type Order struct {
	ID         uint `gorm:"primaryKey"`
	UserID     int64
	Kind       string // stars | subscribers | gift
	Quantity   int
	Link       string
	Cost       int
	RequestID  string `gorm:"uniqueIndex"`
	ExternalID string
	Status     string // submitted | failed | refunded
	CreatedAt  int64
}
