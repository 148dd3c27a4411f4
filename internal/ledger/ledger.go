package ledger

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"turfa-seen-bot/internal/db"
	"turfa-seen-bot/internal/logger"
)

// NotifyNewReferral вызывается после успешного зачисления реферала.
// Отправка уведомления пригласившему живёт на стороне бота; её сбой
// не откатывает регистрацию.
var NotifyNewReferral func(referrerID, newUserID int64)

// GetUser возвращает пользователя по Telegram ID.
// found = false — не ошибка, пользователь просто ещё не зарегистрирован.
func GetUser(userID int64) (db.User, bool, error) {
	var user db.User
	err := db.DB.Where("telegram_id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return user, false, nil
	}
	if err != nil {
		return user, false, err
	}
	return user, true, nil
}

// CreateUser создаёт запись пользователя, если её ещё нет.
// Повторный вызов ничего не меняет и возвращает существующую запись.
func CreateUser(userID int64) (db.User, error) {
	user := db.User{TelegramID: userID, CreatedAt: time.Now().Unix()}
	err := db.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "telegram_id"}},
		DoNothing: true,
	}).Create(&user).Error
	if err != nil {
		return user, err
	}
	existing, _, err := GetUser(userID)
	return existing, err
}

// AttributeReferral атомарно засчитывает приглашённого newUserID пригласившему
// referrerID: запись пригласившего создаётся при отсутствии (без рекурсии),
// пара фиксируется строкой в referrals, баланс увеличивается на 1.
// Повторная атрибуция той же пары — no-op: credited = false.
func AttributeReferral(referrerID, newUserID int64) (bool, error) {
	if referrerID == newUserID {
		return false, errors.New("self-referral is not allowed")
	}
	credited := false
	err := db.DB.Transaction(func(tx *gorm.DB) error {
		referrer := db.User{TelegramID: referrerID, CreatedAt: time.Now().Unix()}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "telegram_id"}},
			DoNothing: true,
		}).Create(&referrer).Error; err != nil {
			return err
		}
		ref := db.Referral{ReferrerID: referrerID, InvitedID: newUserID, CreatedAt: time.Now().Unix()}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&ref)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Пара уже засчитана (дубликат доставки) — баланс не трогаем
			return nil
		}
		credited = true
		return tx.Model(&db.User{}).Where("telegram_id = ?", referrerID).
			UpdateColumn("referral_count", gorm.Expr("referral_count + 1")).Error
	})
	return credited, err
}

// RegisterUser регистрирует пользователя при первом контакте. Если запись уже
// есть — no-op. При валидном referrerID зачисляет реферала и проставляет
// обратную ссылку; уведомление пригласившему уходит отдельно, вне транзакции.
func RegisterUser(userID, referrerID int64) (bool, error) {
	_, found, err := GetUser(userID)
	if err != nil {
		return false, err
	}
	if found {
		return false, nil
	}

	if _, err := CreateUser(userID); err != nil {
		return false, err
	}

	if referrerID != 0 && referrerID != userID {
		credited, err := AttributeReferral(referrerID, userID)
		if err != nil {
			logger.Error("attribute referral", zap.Int64("referrer", referrerID), zap.Int64("user", userID), zap.Error(err))
			return true, err
		}
		if err := db.DB.Model(&db.User{}).
			Where("telegram_id = ? AND referrer_id IS NULL", userID).
			Update("referrer_id", referrerID).Error; err != nil {
			return true, err
		}
		if credited && NotifyNewReferral != nil {
			go NotifyNewReferral(referrerID, userID)
		}
	}
	return true, nil
}

// Debit атомарно списывает amount кредитов: проверка баланса и декремент —
// один guarded UPDATE, двум параллельным списаниям не из чего оба пройти.
// Вместе с балансом вычищаются amount самых старых строк referrals.
// ok = false — недостаточно кредитов, это штатный исход, не ошибка.
func Debit(userID int64, amount int) (bool, error) {
	if amount <= 0 {
		return false, errors.New("amount must be positive")
	}
	ok := false
	err := db.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&db.User{}).
			Where("telegram_id = ? AND referral_count >= ?", userID, amount).
			UpdateColumn("referral_count", gorm.Expr("referral_count - ?", amount))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		ok = true
		oldest := tx.Model(&db.Referral{}).Select("id").
			Where("referrer_id = ?", userID).Order("id asc").Limit(amount)
		return tx.Where("id IN (?)", oldest).Delete(&db.Referral{}).Error
	})
	return ok, err
}

// Spend — тонкая обёртка над Debit для вызова из сценариев покупки.
func Spend(userID int64, amount int) (bool, error) {
	return Debit(userID, amount)
}

// Refund возвращает кредиты после неудачной отправки заявки во внешний API.
// Восстанавливается только счётчик; вычищенные строки referrals не воскресают.
func Refund(userID int64, amount int) error {
	if amount <= 0 {
		return errors.New("amount must be positive")
	}
	return db.DB.Model(&db.User{}).Where("telegram_id = ?", userID).
		UpdateColumn("referral_count", gorm.Expr("referral_count + ?", amount)).Error
}
