package logger

import (
	"go.uber.org/zap"
)

var log, _ = zap.NewProduction()

func Info(msg string, fields ...zap.Field) {
	log.Info(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	log.Error(msg, fields...)
}

func LogOrder(userID int64, kind string, quantity, cost int) {
	log.Info("order", zap.Int64("user_id", userID), zap.String("kind", kind), zap.Int("quantity", quantity), zap.Int("cost", cost))
}
