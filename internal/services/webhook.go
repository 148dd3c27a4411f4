package services

import (
	"encoding/json"
	"io"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"turfa-seen-bot/internal/logger"
)

// TelegramWebhookHandler принимает апдейты от Telegram и передаёт их dispatch
func TelegramWebhookHandler(dispatch func(tgbotapi.Update)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer logger.NotifyOnPanic("TelegramWebhookHandler")
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			logger.Error("webhook read body", zap.Error(err))
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		r.Body.Close()
		var update tgbotapi.Update
		if err := json.Unmarshal(body, &update); err != nil {
			logger.Error("webhook parse update", zap.Error(err))
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		dispatch(update)
		w.WriteHeader(http.StatusOK)
	}
}

// HealthHandler отвечает на проверку живости
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
