package logger

import (
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

var (
	botInstance *tgbotapi.BotAPI
	operatorIDs []int64
	once        sync.Once
)

// InitNotifier инициализирует Telegram-уведомления операторам
func InitNotifier(bot *tgbotapi.BotAPI, operators []int64) {
	once.Do(func() {
		botInstance = bot
		operatorIDs = operators
	})
}

// NotifyOperators отправляет сообщение каждому оператору из списка.
// Ошибки отправки не прерывают рассылку остальным.
func NotifyOperators(msg string) {
	if botInstance == nil || len(operatorIDs) == 0 {
		return
	}
	for _, id := range operatorIDs {
		m := tgbotapi.NewMessage(id, msg)
		m.ParseMode = tgbotapi.ModeHTML
		botInstance.Send(m)
	}
}

// NotifyOnPanic ловит панику, логирует и уведомляет
func NotifyOnPanic(context string) {
	if r := recover(); r != nil {
		NotifyOperators("[ALERT] Panic in " + context + ": " + toString(r))
	}
}

func toString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	if e, ok := v.(error); ok {
		return e.Error()
	}
	return "panic: unknown error"
}
