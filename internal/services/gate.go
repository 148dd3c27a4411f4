package services

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"turfa-seen-bot/config"
	"turfa-seen-bot/internal/logger"
)

// IsUserSubscribed проверяет членство во всех обязательных каналах.
// Любая ошибка запроса или не-участник в любом канале — отказ.
func IsUserSubscribed(bot *tgbotapi.BotAPI, userID int64) bool {
	if len(config.AppCfg.RequiredChannels) == 0 {
		return true
	}
	for _, channel := range config.AppCfg.RequiredChannels {
		member, err := bot.GetChatMember(tgbotapi.GetChatMemberConfig{
			ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
				SuperGroupUsername: channel,
				UserID:             userID,
			},
		})
		if err != nil {
			logger.Error("gate check", zap.String("channel", channel), zap.Error(err))
			return false
		}
		switch member.Status {
		case "member", "creator", "administrator":
		default:
			return false
		}
	}
	return true
}

// SubscriptionPrompt собирает сообщение со списком обязательных каналов
// и кнопкой повторной проверки
func SubscriptionPrompt(bot *tgbotapi.BotAPI) (string, tgbotapi.InlineKeyboardMarkup) {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, channel := range config.AppCfg.RequiredChannels {
		title := channel
		chat, err := bot.GetChat(tgbotapi.ChatInfoConfig{
			ChatConfig: tgbotapi.ChatConfig{SuperGroupUsername: channel},
		})
		if err == nil && chat.Title != "" {
			title = chat.Title
		}
		link := "https://t.me/" + strings.TrimPrefix(channel, "@")
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL(title, link),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("✅ Obuna bo'ldim", "check_subscription"),
	))
	text := "<b>❗ Botdan foydalanish uchun quyidagi kanallarga obuna bo'ling:</b>"
	return text, tgbotapi.NewInlineKeyboardMarkup(rows...)
}
