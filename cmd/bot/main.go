package main

import (
	"log"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/robfig/cron/v3"

	"turfa-seen-bot/config"
	"turfa-seen-bot/internal/bot"
	"turfa-seen-bot/internal/db"
	"turfa-seen-bot/internal/logger"
	"turfa-seen-bot/internal/services"
)

func main() {
	config.LoadConfig()
	db.InitDB(config.AppCfg.DatabaseURL)

	botapi, err := tgbotapi.NewBotAPI(config.AppCfg.BotToken)
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}
	logger.InitNotifier(botapi, config.AppCfg.OperatorIDs)
	bot.InitReferralNotifier(botapi)
	bot.InitHandlers(services.NewFulfillmentClient(config.AppCfg.APIURL, config.AppCfg.APIKey))

	// Суточная сводка операторам и чистка зависших реферальных меток
	c := cron.New()
	c.AddFunc("0 9 * * *", services.SendDailySummary)
	c.AddFunc("@every 1h", bot.SweepPendingReferrers)
	c.Start()

	// HTTP-сервер: приём апдейтов Telegram и health check
	webhookPath := "/webhook/" + config.AppCfg.BotToken
	go func() {
		http.HandleFunc(webhookPath, services.TelegramWebhookHandler(func(update tgbotapi.Update) {
			bot.HandleUpdate(botapi, update)
		}))
		http.HandleFunc("/healthz", services.HealthHandler)
		log.Println("Запуск webhook-сервера на :8080")
		if err := http.ListenAndServe(":8080", nil); err != nil {
			log.Fatalf("Webhook server error: %v", err)
		}
	}()

	if config.AppCfg.PublicURL != "" {
		// Webhook-режим: регистрируем адрес и ждём апдейты по HTTP
		wh, err := tgbotapi.NewWebhook(config.AppCfg.PublicURL + webhookPath)
		if err != nil {
			log.Fatalf("Failed to build webhook config: %v", err)
		}
		if _, err := botapi.Request(wh); err != nil {
			log.Fatalf("Failed to set webhook: %v", err)
		}
		log.Printf("Webhook установлен: %s%s", config.AppCfg.PublicURL, webhookPath)
		select {}
	}

	// Без PUBLIC_URL работаем в режиме polling
	bot.StartBotWithInstance(botapi)
}
