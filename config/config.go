package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	BotToken         string
	DatabaseURL      string
	APIKey           string
	APIURL           string
	PublicURL        string
	RequiredChannels []string
	OperatorIDs      []int64
}

var AppCfg AppConfig

func LoadConfig() {
	err := godotenv.Load()
	if err != nil {
		log.Println(".env file not found, relying on environment variables")
	}

	AppCfg.BotToken = os.Getenv("BOT_TOKEN")
	AppCfg.DatabaseURL = os.Getenv("DATABASE_URL")
	AppCfg.APIKey = os.Getenv("API_KEY")
	AppCfg.APIURL = os.Getenv("API_URL")
	if AppCfg.APIURL == "" {
		AppCfg.APIURL = "https://seensms.uz/api/v1"
	}
	AppCfg.PublicURL = os.Getenv("PUBLIC_URL")
	AppCfg.RequiredChannels = splitList(os.Getenv("REQUIRED_CHANNELS"))
	AppCfg.OperatorIDs = parseIDs(os.Getenv("OPERATOR_IDS"))

	if AppCfg.BotToken == "" || AppCfg.DatabaseURL == "" || AppCfg.APIKey == "" {
		log.Fatal("Critical environment variables are missing. Bot will exit.")
	}
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseIDs(raw string) []int64 {
	var out []int64
	for _, p := range splitList(raw) {
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			log.Printf("OPERATOR_IDS: пропускаем некорректный id %q", p)
			continue
		}
		out = append(out, id)
	}
	return out
}
