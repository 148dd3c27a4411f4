package bot

import (
	"net/http"
	"net/http/httptest"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	glogger "gorm.io/gorm/logger"

	"turfa-seen-bot/internal/db"
	"turfa-seen-bot/internal/ledger"
	"turfa-seen-bot/internal/services"
	"turfa-seen-bot/internal/state"
)

func setupTestDB(t *testing.T) {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: glogger.Default.LogMode(glogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := gdb.AutoMigrate(&db.User{}, &db.Referral{}, &db.Order{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	db.DB = gdb
}

// newTestBot поднимает заглушку Bot API, отвечающую ok на любой вызов
func newTestBot(t *testing.T) *tgbotapi.BotAPI {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true,"result":{"id":42,"is_bot":true,"first_name":"bot","username":"testbot"}}`))
	}))
	t.Cleanup(srv.Close)
	botapi, err := tgbotapi.NewBotAPIWithAPIEndpoint("test-token", srv.URL+"/bot%s/%s")
	if err != nil {
		t.Fatalf("test bot: %v", err)
	}
	return botapi
}

func newFulfillmentStub(t *testing.T, response string) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)
	InitHandlers(services.NewFulfillmentClient(srv.URL, "testkey"))
}

func seedBalance(t *testing.T, userID int64, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if _, err := ledger.AttributeReferral(userID, 1000+int64(i)); err != nil {
			t.Fatalf("seed balance: %v", err)
		}
	}
}

func userBalance(t *testing.T, userID int64) int {
	t.Helper()
	user, found, err := ledger.GetUser(userID)
	if err != nil || !found {
		t.Fatalf("get user %d: found=%v err=%v", userID, found, err)
	}
	return user.ReferralCount
}

func textMessage(userID int64, text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		Text: text,
		From: &tgbotapi.User{ID: userID},
		Chat: &tgbotapi.Chat{ID: userID},
	}
}

func TestLinkInputRejectsNonURLWithoutDebit(t *testing.T) {
	setupTestDB(t)
	botapi := newTestBot(t)
	newFulfillmentStub(t, `{"order": 1}`)

	seedBalance(t, 1, 9)
	userStates.Set(1, state.Conversation{Step: state.StepAwaitingStarLink, Quantity: 3})

	handleText(botapi, textMessage(1, "salom dunyo"))

	if got := userBalance(t, 1); got != 9 {
		t.Errorf("balance = %d, неверная ссылка не должна списывать кредиты", got)
	}
	var orders int64
	db.DB.Model(&db.Order{}).Count(&orders)
	if orders != 0 {
		t.Errorf("orders = %d, заявка не должна создаваться", orders)
	}
	if _, ok := userStates.Get(1); ok {
		t.Errorf("state must be cleared after a malformed link")
	}
}

func TestLinkInputSubmitsAfterDebit(t *testing.T) {
	setupTestDB(t)
	botapi := newTestBot(t)
	newFulfillmentStub(t, `{"order": 777}`)

	seedBalance(t, 1, 9)
	userStates.Set(1, state.Conversation{Step: state.StepAwaitingStarLink, Quantity: 3})

	handleText(botapi, textMessage(1, "https://t.me/somechannel/42"))

	if got := userBalance(t, 1); got != 0 {
		t.Errorf("balance = %d, want 0 after spending 9", got)
	}
	var order db.Order
	if err := db.DB.First(&order).Error; err != nil {
		t.Fatalf("order row: %v", err)
	}
	if order.Status != "submitted" || order.ExternalID != "777" || order.Cost != 9 {
		t.Errorf("order = %+v, want submitted/777/cost 9", order)
	}
	if _, ok := userStates.Get(1); ok {
		t.Errorf("state must be cleared after completion")
	}
}

func TestLinkInputSubmitFailureRefunds(t *testing.T) {
	setupTestDB(t)
	botapi := newTestBot(t)
	newFulfillmentStub(t, `{"error": "not enough funds"}`)

	seedBalance(t, 1, 9)
	userStates.Set(1, state.Conversation{Step: state.StepAwaitingStarLink, Quantity: 3})

	handleText(botapi, textMessage(1, "https://t.me/somechannel/42"))

	if got := userBalance(t, 1); got != 9 {
		t.Errorf("balance = %d, после неудачной отправки кредиты должны вернуться", got)
	}
	var order db.Order
	if err := db.DB.First(&order).Error; err != nil {
		t.Fatalf("order row: %v", err)
	}
	// refunded проставляется только после фактического возврата
	if order.Status != "refunded" {
		t.Errorf("order status = %q, want refunded", order.Status)
	}
}

func TestLinkInputInsufficientBalanceAborts(t *testing.T) {
	setupTestDB(t)
	botapi := newTestBot(t)
	newFulfillmentStub(t, `{"order": 1}`)

	seedBalance(t, 1, 5) // нужно 9
	userStates.Set(1, state.Conversation{Step: state.StepAwaitingStarLink, Quantity: 3})

	handleText(botapi, textMessage(1, "https://t.me/somechannel/42"))

	if got := userBalance(t, 1); got != 5 {
		t.Errorf("balance = %d, want untouched 5", got)
	}
	var orders int64
	db.DB.Model(&db.Order{}).Count(&orders)
	if orders != 0 {
		t.Errorf("orders = %d, want 0", orders)
	}
}

func TestQuantityInputValidationKeepsStep(t *testing.T) {
	setupTestDB(t)
	botapi := newTestBot(t)

	seedBalance(t, 1, 20)
	for _, input := range []string{"abc", "1", "7"} {
		userStates.Set(1, state.Conversation{Step: state.StepAwaitingStarQty})
		handleText(botapi, textMessage(1, input))
		conv, ok := userStates.Get(1)
		if !ok || conv.Step != state.StepAwaitingStarQty {
			t.Errorf("input %q: шаг должен остаться прежним, got %+v ok=%v", input, conv, ok)
		}
	}

	// Валидное количество переводит на шаг ссылки
	userStates.Set(1, state.Conversation{Step: state.StepAwaitingStarQty})
	handleText(botapi, textMessage(1, "3"))
	conv, ok := userStates.Get(1)
	if !ok || conv.Step != state.StepAwaitingStarLink || conv.Quantity != 3 {
		t.Errorf("valid quantity: got %+v ok=%v", conv, ok)
	}
}
