package bot

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"turfa-seen-bot/internal/catalog"
	"turfa-seen-bot/internal/db"
	"turfa-seen-bot/internal/ledger"
	"turfa-seen-bot/internal/logger"
	"turfa-seen-bot/internal/services"
	"turfa-seen-bot/internal/state"
)

var (
	userStates       = state.NewStore()
	pendingReferrers = state.NewPendingReferrals()
	rateLimiter      = NewRateLimiter()
	fulfillment      *services.FulfillmentClient
)

const genericErrText = "❌ Xatolik yuz berdi. Keyinroq urinib ko'ring."

// InitHandlers подключает клиента внешнего API к обработчикам
func InitHandlers(client *services.FulfillmentClient) {
	fulfillment = client
}

// InitReferralNotifier вешает отправку уведомления пригласившему.
// Сбой отправки регистрацию не трогает.
func InitReferralNotifier(botapi *tgbotapi.BotAPI) {
	ledger.NotifyNewReferral = func(referrerID, newUserID int64) {
		defer logger.NotifyOnPanic("NotifyNewReferral")
		text := fmt.Sprintf("<b>🎉 Sizga yangi referal qo'shildi!</b>\n<a href='tg://user?id=%d'>👤Ro'yxatdan o'tdi : %d</a>", newUserID, newUserID)
		m := tgbotapi.NewMessage(referrerID, text)
		m.ParseMode = tgbotapi.ModeHTML
		botapi.Send(m)
	}
}

// SweepPendingReferrers вызывается по расписанию из main
func SweepPendingReferrers() {
	if n := pendingReferrers.Sweep(24 * time.Hour); n > 0 {
		logger.Info("swept stale pending referrers", zap.Int("count", n))
	}
}

func HandleUpdate(botapi *tgbotapi.BotAPI, update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		handleCallback(botapi, update.CallbackQuery)
		return
	}
	if update.Message == nil || update.Message.From == nil {
		return
	}
	msg := update.Message
	if msg.IsCommand() {
		if msg.Command() == "start" {
			if rateLimiter.IsLimited(msg.From.ID, "/start") {
				return
			}
			handleStart(botapi, msg)
		}
		// другие команды бот не поддерживает
		return
	}
	handleText(botapi, msg)
}

// handleStart: /start <referrerId>. Id пригласившего запоминается до прохождения
// проверки подписки и применяется ровно один раз после неё.
func handleStart(botapi *tgbotapi.BotAPI, msg *tgbotapi.Message) {
	userID := msg.From.ID
	chatID := msg.Chat.ID

	if arg := strings.TrimSpace(msg.CommandArguments()); arg != "" {
		referrerID, err := strconv.ParseInt(arg, 10, 64)
		if err == nil && referrerID > 0 {
			pendingReferrers.Put(userID, referrerID)
		}
	}

	if !services.IsUserSubscribed(botapi, userID) {
		text, markup := services.SubscriptionPrompt(botapi)
		m := tgbotapi.NewMessage(chatID, text)
		m.ParseMode = tgbotapi.ModeHTML
		m.ReplyMarkup = markup
		botapi.Send(m)
		return
	}

	referrerID := pendingReferrers.Take(userID)
	if _, err := ledger.RegisterUser(userID, referrerID); err != nil {
		logger.Error("register user", zap.Int64("user_id", userID), zap.Error(err))
		botapi.Send(tgbotapi.NewMessage(chatID, genericErrText))
		return
	}
	m := tgbotapi.NewMessage(chatID, "🌱")
	m.ReplyMarkup = MainMenu()
	botapi.Send(m)
}

func handleCallback(botapi *tgbotapi.BotAPI, cq *tgbotapi.CallbackQuery) {
	if cq.Message == nil {
		return
	}
	data := cq.Data
	userID := cq.From.ID
	chatID := cq.Message.Chat.ID
	messageID := cq.Message.MessageID

	switch {
	case data == "check_subscription":
		if rateLimiter.IsLimited(userID, "check_subscription") {
			botapi.Request(tgbotapi.NewCallback(cq.ID, "⏳ Iltimos, biroz kuting..."))
			return
		}
		if !services.IsUserSubscribed(botapi, userID) {
			text, markup := services.SubscriptionPrompt(botapi)
			m := tgbotapi.NewMessage(chatID, text)
			m.ParseMode = tgbotapi.ModeHTML
			m.ReplyMarkup = markup
			botapi.Send(m)
			botapi.Request(tgbotapi.NewCallback(cq.ID, ""))
			return
		}
		referrerID := pendingReferrers.Take(userID)
		if _, err := ledger.RegisterUser(userID, referrerID); err != nil {
			logger.Error("register user", zap.Int64("user_id", userID), zap.Error(err))
			botapi.Request(tgbotapi.NewCallback(cq.ID, genericErrText))
			return
		}
		botapi.Request(tgbotapi.NewCallback(cq.ID, ""))
		m := tgbotapi.NewMessage(chatID, "✅ Obuna tasdiqlandi!")
		m.ReplyMarkup = MainMenu()
		botapi.Send(m)

	case data == "place_order":
		botapi.Request(tgbotapi.NewCallback(cq.ID, ""))
		edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, "📝 Buyurtma turini tanlang:", OrderTypeMenu())
		botapi.Send(edit)

	case data == "get_stars":
		startQuantityStep(botapi, cq, catalog.KindStars, state.StepAwaitingStarQty)

	case data == "add_subscribers":
		startQuantityStep(botapi, cq, catalog.KindSubscribers, state.StepAwaitingSubQty)

	case data == "back_to_main":
		botapi.Request(tgbotapi.NewCallback(cq.ID, ""))
		edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, "Asosiy menyu", MainMenu())
		botapi.Send(edit)

	case data == "backtomain":
		// отмена текущего сценария
		userStates.Clear(userID)
		botapi.Request(tgbotapi.NewCallback(cq.ID, ""))
		edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, "Asosiy menyu", MainMenu())
		botapi.Send(edit)

	case data == "ref_system":
		user, _, err := ledger.GetUser(userID)
		if err != nil {
			botapi.Request(tgbotapi.NewCallback(cq.ID, genericErrText))
			return
		}
		refLink := referralLink(botapi, userID)
		text := fmt.Sprintf("👥 Sizning referallar soningiz: %d\n🔗 Havolangiz:\n<code>%s</code>\nUstiga bosilsa nusxa olinadi👆🏻", user.ReferralCount, refLink)
		botapi.Request(tgbotapi.NewCallback(cq.ID, ""))
		edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, ReferralMenu(user.ReferralCount))
		edit.ParseMode = tgbotapi.ModeHTML
		botapi.Send(edit)

	case data == "ref_count":
		user, _, err := ledger.GetUser(userID)
		if err != nil {
			botapi.Request(tgbotapi.NewCallback(cq.ID, genericErrText))
			return
		}
		botapi.Request(tgbotapi.NewCallback(cq.ID, fmt.Sprintf("Sizda %d ta referal bor.", user.ReferralCount)))

	case data == "ref_link":
		botapi.Request(tgbotapi.NewCallbackWithAlert(cq.ID, "Sizning referal havolangiz: "+referralLink(botapi, userID)))

	case data == "get_gift":
		_, found, err := ledger.GetUser(userID)
		if err != nil {
			botapi.Request(tgbotapi.NewCallback(cq.ID, genericErrText))
			return
		}
		if !found {
			botapi.Request(tgbotapi.NewCallback(cq.ID, "Iltimos /start buyrug'ini yuboring."))
			return
		}
		botapi.Request(tgbotapi.NewCallback(cq.ID, ""))
		edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, "⤵️ Sovg'alardan birini tanlang:", GiftMenu())
		botapi.Send(edit)

	case strings.HasPrefix(data, "confirm_gift_"):
		if rateLimiter.IsLimited(userID, "confirm_gift") {
			botapi.Request(tgbotapi.NewCallback(cq.ID, "⏳ Iltimos, biroz kuting..."))
			return
		}
		confirmGift(botapi, cq, strings.TrimPrefix(data, "confirm_gift_"))

	case strings.HasPrefix(data, "gift_"):
		selectGift(botapi, cq, strings.TrimPrefix(data, "gift_"))

	default:
		botapi.Request(tgbotapi.NewCallback(cq.ID, "⚠️ Noma'lum buyruq."))
	}
}

// startQuantityStep открывает сценарий покупки: показывает границы и цену,
// переводит пользователя на шаг ввода количества. Старое незавершённое
// состояние перетирается.
func startQuantityStep(botapi *tgbotapi.BotAPI, cq *tgbotapi.CallbackQuery, kind catalog.Kind, step state.Step) {
	userID := cq.From.ID
	_, found, err := ledger.GetUser(userID)
	if err != nil {
		botapi.Request(tgbotapi.NewCallback(cq.ID, genericErrText))
		return
	}
	if !found {
		botapi.Request(tgbotapi.NewCallback(cq.ID, "Iltimos /start buyrug'ini yuboring."))
		return
	}
	rule, ok := catalog.Rule(kind)
	if !ok {
		botapi.Request(tgbotapi.NewCallback(cq.ID, genericErrText))
		return
	}
	var text string
	if kind == catalog.KindStars {
		text = fmt.Sprintf("<b>⭐ Stars olish</b>\n<b>⬇️ Minimal: %d ta</b>\n<b>⬆️ Maksimal: %d ta</b>\n\n<blockquote>⭐️ 1 star narxi: %d ta referal</blockquote>\n\nIltimos, stars sonini yuboring (masalan: %d):", rule.Min, rule.Max, rule.UnitPrice, rule.Min)
	} else {
		text = fmt.Sprintf("<b>👥 Obunachi qo'shish</b>\n<b>⬇️ Minimal: %d ta</b>\n<b>⬆️ Maksimal: %d ta</b>\n<blockquote>%d ta obunachi narxi: %d ta referal</blockquote>\n\nIltimos, obunachilar sonini yuboring (masalan: %d):", rule.Min, rule.Max, rule.UnitSize, rule.UnitPrice, rule.Min)
	}
	botapi.Request(tgbotapi.NewCallback(cq.ID, ""))
	edit := tgbotapi.NewEditMessageTextAndMarkup(cq.Message.Chat.ID, cq.Message.MessageID, text, CancelButton())
	edit.ParseMode = tgbotapi.ModeHTML
	botapi.Send(edit)
	userStates.Set(userID, state.Conversation{Step: step})
}

// handleText обрабатывает свободный текст по текущему шагу диалога.
// Без активного состояния сообщение молча игнорируется.
func handleText(botapi *tgbotapi.BotAPI, msg *tgbotapi.Message) {
	userID := msg.From.ID
	conv, ok := userStates.Get(userID)
	if !ok {
		return
	}
	switch conv.Step {
	case state.StepAwaitingStarQty:
		handleQuantityInput(botapi, msg, catalog.KindStars, state.StepAwaitingStarLink)
	case state.StepAwaitingSubQty:
		handleQuantityInput(botapi, msg, catalog.KindSubscribers, state.StepAwaitingSubLink)
	case state.StepAwaitingStarLink:
		handleLinkInput(botapi, msg, catalog.KindStars, conv.Quantity)
	case state.StepAwaitingSubLink:
		handleLinkInput(botapi, msg, catalog.KindSubscribers, conv.Quantity)
	}
}

// handleQuantityInput: целое число, границы и кратность проверяются до
// какого-либо обращения к балансу. Нехватка кредитов завершает сценарий,
// ошибка ввода оставляет пользователя на том же шаге.
func handleQuantityInput(botapi *tgbotapi.BotAPI, msg *tgbotapi.Message, kind catalog.Kind, next state.Step) {
	userID := msg.From.ID
	chatID := msg.Chat.ID
	rule, _ := catalog.Rule(kind)

	qty, err := strconv.Atoi(strings.TrimSpace(msg.Text))
	if err != nil || rule.ValidateQuantity(qty) != nil {
		errText := fmt.Sprintf("❌ Noto'g'ri son. Minimal %d, maksimal %d.", rule.Min, rule.Max)
		if rule.Step > 1 {
			errText = fmt.Sprintf("❌ Noto'g'ri son. Minimal %d, maksimal %d, %d ga bo'linadigan.", rule.Min, rule.Max, rule.Step)
		}
		botapi.Send(tgbotapi.NewMessage(chatID, errText))
		return
	}

	cost := rule.Cost(qty)
	user, found, err := ledger.GetUser(userID)
	if err != nil || !found {
		userStates.Clear(userID)
		botapi.Send(tgbotapi.NewMessage(chatID, genericErrText))
		return
	}
	if user.ReferralCount < cost {
		userStates.Clear(userID)
		botapi.Send(tgbotapi.NewMessage(chatID, fmt.Sprintf("🚫 Yetarli referal yo'q. Kerak: %d ta.", cost)))
		return
	}

	userStates.Set(userID, state.Conversation{Step: next, Quantity: qty})
	prompt := "📎 Endi ommaviy kanal havolasini yuboring:"
	if kind == catalog.KindStars {
		prompt = "📎 Endi ommaviy kanal post havolasini yuboring:"
	}
	botapi.Send(tgbotapi.NewMessage(chatID, prompt))
}

// handleLinkInput — терминальный шаг: атомарное списание, затем отправка
// заявки. Списание заново проверяет баланс, так что потраченные в другом
// месте кредиты не дадут уйти в минус. Неудачная отправка после списания
// компенсируется возвратом кредитов.
func handleLinkInput(botapi *tgbotapi.BotAPI, msg *tgbotapi.Message, kind catalog.Kind, qty int) {
	userID := msg.From.ID
	chatID := msg.Chat.ID
	link := strings.TrimSpace(msg.Text)

	userStates.Clear(userID)

	if !strings.HasPrefix(link, "http") {
		botapi.Send(tgbotapi.NewMessage(chatID, "❌ Noto'g'ri havola."))
		return
	}

	rule, _ := catalog.Rule(kind)
	cost := rule.Cost(qty)

	ok, err := ledger.Spend(userID, cost)
	if err != nil {
		logger.Error("spend", zap.Int64("user_id", userID), zap.Int("cost", cost), zap.Error(err))
		botapi.Send(tgbotapi.NewMessage(chatID, genericErrText))
		return
	}
	if !ok {
		botapi.Send(tgbotapi.NewMessage(chatID, fmt.Sprintf("🚫 Yetarli referal yo'q. Kerak: %d ta.", cost)))
		return
	}

	orderID, requestID, err := fulfillment.Submit(rule.ServiceID, link, qty)
	if err != nil {
		logger.Error("fulfillment submit", zap.String("request_id", requestID), zap.Error(err))
		// Заявка фиксируется как failed; refunded она становится только
		// после фактического возврата кредитов
		if derr := db.CreateOrder(userID, string(kind), qty, link, cost, requestID); derr == nil {
			db.MarkOrderStatus(requestID, "failed")
		}
		if rerr := ledger.Refund(userID, cost); rerr != nil {
			logger.Error("refund", zap.Int64("user_id", userID), zap.Int("cost", cost), zap.Error(rerr))
			logger.NotifyOperators(fmt.Sprintf("[ALERT] Kreditlarni qaytarib bo'lmadi: user %d, %d kredit, request %s", userID, cost, requestID))
			botapi.Send(tgbotapi.NewMessage(chatID, "❌ Xatolik: buyurtma yuborilmadi. Operator bilan bog'laning."))
			return
		}
		db.MarkOrderStatus(requestID, "refunded")
		botapi.Send(tgbotapi.NewMessage(chatID, "❌ Xatolik: buyurtma yuborilmadi, kreditlar qaytarildi."))
		return
	}

	if derr := db.CreateOrder(userID, string(kind), qty, link, cost, requestID); derr != nil {
		logger.Error("create order", zap.String("request_id", requestID), zap.Error(derr))
	} else {
		db.SetOrderExternalID(requestID, orderID)
	}
	logger.LogOrder(userID, string(kind), qty, cost)
	botapi.Send(tgbotapi.NewMessage(chatID, "✅ Buyurtma berildi!"))
}

// selectGift показывает подтверждение, если кредитов хватает
func selectGift(botapi *tgbotapi.BotAPI, cq *tgbotapi.CallbackQuery, giftKey string) {
	userID := cq.From.ID
	gift, ok := catalog.GiftByKey(giftKey)
	if !ok {
		botapi.Request(tgbotapi.NewCallback(cq.ID, "❌ Bunday sovg'a topilmadi."))
		return
	}
	user, found, err := ledger.GetUser(userID)
	if err != nil {
		botapi.Request(tgbotapi.NewCallback(cq.ID, genericErrText))
		return
	}
	if !found {
		botapi.Request(tgbotapi.NewCallback(cq.ID, "Iltimos /start buyrug'ini yuboring."))
		return
	}
	if user.ReferralCount < gift.Price {
		botapi.Request(tgbotapi.NewCallbackWithAlert(cq.ID, fmt.Sprintf("🚫 Bu sovg'ani olish uchun kamida %d ta referal kerak.", gift.Price)))
		return
	}
	text := fmt.Sprintf("<b>✨ Siz %s sovg'asini tanladingiz.</b>\n<i>❗️Ushbu sovg'ani olish uchun %d ta referalingiz kamaytiriladi.\n\nSizga tashlab berilishi biroz vaqt olishi mumkin.</i>\n\n<b>Tasdiqlaysizmi?</b>", gift.Title, gift.Price)
	botapi.Request(tgbotapi.NewCallback(cq.ID, ""))
	edit := tgbotapi.NewEditMessageTextAndMarkup(cq.Message.Chat.ID, cq.Message.MessageID, text, ConfirmGiftMenu(gift.Key))
	edit.ParseMode = tgbotapi.ModeHTML
	botapi.Send(edit)
}

// confirmGift: баланс проверяется заново самим атомарным списанием —
// между двумя кликами он мог измениться
func confirmGift(botapi *tgbotapi.BotAPI, cq *tgbotapi.CallbackQuery, giftKey string) {
	userID := cq.From.ID
	gift, ok := catalog.GiftByKey(giftKey)
	if !ok {
		botapi.Request(tgbotapi.NewCallback(cq.ID, "❌ Sovg'a topilmadi."))
		return
	}
	spent, err := ledger.Spend(userID, gift.Price)
	if err != nil {
		logger.Error("gift spend", zap.Int64("user_id", userID), zap.String("gift", gift.Key), zap.Error(err))
		botapi.Request(tgbotapi.NewCallbackWithAlert(cq.ID, genericErrText))
		return
	}
	if !spent {
		botapi.Request(tgbotapi.NewCallbackWithAlert(cq.ID, "❌ Yetarli referal yo'q."))
		return
	}
	botapi.Request(tgbotapi.NewCallback(cq.ID, ""))

	requestID := uuid.NewString()
	if derr := db.CreateOrder(userID, "gift", 1, gift.Key, gift.Price, requestID); derr != nil {
		logger.Error("create gift order", zap.String("request_id", requestID), zap.Error(derr))
	}
	logger.LogOrder(userID, "gift", 1, gift.Price)

	text := fmt.Sprintf("<b>🎉 Tabriklaymiz! Siz %s sovg'asini oldingiz!</b>\n<u>Referallaringizdan %d tasi olib tashlandi.</u>\n\n<b><i>Sabrli bo'ling, operator faol bo'lgach sizga buyurtmangizni yetkazib beradi.🌝</i></b>", gift.Title, gift.Price)
	edit := tgbotapi.NewEditMessageTextAndMarkup(cq.Message.Chat.ID, cq.Message.MessageID, text, BackToMainMenu())
	edit.ParseMode = tgbotapi.ModeHTML
	botapi.Send(edit)

	fullName := strings.TrimSpace(cq.From.FirstName + " " + cq.From.LastName)
	username := "yo'q"
	if cq.From.UserName != "" {
		username = "@" + cq.From.UserName
	}
	logger.NotifyOperators(fmt.Sprintf(
		"🎁 <b>Sovg'a buyurtma qilindi</b>\n\n🎉 Sovg'a: <b>%s</b>\n💸 Narxi: <b>%d referal</b>\n\n🆔 ID: <code>%d</code>\n👤 Ism: <a href=\"tg://user?id=%d\"><b>%s</b></a>\n🔗 Username: %s",
		gift.Title, gift.Price, userID, userID, fullName, username,
	))
}

func referralLink(botapi *tgbotapi.BotAPI, userID int64) string {
	return fmt.Sprintf("https://t.me/%s?start=%d", botapi.Self.UserName, userID)
}
