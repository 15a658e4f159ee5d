package main

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
)

// ttlCache запоминает ключи на ограниченное время. Используется для
// дедупликации запросов пользователей и ограничения повторов в логе
type ttlCache struct {
	mu   sync.Mutex
	ttl  time.Duration
	seen map[string]time.Time
}

func newTTLCache(ttl time.Duration) *ttlCache {
	return &ttlCache{ttl: ttl, seen: make(map[string]time.Time)}
}

// allow сообщает, встречался ли ключ за последнее окно, и запоминает его
func (c *ttlCache) allow(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	for k, t := range c.seen {
		if now.Sub(t) > c.ttl {
			delete(c.seen, k)
		}
	}
	if t, ok := c.seen[key]; ok && now.Sub(t) <= c.ttl {
		return false
	}
	c.seen[key] = now
	return true
}

// Отправка сообщения с необязательной inline-клавиатурой
func (a *App) sendText(chatID int64, text string, keyboard *tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	if keyboard != nil {
		msg.ReplyMarkup = *keyboard
	}
	if _, err := a.bot.Send(msg); err != nil {
		log.Printf("ошибка отправки сообщения в чат %d: %v", chatID, err)
	}
}

// Замена текста и клавиатуры существующего сообщения
func (a *App) editText(chatID int64, messageID int, text string, keyboard *tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewEditMessageText(chatID, messageID, text)
	msg.ReplyMarkup = keyboard
	if _, err := a.bot.Send(msg); err != nil {
		log.Printf("ошибка редактирования сообщения %d в чате %d: %v", messageID, chatID, err)
	}
}

// Удаление сообщения
func (a *App) deleteMessage(chatID int64, messageID int) {
	if _, err := a.bot.Send(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		log.Printf("ошибка удаления сообщения %d в чате %d: %v", messageID, chatID, err)
	}
}

// downloadFile скачивает файл из Telegram по его идентификатору
func (a *App) downloadFile(fileID string) ([]byte, error) {
	url, err := a.bot.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения ссылки на файл: %v", err)
	}
	resp, err := http.Get(url)
	if err != nil {
		return nil, fmt.Errorf("ошибка скачивания файла: %v", err)
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// Клавиатура выбора дня расписания
func scheduleKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("расписание на сегодня", "get_schedule=today"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("расписание на завтра", "get_schedule=tommorow"),
		),
	)
}

// Главное меню админ-панели
func adminKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Добавить расписание", "add_schedule"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Сделать рассылку", "make_notification"),
		),
	)
}

// Клавиатура возврата к админ-панели
func backToAdminKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("назад", "back_to_admin"),
		),
	)
}

// Постоянная клавиатура с основными командами
func commandsKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("/edit"),
			tgbotapi.NewKeyboardButton("/get"),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}
