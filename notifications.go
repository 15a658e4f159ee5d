package main

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
)

// Точный текст ошибки Telegram для заблокировавшего бота пользователя
const blockedByUser = "Forbidden: bot was blocked by the user"

// Пауза между отправками, ограничение исходящей частоты
const sendPause = 36 * time.Millisecond

// sender покрывает часть клиента Telegram, нужную для рассылки
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// broadcast рассылает сообщения списку получателей. Заблокировавшие бота
// удаляются из подписчиков, прочие ошибки доставки логируются, рассылка
// в любом случае продолжается со следующего получателя
func broadcast(s sender, db *sql.DB, users []User, build func(userID int64) tgbotapi.Chattable) {
	for _, u := range users {
		if _, err := s.Send(build(u.UserID)); err != nil {
			if err.Error() == blockedByUser {
				if derr := deleteUser(db, u.UserID); derr != nil {
					log.Printf("ошибка удаления пользователя %d: %v", u.UserID, derr)
				}
			} else {
				log.Printf("ошибка доставки пользователю %d: %v", u.UserID, err)
			}
		}
		time.Sleep(sendPause)
	}
}

// announceSchedule уведомляет всех подписчиков о загрузке расписания
func (a *App) announceSchedule(date time.Time) {
	users, err := allUsers(a.db)
	if err != nil {
		log.Printf("ошибка получения списка подписчиков: %v", err)
		return
	}
	text := fmt.Sprintf("Загружено расписание на %s", date.Format(dateLayout))
	broadcast(a.bot, a.db, users, func(userID int64) tgbotapi.Chattable {
		kb := scheduleKeyboard()
		msg := tgbotapi.NewMessage(userID, text)
		msg.ReplyMarkup = kb
		return msg
	})
}

// sendBroadcast выполняет подтверждённую оператором рассылку
func (a *App) sendBroadcast(draft *broadcastDraft) error {
	var users []User
	var err error
	if draft.Receivers == "all" {
		users, err = allUsers(a.db)
	} else {
		users, err = usersByClassPrefix(a.db, draft.Receivers)
	}
	if err != nil {
		return err
	}

	broadcast(a.bot, a.db, users, func(userID int64) tgbotapi.Chattable {
		if len(draft.Photo) > 0 {
			msg := tgbotapi.NewPhotoUpload(userID, tgbotapi.FileBytes{Name: "photo.jpg", Bytes: draft.Photo})
			msg.Caption = draft.Text
			return msg
		}
		return tgbotapi.NewMessage(userID, draft.Text)
	})
	return nil
}
