package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
)

// App объединяет клиента Telegram, базу данных и состояние диалогов.
// Создаётся один раз при старте процесса, обновления обрабатываются
// последовательно в одном цикле
type App struct {
	bot      *tgbotapi.BotAPI
	db       *sql.DB
	admin    int64                     // ID оператора бота
	uploads  string                    // Каталог для загружаемых файлов расписания
	requests *ttlCache                 // Дедупликация повторных запросов пользователей
	errors   *ttlCache                 // Ограничение повторных записей в лог
	states   map[int64]chatState       // Текущий шаг диалога по чатам
	drafts   map[int64]*broadcastDraft // Черновики рассылок по чатам
}

func newApp(bot *tgbotapi.BotAPI, db *sql.DB, admin int64, uploads string) *App {
	return &App{
		bot:      bot,
		db:       db,
		admin:    admin,
		uploads:  uploads,
		requests: newTTLCache(5 * time.Second),
		errors:   newTTLCache(100 * time.Second),
		states:   make(map[int64]chatState),
		drafts:   make(map[int64]*broadcastDraft),
	}
}

func main() {
	logFile, err := os.OpenFile("logs.log", os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		panic("Ошибка открытия файла логов: " + err.Error())
	}
	log.SetOutput(logFile)

	db, err := InitDB(envOr("DB_PATH", "./schedule.db"))
	if err != nil {
		panic("Ошибка инициализации базы данных: " + err.Error())
	}
	defer db.Close()

	botToken := os.Getenv("TELEGRAM_BOT_TOKEN_APIKEY")
	if botToken == "" {
		panic("Токен бота не указан. Установите переменную окружения TELEGRAM_BOT_TOKEN_APIKEY")
	}
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		panic("Ошибка инициализации бота: " + err.Error())
	}

	admin, err := strconv.ParseInt(os.Getenv("ADMIN_ID"), 10, 64)
	if err != nil {
		panic("Некорректный ADMIN_ID: " + err.Error())
	}

	uploads := envOr("UPLOADS_DIR", "./uploads")
	if err := os.MkdirAll(uploads, 0755); err != nil {
		panic("Ошибка создания каталога загрузок: " + err.Error())
	}

	app := newApp(bot, db, admin, uploads)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	if _, err := bot.RemoveWebhook(); err != nil {
		panic("Ошибка при снятии вебхука: " + err.Error())
	}
	updates, err := bot.GetUpdatesChan(u)
	if err != nil {
		panic("Ошибка получения обновлений: " + err.Error())
	}

	for update := range updates {
		app.handleUpdate(update)
	}
}

// Обработка одного обновления
func (a *App) handleUpdate(update tgbotapi.Update) {
	defer a.recoverUpdate()

	if update.CallbackQuery != nil {
		a.handleCallback(update.CallbackQuery)
		return
	}
	if update.Message == nil {
		return
	}
	if update.Message.IsCommand() {
		a.handleCommand(update.Message)
		return
	}
	a.handleChatMessage(update.Message)
}

// recoverUpdate перехватывает панику обработчика. Каждая ошибка попадает
// в лог не чаще раза за окно, чтобы повторы не заливали лог
func (a *App) recoverUpdate() {
	r := recover()
	if r == nil {
		return
	}
	if a.errors.allow(fmt.Sprint(r)) {
		log.Printf("необработанная ошибка: %v", r)
	}
}

// envOr возвращает значение переменной окружения или значение по умолчанию
func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
