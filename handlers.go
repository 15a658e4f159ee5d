package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
)

// Пары кнопок выбора буквы класса по когортам
var (
	classes10 = [][2]string{
		{"Μ(мю)", "Σ(сигма)"}, {"Ξ(кси)", "Τ(тау)"}, {"Ο(омикрон)", "Φ(фи)"},
		{"Π(пи)", "Х(хи)"}, {"Ρ(ро)", "Ψ(пси)"},
	}
	classes11 = [][2]string{
		{"В(бета)", "Η(эта)"}, {"Ζ(дзeта)", "Θ(тета)"}, {"Г(гамма)", "Ε(эпсилон)"},
		{"Ι(йота)", "К(каппа)"}, {"Δ(дельта)", "Λ(лямбда)"},
	}
)

// Обработка команды сообщения
func (a *App) handleCommand(msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start", "edit":
		if !a.requests.allow(strconv.FormatInt(msg.Chat.ID, 10)) {
			return
		}
		a.handleStart(msg)
	case "get":
		if !a.requests.allow(strconv.FormatInt(msg.Chat.ID, 10)) {
			return
		}
		a.handleGet(msg)
	case "admin":
		a.handleAdmin(msg)
	}
}

// Обработка команд /start и /edit: предложение заполнить анкету.
// По /start анкета предлагается только незарегистрированным
func (a *App) handleStart(msg *tgbotapi.Message) {
	exists, err := userExists(a.db, msg.Chat.ID)
	if err != nil {
		log.Printf("ошибка проверки пользователя %d: %v", msg.Chat.ID, err)
		return
	}
	if msg.Command() == "start" && exists {
		return
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("начать", "choice"),
		),
	)
	a.sendText(msg.Chat.ID, "Привет, давай определимся с твоими классом и группой", &kb)
}

// Обработка команды /get: выбор дня расписания
func (a *App) handleGet(msg *tgbotapi.Message) {
	exists, err := userExists(a.db, msg.Chat.ID)
	if err != nil {
		log.Printf("ошибка проверки пользователя %d: %v", msg.Chat.ID, err)
		return
	}
	if !exists {
		return
	}
	kb := scheduleKeyboard()
	a.sendText(msg.Chat.ID, "выберите действие", &kb)
}

// Обработка команды /admin, доступна только оператору
func (a *App) handleAdmin(msg *tgbotapi.Message) {
	if msg.Chat.ID != a.admin {
		return
	}
	kb := adminKeyboard()
	a.sendText(msg.Chat.ID, "Добро пожаловать в админ-панель! Выберите действие на клавиатуре", &kb)
}

// Обработка нажатий на кнопки
func (a *App) handleCallback(q *tgbotapi.CallbackQuery) {
	chatID := q.Message.Chat.ID
	messageID := q.Message.MessageID
	data := q.Data
	if _, err := a.bot.AnswerCallbackQuery(tgbotapi.NewCallback(q.ID, "")); err != nil {
		log.Printf("ошибка ответа на коллбэк: %v", err)
	}

	switch {
	// выбор цифры класса
	case data == "choice":
		kb := tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("10", "10"),
				tgbotapi.NewInlineKeyboardButtonData("11", "11"),
			),
		)
		a.editText(chatID, messageID, "выберите класс", &kb)

	// выбор буквы класса
	case data == "10" || data == "11":
		classes := classes10
		if data == "11" {
			classes = classes11
		}
		var rows [][]tgbotapi.InlineKeyboardButton
		for _, pair := range classes {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(pair[0], "class_letter="+data+" "+letterOf(pair[0])),
				tgbotapi.NewInlineKeyboardButtonData(pair[1], "class_letter="+data+" "+letterOf(pair[1])),
			))
		}
		kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
		a.editText(chatID, messageID, "выберите букву", &kb)

	// выбор подгруппы класса
	case strings.HasPrefix(data, "class_letter="):
		classLetter := strings.TrimPrefix(data, "class_letter=")
		if _, err := getOrCreateUser(a.db, chatID); err != nil {
			log.Printf("ошибка создания пользователя %d: %v", chatID, err)
			return
		}
		if err := saveUserClass(a.db, chatID, classLetter); err != nil {
			log.Print(err)
			return
		}
		kb := tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("группа А", "class_group=группа А"),
				tgbotapi.NewInlineKeyboardButtonData("группа Б", "class_group=группа Б"),
			),
		)
		a.editText(chatID, messageID, "выберите группу", &kb)

	// выбор группы универдня
	case strings.HasPrefix(data, "class_group="):
		group := 0
		if strings.TrimPrefix(data, "class_group=") == "группа Б" {
			group = 1
		}
		if err := saveUserGroup(a.db, chatID, group); err != nil {
			log.Print(err)
			return
		}
		user, err := getUser(a.db, chatID)
		if err != nil {
			log.Printf("ошибка получения пользователя %d: %v", chatID, err)
			return
		}
		// у 10-х классов двенадцать групп универдня, у 11-х — десять
		count, step := 6, 6
		if strings.HasPrefix(user.ClassLetter, "11") {
			count, step = 5, 5
		}
		var rows [][]tgbotapi.InlineKeyboardButton
		for i := 1; i <= count; i++ {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(strconv.Itoa(i), "univer_group="+strconv.Itoa(i)),
				tgbotapi.NewInlineKeyboardButtonData(strconv.Itoa(i+step), "univer_group="+strconv.Itoa(i+step)),
			))
		}
		kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
		a.editText(chatID, messageID, "выберите группу универдня", &kb)

	// подтверждение данных анкеты
	case strings.HasPrefix(data, "univer_group="):
		group, err := strconv.Atoi(strings.TrimPrefix(data, "univer_group="))
		if err != nil {
			log.Printf("некорректный номер группы в коллбэке %q", data)
			return
		}
		if err := saveUserUGroup(a.db, chatID, group); err != nil {
			log.Print(err)
			return
		}
		user, err := getUser(a.db, chatID)
		if err != nil {
			log.Printf("ошибка получения пользователя %d: %v", chatID, err)
			return
		}
		groupName := [2]string{"Гр. А", "Гр. Б"}[user.GroupNumber]
		kb := tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("заполнить заново", "choice"),
			),
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("сохранить", "done"),
			),
		)
		text := fmt.Sprintf("вы выбрали:\n%s класс\n%s\n%d группа универдня",
			user.ClassLetter, groupName, user.UGroupNumber)
		a.editText(chatID, messageID, text, &kb)

	// уведомление об успешном сохранении анкеты
	case data == "done":
		a.editText(chatID, messageID, "Успешно сохранено!\n/edit - заполнить заново\n/get - получить расписание", nil)

	// отправка расписания
	case strings.HasPrefix(data, "get_schedule="):
		a.handleGetSchedule(chatID, messageID, strings.TrimPrefix(data, "get_schedule="))

	// запрос файла с расписанием
	case data == "add_schedule":
		if chatID != a.admin {
			return
		}
		a.states[chatID] = stateAwaitingScheduleFile
		kb := backToAdminKeyboard()
		a.editText(chatID, messageID, "Отправьте файл чтобы добавить расписание", &kb)

	// возврат к админ-панели, сброс диалога
	case data == "back_to_admin":
		if chatID != a.admin {
			return
		}
		a.states[chatID] = stateIdle
		delete(a.drafts, chatID)
		kb := adminKeyboard()
		if q.Message.Photo != nil {
			a.deleteMessage(chatID, messageID)
			a.sendText(chatID, "Добро пожаловать в админ-панель! Выберите действие на клавиатуре", &kb)
		} else {
			a.editText(chatID, messageID, "Добро пожаловать в админ-панель! Выберите действие на клавиатуре", &kb)
		}

	// выбор адресатов рассылки
	case data == "make_notification":
		if chatID != a.admin {
			return
		}
		kb := tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("10е классы", "ntf=10"),
				tgbotapi.NewInlineKeyboardButtonData("11е классы", "ntf=11"),
			),
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("отправить всем", "ntf=all"),
			),
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("назад", "back_to_admin"),
			),
		)
		a.editText(chatID, messageID, "выберите получателя", &kb)

	// запрос сообщения для рассылки
	case strings.HasPrefix(data, "ntf="):
		if chatID != a.admin {
			return
		}
		a.drafts[chatID] = &broadcastDraft{Receivers: strings.TrimPrefix(data, "ntf=")}
		a.states[chatID] = stateAwaitingBroadcastContent
		kb := backToAdminKeyboard()
		a.editText(chatID, messageID, "Отправьте сообщение чтобы сделать рассылку", &kb)

	// запуск подтверждённой рассылки
	case data == "send":
		if chatID != a.admin {
			return
		}
		draft := a.drafts[chatID]
		a.states[chatID] = stateIdle
		delete(a.drafts, chatID)
		a.deleteMessage(chatID, messageID)
		if draft == nil {
			return
		}
		if err := a.sendBroadcast(draft); err != nil {
			log.Printf("ошибка рассылки: %v", err)
			kb := backToAdminKeyboard()
			a.sendText(chatID, fmt.Sprintf("Ошибка при рассылке!\nОшибка:\n%v", err), &kb)
			return
		}
		kb := backToAdminKeyboard()
		a.sendText(chatID, "Рассылка завершена!", &kb)
	}
}

// Ответ на запрос расписания на сегодня или завтра
func (a *App) handleGetSchedule(chatID int64, messageID int, day string) {
	date := time.Now()
	if day != "today" {
		date = date.AddDate(0, 0, 1)
	}
	user, err := getUser(a.db, chatID)
	if err != nil {
		if err != sql.ErrNoRows {
			log.Printf("ошибка получения пользователя %d: %v", chatID, err)
		}
		return
	}
	text, err := resolveSchedule(a.db, user, date)
	if err != nil {
		log.Printf("ошибка получения расписания для %d: %v", chatID, err)
		return
	}
	if text != "" {
		msg := tgbotapi.NewMessage(chatID, text)
		msg.ReplyMarkup = commandsKeyboard()
		if _, err := a.bot.Send(msg); err != nil {
			log.Printf("ошибка отправки расписания в чат %d: %v", chatID, err)
			return
		}
		a.deleteMessage(chatID, messageID)
		return
	}
	kb := scheduleKeyboard()
	a.editText(chatID, messageID,
		fmt.Sprintf("расписание на %s ещё не добавлено\nвыберите действие", date.Format("02.01")), &kb)
}

// Обработка обычных сообщений по текущему шагу диалога
func (a *App) handleChatMessage(msg *tgbotapi.Message) {
	switch a.states[msg.Chat.ID] {
	case stateAwaitingScheduleFile:
		a.handleScheduleFile(msg)
	case stateAwaitingBroadcastContent:
		a.handleBroadcastContent(msg)
	}
}

// Получение файла с расписанием от оператора
func (a *App) handleScheduleFile(msg *tgbotapi.Message) {
	a.states[msg.Chat.ID] = stateIdle
	if msg.Document == nil || !strings.HasSuffix(msg.Document.FileName, ".xlsx") {
		kb := tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("вернуться к админ-панели", "back_to_admin"),
			),
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("попробовать ещё раз", "add_schedule"),
			),
		)
		a.sendText(msg.Chat.ID, "Файл с расписанием должен быть формата .xlsx, попробуйте снова", &kb)
		return
	}

	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("вернуться к админ-панели", "back_to_admin"),
		),
	)
	content, err := a.downloadFile(msg.Document.FileID)
	if err != nil {
		log.Printf("ошибка скачивания файла расписания: %v", err)
		a.sendText(msg.Chat.ID, fmt.Sprintf("Ошибка при скачивании файла!\nОшибка:\n%v", err), &kb)
		return
	}
	path := filepath.Join(a.uploads, filepath.Base(msg.Document.FileName))
	if err := os.WriteFile(path, content, 0644); err != nil {
		log.Printf("ошибка сохранения файла расписания: %v", err)
		a.sendText(msg.Chat.ID, fmt.Sprintf("Ошибка при сохранении файла!\nОшибка:\n%v", err), &kb)
		return
	}

	date, err := importSchedule(a.db, path, time.Now())
	if err != nil {
		a.sendText(msg.Chat.ID, err.Error(), &kb)
		return
	}
	a.announceSchedule(date)
	a.sendText(msg.Chat.ID, "Расписание сохранено успешно!", &kb)
}

// Получение содержимого рассылки и запрос подтверждения
func (a *App) handleBroadcastContent(msg *tgbotapi.Message) {
	draft := a.drafts[msg.Chat.ID]
	if draft == nil {
		a.states[msg.Chat.ID] = stateIdle
		return
	}

	if msg.Photo != nil && len(*msg.Photo) > 0 {
		sizes := *msg.Photo
		content, err := a.downloadFile(sizes[len(sizes)-1].FileID)
		if err != nil {
			log.Printf("ошибка скачивания фото рассылки: %v", err)
			kb := backToAdminKeyboard()
			a.sendText(msg.Chat.ID, fmt.Sprintf("Ошибка при скачивании фото!\nОшибка:\n%v", err), &kb)
			return
		}
		draft.Photo = content
		draft.Text = msg.Caption
	} else {
		draft.Text = msg.Text
	}
	a.states[msg.Chat.ID] = stateAwaitingBroadcastConfirm

	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("отправить", "send"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("отмена", "back_to_admin"),
		),
	)
	preview := fmt.Sprintf("подвердите отправку сообщения\n>получатель:\n%s\n>сообщение:\n%s",
		draft.Receivers, draft.Text)
	if len(draft.Photo) > 0 {
		photo := tgbotapi.NewPhotoUpload(msg.Chat.ID, tgbotapi.FileBytes{Name: "photo.jpg", Bytes: draft.Photo})
		photo.Caption = preview
		photo.ReplyMarkup = kb
		if _, err := a.bot.Send(photo); err != nil {
			log.Printf("ошибка отправки подтверждения рассылки: %v", err)
		}
		return
	}
	a.sendText(msg.Chat.ID, preview, &kb)
}

// letterOf отрезает пояснение в скобках от подписи кнопки класса
func letterOf(label string) string {
	return strings.SplitN(label, "(", 2)[0]
}
