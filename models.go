package main

// User представляет профиль подписчика бота
type User struct {
	UserID       int64  // ID пользователя в Telegram
	ClassLetter  string // Класс, например "10 М" (пустой, пока анкета не заполнена)
	GroupNumber  int    // Подгруппа класса: 0 — гр.А, 1 — гр.Б
	UGroupNumber int    // Номер группы универдня
}

// RegularLesson представляет один урок обычного расписания
type RegularLesson struct {
	LessonNumber int    // Порядковый номер урока, с нуля
	LessonInfo   string // Текст урока вместе с таймингом
	ClassLetter  string // Класс, которому принадлежит урок
	GroupNumber  int    // Подгруппа: 0 — гр.А, 1 — гр.Б
	Date         string // Дата в формате "2006-01-02"
}

// UdayLesson представляет один урок расписания универдня
type UdayLesson struct {
	LessonNumber int    // Порядковый номер урока, с нуля
	LessonInfo   string // Текст урока вместе с таймингом
	GroupNumber  int    // Номер группы универдня
	Date         string // Дата в формате "2006-01-02"
}

// chatState описывает шаг диалога с оператором
type chatState int

const (
	stateIdle chatState = iota
	stateAwaitingScheduleFile
	stateAwaitingBroadcastContent
	stateAwaitingBroadcastConfirm
)

// broadcastDraft хранит подготовленную рассылку до подтверждения оператором
type broadcastDraft struct {
	Receivers string // Получатели: "all", "10" или "11"
	Text      string // Текст сообщения или подпись к фото
	Photo     []byte // Прикреплённое фото, если есть
}
