package main

import (
	"database/sql"
	"strings"
	"time"
)

// isUday сообщает, выпадает ли дата на универдень когорты пользователя
func isUday(classLetter string, date time.Time) bool {
	return strings.HasPrefix(classLetter, "10") && date.Weekday() == udayWeekday10 ||
		strings.HasPrefix(classLetter, "11") && date.Weekday() == udayWeekday11
}

// resolveSchedule собирает текст расписания пользователя на дату.
// В универдень сначала идут занятия группы универдня, затем классные занятия
// без деления на подгруппы. Пустая строка означает, что расписание на дату
// ещё не загружено
func resolveSchedule(db *sql.DB, user *User, date time.Time) (string, error) {
	uday := isUday(user.ClassLetter, date)
	group := user.GroupNumber
	if uday {
		// в универдень классные занятия общие, подгруппа не учитывается
		group = 0
	}

	d := date.Format(dateLayout)
	var parts []string
	if uday {
		lessons, err := udayLessons(db, user.UGroupNumber, d)
		if err != nil {
			return "", err
		}
		if len(lessons) > 0 {
			parts = append(parts, joinUdayLessons(lessons))
		}
	}

	lessons, err := regularLessons(db, user.ClassLetter, group, d)
	if err != nil {
		return "", err
	}
	if len(lessons) > 0 {
		parts = append(parts, joinRegularLessons(lessons))
	}
	return strings.Join(parts, "\n\n"), nil
}

func joinRegularLessons(lessons []RegularLesson) string {
	texts := make([]string, 0, len(lessons))
	for _, l := range lessons {
		texts = append(texts, l.LessonInfo)
	}
	return strings.Join(texts, "\n\n")
}

func joinUdayLessons(lessons []UdayLesson) string {
	texts := make([]string, 0, len(lessons))
	for _, l := range lessons {
		texts = append(texts, l.LessonInfo)
	}
	return strings.Join(texts, "\n\n")
}
