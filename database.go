package main

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const dateLayout = "2006-01-02"

// Инициализация базы данных
func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия базы данных: %v", err)
	}

	// Проверка соединения
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ошибка подключения к базе данных: %v", err)
	}

	// Создание таблиц
	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("ошибка создания таблиц: %v", err)
	}

	return db, nil
}

// Создание таблиц в базе данных
func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS regular_schedule (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            lesson_number INTEGER NOT NULL,
            lesson_info TEXT NOT NULL,
            class_letter TEXT NOT NULL,
            group_number INTEGER NOT NULL,
            date TEXT NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS uday_schedule (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            lesson_number INTEGER NOT NULL,
            lesson_info TEXT NOT NULL,
            group_number INTEGER NOT NULL,
            date TEXT NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS users (
            user_id INTEGER PRIMARY KEY,
            class_letter TEXT NOT NULL DEFAULT '',
            group_number INTEGER NOT NULL DEFAULT 0,
            u_group_number INTEGER NOT NULL DEFAULT 0
        )`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("ошибка выполнения запроса %q: %v", query, err)
		}
	}
	return nil
}

// Сохранение урока обычного расписания
func createRegularLesson(tx *sql.Tx, l RegularLesson) error {
	_, err := tx.Exec(
		`INSERT INTO regular_schedule
        (lesson_number, lesson_info, class_letter, group_number, date)
        VALUES (?, ?, ?, ?, ?)`,
		l.LessonNumber, l.LessonInfo, l.ClassLetter, l.GroupNumber, l.Date)
	if err != nil {
		return fmt.Errorf("ошибка сохранения урока: %v", err)
	}
	return nil
}

// Сохранение урока расписания универдня
func createUdayLesson(tx *sql.Tx, l UdayLesson) error {
	_, err := tx.Exec(
		`INSERT INTO uday_schedule
        (lesson_number, lesson_info, group_number, date)
        VALUES (?, ?, ?, ?)`,
		l.LessonNumber, l.LessonInfo, l.GroupNumber, l.Date)
	if err != nil {
		return fmt.Errorf("ошибка сохранения урока универдня: %v", err)
	}
	return nil
}

// Удаление устаревших уроков из обеих таблиц
func deleteLessonsBefore(tx *sql.Tx, date string) error {
	if _, err := tx.Exec(`DELETE FROM regular_schedule WHERE date < ?`, date); err != nil {
		return fmt.Errorf("ошибка удаления устаревших уроков: %v", err)
	}
	if _, err := tx.Exec(`DELETE FROM uday_schedule WHERE date < ?`, date); err != nil {
		return fmt.Errorf("ошибка удаления устаревших уроков универдня: %v", err)
	}
	return nil
}

// Удаление уроков на дату из обеих таблиц, нужно при повторной загрузке расписания
func deleteLessonsForDate(tx *sql.Tx, date string) error {
	if _, err := tx.Exec(`DELETE FROM regular_schedule WHERE date = ?`, date); err != nil {
		return fmt.Errorf("ошибка удаления уроков на дату: %v", err)
	}
	if _, err := tx.Exec(`DELETE FROM uday_schedule WHERE date = ?`, date); err != nil {
		return fmt.Errorf("ошибка удаления уроков универдня на дату: %v", err)
	}
	return nil
}

// Получение уроков обычного расписания для класса и подгруппы на дату
func regularLessons(db *sql.DB, classLetter string, group int, date string) ([]RegularLesson, error) {
	rows, err := db.Query(
		`SELECT lesson_number, lesson_info, class_letter, group_number, date
        FROM regular_schedule
        WHERE class_letter = ? AND group_number = ? AND date = ?
        ORDER BY lesson_number`,
		classLetter, group, date)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса уроков: %v", err)
	}
	defer rows.Close()

	var lessons []RegularLesson
	for rows.Next() {
		var l RegularLesson
		if err := rows.Scan(&l.LessonNumber, &l.LessonInfo, &l.ClassLetter, &l.GroupNumber, &l.Date); err != nil {
			return nil, fmt.Errorf("ошибка сканирования уроков: %v", err)
		}
		lessons = append(lessons, l)
	}
	return lessons, rows.Err()
}

// Получение уроков универдня для группы на дату
func udayLessons(db *sql.DB, group int, date string) ([]UdayLesson, error) {
	rows, err := db.Query(
		`SELECT lesson_number, lesson_info, group_number, date
        FROM uday_schedule
        WHERE group_number = ? AND date = ?
        ORDER BY lesson_number`,
		group, date)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса уроков универдня: %v", err)
	}
	defer rows.Close()

	var lessons []UdayLesson
	for rows.Next() {
		var l UdayLesson
		if err := rows.Scan(&l.LessonNumber, &l.LessonInfo, &l.GroupNumber, &l.Date); err != nil {
			return nil, fmt.Errorf("ошибка сканирования уроков универдня: %v", err)
		}
		lessons = append(lessons, l)
	}
	return lessons, rows.Err()
}

// Проверка существования пользователя
func userExists(db *sql.DB, userID int64) (bool, error) {
	var exists bool
	err := db.QueryRow(`SELECT EXISTS(SELECT 1 FROM users WHERE user_id = ?)`, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки пользователя: %v", err)
	}
	return exists, nil
}

// Получение пользователя по его ID
func getUser(db *sql.DB, userID int64) (*User, error) {
	var user User
	err := db.QueryRow(
		`SELECT user_id, class_letter, group_number, u_group_number
        FROM users WHERE user_id = ?`, userID).Scan(
		&user.UserID,
		&user.ClassLetter,
		&user.GroupNumber,
		&user.UGroupNumber)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Получение пользователя с созданием пустого профиля, если его ещё нет
func getOrCreateUser(db *sql.DB, userID int64) (*User, error) {
	if _, err := db.Exec(`INSERT OR IGNORE INTO users (user_id) VALUES (?)`, userID); err != nil {
		return nil, fmt.Errorf("ошибка создания пользователя: %v", err)
	}
	return getUser(db, userID)
}

// Сохранение выбранного класса
func saveUserClass(db *sql.DB, userID int64, classLetter string) error {
	_, err := db.Exec(`UPDATE users SET class_letter = ? WHERE user_id = ?`, classLetter, userID)
	if err != nil {
		return fmt.Errorf("ошибка сохранения класса: %v", err)
	}
	return nil
}

// Сохранение выбранной подгруппы
func saveUserGroup(db *sql.DB, userID int64, group int) error {
	_, err := db.Exec(`UPDATE users SET group_number = ? WHERE user_id = ?`, group, userID)
	if err != nil {
		return fmt.Errorf("ошибка сохранения подгруппы: %v", err)
	}
	return nil
}

// Сохранение выбранной группы универдня
func saveUserUGroup(db *sql.DB, userID int64, group int) error {
	_, err := db.Exec(`UPDATE users SET u_group_number = ? WHERE user_id = ?`, group, userID)
	if err != nil {
		return fmt.Errorf("ошибка сохранения группы универдня: %v", err)
	}
	return nil
}

// Удаление профиля пользователя, фактически отписка от рассылок
func deleteUser(db *sql.DB, userID int64) error {
	_, err := db.Exec(`DELETE FROM users WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("ошибка удаления пользователя: %v", err)
	}
	return nil
}

// Получение всех подписчиков
func allUsers(db *sql.DB) ([]User, error) {
	return queryUsers(db, `SELECT user_id, class_letter, group_number, u_group_number FROM users`)
}

// Получение подписчиков, класс которых начинается с переданного префикса
func usersByClassPrefix(db *sql.DB, prefix string) ([]User, error) {
	return queryUsers(db,
		`SELECT user_id, class_letter, group_number, u_group_number
        FROM users WHERE class_letter LIKE ?`, prefix+"%")
}

func queryUsers(db *sql.DB, query string, args ...interface{}) ([]User, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса пользователей: %v", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.UserID, &u.ClassLetter, &u.GroupNumber, &u.UGroupNumber); err != nil {
			return nil, fmt.Errorf("ошибка сканирования пользователей: %v", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
