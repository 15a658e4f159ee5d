package main

import (
	"database/sql"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
)

// 15.09.2025 — понедельник, универдень 10-х классов
var testNow = time.Date(2025, time.September, 10, 12, 0, 0, 0, time.UTC)

func mustSetCell(t *testing.T, f *excelize.File, sheet string, col, row int, value string) {
	t.Helper()
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		t.Fatalf("координаты (%d, %d): %v", col, row, err)
	}
	if err := f.SetCellValue(sheet, name, value); err != nil {
		t.Fatalf("запись клетки %s: %v", name, err)
	}
}

func mustMerge(t *testing.T, f *excelize.File, sheet string, col1, row1, col2, row2 int) {
	t.Helper()
	from, _ := excelize.CoordinatesToCellName(col1, row1)
	to, _ := excelize.CoordinatesToCellName(col2, row2)
	if err := f.MergeCell(sheet, from, to); err != nil {
		t.Fatalf("объединение %s:%s: %v", from, to, err)
	}
}

// fillRegularSheet заполняет лист обычного расписания: заголовки классов
// объединены по парам столбцов, под ними подгруппы гр.А и гр.Б
func fillRegularSheet(t *testing.T, f *excelize.File, sheet, grade string) {
	t.Helper()
	letters := []string{"М", "Σ", "Ξ", "Τ", "Ο", "Φ", "Π", "Х", "Ρ", "Ψ"}

	for i, ts := range []string{"08.30-09.15", "09.25-10.10", "10.20-11.05"} {
		mustSetCell(t, f, sheet, 2, 4+i, strconv.Itoa(i+1))
		mustSetCell(t, f, sheet, 3, 4+i, ts)
	}
	for pair := 0; pair < 10; pair++ {
		col := 4 + pair*2
		mustSetCell(t, f, sheet, col, 2, grade+" "+letters[pair])
		mustMerge(t, f, sheet, col, 2, col+1, 2)
		mustSetCell(t, f, sheet, col, 3, "гр.А")
		// маркер с лишними пробелами должен разрешаться так же
		mustSetCell(t, f, sheet, col+1, 3, " гр. Б ")
	}

	mustSetCell(t, f, sheet, 4, 4, "Математика\n\nкаб.221")
	mustSetCell(t, f, sheet, 4, 6, "Физика")
	mustSetCell(t, f, sheet, 5, 4, "Химия")
}

// fillUdaySheet10 заполняет лист универдня 10-х классов: блок групп сверху,
// блок классных занятий под ним
func fillUdaySheet10(t *testing.T, f *excelize.File, sheet string) {
	t.Helper()
	for i := 0; i < 6; i++ {
		mustSetCell(t, f, sheet, 3, 3+i, strconv.Itoa(i+1)+") 9.00-10.30")
	}
	mustSetCell(t, f, sheet, 3, 9, "7) 15.00")

	// группы занимают несколько столбцов, повторные номера пропускаются
	mustSetCell(t, f, sheet, 4, 2, "1 группа")
	mustSetCell(t, f, sheet, 5, 2, "1 группа")
	for col := 6; col <= 27; col++ {
		mustSetCell(t, f, sheet, col, 2, strconv.Itoa(col-4)+" группа")
	}
	mustSetCell(t, f, sheet, 4, 3, "Матан\n\nауд.2")
	mustSetCell(t, f, sheet, 5, 3, "дубликат, не должен сохраниться")
	mustSetCell(t, f, sheet, 6, 3, "Информатика")

	// классные занятия: объединённый заголовок даёт повтор ключа
	mustSetCell(t, f, sheet, 4, 9, "10 М")
	mustMerge(t, f, sheet, 4, 9, 5, 9)
	for col := 6; col <= 27; col++ {
		mustSetCell(t, f, sheet, col, 9, "10 К"+strconv.Itoa(col))
	}
	mustSetCell(t, f, sheet, 4, 10, "Классный час")
}

func buildWorkbook(t *testing.T) *excelize.File {
	t.Helper()
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", "10"); err != nil {
		t.Fatalf("переименование листа: %v", err)
	}
	if _, err := f.NewSheet("11"); err != nil {
		t.Fatalf("создание листа: %v", err)
	}
	return f
}

func saveWorkbook(t *testing.T, f *excelize.File, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("сохранение книги: %v", err)
	}
	return path
}

func countRows(t *testing.T, db *sql.DB, table, date string) int {
	t.Helper()
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM `+table+` WHERE date = ?`, date).Scan(&count); err != nil {
		t.Fatalf("подсчёт строк %s: %v", table, err)
	}
	return count
}

func TestCellReaderMergedRegion(t *testing.T) {
	f := excelize.NewFile()
	mustSetCell(t, f, "Sheet1", 4, 2, "Алгебра")
	mustMerge(t, f, "Sheet1", 4, 2, 6, 4)
	mustSetCell(t, f, "Sheet1", 7, 2, "Геометрия")

	r, err := newCellReader(f, "Sheet1")
	if err != nil {
		t.Fatal(err)
	}
	if got := r.value(4, 2); got != "Алгебра" {
		t.Errorf("якорная клетка: %q", got)
	}
	// любая дочерняя клетка диапазона возвращает значение якорной
	if got := r.value(6, 4); got != "Алгебра" {
		t.Errorf("дочерняя клетка: %q", got)
	}
	if got := r.value(7, 2); got != "Геометрия" {
		t.Errorf("обычная клетка: %q", got)
	}
	if got := r.value(10, 10); got != "" {
		t.Errorf("пустая клетка вне диапазонов: %q", got)
	}
}

func TestDateFromFilename(t *testing.T) {
	date, err := dateFromFilename("15.09.xlsx", 2025)
	if err != nil {
		t.Fatal(err)
	}
	if date.Format(dateLayout) != "2025-09-15" {
		t.Errorf("дата: %s", date.Format(dateLayout))
	}
	if _, err := dateFromFilename("расписание.xlsx", 2025); err == nil {
		t.Error("ожидалась ошибка разбора даты")
	}
}

func TestLessonTextMissingLabel(t *testing.T) {
	if _, err := lessonText([]string{"08.30"}, 1, "Физика"); err == nil {
		t.Error("ожидалась ошибка отсутствующего тайминга")
	}
	got, err := lessonText([]string{"08.30"}, 0, "Физика\n\nкаб.5")
	if err != nil {
		t.Fatal(err)
	}
	if got != "08.30\nФизика\nкаб.5" {
		t.Errorf("текст урока: %q", got)
	}
}

func TestImportScheduleRegularDay(t *testing.T) {
	db := testDB(t)
	f := buildWorkbook(t)
	fillRegularSheet(t, f, "10", "10")
	fillRegularSheet(t, f, "11", "11")
	// 16.09.2025 — вторник, обычный день для обеих когорт
	path := saveWorkbook(t, f, "16.09.xlsx")

	date, err := importSchedule(db, path, testNow)
	if err != nil {
		t.Fatal(err)
	}
	if date.Format(dateLayout) != "2025-09-16" {
		t.Fatalf("дата импорта: %s", date.Format(dateLayout))
	}

	lessons, err := regularLessons(db, "10 М", 0, "2025-09-16")
	if err != nil {
		t.Fatal(err)
	}
	if len(lessons) != 2 {
		t.Fatalf("уроков гр.А: %d", len(lessons))
	}
	if lessons[0].LessonNumber != 0 || lessons[1].LessonNumber != 2 {
		t.Errorf("номера уроков: %d, %d", lessons[0].LessonNumber, lessons[1].LessonNumber)
	}
	if lessons[0].LessonInfo != "08.30-09.15\nМатематика\nкаб.221" {
		t.Errorf("текст урока: %q", lessons[0].LessonInfo)
	}

	// маркер с пробелами разрешился во вторую подгруппу
	lessons, err = regularLessons(db, "10 М", 1, "2025-09-16")
	if err != nil {
		t.Fatal(err)
	}
	if len(lessons) != 1 || lessons[0].LessonInfo != "08.30-09.15\nХимия" {
		t.Fatalf("уроки гр.Б: %+v", lessons)
	}

	if n := countRows(t, db, "uday_schedule", "2025-09-16"); n != 0 {
		t.Errorf("строк универдня в обычный день: %d", n)
	}
}

func TestImportScheduleUniversityDay(t *testing.T) {
	db := testDB(t)
	f := buildWorkbook(t)
	fillUdaySheet10(t, f, "10")
	fillRegularSheet(t, f, "11", "11")
	// 15.09.2025 — понедельник: универдень у 10-х, обычный день у 11-х
	path := saveWorkbook(t, f, "15.09.xlsx")

	if _, err := importSchedule(db, path, testNow); err != nil {
		t.Fatal(err)
	}

	lessons, err := udayLessons(db, 1, "2025-09-15")
	if err != nil {
		t.Fatal(err)
	}
	if len(lessons) != 1 {
		t.Fatalf("уроков первой группы: %d", len(lessons))
	}
	if lessons[0].LessonInfo != "1) 9.00-10.30\nМатан\nауд.2" {
		t.Errorf("текст урока группы: %q", lessons[0].LessonInfo)
	}

	// классные занятия универдня попадают в обычную таблицу без подгрупп
	classLessons, err := regularLessons(db, "10 М", 0, "2025-09-15")
	if err != nil {
		t.Fatal(err)
	}
	if len(classLessons) != 1 || classLessons[0].LessonInfo != "7) 15.00\nКлассный час" {
		t.Fatalf("классные занятия универдня: %+v", classLessons)
	}

	// у 11-х в этот день обычное расписание
	lessons11, err := regularLessons(db, "11 М", 0, "2025-09-15")
	if err != nil {
		t.Fatal(err)
	}
	if len(lessons11) != 2 {
		t.Errorf("уроков 11-х классов: %d", len(lessons11))
	}
}

func TestImportScheduleReplacesPreviousImport(t *testing.T) {
	db := testDB(t)

	f := buildWorkbook(t)
	fillRegularSheet(t, f, "10", "10")
	fillRegularSheet(t, f, "11", "11")
	path := saveWorkbook(t, f, "16.09.xlsx")
	if _, err := importSchedule(db, path, testNow); err != nil {
		t.Fatal(err)
	}
	before := countRows(t, db, "regular_schedule", "2025-09-16")

	// повторная загрузка того же файла не должна дублировать строки
	f2 := buildWorkbook(t)
	fillRegularSheet(t, f2, "10", "10")
	fillRegularSheet(t, f2, "11", "11")
	path = saveWorkbook(t, f2, "16.09.xlsx")
	if _, err := importSchedule(db, path, testNow); err != nil {
		t.Fatal(err)
	}
	if after := countRows(t, db, "regular_schedule", "2025-09-16"); after != before {
		t.Errorf("строк до повторной загрузки %d, после %d", before, after)
	}
}

func TestImportSchedulePurgesOldLessons(t *testing.T) {
	db := testDB(t)
	tx, err := db.Begin()
	if err != nil {
		t.Fatal(err)
	}
	stale := RegularLesson{LessonNumber: 0, LessonInfo: "x", ClassLetter: "10 М", Date: "2025-09-07"}
	fresh := RegularLesson{LessonNumber: 0, LessonInfo: "x", ClassLetter: "10 М", Date: "2025-09-09"}
	if err := createRegularLesson(tx, stale); err != nil {
		t.Fatal(err)
	}
	if err := createRegularLesson(tx, fresh); err != nil {
		t.Fatal(err)
	}
	if err := createUdayLesson(tx, UdayLesson{LessonInfo: "x", GroupNumber: 1, Date: "2025-09-07"}); err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	f := buildWorkbook(t)
	fillRegularSheet(t, f, "10", "10")
	fillRegularSheet(t, f, "11", "11")
	path := saveWorkbook(t, f, "16.09.xlsx")
	if _, err := importSchedule(db, path, testNow); err != nil {
		t.Fatal(err)
	}

	// граница хранения — два дня до текущей даты
	if n := countRows(t, db, "regular_schedule", "2025-09-07"); n != 0 {
		t.Errorf("устаревших строк: %d", n)
	}
	if n := countRows(t, db, "uday_schedule", "2025-09-07"); n != 0 {
		t.Errorf("устаревших строк универдня: %d", n)
	}
	if n := countRows(t, db, "regular_schedule", "2025-09-09"); n != 1 {
		t.Errorf("строк внутри окна хранения: %d", n)
	}
}

func TestImportScheduleRollsBackFailedCohort(t *testing.T) {
	db := testDB(t)
	f := buildWorkbook(t)
	fillRegularSheet(t, f, "10", "10")
	// лист 11-х без разметки подгрупп — парсинг второй когорты падает
	path := saveWorkbook(t, f, "16.09.xlsx")

	_, err := importSchedule(db, path, testNow)
	if err == nil {
		t.Fatal("ожидалась ошибка парсинга 11-х классов")
	}
	if !strings.Contains(err.Error(), "11-х классов") {
		t.Errorf("текст ошибки: %q", err)
	}
	// строки 10-х классов тоже откатились
	if n := countRows(t, db, "regular_schedule", "2025-09-16"); n != 0 {
		t.Errorf("строк после отката: %d", n)
	}
}

func TestImportScheduleFailFastOnFirstCohort(t *testing.T) {
	db := testDB(t)
	f := buildWorkbook(t)
	// лист 10-х пустой, лист 11-х валидный: до 11-х парсинг не доходит
	fillRegularSheet(t, f, "11", "11")
	path := saveWorkbook(t, f, "16.09.xlsx")

	_, err := importSchedule(db, path, testNow)
	if err == nil {
		t.Fatal("ожидалась ошибка парсинга 10-х классов")
	}
	if !strings.Contains(err.Error(), "10-х классов") {
		t.Errorf("текст ошибки: %q", err)
	}
	if n := countRows(t, db, "regular_schedule", "2025-09-16"); n != 0 {
		t.Errorf("строк после отката: %d", n)
	}
}

func TestSplitTimes(t *testing.T) {
	groups, classes := splitTimes([]string{"1", "2", "3", "4", "5", "6", "7", "8"})
	if len(groups) != 6 || len(classes) != 2 {
		t.Errorf("деление таймингов: %d и %d", len(groups), len(classes))
	}
	groups, classes = splitTimes([]string{"1", "2"})
	if len(groups) != 2 || classes != nil {
		t.Errorf("деление короткого списка: %d и %v", len(groups), classes)
	}
}
