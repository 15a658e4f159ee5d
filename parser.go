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

	"github.com/xuri/excelize/v2"
)

// Дни универдня по когортам
const (
	udayWeekday10 = time.Monday
	udayWeekday11 = time.Wednesday
)

// scanWindow задаёт границы итерации по листу, включительно, нумерация с единицы
type scanWindow struct {
	minRow, minCol, maxRow, maxCol int
}

// Границы областей парсинга, повторяют разметку исходной таблицы по когортам
var (
	regular10Window     = scanWindow{minRow: 2, minCol: 4, maxRow: 11, maxCol: 23}
	regular11Window     = scanWindow{minRow: 2, minCol: 4, maxRow: 12, maxCol: 23}
	udayGroups10Window  = scanWindow{minRow: 2, minCol: 4, maxRow: 8, maxCol: 27}
	udayClasses10Window = scanWindow{minRow: 9, minCol: 4, maxRow: 12, maxCol: 27}
	udayGroups11Window  = scanWindow{minRow: 3, minCol: 4, maxRow: 9, maxCol: 23}
	udayClasses11Window = scanWindow{minRow: 10, minCol: 4, maxRow: 13, maxCol: 23}
)

// mergedRect описывает объединённый диапазон клеток и значение его якорной клетки
type mergedRect struct {
	minCol, minRow, maxCol, maxRow int
	value                          string
}

// cellReader читает значения клеток листа, разрешая объединённые диапазоны до якорной клетки
type cellReader struct {
	f      *excelize.File
	sheet  string
	merges []mergedRect
}

func newCellReader(f *excelize.File, sheet string) (*cellReader, error) {
	ranges, err := f.GetMergeCells(sheet)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения объединённых клеток: %v", err)
	}
	merges := make([]mergedRect, 0, len(ranges))
	for _, rng := range ranges {
		minCol, minRow, err := excelize.CellNameToCoordinates(rng.GetStartAxis())
		if err != nil {
			return nil, fmt.Errorf("ошибка разбора диапазона %q: %v", rng.GetStartAxis(), err)
		}
		maxCol, maxRow, err := excelize.CellNameToCoordinates(rng.GetEndAxis())
		if err != nil {
			return nil, fmt.Errorf("ошибка разбора диапазона %q: %v", rng.GetEndAxis(), err)
		}
		merges = append(merges, mergedRect{
			minCol: minCol, minRow: minRow,
			maxCol: maxCol, maxRow: maxRow,
			value: rng.GetCellValue(),
		})
	}
	return &cellReader{f: f, sheet: sheet, merges: merges}, nil
}

// value возвращает значение клетки, для дочерней клетки объединённого
// диапазона — значение якорной
func (r *cellReader) value(col, row int) string {
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return ""
	}
	v, _ := r.f.GetCellValue(r.sheet, name)
	if v != "" {
		return v
	}
	for _, m := range r.merges {
		if col >= m.minCol && col <= m.maxCol && row >= m.minRow && row <= m.maxRow {
			return m.value
		}
	}
	return ""
}

// times читает тайминги уроков из столбца C по диапазонам строк,
// пустые клетки пропускаются, переводы строк убираются
func (r *cellReader) times(spans ...[2]int) []string {
	var times []string
	for _, span := range spans {
		for row := span[0]; row <= span[1]; row++ {
			v := r.value(3, row)
			if v == "" {
				continue
			}
			times = append(times, strings.ReplaceAll(v, "\n", ""))
		}
	}
	return times
}

// lessonText собирает текст урока: тайминг слота плюс текст клетки
// с абзацами, сжатыми до одиночных переводов строк
func lessonText(times []string, slot int, text string) (string, error) {
	if slot >= len(times) {
		return "", fmt.Errorf("нет тайминга для урока №%d", slot+1)
	}
	return times[slot] + "\n" + strings.Join(strings.Split(text, "\n\n"), "\n"), nil
}

// parseRegularClasses читает обычное расписание классов: первая строка окна —
// класс, вторая — подгруппа, остальные — уроки по слотам. Каждый столбец —
// отдельная пара (класс, подгруппа), дедупликация не применяется
func parseRegularClasses(tx *sql.Tx, r *cellReader, date string, times []string, w scanWindow) error {
	markers := []string{"гр.А", "гр.Б"}
	for col := w.minCol; col <= w.maxCol; col++ {
		key := r.value(col, w.minRow)
		marker := strings.Join(strings.Fields(r.value(col, w.minRow+1)), "")
		group := -1
		for i, m := range markers {
			if marker == m {
				group = i
			}
		}
		if group == -1 {
			return fmt.Errorf("неизвестная подгруппа %q в столбце %d", marker, col)
		}
		for row := w.minRow + 2; row <= w.maxRow; row++ {
			text := r.value(col, row)
			if text == "" {
				continue
			}
			slot := row - w.minRow - 2
			info, err := lessonText(times, slot, text)
			if err != nil {
				return err
			}
			err = createRegularLesson(tx, RegularLesson{
				LessonNumber: slot,
				LessonInfo:   info,
				ClassLetter:  key,
				GroupNumber:  group,
				Date:         date,
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// parseUdayGroups читает расписание групп универдня: заголовок столбца —
// номер группы. Группы размещены на листе в нескольких столбцах, поэтому
// повторные вхождения номера пропускаются
func parseUdayGroups(tx *sql.Tx, r *cellReader, date string, times []string, w scanWindow) error {
	done := make(map[int]bool)
	for col := w.minCol; col <= w.maxCol; col++ {
		header := r.value(col, w.minRow)
		fields := strings.Fields(header)
		if len(fields) == 0 {
			return fmt.Errorf("пустой заголовок группы в столбце %d", col)
		}
		group, err := strconv.Atoi(fields[0])
		if err != nil {
			return fmt.Errorf("ошибка чтения номера группы из %q: %v", header, err)
		}
		if done[group] {
			continue
		}
		done[group] = true
		for row := w.minRow + 1; row <= w.maxRow; row++ {
			text := r.value(col, row)
			if text == "" {
				continue
			}
			slot := row - w.minRow - 1
			info, err := lessonText(times, slot, text)
			if err != nil {
				return err
			}
			err = createUdayLesson(tx, UdayLesson{
				LessonNumber: slot,
				LessonInfo:   info,
				GroupNumber:  group,
				Date:         date,
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// parseUdayClasses читает классные занятия универдня: заголовок столбца —
// класс, повторные вхождения пропускаются, подгруппы в этот день нет
func parseUdayClasses(tx *sql.Tx, r *cellReader, date string, times []string, w scanWindow) error {
	done := make(map[string]bool)
	for col := w.minCol; col <= w.maxCol; col++ {
		key := r.value(col, w.minRow)
		if done[key] {
			continue
		}
		done[key] = true
		for row := w.minRow + 1; row <= w.maxRow; row++ {
			text := r.value(col, row)
			if text == "" {
				continue
			}
			slot := row - w.minRow - 1
			info, err := lessonText(times, slot, text)
			if err != nil {
				return err
			}
			err = createRegularLesson(tx, RegularLesson{
				LessonNumber: slot,
				LessonInfo:   info,
				ClassLetter:  key,
				GroupNumber:  0,
				Date:         date,
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// findSheets ищет вкладки "10" и "11" по имени, -1 если вкладка не найдена
func findSheets(f *excelize.File) (sh10, sh11 int) {
	sh10, sh11 = -1, -1
	for i, name := range f.GetSheetList() {
		switch strings.TrimSpace(name) {
		case "10":
			sh10 = i
		case "11":
			sh11 = i
		}
	}
	return sh10, sh11
}

// pickSheet выбирает лист когорты: найденную по имени вкладку,
// иначе фиксированную позицию fallback
func pickSheet(f *excelize.File, named, fallback int) (string, error) {
	names := f.GetSheetList()
	idx := fallback
	if named >= 0 {
		idx = named
	}
	if idx >= len(names) {
		return "", fmt.Errorf("в книге нет листа с номером %d", idx)
	}
	return names[idx], nil
}

// splitTimes делит тайминги универдня: первые шесть слотов — групповые
// занятия, остальные — классные
func splitTimes(times []string) (groups, classes []string) {
	if len(times) <= 6 {
		return times, nil
	}
	return times[:6], times[6:]
}

// lessonCount считает число уроков по разметке столбца B: максимальная
// из одиночных цифр в клетках B4:B14
func lessonCount(r *cellReader) (int, error) {
	max := 0
	for row := 4; row <= 14; row++ {
		v := r.value(2, row)
		if len(v) == 1 && v[0] >= '1' && v[0] <= '9' && int(v[0]-'0') > max {
			max = int(v[0] - '0')
		}
	}
	if max == 0 {
		return 0, fmt.Errorf("не найдена разметка номеров уроков в столбце B")
	}
	return max, nil
}

// timesExact читает тайминги столбца C подряд, сохраняя пустые метки:
// отсутствие тайминга не мешает пропускать пустые слоты
func (r *cellReader) timesExact(startRow, endRow int) []string {
	var times []string
	for row := startRow; row <= endRow; row++ {
		times = append(times, strings.ReplaceAll(r.value(3, row), "\n", ""))
	}
	return times
}

// parseCohort10 парсит расписание 10-х классов: по понедельникам — универдень,
// в остальные дни — обычное расписание
func parseCohort10(tx *sql.Tx, f *excelize.File, date time.Time, named int) error {
	d := date.Format(dateLayout)
	if date.Weekday() == udayWeekday10 {
		sheet, err := pickSheet(f, named, 0)
		if err != nil {
			return err
		}
		r, err := newCellReader(f, sheet)
		if err != nil {
			return err
		}
		groupTimes, classTimes := splitTimes(r.times([2]int{3, 9}, [2]int{10, 11}))
		if err := parseUdayGroups(tx, r, d, groupTimes, udayGroups10Window); err != nil {
			return err
		}
		return parseUdayClasses(tx, r, d, classTimes, udayClasses10Window)
	}

	sheet, err := pickSheet(f, named, 1)
	if err != nil {
		return err
	}
	r, err := newCellReader(f, sheet)
	if err != nil {
		return err
	}
	count, err := lessonCount(r)
	if err != nil {
		return err
	}
	return parseRegularClasses(tx, r, d, r.timesExact(4, 3+count), regular10Window)
}

// parseCohort11 парсит расписание 11-х классов: универдень по средам,
// области и тайминги сдвинуты относительно 10-х классов
func parseCohort11(tx *sql.Tx, f *excelize.File, date time.Time, named int) error {
	d := date.Format(dateLayout)
	if date.Weekday() == udayWeekday11 {
		sheet, err := pickSheet(f, named, 0)
		if err != nil {
			return err
		}
		r, err := newCellReader(f, sheet)
		if err != nil {
			return err
		}
		groupTimes, classTimes := splitTimes(r.times([2]int{4, 9}, [2]int{11, 12}))
		if err := parseUdayGroups(tx, r, d, groupTimes, udayGroups11Window); err != nil {
			return err
		}
		return parseUdayClasses(tx, r, d, classTimes, udayClasses11Window)
	}

	sheet, err := pickSheet(f, named, 1)
	if err != nil {
		return err
	}
	r, err := newCellReader(f, sheet)
	if err != nil {
		return err
	}
	return parseRegularClasses(tx, r, d, r.times([2]int{4, 11}), regular11Window)
}

// dateFromFilename выводит дату расписания из имени файла вида "15.09.xlsx",
// год берётся текущий
func dateFromFilename(name string, year int) (time.Time, error) {
	token := strings.TrimSuffix(name, ".xlsx")
	date, err := time.Parse("02.01.2006", fmt.Sprintf("%s.%d", token, year))
	if err != nil {
		return time.Time{}, fmt.Errorf("ошибка разбора даты из имени файла %q: %v", name, err)
	}
	return date, nil
}

// importSchedule парсит файл расписания и сохраняет уроки обеих когорт.
// Файл удаляется сразу после загрузки. Чистка устаревших записей, удаление
// прежних записей на дату и вставка новых выполняются одной транзакцией:
// при ошибке любой из когорт загрузка откатывается целиком. Текст ошибки
// предназначен оператору
func importSchedule(db *sql.DB, path string, now time.Time) (time.Time, error) {
	f, err := excelize.OpenFile(path)
	os.Remove(path)
	if err != nil {
		log.Printf("ошибка открытия файла расписания %s: %v", path, err)
		return time.Time{}, fmt.Errorf("Ошибка при открытии файла расписания!\nОшибка:\n%v", err)
	}
	defer f.Close()

	date, err := dateFromFilename(filepath.Base(path), now.Year())
	if err != nil {
		log.Print(err)
		return time.Time{}, fmt.Errorf("Ошибка при разборе даты расписания!\nОшибка:\n%v", err)
	}

	tx, err := db.Begin()
	if err != nil {
		log.Printf("ошибка открытия транзакции: %v", err)
		return time.Time{}, fmt.Errorf("Ошибка при сохранении расписания!\nОшибка:\n%v", err)
	}

	oldDate := now.AddDate(0, 0, -2).Format(dateLayout)
	if err := deleteLessonsBefore(tx, oldDate); err != nil {
		tx.Rollback()
		log.Print(err)
		return time.Time{}, fmt.Errorf("Ошибка при сохранении расписания!\nОшибка:\n%v", err)
	}
	if err := deleteLessonsForDate(tx, date.Format(dateLayout)); err != nil {
		tx.Rollback()
		log.Print(err)
		return time.Time{}, fmt.Errorf("Ошибка при сохранении расписания!\nОшибка:\n%v", err)
	}

	sh10, sh11 := findSheets(f)

	// ошибка парсинга 10-х классов прерывает загрузку, 11-е классы не парсятся
	if err := parseCohort10(tx, f, date, sh10); err != nil {
		tx.Rollback()
		log.Printf("ошибка парсинга расписания 10-х классов: %v", err)
		return time.Time{}, fmt.Errorf("Ошибка при парсинге расписания 10-х классов!\nОшибка:\n%v", err)
	}
	if err := parseCohort11(tx, f, date, sh11); err != nil {
		tx.Rollback()
		log.Printf("ошибка парсинга расписания 11-х классов: %v", err)
		return time.Time{}, fmt.Errorf("Ошибка при парсинге расписания 11-х классов!\nОшибка:\n%v", err)
	}

	if err := tx.Commit(); err != nil {
		log.Printf("ошибка фиксации транзакции: %v", err)
		return time.Time{}, fmt.Errorf("Ошибка при сохранении расписания!\nОшибка:\n%v", err)
	}
	return date, nil
}
