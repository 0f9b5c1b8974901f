// Package common содержит общие утилиты, используемые во всём проекте.
// Сюда входят: работа с датами (DateProvider), русская плюрализация,
// форматирование чисел.
package common

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// DateProvider отдаёт текущее время и текущую календарную дату.
// Стрики считаются по дате в UTC, поэтому Today всегда нормализован
// к полуночи UTC. В тестах подменяется на FixedClock.
type DateProvider interface {
	Now() time.Time
	Today() time.Time
}

// SystemClock — DateProvider на системных часах.
type SystemClock struct{}

// Now возвращает текущее время в UTC.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// Today возвращает сегодняшнюю дату (полночь UTC).
func (c SystemClock) Today() time.Time {
	return TruncateDay(c.Now())
}

// FixedClock — DateProvider с зафиксированным моментом времени.
type FixedClock struct {
	At time.Time
}

// Now возвращает зафиксированный момент.
func (c FixedClock) Now() time.Time {
	return c.At.UTC()
}

// Today возвращает дату зафиксированного момента.
func (c FixedClock) Today() time.Time {
	return TruncateDay(c.At)
}

// TruncateDay отбрасывает время суток и переводит дату в UTC.
//
// Пример:
//
//	TruncateDay(2026-10-14 23:59 +03:00) → 2026-10-14 00:00 UTC
func TruncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween возвращает число календарных дней от from до to.
// Отрицательное значение означает, что from в будущем относительно to.
func DaysBetween(from, to time.Time) int {
	return int(TruncateDay(to).Sub(TruncateDay(from)).Hours() / 24)
}

// LoadLocation загружает часовой пояс, при ошибке возвращает UTC.
// Используется для расписаний и дат в сообщениях специалистам, сами стрики считаются в UTC.
func LoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.WithError(err).Warnf("Не удалось загрузить %s, используем UTC", name)
		return time.UTC
	}
	return loc
}

// FormatDateTime форматирует время в формат "02.01.2006 15:04".
// Используется в отчётах специалистам.
func FormatDateTime(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("02.01.2006 15:04")
}

// FormatGems форматирует количество кристаллов в читабельную строку.
// Пример: FormatGems(15) → "15 кристаллов"
func FormatGems(n int64) string {
	return fmt.Sprintf("%d %s", n, PluralizeGems(n))
}
