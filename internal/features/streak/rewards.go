// Package streak — rewards.go содержит чистую арифметику серий:
// таблицу переходов и проверку пересечения вех.
package streak

import (
	"time"

	"serotonyl.ru/reading-rewards/internal/common"
)

// Next вычисляет новую длину серии.
//
// Таблица переходов:
//
//	lastActivity == today      → Unchanged, серия та же
//	lastActivity == nil        → Started, 1
//	lastActivity == today - 1  → Continued, current + 1
//	иначе (пропуск, будущее)   → Broken, 1
func Next(lastActivity *time.Time, current int, today time.Time) (int, Change) {
	if lastActivity == nil {
		return 1, Started
	}
	switch common.DaysBetween(*lastActivity, today) {
	case 0:
		return current, Unchanged
	case 1:
		return current + 1, Continued
	default:
		return 1, Broken
	}
}

// Crossed возвращает вехи, впервые достигнутые при переходе previous → next,
// от старшей к младшей. Каждая веха проверяется независимо.
func Crossed(previous, next int) []Milestone {
	var out []Milestone
	for _, m := range Milestones {
		if next >= m.Days && previous < m.Days {
			out = append(out, m)
		}
	}
	return out
}

// WindowStart — начало окна, в котором ищется уже выданная веха:
// сегодня минус длина новой серии в днях.
func WindowStart(today time.Time, newStreak int) time.Time {
	return common.TruncateDay(today).AddDate(0, 0, -newStreak)
}
