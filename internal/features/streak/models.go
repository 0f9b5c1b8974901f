// Package streak управляет ежедневными сериями занятий пациентов.
// Серия растёт, если пациент выполняет хотя бы одно упражнение каждый
// календарный день (UTC). models.go описывает вехи и результат обновления.
package streak

import "serotonyl.ru/reading-rewards/internal/features/ledger"

// Milestone — длина серии, за которую один раз выдаётся бонус.
type Milestone struct {
	Days   int           // Порог серии в днях
	Gems   int64         // Сколько кристаллов
	Source ledger.Source // Источник транзакции
}

// Milestones — вехи от старшей к младшей.
//
//	30 дней → 300 кристаллов
//	14 дней → 100 кристаллов
//	7 дней  → 50 кристаллов
//	3 дня   → 15 кристаллов
var Milestones = []Milestone{
	{Days: 30, Gems: 300, Source: ledger.SourceStreak30},
	{Days: 14, Gems: 100, Source: ledger.SourceStreak14},
	{Days: 7, Gems: 50, Source: ledger.SourceStreak7},
	{Days: 3, Gems: 15, Source: ledger.SourceStreak3},
}

// Change — что произошло с серией.
type Change int

const (
	Unchanged Change = iota // Сегодня уже занимался, ничего не пишем
	Started                 // Первое занятие
	Continued               // Вчера тоже занимался
	Broken                  // Пропуск или дата в будущем, серия начинается заново
)

func (c Change) String() string {
	switch c {
	case Started:
		return "started"
	case Continued:
		return "continued"
	case Broken:
		return "broken"
	default:
		return "unchanged"
	}
}

// Update — итог обновления серии.
type Update struct {
	Change     Change
	Previous   int         // Серия до обновления
	Current    int         // Серия после обновления
	Best       int         // Рекорд после обновления
	Milestones []Milestone // Вехи, выданные сейчас
	Gems       int64       // Сумма бонусов за вехи
}
