// Package common — pluralize.go содержит функции
// для правильного склонения русских числительных.
package common

import "fmt"

// pluralForm выбирает одну из трёх форм слова для числа n.
//
// Правила русского языка:
//   - n%10==1 И n%100!=11 → one (1, 21, 31, 101, ...)
//   - n%10 в [2,3,4] И n%100 НЕ в [12,13,14] → few (2, 3, 4, 22, 23, ...)
//   - Остальные случаи → many (0, 5-20, 25-30, 100, ...)
func pluralForm(n int64, one, few, many string) string {
	if n < 0 {
		n = -n
	}
	lastDigit := n % 10
	lastTwoDigits := n % 100

	if lastDigit == 1 && lastTwoDigits != 11 {
		return one
	}
	if lastDigit >= 2 && lastDigit <= 4 && (lastTwoDigits < 12 || lastTwoDigits > 14) {
		return few
	}
	return many
}

// PluralizeGems возвращает форму слова «кристалл» для числа n.
//
// Примеры:
//
//	PluralizeGems(1)  → "кристалл"
//	PluralizeGems(3)  → "кристалла"
//	PluralizeGems(15) → "кристаллов"
func PluralizeGems(n int64) string {
	return pluralForm(n, "кристалл", "кристалла", "кристаллов")
}

// PluralizeDays возвращает форму слова «день» для числа n.
func PluralizeDays(n int) string {
	return pluralForm(int64(n), "день", "дня", "дней")
}

// FormatGemsAmount создаёт строку вида "+15 кристаллов".
// Знак «+» или «-» добавляется автоматически.
func FormatGemsAmount(amount int64) string {
	if amount >= 0 {
		return fmt.Sprintf("+%d %s", amount, PluralizeGems(amount))
	}
	return fmt.Sprintf("%d %s", amount, PluralizeGems(amount))
}

// FormatNumber форматирует число с разделителями тысяч (пробелами).
// Пример: FormatNumber(2350) → "2 350"
func FormatNumber(n int64) string {
	if n < 0 {
		return "-" + FormatNumber(-n)
	}
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	return fmt.Sprintf("%s %03d", FormatNumber(n/1000), n%1000)
}
