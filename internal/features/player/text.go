// Package player — text.go считает слова и пропуски в тексте упражнения.
package player

import "strings"

// gapMarker — пропущенная буква в тексте letter_gap.
const gapMarker = '_'

// CountWords подсчитывает количество слов в тексте.
// Слова разделяются пробелами (включая множественные пробелы, табы и т.д.).
//
// Примеры:
//
//	CountWords("кот сидел на окне")    → 4
//	CountWords("  пробелы  лишние  ") → 2
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// CountGaps подсчитывает пропуски: подряд идущие "_" считаются одним пропуском.
//
// Пример:
//
//	CountGaps("к_т и д__") → 2
func CountGaps(text string) int {
	gaps := 0
	inGap := false
	for _, r := range text {
		if r == gapMarker {
			if !inGap {
				gaps++
			}
			inGap = true
			continue
		}
		inGap = false
	}
	return gaps
}
