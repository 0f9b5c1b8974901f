package ledger

import (
	"fmt"

	"serotonyl.ru/reading-rewards/internal/common"
)

// sourceTitles — подписи источников для истории начислений.
var sourceTitles = map[Source]string{
	SourceExerciseCompletion:     "за назначенное упражнение",
	SourceFreeExerciseCompletion: "за самостоятельное упражнение",
	SourcePerfectScore:           "за идеальный результат",
	SourceFreePerfectScore:       "за идеальный результат",
	SourceFirstAttempt:           "с первой попытки",
	SourceStreak3:                "за серию 3 дня",
	SourceStreak7:                "за серию 7 дней",
	SourceStreak14:               "за серию 14 дней",
	SourceStreak30:               "за серию 30 дней",
}

// Describe возвращает строку истории вида "+10 кристаллов за назначенное упражнение".
func Describe(tr *Transaction) string {
	title, ok := sourceTitles[tr.Source]
	if !ok {
		title = string(tr.Source)
	}
	return fmt.Sprintf("%s %s", common.FormatGemsAmount(tr.Amount), title)
}
