// Package reward начисляет кристаллы за выполненную сессию упражнения.
// rules.go содержит таблицу наград и чистую функцию их расчёта.
package reward

import (
	"time"

	"github.com/google/uuid"

	"serotonyl.ru/reading-rewards/internal/features/ledger"
)

// Размеры наград в кристаллах
const (
	AssignedExerciseComplete int64 = 10 // Назначенное упражнение выполнено
	FreeExerciseComplete     int64 = 5  // Самостоятельное упражнение выполнено
	AssignedPerfectScore     int64 = 5  // 100% в назначенном
	FreePerfectScore         int64 = 3  // 100% в самостоятельном
	FirstAttempt             int64 = 3  // Назначенное с первой попытки
)

// SessionFacts — всё, что движку наград нужно знать о сессии.
type SessionFacts struct {
	SessionID       uuid.UUID
	PatientID       uuid.UUID
	ExerciseID      uuid.UUID
	IsAssigned      bool
	IsCompleted     bool
	AttemptNumber   int
	HasScore        bool
	ScorePercentage int
	CompletedAt     time.Time // ended_at сессии, по нему считается день серии
}

// Award — одно сработавшее правило.
type Award struct {
	Amount int64
	Type   ledger.TransactionType
	Source ledger.Source
}

// Rules возвращает сработавшие правила в порядке проверки.
// Первое правило всегда награда за выполнение: оно же ключ дедупликации сессии.
//
//	Назначенное, 100%, попытка 1   → 10 + 5 + 3 = 18
//	Самостоятельное, 60%, попытка 2 → 5
func Rules(f SessionFacts) []Award {
	var awards []Award

	if f.IsAssigned {
		awards = append(awards, Award{AssignedExerciseComplete, ledger.TxEarned, ledger.SourceExerciseCompletion})
	} else {
		awards = append(awards, Award{FreeExerciseComplete, ledger.TxEarned, ledger.SourceFreeExerciseCompletion})
	}

	if f.ScorePercentage == 100 {
		if f.IsAssigned {
			awards = append(awards, Award{AssignedPerfectScore, ledger.TxBonus, ledger.SourcePerfectScore})
		} else {
			awards = append(awards, Award{FreePerfectScore, ledger.TxBonus, ledger.SourceFreePerfectScore})
		}
	}

	if f.IsAssigned && f.AttemptNumber == 1 {
		awards = append(awards, Award{FirstAttempt, ledger.TxBonus, ledger.SourceFirstAttempt})
	}

	return awards
}
