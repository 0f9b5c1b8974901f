// Package ledger управляет кристаллами пациентов: журналом начислений
// (gem_transactions, только вставка) и текущим балансом со стриком (gem_balances).
// models.go описывает структуры журнала и баланса.
package ledger

import (
	"time"

	"github.com/google/uuid"
)

// TransactionType — вид записи журнала.
type TransactionType string

const (
	TxEarned TransactionType = "earned" // Начисление за выполненное упражнение
	TxBonus  TransactionType = "bonus"  // Бонус: идеальный результат, первая попытка, стрик
)

// Source — за что начислены кристаллы.
type Source string

// Допустимые источники начислений
const (
	SourceExerciseCompletion     Source = "exercise_completion"      // Назначенное упражнение
	SourceFreeExerciseCompletion Source = "free_exercise_completion" // Самостоятельное упражнение
	SourcePerfectScore           Source = "perfect_score"            // 100% в назначенном
	SourceFreePerfectScore       Source = "free_perfect_score"       // 100% в самостоятельном
	SourceFirstAttempt           Source = "first_attempt"            // Назначенное с первой попытки
	SourceStreak3                Source = "streak_3"
	SourceStreak7                Source = "streak_7"
	SourceStreak14               Source = "streak_14"
	SourceStreak30               Source = "streak_30"
)

// IsCompletion сообщает, что источник служит ключом дедупликации сессии.
// На одну сессию допускается не больше одной такой записи.
func (s Source) IsCompletion() bool {
	return s == SourceExerciseCompletion || s == SourceFreeExerciseCompletion
}

// Transaction — одна запись журнала кристаллов. Никогда не меняется и не удаляется.
type Transaction struct {
	ID        uuid.UUID       `db:"id"`
	UserID    uuid.UUID       `db:"user_id"`
	Amount    int64           `db:"amount"` // Всегда положительная
	Type      TransactionType `db:"transaction_type"`
	Source    Source          `db:"source"`
	SessionID *uuid.UUID      `db:"session_id"` // nil для бонусов за стрик
	Metadata  map[string]any  `db:"metadata"`
	CreatedAt time.Time       `db:"created_at"`
}

// Balance — баланс и состояние стрика пациента.
// TotalGems всегда равен сумме его транзакций минус GemsSpent.
type Balance struct {
	UserID           uuid.UUID  `db:"user_id"`
	TotalGems        int64      `db:"total_gems"`
	GemsSpent        int64      `db:"gems_spent"`
	CurrentStreak    int        `db:"current_streak"`     // Дней подряд
	BestStreak       int        `db:"best_streak"`        // Личный рекорд
	LastActivityDate *time.Time `db:"last_activity_date"` // Дата (UTC) последнего выполнения, nil если ещё не занимался
	ReminderSentOn   *time.Time `db:"reminder_sent_on"`   // Когда последний раз напоминали о стрике
	UpdatedAt        time.Time  `db:"updated_at"`
}

// Mismatch — пациент, у которого баланс разошёлся с журналом.
type Mismatch struct {
	UserID   uuid.UUID
	Stored   int64 // total_gems в gem_balances
	Expected int64 // сумма транзакций минус потраченное
}
