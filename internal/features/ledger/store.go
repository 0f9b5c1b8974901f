package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store — хранилище журнала кристаллов.
// Все изменения баланса и стрика идут только через InTx.
type Store interface {
	// InTx выполняет fn в одной транзакции БД. Ошибка fn откатывает всё.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	GetBalance(ctx context.Context, userID uuid.UUID) (*Balance, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]*Transaction, error)

	// ListReminderCandidates — пациенты со стриком >= minStreak,
	// которые последний раз занимались yesterday и сегодня ещё не получали напоминание.
	ListReminderCandidates(ctx context.Context, minStreak int, yesterday time.Time) ([]*Balance, error)
	MarkReminderSent(ctx context.Context, userIDs []uuid.UUID, day time.Time) error

	// Reconcile сверяет балансы с журналом и возвращает расхождения.
	Reconcile(ctx context.Context) ([]Mismatch, error)
}

// Tx — операции внутри транзакции. Строка баланса блокируется LockBalance
// до конца транзакции, поэтому параллельные начисления одному пациенту
// выполняются строго по очереди.
type Tx interface {
	// LockBalance создаёт строку баланса при необходимости и блокирует её.
	LockBalance(ctx context.Context, userID uuid.UUID) (*Balance, error)

	// InsertTransaction добавляет запись журнала.
	// false — запись с таким ключом дедупликации уже есть, ничего не вставлено.
	InsertTransaction(ctx context.Context, t *Transaction) (bool, error)

	// HasSourceSince проверяет, была ли запись с источником source начиная с since.
	HasSourceSince(ctx context.Context, userID uuid.UUID, source Source, since time.Time) (bool, error)

	// AddGems увеличивает total_gems. Вызывается один раз на пакет записей журнала.
	AddGems(ctx context.Context, userID uuid.UUID, amount int64) error

	// SaveStreak записывает новое состояние стрика.
	SaveStreak(ctx context.Context, userID uuid.UUID, current, best int, lastActivity time.Time) error
}
