// Package ledger — repository.go выполняет все операции с таблицами gem_balances и gem_transactions.
// Любое изменение баланса идёт внутри транзакции БД со строкой баланса под FOR UPDATE.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/reading-rewards/internal/common"
	"serotonyl.ru/reading-rewards/internal/db/postgres"
)

const balanceColumns = `user_id, total_gems, gems_spent, current_streak, best_streak,
	last_activity_date, reminder_sent_on, updated_at`

// Repository — реализация Store поверх PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт новый репозиторий журнала кристаллов.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// InTx выполняет fn в одной транзакции. Любая ошибка откатывает и журнал, и баланс.
func (r *Repository) InTx(ctx context.Context, fn func(tx Tx) error) error {
	return postgres.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(&pgTx{tx: tx})
	})
}

// GetBalance возвращает баланс пациента. Нет строки — ErrPatientNotFound.
func (r *Repository) GetBalance(ctx context.Context, userID uuid.UUID) (*Balance, error) {
	row := r.db.QueryRow(ctx, `SELECT `+balanceColumns+` FROM gem_balances WHERE user_id = $1`, userID)
	b, err := scanBalance(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrPatientNotFound
	}
	if err != nil {
		return nil, persistErr("ошибка получения баланса", err)
	}
	return b, nil
}

// ListTransactions возвращает последние записи журнала пациента, новые первыми.
func (r *Repository) ListTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]*Transaction, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, amount, transaction_type, source, session_id, metadata, created_at
		FROM gem_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, persistErr("ошибка получения истории", err)
	}
	defer rows.Close()

	var list []*Transaction
	for rows.Next() {
		t := &Transaction{}
		if err := rows.Scan(&t.ID, &t.UserID, &t.Amount, &t.Type, &t.Source,
			&t.SessionID, &t.Metadata, &t.CreatedAt); err != nil {
			return nil, persistErr("ошибка чтения транзакции", err)
		}
		list = append(list, t)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("ошибка чтения истории", err)
	}
	return list, nil
}

// ListReminderCandidates — стрик под угрозой: вчера занимались, сегодня ещё нет.
func (r *Repository) ListReminderCandidates(ctx context.Context, minStreak int, yesterday time.Time) ([]*Balance, error) {
	today := yesterday.AddDate(0, 0, 1)
	rows, err := r.db.Query(ctx, `
		SELECT `+balanceColumns+`
		FROM gem_balances
		WHERE current_streak >= $1
		  AND last_activity_date = $2
		  AND (reminder_sent_on IS NULL OR reminder_sent_on < $3)
		ORDER BY current_streak DESC
	`, minStreak, yesterday, today)
	if err != nil {
		return nil, persistErr("ошибка поиска стриков под угрозой", err)
	}
	defer rows.Close()

	var list []*Balance
	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			return nil, persistErr("ошибка чтения баланса", err)
		}
		list = append(list, b)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("ошибка чтения балансов", err)
	}
	return list, nil
}

// MarkReminderSent отмечает, что напоминание за day отправлено.
func (r *Repository) MarkReminderSent(ctx context.Context, userIDs []uuid.UUID, day time.Time) error {
	if len(userIDs) == 0 {
		return nil
	}
	_, err := r.db.Exec(ctx, `
		UPDATE gem_balances SET reminder_sent_on = $2 WHERE user_id = ANY($1)
	`, userIDs, day)
	if err != nil {
		return persistErr("ошибка отметки напоминания", err)
	}
	return nil
}

// Reconcile сравнивает total_gems с суммой журнала для каждого пациента.
// Только читает, балансы не исправляет.
func (r *Repository) Reconcile(ctx context.Context) ([]Mismatch, error) {
	rows, err := r.db.Query(ctx, `
		SELECT b.user_id, b.total_gems, COALESCE(SUM(t.amount), 0) - b.gems_spent AS expected
		FROM gem_balances b
		LEFT JOIN gem_transactions t ON t.user_id = b.user_id
		GROUP BY b.user_id, b.total_gems, b.gems_spent
		HAVING b.total_gems <> COALESCE(SUM(t.amount), 0) - b.gems_spent
		ORDER BY b.user_id
	`)
	if err != nil {
		return nil, persistErr("ошибка сверки балансов", err)
	}
	defer rows.Close()

	var list []Mismatch
	for rows.Next() {
		var m Mismatch
		if err := rows.Scan(&m.UserID, &m.Stored, &m.Expected); err != nil {
			return nil, persistErr("ошибка чтения сверки", err)
		}
		list = append(list, m)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("ошибка чтения сверки", err)
	}
	return list, nil
}

// pgTx — операции Tx поверх открытой транзакции pgx.
type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) LockBalance(ctx context.Context, userID uuid.UUID) (*Balance, error) {
	// Строка создаётся при первом начислении
	if _, err := t.tx.Exec(ctx, `
		INSERT INTO gem_balances (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
	`, userID); err != nil {
		return nil, persistErr("ошибка создания баланса", err)
	}

	row := t.tx.QueryRow(ctx, `SELECT `+balanceColumns+` FROM gem_balances WHERE user_id = $1 FOR UPDATE`, userID)
	b, err := scanBalance(row)
	if err != nil {
		return nil, persistErr("ошибка блокировки баланса", err)
	}
	return b, nil
}

func (t *pgTx) InsertTransaction(ctx context.Context, tr *Transaction) (bool, error) {
	if tr.Amount <= 0 {
		return false, common.ErrInvalidAmount
	}
	if tr.ID == uuid.Nil {
		tr.ID = uuid.New()
	}
	if tr.CreatedAt.IsZero() {
		tr.CreatedAt = time.Now().UTC()
	}
	metadata := tr.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	// Уникальные индексы по session_id делают вставку условной:
	// при конфликте RETURNING не вернёт строку.
	var id uuid.UUID
	err := t.tx.QueryRow(ctx, `
		INSERT INTO gem_transactions
			(id, user_id, amount, transaction_type, source, session_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT DO NOTHING
		RETURNING id
	`, tr.ID, tr.UserID, tr.Amount, tr.Type, tr.Source, tr.SessionID, metadata, tr.CreatedAt).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, persistErr("ошибка записи транзакции", err)
	}
	return true, nil
}

func (t *pgTx) HasSourceSince(ctx context.Context, userID uuid.UUID, source Source, since time.Time) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM gem_transactions
			WHERE user_id = $1 AND source = $2 AND created_at >= $3
		)
	`, userID, source, since).Scan(&exists)
	if err != nil {
		return false, persistErr("ошибка проверки бонуса", err)
	}
	return exists, nil
}

func (t *pgTx) AddGems(ctx context.Context, userID uuid.UUID, amount int64) error {
	if amount <= 0 {
		return common.ErrInvalidAmount
	}
	tag, err := t.tx.Exec(ctx, `
		UPDATE gem_balances
		SET total_gems = total_gems + $2, updated_at = NOW()
		WHERE user_id = $1
	`, userID, amount)
	if err != nil {
		return persistErr("ошибка начисления", err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrPatientNotFound
	}
	return nil
}

func (t *pgTx) SaveStreak(ctx context.Context, userID uuid.UUID, current, best int, lastActivity time.Time) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE gem_balances
		SET current_streak = $2, best_streak = $3, last_activity_date = $4, updated_at = NOW()
		WHERE user_id = $1
	`, userID, current, best, common.TruncateDay(lastActivity))
	if err != nil {
		return persistErr("ошибка обновления стрика", err)
	}
	return nil
}

func scanBalance(row pgx.Row) (*Balance, error) {
	b := &Balance{}
	err := row.Scan(&b.UserID, &b.TotalGems, &b.GemsSpent, &b.CurrentStreak, &b.BestStreak,
		&b.LastActivityDate, &b.ReminderSentOn, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func persistErr(msg string, err error) error {
	return fmt.Errorf("%w: %s: %w", common.ErrPersistence, msg, err)
}
