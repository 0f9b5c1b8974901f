// Package staff — repository.go работает с таблицей staff_login_attempts.
package staff

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository хранит попытки входа.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// LogAttempt записывает попытку входа.
func (r *Repository) LogAttempt(ctx context.Context, clientIP string, success bool) error {
	query := `INSERT INTO staff_login_attempts (client_ip, success) VALUES ($1, $2)`
	if _, err := r.db.Exec(ctx, query, clientIP, success); err != nil {
		return fmt.Errorf("ошибка записи попытки входа: %w", err)
	}
	return nil
}

// RecentFailures возвращает количество неудачных попыток с адреса начиная с since.
func (r *Repository) RecentFailures(ctx context.Context, clientIP string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM staff_login_attempts
		WHERE client_ip = $1 AND success = FALSE AND attempt_time >= $2
	`
	var count int
	if err := r.db.QueryRow(ctx, query, clientIP, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта попыток входа: %w", err)
	}
	return count, nil
}
