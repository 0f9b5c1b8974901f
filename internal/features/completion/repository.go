// Package completion — repository.go выполняет операции с таблицами
// exercises, assignments, sessions, results и scores.
package completion

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/reading-rewards/internal/common"
	"serotonyl.ru/reading-rewards/internal/db/postgres"
	"serotonyl.ru/reading-rewards/internal/features/reward"
)

const (
	attemptConstraint = "sessions_attempt_unique"
	maxAttemptRetries = 5
)

// Repository предоставляет методы для записи попыток.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт новый репозиторий попыток.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// GetExercise возвращает активное упражнение. Нет или выключено — ErrExerciseNotFound.
func (r *Repository) GetExercise(ctx context.Context, id uuid.UUID) (*Exercise, error) {
	e := &Exercise{}
	err := r.db.QueryRow(ctx, `
		SELECT id, title, exercise_type, is_active, created_at
		FROM exercises
		WHERE id = $1 AND is_active
	`, id).Scan(&e.ID, &e.Title, &e.Kind, &e.IsActive, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrExerciseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: ошибка получения упражнения: %w", common.ErrPersistence, err)
	}
	return e, nil
}

// SaveExercise регистрирует упражнение или обновляет его название, тип и активность.
func (r *Repository) SaveExercise(ctx context.Context, e *Exercise) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO exercises (id, title, exercise_type, is_active)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET title = EXCLUDED.title, exercise_type = EXCLUDED.exercise_type, is_active = EXCLUDED.is_active
		RETURNING created_at
	`, e.ID, e.Title, e.Kind, e.IsActive).Scan(&e.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: ошибка сохранения упражнения: %w", common.ErrPersistence, err)
	}
	return nil
}

// CreateAssignment назначает упражнение пациенту.
func (r *Repository) CreateAssignment(ctx context.Context, a *Assignment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO assignments (id, exercise_id, patient_id, status, is_self_assigned, assigned_at)
		VALUES ($1, $2, $3, $4, FALSE, $5)
	`, a.ID, a.ExerciseID, a.PatientID, a.Status, a.AssignedAt)
	if err != nil {
		return fmt.Errorf("%w: ошибка создания назначения: %w", common.ErrPersistence, err)
	}
	return nil
}

// RecordAttempt записывает попытку одной транзакцией: назначение, сессию, ответы и итог.
// Номер попытки защищён уникальным ограничением; при гонке двух попыток
// транзакция повторяется.
func (r *Repository) RecordAttempt(ctx context.Context, at *Attempt) (*Session, error) {
	var lastErr error
	for try := 1; try <= maxAttemptRetries; try++ {
		s, err := r.recordAttemptOnce(ctx, at)
		if err == nil {
			return s, nil
		}
		if !postgres.IsUniqueViolation(err, attemptConstraint) {
			return nil, fmt.Errorf("%w: ошибка записи попытки: %w", common.ErrPersistence, err)
		}
		lastErr = err
		log.WithFields(log.Fields{
			"exercise_id": at.ExerciseID,
			"patient_id":  at.PatientID,
			"try":         try,
		}).Warn("Конфликт номера попытки, повторяем")
	}
	return nil, fmt.Errorf("%w: номер попытки не выделен: %w", common.ErrPersistence, lastErr)
}

func (r *Repository) recordAttemptOnce(ctx context.Context, at *Attempt) (*Session, error) {
	s := &Session{
		ID:              uuid.New(),
		ExerciseID:      at.ExerciseID,
		PatientID:       at.PatientID,
		Kind:            at.Kind,
		StartedAt:       at.StartedAt,
		EndedAt:         at.EndedAt,
		DurationSeconds: at.DurationSeconds,
		IsCompleted:     true,
		Details:         at.Details,
	}
	if s.Details == nil {
		s.Details = map[string]any{}
	}

	err := postgres.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		// Открытое назначение закрываем, иначе создаём неявное
		err := tx.QueryRow(ctx, `
			SELECT id FROM assignments
			WHERE patient_id = $1 AND exercise_id = $2 AND status IN ('assigned', 'in_progress')
			ORDER BY assigned_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		`, at.PatientID, at.ExerciseID).Scan(&s.AssignmentID)
		switch {
		case err == nil:
			s.IsAssigned = true
			if _, err := tx.Exec(ctx, `
				UPDATE assignments SET status = 'completed', completed_at = $2 WHERE id = $1
			`, s.AssignmentID, at.EndedAt); err != nil {
				return fmt.Errorf("ошибка закрытия назначения: %w", err)
			}
		case errors.Is(err, pgx.ErrNoRows):
			s.AssignmentID = uuid.New()
			if _, err := tx.Exec(ctx, `
				INSERT INTO assignments (id, exercise_id, patient_id, status, is_self_assigned, assigned_at, completed_at)
				VALUES ($1, $2, $3, 'completed', TRUE, $4, $4)
			`, s.AssignmentID, at.ExerciseID, at.PatientID, at.EndedAt); err != nil {
				return fmt.Errorf("ошибка создания неявного назначения: %w", err)
			}
		default:
			return fmt.Errorf("ошибка поиска назначения: %w", err)
		}

		if err := tx.QueryRow(ctx, `
			SELECT COALESCE(MAX(attempt_number), 0) + 1
			FROM sessions
			WHERE exercise_id = $1 AND patient_id = $2 AND is_completed
		`, at.ExerciseID, at.PatientID).Scan(&s.AttemptNumber); err != nil {
			return fmt.Errorf("ошибка расчёта номера попытки: %w", err)
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO sessions (id, exercise_id, patient_id, assignment_id, exercise_kind, is_assigned,
			                      attempt_number, started_at, ended_at, duration_seconds, is_completed, details)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, TRUE, $11)
		`, s.ID, s.ExerciseID, s.PatientID, s.AssignmentID, s.Kind, s.IsAssigned,
			s.AttemptNumber, s.StartedAt, s.EndedAt, s.DurationSeconds, s.Details); err != nil {
			return fmt.Errorf("ошибка записи сессии: %w", err)
		}

		for _, res := range at.Results {
			if _, err := tx.Exec(ctx, `
				INSERT INTO results (session_id, question_id, selected_answer, correct_answer,
				                     is_correct, time_spent_seconds)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, s.ID, res.QuestionID, res.SelectedAnswer, res.CorrectAnswer,
				res.IsCorrect, res.TimeSpentSeconds); err != nil {
				return fmt.Errorf("ошибка записи ответа %s: %w", res.QuestionID, err)
			}
		}

		sc := at.Score
		if _, err := tx.Exec(ctx, `
			INSERT INTO scores (session_id, total_questions, correct_answers, incorrect_answers,
			                    score_percentage, total_time_seconds)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, s.ID, sc.TotalQuestions, sc.CorrectAnswers, sc.IncorrectAnswers,
			sc.ScorePercentage, sc.TotalTimeSeconds); err != nil {
			return fmt.Errorf("ошибка записи результата: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// SessionFacts отдаёт сессию в виде, нужном движку наград.
func (r *Repository) SessionFacts(ctx context.Context, sessionID uuid.UUID) (*reward.SessionFacts, error) {
	f := &reward.SessionFacts{}
	var pct *int
	err := r.db.QueryRow(ctx, `
		SELECT s.id, s.patient_id, s.exercise_id, s.is_assigned, s.is_completed, s.attempt_number,
		       s.ended_at, sc.score_percentage
		FROM sessions s
		LEFT JOIN scores sc ON sc.session_id = s.id
		WHERE s.id = $1
	`, sessionID).Scan(&f.SessionID, &f.PatientID, &f.ExerciseID, &f.IsAssigned, &f.IsCompleted,
		&f.AttemptNumber, &f.CompletedAt, &pct)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: ошибка получения сессии: %w", common.ErrPersistence, err)
	}
	if pct != nil {
		f.HasScore = true
		f.ScorePercentage = *pct
	}
	return f, nil
}

// ListSessions возвращает последние сессии пациента, новые первыми.
func (r *Repository) ListSessions(ctx context.Context, patientID uuid.UUID, limit int) ([]*Session, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, exercise_id, patient_id, assignment_id, exercise_kind, is_assigned, attempt_number,
		       started_at, ended_at, duration_seconds, is_completed, details
		FROM sessions
		WHERE patient_id = $1
		ORDER BY ended_at DESC
		LIMIT $2
	`, patientID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: ошибка получения сессий: %w", common.ErrPersistence, err)
	}
	defer rows.Close()

	var list []*Session
	for rows.Next() {
		s := &Session{}
		if err := rows.Scan(&s.ID, &s.ExerciseID, &s.PatientID, &s.AssignmentID, &s.Kind, &s.IsAssigned,
			&s.AttemptNumber, &s.StartedAt, &s.EndedAt, &s.DurationSeconds, &s.IsCompleted, &s.Details); err != nil {
			return nil, fmt.Errorf("%w: ошибка чтения сессии: %w", common.ErrPersistence, err)
		}
		list = append(list, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: ошибка чтения сессий: %w", common.ErrPersistence, err)
	}
	return list, nil
}
