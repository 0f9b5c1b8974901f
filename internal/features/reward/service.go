// Package reward — service.go выполняет начисление за сессию в одной транзакции:
// строка баланса блокируется, пишутся записи журнала, баланс растёт один раз,
// затем обновляется серия.
package reward

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/reading-rewards/internal/common"
	"serotonyl.ru/reading-rewards/internal/config"
	"serotonyl.ru/reading-rewards/internal/features/ledger"
	"serotonyl.ru/reading-rewards/internal/features/streak"
	"serotonyl.ru/reading-rewards/internal/notify"
)

// SessionSource отдаёт факты о сессии. Нет сессии — common.ErrSessionNotFound.
type SessionSource interface {
	SessionFacts(ctx context.Context, sessionID uuid.UUID) (*SessionFacts, error)
}

// Result — итог начисления.
type Result struct {
	AlreadyAwarded bool           `json:"alreadyAwarded"`
	TotalAwarded   int64          `json:"totalAwarded"`
	Streak         *streak.Update `json:"-"`
}

// Service начисляет кристаллы за выполненные сессии.
type Service struct {
	store    ledger.Store
	sessions SessionSource
	streaks  *streak.Service
	clock    common.DateProvider
	notifier notify.Notifier
	cfg      *config.Config
}

// NewService создаёт новый сервис наград.
func NewService(
	store ledger.Store,
	sessions SessionSource,
	streaks *streak.Service,
	clock common.DateProvider,
	notifier notify.Notifier,
	cfg *config.Config,
) *Service {
	return &Service{
		store:    store,
		sessions: sessions,
		streaks:  streaks,
		clock:    clock,
		notifier: notifier,
		cfg:      cfg,
	}
}

// AwardExerciseGems начисляет кристаллы за сессию sessionID.
// Повторный вызов для той же сессии возвращает AlreadyAwarded и ничего не меняет,
// поэтому после сбоя вызов можно безопасно повторить.
//
// Алгоритм:
//  1. Проверяем сессию: существует, принадлежит пациенту, завершена, есть результат
//  2. Блокируем строку баланса
//  3. Вставляем запись за выполнение; конфликт ключа — уже начислено
//  4. Вставляем бонусы и один раз увеличиваем баланс на сумму
//  5. Обновляем серию и добавляем бонусы за вехи
func (s *Service) AwardExerciseGems(ctx context.Context, sessionID, patientID uuid.UUID) (*Result, error) {
	// Шаг 1
	facts, err := s.checkSession(ctx, sessionID, patientID)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	err = s.store.InTx(ctx, func(tx ledger.Tx) error {
		// Шаг 2
		bal, err := tx.LockBalance(ctx, patientID)
		if err != nil {
			return err
		}

		// Шаг 3-4
		awards := Rules(*facts)
		var sum int64
		for i, a := range awards {
			inserted, err := tx.InsertTransaction(ctx, &ledger.Transaction{
				UserID:    patientID,
				Amount:    a.Amount,
				Type:      a.Type,
				Source:    a.Source,
				SessionID: &sessionID,
				Metadata: map[string]any{
					"exercise_id":      facts.ExerciseID.String(),
					"attempt_number":   facts.AttemptNumber,
					"score_percentage": facts.ScorePercentage,
				},
				CreatedAt: s.clock.Now(),
			})
			if err != nil {
				return fmt.Errorf("ошибка записи награды %s: %w", a.Source, err)
			}
			if !inserted {
				if i == 0 {
					res.AlreadyAwarded = true
					return nil
				}
				// Бонусы сессии пишутся только вместе с записью о выполнении
				return fmt.Errorf("%w: бонус %s уже записан для сессии %s", common.ErrPersistence, a.Source, sessionID)
			}
			sum += a.Amount
		}
		if err := tx.AddGems(ctx, patientID, sum); err != nil {
			return fmt.Errorf("ошибка начисления кристаллов: %w", err)
		}
		res.TotalAwarded = sum

		// Шаг 5
		if !s.cfg.FeatureStreaksEnabled || s.streaks == nil {
			return nil
		}
		day := s.activityDay(facts)
		if bal.LastActivityDate != nil && day.Before(*bal.LastActivityDate) {
			log.WithFields(log.Fields{
				"session_id":    sessionID,
				"activity_date": day.Format(time.DateOnly),
			}).Info("Серия уже учла более позднее занятие, не обновляем")
			return nil
		}
		upd, err := s.streaks.ApplyOn(ctx, tx, bal, day)
		if err != nil {
			return err
		}
		res.Streak = upd
		res.TotalAwarded += upd.Gems
		return nil
	})
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"session_id": sessionID,
			"patient_id": patientID,
		}).Error("Ошибка начисления кристаллов")
		return nil, fmt.Errorf("%w: %w", common.ErrRewardFailed, err)
	}

	if res.AlreadyAwarded {
		log.WithField("session_id", sessionID).Info("Сессия уже вознаграждена")
		return res, nil
	}

	log.WithFields(log.Fields{
		"session_id": sessionID,
		"patient_id": patientID,
		"gems":       res.TotalAwarded,
	}).Info("Кристаллы начислены")

	if res.Streak != nil && len(res.Streak.Milestones) > 0 && s.notifier != nil {
		if err := s.notifier.Notify(ctx, streak.FormatMilestones(patientID, res.Streak)); err != nil {
			log.WithError(err).Warn("Не удалось уведомить о вехе серии")
		}
	}

	return res, nil
}

// activityDay — календарный день (UTC) завершения сессии.
// Повтор начисления после полуночи засчитывает серию в день выполнения.
func (s *Service) activityDay(f *SessionFacts) time.Time {
	if f.CompletedAt.IsZero() {
		return s.clock.Today()
	}
	return common.TruncateDay(f.CompletedAt)
}

// checkSession проверяет сессию до любой записи.
func (s *Service) checkSession(ctx context.Context, sessionID, patientID uuid.UUID) (*SessionFacts, error) {
	if patientID == uuid.Nil {
		return nil, common.ErrUnauthorized
	}
	if sessionID == uuid.Nil {
		return nil, fmt.Errorf("%w: не указан id сессии", common.ErrValidation)
	}

	facts, err := s.sessions.SessionFacts(ctx, sessionID)
	if err != nil {
		if errors.Is(err, common.ErrSessionNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("ошибка получения сессии: %w", err)
	}
	if facts.PatientID != patientID {
		return nil, common.ErrForbidden
	}
	if !facts.IsCompleted {
		return nil, common.ErrSessionNotCompleted
	}
	if !facts.HasScore {
		return nil, common.ErrScoreNotFound
	}
	return facts, nil
}
