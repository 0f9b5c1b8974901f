// Package streak — service.go содержит основную бизнес-логику серий:
// обновление серии после занятия и выдачу бонусов за вехи.
package streak

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/reading-rewards/internal/common"
	"serotonyl.ru/reading-rewards/internal/features/ledger"
)

// Service обновляет серии. Менять серию можно только через него.
type Service struct {
	store ledger.Store        // Журнал кристаллов (там же хранится серия)
	clock common.DateProvider // Источник "сегодня"
}

// NewService создаёт новый сервис серий.
func NewService(store ledger.Store, clock common.DateProvider) *Service {
	return &Service{store: store, clock: clock}
}

// UpdateStreak обновляет серию пациента в отдельной транзакции
// и возвращает сумму кристаллов за выданные вехи.
func (s *Service) UpdateStreak(ctx context.Context, patientID uuid.UUID) (int64, error) {
	var gems int64
	err := s.store.InTx(ctx, func(tx ledger.Tx) error {
		bal, err := tx.LockBalance(ctx, patientID)
		if err != nil {
			return err
		}
		upd, err := s.Apply(ctx, tx, bal)
		if err != nil {
			return err
		}
		gems = upd.Gems
		return nil
	})
	if err != nil {
		return 0, err
	}
	return gems, nil
}

// Apply обновляет серию за сегодняшний день внутри уже открытой транзакции.
func (s *Service) Apply(ctx context.Context, tx ledger.Tx, bal *ledger.Balance) (*Update, error) {
	return s.ApplyOn(ctx, tx, bal, s.clock.Today())
}

// ApplyOn обновляет серию за день занятия day внутри уже открытой транзакции.
// bal должен быть получен через tx.LockBalance в этой же транзакции.
//
// Алгоритм:
//  1. Считаем новую длину серии по таблице переходов
//  2. Если сегодня уже занимался — выходим без записи
//  3. Сохраняем серию и рекорд
//  4. Для каждой впервые достигнутой вехи проверяем окно и пишем транзакцию
//  5. Увеличиваем баланс один раз на сумму всех вех
func (s *Service) ApplyOn(ctx context.Context, tx ledger.Tx, bal *ledger.Balance, day time.Time) (*Update, error) {
	today := common.TruncateDay(day)

	// Шаг 1-2
	next, change := Next(bal.LastActivityDate, bal.CurrentStreak, today)
	upd := &Update{
		Change:   change,
		Previous: bal.CurrentStreak,
		Current:  next,
		Best:     max(bal.BestStreak, next),
	}
	if change == Unchanged {
		upd.Best = bal.BestStreak
		return upd, nil
	}

	// Шаг 3
	if err := tx.SaveStreak(ctx, bal.UserID, upd.Current, upd.Best, today); err != nil {
		return nil, fmt.Errorf("ошибка сохранения серии: %w", err)
	}

	// Шаг 4
	since := WindowStart(today, next)
	for _, m := range Crossed(bal.CurrentStreak, next) {
		exists, err := tx.HasSourceSince(ctx, bal.UserID, m.Source, since)
		if err != nil {
			return nil, err
		}
		if exists {
			log.WithFields(log.Fields{
				"patient_id": bal.UserID,
				"milestone":  m.Days,
			}).Warn("Веха уже выдана в этом окне, пропускаем")
			continue
		}

		inserted, err := tx.InsertTransaction(ctx, &ledger.Transaction{
			UserID:    bal.UserID,
			Amount:    m.Gems,
			Type:      ledger.TxBonus,
			Source:    m.Source,
			Metadata:  map[string]any{"streak_days": next},
			CreatedAt: s.clock.Now(),
		})
		if err != nil {
			return nil, fmt.Errorf("ошибка записи бонуса за серию: %w", err)
		}
		if !inserted {
			continue
		}
		upd.Milestones = append(upd.Milestones, m)
		upd.Gems += m.Gems
	}

	// Шаг 5
	if upd.Gems > 0 {
		if err := tx.AddGems(ctx, bal.UserID, upd.Gems); err != nil {
			return nil, fmt.Errorf("ошибка начисления бонуса за серию: %w", err)
		}
	}

	log.WithFields(log.Fields{
		"patient_id": bal.UserID,
		"change":     change.String(),
		"streak":     upd.Current,
		"best":       upd.Best,
		"gems":       upd.Gems,
	}).Debug("Серия обновлена")

	return upd, nil
}
