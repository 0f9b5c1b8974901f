// Package completion — service.go принимает завершённую попытку от плеера,
// записывает её и один раз вызывает начисление кристаллов.
package completion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/reading-rewards/internal/common"
	"serotonyl.ru/reading-rewards/internal/features/reward"
)

// Store — операции хранилища, нужные для записи попытки.
type Store interface {
	GetExercise(ctx context.Context, id uuid.UUID) (*Exercise, error)
	RecordAttempt(ctx context.Context, at *Attempt) (*Session, error)
}

// Awarder начисляет кристаллы за записанную сессию.
type Awarder interface {
	AwardExerciseGems(ctx context.Context, sessionID, patientID uuid.UUID) (*reward.Result, error)
}

// Service записывает попытки.
type Service struct {
	store   Store
	awarder Awarder
	clock   common.DateProvider
}

// NewService создаёт новый сервис записи попыток.
func NewService(store Store, awarder Awarder, clock common.DateProvider) *Service {
	return &Service{store: store, awarder: awarder, clock: clock}
}

// RecordCompletion записывает попытку пациента и начисляет кристаллы.
//
// Ошибки проверки и поиска возвращаются до любой записи.
// Если попытка записана, а начисление упало, возвращается Outcome с
// RewardPending и ошибка ErrRewardFailed: попытка не потеряна,
// начисление можно повторить через AwardExerciseGems.
func (s *Service) RecordCompletion(ctx context.Context, patientID, exerciseID uuid.UUID, in Input) (*Outcome, error) {
	if patientID == uuid.Nil {
		return nil, common.ErrUnauthorized
	}
	if exerciseID == uuid.Nil {
		return nil, fmt.Errorf("%w: не указан id упражнения", common.ErrValidation)
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	exercise, err := s.store.GetExercise(ctx, exerciseID)
	if err != nil {
		return nil, err
	}
	if exercise.Kind != in.Payload.Kind() {
		return nil, fmt.Errorf("%w: тип попытки %s не совпадает с упражнением %s",
			common.ErrValidation, in.Payload.Kind(), exercise.Kind)
	}

	endedAt := s.clock.Now()
	startedAt := in.StartedAt
	if startedAt.IsZero() || startedAt.After(endedAt) {
		startedAt = endedAt.Add(-secondsDuration(in.DurationSeconds))
	}

	score := ComputeScore(in.Answers, in.DurationSeconds)
	session, err := s.store.RecordAttempt(ctx, &Attempt{
		ExerciseID:      exerciseID,
		PatientID:       patientID,
		Kind:            exercise.Kind,
		StartedAt:       startedAt,
		EndedAt:         endedAt,
		DurationSeconds: in.DurationSeconds,
		Details:         in.Payload.Details(),
		Results:         in.Answers,
		Score:           score,
	})
	if err != nil {
		if !errors.Is(err, common.ErrPersistence) {
			err = fmt.Errorf("%w: %w", common.ErrPersistence, err)
		}
		return nil, err
	}

	out := &Outcome{
		SessionID:     session.ID,
		AttemptNumber: session.AttemptNumber,
		IsAssigned:    session.IsAssigned,
		Score:         score,
	}

	log.WithFields(log.Fields{
		"session_id":  session.ID,
		"patient_id":  patientID,
		"exercise_id": exerciseID,
		"attempt":     session.AttemptNumber,
		"score":       score.ScorePercentage,
	}).Info("Попытка записана")

	res, err := s.awarder.AwardExerciseGems(ctx, session.ID, patientID)
	if err != nil {
		out.RewardPending = true
		if !errors.Is(err, common.ErrRewardFailed) {
			err = fmt.Errorf("%w: %w", common.ErrRewardFailed, err)
		}
		return out, err
	}
	out.GemsAwarded = res.TotalAwarded
	out.AlreadyAwarded = res.AlreadyAwarded
	return out, nil
}

func secondsDuration(n int) time.Duration {
	return time.Duration(n) * time.Second
}
