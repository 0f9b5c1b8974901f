package completion

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"serotonyl.ru/reading-rewards/internal/common"
	"serotonyl.ru/reading-rewards/internal/config"
	"serotonyl.ru/reading-rewards/internal/db/postgres/pgtest"
	"serotonyl.ru/reading-rewards/internal/features/ledger"
	"serotonyl.ru/reading-rewards/internal/features/reward"
	"serotonyl.ru/reading-rewards/internal/features/streak"
	"serotonyl.ru/reading-rewards/internal/notify"
)

type pgFixture struct {
	repo    *Repository
	ledger  *ledger.Repository
	rewards *reward.Service
	svc     *Service
}

func setupPG(t *testing.T) *pgFixture {
	pool := pgtest.NewPool(t)
	clock := common.FixedClock{At: now}
	repo := NewRepository(pool)
	led := ledger.NewRepository(pool)
	rewards := reward.NewService(led, repo, streak.NewService(led, clock), clock, notify.Log{},
		&config.Config{FeatureStreaksEnabled: true})
	return &pgFixture{repo: repo, ledger: led, rewards: rewards, svc: NewService(repo, rewards, clock)}
}

func (f *pgFixture) exercise(t *testing.T, kind Kind) uuid.UUID {
	t.Helper()
	e := &Exercise{ID: uuid.New(), Title: "Тест", Kind: kind, IsActive: true}
	if err := f.repo.SaveExercise(context.Background(), e); err != nil {
		t.Fatalf("SaveExercise: %v", err)
	}
	return e.ID
}

func TestPGCompletionFlow(t *testing.T) {
	f := setupPG(t)
	ctx := context.Background()
	patient := uuid.New()
	exID := f.exercise(t, KindMultipleChoice)

	if err := f.repo.CreateAssignment(ctx, &Assignment{
		ExerciseID: exID, PatientID: patient, Status: StatusAssigned, AssignedAt: now.Add(-24 * time.Hour),
	}); err != nil {
		t.Fatalf("CreateAssignment: %v", err)
	}

	first, err := f.svc.RecordCompletion(ctx, patient, exID, Input{Payload: MultipleChoice{}, Answers: answers(true, true), DurationSeconds: 30})
	if err != nil {
		t.Fatalf("first completion: %v", err)
	}
	if !first.IsAssigned || first.AttemptNumber != 1 || first.GemsAwarded != 18 {
		t.Fatalf("first = %+v", first)
	}

	second, err := f.svc.RecordCompletion(ctx, patient, exID, Input{Payload: MultipleChoice{}, Answers: answers(true, false, true), DurationSeconds: 30})
	if err != nil {
		t.Fatalf("second completion: %v", err)
	}
	if second.IsAssigned || second.AttemptNumber != 2 || second.GemsAwarded != 5 || second.Score.ScorePercentage != 67 {
		t.Fatalf("second = %+v", second)
	}

	facts, err := f.repo.SessionFacts(ctx, first.SessionID)
	if err != nil || !facts.CompletedAt.Equal(now) {
		t.Fatalf("facts = %+v, %v", facts, err)
	}

	again, err := f.rewards.AwardExerciseGems(ctx, first.SessionID, patient)
	if err != nil || !again.AlreadyAwarded || again.TotalAwarded != 0 {
		t.Fatalf("retry = %+v, %v", again, err)
	}

	bal, err := f.ledger.GetBalance(ctx, patient)
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if bal.TotalGems != 23 || bal.CurrentStreak != 1 {
		t.Fatalf("balance = %+v", bal)
	}
	if m, err := f.ledger.Reconcile(ctx); err != nil || len(m) != 0 {
		t.Fatalf("reconcile = %+v, %v", m, err)
	}

	sessions, err := f.repo.ListSessions(ctx, patient, 10)
	if err != nil || len(sessions) != 2 {
		t.Fatalf("sessions = %d, %v", len(sessions), err)
	}
}

func TestPGConcurrentAwardSameSession(t *testing.T) {
	f := setupPG(t)
	ctx := context.Background()
	patient := uuid.New()
	exID := f.exercise(t, KindLetterGap)

	session, err := f.repo.RecordAttempt(ctx, &Attempt{
		ExerciseID: exID, PatientID: patient, Kind: KindLetterGap,
		StartedAt: now.Add(-time.Minute), EndedAt: now,
		Score: ComputeScore(nil, 60),
	})
	if err != nil {
		t.Fatalf("RecordAttempt: %v", err)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		awarded int
	)
	for n := 0; n < 8; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.rewards.AwardExerciseGems(ctx, session.ID, patient)
			if err != nil {
				t.Errorf("AwardExerciseGems: %v", err)
				return
			}
			if !res.AlreadyAwarded {
				mu.Lock()
				awarded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if awarded != 1 {
		t.Fatalf("awarded %d times, want 1", awarded)
	}
	bal, _ := f.ledger.GetBalance(ctx, patient)
	if bal.TotalGems != 8 {
		t.Fatalf("total = %d, want 8", bal.TotalGems)
	}
}

func TestPGConcurrentAttemptNumbers(t *testing.T) {
	f := setupPG(t)
	ctx := context.Background()
	patient := uuid.New()
	exID := f.exercise(t, KindMultipleChoice)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers []int
	)
	for n := 0; n < 3; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := f.repo.RecordAttempt(ctx, &Attempt{
				ExerciseID: exID, PatientID: patient, Kind: KindMultipleChoice,
				StartedAt: now, EndedAt: now, Score: ComputeScore(nil, 0),
			})
			if err != nil {
				t.Errorf("RecordAttempt: %v", err)
				return
			}
			mu.Lock()
			numbers = append(numbers, s.AttemptNumber)
			mu.Unlock()
		}()
	}
	wg.Wait()

	sort.Ints(numbers)
	for i, n := range numbers {
		if n != i+1 {
			t.Fatalf("attempt numbers = %v", numbers)
		}
	}
}

func TestPGSessionFactsWithoutSession(t *testing.T) {
	f := setupPG(t)
	if _, err := f.repo.SessionFacts(context.Background(), uuid.New()); !errors.Is(err, common.ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}
}
