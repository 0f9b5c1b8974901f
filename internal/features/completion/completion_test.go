package completion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"serotonyl.ru/reading-rewards/internal/common"
	"serotonyl.ru/reading-rewards/internal/features/reward"
)

var now = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

type fakeStore struct {
	exercises map[uuid.UUID]*Exercise
	attempts  []*Attempt
	recordErr error
	attempt   int
}

func (f *fakeStore) GetExercise(_ context.Context, id uuid.UUID) (*Exercise, error) {
	e, ok := f.exercises[id]
	if !ok || !e.IsActive {
		return nil, common.ErrExerciseNotFound
	}
	return e, nil
}

func (f *fakeStore) RecordAttempt(_ context.Context, at *Attempt) (*Session, error) {
	if f.recordErr != nil {
		return nil, f.recordErr
	}
	f.attempts = append(f.attempts, at)
	f.attempt++
	return &Session{ID: uuid.New(), ExerciseID: at.ExerciseID, PatientID: at.PatientID, AttemptNumber: f.attempt}, nil
}

type fakeAwarder struct {
	calls []uuid.UUID
	res   *reward.Result
	err   error
}

func (f *fakeAwarder) AwardExerciseGems(_ context.Context, sessionID, _ uuid.UUID) (*reward.Result, error) {
	f.calls = append(f.calls, sessionID)
	return f.res, f.err
}

func newTestService(kind Kind, active bool) (*Service, *fakeStore, *fakeAwarder, uuid.UUID) {
	exID := uuid.New()
	store := &fakeStore{exercises: map[uuid.UUID]*Exercise{
		exID: {ID: exID, Title: "Рассказ", Kind: kind, IsActive: active},
	}}
	aw := &fakeAwarder{res: &reward.Result{TotalAwarded: 18}}
	return NewService(store, aw, common.FixedClock{At: now}), store, aw, exID
}

func answers(correct ...bool) []Result {
	out := make([]Result, len(correct))
	for i, c := range correct {
		out[i] = Result{QuestionID: uuid.NewString(), SelectedAnswer: "a", CorrectAnswer: "a", IsCorrect: c}
		if !c {
			out[i].SelectedAnswer = "b"
		}
	}
	return out
}

func TestPercentage(t *testing.T) {
	cases := []struct{ correct, total, want int }{
		{2, 3, 67},
		{1, 3, 33},
		{1, 2, 50},
		{1, 8, 13},
		{0, 5, 0},
		{5, 5, 100},
		{0, 0, 100},
	}
	for _, c := range cases {
		if got := Percentage(c.correct, c.total); got != c.want {
			t.Fatalf("Percentage(%d, %d) = %d, want %d", c.correct, c.total, got, c.want)
		}
	}
}

func TestComputeScore(t *testing.T) {
	s := ComputeScore(answers(true, false, true), 90)
	if s.TotalQuestions != 3 || s.CorrectAnswers != 2 || s.IncorrectAnswers != 1 || s.ScorePercentage != 67 {
		t.Fatalf("unexpected score: %+v", s)
	}
	if s.TotalTimeSeconds != 90 {
		t.Fatalf("time = %d", s.TotalTimeSeconds)
	}
	if empty := ComputeScore(nil, 10); empty.ScorePercentage != 100 || empty.TotalQuestions != 0 {
		t.Fatalf("no questions: %+v", empty)
	}
}

func TestRequestInput(t *testing.T) {
	in, err := Request{Kind: KindTimedReading, ReadingSeconds: 60, WordCount: 150, DurationSeconds: 80}.Input()
	if err != nil {
		t.Fatalf("Input: %v", err)
	}
	p, ok := in.Payload.(TimedReading)
	if !ok || p.WordsPerMinute() != 150 {
		t.Fatalf("payload = %#v", in.Payload)
	}
	if in.Payload.Details()["words_per_minute"] != 150 {
		t.Fatalf("details = %v", in.Payload.Details())
	}

	if _, err := (Request{Kind: "drawing"}).Input(); !errors.Is(err, common.ErrValidation) {
		t.Fatalf("unknown kind err = %v", err)
	}
}

func TestInputValidate(t *testing.T) {
	dup := answers(true, true)
	dup[1].QuestionID = dup[0].QuestionID

	cases := []struct {
		name string
		in   Input
	}{
		{"no payload", Input{}},
		{"negative duration", Input{Payload: MultipleChoice{}, DurationSeconds: -1}},
		{"empty question id", Input{Payload: MultipleChoice{}, Answers: []Result{{QuestionID: " "}}}},
		{"duplicate question", Input{Payload: MultipleChoice{}, Answers: dup}},
		{"negative reading", Input{Payload: ReadingComprehension{ReadingSeconds: -3}}},
		{"negative gaps", Input{Payload: LetterGap{GapCount: -1}}},
		{"multiple choice without answers", Input{Payload: MultipleChoice{}}},
		{"reading without answers", Input{Payload: ReadingComprehension{ReadingSeconds: 30}, Answers: []Result{}}},
		{"forged correct flag", Input{Payload: MultipleChoice{}, Answers: []Result{
			{QuestionID: "q1", SelectedAnswer: "wrong", CorrectAnswer: "right", IsCorrect: true},
			{QuestionID: "q2", SelectedAnswer: "wrong", CorrectAnswer: "right", IsCorrect: true},
		}}},
		{"hidden correct answer", Input{Payload: MultipleChoice{}, Answers: []Result{
			{QuestionID: "q1", SelectedAnswer: "right", CorrectAnswer: "right", IsCorrect: false},
		}}},
		{"empty selection marked correct", Input{Payload: MultipleChoice{}, Answers: []Result{
			{QuestionID: "q1", IsCorrect: true},
		}}},
	}
	for _, c := range cases {
		if err := c.in.Validate(); !errors.Is(err, common.ErrValidation) {
			t.Fatalf("%s: err = %v, want ErrValidation", c.name, err)
		}
	}
	if err := (Input{Payload: LetterGap{GapCount: 4}, Answers: answers(true)}).Validate(); err != nil {
		t.Fatalf("valid input rejected: %v", err)
	}
	for _, in := range []Input{{Payload: TimedReading{ReadingSeconds: 60, WordCount: 100}}, {Payload: LetterGap{GapCount: 3}}} {
		if err := in.Validate(); err != nil {
			t.Fatalf("%s without questions rejected: %v", in.Payload.Kind(), err)
		}
	}
}

func TestRecordCompletion(t *testing.T) {
	svc, store, aw, exID := newTestService(KindReadingComprehension, true)
	patient := uuid.New()

	out, err := svc.RecordCompletion(context.Background(), patient, exID, Input{
		Payload:         ReadingComprehension{ReadingSeconds: 40},
		Answers:         answers(true, true, true),
		DurationSeconds: 120,
	})
	if err != nil {
		t.Fatalf("RecordCompletion: %v", err)
	}
	if out.GemsAwarded != 18 || out.RewardPending || out.Score.ScorePercentage != 100 {
		t.Fatalf("outcome = %+v", out)
	}
	if len(aw.calls) != 1 || aw.calls[0] != out.SessionID {
		t.Fatalf("awarder calls = %v", aw.calls)
	}

	at := store.attempts[0]
	if !at.EndedAt.Equal(now) || !at.StartedAt.Equal(now.Add(-120*time.Second)) {
		t.Fatalf("attempt times: %v – %v", at.StartedAt, at.EndedAt)
	}
	if at.Details["reading_seconds"] != 40 || len(at.Results) != 3 {
		t.Fatalf("attempt = %+v", at)
	}
}

func TestRecordCompletionRejectsBeforeWrites(t *testing.T) {
	svc, store, aw, exID := newTestService(KindMultipleChoice, true)
	_, _, _, inactiveID := newTestService(KindMultipleChoice, false)
	patient := uuid.New()
	valid := Input{Payload: MultipleChoice{}, Answers: answers(true)}

	cases := []struct {
		name     string
		patient  uuid.UUID
		exercise uuid.UUID
		in       Input
		want     error
	}{
		{"anonymous", uuid.Nil, exID, valid, common.ErrUnauthorized},
		{"no exercise id", patient, uuid.Nil, valid, common.ErrValidation},
		{"bad input", patient, exID, Input{Payload: MultipleChoice{}, DurationSeconds: -5}, common.ErrValidation},
		{"missing exercise", patient, uuid.New(), valid, common.ErrExerciseNotFound},
		{"inactive exercise", patient, inactiveID, valid, common.ErrExerciseNotFound},
		{"kind mismatch", patient, exID, Input{Payload: LetterGap{}}, common.ErrValidation},
	}
	for _, c := range cases {
		if _, err := svc.RecordCompletion(context.Background(), c.patient, c.exercise, c.in); !errors.Is(err, c.want) {
			t.Fatalf("%s: err = %v, want %v", c.name, err, c.want)
		}
	}
	if len(store.attempts) != 0 || len(aw.calls) != 0 {
		t.Fatalf("writes after rejected calls: %d attempts, %d awards", len(store.attempts), len(aw.calls))
	}
}

func TestRecordCompletionRejectsForgedScore(t *testing.T) {
	svc, store, aw, exID := newTestService(KindMultipleChoice, true)
	forged := answers(false, false)
	for i := range forged {
		forged[i].IsCorrect = true
	}

	for name, in := range map[string]Input{
		"forged":     {Payload: MultipleChoice{}, Answers: forged},
		"no answers": {Payload: MultipleChoice{}},
	} {
		if _, err := svc.RecordCompletion(context.Background(), uuid.New(), exID, in); !errors.Is(err, common.ErrValidation) {
			t.Fatalf("%s: err = %v, want ErrValidation", name, err)
		}
	}
	if len(store.attempts) != 0 || len(aw.calls) != 0 {
		t.Fatalf("rejected attempt written: %d attempts, %d awards", len(store.attempts), len(aw.calls))
	}
}

func TestRecordCompletionPersistenceFailure(t *testing.T) {
	svc, store, aw, exID := newTestService(KindMultipleChoice, true)
	store.recordErr = errors.New("connection reset")

	out, err := svc.RecordCompletion(context.Background(), uuid.New(), exID, Input{Payload: MultipleChoice{}, Answers: answers(true)})
	if out != nil || !errors.Is(err, common.ErrPersistence) {
		t.Fatalf("out = %+v, err = %v", out, err)
	}
	if len(aw.calls) != 0 {
		t.Fatal("awarder called after failed write")
	}
}

func TestRecordCompletionRewardFailureKeepsAttempt(t *testing.T) {
	svc, store, aw, exID := newTestService(KindMultipleChoice, true)
	aw.res, aw.err = nil, common.ErrPersistence

	out, err := svc.RecordCompletion(context.Background(), uuid.New(), exID, Input{Payload: MultipleChoice{}, Answers: answers(false)})
	if !errors.Is(err, common.ErrRewardFailed) {
		t.Fatalf("err = %v, want ErrRewardFailed", err)
	}
	if out == nil || !out.RewardPending || out.GemsAwarded != 0 || out.SessionID == uuid.Nil {
		t.Fatalf("outcome = %+v", out)
	}
	if len(store.attempts) != 1 {
		t.Fatalf("attempt lost: %d", len(store.attempts))
	}
}

func TestRecordCompletionKeepsClientStart(t *testing.T) {
	svc, store, _, exID := newTestService(KindMultipleChoice, true)
	started := now.Add(-5 * time.Minute)

	if _, err := svc.RecordCompletion(context.Background(), uuid.New(), exID, Input{
		Payload: MultipleChoice{}, Answers: answers(true), DurationSeconds: 300, StartedAt: started,
	}); err != nil {
		t.Fatalf("RecordCompletion: %v", err)
	}
	if !store.attempts[0].StartedAt.Equal(started) {
		t.Fatalf("started = %v", store.attempts[0].StartedAt)
	}
}
