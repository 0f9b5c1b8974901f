package player

import (
	"errors"
	"testing"
	"time"

	"serotonyl.ru/reading-rewards/internal/common"
	"serotonyl.ru/reading-rewards/internal/features/completion"
)

type stepClock struct {
	t time.Time
}

func (c *stepClock) Now() time.Time         { return c.t }
func (c *stepClock) Today() time.Time       { return common.TruncateDay(c.t) }
func (c *stepClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *stepClock {
	return &stepClock{t: time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC)}
}

var questions = []Question{{ID: "q1", CorrectAnswer: "кот"}, {ID: "q2", CorrectAnswer: "дом"}}

func TestReadingFlow(t *testing.T) {
	clock := newClock()
	p, err := New(Exercise{Kind: completion.KindReadingComprehension, Questions: questions}, clock)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := p.Start(); err != nil || p.Phase() != PhaseReading {
		t.Fatalf("Start = %v, phase %s", err, p.Phase())
	}
	clock.advance(45 * time.Second)
	if err := p.FinishReading(); err != nil || p.Phase() != PhaseQuestions {
		t.Fatalf("FinishReading = %v, phase %s", err, p.Phase())
	}
	clock.advance(10 * time.Second)
	if err := p.Answer("q1", "кот"); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	clock.advance(5 * time.Second)
	if err := p.Answer("q2", "дым"); err != nil {
		t.Fatalf("Answer: %v", err)
	}

	in, err := p.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if p.Phase() != PhaseResults {
		t.Fatalf("phase = %s", p.Phase())
	}
	if in.DurationSeconds != 60 || len(in.Answers) != 2 {
		t.Fatalf("input = %+v", in)
	}
	if !in.Answers[0].IsCorrect || in.Answers[1].IsCorrect || in.Answers[0].TimeSpentSeconds != 10 || in.Answers[1].TimeSpentSeconds != 5 {
		t.Fatalf("answers = %+v", in.Answers)
	}
	rc, ok := in.Payload.(completion.ReadingComprehension)
	if !ok || rc.ReadingSeconds != 45 {
		t.Fatalf("payload = %#v", in.Payload)
	}
	if err := in.Validate(); err != nil {
		t.Fatalf("player produced invalid input: %v", err)
	}
	if score := completion.ComputeScore(in.Answers, in.DurationSeconds); score.ScorePercentage != 50 {
		t.Fatalf("score = %+v", score)
	}
}

func TestResultsOnlyOnce(t *testing.T) {
	p, _ := New(Exercise{Kind: completion.KindMultipleChoice, Questions: questions}, newClock())
	if err := p.Start(); err != nil || p.Phase() != PhaseQuestions {
		t.Fatalf("Start = %v, phase %s", err, p.Phase())
	}
	if _, err := p.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if _, err := p.Finish(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("second Finish err = %v", err)
	}
	if err := p.Cancel(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Cancel after results err = %v", err)
	}
}

func TestUnansweredCountAsIncorrect(t *testing.T) {
	p, _ := New(Exercise{Kind: completion.KindLetterGap, Questions: questions, GapCount: 2}, newClock())
	_ = p.Start()
	_ = p.Answer("q1", "кот")
	if p.Remaining() != 1 {
		t.Fatalf("remaining = %d", p.Remaining())
	}

	in, err := p.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if len(in.Answers) != 2 || in.Answers[1].IsCorrect || in.Answers[1].QuestionID != "q2" {
		t.Fatalf("answers = %+v", in.Answers)
	}
	if lg, ok := in.Payload.(completion.LetterGap); !ok || lg.GapCount != 2 {
		t.Fatalf("payload = %#v", in.Payload)
	}
}

func TestInvalidTransitions(t *testing.T) {
	p, _ := New(Exercise{Kind: completion.KindTimedReading, Questions: questions, WordCount: 120}, newClock())

	if err := p.Answer("q1", "кот"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("answer in intro err = %v", err)
	}
	if err := p.FinishReading(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("finish reading in intro err = %v", err)
	}
	_ = p.Start()
	if _, err := p.Finish(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("finish during reading err = %v", err)
	}
	if err := p.Start(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("double start err = %v", err)
	}
	_ = p.FinishReading()
	if err := p.Answer("q9", "x"); !errors.Is(err, ErrUnknownQuestion) {
		t.Fatalf("unknown question err = %v", err)
	}
	_ = p.Answer("q1", "кот")
	if err := p.Answer("q1", "кот"); !errors.Is(err, ErrAlreadyAnswered) {
		t.Fatalf("repeat answer err = %v", err)
	}
}

func TestCancelYieldsNothing(t *testing.T) {
	p, _ := New(Exercise{Kind: completion.KindMultipleChoice, Questions: questions}, newClock())
	_ = p.Start()
	_ = p.Answer("q1", "кот")

	if err := p.Cancel(); err != nil || p.Phase() != PhaseCancelled {
		t.Fatalf("Cancel = %v, phase %s", err, p.Phase())
	}
	if _, err := p.Finish(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Finish after cancel err = %v", err)
	}
}

func TestNewValidates(t *testing.T) {
	if _, err := New(Exercise{Kind: "quiz"}, newClock()); !errors.Is(err, common.ErrValidation) {
		t.Fatalf("unknown kind err = %v", err)
	}
	if _, err := New(Exercise{Kind: completion.KindMultipleChoice}, newClock()); !errors.Is(err, common.ErrValidation) {
		t.Fatalf("no questions err = %v", err)
	}
	dup := []Question{{ID: "a"}, {ID: "a"}}
	if _, err := New(Exercise{Kind: completion.KindMultipleChoice, Questions: dup}, newClock()); !errors.Is(err, common.ErrValidation) {
		t.Fatalf("duplicate question err = %v", err)
	}
}

func TestCountWordsAndGaps(t *testing.T) {
	if n := CountWords("  кот сидел\tна окне "); n != 4 {
		t.Fatalf("CountWords = %d", n)
	}
	if n := CountGaps("к_т и д__, _"); n != 3 {
		t.Fatalf("CountGaps = %d", n)
	}
	if n := CountGaps("без пропусков"); n != 0 {
		t.Fatalf("CountGaps = %d", n)
	}
}

func TestCountsFromText(t *testing.T) {
	clock := newClock()
	p, err := New(Exercise{Kind: completion.KindTimedReading, Text: "Мама мыла раму утром"}, clock)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_ = p.Start()
	clock.advance(30 * time.Second)
	_ = p.FinishReading()
	in, err := p.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	tr, ok := in.Payload.(completion.TimedReading)
	if !ok || tr.WordCount != 4 || tr.WordsPerMinute() != 8 {
		t.Fatalf("payload = %#v", in.Payload)
	}
}
