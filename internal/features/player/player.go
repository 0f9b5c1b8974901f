// Package player — конечный автомат прохождения упражнения.
// Фазы: intro → [reading] → questions → results. Чтение есть только у
// reading_comprehension и timed_reading. В results автомат попадает один раз
// и только там отдаёт completion.Input. Отмена ничего не отдаёт.
package player

import (
	"errors"
	"fmt"
	"time"

	"serotonyl.ru/reading-rewards/internal/common"
	"serotonyl.ru/reading-rewards/internal/features/completion"
)

// Phase — фаза прохождения.
type Phase string

const (
	PhaseIntro     Phase = "intro"
	PhaseReading   Phase = "reading"
	PhaseQuestions Phase = "questions"
	PhaseResults   Phase = "results"
	PhaseCancelled Phase = "cancelled"
)

// Ошибки автомата
var (
	ErrInvalidTransition = errors.New("недопустимый переход")
	ErrUnknownQuestion   = errors.New("нет такого вопроса")
	ErrAlreadyAnswered   = errors.New("на вопрос уже ответили")
)

// Question — вопрос упражнения с правильным ответом.
type Question struct {
	ID            string
	CorrectAnswer string
}

// Exercise — то, что плееру нужно знать об упражнении.
type Exercise struct {
	Kind      completion.Kind
	Questions []Question
	Text      string // Текст для чтения или с пропусками
	WordCount int    // Для timed_reading; при 0 считается по Text
	GapCount  int    // Для letter_gap; при 0 считается по Text
}

// Player ведёт одну попытку. Не потокобезопасен, у попытки один владелец.
type Player struct {
	ex    Exercise
	clock common.DateProvider
	phase Phase

	startedAt   time.Time
	readingFrom time.Time
	readingSecs int
	lastMark    time.Time
	answers     []completion.Result
	answered    map[string]struct{}
	correctByID map[string]string
}

// New создаёт плеер в фазе intro.
func New(ex Exercise, clock common.DateProvider) (*Player, error) {
	if !ex.Kind.Valid() {
		return nil, fmt.Errorf("%w: неизвестный тип упражнения %q", common.ErrValidation, ex.Kind)
	}
	if ex.Kind.HasQuestions() && len(ex.Questions) == 0 {
		return nil, fmt.Errorf("%w: у упражнения %s нет вопросов", common.ErrValidation, ex.Kind)
	}
	correct := make(map[string]string, len(ex.Questions))
	for _, q := range ex.Questions {
		if q.ID == "" {
			return nil, fmt.Errorf("%w: вопрос без id", common.ErrValidation)
		}
		if _, dup := correct[q.ID]; dup {
			return nil, fmt.Errorf("%w: вопрос %s повторяется", common.ErrValidation, q.ID)
		}
		correct[q.ID] = q.CorrectAnswer
	}
	if ex.WordCount == 0 {
		ex.WordCount = CountWords(ex.Text)
	}
	if ex.GapCount == 0 {
		ex.GapCount = CountGaps(ex.Text)
	}
	return &Player{
		ex:          ex,
		clock:       clock,
		phase:       PhaseIntro,
		answered:    make(map[string]struct{}),
		correctByID: correct,
	}, nil
}

// Phase возвращает текущую фазу.
func (p *Player) Phase() Phase {
	return p.phase
}

// Start: intro → reading (если есть чтение) или questions.
func (p *Player) Start() error {
	if p.phase != PhaseIntro {
		return p.invalid("start")
	}
	now := p.clock.Now()
	p.startedAt = now
	if p.ex.Kind.HasReading() {
		p.phase = PhaseReading
		p.readingFrom = now
		return nil
	}
	p.phase = PhaseQuestions
	p.lastMark = now
	return nil
}

// FinishReading: reading → questions.
func (p *Player) FinishReading() error {
	if p.phase != PhaseReading {
		return p.invalid("finish-reading")
	}
	now := p.clock.Now()
	p.readingSecs = seconds(now.Sub(p.readingFrom))
	p.phase = PhaseQuestions
	p.lastMark = now
	return nil
}

// Answer записывает ответ на вопрос. Время ответа считается от предыдущей отметки.
func (p *Player) Answer(questionID, selected string) error {
	if p.phase != PhaseQuestions {
		return p.invalid("answer")
	}
	correct, ok := p.correctByID[questionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownQuestion, questionID)
	}
	if _, done := p.answered[questionID]; done {
		return fmt.Errorf("%w: %s", ErrAlreadyAnswered, questionID)
	}

	now := p.clock.Now()
	p.answers = append(p.answers, completion.Result{
		QuestionID:       questionID,
		SelectedAnswer:   selected,
		CorrectAnswer:    correct,
		IsCorrect:        completion.AnswerCorrect(selected, correct),
		TimeSpentSeconds: seconds(now.Sub(p.lastMark)),
	})
	p.answered[questionID] = struct{}{}
	p.lastMark = now
	return nil
}

// Remaining — сколько вопросов ещё без ответа.
func (p *Player) Remaining() int {
	return len(p.ex.Questions) - len(p.answers)
}

// Finish: questions → results. Возвращает попытку для записи.
// Неотвеченные вопросы попадают в итог как неверные.
func (p *Player) Finish() (completion.Input, error) {
	if p.phase != PhaseQuestions {
		return completion.Input{}, p.invalid("finish")
	}
	for _, q := range p.ex.Questions {
		if _, ok := p.answered[q.ID]; !ok {
			p.answers = append(p.answers, completion.Result{QuestionID: q.ID, CorrectAnswer: q.CorrectAnswer})
		}
	}
	p.phase = PhaseResults

	return completion.Input{
		Payload:         p.payload(),
		Answers:         p.answers,
		DurationSeconds: seconds(p.clock.Now().Sub(p.startedAt)),
		StartedAt:       p.startedAt,
	}, nil
}

// Cancel прерывает попытку до results. Ничего не записывается.
func (p *Player) Cancel() error {
	if p.phase == PhaseResults || p.phase == PhaseCancelled {
		return p.invalid("cancel")
	}
	p.phase = PhaseCancelled
	p.answers = nil
	return nil
}

func (p *Player) payload() completion.Payload {
	switch p.ex.Kind {
	case completion.KindReadingComprehension:
		return completion.ReadingComprehension{ReadingSeconds: p.readingSecs}
	case completion.KindTimedReading:
		return completion.TimedReading{ReadingSeconds: p.readingSecs, WordCount: p.ex.WordCount}
	case completion.KindLetterGap:
		return completion.LetterGap{GapCount: p.ex.GapCount}
	default:
		return completion.MultipleChoice{}
	}
}

func (p *Player) invalid(action string) error {
	return fmt.Errorf("%w: %s в фазе %s", ErrInvalidTransition, action, p.phase)
}

func seconds(d time.Duration) int {
	if d < 0 {
		return 0
	}
	return int(d / time.Second)
}
