package completion

import (
	"fmt"
	"strings"
	"time"

	"serotonyl.ru/reading-rewards/internal/common"
)

// Payload — часть попытки, которая зависит от типа упражнения.
// Движок наград её не читает, она сохраняется в sessions.details.
type Payload interface {
	Kind() Kind
	Details() map[string]any
}

// MultipleChoice — вопросы с вариантами ответа.
type MultipleChoice struct{}

func (MultipleChoice) Kind() Kind              { return KindMultipleChoice }
func (MultipleChoice) Details() map[string]any { return map[string]any{} }

// ReadingComprehension — текст и вопросы по нему.
type ReadingComprehension struct {
	ReadingSeconds int
}

func (ReadingComprehension) Kind() Kind { return KindReadingComprehension }
func (p ReadingComprehension) Details() map[string]any {
	return map[string]any{"reading_seconds": p.ReadingSeconds}
}

// TimedReading — чтение на скорость.
type TimedReading struct {
	ReadingSeconds int
	WordCount      int
}

func (TimedReading) Kind() Kind { return KindTimedReading }
func (p TimedReading) Details() map[string]any {
	return map[string]any{
		"reading_seconds":  p.ReadingSeconds,
		"word_count":       p.WordCount,
		"words_per_minute": p.WordsPerMinute(),
	}
}

// WordsPerMinute — скорость чтения, 0 если время не засечено.
func (p TimedReading) WordsPerMinute() int {
	if p.ReadingSeconds <= 0 {
		return 0
	}
	return p.WordCount * 60 / p.ReadingSeconds
}

// LetterGap — вставка пропущенных букв.
type LetterGap struct {
	GapCount int
}

func (LetterGap) Kind() Kind { return KindLetterGap }
func (p LetterGap) Details() map[string]any {
	return map[string]any{"gap_count": p.GapCount}
}

// Input — завершённая попытка от плеера.
type Input struct {
	Payload         Payload
	Answers         []Result
	DurationSeconds int
	StartedAt       time.Time
}

// Validate проверяет попытку до любой записи.
func (in Input) Validate() error {
	if in.Payload == nil || !in.Payload.Kind().Valid() {
		return fmt.Errorf("%w: неизвестный тип упражнения", common.ErrValidation)
	}
	if in.DurationSeconds < 0 {
		return fmt.Errorf("%w: длительность не может быть отрицательной", common.ErrValidation)
	}
	if in.Payload.Kind().HasQuestions() && len(in.Answers) == 0 {
		return fmt.Errorf("%w: нет ответов на вопросы", common.ErrValidation)
	}
	seen := make(map[string]struct{}, len(in.Answers))
	for i, a := range in.Answers {
		if strings.TrimSpace(a.QuestionID) == "" {
			return fmt.Errorf("%w: ответ %d без id вопроса", common.ErrValidation, i+1)
		}
		if a.TimeSpentSeconds < 0 {
			return fmt.Errorf("%w: отрицательное время ответа %s", common.ErrValidation, a.QuestionID)
		}
		if a.IsCorrect != AnswerCorrect(a.SelectedAnswer, a.CorrectAnswer) {
			return fmt.Errorf("%w: isCorrect не совпадает с ответом на вопрос %s", common.ErrValidation, a.QuestionID)
		}
		if _, dup := seen[a.QuestionID]; dup {
			return fmt.Errorf("%w: повторный ответ на вопрос %s", common.ErrValidation, a.QuestionID)
		}
		seen[a.QuestionID] = struct{}{}
	}
	switch p := in.Payload.(type) {
	case ReadingComprehension:
		if p.ReadingSeconds < 0 {
			return fmt.Errorf("%w: отрицательное время чтения", common.ErrValidation)
		}
	case TimedReading:
		if p.ReadingSeconds < 0 || p.WordCount < 0 {
			return fmt.Errorf("%w: некорректные данные чтения на скорость", common.ErrValidation)
		}
	case LetterGap:
		if p.GapCount < 0 {
			return fmt.Errorf("%w: отрицательное число пропусков", common.ErrValidation)
		}
	}
	return nil
}

// Request — попытка в JSON-виде, как её присылает клиент.
type Request struct {
	Kind            Kind      `json:"kind"`
	Answers         []Result  `json:"answers"`
	DurationSeconds int       `json:"durationSeconds"`
	StartedAt       time.Time `json:"startedAt"`
	ReadingSeconds  int       `json:"readingSeconds,omitempty"`
	WordCount       int       `json:"wordCount,omitempty"`
	GapCount        int       `json:"gapCount,omitempty"`
}

// Input собирает типизированную попытку по полю kind.
func (r Request) Input() (Input, error) {
	var p Payload
	switch r.Kind {
	case KindMultipleChoice:
		p = MultipleChoice{}
	case KindReadingComprehension:
		p = ReadingComprehension{ReadingSeconds: r.ReadingSeconds}
	case KindTimedReading:
		p = TimedReading{ReadingSeconds: r.ReadingSeconds, WordCount: r.WordCount}
	case KindLetterGap:
		p = LetterGap{GapCount: r.GapCount}
	default:
		return Input{}, fmt.Errorf("%w: неизвестный тип упражнения %q", common.ErrValidation, r.Kind)
	}
	return Input{
		Payload:         p,
		Answers:         r.Answers,
		DurationSeconds: r.DurationSeconds,
		StartedAt:       r.StartedAt,
	}, nil
}

// AnswerCorrect сравнивает выбранный ответ с правильным. Пустой выбор неверен.
func AnswerCorrect(selected, correct string) bool {
	return selected != "" && selected == correct
}

// ComputeScore считает итог по ответам.
// Процент округляется половиной вверх, без вопросов он равен 100.
//
// Пример: 2 из 3 → 67
func ComputeScore(answers []Result, totalSeconds int) Score {
	s := Score{TotalQuestions: len(answers), TotalTimeSeconds: totalSeconds}
	for _, a := range answers {
		if a.IsCorrect {
			s.CorrectAnswers++
		}
	}
	s.IncorrectAnswers = s.TotalQuestions - s.CorrectAnswers
	s.ScorePercentage = Percentage(s.CorrectAnswers, s.TotalQuestions)
	return s
}

// Percentage — round(correct/total*100) половиной вверх в целых числах.
func Percentage(correct, total int) int {
	if total == 0 {
		return 100
	}
	return (correct*200 + total) / (2 * total)
}
