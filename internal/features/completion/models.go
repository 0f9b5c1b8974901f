// Package completion записывает завершённые попытки упражнений:
// сессию, ответы по вопросам и итоговый результат, затем запускает начисление.
// models.go описывает упражнения, сессии и входные данные попытки.
package completion

import (
	"time"

	"github.com/google/uuid"
)

// Kind — тип упражнения.
type Kind string

// Поддерживаемые типы упражнений
const (
	KindMultipleChoice       Kind = "multiple_choice"
	KindReadingComprehension Kind = "reading_comprehension"
	KindTimedReading         Kind = "timed_reading"
	KindLetterGap            Kind = "letter_gap"
)

// Valid сообщает, что тип известен.
func (k Kind) Valid() bool {
	switch k {
	case KindMultipleChoice, KindReadingComprehension, KindTimedReading, KindLetterGap:
		return true
	}
	return false
}

// HasReading — есть ли у упражнения этап чтения текста.
func (k Kind) HasReading() bool {
	return k == KindReadingComprehension || k == KindTimedReading
}

// HasQuestions сообщает, что попытка без ответов не засчитывается.
// Задания на чтение на скорость и пропуски букв могут обходиться без вопросов.
func (k Kind) HasQuestions() bool {
	return k == KindMultipleChoice || k == KindReadingComprehension
}

// Exercise — упражнение из каталога.
type Exercise struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Title     string    `db:"title" json:"title"`
	Kind      Kind      `db:"exercise_type" json:"kind"`
	IsActive  bool      `db:"is_active" json:"isActive"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// AssignmentStatus — статус назначения.
type AssignmentStatus string

const (
	StatusAssigned   AssignmentStatus = "assigned"
	StatusInProgress AssignmentStatus = "in_progress"
	StatusCompleted  AssignmentStatus = "completed"
)

// Assignment — связь пациента и упражнения.
// Самостоятельно выбранное упражнение получает неявное назначение сразу в статусе completed.
type Assignment struct {
	ID             uuid.UUID        `db:"id" json:"id"`
	ExerciseID     uuid.UUID        `db:"exercise_id" json:"exerciseId"`
	PatientID      uuid.UUID        `db:"patient_id" json:"patientId"`
	Status         AssignmentStatus `db:"status" json:"status"`
	IsSelfAssigned bool             `db:"is_self_assigned" json:"isSelfAssigned"`
	AssignedAt     time.Time        `db:"assigned_at" json:"assignedAt"`
	CompletedAt    *time.Time       `db:"completed_at" json:"completedAt,omitempty"`
}

// Session — одна попытка пациента. После записи не меняется.
type Session struct {
	ID              uuid.UUID      `db:"id" json:"id"`
	ExerciseID      uuid.UUID      `db:"exercise_id" json:"exerciseId"`
	PatientID       uuid.UUID      `db:"patient_id" json:"patientId"`
	AssignmentID    uuid.UUID      `db:"assignment_id" json:"assignmentId"`
	Kind            Kind           `db:"exercise_kind" json:"kind"`
	IsAssigned      bool           `db:"is_assigned" json:"isAssigned"`
	AttemptNumber   int            `db:"attempt_number" json:"attemptNumber"` // С единицы, по паре упражнение+пациент
	StartedAt       time.Time      `db:"started_at" json:"startedAt"`
	EndedAt         time.Time      `db:"ended_at" json:"endedAt"`
	DurationSeconds int            `db:"duration_seconds" json:"durationSeconds"`
	IsCompleted     bool           `db:"is_completed" json:"isCompleted"`
	Details         map[string]any `db:"details" json:"details,omitempty"`
}

// Score — итог сессии. Correct + Incorrect всегда равно Total.
type Score struct {
	TotalQuestions   int `db:"total_questions" json:"totalQuestions"`
	CorrectAnswers   int `db:"correct_answers" json:"correctAnswers"`
	IncorrectAnswers int `db:"incorrect_answers" json:"incorrectAnswers"`
	ScorePercentage  int `db:"score_percentage" json:"scorePercentage"`
	TotalTimeSeconds int `db:"total_time_seconds" json:"totalTimeSeconds"`
}

// Result — ответ на один вопрос.
// IsCorrect обязан совпадать с AnswerCorrect(SelectedAnswer, CorrectAnswer).
type Result struct {
	QuestionID       string `db:"question_id" json:"questionId"`
	SelectedAnswer   string `db:"selected_answer" json:"selectedAnswer"`
	CorrectAnswer    string `db:"correct_answer" json:"correctAnswer"`
	IsCorrect        bool   `db:"is_correct" json:"isCorrect"`
	TimeSpentSeconds int    `db:"time_spent_seconds" json:"timeSpentSeconds"`
}

// Attempt — всё, что пишется в БД одной транзакцией.
type Attempt struct {
	ExerciseID      uuid.UUID
	PatientID       uuid.UUID
	Kind            Kind
	StartedAt       time.Time
	EndedAt         time.Time
	DurationSeconds int
	Details         map[string]any
	Results         []Result
	Score           Score
}

// Outcome — ответ на запись попытки.
type Outcome struct {
	SessionID      uuid.UUID `json:"sessionId"`
	AttemptNumber  int       `json:"attemptNumber"`
	IsAssigned     bool      `json:"isAssigned"`
	Score          Score     `json:"score"`
	GemsAwarded    int64     `json:"gemsAwarded"`
	AlreadyAwarded bool      `json:"alreadyAwarded,omitempty"`
	RewardPending  bool      `json:"rewardPending,omitempty"` // Начисление не удалось, можно повторить
}
