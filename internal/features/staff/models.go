// Package staff реализует кабинет специалиста: вход по паролю,
// каталог упражнений, назначения пациентам, просмотр журнала и сверку балансов.
// models.go описывает попытки входа и представления для кабинета.
package staff

import (
	"time"

	"github.com/google/uuid"

	"serotonyl.ru/reading-rewards/internal/features/completion"
	"serotonyl.ru/reading-rewards/internal/features/ledger"
)

// StaffID — личность в токене специалиста. Учётная запись одна на кабинет.
var StaffID = uuid.NewSHA1(uuid.NameSpaceURL, []byte("reading-rewards/staff"))

// LoginAttempt — попытка входа (для защиты от перебора).
type LoginAttempt struct {
	ID          int64     `db:"id"`
	ClientIP    string    `db:"client_ip"`
	AttemptTime time.Time `db:"attempt_time"`
	Success     bool      `db:"success"`
}

// ExerciseRequest — регистрация упражнения в каталоге.
type ExerciseRequest struct {
	ID       uuid.UUID       `json:"id"` // Пустой — сгенерировать
	Title    string          `json:"title"`
	Kind     completion.Kind `json:"kind"`
	Inactive bool            `json:"inactive,omitempty"`
}

// AssignmentRequest — назначение упражнения пациенту.
type AssignmentRequest struct {
	ExerciseID uuid.UUID `json:"exerciseId"`
	PatientID  uuid.UUID `json:"patientId"`
}

// PatientLedger — всё, что специалист видит о наградах пациента.
type PatientLedger struct {
	Balance      *ledger.Balance
	Transactions []*ledger.Transaction
	Sessions     []*completion.Session
}
