// Package api — HTTP-интерфейс сервиса наград (chi).
// Пациент записывает попытки и смотрит кристаллы, специалист ведёт каталог,
// назначения и сверку балансов.
package api

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"serotonyl.ru/reading-rewards/internal/api/middleware"
	"serotonyl.ru/reading-rewards/internal/auth"
	"serotonyl.ru/reading-rewards/internal/features/completion"
	"serotonyl.ru/reading-rewards/internal/features/ledger"
	"serotonyl.ru/reading-rewards/internal/features/reward"
	"serotonyl.ru/reading-rewards/internal/features/staff"
)

// CompletionRecorder записывает завершённые попытки.
type CompletionRecorder interface {
	RecordCompletion(ctx context.Context, patientID, exerciseID uuid.UUID, in completion.Input) (*completion.Outcome, error)
}

// Awarder повторяет начисление за сессию.
type Awarder interface {
	AwardExerciseGems(ctx context.Context, sessionID, patientID uuid.UUID) (*reward.Result, error)
}

// LedgerReader отдаёт баланс и журнал пациента.
type LedgerReader interface {
	GetBalance(ctx context.Context, userID uuid.UUID) (*ledger.Balance, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]*ledger.Transaction, error)
}

// StaffDesk — операции кабинета специалиста.
type StaffDesk interface {
	Login(ctx context.Context, clientIP, password string) (string, error)
	RegisterExercise(ctx context.Context, req staff.ExerciseRequest) (*completion.Exercise, error)
	Assign(ctx context.Context, req staff.AssignmentRequest) (*completion.Assignment, error)
	PatientLedger(ctx context.Context, patientID uuid.UUID) (*staff.PatientLedger, error)
	Reconcile(ctx context.Context) ([]ledger.Mismatch, error)
}

// Pinger проверяет доступность БД.
type Pinger interface {
	Ping(ctx context.Context) error
}

// API собирает обработчики.
type API struct {
	Completions CompletionRecorder
	Rewards     Awarder
	Ledger      LedgerReader
	Staff       StaffDesk
	Auth        *auth.Manager
	DB          Pinger
	Limiter     *middleware.RateLimiter
	// TrustProxy включает chimw.RealIP. Без него адрес клиента берётся из сокета.
	TrustProxy bool
}

// Router возвращает корневой обработчик.
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	if a.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.RequestLogger)
	r.Use(middleware.Recoverer(handlePanic))
	r.Use(chimw.Timeout(30 * time.Second))

	r.Get("/health", a.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(a.authMiddleware)
			r.Use(requireRole(auth.RolePatient))
			r.Use(a.Limiter.Limit(patientKey, handleRateLimited))
			r.Post("/exercises/{id}/complete", a.handleComplete)
			r.Post("/sessions/{id}/award", a.handleAward)
			r.Get("/me/gems", a.handleMyGems)
			r.Get("/me/transactions", a.handleMyTransactions)
		})

		r.Route("/staff", func(r chi.Router) {
			r.With(a.Limiter.Limit(clientIP, handleRateLimited)).Post("/login", a.handleStaffLogin)

			r.Group(func(r chi.Router) {
				r.Use(a.authMiddleware)
				r.Use(requireRole(auth.RoleStaff))
				r.Post("/exercises", a.handleRegisterExercise)
				r.Post("/assignments", a.handleCreateAssignment)
				r.Get("/patients/{id}/ledger", a.handlePatientLedger)
				r.Post("/reconcile", a.handleReconcile)
			})
		})
	})

	return r
}

// clientIP — адрес клиента без порта. Заголовки прокси учитываются только при TrustProxy.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func patientKey(r *http.Request) string {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return ""
	}
	return id.UserID.String()
}
