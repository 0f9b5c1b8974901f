package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"serotonyl.ru/reading-rewards/internal/auth"
	"serotonyl.ru/reading-rewards/internal/common"
	"serotonyl.ru/reading-rewards/internal/features/completion"
	"serotonyl.ru/reading-rewards/internal/features/ledger"
	"serotonyl.ru/reading-rewards/internal/features/staff"
)

const (
	defaultTransactionsLimit = 20
	maxTransactionsLimit     = 100
)

type balanceView struct {
	TotalGems        int64      `json:"totalGems"`
	GemsSpent        int64      `json:"gemsSpent"`
	CurrentStreak    int        `json:"currentStreak"`
	BestStreak       int        `json:"bestStreak"`
	LastActivityDate *time.Time `json:"lastActivityDate,omitempty"`
}

type transactionView struct {
	ID          uuid.UUID  `json:"id"`
	Amount      int64      `json:"amount"`
	Type        string     `json:"type"`
	Source      string     `json:"source"`
	SessionID   *uuid.UUID `json:"sessionId,omitempty"`
	Description string     `json:"description"`
	CreatedAt   time.Time  `json:"createdAt"`
}

type mismatchView struct {
	PatientID uuid.UUID `json:"patientId"`
	Stored    int64     `json:"stored"`
	Expected  int64     `json:"expected"`
}

func newBalanceView(b *ledger.Balance) balanceView {
	return balanceView{
		TotalGems:        b.TotalGems,
		GemsSpent:        b.GemsSpent,
		CurrentStreak:    b.CurrentStreak,
		BestStreak:       b.BestStreak,
		LastActivityDate: b.LastActivityDate,
	}
}

func newTransactionViews(txs []*ledger.Transaction) []transactionView {
	out := make([]transactionView, 0, len(txs))
	for _, t := range txs {
		out = append(out, transactionView{
			ID:          t.ID,
			Amount:      t.Amount,
			Type:        string(t.Type),
			Source:      string(t.Source),
			SessionID:   t.SessionID,
			Description: ledger.Describe(t),
			CreatedAt:   t.CreatedAt,
		})
	}
	return out
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.DB.Ping(ctx); err != nil {
		writeError(w, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "база данных недоступна")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleComplete(w http.ResponseWriter, r *http.Request) {
	exerciseID, ok := urlUUID(w, r)
	if !ok {
		return
	}
	var req completion.Request
	if !decodeJSON(w, r, &req) {
		return
	}
	in, err := req.Input()
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out, err := a.Completions.RecordCompletion(r.Context(), currentUser(r), exerciseID, in)
	if err != nil {
		// Попытка записана, начисление повторяется через /sessions/{id}/award
		if errors.Is(err, common.ErrRewardFailed) && out != nil {
			writeJSON(w, http.StatusOK, out)
			return
		}
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleAward(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := urlUUID(w, r)
	if !ok {
		return
	}
	res, err := a.Rewards.AwardExerciseGems(r.Context(), sessionID, currentUser(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleMyGems(w http.ResponseWriter, r *http.Request) {
	bal, err := a.Ledger.GetBalance(r.Context(), currentUser(r))
	if errors.Is(err, common.ErrPatientNotFound) {
		bal = &ledger.Balance{}
	} else if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newBalanceView(bal))
}

func (a *API) handleMyTransactions(w http.ResponseWriter, r *http.Request) {
	limit := defaultTransactionsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "limit должен быть положительным числом")
			return
		}
		limit = min(n, maxTransactionsLimit)
	}
	txs, err := a.Ledger.ListTransactions(r.Context(), currentUser(r), limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTransactionViews(txs))
}

func (a *API) handleStaffLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Password == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "нужен пароль")
		return
	}
	token, err := a.Staff.Login(r.Context(), clientIP(r), req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"accessToken": token})
}

func (a *API) handleRegisterExercise(w http.ResponseWriter, r *http.Request) {
	var req staff.ExerciseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	e, err := a.Staff.RegisterExercise(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (a *API) handleCreateAssignment(w http.ResponseWriter, r *http.Request) {
	var req staff.AssignmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	as, err := a.Staff.Assign(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, as)
}

func (a *API) handlePatientLedger(w http.ResponseWriter, r *http.Request) {
	patientID, ok := urlUUID(w, r)
	if !ok {
		return
	}
	view, err := a.Staff.PatientLedger(r.Context(), patientID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	sessions := view.Sessions
	if sessions == nil {
		sessions = []*completion.Session{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"patientId":    patientID,
		"balance":      newBalanceView(view.Balance),
		"transactions": newTransactionViews(view.Transactions),
		"sessions":     sessions,
	})
}

func (a *API) handleReconcile(w http.ResponseWriter, r *http.Request) {
	list, err := a.Staff.Reconcile(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := make([]mismatchView, 0, len(list))
	for _, m := range list {
		out = append(out, mismatchView{PatientID: m.UserID, Stored: m.Stored, Expected: m.Expected})
	}
	writeJSON(w, http.StatusOK, map[string]any{"mismatches": out, "count": len(out)})
}

// urlUUID разбирает {id} из пути. При ошибке ответ уже записан.
func urlUUID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "некорректный id")
		return uuid.Nil, false
	}
	return id, true
}

// currentUser — пациент из токена. Маршрут уже прошёл authMiddleware.
func currentUser(r *http.Request) uuid.UUID {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return uuid.Nil
	}
	return id.UserID
}
