package api

import (
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/reading-rewards/internal/common"
)

const maxBodyBytes = 1 << 20

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error apiError `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: apiError{Code: code, Message: message}})
}

// errorStatus сопоставляет категорию ошибки с HTTP-статусом и кодом.
var errorStatus = []struct {
	err    error
	status int
	code   string
}{
	{common.ErrValidation, http.StatusBadRequest, "VALIDATION_ERROR"},
	{common.ErrSessionNotCompleted, http.StatusBadRequest, "SESSION_NOT_COMPLETED"},
	{common.ErrUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED"},
	{common.ErrWrongPassword, http.StatusUnauthorized, "WRONG_PASSWORD"},
	{common.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
	{common.ErrNotStaff, http.StatusForbidden, "FORBIDDEN"},
	{common.ErrExerciseNotFound, http.StatusNotFound, "EXERCISE_NOT_FOUND"},
	{common.ErrSessionNotFound, http.StatusNotFound, "SESSION_NOT_FOUND"},
	{common.ErrScoreNotFound, http.StatusNotFound, "SCORE_NOT_FOUND"},
	{common.ErrPatientNotFound, http.StatusNotFound, "PATIENT_NOT_FOUND"},
	{common.ErrTooManyAttempts, http.StatusTooManyRequests, "TOO_MANY_ATTEMPTS"},
	{common.ErrRewardFailed, http.StatusInternalServerError, "REWARD_FAILED"},
	{common.ErrPersistence, http.StatusInternalServerError, "PERSISTENCE_ERROR"},
}

// writeServiceError отвечает по категории ошибки сервиса.
// Внутренние ошибки пишутся в лог, клиенту уходит только категория.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	for _, e := range errorStatus {
		if !errors.Is(err, e.err) {
			continue
		}
		msg := err.Error()
		if e.status >= http.StatusInternalServerError {
			log.WithError(err).WithField("path", r.URL.Path).Error("Ошибка обработки запроса")
			msg = e.err.Error()
		}
		writeError(w, e.status, e.code, msg)
		return
	}
	log.WithError(err).WithField("path", r.URL.Path).Error("Необработанная ошибка")
	writeError(w, http.StatusInternalServerError, "INTERNAL", "внутренняя ошибка")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "некорректное тело запроса")
		return false
	}
	return true
}

func handlePanic(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusInternalServerError, "INTERNAL", "внутренняя ошибка")
}

func handleRateLimited(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "слишком много запросов, подождите")
}
