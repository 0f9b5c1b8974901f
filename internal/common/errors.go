// Package common — errors.go определяет ошибки, которые используются
// во всех модулях сервиса наград.
// Ошибки позволяют HTTP-слою различать категории проблем (errors.Is)
// и отвечать клиенту понятным кодом.
package common

import "errors"

// Ошибки входных данных и доступа. Отклоняются до любой записи в БД.
var (
	// ErrValidation — некорректные входные данные (нет id упражнения, битые ответы)
	ErrValidation = errors.New("некорректные входные данные")
	// ErrUnauthorized — нет аутентифицированного пациента
	ErrUnauthorized = errors.New("требуется авторизация")
	// ErrForbidden — вызывающий не владелец сессии
	ErrForbidden = errors.New("нет доступа к чужой сессии")
)

// Ошибки поиска. Частичное состояние при них не создаётся.
var (
	// ErrExerciseNotFound — упражнение не найдено или неактивно
	ErrExerciseNotFound = errors.New("упражнение не найдено")
	// ErrSessionNotFound — сессия не найдена
	ErrSessionNotFound = errors.New("сессия не найдена")
	// ErrSessionNotCompleted — сессия ещё не завершена
	ErrSessionNotCompleted = errors.New("сессия не завершена")
	// ErrScoreNotFound — у сессии нет результата
	ErrScoreNotFound = errors.New("результат сессии не найден")
	// ErrPatientNotFound — у пациента ещё нет баланса
	ErrPatientNotFound = errors.New("пациент не найден")
)

// Ошибки хранилища и начисления.
var (
	// ErrPersistence — сбой записи в БД. Завершение нельзя считать вознаграждённым.
	ErrPersistence = errors.New("ошибка записи в хранилище")
	// ErrRewardFailed — сессия записана, но начисление кристаллов не удалось.
	// Начисление можно безопасно повторить.
	ErrRewardFailed = errors.New("начисление кристаллов не выполнено")
	// ErrInvalidAmount — сумма начисления не положительная
	ErrInvalidAmount = errors.New("сумма должна быть положительной")
)

// Ошибки кабинета специалиста
var (
	// ErrWrongPassword — неверный пароль специалиста
	ErrWrongPassword = errors.New("неверный пароль")
	// ErrTooManyAttempts — слишком много неудачных попыток входа
	ErrTooManyAttempts = errors.New("слишком много попыток, подождите")
	// ErrNotStaff — токен не принадлежит специалисту
	ErrNotStaff = errors.New("нужны права специалиста")
)
