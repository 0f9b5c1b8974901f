// Package staff — service.go содержит вход специалиста и операции кабинета.
package staff

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/reading-rewards/internal/auth"
	"serotonyl.ru/reading-rewards/internal/common"
	"serotonyl.ru/reading-rewards/internal/config"
	"serotonyl.ru/reading-rewards/internal/features/completion"
	"serotonyl.ru/reading-rewards/internal/features/ledger"
	"serotonyl.ru/reading-rewards/internal/notify"
)

// Сколько записей показывать в журнале пациента
const (
	ledgerTransactionsLimit = 50
	ledgerSessionsLimit     = 20
)

// AttemptStore — учёт попыток входа.
type AttemptStore interface {
	LogAttempt(ctx context.Context, clientIP string, success bool) error
	RecentFailures(ctx context.Context, clientIP string, since time.Time) (int, error)
}

// Catalog — упражнения, назначения и сессии.
type Catalog interface {
	GetExercise(ctx context.Context, id uuid.UUID) (*completion.Exercise, error)
	SaveExercise(ctx context.Context, e *completion.Exercise) error
	CreateAssignment(ctx context.Context, a *completion.Assignment) error
	ListSessions(ctx context.Context, patientID uuid.UUID, limit int) ([]*completion.Session, error)
}

// Service — кабинет специалиста.
type Service struct {
	attempts AttemptStore
	catalog  Catalog
	ledger   ledger.Store
	tokens   *auth.Manager
	notifier notify.Notifier
	clock    common.DateProvider
	cfg      *config.Config
	loc      *time.Location // Для дат в сообщениях специалистам
}

// NewService создаёт сервис кабинета.
func NewService(
	attempts AttemptStore,
	catalog Catalog,
	store ledger.Store,
	tokens *auth.Manager,
	notifier notify.Notifier,
	clock common.DateProvider,
	cfg *config.Config,
) *Service {
	return &Service{
		attempts: attempts,
		catalog:  catalog,
		ledger:   store,
		tokens:   tokens,
		notifier: notifier,
		clock:    clock,
		cfg:      cfg,
		loc:      common.LoadLocation(cfg.AppTimezone),
	}
}

// Login проверяет пароль специалиста и выдаёт токен.
// После StaffLoginLimit неудач за StaffLoginWindow адрес блокируется до конца окна.
func (s *Service) Login(ctx context.Context, clientIP, password string) (string, error) {
	failures, err := s.attempts.RecentFailures(ctx, clientIP, s.clock.Now().Add(-s.cfg.StaffLoginWindow))
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrPersistence, err)
	}
	if failures >= s.cfg.StaffLoginLimit {
		log.WithField("ip", clientIP).Warn("Вход специалиста заблокирован: слишком много попыток")
		return "", common.ErrTooManyAttempts
	}

	match := auth.VerifyPassword(password, s.cfg.StaffPasswordHash)
	if err := s.attempts.LogAttempt(ctx, clientIP, match); err != nil {
		log.WithError(err).Warn("Не удалось записать попытку входа")
	}
	if !match {
		log.WithField("ip", clientIP).Info("Неверный пароль специалиста")
		return "", common.ErrWrongPassword
	}

	token, err := s.tokens.GenerateToken(StaffID, auth.RoleStaff)
	if err != nil {
		return "", fmt.Errorf("ошибка выпуска токена: %w", err)
	}
	log.WithField("ip", clientIP).Info("Специалист вошёл в кабинет")
	return token, nil
}

// RegisterExercise добавляет упражнение в каталог или обновляет существующее.
func (s *Service) RegisterExercise(ctx context.Context, req ExerciseRequest) (*completion.Exercise, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" || len([]rune(title)) > 255 {
		return nil, fmt.Errorf("%w: название упражнения от 1 до 255 символов", common.ErrValidation)
	}
	if !req.Kind.Valid() {
		return nil, fmt.Errorf("%w: неизвестный тип упражнения %q", common.ErrValidation, req.Kind)
	}

	e := &completion.Exercise{ID: req.ID, Title: title, Kind: req.Kind, IsActive: !req.Inactive}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if err := s.catalog.SaveExercise(ctx, e); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"exercise_id": e.ID,
		"kind":        e.Kind,
		"active":      e.IsActive,
	}).Info("Упражнение сохранено в каталоге")
	return e, nil
}

// Assign назначает активное упражнение пациенту.
func (s *Service) Assign(ctx context.Context, req AssignmentRequest) (*completion.Assignment, error) {
	if req.ExerciseID == uuid.Nil || req.PatientID == uuid.Nil {
		return nil, fmt.Errorf("%w: нужны id упражнения и пациента", common.ErrValidation)
	}
	if _, err := s.catalog.GetExercise(ctx, req.ExerciseID); err != nil {
		return nil, err
	}

	a := &completion.Assignment{
		ExerciseID: req.ExerciseID,
		PatientID:  req.PatientID,
		Status:     completion.StatusAssigned,
		AssignedAt: s.clock.Now(),
	}
	if err := s.catalog.CreateAssignment(ctx, a); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"assignment_id": a.ID,
		"exercise_id":   a.ExerciseID,
		"patient_id":    a.PatientID,
	}).Info("Упражнение назначено")
	return a, nil
}

// PatientLedger собирает баланс, последние начисления и сессии пациента.
// Пациент без баланса показывается с нулями.
func (s *Service) PatientLedger(ctx context.Context, patientID uuid.UUID) (*PatientLedger, error) {
	if patientID == uuid.Nil {
		return nil, fmt.Errorf("%w: не указан пациент", common.ErrValidation)
	}

	bal, err := s.ledger.GetBalance(ctx, patientID)
	if errors.Is(err, common.ErrPatientNotFound) {
		bal = &ledger.Balance{UserID: patientID}
	} else if err != nil {
		return nil, err
	}

	txs, err := s.ledger.ListTransactions(ctx, patientID, ledgerTransactionsLimit)
	if err != nil {
		return nil, err
	}
	sessions, err := s.catalog.ListSessions(ctx, patientID, ledgerSessionsLimit)
	if err != nil {
		return nil, err
	}
	return &PatientLedger{Balance: bal, Transactions: txs, Sessions: sessions}, nil
}

// Reconcile сверяет балансы с журналом. Расхождения пишутся в лог
// и отправляются специалистам одним сообщением.
func (s *Service) Reconcile(ctx context.Context) ([]ledger.Mismatch, error) {
	mismatches, err := s.ledger.Reconcile(ctx)
	if err != nil {
		return nil, err
	}
	if len(mismatches) == 0 {
		log.Info("Сверка балансов: расхождений нет")
		return mismatches, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "⚠️ Сверка балансов %s: расхождений %d\n",
		common.FormatDateTime(s.clock.Now(), s.loc), len(mismatches))
	for _, m := range mismatches {
		log.WithFields(log.Fields{
			"patient_id": m.UserID,
			"stored":     m.Stored,
			"expected":   m.Expected,
		}).Error("Баланс не совпадает с журналом")
		fmt.Fprintf(&b, "• %s: в балансе %s, по журналу %s\n",
			m.UserID, common.FormatNumber(m.Stored), common.FormatNumber(m.Expected))
	}
	if err := s.notifier.Notify(ctx, strings.TrimRight(b.String(), "\n")); err != nil {
		log.WithError(err).Warn("Не удалось отправить отчёт о сверке")
	}
	return mismatches, nil
}
