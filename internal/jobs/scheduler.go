// Package jobs управляет фоновыми задачами (cron).
// scheduler.go настраивает расписание: вечерние напоминания о сериях
// и ночная сверка балансов с журналом.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/reading-rewards/internal/common"
	"serotonyl.ru/reading-rewards/internal/config"
	"serotonyl.ru/reading-rewards/internal/features/ledger"
	"serotonyl.ru/reading-rewards/internal/notify"
)

// Reminders — рассылка напоминаний о сериях.
type Reminders interface {
	SendReminders(ctx context.Context, threshold int, n notify.Notifier) (int, error)
}

// Auditor — сверка балансов.
type Auditor interface {
	Reconcile(ctx context.Context) ([]ledger.Mismatch, error)
}

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron      *cron.Cron
	reminders Reminders
	auditor   Auditor
	notifier  notify.Notifier
	cfg       *config.Config
	loc       *time.Location
}

// NewScheduler создаёт планировщик задач в часовом поясе из конфига.
func NewScheduler(reminders Reminders, auditor Auditor, notifier notify.Notifier, cfg *config.Config) *Scheduler {
	loc := common.LoadLocation(cfg.AppTimezone)

	return &Scheduler{
		cron:      cron.New(cron.WithLocation(loc)),
		reminders: reminders,
		auditor:   auditor,
		notifier:  notifier,
		cfg:       cfg,
		loc:       loc,
	}
}

// Start регистрирует и запускает все фоновые задачи.
// При некорректном расписании в конфиге возвращает ошибку.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.cfg.FeatureStreaksEnabled {
		if _, err := s.cron.AddFunc(s.cfg.StreakReminderSchedule, func() { s.runReminders(ctx) }); err != nil {
			return fmt.Errorf("некорректное расписание напоминаний %q: %w", s.cfg.StreakReminderSchedule, err)
		}
	}
	if _, err := s.cron.AddFunc(s.cfg.ReconcileSchedule, func() { s.runReconcile(ctx) }); err != nil {
		return fmt.Errorf("некорректное расписание сверки %q: %w", s.cfg.ReconcileSchedule, err)
	}

	s.cron.Start()
	log.WithFields(log.Fields{
		"timezone":  s.loc.String(),
		"reminders": s.cfg.StreakReminderSchedule,
		"reconcile": s.cfg.ReconcileSchedule,
		"jobs":      len(s.cron.Entries()),
	}).Info("Планировщик задач запущен")
	return nil
}

// Stop останавливает планировщик и дожидается выполняющихся задач.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик задач остановлен")
}

func (s *Scheduler) runReminders(ctx context.Context) {
	log.Debug("[CRON] Напоминания о сериях")
	n, err := s.reminders.SendReminders(ctx, s.cfg.StreakReminderThreshold, s.notifier)
	if err != nil {
		log.WithError(err).Error("[CRON] Ошибка напоминаний")
		return
	}
	log.WithField("patients", n).Info("[CRON] Напоминания отправлены")
}

func (s *Scheduler) runReconcile(ctx context.Context) {
	log.Debug("[CRON] Сверка балансов")
	list, err := s.auditor.Reconcile(ctx)
	if err != nil {
		log.WithError(err).Error("[CRON] Ошибка сверки")
		return
	}
	log.WithField("mismatches", len(list)).Info("[CRON] Сверка завершена")
}
