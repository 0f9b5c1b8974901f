package streak

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/reading-rewards/internal/common"
	"serotonyl.ru/reading-rewards/internal/notify"
)

// SendReminders собирает серии под угрозой и отправляет специалистам одну сводку.
// Под угрозой серия >= threshold, последнее занятие вчера, сегодня занятий не было.
// Каждого пациента упоминаем не чаще раза в день.
// Запускается кроном.
func (s *Service) SendReminders(ctx context.Context, threshold int, n notify.Notifier) (int, error) {
	today := s.clock.Today()
	yesterday := today.AddDate(0, 0, -1)

	candidates, err := s.store.ListReminderCandidates(ctx, threshold, yesterday)
	if err != nil {
		return 0, err
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "⚠️ Серии под угрозой сегодня: %d\n", len(candidates))
	ids := make([]uuid.UUID, 0, len(candidates))
	for _, c := range candidates {
		fmt.Fprintf(&b, "• %s: %d %s подряд\n", c.UserID, c.CurrentStreak, common.PluralizeDays(c.CurrentStreak))
		ids = append(ids, c.UserID)
	}

	if err := n.Notify(ctx, b.String()); err != nil {
		// Не помечаем: попробуем при следующем запуске
		return 0, err
	}
	if err := s.store.MarkReminderSent(ctx, ids, today); err != nil {
		return 0, err
	}

	log.WithField("count", len(ids)).Info("Напоминания о сериях отправлены")
	return len(ids), nil
}

// FormatMilestones — текст уведомления специалистам о выданных вехах.
func FormatMilestones(patientID uuid.UUID, upd *Update) string {
	days := make([]string, 0, len(upd.Milestones))
	for _, m := range upd.Milestones {
		days = append(days, fmt.Sprintf("%d %s", m.Days, common.PluralizeDays(m.Days)))
	}
	return fmt.Sprintf("🔥 Пациент %s: серия %d %s, веха %s, %s",
		patientID, upd.Current, common.PluralizeDays(upd.Current),
		strings.Join(days, ", "), common.FormatGemsAmount(upd.Gems))
}
