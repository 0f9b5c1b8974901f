// Package notify отправляет служебные уведомления специалистам:
// вехи серий, напоминания о сериях под угрозой, итоги сверки балансов.
// Если Telegram не настроен, уведомления просто пишутся в лог.
package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/reading-rewards/internal/config"
)

// Notifier доставляет текст специалистам.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// sender — часть tgbotapi.BotAPI, которая нужна для отправки.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram отправляет уведомления в чат специалистов.
type Telegram struct {
	bot    sender
	chatID int64
}

// NewTelegram создаёт уведомитель поверх готового бота.
func NewTelegram(bot sender, chatID int64) *Telegram {
	return &Telegram{bot: bot, chatID: chatID}
}

// Notify отправляет сообщение в чат специалистов.
func (t *Telegram) Notify(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("ошибка отправки в Telegram: %w", err)
	}
	return nil
}

// Log пишет уведомления в лог вместо отправки.
type Log struct{}

// Notify пишет текст в лог на уровне info.
func (Log) Notify(_ context.Context, text string) error {
	log.WithField("notify", "log").Info(text)
	return nil
}

// New выбирает уведомитель по конфигурации.
// Ошибка авторизации бота не фатальна: сервис наград работает и без Telegram.
func New(cfg *config.Config) Notifier {
	if !cfg.TelegramEnabled() {
		log.Info("Telegram не настроен, уведомления пишутся в лог")
		return Log{}
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		log.WithError(err).Error("Ошибка авторизации Telegram-бота, уведомления пишутся в лог")
		return Log{}
	}
	botAPI.Debug = cfg.AppEnv == "development"
	log.WithField("username", botAPI.Self.UserName).Info("Telegram-бот для уведомлений авторизован")

	return NewTelegram(botAPI, cfg.TelegramStaffChatID)
}
