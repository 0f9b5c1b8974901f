package notify

import (
	"context"
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"serotonyl.ru/reading-rewards/internal/config"
)

type fakeSender struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.err != nil {
		return tgbotapi.Message{}, f.err
	}
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, m)
	}
	return tgbotapi.Message{}, nil
}

func TestTelegramNotify(t *testing.T) {
	s := &fakeSender{}
	n := NewTelegram(s, -100500)

	if err := n.Notify(context.Background(), "серия 7 дней"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(s.sent) != 1 {
		t.Fatalf("sent = %d, want 1", len(s.sent))
	}
	if s.sent[0].ChatID != -100500 || s.sent[0].Text != "серия 7 дней" {
		t.Errorf("unexpected message: %+v", s.sent[0])
	}
}

func TestTelegramNotifyError(t *testing.T) {
	boom := errors.New("boom")
	n := NewTelegram(&fakeSender{err: boom}, 1)
	if err := n.Notify(context.Background(), "x"); !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped boom", err)
	}
}

func TestTelegramNotifyCanceled(t *testing.T) {
	s := &fakeSender{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := NewTelegram(s, 1).Notify(ctx, "x"); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if len(s.sent) != 0 {
		t.Error("message sent after cancel")
	}
}

func TestNewWithoutTelegram(t *testing.T) {
	n := New(&config.Config{FeatureNotificationsEnabled: true})
	if _, ok := n.(Log); !ok {
		t.Errorf("New() = %T, want Log", n)
	}
}
