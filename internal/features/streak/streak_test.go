package streak

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"serotonyl.ru/reading-rewards/internal/common"
	"serotonyl.ru/reading-rewards/internal/features/ledger"
	"serotonyl.ru/reading-rewards/internal/features/ledger/ledgertest"
)

var now = time.Date(2026, 10, 14, 15, 4, 0, 0, time.UTC)

func day(offset int) *time.Time {
	d := common.TruncateDay(now).AddDate(0, 0, offset)
	return &d
}

func TestNext(t *testing.T) {
	today := common.TruncateDay(now)
	cases := []struct {
		name   string
		last   *time.Time
		cur    int
		want   int
		change Change
	}{
		{"never", nil, 0, 1, Started},
		{"today", day(0), 4, 4, Unchanged},
		{"yesterday", day(-1), 2, 3, Continued},
		{"gap", day(-2), 9, 1, Broken},
		{"long gap", day(-5), 10, 1, Broken},
		{"future", day(1), 3, 1, Broken},
	}
	for _, c := range cases {
		got, change := Next(c.last, c.cur, today)
		if got != c.want || change != c.change {
			t.Fatalf("%s: Next = (%d, %s), want (%d, %s)", c.name, got, change, c.want, c.change)
		}
	}
}

func TestCrossed(t *testing.T) {
	all := Crossed(0, 30)
	if len(all) != 4 || all[0].Days != 30 || all[3].Days != 3 {
		t.Fatalf("Crossed(0, 30) = %+v", all)
	}
	if got := Crossed(29, 30); len(got) != 1 || got[0].Source != ledger.SourceStreak30 {
		t.Fatalf("Crossed(29, 30) = %+v", got)
	}
	if got := Crossed(3, 4); len(got) != 0 {
		t.Fatalf("Crossed(3, 4) = %+v", got)
	}
}

func TestWindowStart(t *testing.T) {
	got := WindowStart(now, 3)
	if !got.Equal(time.Date(2026, 10, 11, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("WindowStart = %v", got)
	}
}

func newService(store ledger.Store) *Service {
	return NewService(store, common.FixedClock{At: now})
}

func TestUpdateStreakContinuity(t *testing.T) {
	store := ledgertest.New()
	user := uuid.New()
	store.Seed(ledger.Balance{UserID: user, CurrentStreak: 2, BestStreak: 2, LastActivityDate: day(-1)})
	svc := newService(store)

	gems, err := svc.UpdateStreak(context.Background(), user)
	if err != nil {
		t.Fatalf("UpdateStreak: %v", err)
	}
	if gems != 15 {
		t.Fatalf("gems = %d, want 15", gems)
	}

	bal, _ := store.GetBalance(context.Background(), user)
	if bal.CurrentStreak != 3 || bal.BestStreak != 3 || bal.TotalGems != 15 {
		t.Fatalf("unexpected balance: %+v", bal)
	}
	if !bal.LastActivityDate.Equal(*day(0)) {
		t.Fatalf("last activity = %v", bal.LastActivityDate)
	}

	// повтор в тот же день ничего не выдаёт
	gems, err = svc.UpdateStreak(context.Background(), user)
	if err != nil || gems != 0 {
		t.Fatalf("second call = (%d, %v)", gems, err)
	}

	txs := store.Transactions()
	if len(txs) != 1 || txs[0].Source != ledger.SourceStreak3 || txs[0].Amount != 15 || txs[0].SessionID != nil {
		t.Fatalf("unexpected transactions: %+v", txs)
	}
}

func TestUpdateStreakBreak(t *testing.T) {
	store := ledgertest.New()
	user := uuid.New()
	store.Seed(ledger.Balance{UserID: user, CurrentStreak: 10, BestStreak: 10, LastActivityDate: day(-5)})

	gems, err := newService(store).UpdateStreak(context.Background(), user)
	if err != nil || gems != 0 {
		t.Fatalf("UpdateStreak = (%d, %v)", gems, err)
	}
	bal, _ := store.GetBalance(context.Background(), user)
	if bal.CurrentStreak != 1 || bal.BestStreak != 10 {
		t.Fatalf("unexpected balance: %+v", bal)
	}
	if txs := store.Transactions(); len(txs) != 0 {
		t.Fatalf("milestone created on break: %+v", txs)
	}
}

func TestUpdateStreakSameDayNoWrites(t *testing.T) {
	store := ledgertest.New()
	user := uuid.New()
	store.Seed(ledger.Balance{UserID: user, CurrentStreak: 5, BestStreak: 8, LastActivityDate: day(0)})

	gems, err := newService(store).UpdateStreak(context.Background(), user)
	if err != nil || gems != 0 {
		t.Fatalf("UpdateStreak = (%d, %v)", gems, err)
	}
	if store.Writes != 0 {
		t.Fatalf("writes = %d, want 0", store.Writes)
	}
}

func TestUpdateStreakFirstActivity(t *testing.T) {
	store := ledgertest.New()
	user := uuid.New()

	gems, err := newService(store).UpdateStreak(context.Background(), user)
	if err != nil || gems != 0 {
		t.Fatalf("UpdateStreak = (%d, %v)", gems, err)
	}
	bal, err := store.GetBalance(context.Background(), user)
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if bal.CurrentStreak != 1 || bal.BestStreak != 1 {
		t.Fatalf("unexpected balance: %+v", bal)
	}
}

func TestUpdateStreakMilestoneAlreadyInWindow(t *testing.T) {
	store := ledgertest.New()
	user := uuid.New()
	store.Seed(ledger.Balance{UserID: user, TotalGems: 15, CurrentStreak: 2, BestStreak: 3, LastActivityDate: day(-1)})
	store.SeedTransaction(ledger.Transaction{
		UserID: user, Amount: 15, Type: ledger.TxBonus, Source: ledger.SourceStreak3,
		CreatedAt: now.AddDate(0, 0, -1),
	})

	gems, err := newService(store).UpdateStreak(context.Background(), user)
	if err != nil || gems != 0 {
		t.Fatalf("UpdateStreak = (%d, %v)", gems, err)
	}
	if txs := store.Transactions(); len(txs) != 1 {
		t.Fatalf("milestone granted twice: %+v", txs)
	}
}

func TestUpdateStreakOldMilestoneOutsideWindow(t *testing.T) {
	store := ledgertest.New()
	user := uuid.New()
	store.Seed(ledger.Balance{UserID: user, TotalGems: 15, CurrentStreak: 2, BestStreak: 9, LastActivityDate: day(-1)})
	store.SeedTransaction(ledger.Transaction{
		UserID: user, Amount: 15, Type: ledger.TxBonus, Source: ledger.SourceStreak3,
		CreatedAt: now.AddDate(0, 0, -20),
	})

	gems, err := newService(store).UpdateStreak(context.Background(), user)
	if err != nil || gems != 15 {
		t.Fatalf("UpdateStreak = (%d, %v), want 15", gems, err)
	}
}

func TestUpdateStreakRollbackOnFailure(t *testing.T) {
	store := ledgertest.New()
	user := uuid.New()
	store.Seed(ledger.Balance{UserID: user, CurrentStreak: 6, BestStreak: 6, LastActivityDate: day(-1)})
	store.FailSource = ledger.SourceStreak7
	store.FailErr = common.ErrPersistence

	if _, err := newService(store).UpdateStreak(context.Background(), user); !errors.Is(err, common.ErrPersistence) {
		t.Fatalf("err = %v, want ErrPersistence", err)
	}
	bal, _ := store.GetBalance(context.Background(), user)
	if bal.CurrentStreak != 6 || !bal.LastActivityDate.Equal(*day(-1)) {
		t.Fatalf("streak not rolled back: %+v", bal)
	}
}

type recordingNotifier struct {
	texts []string
	err   error
}

func (r *recordingNotifier) Notify(_ context.Context, text string) error {
	if r.err != nil {
		return r.err
	}
	r.texts = append(r.texts, text)
	return nil
}

func TestSendReminders(t *testing.T) {
	store := ledgertest.New()
	atRisk, fresh, short := uuid.New(), uuid.New(), uuid.New()
	store.Seed(ledger.Balance{UserID: atRisk, CurrentStreak: 7, BestStreak: 7, LastActivityDate: day(-1)})
	store.Seed(ledger.Balance{UserID: fresh, CurrentStreak: 9, BestStreak: 9, LastActivityDate: day(0)})
	store.Seed(ledger.Balance{UserID: short, CurrentStreak: 1, BestStreak: 4, LastActivityDate: day(-1)})
	svc := newService(store)
	n := &recordingNotifier{}

	count, err := svc.SendReminders(context.Background(), 3, n)
	if err != nil || count != 1 {
		t.Fatalf("SendReminders = (%d, %v), want 1", count, err)
	}
	if len(n.texts) != 1 || !strings.Contains(n.texts[0], atRisk.String()) || !strings.Contains(n.texts[0], "7 дней") {
		t.Fatalf("unexpected digest: %q", n.texts)
	}

	// второй запуск в тот же день — без повторов
	count, err = svc.SendReminders(context.Background(), 3, n)
	if err != nil || count != 0 || len(n.texts) != 1 {
		t.Fatalf("repeat = (%d, %v), texts %d", count, err, len(n.texts))
	}
}

func TestSendRemindersNotifyFailureKeepsCandidates(t *testing.T) {
	store := ledgertest.New()
	user := uuid.New()
	store.Seed(ledger.Balance{UserID: user, CurrentStreak: 4, BestStreak: 4, LastActivityDate: day(-1)})
	svc := newService(store)

	if _, err := svc.SendReminders(context.Background(), 3, &recordingNotifier{err: errors.New("down")}); err == nil {
		t.Fatal("expected notify error")
	}
	n := &recordingNotifier{}
	if count, err := svc.SendReminders(context.Background(), 3, n); err != nil || count != 1 {
		t.Fatalf("retry = (%d, %v)", count, err)
	}
}

func TestFormatMilestones(t *testing.T) {
	user := uuid.New()
	text := FormatMilestones(user, &Update{
		Current:    7,
		Milestones: []Milestone{Milestones[2]},
		Gems:       50,
	})
	if !strings.Contains(text, "веха 7 дней") || !strings.Contains(text, "+50 кристаллов") {
		t.Fatalf("unexpected text: %q", text)
	}
}
