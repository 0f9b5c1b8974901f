// Package ledgertest — хранилище журнала в памяти для тестов сервисов.
// Транзакции выполняются строго по очереди (как строка под FOR UPDATE),
// ошибка внутри InTx возвращает состояние к моменту начала транзакции.
package ledgertest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"serotonyl.ru/reading-rewards/internal/common"
	"serotonyl.ru/reading-rewards/internal/features/ledger"
)

// Store реализует ledger.Store.
type Store struct {
	mu       sync.Mutex
	balances map[uuid.UUID]*ledger.Balance
	txs      []*ledger.Transaction

	// Writes — сколько изменяющих вызовов было сделано внутри транзакций
	Writes int
	// FailSource — вставка записи с этим источником вернёт FailErr
	FailSource ledger.Source
	FailErr    error
}

// New создаёт пустое хранилище.
func New() *Store {
	return &Store{balances: make(map[uuid.UUID]*ledger.Balance)}
}

type snapshot struct {
	balances map[uuid.UUID]ledger.Balance
	txCount  int
	writes   int
}

func (s *Store) InTx(ctx context.Context, fn func(tx ledger.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := snapshot{balances: make(map[uuid.UUID]ledger.Balance, len(s.balances)), txCount: len(s.txs), writes: s.Writes}
	for id, b := range s.balances {
		snap.balances[id] = *b
	}

	if err := fn(&memTx{s: s}); err != nil {
		s.balances = make(map[uuid.UUID]*ledger.Balance, len(snap.balances))
		for id, b := range snap.balances {
			s.balances[id] = &b
		}
		s.txs = s.txs[:snap.txCount]
		s.Writes = snap.writes
		return err
	}
	return nil
}

func (s *Store) GetBalance(ctx context.Context, userID uuid.UUID) (*ledger.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.balances[userID]
	if !ok {
		return nil, common.ErrPatientNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *Store) ListTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]*ledger.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var list []*ledger.Transaction
	for i := len(s.txs) - 1; i >= 0; i-- {
		if s.txs[i].UserID == userID {
			cp := *s.txs[i]
			list = append(list, &cp)
		}
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (s *Store) ListReminderCandidates(ctx context.Context, minStreak int, yesterday time.Time) ([]*ledger.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	today := yesterday.AddDate(0, 0, 1)
	var list []*ledger.Balance
	for _, b := range s.balances {
		if b.CurrentStreak < minStreak || b.LastActivityDate == nil || !b.LastActivityDate.Equal(yesterday) {
			continue
		}
		if b.ReminderSentOn != nil && !b.ReminderSentOn.Before(today) {
			continue
		}
		cp := *b
		list = append(list, &cp)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CurrentStreak > list[j].CurrentStreak })
	return list, nil
}

func (s *Store) MarkReminderSent(ctx context.Context, userIDs []uuid.UUID, day time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range userIDs {
		if b, ok := s.balances[id]; ok {
			d := day
			b.ReminderSentOn = &d
		}
	}
	return nil
}

func (s *Store) Reconcile(ctx context.Context) ([]ledger.Mismatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sums := make(map[uuid.UUID]int64)
	for _, t := range s.txs {
		sums[t.UserID] += t.Amount
	}
	var list []ledger.Mismatch
	for id, b := range s.balances {
		expected := sums[id] - b.GemsSpent
		if expected != b.TotalGems {
			list = append(list, ledger.Mismatch{UserID: id, Stored: b.TotalGems, Expected: expected})
		}
	}
	return list, nil
}

// Transactions возвращает копию всего журнала в порядке вставки.
func (s *Store) Transactions() []ledger.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ledger.Transaction, len(s.txs))
	for i, t := range s.txs {
		out[i] = *t
	}
	return out
}

// Seed кладёт готовый баланс, например со стриком на вчера.
func (s *Store) Seed(b ledger.Balance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[b.UserID] = &b
}

// SeedTransaction добавляет запись журнала в обход транзакций.
func (s *Store) SeedTransaction(t ledger.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	s.txs = append(s.txs, &t)
}

// SetTotal подменяет total_gems, чтобы получить расхождение с журналом.
func (s *Store) SetTotal(userID uuid.UUID, total int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.balances[userID]; ok {
		b.TotalGems = total
	}
}

// memTx работает под мьютексом, взятым в InTx.
type memTx struct {
	s *Store
}

func (t *memTx) LockBalance(ctx context.Context, userID uuid.UUID) (*ledger.Balance, error) {
	b, ok := t.s.balances[userID]
	if !ok {
		b = &ledger.Balance{UserID: userID, UpdatedAt: time.Now().UTC()}
		t.s.balances[userID] = b
		t.s.Writes++
	}
	cp := *b
	return &cp, nil
}

func (t *memTx) InsertTransaction(ctx context.Context, tr *ledger.Transaction) (bool, error) {
	if tr.Amount <= 0 {
		return false, common.ErrInvalidAmount
	}
	if t.s.FailSource != "" && tr.Source == t.s.FailSource {
		return false, t.s.FailErr
	}
	if tr.SessionID != nil {
		for _, existing := range t.s.txs {
			if existing.SessionID == nil || *existing.SessionID != *tr.SessionID {
				continue
			}
			if existing.Source == tr.Source || (existing.Source.IsCompletion() && tr.Source.IsCompletion()) {
				return false, nil
			}
		}
	}
	if tr.ID == uuid.Nil {
		tr.ID = uuid.New()
	}
	if tr.CreatedAt.IsZero() {
		tr.CreatedAt = time.Now().UTC()
	}
	cp := *tr
	t.s.txs = append(t.s.txs, &cp)
	t.s.Writes++
	return true, nil
}

func (t *memTx) HasSourceSince(ctx context.Context, userID uuid.UUID, source ledger.Source, since time.Time) (bool, error) {
	for _, tr := range t.s.txs {
		if tr.UserID == userID && tr.Source == source && !tr.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) AddGems(ctx context.Context, userID uuid.UUID, amount int64) error {
	if amount <= 0 {
		return common.ErrInvalidAmount
	}
	b, ok := t.s.balances[userID]
	if !ok {
		return common.ErrPatientNotFound
	}
	b.TotalGems += amount
	t.s.Writes++
	return nil
}

func (t *memTx) SaveStreak(ctx context.Context, userID uuid.UUID, current, best int, lastActivity time.Time) error {
	b, ok := t.s.balances[userID]
	if !ok {
		return common.ErrPatientNotFound
	}
	day := common.TruncateDay(lastActivity)
	b.CurrentStreak = current
	b.BestStreak = best
	b.LastActivityDate = &day
	t.s.Writes++
	return nil
}
