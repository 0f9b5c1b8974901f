package staff

import (
	"context"
	"testing"
	"time"

	"serotonyl.ru/reading-rewards/internal/db/postgres/pgtest"
)

func TestRepositoryRecentFailures(t *testing.T) {
	pool := pgtest.NewPool(t)
	repo := NewRepository(pool)
	ctx := context.Background()

	for _, success := range []bool{false, false, true} {
		if err := repo.LogAttempt(ctx, "10.0.0.1", success); err != nil {
			t.Fatalf("LogAttempt: %v", err)
		}
	}
	if err := repo.LogAttempt(ctx, "10.0.0.2", false); err != nil {
		t.Fatalf("LogAttempt: %v", err)
	}

	n, err := repo.RecentFailures(ctx, "10.0.0.1", time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("RecentFailures: %v", err)
	}
	if n != 2 {
		t.Fatalf("failures = %d, want 2", n)
	}
	if n, _ := repo.RecentFailures(ctx, "10.0.0.1", time.Now().Add(time.Hour)); n != 0 {
		t.Fatalf("failures in future window = %d", n)
	}
}
