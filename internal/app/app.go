// Package app инициализирует все компоненты приложения.
// app.go — точка сборки: создаёт БД-пул, репозитории, сервисы,
// планировщик и HTTP-сервер.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/reading-rewards/internal/api"
	"serotonyl.ru/reading-rewards/internal/api/middleware"
	"serotonyl.ru/reading-rewards/internal/auth"
	"serotonyl.ru/reading-rewards/internal/common"
	"serotonyl.ru/reading-rewards/internal/config"
	"serotonyl.ru/reading-rewards/internal/db/postgres"
	"serotonyl.ru/reading-rewards/internal/features/completion"
	"serotonyl.ru/reading-rewards/internal/features/ledger"
	"serotonyl.ru/reading-rewards/internal/features/reward"
	"serotonyl.ru/reading-rewards/internal/features/staff"
	"serotonyl.ru/reading-rewards/internal/features/streak"
	"serotonyl.ru/reading-rewards/internal/jobs"
	"serotonyl.ru/reading-rewards/internal/notify"
)

// App содержит все компоненты приложения.
type App struct {
	Server    *http.Server
	Scheduler *jobs.Scheduler
	DB        *pgxpool.Pool
	limiter   *middleware.RateLimiter
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен — компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// === 1. База данных ===
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}
	if err := postgres.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка миграций: %w", err)
	}

	clock := common.SystemClock{}
	notifier := notify.New(cfg)
	tokens := auth.NewManager(cfg.JWTSecret, cfg.JWTTTL)

	// === 2. Репозитории ===
	ledgerRepo := ledger.NewRepository(pool)
	completionRepo := completion.NewRepository(pool)
	staffRepo := staff.NewRepository(pool)

	// === 3. Сервисы ===
	streakService := streak.NewService(ledgerRepo, clock)
	rewardService := reward.NewService(ledgerRepo, completionRepo, streakService, clock, notifier, cfg)
	completionService := completion.NewService(completionRepo, rewardService, clock)
	staffService := staff.NewService(staffRepo, completionRepo, ledgerRepo, tokens, notifier, clock, cfg)

	// === 4. HTTP ===
	limiter := middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow)
	handlers := &api.API{
		Completions: completionService,
		Rewards:     rewardService,
		Ledger:      ledgerRepo,
		Staff:       staffService,
		Auth:        tokens,
		DB:          pool,
		Limiter:     limiter,
		TrustProxy:  cfg.HTTPTrustProxy,
	}
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handlers.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// === 5. Планировщик задач ===
	scheduler := jobs.NewScheduler(streakService, staffService, notifier, cfg)

	return &App{
		Server:    server,
		Scheduler: scheduler,
		DB:        pool,
		limiter:   limiter,
	}, nil
}

// Run запускает планировщик и HTTP-сервер и блокируется до отмены ctx.
// После отмены сервер дообрабатывает текущие запросы не дольше shutdownTimeout.
func (a *App) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	if err := a.Scheduler.Start(ctx); err != nil {
		return err
	}
	defer a.Scheduler.Stop()

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", a.Server.Addr).Info("HTTP-сервер запущен")
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("ошибка остановки HTTP-сервера: %w", err)
	}
	log.Info("HTTP-сервер остановлен")
	return nil
}

// Close освобождает ресурсы.
func (a *App) Close() {
	a.limiter.Close()
	a.DB.Close()
}
