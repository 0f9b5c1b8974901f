// Package config загружает конфигурацию сервиса из переменных окружения.
// Используется envconfig для маппинга переменных окружения на поля структуры.
// Если рядом лежит .env — он подхватывается через godotenv (переменные окружения важнее).
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config содержит ВСЕ настройки приложения.
type Config struct {
	// --- HTTP ---
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`
	// Секрет для подписи JWT пациентов и специалистов
	JWTSecret string        `envconfig:"JWT_SECRET" required:"true"`
	JWTTTL    time.Duration `envconfig:"JWT_TTL" default:"24h"`
	// Брать адрес клиента из X-Forwarded-For/X-Real-IP. Включать только за своим прокси.
	HTTPTrustProxy bool `envconfig:"HTTP_TRUST_PROXY" default:"false"`

	// --- Database ---
	// В Docker дефолт "postgres" (имя сервиса в docker-compose), для локалки DB_HOST=localhost.
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"rewards"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" default:"reading_rewards"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`
	// Часовой пояс расписаний cron и дат в уведомлениях. Стрики всегда в UTC.
	AppTimezone string `envconfig:"APP_TIMEZONE" default:"Europe/Moscow"`

	// --- Staff ---
	// Argon2id-хеш пароля специалиста, генерируется cmd/hashpass
	StaffPasswordHash string        `envconfig:"STAFF_PASSWORD_HASH" required:"true"`
	StaffLoginLimit   int           `envconfig:"STAFF_LOGIN_LIMIT" default:"3"`
	StaffLoginWindow  time.Duration `envconfig:"STAFF_LOGIN_WINDOW" default:"1h"`

	// --- Telegram (уведомления специалистам) ---
	// Пустой токен — уведомления только в лог.
	TelegramBotToken    string `envconfig:"TELEGRAM_BOT_TOKEN"`
	TelegramStaffChatID int64  `envconfig:"TELEGRAM_STAFF_CHAT_ID"`

	// --- Streak ---
	StreakReminderThreshold int    `envconfig:"STREAK_REMINDER_THRESHOLD" default:"3"`
	StreakReminderSchedule  string `envconfig:"STREAK_REMINDER_SCHEDULE" default:"0 18 * * *"`
	ReconcileSchedule       string `envconfig:"RECONCILE_SCHEDULE" default:"30 3 * * *"`

	// --- Rate Limiting ---
	RateLimitRequests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"10"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`

	// --- Feature Flags ---
	FeatureStreaksEnabled       bool `envconfig:"FEATURE_STREAKS_ENABLED" default:"true"`
	FeatureNotificationsEnabled bool `envconfig:"FEATURE_NOTIFICATIONS_ENABLED" default:"true"`
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате DSN.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// TelegramEnabled сообщает, настроена ли отправка в Telegram.
func (c *Config) TelegramEnabled() bool {
	return c.FeatureNotificationsEnabled && c.TelegramBotToken != "" && c.TelegramStaffChatID != 0
}

// Validate проверяет взаимную согласованность настроек.
func (c *Config) Validate() error {
	if len(c.JWTSecret) < 16 {
		return fmt.Errorf("JWT_SECRET должен быть не короче 16 символов")
	}
	if c.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL должен быть > 0")
	}
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("некорректные DB_MIN_CONNS/DB_MAX_CONNS")
	}
	if c.RateLimitRequests <= 0 || c.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS и RATE_LIMIT_WINDOW должны быть > 0")
	}
	if c.StaffLoginLimit <= 0 || c.StaffLoginWindow <= 0 {
		return fmt.Errorf("STAFF_LOGIN_LIMIT и STAFF_LOGIN_WINDOW должны быть > 0")
	}
	if c.StreakReminderThreshold < 1 {
		return fmt.Errorf("STREAK_REMINDER_THRESHOLD должен быть >= 1")
	}
	if c.TelegramBotToken != "" && c.TelegramStaffChatID == 0 {
		return fmt.Errorf("TELEGRAM_STAFF_CHAT_ID не задан при заданном TELEGRAM_BOT_TOKEN")
	}
	return nil
}

// Load читает .env (если есть) и переменные окружения, заполняет структуру Config.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
