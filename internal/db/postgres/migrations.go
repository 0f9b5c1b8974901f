package postgres

// SQL-миграции встроены в код для упрощения деплоя.
// Порядок важен: версии применяются по возрастанию.

type migration struct {
	version int
	sql     string
}

var migrations = []migration{
	{1, migration001Exercises},
	{2, migration002Sessions},
	{3, migration003Ledger},
	{4, migration004StaffLogin},
}

var migration001Exercises = `
CREATE TABLE IF NOT EXISTS exercises (
    id UUID PRIMARY KEY,
    title VARCHAR(255) NOT NULL,
    exercise_type VARCHAR(32) NOT NULL,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS assignments (
    id UUID PRIMARY KEY,
    exercise_id UUID NOT NULL REFERENCES exercises(id),
    patient_id UUID NOT NULL,
    status VARCHAR(20) NOT NULL CHECK (status IN ('assigned', 'in_progress', 'completed')),
    is_self_assigned BOOLEAN NOT NULL DEFAULT FALSE,
    assigned_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    completed_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_assignments_open
    ON assignments(patient_id, exercise_id, assigned_at)
    WHERE status IN ('assigned', 'in_progress');
`

var migration002Sessions = `
CREATE TABLE IF NOT EXISTS sessions (
    id UUID PRIMARY KEY,
    exercise_id UUID NOT NULL REFERENCES exercises(id),
    patient_id UUID NOT NULL,
    assignment_id UUID NOT NULL REFERENCES assignments(id),
    exercise_kind VARCHAR(32) NOT NULL,
    is_assigned BOOLEAN NOT NULL,
    attempt_number INTEGER NOT NULL CHECK (attempt_number >= 1),
    started_at TIMESTAMPTZ NOT NULL,
    ended_at TIMESTAMPTZ NOT NULL,
    duration_seconds INTEGER NOT NULL CHECK (duration_seconds >= 0),
    is_completed BOOLEAN NOT NULL DEFAULT FALSE,
    details JSONB NOT NULL DEFAULT '{}'::jsonb,
    CONSTRAINT sessions_attempt_unique UNIQUE (exercise_id, patient_id, attempt_number)
);
CREATE INDEX IF NOT EXISTS idx_sessions_patient ON sessions(patient_id, ended_at DESC);

CREATE TABLE IF NOT EXISTS scores (
    id BIGSERIAL PRIMARY KEY,
    session_id UUID UNIQUE NOT NULL REFERENCES sessions(id),
    total_questions INTEGER NOT NULL CHECK (total_questions >= 0),
    correct_answers INTEGER NOT NULL CHECK (correct_answers >= 0),
    incorrect_answers INTEGER NOT NULL CHECK (incorrect_answers >= 0),
    score_percentage INTEGER NOT NULL CHECK (score_percentage BETWEEN 0 AND 100),
    total_time_seconds INTEGER NOT NULL DEFAULT 0,
    CHECK (correct_answers + incorrect_answers = total_questions)
);

CREATE TABLE IF NOT EXISTS results (
    id BIGSERIAL PRIMARY KEY,
    session_id UUID NOT NULL REFERENCES sessions(id),
    question_id VARCHAR(64) NOT NULL,
    selected_answer TEXT NOT NULL DEFAULT '',
    correct_answer TEXT NOT NULL DEFAULT '',
    is_correct BOOLEAN NOT NULL,
    time_spent_seconds INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_results_session ON results(session_id);
`

var migration003Ledger = `
CREATE TABLE IF NOT EXISTS gem_balances (
    user_id UUID PRIMARY KEY,
    total_gems BIGINT NOT NULL DEFAULT 0,
    gems_spent BIGINT NOT NULL DEFAULT 0,
    current_streak INTEGER NOT NULL DEFAULT 0,
    best_streak INTEGER NOT NULL DEFAULT 0,
    last_activity_date DATE,
    reminder_sent_on DATE,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_gem_balances_streak ON gem_balances(current_streak);

CREATE TABLE IF NOT EXISTS gem_transactions (
    id UUID PRIMARY KEY,
    user_id UUID NOT NULL,
    amount BIGINT NOT NULL CHECK (amount > 0),
    transaction_type VARCHAR(16) NOT NULL CHECK (transaction_type IN ('earned', 'bonus')),
    source VARCHAR(32) NOT NULL,
    session_id UUID REFERENCES sessions(id),
    metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_gem_transactions_user ON gem_transactions(user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_gem_transactions_source ON gem_transactions(user_id, source, created_at);
-- Повторная выдача за одну и ту же сессию невозможна ни для одного источника,
-- а для двух источников завершения — не больше одной записи на сессию.
CREATE UNIQUE INDEX IF NOT EXISTS ux_gem_transactions_session_source
    ON gem_transactions(session_id, source)
    WHERE session_id IS NOT NULL;
CREATE UNIQUE INDEX IF NOT EXISTS ux_gem_transactions_completion
    ON gem_transactions(session_id)
    WHERE source IN ('exercise_completion', 'free_exercise_completion');
`

var migration004StaffLogin = `
CREATE TABLE IF NOT EXISTS staff_login_attempts (
    id BIGSERIAL PRIMARY KEY,
    client_ip VARCHAR(64) NOT NULL,
    attempt_time TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    success BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS idx_staff_login_attempts_ip ON staff_login_attempts(client_ip, attempt_time);
`
