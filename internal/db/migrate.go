package db

import (
	"fmt"

	"github.com/router-for-me/CandidatePortal/internal/models"
	"gorm.io/gorm"
)

// checkAuthRateLimitFunction installs the atomic check-and-increment used by the shared limiter.
// The row lock taken by SELECT ... FOR UPDATE serializes concurrent checks for one key.
const checkAuthRateLimitFunction = `
CREATE OR REPLACE FUNCTION check_auth_rate_limit(
	p_action text,
	p_subject_hash text,
	p_window_seconds integer,
	p_max_attempts integer,
	p_block_seconds integer,
	p_now timestamptz DEFAULT now()
)
RETURNS TABLE (allowed boolean, retry_after_seconds integer)
LANGUAGE plpgsql
AS $$
#variable_conflict use_column
DECLARE
	rec auth_rate_limits%ROWTYPE;
BEGIN
	INSERT INTO auth_rate_limits (action, subject_hash, attempt_count, window_started_at, blocked_until, updated_at)
	VALUES (p_action, p_subject_hash, 1, p_now, NULL, p_now)
	ON CONFLICT (action, subject_hash) DO NOTHING;
	IF FOUND THEN
		RETURN QUERY SELECT true, 0;
		RETURN;
	END IF;

	SELECT * INTO rec
	FROM auth_rate_limits
	WHERE action = p_action AND subject_hash = p_subject_hash
	FOR UPDATE;

	IF rec.blocked_until IS NOT NULL AND rec.blocked_until > p_now THEN
		RETURN QUERY SELECT false, GREATEST(1, CEIL(EXTRACT(EPOCH FROM (rec.blocked_until - p_now)))::integer);
		RETURN;
	END IF;

	IF rec.blocked_until IS NOT NULL
		OR p_now >= rec.window_started_at + make_interval(secs => p_window_seconds) THEN
		UPDATE auth_rate_limits
		SET attempt_count = 1, window_started_at = p_now, blocked_until = NULL, updated_at = p_now
		WHERE action = p_action AND subject_hash = p_subject_hash;
		RETURN QUERY SELECT true, 0;
		RETURN;
	END IF;

	IF rec.attempt_count + 1 > p_max_attempts THEN
		UPDATE auth_rate_limits
		SET attempt_count = rec.attempt_count + 1,
			blocked_until = p_now + make_interval(secs => p_block_seconds),
			updated_at = p_now
		WHERE action = p_action AND subject_hash = p_subject_hash;
		RETURN QUERY SELECT false, p_block_seconds;
		RETURN;
	END IF;

	UPDATE auth_rate_limits
	SET attempt_count = rec.attempt_count + 1, updated_at = p_now
	WHERE action = p_action AND subject_hash = p_subject_hash;
	RETURN QUERY SELECT true, 0;
END;
$$;
`

// Migrate runs database migrations for the current dialect.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	switch DialectName(conn) {
	case DialectSQLite:
		return migrateSQLite(conn)
	case DialectPostgres, "":
		return migratePostgres(conn)
	default:
		return fmt.Errorf("db: unsupported dialect: %s", DialectName(conn))
	}
}

// migratePostgres creates the portal tables and the shared limiter function.
func migratePostgres(conn *gorm.DB) error {
	if errAutoMigrate := conn.AutoMigrate(
		&models.AuthRateLimit{},
		&models.AnalyticsEvent{},
	); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}
	if errFunction := conn.Exec(checkAuthRateLimitFunction).Error; errFunction != nil {
		return fmt.Errorf("db: create check_auth_rate_limit: %w", errFunction)
	}
	if errRevoke := conn.Exec(`
		REVOKE ALL ON TABLE auth_rate_limits FROM PUBLIC
	`).Error; errRevoke != nil {
		return fmt.Errorf("db: revoke auth_rate_limits: %w", errRevoke)
	}
	return nil
}

// migrateSQLite creates the analytics table for local development.
// The shared limiter requires PostgreSQL and is not installed here.
func migrateSQLite(conn *gorm.DB) error {
	if errAutoMigrate := conn.AutoMigrate(
		&models.AnalyticsEvent{},
	); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}
	return nil
}
