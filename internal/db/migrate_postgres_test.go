package db

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/router-for-me/CandidatePortal/internal/models"
	"github.com/router-for-me/CandidatePortal/internal/testutil/containers"
)

func TestMigratePostgresIsIdempotent(t *testing.T) {
	conn, err := Open(containers.PostgresDSN(t))
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	if sqlDB, errDB := conn.DB(); errDB == nil {
		t.Cleanup(func() { _ = sqlDB.Close() })
	}
	if DialectName(conn) != DialectPostgres {
		t.Fatalf("expected postgres dialect, got %q", DialectName(conn))
	}

	for i := 0; i < 2; i++ {
		if errMigrate := Migrate(conn); errMigrate != nil {
			t.Fatalf("migrate run %d: %v", i+1, errMigrate)
		}
	}
	for _, model := range []any{&models.AuthRateLimit{}, &models.AnalyticsEvent{}} {
		if !conn.Migrator().HasTable(model) {
			t.Fatalf("expected table for %T", model)
		}
	}

	var functions int64
	if errCount := conn.Raw(`SELECT count(*) FROM pg_proc WHERE proname = 'check_auth_rate_limit'`).Scan(&functions).Error; errCount != nil {
		t.Fatalf("count functions: %v", errCount)
	}
	if functions != 1 {
		t.Fatalf("expected a single check_auth_rate_limit, got %d", functions)
	}

	type decision struct {
		Allowed           bool
		RetryAfterSeconds int
	}
	subject := uuid.NewString()
	now := time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)
	var got []decision
	for i := 0; i < 2; i++ {
		var d decision
		errCall := conn.Raw(`SELECT allowed, retry_after_seconds FROM check_auth_rate_limit(?, ?, ?, ?, ?, ?)`,
			"login", subject, 60, 1, 30, now).Scan(&d).Error
		if errCall != nil {
			t.Fatalf("call check_auth_rate_limit: %v", errCall)
		}
		got = append(got, d)
	}
	if !got[0].Allowed || got[1].Allowed || got[1].RetryAfterSeconds != 30 {
		t.Fatalf("unexpected decisions %+v", got)
	}

	var row models.AuthRateLimit
	if errFind := conn.First(&row, "action = ? AND subject_hash = ?", "login", subject).Error; errFind != nil {
		t.Fatalf("load row: %v", errFind)
	}
	if row.AttemptCount != 2 || row.BlockedUntil == nil || !row.BlockedUntil.Equal(now.Add(30*time.Second)) {
		t.Fatalf("unexpected stored row %+v", row)
	}
}
