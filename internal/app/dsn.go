package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/router-for-me/CandidatePortal/internal/db"
	log "github.com/sirupsen/logrus"
)

// dsnLogFields describes a database DSN for startup logs. Passwords are
// reported only as present or absent.
func dsnLogFields(dsn string) (log.Fields, error) {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return nil, errors.New("empty dsn")
	}
	if db.IsSQLiteDSN(trimmed) {
		path, _, _ := strings.Cut(trimmed[len("file:"):], "?")
		return log.Fields{"db_type": "sqlite", "db_path": strings.TrimSpace(path)}, nil
	}

	cfg, errParse := pgconn.ParseConfig(trimmed)
	if errParse != nil {
		return nil, fmt.Errorf("parse dsn: %w", errParse)
	}
	return log.Fields{
		"db_type":         "postgres",
		"db_host":         cfg.Host,
		"db_port":         cfg.Port,
		"db_user":         cfg.User,
		"db_name":         cfg.Database,
		"db_tls":          cfg.TLSConfig != nil,
		"db_password_set": cfg.Password != "",
	}, nil
}
