package ratelimit

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// checkAuthRateLimitSQL invokes the stored procedure installed by db.Migrate.
const checkAuthRateLimitSQL = `SELECT allowed, retry_after_seconds
FROM check_auth_rate_limit($1, $2, $3, $4, $5, $6)`

// rowQuerier is the subset of pgxpool.Pool used by PostgresCaller.
type rowQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresCaller runs check_auth_rate_limit through a pgx pool.
type PostgresCaller struct {
	pool  *pgxpool.Pool
	query rowQuerier
}

// NewPostgresCaller opens a pool for the privileged DSN.
func NewPostgresCaller(ctx context.Context, dsn string) (*PostgresCaller, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, ErrMissingSharedCredential
	}
	pool, errPool := pgxpool.New(ctx, dsn)
	if errPool != nil {
		return nil, errPool
	}
	return &PostgresCaller{pool: pool, query: pool}, nil
}

// CheckAndIncrement calls the stored procedure and returns its first row.
func (c *PostgresCaller) CheckAndIncrement(ctx context.Context, req SharedRequest) (*SharedRow, error) {
	if c == nil || c.query == nil {
		return nil, errors.New("rate limit postgres: not initialized")
	}
	rows, errQuery := c.query.Query(ctx, checkAuthRateLimitSQL,
		string(req.Action),
		req.SubjectHash,
		req.WindowSeconds,
		req.MaxAttempts,
		req.BlockSeconds,
		req.Now.UTC(),
	)
	if errQuery != nil {
		return nil, errQuery
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	var row SharedRow
	if errScan := rows.Scan(&row.Allowed, &row.RetryAfterSeconds); errScan != nil {
		return nil, errScan
	}
	return &row, nil
}

// Close releases the pool.
func (c *PostgresCaller) Close() error {
	if c != nil && c.pool != nil {
		c.pool.Close()
	}
	return nil
}
