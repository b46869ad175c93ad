package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"chatgate/internal/guard"
)

// AccessRecord is one persisted access-log row.
type AccessRecord struct {
	ID        int64     `json:"id"`
	Endpoint  string    `json:"endpoint"`
	Status    string    `json:"status"`
	ClientIP  string    `json:"client_ip"`
	CreatedAt time.Time `json:"created_at"`
}

// AuditLog persists guard access records. It satisfies guard.AccessLogger;
// insert failures are logged, not propagated, so auditing never blocks
// admission.
type AuditLog struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewAuditLog(db *sql.DB, logger *slog.Logger) *AuditLog {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLog{db: db, logger: logger}
}

// Log records one access entry.
func (a *AuditLog) Log(ctx context.Context, rec guard.Record) {
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO access_log (endpoint, status, client_ip, created_at) VALUES (?, ?, ?, ?)`,
		rec.Endpoint, rec.Status, rec.ClientIP, rec.At,
	)
	if err != nil {
		a.logger.WarnContext(ctx, "audit insert failed", "error", err)
	}
}

// Recent returns the newest access records, most recent first.
func (a *AuditLog) Recent(ctx context.Context, limit int) ([]AccessRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := a.db.QueryContext(ctx,
		`SELECT id, endpoint, status, client_ip, created_at FROM access_log ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list access log: %w", err)
	}
	defer rows.Close()

	var records []AccessRecord
	for rows.Next() {
		var r AccessRecord
		if err := rows.Scan(&r.ID, &r.Endpoint, &r.Status, &r.ClientIP, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan access record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
