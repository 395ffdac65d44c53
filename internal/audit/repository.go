// Package audit provides access to the audit_logs table, the trail of
// statements executed through the raw query console.
package audit

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/agentpppp/medRec/internal/engine"
	"github.com/agentpppp/medRec/internal/infrastructure/database"
)

// ActionRawQuery is recorded for every console execution.
const ActionRawQuery = "raw_query"

// Listing limits.
const (
	defaultLimit = 50
	maxLimit     = 200

	// maxStatementLength caps the stored statement text in bytes.
	maxStatementLength = 512
)

// AuditLog represents a single audit trail entry.
type AuditLog struct { //nolint:revive // audit.AuditLog is clearer than audit.Log in calling code
	ID         string    `json:"id"`
	Action     string    `json:"action"`
	Statement  string    `json:"statement"`
	ParamCount int       `json:"param_count"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
	Source     string    `json:"source,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Filter controls which audit logs to return.
type Filter struct {
	Action     string // optional: filter by action
	FailedOnly bool   // optional: only unsuccessful executions
	Limit      int    // default 50, max 200
	Offset     int    // pagination offset
}

// ListResult contains the paginated audit log results.
type ListResult struct {
	Logs   []AuditLog `json:"logs"`
	Total  int        `json:"total"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
}

// Repository defines the interface for audit log operations.
type Repository interface {
	Create(ctx context.Context, log *AuditLog) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository stores audit logs through the engine worker.
type SQLiteRepository struct {
	conn engine.Connector
}

// NewSQLiteRepository creates a new audit log repository.
func NewSQLiteRepository(conn engine.Connector) *SQLiteRepository {
	return &SQLiteRepository{conn: conn}
}

// auditRow is the scan target for audit_logs.
type auditRow struct {
	ID         string             `db:"id"`
	Action     string             `db:"action"`
	Statement  string             `db:"statement"`
	ParamCount int                `db:"param_count"`
	Success    bool               `db:"success"`
	Error      *string            `db:"error"`
	Source     *string            `db:"source"`
	CreatedAt  database.Timestamp `db:"created_at"`
}

// Create inserts a new audit log entry. The ID and CreatedAt are generated if empty.
func (r *SQLiteRepository) Create(ctx context.Context, log *AuditLog) error {
	if log.ID == "" {
		log.ID = "aud-" + uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	log.Statement = truncate(log.Statement, maxStatementLength)

	w, err := r.conn.Conn(ctx)
	if err != nil {
		return fmt.Errorf("inserting audit log: %w", err)
	}

	err = w.Do(ctx, func(ctx context.Context, db *database.DB) error {
		_, err := db.ExecContext(ctx,
			`INSERT INTO audit_logs (id, action, statement, param_count, success, error, source, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			log.ID, log.Action, log.Statement, log.ParamCount, log.Success,
			nullableString(log.Error), nullableString(log.Source),
			database.Timestamp{Time: log.CreatedAt},
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("inserting audit log: %w", err)
	}

	return nil
}

// nullableString returns nil for empty strings, or the string otherwise.
// Used for nullable TEXT columns in SQLite.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// List returns audit logs matching the filter, ordered by most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any

	if filter.Action != "" {
		conditions = append(conditions, "action = ?")
		args = append(args, filter.Action)
	}
	if filter.FailedOnly {
		conditions = append(conditions, "success = 0")
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	w, err := r.conn.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing audit logs: %w", err)
	}

	var (
		total int
		rows  []auditRow
	)
	err = w.Do(ctx, func(ctx context.Context, db *database.DB) error {
		countQuery := "SELECT COUNT(*) FROM audit_logs " + where //nolint:gosec // WHERE built from fixed conditions
		if err := db.GetContext(ctx, &total, countQuery, args...); err != nil {
			return fmt.Errorf("counting audit logs: %w", err)
		}

		query := "SELECT id, action, statement, param_count, success, error, source, created_at FROM audit_logs " + //nolint:gosec // WHERE built from fixed conditions
			where + " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
		pageArgs := append(append([]any{}, args...), filter.Limit, filter.Offset)
		if err := db.SelectContext(ctx, &rows, query, pageArgs...); err != nil {
			return fmt.Errorf("querying audit logs: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logs := make([]AuditLog, 0, len(rows))
	for _, row := range rows {
		log := AuditLog{
			ID:         row.ID,
			Action:     row.Action,
			Statement:  row.Statement,
			ParamCount: row.ParamCount,
			Success:    row.Success,
			CreatedAt:  row.CreatedAt.Time,
		}
		if row.Error != nil {
			log.Error = *row.Error
		}
		if row.Source != nil {
			log.Source = *row.Source
		}
		logs = append(logs, log)
	}

	return &ListResult{
		Logs:   logs,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}, nil
}
