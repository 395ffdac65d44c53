package patient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/agentpppp/medRec/internal/audit"
	"github.com/agentpppp/medRec/internal/engine"
	"github.com/agentpppp/medRec/internal/infrastructure/database"
)

// DefaultRawQuery is the statement a console starts with.
const DefaultRawQuery = "SELECT * FROM patients ORDER BY created_at DESC"

// errEmptyStatement is reported for blank console input.
var errEmptyStatement = errors.New("empty SQL statement")

// Row is one result row of a raw query, keeping the engine's column order.
type Row struct {
	Columns []string
	Values  []any
}

// Get returns the value of the named column.
func (r Row) Get(column string) (any, bool) {
	for i, c := range r.Columns {
		if c == column {
			return r.Values[i], true
		}
	}
	return nil, false
}

// MarshalJSON encodes the row as an object whose keys follow column order.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range r.Columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.Values[i])
		if err != nil {
			return nil, fmt.Errorf("encoding column %s: %w", c, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// QueryResult is the envelope returned for every raw query.
// On failure Data is empty (never nil) and Error holds the engine's message.
type QueryResult struct {
	Success   bool     `json:"success"`
	Columns   []string `json:"columns"`
	Data      []Row    `json:"data"`
	Error     *string  `json:"error"`
	Truncated bool     `json:"truncated,omitempty"`
}

func failedResult(err error) QueryResult {
	msg := fmt.Errorf("%w: %w", ErrQueryFailure, err).Error()
	return QueryResult{
		Success: false,
		Columns: []string{},
		Data:    []Row{},
		Error:   &msg,
	}
}

// Auditor records console executions.
type Auditor interface {
	Create(ctx context.Context, log *audit.AuditLog) error
}

// ConsoleConfig holds optional console collaborators.
type ConsoleConfig struct {
	// MaxRows truncates results beyond this many rows. Zero means unlimited.
	MaxRows int

	// Auditor, if set, receives one entry per execution.
	Auditor Auditor

	// Recorder, if set, receives operation telemetry.
	Recorder Recorder

	// Logger defaults to discarding.
	Logger Logger
}

// Console executes arbitrary SQL against the registry.
//
// It is a trusted, administrative entry point: any statement is passed to the
// engine as written, so whoever can reach a Console can read, change or
// destroy every record. Never wire it to unauthenticated end-user input.
type Console struct {
	conn engine.Connector
	cfg  ConsoleConfig
}

// NewTrustedConsole creates a Console. The name is deliberate: callers opt in
// to running unreviewed SQL.
func NewTrustedConsole(conn engine.Connector, cfg ConsoleConfig) *Console {
	if cfg.Logger == nil {
		cfg.Logger = noopLogger{}
	}
	return &Console{conn: conn, cfg: cfg}
}

// ExecuteRaw runs sql with positional params and reports the outcome in a
// QueryResult. It never returns an error and never panics; failures of any
// kind, including engine initialisation, land in the envelope.
//
// Placeholders use the engine's syntax (?, ?NNN, $NNN, :name).
func (c *Console) ExecuteRaw(ctx context.Context, sql string, params ...any) (result QueryResult) {
	start := time.Now()
	engineReady := false
	defer func() {
		if r := recover(); r != nil {
			c.cfg.Logger.Error("raw query panicked", "panic", r)
			result = failedResult(fmt.Errorf("%v", r))
		}
		recordOperation(c.cfg.Recorder, OpExecuteRaw, result.Success, time.Since(start))
		// Without an engine there is nowhere to write the entry.
		if engineReady {
			c.audit(ctx, sql, len(params), result)
		}
	}()

	if strings.TrimSpace(sql) == "" {
		return failedResult(errEmptyStatement)
	}

	w, err := c.conn.Conn(ctx)
	if err != nil {
		return failedResult(err)
	}
	engineReady = true

	result, err = c.execute(ctx, w, sql, params)
	if err != nil {
		c.cfg.Logger.Debug("raw query failed", "error", err)
		return failedResult(err)
	}
	return result
}

// execute runs the statement on the worker and collects every row.
func (c *Console) execute(ctx context.Context, w *engine.Worker, sql string, params []any) (QueryResult, error) {
	result := QueryResult{Success: true, Columns: []string{}, Data: []Row{}}

	err := w.Do(ctx, func(ctx context.Context, db *database.DB) error {
		rows, err := db.QueryxContext(ctx, sql, params...)
		if err != nil {
			return err
		}
		defer rows.Close()

		cols, err := rows.Columns()
		if err != nil {
			return err
		}
		result.Columns = cols

		for rows.Next() {
			if c.cfg.MaxRows > 0 && len(result.Data) >= c.cfg.MaxRows {
				result.Truncated = true
				break
			}
			values, err := rows.SliceScan()
			if err != nil {
				return err
			}
			for i, v := range values {
				values[i] = jsonValue(v)
			}
			result.Data = append(result.Data, Row{Columns: cols, Values: values})
		}
		return rows.Err()
	})
	if err != nil {
		return QueryResult{}, err
	}
	return result, nil
}

// jsonValue converts a scanned value into one encoding/json can represent.
// Text comes back as []byte and becomes a string. Non-finite floats
// (SQLite yields +Inf for 1e999) become "+Inf", "-Inf" or "NaN".
func jsonValue(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case float64:
		if math.IsInf(x, 0) || math.IsNaN(x) {
			return strconv.FormatFloat(x, 'g', -1, 64)
		}
	}
	return v
}

// audit records the execution. Failures are logged and otherwise ignored.
func (c *Console) audit(ctx context.Context, sql string, paramCount int, result QueryResult) {
	if c.cfg.Auditor == nil {
		return
	}

	entry := &audit.AuditLog{
		Action:     audit.ActionRawQuery,
		Statement:  sql,
		ParamCount: paramCount,
		Success:    result.Success,
		Source:     SourceFromContext(ctx),
	}
	if result.Error != nil {
		entry.Error = *result.Error
	}

	if err := c.cfg.Auditor.Create(context.WithoutCancel(ctx), entry); err != nil {
		c.cfg.Logger.Warn("recording raw query audit entry failed", "error", err)
	}
}

type sourceKey struct{}

// WithSource tags ctx with the origin of a console call (for example a
// request ID). It is stored in the audit trail.
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, sourceKey{}, source)
}

// SourceFromContext returns the origin set by WithSource, if any.
func SourceFromContext(ctx context.Context) string {
	s, _ := ctx.Value(sourceKey{}).(string)
	return s
}
