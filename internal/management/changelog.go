package management

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PostgresChangeLog keeps the history of rule writes in rule_change_logs.
type PostgresChangeLog struct {
	db *sql.DB
}

func NewChangeLog(db *sql.DB) *PostgresChangeLog {
	return &PostgresChangeLog{db: db}
}

func (l *PostgresChangeLog) RecordChange(ctx context.Context, change *RuleChange) (err error) {
	defer observe("rule_change_logs", "create", time.Now(), &err)

	if change.ID == "" {
		change.ID = uuid.New().String()
	}
	if change.CreatedAt.IsZero() {
		change.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO rule_change_logs (id, rule_id, action, old_value, new_value, changed_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = l.db.ExecContext(ctx, query,
		change.ID, change.RuleID, change.Action,
		nullJSON(change.OldValue), nullJSON(change.NewValue),
		change.ChangedBy, change.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record rule change: %w", err)
	}
	return nil
}

func (l *PostgresChangeLog) ListChanges(ctx context.Context, ruleID string, limit int) (changes []RuleChange, err error) {
	defer observe("rule_change_logs", "list", time.Now(), &err)

	query := `
		SELECT id, rule_id, action, old_value, new_value, changed_by, created_at
		FROM rule_change_logs
		WHERE rule_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := l.db.QueryContext(ctx, query, ruleID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list rule changes: %w", err)
	}
	defer rows.Close()

	changes = []RuleChange{}
	for rows.Next() {
		var (
			change   RuleChange
			oldValue []byte
			newValue []byte
		)
		if err := rows.Scan(&change.ID, &change.RuleID, &change.Action, &oldValue, &newValue, &change.ChangedBy, &change.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan rule change: %w", err)
		}
		if len(oldValue) > 0 {
			change.OldValue = json.RawMessage(oldValue)
		}
		if len(newValue) > 0 {
			change.NewValue = json.RawMessage(newValue)
		}
		changes = append(changes, change)
	}
	return changes, rows.Err()
}

func nullJSON(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
