package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"picoyplaca/internal/constants"
	"picoyplaca/pkg/metrics"
)

// PostgresRepository stores audit records in audit_logs and answers the
// admin log queries.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Name() string {
	return constants.AuditSinkPostgres
}

// Write inserts rec. City and vehicle references that do not resolve to an
// existing row are stored as NULL.
func (r *PostgresRepository) Write(ctx context.Context, rec Record) (err error) {
	defer observe("insert", time.Now(), &err)

	query := `
		INSERT INTO audit_logs (id, username, method, endpoint, body, vehicle_plate, result, city_id, vehicle_id, created_at)
		VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			(SELECT id FROM cities WHERE id::text = $8),
			(SELECT id FROM vehicles WHERE id::text = $9),
			$10
		)
		ON CONFLICT (id) DO NOTHING
	`
	_, err = r.db.ExecContext(ctx, query,
		rec.ID, rec.User, rec.Method, rec.Endpoint, nullString(rec.Body), nullString(rec.VehiclePlate),
		rec.Result, rec.CityID, rec.VehicleID, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit record: %w", err)
	}
	return nil
}

func (r *PostgresRepository) List(ctx context.Context, f Filter) (records []Record, err error) {
	defer observe("list", time.Now(), &err)

	where, args := whereClause(f)
	args = append(args, f.Limit)

	query := fmt.Sprintf(`
		SELECT id, username, method, endpoint, COALESCE(body, ''), COALESCE(vehicle_plate, ''), result,
			COALESCE(city_id::text, ''), COALESCE(vehicle_id::text, ''), created_at
		FROM audit_logs
		%s
		ORDER BY created_at DESC
		LIMIT $%d
	`, where, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", err)
	}
	defer rows.Close()

	records = []Record{}
	for rows.Next() {
		var rec Record
		if err := rows.Scan(
			&rec.ID, &rec.User, &rec.Method, &rec.Endpoint, &rec.Body, &rec.VehiclePlate, &rec.Result,
			&rec.CityID, &rec.VehicleID, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *PostgresRepository) Stats(ctx context.Context, cityID string) (stats Stats, err error) {
	defer observe("stats", time.Now(), &err)

	where, args := whereClause(Filter{CityID: cityID})
	stats = NewStats()

	totals := fmt.Sprintf(`
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE result LIKE 'SUCCESS%%'),
			COUNT(*) FILTER (WHERE result LIKE 'ERROR%%')
		FROM audit_logs %s
	`, where)
	if err = r.db.QueryRowContext(ctx, totals, args...).Scan(
		&stats.Total, &stats.SuccessfulQueries, &stats.ErrorQueries,
	); err != nil {
		return Stats{}, fmt.Errorf("failed to count audit records: %w", err)
	}

	if err = r.groupCount(ctx, "endpoint", where, args, stats.ByEndpoint); err != nil {
		return Stats{}, err
	}
	if err = r.groupCount(ctx, "username", where, args, stats.ByUser); err != nil {
		return Stats{}, err
	}
	return stats, nil
}

func (r *PostgresRepository) groupCount(ctx context.Context, column, where string, args []interface{}, into map[string]int) error {
	query := fmt.Sprintf(`SELECT %s, COUNT(*) FROM audit_logs %s GROUP BY %s`, column, where, column)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to group audit records by %s: %w", column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return fmt.Errorf("failed to scan %s count: %w", column, err)
		}
		into[key] = count
	}
	return rows.Err()
}

func whereClause(f Filter) (string, []interface{}) {
	var conds []string
	var args []interface{}

	add := func(cond string, value interface{}) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.User != "" {
		add("username = $%d", f.User)
	}
	if f.VehiclePlate != "" {
		add("vehicle_plate = $%d", f.VehiclePlate)
	}
	if f.CityID != "" {
		add("city_id::text = $%d", f.CityID)
	}
	if f.VehicleID != "" {
		add("vehicle_id::text = $%d", f.VehicleID)
	}
	if !f.From.IsZero() {
		add("created_at >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("created_at <= $%d", f.To)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func observe(operation string, start time.Time, err *error) {
	metrics.ObserveQuery("audit_logs", operation, start, *err)
}
