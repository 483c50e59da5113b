package management

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"picoyplaca/internal/circulation"
	"picoyplaca/pkg/metrics"
)

const uniqueViolation = "23505"

var errRecordNotFound = errors.New("record not found")

// PostgresRepository stores cities, rules and vehicles.
type PostgresRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func writeError(op string, err error) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("%s: %w (%v)", op, errUniqueViolation, err)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

func expectAffected(res sql.Result) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return errRecordNotFound
	}
	return nil
}

func (r *PostgresRepository) CreateCity(ctx context.Context, city *City) (err error) {
	defer observe("cities", "create", time.Now(), &err)

	if city.ID == "" {
		city.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	city.CreatedAt = now
	city.UpdatedAt = now

	query := `
		INSERT INTO cities (id, name, description, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = r.db.ExecContext(ctx, query,
		city.ID, city.Name, city.Description, city.IsActive, city.CreatedAt, city.UpdatedAt,
	)
	if err != nil {
		return writeError("create city", err)
	}
	return nil
}

func (r *PostgresRepository) ListCities(ctx context.Context) (cities []City, err error) {
	defer observe("cities", "list", time.Now(), &err)

	query := `
		SELECT id, name, description, is_active, created_at, updated_at
		FROM cities
		ORDER BY name
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list cities: %w", err)
	}
	defer rows.Close()

	cities = []City{}
	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context cancelled: %w", err)
		}
		city, err := scanCity(rows)
		if err != nil {
			return nil, err
		}
		cities = append(cities, *city)
	}
	return cities, rows.Err()
}

func (r *PostgresRepository) GetCity(ctx context.Context, id string) (city *City, err error) {
	defer observe("cities", "get", time.Now(), &err)

	if _, parseErr := uuid.Parse(id); parseErr != nil {
		return nil, nil
	}

	query := `
		SELECT id, name, description, is_active, created_at, updated_at
		FROM cities
		WHERE id = $1
	`
	city, err = scanCity(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return city, nil
}

func (r *PostgresRepository) UpdateCity(ctx context.Context, city *City) (err error) {
	defer observe("cities", "update", time.Now(), &err)

	city.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE cities
		SET name = $1, description = $2, is_active = $3, updated_at = $4
		WHERE id = $5
	`
	res, err := r.db.ExecContext(ctx, query, city.Name, city.Description, city.IsActive, city.UpdatedAt, city.ID)
	if err != nil {
		return writeError("update city", err)
	}
	return expectAffected(res)
}

func (r *PostgresRepository) DeleteCity(ctx context.Context, id string) (err error) {
	defer observe("cities", "delete", time.Now(), &err)

	res, err := r.db.ExecContext(ctx, `DELETE FROM cities WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete city: %w", err)
	}
	return expectAffected(res)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCity(row rowScanner) (*City, error) {
	var (
		city        City
		description sql.NullString
	)
	if err := row.Scan(&city.ID, &city.Name, &description, &city.IsActive, &city.CreatedAt, &city.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan city: %w", err)
	}
	if description.Valid {
		city.Description = &description.String
	}
	return &city, nil
}

const ruleColumns = `id, city_id, day_of_week, start_time, end_time, restricted_digits, is_active, created_at, updated_at`

func (r *PostgresRepository) CreateRule(ctx context.Context, rule *Rule) (err error) {
	defer observe("rules", "create", time.Now(), &err)

	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	query := `
		INSERT INTO rules (` + ruleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = r.db.ExecContext(ctx, query,
		rule.ID, rule.CityID, rule.DayOfWeek, rule.StartTime, rule.EndTime,
		pq.Array(rule.RestrictedDigits), rule.IsActive, rule.CreatedAt, rule.UpdatedAt,
	)
	if err != nil {
		return writeError("create rule", err)
	}
	return nil
}

func (r *PostgresRepository) ListRules(ctx context.Context, cityID string) (rules []Rule, err error) {
	defer observe("rules", "list", time.Now(), &err)

	query := `SELECT ` + ruleColumns + ` FROM rules`
	var args []interface{}
	if cityID != "" {
		if _, parseErr := uuid.Parse(cityID); parseErr != nil {
			return []Rule{}, nil
		}
		query += ` WHERE city_id = $1`
		args = append(args, cityID)
	}
	query += ` ORDER BY created_at, id`

	return r.queryRules(ctx, query, args...)
}

func (r *PostgresRepository) GetRule(ctx context.Context, id string) (rule *Rule, err error) {
	defer observe("rules", "get", time.Now(), &err)

	if _, parseErr := uuid.Parse(id); parseErr != nil {
		return nil, nil
	}

	query := `SELECT ` + ruleColumns + ` FROM rules WHERE id = $1`
	rule, err = scanRule(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rule, err
}

func (r *PostgresRepository) FindRuleByCityAndDay(ctx context.Context, cityID string, day circulation.Weekday) (rule *Rule, err error) {
	defer observe("rules", "find_by_city_day", time.Now(), &err)

	query := `SELECT ` + ruleColumns + ` FROM rules WHERE city_id = $1 AND day_of_week = $2 LIMIT 1`
	rule, err = scanRule(r.db.QueryRowContext(ctx, query, cityID, day))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rule, err
}

func (r *PostgresRepository) UpdateRule(ctx context.Context, rule *Rule) (err error) {
	defer observe("rules", "update", time.Now(), &err)

	rule.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE rules
		SET city_id = $1, day_of_week = $2, start_time = $3, end_time = $4,
		    restricted_digits = $5, is_active = $6, updated_at = $7
		WHERE id = $8
	`
	res, err := r.db.ExecContext(ctx, query,
		rule.CityID, rule.DayOfWeek, rule.StartTime, rule.EndTime,
		pq.Array(rule.RestrictedDigits), rule.IsActive, rule.UpdatedAt, rule.ID,
	)
	if err != nil {
		return writeError("update rule", err)
	}
	return expectAffected(res)
}

func (r *PostgresRepository) DeleteRule(ctx context.Context, id string) (err error) {
	defer observe("rules", "delete", time.Now(), &err)

	res, err := r.db.ExecContext(ctx, `DELETE FROM rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	return expectAffected(res)
}

// ActiveRules returns the active rules of cityID in creation order, which is
// the order evaluation walks them in.
func (r *PostgresRepository) ActiveRules(ctx context.Context, cityID string) (out []circulation.Rule, err error) {
	defer observe("rules", "active", time.Now(), &err)

	query := `SELECT ` + ruleColumns + ` FROM rules WHERE city_id = $1 AND is_active ORDER BY created_at, id`
	rules, err := r.queryRules(ctx, query, cityID)
	if err != nil {
		return nil, err
	}

	out = make([]circulation.Rule, 0, len(rules))
	for _, rule := range rules {
		out = append(out, rule.Evaluation())
	}
	return out, nil
}

func (r *PostgresRepository) queryRules(ctx context.Context, query string, args ...interface{}) ([]Rule, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	rules := []Rule{}
	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context cancelled: %w", err)
		}
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, *rule)
	}
	return rules, rows.Err()
}

func scanRule(row rowScanner) (*Rule, error) {
	var rule Rule
	err := row.Scan(
		&rule.ID, &rule.CityID, &rule.DayOfWeek, &rule.StartTime, &rule.EndTime,
		pq.Array(&rule.RestrictedDigits), &rule.IsActive, &rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan rule: %w", err)
	}
	return &rule, nil
}

const vehicleColumns = `id, license_plate, brand, model, year, type, owner_id, created_at, updated_at`

func (r *PostgresRepository) CreateVehicle(ctx context.Context, vehicle *Vehicle) (err error) {
	defer observe("vehicles", "create", time.Now(), &err)

	if vehicle.ID == "" {
		vehicle.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	vehicle.CreatedAt = now
	vehicle.UpdatedAt = now

	query := `
		INSERT INTO vehicles (` + vehicleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = r.db.ExecContext(ctx, query,
		vehicle.ID, vehicle.LicensePlate, vehicle.Brand, vehicle.Model, vehicle.Year,
		vehicle.Type, vehicle.OwnerID, vehicle.CreatedAt, vehicle.UpdatedAt,
	)
	if err != nil {
		return writeError("create vehicle", err)
	}
	return nil
}

func (r *PostgresRepository) ListVehicles(ctx context.Context, ownerID string) (vehicles []Vehicle, err error) {
	defer observe("vehicles", "list", time.Now(), &err)

	query := `SELECT ` + vehicleColumns + ` FROM vehicles`
	var args []interface{}
	if ownerID != "" {
		query += ` WHERE owner_id = $1`
		args = append(args, ownerID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list vehicles: %w", err)
	}
	defer rows.Close()

	vehicles = []Vehicle{}
	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context cancelled: %w", err)
		}
		vehicle, err := scanVehicle(rows)
		if err != nil {
			return nil, err
		}
		vehicles = append(vehicles, *vehicle)
	}
	return vehicles, rows.Err()
}

func (r *PostgresRepository) GetVehicle(ctx context.Context, id string) (vehicle *Vehicle, err error) {
	defer observe("vehicles", "get", time.Now(), &err)

	if _, parseErr := uuid.Parse(id); parseErr != nil {
		return nil, nil
	}

	query := `SELECT ` + vehicleColumns + ` FROM vehicles WHERE id = $1`
	vehicle, err = scanVehicle(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return vehicle, err
}

// FindVehicleByPlate looks a vehicle up by its normalized plate. It returns
// nil without error when no vehicle has that plate.
func (r *PostgresRepository) FindVehicleByPlate(ctx context.Context, plate string) (vehicle *Vehicle, err error) {
	defer observe("vehicles", "find_by_plate", time.Now(), &err)

	query := `SELECT ` + vehicleColumns + ` FROM vehicles WHERE license_plate = $1`
	vehicle, err = scanVehicle(r.db.QueryRowContext(ctx, query, circulation.NormalizePlate(plate)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return vehicle, err
}

func (r *PostgresRepository) UpdateVehicle(ctx context.Context, vehicle *Vehicle) (err error) {
	defer observe("vehicles", "update", time.Now(), &err)

	vehicle.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE vehicles
		SET license_plate = $1, brand = $2, model = $3, year = $4, type = $5, updated_at = $6
		WHERE id = $7
	`
	res, err := r.db.ExecContext(ctx, query,
		vehicle.LicensePlate, vehicle.Brand, vehicle.Model, vehicle.Year,
		vehicle.Type, vehicle.UpdatedAt, vehicle.ID,
	)
	if err != nil {
		return writeError("update vehicle", err)
	}
	return expectAffected(res)
}

func (r *PostgresRepository) DeleteVehicle(ctx context.Context, id string) (err error) {
	defer observe("vehicles", "delete", time.Now(), &err)

	res, err := r.db.ExecContext(ctx, `DELETE FROM vehicles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete vehicle: %w", err)
	}
	return expectAffected(res)
}

func scanVehicle(row rowScanner) (*Vehicle, error) {
	var vehicle Vehicle
	err := row.Scan(
		&vehicle.ID, &vehicle.LicensePlate, &vehicle.Brand, &vehicle.Model, &vehicle.Year,
		&vehicle.Type, &vehicle.OwnerID, &vehicle.CreatedAt, &vehicle.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan vehicle: %w", err)
	}
	return &vehicle, nil
}

func observe(repository, operation string, start time.Time, err *error) {
	metrics.ObserveQuery(repository, operation, start, *err)
}
