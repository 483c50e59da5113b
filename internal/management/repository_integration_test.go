//go:build integration

package management

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"picoyplaca/internal/circulation"
	"picoyplaca/internal/testinfra"
)

func newIntegrationRepo(t *testing.T) (*PostgresRepository, *testinfra.Infra) {
	t.Helper()
	infra := testinfra.Setup(t, testinfra.Options{Postgres: true})
	return NewRepository(infra.PostgresDB), infra
}

func seedCity(t *testing.T, repo *PostgresRepository, name string) *City {
	t.Helper()
	city := &City{Name: name, IsActive: true}
	require.NoError(t, repo.CreateCity(context.Background(), city))
	return city
}

func seedRule(t *testing.T, repo *PostgresRepository, cityID string, day circulation.Weekday, start, end string, active bool, digits ...string) *Rule {
	t.Helper()
	rule := &Rule{
		CityID:           cityID,
		DayOfWeek:        day,
		StartTime:        mustTime(t, start),
		EndTime:          mustTime(t, end),
		RestrictedDigits: digits,
		IsActive:         active,
	}
	require.NoError(t, repo.CreateRule(context.Background(), rule))
	return rule
}

func mustTime(t *testing.T, s string) circulation.TimeOfDay {
	t.Helper()
	tod, err := circulation.ParseTimeOfDay(s)
	require.NoError(t, err)
	return tod
}

func TestPostgresRepository_Cities(t *testing.T) {
	repo, _ := newIntegrationRepo(t)
	ctx := context.Background()

	bogota := seedCity(t, repo, "Bogotá")
	seedCity(t, repo, "Armenia")

	got, err := repo.GetCity(ctx, bogota.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Bogotá", got.Name)
	assert.True(t, got.IsActive)

	cities, err := repo.ListCities(ctx)
	require.NoError(t, err)
	require.Len(t, cities, 2)
	assert.Equal(t, "Armenia", cities[0].Name)

	err = repo.CreateCity(ctx, &City{Name: "Bogotá"})
	assert.True(t, errors.Is(err, errUniqueViolation))

	description := "capital"
	bogota.Description = &description
	require.NoError(t, repo.UpdateCity(ctx, bogota))
	got, err = repo.GetCity(ctx, bogota.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Description)
	assert.Equal(t, "capital", *got.Description)

	missing, err := repo.GetCity(ctx, "not-a-uuid")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, repo.DeleteCity(ctx, bogota.ID))
	assert.True(t, errors.Is(repo.DeleteCity(ctx, bogota.ID), errRecordNotFound))
}

func TestPostgresRepository_Rules(t *testing.T) {
	repo, _ := newIntegrationRepo(t)
	ctx := context.Background()

	city := seedCity(t, repo, "Bogotá")
	monday := seedRule(t, repo, city.ID, circulation.Monday, "06:00", "08:30", true, "1", "2")
	tuesday := seedRule(t, repo, city.ID, circulation.Tuesday, "06:00", "08:30", true, "3", "4")
	seedRule(t, repo, city.ID, circulation.Wednesday, "06:00", "08:30", false, "5", "6")

	t.Run("round trips day, window and digits", func(t *testing.T) {
		got, err := repo.GetRule(ctx, monday.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, circulation.Monday, got.DayOfWeek)
		assert.Equal(t, "06:00", got.StartTime.String())
		assert.Equal(t, "08:30", got.EndTime.String())
		assert.Equal(t, []string{"1", "2"}, got.RestrictedDigits)
	})

	t.Run("active rules skip inactive ones in creation order", func(t *testing.T) {
		active, err := repo.ActiveRules(ctx, city.ID)
		require.NoError(t, err)
		require.Len(t, active, 2)
		assert.Equal(t, monday.ID, active[0].ID)
		assert.Equal(t, tuesday.ID, active[1].ID)
		assert.Equal(t, circulation.Tuesday, active[1].Weekday)
	})

	t.Run("one rule per city and day", func(t *testing.T) {
		dup := &Rule{
			CityID:           city.ID,
			DayOfWeek:        circulation.Monday,
			StartTime:        mustTime(t, "15:00"),
			EndTime:          mustTime(t, "19:30"),
			RestrictedDigits: []string{"1"},
			IsActive:         true,
		}
		err := repo.CreateRule(ctx, dup)
		assert.True(t, errors.Is(err, errUniqueViolation))

		found, err := repo.FindRuleByCityAndDay(ctx, city.ID, circulation.Monday)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, monday.ID, found.ID)
	})

	t.Run("window must not be reversed", func(t *testing.T) {
		monday.StartTime = mustTime(t, "09:00")
		assert.Error(t, repo.UpdateRule(ctx, monday))
	})

	t.Run("deleting the city removes its rules", func(t *testing.T) {
		require.NoError(t, repo.DeleteCity(ctx, city.ID))
		rules, err := repo.ListRules(ctx, city.ID)
		require.NoError(t, err)
		assert.Empty(t, rules)
	})
}

func TestPostgresRepository_Vehicles(t *testing.T) {
	repo, _ := newIntegrationRepo(t)
	ctx := context.Background()

	vehicle := &Vehicle{LicensePlate: "ABC123", Brand: "Mazda", Model: "3", Year: 2020, Type: "car", OwnerID: "user-ana"}
	require.NoError(t, repo.CreateVehicle(ctx, vehicle))
	require.NoError(t, repo.CreateVehicle(ctx, &Vehicle{LicensePlate: "XYZ98A", Brand: "Yamaha", Model: "NMAX", Year: 2022, Type: "motorcycle", OwnerID: "user-luis"}))

	found, err := repo.FindVehicleByPlate(ctx, "abc123")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, vehicle.ID, found.ID)
	assert.Equal(t, "user-ana", found.OwnerID)

	none, err := repo.FindVehicleByPlate(ctx, "QQQ111")
	require.NoError(t, err)
	assert.Nil(t, none)

	owned, err := repo.ListVehicles(ctx, "user-ana")
	require.NoError(t, err)
	require.Len(t, owned, 1)

	all, err := repo.ListVehicles(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	err = repo.CreateVehicle(ctx, &Vehicle{LicensePlate: "ABC123", Brand: "Kia", Model: "Rio", Year: 2019, Type: "car", OwnerID: "user-luis"})
	assert.True(t, errors.Is(err, errUniqueViolation))

	vehicle.Year = 2021
	require.NoError(t, repo.UpdateVehicle(ctx, vehicle))
	got, err := repo.GetVehicle(ctx, vehicle.ID)
	require.NoError(t, err)
	assert.Equal(t, 2021, got.Year)

	require.NoError(t, repo.DeleteVehicle(ctx, vehicle.ID))
	got, err = repo.GetVehicle(ctx, vehicle.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPostgresChangeLog(t *testing.T) {
	repo, infra := newIntegrationRepo(t)
	changeLog := NewChangeLog(infra.PostgresDB)
	ctx := context.Background()

	city := seedCity(t, repo, "Bogotá")
	rule := seedRule(t, repo, city.ID, circulation.Monday, "06:00", "08:30", true, "1", "2")

	created, err := json.Marshal(rule)
	require.NoError(t, err)

	require.NoError(t, changeLog.RecordChange(ctx, &RuleChange{
		RuleID: rule.ID, Action: "create", NewValue: created, ChangedBy: "admin@example.com",
	}))
	require.NoError(t, changeLog.RecordChange(ctx, &RuleChange{
		RuleID: rule.ID, Action: "delete", OldValue: created, ChangedBy: "admin@example.com",
	}))

	changes, err := changeLog.ListChanges(ctx, rule.ID, 10)
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, "delete", changes[0].Action)
	assert.Nil(t, changes[0].NewValue)
	assert.JSONEq(t, string(created), string(changes[1].NewValue))

	limited, err := changeLog.ListChanges(ctx, rule.ID, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
