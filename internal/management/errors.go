package management

import (
	"errors"
	"fmt"

	"picoyplaca/internal/circulation"
	pkgerrors "picoyplaca/pkg/errors"
)

// CityNotFound is returned wherever a city id does not resolve.
func CityNotFound(id string) *pkgerrors.Error {
	return pkgerrors.ErrNotFound.
		WithLocalized(
			fmt.Sprintf("La ciudad con ID %s no existe.", id),
			fmt.Sprintf("City with ID %s does not exist.", id),
		).
		WithDetail("id", id)
}

func ruleNotFound(id string) *pkgerrors.Error {
	return pkgerrors.ErrNotFound.
		WithLocalized(
			fmt.Sprintf("La regla con ID %s no existe.", id),
			fmt.Sprintf("Rule with ID %s does not exist.", id),
		).
		WithDetail("id", id)
}

func vehicleNotFound(id string) *pkgerrors.Error {
	return pkgerrors.ErrNotFound.
		WithLocalized(
			fmt.Sprintf("El vehículo con ID %s no existe.", id),
			fmt.Sprintf("Vehicle with ID %s does not exist.", id),
		).
		WithDetail("id", id)
}

func duplicateRule(day circulation.Weekday) *pkgerrors.Error {
	return pkgerrors.ErrConflict.
		WithLocalized(
			fmt.Sprintf("Ya existe una regla para el día %s en esta ciudad.", day.Spanish()),
			fmt.Sprintf("A rule already exists for %s in this city.", day.English()),
		).
		WithDetail("dayOfWeek", day.Spanish())
}

func duplicateCity(name string) *pkgerrors.Error {
	return pkgerrors.ErrConflict.
		WithLocalized(
			fmt.Sprintf("La ciudad %q ya existe.", name),
			fmt.Sprintf("City %q already exists.", name),
		).
		WithDetail("name", name)
}

func duplicatePlate(plate string) *pkgerrors.Error {
	return pkgerrors.ErrConflict.
		WithLocalized(
			fmt.Sprintf("Ya existe un vehículo con la placa %s.", plate),
			fmt.Sprintf("A vehicle with plate %s already exists.", plate),
		).
		WithDetail("licensePlate", plate)
}

var errVehicleNotOwned = pkgerrors.ErrForbidden.WithLocalized(
	"No puedes modificar un vehículo que no te pertenece.",
	"You cannot modify a vehicle that does not belong to you.",
)

// errUniqueViolation marks a repository write rejected by a unique index.
var errUniqueViolation = errors.New("unique constraint violation")

// serviceError passes through errors that already carry an API status and
// hides everything else behind an internal error.
func serviceError(err error) error {
	var appErr *pkgerrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	return pkgerrors.Wrap(err, pkgerrors.ErrInternal)
}
