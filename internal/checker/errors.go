package checker

import (
	"errors"

	"picoyplaca/internal/circulation"
	pkgerrors "picoyplaca/pkg/errors"
)

var (
	errDayFieldsRequired = pkgerrors.ErrValidation.WithLocalized(
		"Debes enviar plate, cityId y date.",
		"You must provide plate, cityId and date.",
	)
	errWeekFieldsRequired = pkgerrors.ErrValidation.WithLocalized(
		"Debes enviar plate y cityId.",
		"You must provide plate and cityId.",
	)
	errInvalidPlate = pkgerrors.ErrValidation.WithLocalized(
		"Formato de placa inválido.",
		"Invalid plate format.",
	)
	errMissingDate = pkgerrors.ErrValidation.WithLocalized(
		"Debes enviar una fecha válida.",
		"You must provide a valid date.",
	)
	errInvalidDate = pkgerrors.ErrValidation.WithLocalized(
		"Formato de fecha inválido.",
		"Invalid date format.",
	)
	errNotOwner = pkgerrors.ErrForbidden.WithLocalized(
		"No puedes consultar un vehículo que no te pertenece.",
		"You cannot query a vehicle that does not belong to you.",
	)
)

func dateError(err error) error {
	if errors.Is(err, circulation.ErrMissingDate) {
		return errMissingDate.WithDetail("date", "required")
	}
	return errInvalidDate.WithCause(err).WithDetail("date", "invalid")
}

func serviceError(err error) error {
	var appErr *pkgerrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	return pkgerrors.ErrInternal.WithCause(err)
}
