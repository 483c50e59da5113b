package management

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"picoyplaca/internal/circulation"
	pkgerrors "picoyplaca/pkg/errors"
)

var registerOnce sync.Once

// RegisterValidators adds the domain tags (plate, hhmm, weekday, digit) to
// gin's default validator. Safe to call more than once.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		mustRegister(v, "plate", func(fl validator.FieldLevel) bool {
			return circulation.ValidPlate(strings.TrimSpace(fl.Field().String()))
		})
		mustRegister(v, "hhmm", func(fl validator.FieldLevel) bool {
			_, err := circulation.ParseTimeOfDay(fl.Field().String())
			return err == nil
		})
		mustRegister(v, "weekday", func(fl validator.FieldLevel) bool {
			_, err := circulation.ParseWeekday(fl.Field().String())
			return err == nil
		})
		mustRegister(v, "digit", func(fl validator.FieldLevel) bool {
			return circulation.IsDigit(fl.Field().String())
		})
	})
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s validator: %v", tag, err))
	}
}

// bindJSON decodes the request body into req. Field violations are reported
// as details keyed by JSON field name.
func bindJSON(c *gin.Context, req interface{}) error {
	err := c.ShouldBindJSON(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return pkgerrors.ErrValidation.WithCause(err)
	}

	appErr := pkgerrors.ErrValidation.WithCause(err)
	for _, fe := range fieldErrs {
		appErr = appErr.WithDetail(jsonFieldName(fe), fieldMessage(fe))
	}
	return appErr
}

func jsonFieldName(fe validator.FieldError) string {
	name := fe.Field()
	if r, size := utf8.DecodeRuneInString(name); r != utf8.RuneError {
		name = string(unicode.ToLower(r)) + name[size:]
	}
	return name
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case "plate":
		return "must be three letters followed by three digits"
	case "hhmm":
		return "must use HH:mm format"
	case "weekday":
		return "must be a day of the week"
	case "digit":
		return "must be a single digit"
	case "uuid":
		return "must be a valid id"
	default:
		return "failed " + fe.Tag() + " validation"
	}
}

// CapitalizeName upper-cases the first letter of name and lower-cases the rest.
func CapitalizeName(name string) string {
	name = strings.TrimSpace(name)
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError {
		return name
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(name[size:])
}

// normalizeDigits drops duplicates while keeping first-seen order.
func normalizeDigits(digits []string) []string {
	seen := make(map[string]bool, len(digits))
	out := make([]string, 0, len(digits))
	for _, d := range digits {
		d = strings.TrimSpace(d)
		if seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return out
}

func validateRuleWindow(start, end circulation.TimeOfDay) error {
	if start > end {
		return pkgerrors.ErrValidation.
			WithLocalized(
				"La hora de inicio debe ser anterior o igual a la hora de fin.",
				"Start time must not be after end time.",
			).
			WithDetail("startTime", start.String()).
			WithDetail("endTime", end.String())
	}
	return nil
}

func validateDigits(digits []string) error {
	if len(digits) == 0 {
		return pkgerrors.ErrValidation.WithDetail("restrictedDigits", "is required")
	}
	for _, d := range digits {
		if !circulation.IsDigit(d) {
			return pkgerrors.ErrValidation.WithDetail("restrictedDigits", "must be a single digit")
		}
	}
	return nil
}

func validateVehicleYear(year int, now time.Time) error {
	if year < 1900 || year > now.Year() {
		return pkgerrors.ErrValidation.WithDetail("year", fmt.Sprintf("must be between 1900 and %d", now.Year()))
	}
	return nil
}
