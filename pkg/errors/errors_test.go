package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithLocalized_DoesNotMutateSentinel(t *testing.T) {
	err := ErrNotFound.WithLocalized("La ciudad con ID x no existe.", "City with ID x does not exist.")

	assert.Nil(t, ErrNotFound.Localized)
	assert.Equal(t, "NOT_FOUND: City with ID x does not exist.", err.Error())
	assert.True(t, IsNotFound(err))
	assert.Equal(t, http.StatusNotFound, ToHTTPStatus(err))
}

func TestWithDetail_CopiesDetails(t *testing.T) {
	a := ErrValidation.WithDetail("field", "plate")
	b := a.WithDetail("field", "cityId")

	assert.Equal(t, "plate", a.Details["field"])
	assert.Equal(t, "cityId", b.Details["field"])
	assert.Empty(t, ErrValidation.Details)
}

func TestToErrorResponse(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want map[string]interface{}
	}{
		{
			name: "localized",
			err:  ErrForbidden.WithLocalized("es", "en"),
			want: map[string]interface{}{
				"error":      "forbidden",
				"error_code": "FORBIDDEN",
				"message":    Localized{ES: "es", EN: "en"},
			},
		},
		{
			name: "wrapped through fmt",
			err:  fmt.Errorf("lookup: %w", ErrConflict),
			want: map[string]interface{}{
				"error":      "resource conflict",
				"error_code": "CONFLICT",
			},
		},
		{
			name: "foreign error",
			err:  errors.New("pq: connection refused"),
			want: map[string]interface{}{
				"error":      "internal server error",
				"error_code": "INTERNAL_ERROR",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToErrorResponse(tt.err))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, ErrValidation.IsRetryable())
	assert.False(t, ErrNotFound.IsRetryable())
	assert.True(t, ErrInternal.IsRetryable())
	assert.True(t, ErrServiceUnavailable.IsRetryable())
	assert.False(t, ErrInternal.AsPermanent().IsRetryable())
	assert.True(t, ErrConflict.AsRetryable().IsRetryable())
	assert.False(t, ErrInternal.WithCause(ErrValidation).IsRetryable())
}

func TestRecoverPanic(t *testing.T) {
	assert.Nil(t, RecoverPanic(nil))

	err := RecoverPanic("boom")
	var appErr *Error
	assert.True(t, errors.As(err, &appErr))
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.Equal(t, true, appErr.Details["panic"])
	assert.False(t, appErr.IsRetryable())
	assert.Contains(t, err.Error(), "panic: boom")
	assert.NotEmpty(t, PanicStack(err))

	body := ToErrorResponse(err)
	assert.NotContains(t, body["details"], "stack_trace")
}

func TestGuard(t *testing.T) {
	cause := errors.New("nil rule snapshot")

	tests := []struct {
		name      string
		fn        func() error
		wantPanic bool
		wantIs    error
	}{
		{name: "returns fn error", fn: func() error { return cause }, wantIs: cause},
		{name: "nil on success", fn: func() error { return nil }},
		{name: "panic with error keeps cause", fn: func() error { panic(cause) }, wantPanic: true, wantIs: cause},
		{name: "panic with value", fn: func() error { panic(42) }, wantPanic: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Guard(tt.fn)
			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
			}
			assert.Equal(t, tt.wantPanic, PanicStack(err) != "")
			if !tt.wantPanic && tt.wantIs == nil {
				assert.NoError(t, err)
			}
		})
	}
}

func TestIs_MatchesByCode(t *testing.T) {
	cityMissing := ErrNotFound.WithLocalized("Ciudad no encontrada", "City not found").WithDetail("city_id", "c-1")
	wrapped := fmt.Errorf("check day: %w", cityMissing)

	assert.True(t, IsNotFound(wrapped))
	assert.False(t, IsConflict(wrapped))
	assert.True(t, errors.Is(wrapped, ErrNotFound))
	assert.False(t, IsValidation(errors.New("plain")))
}
