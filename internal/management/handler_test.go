package management

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"picoyplaca/internal/auth"
	"picoyplaca/internal/constants"
	"picoyplaca/internal/logger"
)

// principalHeader stands in for bearer auth in handler tests.
const principalHeader = "X-Test-Role"

func newTestRouter(t *testing.T) (*gin.Engine, *serviceFixture) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := newServiceFixture(t)
	f.allowSideEffects()
	h := NewHandler(f.svc, logger.NopLogger())

	router := gin.New()
	api := router.Group("/api/v1")
	api.Use(func(c *gin.Context) {
		role := c.GetHeader(principalHeader)
		p := &auth.Principal{ID: role + "-1", Email: role + "@example.com", Role: role}
		c.Request = c.Request.WithContext(auth.WithPrincipal(c.Request.Context(), p))
		c.Next()
	})
	h.RegisterRoutes(api)
	return router, f
}

func do(router *gin.Engine, method, path, role string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(principalHeader, role)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandler_CityRoleGates(t *testing.T) {
	router, _ := newTestRouter(t)

	w := do(router, http.MethodPost, "/api/v1/cities", constants.RoleUser, map[string]interface{}{"name": "Bogotá"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(router, http.MethodPost, "/api/v1/cities", constants.RoleAdmin, map[string]interface{}{"name": "Bogotá"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(router, http.MethodGet, "/api/v1/cities", constants.RoleUser, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var cities []City
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cities))
	require.Len(t, cities, 1)
	assert.Equal(t, "Bogotá", cities[0].Name)

	w = do(router, http.MethodGet, "/api/v1/rules", constants.RoleUser, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestHandler_CreateRule_Binding(t *testing.T) {
	router, f := newTestRouter(t)
	city := f.city(t, "Bogotá")

	tests := []struct {
		name   string
		body   map[string]interface{}
		status int
		field  string
	}{
		{
			name:   "valid",
			body:   map[string]interface{}{"cityId": city.ID, "dayOfWeek": "Lunes", "startTime": "06:00", "endTime": "08:30", "restrictedDigits": []string{"1", "2"}},
			status: http.StatusCreated,
		},
		{
			name:   "bad time",
			body:   map[string]interface{}{"cityId": city.ID, "dayOfWeek": "Martes", "startTime": "6am", "endTime": "08:30", "restrictedDigits": []string{"1"}},
			status: http.StatusBadRequest,
			field:  "startTime",
		},
		{
			name:   "bad day",
			body:   map[string]interface{}{"cityId": city.ID, "dayOfWeek": "Someday", "startTime": "06:00", "endTime": "08:30", "restrictedDigits": []string{"1"}},
			status: http.StatusBadRequest,
			field:  "dayOfWeek",
		},
		{
			name:   "bad digit",
			body:   map[string]interface{}{"cityId": city.ID, "dayOfWeek": "Martes", "startTime": "06:00", "endTime": "08:30", "restrictedDigits": []string{"x"}},
			status: http.StatusBadRequest,
			field:  "restrictedDigits[0]",
		},
		{
			name:   "duplicate day",
			body:   map[string]interface{}{"cityId": city.ID, "dayOfWeek": "monday", "startTime": "15:00", "endTime": "19:30", "restrictedDigits": []string{"1"}},
			status: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(router, http.MethodPost, "/api/v1/rules", constants.RoleAdmin, tt.body)
			require.Equal(t, tt.status, w.Code, w.Body.String())

			if tt.field != "" {
				var resp map[string]interface{}
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				details, ok := resp["details"].(map[string]interface{})
				require.True(t, ok, w.Body.String())
				assert.Contains(t, details, tt.field)
			}
		})
	}
}

func TestHandler_VehicleOwnership(t *testing.T) {
	router, _ := newTestRouter(t)

	w := do(router, http.MethodPost, "/api/v1/vehicles", constants.RoleUser, map[string]interface{}{
		"licensePlate": "abc123", "brand": "Mazda", "model": "3", "year": 2020,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var vehicle Vehicle
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &vehicle))
	assert.Equal(t, "ABC123", vehicle.LicensePlate)

	w = do(router, http.MethodPost, "/api/v1/vehicles", constants.RoleUser, map[string]interface{}{
		"licensePlate": "AB12", "brand": "Mazda", "model": "3", "year": 2020,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(router, http.MethodDelete, "/api/v1/vehicles/"+vehicle.ID, constants.RoleAdmin, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestHandler_ListRuleChanges(t *testing.T) {
	router, f := newTestRouter(t)
	city := f.city(t, "Bogotá")

	w := do(router, http.MethodPost, "/api/v1/rules", constants.RoleAdmin, map[string]interface{}{
		"cityId": city.ID, "dayOfWeek": "Viernes", "startTime": "06:00", "endTime": "08:30", "restrictedDigits": []string{"9", "0"},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var rule Rule
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rule))

	w = do(router, http.MethodGet, "/api/v1/rules/"+rule.ID+"/changes?limit=5", constants.RoleAdmin, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var changes []RuleChange
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &changes))
	require.Len(t, changes, 1)
	assert.Equal(t, "admin@example.com", changes[0].ChangedBy)

	f.publisher.AssertCalled(t, "PublishRuleChange", mock.Anything, mock.Anything)
}
