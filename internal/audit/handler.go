package audit

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"picoyplaca/internal/auth"
	"picoyplaca/internal/constants"
	"picoyplaca/internal/logger"
	"picoyplaca/pkg/errors"
)

// Reader answers the admin log queries.
type Reader interface {
	List(ctx context.Context, f Filter) ([]Record, error)
	Stats(ctx context.Context, cityID string) (Stats, error)
}

type Handler struct {
	reader   Reader
	location *time.Location
	logger   logger.Logger
	now      func() time.Time
}

// NewHandler builds the log query handler. Date filters are whole days in loc.
func NewHandler(reader Reader, loc *time.Location, log logger.Logger) *Handler {
	return &Handler{
		reader:   reader,
		location: loc,
		logger:   log,
		now:      time.Now,
	}
}

func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	logs := api.Group("/logs", auth.RequireRole(constants.RoleAdmin))
	{
		logs.GET("", h.ListLogs)
		logs.GET("/stats", h.GetStats)
	}
}

func (h *Handler) handleError(c *gin.Context, err error) {
	status := errors.ToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)
	}
	c.JSON(status, errors.ToErrorResponse(err))
}

// ListLogs godoc
// @Summary      List audit logs
// @Description  Circulation queries, newest first
// @Tags         logs
// @Produce      json
// @Security     BearerAuth
// @Param        user          query  string  false  "Caller identity"
// @Param        vehiclePlate  query  string  false  "Plate"
// @Param        cityId        query  string  false  "City ID"
// @Param        vehicleId     query  string  false  "Vehicle ID"
// @Param        startDate     query  string  false  "First day, YYYY-MM-DD"
// @Param        endDate       query  string  false  "Last day, YYYY-MM-DD"
// @Param        limit         query  int     false  "Maximum records (default 100, max 1000)"
// @Success      200  {array}   Record
// @Failure      400  {object}  errors.ErrorResponse
// @Failure      403  {object}  errors.ErrorResponse
// @Router       /logs [get]
func (h *Handler) ListLogs(c *gin.Context) {
	var params FilterParams
	if err := c.ShouldBindQuery(&params); err != nil {
		h.handleError(c, errors.ErrValidation.WithCause(err))
		return
	}

	filter, err := BuildFilter(params, h.location, h.now())
	if err != nil {
		h.handleError(c, err)
		return
	}

	records, err := h.reader.List(c.Request.Context(), filter)
	if err != nil {
		h.handleError(c, errors.Wrap(err, errors.ErrInternal))
		return
	}
	c.JSON(http.StatusOK, records)
}

// GetStats godoc
// @Summary      Audit statistics
// @Tags         logs
// @Produce      json
// @Security     BearerAuth
// @Param        cityId  query  string  false  "Restrict to one city"
// @Success      200  {object}  Stats
// @Failure      403  {object}  errors.ErrorResponse
// @Router       /logs/stats [get]
func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.reader.Stats(c.Request.Context(), c.Query("cityId"))
	if err != nil {
		h.handleError(c, errors.Wrap(err, errors.ErrInternal))
		return
	}
	c.JSON(http.StatusOK, stats)
}
