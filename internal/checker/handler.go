package checker

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"picoyplaca/internal/auth"
	"picoyplaca/internal/logger"
	"picoyplaca/pkg/errors"
)

var errMalformedBody = errors.ErrValidation.WithLocalized(
	"El cuerpo de la solicitud no es JSON válido.",
	"The request body is not valid JSON.",
)

type Handler struct {
	service Service
	logger  logger.Logger
}

func NewHandler(service Service, log logger.Logger) *Handler {
	return &Handler{service: service, logger: log}
}

// RegisterRoutes mounts the check endpoints on an authenticated group.
func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	rules := api.Group("/rules")
	{
		rules.POST("/check", h.CheckDay)
		rules.POST("/day", h.CheckDay)
		rules.POST("/week", h.CheckWeek)
	}
}

func (h *Handler) handleError(c *gin.Context, err error) {
	status := errors.ToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorwCtx(c.Request.Context(), "Circulation check failed", "error", err, "path", c.Request.URL.Path)
	}
	c.JSON(status, errors.ToErrorResponse(err))
}

// bind decodes the JSON body into req through gin's JSON binding and returns
// the raw body for the audit trail. An empty body decodes to the zero request.
// Presence and plate format stay with the service so rejected checks are audited.
func bind(c *gin.Context, req interface{}) (Origin, error) {
	origin := Origin{
		Method:   c.Request.Method,
		Endpoint: c.Request.URL.RequestURI(),
	}

	raw, err := c.GetRawData()
	if err != nil {
		return origin, errMalformedBody.WithCause(err)
	}
	origin.Body = string(raw)
	if len(raw) == 0 {
		return origin, nil
	}
	if err := binding.JSON.BindBody(raw, req); err != nil {
		return origin, errMalformedBody.WithCause(err)
	}
	return origin, nil
}

// CheckDay godoc
// @Summary      Check circulation at a date and time
// @Description  Decides whether the plate may circulate in the city at the given instant. Dates without an offset are read in the municipal timezone.
// @Tags         circulation
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      DayRequest  true  "Plate, city and date"
// @Success      200      {object}  DayResponse
// @Failure      400      {object}  errors.ErrorResponse
// @Failure      403      {object}  errors.ErrorResponse
// @Failure      404      {object}  errors.ErrorResponse
// @Router       /rules/day [post]
// @Router       /rules/check [post]
func (h *Handler) CheckDay(c *gin.Context) {
	var req DayRequest
	origin, err := bind(c, &req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	caller := auth.PrincipalFrom(c)
	resp, err := h.service.CheckDay(c.Request.Context(), caller, req, origin)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// CheckWeek godoc
// @Summary      Weekly restriction schedule
// @Description  Reports, for each weekday from Sunday to Saturday, whether the plate is restricted in the city.
// @Tags         circulation
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      WeekRequest  true  "Plate and city"
// @Success      200      {object}  WeekResponse
// @Failure      400      {object}  errors.ErrorResponse
// @Failure      403      {object}  errors.ErrorResponse
// @Failure      404      {object}  errors.ErrorResponse
// @Router       /rules/week [post]
func (h *Handler) CheckWeek(c *gin.Context) {
	var req WeekRequest
	origin, err := bind(c, &req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	caller := auth.PrincipalFrom(c)
	resp, err := h.service.CheckWeek(c.Request.Context(), caller, req, origin)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
