package management

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"picoyplaca/internal/auth"
	"picoyplaca/internal/constants"
	"picoyplaca/internal/logger"
	"picoyplaca/pkg/errors"
)

type BaseHandler struct {
	Service Service
	Logger  logger.Logger
}

func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	status := errors.ToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.Logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)
	} else {
		h.Logger.InfowCtx(c.Request.Context(), "Request rejected", "error", err, "path", c.Request.URL.Path, "status", status)
	}

	c.JSON(status, errors.ToErrorResponse(err))
}

type Handler struct {
	BaseHandler
}

func NewHandler(service Service, log logger.Logger) *Handler {
	RegisterValidators()
	return &Handler{
		BaseHandler: BaseHandler{
			Service: service,
			Logger:  log,
		},
	}
}

// RegisterRoutes mounts the management API on an authenticated group.
func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	adminOnly := auth.RequireRole(constants.RoleAdmin)

	cities := api.Group("/cities")
	{
		cities.GET("", h.ListCities)
		cities.GET("/:id", h.GetCity)
		cities.POST("", adminOnly, h.CreateCity)
		cities.PUT("/:id", adminOnly, h.UpdateCity)
		cities.DELETE("/:id", adminOnly, h.DeleteCity)
	}

	rules := api.Group("/rules")
	{
		rules.GET("", adminOnly, h.ListRules)
		rules.POST("", adminOnly, h.CreateRule)
		rules.GET("/:id", adminOnly, h.GetRule)
		rules.PUT("/:id", adminOnly, h.UpdateRule)
		rules.DELETE("/:id", adminOnly, h.DeleteRule)
		rules.GET("/:id/changes", adminOnly, h.ListRuleChanges)
	}

	vehicles := api.Group("/vehicles")
	{
		vehicles.GET("", h.ListVehicles)
		vehicles.POST("", h.CreateVehicle)
		vehicles.GET("/:id", h.GetVehicle)
		vehicles.PUT("/:id", h.UpdateVehicle)
		vehicles.DELETE("/:id", h.DeleteVehicle)
	}
}

// ListCities godoc
// @Summary      List cities
// @Tags         cities
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   City
// @Failure      401  {object}  errors.ErrorResponse
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /cities [get]
func (h *Handler) ListCities(c *gin.Context) {
	cities, err := h.Service.ListCities(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, cities)
}

// GetCity godoc
// @Summary      Get a city by ID
// @Tags         cities
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "City ID"
// @Success      200  {object}  City
// @Failure      404  {object}  errors.ErrorResponse
// @Router       /cities/{id} [get]
func (h *Handler) GetCity(c *gin.Context) {
	city, err := h.Service.GetCity(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, city)
}

// CreateCity godoc
// @Summary      Create a city
// @Tags         cities
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        city  body      CreateCityRequest  true  "City data"
// @Success      201   {object}  City
// @Failure      400   {object}  errors.ErrorResponse
// @Failure      403   {object}  errors.ErrorResponse
// @Failure      409   {object}  errors.ErrorResponse
// @Router       /cities [post]
func (h *Handler) CreateCity(c *gin.Context) {
	var req CreateCityRequest
	if err := bindJSON(c, &req); err != nil {
		h.HandleError(c, err)
		return
	}

	city, err := h.Service.CreateCity(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, city)
}

// UpdateCity godoc
// @Summary      Update a city
// @Tags         cities
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string             true  "City ID"
// @Param        city  body      UpdateCityRequest  true  "Fields to change"
// @Success      200   {object}  City
// @Failure      400   {object}  errors.ErrorResponse
// @Failure      404   {object}  errors.ErrorResponse
// @Failure      409   {object}  errors.ErrorResponse
// @Router       /cities/{id} [put]
func (h *Handler) UpdateCity(c *gin.Context) {
	var req UpdateCityRequest
	if err := bindJSON(c, &req); err != nil {
		h.HandleError(c, err)
		return
	}

	city, err := h.Service.UpdateCity(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, city)
}

// DeleteCity godoc
// @Summary      Delete a city and its rules
// @Tags         cities
// @Security     BearerAuth
// @Param        id   path  string  true  "City ID"
// @Success      204
// @Failure      404  {object}  errors.ErrorResponse
// @Router       /cities/{id} [delete]
func (h *Handler) DeleteCity(c *gin.Context) {
	if err := h.Service.DeleteCity(c.Request.Context(), c.Param("id")); err != nil {
		h.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListRules godoc
// @Summary      List restriction rules
// @Tags         rules
// @Produce      json
// @Security     BearerAuth
// @Param        cityId  query     string  false  "Only rules of this city"
// @Success      200     {array}   Rule
// @Failure      403     {object}  errors.ErrorResponse
// @Router       /rules [get]
func (h *Handler) ListRules(c *gin.Context) {
	rules, err := h.Service.ListRules(c.Request.Context(), c.Query("cityId"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, rules)
}

// CreateRule godoc
// @Summary      Create a restriction rule
// @Tags         rules
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        rule  body      CreateRuleRequest  true  "Rule data"
// @Success      201   {object}  Rule
// @Failure      400   {object}  errors.ErrorResponse
// @Failure      404   {object}  errors.ErrorResponse
// @Failure      409   {object}  errors.ErrorResponse
// @Router       /rules [post]
func (h *Handler) CreateRule(c *gin.Context) {
	var req CreateRuleRequest
	if err := bindJSON(c, &req); err != nil {
		h.HandleError(c, err)
		return
	}

	rule, err := h.Service.CreateRule(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rule)
}

// GetRule godoc
// @Summary      Get a rule by ID
// @Tags         rules
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Rule ID"
// @Success      200  {object}  Rule
// @Failure      404  {object}  errors.ErrorResponse
// @Router       /rules/{id} [get]
func (h *Handler) GetRule(c *gin.Context) {
	rule, err := h.Service.GetRule(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

// UpdateRule godoc
// @Summary      Update a rule
// @Tags         rules
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string             true  "Rule ID"
// @Param        rule  body      UpdateRuleRequest  true  "Fields to change"
// @Success      200   {object}  Rule
// @Failure      400   {object}  errors.ErrorResponse
// @Failure      404   {object}  errors.ErrorResponse
// @Failure      409   {object}  errors.ErrorResponse
// @Router       /rules/{id} [put]
func (h *Handler) UpdateRule(c *gin.Context) {
	var req UpdateRuleRequest
	if err := bindJSON(c, &req); err != nil {
		h.HandleError(c, err)
		return
	}

	rule, err := h.Service.UpdateRule(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

// DeleteRule godoc
// @Summary      Delete a rule
// @Tags         rules
// @Security     BearerAuth
// @Param        id   path  string  true  "Rule ID"
// @Success      204
// @Failure      404  {object}  errors.ErrorResponse
// @Router       /rules/{id} [delete]
func (h *Handler) DeleteRule(c *gin.Context) {
	if err := h.Service.DeleteRule(c.Request.Context(), c.Param("id")); err != nil {
		h.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListRuleChanges godoc
// @Summary      Change history of a rule
// @Tags         rules
// @Produce      json
// @Security     BearerAuth
// @Param        id     path      string  true   "Rule ID"
// @Param        limit  query     int     false  "Maximum number of entries"
// @Success      200    {array}   RuleChange
// @Failure      500    {object}  errors.ErrorResponse
// @Router       /rules/{id}/changes [get]
func (h *Handler) ListRuleChanges(c *gin.Context) {
	limit := constants.DefaultLimit
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	changes, err := h.Service.ListRuleChanges(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, changes)
}

// ListVehicles godoc
// @Summary      List vehicles
// @Description  Admins see every vehicle, users only their own.
// @Tags         vehicles
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   Vehicle
// @Router       /vehicles [get]
func (h *Handler) ListVehicles(c *gin.Context) {
	vehicles, err := h.Service.ListVehicles(c.Request.Context(), auth.PrincipalFrom(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, vehicles)
}

// CreateVehicle godoc
// @Summary      Register a vehicle owned by the caller
// @Tags         vehicles
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        vehicle  body      CreateVehicleRequest  true  "Vehicle data"
// @Success      201      {object}  Vehicle
// @Failure      400      {object}  errors.ErrorResponse
// @Failure      409      {object}  errors.ErrorResponse
// @Router       /vehicles [post]
func (h *Handler) CreateVehicle(c *gin.Context) {
	var req CreateVehicleRequest
	if err := bindJSON(c, &req); err != nil {
		h.HandleError(c, err)
		return
	}

	vehicle, err := h.Service.CreateVehicle(c.Request.Context(), auth.PrincipalFrom(c), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, vehicle)
}

// GetVehicle godoc
// @Summary      Get a vehicle by ID
// @Tags         vehicles
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Vehicle ID"
// @Success      200  {object}  Vehicle
// @Failure      404  {object}  errors.ErrorResponse
// @Router       /vehicles/{id} [get]
func (h *Handler) GetVehicle(c *gin.Context) {
	vehicle, err := h.Service.GetVehicle(c.Request.Context(), auth.PrincipalFrom(c), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, vehicle)
}

// UpdateVehicle godoc
// @Summary      Update a vehicle
// @Tags         vehicles
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                true  "Vehicle ID"
// @Param        vehicle  body      UpdateVehicleRequest  true  "Fields to change"
// @Success      200      {object}  Vehicle
// @Failure      400      {object}  errors.ErrorResponse
// @Failure      403      {object}  errors.ErrorResponse
// @Failure      404      {object}  errors.ErrorResponse
// @Router       /vehicles/{id} [put]
func (h *Handler) UpdateVehicle(c *gin.Context) {
	var req UpdateVehicleRequest
	if err := bindJSON(c, &req); err != nil {
		h.HandleError(c, err)
		return
	}

	vehicle, err := h.Service.UpdateVehicle(c.Request.Context(), auth.PrincipalFrom(c), c.Param("id"), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, vehicle)
}

// DeleteVehicle godoc
// @Summary      Delete a vehicle
// @Tags         vehicles
// @Security     BearerAuth
// @Param        id   path  string  true  "Vehicle ID"
// @Success      204
// @Failure      403  {object}  errors.ErrorResponse
// @Failure      404  {object}  errors.ErrorResponse
// @Router       /vehicles/{id} [delete]
func (h *Handler) DeleteVehicle(c *gin.Context) {
	if err := h.Service.DeleteVehicle(c.Request.Context(), auth.PrincipalFrom(c), c.Param("id")); err != nil {
		h.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
