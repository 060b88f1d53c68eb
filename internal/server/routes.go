package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/eoscoord/eoscoord/internal/core/domain"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const requestTimeout = 10 * time.Second

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/healthcheck", s.HealthCheckHandler)

	api := e.Group("/api/v1")
	api.GET("/control", s.ControlStateHandler)
	api.POST("/mode", s.SetModeHandler)
	api.POST("/override", s.SetOverrideHandler)
	api.DELETE("/override", s.ClearOverrideHandler)
	api.POST("/soc_limits", s.SetSOCLimitsHandler)
	api.POST("/optimize", s.TriggerOptimizationHandler)

	return e
}

func (s *Server) HealthCheckHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ActorHealthRequest{}, requestTimeout).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
	}
	if response, ok := res.(domain.ActorHealthResponse); ok && response.Healthy {
		return c.String(http.StatusOK, "health_check: OK")
	}
	return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
}

type overrideDTO struct {
	Mode         string    `json:"mode"`
	ChargePowerW float64   `json:"charge_power_w,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type controlStateDTO struct {
	Mode             string       `json:"mode"`
	ACChargeDemandW  float64      `json:"ac_charge_demand_w"`
	DCChargeDemandW  float64      `json:"dc_charge_demand_w"`
	DischargeAllowed bool         `json:"discharge_allowed"`
	Source           string       `json:"source"`
	State            string       `json:"state"`
	Override         *overrideDTO `json:"override,omitempty"`
	BatterySOC       float64      `json:"battery_soc"`
	MinSOC           float64      `json:"min_soc"`
	MaxSOC           float64      `json:"max_soc"`
	OptimizationOK   bool         `json:"optimization_ok"`
	LastOptimization *time.Time   `json:"last_optimization,omitempty"`
	TotalCostEUR     *float64     `json:"total_cost_eur,omitempty"`
}

func (s *Server) ControlStateHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.GetControlStateRequest{}, requestTimeout).Result()
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	state, ok := res.(domain.GetControlStateResponse)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "unexpected response type")
	}
	dto := controlStateDTO{
		Mode:             state.Decision.Mode.Key(),
		ACChargeDemandW:  state.Decision.ACChargeDemandW,
		DCChargeDemandW:  state.Decision.DCChargeDemandW,
		DischargeAllowed: state.Decision.DischargeAllowed,
		Source:           string(state.Decision.Source),
		State:            string(state.Decision.State),
		BatterySOC:       state.Battery.SOCPercent,
		MinSOC:           state.Battery.MinSOCPercent,
		MaxSOC:           state.Battery.MaxSOCPercent,
		OptimizationOK:   state.OptimizationOK,
	}
	if state.Override != nil {
		dto.Override = &overrideDTO{
			Mode:         state.Override.Mode.Key(),
			ChargePowerW: state.Override.ChargePowerW,
			ExpiresAt:    state.Override.ExpiresAt,
		}
	}
	if !state.LastOptimization.IsZero() {
		t := state.LastOptimization
		dto.LastOptimization = &t
	}
	if state.Result != nil {
		cost := state.Result.TotalCostEUR
		dto.TotalCostEUR = &cost
	}
	return c.JSON(http.StatusOK, dto)
}

type setModeDTO struct {
	Mode string `json:"mode"`
}

func (s *Server) SetModeHandler(c echo.Context) error {
	var body setModeDTO
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	mode, err := domain.ParseInverterMode(body.Mode)
	if err != nil {
		return controlErrorToHTTP(err)
	}
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.SetModeRequest{Mode: mode}, requestTimeout).Result()
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	resp, ok := res.(domain.SetModeResponse)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "unexpected response type")
	}
	if resp.HasResponseError() {
		return controlErrorToHTTP(resp.GetResponseError())
	}
	return c.JSON(http.StatusOK, setModeDTO{Mode: resp.Mode.Key()})
}

type setOverrideDTO struct {
	Mode            string  `json:"mode"`
	DurationMinutes uint    `json:"duration_minutes"`
	ChargePowerW    float64 `json:"charge_power_w"`
}

func (s *Server) SetOverrideHandler(c echo.Context) error {
	var body setOverrideDTO
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	mode, err := domain.ParseInverterMode(body.Mode)
	if err != nil {
		return controlErrorToHTTP(err)
	}
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.SetOverrideRequest{
		Mode:            mode,
		DurationMinutes: body.DurationMinutes,
		ChargePowerW:    body.ChargePowerW,
	}, requestTimeout).Result()
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	resp, ok := res.(domain.SetOverrideResponse)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "unexpected response type")
	}
	if resp.HasResponseError() {
		return controlErrorToHTTP(resp.GetResponseError())
	}
	return c.JSON(http.StatusOK, overrideDTO{
		Mode:         resp.Override.Mode.Key(),
		ChargePowerW: resp.Override.ChargePowerW,
		ExpiresAt:    resp.Override.ExpiresAt,
	})
}

func (s *Server) ClearOverrideHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ClearOverrideRequest{}, requestTimeout).Result()
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	resp, ok := res.(domain.ClearOverrideResponse)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "unexpected response type")
	}
	return c.JSON(http.StatusOK, map[string]bool{"cleared": resp.Cleared})
}

type socLimitsDTO struct {
	MinSOC *float64 `json:"min_soc"`
	MaxSOC *float64 `json:"max_soc"`
}

func (s *Server) SetSOCLimitsHandler(c echo.Context) error {
	var body socLimitsDTO
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	req := domain.SetSOCLimitsRequest{
		MinSOCPercent: domain.SOCLimitKeepCurrent,
		MaxSOCPercent: domain.SOCLimitKeepCurrent,
	}
	if body.MinSOC != nil {
		req.MinSOCPercent = *body.MinSOC
	}
	if body.MaxSOC != nil {
		req.MaxSOCPercent = *body.MaxSOC
	}
	res, err := s.rootContext.RequestFuture(s.masterActor, req, requestTimeout).Result()
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	resp, ok := res.(domain.SetSOCLimitsResponse)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "unexpected response type")
	}
	if resp.HasResponseError() {
		return controlErrorToHTTP(resp.GetResponseError())
	}
	return c.JSON(http.StatusOK, socLimitsDTO{MinSOC: &resp.MinSOCPercent, MaxSOC: &resp.MaxSOCPercent})
}

func (s *Server) TriggerOptimizationHandler(c echo.Context) error {
	s.rootContext.Send(s.masterActor, domain.OptimizationCycleTrigger{Forced: true})
	return c.JSON(http.StatusAccepted, map[string]string{"status": "triggered"})
}

func controlErrorToHTTP(err error) *echo.HTTPError {
	var cfgErr *domain.ConfigurationError
	if errors.As(err, &cfgErr) {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, cfgErr.Error())
	}
	var unavailable *domain.OptimizerUnavailableError
	if errors.As(err, &unavailable) {
		return echo.NewHTTPError(http.StatusServiceUnavailable, unavailable.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
