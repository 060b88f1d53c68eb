package evcc

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/eoscoord/eoscoord/internal/core/domain"

	"go.uber.org/zap"
)

// Client mirrors the control mode to an evcc instance through its battery
// mode API, so its charge planner stops fighting the inverter.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(baseURL string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger.Named("evcc"),
	}
}

func (c *Client) Probe(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/state")
}

func (c *Client) SetBatteryMode(ctx context.Context, mode domain.InverterMode) error {
	return c.do(ctx, http.MethodPost, "/api/batterymode/"+batteryMode(mode))
}

func (c *Client) ResetBatteryMode(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/batterymode")
}

func (c *Client) do(ctx context.Context, method, path string) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("evcc %s %s returned status %d", method, path, resp.StatusCode)
	}
	c.logger.Debug("evcc request ok", zap.String("method", method), zap.String("path", path))
	return nil
}

// batteryMode maps a control mode to the evcc battery mode vocabulary.
func batteryMode(mode domain.InverterMode) string {
	switch mode {
	case domain.InverterModeChargeFromGrid:
		return "charge"
	case domain.InverterModeAvoidDischarge:
		return "hold"
	default:
		return "normal"
	}
}
