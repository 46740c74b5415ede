package reviewservice

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"slr-manager/apperr"
	"slr-manager/correlation"
	"slr-manager/models"
)

// Client liest Kriterien und Formular-Definitionen aus dem Review-Service.
type Client struct {
	baseURL    string
	apiKey     string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// NewClient erstellt einen Client für den Review-Service.
func NewClient(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		HTTPClient: &http.Client{Timeout: timeout},
		Logger:     logger,
	}
}

// SelectionCriteria liefert die Kriterien eines Protokolls.
func (c *Client) SelectionCriteria(ctx context.Context, protocolID uint) ([]Criteria, error) {
	var out []Criteria
	url := fmt.Sprintf("%s/protocol/%d/get-selection-criteria", c.baseURL, protocolID)
	if err := c.getJSON(ctx, url, "protocol", protocolID, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FormData liefert das Formular einer Rolle samt Feldern.
func (c *Client) FormData(ctx context.Context, protocolID uint, role models.FormRole) (*FormData, error) {
	var out FormData
	url := fmt.Sprintf("%s/protocol/%d/get-form-data/%s", c.baseURL, protocolID, strings.ToLower(string(role)))
	if err := c.getJSON(ctx, url, "form of protocol", protocolID, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) getJSON(ctx context.Context, url, resource string, id uint, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return apperr.Internal(err, "build review service request")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-KEY", c.apiKey)
	}
	if cid := correlation.From(ctx); cid != "" {
		req.Header.Set(correlation.Header, cid)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return apperr.RemoteUnavailable(err, "review service unreachable")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return apperr.NotFound(resource, id)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		c.Logger.Warn("Review service request failed", zap.String("url", url), zap.Int("status", resp.StatusCode))
		return apperr.FromRemoteStatus(resp.StatusCode, strings.TrimSpace(string(body)), "review service GET %s", url)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperr.RemoteFailed(resp.StatusCode, "decode review service response: %v", err)
	}
	return nil
}
