package searchservice

import (
	"bytes"
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
)

// maxErrorBody begrenzt, wie viel einer Fehlerantwort in die Fehlermeldung übernommen wird.
const maxErrorBody = 2048

// Client spricht mit dem Search-Service. Er ist zustandslos und wird von allen Requests geteilt.
type Client struct {
	baseURL    string
	apiKey     string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// NewClient erstellt einen Client. Der Timeout begrenzt jeden einzelnen Aufruf.
func NewClient(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		HTTPClient: &http.Client{Timeout: timeout},
		Logger:     logger,
	}
}

func (c *Client) newRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-KEY", c.apiKey)
	}
	if id := correlation.From(ctx); id != "" {
		req.Header.Set(correlation.Header, id)
	}
	return req, nil
}

// DeleteFormInstances löscht alle Instanzen eines Formulars im Search-Service.
// 200 ist Erfolg, 5xx und Transportfehler (inkl. Timeout) sind RemoteServiceUnavailable,
// jeder andere Status RemoteOperationFailed.
func (c *Client) DeleteFormInstances(ctx context.Context, formID uint) error {
	url := fmt.Sprintf("%s/form-instance/full-delete/%d", c.baseURL, formID)
	req, err := c.newRequest(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return apperr.Internal(err, "build form instance delete request")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return apperr.RemoteUnavailable(err, "search service unreachable while deleting instances of form %d", formID)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.Logger.Warn("Form instance delete rejected",
			zap.Uint("form_id", formID),
			zap.Int("status", resp.StatusCode),
			zap.String("correlation_id", correlation.From(ctx)))
		return apperr.FromRemoteStatus(resp.StatusCode, strings.TrimSpace(string(body)), "deleting instances of form %d", formID)
	}

	var out FullDeleteResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err == nil {
		c.Logger.Debug("Form instances deleted remotely", zap.Uint("form_id", formID), zap.Int64("deleted", out.Deleted))
	}
	return nil
}

// CreateSearch legt im Search-Service eine Suche für eine Datenquelle an.
func (c *Client) CreateSearch(ctx context.Context, dataSourceID uint, in CreateSearchRequest) (*SearchResponse, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return nil, apperr.Internal(err, "marshal create search request")
	}
	url := fmt.Sprintf("%s/search/%d/create-search", c.baseURL, dataSourceID)
	req, err := c.newRequest(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, apperr.Internal(err, "build create search request")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, apperr.RemoteUnavailable(err, "search service unreachable while creating search for data source %d", dataSourceID)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, apperr.FromRemoteStatus(resp.StatusCode, strings.TrimSpace(string(body)), "creating search for data source %d", dataSourceID)
	}

	var out SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, apperr.RemoteFailed(resp.StatusCode, "decode create search response: %v", err)
	}
	return &out, nil
}
