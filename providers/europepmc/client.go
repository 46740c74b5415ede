package europepmc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"slr-manager/apperr"
)

// DefaultBaseURL ist der REST-Endpunkt der Europe PMC Suche.
const DefaultBaseURL = "https://www.ebi.ac.uk/europepmc/webservices/rest/search"

// Client sucht Artikel auf Europe PMC.
type Client struct {
	baseURL    string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// NewClient erstellt einen neuen Europe PMC Client. Ein leerer baseURL nutzt DefaultBaseURL.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: timeout},
		Logger:     logger,
	}
}

// Name gibt den Namen des Providers zurück.
func (c *Client) Name() string {
	return "europepmc"
}

// Search führt die Suche aus und liefert höchstens limit Treffer.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	log := c.Logger.With(zap.String("query", query))
	log.Info("Starting Europe PMC search")

	searchURL := fmt.Sprintf("%s?query=%s&format=json&resultType=lite&pageSize=%d",
		c.baseURL, url.QueryEscape(query), limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, apperr.Internal(err, "build europe pmc request")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, apperr.RemoteUnavailable(err, "europe pmc unreachable")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, apperr.FromRemoteStatus(resp.StatusCode, "", "europe pmc search")
	}

	var searchResponse SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResponse); err != nil {
		return nil, apperr.RemoteFailed(resp.StatusCode, "decode europe pmc response: %v", err)
	}

	hits := make([]Hit, 0, len(searchResponse.ResultList.Result))
	for _, article := range searchResponse.ResultList.Result {
		if article.Title == "" {
			continue
		}
		hits = append(hits, Hit{
			Title:   strings.TrimSpace(article.Title),
			Authors: article.AuthorString,
			Year:    article.year(),
			DOI:     article.DOI,
		})
		if len(hits) == limit {
			break
		}
	}

	log.Info("Europe PMC search finished",
		zap.Int("hit_count", searchResponse.HitCount),
		zap.Int("returned", len(hits)))
	return hits, nil
}
