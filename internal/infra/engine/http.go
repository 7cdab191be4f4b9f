package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vietddude/exporter/internal/core/domain"
	"github.com/vietddude/exporter/internal/export/metrics"
)

// Config holds query engine settings.
type Config struct {
	URL         string        `yaml:"url"`
	BearerToken string        `yaml:"bearer_token"`
	Timeout     time.Duration `yaml:"timeout"`
	Retention   time.Duration `yaml:"retention"` // 0 = unlimited
}

// HTTPClient implements Engine over HTTP with JSON bodies.
type HTTPClient struct {
	cfg        Config
	httpClient *http.Client
	now        func() time.Time
}

// NewHTTPClient creates a new engine client.
func NewHTTPClient(cfg Config) *HTTPClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &HTTPClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		now: time.Now,
	}
}

// SetHTTPClient replaces the underlying HTTP client.
func (c *HTTPClient) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

type queryRequest struct {
	Dataset        string   `json:"dataset"`
	OrganizationID int64    `json:"organization_id"`
	Projects       []int64  `json:"project"`
	Selected       []string `json:"selected_columns"`
	Conditions     string   `json:"conditions,omitempty"`
	Start          string   `json:"start"`
	End            string   `json:"end"`
	Offset         int      `json:"offset"`
	Limit          int      `json:"limit"`
}

type queryResponse struct {
	Data []map[string]any `json:"data"`
}

// Query runs one page of an export query.
func (c *HTTPClient) Query(ctx context.Context, req Request) (*Result, error) {
	if err := c.validate(req); err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() {
		metrics.QueryLatency.WithLabelValues(req.Dataset).Observe(time.Since(start).Seconds())
	}()

	reqURL, err := url.Parse(c.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid engine URL %q: %w", c.cfg.URL, err)
	}
	reqURL = reqURL.JoinPath("/query")

	payload, err := json.Marshal(queryRequest{
		Dataset:        req.Dataset,
		OrganizationID: req.OrganizationID,
		Projects:       req.Projects,
		Selected:       req.Fields,
		Conditions:     req.Conditions,
		Start:          req.Start.UTC().Format(time.RFC3339),
		End:            req.End.UTC().Format(time.RFC3339),
		Offset:         req.Offset,
		Limit:          req.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL.String(), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.BearerToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.BearerToken)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &domain.QueryFailure{
			Kind:    domain.FailureConnectionFailed,
			Message: err.Error(),
			Err:     err,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.QueryFailure{
			Kind:    domain.FailureConnectionFailed,
			Message: "read response: " + err.Error(),
			Err:     err,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, failureFromResponse(resp.StatusCode, resp.Status, body)
	}

	// Numbers stay json.Number so integers above 2^53 survive.
	var out queryResponse
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, domain.NewQueryFailure(domain.FailureOther, "parse response: %v", err)
	}
	return &Result{Rows: out.Data}, nil
}

func (c *HTTPClient) validate(req Request) error {
	if len(req.Fields) == 0 {
		return domain.NewQueryFailure(domain.FailureUnqualifiedQuery, "no columns selected")
	}
	if req.Dataset == "" {
		return domain.NewQueryFailure(domain.FailureDatasetSelection, "dataset is required")
	}
	if c.cfg.Retention > 0 {
		earliest := c.now().Add(-c.cfg.Retention)
		if req.Start.Before(earliest) {
			return domain.NewQueryFailure(
				domain.FailureOutsideRetention,
				"start %s is before retention window %s",
				req.Start.UTC().Format(time.RFC3339),
				earliest.UTC().Format(time.RFC3339),
			)
		}
	}
	return nil
}

func failureFromResponse(status int, statusText string, body []byte) *domain.QueryFailure {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && eb.Error != nil {
		msg := eb.Error.Message
		if msg == "" {
			msg = statusText
		}
		return &domain.QueryFailure{
			Kind:    ClassifyResponse(status, eb.Error.Type, eb.Error.Code),
			Message: msg,
		}
	}

	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = statusText
	}
	return &domain.QueryFailure{
		Kind:    ClassifyResponse(status, "", 0),
		Message: fmt.Sprintf("status %d: %s", status, msg),
	}
}
