package marketplace

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/erazemk/prodaja/internal/model"
)

// HTTPConfig configures a platform's listing API.
type HTTPConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// HTTPClient is a resty-backed implementation of Client for platforms that
// expose a JSON listing API.
type HTTPClient struct {
	httpClient *resty.Client
	platform   model.Platform
}

// NewHTTPClient builds a listing API client for platform.
func NewHTTPClient(platform model.Platform, cfg HTTPConfig) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	restyClient := resty.New()
	restyClient.
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)
	if cfg.APIKey != "" {
		restyClient.SetAuthToken(cfg.APIKey)
	}

	return &HTTPClient{httpClient: restyClient, platform: platform}
}

type listingRequest struct {
	AttemptID      string          `json:"attempt_id"`
	Platform       model.Platform  `json:"platform"`
	ModelName      string          `json:"model_name"`
	Brand          string          `json:"brand"`
	Condition      model.Condition `json:"condition"`
	ConditionLabel string          `json:"condition_label"`
	Storage        string          `json:"storage,omitempty"`
	Color          string          `json:"color,omitempty"`
	Tags           []string        `json:"tags"`
	Price          decimal.Decimal `json:"price"`
}

type listingResponse struct {
	Accepted bool             `json:"accepted"`
	Fee      *decimal.Decimal `json:"fee"`
	Message  string           `json:"message"`
}

type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (e *apiError) text() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}

// Submit posts s to the platform's /listings endpoint. 409 and 422 answers
// are rejections; any other non-2xx answer is a transport failure.
func (c *HTTPClient) Submit(ctx context.Context, s Submission) (Outcome, error) {
	payload := listingRequest{
		AttemptID:      s.AttemptID,
		Platform:       c.platform,
		ModelName:      s.Phone.ModelName,
		Brand:          s.Phone.Brand,
		Condition:      s.Phone.Condition,
		ConditionLabel: s.Label,
		Storage:        s.Phone.Storage,
		Color:          s.Phone.Color,
		Tags:           s.Phone.Tags,
		Price:          s.Price,
	}

	result := new(listingResponse)
	apiErr := new(apiError)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("Idempotency-Key", s.AttemptID).
		SetBody(payload).
		SetResult(result).
		SetError(apiErr).
		Post("/listings")
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: platform %s: %w", model.ErrTransportFailure, c.platform, err)
	}

	switch code := resp.StatusCode(); {
	case code == http.StatusConflict || code == http.StatusUnprocessableEntity:
		msg := apiErr.text()
		if msg == "" {
			msg = http.StatusText(code)
		}
		return Outcome{Accepted: false, Message: msg}, nil
	case code < 200 || code >= 300:
		return Outcome{}, fmt.Errorf("%w: platform %s: status %d: %s",
			model.ErrTransportFailure, c.platform, code, apiErr.text())
	}

	msg := result.Message
	if msg == "" && result.Accepted {
		msg = fmt.Sprintf("listed on platform %s at %s", c.platform, s.Price.StringFixed(2))
	}
	return Outcome{Accepted: result.Accepted, Fee: result.Fee, Message: msg}, nil
}
