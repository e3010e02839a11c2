package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/NextMind-AI/crm-go/messages"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// ErrInvalidRequest is returned when FetchPage is called with arguments that
// would produce a malformed upstream request.
var ErrInvalidRequest = errors.New("invalid fetch request")

// Client fetches conversation pages from the workflow server.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

func WithAPIKey(apiKey string) Option {
	return func(c *Client) {
		c.apiKey = apiKey
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// WithRateLimit bounds the request rate towards the workflow server.
// A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func NewClient(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("gateway base URL is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("failed to parse gateway base URL: %w", err)
	}

	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// FetchPage issues GET /messages/{key}?page=&limit= and decodes whichever
// response shape the server produced. An unrecognized shape is logged and
// yields an empty page instead of an error.
func (c *Client) FetchPage(ctx context.Context, clinicID, key string, page, limit int) (messages.Page, error) {
	if err := validate(clinicID, key, page, limit); err != nil {
		return messages.Page{}, err
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return messages.Page{}, &FetchError{URL: c.baseURL, Err: err}
		}
	}

	endpoint := c.messagesURL(clinicID, key, page, limit)
	body, err := c.sendRequest(ctx, http.MethodGet, endpoint)
	if err != nil {
		return messages.Page{}, err
	}

	result, err := messages.ParseResponse(body, page, limit)
	if err != nil || result.Shape == messages.ShapeUnknown {
		log.Warn().
			Err(err).
			Str("conversation_key", key).
			Int("page", page).
			Int("body_size", len(body)).
			Msg("Unrecognized message response shape, returning empty page")
		return result, nil
	}

	log.Debug().
		Str("conversation_key", key).
		Str("shape", result.Shape.String()).
		Int("page", page).
		Int("records", len(result.Records)).
		Msg("Fetched message page")

	return result, nil
}

func (c *Client) messagesURL(clinicID, key string, page, limit int) string {
	q := url.Values{}
	q.Set("clinicId", clinicID)
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	return c.baseURL + "/messages/" + url.PathEscape(key) + "?" + q.Encode()
}

func validate(clinicID, key string, page, limit int) error {
	switch {
	case strings.TrimSpace(clinicID) == "":
		return fmt.Errorf("%w: clinic id is required", ErrInvalidRequest)
	case strings.TrimSpace(key) == "":
		return fmt.Errorf("%w: conversation key is required", ErrInvalidRequest)
	case page < 1:
		return fmt.Errorf("%w: page must be >= 1, got %d", ErrInvalidRequest, page)
	case limit <= 0:
		return fmt.Errorf("%w: limit must be > 0, got %d", ErrInvalidRequest, limit)
	}
	return nil
}
