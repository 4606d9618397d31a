package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fjod/go_cart/pos-service/internal/domain"
	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var ErrBreakerOpen = errors.New("backend circuit breaker open")

// StatusError is returned for any response the client does not expect.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned status %d: %s", e.Code, e.Body)
}

type response struct {
	status int
	body   []byte
}

// Client talks to the sales backend over REST. Calls are never retried; the
// circuit breaker only fails fast while the backend keeps returning 5xx or
// transport errors.
type Client struct {
	httpClient *http.Client
	baseURL    string
	breaker    *gobreaker.CircuitBreaker[*response]
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
	c.breaker = gobreaker.NewCircuitBreaker[*response](gobreaker.Settings{
		Name:        "sales-backend",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type catalogResponse struct {
	StoreID string                `json:"store_id"`
	Units   []domain.SellableUnit `json:"units"`
}

// FetchCatalog returns every sellable unit with its stock at storeID.
func (c *Client) FetchCatalog(ctx context.Context, storeID string) ([]domain.SellableUnit, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/v1/stores/"+url.PathEscape(storeID)+"/catalog", nil, nil)
	if err != nil {
		return nil, err
	}
	if resp.status != http.StatusOK {
		return nil, &StatusError{Code: resp.status, Body: string(resp.body)}
	}

	var catalog catalogResponse
	if err := json.Unmarshal(resp.body, &catalog); err != nil {
		return nil, fmt.Errorf("error unmarshalling catalog response: %w", err)
	}
	return catalog.Units, nil
}

// CreateSale submits a pending or completed sale and returns the backend's record.
func (c *Client) CreateSale(ctx context.Context, req *domain.SaleRequest) (*domain.Sale, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("error marshalling sale request: %w", err)
	}
	headers := map[string]string{"Idempotency-Key": uuid.NewString()}

	resp, err := c.do(ctx, http.MethodPost, "/api/v1/sales", payload, headers)
	if err != nil {
		return nil, err
	}
	if resp.status != http.StatusOK && resp.status != http.StatusCreated {
		return nil, &StatusError{Code: resp.status, Body: string(resp.body)}
	}
	return decodeSale(resp.body)
}

func (c *Client) FetchSale(ctx context.Context, saleID string) (*domain.Sale, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/v1/sales/"+url.PathEscape(saleID), nil, nil)
	if err != nil {
		return nil, err
	}
	switch resp.status {
	case http.StatusOK:
		return decodeSale(resp.body)
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", domain.ErrSaleNotFound, saleID)
	default:
		return nil, &StatusError{Code: resp.status, Body: string(resp.body)}
	}
}

func (c *Client) DeleteSale(ctx context.Context, saleID string) error {
	resp, err := c.do(ctx, http.MethodDelete, "/api/v1/sales/"+url.PathEscape(saleID), nil, nil)
	if err != nil {
		return err
	}
	switch resp.status {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrSaleNotFound, saleID)
	default:
		return &StatusError{Code: resp.status, Body: string(resp.body)}
	}
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, headers map[string]string) (*response, error) {
	resp, err := c.breaker.Execute(func() (*response, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return nil, fmt.Errorf("error creating request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		httpResp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("error calling backend: %w", err)
		}
		defer httpResp.Body.Close()

		data, err := io.ReadAll(httpResp.Body)
		if err != nil {
			return nil, fmt.Errorf("error reading response: %w", err)
		}

		r := &response{status: httpResp.StatusCode, body: data}
		if httpResp.StatusCode >= http.StatusInternalServerError {
			// counted as a breaker failure
			return nil, &StatusError{Code: r.status, Body: string(r.body)}
		}
		return r, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrBreakerOpen, err)
	}
	return resp, err
}

func decodeSale(body []byte) (*domain.Sale, error) {
	var s domain.Sale
	if err := json.Unmarshal(body, &s); err != nil {
		return nil, fmt.Errorf("error unmarshalling sale response: %w", err)
	}
	return &s, nil
}
