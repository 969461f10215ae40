// Package backend is the REST client of the ordering backend. It normalizes
// the backend's loosely-typed payloads into domain values.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/kart-checkout/internal/domain/catalog"
	"github.com/xenking/kart-checkout/internal/domain/loyalty"
	"github.com/xenking/kart-checkout/internal/domain/order"
)

const maxBodySize = 4 << 20

// Config controls the outbound client.
type Config struct {
	BaseURL        string
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
	Breaker        BreakerConfig
	// Tracer and Meter instrument outbound calls; nil uses the globals.
	Tracer trace.TracerProvider
	Meter  metric.MeterProvider
}

// BreakerConfig controls the circuit breaker in front of the backend.
type BreakerConfig struct {
	// MaxFailures consecutive failures open the breaker.
	MaxFailures uint32
	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration
	// HalfOpenRequests are let through while probing.
	HalfOpenRequests uint32
}

// Client talks to the ordering backend.
type Client struct {
	base    *url.URL
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
}

var (
	_ catalog.Source        = (*Client)(nil)
	_ loyalty.BalanceSource = (*Client)(nil)
	_ order.Gateway         = (*Client)(nil)
)

// NewClient creates a backend client. Requests are traced via otelhttp.
func NewClient(cfg Config, lg *zap.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, errors.Errorf("backend base url %q must be absolute", cfg.BaseURL)
	}

	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout}
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: cfg.ConnectTimeout,
		MaxIdleConnsPerHost: 16,
		IdleConnTimeout:     90 * time.Second,
	}

	maxFailures := cfg.Breaker.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "ordering-backend",
		MaxRequests: cfg.Breaker.HalfOpenRequests,
		Timeout:     cfg.Breaker.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || isClientError(err) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			lg.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		},
	})

	var otelOpts []otelhttp.Option
	if cfg.Tracer != nil {
		otelOpts = append(otelOpts, otelhttp.WithTracerProvider(cfg.Tracer))
	}
	if cfg.Meter != nil {
		otelOpts = append(otelOpts, otelhttp.WithMeterProvider(cfg.Meter))
	}

	return &Client{
		base: base,
		http: &http.Client{
			Timeout:   cfg.RequestTimeout,
			Transport: otelhttp.NewTransport(transport, otelOpts...),
		},
		breaker: breaker,
	}, nil
}

// Ingredients fetches the ingredient catalog.
func (c *Client) Ingredients(ctx context.Context) ([]catalog.Ingredient, error) {
	body, err := c.do(ctx, http.MethodGet, "/ingredients", "", nil)
	if err != nil {
		return nil, errors.Wrap(err, "get ingredients")
	}
	return DecodeIngredients(body)
}

// Product fetches a product by ID.
func (c *Client) Product(ctx context.Context, id int64) (*catalog.Product, error) {
	body, err := c.do(ctx, http.MethodGet, "/products/"+strconv.FormatInt(id, 10), "", nil)
	if err != nil {
		if isNotFound(err) {
			return nil, catalog.ErrProductNotFound
		}
		return nil, errors.Wrapf(err, "get product %d", id)
	}
	return DecodeProduct(body)
}

// ProductIngredients fetches the ingredient rules of a product.
func (c *Client) ProductIngredients(ctx context.Context, productID int64) ([]catalog.IngredientRule, error) {
	path := "/products/" + strconv.FormatInt(productID, 10) + "/ingredients"
	body, err := c.do(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		if isNotFound(err) {
			return nil, catalog.ErrProductNotFound
		}
		return nil, errors.Wrapf(err, "get product %d ingredients", productID)
	}
	return DecodeIngredientRules(body)
}

// Settings fetches the public settings.
func (c *Client) Settings(ctx context.Context) (*catalog.Settings, error) {
	body, err := c.do(ctx, http.MethodGet, "/settings/public", "", nil)
	if err != nil {
		return nil, errors.Wrap(err, "get settings")
	}
	return DecodeSettings(body)
}

// LoyaltyBalance fetches the point balance of the authenticated user.
func (c *Client) LoyaltyBalance(ctx context.Context, token string) (int64, error) {
	body, err := c.do(ctx, http.MethodGet, "/loyalty/balance", token, nil)
	if err != nil {
		return 0, errors.Wrap(err, "get loyalty balance")
	}
	return DecodeLoyaltyBalance(body)
}

// CreateOrder submits an order.
func (c *Client) CreateOrder(ctx context.Context, token string, req order.Request) (*order.Created, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "marshal order")
	}
	body, err := c.do(ctx, http.MethodPost, "/orders", token, payload)
	if err != nil {
		return nil, errors.Wrap(err, "create order")
	}
	return DecodeCreated(body)
}

// Ping checks that the backend answers. Used by readiness checks.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/settings/public", "", nil)
	return err
}

func (c *Client) do(ctx context.Context, method, path, token string, payload []byte) ([]byte, error) {
	body, err := c.breaker.Execute(func() ([]byte, error) {
		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, reqBody)
		if err != nil {
			return nil, errors.Wrap(err, "new request")
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, errors.Wrap(err, "send request")
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		if err != nil {
			return nil, errors.Wrap(err, "read response")
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, statusError(resp.StatusCode, data)
		}
		return data, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, errors.Wrap(ErrUnavailable, err.Error())
	}
	return body, err
}

func isNotFound(err error) bool {
	var status *StatusError
	return errors.As(err, &status) && status.Status == http.StatusNotFound
}
