package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/time/rate"

	"eventspool/internal/events"
)

type GatewayClient interface {
	SendEvents(ctx context.Context, evts []events.Event) error
}

type Option func(*httpClient)

// WithToken signs every request with an HS256 bearer token for subject.
func WithToken(secret, subject string) Option {
	return func(h *httpClient) {
		h.secret = []byte(secret)
		h.subject = subject
	}
}

// WithRateLimit caps requests per second. Zero or less disables the limit.
func WithRateLimit(perSecond float64) Option {
	return func(h *httpClient) {
		if perSecond > 0 {
			h.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

func WithHTTPClient(c *http.Client) Option {
	return func(h *httpClient) { h.c = c }
}

type httpClient struct {
	url     string
	c       *http.Client
	secret  []byte
	subject string
	limiter *rate.Limiter
}

func NewHTTPClient(url string, opts ...Option) GatewayClient {
	h := &httpClient{url: url, c: &http.Client{Timeout: 15 * time.Second}}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *httpClient) SendEvents(ctx context.Context, evts []events.Event) error {
	if h.url == "" || len(evts) == 0 {
		return nil
	}
	if h.limiter != nil {
		if err := h.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	payload, err := json.Marshal(evts)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if len(h.secret) > 0 {
		token, err := h.token()
		if err != nil {
			return fmt.Errorf("sign gateway token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := h.c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}
	return nil
}

func (h *httpClient) token() (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   h.subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(5 * time.Minute)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.secret)
}
