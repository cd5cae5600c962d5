package paystack

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

	"github.com/chopmart/chopmart-backend/pkg/config"
	pkgerrors "github.com/chopmart/chopmart-backend/pkg/errors"
)

const (
	defaultBaseURL         = "https://api.paystack.co"
	errorBodyLimit   int64 = 1024
	defaultTimeout         = 15 * time.Second
)

var errSecretKeyRequired = errors.New("paystack secret key is required")

// Client talks to the Paystack transactions API.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	secretKey   string
	callbackURL string
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(baseURL); trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

func WithCallbackURL(callbackURL string) Option {
	return func(c *Client) {
		c.callbackURL = strings.TrimSpace(callbackURL)
	}
}

func NewClient(secretKey string, opts ...Option) (*Client, error) {
	key := strings.TrimSpace(secretKey)
	if key == "" {
		return nil, errSecretKeyRequired
	}
	client := &Client{
		secretKey:  key,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// FromConfig builds a client from the Paystack config section.
func FromConfig(cfg config.PaystackConfig) (*Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return NewClient(cfg.SecretKey,
		WithBaseURL(cfg.BaseURL),
		WithCallbackURL(cfg.CallbackURL),
		WithHTTPClient(&http.Client{Timeout: timeout}),
	)
}

// InitializeRequest opens a transaction. Amount is in kobo.
type InitializeRequest struct {
	Email     string         `json:"email"`
	Amount    int64          `json:"amount"`
	Reference string         `json:"reference,omitempty"`
	Currency  string         `json:"currency,omitempty"`
	Callback  string         `json:"callback_url,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type Transaction struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// Verification is the settled state of a transaction.
type Verification struct {
	Status    string `json:"status"`
	Reference string `json:"reference"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	PaidAt    string `json:"paid_at"`
}

// Paid reports whether Paystack settled the charge.
func (v Verification) Paid() bool { return v.Status == "success" }

type envelope[T any] struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

func (c *Client) Initialize(ctx context.Context, req InitializeRequest) (*Transaction, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "paystack client not configured")
	}
	if strings.TrimSpace(req.Email) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payer email is required")
	}
	if req.Amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if req.Callback == "" {
		req.Callback = c.callbackURL
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal initialize request")
	}
	var out envelope[Transaction]
	if err := c.do(ctx, http.MethodPost, "transaction/initialize", bytes.NewReader(payload), &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

func (c *Client) Verify(ctx context.Context, reference string) (*Verification, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "paystack client not configured")
	}
	ref := strings.TrimSpace(reference)
	if ref == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reference is required")
	}
	var out envelope[Verification]
	if err := c.do(ctx, http.MethodGet, "transaction/verify/"+url.PathEscape(ref), nil, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

// statusEnvelope is implemented by every decoded Paystack response.
type statusEnvelope interface {
	ok() (bool, string)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out statusEnvelope) error {
	httpReq, err := http.NewRequestWithContext(ctx, method, c.buildURL(path), body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build paystack request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.secretKey)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute paystack request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "paystack request failed")
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode paystack response")
	}
	if success, msg := out.ok(); !success {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New(msg), "paystack rejected request")
	}
	return nil
}

func (e *envelope[T]) ok() (bool, string) { return e.Status, e.Message }

func (c *Client) buildURL(path string) string {
	return fmt.Sprintf("%s/%s", strings.TrimRight(c.baseURL, "/"), strings.TrimLeft(path, "/"))
}
