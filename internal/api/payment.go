package api

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"festival-scoring/internal/config"

	"github.com/valyala/fasthttp"
)

// Provider is the opaque payment collaborator: order creation happens
// over HTTP, signature verification is a local HMAC check against the
// key secret the provider shares with us.
type Provider interface {
	CreateOrder(ctx context.Context, amount int64, currency, receipt string) (string, error)
	VerifySignature(orderID, paymentID, signature string) bool
}

type ProviderClient struct {
	keyID     string
	keySecret string
	baseURL   string
	client    *fasthttp.Client
}

func NewProviderClient(cfg *config.Config) *ProviderClient {
	return &ProviderClient{
		keyID:     cfg.PaymentKeyID,
		keySecret: cfg.PaymentKeySecret,
		baseURL:   cfg.PaymentBaseURL,
		client: &fasthttp.Client{
			MaxConnsPerHost:     100,
			ReadTimeout:         10 * time.Second,
			WriteTimeout:        10 * time.Second,
			MaxIdleConnDuration: 1 * time.Minute,
		},
	}
}

type orderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type orderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

// CreateOrder registers an order for exactly amount with the provider
// and returns the provider's order id.
func (c *ProviderClient) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (string, error) {
	body, err := json.Marshal(orderRequest{Amount: amount, Currency: currency, Receipt: receipt})
	if err != nil {
		return "", fmt.Errorf("failed to marshal order request: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + "/v1/orders")
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set("Authorization", "Basic "+basicAuth(c.keyID, c.keySecret))
	req.SetBody(body)

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(10 * time.Second)
	}
	if err := c.client.DoDeadline(req, resp, deadline); err != nil {
		return "", fmt.Errorf("order create request failed: %w", err)
	}
	if resp.StatusCode() != fasthttp.StatusOK && resp.StatusCode() != fasthttp.StatusCreated {
		return "", fmt.Errorf("order create returned status %d", resp.StatusCode())
	}

	var order orderResponse
	if err := json.Unmarshal(resp.Body(), &order); err != nil {
		return "", fmt.Errorf("failed to parse order response: %w", err)
	}
	if order.ID == "" {
		return "", fmt.Errorf("order response carries no order id")
	}
	return order.ID, nil
}

// VerifySignature checks the provider's HMAC-SHA256 over
// "<order_id>|<payment_id>" keyed with the key secret.
func (c *ProviderClient) VerifySignature(orderID, paymentID, signature string) bool {
	mac := hmac.New(sha256.New, []byte(c.keySecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func basicAuth(user, pass string) string {
	return base64.StdEncoding.EncodeToString([]byte(user + ":" + pass))
}
