package http

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	pay "github.com/thisyearnofear/imperfectcoach-pay"
	"github.com/thisyearnofear/imperfectcoach-pay/http/internal/helpers"
)

// Client is an HTTP client that negotiates 402 challenges transparently.
// It wraps a standard http.Client with a PaymentTransport.
type Client struct {
	*http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client) error

// NewClient creates a payment-enabled HTTP client. A registry and at
// least one adapter are required for the transport to do anything
// useful.
func NewClient(registry *pay.Registry, opts ...ClientOption) (*Client, error) {
	if registry == nil {
		return nil, fmt.Errorf("payhttp: registry is required")
	}

	client := &Client{Client: &http.Client{}}
	client.Transport = &PaymentTransport{
		Base:     http.DefaultTransport,
		Registry: registry,
		Adapters: pay.AdapterSet{},
	}

	for _, opt := range opts {
		if err := opt(client); err != nil {
			return nil, err
		}
	}
	return client, nil
}

// WithHTTPClient sets a custom underlying HTTP client; its transport
// becomes the payment transport's base.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) error {
		transport := c.paymentTransport()
		if httpClient.Transport != nil {
			transport.Base = httpClient.Transport
		}
		httpClient.Transport = transport
		c.Client = httpClient
		return nil
	}
}

// WithAdapter registers signing adapters, keyed by family. One adapter
// per family; registering a second for the same family replaces the
// first.
func WithAdapter(adapters ...pay.SigningAdapter) ClientOption {
	return func(c *Client) error {
		for _, adapter := range adapters {
			if adapter == nil {
				return fmt.Errorf("payhttp: nil adapter")
			}
			c.paymentTransport().Adapters[adapter.Family()] = adapter
		}
		return nil
	}
}

// WithPaymentCallbacks sets the lifecycle callbacks. Pass nil for any
// callback you don't want.
func WithPaymentCallbacks(onAttempt, onSuccess, onFailure pay.PaymentCallback) ClientOption {
	return func(c *Client) error {
		transport := c.paymentTransport()
		if onAttempt != nil {
			transport.OnPaymentAttempt = onAttempt
		}
		if onSuccess != nil {
			transport.OnPaymentSuccess = onSuccess
		}
		if onFailure != nil {
			transport.OnPaymentFailure = onFailure
		}
		return nil
	}
}

func (c *Client) paymentTransport() *PaymentTransport {
	return c.Transport.(*PaymentTransport)
}

// Negotiate implements pay.Negotiator: one full challenge/response
// exchange against the endpoint on the routed network. The body is sent
// as JSON; it may be transmitted twice (initial request and paid retry).
func (c *Client) Negotiate(ctx context.Context, endpoint string, body []byte, networkID string) (*pay.Negotiation, error) {
	tr := &trace{state: StateIdle}
	ctx = withTrace(ctx, tr)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("payhttp: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderChain, networkID)

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}

	respBody, err := ReadBody(resp)
	if err != nil {
		return nil, fmt.Errorf("payhttp: read response: %w", err)
	}

	settlement := GetSettlement(resp)
	if settlement == nil {
		settlement = SettlementFromBody(respBody)
	}

	return &pay.Negotiation{
		StatusCode:        resp.StatusCode,
		Body:              respBody,
		Settlement:        settlement,
		Authorization:     tr.authorization,
		AuthorizationHash: tr.authorizationHash,
	}, nil
}

// GetSettlement extracts settlement information from a response header.
// Returns nil if absent or unparseable.
func GetSettlement(resp *http.Response) *pay.Settlement {
	return helpers.ParseSettlement(resp.Header.Get(HeaderPaymentResponse))
}

// SettlementFromBody extracts a settlement reference inlined in the
// business payload, if any.
func SettlementFromBody(body []byte) *pay.Settlement {
	return helpers.SettlementFromBody(body)
}
