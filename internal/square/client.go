package square

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/toko-square/internal/common"
	"github.com/noah-isme/toko-square/internal/obs"
)

const (
	// SandboxBaseURL is the Square sandbox API root.
	SandboxBaseURL = "https://connect.squareupsandbox.com/v2"
	// ProductionBaseURL is the Square production API root.
	ProductionBaseURL = "https://connect.squareup.com/v2"
	// DefaultVersion is the Square-Version header sent when none is configured.
	DefaultVersion = "2023-07-20"

	invalidResponse  = "Invalid response from remote machine"
	maxResponseBytes = 4 << 20
)

// Doer sends an HTTP request. resilience.HTTPClient satisfies it.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// BaseURL returns the API root for the given mode.
func BaseURL(production bool) string {
	if production {
		return ProductionBaseURL
	}
	return SandboxBaseURL
}

// Client talks JSON to the Square Connect v2 API.
type Client struct {
	// BaseURL overrides the sandbox/production root when set.
	BaseURL     string
	Production  bool
	AccessToken string
	Version     string
	HTTP        Doer
	// Log receives one diagnostic entry per call.
	Log zerolog.Logger
}

// Call sends body (nil for none) to endpoint and decodes the response into out
// (nil to discard). Errors are *common.AppError of kind transport, protocol or
// provider.
func (c *Client) Call(ctx context.Context, method, endpoint string, body, out any) (err error) {
	label := endpointLabel(endpoint)
	ctx, span := otel.Tracer("square.Client").Start(ctx, "square."+label)
	start := time.Now()
	result := "ok"
	defer func() {
		if err != nil {
			result = string(common.KindOf(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(attribute.String("square.result", result))
		span.End()
		obs.IncCounter(obs.SquareCallTotal, label, result)
		obs.ObserveMillis(obs.SquareCallLatency, time.Since(start), label)
	}()

	payload, err := encodeBody(body)
	if err != nil {
		return common.Protocol("encode request", err)
	}
	url := c.root() + "/" + strings.TrimLeft(endpoint, "/")
	span.SetAttributes(attribute.String("http.method", method), attribute.String("http.url", url))

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(payload))
	if err != nil {
		return common.Protocol("build request", err)
	}
	if len(payload) == 0 {
		req.Body = http.NoBody
		req.ContentLength = 0
	}
	version := c.Version
	if version == "" {
		version = DefaultVersion
	}
	req.Header.Set("Square-Version", version)
	req.Header.Set("Authorization", "Bearer "+c.AccessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.doer().Do(ctx, req)
	if err != nil {
		c.logCall(method, url, payload, 0, nil, time.Since(start), err)
		return common.Transport(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	c.logCall(method, url, payload, resp.StatusCode, data, time.Since(start), err)
	if err != nil {
		return common.Transport(err)
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	return decodeResponse(resp.StatusCode, data, out)
}

// CreatePaymentLink creates a hosted checkout for the embedded order.
func (c *Client) CreatePaymentLink(ctx context.Context, req CreatePaymentLinkRequest) (PaymentLink, error) {
	var out CreatePaymentLinkResponse
	if err := c.Call(ctx, http.MethodPost, "/online-checkout/payment-links", req, &out); err != nil {
		return PaymentLink{}, err
	}
	if out.PaymentLink.URL == "" || out.PaymentLink.OrderID == "" {
		return PaymentLink{}, common.Protocol(invalidResponse, fmt.Errorf("payment link missing url or order id"))
	}
	return out.PaymentLink, nil
}

// RetrieveOrder fetches a Square order by id.
func (c *Client) RetrieveOrder(ctx context.Context, orderID string) (Order, error) {
	var out RetrieveOrderResponse
	if err := c.Call(ctx, http.MethodGet, "/orders/"+orderID, nil, &out); err != nil {
		return Order{}, err
	}
	return out.Order, nil
}

func (c *Client) root() string {
	if base := strings.TrimSpace(c.BaseURL); base != "" {
		return strings.TrimRight(base, "/")
	}
	return BaseURL(c.Production)
}

func (c *Client) doer() Doer {
	if c.HTTP != nil {
		return c.HTTP
	}
	return NewTransport(TransportConfig{})
}

func (c *Client) logCall(method, url string, request []byte, status int, response []byte, took time.Duration, err error) {
	evt := c.Log.Info()
	if err != nil {
		evt = c.Log.Error().Err(err)
	}
	evt.Str("method", method).
		Str("url", url).
		Str("request", string(request)).
		Int("status", status).
		Str("response", string(response)).
		Int64("duration_ms", took.Milliseconds()).
		Msg("square_call")
}

func encodeBody(body any) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(body); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func decodeResponse(status int, data []byte, out any) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || len(fields) == 0 {
		if err == nil {
			err = fmt.Errorf("empty response (status %d)", status)
		}
		return common.Protocol(invalidResponse, err)
	}

	var apiErr apiError
	if err := json.Unmarshal(data, &apiErr); err == nil {
		if apiErr.Error != nil && apiErr.Error.Message != "" {
			return common.Provider("", apiErr.Error.Message)
		}
		if len(apiErr.Errors) > 0 {
			first := apiErr.Errors[0]
			msg := first.Detail
			if msg == "" {
				msg = first.Code
			}
			if msg == "" {
				msg = statusText(status)
			}
			appErr := common.Provider(first.Code, msg)
			appErr.Details = apiErr.Errors
			return appErr
		}
	}
	if status < 200 || status >= 300 {
		return common.Provider("", statusText(status))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return common.Protocol(invalidResponse, err)
	}
	return nil
}

func statusText(status int) string {
	return fmt.Sprintf("%d %s", status, http.StatusText(status))
}

// endpointLabel keeps metric cardinality bounded by dropping ids.
func endpointLabel(endpoint string) string {
	path := strings.Trim(endpoint, "/")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	switch {
	case strings.HasPrefix(path, "online-checkout/payment-links"):
		return "payment_links"
	case strings.HasPrefix(path, "orders"):
		return "orders"
	case path == "":
		return "root"
	default:
		first, _, _ := strings.Cut(path, "/")
		return strings.ReplaceAll(first, "-", "_")
	}
}
