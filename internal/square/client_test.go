package square_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-square/internal/common"
	"github.com/noah-isme/toko-square/internal/square"
)

type capturedRequest struct {
	Method  string
	Path    string
	Headers http.Header
	Body    string
}

func newServer(t *testing.T, status int, body string) (*httptest.Server, func() []capturedRequest) {
	t.Helper()
	var (
		mu   sync.Mutex
		seen []capturedRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		seen = append(seen, capturedRequest{Method: r.Method, Path: r.URL.Path, Headers: r.Header.Clone(), Body: string(data)})
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, func() []capturedRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]capturedRequest(nil), seen...)
	}
}

func newClient(baseURL string, log zerolog.Logger) *square.Client {
	return &square.Client{
		BaseURL:     baseURL + "/v2",
		AccessToken: "EAAA-secret",
		HTTP:        square.NewTransport(square.TransportConfig{}),
		Log:         log,
	}
}

func TestBaseURL(t *testing.T) {
	require.Equal(t, "https://connect.squareupsandbox.com/v2", square.BaseURL(false))
	require.Equal(t, "https://connect.squareup.com/v2", square.BaseURL(true))
}

func TestCreatePaymentLinkSendsHeadersAndPrettyBody(t *testing.T) {
	srv, seen := newServer(t, http.StatusOK, `{"payment_link":{"id":"PL1","order_id":"SQ-ORDER","url":"https://square.link/u/abc"}}`)
	client := newClient(srv.URL, zerolog.Nop())

	link, err := client.CreatePaymentLink(context.Background(), square.CreatePaymentLinkRequest{
		IdempotencyKey:  "key-1",
		CheckoutOptions: square.CheckoutOptions{RedirectURL: "https://shop.example.com/order_process?a=1&b=2"},
		Order: square.OrderDraft{
			LocationID:  "L1",
			ReferenceID: "42",
			LineItems: []square.LineItem{
				{Name: "Mug", Quantity: "2", BasePriceMoney: square.Money{Amount: 108000, Currency: "USD"}},
			},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "SQ-ORDER", link.OrderID)
	require.Equal(t, "https://square.link/u/abc", link.URL)

	requests := seen()
	require.Len(t, requests, 1)
	got := requests[0]
	require.Equal(t, http.MethodPost, got.Method)
	require.Equal(t, "/v2/online-checkout/payment-links", got.Path)
	require.Equal(t, "2023-07-20", got.Headers.Get("Square-Version"))
	require.Equal(t, "Bearer EAAA-secret", got.Headers.Get("Authorization"))
	require.Equal(t, "application/json", got.Headers.Get("Content-Type"))
	require.Contains(t, got.Body, "\n    \"idempotency_key\": \"key-1\"")
	require.Contains(t, got.Body, "https://shop.example.com/order_process?a=1&b=2")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(got.Body), &decoded))
	require.Equal(t, "42", decoded["order"].(map[string]any)["reference_id"])
}

func TestRetrieveOrderSendsNoBody(t *testing.T) {
	srv, seen := newServer(t, http.StatusOK, `{"order":{"id":"SQ-ORDER","state":"COMPLETED"}}`)
	client := newClient(srv.URL, zerolog.Nop())
	client.Version = "2024-01-18"

	order, err := client.RetrieveOrder(context.Background(), "SQ-ORDER")
	require.NoError(t, err)
	require.Equal(t, "SQ-ORDER", order.ID)
	require.True(t, order.Paid())

	got := seen()[0]
	require.Equal(t, http.MethodGet, got.Method)
	require.Equal(t, "/v2/orders/SQ-ORDER", got.Path)
	require.Empty(t, got.Body)
	require.Equal(t, "2024-01-18", got.Headers.Get("Square-Version"))
}

func TestCallProtocolErrors(t *testing.T) {
	for name, body := range map[string]string{
		"empty":        "",
		"not json":     "<html>bad gateway</html>",
		"empty object": "{}",
		"json scalar":  "false",
	} {
		t.Run(name, func(t *testing.T) {
			srv, _ := newServer(t, http.StatusOK, body)
			err := newClient(srv.URL, zerolog.Nop()).Call(context.Background(), http.MethodGet, "/locations", nil, nil)
			require.Error(t, err)
			require.Equal(t, common.KindProtocol, common.KindOf(err))
			require.Equal(t, "Invalid response from remote machine", err.Error())
		})
	}
}

func TestCallProviderErrorShapes(t *testing.T) {
	t.Run("error.message", func(t *testing.T) {
		srv, _ := newServer(t, http.StatusOK, `{"error":{"message":"Location not found"}}`)
		err := newClient(srv.URL, zerolog.Nop()).Call(context.Background(), http.MethodGet, "/locations", nil, nil)
		require.Equal(t, common.KindProvider, common.KindOf(err))
		require.Equal(t, "Location not found", err.Error())
	})
	t.Run("errors detail", func(t *testing.T) {
		srv, _ := newServer(t, http.StatusUnauthorized, `{"errors":[{"category":"AUTHENTICATION_ERROR","code":"UNAUTHORIZED","detail":"This request could not be authorized."}]}`)
		err := newClient(srv.URL, zerolog.Nop()).Call(context.Background(), http.MethodGet, "/locations", nil, nil)
		var appErr *common.AppError
		require.True(t, errors.As(err, &appErr))
		require.Equal(t, common.KindProvider, appErr.Kind)
		require.Equal(t, "UNAUTHORIZED", appErr.Code)
		require.Equal(t, "This request could not be authorized.", appErr.Message)
	})
	t.Run("status only", func(t *testing.T) {
		srv, _ := newServer(t, http.StatusNotFound, `{"order":null}`)
		err := newClient(srv.URL, zerolog.Nop()).Call(context.Background(), http.MethodGet, "/orders/x", nil, nil)
		require.Equal(t, common.KindProvider, common.KindOf(err))
		require.Equal(t, "404 Not Found", err.Error())
	})
}

func TestCallTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	err := newClient(base, zerolog.Nop()).Call(context.Background(), http.MethodGet, "/locations", nil, nil)
	require.Equal(t, common.KindTransport, common.KindOf(err))
}

func TestCreatePaymentLinkRejectsIncompleteLink(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, `{"payment_link":{"id":"PL1"}}`)
	_, err := newClient(srv.URL, zerolog.Nop()).CreatePaymentLink(context.Background(), square.CreatePaymentLinkRequest{})
	require.Equal(t, common.KindProtocol, common.KindOf(err))
}

func TestDiagnosticLogOmitsToken(t *testing.T) {
	var buf strings.Builder
	srv, _ := newServer(t, http.StatusOK, `{"order":{"id":"SQ-1","state":"OPEN"}}`)
	client := newClient(srv.URL, zerolog.New(&buf))

	_, err := client.RetrieveOrder(context.Background(), "SQ-1")
	require.NoError(t, err)

	line := buf.String()
	require.Equal(t, 1, strings.Count(line, "\n"))
	require.Contains(t, line, `"message":"square_call"`)
	require.Contains(t, line, `"status":200`)
	require.Contains(t, line, "/v2/orders/SQ-1")
	require.NotContains(t, line, "EAAA-secret")
}

func TestOrderPaid(t *testing.T) {
	require.True(t, square.Order{State: square.OrderStateCompleted}.Paid())
	require.False(t, square.Order{State: square.OrderStateOpen}.Paid())
	require.True(t, square.Order{State: square.OrderStateOpen, Tenders: []square.Tender{{ID: "t"}}}.Paid())
	require.False(t, square.Order{State: square.OrderStateCanceled, Tenders: []square.Tender{{ID: "t"}}}.Paid())
}
