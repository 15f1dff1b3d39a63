package square

import (
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/toko-square/internal/resilience"
)

// TransportConfig configures the default outbound transport.
type TransportConfig struct {
	Timeout     time.Duration
	MaxAttempts int
	Breaker     *resilience.Breaker
}

// NewTransport returns a Doer that traces requests with otelhttp and applies
// the timeout, retry and breaker policy from cfg.
func NewTransport(cfg TransportConfig) Doer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return resilience.HTTPClient{
		Client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		Breaker:     cfg.Breaker,
		MaxAttempts: cfg.MaxAttempts,
		BaseBackoff: 200 * time.Millisecond,
		Jitter:      0.2,
		Timeout:     timeout,
	}
}
