package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/toko-square/internal/common"
	"github.com/noah-isme/toko-square/internal/config"
	"github.com/noah-isme/toko-square/internal/eligibility"
	"github.com/noah-isme/toko-square/internal/health"
	"github.com/noah-isme/toko-square/internal/lock"
	"github.com/noah-isme/toko-square/internal/money"
	"github.com/noah-isme/toko-square/internal/obs"
	"github.com/noah-isme/toko-square/internal/payment"
	"github.com/noah-isme/toko-square/internal/ratelimit"
	"github.com/noah-isme/toko-square/internal/repo"
	"github.com/noah-isme/toko-square/internal/resilience"
	"github.com/noah-isme/toko-square/internal/security"
	"github.com/noah-isme/toko-square/internal/session"
	"github.com/noah-isme/toko-square/internal/square"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(cfg.MetricsNamespace, nil)
	resilience.RegisterMetrics(cfg.MetricsNamespace, nil)

	tracingEnabled := cfg.TracingEnabled
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:      "toko-square",
			ServiceVersion:   envOrDefault("APP_VERSION", ""),
			Environment:      cfg.AppEnv,
			Endpoint:         cfg.OTLPEndpoint,
			Exporter:         envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio:    cfg.TracingSampling,
			SquareProduction: cfg.Square.Production,
			SquareAPIVersion: cfg.SquareAPIVersion,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	diagLogger, diagCloser, err := obs.NewDiagnosticLogger(cfg.DiagnosticLogPath)
	if err != nil {
		logger.Warn().Err(err).Str("path", cfg.DiagnosticLogPath).Msg("open square diagnostic log, falling back to main logger")
		diagLogger = logger.With().Str("component", "square").Logger()
	} else {
		defer func() {
			if err := diagCloser.Close(); err != nil {
				logger.Error().Err(err).Msg("close diagnostic log")
			}
		}()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := repo.NewPool(ctx, cfg.DatabaseURL, "toko-square")
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metricsEnabled {
		if err := redisotel.InstrumentMetrics(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	breaker := resilience.NewBreaker(resilience.BreakerConfig{
		Target:       "square",
		MinRequests:  envInt("SQUARE_BREAKER_MIN_REQUESTS", 5),
		FailureRatio: envFloat("SQUARE_BREAKER_FAILURE_RATIO", 0.5),
		OpenFor:      envDurationMillis("SQUARE_BREAKER_OPEN_MS", 30000),
		Logger:       logger,
	})
	squareClient := &square.Client{
		Production:  cfg.Square.Production,
		AccessToken: cfg.Square.AccessToken,
		Version:     cfg.SquareAPIVersion,
		HTTP: square.NewTransport(square.TransportConfig{
			Timeout:     cfg.SquareHTTPTimeout,
			MaxAttempts: cfg.SquareHTTPMaxAttempt,
			Breaker:     breaker,
		}),
		Log: diagLogger,
	}

	gateway := &payment.Gateway{
		Settings: cfg.Square,
		Client:   squareClient,
		Orders:   repo.Orders{DB: pool},
		Sessions: session.RedisStore{R: redisClient, TTL: cfg.SessionTTL},
		Eligible: eligibility.Filter{
			Zones:   repo.GeoZones{DB: pool},
			Catalog: repo.AttributeGroups{DB: pool},
			Logger:  logger,
		},
		Formatter:  money.StandardFormatter{},
		Translator: payment.FallbackTranslator{},
		Locks:      lock.Locker{R: redisClient, Prefix: "toko:lock:"},
		StoreName:  cfg.StoreName,
		ReturnURL:  cfg.ReturnURL(),
		CancelURL:  cfg.CancelURL(),
		Language:   cfg.Language,
		Logger:     logger,
	}
	paymentHandler := &payment.Handler{
		Gateway:      gateway,
		SecureCookie: strings.HasPrefix(cfg.PublicBaseURL, "https://"),
		CookieTTL:    cfg.SessionTTL,
	}

	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}

	paymentLimiter, err := ratelimit.NewRedisLimiter(redisClient, cfg.PaymentRateLimit, "toko:ratelimit:square")
	if err != nil {
		logger.Fatal().Err(err).Str("rate", cfg.PaymentRateLimit).Msg("initialise rate limiter")
	}
	rateLimit := ratelimit.Handler{
		Limiter: paymentLimiter,
		Key:     ratelimit.SessionOrIP(payment.SessionCookie),
		OnError: func(err error) { logger.Warn().Err(err).Msg("rate limiter unavailable") },
	}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		httpMetrics = obs.NewHTTPMetrics(cfg.MetricsNamespace, nil, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.Tracing("toko-square"))
	}
	if httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger, SessionCookie: payment.SessionCookie}.Middleware)
	r.Use(security.Headers{
		Enable:                envBool("SECURE_HEADERS_ENABLED", true),
		EnableHSTS:            envBool("SECURE_HSTS_ENABLED", false),
		HSTSMaxAge:            envInt("SECURE_HSTS_MAX_AGE", 31536000),
		HSTSIncludeSubdomains: envBool("SECURE_HSTS_INCLUDE_SUBDOMAINS", false),
		NoStore:               true,
	}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Idempotency-Key", "X-CSRF-Token"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if envBool("OBS_ENABLE_PPROF", false) {
		user := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), user, pass))
	}

	healthHandler := health.Handler{
		Checker:      readinessChecker{db: pool, redis: redisClient},
		Provider:     breaker,
		DBTimeout:    envDurationMillis("HEALTH_READY_DB_TIMEOUT_MS", 500),
		RedisTimeout: envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	paymentMW := []func(http.Handler) http.Handler{
		rateLimit.Middleware,
		security.BodyLimit{Max: int64(envInt("SECURE_MAX_BODY_BYTES", 1<<20))}.Middleware,
	}
	if envBool("SECURE_CSRF_ENABLED", false) {
		paymentMW = append(paymentMW, security.CSRF{Header: "X-CSRF-Token", Cookie: "toko_csrf"}.Middleware)
	}
	r.Route("/api/v1", func(v chi.Router) {
		v.With(paymentMW...).Mount("/payments/square", paymentHandler.Routes(idem.Middleware))
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logStartup(logger, cfg)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	case <-sigCtx.Done():
		health.SetReady(false)
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), envDurationMillis("SHUTDOWN_TIMEOUT_MS", 10000))
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown")
		}
	}
}

func logStartup(logger zerolog.Logger, cfg *config.Config) {
	logger.Info().
		Str("addr", cfg.HTTPAddr()).
		Bool("square_enabled", cfg.Square.Status).
		Bool("square_production", cfg.Square.Production).
		Str("square_base_url", square.BaseURL(cfg.Square.Production)).
		Msg("server starting")
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

type readinessChecker struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func (c readinessChecker) PingDB(ctx context.Context, timeout time.Duration) error {
	if c.db == nil {
		return errors.New("db not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.db.Ping(ctx)
}

func (c readinessChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	if c.redis == nil {
		return errors.New("redis not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.redis.Ping(ctx).Err()
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/heap", pprof.Handler("heap"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
