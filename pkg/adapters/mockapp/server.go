package mockapp

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/apptrail/internal/logging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DigestHeader carries the base64 HMAC-SHA256 of the request body.
const DigestHeader = "X-MAC-DIGEST"

// ServerOption configures the HTTP handler.
type ServerOption func(*server)

// WithHMACKey requires every request body to be signed with key.
func WithHMACKey(key []byte) ServerOption {
	return func(s *server) {
		s.hmacKey = key
	}
}

// WithServerLogger configures request logging.
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(s *server) {
		s.logger = logger
	}
}

type server struct {
	app      *App
	hmacKey  []byte
	logger   *slog.Logger
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// NewHandler exposes app over HTTP: POST /{endpoint} with a JSON body,
// GET /metrics for Prometheus and GET /healthz.
func NewHandler(app *App, opts ...ServerOption) http.Handler {
	s := &server{
		app:    app,
		logger: logging.NewNop(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apptrail_mock_requests_total",
				Help: "Requests served by the mock application",
			},
			[]string{"endpoint", "outcome"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "apptrail_mock_request_duration_seconds",
				Help: "Latency of mock application requests",
			},
			[]string{"endpoint"},
		),
	}
	for _, opt := range opts {
		opt(s)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(s.requests, s.latency)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	r.Post("/{endpoint}", s.handle)
	return r
}

func (s *server) handle(w http.ResponseWriter, r *http.Request) {
	endpoint := chi.URLParam(r, "endpoint")
	started := time.Now()
	defer func() {
		s.latency.WithLabelValues(endpoint).Observe(time.Since(started).Seconds())
	}()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.reject(w, endpoint, "Failed to read body", http.StatusBadRequest)
		return
	}
	if len(s.hmacKey) > 0 && !s.validDigest(body, r.Header.Get(DigestHeader)) {
		s.reject(w, endpoint, "Invalid request signature", http.StatusUnauthorized)
		return
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		s.reject(w, endpoint, "Invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := s.app.Send(r.Context(), endpoint, payload)
	if err != nil {
		s.reject(w, endpoint, err.Error(), http.StatusInternalServerError)
		return
	}
	outcome := "ok"
	if resp["exception"] != nil {
		outcome = "error"
	}
	s.requests.WithLabelValues(endpoint, outcome).Inc()
	s.logger.Debug("Mock request", "endpoint", endpoint, "outcome", outcome)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn("Failed to encode response", "endpoint", endpoint, "err", err)
	}
}

func (s *server) reject(w http.ResponseWriter, endpoint, msg string, code int) {
	s.requests.WithLabelValues(endpoint, "rejected").Inc()
	http.Error(w, msg, code)
}

func (s *server) validDigest(body []byte, got string) bool {
	want, err := base64.StdEncoding.DecodeString(got)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, s.hmacKey)
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), want)
}
