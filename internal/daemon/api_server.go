package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/feeds"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lbfeed/internal/config"
	"lbfeed/internal/feed"
	"lbfeed/internal/logging"
	"lbfeed/internal/services"
)

const requestIDHeader = "X-Request-ID"

type feedBuilder interface {
	Build(ctx context.Context, user string, days int) (*feeds.RssFeed, error)
}

type statusSource interface {
	Status(ctx context.Context) Status
}

type apiServer struct {
	bind           string
	logger         *slog.Logger
	builder        feedBuilder
	status         statusSource
	defaultDays    int
	maxDays        int
	requestTimeout time.Duration

	handler  http.Handler
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:           strings.TrimSpace(cfg.Server.Bind),
		logger:         logger,
		builder:        d.builder,
		status:         d,
		defaultDays:    cfg.Server.DefaultDays,
		maxDays:        cfg.Server.MaxDays,
		requestTimeout: cfg.RequestTimeout(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/feed", srv.handleFeed)
	mux.HandleFunc("/healthz", srv.handleHealth)
	mux.Handle("/metrics", promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{}))
	srv.handler = srv.withRequestLog(mux)

	// A cold feed resolves one release per rate window, so writes get far
	// more room than reads.
	writeTimeout := 15 * time.Minute
	if srv.requestTimeout > 0 {
		writeTimeout = srv.requestTimeout + 5*time.Second
	}
	srv.server = &http.Server{
		Handler:           srv.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener
	s.server.BaseContext = func(net.Listener) context.Context { return ctx }

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.ErrorWithContext(s.logger, "api server error", "api_server_failed", logging.Error(err))
		}
	}()

	s.logger.Info("api server listening",
		logging.String(logging.FieldEventType, "api_listening"),
		logging.String("address", listener.Addr().String()),
	)
	return nil
}

func (s *apiServer) stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
}

func (s *apiServer) address() string {
	if s.listener == nil {
		return s.bind
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleFeed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	query := r.URL.Query()
	user := strings.TrimSpace(query.Get("user"))
	if user == "" {
		s.writeError(w, http.StatusBadRequest, "missing user parameter")
		return
	}
	days := s.defaultDays
	if raw := strings.TrimSpace(query.Get("days")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			s.writeError(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		days = parsed
	}
	if s.maxDays > 0 && days > s.maxDays {
		days = s.maxDays
	}

	ctx := r.Context()
	if s.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.requestTimeout)
		defer cancel()
	}

	channel, err := s.builder.Build(ctx, user, days)
	if err != nil {
		s.writeError(w, statusForError(err), err.Error())
		return
	}
	body, err := feed.Render(channel)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status := s.status.Status(r.Context())
	code := http.StatusOK
	if !status.Running {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, status)
}

// statusForError maps error kinds onto HTTP responses.
func statusForError(err error) int {
	switch services.Kind(err) {
	case "validation":
		return http.StatusBadRequest
	case "transport", "decode":
		return http.StatusBadGateway
	case "canceled":
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("encode api response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(message + "\n"))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// withRequestLog stamps a correlation id on every request and logs its outcome.
func (s *apiServer) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)
		ctx := services.WithRequestID(r.Context(), requestID)

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(recorder, r.WithContext(ctx))

		attrs := []logging.Attr{
			logging.String(logging.FieldEventType, "http_request"),
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", recorder.status),
			logging.Duration("elapsed", time.Since(start)),
		}
		logger := logging.WithContext(ctx, s.logger)
		if recorder.status >= http.StatusInternalServerError {
			logger.Warn("request failed", logging.Args(attrs...)...)
			return
		}
		logger.Info("request served", logging.Args(attrs...)...)
	})
}
