// Package httpbridge exposes the agent bridge over HTTP: outbound envelopes
// stream to browser agents through SSE, inbound envelopes arrive by POST.
package httpbridge

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/bnema/autoseed-cli/internal/bridge"
)

// ErrNoAgent is returned by Broadcast when no agent is connected.
var ErrNoAgent = errors.New("no agent connected")

const (
	DefaultHeartbeat = 15 * time.Second
	maxMessageBytes  = 1 << 20
	agentBuffer      = 64
)

// Inbound receives raw envelopes posted by agents and reports envelopes it
// could not decode. *bridge.Client satisfies it.
type Inbound interface {
	Deliver(raw []byte) error
}

type Server struct {
	router    chi.Router
	logger    *zap.Logger
	heartbeat time.Duration
	origins   []string
	now       func() time.Time

	mu      sync.RWMutex
	inbound Inbound
	agents  map[*agent]struct{}
}

var _ bridge.Transport = (*Server)(nil)

type ServerOption func(*Server)

func WithLogger(logger *zap.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithHeartbeat(d time.Duration) ServerOption {
	return func(s *Server) {
		if d > 0 {
			s.heartbeat = d
		}
	}
}

// WithAllowedOrigins restricts CORS origins. The default allows any origin,
// which browser extensions need.
func WithAllowedOrigins(origins ...string) ServerOption {
	return func(s *Server) {
		if len(origins) > 0 {
			s.origins = origins
		}
	}
}

func NewServer(opts ...ServerOption) *Server {
	s := &Server{
		logger:    zap.NewNop(),
		heartbeat: DefaultHeartbeat,
		origins:   []string{"*"},
		now:       time.Now,
		agents:    make(map[*agent]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("httpbridge")
	s.router = s.setupRouter()
	return s
}

// Attach sets the receiver of inbound envelopes. The bridge client needs the
// server as its transport, so the two are linked after construction.
func (s *Server) Attach(in Inbound) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inbound = in
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.loggingMiddleware)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Requested-With", "X-Agent-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	})
	r.Use(corsHandler.Handler)

	r.Get("/health", s.handleHealth)

	r.Route("/bridge", func(r chi.Router) {
		// The event stream is long-lived; only the short endpoints get a timeout.
		r.Get("/events", s.handleEvents)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))
			r.Post("/messages", s.handleMessage)
			r.Get("/status", s.handleStatus)
		})
	})

	return r
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.Int("bytes", ww.BytesWritten()),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	in := s.inbound
	s.mu.RUnlock()
	if in == nil {
		respondError(w, http.StatusServiceUnavailable, "bridge is not attached")
		return
	}

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxMessageBytes))
	if err != nil {
		respondError(w, http.StatusRequestEntityTooLarge, "message too large")
		return
	}

	if err := in.Deliver(raw); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

type statusResponse struct {
	Agents   int       `json:"agents"`
	AgentIDs []string  `json:"agentIds"`
	Time     time.Time `json:"time"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	ids := s.AgentIDs()
	respondJSON(w, http.StatusOK, statusResponse{
		Agents:   len(ids),
		AgentIDs: ids,
		Time:     s.now().UTC(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   s.now().UTC().Format(time.RFC3339),
	})
}

// ListenAndServe serves until ctx is done, then disconnects agents and shuts
// the server down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.disconnectAll()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("bridge server listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
