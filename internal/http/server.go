package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"budget/internal/cache"
	"budget/internal/log"
	"budget/internal/middleware/security"
	"budget/internal/middleware/trace"
	"budget/internal/services"
)

// SessionHeader carries the presentation session id in both directions.
const SessionHeader = "X-Session-ID"

const maxSessions = 1000

type Server struct {
	http.Server
	ledger *services.Ledger
	logger *log.Logger

	// One LedgerService per client session; idle sessions expire.
	sessions *cache.LRUCache[*services.LedgerService]
	// Serializes lookup-or-create so two requests of a new session share one service.
	sessionMu sync.Mutex

	tracer       *trace.Middleware
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, ledger *services.Ledger, logger *log.Logger, sessionTTL time.Duration) *Server {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
		},
		ledger:   ledger,
		logger:   logger,
		sessions: cache.NewLRUCache[*services.LedgerService](maxSessions, sessionTTL),
		tracer:   trace.NewMiddleware(logger),
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /methods", s.withSession(s.handleListMethods))
	mux.HandleFunc("POST /methods", s.withSession(s.handleAddMethod))

	mux.HandleFunc("GET /transactions", s.withSession(s.handleSummary))
	mux.HandleFunc("POST /transactions", s.withSession(s.handleAddTransaction))
	mux.HandleFunc("POST /transactions/{id}/select", s.withSession(s.handleSelect))

	mux.HandleFunc("GET /selection", s.withSession(s.handleGetSelection))
	mux.HandleFunc("DELETE /selection", s.withSession(s.handleCancelEdit))
	mux.HandleFunc("PUT /selection", s.withSession(s.handleUpdateTransaction))
	mux.HandleFunc("POST /selection/delete-request", s.withSession(s.handleRequestDelete))
	mux.HandleFunc("DELETE /selection/transaction", s.withSession(s.handleDeleteTransaction))

	mux.HandleFunc("GET /balance", s.withSession(s.handleBalance))
	mux.HandleFunc("GET /breakdown/type", s.withSession(s.handleBreakdownByType))
	mux.HandleFunc("GET /breakdown/description", s.withSession(s.handleBreakdownByDescription))

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	var handler http.Handler = mux
	handler = headers.Middleware(handler)
	handler = s.tracer.Middleware(handler)
	handler = log.Middleware(logger)(handler)
	s.Handler = handler

	return s
}

// Sessions exposes the session table so it can be swept periodically.
func (s *Server) Sessions() cache.Cleaner {
	return s.sessions
}

// Metrics returns request counters collected by the trace middleware.
func (s *Server) Metrics() trace.Metrics {
	return s.tracer.GetMetrics()
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, svc *services.LedgerService)

// withSession resolves the caller's LedgerService from SessionHeader,
// opening a new session when the header is absent or unknown.
func (s *Server) withSession(next sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, svc := s.session(r.Header.Get(SessionHeader))
		w.Header().Set(SessionHeader, id)

		ctx := r.Context()
		logger := log.FromContext(ctx).With(log.FieldSessionID, id)
		next(w, r.WithContext(log.WithContext(ctx, logger)), svc)
	}
}

func (s *Server) session(id string) (string, *services.LedgerService) {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	if id != "" {
		if svc, ok := s.sessions.Get(id); ok {
			s.sessions.Touch(id)
			return id, svc
		}
		if _, err := uuid.Parse(id); err != nil {
			id = ""
		}
	}
	if id == "" {
		id = uuid.NewString()
	}

	svc := services.NewLedgerService(s.ledger)
	s.sessions.Set(id, svc)
	s.logger.Debug("Session opened", log.FieldSessionID, id)
	return id, svc
}

// Shutdown gracefully shuts down the server and drops every session.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		shutdownErr = s.Server.Shutdown(ctx)
		s.sessions.Purge()
	})

	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady reports ready once the store answers a balance query.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if _, err := s.ledger.AvailableBalance(ctx); err != nil {
		log.FromContext(ctx).LogErr(ctx, "Readiness check failed", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
