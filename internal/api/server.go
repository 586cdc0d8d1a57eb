package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/dawgsrlife/temper-core/internal/config"
	"github.com/dawgsrlife/temper-core/internal/orchestrator"
	"github.com/dawgsrlife/temper-core/internal/store"
	"github.com/dawgsrlife/temper-core/pkg/errs"
)

// Server is the HTTP/WebSocket surface around the analysis core.
type Server struct {
	mu         sync.RWMutex
	logger     *zap.Logger
	config     config.Config
	router     *mux.Router
	httpServer *http.Server
	upgrader   websocket.Upgrader
	clients    map[string]*Client
	store      *store.Store
	hub        *Hub
	metrics    *metrics
}

// NewServer wires the router, metrics, and WebSocket hub around st.
func NewServer(logger *zap.Logger, cfg config.Config, st *store.Store, hub *Hub) *Server {
	s := &Server{
		logger:  logger,
		config:  cfg,
		router:  mux.NewRouter(),
		clients: make(map[string]*Client),
		store:   st,
		hub:     hub,
		metrics: newMetrics(prometheus.NewRegistry()),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	s.setupRoutes()
	return s
}

// Router exposes the underlying router so additional handlers can be
// registered before Start is called.
func (s *Server) Router() *mux.Router {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/api/v1/health", s.handleHealth).Methods("GET")
	s.router.Handle(s.config.MetricsPath, promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{})).Methods("GET")

	s.router.HandleFunc("/api/v1/analyze", s.handleAnalyze).Methods("POST")
	s.router.HandleFunc("/api/v1/users/{id}/baseline", s.handleGetBaseline).Methods("GET")
	s.router.HandleFunc("/api/v1/users/{id}/elo", s.handleGetElo).Methods("GET")
	s.router.HandleFunc("/api/v1/users/{id}/reports", s.handleListReports).Methods("GET")
	s.router.HandleFunc("/api/v1/reports/{id}/coach-facts", s.handleCoachFacts).Methods("GET")

	s.router.HandleFunc(s.config.WebSocketPath, s.handleWebSocket)
}

// Start begins serving HTTP traffic; it blocks until the server stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	handler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(s.router)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	s.logger.Info("starting API server", zap.String("addr", addr))
	return s.httpServer.ListenAndServe()
}

// Stop gracefully shuts the server and every open WebSocket connection down.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	for _, client := range s.clients {
		client.conn.Close()
	}
	s.mu.Unlock()

	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// envelope is the {ok, data, error} wrapper mandated for the coach-facts
// endpoint by spec.md §6, applied uniformly across the API surface.
type envelope struct {
	OK    bool        `json:"ok"`
	Data  interface{} `json:"data,omitempty"`
	Error *apiError   `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeOK(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{OK: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{OK: false, Error: &apiError{Code: code, Message: message}})
}

// errorToResponse maps the pkg/errs taxonomy to an HTTP status and code per
// spec.md §7.
func errorToResponse(w http.ResponseWriter, err error) {
	switch e := err.(type) {
	case *errs.SchemaError:
		writeError(w, http.StatusBadRequest, "SCHEMA_ERROR", e.Error())
	case *errs.EmptyInputError:
		writeError(w, http.StatusUnprocessableEntity, "EMPTY_INPUT", e.Error())
	case *errs.RuleError:
		writeError(w, http.StatusBadRequest, "RULE_ERROR", e.Error())
	case *errs.ContractError:
		writeError(w, http.StatusInternalServerError, "CONTRACT_VIOLATION", e.Error())
	default:
		writeError(w, http.StatusInternalServerError, "JOB_FAILED", err.Error())
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeOK(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// analyzeRequest is the POST /api/v1/analyze request body: a raw CSV
// payload plus the user it belongs to.
type analyzeRequest struct {
	UserID string `json:"userId"`
	CSV    string `json:"csv"`
}

// handleAnalyze runs the analysis pipeline (AnalyzeAll) over an uploaded
// CSV for one user, persists the updated baseline, Elo state, and report log, and
// broadcasts a session_analyzed event per completed session.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() { s.metrics.httpDuration.WithLabelValues("analyze").Observe(time.Since(start).Seconds()) }()

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		s.metrics.httpRequests.WithLabelValues("analyze", "400").Inc()
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "userId is required")
		s.metrics.httpRequests.WithLabelValues("analyze", "400").Inc()
		return
	}

	baseline, err := s.store.GetBaseline(req.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "JOB_FAILED", err.Error())
		s.metrics.httpRequests.WithLabelValues("analyze", "500").Inc()
		return
	}
	previousElo, err := s.store.GetElo(req.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "JOB_FAILED", err.Error())
		s.metrics.httpRequests.WithLabelValues("analyze", "500").Inc()
		return
	}

	result, err := orchestrator.AnalyzeAll(req.UserID, []byte(req.CSV), baseline, previousElo, s.config.ReplayRules)
	if err != nil {
		errorToResponse(w, err)
		s.metrics.httpRequests.WithLabelValues("analyze", "422").Inc()
		return
	}

	for i, report := range result.Reports {
		sessionStart := time.Now()
		if err := s.store.AppendReport(req.UserID, report); err != nil {
			writeError(w, http.StatusInternalServerError, "JOB_FAILED", err.Error())
			s.metrics.httpRequests.WithLabelValues("analyze", "500").Inc()
			return
		}
		s.metrics.reportsProcessed.Inc()
		s.metrics.sessionDuration.Observe(time.Since(sessionStart).Seconds())
		s.hub.BroadcastSessionAnalyzed(req.UserID, result.Sessions[i].ID)
		s.hub.BroadcastReportReady(req.UserID, report.ID)
	}

	if err := s.store.SaveBaseline(result.NewBaseline); err != nil {
		writeError(w, http.StatusInternalServerError, "JOB_FAILED", err.Error())
		s.metrics.httpRequests.WithLabelValues("analyze", "500").Inc()
		return
	}
	if err := s.store.SaveElo(req.UserID, result.FinalElo); err != nil {
		writeError(w, http.StatusInternalServerError, "JOB_FAILED", err.Error())
		s.metrics.httpRequests.WithLabelValues("analyze", "500").Inc()
		return
	}

	writeOK(w, http.StatusOK, map[string]interface{}{
		"reports":  result.Reports,
		"baseline": result.NewBaseline,
		"elo":      result.FinalElo,
	})
	s.metrics.httpRequests.WithLabelValues("analyze", "200").Inc()
}

func (s *Server) handleGetBaseline(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["id"]
	b, err := s.store.GetBaseline(userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "JOB_FAILED", err.Error())
		return
	}
	writeOK(w, http.StatusOK, b)
}

func (s *Server) handleGetElo(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["id"]
	e, err := s.store.GetElo(userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "JOB_FAILED", err.Error())
		return
	}
	writeOK(w, http.StatusOK, e)
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["id"]
	reports, err := s.store.GetReports(userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "JOB_FAILED", err.Error())
		return
	}
	writeOK(w, http.StatusOK, reports)
}

// handleCoachFacts looks the named report up in the log of the user given
// by the required userId query parameter and projects it into the strict
// CoachFactsPayload schema. A request without userId is rejected with 400;
// other users' logs are not searched.
func (s *Server) handleCoachFacts(w http.ResponseWriter, r *http.Request) {
	reportID := mux.Vars(r)["id"]
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "userId query parameter is required")
		return
	}

	report, found, err := s.store.GetReport(userID, reportID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "JOB_FAILED", err.Error())
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "report not found")
		return
	}

	facts := orchestrator.BuildCoachFacts(report)
	writeOK(w, http.StatusOK, facts)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	id := newClientID()
	client := NewClient(id, s.hub, conn)
	s.hub.register <- client

	s.mu.Lock()
	s.clients[id] = client
	s.mu.Unlock()

	s.logger.Info("websocket client connected", zap.String("id", id))

	go func() {
		client.WritePump()
		s.mu.Lock()
		delete(s.clients, id)
		s.mu.Unlock()
	}()
	go client.ReadPump()
}

// newClientID returns a random-looking id without reaching into the
// deterministic idgen package, which exists to make domain ids
// reproducible, not to name ephemeral connections.
func newClientID() string {
	return fmt.Sprintf("ws-%d", time.Now().UnixNano())
}
