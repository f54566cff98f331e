package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jnidzwetzki/pg-debug-scan/pkg/dberrors"
	"github.com/jnidzwetzki/pg-debug-scan/pkg/scan"
	"github.com/jnidzwetzki/pg-debug-scan/pkg/snapshot"
	"github.com/jnidzwetzki/pg-debug-scan/pkg/types"
)

const (
	contentTypeJSON        = "application/json"
	defaultHTTPPort        = "8080"
	defaultShutdownTimeout = time.Second * 5
)

type iEngine interface {
	CreateTable(name string, columns []string) error
	Begin() (types.TxID, error)
	Commit(x types.TxID) error
	Abort(x types.TxID) error
	Insert(table string, x types.TxID, values []string) (types.RowID, error)
	Update(table string, row types.RowID, x types.TxID, values []string) error
	Delete(table string, row types.RowID, x types.TxID) error
	CurrentSnapshot() snapshot.Snapshot
	DebugScan(table, snapshotSpec string) (*scan.Scanner, error)
}

type iMetricsRenderer interface {
	Render() string
}

// Server exposes the engine over HTTP.
type Server struct {
	engine     iEngine
	metrics    iMetricsRenderer
	httpServer *http.Server
	URL        string
	addr       string
}

// NewServer creates a new server instance. metrics may be nil.
func NewServer(engine iEngine, metrics iMetricsRenderer, port string) *Server {
	if port == "" {
		port = defaultHTTPPort
	}
	return &Server{
		engine:  engine,
		metrics: metrics,
		URL:     "http://localhost:" + port,
		addr:    ":" + port,
	}
}

// Start starts the server.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.createRouter(),
		ReadHeaderTimeout: time.Second,
	}

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	slog.Info("HTTP server started", "addr", s.URL)
	return nil
}

// Stop stops the server.
func (s *Server) Stop() error {
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown HTTP server: %w", err)
		}
	}
	return nil
}

// createRouter builds chi router
func (s *Server) createRouter() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", s.handleHealth)
	r.Get("/metrics", s.handleMetrics)

	r.Get("/api/snapshot", s.handleSnapshot)
	r.Get("/api/scan", s.handleScan)

	r.Post("/api/table", s.handleCreateTable)

	r.Post("/api/txn/begin", s.handleBegin)
	r.Post("/api/txn/commit", s.handleCommit)
	r.Post("/api/txn/abort", s.handleAbort)

	r.Post("/api/row", s.handleInsert)
	r.Put("/api/row", s.handleUpdate)
	r.Delete("/api/row", s.handleDeleteRow)

	return r
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("Error encoding response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.writeJSON(w, errorStatus(err), NewErrorResponse(err.Error()))
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, dberrors.ErrMalformedSnapshot),
		errors.Is(err, dberrors.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, dberrors.ErrUnknownTable),
		errors.Is(err, dberrors.ErrUnknownRow),
		errors.Is(err, dberrors.ErrUnknownTxn):
		return http.StatusNotFound
	case errors.Is(err, dberrors.ErrDuplicateTable),
		errors.Is(err, dberrors.ErrRowDeleted),
		errors.Is(err, dberrors.ErrTxnFinished):
		return http.StatusConflict
	case errors.Is(err, dberrors.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, NewOKResponse())
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	body := "# no metrics collector configured\n"
	if s.metrics != nil {
		body = s.metrics.Render()
	}
	if _, err := w.Write([]byte(body)); err != nil {
		slog.Warn("Failed to write metrics response", "error", err)
	}
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap := s.engine.CurrentSnapshot()
	s.writeJSON(w, http.StatusOK, NewSnapshotResponse(snap.Format()))
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	table := r.URL.Query().Get("table")
	if table == "" {
		s.writeJSON(w, http.StatusBadRequest, NewErrorResponse("Missing table"))
		return
	}
	spec := r.URL.Query().Get("snapshot")

	sc, err := s.engine.DebugScan(table, spec)
	if err != nil {
		s.writeError(w, err)
		return
	}

	rows := sc.All()
	examined, visible := sc.Stats()
	s.writeJSON(w, http.StatusOK, Response{
		Status:   StatusSuccess,
		Snapshot: sc.Snapshot().Format(),
		Rows:     rows,
		Examined: examined,
		Visible:  visible,
	})
}

type createTableRequest struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
}

func (s *Server) handleCreateTable(w http.ResponseWriter, r *http.Request) {
	var req createTableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, NewErrorResponse("Failed to parse request body"))
		return
	}

	if err := s.engine.CreateTable(req.Name, req.Columns); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, NewSuccessResponse())
}

func (s *Server) handleBegin(w http.ResponseWriter, r *http.Request) {
	x, err := s.engine.Begin()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, NewXidResponse(uint64(x)))
}

func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	x, ok := s.queryXid(w, r)
	if !ok {
		return
	}
	if err := s.engine.Commit(x); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, NewSuccessResponse())
}

func (s *Server) handleAbort(w http.ResponseWriter, r *http.Request) {
	x, ok := s.queryXid(w, r)
	if !ok {
		return
	}
	if err := s.engine.Abort(x); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, NewSuccessResponse())
}

type rowRequest struct {
	Table  string   `json:"table"`
	Row    uint64   `json:"row,omitempty"`
	Xid    uint64   `json:"xid,omitempty"`
	Values []string `json:"values"`
}

func (s *Server) handleInsert(w http.ResponseWriter, r *http.Request) {
	var req rowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, NewErrorResponse("Failed to parse request body"))
		return
	}

	row, err := s.engine.Insert(req.Table, types.TxID(req.Xid), req.Values)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, NewRowResponse(uint64(row)))
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req rowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, NewErrorResponse("Failed to parse request body"))
		return
	}
	if req.Row == 0 {
		s.writeJSON(w, http.StatusBadRequest, NewErrorResponse("Missing row"))
		return
	}

	if err := s.engine.Update(req.Table, types.RowID(req.Row), types.TxID(req.Xid), req.Values); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, NewSuccessResponse())
}

func (s *Server) handleDeleteRow(w http.ResponseWriter, r *http.Request) {
	table := r.URL.Query().Get("table")
	if table == "" {
		s.writeJSON(w, http.StatusBadRequest, NewErrorResponse("Missing table"))
		return
	}
	row, err := strconv.ParseUint(r.URL.Query().Get("row"), 10, 64)
	if err != nil || row == 0 {
		s.writeJSON(w, http.StatusBadRequest, NewErrorResponse("Missing or invalid row"))
		return
	}

	var x types.TxID
	if raw := r.URL.Query().Get("xid"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			s.writeJSON(w, http.StatusBadRequest, NewErrorResponse("Invalid xid"))
			return
		}
		x = types.TxID(parsed)
	}

	if err := s.engine.Delete(table, types.RowID(row), x); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, NewSuccessResponse())
}

func (s *Server) queryXid(w http.ResponseWriter, r *http.Request) (types.TxID, bool) {
	raw := r.URL.Query().Get("xid")
	if raw == "" {
		s.writeJSON(w, http.StatusBadRequest, NewErrorResponse("Missing xid"))
		return 0, false
	}
	x, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, NewErrorResponse("Invalid xid"))
		return 0, false
	}
	return types.TxID(x), true
}
