package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.io/infrasutra/bouncecsv/internal/bounce"
	"github.io/infrasutra/bouncecsv/internal/intake"
	"github.io/infrasutra/bouncecsv/internal/pagination"
	"github.io/infrasutra/bouncecsv/internal/report"
	"github.io/infrasutra/bouncecsv/internal/sse"
	"github.io/infrasutra/bouncecsv/internal/store"
)

const maxParseBytes = 25 << 20

type Server struct {
	store   *store.Store
	hub     *sse.Hub
	intake  *intake.Intake
	logger  *slog.Logger
	mux     *http.ServeMux
	metrics http.Handler
}

func NewServer(st *store.Store, hub *sse.Hub, in *intake.Intake, logger *slog.Logger) *Server {
	server := &Server{
		store:   st,
		hub:     hub,
		intake:  in,
		logger:  logger,
		metrics: promhttp.Handler(),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/bounces", server.handleBounces)
	mux.HandleFunc("/api/bounces.csv", server.handleBouncesCSV)
	mux.HandleFunc("/api/bounces/", server.handleBounce)
	mux.HandleFunc("/api/parse", server.handleParse)
	mux.HandleFunc("/api/reasons", server.handleReasons)
	mux.HandleFunc("/api/stream", server.handleStream)
	server.mux = mux
	return server
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	if strings.HasPrefix(path, "/api/") {
		s.mux.ServeHTTP(w, r)
		return
	}
	switch path {
	case "/health":
		s.handleHealth(w, r)
	case "/ready":
		s.handleReady(w, r)
	case "/metrics":
		s.metrics.ServeHTTP(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleBounces(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	params := pagination.FromQuery(r.URL.Query())
	filter := store.Filter{Code: params.Code, Search: params.Search}
	bounces, total, err := s.store.ListBounces(r.Context(), filter, params.Sort, params.Offset, params.Limit)
	if err != nil {
		s.logger.Error("list bounces", "error", err)
		http.Error(w, "unable to list bounces", http.StatusInternalServerError)
		return
	}

	response := struct {
		Bounces []intake.View `json:"bounces"`
		Page    int32         `json:"page"`
		Limit   int32         `json:"limit"`
		Total   int32         `json:"total"`
		HasMore bool          `json:"hasMore"`
	}{
		Bounces: make([]intake.View, 0, len(bounces)),
		Page:    params.Page,
		Limit:   params.Limit,
		Total:   total,
		HasMore: pagination.HasNext(params.Offset, params.Limit, total),
	}
	for _, b := range bounces {
		response.Bounces = append(response.Bounces, intake.NewView(b))
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleBouncesCSV(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	filter := store.Filter{
		Code:   strings.TrimSpace(q.Get("code")),
		Search: strings.TrimSpace(q.Get("search")),
	}
	bounces, err := s.store.AllBounces(r.Context(), filter)
	if err != nil {
		s.logger.Error("export bounces", "error", err)
		http.Error(w, "unable to export bounces", http.StatusInternalServerError)
		return
	}
	records := make([]bounce.Record, 0, len(bounces))
	for _, b := range bounces {
		records = append(records, b.Record())
	}
	if err := report.Serve(w, records); err != nil {
		s.logger.Error("write csv", "error", err)
	}
}

func (s *Server) handleBounce(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/bounces/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleBounceDetail(w, r, id)
	case http.MethodDelete:
		s.handleBounceDelete(w, r, id)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleBounceDetail(w http.ResponseWriter, r *http.Request, id string) {
	b, err := s.store.GetBounce(r.Context(), id)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		if store.IsNotFound(err) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		http.Error(w, "unable to load bounce", http.StatusInternalServerError)
		return
	}
	s.respondJSON(w, http.StatusOK, intake.NewView(b))
}

func (s *Server) handleBounceDelete(w http.ResponseWriter, r *http.Request, id string) {
	deleted, err := s.store.DeleteBounce(r.Context(), id)
	if err != nil {
		http.Error(w, "unable to delete", http.StatusInternalServerError)
		return
	}
	if !deleted {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleParse takes a raw RFC 5322 message as the request body. The optional name
// query parameter becomes the record's source.
func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxParseBytes))
	if err != nil {
		http.Error(w, "unable to read message", http.StatusRequestEntityTooLarge)
		return
	}
	if len(raw) == 0 {
		http.Error(w, "message body required", http.StatusBadRequest)
		return
	}

	b, stored, err := s.intake.Accept(r.Context(), intake.TransportHTTP, r.URL.Query().Get("name"), raw)
	if err != nil {
		s.logger.Error("parse bounce", "error", err)
		http.Error(w, "unable to record bounce", http.StatusInternalServerError)
		return
	}
	status := http.StatusCreated
	if !stored {
		status = http.StatusOK
	}
	s.respondJSON(w, status, struct {
		intake.View
		Duplicate bool `json:"duplicate"`
	}{View: intake.NewView(b), Duplicate: !stored})
}

func (s *Server) handleReasons(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	counts, err := s.store.CountByReason(r.Context())
	if err != nil {
		s.logger.Error("count reasons", "error", err)
		http.Error(w, "unable to count reasons", http.StatusInternalServerError)
		return
	}
	type reasonCount struct {
		Code   string `json:"code"`
		Reason string `json:"reason"`
		Count  int64  `json:"count"`
	}
	response := make([]reasonCount, 0, len(counts))
	for _, c := range counts {
		response = append(response, reasonCount{Code: c.Code, Reason: c.Reason, Count: c.Count})
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"reasons": response})
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, unsubscribe := s.hub.Subscribe(strings.TrimSpace(r.URL.Query().Get("code")))
	defer unsubscribe()

	_, _ = w.Write([]byte("event: ready\ndata: {}\n\n"))
	flusher.Flush()

	ticker := time.NewTicker(20 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case payload, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(payload)
			flusher.Flush()
		case <-ticker.C:
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		}
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondText(w, http.StatusOK, "ok")
}

// handleReady fails until the database answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.respondText(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	s.respondText(w, http.StatusOK, "ready")
}

func (s *Server) respondText(w http.ResponseWriter, status int, payload string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(payload))
}
