// Package web provides the HTTP surface for table extraction.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/ukaji3/xltable-go/internal/logging"
	"github.com/ukaji3/xltable-go/pkg/xltable"
	"github.com/ukaji3/xltable-go/pkg/xltable/mapping"
	"github.com/ukaji3/xltable-go/pkg/xltable/models"
	"github.com/ukaji3/xltable-go/pkg/xltable/output"
)

// DefaultMaxUploadSize is used when Config.MaxUploadSize is not positive.
const DefaultMaxUploadSize = 32 << 20

// Config configures a Server.
type Config struct {
	// Mappings is the default mapping declaration. Requests may supply their
	// own as a "mapping" form file.
	Mappings *mapping.File
	// Reporter is shared by every request.
	Reporter *xltable.Reporter
	// MaxUploadSize bounds request bodies in bytes.
	MaxUploadSize int64
	// ReadTimeout is the server read timeout.
	ReadTimeout time.Duration
}

// Server is the HTTP server exposing extraction over uploaded workbooks.
type Server struct {
	cfg    Config
	router *chi.Mux
	server *http.Server
}

// NewServer creates a new Server instance.
func NewServer(cfg Config) *Server {
	if cfg.MaxUploadSize <= 0 {
		cfg.MaxUploadSize = DefaultMaxUploadSize
	}
	if cfg.Reporter == nil {
		cfg.Reporter = xltable.NewReporter(nil, xltable.Version, false)
	}

	s := &Server{
		cfg:    cfg,
		router: chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/extract", s.handleExtract)
		r.Post("/tables", s.handleTables)
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:        addr,
		Handler:     s.router,
		ReadTimeout: s.cfg.ReadTimeout,
		IdleTimeout: 60 * time.Second,
	}

	slog.Info("starting server", "addr", addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// ExtractResponse is the body of a successful extraction.
type ExtractResponse struct {
	RunID       string                 `json:"run_id"`
	Table       models.TableDescriptor `json:"table"`
	Records     []map[string]any       `json:"records"`
	Diagnostics []xltable.Event        `json:"diagnostics"`
}

// ErrorResponse is the body of a failed request.
type ErrorResponse struct {
	Error       string          `json:"error"`
	Kind        string          `json:"kind,omitempty"`
	RunID       string          `json:"run_id,omitempty"`
	Diagnostics []xltable.Event `json:"diagnostics,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": xltable.Version})
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	file, size, err := s.readUpload(w, r)
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}
	defer file.Close()

	decl, err := s.mappingFor(r)
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}

	table := decl.Table
	if q := r.URL.Query().Get("table"); q != "" {
		table = q
	}

	registry := decl.Registry()
	sink := output.NewMemory(registry.Fields())
	logger := logging.WithFields(r.Context(), "table", table)

	res, err := xltable.ExtractReader(file, size, xltable.Options{
		Table:    table,
		Mappings: registry,
		Reporter: s.cfg.Reporter,
		Logger:   logger,
	}, sink)
	if err != nil {
		respondExtractionError(w, r, res, err)
		return
	}
	sink.Close()

	respondJSON(w, http.StatusOK, ExtractResponse{
		RunID:       res.RunID,
		Table:       res.Table,
		Records:     sink.Maps(),
		Diagnostics: res.Events,
	})
}

func (s *Server) handleTables(w http.ResponseWriter, r *http.Request) {
	file, size, err := s.readUpload(w, r)
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}
	defer file.Close()

	tables, err := xltable.ListTablesReader(file, size)
	if err != nil {
		respondExtractionError(w, r, nil, err)
		return
	}
	if tables == nil {
		tables = []models.TableDescriptor{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"tables": tables})
}

// readUpload returns the "file" form part of a multipart request.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (multipart.File, int64, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadSize)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadSize); err != nil {
		return nil, 0, fmt.Errorf("invalid upload: %w", err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, 0, fmt.Errorf("missing workbook file: %w", err)
	}
	return file, header.Size, nil
}

// mappingFor returns the request's "mapping" form file, or the default
// declaration when none was sent.
func (s *Server) mappingFor(r *http.Request) (*mapping.File, error) {
	part, _, err := r.FormFile("mapping")
	if errors.Is(err, http.ErrMissingFile) {
		if s.cfg.Mappings == nil {
			return nil, errors.New("no mapping declared: send a mapping file")
		}
		return s.cfg.Mappings, nil
	}
	if err != nil {
		return nil, err
	}
	defer part.Close()

	data, err := io.ReadAll(part)
	if err != nil {
		return nil, err
	}
	return mapping.Parse(data)
}

// StatusForKind maps an error kind to an HTTP status.
func StatusForKind(kind xltable.ErrorKind) int {
	switch kind {
	case xltable.KindConfiguration, xltable.KindIO:
		return http.StatusBadRequest
	case xltable.KindTableNotFound:
		return http.StatusNotFound
	case xltable.KindParse, xltable.KindColumnNotFound, xltable.KindTypeCoercion:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func respondExtractionError(w http.ResponseWriter, r *http.Request, res *xltable.Result, err error) {
	kind := xltable.KindOf(err)
	body := ErrorResponse{Error: err.Error(), Kind: string(kind)}
	if res != nil {
		body.RunID = res.RunID
		body.Diagnostics = res.Events
	}

	status := StatusForKind(kind)
	logging.FromContext(r.Context()).Warn("extraction failed",
		"path", r.URL.Path,
		"status", status,
		"kind", kind,
		"error", err.Error(),
	)
	respondJSON(w, status, body)
}

func respondError(w http.ResponseWriter, r *http.Request, err error, status int) {
	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
	)
	respondJSON(w, status, ErrorResponse{Error: err.Error()})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
