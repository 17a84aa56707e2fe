// Package chi exposes the catalog flows as a local HTTP API for a UI layer.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/catalog/internal/domain"
	"github.com/kailas-cloud/catalog/internal/domain/event"
	"github.com/kailas-cloud/catalog/internal/domain/product"
	"github.com/kailas-cloud/catalog/internal/logger"
	catalogsvc "github.com/kailas-cloud/catalog/internal/usecase/catalog"
	healthuc "github.com/kailas-cloud/catalog/internal/usecase/health"
)

// Catalog is the set of flows the API serves.
type Catalog interface {
	Search(ctx context.Context, query string) ([]product.SearchItem, error)
	Metadata(ctx context.Context, id string) (product.Metadata, error)
	Thumbnail(ctx context.Context, id, sourceURL string) (string, error)
	Model(ctx context.Context, id string) (string, error)
	CheckAvailability(ctx context.Context, id string) (bool, error)
	Settings() catalogsvc.Settings
	SetRegion(region string) error
	SetLocale(locale string) error
	Events(size int) (<-chan event.Event, func())
}

// ErrorCode is the machine-readable error code in API error responses.
type ErrorCode string

// Error codes.
const (
	ErrorCodeBadRequest      ErrorCode = "bad_request"
	ErrorCodeUnauthorized    ErrorCode = "unauthorized"
	ErrorCodeNoModel         ErrorCode = "no_model"
	ErrorCodeBusy            ErrorCode = "busy"
	ErrorCodeTimeout         ErrorCode = "upstream_timeout"
	ErrorCodeUpstream        ErrorCode = "upstream_error"
	ErrorCodeInvalidUpstream ErrorCode = "invalid_upstream_response"
	ErrorCodeStorage         ErrorCode = "storage_error"
	ErrorCodeInternalError   ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Kind    string    `json:"kind,omitempty"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server serves the catalog API.
type Server struct {
	catalog       Catalog
	health        *healthuc.Service
	logger        *zap.Logger
	eventBuffer   int
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(catalog Catalog, health *healthuc.Service, logger *zap.Logger) *Server {
	s := &Server{
		catalog:     catalog,
		health:      health,
		logger:      logger,
		eventBuffer: 64,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidInput, http.StatusBadRequest, ErrorCodeBadRequest),
		sentinelHandler(domain.ErrNoModel, http.StatusNotFound, ErrorCodeNoModel),
		sentinelHandler(domain.ErrCapacity, http.StatusTooManyRequests, ErrorCodeBusy),
		sentinelHandler(domain.ErrTimeout, http.StatusGatewayTimeout, ErrorCodeTimeout),
		sentinelHandler(domain.ErrDNS, http.StatusBadGateway, ErrorCodeUpstream),
		sentinelHandler(domain.ErrConnect, http.StatusBadGateway, ErrorCodeUpstream),
		sentinelHandler(domain.ErrTLS, http.StatusBadGateway, ErrorCodeUpstream),
		sentinelHandler(domain.ErrTransport, http.StatusBadGateway, ErrorCodeUpstream),
		sentinelHandler(domain.ErrHTTPStatus, http.StatusBadGateway, ErrorCodeUpstream),
		sentinelHandler(domain.ErrDecode, http.StatusBadGateway, ErrorCodeInvalidUpstream),
		sentinelHandler(domain.ErrStructure, http.StatusBadGateway, ErrorCodeInvalidUpstream),
		sentinelHandler(domain.ErrIntegrity, http.StatusBadGateway, ErrorCodeInvalidUpstream),
		sentinelHandler(domain.ErrStorage, http.StatusInternalServerError, ErrorCodeStorage),
	}
	return s
}

// Register mounts the API routes on r.
func (s *Server) Register(r chi.Router) {
	r.Get("/search", s.Search)
	r.Route("/products/{id}", func(r chi.Router) {
		r.Get("/metadata", s.GetMetadata)
		r.Get("/thumbnail", s.GetThumbnail)
		r.Get("/model", s.GetModel)
		r.Get("/availability", s.GetAvailability)
	})
	r.Get("/events", s.StreamEvents)
	r.Get("/settings", s.GetSettings)
	r.Put("/settings", s.UpdateSettings)
	r.Get("/health", s.HealthCheck)
	r.Handle("/metrics", promhttp.Handler())

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, ErrorCodeBadRequest, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrorCodeBadRequest, "method not allowed")
	})
}

// SearchResponse is the body of GET /search.
type SearchResponse struct {
	Query string               `json:"query"`
	Items []product.SearchItem `json:"items"`
}

// Search handles GET /search?q=.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	items, err := s.catalog.Search(r.Context(), q)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Query: q, Items: items})
}

// MetadataResponse is the body of GET /products/{id}/metadata.
type MetadataResponse struct {
	ID       string `json:"id"`
	Cached   bool   `json:"cached"`
	Document any    `json:"document"`
}

// GetMetadata handles GET /products/{id}/metadata.
func (s *Server) GetMetadata(w http.ResponseWriter, r *http.Request) {
	md, err := s.catalog.Metadata(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MetadataResponse{ID: md.ID.String(), Cached: md.Cached, Document: md.Document})
}

// FileResponse describes a cached artifact.
type FileResponse struct {
	ID   string `json:"id"`
	Path string `json:"path"`
}

// GetThumbnail handles GET /products/{id}/thumbnail?src=.
// With ?raw=true the image bytes are served instead of its path.
func (s *Server) GetThumbnail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	path, err := s.catalog.Thumbnail(r.Context(), id, r.URL.Query().Get("src"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	s.writeFile(w, r, id, path, "image/jpeg")
}

// GetModel handles GET /products/{id}/model.
// With ?raw=true the binary model is served instead of its path.
func (s *Server) GetModel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	path, err := s.catalog.Model(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	s.writeFile(w, r, id, path, "model/gltf-binary")
}

func (s *Server) writeFile(w http.ResponseWriter, r *http.Request, id, path, contentType string) {
	if r.URL.Query().Get("raw") == "true" {
		w.Header().Set("Content-Type", contentType)
		http.ServeFile(w, r, path)
		return
	}
	writeJSON(w, http.StatusOK, FileResponse{ID: product.Compact(id), Path: path})
}

// AvailabilityResponse is the body of GET /products/{id}/availability.
type AvailabilityResponse struct {
	ID     string `json:"id"`
	Exists bool   `json:"exists"`
}

// GetAvailability handles GET /products/{id}/availability.
func (s *Server) GetAvailability(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	exists, err := s.catalog.CheckAvailability(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AvailabilityResponse{ID: product.Compact(id), Exists: exists})
}

// GetSettings handles GET /settings.
func (s *Server) GetSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.catalog.Settings())
}

// SettingsUpdate is the body of PUT /settings. Omitted fields stay unchanged.
type SettingsUpdate struct {
	Region *string `json:"region"`
	Locale *string `json:"locale"`
}

// UpdateSettings handles PUT /settings.
func (s *Server) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req SettingsUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Region != nil {
		if err := s.catalog.SetRegion(*req.Region); err != nil {
			s.handleDomainError(w, r, err)
			return
		}
	}
	if req.Locale != nil {
		if err := s.catalog.SetLocale(*req.Locale); err != nil {
			s.handleDomainError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, s.catalog.Settings())
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())
	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		resp := ErrorResponse{Code: code, Message: safeDomainMessage(err, sentinel)}
		if k, ok := domain.KindOf(err); ok {
			resp.Kind = string(k)
		}
		writeJSON(w, status, resp)
		return true
	}
}

// safeDomainMessage returns the classified message without the wrapped cause,
// which can carry local paths or upstream internals.
func safeDomainMessage(err error, sentinel error) string {
	var de *domain.Error
	if errors.As(err, &de) && de.Msg != "" {
		msg := de.Msg
		if de.ID != "" {
			msg = de.ID + ": " + msg
		}
		return msg
	}
	return sentinel.Error()
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context(), s.logger)
	if domain.IsInputError(err) || domain.IsNoModel(err) {
		log.Debug("request rejected", zap.Error(err))
	} else {
		log.Warn("domain error", zap.Error(err))
	}
	for _, h := range s.errorHandlers {
		if h(w, err) {
			return
		}
	}
	if errors.Is(err, context.Canceled) {
		return
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}
