// Package api exposes the estimate pipeline over HTTP. It renders the
// pipeline's typed outcomes as JSON; all formatting beyond that is left to
// the client.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/viewavocats/estimia/internal/model"
	"github.com/viewavocats/estimia/internal/pipeline"
	"github.com/viewavocats/estimia/internal/session"
)

const maxBodyBytes = 64 << 10

// Options configures the HTTP surface.
type Options struct {
	AllowedOrigins []string
	CookieSecure   bool
	SessionTTL     time.Duration
}

// Server routes HTTP requests to the pipeline.
type Server struct {
	pipeline *pipeline.Pipeline
	sessions *session.Store
	opts     Options
}

// NewServer creates a server.
func NewServer(p *pipeline.Pipeline, sessions *session.Store, opts Options) *Server {
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	return &Server{pipeline: p, sessions: sessions, opts: opts}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.opts.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: !containsWildcard(s.opts.AllowedOrigins),
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/catalog", s.handleCatalog)

	r.Group(func(r chi.Router) {
		r.Use(s.sessionMiddleware)
		r.Get("/challenge", s.handleChallenge)
		r.Post("/estimate", s.handleEstimate)
		r.Post("/contact", s.handleContact)
	})
	return r
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}

type catalogService struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	BasePrice   int    `json:"base_price"`
	Description string `json:"description,omitempty"`
}

type catalogDomain struct {
	ID       string           `json:"id"`
	Label    string           `json:"label"`
	Services []catalogService `json:"services"`
}

func (s *Server) handleCatalog(w http.ResponseWriter, _ *http.Request) {
	domains := s.pipeline.Catalog().Domains()
	out := make([]catalogDomain, len(domains))
	for i, d := range domains {
		out[i] = catalogDomain{ID: d.ID, Label: d.Label, Services: make([]catalogService, len(d.Services))}
		for j, svc := range d.Services {
			out[i].Services[j] = catalogService{ID: svc.ID, Label: svc.Label, BasePrice: svc.BasePrice, Description: svc.Description}
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"domains": out})
}

func (s *Server) handleChallenge(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{"question": s.pipeline.Challenge(sess)})
}

type estimateRequest struct {
	Description string `json:"description"`
	ClientType  string `json:"client_type"`
	Urgency     string `json:"urgency"`
}

func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	var req estimateRequest
	if !decode(w, r, &req) {
		return
	}

	est, err := s.pipeline.Estimate(r.Context(), sessionFrom(r.Context()), model.ClassificationRequest{
		Description: req.Description,
		ClientType:  req.ClientType,
		Urgency:     model.Urgency(req.Urgency),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, est)
}

func (s *Server) handleContact(w http.ResponseWriter, r *http.Request) {
	var msg pipeline.ContactMessage
	if !decode(w, r, &msg) {
		return
	}
	if err := s.pipeline.SubmitContact(r.Context(), sessionFrom(r.Context()), msg); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":  "accepted",
		"message": "Votre message a bien été envoyé. Nous vous recontacterons rapidement.",
	})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: errorDetail{
			Kind:    "invalid_request",
			Reason:  "invalid_body",
			Message: "Requête invalide.",
		}})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("api: write response", zap.Error(err))
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}
