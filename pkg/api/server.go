// Package api exposes resolution over HTTP. Clients post a project manifest
// and receive one resolution document per configuration; an unresolvable
// graph is a valid outcome, not a transport error.
package api

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/depsolve/pkg/errors"
	"github.com/matzehuels/depsolve/pkg/manifest"
	"github.com/matzehuels/depsolve/pkg/metadata"
	"github.com/matzehuels/depsolve/pkg/report"
	"github.com/matzehuels/depsolve/pkg/resolve"
)

// maxManifestBytes bounds request bodies.
const maxManifestBytes = 1 << 20

// Server resolves manifests posted by HTTP clients against a shared
// metadata source.
type Server struct {
	src    metadata.Source
	opts   resolve.Options
	logger *log.Logger
	router chi.Router
}

// NewServer creates a server backed by the given source. Manifest-level
// capability rules override the policy in opts per request.
func NewServer(src metadata.Source, opts resolve.Options, logger *log.Logger) *Server {
	s := &Server{src: src, opts: opts, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Get("/healthz", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/resolve", s.handleResolve)
	})
	s.router = r

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleResolve accepts a TOML manifest body and returns the resolution
// documents for every configuration it declares. Resolution failures are
// reported inside the documents with status 200; only invalid input and
// infrastructure problems map to error codes.
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxManifestBytes))
	if err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInvalidInput, err, "read request body"))
		return
	}

	mf, err := manifest.Parse(string(body))
	if err != nil {
		s.writeError(w, err)
		return
	}

	configs, err := mf.Roots()
	if err != nil {
		s.writeError(w, err)
		return
	}

	opts := s.opts
	if policy, err := mf.Policy(); err != nil {
		s.writeError(w, err)
		return
	} else if policy.Kind != resolve.PolicyRejectAll {
		opts.Policy = policy
	}

	local := metadata.NewMemory()
	if err := mf.Register(local); err != nil {
		s.writeError(w, err)
		return
	}

	engine := resolve.New(metadata.Chain(local, s.src), opts)
	results, err := engine.ResolveAll(r.Context(), configs)
	if err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInternal, err, "resolution aborted"))
		return
	}

	docs := make([]report.Document, len(results))
	for i, res := range results {
		docs[i] = report.ToDocument(res)
		s.logger.Info("resolved configuration",
			"project", mf.Owner().String(),
			"configuration", res.Configuration,
			"status", res.Status.String(),
			"modules", res.Graph.NodeCount(),
			"conflicts", len(res.Conflicts))
	}
	writeJSON(w, http.StatusOK, docs)
}

type errorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)
	status := http.StatusInternalServerError
	switch code {
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidManifest,
		errors.ErrCodeInvalidSelector, errors.ErrCodeInvalidVersion:
		status = http.StatusBadRequest
	case errors.ErrCodeNotFound, errors.ErrCodeModuleNotFound, errors.ErrCodeFileNotFound:
		status = http.StatusNotFound
	}

	s.logger.Error("request failed", "code", code, "err", err)
	writeJSON(w, status, errorResponse{Code: string(code), Error: errors.UserMessage(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
