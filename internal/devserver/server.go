// Package devserver serves a reference catalog and a stand-in calculation
// engine over the same HTTP routes the production engine exposes. It backs
// `tcocalc serve` and the client integration tests.
package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/rshade/tcocalc/internal/apiclient"
	"github.com/rshade/tcocalc/internal/config"
	"github.com/rshade/tcocalc/internal/derivation"
)

const (
	maxRequestBody  = 1 << 20
	shutdownTimeout = 10 * time.Second
)

// Server answers catalog and calculation routes from a Fixture.
type Server struct {
	fixture   *Fixture
	locations *derivation.Table
	logger    zerolog.Logger
	router    chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithLocationAliases overrides the location alias table used to match
// project locations to model rows.
func WithLocationAliases(aliases map[string]string) Option {
	return func(s *Server) { s.locations = derivation.NewTable(nil, aliases) }
}

// New builds a Server. A nil fixture uses DefaultFixture.
func New(f *Fixture, opts ...Option) *Server {
	if f == nil {
		f = DefaultFixture()
	}
	s := &Server{
		fixture:   f,
		locations: derivation.NewTable(nil, config.DefaultTables().Derivation.LocationAliases),
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(s.versionHeader)

	r.Get("/health", s.handleHealth)
	r.Get(apiclient.RouteIndustries, s.handleIndustries)
	r.Get(apiclient.RouteTechnologies, s.handleTechnologies)
	r.Get(apiclient.RouteSolutions, s.handleSolutions)
	r.Get(apiclient.RouteVariants, s.handleVariants)
	r.Get(apiclient.RouteSchema, s.handleSchema)
	r.Post(apiclient.RouteCalculate, s.handleCalculate)
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	s.logger.Info().
		Str("addr", ln.Addr().String()).
		Str("api_version", s.fixture.APIVersion).
		Msg("serving reference engine")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	s.logger.Info().Msg("stopped")
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		reqID := r.Header.Get(apiclient.HeaderRequestID)
		if reqID == "" {
			reqID = middleware.GetReqID(r.Context())
		}
		l := s.logger.With().Str("request_id", reqID).Logger()
		ctx := l.WithContext(r.Context())

		next.ServeHTTP(ww, r.WithContext(ctx))

		l.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("request served")
	})
}

func (s *Server) versionHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.fixture.APIVersion != "" {
			w.Header().Set(apiclient.HeaderAPIVersion, s.fixture.APIVersion)
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respond(w, http.StatusOK, map[string]string{"status": "ok", "api_version": s.fixture.APIVersion})
}

func (s *Server) handleIndustries(w http.ResponseWriter, _ *http.Request) {
	out := make([]apiclient.WireOption, 0, len(s.fixture.Industries))
	for _, ind := range s.fixture.Industries {
		out = append(out, ind.wire())
	}
	respond(w, http.StatusOK, out)
}

func (s *Server) handleTechnologies(w http.ResponseWriter, r *http.Request) {
	industryID := r.URL.Query().Get(apiclient.ParamIndustryID)
	if industryID == "" {
		respondError(w, http.StatusBadRequest, "Industry ID is required")
		return
	}
	out := []apiclient.WireOption{}
	if ind, ok := s.fixture.industry(industryID); ok {
		for _, t := range ind.Technologies {
			out = append(out, t.wire())
		}
	}
	respond(w, http.StatusOK, out)
}

func (s *Server) handleSolutions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	industryID, technologyID := q.Get(apiclient.ParamIndustryID), q.Get(apiclient.ParamTechnologyID)
	if industryID == "" || technologyID == "" {
		respondError(w, http.StatusBadRequest, "Industry ID and Technology ID are required")
		return
	}
	out := []apiclient.WireOption{}
	if tech, ok := s.fixture.technology(industryID, technologyID); ok {
		for _, sol := range tech.Solutions {
			out = append(out, sol.wire())
		}
	}
	respond(w, http.StatusOK, out)
}

func (s *Server) handleVariants(w http.ResponseWriter, r *http.Request) {
	solutionID := r.URL.Query().Get(apiclient.ParamSolutionID)
	if solutionID == "" {
		respondError(w, http.StatusBadRequest, "Solution ID is required")
		return
	}
	out := []apiclient.WireOption{}
	if sol, ok := s.fixture.solutionByID(solutionID); ok {
		for _, v := range sol.Variants {
			out = append(out, v.wire())
		}
	}
	respond(w, http.StatusOK, out)
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	variantID, solutionName := q.Get(apiclient.ParamVariantID), q.Get(apiclient.ParamSolutionName)
	if variantID == "" && solutionName == "" {
		respondError(w, http.StatusBadRequest, "Solution variant ID is required")
		return
	}
	sol, ok := s.fixture.solutionByVariant(variantID)
	if !ok && solutionName != "" {
		sol, ok = s.fixture.solutionByName(solutionName)
	}
	if !ok {
		respondError(w, http.StatusNotFound, "Configuration not found for variant "+variantID)
		return
	}
	respond(w, http.StatusOK, apiclient.SchemaData{ConfigFields: s.fixture.schema(sol)})
}

func (s *Server) handleCalculate(w http.ResponseWriter, r *http.Request) {
	log := zerolog.Ctx(r.Context())

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		respondError(w, http.StatusBadRequest, "reading request body: "+err.Error())
		return
	}
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	in, err := parseInputs(payload, s.fixture.RequiredRequestKeys, s.locations)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !s.fixture.supportsSolutionType(in.solutionType) {
		respondError(w, http.StatusBadRequest, "Unsupported solution type: "+in.solutionType)
		return
	}

	result := s.fixture.Model.calculate(in)
	log.Debug().
		Str("solution_type", in.solutionType).
		Str("location", in.location).
		Int("first_year", in.firstYear).
		Msg("calculation served")
	respond(w, http.StatusOK, result)
}

func respond(w http.ResponseWriter, status int, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "encoding response: "+err.Error())
		return
	}
	writeEnvelope(w, status, apiclient.Envelope{Success: true, Data: raw})
}

func respondError(w http.ResponseWriter, status int, msg string) {
	writeEnvelope(w, status, apiclient.Envelope{Success: false, Error: msg})
}

func writeEnvelope(w http.ResponseWriter, status int, env apiclient.Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}
