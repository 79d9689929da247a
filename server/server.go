package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jrsteele09/go-realtime-core/identity"
	"github.com/jrsteele09/go-realtime-core/internal/config"
	"github.com/jrsteele09/go-realtime-core/internal/logx"
	"github.com/jrsteele09/go-realtime-core/token"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Issuers groups the token services exposed over HTTP.
type Issuers struct {
	Chat  *token.Service
	Video *token.Service
}

type Server struct {
	env      string // Environment (e.g., "DEV", "PROD")
	mux      *http.ServeMux
	routes   []string
	config   config.Config
	issuers  Issuers
	resolver identity.Resolver
	gatherer prometheus.Gatherer
	validate *validator.Validate
	log      zerolog.Logger
}

func New(config config.Config, issuers Issuers, resolver identity.Resolver, gatherer prometheus.Gatherer) (*Server, error) {
	if issuers.Chat == nil || issuers.Video == nil {
		return nil, fmt.Errorf("[Server New] both chat and video issuers are required")
	}
	if resolver == nil {
		resolver = identity.HeaderResolver{}
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		env:      config.GetEnv(),
		mux:      http.NewServeMux(),
		config:   config,
		issuers:  issuers,
		resolver: resolver,
		gatherer: gatherer,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      logx.Component("server"),
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			s.logRoute(parts[0], parts[1])
		} else {
			s.logRoute("", parts[0])
		}
	}
}

func (s *Server) logRoute(method, path string) {
	s.log.Info().Msgf("[%-19s] %s", colourMethod(method), path)
}
