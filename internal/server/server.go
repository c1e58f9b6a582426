package server

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/headline-goat/abengine/internal/experiment"
	"github.com/headline-goat/abengine/internal/report"
)

type Options struct {
	Port int
	// TokenFile receives the admin token so `abengine token` can show it.
	TokenFile string
	// Token overrides the generated admin token.
	Token string
}

type Server struct {
	manager   *experiment.Manager
	reports   *report.Facade
	port      int
	token     string
	tokenFile string
	router    *http.ServeMux
	startTime time.Time
}

func New(m *experiment.Manager, opts Options) *Server {
	token := opts.Token
	if token == "" {
		token = generateToken()
	}

	srv := &Server{
		manager:   m,
		reports:   report.New(m),
		port:      opts.Port,
		token:     token,
		tokenFile: opts.TokenFile,
		router:    http.NewServeMux(),
		startTime: time.Now(),
	}

	srv.setupRoutes()
	return srv
}

func (s *Server) setupRoutes() {
	// Public endpoints
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.Handle("GET /metrics", promhttp.Handler())

	s.router.HandleFunc("POST /api/experiments", s.handleCreate)
	s.router.HandleFunc("GET /api/experiments", s.handleList)
	s.router.HandleFunc("GET /api/experiments/{id}", s.handleGet)
	s.router.HandleFunc("GET /api/experiments/{id}/stats", s.handleStats)
	s.router.HandleFunc("POST /api/experiments/{id}/assign", s.handleAssign)
	s.router.HandleFunc("POST /api/experiments/{id}/visits", s.handleVisit)
	s.router.HandleFunc("POST /api/experiments/{id}/conversions", s.handleConversion)
	s.router.HandleFunc("POST /api/experiments/{id}/pause", s.handlePause)
	s.router.HandleFunc("POST /api/experiments/{id}/resume", s.handleResume)
	s.router.HandleFunc("GET /api/history", s.handleHistory)

	// Admin endpoints (protected)
	s.router.Handle("POST /api/experiments/{id}/winner", s.authMiddleware(http.HandlerFunc(s.handleWinner)))
	s.router.Handle("DELETE /api/experiments/{id}", s.authMiddleware(http.HandlerFunc(s.handleDelete)))
}

func (s *Server) Start() error {
	return s.StartWithOptions(true)
}

// StartQuiet starts the server without printing startup messages
func (s *Server) StartQuiet() error {
	return s.StartWithOptions(false)
}

func (s *Server) StartWithOptions(printMessages bool) error {
	// Write token to file for the token command
	if s.tokenFile != "" {
		if err := os.WriteFile(s.tokenFile, []byte(s.token), 0600); err != nil {
			log.Warnf("failed to write token file: %v", err)
		}
	}

	addr := fmt.Sprintf(":%d", s.port)

	if printMessages {
		fmt.Println()
		fmt.Printf("abengine running on http://localhost:%d\n", s.port)
		fmt.Printf("Admin token: %s\n", s.token)
		fmt.Println()
		fmt.Println("Press Ctrl+C to stop")
	}

	log.Infof("listening on %s", addr)
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) Token() string {
	return s.token
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func generateToken() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to a simple token if crypto/rand fails
		return "a1b2c3d4e5f60718"
	}
	return hex.EncodeToString(bytes)
}
