package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/sirupsen/logrus"
	"github.com/swiftbook-app/swiftbook/internal/config"
	"github.com/swiftbook-app/swiftbook/internal/database"
	"github.com/swiftbook-app/swiftbook/internal/directory"
	"github.com/swiftbook-app/swiftbook/internal/identity"
	"github.com/swiftbook-app/swiftbook/internal/server"
	"github.com/swiftbook-app/swiftbook/internal/stats"
	"github.com/swiftbook-app/swiftbook/internal/types"
	"github.com/teris-io/shortid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type SwiftBookApp struct {
	log             *logrus.Logger
	db              database.Repository
	groups          *directory.Directory
	srv             *http.Server
	cs              *server.ChatServer
	stats           stats.StatsProvider
	auth            *identity.Authenticator
	tokenTTL        time.Duration
	allowedOrigins  []string
	generateShortId func() (string, error)
	handler         http.Handler
}

func NewSwiftBookApp(mux *http.ServeMux, logger *logrus.Logger, cs *server.ChatServer, db database.Repository, groups *directory.Directory, su stats.StatsProvider, cfg *config.Config) *SwiftBookApp {
	s := &SwiftBookApp{
		log:             logger,
		db:              db,
		groups:          groups,
		cs:              cs,
		stats:           su,
		auth:            identity.NewAuthenticator(cfg.SigningKey),
		tokenTTL:        cfg.TokenTTL,
		allowedOrigins:  cfg.AllowedOrigins,
		generateShortId: shortid.Generate,
	}

	if s.tokenTTL <= 0 {
		s.tokenTTL = defaultTokenTTL
	}

	managers := []types.Role{types.RoleOwner, types.RoleAdmin, types.RoleManager}
	admins := []types.Role{types.RoleOwner, types.RoleAdmin}

	mux.HandleFunc("GET /healthz", s.healthCheck)
	mux.HandleFunc("POST /api/signup", s.signup)
	mux.HandleFunc("POST /api/login", s.login)
	mux.HandleFunc("GET /api/logout", s.authMiddleware(s.logout))
	mux.HandleFunc("GET /api/session", s.authMiddleware(s.session))
	mux.HandleFunc("GET /api/business-data", s.authMiddleware(s.businessData))
	mux.HandleFunc("GET /api/hierarchy", s.authMiddleware(s.requireRole(s.hierarchy, managers...)))
	mux.HandleFunc("POST /api/create-user", s.authMiddleware(s.requireRole(s.createUser, admins...)))
	mux.HandleFunc("PUT /api/users/{userId}/role", s.authMiddleware(s.requireRole(s.updateUserRole, admins...)))
	mux.HandleFunc("GET /api/clients", s.authMiddleware(s.listClients))
	mux.HandleFunc("POST /api/clients", s.authMiddleware(s.requireRole(s.createClient, admins...)))
	mux.HandleFunc("PUT /api/clients/{clientId}", s.authMiddleware(s.requireRole(s.updateClient, admins...)))
	mux.HandleFunc("DELETE /api/clients/{clientId}", s.authMiddleware(s.requireRole(s.deleteClient, admins...)))
	mux.HandleFunc("GET /api/timecards", s.authMiddleware(s.listTimeCards))
	mux.HandleFunc("POST /api/timecards", s.authMiddleware(s.createTimeCard))
	mux.HandleFunc("PUT /api/timecards/{timecardId}", s.authMiddleware(s.requireRole(s.reviewTimeCard, managers...)))
	mux.HandleFunc("GET /api/profile", s.authMiddleware(s.profile))
	mux.HandleFunc("PUT /api/profile", s.authMiddleware(s.updateProfile))
	mux.HandleFunc("GET /api/messages/{tenantId}", s.authMiddleware(s.businessMessages))
	mux.HandleFunc("GET /api/dm/{peerId}", s.authMiddleware(s.directMessages))
	mux.HandleFunc("GET /api/group-messages/{groupId}", s.authMiddleware(s.groupMessages))
	mux.HandleFunc("POST /api/groups", s.authMiddleware(s.requireRole(s.createGroup, admins...)))
	mux.HandleFunc("GET /api/groups/{tenantId}", s.authMiddleware(s.listGroups))
	mux.HandleFunc("GET /ws", s.authMiddleware(s.serveWs))

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)
	h = otelhttp.NewHandler(h, "swiftbook")

	s.handler = h
	s.srv = &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	return s
}

func (s *SwiftBookApp) Start() error {
	s.log.Infof("starting server on %s", s.srv.Addr)
	return s.srv.ListenAndServe()
}

func (s *SwiftBookApp) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down HTTP server...")
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
