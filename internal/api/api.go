// Package api provides HTTP handlers and the main API server logic for the
// OmniLaze ordering service.
//
// It exposes RESTful endpoints for phone verification, login, invite code
// redemption, and the two-phase order lifecycle. The API integrates with the
// sms, session, and store modules.
package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/stevenxxzgs/omnilaze-universal/internal/sms"
	"github.com/stevenxxzgs/omnilaze-universal/internal/store"
)

// Environment values recognized by the server.
const (
	// EnvDevelopment makes the server return verification codes in API
	// responses instead of delivering them over SMS.
	EnvDevelopment = "development"
	// EnvProduction requires a configured SMS sender.
	EnvProduction = "production"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = ":8080"

// Opts holds configuration options for the API server.
type Opts struct {
	Addr           string
	Store          store.Store
	SMSSender      sms.Sender
	Environment    string
	AllowedOrigins []string
	JWTSecret      []byte
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the HTTP listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithStore sets the storage backend.
func WithStore(st store.Store) Option {
	return func(o *Opts) { o.Store = st }
}

// WithSMSSender sets the verification code sender.
func WithSMSSender(sender sms.Sender) Option {
	return func(o *Opts) { o.SMSSender = sender }
}

// WithEnvironment sets the runtime environment (development or production).
func WithEnvironment(env string) Option {
	return func(o *Opts) { o.Environment = env }
}

// WithAllowedOrigins sets the origins allowed by the CORS middleware.
func WithAllowedOrigins(origins []string) Option {
	return func(o *Opts) { o.AllowedOrigins = origins }
}

// WithJWTSecret sets the secret used to sign login tokens.
func WithJWTSecret(secret []byte) Option {
	return func(o *Opts) { o.JWTSecret = secret }
}

// Server is the OmniLaze API server.
type Server struct {
	addr           string
	store          store.Store
	sms            sms.Sender
	environment    string
	allowedOrigins []string
	jwtSecret      []byte
	now            func() time.Time
}

// NewServer creates an API server from the provided options.
func NewServer(opts ...Option) (*Server, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store must be provided")
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.Environment == "" {
		cfg.Environment = EnvProduction
	}
	if cfg.Environment == EnvProduction && cfg.SMSSender == nil {
		return nil, fmt.Errorf("SMS sender must be provided in production")
	}
	if len(cfg.JWTSecret) == 0 {
		return nil, fmt.Errorf("JWT secret must be provided")
	}
	slog.Debug("NewServer configured",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
		"allowedOrigins", cfg.AllowedOrigins)
	return &Server{
		addr:           cfg.Addr,
		store:          cfg.Store,
		sms:            cfg.SMSSender,
		environment:    cfg.Environment,
		allowedOrigins: cfg.AllowedOrigins,
		jwtSecret:      cfg.JWTSecret,
		now:            time.Now,
	}, nil
}

// Handler returns the server's HTTP handler with all routes registered.
// Exposed separately from Run so tests can drive it with httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/send-verification-code", s.sendCodeHandler)
	mux.HandleFunc("/login-with-phone", s.loginHandler)
	mux.HandleFunc("/verify-invite-code", s.inviteHandler)
	mux.HandleFunc("/create-order", s.createOrderHandler)
	mux.HandleFunc("/submit-order", s.submitOrderHandler)
	mux.HandleFunc("/order-feedback", s.feedbackHandler)
	mux.HandleFunc("/orders/", s.ordersHandler)
	mux.HandleFunc("/health", s.healthHandler)
	return s.corsMiddleware(mux)
}

// Run starts the API server and blocks until the listener fails.
func Run(opts ...Option) error {
	s, err := NewServer(opts...)
	if err != nil {
		return err
	}
	slog.Info("OmniLaze API running", "addr", s.addr, "environment", s.environment)
	return http.ListenAndServe(s.addr, s.Handler())
}

// corsMiddleware adds CORS headers for allowed origins and answers
// preflight requests.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	if len(s.allowedOrigins) == 0 {
		return true
	}
	for _, allowed := range s.allowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}
