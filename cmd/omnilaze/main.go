package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/stevenxxzgs/omnilaze-universal/internal/api"
	"github.com/stevenxxzgs/omnilaze-universal/internal/sms"
	"github.com/stevenxxzgs/omnilaze-universal/internal/store"
	"github.com/stevenxxzgs/omnilaze-universal/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for OmniLaze state data
	DefaultStateDir = "/var/lib/omnilaze"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "omnilaze.db"
)

func main() {
	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	config := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(config)

	// Ensure required directories exist
	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	st, err := buildStore(flags)
	if err != nil {
		slog.Error("Failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	if config.SeedInvites {
		seedInviteCodes(st)
	}

	apiOpts, err := buildAPIOptions(config, flags, st)
	if err != nil {
		slog.Error("Failed to build API options", "error", err)
		os.Exit(1)
	}

	slog.Info("Bootstrapping OmniLaze with configured modules")
	slog.Debug("Final configuration", "state_dir", *flags.stateDir, "dsn_set", *flags.dbDSN != "", "api_addr", *flags.apiAddr, "environment", *flags.environment)
	if err := api.Run(apiOpts...); err != nil {
		slog.Error("OmniLaze failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("OmniLaze exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL    string
	StateDir       string
	APIAddr        string
	Environment    string
	JWTSecret      string
	AllowedOrigins string
	TwilioSID      string
	TwilioToken    string
	TwilioFrom     string
	SeedInvites    bool
}

// Flags holds command line flag values
type Flags struct {
	stateDir    *string
	dbDSN       *string
	apiAddr     *string
	environment *string
	jwtSecret   *string
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		StateDir:       util.GetEnvDefault("OMNILAZE_STATE_DIR", DefaultStateDir),
		APIAddr:        os.Getenv("API_ADDR"),
		Environment:    util.GetEnvDefault("ENVIRONMENT", api.EnvDevelopment),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		AllowedOrigins: os.Getenv("ALLOWED_ORIGINS"),
		TwilioSID:      os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioToken:    os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFrom:     os.Getenv("TWILIO_FROM_NUMBER"),
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	// Invite seeding defaults to on in development so a fresh database is
	// usable immediately.
	config.SeedInvites = util.ParseBoolEnv("SEED_INVITE_CODES", config.Environment == api.EnvDevelopment)

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"OMNILAZE_STATE_DIR", config.StateDir,
		"API_ADDR", config.APIAddr,
		"ENVIRONMENT", config.Environment,
		"JWT_SECRET_SET", config.JWTSecret != "",
		"ALLOWED_ORIGINS", config.AllowedOrigins,
		"SEED_INVITE_CODES", config.SeedInvites,
		"TWILIO_ACCOUNT_SID_SET", config.TwilioSID != "",
		"TWILIO_AUTH_TOKEN_SET", config.TwilioToken != "",
		"TWILIO_FROM_NUMBER_SET", config.TwilioFrom != "")

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:    flag.String("state-dir", config.StateDir, "state directory for OmniLaze data (overrides $OMNILAZE_STATE_DIR)"),
		dbDSN:       flag.String("db-dsn", config.DatabaseURL, "database DSN for SQLite or Postgres store (overrides $DATABASE_URL)"),
		apiAddr:     flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		environment: flag.String("environment", config.Environment, "runtime environment: development or production (overrides $ENVIRONMENT)"),
		jwtSecret:   flag.String("jwt-secret", config.JWTSecret, "secret used to sign login tokens (overrides $JWT_SECRET)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"apiAddr", *flags.apiAddr,
		"environment", *flags.environment,
		"jwtSecretSet", *flags.jwtSecret != "")

	// Update database DSN if not explicitly set but state directory is provided
	if *flags.dbDSN == config.DatabaseURL && config.DatabaseURL == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "dsn_updated", true, "old_state_dir", config.StateDir, "new_state_dir", *flags.stateDir)
	}

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if store.DetectDSNType(*flags.dbDSN) == "sqlite" {
		stateDir := filepath.Dir(*flags.dbDSN)
		slog.Debug("Creating state directory for file-based database", "state_dir", stateDir)
		if err := os.MkdirAll(stateDir, 0755); err != nil {
			slog.Error("Failed to create state directory", "error", err, "state_dir", stateDir)
			return err
		}
		slog.Debug("State directory created successfully", "state_dir", stateDir)
	}
	return nil
}

// buildStore initializes the storage backend based on the configured DSN
func buildStore(flags Flags) (store.Store, error) {
	if store.DetectDSNType(*flags.dbDSN) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_type", "postgresql", "dsn_set", true)
		return store.NewPostgresStore(store.WithPostgresDSN(*flags.dbDSN))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "dsn_type", "sqlite", "db_path", *flags.dbDSN)
	return store.NewSQLiteStore(store.WithSQLiteDSN(*flags.dbDSN))
}

// seedInviteCodes inserts the default invite codes so a fresh development
// database accepts signups out of the box. Existing codes are left alone.
func seedInviteCodes(st store.Store) {
	codes := []string{"1234", "WELCOME", "LANDE", "OMNILAZE", "ADVX2025"}
	for _, code := range codes {
		if err := st.CreateInviteCode(code); err != nil {
			slog.Warn("Failed to seed invite code", "code", code, "error", err)
		}
	}
	slog.Info("Invite codes seeded", "count", len(codes))
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(config Config, flags Flags, st store.Store) ([]api.Option, error) {
	jwtSecret := *flags.jwtSecret
	if jwtSecret == "" {
		if *flags.environment == api.EnvProduction {
			return nil, fmt.Errorf("JWT_SECRET must be set in production")
		}
		// Development fallback: a random per-run secret. Tokens do not
		// survive a restart.
		jwtSecret = util.GenerateRandomHex(32)
		slog.Warn("No JWT secret configured, generated a random development secret")
	}

	apiOpts := []api.Option{
		api.WithStore(st),
		api.WithEnvironment(*flags.environment),
		api.WithJWTSecret([]byte(jwtSecret)),
	}
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	if config.AllowedOrigins != "" {
		origins := strings.Split(config.AllowedOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		apiOpts = append(apiOpts, api.WithAllowedOrigins(origins))
	}
	if config.TwilioSID != "" && config.TwilioToken != "" && config.TwilioFrom != "" {
		sender, err := sms.NewTwilioSender(
			sms.WithAccountSID(config.TwilioSID),
			sms.WithAuthToken(config.TwilioToken),
			sms.WithFromNumber(config.TwilioFrom),
		)
		if err != nil {
			return nil, err
		}
		apiOpts = append(apiOpts, api.WithSMSSender(sender))
	} else {
		slog.Debug("Twilio credentials incomplete, SMS sender not configured")
	}
	return apiOpts, nil
}
