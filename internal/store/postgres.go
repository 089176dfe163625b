// Package store provides storage backends for the OmniLaze API server.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	_ "github.com/lib/pq"

	"github.com/stevenxxzgs/omnilaze-universal/internal/models"
)

// Database connection pool configuration constants.
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database.
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool.
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused.
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) SaveVerificationCode(code models.VerificationCode) error {
	_, err := s.db.Exec(`
		INSERT INTO verification_codes (phone_number, code, expires_at, used, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (phone_number) DO UPDATE
		SET code = $2, expires_at = $3, used = $4, created_at = $5`,
		code.PhoneNumber, code.Code, code.ExpiresAt, code.Used, code.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveVerificationCode failed", "error", err, "phone", code.PhoneNumber)
		return fmt.Errorf("failed to save verification code: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetVerificationCode(phoneNumber string) (*models.VerificationCode, error) {
	var code models.VerificationCode
	err := s.db.QueryRow(`
		SELECT phone_number, code, expires_at, used, created_at
		FROM verification_codes WHERE phone_number = $1`, phoneNumber).Scan(
		&code.PhoneNumber, &code.Code, &code.ExpiresAt, &code.Used, &code.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetVerificationCode failed", "error", err, "phone", phoneNumber)
		return nil, err
	}
	return &code, nil
}

func (s *PostgresStore) MarkVerificationCodeUsed(phoneNumber string) error {
	_, err := s.db.Exec(`UPDATE verification_codes SET used = TRUE WHERE phone_number = $1`, phoneNumber)
	if err != nil {
		slog.Error("PostgresStore MarkVerificationCodeUsed failed", "error", err, "phone", phoneNumber)
		return err
	}
	return nil
}

func (s *PostgresStore) GetUserByPhone(phoneNumber string) (*models.User, error) {
	var user models.User
	var inviteCode sql.NullString
	err := s.db.QueryRow(`
		SELECT id, phone_number, created_at, invite_code
		FROM users WHERE phone_number = $1`, phoneNumber).Scan(
		&user.ID, &user.PhoneNumber, &user.CreatedAt, &inviteCode)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetUserByPhone failed", "error", err, "phone", phoneNumber)
		return nil, err
	}
	user.InviteCode = inviteCode.String
	return &user, nil
}

func (s *PostgresStore) CreateInviteCode(code string) error {
	_, err := s.db.Exec(`INSERT INTO invite_codes (code, used) VALUES ($1, FALSE) ON CONFLICT DO NOTHING`, code)
	if err != nil {
		slog.Error("PostgresStore CreateInviteCode failed", "error", err, "code", code)
		return err
	}
	return nil
}

func (s *PostgresStore) GetInviteCode(code string) (*models.InviteCode, error) {
	var invite models.InviteCode
	var usedBy sql.NullString
	var usedAt sql.NullTime
	err := s.db.QueryRow(`SELECT code, used, used_by, used_at FROM invite_codes WHERE code = $1`, code).Scan(
		&invite.Code, &invite.Used, &usedBy, &usedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetInviteCode failed", "error", err, "code", code)
		return nil, err
	}
	invite.UsedBy = usedBy.String
	if usedAt.Valid {
		invite.UsedAt = &usedAt.Time
	}
	return &invite, nil
}

// RedeemInviteCode marks the invite code used and creates the user row in
// one transaction.
func (s *PostgresStore) RedeemInviteCode(inviteCode string, user models.User) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		UPDATE invite_codes SET used = TRUE, used_by = $1, used_at = $2
		WHERE code = $3 AND used = FALSE`,
		user.PhoneNumber, time.Now(), inviteCode)
	if err != nil {
		slog.Error("PostgresStore RedeemInviteCode update failed", "error", err, "code", inviteCode)
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrInviteInvalid
	}

	_, err = tx.Exec(`
		INSERT INTO users (id, phone_number, created_at, invite_code)
		VALUES ($1, $2, $3, $4)`,
		user.ID, user.PhoneNumber, user.CreatedAt, nilIfEmpty(user.InviteCode))
	if err != nil {
		slog.Error("PostgresStore RedeemInviteCode insert user failed", "error", err, "phone", user.PhoneNumber)
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit invite redemption: %w", err)
	}
	slog.Info("PostgresStore invite code redeemed", "code", inviteCode, "userID", user.ID)
	return nil
}

func (s *PostgresStore) CreateOrder(order models.Order) error {
	_, err := s.db.Exec(`
		INSERT INTO orders (
			id, order_number, user_id, phone_number, status, order_date,
			created_at, delivery_address, dietary_restrictions, food_preferences,
			budget_amount, budget_currency, food_type, is_free_order, is_deleted
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, FALSE)`,
		order.ID, order.OrderNumber, order.UserID, order.PhoneNumber, order.Status,
		order.OrderDate, order.CreatedAt, order.DeliveryAddress,
		encodeStringList(order.DietaryRestrictions), encodeStringList(order.FoodPreferences),
		order.BudgetAmount, order.BudgetCurrency, nilIfEmpty(order.FoodType), order.IsFreeOrder)
	if err != nil {
		slog.Error("PostgresStore CreateOrder failed", "error", err, "orderID", order.ID)
		return fmt.Errorf("failed to insert order %s: %w", order.ID, err)
	}
	return nil
}

func (s *PostgresStore) SubmitOrder(orderID string, at time.Time) (*models.Order, error) {
	res, err := s.db.Exec(`
		UPDATE orders SET status = $1, submitted_at = $2, updated_at = $2
		WHERE id = $3 AND is_deleted = FALSE`,
		models.OrderStatusSubmitted, at, orderID)
	if err != nil {
		slog.Error("PostgresStore SubmitOrder failed", "error", err, "orderID", orderID)
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, nil
	}

	order, err := scanOrder(s.db.QueryRow(`SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID))
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *PostgresStore) SaveOrderFeedback(orderID string, rating int, feedback string, at time.Time) (bool, error) {
	res, err := s.db.Exec(`
		UPDATE orders SET user_rating = $1, user_feedback = $2, feedback_submitted_at = $3, updated_at = $3
		WHERE id = $4 AND is_deleted = FALSE`,
		rating, feedback, at, orderID)
	if err != nil {
		slog.Error("PostgresStore SaveOrderFeedback failed", "error", err, "orderID", orderID)
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *PostgresStore) GetUserOrders(userID string) ([]models.Order, error) {
	rows, err := s.db.Query(`
		SELECT `+orderColumns+` FROM orders
		WHERE user_id = $1 AND is_deleted = FALSE
		ORDER BY created_at DESC`, userID)
	if err != nil {
		slog.Error("PostgresStore GetUserOrders query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			slog.Error("PostgresStore GetUserOrders scan failed", "error", err)
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate order rows: %w", err)
	}
	return orders, nil
}

func (s *PostgresStore) SetKV(key, value string, ttl time.Duration) error {
	_, err := s.db.Exec(`
		INSERT INTO kv_entries (key, value, expires_at) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = $2, expires_at = $3`,
		key, value, time.Now().Add(ttl))
	if err != nil {
		slog.Error("PostgresStore SetKV failed", "error", err, "key", key)
		return err
	}
	return nil
}

func (s *PostgresStore) GetKV(key string) (string, error) {
	var value string
	var expiresAt time.Time
	err := s.db.QueryRow(`SELECT value, expires_at FROM kv_entries WHERE key = $1`, key).Scan(&value, &expiresAt)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		slog.Error("PostgresStore GetKV failed", "error", err, "key", key)
		return "", err
	}
	if time.Now().After(expiresAt) {
		_ = s.DeleteKV(key)
		return "", nil
	}
	return value, nil
}

func (s *PostgresStore) DeleteKV(key string) error {
	_, err := s.db.Exec(`DELETE FROM kv_entries WHERE key = $1`, key)
	if err != nil {
		slog.Error("PostgresStore DeleteKV failed", "error", err, "key", key)
		return err
	}
	return nil
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	return s.db.Close()
}
