// Package store provides storage backends for the OmniLaze API server.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/stevenxxzgs/omnilaze-universal/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) SaveVerificationCode(code models.VerificationCode) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO verification_codes (phone_number, code, expires_at, used, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		code.PhoneNumber, code.Code, code.ExpiresAt, code.Used, code.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveVerificationCode failed", "error", err, "phone", code.PhoneNumber)
		return fmt.Errorf("failed to save verification code: %w", err)
	}
	slog.Debug("SQLiteStore SaveVerificationCode succeeded", "phone", code.PhoneNumber)
	return nil
}

func (s *SQLiteStore) GetVerificationCode(phoneNumber string) (*models.VerificationCode, error) {
	var code models.VerificationCode
	err := s.db.QueryRow(`
		SELECT phone_number, code, expires_at, used, created_at
		FROM verification_codes WHERE phone_number = ?`, phoneNumber).Scan(
		&code.PhoneNumber, &code.Code, &code.ExpiresAt, &code.Used, &code.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetVerificationCode failed", "error", err, "phone", phoneNumber)
		return nil, err
	}
	return &code, nil
}

func (s *SQLiteStore) MarkVerificationCodeUsed(phoneNumber string) error {
	_, err := s.db.Exec(`UPDATE verification_codes SET used = 1 WHERE phone_number = ?`, phoneNumber)
	if err != nil {
		slog.Error("SQLiteStore MarkVerificationCodeUsed failed", "error", err, "phone", phoneNumber)
		return err
	}
	return nil
}

func (s *SQLiteStore) GetUserByPhone(phoneNumber string) (*models.User, error) {
	var user models.User
	var inviteCode sql.NullString
	err := s.db.QueryRow(`
		SELECT id, phone_number, created_at, invite_code
		FROM users WHERE phone_number = ?`, phoneNumber).Scan(
		&user.ID, &user.PhoneNumber, &user.CreatedAt, &inviteCode)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetUserByPhone failed", "error", err, "phone", phoneNumber)
		return nil, err
	}
	user.InviteCode = inviteCode.String
	return &user, nil
}

func (s *SQLiteStore) CreateInviteCode(code string) error {
	_, err := s.db.Exec(`INSERT OR IGNORE INTO invite_codes (code, used) VALUES (?, 0)`, code)
	if err != nil {
		slog.Error("SQLiteStore CreateInviteCode failed", "error", err, "code", code)
		return err
	}
	return nil
}

func (s *SQLiteStore) GetInviteCode(code string) (*models.InviteCode, error) {
	var invite models.InviteCode
	var usedBy sql.NullString
	var usedAt sql.NullTime
	err := s.db.QueryRow(`SELECT code, used, used_by, used_at FROM invite_codes WHERE code = ?`, code).Scan(
		&invite.Code, &invite.Used, &usedBy, &usedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetInviteCode failed", "error", err, "code", code)
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
func (s *SQLiteStore) RedeemInviteCode(inviteCode string, user models.User) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		UPDATE invite_codes SET used = 1, used_by = ?, used_at = ?
		WHERE code = ? AND used = 0`,
		user.PhoneNumber, time.Now(), inviteCode)
	if err != nil {
		slog.Error("SQLiteStore RedeemInviteCode update failed", "error", err, "code", inviteCode)
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		slog.Debug("SQLiteStore RedeemInviteCode: code invalid or used", "code", inviteCode)
		return ErrInviteInvalid
	}

	_, err = tx.Exec(`
		INSERT INTO users (id, phone_number, created_at, invite_code)
		VALUES (?, ?, ?, ?)`,
		user.ID, user.PhoneNumber, user.CreatedAt, nilIfEmpty(user.InviteCode))
	if err != nil {
		slog.Error("SQLiteStore RedeemInviteCode insert user failed", "error", err, "phone", user.PhoneNumber)
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit invite redemption: %w", err)
	}
	slog.Info("SQLiteStore invite code redeemed", "code", inviteCode, "userID", user.ID)
	return nil
}

func (s *SQLiteStore) CreateOrder(order models.Order) error {
	_, err := s.db.Exec(`
		INSERT INTO orders (
			id, order_number, user_id, phone_number, status, order_date,
			created_at, delivery_address, dietary_restrictions, food_preferences,
			budget_amount, budget_currency, food_type, is_free_order, is_deleted
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)`,
		order.ID, order.OrderNumber, order.UserID, order.PhoneNumber, order.Status,
		order.OrderDate, order.CreatedAt, order.DeliveryAddress,
		encodeStringList(order.DietaryRestrictions), encodeStringList(order.FoodPreferences),
		order.BudgetAmount, order.BudgetCurrency, nilIfEmpty(order.FoodType), order.IsFreeOrder)
	if err != nil {
		slog.Error("SQLiteStore CreateOrder failed", "error", err, "orderID", order.ID)
		return fmt.Errorf("failed to insert order %s: %w", order.ID, err)
	}
	slog.Debug("SQLiteStore CreateOrder succeeded", "orderID", order.ID, "orderNumber", order.OrderNumber)
	return nil
}

func (s *SQLiteStore) SubmitOrder(orderID string, at time.Time) (*models.Order, error) {
	res, err := s.db.Exec(`
		UPDATE orders SET status = ?, submitted_at = ?, updated_at = ?
		WHERE id = ? AND is_deleted = 0`,
		models.OrderStatusSubmitted, at, at, orderID)
	if err != nil {
		slog.Error("SQLiteStore SubmitOrder failed", "error", err, "orderID", orderID)
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		slog.Debug("SQLiteStore SubmitOrder: order not found", "orderID", orderID)
		return nil, nil
	}

	order, err := scanOrder(s.db.QueryRow(`SELECT `+orderColumns+` FROM orders WHERE id = ?`, orderID))
	if err != nil {
		return nil, err
	}
	slog.Debug("SQLiteStore SubmitOrder succeeded", "orderID", orderID)
	return &order, nil
}

func (s *SQLiteStore) SaveOrderFeedback(orderID string, rating int, feedback string, at time.Time) (bool, error) {
	res, err := s.db.Exec(`
		UPDATE orders SET user_rating = ?, user_feedback = ?, feedback_submitted_at = ?, updated_at = ?
		WHERE id = ? AND is_deleted = 0`,
		rating, feedback, at, at, orderID)
	if err != nil {
		slog.Error("SQLiteStore SaveOrderFeedback failed", "error", err, "orderID", orderID)
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *SQLiteStore) GetUserOrders(userID string) ([]models.Order, error) {
	rows, err := s.db.Query(`
		SELECT `+orderColumns+` FROM orders
		WHERE user_id = ? AND is_deleted = 0
		ORDER BY created_at DESC`, userID)
	if err != nil {
		slog.Error("SQLiteStore GetUserOrders query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			slog.Error("SQLiteStore GetUserOrders scan failed", "error", err)
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate order rows: %w", err)
	}
	slog.Debug("SQLiteStore GetUserOrders succeeded", "userID", userID, "count", len(orders))
	return orders, nil
}

func (s *SQLiteStore) SetKV(key, value string, ttl time.Duration) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO kv_entries (key, value, expires_at) VALUES (?, ?, ?)`,
		key, value, time.Now().Add(ttl))
	if err != nil {
		slog.Error("SQLiteStore SetKV failed", "error", err, "key", key)
		return err
	}
	return nil
}

func (s *SQLiteStore) GetKV(key string) (string, error) {
	var value string
	var expiresAt time.Time
	err := s.db.QueryRow(`SELECT value, expires_at FROM kv_entries WHERE key = ?`, key).Scan(&value, &expiresAt)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetKV failed", "error", err, "key", key)
		return "", err
	}
	if time.Now().After(expiresAt) {
		_ = s.DeleteKV(key)
		return "", nil
	}
	return value, nil
}

func (s *SQLiteStore) DeleteKV(key string) error {
	_, err := s.db.Exec(`DELETE FROM kv_entries WHERE key = ?`, key)
	if err != nil {
		slog.Error("SQLiteStore DeleteKV failed", "error", err, "key", key)
		return err
	}
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}
