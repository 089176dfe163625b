// Package store provides storage backends for the OmniLaze API server and
// the client-side persistence bridge.
//
// It includes an in-memory store, an SQLite-backed store, and a
// PostgreSQL-backed store, all implementing the same interface.
package store

import (
	"errors"
	"time"

	"github.com/stevenxxzgs/omnilaze-universal/internal/models"
)

// Store errors shared by all backends.
var (
	// ErrInviteInvalid means the invite code does not exist or was used.
	ErrInviteInvalid = errors.New("invite code invalid or already used")
	// ErrUserExists means a user row already exists for the phone number.
	ErrUserExists = errors.New("user already exists")
)

// Store defines the persistence operations the API server and the
// persistence bridge depend on.
type Store interface {
	// Verification codes: single-use, re-send overwrites the prior code.
	SaveVerificationCode(code models.VerificationCode) error
	GetVerificationCode(phoneNumber string) (*models.VerificationCode, error)
	MarkVerificationCodeUsed(phoneNumber string) error

	// Users and invite codes. RedeemInviteCode marks the code used and
	// creates the user row atomically.
	GetUserByPhone(phoneNumber string) (*models.User, error)
	CreateInviteCode(code string) error
	GetInviteCode(code string) (*models.InviteCode, error)
	RedeemInviteCode(inviteCode string, user models.User) error

	// Orders.
	CreateOrder(order models.Order) error
	SubmitOrder(orderID string, at time.Time) (*models.Order, error)
	SaveOrderFeedback(orderID string, rating int, feedback string, at time.Time) (bool, error)
	GetUserOrders(userID string) ([]models.Order, error)

	// Expiring key-value entries used by the persistence bridge for
	// session and conversation records.
	SetKV(key, value string, ttl time.Duration) error
	GetKV(key string) (string, error)
	DeleteKV(key string) error

	Close() error
}
