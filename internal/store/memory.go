package store

import (
	"sort"
	"sync"
	"time"

	"github.com/stevenxxzgs/omnilaze-universal/internal/models"
)

// kvEntry is a value with an absolute expiry.
type kvEntry struct {
	value     string
	expiresAt time.Time
}

// InMemoryStore is a non-persistent Store used in tests and for quick
// local development runs.
type InMemoryStore struct {
	mu      sync.RWMutex
	codes   map[string]models.VerificationCode
	users   map[string]models.User
	invites map[string]models.InviteCode
	orders  map[string]models.Order
	kv      map[string]kvEntry
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		codes:   make(map[string]models.VerificationCode),
		users:   make(map[string]models.User),
		invites: make(map[string]models.InviteCode),
		orders:  make(map[string]models.Order),
		kv:      make(map[string]kvEntry),
	}
}

func (s *InMemoryStore) SaveVerificationCode(code models.VerificationCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[code.PhoneNumber] = code
	return nil
}

func (s *InMemoryStore) GetVerificationCode(phoneNumber string) (*models.VerificationCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	code, ok := s.codes[phoneNumber]
	if !ok {
		return nil, nil
	}
	return &code, nil
}

func (s *InMemoryStore) MarkVerificationCodeUsed(phoneNumber string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if code, ok := s.codes[phoneNumber]; ok {
		code.Used = true
		s.codes[phoneNumber] = code
	}
	return nil
}

func (s *InMemoryStore) GetUserByPhone(phoneNumber string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.PhoneNumber == phoneNumber {
			user := u
			return &user, nil
		}
	}
	return nil, nil
}

func (s *InMemoryStore) CreateInviteCode(code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.invites[code]; !ok {
		s.invites[code] = models.InviteCode{Code: code}
	}
	return nil
}

func (s *InMemoryStore) GetInviteCode(code string) (*models.InviteCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	invite, ok := s.invites[code]
	if !ok {
		return nil, nil
	}
	return &invite, nil
}

func (s *InMemoryStore) RedeemInviteCode(inviteCode string, user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	invite, ok := s.invites[inviteCode]
	if !ok || invite.Used {
		return ErrInviteInvalid
	}
	for _, u := range s.users {
		if u.PhoneNumber == user.PhoneNumber {
			return ErrUserExists
		}
	}
	now := time.Now()
	invite.Used = true
	invite.UsedBy = user.PhoneNumber
	invite.UsedAt = &now
	s.invites[inviteCode] = invite
	s.users[user.ID] = user
	return nil
}

func (s *InMemoryStore) CreateOrder(order models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[order.ID] = order
	return nil
}

func (s *InMemoryStore) SubmitOrder(orderID string, at time.Time) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok || order.IsDeleted {
		return nil, nil
	}
	order.Status = models.OrderStatusSubmitted
	order.SubmittedAt = &at
	order.UpdatedAt = &at
	s.orders[orderID] = order
	return &order, nil
}

func (s *InMemoryStore) SaveOrderFeedback(orderID string, rating int, feedback string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok || order.IsDeleted {
		return false, nil
	}
	order.UserRating = rating
	order.UserFeedback = feedback
	order.FeedbackSubmittedAt = &at
	order.UpdatedAt = &at
	s.orders[orderID] = order
	return true, nil
}

func (s *InMemoryStore) GetUserOrders(userID string) ([]models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var orders []models.Order
	for _, o := range s.orders {
		if o.UserID == userID && !o.IsDeleted {
			orders = append(orders, o)
		}
	}
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders, nil
}

func (s *InMemoryStore) SetKV(key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kv[key] = kvEntry{value: value, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (s *InMemoryStore) GetKV(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.kv[key]
	if !ok {
		return "", nil
	}
	if time.Now().After(entry.expiresAt) {
		delete(s.kv, key)
		return "", nil
	}
	return entry.value, nil
}

func (s *InMemoryStore) DeleteKV(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.kv, key)
	return nil
}

func (s *InMemoryStore) Close() error {
	return nil
}
