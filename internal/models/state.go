// Package models defines persisted state structures for the ordering wizard.
package models

// ConversationState is the reduced projection of wizard state that the
// persistence bridge snapshots on every mutation and restores on startup.
type ConversationState struct {
	CurrentStep      int            `json:"current_step"`
	CompletedAnswers map[int]Answer `json:"completed_answers"`
	AddressConfirmed bool           `json:"address_confirmed"`
	FreeOrder        bool           `json:"free_order,omitempty"`
	Timestamp        int64          `json:"timestamp"`
}

// SessionRecord is the persisted login session.
type SessionRecord struct {
	UserID      string `json:"user_id"`
	PhoneNumber string `json:"phone_number"`
	IsNewUser   bool   `json:"is_new_user"`
	LoginTime   int64  `json:"login_time"`
	Token       string `json:"token,omitempty"`
}
