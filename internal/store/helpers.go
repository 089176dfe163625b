package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/stevenxxzgs/omnilaze-universal/internal/models"
)

// orderColumns is the column list shared by all order queries.
const orderColumns = `id, order_number, user_id, phone_number, status, order_date,
	created_at, updated_at, submitted_at, delivery_address, dietary_restrictions,
	food_preferences, budget_amount, budget_currency, food_type, is_free_order,
	user_rating, user_feedback, feedback_submitted_at, is_deleted`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanOrder scans an Order from a row produced with orderColumns.
func scanOrder(row rowScanner) (models.Order, error) {
	var o models.Order
	var updatedAt, submittedAt, feedbackAt sql.NullTime
	var restrictions, preferences, foodType, feedback sql.NullString
	var rating sql.NullInt64
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.UserID, &o.PhoneNumber, &o.Status, &o.OrderDate,
		&o.CreatedAt, &updatedAt, &submittedAt, &o.DeliveryAddress, &restrictions,
		&preferences, &o.BudgetAmount, &o.BudgetCurrency, &foodType, &o.IsFreeOrder,
		&rating, &feedback, &feedbackAt, &o.IsDeleted,
	)
	if err != nil {
		return o, fmt.Errorf("scan order failed: %w", err)
	}
	if updatedAt.Valid {
		o.UpdatedAt = &updatedAt.Time
	}
	if submittedAt.Valid {
		o.SubmittedAt = &submittedAt.Time
	}
	if feedbackAt.Valid {
		o.FeedbackSubmittedAt = &feedbackAt.Time
	}
	o.FoodType = foodType.String
	o.UserFeedback = feedback.String
	o.UserRating = int(rating.Int64)
	o.DietaryRestrictions = decodeStringList(restrictions.String)
	o.FoodPreferences = decodeStringList(preferences.String)
	return o, nil
}

// encodeStringList marshals a string slice to JSON for a TEXT column.
// A nil slice encodes as an empty array.
func encodeStringList(items []string) string {
	if items == nil {
		items = []string{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		slog.Error("Failed to encode string list", "error", err)
		return "[]"
	}
	return string(data)
}

// decodeStringList unmarshals a JSON array column; bad data yields an
// empty list rather than an error.
func decodeStringList(data string) []string {
	if data == "" {
		return []string{}
	}
	var items []string
	if err := json.Unmarshal([]byte(data), &items); err != nil {
		slog.Error("Failed to decode string list, using empty list", "error", err)
		return []string{}
	}
	return items
}

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
