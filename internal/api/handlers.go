// Package api provides HTTP handlers for OmniLaze endpoints.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stevenxxzgs/omnilaze-universal/internal/models"
	"github.com/stevenxxzgs/omnilaze-universal/internal/session"
	"github.com/stevenxxzgs/omnilaze-universal/internal/store"
	"github.com/stevenxxzgs/omnilaze-universal/internal/util"
	"github.com/stevenxxzgs/omnilaze-universal/internal/validation"
)

// requirePost rejects non-POST requests. Returns false when the request was
// already answered.
func requirePost(w http.ResponseWriter, r *http.Request, handler string) bool {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server."+handler+": method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func (s *Server) sendCodeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.sendCodeHandler: processing request", "method", r.Method)
	if !requirePost(w, r, "sendCodeHandler") {
		return
	}
	var req models.SendCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.sendCodeHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if !validation.ValidatePhoneNumber(req.PhoneNumber) {
		slog.Warn("Server.sendCodeHandler: invalid phone number", "phone", req.PhoneNumber)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid phone number format"))
		return
	}

	code := util.GenerateVerificationCode()
	now := s.now()
	record := models.VerificationCode{
		PhoneNumber: req.PhoneNumber,
		Code:        code,
		ExpiresAt:   now.Add(models.VerificationCodeTTL),
		CreatedAt:   now,
	}
	if err := s.store.SaveVerificationCode(record); err != nil {
		slog.Error("Server.sendCodeHandler: failed to save code", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to issue verification code"))
		return
	}

	resp := models.SendCodeResponse{Success: true, Message: "Verification code sent"}
	if s.environment == EnvDevelopment {
		// Development mode skips SMS delivery and hands the code back so
		// the client can auto-fill it.
		resp.DevCode = code
		slog.Info("Server.sendCodeHandler: development code issued", "phone", req.PhoneNumber)
		writeJSONResponse(w, http.StatusOK, resp)
		return
	}

	if err := s.sms.SendVerificationCode(r.Context(), req.PhoneNumber, code); err != nil {
		slog.Error("Server.sendCodeHandler: failed to send SMS", "error", err, "phone", req.PhoneNumber)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to send verification code"))
		return
	}
	slog.Info("Server.sendCodeHandler: verification code sent", "phone", req.PhoneNumber)
	writeJSONResponse(w, http.StatusOK, resp)
}

func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.loginHandler: processing request", "method", r.Method)
	if !requirePost(w, r, "loginHandler") {
		return
	}
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.loginHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if !validation.ValidatePhoneNumber(req.PhoneNumber) {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid phone number format"))
		return
	}
	if len(req.VerificationCode) != models.VerificationCodeLength {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid verification code"))
		return
	}

	record, err := s.store.GetVerificationCode(req.PhoneNumber)
	if err != nil {
		slog.Error("Server.loginHandler: failed to load code", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Login failed"))
		return
	}
	switch {
	case record == nil:
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Verification code not found"))
		return
	case record.Used:
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Verification code already used"))
		return
	case s.now().After(record.ExpiresAt):
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Verification code expired"))
		return
	case record.Code != req.VerificationCode:
		slog.Warn("Server.loginHandler: code mismatch", "phone", req.PhoneNumber)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Incorrect verification code"))
		return
	}
	if err := s.store.MarkVerificationCodeUsed(req.PhoneNumber); err != nil {
		slog.Error("Server.loginHandler: failed to mark code used", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Login failed"))
		return
	}

	user, err := s.store.GetUserByPhone(req.PhoneNumber)
	if err != nil {
		slog.Error("Server.loginHandler: failed to load user", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Login failed"))
		return
	}
	if user == nil {
		// New users must redeem an invite code before they get an account.
		slog.Info("Server.loginHandler: new user verified", "phone", req.PhoneNumber)
		writeJSONResponse(w, http.StatusOK, models.LoginResponse{
			Success:     true,
			Message:     "Phone verified, invite code required",
			PhoneNumber: req.PhoneNumber,
			IsNewUser:   true,
		})
		return
	}

	token, err := session.IssueToken(s.jwtSecret, models.Identity{UserID: user.ID, PhoneNumber: user.PhoneNumber})
	if err != nil {
		slog.Error("Server.loginHandler: failed to issue token", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Login failed"))
		return
	}
	slog.Info("Server.loginHandler: login successful", "userID", user.ID)
	writeJSONResponse(w, http.StatusOK, models.LoginResponse{
		Success:     true,
		Message:     "Login successful",
		UserID:      user.ID,
		PhoneNumber: user.PhoneNumber,
		Token:       token,
	})
}

func (s *Server) inviteHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.inviteHandler: processing request", "method", r.Method)
	if !requirePost(w, r, "inviteHandler") {
		return
	}
	var req models.InviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.inviteHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if !validation.ValidatePhoneNumber(req.PhoneNumber) {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid phone number format"))
		return
	}
	if len(strings.TrimSpace(req.InviteCode)) < models.MinInviteCodeLength {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid invite code"))
		return
	}

	existing, err := s.store.GetUserByPhone(req.PhoneNumber)
	if err != nil {
		slog.Error("Server.inviteHandler: failed to load user", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Invite verification failed"))
		return
	}
	if existing != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("User already registered"))
		return
	}

	user := models.User{
		ID:          uuid.NewString(),
		PhoneNumber: req.PhoneNumber,
		CreatedAt:   s.now(),
		InviteCode:  req.InviteCode,
	}
	if err := s.store.RedeemInviteCode(req.InviteCode, user); err != nil {
		if err == store.ErrInviteInvalid {
			slog.Warn("Server.inviteHandler: invite code rejected", "code", req.InviteCode)
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Invite code is invalid or already used"))
			return
		}
		slog.Error("Server.inviteHandler: failed to redeem invite", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Invite verification failed"))
		return
	}

	token, err := session.IssueToken(s.jwtSecret, models.Identity{UserID: user.ID, PhoneNumber: user.PhoneNumber})
	if err != nil {
		slog.Error("Server.inviteHandler: failed to issue token", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Invite verification failed"))
		return
	}
	slog.Info("Server.inviteHandler: user registered", "userID", user.ID)
	writeJSONResponse(w, http.StatusOK, models.InviteResponse{
		Success:     true,
		Message:     "Registration successful",
		UserID:      user.ID,
		PhoneNumber: user.PhoneNumber,
		Token:       token,
	})
}

func (s *Server) createOrderHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.createOrderHandler: processing request", "method", r.Method)
	if !requirePost(w, r, "createOrderHandler") {
		return
	}
	var req models.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.createOrderHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.UserID == "" || !validation.ValidatePhoneNumber(req.PhoneNumber) {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing user ID or invalid phone number"))
		return
	}
	if result := validation.Validate(models.AnswerKindAddress, req.FormData.Address); !result.IsValid {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(result.ErrorMessage))
		return
	}

	budget, err := strconv.ParseFloat(strings.TrimSpace(req.FormData.Budget), 64)
	if err != nil || budget < 0 {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid budget amount"))
		return
	}
	// Free orders carry a zero budget; everything else must meet the minimum.
	if !req.FormData.IsFreeOrder && budget < models.MinBudget {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Budget is below the minimum"))
		return
	}

	now := s.now()
	order := models.Order{
		ID:                  uuid.NewString(),
		OrderNumber:         util.GenerateOrderNumber(now),
		UserID:              req.UserID,
		PhoneNumber:         req.PhoneNumber,
		Status:              models.OrderStatusDraft,
		OrderDate:           now.Format("2006-01-02"),
		CreatedAt:           now,
		DeliveryAddress:     req.FormData.Address,
		DietaryRestrictions: req.FormData.Allergies,
		FoodPreferences:     req.FormData.Preferences,
		BudgetAmount:        budget,
		BudgetCurrency:      "CNY",
		FoodType:            req.FormData.FoodType,
		IsFreeOrder:         req.FormData.IsFreeOrder,
	}
	if err := s.store.CreateOrder(order); err != nil {
		slog.Error("Server.createOrderHandler: failed to create order", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to create order"))
		return
	}
	slog.Info("Server.createOrderHandler: draft order created", "orderID", order.ID, "orderNumber", order.OrderNumber)
	writeJSONResponse(w, http.StatusOK, models.CreateOrderResponse{
		Success:     true,
		Message:     "Order created",
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
	})
}

func (s *Server) submitOrderHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.submitOrderHandler: processing request", "method", r.Method)
	if !requirePost(w, r, "submitOrderHandler") {
		return
	}
	var req models.SubmitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.submitOrderHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.OrderID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing order ID"))
		return
	}

	order, err := s.store.SubmitOrder(req.OrderID, s.now())
	if err != nil {
		slog.Error("Server.submitOrderHandler: failed to submit order", "error", err, "orderID", req.OrderID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to submit order"))
		return
	}
	if order == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Order not found"))
		return
	}
	slog.Info("Server.submitOrderHandler: order submitted", "orderID", order.ID, "orderNumber", order.OrderNumber)
	writeJSONResponse(w, http.StatusOK, models.SubmitOrderResponse{
		Success:     true,
		Message:     "Order submitted",
		OrderNumber: order.OrderNumber,
	})
}

func (s *Server) feedbackHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.feedbackHandler: processing request", "method", r.Method)
	if !requirePost(w, r, "feedbackHandler") {
		return
	}
	var req models.FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.feedbackHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.OrderID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing order ID"))
		return
	}
	if req.Rating < models.MinFeedbackRating || req.Rating > models.MaxFeedbackRating {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Rating must be between 1 and 5"))
		return
	}

	found, err := s.store.SaveOrderFeedback(req.OrderID, req.Rating, req.Feedback, s.now())
	if err != nil {
		slog.Error("Server.feedbackHandler: failed to save feedback", "error", err, "orderID", req.OrderID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to save feedback"))
		return
	}
	if !found {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Order not found"))
		return
	}
	slog.Info("Server.feedbackHandler: feedback saved", "orderID", req.OrderID, "rating", req.Rating)
	writeJSONResponse(w, http.StatusOK, models.FeedbackResponse{Success: true, Message: "Feedback saved"})
}

func (s *Server) ordersHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.ordersHandler: processing request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		slog.Warn("Server.ordersHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	userID := strings.TrimPrefix(r.URL.Path, "/orders/")
	if userID == "" || strings.Contains(userID, "/") {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing user ID"))
		return
	}

	orders, err := s.store.GetUserOrders(userID)
	if err != nil {
		slog.Error("Server.ordersHandler: failed to load orders", "error", err, "userID", userID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load orders"))
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}
	writeJSONResponse(w, http.StatusOK, models.OrdersResponse{
		Success: true,
		Orders:  orders,
		Count:   len(orders),
	})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"environment": s.environment,
		"time":        s.now().UTC().Format(time.RFC3339),
	})
}
