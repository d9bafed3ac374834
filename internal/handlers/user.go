package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/crowdpick/internal/auth"
	"github.com/jason-s-yu/crowdpick/internal/database"
	"github.com/jason-s-yu/crowdpick/internal/models"
	"github.com/sirupsen/logrus"
)

// EnsureEphemeralUser returns the caller's user id. A caller without a valid
// token gets a fresh guest account and a cookie for it.
func EnsureEphemeralUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, error) {
	if userID, err := authenticatedUser(r); err == nil {
		return userID, nil
	}

	guest := models.User{
		Username:    "Guest",
		IsEphemeral: true,
	}
	if err := database.CreateUser(r.Context(), &guest); err != nil {
		return uuid.Nil, fmt.Errorf("failed to create ephemeral user: %w", err)
	}
	token, err := auth.CreateJWT(guest.ID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create ephemeral JWT: %w", err)
	}
	setAuthCookie(w, token)
	return guest.ID, nil
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
}

func (c credentialsRequest) validate() error {
	if c.Email == "" || c.Password == "" {
		return errors.New("email and password are required")
	}
	return nil
}

// CreateUserHandler registers a new account. A duplicate email is a 409.
func CreateUserHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if err := req.validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	user := models.User{
		Email:    req.Email,
		Password: req.Password,
		Username: req.Username,
	}
	if err := database.CreateUser(r.Context(), &user); err != nil {
		if database.IsUniqueViolation(err) {
			http.Error(w, "email already exists", http.StatusConflict)
			return
		}
		logrus.WithError(err).Error("failed to create user")
		http.Error(w, "error creating user", http.StatusInternalServerError)
		return
	}
	user.Password = ""
	writeJSON(w, http.StatusCreated, user)
}

type loginResponse struct {
	Token string `json:"token"`
}

// LoginHandler handles user login requests. It expects a JSON payload with email and password,
// and returns a JSON response with an authentication token if the login is successful.
//
// Request payload:
//
//	{
//	  "email": "someone@example.com",
//	  "password": "password"
//	}
//
// Response payload:
//
//	{
//	  "token": "{jwt}"
//	}
//
// The token is also sent via the Cookie header.
func LoginHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}

	token, err := database.AuthenticateUser(r.Context(), req.Email, req.Password)
	if err != nil {
		if !errors.Is(err, database.ErrInvalidCredentials) {
			logrus.WithError(err).Warn("failed to authenticate user")
		}
		http.Error(w, "authentication failed", http.StatusForbidden)
		return
	}

	setAuthCookie(w, token)
	writeJSON(w, http.StatusOK, loginResponse{Token: token})
}

// ClaimGuestHandler upgrades the caller's guest account to a registered one, keeping its coins.
func ClaimGuestHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := authenticatedUser(r)
	if err != nil {
		http.Error(w, "invalid token", http.StatusForbidden)
		return
	}
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid claim payload", http.StatusBadRequest)
		return
	}
	if err := req.validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	u := models.User{ID: userID, Email: req.Email, Password: req.Password, Username: req.Username}
	if u.Username == "" {
		u.Username = "Player"
	}
	if err := database.ClaimGuest(r.Context(), &u); err != nil {
		switch {
		case database.IsUniqueViolation(err):
			http.Error(w, "email already exists", http.StatusConflict)
		case errors.Is(err, pgx.ErrNoRows):
			http.Error(w, "user is not a guest", http.StatusBadRequest)
		default:
			logrus.WithError(err).Error("failed to claim guest user")
			http.Error(w, "failed to finalize guest user", http.StatusInternalServerError)
		}
		return
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "guest user claimed successfully")
}

// ProfileHandler returns the caller's coins and best score.
func ProfileHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := authenticatedUser(r)
	if err != nil {
		http.Error(w, "invalid token", http.StatusForbidden)
		return
	}
	u, err := lookupUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			http.Error(w, "user not found", http.StatusNotFound)
			return
		}
		logrus.WithError(err).Error("failed to load profile")
		http.Error(w, "failed to load profile", http.StatusInternalServerError)
		return
	}
	u.Password = ""
	writeJSON(w, http.StatusOK, u)
}

// lookupUser is swapped in tests.
var lookupUser = func(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return database.GetUserByID(ctx, id)
}
