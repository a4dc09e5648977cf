// Package api defines the JSON bodies shared by all HTTP handlers.
package api

import (
	"encoding/json"
	"log"
	"net/http"

	userdomain "github.com/moneywright/moneywright/internal/user/domain"
)

// ErrorBody is the uniform error envelope. Error is a stable machine code,
// Message is human-readable. RetryAfter (seconds) is set on lockout replies;
// AttemptsRemaining on failed PIN attempts.
type ErrorBody struct {
	Error             string `json:"error"`
	Message           string `json:"message"`
	RetryAfter        int64  `json:"retryAfter,omitempty"`
	AttemptsRemaining *int   `json:"attemptsRemaining,omitempty"`
}

// User is the wire shape of an account.
type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

// AuthResponse is returned by every endpoint that establishes or rotates a
// session. The same credentials also travel as cookies; the body serves
// Bearer-style clients.
type AuthResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	Fingerprint  string `json:"fingerprint"`
	ExpiresIn    int64  `json:"expiresIn"`
	User         *User  `json:"user,omitempty"`
	Redirect     string `json:"redirect,omitempty"`
}

// UserFromDomain maps a domain user onto the wire shape.
func UserFromDomain(u *userdomain.User) *User {
	if u == nil {
		return nil
	}
	return &User{ID: u.ID, Email: u.Email, DisplayName: u.DisplayName}
}

// JSON writes v with the given status. Encode failures are logged; headers
// are already out by then.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: failed to encode response: %v", err)
	}
}

// Error writes the uniform error envelope.
func Error(w http.ResponseWriter, status int, code, message string) {
	JSON(w, status, ErrorBody{Error: code, Message: message})
}
