package models

import "time"

type User struct {
	ID           string
	Username     string
	Mobile       string
	FirstName    string
	LastName     string
	PasswordHash string
	CreatedAt    time.Time
	LastLoginAt  *time.Time
}

type AuthEventType string

const (
	AuthEventSignup       AuthEventType = "signup"
	AuthEventLoginSuccess AuthEventType = "login_success"
	AuthEventLoginFailure AuthEventType = "login_failure"
	AuthEventTokenRefresh AuthEventType = "token_refresh"
	AuthEventLogout       AuthEventType = "logout"
)

// AuthEvent is an audit record. It must never carry credentials or tokens.
type AuthEvent struct {
	ID         string
	Type       AuthEventType
	UserID     string
	Username   string
	ClientIP   string
	UserAgent  string
	OccurredAt time.Time
}
