// Package queue defines message payloads exchanged over the message broker.
package queue

// Auth event kinds published to the auth.events queue.
const (
	EventSignUp         = "signup"
	EventSignIn         = "signin"
	EventRefresh        = "refresh"
	EventLogout         = "logout"
	EventAutoLogout     = "auto_logout"
	EventPasswordChange = "password_change"
)

// AuthEvent is published after every auth operation. It carries enough
// for downstream consumers to log or alert without querying the primary
// database. Publishing is best-effort; the strict audit trail lives in
// the user_logs table, not here.
type AuthEvent struct {
	Event      string `json:"event"`
	UserID     string `json:"user_id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	IP         string `json:"ip"`
	Method     string `json:"method"`
	AccessURL  string `json:"access_url"`
	UserAgent  string `json:"user_agent"`
	OccurredAt string `json:"occurred_at"`
}
