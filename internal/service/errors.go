package service

import (
	"fmt"
	"net/http"
)

// Error is the taxonomy every auth failure surfaces as. Status is the
// HTTP status the handler layer responds with, Code is a stable
// machine-checkable identifier, Message the human-readable text. Codes
// let callers distinguish "no role" from "missing permission X" from
// "endpoint misconfigured" without parsing message text.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

var (
	// ErrUserNotFound: sign-in attempted with an email no user matches.
	ErrUserNotFound = &Error{http.StatusNotFound, "user_not_found", "user not found"}

	// ErrWrongPassword: constant-time verification of the password failed.
	ErrWrongPassword = &Error{http.StatusBadRequest, "wrong_password", "wrong password"}

	// ErrSessionInUse: single-session mode and the account already holds a
	// live refresh-token hash, or the presented refresh token no longer
	// matches the stored hash (rotated away by another device).
	ErrSessionInUse = &Error{http.StatusForbidden, "session_in_use",
		"sorry, your session is currently in use on another device. please logout of either device and try logging in again"}

	// ErrNoSession: the user does not exist or has no active session to
	// refresh or log out of.
	ErrNoSession = &Error{http.StatusForbidden, "no_session", "access denied, user not found"}

	// ErrNoRole: the caller has no role assignment at all.
	ErrNoRole = &Error{http.StatusForbidden, "no_role",
		"it looks like you don't have any role to access this resource"}

	// ErrUnknownRole: the caller's role name is not among the known roles
	// (stale assignment to a removed role).
	ErrUnknownRole = &Error{http.StatusForbidden, "unknown_role",
		"it looks like your role doesn't exist in our system"}

	// ErrNoPermissions: the caller's role grants no permissions.
	ErrNoPermissions = &Error{http.StatusForbidden, "no_permissions",
		"it looks like you don't have any permission to access resources"}

	// ErrEndpointUnconfigured: a non-public route declared no required
	// permissions. Absence of a declaration is a rejection, not an allow.
	ErrEndpointUnconfigured = &Error{http.StatusForbidden, "endpoint_unconfigured",
		"please check this endpoint, it looks like no permissions have been applied yet"}

	// ErrAuditFailed: the access log row could not be written. Auditing is
	// strict: an unrecorded request is a refused request.
	ErrAuditFailed = &Error{http.StatusBadRequest, "audit_failed", "userlogs says: something went wrong"}

	// ErrRoleTaken: the user already holds a role; remove it before
	// assigning another.
	ErrRoleTaken = &Error{http.StatusBadRequest, "role_assigned",
		"user already has a role assigned, remove the existing assignment first"}
)

// MissingPermission builds the rejection for one specific absent
// permission; the guard short-circuits on the first one it finds.
func MissingPermission(name string) *Error {
	return &Error{http.StatusForbidden, "missing_permission",
		fmt.Sprintf("it looks like you don't have permission [%s] to access this resource", name)}
}

// RateLimited builds the 408-class rejection naming the retry window.
func RateLimited(window string) *Error {
	return &Error{http.StatusRequestTimeout, "rate_limited",
		fmt.Sprintf("the API access limited for this user, please wait until %s", window)}
}

// Duplicate builds the aggregated field:value uniqueness violation.
func Duplicate(key, value string) *Error {
	return &Error{http.StatusBadRequest, "duplicate",
		fmt.Sprintf("credentials incorrect: %s: %s,", key, value)}
}
