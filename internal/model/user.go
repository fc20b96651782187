package model

import "time"

// User represents a row in the `users` table. Identifiers are UUID
// strings. The password column holds a bcrypt hash; the plain password
// never touches this struct. Session and rate-limit state live directly
// on the user row:
//
//	HashedRT      – hash of the currently valid refresh token. Non-nil
//	                means the user has an active session; nil means no
//	                refresh token issued to this user is still usable.
//	RemainingHits – request budget left in the current window. -1 is a
//	                sentinel meaning "last request was rejected, grant a
//	                single grace pass once the window elapses". Nil means
//	                the user has never been metered.
//	DefaultHits   – per-user override of the full budget granted on reset.
//	WindowMillis  – per-user override of the rate-limit window size.
//	LastHitAt     – wall-clock start of the current window.
//	AccessTTLSec  – lifetime of access tokens issued to this user.
//	RefreshTTLSec – lifetime of refresh tokens issued to this user.
//
// DeletedAt/DeletedBy implement soft deletion; lookups for authentication
// purposes must treat a soft-deleted row as absent.
type User struct {
	ID            string     // users.id (uuid)
	Fullname      string     // users.fullname
	Username      string     // users.username (unique)
	Email         string     // users.email (unique)
	Password      string     // users.password (bcrypt hash)
	HashedRT      *string    // users.hashed_rt (nullable)
	RemainingHits *int       // users.remaining_hits (nullable, -1 sentinel)
	DefaultHits   *int       // users.default_hits (nullable)
	WindowMillis  *int64     // users.window_ms (nullable)
	LastHitAt     *time.Time // users.last_hit_at (nullable)
	AccessTTLSec  int        // users.access_ttl_sec
	RefreshTTLSec int        // users.refresh_ttl_sec
	CreatedAt     time.Time  // users.created_at
	UpdatedAt     time.Time  // users.updated_at
	DeletedAt     *time.Time // users.deleted_at (nullable)
	DeletedBy     *string    // users.deleted_by (nullable)
}

// Role maps a UUID to a role name. The name "administrator" is special:
// the authorization guard grants it unconditional access.
type Role struct {
	ID        string    // roles.id
	Name      string    // roles.name (unique)
	CreatedAt time.Time // roles.created_at
	UpdatedAt time.Time // roles.updated_at
}

// Permission is a named capability. Names are colon-namespaced, e.g.
// "orders:read". Type "module" permissions drive client navigation and
// are not enforced server-side, but are stored alongside the rest.
type Permission struct {
	ID          string    // permissions.id
	Name        string    // permissions.name (unique)
	Description *string   // permissions.description (nullable)
	GroupName   *string   // permissions.group_name (nullable)
	Sort        *int      // permissions.sort (nullable)
	Type        *string   // permissions.type (nullable, e.g. "module")
	CreatedAt   time.Time // permissions.created_at
	UpdatedAt   time.Time // permissions.updated_at
}

// RolePermission joins roles and permissions many-to-many. Rows are
// soft-deletable; a row with DeletedAt set no longer grants anything.
type RolePermission struct {
	ID           string     // role_permissions.id
	RoleID       string     // role_permissions.role_id
	PermissionID string     // role_permissions.permission_id
	CreatedAt    time.Time  // role_permissions.created_at
	DeletedAt    *time.Time // role_permissions.deleted_at (nullable)
}

// RoleUser assigns a role to a user. The schema permits several rows per
// user but the application enforces at most one live assignment; the
// repository rejects inserting a second.
type RoleUser struct {
	ID        string    // role_users.id
	UserID    string    // role_users.user_id
	RoleID    string    // role_users.role_id
	RoleName  string    // joined from roles.name for lookups
	CreatedAt time.Time // role_users.created_at
}

// UserLog is one audit record in `user_logs`. Every authenticated
// operation writes one; a failed write fails the request.
type UserLog struct {
	ID        string    // user_logs.id
	UserID    string    // user_logs.user_id
	IP        string    // user_logs.ip
	Method    string    // user_logs.method
	AccessURL string    // user_logs.access_url
	UserAgent string    // user_logs.user_agent
	CreatedAt time.Time // user_logs.created_at
}
