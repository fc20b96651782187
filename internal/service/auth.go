// Package service implements the auth orchestration layer: sign-up,
// sign-in, refresh with rotation, logout, forced auto-logout and password
// change, composed over the credential store, the token helpers and the
// session guard.
package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/didi-project08/ecommerce-fullstack-tes/internal/config"
	"github.com/didi-project08/ecommerce-fullstack-tes/internal/model"
	"github.com/didi-project08/ecommerce-fullstack-tes/internal/queue"
	"github.com/didi-project08/ecommerce-fullstack-tes/internal/repository"
	"github.com/didi-project08/ecommerce-fullstack-tes/internal/utils"
)

// Token lifetimes stamped onto new accounts. Each user's lifetimes are
// columns on their row and can be tuned individually afterwards.
const (
	defaultAccessTTLSec  = 3600
	defaultRefreshTTLSec = 7 * 24 * 3600
)

// UserStore is the slice of the credential store the service needs.
// *repository.UserRepo satisfies it; tests substitute in-memory fakes.
type UserStore interface {
	Create(ctx context.Context, fullname, username, email, passwordHash string, accessTTLSec, refreshTTLSec int) (model.User, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id string) (model.User, error)
	GetActiveByID(ctx context.Context, id string) (model.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	UpdateRefreshHash(ctx context.Context, id, hash string) error
	ClearRefreshHash(ctx context.Context, id string) error
}

// RoleStore resolves the role/permission graph for profile responses.
type RoleStore interface {
	RoleForUser(ctx context.Context, userID string) (model.RoleUser, error)
	PermissionsForRole(ctx context.Context, roleID string) ([]model.Permission, error)
}

// AuditStore records user_logs rows. Auditing is strict: a failed insert
// aborts the operation it belongs to.
type AuditStore interface {
	Insert(ctx context.Context, entry model.UserLog) error
}

// Publisher pushes best-effort auth events to the broker. May be nil.
type Publisher func(ctx context.Context, ev queue.AuthEvent) error

// Access carries the request metadata recorded with every audit row.
type Access struct {
	IP        string
	Method    string
	URL       string
	UserAgent string
}

type AuthService struct {
	cfg     config.Config
	rate    config.RateLimitConfig
	users   UserStore
	roles   RoleStore
	logs    AuditStore
	locks   *SessionLocks
	publish Publisher
}

func NewAuthService(cfg config.Config, rate config.RateLimitConfig, users UserStore, roles RoleStore, logs AuditStore, locks *SessionLocks, publish Publisher) *AuthService {
	if users == nil || roles == nil || logs == nil || locks == nil {
		panic("nil dependency passed to NewAuthService")
	}
	return &AuthService{cfg: cfg, rate: rate, users: users, roles: roles, logs: logs, locks: locks, publish: publish}
}

// ----- operations -----

type SignUpInput struct {
	Fullname string `json:"fullname"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SignUpResult struct {
	User model.User
	Pair utils.TokenPair
}

// SignUp creates the account, issues its first token pair and persists
// the refresh hash, so a fresh account immediately holds a session.
func (s *AuthService) SignUp(ctx context.Context, in SignUpInput, access Access) (*SignUpResult, error) {
	hash, err := utils.HashPassword(in.Password, s.cfg.BcryptCost)
	if err != nil {
		return nil, err
	}
	u, err := s.users.Create(ctx, in.Fullname, in.Username, in.Email, hash, defaultAccessTTLSec, defaultRefreshTTLSec)
	if err != nil {
		var dup *repository.DuplicateError
		if errors.As(err, &dup) {
			return nil, Duplicate(dup.Key, dup.Value)
		}
		return nil, err
	}
	pair, err := utils.IssueTokenPair(s.cfg.ATSecret, s.cfg.RTSecret, s.identityOf(u), u.AccessTTLSec, u.RefreshTTLSec)
	if err != nil {
		return nil, err
	}
	if err := s.audit(ctx, u.ID, access); err != nil {
		return nil, err
	}
	if err := s.storeRefreshHash(ctx, u.ID, pair.Refresh); err != nil {
		return nil, err
	}
	s.emit(ctx, queue.EventSignUp, u, access)
	return &SignUpResult{User: u, Pair: pair}, nil
}

type SignInResult struct {
	User model.User
	Pair utils.TokenPair
	Exp  int64
}

// SignIn verifies credentials and opens a session. Under single-session
// mode an account that already holds a refresh hash is rejected rather
// than silently displacing the existing session.
func (s *AuthService) SignIn(ctx context.Context, email, password string, access Access) (*SignInResult, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	unlock, err := s.locks.Lock(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// Re-read under the lock; a concurrent sign-in may have landed a hash
	// between the lookup and the lock.
	if u, err = s.users.GetByID(ctx, u.ID); err != nil {
		return nil, err
	}
	if !s.cfg.MultiLogin && u.HashedRT != nil {
		return nil, ErrSessionInUse
	}
	if !utils.VerifyPassword(u.Password, password) {
		return nil, ErrWrongPassword
	}

	pair, err := utils.IssueTokenPair(s.cfg.ATSecret, s.cfg.RTSecret, s.identityOf(u), u.AccessTTLSec, u.RefreshTTLSec)
	if err != nil {
		return nil, err
	}
	exp, err := utils.DecodeExpiry(pair.Access)
	if err != nil {
		return nil, err
	}
	if err := s.audit(ctx, u.ID, access); err != nil {
		return nil, err
	}
	if err := s.storeRefreshHash(ctx, u.ID, pair.Refresh); err != nil {
		return nil, err
	}
	s.emit(ctx, queue.EventSignIn, u, access)
	return &SignInResult{User: u, Pair: pair, Exp: exp}, nil
}

type ProfileRole struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Profile struct {
	ID          string       `json:"id"`
	Fullname    string       `json:"fullname"`
	Username    string       `json:"username"`
	Email       string       `json:"email"`
	HasSession  bool         `json:"hasSession"`
	Role        *ProfileRole `json:"role"`
	Permissions []string     `json:"permissions"`
}

// Me returns the caller's profile with their role and flattened
// permission names. Soft-deleted accounts yield (nil, nil).
func (s *AuthService) Me(ctx context.Context, userID string) (*Profile, error) {
	u, err := s.users.GetActiveByID(ctx, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	p := &Profile{
		ID:         u.ID,
		Fullname:   u.Fullname,
		Username:   u.Username,
		Email:      u.Email,
		HasSession: u.HashedRT != nil,
	}
	ru, err := s.roles.RoleForUser(ctx, u.ID)
	if err != nil {
		if err == sql.ErrNoRows {
			return p, nil
		}
		return nil, err
	}
	p.Role = &ProfileRole{ID: ru.RoleID, Name: ru.RoleName}
	perms, err := s.roles.PermissionsForRole(ctx, ru.RoleID)
	if err != nil {
		return nil, err
	}
	for _, perm := range perms {
		p.Permissions = append(p.Permissions, perm.Name)
	}
	return p, nil
}

// PasswordChange is a domain outcome, not an error: the two mismatch
// cases are ordinary 400 responses the client is expected to render.
type PasswordChange struct {
	StatusCode int
	Message    string
	User       *model.User
}

func (s *AuthService) ChangePassword(ctx context.Context, userID, oldPw, newPw, confirmPw string, access Access) (*PasswordChange, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil || u.Password == "" {
		return nil, &Error{Status: 400, Code: "user_not_found", Message: "oops, user not found"}
	}
	if !utils.VerifyPassword(u.Password, oldPw) {
		return &PasswordChange{StatusCode: 400, Message: "oopps, password old doesn't match"}, nil
	}
	if newPw != confirmPw {
		return &PasswordChange{StatusCode: 400, Message: "oopps, password new and password confirm doesn't match"}, nil
	}
	hash, err := utils.HashPassword(newPw, s.cfg.BcryptCost)
	if err != nil {
		return nil, err
	}
	if err := s.users.UpdatePassword(ctx, u.ID, hash); err != nil {
		return nil, err
	}
	if err := s.audit(ctx, u.ID, access); err != nil {
		return nil, err
	}
	s.emit(ctx, queue.EventPasswordChange, u, access)
	return &PasswordChange{StatusCode: 200, Message: "change password successfully.", User: &u}, nil
}

// Logout ends the session. Under single-session mode the presented
// refresh token must still match the stored hash, which flags stolen or
// stale tokens; the hash is cleared unconditionally afterwards.
func (s *AuthService) Logout(ctx context.Context, userID, refreshToken string, access Access) error {
	unlock, err := s.locks.Lock(ctx, userID)
	if err != nil {
		return err
	}
	defer unlock()

	var u model.User
	if !s.cfg.MultiLogin {
		if u, err = s.validateActiveSession(ctx, userID, refreshToken); err != nil {
			return err
		}
	} else if u, err = s.users.GetByID(ctx, userID); err != nil {
		return ErrNoSession
	}
	if err := s.users.ClearRefreshHash(ctx, userID); err != nil {
		return err
	}
	if err := s.audit(ctx, userID, access); err != nil {
		return err
	}
	s.emit(ctx, queue.EventLogout, u, access)
	return nil
}

type RefreshResult struct {
	AutoLogout    bool
	TouchActivity bool // handler restarts the activity cookie window
	User          model.User
	Pair          utils.TokenPair
	Exp           int64
}

// RefreshTokens rotates the session: a new pair is issued and its refresh
// hash overwrites the stored one, so the token just presented (and any
// older one) stops validating. Before rotating, a timing check forces a
// logout of sessions that went idle: when the budget embedded in the
// token still equals the stored budget (no metered activity since
// issuance) and the activity cookie is older than the user's refresh
// lifetime, the session is closed instead of renewed.
//
// tokenHits is the remainingHits claim of the presented refresh token;
// lastActivity is the exp_limit cookie value in unix milliseconds,
// hasActivity false when the cookie is absent.
func (s *AuthService) RefreshTokens(ctx context.Context, userID, refreshToken string, tokenHits int, lastActivity int64, hasActivity bool, access Access) (*RefreshResult, error) {
	unlock, err := s.locks.Lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var u model.User
	if !s.cfg.MultiLogin {
		if u, err = s.validateActiveSession(ctx, userID, refreshToken); err != nil {
			return nil, err
		}
	} else {
		if u, err = s.users.GetByID(ctx, userID); err != nil || u.HashedRT == nil {
			return nil, ErrNoSession
		}
	}

	res := &RefreshResult{User: u}
	if u.RemainingHits != nil && *u.RemainingHits == tokenHits {
		idle := time.Now().UnixMilli() - lastActivity
		if hasActivity && idle >= int64(u.RefreshTTLSec) {
			if err := s.users.ClearRefreshHash(ctx, userID); err != nil {
				return nil, err
			}
			if err := s.audit(ctx, userID, access); err != nil {
				return nil, err
			}
			s.emit(ctx, queue.EventAutoLogout, u, access)
			res.AutoLogout = true
			return res, nil
		}
	} else {
		res.TouchActivity = true
	}

	pair, err := utils.IssueTokenPair(s.cfg.ATSecret, s.cfg.RTSecret, s.identityOf(u), u.AccessTTLSec, u.RefreshTTLSec)
	if err != nil {
		return nil, err
	}
	exp, err := utils.DecodeExpiry(pair.Access)
	if err != nil {
		return nil, err
	}
	if err := s.storeRefreshHash(ctx, u.ID, pair.Refresh); err != nil {
		return nil, err
	}
	s.emit(ctx, queue.EventRefresh, u, access)
	res.Pair = pair
	res.Exp = exp
	return res, nil
}

// ----- session guard -----

// validateActiveSession is the single-login enforcement point: the user
// must hold a stored hash and the presented refresh token must match it.
// A token rotated away by another device fails the second check.
func (s *AuthService) validateActiveSession(ctx context.Context, userID, refreshToken string) (model.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil || u.HashedRT == nil {
		return model.User{}, ErrNoSession
	}
	if !utils.VerifyRefresh(*u.HashedRT, refreshToken) {
		return model.User{}, ErrSessionInUse
	}
	return u, nil
}

// ----- helpers -----

// identityOf resolves the claim set for a user, applying the configured
// fallbacks for accounts that were never metered.
func (s *AuthService) identityOf(u model.User) utils.Identity {
	remaining := s.rate.FallbackHits
	if u.RemainingHits != nil {
		remaining = *u.RemainingHits
	}
	window := s.rate.WindowMillis
	if u.WindowMillis != nil {
		window = *u.WindowMillis
	}
	return utils.Identity{
		ID:            u.ID,
		Fullname:      u.Fullname,
		Username:      u.Username,
		Email:         u.Email,
		RemainingHits: remaining,
		WindowMillis:  window,
	}
}

func (s *AuthService) storeRefreshHash(ctx context.Context, userID, refreshToken string) error {
	hash, err := utils.HashRefresh(refreshToken)
	if err != nil {
		return err
	}
	return s.users.UpdateRefreshHash(ctx, userID, hash)
}

func (s *AuthService) audit(ctx context.Context, userID string, access Access) error {
	err := s.logs.Insert(ctx, model.UserLog{
		UserID:    userID,
		IP:        access.IP,
		Method:    access.Method,
		AccessURL: access.URL,
		UserAgent: access.UserAgent,
	})
	if err != nil {
		return ErrAuditFailed
	}
	return nil
}

func (s *AuthService) emit(ctx context.Context, event string, u model.User, access Access) {
	if s.publish == nil {
		return
	}
	// Best effort: the publisher logs its own failures.
	_ = s.publish(ctx, queue.AuthEvent{
		Event:      event,
		UserID:     u.ID,
		Username:   u.Username,
		Email:      u.Email,
		IP:         access.IP,
		Method:     access.Method,
		AccessURL:  access.URL,
		UserAgent:  access.UserAgent,
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	})
}
