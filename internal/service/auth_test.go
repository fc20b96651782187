package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/didi-project08/ecommerce-fullstack-tes/internal/config"
	"github.com/didi-project08/ecommerce-fullstack-tes/internal/model"
	"github.com/didi-project08/ecommerce-fullstack-tes/internal/queue"
	"github.com/didi-project08/ecommerce-fullstack-tes/internal/repository"
)

const (
	testATSecret = "access-secret-for-tests-0123456789"
	testRTSecret = "refresh-secret-for-tests-987654321"
)

var testAccess = Access{IP: "127.0.0.1", Method: "POST", URL: "/auth/test", UserAgent: "go-test"}

// fakeUsers is an in-memory UserStore.
type fakeUsers struct {
	byID map[string]*model.User
}

func newFakeUsers() *fakeUsers { return &fakeUsers{byID: map[string]*model.User{}} }

func (f *fakeUsers) Create(ctx context.Context, fullname, username, email, passwordHash string, accessTTLSec, refreshTTLSec int) (model.User, error) {
	for _, u := range f.byID {
		if u.Email == email {
			return model.User{}, &repository.DuplicateError{Key: "email", Value: email}
		}
		if u.Username == username {
			return model.User{}, &repository.DuplicateError{Key: "username", Value: username}
		}
	}
	now := time.Now().UTC()
	u := model.User{
		ID: uuid.NewString(), Fullname: fullname, Username: username, Email: email,
		Password: passwordHash, AccessTTLSec: accessTTLSec, RefreshTTLSec: refreshTTLSec,
		CreatedAt: now, UpdatedAt: now,
	}
	f.byID[u.ID] = &u
	return u, nil
}

func (f *fakeUsers) GetByEmail(ctx context.Context, email string) (model.User, error) {
	for _, u := range f.byID {
		if u.Email == email {
			return *u, nil
		}
	}
	return model.User{}, sql.ErrNoRows
}

func (f *fakeUsers) GetByID(ctx context.Context, id string) (model.User, error) {
	if u, ok := f.byID[id]; ok {
		return *u, nil
	}
	return model.User{}, sql.ErrNoRows
}

func (f *fakeUsers) GetActiveByID(ctx context.Context, id string) (model.User, error) {
	u, ok := f.byID[id]
	if !ok || u.DeletedAt != nil {
		return model.User{}, sql.ErrNoRows
	}
	return *u, nil
}

func (f *fakeUsers) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	u, ok := f.byID[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.Password = passwordHash
	return nil
}

func (f *fakeUsers) UpdateRefreshHash(ctx context.Context, id, hash string) error {
	u, ok := f.byID[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.HashedRT = &hash
	return nil
}

func (f *fakeUsers) ClearRefreshHash(ctx context.Context, id string) error {
	u, ok := f.byID[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.HashedRT = nil
	return nil
}

// fakeRoleStore resolves a single role for every user.
type fakeRoleStore struct {
	role  *model.RoleUser
	perms []model.Permission
}

func (f *fakeRoleStore) RoleForUser(ctx context.Context, userID string) (model.RoleUser, error) {
	if f.role == nil {
		return model.RoleUser{}, sql.ErrNoRows
	}
	return *f.role, nil
}

func (f *fakeRoleStore) PermissionsForRole(ctx context.Context, roleID string) ([]model.Permission, error) {
	return f.perms, nil
}

// fakeAudit records entries and can be told to fail.
type fakeAudit struct {
	entries []model.UserLog
	fail    bool
}

func (f *fakeAudit) Insert(ctx context.Context, entry model.UserLog) error {
	if f.fail {
		return errors.New("insert failed")
	}
	f.entries = append(f.entries, entry)
	return nil
}

type testEnv struct {
	svc    *AuthService
	users  *fakeUsers
	roles  *fakeRoleStore
	audit  *fakeAudit
	events []queue.AuthEvent
}

func newTestEnv(t *testing.T, multiLogin bool) *testEnv {
	t.Helper()
	env := &testEnv{users: newFakeUsers(), roles: &fakeRoleStore{}, audit: &fakeAudit{}}
	cfg := config.Config{
		ATSecret: testATSecret, RTSecret: testRTSecret,
		MultiLogin: multiLogin, BcryptCost: 4,
	}
	rate := config.RateLimitConfig{WindowMillis: 60000, DefaultHits: 100, FallbackHits: 100}
	env.svc = NewAuthService(cfg, rate, env.users, env.roles, env.audit, NewSessionLocks(nil),
		func(ctx context.Context, ev queue.AuthEvent) error {
			env.events = append(env.events, ev)
			return nil
		})
	return env
}

func signUpUser(t *testing.T, env *testEnv) *SignUpResult {
	t.Helper()
	res, err := env.svc.SignUp(context.Background(), SignUpInput{
		Fullname: "Dana Tester", Username: "dana", Email: "dana@example.com", Password: "s3cret-pw",
	}, testAccess)
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	return res
}

func TestSignUpOpensSession(t *testing.T) {
	env := newTestEnv(t, false)
	res := signUpUser(t, env)

	if res.User.Email != "dana@example.com" {
		t.Errorf("email = %q", res.User.Email)
	}
	if res.Pair.Access == "" || res.Pair.Refresh == "" {
		t.Fatal("expected a signed token pair")
	}
	stored := env.users.byID[res.User.ID]
	if stored.HashedRT == nil {
		t.Fatal("signup must persist the refresh hash")
	}
	if stored.Password == "s3cret-pw" {
		t.Error("password stored in plain text")
	}
	if len(env.audit.entries) != 1 {
		t.Errorf("audit entries = %d, want 1", len(env.audit.entries))
	}
	if len(env.events) != 1 || env.events[0].Event != queue.EventSignUp {
		t.Errorf("events = %+v, want one signup event", env.events)
	}
}

func TestSignUpDuplicateEmail(t *testing.T) {
	env := newTestEnv(t, false)
	signUpUser(t, env)

	_, err := env.svc.SignUp(context.Background(), SignUpInput{
		Fullname: "Other", Username: "other", Email: "dana@example.com", Password: "pw",
	}, testAccess)
	var ae *Error
	if !errors.As(err, &ae) || ae.Code != "duplicate" {
		t.Fatalf("err = %v, want duplicate", err)
	}
}

func TestSignInUnknownEmail(t *testing.T) {
	env := newTestEnv(t, false)
	_, err := env.svc.SignIn(context.Background(), "nobody@example.com", "pw", testAccess)
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("err = %v, want ErrUserNotFound", err)
	}
}

func TestSignInWrongPassword(t *testing.T) {
	env := newTestEnv(t, false)
	res := signUpUser(t, env)
	// Free the session so the password check is reached.
	if err := env.users.ClearRefreshHash(context.Background(), res.User.ID); err != nil {
		t.Fatal(err)
	}
	_, err := env.svc.SignIn(context.Background(), "dana@example.com", "wrong", testAccess)
	if !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("err = %v, want ErrWrongPassword", err)
	}
}

func TestSignInSingleSessionRejectsSecondDevice(t *testing.T) {
	env := newTestEnv(t, false)
	signUpUser(t, env) // signup already holds a session

	_, err := env.svc.SignIn(context.Background(), "dana@example.com", "s3cret-pw", testAccess)
	if !errors.Is(err, ErrSessionInUse) {
		t.Fatalf("err = %v, want ErrSessionInUse", err)
	}
}

func TestSignInMultiLoginAllowsSecondDevice(t *testing.T) {
	env := newTestEnv(t, true)
	signUpUser(t, env)

	res, err := env.svc.SignIn(context.Background(), "dana@example.com", "s3cret-pw", testAccess)
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if res.Exp <= time.Now().Unix() {
		t.Errorf("exp %d not in the future", res.Exp)
	}
}

func TestLogoutThenSignInSucceeds(t *testing.T) {
	env := newTestEnv(t, false)
	res := signUpUser(t, env)

	if err := env.svc.Logout(context.Background(), res.User.ID, res.Pair.Refresh, testAccess); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if env.users.byID[res.User.ID].HashedRT != nil {
		t.Fatal("logout must clear the refresh hash")
	}
	if _, err := env.svc.SignIn(context.Background(), "dana@example.com", "s3cret-pw", testAccess); err != nil {
		t.Fatalf("SignIn after logout: %v", err)
	}
}

func TestLogoutWithForeignTokenRejected(t *testing.T) {
	env := newTestEnv(t, false)
	res := signUpUser(t, env)

	err := env.svc.Logout(context.Background(), res.User.ID, "some-other-token", testAccess)
	if !errors.Is(err, ErrSessionInUse) {
		t.Fatalf("err = %v, want ErrSessionInUse", err)
	}
	if env.users.byID[res.User.ID].HashedRT == nil {
		t.Error("a rejected logout must not clear the session")
	}
}

func TestLogoutWithoutSession(t *testing.T) {
	env := newTestEnv(t, false)
	res := signUpUser(t, env)
	_ = env.users.ClearRefreshHash(context.Background(), res.User.ID)

	err := env.svc.Logout(context.Background(), res.User.ID, res.Pair.Refresh, testAccess)
	if !errors.Is(err, ErrNoSession) {
		t.Fatalf("err = %v, want ErrNoSession", err)
	}
}

func TestRefreshRotatesSession(t *testing.T) {
	env := newTestEnv(t, false)
	res := signUpUser(t, env)

	rr, err := env.svc.RefreshTokens(context.Background(), res.User.ID, res.Pair.Refresh,
		100, 0, false, testAccess)
	if err != nil {
		t.Fatalf("RefreshTokens: %v", err)
	}
	if rr.AutoLogout {
		t.Fatal("unexpected auto-logout")
	}
	if rr.Pair.Refresh == res.Pair.Refresh {
		t.Fatal("refresh token was not rotated")
	}

	// The rotated-away token no longer validates.
	_, err = env.svc.RefreshTokens(context.Background(), res.User.ID, res.Pair.Refresh,
		100, 0, false, testAccess)
	if !errors.Is(err, ErrSessionInUse) {
		t.Fatalf("stale token: err = %v, want ErrSessionInUse", err)
	}

	// The fresh one does.
	if _, err := env.svc.RefreshTokens(context.Background(), res.User.ID, rr.Pair.Refresh,
		100, 0, false, testAccess); err != nil {
		t.Fatalf("fresh token: %v", err)
	}
}

func TestRefreshIdleSessionAutoLogout(t *testing.T) {
	env := newTestEnv(t, false)
	res := signUpUser(t, env)

	u := env.users.byID[res.User.ID]
	hits := 100
	u.RemainingHits = &hits
	u.RefreshTTLSec = 5

	// Token budget equals stored budget (no metered activity since
	// issuance) and the activity stamp is old: the session is closed.
	lastActivity := time.Now().Add(-10 * time.Second).UnixMilli()
	rr, err := env.svc.RefreshTokens(context.Background(), res.User.ID, res.Pair.Refresh,
		hits, lastActivity, true, testAccess)
	if err != nil {
		t.Fatalf("RefreshTokens: %v", err)
	}
	if !rr.AutoLogout {
		t.Fatal("expected auto-logout")
	}
	if u.HashedRT != nil {
		t.Error("auto-logout must clear the refresh hash")
	}
	last := env.events[len(env.events)-1]
	if last.Event != queue.EventAutoLogout {
		t.Errorf("last event = %q, want %q", last.Event, queue.EventAutoLogout)
	}
}

func TestRefreshActiveUserTouchesActivity(t *testing.T) {
	env := newTestEnv(t, false)
	res := signUpUser(t, env)

	u := env.users.byID[res.User.ID]
	hits := 42
	u.RemainingHits = &hits

	// Stored budget differs from the token's: the limiter has metered
	// requests since issuance, so the activity window restarts.
	rr, err := env.svc.RefreshTokens(context.Background(), res.User.ID, res.Pair.Refresh,
		100, 0, false, testAccess)
	if err != nil {
		t.Fatalf("RefreshTokens: %v", err)
	}
	if rr.AutoLogout || !rr.TouchActivity {
		t.Fatalf("got autoLogout=%t touchActivity=%t, want rotation with touch", rr.AutoLogout, rr.TouchActivity)
	}
}

func TestChangePasswordOldMismatch(t *testing.T) {
	env := newTestEnv(t, false)
	res := signUpUser(t, env)

	pc, err := env.svc.ChangePassword(context.Background(), res.User.ID,
		"wrong-old", "new-pw", "new-pw", testAccess)
	if err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if pc.StatusCode != 400 || pc.Message != "oopps, password old doesn't match" {
		t.Fatalf("got %d %q", pc.StatusCode, pc.Message)
	}
	// Old password must still work.
	_ = env.users.ClearRefreshHash(context.Background(), res.User.ID)
	if _, err := env.svc.SignIn(context.Background(), "dana@example.com", "s3cret-pw", testAccess); err != nil {
		t.Fatalf("SignIn with old password: %v", err)
	}
}

func TestChangePasswordConfirmMismatch(t *testing.T) {
	env := newTestEnv(t, false)
	res := signUpUser(t, env)

	pc, err := env.svc.ChangePassword(context.Background(), res.User.ID,
		"s3cret-pw", "new-pw", "other-pw", testAccess)
	if err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if pc.StatusCode != 400 || pc.Message != "oopps, password new and password confirm doesn't match" {
		t.Fatalf("got %d %q", pc.StatusCode, pc.Message)
	}
}

func TestChangePasswordSuccess(t *testing.T) {
	env := newTestEnv(t, false)
	res := signUpUser(t, env)
	_ = env.users.ClearRefreshHash(context.Background(), res.User.ID)

	pc, err := env.svc.ChangePassword(context.Background(), res.User.ID,
		"s3cret-pw", "new-pw", "new-pw", testAccess)
	if err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if pc.StatusCode != 200 || pc.User == nil {
		t.Fatalf("got %d user=%v", pc.StatusCode, pc.User)
	}
	if _, err := env.svc.SignIn(context.Background(), "dana@example.com", "new-pw", testAccess); err != nil {
		t.Fatalf("SignIn with new password: %v", err)
	}
	_, err = env.svc.SignIn(context.Background(), "dana@example.com", "s3cret-pw", testAccess)
	if err == nil {
		t.Fatal("old password still accepted")
	}
}

func TestMeIncludesRoleAndPermissions(t *testing.T) {
	env := newTestEnv(t, false)
	res := signUpUser(t, env)
	env.roles.role = &model.RoleUser{RoleID: "r1", RoleName: "member", UserID: res.User.ID}
	env.roles.perms = []model.Permission{{Name: "user:me"}, {Name: "user:logout"}}

	p, err := env.svc.Me(context.Background(), res.User.ID)
	if err != nil {
		t.Fatalf("Me: %v", err)
	}
	if p == nil || p.Role == nil || p.Role.Name != "member" {
		t.Fatalf("profile = %+v", p)
	}
	if len(p.Permissions) != 2 || p.Permissions[0] != "user:me" {
		t.Errorf("permissions = %v", p.Permissions)
	}
	if !p.HasSession {
		t.Error("hasSession = false right after signup")
	}
}

func TestMeSoftDeletedUserIsNull(t *testing.T) {
	env := newTestEnv(t, false)
	res := signUpUser(t, env)
	now := time.Now().UTC()
	env.users.byID[res.User.ID].DeletedAt = &now

	p, err := env.svc.Me(context.Background(), res.User.ID)
	if err != nil {
		t.Fatalf("Me: %v", err)
	}
	if p != nil {
		t.Fatalf("profile = %+v, want nil for soft-deleted account", p)
	}
}

func TestAuditFailureAbortsSignIn(t *testing.T) {
	env := newTestEnv(t, true)
	signUpUser(t, env)
	env.audit.fail = true

	_, err := env.svc.SignIn(context.Background(), "dana@example.com", "s3cret-pw", testAccess)
	if !errors.Is(err, ErrAuditFailed) {
		t.Fatalf("err = %v, want ErrAuditFailed", err)
	}
}
