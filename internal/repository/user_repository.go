package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/didi-project08/ecommerce-fullstack-tes/internal/model"
)

const userColumns = `id, fullname, username, email, password, hashed_rt,
	remaining_hits, default_hits, window_ms, last_hit_at,
	access_ttl_sec, refresh_ttl_sec, created_at, updated_at, deleted_at, deleted_by`

// UserRepo persists rows of the `users` table. Session state (the hashed
// refresh token) and rate-limit state live on the same row, so this
// repository is the single source of truth the auth service, the session
// guard and the rate limiter all serialize through.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// Create inserts a user with the given bcrypt password hash and per-user
// token lifetimes. Duplicate username/email surfaces as *DuplicateError.
func (r *UserRepo) Create(ctx context.Context, fullname, username, email, passwordHash string, accessTTLSec, refreshTTLSec int) (model.User, error) {
	u := model.User{
		ID:            uuid.NewString(),
		Fullname:      fullname,
		Username:      strings.TrimSpace(username),
		Email:         strings.ToLower(strings.TrimSpace(email)),
		Password:      passwordHash,
		AccessTTLSec:  accessTTLSec,
		RefreshTTLSec: refreshTTLSec,
		CreatedAt:     time.Now().UTC(),
	}
	u.UpdatedAt = u.CreatedAt
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO users (id, fullname, username, email, password, access_ttl_sec, refresh_ttl_sec, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?,?,?)`,
		u.ID, u.Fullname, u.Username, u.Email, u.Password, u.AccessTTLSec, u.RefreshTTLSec, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if dup := asDuplicate(err); dup != nil {
			return model.User{}, dup
		}
		return model.User{}, err
	}
	return u, nil
}

// GetByEmail fetches a user by normalized email, soft-deleted rows included.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.scanOne(r.DB.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email=? LIMIT 1`, email))
}

// GetByID fetches a user by id, soft-deleted rows included.
func (r *UserRepo) GetByID(ctx context.Context, id string) (model.User, error) {
	return r.scanOne(r.DB.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id=? LIMIT 1`, id))
}

// GetActiveByID fetches a user by id, treating soft-deleted rows as absent.
func (r *UserRepo) GetActiveByID(ctx context.Context, id string) (model.User, error) {
	return r.scanOne(r.DB.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id=? AND deleted_at IS NULL AND deleted_by IS NULL LIMIT 1`, id))
}

// UpdatePassword replaces the stored password hash.
func (r *UserRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE users SET password=?, updated_at=? WHERE id=?`,
		passwordHash, time.Now().UTC(), id)
	return err
}

// UpdateRefreshHash stores the hash of a freshly issued refresh token,
// overwriting whatever was there. Overwriting is what invalidates the
// previous refresh token under single-session mode.
func (r *UserRepo) UpdateRefreshHash(ctx context.Context, id, hash string) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE users SET hashed_rt=?, updated_at=? WHERE id=?`,
		hash, time.Now().UTC(), id)
	return err
}

// ClearRefreshHash ends the user's session. Only rows that actually hold
// a hash are touched.
func (r *UserRepo) ClearRefreshHash(ctx context.Context, id string) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE users SET hashed_rt=NULL, updated_at=? WHERE id=? AND hashed_rt IS NOT NULL`,
		time.Now().UTC(), id)
	return err
}

// CompareAndSwapRateState writes the next rate-limit state only if the row
// still carries the observed state. The NULL-safe <=> comparison covers
// the never-metered case. Returns false without error when a concurrent
// request won the write; callers re-read and retry.
func (r *UserRepo) CompareAndSwapRateState(ctx context.Context, id string, observed, next model.RateState) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE users SET remaining_hits=?, window_ms=COALESCE(?, window_ms), last_hit_at=?
		 WHERE id=? AND remaining_hits <=> ? AND last_hit_at <=> ?`,
		intPtr(next.RemainingHits), next.WindowMillis, next.LastHitAt,
		id, intPtr(observed.RemainingHits), observed.LastHitAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ForceRateState writes the rate-limit state unconditionally. Used as the
// liveness escape hatch after repeated compare-and-swap conflicts.
func (r *UserRepo) ForceRateState(ctx context.Context, id string, next model.RateState) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE users SET remaining_hits=?, window_ms=COALESCE(?, window_ms), last_hit_at=? WHERE id=?`,
		intPtr(next.RemainingHits), next.WindowMillis, next.LastHitAt, id)
	return err
}

func (r *UserRepo) scanOne(row *sql.Row) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Fullname, &u.Username, &u.Email, &u.Password, &u.HashedRT,
		&u.RemainingHits, &u.DefaultHits, &u.WindowMillis, &u.LastHitAt,
		&u.AccessTTLSec, &u.RefreshTTLSec, &u.CreatedAt, &u.UpdatedAt, &u.DeletedAt, &u.DeletedBy)
	return u, err
}

// intPtr converts *int to a driver-friendly value preserving NULL.
func intPtr(p *int) interface{} {
	if p == nil {
		return nil
	}
	return *p
}
