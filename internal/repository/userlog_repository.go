package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/didi-project08/ecommerce-fullstack-tes/internal/model"
)

// UserLogRepo appends audit rows to `user_logs`. The auth service treats
// a failed insert as a request failure: if access cannot be recorded, the
// operation does not proceed.
type UserLogRepo struct{ DB *sql.DB }

func NewUserLogRepo(db *sql.DB) *UserLogRepo { return &UserLogRepo{DB: db} }

// Insert writes one audit record, filling id and created_at.
func (r *UserLogRepo) Insert(ctx context.Context, entry model.UserLog) error {
	entry.ID = uuid.NewString()
	entry.CreatedAt = time.Now().UTC()
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO user_logs (id, user_id, ip, method, access_url, user_agent, created_at)
		 VALUES (?,?,?,?,?,?,?)`,
		entry.ID, entry.UserID, entry.IP, entry.Method, entry.AccessURL, entry.UserAgent, entry.CreatedAt)
	return err
}
