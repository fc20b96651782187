package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/didi-project08/ecommerce-fullstack-tes/internal/model"
)

// RoleRepo persists the role/permission graph: `roles`, `permissions`,
// `role_permissions` and `role_users`. The authorization guard re-reads
// this graph on every request so edits take effect immediately; nothing
// here is cached.
type RoleRepo struct{ DB *sql.DB }

func NewRoleRepo(db *sql.DB) *RoleRepo { return &RoleRepo{DB: db} }

// RoleForUser returns the user's role assignment, oldest row first when
// the schema holds several. sql.ErrNoRows when the user has no role.
func (r *RoleRepo) RoleForUser(ctx context.Context, userID string) (model.RoleUser, error) {
	var ru model.RoleUser
	err := r.DB.QueryRowContext(ctx,
		`SELECT ru.id, ru.user_id, ru.role_id, r.name, ru.created_at
		 FROM role_users ru JOIN roles r ON r.id = ru.role_id
		 WHERE ru.user_id=? ORDER BY ru.created_at ASC LIMIT 1`,
		userID).Scan(&ru.ID, &ru.UserID, &ru.RoleID, &ru.RoleName, &ru.CreatedAt)
	return ru, err
}

// AllRoleNames lists every known role name.
func (r *RoleRepo) AllRoleNames(ctx context.Context) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT name FROM roles`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// PermissionsForRole returns the permissions granted to a role through
// live (non-deleted) role_permissions rows.
func (r *RoleRepo) PermissionsForRole(ctx context.Context, roleID string) ([]model.Permission, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT p.id, p.name, p.description, p.group_name, p.sort, p.type, p.created_at, p.updated_at
		 FROM role_permissions rp JOIN permissions p ON p.id = rp.permission_id
		 WHERE rp.role_id=? AND rp.deleted_at IS NULL`,
		roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []model.Permission
	for rows.Next() {
		var p model.Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.GroupName, &p.Sort, &p.Type, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// CreateRole inserts a role. Duplicate names surface as *DuplicateError.
func (r *RoleRepo) CreateRole(ctx context.Context, name string) (model.Role, error) {
	role := model.Role{ID: uuid.NewString(), Name: name, CreatedAt: time.Now().UTC()}
	role.UpdatedAt = role.CreatedAt
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO roles (id, name, created_at, updated_at) VALUES (?,?,?,?)`,
		role.ID, role.Name, role.CreatedAt, role.UpdatedAt)
	if err != nil {
		if dup := asDuplicate(err); dup != nil {
			return model.Role{}, dup
		}
		return model.Role{}, err
	}
	return role, nil
}

// ListRoles returns all roles ordered by name.
func (r *RoleRepo) ListRoles(ctx context.Context) ([]model.Role, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, name, created_at, updated_at FROM roles ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []model.Role
	for rows.Next() {
		var role model.Role
		if err := rows.Scan(&role.ID, &role.Name, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// CreatePermission inserts a permission with its optional descriptive fields.
func (r *RoleRepo) CreatePermission(ctx context.Context, name string, description, group, ptype *string, sort *int) (model.Permission, error) {
	p := model.Permission{
		ID: uuid.NewString(), Name: name,
		Description: description, GroupName: group, Type: ptype, Sort: sort,
		CreatedAt: time.Now().UTC(),
	}
	p.UpdatedAt = p.CreatedAt
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO permissions (id, name, description, group_name, sort, type, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?,?)`,
		p.ID, p.Name, p.Description, p.GroupName, p.Sort, p.Type, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if dup := asDuplicate(err); dup != nil {
			return model.Permission{}, dup
		}
		return model.Permission{}, err
	}
	return p, nil
}

// ListPermissions returns all permissions ordered by sort then name.
func (r *RoleRepo) ListPermissions(ctx context.Context) ([]model.Permission, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, name, description, group_name, sort, type, created_at, updated_at
		 FROM permissions ORDER BY sort IS NULL, sort ASC, name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []model.Permission
	for rows.Next() {
		var p model.Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.GroupName, &p.Sort, &p.Type, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// AssignRole gives a user a role. A user may hold one role at a time;
// if a live assignment exists the call fails with ErrRoleAssigned and the
// caller must remove the existing assignment first.
func (r *RoleRepo) AssignRole(ctx context.Context, userID, roleID string) (model.RoleUser, error) {
	var existing string
	err := r.DB.QueryRowContext(ctx,
		`SELECT id FROM role_users WHERE user_id=? LIMIT 1`, userID).Scan(&existing)
	switch {
	case err == nil:
		return model.RoleUser{}, ErrRoleAssigned
	case err != sql.ErrNoRows:
		return model.RoleUser{}, err
	}
	ru := model.RoleUser{ID: uuid.NewString(), UserID: userID, RoleID: roleID, CreatedAt: time.Now().UTC()}
	_, err = r.DB.ExecContext(ctx,
		`INSERT INTO role_users (id, user_id, role_id, created_at) VALUES (?,?,?,?)`,
		ru.ID, ru.UserID, ru.RoleID, ru.CreatedAt)
	if err != nil {
		return model.RoleUser{}, err
	}
	return ru, nil
}

// UnassignRole removes a user's role assignment, freeing the slot for a
// new AssignRole call.
func (r *RoleRepo) UnassignRole(ctx context.Context, userID string) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM role_users WHERE user_id=?`, userID)
	return err
}

// GrantPermission links a permission to a role. A previously revoked
// (soft-deleted) link is revived instead of duplicated.
func (r *RoleRepo) GrantPermission(ctx context.Context, roleID, permissionID string) (model.RolePermission, error) {
	var rp model.RolePermission
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, role_id, permission_id, created_at, deleted_at
		 FROM role_permissions WHERE role_id=? AND permission_id=? LIMIT 1`,
		roleID, permissionID).Scan(&rp.ID, &rp.RoleID, &rp.PermissionID, &rp.CreatedAt, &rp.DeletedAt)
	switch {
	case err == sql.ErrNoRows:
		rp = model.RolePermission{ID: uuid.NewString(), RoleID: roleID, PermissionID: permissionID, CreatedAt: time.Now().UTC()}
		_, err = r.DB.ExecContext(ctx,
			`INSERT INTO role_permissions (id, role_id, permission_id, created_at) VALUES (?,?,?,?)`,
			rp.ID, rp.RoleID, rp.PermissionID, rp.CreatedAt)
		return rp, err
	case err != nil:
		return model.RolePermission{}, err
	}
	if rp.DeletedAt != nil {
		if _, err := r.DB.ExecContext(ctx,
			`UPDATE role_permissions SET deleted_at=NULL WHERE id=?`, rp.ID); err != nil {
			return model.RolePermission{}, err
		}
		rp.DeletedAt = nil
	}
	return rp, nil
}

// RevokePermission soft-deletes the role→permission link.
func (r *RoleRepo) RevokePermission(ctx context.Context, roleID, permissionID string) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE role_permissions SET deleted_at=? WHERE role_id=? AND permission_id=? AND deleted_at IS NULL`,
		time.Now().UTC(), roleID, permissionID)
	return err
}
