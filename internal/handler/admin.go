package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/didi-project08/ecommerce-fullstack-tes/internal/model"
	"github.com/didi-project08/ecommerce-fullstack-tes/internal/repository"
	"github.com/didi-project08/ecommerce-fullstack-tes/internal/service"
)

// RoleAdminStore is the slice of the role repository the admin endpoints
// use. *repository.RoleRepo satisfies it.
type RoleAdminStore interface {
	CreateRole(ctx context.Context, name string) (model.Role, error)
	ListRoles(ctx context.Context) ([]model.Role, error)
	CreatePermission(ctx context.Context, name string, description, group, ptype *string, sort *int) (model.Permission, error)
	ListPermissions(ctx context.Context) ([]model.Permission, error)
	AssignRole(ctx context.Context, userID, roleID string) (model.RoleUser, error)
	UnassignRole(ctx context.Context, userID string) error
	GrantPermission(ctx context.Context, roleID, permissionID string) (model.RolePermission, error)
	RevokePermission(ctx context.Context, roleID, permissionID string) error
}

// AdminHandler manages roles, permissions and their links. Changes take
// effect on the next request; the permission guard holds no cache.
type AdminHandler struct {
	Store RoleAdminStore
}

func NewAdminHandler(store RoleAdminStore) *AdminHandler { return &AdminHandler{Store: store} }

type createRoleRequest struct {
	Name string `json:"name"`
}

type createPermissionRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	GroupName   *string `json:"groupName"`
	Sort        *int    `json:"sort"`
	Type        *string `json:"type"`
}

type roleUserRequest struct {
	UserID string `json:"userId"`
	RoleID string `json:"roleId"`
}

type rolePermissionRequest struct {
	RoleID       string `json:"roleId"`
	PermissionID string `json:"permissionId"`
}

func (h *AdminHandler) CreateRole(c echo.Context) error {
	var in createRoleRequest
	if err := c.Bind(&in); err != nil || in.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"statusCode": http.StatusBadRequest, "message": "name is required"})
	}
	role, err := h.Store.CreateRole(c.Request().Context(), in.Name)
	if err != nil {
		return adminError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"statusCode": http.StatusCreated, "data": roleBody(role)})
}

func (h *AdminHandler) ListRoles(c echo.Context) error {
	roles, err := h.Store.ListRoles(c.Request().Context())
	if err != nil {
		return adminError(c, err)
	}
	out := make([]echo.Map, 0, len(roles))
	for _, r := range roles {
		out = append(out, roleBody(r))
	}
	return c.JSON(http.StatusOK, echo.Map{"statusCode": http.StatusOK, "data": out})
}

func (h *AdminHandler) CreatePermission(c echo.Context) error {
	var in createPermissionRequest
	if err := c.Bind(&in); err != nil || in.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"statusCode": http.StatusBadRequest, "message": "name is required"})
	}
	p, err := h.Store.CreatePermission(c.Request().Context(), in.Name, in.Description, in.GroupName, in.Type, in.Sort)
	if err != nil {
		return adminError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"statusCode": http.StatusCreated, "data": permissionBody(p)})
}

func (h *AdminHandler) ListPermissions(c echo.Context) error {
	perms, err := h.Store.ListPermissions(c.Request().Context())
	if err != nil {
		return adminError(c, err)
	}
	out := make([]echo.Map, 0, len(perms))
	for _, p := range perms {
		out = append(out, permissionBody(p))
	}
	return c.JSON(http.StatusOK, echo.Map{"statusCode": http.StatusOK, "data": out})
}

// AssignRole gives a user their role. One live assignment per user; a
// second assign answers 400 until the first is removed.
func (h *AdminHandler) AssignRole(c echo.Context) error {
	var in roleUserRequest
	if err := c.Bind(&in); err != nil || in.UserID == "" || in.RoleID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"statusCode": http.StatusBadRequest, "message": "userId and roleId are required"})
	}
	ru, err := h.Store.AssignRole(c.Request().Context(), in.UserID, in.RoleID)
	if err != nil {
		return adminError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"statusCode": http.StatusCreated,
		"data": echo.Map{
			"id": ru.ID, "userId": ru.UserID, "roleId": ru.RoleID, "createdAt": ru.CreatedAt,
		}})
}

func (h *AdminHandler) UnassignRole(c echo.Context) error {
	var in roleUserRequest
	if err := c.Bind(&in); err != nil || in.UserID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"statusCode": http.StatusBadRequest, "message": "userId is required"})
	}
	if err := h.Store.UnassignRole(c.Request().Context(), in.UserID); err != nil {
		return adminError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"statusCode": http.StatusOK, "message": "role unassigned."})
}

func (h *AdminHandler) GrantPermission(c echo.Context) error {
	var in rolePermissionRequest
	if err := c.Bind(&in); err != nil || in.RoleID == "" || in.PermissionID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"statusCode": http.StatusBadRequest, "message": "roleId and permissionId are required"})
	}
	rp, err := h.Store.GrantPermission(c.Request().Context(), in.RoleID, in.PermissionID)
	if err != nil {
		return adminError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"statusCode": http.StatusCreated,
		"data": echo.Map{
			"id": rp.ID, "roleId": rp.RoleID, "permissionId": rp.PermissionID, "createdAt": rp.CreatedAt,
		}})
}

func (h *AdminHandler) RevokePermission(c echo.Context) error {
	var in rolePermissionRequest
	if err := c.Bind(&in); err != nil || in.RoleID == "" || in.PermissionID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"statusCode": http.StatusBadRequest, "message": "roleId and permissionId are required"})
	}
	if err := h.Store.RevokePermission(c.Request().Context(), in.RoleID, in.PermissionID); err != nil {
		return adminError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"statusCode": http.StatusOK, "message": "permission revoked."})
}

// adminError maps repository failures onto the shared error body.
func adminError(c echo.Context, err error) error {
	if errors.Is(err, repository.ErrRoleAssigned) {
		return respondError(c, service.ErrRoleTaken)
	}
	var dup *repository.DuplicateError
	if errors.As(err, &dup) {
		return respondError(c, service.Duplicate(dup.Key, dup.Value))
	}
	return respondError(c, err)
}

func roleBody(r model.Role) echo.Map {
	return echo.Map{"id": r.ID, "name": r.Name, "createdAt": r.CreatedAt, "updatedAt": r.UpdatedAt}
}

func permissionBody(p model.Permission) echo.Map {
	return echo.Map{
		"id": p.ID, "name": p.Name, "description": p.Description,
		"groupName": p.GroupName, "sort": p.Sort, "type": p.Type,
		"createdAt": p.CreatedAt, "updatedAt": p.UpdatedAt,
	}
}
