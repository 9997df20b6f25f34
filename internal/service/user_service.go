package service

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"authserver/internal/apperror"
	"authserver/internal/model"
	"authserver/internal/repository"
	ws "authserver/internal/websocket"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// --- DTOs ---

type RegisterRequest struct {
	Name     string   `json:"name" binding:"required"`
	Email    string   `json:"email" binding:"required,email"`
	Password string   `json:"password" binding:"required,min=6"`
	Roles    []string `json:"roles" binding:"required"` // role names
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type UpdateUserRequest struct {
	Name  string   `json:"name" binding:"required"`
	Email string   `json:"email" binding:"required,email"`
	Roles []string `json:"roles"`
}

type ChangePasswordRequest struct {
	Password string `json:"password" binding:"required,min=6"`
}

type GrantPermissionsRequest struct {
	Permissions []string `json:"permissions" binding:"required"` // permission names
}

type TokenResponse struct {
	Token string `json:"token"`
}

// UserResponse is the standard user shape returned to clients; the password
// hash never leaves the service layer.
type UserResponse struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Email     string   `json:"email"`
	Roles     []string `json:"roles"`
	CreatedAt string   `json:"created_at"`
	UpdatedAt string   `json:"updated_at"`
}

// ProfileResponse augments the user shape with the effective permission names
// for the /me endpoint.
type ProfileResponse struct {
	UserResponse
	Permissions []string `json:"permissions"`
}

// --- Interface ---

type UserService interface {
	Register(ctx context.Context, req RegisterRequest) (*UserResponse, string, error)
	Login(ctx context.Context, req LoginRequest) (*TokenResponse, error)
	Logout(ctx context.Context, userID uuid.UUID) error
	Profile(ctx context.Context, userID uuid.UUID) (*ProfileResponse, error)
	ChangePassword(ctx context.Context, userID uuid.UUID, req ChangePasswordRequest) error
	ListUsers(ctx context.Context, page, limit int) ([]UserResponse, int64, error)
	UpdateUser(ctx context.Context, id string, req UpdateUserRequest) (*UserResponse, error)
	SyncUserRoles(ctx context.Context, userID uuid.UUID, roleNames []string) error
	GrantUserPermissions(ctx context.Context, id string, req GrantPermissionsRequest) ([]string, error)
}

type userService struct {
	userRepo  repository.UserRepository
	roleRepo  repository.RoleRepository
	permRepo  repository.PermissionRepository
	tokens    TokenService
	access    AccessService
	txManager repository.TransactionManager
	hub       *ws.Hub
}

func NewUserService(
	userRepo repository.UserRepository,
	roleRepo repository.RoleRepository,
	permRepo repository.PermissionRepository,
	tokens TokenService,
	access AccessService,
	txManager repository.TransactionManager,
	hub *ws.Hub,
) UserService {
	return &userService{
		userRepo:  userRepo,
		roleRepo:  roleRepo,
		permRepo:  permRepo,
		tokens:    tokens,
		access:    access,
		txManager: txManager,
		hub:       hub,
	}
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// --- Implementation ---

// Register creates the user, assigns the named roles and issues a token as
// one atomic unit. A duplicate email or unknown role rolls everything back:
// no user row, no role links, no live token.
func (s *userService) Register(ctx context.Context, req RegisterRequest) (*UserResponse, string, error) {
	ve := apperror.NewValidation()
	name := strings.TrimSpace(req.Name)
	email := strings.TrimSpace(req.Email)
	if name == "" {
		ve.Add("name", "is required")
	}
	if email == "" {
		ve.Add("email", "is required")
	} else if !emailRegex.MatchString(email) {
		ve.Add("email", "must be a valid email address")
	}
	if req.Password == "" {
		ve.Add("password", "is required")
	}
	if len(req.Roles) == 0 {
		ve.Add("roles", "at least one role is required")
	}
	if ve.HasErrors() {
		return nil, "", ve
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", errors.New("failed to hash password")
	}

	user := model.User{
		Name:     name,
		Email:    email,
		Password: string(hashed),
	}

	var token string
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.userRepo.FindByEmail(txCtx, email); err == nil {
			return apperror.Conflict("email '%s' is already registered", email)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		roles, err := s.resolveRoles(txCtx, req.Roles)
		if err != nil {
			return err
		}

		if err := s.userRepo.Create(txCtx, &user); err != nil {
			return err
		}
		if err := s.userRepo.ReplaceRoles(txCtx, user.ID, roles); err != nil {
			return err
		}

		token, err = s.tokens.Issue(txCtx, &user)
		return err
	})
	if err != nil {
		return nil, "", wrapTxErr("register user", err)
	}

	loaded, err := s.userRepo.FindByIDWithAccess(ctx, user.ID)
	if err != nil {
		return nil, "", err
	}

	resp := toUserResponse(loaded)
	return &resp, token, nil
}

// Login verifies credentials and issues a fresh token. Unknown email and
// wrong password are indistinguishable to the caller.
func (s *userService) Login(ctx context.Context, req LoginRequest) (*TokenResponse, error) {
	user, err := s.userRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, apperror.ErrUnauthenticated
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, apperror.ErrUnauthenticated
	}

	token, err := s.tokens.Issue(ctx, user)
	if err != nil {
		return nil, err
	}

	return &TokenResponse{Token: token}, nil
}

// Logout revokes every outstanding token for the user.
func (s *userService) Logout(ctx context.Context, userID uuid.UUID) error {
	return s.tokens.RevokeAll(ctx, userID)
}

func (s *userService) Profile(ctx context.Context, userID uuid.UUID) (*ProfileResponse, error) {
	user, err := s.userRepo.FindByIDWithAccess(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("user %s", userID)
		}
		return nil, err
	}

	perms, err := s.access.EffectivePermissions(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &ProfileResponse{
		UserResponse: toUserResponse(user),
		Permissions:  perms,
	}, nil
}

func (s *userService) ChangePassword(ctx context.Context, userID uuid.UUID, req ChangePasswordRequest) error {
	if req.Password == "" {
		return apperror.NewValidation().Add("password", "is required")
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.NotFound("user %s", userID)
		}
		return err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return errors.New("failed to hash password")
	}

	user.Password = string(hashed)
	return s.userRepo.Update(ctx, user)
}

func (s *userService) ListUsers(ctx context.Context, page, limit int) ([]UserResponse, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	users, total, err := s.userRepo.List(ctx, page, limit)
	if err != nil {
		return nil, 0, err
	}

	res := make([]UserResponse, 0, len(users))
	for i := range users {
		res = append(res, toUserResponse(&users[i]))
	}
	return res, total, nil
}

// UpdateUser updates profile fields and re-syncs the role set to exactly the
// named roles, all in one transaction.
func (s *userService) UpdateUser(ctx context.Context, id string, req UpdateUserRequest) (*UserResponse, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperror.NewValidation().Add("id", "must be a valid uuid")
	}

	ve := apperror.NewValidation()
	name := strings.TrimSpace(req.Name)
	email := strings.TrimSpace(req.Email)
	if name == "" {
		ve.Add("name", "is required")
	}
	if email == "" {
		ve.Add("email", "is required")
	} else if !emailRegex.MatchString(email) {
		ve.Add("email", "must be a valid email address")
	}
	if ve.HasErrors() {
		return nil, ve
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		user, findErr := s.userRepo.FindByID(txCtx, userID)
		if findErr != nil {
			if errors.Is(findErr, gorm.ErrRecordNotFound) {
				return apperror.NotFound("user %s", id)
			}
			return findErr
		}

		if other, otherErr := s.userRepo.FindByEmail(txCtx, email); otherErr == nil && other.ID != user.ID {
			return apperror.Conflict("email '%s' is already registered", email)
		} else if otherErr != nil && !errors.Is(otherErr, gorm.ErrRecordNotFound) {
			return otherErr
		}

		roles, roleErr := s.resolveRoles(txCtx, req.Roles)
		if roleErr != nil {
			return roleErr
		}

		user.Name = name
		user.Email = email
		if err := s.userRepo.Update(txCtx, user); err != nil {
			return err
		}
		return s.userRepo.ReplaceRoles(txCtx, user.ID, roles)
	})
	if err != nil {
		return nil, wrapTxErr("update user", err)
	}

	s.hub.Notify("user", "updated", email)

	loaded, err := s.userRepo.FindByIDWithAccess(ctx, userID)
	if err != nil {
		return nil, err
	}
	resp := toUserResponse(loaded)
	return &resp, nil
}

// SyncUserRoles replaces the user's role set with exactly the named roles.
// An empty list removes every role; the user record stays valid. The replace
// happens inside one transaction so two concurrent syncs cannot interleave
// partially — last committed wins.
func (s *userService) SyncUserRoles(ctx context.Context, userID uuid.UUID, roleNames []string) error {
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if _, findErr := s.userRepo.FindByID(txCtx, userID); findErr != nil {
			if errors.Is(findErr, gorm.ErrRecordNotFound) {
				return apperror.NotFound("user %s", userID)
			}
			return findErr
		}

		roles, err := s.resolveRoles(txCtx, roleNames)
		if err != nil {
			return err
		}
		return s.userRepo.ReplaceRoles(txCtx, userID, roles)
	})
	if err != nil {
		return wrapTxErr("sync user roles", err)
	}

	s.hub.Notify("user", "synced", userID.String())
	return nil
}

// GrantUserPermissions adds direct grants on top of whatever the user already
// has. Unlike role sync this never removes anything: roles model the current
// job and are replaced, direct grants are extra capabilities and accumulate.
func (s *userService) GrantUserPermissions(ctx context.Context, id string, req GrantPermissionsRequest) ([]string, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperror.NewValidation().Add("id", "must be a valid uuid")
	}
	if len(req.Permissions) == 0 {
		return nil, apperror.NewValidation().Add("permissions", "at least one permission is required")
	}

	var granted []string
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if _, findErr := s.userRepo.FindByID(txCtx, userID); findErr != nil {
			if errors.Is(findErr, gorm.ErrRecordNotFound) {
				return apperror.NotFound("user %s", id)
			}
			return findErr
		}

		perms, permErr := s.permRepo.FindByNames(txCtx, req.Permissions)
		if permErr != nil {
			return permErr
		}
		if missing := missingNames(req.Permissions, permissionNames(perms)); len(missing) > 0 {
			return apperror.NotFound("unknown permission(s): %s", strings.Join(missing, ", "))
		}

		granted = permissionNames(perms)
		return s.userRepo.AppendPermissions(txCtx, userID, perms)
	})
	if err != nil {
		return nil, wrapTxErr("grant user permissions", err)
	}

	s.hub.Notify("user", "granted", id)
	return granted, nil
}

// resolveRoles maps role names to rows, failing with NotFound when any name
// is unknown.
func (s *userService) resolveRoles(ctx context.Context, names []string) ([]model.Role, error) {
	roles, err := s.roleRepo.FindByNames(ctx, names)
	if err != nil {
		return nil, err
	}
	found := make([]string, 0, len(roles))
	for _, r := range roles {
		found = append(found, r.Name)
	}
	if missing := missingNames(names, found); len(missing) > 0 {
		return nil, apperror.NotFound("unknown role(s): %s", strings.Join(missing, ", "))
	}
	return roles, nil
}

// --- Helpers ---

func toUserResponse(user *model.User) UserResponse {
	roles := make([]string, 0, len(user.Roles))
	for _, r := range user.Roles {
		roles = append(roles, r.Name)
	}

	return UserResponse{
		ID:        user.ID.String(),
		Name:      user.Name,
		Email:     user.Email,
		Roles:     roles,
		CreatedAt: user.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt: user.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}
