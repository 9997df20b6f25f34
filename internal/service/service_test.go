package service

import (
	"context"
	"testing"

	"authserver/internal/model"
	"authserver/internal/repository"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testEnv bundles the repositories and services wired against one in-memory
// database.
type testEnv struct {
	db        *gorm.DB
	userRepo  repository.UserRepository
	roleRepo  repository.RoleRepository
	permRepo  repository.PermissionRepository
	tokenRepo repository.TokenRepository
	txManager repository.TransactionManager
	tokens    TokenService
	access    AccessService
	perms     PermissionService
	roles     RoleService
	users     UserService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// A single connection keeps every session on the same in-memory database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.Role{},
		&model.Permission{},
		&model.AccessToken{},
	))

	env := &testEnv{db: db}
	env.userRepo = repository.NewUserRepository(db)
	env.roleRepo = repository.NewRoleRepository(db)
	env.permRepo = repository.NewPermissionRepository(db)
	env.tokenRepo = repository.NewTokenRepository(db)
	env.txManager = repository.NewTransactionManager(db)
	env.tokens = NewTokenService(env.tokenRepo, env.userRepo, []byte("test-secret"))
	env.access = NewAccessService(env.userRepo)
	env.perms = NewPermissionService(env.permRepo, env.txManager, nil)
	env.roles = NewRoleService(env.roleRepo, env.permRepo, env.txManager, nil)
	env.users = NewUserService(env.userRepo, env.roleRepo, env.permRepo, env.tokens, env.access, env.txManager, nil)
	return env
}

// seedPermissions creates permissions by name and returns nothing; tests refer
// to them by name.
func (e *testEnv) seedPermissions(t *testing.T, names ...string) {
	t.Helper()
	for _, name := range names {
		_, err := e.perms.CreatePermission(context.Background(), CreatePermissionRequest{Name: name})
		require.NoError(t, err)
	}
}

// seedRole creates a role holding the named permissions.
func (e *testEnv) seedRole(t *testing.T, name string, permNames ...string) *RoleResponse {
	t.Helper()
	role, err := e.roles.CreateRole(context.Background(), CreateRoleRequest{
		Name:        name,
		Permissions: permNames,
	})
	require.NoError(t, err)
	return role
}

// seedUser registers a user with the named roles and returns the user and token.
func (e *testEnv) seedUser(t *testing.T, name, email string, roleNames ...string) (*UserResponse, string) {
	t.Helper()
	user, token, err := e.users.Register(context.Background(), RegisterRequest{
		Name:     name,
		Email:    email,
		Password: "secret123",
		Roles:    roleNames,
	})
	require.NoError(t, err)
	return user, token
}
