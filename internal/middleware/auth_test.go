package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"authserver/internal/model"
	"authserver/internal/repository"
	"authserver/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type authFixture struct {
	router *gin.Engine
	token  string
}

// setupAuthFixture builds a router with one gated route and a user holding
// the edit-post permission through the editor role.
func setupAuthFixture(t *testing.T, gatePerm string) authFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&model.User{}, &model.Role{}, &model.Permission{}, &model.AccessToken{}))

	userRepo := repository.NewUserRepository(db)
	roleRepo := repository.NewRoleRepository(db)
	permRepo := repository.NewPermissionRepository(db)
	tokenRepo := repository.NewTokenRepository(db)
	txManager := repository.NewTransactionManager(db)

	tokens := service.NewTokenService(tokenRepo, userRepo, []byte("test-secret"))
	access := service.NewAccessService(userRepo)
	perms := service.NewPermissionService(permRepo, txManager, nil)
	roles := service.NewRoleService(roleRepo, permRepo, txManager, nil)
	users := service.NewUserService(userRepo, roleRepo, permRepo, tokens, access, txManager, nil)

	ctx := context.Background()
	_, err = perms.CreatePermission(ctx, service.CreatePermissionRequest{Name: "edit-post"})
	require.NoError(t, err)
	_, err = roles.CreateRole(ctx, service.CreateRoleRequest{Name: "editor", Permissions: []string{"edit-post"}})
	require.NoError(t, err)
	_, token, err := users.Register(ctx, service.RegisterRequest{
		Name:     "alice",
		Email:    "alice@example.com",
		Password: "secret123",
		Roles:    []string{"editor"},
	})
	require.NoError(t, err)

	router := gin.New()
	router.GET("/protected",
		Authenticate(tokens),
		RequirePermission(access, gatePerm),
		func(c *gin.Context) {
			user, ok := CurrentUser(c)
			require.True(t, ok)
			c.JSON(http.StatusOK, gin.H{"email": user.Email})
		})

	return authFixture{router: router, token: token}
}

func TestAuthenticateMissingToken(t *testing.T) {
	fx := setupAuthFixture(t, "edit-post")

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	w := httptest.NewRecorder()
	fx.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthenticateMalformedHeader(t *testing.T) {
	fx := setupAuthFixture(t, "edit-post")

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Token abc")
	w := httptest.NewRecorder()
	fx.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthenticateBearerHeader(t *testing.T) {
	fx := setupAuthFixture(t, "edit-post")

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+fx.token)
	w := httptest.NewRecorder()
	fx.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "alice@example.com")
}

func TestAuthenticateCookie(t *testing.T) {
	fx := setupAuthFixture(t, "edit-post")

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: fx.token})
	w := httptest.NewRecorder()
	fx.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequirePermissionDenied(t *testing.T) {
	fx := setupAuthFixture(t, "delete-post")

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+fx.token)
	w := httptest.NewRecorder()
	fx.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}
