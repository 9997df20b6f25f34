package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"authserver/internal/middleware"
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

func setupAuthRouter(t *testing.T) *gin.Engine {
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
	users := service.NewUserService(userRepo, roleRepo, permRepo, tokens, access, txManager, nil)

	ctx := context.Background()
	require.NoError(t, roleRepo.Create(ctx, &model.Role{Name: "member"}))
	_, _, err = users.Register(ctx, service.RegisterRequest{
		Name:     "alice",
		Email:    "alice@example.com",
		Password: "secret123",
		Roles:    []string{"member"},
	})
	require.NoError(t, err)

	router := gin.New()
	NewUserHandler(users, access).RegisterRoutes(router.Group(""), middleware.Authenticate(tokens))
	return router
}

func postJSON(router *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestLoginSuccess(t *testing.T) {
	router := setupAuthRouter(t)

	w := postJSON(router, "/api/login", `{"email":"alice@example.com","password":"secret123"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "token")
}

func TestLoginWrongPassword(t *testing.T) {
	router := setupAuthRouter(t)

	w := postJSON(router, "/api/login", `{"email":"alice@example.com","password":"wrong"}`)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "The provided credentials are incorrect")
}

func TestLoginUnknownEmail(t *testing.T) {
	router := setupAuthRouter(t)

	// Identical status and message as a wrong password.
	w := postJSON(router, "/api/login", `{"email":"ghost@example.com","password":"secret123"}`)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "The provided credentials are incorrect")
}
