package handler

import (
	"errors"
	"net/http"

	"authserver/internal/apperror"
	"authserver/internal/middleware"
	"authserver/internal/service"
	"authserver/pkg/pagination"
	"authserver/pkg/response"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	userService   service.UserService
	accessService service.AccessService
}

// NewUserHandler sets up the routing dependencies for auth and user endpoints
func NewUserHandler(userService service.UserService, accessService service.AccessService) *UserHandler {
	return &UserHandler{userService: userService, accessService: accessService}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup
func (h *UserHandler) RegisterRoutes(router *gin.RouterGroup, authn gin.HandlerFunc) {
	// Public routes
	router.POST("/api/register", h.Register)
	router.POST("/api/login", h.Login)

	// Session routes (any authenticated user)
	session := router.Group("/api")
	session.Use(authn)
	{
		session.POST("/logout", h.Logout)
		session.GET("/me", h.Me)
		session.POST("/change-password", h.ChangePassword)
	}

	// User management routes
	users := router.Group("/api/users")
	users.Use(authn)
	{
		users.GET("", middleware.RequirePermission(h.accessService, "users.read"), h.ListUsers)
		users.PUT("/:id", middleware.RequirePermission(h.accessService, "users.write"), h.UpdateUser)
		users.PUT("/:id/permissions", middleware.RequirePermission(h.accessService, "users.write"), h.GrantPermissions)
	}
}

// Register handles POST /api/register
// @Summary      Register a new user
// @Description  Creates a user with the named roles, hashes the password and issues a token. Atomic: a failure leaves no partial user and no token.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.RegisterRequest  true  "Registration Payload"
// @Success      201      {object}  response.Response{data=service.TokenResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/register [post]
func (h *UserHandler) Register(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	user, token, err := h.userService.Register(c.Request.Context(), req)
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}

	middleware.SetTokenCookie(c, token)

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, gin.H{
		"user":  user,
		"token": token,
	}))
}

// Login handles POST /api/login
// @Summary      Login user
// @Description  Authenticates a user by email and password, returning a bearer token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.LoginRequest   true  "Login Credentials"
// @Success      200      {object}  response.Response{data=service.TokenResponse}
// @Failure      400      {object}  response.Response
// @Failure      401      {object}  response.Response
// @Router       /api/login [post]
func (h *UserHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload"))
		return
	}

	tokenRes, err := h.userService.Login(c.Request.Context(), req)
	if err != nil {
		// Bad credentials get one indistinguishable message; store faults
		// keep their own status.
		if errors.Is(err, apperror.ErrUnauthenticated) {
			c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "The provided credentials are incorrect"))
			return
		}
		c.JSON(response.FromError(err))
		return
	}

	middleware.SetTokenCookie(c, tokenRes.Token)

	c.JSON(http.StatusOK, response.Success(http.StatusOK, tokenRes))
}

// Logout handles POST /api/logout — revokes every outstanding token
// @Summary      Logout user
// @Description  Revokes all of the current user's tokens
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response
// @Failure      401  {object}  response.Response
// @Router       /api/logout [post]
func (h *UserHandler) Logout(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authentication required"))
		return
	}

	if err := h.userService.Logout(c.Request.Context(), user.ID); err != nil {
		c.JSON(response.FromError(err))
		return
	}

	middleware.ClearTokenCookie(c)

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Logout success"}))
}

// Me handles GET /api/me
// @Summary      Current user profile
// @Description  Returns the authenticated user with roles and effective permission names
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=service.ProfileResponse}
// @Failure      401  {object}  response.Response
// @Router       /api/me [get]
func (h *UserHandler) Me(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authentication required"))
		return
	}

	profile, err := h.userService.Profile(c.Request.Context(), user.ID)
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, profile))
}

// ChangePassword handles POST /api/change-password
// @Summary      Change password
// @Description  Rehashes and stores a new password for the current user
// @Tags         auth
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.ChangePasswordRequest  true  "New Password"
// @Success      200      {object}  response.Response
// @Failure      400      {object}  response.Response
// @Failure      401      {object}  response.Response
// @Router       /api/change-password [post]
func (h *UserHandler) ChangePassword(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authentication required"))
		return
	}

	var req service.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	if err := h.userService.ChangePassword(c.Request.Context(), user.ID, req); err != nil {
		c.JSON(response.FromError(err))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Password changed successfully"}))
}

// ListUsers handles GET /api/users
// @Summary      List users
// @Description  Returns a paginated, chronologically ordered user list
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        page   query     int  false  "Page number"
// @Param        limit  query     int  false  "Items per page"
// @Success      200    {object}  response.Response{data=[]service.UserResponse}
// @Failure      401    {object}  response.Response
// @Failure      403    {object}  response.Response
// @Router       /api/users [get]
func (h *UserHandler) ListUsers(c *gin.Context) {
	params := pagination.Parse(c)

	users, total, err := h.userService.ListUsers(c.Request.Context(), params.Page, params.Limit)
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{
		"users": users,
		"total": total,
		"page":  params.Page,
		"limit": params.Limit,
	}))
}

// UpdateUser handles PUT /api/users/:id
// @Summary      Update user
// @Description  Updates profile fields and re-syncs the role set to exactly the named roles
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                     true  "User ID"
// @Param        payload  body      service.UpdateUserRequest  true  "Update Payload"
// @Success      200      {object}  response.Response{data=service.UserResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/users/{id} [put]
func (h *UserHandler) UpdateUser(c *gin.Context) {
	var req service.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	user, err := h.userService.UpdateUser(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, user))
}

// GrantPermissions handles PUT /api/users/:id/permissions
// @Summary      Grant direct permissions
// @Description  Adds direct permission grants to a user. Additive: existing grants are never removed.
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                           true  "User ID"
// @Param        payload  body      service.GrantPermissionsRequest  true  "Permission Names"
// @Success      200      {object}  response.Response
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/users/{id}/permissions [put]
func (h *UserHandler) GrantPermissions(c *gin.Context) {
	var req service.GrantPermissionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	granted, err := h.userService.GrantUserPermissions(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"granted": granted}))
}
