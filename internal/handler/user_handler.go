package handler

import (
	"net/http"
	"time"

	"github.com/appdotbuilder/vehicle-refuel-manager/internal/middleware"
	"github.com/appdotbuilder/vehicle-refuel-manager/internal/service"
	"github.com/appdotbuilder/vehicle-refuel-manager/pkg/response"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	userService service.UserService
	auth        *middleware.Authenticator
	tokenTTL    time.Duration
}

// NewUserHandler sets up the routing dependencies for User endpoints
func NewUserHandler(userService service.UserService, auth *middleware.Authenticator, tokenTTL time.Duration) *UserHandler {
	return &UserHandler{userService: userService, auth: auth, tokenTTL: tokenTTL}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup
func (h *UserHandler) RegisterRoutes(router *gin.RouterGroup) {
	// Public routes
	router.POST("/register", h.Register)
	router.POST("/login", h.Login)
	router.POST("/logout", h.Logout)

	// Me route, any valid token
	router.GET("/me", h.auth.Authenticate(), h.GetMe)
}

// Register handles POST /register
// @Summary      Register a user
// @Description  Creates a distributor, sales or shift account
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.RegisterUserRequest  true  "Registration payload"
// @Success      201      {object}  response.Response{data=service.UserResponse}
// @Failure      400      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Router       /register [post]
func (h *UserHandler) Register(c *gin.Context) {
	var req service.RegisterUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	user, err := h.userService.Register(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, user))
}

// Login handles POST /login to authenticate and return a JWT token
// @Summary      Login user
// @Description  Authenticates a user by email and password, returning a JWT token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.LoginUserRequest   true  "Login Credentials"
// @Success      200      {object}  response.Response{data=service.TokenResponse}
// @Failure      400      {object}  response.Response
// @Failure      401      {object}  response.Response
// @Router       /login [post]
func (h *UserHandler) Login(c *gin.Context) {
	var req service.LoginUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload")
		return
	}

	tokenRes, err := h.userService.Login(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}

	h.auth.SetTokenCookie(c, tokenRes.Token, h.tokenTTL)

	c.JSON(http.StatusOK, response.Success(http.StatusOK, tokenRes))
}

// Logout handles POST /logout
// @Summary      Logout user
// @Description  Clears the access token cookie
// @Tags         auth
// @Produce      json
// @Success      200  {object}  response.Response
// @Router       /logout [post]
func (h *UserHandler) Logout(c *gin.Context) {
	h.auth.ClearTokenCookie(c)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Logged out"}))
}

// GetMe handles GET /me to return current authenticated user based on JWT
// @Summary      Get current user
// @Description  Get the currently authenticated user
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200      {object}  response.Response{data=service.UserResponse}
// @Failure      401      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /me [get]
func (h *UserHandler) GetMe(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}

	user, err := h.userService.GetUserByID(c.Request.Context(), actor.ID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, user))
}
