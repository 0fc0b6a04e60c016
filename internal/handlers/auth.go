package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"krishimitra/api/internal/middleware"
	"krishimitra/api/internal/models"
	"krishimitra/api/internal/response"
	"krishimitra/api/internal/security"
	"krishimitra/api/internal/service"
	"krishimitra/api/internal/validation"
)

// userResponse is the only shape a user leaves the service in.
type userResponse struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	FirstName string     `json:"firstName"`
	LastName  string     `json:"lastName"`
	Mobile    string     `json:"mobile"`
	CreatedAt time.Time  `json:"createdAt"`
	LastLogin *time.Time `json:"lastLogin,omitempty"`
}

type authResponse struct {
	User      userResponse `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func newUserResponse(user models.User) userResponse {
	return userResponse{
		ID:        user.ID,
		Username:  user.Username,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Mobile:    user.Mobile,
		CreatedAt: user.CreatedAt,
		LastLogin: user.LastLoginAt,
	}
}

func newAuthResponse(user models.User, token security.Token) authResponse {
	return authResponse{
		User:      newUserResponse(user),
		Token:     token.Value,
		ExpiresAt: token.ExpiresAt,
	}
}

func requestMeta(c *gin.Context) service.RequestMeta {
	return service.RequestMeta{
		ClientIP:  c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
	}
}

func (h HandlerSet) Signup(c *gin.Context) {
	var req validation.SignupInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, h.log, fmt.Errorf("%w: %w", response.ErrInvalidBody, err))
		return
	}

	result, err := h.authService.Signup(c.Request.Context(), req, requestMeta(c))
	if err != nil {
		response.Error(c, h.log, err)
		return
	}

	response.OK(c, http.StatusCreated, "User registered successfully", newAuthResponse(result.User, result.Token))
}

func (h HandlerSet) Login(c *gin.Context) {
	var req validation.LoginInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, h.log, fmt.Errorf("%w: %w", response.ErrInvalidBody, err))
		return
	}

	result, err := h.authService.Login(c.Request.Context(), req, requestMeta(c))
	if err != nil {
		response.Error(c, h.log, err)
		return
	}

	response.OK(c, http.StatusOK, "Login successful", newAuthResponse(result.User, result.Token))
}

func (h HandlerSet) Profile(c *gin.Context) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		response.Error(c, h.log, service.ErrUnauthorized)
		return
	}

	response.OK(c, http.StatusOK, "Profile retrieved successfully", gin.H{
		"user": newUserResponse(identity.User),
	})
}

func (h HandlerSet) Refresh(c *gin.Context) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		response.Error(c, h.log, service.ErrUnauthorized)
		return
	}

	token, err := h.authService.Refresh(c.Request.Context(), identity, requestMeta(c))
	if err != nil {
		response.Error(c, h.log, err)
		return
	}

	response.OK(c, http.StatusOK, "Token refreshed successfully", tokenResponse{
		Token:     token.Value,
		ExpiresAt: token.ExpiresAt,
	})
}

// Logout tells the client to discard its token. Server-side revocation
// only happens when a denylist is configured.
func (h HandlerSet) Logout(c *gin.Context) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		response.Error(c, h.log, service.ErrUnauthorized)
		return
	}

	if err := h.authService.Logout(c.Request.Context(), identity, requestMeta(c)); err != nil {
		response.Error(c, h.log, err)
		return
	}

	response.OK(c, http.StatusOK, "Logged out successfully", nil)
}
