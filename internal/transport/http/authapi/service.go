// Package authapi exposes the authentication engine over HTTP.
package authapi

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"authgate/internal/domain/auth"
	"authgate/internal/platform/config"
	"authgate/internal/platform/errors"
	httptransport "authgate/internal/transport/http"
)

const sessionCookieName = "access_token"

// Service is the HTTP transport for login, logout and health.
type Service struct {
	engine *auth.Engine
	config *config.Config
	logger auth.Logger
}

// NewService creates the auth API transport.
func NewService(engine *auth.Engine, cfg *config.Config, logger auth.Logger) (*Service, error) {
	if engine == nil {
		return nil, errors.New(errors.KindConfig, "authapi.new", "engine is required")
	}
	if cfg == nil {
		return nil, errors.New(errors.KindConfig, "authapi.new", "config is required")
	}
	if logger == nil {
		return nil, errors.New(errors.KindConfig, "authapi.new", "logger is required")
	}
	return &Service{engine: engine, config: cfg, logger: logger}, nil
}

// Register wires the auth routes onto the given group.
func (s *Service) Register(ctx context.Context, router *gin.RouterGroup) error {
	router.POST("/login", s.handleLogin)
	router.POST("/logout", s.handleLogout)
	router.GET("/health", s.handleHealth)
	return nil
}

// RegisterProtected wires routes that require a live session.
func (s *Service) RegisterProtected(ctx context.Context, router *gin.RouterGroup) error {
	router.GET("/protected", s.handleProtected)
	return nil
}

func (s *Service) handleLogin(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httptransport.RespondError(c, http.StatusBadRequest, "username and password are required", nil)
		return
	}

	sess, err := s.engine.Login(c.Request.Context(), req.Username, req.Password, c.ClientIP())
	if err != nil {
		s.respondLoginError(c, req.Username, err)
		return
	}

	c.Header("X-Auth-User", req.Username)
	if s.config.Auth.CookieMode {
		c.SetSameSite(http.SameSiteStrictMode)
		c.SetCookie(sessionCookieName, sess.Token, sess.ExpiresIn, "/", "", true, true)
	}
	c.JSON(http.StatusOK, sess)
}

func (s *Service) respondLoginError(c *gin.Context, username string, err error) {
	switch {
	case stderrors.Is(err, auth.ErrRateLimited):
		httptransport.RespondError(c, http.StatusTooManyRequests, "Too many login attempts. Please try again later.", nil)
	case stderrors.Is(err, auth.ErrInvalidCredentials):
		c.Header("WWW-Authenticate", "Bearer")
		httptransport.RespondError(c, http.StatusUnauthorized, "Invalid username or password", nil)
	case stderrors.Is(err, auth.ErrAccountLocked):
		httptransport.RespondError(c, http.StatusForbidden, "Account locked due to repeated failed login attempts", nil)
	case stderrors.Is(err, auth.ErrServiceDegraded):
		httptransport.RespondError(c, http.StatusServiceUnavailable, "Authentication service temporarily unavailable", nil)
	default:
		s.logger.Error("login failed for %s: %v", username, err)
		httptransport.RespondError(c, http.StatusInternalServerError, "Internal server error", nil)
	}
}

func (s *Service) handleLogout(c *gin.Context) {
	raw := bearerToken(c.GetHeader("Authorization"))

	username, err := s.engine.Logout(c.Request.Context(), raw)
	switch {
	case err == nil:
	case stderrors.Is(err, auth.ErrMissingToken):
		httptransport.RespondError(c, http.StatusBadRequest, "No token provided", nil)
		return
	case stderrors.Is(err, auth.ErrInvalidToken):
		httptransport.RespondError(c, http.StatusBadRequest, "Invalid token", nil)
		return
	case stderrors.Is(err, auth.ErrServiceDegraded):
		httptransport.RespondError(c, http.StatusServiceUnavailable, "Authentication service temporarily unavailable", nil)
		return
	default:
		s.logger.Error("logout failed: %v", err)
		httptransport.RespondError(c, http.StatusInternalServerError, "Internal server error", nil)
		return
	}

	if s.config.Auth.CookieMode {
		c.SetCookie(sessionCookieName, "", -1, "/", "", true, true)
	}
	s.logger.Info("session revoked for %s", username)
	c.JSON(http.StatusOK, LogoutResponse{Status: "success"})
}

func (s *Service) handleHealth(c *gin.Context) {
	// Degraded connectivity is reported in the body, never as a 5xx.
	c.JSON(http.StatusOK, s.engine.Health(c.Request.Context()))
}

func (s *Service) handleProtected(c *gin.Context) {
	claims, ok := httptransport.SessionClaims(c)
	if !ok {
		httptransport.RespondError(c, http.StatusForbidden, "Not authenticated", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "You have access to this protected resource",
		"user":    claims.Username(),
		"user_id": claims.UserID,
	})
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
