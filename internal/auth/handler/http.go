// Package handler exposes the auth service over REST.
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mobile-chat/server/internal/auth/service"
	"mobile-chat/server/internal/autherr"
	"mobile-chat/server/internal/server/middleware"
	sessiondomain "mobile-chat/server/internal/session/domain"
	userdomain "mobile-chat/server/internal/user/domain"
)

// AuthService is the surface of the auth service used by the handler.
type AuthService interface {
	Signup(ctx context.Context, firstName, lastName, email, password string) (*userdomain.User, error)
	Signin(ctx context.Context, email, password string, device sessiondomain.DeviceInfo) (*service.AuthResult, error)
	Refresh(ctx context.Context, refreshToken, deviceID string) (*service.AuthResult, error)
	Logout(ctx context.Context, userID, sessionID string) error
	LogoutOthers(ctx context.Context, userID, currentSessionID string) (int64, error)
	LogoutAll(ctx context.Context, userID string) (int64, error)
	Sessions(ctx context.Context, userID string) ([]*sessiondomain.Session, error)
}

// AuthHandler serves the /auth endpoints.
type AuthHandler struct {
	svc AuthService
	log *zap.Logger
}

// NewAuthHandler returns the handler set for /auth.
func NewAuthHandler(svc AuthService, log *zap.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, log: log}
}

type deviceInfoDTO struct {
	DeviceID   string `json:"deviceId" binding:"required"`
	DeviceName string `json:"deviceName"`
	DeviceType string `json:"deviceType"`
	OSName     string `json:"osName"`
	OSVersion  string `json:"osVersion"`
	AppVersion string `json:"appVersion"`
}

func (d deviceInfoDTO) toDomain(c *gin.Context) sessiondomain.DeviceInfo {
	return sessiondomain.DeviceInfo{
		DeviceID:   d.DeviceID,
		DeviceName: d.DeviceName,
		DeviceType: d.DeviceType,
		OSName:     d.OSName,
		OSVersion:  d.OSVersion,
		AppVersion: d.AppVersion,
		IPAddress:  c.ClientIP(),
		UserAgent:  c.Request.UserAgent(),
	}
}

type signupRequest struct {
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName"`
	Email     string `json:"email" binding:"required"`
	Password  string `json:"password" binding:"required"`
}

type signinRequest struct {
	Email      string        `json:"email" binding:"required"`
	Password   string        `json:"password" binding:"required"`
	DeviceInfo deviceInfoDTO `json:"deviceInfo" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
	DeviceID     string `json:"deviceId"`
}

type logoutRequest struct {
	SessionID string `json:"sessionId"`
}

type logoutOthersRequest struct {
	CurrentSessionID string `json:"currentSessionId" binding:"required"`
}

type userResponse struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

type signinResponse struct {
	userResponse
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	SessionID    string `json:"sessionId"`
}

type refreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	SessionID    string `json:"sessionId"`
}

type sessionResponse struct {
	SessionID      string                   `json:"sessionId"`
	DeviceInfo     sessiondomain.DeviceInfo `json:"deviceInfo"`
	LastActivityAt time.Time                `json:"lastActivityAt"`
	CreatedAt      time.Time                `json:"createdAt"`
}

// Signup creates a user. No session is created.
func (h *AuthHandler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid signup request")
		return
	}
	user, err := h.svc.Signup(c.Request.Context(), req.FirstName, req.LastName, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrEmailAlreadyRegistered) {
			h.plainError(c, http.StatusConflict, err.Error())
			return
		}
		var ve *service.ValidationError
		if errors.As(err, &ve) {
			h.badRequest(c, ve.Reason)
			return
		}
		h.internalError(c, "signup", err)
		return
	}
	c.JSON(http.StatusCreated, toUserResponse(user))
}

// Signin authenticates credentials and returns a token pair plus the session
// handle.
func (h *AuthHandler) Signin(c *gin.Context) {
	var req signinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid signin request")
		return
	}
	res, err := h.svc.Signin(c.Request.Context(), req.Email, req.Password, req.DeviceInfo.toDomain(c))
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			middleware.AbortWithAuthError(c, autherr.New(autherr.Unauthorized))
			return
		}
		h.internalError(c, "signin", err)
		return
	}
	c.JSON(http.StatusOK, signinResponse{
		userResponse: toUserResponse(res.User),
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		SessionID:    res.SessionID,
	})
}

// Refresh rotates a refresh token. Rejections carry the refresh-path
// taxonomy; store failures fail closed as refresh_unauthorized.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithAuthError(c, autherr.New(autherr.RefreshTokenMissing))
		return
	}
	res, err := h.svc.Refresh(c.Request.Context(), req.RefreshToken, req.DeviceID)
	if err != nil {
		var ae *autherr.Error
		if !errors.As(err, &ae) {
			h.log.Error("refresh failed", zap.Error(err), zap.String("request_id", middleware.GetRequestID(c)))
			ae = autherr.New(autherr.RefreshUnauthorized)
		}
		middleware.AbortWithAuthError(c, ae)
		return
	}
	c.JSON(http.StatusOK, refreshResponse{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		SessionID:    res.SessionID,
	})
}

// Logout revokes the given session, or every session for the caller when no
// sessionId is supplied.
func (h *AuthHandler) Logout(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		middleware.AbortWithAuthError(c, autherr.New(autherr.Unauthorized))
		return
	}
	var req logoutRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.badRequest(c, "invalid logout request")
			return
		}
	}
	if err := h.svc.Logout(c.Request.Context(), userID, req.SessionID); err != nil {
		h.authOperationError(c, "logout", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// LogoutOthers revokes every active session except the current one.
func (h *AuthHandler) LogoutOthers(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		middleware.AbortWithAuthError(c, autherr.New(autherr.Unauthorized))
		return
	}
	var req logoutOthersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "currentSessionId is required")
		return
	}
	n, err := h.svc.LogoutOthers(c.Request.Context(), userID, req.CurrentSessionID)
	if err != nil {
		h.authOperationError(c, "logout others", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "revokedCount": n})
}

// LogoutAll revokes every active session for the caller.
func (h *AuthHandler) LogoutAll(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		middleware.AbortWithAuthError(c, autherr.New(autherr.Unauthorized))
		return
	}
	n, err := h.svc.LogoutAll(c.Request.Context(), userID)
	if err != nil {
		h.authOperationError(c, "logout all", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "revokedCount": n})
}

// Sessions lists the caller's active sessions for a manage-devices UI.
func (h *AuthHandler) Sessions(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		middleware.AbortWithAuthError(c, autherr.New(autherr.Unauthorized))
		return
	}
	sessions, err := h.svc.Sessions(c.Request.Context(), userID)
	if err != nil {
		h.authOperationError(c, "list sessions", err)
		return
	}
	out := make([]sessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, sessionResponse{
			SessionID:      s.ID,
			DeviceInfo:     s.DeviceInfo,
			LastActivityAt: s.LastActivityAt,
			CreatedAt:      s.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"sessions": out})
}

// authOperationError maps a failure during an authenticated operation:
// taxonomy errors pass through, anything else fails closed as unauthorized.
func (h *AuthHandler) authOperationError(c *gin.Context, op string, err error) {
	var ae *autherr.Error
	if errors.As(err, &ae) {
		middleware.AbortWithAuthError(c, ae)
		return
	}
	h.log.Error(op+" failed", zap.Error(err), zap.String("request_id", middleware.GetRequestID(c)))
	middleware.AbortWithAuthError(c, autherr.New(autherr.Unauthorized))
}

func (h *AuthHandler) badRequest(c *gin.Context, msg string) {
	h.plainError(c, http.StatusBadRequest, msg)
}

func (h *AuthHandler) internalError(c *gin.Context, op string, err error) {
	h.log.Error(op+" failed", zap.Error(err), zap.String("request_id", middleware.GetRequestID(c)))
	h.plainError(c, http.StatusInternalServerError, "internal server error")
}

func (h *AuthHandler) plainError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"statusCode": status,
		"message":    msg,
		"path":       c.Request.URL.Path,
		"timestamp":  time.Now().UTC(),
	})
}

func toUserResponse(u *userdomain.User) userResponse {
	return userResponse{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName, Email: u.Email}
}
