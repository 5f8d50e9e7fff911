package http

import (
	"errors"
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/hmelo/skyarena-server/internal/auth"
)

// ErrorResponse is the JSON body for failed API requests.
type ErrorResponse struct {
	Error string `json:"error"`
}

// CredentialsRequest carries a nickname/password pair.
type CredentialsRequest struct {
	Nickname string `json:"nickname" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse returns the JWT used for the WebSocket handshake.
type TokenResponse struct {
	Token string `json:"token"`
}

// APIHandlers serves the REST endpoints that precede the WebSocket session.
type APIHandlers struct {
	authService *auth.Service
	log         *zerolog.Logger
}

// NewAPIHandlers builds the REST handler set.
func NewAPIHandlers(authService *auth.Service, logger *zerolog.Logger) *APIHandlers {
	return &APIHandlers{authService: authService, log: logger}
}

// Register creates a new player account and returns a token.
func (h *APIHandlers) Register(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(stdhttp.StatusBadRequest, ErrorResponse{Error: "nickname and password are required"})
		return
	}

	token, err := h.authService.Register(c.Request.Context(), req.Nickname, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrPlayerExists):
			c.JSON(stdhttp.StatusConflict, ErrorResponse{Error: "nickname already taken"})
		case errors.Is(err, auth.ErrInvalidNickname), errors.Is(err, auth.ErrInvalidPassword):
			c.JSON(stdhttp.StatusBadRequest, ErrorResponse{Error: err.Error()})
		default:
			h.log.Error().Err(err).Msg("register failed")
			c.JSON(stdhttp.StatusInternalServerError, ErrorResponse{Error: "internal error"})
		}
		return
	}

	c.JSON(stdhttp.StatusOK, TokenResponse{Token: token})
}

// Login verifies credentials and returns a token.
func (h *APIHandlers) Login(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(stdhttp.StatusBadRequest, ErrorResponse{Error: "nickname and password are required"})
		return
	}

	token, err := h.authService.Login(c.Request.Context(), req.Nickname, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			c.JSON(stdhttp.StatusUnauthorized, ErrorResponse{Error: "invalid credentials"})
			return
		}
		h.log.Error().Err(err).Msg("login failed")
		c.JSON(stdhttp.StatusInternalServerError, ErrorResponse{Error: "internal error"})
		return
	}

	c.JSON(stdhttp.StatusOK, TokenResponse{Token: token})
}

// Guest issues a token for a throwaway profile.
func (h *APIHandlers) Guest(c *gin.Context) {
	token, err := h.authService.Guest(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("guest login failed")
		c.JSON(stdhttp.StatusInternalServerError, ErrorResponse{Error: "internal error"})
		return
	}
	c.JSON(stdhttp.StatusOK, TokenResponse{Token: token})
}
