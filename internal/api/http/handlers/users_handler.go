package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/presence-auth-service/internal/api/dto"
	"github.com/spec-kit/presence-auth-service/internal/auth"
	"github.com/spec-kit/presence-auth-service/internal/service"
	apperrors "github.com/spec-kit/presence-auth-service/pkg/util/errorutil"
)

// UsersHandler exposes the account and presence endpoints.
type UsersHandler struct {
	auth              *service.AuthService
	presence          *service.PresenceService
	minPasswordLength int
}

// NewUsersHandler constructs handler.
func NewUsersHandler(authService *service.AuthService, presenceService *service.PresenceService, minPasswordLength int) *UsersHandler {
	return &UsersHandler{auth: authService, presence: presenceService, minPasswordLength: minPasswordLength}
}

// Signup handles POST /api/users/signup.
func (h *UsersHandler) Signup(c *fiber.Ctx) error {
	req := parseCredentials(c)

	_, token, err := h.auth.Signup(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return h.mapError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(dto.SignupResponse{
		Message:   "User registered successfully",
		Token:     token.Token,
		ExpiresAt: token.ExpiresAt,
	})
}

// Login handles POST /api/users/login.
func (h *UsersHandler) Login(c *fiber.Ctx) error {
	req := parseCredentials(c)

	res, err := h.auth.Login(c.UserContext(), service.LoginInput{
		Username: req.Username,
		Password: req.Password,
		ClientIP: c.IP(),
	})
	if err != nil {
		return h.mapError(err)
	}

	return c.JSON(dto.LoginResponse{
		Message:     "Login successful",
		Token:       res.Token.Token,
		ExpiresAt:   res.Token.ExpiresAt,
		OnlineCount: res.OnlineCount,
	})
}

// Verify handles GET /api/users/verify.
func (h *UsersHandler) Verify(c *fiber.Ctx) error {
	identity, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized()
	}
	return c.JSON(dto.VerifyResponse{
		Message: "Token is valid",
		User:    dto.UserView{ID: identity.UserID, Username: identity.Username},
	})
}

// Heartbeat handles POST /api/users/heartbeat.
func (h *UsersHandler) Heartbeat(c *fiber.Ctx) error {
	identity, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized()
	}
	return c.JSON(dto.HeartbeatResponse{
		Success:     true,
		OnlineCount: h.presence.Heartbeat(identity),
	})
}

// Logout handles POST /api/users/logout.
func (h *UsersHandler) Logout(c *fiber.Ctx) error {
	identity, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized()
	}
	h.presence.Logout(c.UserContext(), identity)
	return c.JSON(dto.MessageResponse{Message: "Logged out successfully"})
}

// Online handles GET /api/users/online.
func (h *UsersHandler) Online(c *fiber.Ctx) error {
	summary := h.presence.Summary()
	users := make([]dto.OnlineUser, 0, len(summary.Usernames))
	for _, name := range summary.Usernames {
		users = append(users, dto.OnlineUser{Username: name})
	}
	return c.JSON(dto.OnlineResponse{Count: summary.Count, Users: users})
}

func (h *UsersHandler) mapError(err error) error {
	switch {
	case errors.Is(err, service.ErrMissingCredentials):
		return apperrors.NewValidationError("Username and password are required", nil)
	case errors.Is(err, service.ErrUsernameTaken):
		return apperrors.NewUsernameTaken()
	case errors.Is(err, service.ErrWeakPassword):
		return apperrors.NewWeakPassword(h.minPasswordLength)
	case errors.Is(err, service.ErrInvalidCredentials):
		return apperrors.NewInvalidCredentials()
	case errors.Is(err, service.ErrTooManyAttempts):
		return apperrors.NewTooManyRequests("Too many login attempts")
	default:
		return apperrors.NewInternalError(err)
	}
}

// parseCredentials never fails: an empty or unparseable body yields empty
// credentials, which signup rejects as missing fields and login as invalid.
func parseCredentials(c *fiber.Ctx) dto.CredentialsRequest {
	var req dto.CredentialsRequest
	if len(c.Body()) == 0 {
		return req
	}
	if err := c.BodyParser(&req); err != nil {
		return dto.CredentialsRequest{}
	}
	return req
}
