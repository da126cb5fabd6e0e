package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/presence-auth-service/internal/domain"
	apperrors "github.com/spec-kit/presence-auth-service/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// ActivityRecorder is notified whenever a request authenticates successfully.
type ActivityRecorder interface {
	RecordActivity(identity domain.Identity)
}

// AuthMiddleware validates bearer tokens and records caller activity.
type AuthMiddleware struct {
	tokens   *TokenManager
	activity ActivityRecorder
}

// NewAuthMiddleware constructs middleware. activity may be nil.
func NewAuthMiddleware(tokens *TokenManager, activity ActivityRecorder) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, activity: activity}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	identity, err := m.Authenticate(c.Get(fiber.HeaderAuthorization))
	if err != nil {
		return apperrors.NewUnauthorized()
	}

	if m.activity != nil {
		m.activity.RecordActivity(identity)
	}

	c.Locals(principalKey, identity)
	return c.Next()
}

// Authenticate resolves an Authorization header value to an identity.
func (m *AuthMiddleware) Authenticate(authHeader string) (domain.Identity, error) {
	if authHeader == "" {
		return domain.Identity{}, ErrInvalidToken
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return domain.Identity{}, ErrInvalidToken
	}

	claims, err := m.tokens.ParseToken(strings.TrimSpace(parts[1]))
	if err != nil {
		return domain.Identity{}, err
	}
	return claims.Identity(), nil
}

// PrincipalFromContext retrieves the authenticated identity.
func PrincipalFromContext(c *fiber.Ctx) (domain.Identity, bool) {
	identity, ok := c.Locals(principalKey).(domain.Identity)
	return identity, ok
}
