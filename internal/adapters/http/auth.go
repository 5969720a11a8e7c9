package http

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/taxiportal/internal/core/ports"
	"github.com/samirrijal/taxiportal/internal/pkg/logging"
)

const sessionLocal = "session"

type sessionCtxKey struct{}

// Authenticator validates access tokens.
type Authenticator interface {
	Authenticate(accessToken string) (ports.Session, error)
}

// AuthMiddleware requires a valid bearer access token and stores the
// caller's ports.Session in Locals and in the user context. WebSocket
// upgrades may pass the token as ?token= instead.
func AuthMiddleware(auth Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerToken(c.Get(fiber.HeaderAuthorization))
		if token == "" && websocket.IsWebSocketUpgrade(c) {
			token = c.Query("token")
		}
		if token == "" {
			return errUnauthorized(c, "missing bearer token")
		}

		s, err := auth.Authenticate(token)
		if err != nil {
			return errUnauthorized(c, "invalid or expired token")
		}

		c.Locals(sessionLocal, s)
		ctx := context.WithValue(c.UserContext(), sessionCtxKey{}, s)
		ctx = logging.WithLogger(ctx, logging.FromContext(ctx).With("user_id", s.UserID))
		c.SetUserContext(ctx)
		return c.Next()
	}
}

func bearerToken(h string) string {
	const prefix = "bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}

// session returns the authenticated caller. Only valid behind AuthMiddleware.
func session(c *fiber.Ctx) ports.Session {
	s, _ := c.Locals(sessionLocal).(ports.Session)
	return s
}

// sessionFromContext is used by GraphQL resolvers.
func sessionFromContext(ctx context.Context) (ports.Session, bool) {
	s, ok := ctx.Value(sessionCtxKey{}).(ports.Session)
	return s, ok && s.UserID != ""
}
