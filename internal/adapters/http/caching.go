package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

type cacheRule struct {
	prefix string
	exact  bool
	value  string
}

// cacheRules is matched top to bottom. Reference data (locations, the
// service area) is shared; everything tied to a passenger is private.
var cacheRules = []cacheRule{
	{prefix: "/v1/health", exact: true, value: "public, max-age=10"},
	{prefix: "/v1/ready", exact: true, value: "no-cache"},
	{prefix: "/metrics", exact: true, value: "no-cache"},
	{prefix: "/v1/service-area", exact: true, value: "public, max-age=3600"},
	{prefix: "/v1/locations", value: "public, max-age=600"},
	{prefix: "/docs", value: "public, max-age=300"},
	{prefix: "/v1/", value: "private, no-store"},
}

func cachePolicy(path string) string {
	for _, r := range cacheRules {
		if r.exact && path == r.prefix {
			return r.value
		}
		if !r.exact && strings.HasPrefix(path, r.prefix) {
			return r.value
		}
	}
	return ""
}

// CachingMiddleware applies cacheRules to GET responses whose handler did
// not choose a Cache-Control of its own.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()
		if c.Method() != fiber.MethodGet || c.GetRespHeader(fiber.HeaderCacheControl) != "" {
			return err
		}

		policy := cachePolicy(c.Path())
		if policy == "" {
			return err
		}
		c.Set(fiber.HeaderCacheControl, policy)
		if strings.HasPrefix(policy, "private") {
			c.Vary(fiber.HeaderAuthorization)
		}
		return err
	}
}
