package http

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// DeprecatedRoute marks an endpoint as deprecated with a sunset date.
type DeprecatedRoute struct {
	Path        string    // Route pattern, e.g. /v1/reservations/detail/:id
	SunsetDate  time.Time // Date when the endpoint will be removed
	Alternative string    // Successor pattern; params are filled from Path
}

// legacySunset is when the dashboard's legacy reservation paths go away.
var legacySunset = time.Date(2027, time.June, 30, 0, 0, 0, 0, time.UTC)

// LegacyRoutes are the reservation paths the first dashboard release called.
var LegacyRoutes = []DeprecatedRoute{
	{Path: "/v1/reservations/list", SunsetDate: legacySunset, Alternative: "/v1/reservations"},
	{Path: "/v1/reservations/detail/:id", SunsetDate: legacySunset, Alternative: "/v1/reservations/:id"},
	{Path: "/v1/reservations/cancel/:id", SunsetDate: legacySunset, Alternative: "/v1/reservations/:id/cancel"},
	{Path: "/v1/reservations/receipt/:id", SunsetDate: legacySunset, Alternative: "/v1/reservations/:id/receipt"},
}

// DeprecationMiddleware adds Deprecation, Sunset, Link and Warning headers to
// deprecated endpoints.
func DeprecationMiddleware(deprecated []DeprecatedRoute) fiber.Handler {
	return func(c *fiber.Ctx) error {
		for _, d := range deprecated {
			params, ok := matchPattern(c.Path(), d.Path)
			if !ok {
				continue
			}
			// RFC 8594
			c.Set("Deprecation", "true")
			c.Set("Sunset", d.SunsetDate.UTC().Format(time.RFC1123))

			// RFC 8288
			if d.Alternative != "" {
				c.Set("Link", fmt.Sprintf(`<%s>; rel="successor-version"`, fillPattern(d.Alternative, params)))
			}

			days := time.Until(d.SunsetDate).Hours() / 24
			c.Set("Warning", fmt.Sprintf(`299 - "Deprecated API, will sunset in %.0f days"`, days))
			break
		}

		return c.Next()
	}
}

// matchPattern matches path against a pattern of literal and :param
// segments, returning the captured params.
func matchPattern(path, pattern string) (map[string]string, bool) {
	ps := strings.Split(strings.Trim(path, "/"), "/")
	qs := strings.Split(strings.Trim(pattern, "/"), "/")
	if len(ps) != len(qs) {
		return nil, false
	}

	params := map[string]string{}
	for i, q := range qs {
		if strings.HasPrefix(q, ":") {
			if ps[i] == "" {
				return nil, false
			}
			params[q[1:]] = ps[i]
			continue
		}
		if q != ps[i] {
			return nil, false
		}
	}
	return params, true
}

func fillPattern(pattern string, params map[string]string) string {
	segs := strings.Split(pattern, "/")
	for i, s := range segs {
		if strings.HasPrefix(s, ":") {
			if v, ok := params[s[1:]]; ok {
				segs[i] = v
			}
		}
	}
	return strings.Join(segs, "/")
}
