package http

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/taxiportal/internal/core/usecases"
)

// SetPageLinks adds RFC 8288 Link headers for page-numbered results.
// extra is appended verbatim to every link's query string.
func SetPageLinks(c *fiber.Ctx, p usecases.Pagination, extra string) {
	base := c.Path()
	if extra != "" {
		extra = "&" + extra
	}
	link := func(page int, rel string) string {
		return fmt.Sprintf(`<%s?page=%d&limit=%d%s>; rel="%s"`, base, page, p.Limit, extra, rel)
	}

	last := p.TotalPages
	if last < 1 {
		last = 1
	}

	links := []string{link(1, "first")}
	if p.Page > 1 {
		prev := p.Page - 1
		if prev > last {
			prev = last
		}
		links = append(links, link(prev, "prev"))
	}
	if p.Page < last {
		links = append(links, link(p.Page+1, "next"))
	}
	links = append(links, link(last, "last"))

	c.Set("Link", strings.Join(links, ", "))
}
