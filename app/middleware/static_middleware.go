package middleware

import (
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
)

var imageExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".tif":  true,
	".tiff": true,
	".webp": true,
	".jp2":  true,
	".bin":  true,
}

// PlugStatic only lets extracted image files through under staticPrefix.
// Everything else under the prefix is answered with 404 before the static
// handler sees it.
func PlugStatic(staticPrefix string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		path := c.Path()

		if !strings.HasPrefix(path, staticPrefix) {
			return c.Next()
		}

		rest := strings.TrimPrefix(path, staticPrefix)
		if strings.Contains(rest, "..") || strings.Contains(rest, "/.") {
			return fiber.ErrNotFound
		}
		if !imageExts[strings.ToLower(filepath.Ext(rest))] {
			return fiber.ErrNotFound
		}

		return c.Next()
	}
}
