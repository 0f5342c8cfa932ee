package middleware

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

// APIVersionKey is the echo context key holding the resolved version.
const APIVersionKey = "api_version"

// APIVersion describes one supported API version
type APIVersion struct {
	Version    string     `json:"version"`
	Deprecated bool       `json:"deprecated"`
	SunsetDate *time.Time `json:"sunset_date,omitempty"`
}

// VersionMiddleware mounts versioned route groups and rejects requests for
// versions the server does not serve.
type VersionMiddleware struct {
	versions map[string]APIVersion
	fallback string
}

// NewVersionMiddleware creates a new version middleware
func NewVersionMiddleware() *VersionMiddleware {
	return &VersionMiddleware{
		versions: map[string]APIVersion{"v1": {Version: "v1"}},
		fallback: "v1",
	}
}

// VersionRoute returns the /{version} group; every response from it carries
// X-API-Version and, once deprecated, the sunset date.
func (vm *VersionMiddleware) VersionRoute(e *echo.Echo, version string) *echo.Group {
	group := e.Group("/" + version)
	group.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("X-API-Version", version)
			if v, ok := vm.versions[version]; ok && v.Deprecated {
				h.Set("X-API-Deprecated", "true")
				if v.SunsetDate != nil {
					h.Set("X-API-Sunset", v.SunsetDate.Format(time.RFC3339))
				}
			}
			return next(c)
		}
	})
	return group
}

// APIVersionResolver stores the requested version under APIVersionKey and
// answers 404 for unknown ones.
func (vm *VersionMiddleware) APIVersionResolver() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			requested := extractVersionFromPath(c.Request().URL.Path)
			if requested == "" {
				c.Set(APIVersionKey, vm.fallback)
				return next(c)
			}
			if _, ok := vm.versions[requested]; !ok {
				return c.JSON(http.StatusNotFound, map[string]string{
					"error":              "Unsupported API version",
					"supported_versions": strings.Join(vm.supported(), ", "),
				})
			}
			c.Set(APIVersionKey, requested)
			return next(c)
		}
	}
}

// extractVersionFromPath returns "vN" for paths whose first segment is vN.
func extractVersionFromPath(path string) string {
	segment, _, _ := strings.Cut(strings.TrimPrefix(path, "/"), "/")
	if len(segment) < 2 || segment[0] != 'v' {
		return ""
	}
	if n, err := strconv.Atoi(segment[1:]); err == nil && n > 0 {
		return "v" + strconv.Itoa(n)
	}
	return ""
}

func (vm *VersionMiddleware) supported() []string {
	out := make([]string, 0, len(vm.versions))
	for v := range vm.versions {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
