package authsync

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// SnapshotSource supplies the current store state; *Store and
// *Orchestrator both satisfy it.
type SnapshotSource interface {
	Snapshot() State
}

// RouteGuard admits requests only while both a session and an identity are
// held. While the store is still loading it serves a retryable waiting
// response instead of redirecting, so an already-authenticated user never
// gets bounced to the sign-in page before the first session resolution.
// Rejected requests have their original location recorded in a cookie so
// the login flow can send the user back.
func RouteGuard(source SnapshotSource, cfg GuardConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		state := source.Snapshot()

		if state.Loading {
			c.Set(fiber.HeaderRetryAfter, "1")
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "loading",
			})
		}

		if !state.Authenticated() {
			SetRejectedRoute(c, cfg)
			return c.Redirect(cfg.GetSignInPath(), fiber.StatusSeeOther)
		}

		return c.Next()
	}
}

// SetRejectedRoute records the originally requested location.
func SetRejectedRoute(c *fiber.Ctx, cfg GuardConfig) {
	c.Cookie(&fiber.Cookie{
		Name:     cfg.GetRejectedRouteKey(),
		Value:    c.OriginalURL(),
		Path:     "/",
		Expires:  time.Now().Add(10 * time.Minute),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// GetRedirect returns the recorded location, falling back to the
// configured default, and clears the cookie.
func GetRedirect(c *fiber.Ctx, cfg GuardConfig) string {
	key := cfg.GetRejectedRouteKey()
	r := c.Cookies(key)
	if r == "" {
		return cfg.GetRejectedRouteDefault()
	}
	c.Cookie(&fiber.Cookie{
		Name:    key,
		Value:   "",
		Path:    "/",
		Expires: time.Now().Add(-time.Hour),
	})
	return r
}
