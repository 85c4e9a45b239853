package middleware

import (
	"github.com/fadilmartias/questy/internal/apperr"
	"github.com/fadilmartias/questy/internal/gate"
	"github.com/fadilmartias/questy/internal/realm"
	"github.com/fadilmartias/questy/internal/util"
	"github.com/gofiber/fiber/v2"
)

const localsDecision = "gate_decision"

// RequireRole admits the request only when the device holds a session of
// role. Unauthenticated callers get 401 and wrong-role callers 403, both with
// the gate decision (redirect target included) as details.
func RequireRole(g *gate.Gate, role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		d, err := g.CheckRoute(c.UserContext(), Store(c), role, c.Path())
		if err != nil {
			return util.HandleError(c, err)
		}
		switch d.State {
		case gate.StateAuthenticated:
			c.Locals(localsDecision, d)
			return c.Next()
		case gate.StateWrongRole:
			return util.HandleError(c, apperr.Forbidden("You are signed in with a different role").WithDetails(d))
		}
		return util.HandleError(c, apperr.Auth("Please sign in to continue").WithDetails(d))
	}
}

// Identity returns the identity admitted by RequireRole.
func Identity(c *fiber.Ctx) *realm.Identity {
	d, ok := c.Locals(localsDecision).(gate.Decision)
	if !ok {
		return nil
	}
	return d.Identity
}

func AccessToken(c *fiber.Ctx) string {
	d, _ := c.Locals(localsDecision).(gate.Decision)
	return d.AccessToken
}
