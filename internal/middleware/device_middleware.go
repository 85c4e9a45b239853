package middleware

import (
	"github.com/fadilmartias/questy/internal/localstore"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	HeaderDeviceID = "X-Device-ID"

	localsDeviceID = "device_id"
	localsStore    = "device_store"
)

// Device resolves the caller's device store from the X-Device-ID header. A
// missing or malformed id is replaced by a fresh one, echoed back in the
// response header so the client can keep it.
func Device(provider localstore.Provider) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(HeaderDeviceID)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set(HeaderDeviceID, id)
		c.Locals(localsDeviceID, id)
		c.Locals(localsStore, provider.Device(id))
		return c.Next()
	}
}

func DeviceID(c *fiber.Ctx) string {
	id, _ := c.Locals(localsDeviceID).(string)
	return id
}

// Store returns the device store put in place by Device.
func Store(c *fiber.Ctx) localstore.Store {
	s, _ := c.Locals(localsStore).(localstore.Store)
	return s
}
