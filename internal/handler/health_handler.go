package handler

import (
	"github.com/gofiber/fiber/v2"
)

func RegisterHealthRoutes(app fiber.Router, version string) {
	app.Get("/health", HealthHandler())
	app.Get("/version", VersionHandler(version))
}

func HealthHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "ok",
		})
	}
}

func VersionHandler(version string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"version": version,
		})
	}
}
