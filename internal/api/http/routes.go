package httpapi

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/earwax-monitoring/internal/earwax"
)

// timestampLayout is the "YYYY-MM-DD HH:MM:SS" form clients expect in last_updated.
const timestampLayout = "2006-01-02 15:04:05"

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *earwax.Service) {
	app.Get("/get_earwax_level", func(c *fiber.Ctx) error {
		obs, ok, err := service.Latest(c.UserContext())
		if err != nil {
			return errorJSON(c, fiber.StatusInternalServerError, err)
		}
		if !ok {
			return c.JSON(fiber.Map{
				"earwax_percentage": 0,
				"last_updated":      service.Now().Format(timestampLayout),
			})
		}

		return c.JSON(fiber.Map{
			"earwax_percentage": obs.EarwaxPercentage,
			"last_updated":      obs.RecordedAt.In(service.TimeZone()).Format(timestampLayout),
		})
	})

	app.Get("/reset_earwax", func(c *fiber.Ctx) error {
		if _, err := service.Reset(c.UserContext()); err != nil {
			return errorJSON(c, fiber.StatusInternalServerError, err)
		}
		return c.JSON(fiber.Map{
			"message":           "Reset successful",
			"earwax_percentage": 0,
		})
	})

	v1 := app.Group("/api/v1")

	v1.Get("/earwax/latest", func(c *fiber.Ctx) error {
		obs, ok, err := service.Latest(c.UserContext())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read latest observation")
		}
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "no observations recorded yet")
		}
		return c.JSON(obs)
	})

	v1.Post("/earwax/cycle", func(c *fiber.Ctx) error {
		res, err := service.RunCycle(c.UserContext())
		if err != nil {
			status := fiber.StatusInternalServerError
			if errors.Is(err, earwax.ErrFetchFailure) {
				status = fiber.StatusBadGateway
			}
			return errorJSON(c, status, err)
		}
		return c.JSON(res)
	})
}

// ErrorHandler renders errors as {"error": message}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

func errorJSON(c *fiber.Ctx, status int, err error) error {
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
