package tracking

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes mounts the session control and sensor ingest API. The
// group is expected to be mounted at /sessions.
func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		var req struct {
			BodyMassKg float64 `json:"body_mass_kg"`
			LoadMassKg float64 `json:"load_mass_kg"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		snap, err := svc.Create(c.Context(), req.BodyMassKg, req.LoadMassKg)
		if err != nil {
			return httpError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(snap)
	})

	r.Get("/current", func(c *fiber.Ctx) error {
		snap, err := svc.Current(c.Context())
		if err != nil {
			return httpError(err)
		}
		return c.JSON(snap)
	})

	r.Post("/:id/start", authMiddleware, func(c *fiber.Ctx) error {
		snap, err := svc.Start(c.Context(), c.Params("id"))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(snap)
	})

	r.Post("/:id/pause", authMiddleware, func(c *fiber.Ctx) error {
		snap, err := svc.Pause(c.Context(), c.Params("id"))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(snap)
	})

	r.Post("/:id/resume", authMiddleware, func(c *fiber.Ctx) error {
		snap, err := svc.Resume(c.Context(), c.Params("id"))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(snap)
	})

	r.Post("/:id/complete", authMiddleware, func(c *fiber.Ctx) error {
		var req struct {
			Notes  string `json:"notes"`
			Rating int    `json:"rating"`
		}
		if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		snap, err := svc.Complete(c.Context(), c.Params("id"), req.Notes, req.Rating)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(snap)
	})

	r.Post("/:id/location", authMiddleware, func(c *fiber.Ctx) error {
		var point LocationPoint
		if err := c.BodyParser(&point); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		snap, err := svc.Location(c.Context(), c.Params("id"), point)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(snap)
	})

	r.Post("/:id/heartrate", authMiddleware, func(c *fiber.Ctx) error {
		var sample HeartRateSample
		if err := c.BodyParser(&sample); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if sample.BPM <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "bpm must be positive")
		}
		snap, err := svc.HeartRate(c.Context(), c.Params("id"), sample)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(snap)
	})

	r.Post("/:id/watchfail", authMiddleware, func(c *fiber.Ctx) error {
		var req struct {
			Reason string `json:"reason"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		snap, err := svc.WatchFailed(c.Context(), c.Params("id"), req.Reason)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(snap)
	})
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidMass):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, ErrSessionExists), errors.Is(err, ErrSessionCompleted):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, ErrNoActiveSession), errors.Is(err, ErrSessionNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
