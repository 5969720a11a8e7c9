package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/taxiportal/internal/core/usecases"
)

// StartWizardHandler opens a new reservation wizard at step 0.
func StartWizardHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		snap := deps.Wizards.Start(session(c))
		c.Location("/v1/wizards/" + snap.ID)
		return c.Status(fiber.StatusCreated).JSON(snap)
	}
}

// GetWizardHandler returns the wizard state.
func GetWizardHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		snap, err := deps.Wizards.Get(session(c), c.Params("id"))
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(snap)
	}
}

// UpdateWizardHandler applies draft changes. Fields left out are untouched.
func UpdateWizardHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var u usecases.WizardUpdate
		if err := c.BodyParser(&u); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		snap, err := deps.Wizards.Update(c.UserContext(), session(c), c.Params("id"), u)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(snap)
	}
}

// AdvanceWizardHandler validates the current step and moves forward. On the
// confirmation step it submits the reservation.
func AdvanceWizardHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		snap, err := deps.Wizards.Advance(c.UserContext(), session(c), c.Params("id"))
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(snap)
	}
}

// RetreatWizardHandler moves back one step.
func RetreatWizardHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		snap, err := deps.Wizards.Retreat(session(c), c.Params("id"))
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(snap)
	}
}

// JumpWizardHandler moves to an already visited step.
func JumpWizardHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req struct {
			Step *int `json:"step"`
		}
		if err := c.BodyParser(&req); err != nil || req.Step == nil {
			return errBadRequest(c, "step is required")
		}
		snap, err := deps.Wizards.JumpTo(session(c), c.Params("id"), *req.Step)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(snap)
	}
}

// ResetWizardHandler clears the draft and returns to step 0.
func ResetWizardHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		snap, err := deps.Wizards.Reset(session(c), c.Params("id"))
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(snap)
	}
}

// DiscardWizardHandler drops the wizard.
func DiscardWizardHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Wizards.Discard(session(c), c.Params("id")); err != nil {
			return errFromDomain(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
