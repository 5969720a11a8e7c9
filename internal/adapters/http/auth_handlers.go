package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginHandler checks credentials and returns tokens or a 2FA challenge.
func LoginHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req loginRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if strings.TrimSpace(req.Email) == "" || req.Password == "" {
			return errBadRequest(c, "email and password are required")
		}
		res, err := deps.Auth.Login(c.UserContext(), req.Email, req.Password)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(res)
	}
}

type verifyRequest struct {
	TempToken string `json:"tempToken"`
	Code      string `json:"code"`
}

// VerifyTwoFactorHandler completes a two-factor login.
func VerifyTwoFactorHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req verifyRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if req.TempToken == "" || req.Code == "" {
			return errBadRequest(c, "tempToken and code are required")
		}
		res, err := deps.Auth.VerifyTwoFactor(c.UserContext(), req.TempToken, req.Code)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(res)
	}
}

// RefreshHandler exchanges a refresh token for a new token pair.
func RefreshHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req struct {
			RefreshToken string `json:"refreshToken"`
		}
		if err := c.BodyParser(&req); err != nil || req.RefreshToken == "" {
			return errBadRequest(c, "refreshToken is required")
		}
		tokens, err := deps.Auth.Refresh(c.UserContext(), req.RefreshToken)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(tokens)
	}
}

// ForgotPasswordHandler always answers 202 so accounts cannot be probed.
func ForgotPasswordHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req struct {
			Email string `json:"email"`
		}
		if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.Email) == "" {
			return errBadRequest(c, "email is required")
		}
		if err := deps.Auth.ForgotPassword(c.UserContext(), req.Email); err != nil {
			return errFromDomain(c, err)
		}
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"success": true})
	}
}

// ResetPasswordHandler sets a new password from an emailed reset token.
func ResetPasswordHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req struct {
			Token    string `json:"token"`
			Password string `json:"password"`
		}
		if err := c.BodyParser(&req); err != nil || req.Token == "" || req.Password == "" {
			return errBadRequest(c, "token and password are required")
		}
		if err := deps.Auth.ResetPassword(c.UserContext(), req.Token, req.Password); err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(fiber.Map{"success": true})
	}
}

// MeHandler returns the caller's account.
func MeHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		u, err := deps.Auth.Me(c.UserContext(), session(c).UserID)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(u)
	}
}

// UpdateProfileHandler changes name and phone.
func UpdateProfileHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req struct {
			Name  string `json:"name"`
			Phone string `json:"phone"`
		}
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		u, err := deps.Auth.UpdateProfile(c.UserContext(), session(c).UserID, req.Name, req.Phone)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(u)
	}
}

// ChangePasswordHandler replaces the password after checking the current one.
func ChangePasswordHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req struct {
			Current string `json:"currentPassword"`
			New     string `json:"newPassword"`
		}
		if err := c.BodyParser(&req); err != nil || req.Current == "" || req.New == "" {
			return errBadRequest(c, "currentPassword and newPassword are required")
		}
		if err := deps.Auth.ChangePassword(c.UserContext(), session(c).UserID, req.Current, req.New); err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(fiber.Map{"success": true})
	}
}

// EnableTwoFactorHandler emails a confirmation code. The optional email
// overrides the delivery address.
func EnableTwoFactorHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req struct {
			Email string `json:"email"`
		}
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return errBadRequest(c, "invalid request body")
			}
		}
		if err := deps.Auth.RequestEnableTwoFactor(c.UserContext(), session(c).UserID, req.Email); err != nil {
			return errFromDomain(c, err)
		}
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"success": true})
	}
}

// ConfirmTwoFactorHandler turns two-factor on once the code matches.
func ConfirmTwoFactorHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req struct {
			Code string `json:"code"`
		}
		if err := c.BodyParser(&req); err != nil || req.Code == "" {
			return errBadRequest(c, "code is required")
		}
		if err := deps.Auth.ConfirmEnableTwoFactor(c.UserContext(), session(c).UserID, req.Code); err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(fiber.Map{"success": true})
	}
}

// DisableTwoFactorHandler turns two-factor off after a password check.
func DisableTwoFactorHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req struct {
			Password string `json:"password"`
		}
		if err := c.BodyParser(&req); err != nil || req.Password == "" {
			return errBadRequest(c, "password is required")
		}
		if err := deps.Auth.DisableTwoFactor(c.UserContext(), session(c).UserID, req.Password); err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(fiber.Map{"success": true})
	}
}
