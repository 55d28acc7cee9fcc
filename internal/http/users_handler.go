package http

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/crypto"

	"chatlytics/internal/users"
)

// ProcessLoginAction handles the JSON login endpoint.
func ProcessLoginAction(ctx *cartridge.Context) error {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := ctx.BodyParser(&body); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	}
	if body.Email == "" || body.Password == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Email and password are required"})
	}

	db := ctx.DB()
	user, findErr := users.FindByEmail(db, body.Email)

	// Always verify a password so the response time does not reveal whether
	// the email exists
	var passwordValid bool
	if findErr != nil {
		ctx.Logger.Debug("User not found during login", slog.String("email", body.Email))
		dummyHash := "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy" // bcrypt hash of "dummy"
		crypto.VerifyPassword(dummyHash, body.Password)
		passwordValid = false
	} else {
		passwordValid = crypto.VerifyPassword(user.EncryptedPassword, body.Password)
		if !passwordValid {
			ctx.Logger.Debug("Invalid password attempt", slog.String("email", body.Email))
		}
	}

	if !passwordValid {
		// Generic message - don't reveal whether the email exists
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid email or password"})
	}

	if err := ctx.Session.SetSession(ctx.Ctx, user.ID); err != nil {
		ctx.Logger.Error("Failed to set session", slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Login failed"})
	}

	ctx.Logger.Debug("Login successful",
		slog.String("email", body.Email),
		slog.Int("userId", int(user.ID)))

	return ctx.JSON(fiber.Map{
		"id":    user.ID,
		"email": user.Email,
		"role":  user.Role,
	})
}

// LogoutAction clears the session cookie.
func LogoutAction(ctx *cartridge.Context) error {
	ctx.Session.ClearSession(ctx.Ctx)
	return ctx.JSON(fiber.Map{"message": "Logged out"})
}
