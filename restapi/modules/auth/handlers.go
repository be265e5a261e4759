// Package auth provides authentication handlers for Fiber.
package auth

import (
	"context"
	"time"

	"github.com/arangodb/go-driver/v2/arangodb"
	"github.com/gofiber/fiber/v2"

	"github.com/vulnops/vulnmgt-backend/database"
	"github.com/vulnops/vulnmgt-backend/model"
)

// Login handles user login and sets auth cookie
func Login(db database.DBConnection) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req LoginRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}

		if req.Username == "" || req.Password == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Username and password are required"})
		}

		ctx := c.Context()
		user, err := getUserByUsername(ctx, db, req.Username)
		if err != nil || user == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid credentials"})
		}

		if !user.IsActive {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Account is inactive"})
		}

		if !CheckPasswordHash(req.Password, user.PasswordHash) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid credentials"})
		}

		token, err := GenerateJWT(user.Username, user.Role)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to generate token"})
		}

		SetAuthCookie(c, token)

		return c.JSON(fiber.Map{
			"message":  "Login successful",
			"username": user.Username,
			"email":    user.Email,
			"role":     user.Role,
		})
	}
}

// Logout clears the auth cookie
func Logout() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Cookie(&fiber.Cookie{
			Name:     "auth_token",
			Value:    "",
			Expires:  time.Now().Add(-1 * time.Hour),
			MaxAge:   -1,
			HTTPOnly: true,
			Secure:   false,
			SameSite: "Lax",
			Path:     "/",
		})
		return c.JSON(fiber.Map{"message": "Logged out successfully"})
	}
}

// Me returns current authenticated user info
func Me(db database.DBConnection) fiber.Handler {
	return func(c *fiber.Ctx) error {
		username, ok := c.Locals("username").(string)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Not authenticated"})
		}

		ctx := c.Context()
		user, err := getUserByUsername(ctx, db, username)
		if err != nil || user == nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch user profile"})
		}

		return c.JSON(fiber.Map{
			"username":   user.Username,
			"email":      user.Email,
			"role":       user.Role,
			"workgroups": user.Workgroups,
		})
	}
}

// BootstrapAdmin creates the initial admin account when the user collection
// is empty. Credentials come from ADMIN_USERNAME / ADMIN_PASSWORD; the call
// is a no-op once any user exists.
func BootstrapAdmin(ctx context.Context, db database.DBConnection, username, password string) error {
	if username == "" || password == "" {
		return nil
	}
	if err := ValidatePasswordStrength(password); err != nil {
		return err
	}

	query := `
		FOR u IN user
			LIMIT 1
			RETURN 1
	`
	cursor, err := db.Database.Query(ctx, query, &arangodb.QueryOptions{})
	if err != nil {
		return err
	}
	defer cursor.Close()
	if cursor.HasMore() {
		return nil
	}

	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	admin := model.NewUser(username, "", model.RoleAdmin)
	admin.PasswordHash = hash

	insert := `INSERT @doc INTO user`
	insertCursor, err := db.Database.Query(ctx, insert, &arangodb.QueryOptions{
		BindVars: map[string]interface{}{"doc": admin},
	})
	if err != nil {
		return err
	}
	return insertCursor.Close()
}

// SetAuthCookie writes the session cookie the middleware reads back.
func SetAuthCookie(c *fiber.Ctx, token string) {
	c.Cookie(&fiber.Cookie{
		Name:     "auth_token",
		Value:    token,
		HTTPOnly: true,
		Secure:   false,
		SameSite: "Lax",
		MaxAge:   86400,
		Path:     "/",
	})
}

func getUserByUsername(ctx context.Context, db database.DBConnection, username string) (*model.User, error) {
	query := `
		FOR u IN user
			FILTER u.username == @username
			LIMIT 1
			RETURN u
	`
	cursor, err := db.Database.Query(ctx, query, &arangodb.QueryOptions{
		BindVars: map[string]interface{}{"username": username},
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	if !cursor.HasMore() {
		return nil, nil
	}
	var user model.User
	if _, err := cursor.ReadDocument(ctx, &user); err != nil {
		return nil, err
	}
	return &user, nil
}
