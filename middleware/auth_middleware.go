package middleware

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	jwtware "github.com/gofiber/jwt/v3"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/netkrida/myhome-sub004/auth"
)

const actorKey = "actor"

var errInvalidClaims = errors.New("invalid token claims")

// Protected verifies the bearer token and stores the caller as an auth.Actor.
func Protected(secret string) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey:     []byte(secret),
		SigningMethod:  "HS256",
		SuccessHandler: storeActor,
		ErrorHandler:   jwtError,
	})
}

func storeActor(c *fiber.Ctx) error {
	token, ok := c.Locals("user").(*jwt.Token)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "Invalid or expired JWT")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "Invalid or expired JWT")
	}
	actor, err := ActorFromClaims(claims)
	if err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, err.Error())
	}
	c.Locals(actorKey, actor)
	return c.Next()
}

func jwtError(c *fiber.Ctx, err error) error {
	if err.Error() == "Missing or malformed JWT" {
		return fiber.NewError(fiber.StatusBadRequest, "Missing or malformed JWT")
	}
	return fiber.NewError(fiber.StatusUnauthorized, "Invalid or expired JWT")
}

// ActorFromClaims reads user_id, role and the optional property_id claim.
// The SYSTEM role is reserved for in-process callers and never accepted
// from a token.
func ActorFromClaims(claims jwt.MapClaims) (auth.Actor, error) {
	rawID, _ := claims["user_id"].(string)
	userID, err := uuid.Parse(rawID)
	if err != nil {
		return auth.Actor{}, fmt.Errorf("%w: user_id", errInvalidClaims)
	}
	rawRole, _ := claims["role"].(string)
	role := auth.Role(strings.ToUpper(rawRole))
	if !role.Valid() || role == auth.RoleSystem {
		return auth.Actor{}, fmt.Errorf("%w: role", errInvalidClaims)
	}

	actor := auth.Actor{UserID: userID, Role: role}
	if rawProperty, ok := claims["property_id"].(string); ok && rawProperty != "" {
		propertyID, err := uuid.Parse(rawProperty)
		if err != nil {
			return auth.Actor{}, fmt.Errorf("%w: property_id", errInvalidClaims)
		}
		actor.PropertyID = &propertyID
	}
	return actor, nil
}

// ParseToken verifies a raw token outside the HTTP middleware chain, for
// websocket clients that authenticate with their first message.
func ParseToken(secret, tokenString string) (auth.Actor, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return auth.Actor{}, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return auth.Actor{}, errors.New("invalid token")
	}
	return ActorFromClaims(claims)
}

// ActorFrom returns the caller stored by Protected.
func ActorFrom(c *fiber.Ctx) auth.Actor {
	actor, _ := c.Locals(actorKey).(auth.Actor)
	return actor
}

// RequireRoles rejects callers whose role is not listed.
func RequireRoles(roles ...auth.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !ActorFrom(c).Is(roles...) {
			return fiber.NewError(fiber.StatusForbidden, "your role cannot perform this action")
		}
		return c.Next()
	}
}
