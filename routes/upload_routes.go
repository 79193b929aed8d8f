package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/netkrida/myhome-sub004/auth"
	"github.com/netkrida/myhome-sub004/handlers"
	"github.com/netkrida/myhome-sub004/middleware"
)

func UploadRoutes(app *fiber.App, h *handlers.UploadHandler, secret string) {
	uploads := app.Group("/api/v1/uploads", middleware.Protected(secret), middleware.RequireRoles(auth.RoleAdminKos, auth.RoleSuperAdmin))
	uploads.Get("/signature", h.GenerateUploadSignature)
}
