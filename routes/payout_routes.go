package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/netkrida/myhome-sub004/auth"
	"github.com/netkrida/myhome-sub004/handlers"
	"github.com/netkrida/myhome-sub004/middleware"
)

func PayoutRoutes(app *fiber.App, h *handlers.PayoutHandler, secret string) {
	api := app.Group("/api/v1")
	protected := middleware.Protected(secret)
	superAdmin := middleware.RequireRoles(auth.RoleSuperAdmin)

	api.Get("/ledger/balance", protected, middleware.RequireRoles(auth.RoleAdminKos, auth.RoleSuperAdmin), h.GetBalance)

	payouts := api.Group("/payouts", protected)
	payouts.Post("", middleware.RequireRoles(auth.RoleAdminKos), h.RequestPayout)
	payouts.Get("", middleware.RequireRoles(auth.RoleAdminKos, auth.RoleSuperAdmin), h.ListPayouts)
	payouts.Post("/:id/approve", superAdmin, h.ApprovePayout)
	payouts.Post("/:id/reject", superAdmin, h.RejectPayout)
	payouts.Post("/:id/complete", superAdmin, h.CompletePayout)
}
