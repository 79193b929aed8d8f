package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/netkrida/myhome-sub004/auth"
	"github.com/netkrida/myhome-sub004/handlers"
	"github.com/netkrida/myhome-sub004/middleware"
)

func BookingRoutes(app *fiber.App, h *handlers.BookingHandler, secret string) {
	api := app.Group("/api/v1")

	booking := api.Group("/bookings", middleware.Protected(secret))
	booking.Post("", middleware.RequireRoles(auth.RoleCustomer), h.CreateBooking)
	booking.Get("/:id", h.GetBooking)
	booking.Get("/:id/payments", h.ListBookingPayments)
	booking.Post("/:id/cancel", middleware.RequireRoles(auth.RoleCustomer, auth.RoleAdminKos, auth.RoleSuperAdmin), h.Cancel())

	operator := middleware.RequireRoles(auth.RoleAdminKos, auth.RoleReceptionist, auth.RoleSuperAdmin)
	booking.Post("/:id/check-in", operator, h.CheckIn())
	booking.Post("/:id/check-out", operator, h.CheckOut())
	booking.Post("/:id/validate", operator, h.Validate())
	booking.Post("/:id/complete", middleware.RequireRoles(auth.RoleAdminKos, auth.RoleSuperAdmin), h.Complete())

	booking.Get("/:id/extension", middleware.RequireRoles(auth.RoleCustomer), h.QuoteExtension)
	booking.Post("/:id/extension", middleware.RequireRoles(auth.RoleCustomer), h.ApplyExtension)
}
