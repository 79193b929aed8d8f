package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/netkrida/myhome-sub004/auth"
	"github.com/netkrida/myhome-sub004/handlers"
	"github.com/netkrida/myhome-sub004/middleware"
)

func PaymentRoutes(app *fiber.App, h *handlers.PaymentHandler, secret string) {
	api := app.Group("/api/v1")
	protected := middleware.Protected(secret)
	customer := middleware.RequireRoles(auth.RoleCustomer)

	// The gateway authenticates with the notification signature, not a JWT.
	api.Post("/payments/webhook", h.HandleWebhook)

	api.Post("/payments", protected, customer, h.CreatePayment)
	api.Post("/payments/void", protected, customer, h.VoidPayment)
	api.Post("/payments/confirm", protected, customer, h.ConfirmPayment)
	api.Get("/payments/:orderId/receipt", protected, middleware.RequireRoles(auth.RoleCustomer, auth.RoleAdminKos, auth.RoleSuperAdmin), h.GetReceipt)
}
