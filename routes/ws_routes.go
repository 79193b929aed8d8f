package routes

import (
	websocketcontrib "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/netkrida/myhome-sub004/handlers"
	"github.com/netkrida/myhome-sub004/services"
	"github.com/netkrida/myhome-sub004/websocket"
)

// WebSocketRoutes authenticates inside the socket, so no JWT middleware runs here.
func WebSocketRoutes(app *fiber.App, hub *websocket.Hub, bookings services.BookingService, secret string) {
	ws := app.Group("/api/v1/ws", handlers.WebSocketUpgrade)
	ws.Get("/payments/:bookingId", websocketcontrib.New(handlers.PaymentStatusSocket(hub, bookings, secret)))
}
