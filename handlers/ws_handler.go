package handlers

import (
	"context"
	"log"

	websocketcontrib "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/netkrida/myhome-sub004/middleware"
	"github.com/netkrida/myhome-sub004/services"
	"github.com/netkrida/myhome-sub004/websocket"
)

type authMessage struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// WebSocketUpgrade rejects plain HTTP requests on websocket routes.
func WebSocketUpgrade(c *fiber.Ctx) error {
	if websocketcontrib.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// PaymentStatusSocket streams payment and booking status for one booking.
// The first client message must be {"type":"auth","token":"..."}.
func PaymentStatusSocket(hub *websocket.Hub, bookings services.BookingService, secret string) func(*websocketcontrib.Conn) {
	return func(c *websocketcontrib.Conn) {
		bookingID, err := uuid.Parse(c.Params("bookingId"))
		if err != nil {
			_ = c.WriteJSON(fiber.Map{"error": "Invalid booking ID"})
			c.Close()
			return
		}

		var msg authMessage
		if err := c.ReadJSON(&msg); err != nil || msg.Type != "auth" {
			log.Printf("WebSocket auth failed: invalid or missing auth message, error: %v", err)
			_ = c.WriteJSON(fiber.Map{"error": "Invalid or missing auth message"})
			c.Close()
			return
		}
		actor, err := middleware.ParseToken(secret, msg.Token)
		if err != nil {
			log.Printf("WebSocket auth failed: %v", err)
			_ = c.WriteJSON(fiber.Map{"error": "Invalid token"})
			c.Close()
			return
		}

		booking, err := bookings.Get(context.Background(), actor, bookingID)
		if err != nil {
			_ = c.WriteJSON(fiber.Map{"error": err.Error()})
			c.Close()
			return
		}

		// The hub owns writes once the client is registered.
		if err := c.WriteJSON(websocket.Snapshot(booking)); err != nil {
			c.Close()
			return
		}
		client := &websocket.Client{BookingID: bookingID, UserID: actor.UserID, Conn: c}
		hub.Register <- client
		defer func() {
			hub.Unregister <- client
			c.Close()
		}()

		// Clients only listen; reading detects the close.
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				if !websocketcontrib.IsCloseError(err, websocketcontrib.CloseGoingAway, websocketcontrib.CloseNormalClosure, websocketcontrib.CloseAbnormalClosure) {
					log.Printf("WebSocket read error for booking %s: %v", bookingID, err)
				}
				return
			}
		}
	}
}
