package websocket

import (
	"context"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/netkrida/myhome-sub004/events"
	"github.com/netkrida/myhome-sub004/models"
	"github.com/shopspring/decimal"
)

// Conn is the part of a websocket connection the hub writes to.
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

// Client is one browser tab waiting on the payment status of a booking.
type Client struct {
	BookingID uuid.UUID
	UserID    uuid.UUID
	Conn      Conn
}

type StatusMessage struct {
	Type          string          `json:"type"`
	BookingID     uuid.UUID       `json:"booking_id"`
	OrderID       string          `json:"order_id,omitempty"`
	PaymentStatus string          `json:"payment_status,omitempty"`
	BookingStatus string          `json:"booking_status"`
	PaidStatus    string          `json:"paid_status"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
}

type Hub struct {
	clients    map[uuid.UUID]map[*Client]struct{}
	clientsMu  sync.RWMutex
	Register   chan *Client
	Unregister chan *Client
	Broadcast  chan StatusMessage
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID]map[*Client]struct{}),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Broadcast:  make(chan StatusMessage, 256),
	}
}

var _ events.Sink = (*Hub)(nil)

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case client := <-h.Register:
			log.Printf("Client registered for booking %s: %s", client.BookingID, client.UserID)
			h.clientsMu.Lock()
			if h.clients[client.BookingID] == nil {
				h.clients[client.BookingID] = make(map[*Client]struct{})
			}
			h.clients[client.BookingID][client] = struct{}{}
			h.clientsMu.Unlock()
		case client := <-h.Unregister:
			log.Printf("Client unregistered for booking %s: %s", client.BookingID, client.UserID)
			h.remove(client)
		case message := <-h.Broadcast:
			h.clientsMu.RLock()
			var failed []*Client
			for client := range h.clients[message.BookingID] {
				if err := client.Conn.WriteJSON(message); err != nil {
					log.Printf("Error sending status to client %s: %v", client.UserID, err)
					failed = append(failed, client)
				}
			}
			h.clientsMu.RUnlock()
			for _, client := range failed {
				client.Conn.Close()
				h.remove(client)
			}
		}
	}
}

// Watching reports how many clients wait on a booking.
func (h *Hub) Watching(bookingID uuid.UUID) int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients[bookingID])
}

func (h *Hub) remove(client *Client) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	set, ok := h.clients[client.BookingID]
	if !ok {
		return
	}
	delete(set, client)
	if len(set) == 0 {
		delete(h.clients, client.BookingID)
	}
}

func (h *Hub) closeAll() {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	for id, set := range h.clients {
		for client := range set {
			client.Conn.Close()
		}
		delete(h.clients, id)
	}
}

// publish never blocks the caller; a full queue drops the message and the
// client falls back to polling.
func (h *Hub) publish(message StatusMessage) {
	select {
	case h.Broadcast <- message:
	default:
		log.Printf("⚠️ Status queue full, dropping update for booking %s", message.BookingID)
	}
}

func (h *Hub) PaymentUpdated(e events.PaymentEvent) {
	message := StatusMessage{
		Type:          "payment",
		BookingID:     e.Payment.BookingID,
		OrderID:       e.Payment.OrderID,
		PaymentStatus: string(e.Payment.Status),
	}
	if e.Booking.ID != uuid.Nil {
		message.BookingStatus = string(e.Booking.Status)
		message.PaidStatus = string(e.Booking.PaymentStatus)
		message.PaidAmount = e.Booking.PaidAmount
		message.TotalAmount = e.Booking.TotalAmount
	}
	h.publish(message)
}

func (h *Hub) BookingChanged(e events.BookingEvent) {
	h.publish(StatusMessage{
		Type:          "booking",
		BookingID:     e.Booking.ID,
		BookingStatus: string(e.Booking.Status),
		PaidStatus:    string(e.Booking.PaymentStatus),
		PaidAmount:    e.Booking.PaidAmount,
		TotalAmount:   e.Booking.TotalAmount,
	})
}

func (h *Hub) PayoutChanged(events.PayoutEvent) {}

// Snapshot is the first message a client receives after subscribing.
func Snapshot(b *models.Booking) StatusMessage {
	return StatusMessage{
		Type:          "snapshot",
		BookingID:     b.ID,
		BookingStatus: string(b.Status),
		PaidStatus:    string(b.PaymentStatus),
		PaidAmount:    b.PaidAmount,
		TotalAmount:   b.TotalAmount,
	}
}
