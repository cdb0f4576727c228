package websocket

import (
	"fmt"
	"log"
	"sync"

	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/refearnapp/refearn_backend/models"
	"github.com/refearnapp/refearn_backend/services"
)

// Define notification types
const (
	NotificationTypeCommissionPosted = "commission_posted"
	NotificationTypeTierChanged      = "tier_changed"
)

// Notification represents a message sent over WebSocket
type Notification struct {
	Type         string      `json:"type"`
	Message      string      `json:"message"`
	Data         interface{} `json:"data,omitempty"`
	UserID       string      `json:"userID,omitempty"`
	RequiresAuth bool        `json:"requiresAuth,omitempty"`
}

// Client represents a connected WebSocket client
type Client struct {
	AccountID     primitive.ObjectID
	Conn          *websocket.Conn
	Authenticated bool
}

// Hub maintains the set of active clients and broadcasts messages
type Hub struct {
	clients                map[primitive.ObjectID]*Client
	unauthenticatedClients map[*Client]bool
	register               chan *Client
	unregister             chan *Client
	mu                     sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		clients:                make(map[primitive.ObjectID]*Client),
		unauthenticatedClients: make(map[*Client]bool),
		register:               make(chan *Client),
		unregister:             make(chan *Client),
	}
}

// Run starts the hub's event loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if client.Authenticated && client.AccountID != primitive.NilObjectID {
				h.clients[client.AccountID] = client
			} else {
				h.unauthenticatedClients[client] = true
			}
			h.mu.Unlock()
		case client := <-h.unregister:
			h.mu.Lock()
			if client.Authenticated && client.AccountID != primitive.NilObjectID {
				if _, ok := h.clients[client.AccountID]; ok {
					delete(h.clients, client.AccountID)
				}
			} else {
				delete(h.unauthenticatedClients, client)
			}
			client.Conn.Close()
			h.mu.Unlock()
		}
	}
}

// SendToAccount sends a message to a specific connected account
func (h *Hub) SendToAccount(accountID primitive.ObjectID, notification Notification) error {
	h.mu.RLock()
	client, ok := h.clients[accountID]
	h.mu.RUnlock()

	if !ok {
		return fmt.Errorf("account not connected")
	}

	return client.Conn.WriteJSON(notification)
}

// AuthenticateClient moves a client from unauthenticated to authenticated state
func (h *Hub) AuthenticateClient(client *Client, accountID primitive.ObjectID) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Remove from unauthenticated clients
	if _, ok := h.unauthenticatedClients[client]; ok {
		delete(h.unauthenticatedClients, client)
	}

	// Set client as authenticated
	client.Authenticated = true
	client.AccountID = accountID

	// Add to authenticated clients
	h.clients[accountID] = client

	return nil
}

// EngineNotifier adapts the hub to the push contract the orchestrator
// expects. Sends are fire-and-forget; a disconnected recipient is not an
// error worth surfacing to settlement.
type EngineNotifier struct {
	hub *Hub
}

func NewEngineNotifier(hub *Hub) *EngineNotifier {
	return &EngineNotifier{hub: hub}
}

func (n *EngineNotifier) CommissionPosted(recipientID primitive.ObjectID, event models.CommissionEvent) {
	go func() {
		notification := Notification{
			Type:    NotificationTypeCommissionPosted,
			Message: fmt.Sprintf("Commission of $%.2f posted", event.Amount),
			Data:    event,
		}
		if err := n.hub.SendToAccount(recipientID, notification); err == nil {
			return
		}
		// Not connected; the ledger remains the source of truth.
	}()
}

func (n *EngineNotifier) TierChanged(agentID primitive.ObjectID, transition services.TierTransition) {
	go func() {
		notification := Notification{
			Type:    NotificationTypeTierChanged,
			Message: fmt.Sprintf("Tier update: %s", transition.Kind),
			Data:    transition,
		}
		if err := n.hub.SendToAccount(agentID, notification); err != nil {
			log.Printf("websocket: tier push to %s skipped: %v", agentID.Hex(), err)
		}
	}()
}
