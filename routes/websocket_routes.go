package routes

import (
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/refearnapp/refearn_backend/websocket"
)

// RegisterWebSocketRoutes sets up the push channel. The initial upgrade is
// unauthenticated; clients authenticate in-band with an AUTH message.
func RegisterWebSocketRoutes(e *echo.Echo, hub *websocket.Hub) {
	e.GET("/api/ws", func(c echo.Context) error {
		return websocket.HandleWebSocket(c, hub, primitive.NilObjectID)
	})
}
