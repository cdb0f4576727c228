package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/refearnapp/refearn_backend/controllers"
)

// RegisterPaymentRoutes sets up the activation callback route. It is not
// behind the JWT middleware; the controller verifies the webhook secret.
func RegisterPaymentRoutes(e *echo.Echo, activationController *controllers.ActivationController) {
	e.POST("/api/payments/activation", activationController.HandleActivation)
}
