// controllers/activation_controller.go
package controllers

import (
	"crypto/subtle"
	"errors"
	"log"
	"net/http"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/refearnapp/refearn_backend/models"
	"github.com/refearnapp/refearn_backend/services"
)

// ActivationController receives activation callbacks from the payment
// collaborator and drives the commission engine.
type ActivationController struct {
	orchestrator *services.Orchestrator
	validate     *validator.Validate
	logger       *log.Logger
}

func NewActivationController(orchestrator *services.Orchestrator) *ActivationController {
	return &ActivationController{
		orchestrator: orchestrator,
		validate:     validator.New(),
		logger:       log.New(os.Stdout, "[ACTIVATION] ", log.LstdFlags),
	}
}

// HandleActivation processes one successful payment activation. Callers may
// retry freely: the activation event id makes the whole pipeline idempotent.
func (ac *ActivationController) HandleActivation(c echo.Context) error {
	secret := os.Getenv("ACTIVATION_WEBHOOK_SECRET")
	if secret != "" {
		provided := c.Request().Header.Get("X-Webhook-Secret")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
			return c.JSON(http.StatusUnauthorized, models.Response{
				Status:  http.StatusUnauthorized,
				Message: "Invalid webhook secret",
			})
		}
	}

	var req models.ActivationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if err := ac.validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Validation failed: " + err.Error(),
		})
	}

	userID, err := primitive.ObjectIDFromHex(req.UserID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid user ID format",
		})
	}

	// Callers that cannot supply an event id get a generated one; such
	// requests are not retry-safe and the caller owns that tradeoff.
	eventID := req.ActivationEventID
	if eventID == "" {
		eventID = uuid.NewString()
		ac.logger.Printf("activation for user %s arrived without an event id, generated %s", req.UserID, eventID)
	}

	if err := ac.orchestrator.ActivateUser(c.Request().Context(), userID, req.Amount, eventID); err != nil {
		if errors.Is(err, services.ErrAccountNotFound) {
			return c.JSON(http.StatusNotFound, models.Response{
				Status:  http.StatusNotFound,
				Message: "Account not found",
			})
		}
		ac.logger.Printf("activation %s failed: %v", eventID, err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Activation processing failed, safe to retry",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Activation processed",
		Data: map[string]string{
			"activationEventId": eventID,
		},
	})
}
