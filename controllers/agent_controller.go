// controllers/agent_controller.go
package controllers

import (
	"errors"
	"log"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"

	"github.com/refearnapp/refearn_backend/models"
	"github.com/refearnapp/refearn_backend/repositories"
	"github.com/refearnapp/refearn_backend/services"
	"github.com/refearnapp/refearn_backend/utils"
)

// AgentController serves the authenticated agent's reporting views.
type AgentController struct {
	accounts    *repositories.AccountRepository
	edges       *repositories.EdgeRepository
	ledger      *services.CommissionLedger
	progression *services.TierProgression
	logger      *log.Logger
}

func NewAgentController(accounts *repositories.AccountRepository, edges *repositories.EdgeRepository, ledger *services.CommissionLedger, progression *services.TierProgression) *AgentController {
	return &AgentController{
		accounts:    accounts,
		edges:       edges,
		ledger:      ledger,
		progression: progression,
		logger:      log.New(os.Stdout, "[AGENT] ", log.LstdFlags),
	}
}

// GetLedger returns the agent's commission history, rejections included.
func (ac *AgentController) GetLedger(c echo.Context) error {
	accountID, err := utils.GetAccountIDFromToken(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Unauthorized",
		})
	}

	events, err := ac.ledger.Ledger(c.Request().Context(), accountID)
	if err != nil {
		ac.logger.Printf("ledger lookup failed for %s: %v", accountID.Hex(), err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to retrieve ledger",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Ledger retrieved",
		Data:    events,
	})
}

// GetTierStatus returns the agent's current challenge window and deficit.
func (ac *AgentController) GetTierStatus(c echo.Context) error {
	accountID, err := utils.GetAccountIDFromToken(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Unauthorized",
		})
	}

	status, err := ac.progression.TierStatus(c.Request().Context(), accountID)
	if err != nil {
		if errors.Is(err, services.ErrAccountNotFound) {
			return c.JSON(http.StatusNotFound, models.Response{
				Status:  http.StatusNotFound,
				Message: "Account not found",
			})
		}
		ac.logger.Printf("tier status lookup failed for %s: %v", accountID.Hex(), err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to retrieve tier status",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Tier status retrieved",
		Data:    status,
	})
}

// GetChallengeHistory returns the agent's closed challenge attempts.
func (ac *AgentController) GetChallengeHistory(c echo.Context) error {
	accountID, err := utils.GetAccountIDFromToken(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Unauthorized",
		})
	}

	attempts, err := ac.progression.ChallengeHistory(c.Request().Context(), accountID)
	if err != nil {
		ac.logger.Printf("challenge history lookup failed for %s: %v", accountID.Hex(), err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to retrieve challenge history",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Challenge history retrieved",
		Data:    attempts,
	})
}

// GetReferralData returns the agent's referral code, link, direct referral
// count, and balances.
func (ac *AgentController) GetReferralData(c echo.Context) error {
	accountID, err := utils.GetAccountIDFromToken(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Unauthorized",
		})
	}

	ctx := c.Request().Context()

	account, err := ac.accounts.Account(ctx, accountID)
	if err != nil {
		if errors.Is(err, services.ErrAccountNotFound) {
			return c.JSON(http.StatusNotFound, models.Response{
				Status:  http.StatusNotFound,
				Message: "Account not found",
			})
		}
		ac.logger.Printf("account lookup failed for %s: %v", accountID.Hex(), err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to retrieve referral data",
		})
	}

	count, err := ac.edges.CountByReferrer(ctx, accountID)
	if err != nil {
		ac.logger.Printf("referral count failed for %s: %v", accountID.Hex(), err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to retrieve referral data",
		})
	}

	baseURL := os.Getenv("APP_BASE_URL")
	if baseURL == "" {
		baseURL = "https://refearn.app"
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Referral data retrieved",
		Data: models.ReferralDataResponse{
			ReferralCode:  account.ReferralCode,
			ReferralCount: count,
			Balance:       account.Balance,
			TotalEarned:   account.TotalEarned,
			ReferralLink:  baseURL + "/register?ref=" + account.ReferralCode,
		},
	})
}
