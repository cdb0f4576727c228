package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/refearnapp/refearn_backend/controllers"
	"github.com/refearnapp/refearn_backend/middleware"
)

// RegisterAgentRoutes sets up the authenticated agent reporting routes
func RegisterAgentRoutes(e *echo.Echo, agentController *controllers.AgentController) {
	agent := e.Group("/api/agent")
	agent.Use(middleware.JWTMiddleware())

	agent.GET("/ledger", agentController.GetLedger)
	agent.GET("/tier-status", agentController.GetTierStatus)
	agent.GET("/challenge-history", agentController.GetChallengeHistory)
	agent.GET("/referral-data", agentController.GetReferralData)
}
