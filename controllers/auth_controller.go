// controllers/auth_controller.go
package controllers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/refearnapp/refearn_backend/middleware"
	"github.com/refearnapp/refearn_backend/models"
	"github.com/refearnapp/refearn_backend/repositories"
	"github.com/refearnapp/refearn_backend/services"
	"github.com/refearnapp/refearn_backend/utils"
)

// BurstRecorder feeds new referral edges into the fraud gate's signup
// velocity counter.
type BurstRecorder interface {
	Record(ctx context.Context, referrerID primitive.ObjectID, at time.Time) error
}

// AuthController contains authentication logic
type AuthController struct {
	accounts *repositories.AccountRepository
	edges    *repositories.EdgeRepository
	burst    BurstRecorder
	validate *validator.Validate
	logger   *log.Logger
}

// NewAuthController creates a new auth controller
func NewAuthController(accounts *repositories.AccountRepository, edges *repositories.EdgeRepository, burst BurstRecorder) *AuthController {
	return &AuthController{
		accounts: accounts,
		edges:    edges,
		burst:    burst,
		validate: validator.New(),
		logger:   log.New(os.Stdout, "[AUTH] ", log.LstdFlags),
	}
}

// Register handler. A valid referral code links the new account into the
// referral graph; commissions flow only after the account later activates.
func (ac *AuthController) Register(c echo.Context) error {
	var req models.RegisterRequest
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

	ctx := c.Request().Context()

	var referrer *models.Account
	if req.ReferralCode != "" {
		var err error
		referrer, err = ac.accounts.ByReferralCode(ctx, req.ReferralCode)
		if err != nil {
			if errors.Is(err, services.ErrAccountNotFound) {
				return c.JSON(http.StatusBadRequest, models.Response{
					Status:  http.StatusBadRequest,
					Message: "Invalid referral code",
				})
			}
			ac.logger.Printf("referral code lookup failed: %v", err)
			return c.JSON(http.StatusInternalServerError, models.Response{
				Status:  http.StatusInternalServerError,
				Message: "Failed to process registration",
			})
		}
	}

	hashedPassword, err := utils.HashPassword(req.Password)
	if err != nil {
		ac.logger.Printf("password hashing failed: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to process registration",
		})
	}

	referralCode, err := utils.GenerateReferralCode()
	if err != nil {
		ac.logger.Printf("referral code generation failed: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to process registration",
		})
	}

	now := time.Now()
	account := models.Account{
		Email:             req.Email,
		Password:          hashedPassword,
		FullName:          req.FullName,
		ReferralCode:      referralCode,
		Balance:           0,
		TotalEarned:       0,
		RegistrationIP:    c.RealIP(),
		DeviceFingerprint: req.DeviceFingerprint,
		IsActive:          false,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if referrer != nil {
		account.ReferrerID = &referrer.ID
	}
	services.InitAgent(&account, now)

	if err := ac.accounts.Create(ctx, &account); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return c.JSON(http.StatusConflict, models.Response{
				Status:  http.StatusConflict,
				Message: "Email already registered",
			})
		}
		ac.logger.Printf("account creation failed: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to create account",
		})
	}

	if referrer != nil {
		edge := models.ReferralEdge{
			ReferrerID:              referrer.ID,
			RefereeID:               account.ID,
			OriginIP:                c.RealIP(),
			OriginDeviceFingerprint: req.DeviceFingerprint,
			CreatedAt:               now,
		}
		if err := ac.edges.Create(ctx, &edge); err != nil {
			// The account exists; losing the edge only loses commissions.
			ac.logger.Printf("edge creation failed for referee %s: %v", account.ID.Hex(), err)
		} else if ac.burst != nil {
			if err := ac.burst.Record(ctx, referrer.ID, now); err != nil {
				ac.logger.Printf("burst counter update failed for referrer %s: %v", referrer.ID.Hex(), err)
			}
		}
	}

	account.Password = ""
	return c.JSON(http.StatusCreated, models.Response{
		Status:  http.StatusCreated,
		Message: "Account created",
		Data:    account,
	})
}

// Login handler
func (ac *AuthController) Login(c echo.Context) error {
	var req models.LoginRequest
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

	ctx := c.Request().Context()

	account, err := ac.accounts.ByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, services.ErrAccountNotFound) {
			return c.JSON(http.StatusUnauthorized, models.Response{
				Status:  http.StatusUnauthorized,
				Message: "Invalid email or password",
			})
		}
		ac.logger.Printf("login lookup failed: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to process login",
		})
	}

	if err := utils.CheckPassword(account.Password, req.Password); err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Invalid email or password",
		})
	}

	token, refreshToken, err := middleware.GenerateJWT(account.ID.Hex(), account.Email)
	if err != nil {
		ac.logger.Printf("token generation failed: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to generate token",
		})
	}

	account.Password = ""
	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Login successful",
		Data: map[string]interface{}{
			"token":        token,
			"refreshToken": refreshToken,
			"account":      account,
		},
	})
}
