package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"

	"ms-registration/internal/logger"
	"ms-registration/internal/models"
	"ms-registration/internal/payment/services"
	"ms-registration/internal/payment/storage"
	"ms-registration/internal/utils"
)

// StripeHandler exposes the payment gateway endpoints.
type StripeHandler struct {
	stripeService *services.StripeService
	store         storage.Store
	log           *logger.Logger
}

func NewStripeHandler(stripeService *services.StripeService, store storage.Store, log *logger.Logger) *StripeHandler {
	return &StripeHandler{
		stripeService: stripeService,
		store:         store,
		log:           log,
	}
}

// RegisterRoutes wires the gateway routes onto the gin engine.
func (h *StripeHandler) RegisterRoutes(r *gin.Engine) {
	r.POST("/api/v1/payments", h.ProcessPayment)
	r.GET("/api/v1/payments/:paymentId", h.GetPayment)
	r.GET("/health", h.Health)
}

// ProcessPayment charges a paid registration. On success the
// registration's payment flag is flipped in the ledger's table.
func (h *StripeHandler) ProcessPayment(c *gin.Context) {
	var req models.PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid payment request", err.Error()))
		return
	}

	h.log.Info("PAYMENT", fmt.Sprintf("Processing payment for registration %d", req.RegistrationID))

	if existing, err := h.store.GetPaymentByRegistrationID(req.RegistrationID); err == nil && existing.Status == "succeeded" {
		c.JSON(http.StatusConflict, utils.ErrorResponse("Registration already paid", existing.ID))
		return
	}

	intent, err := h.stripeService.CreatePaymentIntent(&req)
	if err != nil {
		h.log.Error("PAYMENT", fmt.Sprintf("Stripe charge failed for registration %d: %v", req.RegistrationID, err))
		c.JSON(http.StatusBadGateway, utils.ErrorResponse("Payment failed", err.Error()))
		return
	}

	payment := &models.Payment{
		ID:              uuid.NewString(),
		RegistrationID:  req.RegistrationID,
		UserID:          req.UserID,
		Amount:          req.Amount,
		Currency:        string(intent.Currency),
		PaymentIntentID: intent.ID,
		Status:          string(intent.Status),
	}
	if err := h.store.SavePayment(payment); err != nil {
		h.log.Error("PAYMENT", fmt.Sprintf("Failed to persist payment %s: %v", payment.ID, err))
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Payment recorded at Stripe but not stored", err.Error()))
		return
	}

	if intent.Status == stripe.PaymentIntentStatusSucceeded {
		if err := h.store.MarkRegistrationPaid(req.RegistrationID); err != nil {
			h.log.Error("PAYMENT", fmt.Sprintf("Failed to mark registration %d paid: %v", req.RegistrationID, err))
		}
	}

	c.JSON(http.StatusCreated, utils.SuccessResponse("Payment processed", models.PaymentResponse{
		PaymentID:       payment.ID,
		PaymentIntentID: intent.ID,
		ClientSecret:    intent.ClientSecret,
		Status:          string(intent.Status),
	}))
}

func (h *StripeHandler) GetPayment(c *gin.Context) {
	paymentID := c.Param("paymentId")

	payment, err := h.store.GetPayment(paymentID)
	if err != nil {
		if errors.Is(err, storage.ErrPaymentNotFound) {
			c.JSON(http.StatusNotFound, utils.ErrorResponse("Payment not found", paymentID))
			return
		}
		h.log.Error("PAYMENT", fmt.Sprintf("Failed to load payment %s: %v", paymentID, err))
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to load payment", err.Error()))
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Payment found", payment))
}

func (h *StripeHandler) Health(c *gin.Context) {
	if err := h.store.HealthCheck(); err != nil {
		c.JSON(http.StatusServiceUnavailable, utils.ErrorResponse("Storage unavailable", err.Error()))
		return
	}
	c.JSON(http.StatusOK, utils.SuccessResponse("OK", nil))
}
