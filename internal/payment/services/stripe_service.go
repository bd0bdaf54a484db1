package services

import (
	"errors"
	"fmt"
	"os"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"

	"ms-registration/internal/logger"
	"ms-registration/internal/models"
)

var (
	ErrStripeAPIError         = errors.New("stripe API error")
	ErrStripeClientInitFailed = errors.New("failed to initialize Stripe client")
)

// StripeService charges paid registrations through Stripe. Free
// registrations never reach this service.
type StripeService struct {
	client *client.API
	log    *logger.Logger
}

func NewStripeService(log *logger.Logger) (*StripeService, error) {
	stripeKey := os.Getenv("STRIPE_SECRET_KEY")
	if stripeKey == "" {
		log.Error("STRIPE", "STRIPE_SECRET_KEY environment variable not set")
		return nil, ErrStripeClientInitFailed
	}

	sc := client.New(stripeKey, nil)
	log.Info("STRIPE", "Stripe client initialized successfully")
	return &StripeService{client: sc, log: log}, nil
}

// CreatePaymentIntent opens a Stripe payment intent for one
// registration and confirms it with the provided payment method.
func (s *StripeService) CreatePaymentIntent(req *models.PaymentRequest) (*stripe.PaymentIntent, error) {
	currency := req.Currency
	if currency == "" {
		currency = "usd"
	}

	s.log.Info("STRIPE", fmt.Sprintf("Creating payment intent for registration %d, amount %.2f %s",
		req.RegistrationID, req.Amount, currency))

	// Stripe bills in the smallest currency unit.
	amountInCents := int64(req.Amount * 100)

	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(amountInCents),
		Currency:      stripe.String(currency),
		PaymentMethod: stripe.String(req.PaymentMethod),
		Confirm:       stripe.Bool(true),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		},
	}
	params.AddMetadata("registration_id", fmt.Sprintf("%d", req.RegistrationID))

	intent, err := s.client.PaymentIntents.New(params)
	if err != nil {
		s.log.Error("STRIPE", fmt.Sprintf("Payment intent creation failed for registration %d: %v", req.RegistrationID, err))
		return nil, fmt.Errorf("%w: %v", ErrStripeAPIError, err)
	}

	s.log.Info("STRIPE", fmt.Sprintf("Payment intent %s created with status %s", intent.ID, intent.Status))
	return intent, nil
}

// GetPaymentIntent fetches the current state of an intent.
func (s *StripeService) GetPaymentIntent(intentID string) (*stripe.PaymentIntent, error) {
	intent, err := s.client.PaymentIntents.Get(intentID, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStripeAPIError, err)
	}
	return intent, nil
}
