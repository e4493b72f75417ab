package billing

import (
	"fmt"
	"time"

	"github.com/dukex/hesab/pkg/models"
)

func (s *Service) subscriptionWorkflow() models.WorkflowDefinition {
	return models.WorkflowDefinition{
		Name:        SubscriptionWorkflow,
		Description: "Buy or renew a subscription plan from the caller's wallet",
		Steps: []models.StepDefinition{
			models.NewStep("validate_subscription_request", s.validateSubscriptionRequest, models.WithRetryCount(1)),
			models.NewStep("calculate_subscription_price", s.calculateSubscriptionPrice,
				models.DependsOn("validate_subscription_request")),
			models.NewStep("validate_user_funds", s.validateUserFunds("calculate_subscription_price"),
				models.DependsOn("calculate_subscription_price")),
			models.NewStep("create_subscription", s.createSubscription,
				models.WithRetryCount(1), models.DependsOn("calculate_subscription_price", "validate_user_funds")),
			models.NewStep("charge_subscription", s.chargeSubscription,
				models.WithRetryCount(1), models.DependsOn("create_subscription")),
			models.NewStep("activate_subscription", s.activateSubscription,
				models.WithRetryCount(1), models.DependsOn("charge_subscription")),
			models.NewStep("send_subscription_notification", s.notify("subscription", "create_subscription"),
				models.Optional(), models.DependsOn("activate_subscription")),
		},
	}
}

func (s *Service) validateSubscriptionRequest(ec *models.ExecutionContext) (models.StepOutcome, error) {
	if err := validateInput(subscriptionRequestSchema, ec.Input); err != nil {
		return nil, err
	}

	plan := inputString(ec, "plan")
	if _, err := s.pricer.Quote(plan); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	startsAt := s.now().UTC()

	if raw := inputString(ec, "starts_at"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("%w: starts_at: %w", ErrInvalidRequest, err)
		}

		startsAt = parsed.UTC()
	}

	autoRenew := true
	if v, ok := ec.Input["auto_renew"].(bool); ok {
		autoRenew = v
	}

	return models.StepOutcome{
		"plan":       plan,
		"auto_renew": autoRenew,
		"starts_at":  startsAt,
		"renewal_of": inputString(ec, "renewal_of"),
	}, nil
}

func (s *Service) calculateSubscriptionPrice(ec *models.ExecutionContext) (models.StepOutcome, error) {
	plan, err := resultValue[string](ec, "validate_subscription_request", "plan")
	if err != nil {
		return nil, err
	}

	quote, err := s.pricer.Quote(plan)
	if err != nil {
		return nil, err
	}

	return models.StepOutcome{
		keyAmount:    quote.TotalPrice,
		"base_price": quote.BasePrice,
		"discount":   quote.Discount,
		"months":     quote.Months,
	}, nil
}

// createSubscription writes a pending subscription and its ledger row.
func (s *Service) createSubscription(ec *models.ExecutionContext) (models.StepOutcome, error) {
	plan, err := resultValue[string](ec, "validate_subscription_request", "plan")
	if err != nil {
		return nil, err
	}

	startsAt, err := resultValue[time.Time](ec, "validate_subscription_request", "starts_at")
	if err != nil {
		return nil, err
	}

	autoRenew, _ := resultValue[bool](ec, "validate_subscription_request", "auto_renew")

	price, err := resultAmount(ec, "calculate_subscription_price")
	if err != nil {
		return nil, err
	}

	endsAt, err := s.pricer.Period(plan, startsAt)
	if err != nil {
		return nil, err
	}

	sub := &models.Subscription{
		ID:        newID(),
		UserID:    ec.User.UserID,
		Plan:      plan,
		Status:    models.SubscriptionStatusPending,
		Price:     price,
		AutoRenew: autoRenew,
		StartsAt:  startsAt,
		EndsAt:    endsAt,
		CreatedAt: s.now().UTC(),
	}

	if err := s.ledger.CreateSubscription(ec.Context(), ec.Tx, sub); err != nil {
		return nil, err
	}

	description := "subscription " + plan
	if renewalOf := resultString(ec, "validate_subscription_request", "renewal_of"); renewalOf != "" {
		description = "renewal of " + renewalOf
	}

	outcome, err := s.createTransaction(ec, models.TransactionTypeSubscription, price, "", description)
	if err != nil {
		return nil, err
	}

	outcome["subscription_id"] = sub.ID
	outcome["ends_at"] = endsAt

	return outcome, nil
}

func (s *Service) chargeSubscription(ec *models.ExecutionContext) (models.StepOutcome, error) {
	if err := requireFunds(ec); err != nil {
		return nil, err
	}

	return s.updateWalletBalance("create_subscription", "")(ec)
}

func (s *Service) activateSubscription(ec *models.ExecutionContext) (models.StepOutcome, error) {
	subID, err := resultValue[string](ec, "create_subscription", "subscription_id")
	if err != nil {
		return nil, err
	}

	if err := s.ledger.ActivateSubscription(ec.Context(), ec.Tx, subID); err != nil {
		return nil, err
	}

	outcome := models.StepOutcome{"subscription_id": subID, "status": string(models.SubscriptionStatusActive)}

	// The renewed subscription hands over in the same unit of work, so it is
	// never due twice.
	if renewalOf := resultString(ec, "validate_subscription_request", "renewal_of"); renewalOf != "" {
		if err := s.ledger.ExpireSubscription(ec.Context(), ec.Tx, renewalOf); err != nil {
			return nil, err
		}

		outcome["expired"] = renewalOf
	}

	return outcome, nil
}
