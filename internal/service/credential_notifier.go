package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/itsmahammad/UniversityERP/internal/models"
	"github.com/itsmahammad/UniversityERP/pkg/mailer"
)

// Credential delivery kinds used as metric labels.
const (
	DeliveryWelcome = "welcome"
	DeliveryReset   = "reset"
)

// deliveryWarning is attached to results whose credentials could not be
// emailed.
const deliveryWarning = "account saved but credentials email could not be sent; share the temporary password manually"

// CredentialNotifier emails temporary passwords to a user's personal address.
// Each call makes exactly one delivery attempt.
type CredentialNotifier struct {
	sender  mailer.Sender
	metrics *MetricsService
	logger  *zap.Logger
}

// NewCredentialNotifier constructs a notifier.
func NewCredentialNotifier(sender mailer.Sender, metrics *MetricsService, logger *zap.Logger) *CredentialNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CredentialNotifier{sender: sender, metrics: metrics, logger: logger}
}

// SendWelcome delivers initial credentials.
func (n *CredentialNotifier) SendWelcome(ctx context.Context, user *models.User, tempPassword string) error {
	return n.deliver(ctx, DeliveryWelcome, user, tempPassword, mailer.WelcomeEmail)
}

// SendPasswordReset delivers credentials after an administrative reset.
func (n *CredentialNotifier) SendPasswordReset(ctx context.Context, user *models.User, tempPassword string) error {
	return n.deliver(ctx, DeliveryReset, user, tempPassword, mailer.PasswordResetEmail)
}

func (n *CredentialNotifier) deliver(ctx context.Context, kind string, user *models.User, tempPassword string, render func(mailer.CredentialsData) (string, string, error)) error {
	if n == nil || n.sender == nil {
		return fmt.Errorf("credential notifier not configured")
	}
	to := models.StringValue(user.PersonalEmail)
	if to == "" {
		n.metrics.RecordCredentialDelivery(kind, OutcomeSkipped)
		return mailer.ErrNoRecipient
	}

	subject, body, err := render(mailer.CredentialsData{
		FullName:     user.FullName,
		Code:         user.Code,
		Email:        user.Email,
		TempPassword: tempPassword,
		Role:         string(user.Role),
	})
	if err != nil {
		n.metrics.RecordCredentialDelivery(kind, OutcomeFailure)
		return err
	}

	if err := n.sender.Send(ctx, to, subject, body); err != nil {
		if errors.Is(err, mailer.ErrDeliveryDisabled) {
			n.metrics.RecordCredentialDelivery(kind, OutcomeSkipped)
			return err
		}
		n.metrics.RecordCredentialDelivery(kind, OutcomeFailure)
		n.logger.Warn("credential email failed", zap.String("kind", kind), zap.String("user_id", user.ID), zap.Error(err))
		return err
	}
	n.metrics.RecordCredentialDelivery(kind, OutcomeSuccess)
	return nil
}
