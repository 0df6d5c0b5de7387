// Package mailer delivers HTML email over SMTP.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/itsmahammad/UniversityERP/pkg/config"
)

// Sender delivers a single HTML message.
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

var (
	// ErrNoRecipient is returned when the destination address is blank.
	ErrNoRecipient = errors.New("mailer: recipient address is empty")
	// ErrDeliveryDisabled is returned by LogSender. Nothing reached the
	// recipient, so callers must hand credentials over another way.
	ErrDeliveryDisabled = errors.New("mailer: smtp delivery disabled")
)

// New returns an SMTP sender, or a LogSender when no SMTP host is configured.
func New(cfg config.SMTPConfig, logger *zap.Logger) (Sender, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(cfg.Host) == "" {
		logger.Info("smtp host not configured, emails will only be logged")
		return NewLogSender(logger), nil
	}
	return NewSMTPSender(cfg, logger)
}

// SMTPSender sends mail through an authenticated SMTP relay.
type SMTPSender struct {
	client   *mail.Client
	from     string
	fromName string
	logger   *zap.Logger
}

// NewSMTPSender builds a go-mail client from cfg. The connection is opened
// per message.
func NewSMTPSender(cfg config.SMTPConfig, logger *zap.Logger) (*SMTPSender, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTimeout(timeout),
	}
	if cfg.StartTLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}
	return &SMTPSender{client: client, from: cfg.FromEmail, fromName: cfg.FromName, logger: logger}, nil
}

// Send delivers one message. It makes a single attempt.
func (s *SMTPSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	if strings.TrimSpace(to) == "" {
		return ErrNoRecipient
	}
	msg := mail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.from); err != nil {
		return fmt.Errorf("set sender: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("set recipient: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, htmlBody)

	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	s.logger.Debug("email sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}

// LogSender records the envelope of each message instead of delivering it and
// reports ErrDeliveryDisabled. The body is never logged.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender constructs a LogSender.
func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

// Send logs the envelope of the message.
func (s *LogSender) Send(_ context.Context, to, subject, _ string) error {
	if strings.TrimSpace(to) == "" {
		return ErrNoRecipient
	}
	s.logger.Info("email delivery skipped, smtp disabled", zap.String("to", to), zap.String("subject", subject))
	return ErrDeliveryDisabled
}
