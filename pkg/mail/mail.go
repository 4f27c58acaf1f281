package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/telekom/autofix-notifier/pkg/config"
	"github.com/telekom/autofix-notifier/pkg/metrics"
)

// SMTPTransport delivers envelopes directly over SMTP. Placeholders are
// substituted locally because no mail service sits in between.
type SMTPTransport struct {
	dialer         *gomail.Dialer
	senderName     string
	retryCount     int
	retryBackoffMs int
	log            *zap.SugaredLogger
}

func NewSMTPTransport(cfg config.SMTP, log *zap.SugaredLogger) *SMTPTransport {
	log.Infow("Initializing SMTP transport", "host", cfg.Host, "port", cfg.Port, "user", cfg.User)
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password)
	if cfg.InsecureSkipVerify {
		log.Warn("InsecureSkipVerify is enabled for mail TLS connection")
		d.TLSConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // operator opt-in
	}

	senderName := cfg.SenderName
	if senderName == "" {
		senderName = "Pacman AutoFix"
	}

	// Single attempt unless retries are configured explicitly.
	retryCount := cfg.RetryCount
	if retryCount < 0 {
		retryCount = 0
	}
	retryBackoffMs := cfg.RetryBackoffMs
	if retryBackoffMs <= 0 {
		retryBackoffMs = 100
	}

	return &SMTPTransport{
		dialer:         d,
		senderName:     senderName,
		retryCount:     retryCount,
		retryBackoffMs: retryBackoffMs,
		log:            log.Named("smtp-transport"),
	}
}

// Name implements Transport.
func (s *SMTPTransport) Name() string { return TransportSMTP }

// Deliver implements Transport.
func (s *SMTPTransport) Deliver(ctx context.Context, env Envelope) error {
	if len(env.To) == 0 {
		return fmt.Errorf("cannot send mail without receivers")
	}
	s.log.Debugw("Preparing SMTP message", "receivers", len(env.To), "subject", env.Subject)

	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", env.From, s.senderName)
	msg.SetHeader("To", env.To...)
	msg.SetHeader("Subject", env.Subject)
	msg.SetBody("text/html", Substitute(env.MailBodyAsString, env.PlaceholderValues))

	var lastErr error
	backoffMs := s.retryBackoffMs

	for attempt := 0; attempt <= s.retryCount; attempt++ {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}
		err := s.dialer.DialAndSend(msg)
		if err == nil {
			s.log.Debugw("Mail sent", "receivers", len(env.To), "attempt", attempt+1)
			metrics.MailSendSuccess.WithLabelValues(TransportSMTP).Inc()
			return nil
		}

		lastErr = err
		if attempt < s.retryCount {
			s.log.Warnw("Send attempt failed, retrying", "attempt", attempt+1, "error", err, "backoffMs", backoffMs)
			select {
			case <-ctx.Done():
			case <-time.After(time.Duration(backoffMs) * time.Millisecond):
			}
			backoffMs = int(math.Min(float64(backoffMs)*2, 32000))
		}
	}

	metrics.MailSendFailure.WithLabelValues(TransportSMTP).Inc()
	return fmt.Errorf("%w: %v", ErrDeliveryFailed, lastErr)
}

// NewTransport selects the transport configured under mail.delivery.
func NewTransport(cfg config.Mail, resolver config.Resolver, log *zap.SugaredLogger) (Transport, error) {
	switch cfg.Delivery {
	case "", config.DeliveryHTTP:
		return NewHTTPTransport(resolver, cfg.TimeoutDuration(defaultHTTPTimeout), log), nil
	case config.DeliverySMTP:
		if cfg.SMTP.Host == "" {
			return nil, fmt.Errorf("smtp delivery requires mail.smtp.host")
		}
		return NewSMTPTransport(cfg.SMTP, log), nil
	default:
		return nil, fmt.Errorf("unknown mail delivery %q", cfg.Delivery)
	}
}
