// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package mail

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/telekom/autofix-notifier/pkg/config"
	"github.com/telekom/autofix-notifier/pkg/metrics"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	userAgent          = "autofix-notifier/v1"

	TransportHTTP = "http"
	TransportSMTP = "smtp"
)

// ErrDeliveryFailed is wrapped by every transport error caused by the remote
// side rejecting a message.
var ErrDeliveryFailed = errors.New("mail delivery failed")

// Transport hands a finished envelope to a delivery backend.
type Transport interface {
	Deliver(ctx context.Context, env Envelope) error
	Name() string
}

// HTTPTransport posts envelopes as JSON to the mail-delivery service. The
// service URL is resolved on every delivery so property updates apply without
// a restart.
type HTTPTransport struct {
	client   *resty.Client
	resolver config.Resolver
	log      *zap.SugaredLogger
}

// NewHTTPTransport creates an HTTPTransport. A zero timeout selects the default.
func NewHTTPTransport(resolver config.Resolver, timeout time.Duration, log *zap.SugaredLogger) *HTTPTransport {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", userAgent)

	log.Infow("Initializing mail service transport", "timeout", timeout.String())
	return &HTTPTransport{
		client:   client,
		resolver: resolver,
		log:      log.Named("http-transport"),
	}
}

// Name implements Transport.
func (t *HTTPTransport) Name() string { return TransportHTTP }

// Deliver implements Transport.
func (t *HTTPTransport) Deliver(ctx context.Context, env Envelope) error {
	url := config.Lookup(t.resolver, config.EmailServiceURL)
	if url == "" {
		metrics.MailSendFailure.WithLabelValues(TransportHTTP).Inc()
		return fmt.Errorf("mail service URL (%s) is not configured", config.EmailServiceURL)
	}

	body, err := env.Encode()
	if err != nil {
		metrics.MailSendFailure.WithLabelValues(TransportHTTP).Inc()
		return err
	}

	t.log.Debugw("Posting mail envelope", "url", url, "recipients", env.To, "subject", env.Subject)
	resp, err := t.client.R().
		SetContext(ctx).
		SetBody(body).
		Post(url)
	if err != nil {
		metrics.MailSendFailure.WithLabelValues(TransportHTTP).Inc()
		return fmt.Errorf("failed to post mail envelope: %w", err)
	}
	if resp.IsError() {
		metrics.MailSendFailure.WithLabelValues(TransportHTTP).Inc()
		return fmt.Errorf("%w: mail service responded %d: %s", ErrDeliveryFailed, resp.StatusCode(), resp.String())
	}

	metrics.MailSendSuccess.WithLabelValues(TransportHTTP).Inc()
	t.log.Debugw("Mail envelope accepted", "status", resp.StatusCode(), "recipients", len(env.To))
	return nil
}
