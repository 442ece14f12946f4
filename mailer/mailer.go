// Package mailer implements the ClinicBoost notification and campaign
// service: named email templates rendered per recipient, a pluggable
// delivery provider, and bulk sends with per-recipient status tracking.
// Provider calls are wrapped in retry-with-backoff and a circuit breaker
// so a failing relay degrades to queued work instead of cascading.
package mailer

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/clinicboost/go-common/logger"
	"github.com/clinicboost/go-common/resilience"
)

// Mailer sends rendered templates through a Provider, with retry and
// circuit breaking around every delivery.
type Mailer struct {
	provider Provider
	catalog  *Catalog
	log      logger.Logger
	retry    resilience.RetryConfig
	breaker  *resilience.CircuitBreaker
	workers  int
}

// MailerOption configures a Mailer.
type MailerOption func(*Mailer)

// WithRetryConfig overrides the delivery retry settings.
func WithRetryConfig(cfg resilience.RetryConfig) MailerOption {
	return func(m *Mailer) { m.retry = cfg }
}

// WithBreaker overrides the delivery circuit breaker.
func WithBreaker(cb *resilience.CircuitBreaker) MailerOption {
	return func(m *Mailer) { m.breaker = cb }
}

// WithWorkers sets how many recipients a campaign sends to concurrently.
// Defaults to 4.
func WithWorkers(n int) MailerOption {
	return func(m *Mailer) { m.workers = n }
}

// New returns a Mailer delivering through provider with templates from
// catalog.
func New(provider Provider, catalog *Catalog, log logger.Logger, opts ...MailerOption) *Mailer {
	m := &Mailer{
		provider: provider,
		catalog:  catalog,
		log:      log.WithPrefix("[mailer]"),
		retry:    resilience.DefaultRetryConfig(),
		breaker:  resilience.NewCircuitBreaker(resilience.DefaultBreakerConfig()),
		workers:  4,
	}
	m.retry.Retryable = retryableDelivery
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Only transport failures are retried; a rejected recipient or rendering
// problem will not improve on a second attempt.
func retryableDelivery(err error) bool {
	return errors.Is(err, ErrProviderUnavailable)
}

// Send delivers one message, retrying transport failures. A message
// without an ID is assigned one.
func (m *Mailer) Send(ctx context.Context, msg Message) error {
	_, err := m.send(ctx, msg)
	return err
}

// send reports how many provider calls were made, for per-recipient
// delivery records.
func (m *Mailer) send(ctx context.Context, msg Message) (int, error) {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	var attempts int
	err := resilience.RetryWithBreaker(ctx, m.retry, m.breaker, func() error {
		attempts++
		return m.provider.Send(ctx, msg)
	})
	if err != nil {
		m.log.Error("delivery failed to=%s id=%s: %v", msg.To, msg.ID, err)
		return attempts, err
	}
	m.log.Debug("delivered to=%s id=%s provider=%s", msg.To, msg.ID, m.provider.Name())
	return attempts, nil
}

// SendTemplate renders a catalog template for one recipient and sends it.
func (m *Mailer) SendTemplate(ctx context.Context, templateName, from, to string, data map[string]any) error {
	rendered, err := m.catalog.Render(templateName, data)
	if err != nil {
		return err
	}
	return m.Send(ctx, Message{
		From:    from,
		To:      to,
		Subject: rendered.Subject,
		HTML:    rendered.HTML,
	})
}
