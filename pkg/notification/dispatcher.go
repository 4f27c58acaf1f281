package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/telekom/autofix-notifier/pkg/audit"
	"github.com/telekom/autofix-notifier/pkg/autofix"
	"github.com/telekom/autofix-notifier/pkg/config"
	"github.com/telekom/autofix-notifier/pkg/mail"
	"github.com/telekom/autofix-notifier/pkg/metrics"
)

// Dispatch kinds used for metrics and audit events.
const (
	KindPlain     = "plain"
	KindAutoFix   = "autofix"
	KindCommonFix = "common_fix"
)

const tracerName = "github.com/telekom/autofix-notifier/pkg/notification"

// TemplateSource provides named template content and renders batch templates.
type TemplateSource interface {
	Content(name string) (string, error)
	Render(name string, data any) (string, error)
}

type correlationIDKey struct{}

// WithCorrelationID attaches a correlation id that is copied into audit events.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, id)
}

// CorrelationIDFrom returns the id set by WithCorrelationID, or "".
func CorrelationIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey{}).(string)
	return id
}

// Dispatcher sends autofix notifications through a mail transport. It holds no
// per-call state and is safe for concurrent use.
type Dispatcher struct {
	resolver      config.Resolver
	delays        autofix.DelayProvider
	templates     TemplateSource
	transport     mail.Transport
	audit         audit.Sink
	log           *zap.SugaredLogger
	fireAndForget bool
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithAuditSink records an audit event for every dispatch.
func WithAuditSink(s audit.Sink) Option {
	return func(d *Dispatcher) { d.audit = s }
}

// WithCommonFixFireAndForget makes SendCommonFixNotification log failures and
// report success. The failure is still audited and counted.
func WithCommonFixFireAndForget(enabled bool) Option {
	return func(d *Dispatcher) { d.fireAndForget = enabled }
}

func NewDispatcher(resolver config.Resolver, delays autofix.DelayProvider, templates TemplateSource,
	transport mail.Transport, log *zap.SugaredLogger, opts ...Option,
) *Dispatcher {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	d := &Dispatcher{
		resolver:  resolver,
		delays:    delays,
		templates: templates,
		transport: transport,
		log:       log.Named("dispatcher"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SendPlainTextMail fills the named template's placeholders and delivers it.
// An empty recipient list is a successful no-op.
func (d *Dispatcher) SendPlainTextMail(ctx context.Context, recipients []string, from, subject string,
	placeholders map[string]string, templateName string,
) error {
	start := time.Now()
	ctx, span := startSpan(ctx, KindPlain, attribute.String("notification.template", templateName))
	defer span.End()
	event := audit.NewEvent(audit.EventNotificationSent, KindPlain)
	event.Template = templateName
	event.Subject = subject
	event.Recipients = len(recipients)

	err := d.sendPlain(ctx, recipients, from, subject, placeholders, templateName)
	d.record(ctx, event, start, len(recipients) == 0, err)
	return err
}

// SendAutoFixNotification notifies the resource owner about a violation, an
// applied fix, an expiring exception or a granted exemption.
func (d *Dispatcher) SendAutoFixNotification(ctx context.Context, req AutoFixRequest) error {
	start := time.Now()
	policyID := req.PolicyParams.PolicyID()
	ctx, span := startSpan(ctx, KindAutoFix,
		attribute.String("autofix.policy_id", policyID),
		attribute.String("autofix.action", req.Action.String()),
		attribute.String("autofix.resource_id", req.ResourceID))
	defer span.End()
	event := audit.NewEvent(audit.EventNotificationSent, KindAutoFix)
	event.PolicyID = policyID
	event.ResourceID = req.ResourceID
	event.Action = req.Action.String()

	if req.Action == autofix.ActionFix && usesCommonTemplate(d.resolver, policyID) {
		d.log.Debugw("Delegating fix notification to common template", "policyId", policyID, "resources", len(req.Transactions))
		event.Template = d.commonFixTemplate(policyID)
		event.Resources = len(req.Transactions)
		recipients := ccList(d.resolver)
		event.Recipients = len(recipients)
		err := d.sendCommonFix(ctx, req.Transactions, req.PolicyParams, req.Owner, req.TargetType)
		d.record(ctx, event, start, len(recipients) == 0, err)
		return d.commonFixResult(err)
	}

	msg := BuildAutoFixMessage(d.resolver, d.delays, req)
	event.Template = msg.TemplateName
	event.Subject = msg.Subject
	event.Recipients = len(msg.Recipients)

	err := d.sendPlain(ctx, msg.Recipients, config.Lookup(d.resolver, config.SendEmailFrom),
		msg.Subject, msg.Placeholders, msg.TemplateName)
	if err != nil {
		d.log.Errorw("Failed to send autofix notification", "policyId", policyID, "resourceId", req.ResourceID,
			"action", req.Action, "error", err)
	}
	d.record(ctx, event, start, len(msg.Recipients) == 0, err)
	return err
}

// SendCommonFixNotification sends a single digest for a batch of applied fixes
// to the configured CC list.
func (d *Dispatcher) SendCommonFixNotification(ctx context.Context, batch []autofix.Transaction,
	params autofix.PolicyParams, owner *autofix.ResourceOwner, targetType string,
) error {
	start := time.Now()
	policyID := params.PolicyID()
	ctx, span := startSpan(ctx, KindCommonFix,
		attribute.String("autofix.policy_id", policyID),
		attribute.Int("autofix.resources", len(batch)))
	defer span.End()
	recipients := ccList(d.resolver)
	event := audit.NewEvent(audit.EventNotificationSent, KindCommonFix)
	event.PolicyID = policyID
	event.Action = autofix.ActionFix.String()
	event.Template = d.commonFixTemplate(policyID)
	event.Resources = len(batch)
	event.Recipients = len(recipients)

	err := d.sendCommonFix(ctx, batch, params, owner, targetType)
	d.record(ctx, event, start, len(recipients) == 0, err)
	return d.commonFixResult(err)
}

func (d *Dispatcher) sendPlain(ctx context.Context, recipients []string, from, subject string,
	placeholders map[string]string, templateName string,
) error {
	if len(recipients) == 0 {
		d.log.Debugw("No recipients, skipping mail", "template", templateName)
		return nil
	}
	body, err := d.templates.Content(templateName)
	if err != nil {
		d.log.Errorw("Failed to load mail template", "template", templateName, "error", err)
		return fmt.Errorf("load template %q: %w", templateName, err)
	}
	env := mail.Envelope{
		From:              from,
		To:                recipients,
		Subject:           subject,
		MailBodyAsString:  body,
		PlaceholderValues: placeholders,
	}
	d.log.Debugw("Sending mail", "template", templateName, "subject", subject, "recipients", recipients)
	if err := d.transport.Deliver(ctx, env); err != nil {
		d.log.Errorw("Failed to send mail", "template", templateName, "transport", d.transport.Name(), "error", err)
		return fmt.Errorf("send %q mail: %w", templateName, err)
	}
	d.log.Infow("Mail sent", "template", templateName, "recipientCount", len(recipients))
	return nil
}

func (d *Dispatcher) sendCommonFix(ctx context.Context, batch []autofix.Transaction,
	params autofix.PolicyParams, owner *autofix.ResourceOwner, targetType string,
) error {
	if params.TargetType() == "" && targetType != "" {
		params = withTargetType(params, targetType)
	}
	recipients := ccList(d.resolver)
	if len(recipients) == 0 {
		d.log.Debugw("No CC recipients, skipping common fix mail", "policyId", params.PolicyID())
		return nil
	}
	body, err := d.FormatCommonFixBody(batch, params, owner)
	if err != nil {
		d.log.Errorw("Failed to render common fix body", "policyId", params.PolicyID(), "error", err)
		return fmt.Errorf("render common fix body: %w", err)
	}
	env := mail.Envelope{
		From:              config.Lookup(d.resolver, config.SendEmailFrom),
		To:                recipients,
		Subject:           config.LookupPolicy(d.resolver, params.PolicyID(), config.FragmentFixSubject),
		MailBodyAsString:  body,
		PlaceholderValues: map[string]string{},
	}
	if err := d.transport.Deliver(ctx, env); err != nil {
		d.log.Errorw("Failed to send common fix mail", "policyId", params.PolicyID(), "resources", len(batch), "error", err)
		return fmt.Errorf("send common fix mail: %w", err)
	}
	d.log.Infow("Common fix mail sent", "policyId", params.PolicyID(), "resources", len(batch), "recipientCount", len(recipients))
	return nil
}

func (d *Dispatcher) commonFixResult(err error) error {
	if err != nil && d.fireAndForget {
		d.log.Warnw("Ignoring common fix failure", "error", err)
		return nil
	}
	return err
}

func (d *Dispatcher) commonFixTemplate(policyID string) string {
	if usesCommonTemplate(d.resolver, policyID) {
		return mail.TemplateCommonFix
	}
	return mail.TemplateSilentFix
}

func (d *Dispatcher) record(ctx context.Context, event *audit.Event, start time.Time, skipped bool, err error) {
	outcome := metrics.OutcomeSent
	switch {
	case err != nil:
		outcome = metrics.OutcomeFailed
		event.Type = audit.EventNotificationFailed
		event.Error = err.Error()
	case skipped:
		outcome = metrics.OutcomeSkipped
		event.Type = audit.EventNotificationSkipped
	}
	metrics.DispatchTotal.WithLabelValues(event.Kind, outcome).Inc()
	metrics.DispatchDuration.WithLabelValues(event.Kind).Observe(time.Since(start).Seconds())

	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.String("notification.outcome", outcome),
		attribute.Int("notification.recipients", event.Recipients),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	if sc := span.SpanContext(); sc.HasTraceID() {
		event.TraceID = sc.TraceID().String()
	}

	if d.audit == nil {
		return
	}
	if d.transport != nil {
		event.Transport = d.transport.Name()
	}
	event.CorrelationID = CorrelationIDFrom(ctx)
	if aerr := d.audit.Write(ctx, event); aerr != nil && !errors.Is(aerr, context.Canceled) {
		d.log.Warnw("Failed to write audit event", "eventId", event.ID, "error", aerr)
	}
}

func startSpan(ctx context.Context, kind string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("notification.kind", kind))
	return otel.Tracer(tracerName).Start(ctx, "notification."+kind, trace.WithAttributes(attrs...))
}

func withTargetType(params autofix.PolicyParams, targetType string) autofix.PolicyParams {
	out := make(autofix.PolicyParams, len(params)+1)
	for k, v := range params {
		out[k] = v
	}
	out[autofix.ParamTargetType] = targetType
	return out
}
