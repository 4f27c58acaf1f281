package cli

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/telekom/autofix-notifier/pkg/audit"
	"github.com/telekom/autofix-notifier/pkg/config"
	"github.com/telekom/autofix-notifier/pkg/mail"
	"github.com/telekom/autofix-notifier/pkg/notification"
	"github.com/telekom/autofix-notifier/pkg/telemetry"
)

// app bundles the dispatcher with the resources that must be closed after use.
type app struct {
	dispatcher *notification.Dispatcher
	audit      *audit.MultiSink
	shutdown   telemetry.ShutdownFunc
}

func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	log := logger.Sugar()
	props := cfg.PropertyStore()

	transport, err := mail.NewTransport(cfg.Mail, props, log.Named("mail"))
	if err != nil {
		return nil, err
	}
	shutdown, err := telemetry.Setup(ctx, cfg.Telemetry, log.Named("telemetry"))
	if err != nil {
		return nil, err
	}
	sink, err := audit.NewFromConfig(cfg.Audit, logger.Named("audit"))
	if err != nil {
		_ = shutdown(ctx)
		return nil, err
	}

	d := notification.NewDispatcher(props, props, mail.NewTemplateStore(cfg.Mail.TemplateDir), transport, log,
		notification.WithAuditSink(sink),
		notification.WithCommonFixFireAndForget(cfg.Mail.CommonFixFireAndForget),
	)
	return &app{dispatcher: d, audit: sink, shutdown: shutdown}, nil
}

// Close flushes audit sinks and pending spans.
func (a *app) Close() error {
	if a == nil {
		return nil
	}
	var errs []error
	if a.audit != nil {
		errs = append(errs, a.audit.Close())
	}
	if a.shutdown != nil {
		errs = append(errs, a.shutdown(context.Background()))
	}
	return errors.Join(errs...)
}
