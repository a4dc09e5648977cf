package otel

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/moneywright/moneywright/internal/audit"
	"github.com/moneywright/moneywright/internal/audit/domain"
)

// NewAuditEmitter returns an audit.Emitter that forwards audit events as OTel
// log records via the given LoggerProvider. If provider is nil, returns a
// no-op emitter.
func NewAuditEmitter(provider *sdklog.LoggerProvider) audit.Emitter {
	if provider == nil {
		return noopEmitter{}
	}
	return &auditEmitter{logger: provider.Logger("moneywright.audit")}
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, *domain.Event) error { return nil }

// recordLogger is the slice of otellog.Logger the emitter writes to.
type recordLogger interface {
	Emit(ctx context.Context, rec otellog.Record)
}

type auditEmitter struct {
	logger recordLogger
}

// Emit converts the audit event to an OTel log record and emits it. Security
// signals go out at WARN so collector-side alerting can key on severity.
func (e *auditEmitter) Emit(ctx context.Context, event *domain.Event) error {
	if event == nil {
		return nil
	}
	rec := otellog.Record{}
	if !event.CreatedAt.IsZero() {
		rec.SetTimestamp(event.CreatedAt)
	} else {
		rec.SetTimestamp(time.Now().UTC())
	}
	sev := otellog.SeverityInfo
	if event.Action == domain.ActionRefreshReuse || event.Action == domain.ActionPinLockout {
		sev = otellog.SeverityWarn
	}
	rec.SetSeverity(sev)
	rec.SetBody(otellog.StringValue(event.Action))
	if event.ID != "" {
		rec.AddAttributes(otellog.String("event_id", event.ID))
	}
	if event.UserID != "" {
		rec.AddAttributes(otellog.String("user_id", event.UserID))
	}
	if event.Detail != "" {
		rec.AddAttributes(otellog.String("detail", event.Detail))
	}
	if event.IP != "" {
		rec.AddAttributes(otellog.String("ip", event.IP))
	}
	if event.UserAgent != "" {
		rec.AddAttributes(otellog.String("user_agent", event.UserAgent))
	}
	e.logger.Emit(ctx, rec)
	return nil
}
