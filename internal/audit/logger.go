package audit

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/moneywright/moneywright/internal/audit/domain"
	auditrepo "github.com/moneywright/moneywright/internal/audit/repository"
)

// Recorder writes a single audit event. Used by the session, identity, pin,
// and user code paths. Record is best-effort: failures are logged and never
// affect the caller.
type Recorder interface {
	Record(ctx context.Context, userID, action, detail, ip, userAgent string)
}

// Emitter forwards audit events to an external sink, e.g. OTel log records.
type Emitter interface {
	Emit(ctx context.Context, e *domain.Event) error
}

// Logger implements Recorder by persisting to the audit repository and
// forwarding to an optional emitter.
type Logger struct {
	repo    auditrepo.Repository
	emitter Emitter
}

// NewLogger returns a Recorder that persists to repo and forwards events to
// emitter. Either may be nil; a nil repo skips persistence, a nil emitter
// skips forwarding.
func NewLogger(repo auditrepo.Repository, emitter Emitter) *Logger {
	return &Logger{repo: repo, emitter: emitter}
}

// Record writes one audit event. Best-effort: errors are logged and not
// returned. The emitter runs on its own goroutine so the request is never
// blocked on the telemetry pipeline.
func (l *Logger) Record(ctx context.Context, userID, action, detail, ip, userAgent string) {
	e := &domain.Event{
		ID:        uuid.New().String(),
		UserID:    userID,
		Action:    action,
		Detail:    detail,
		IP:        ip,
		UserAgent: userAgent,
		CreatedAt: time.Now().UTC(),
	}
	if l.repo != nil {
		if err := l.repo.Create(ctx, e); err != nil {
			log.Printf("audit: failed to record %s: %v", action, err)
		}
	}
	if l.emitter != nil {
		go func() {
			emitCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := l.emitter.Emit(emitCtx, e); err != nil {
				log.Printf("audit: emit %s failed: %v", action, err)
			}
		}()
	}
}
