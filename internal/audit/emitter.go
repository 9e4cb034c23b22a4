package audit

import (
	"context"
	"log/slog"

	"onpaku/pkg/requestcontext"
)

// Emitter stamps events with request metadata and hands them to a
// Publisher. Publish failures are logged and swallowed: the audit trail
// never blocks or fails a write.
type Emitter struct {
	publisher Publisher
	logger    *slog.Logger
}

func NewEmitter(publisher Publisher, logger *slog.Logger) *Emitter {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &Emitter{publisher: publisher, logger: logger}
}

func (e *Emitter) Emit(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if err := e.publisher.Publish(ctx, event); err != nil {
		e.logger.WarnContext(ctx, "audit publish failed",
			"action", event.Action,
			"error", err,
		)
	}
}
