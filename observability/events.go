package observability

import (
	"log/slog"

	"beamledger/core/events"
	"beamledger/ledger"
)

// EventSink logs every ledger event and feeds the metrics registry. It is the
// emitter the daemon wires into the engine.
type EventSink struct {
	logger *slog.Logger
}

// NewEventSink builds a sink over the supplied logger. A nil logger falls back
// to the process default.
func NewEventSink(logger *slog.Logger) *EventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventSink{logger: logger}
}

// Emit implements events.Emitter.
func (s *EventSink) Emit(evt *events.Event) {
	if s == nil || evt == nil {
		return
	}
	attrs := make([]any, 0, len(evt.Attributes)*2)
	for key, value := range evt.Attributes {
		attrs = append(attrs, slog.String(key, value))
	}
	s.logger.Info(evt.Type, attrs...)

	switch evt.Type {
	case ledger.EventTypeRewardRecorded:
		Rewards().RecordGrant()
	case ledger.EventTypeRewardRejected:
		Rewards().RecordRejection("below_threshold")
	case ledger.EventTypeRewardClaimed:
		Rewards().RecordClaim()
	}
}
